// cmd/api is the HTTP API entry point.
// It wires together all layers and starts the server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/openfest/registrar/internal/config"
	"github.com/openfest/registrar/internal/database"
	"github.com/openfest/registrar/internal/handler"
	"github.com/openfest/registrar/internal/notify"
	"github.com/openfest/registrar/internal/repository"
	"github.com/openfest/registrar/internal/service"
	"github.com/openfest/registrar/internal/storage"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	pool, err := database.NewPool(ctx, cfg.DSN())
	if err != nil {
		slog.Error("database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	if err := database.Migrate(ctx, pool); err != nil {
		slog.Error("migrate", "error", err)
		os.Exit(1)
	}
	slog.Info("connected to postgres")

	// Repositories.
	eventRepo := repository.NewEventRepository(pool)
	regRepo := repository.NewRegistrationRepository(pool)
	teamRepo := repository.NewTeamRepository(pool)
	notifRepo := repository.NewNotificationRepository(pool)

	// Side-effect sinks.
	mailer := notify.NewQueueMailer(cfg.RedisAddr)
	defer mailer.Close()
	dispatcher := &notify.Dispatcher{
		Notifier:  &notify.DBNotifier{Repo: notifRepo},
		Mailer:    mailer,
		Announcer: notify.NewDiscordAnnouncer(cfg.DiscordWebhookURL),
	}

	proofs := storage.NewS3Store(storage.Config{
		Endpoint:  cfg.S3.Endpoint,
		Region:    cfg.S3.Region,
		Bucket:    cfg.S3.Bucket,
		AccessKey: cfg.S3.AccessKey,
		SecretKey: cfg.S3.SecretKey,
	})

	// Services.
	eventSvc := service.NewEventService(eventRepo, dispatcher)
	regSvc := service.NewRegistrationService(eventRepo, regRepo, dispatcher)
	teamSvc := service.NewTeamService(eventRepo, regRepo, teamRepo, dispatcher)
	notifSvc := service.NewNotificationService(notifRepo)

	// Handlers.
	eventHandler := handler.NewEventHandler(eventSvc, regSvc)
	regHandler := handler.NewRegistrationHandler(regSvc, proofs)
	teamHandler := handler.NewTeamHandler(teamSvc)
	notifHandler := handler.NewNotificationHandler(notifSvc)

	r := chi.NewRouter()

	// Global middleware stack.
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(handler.Logger)
	r.Use(cors.AllowAll().Handler)

	r.Get("/health", handler.HealthCheck)

	r.Group(func(r chi.Router) {
		r.Use(handler.Auth(cfg.JWTSecret))

		r.Route("/events", func(r chi.Router) {
			r.Post("/", eventHandler.CreateEvent)
			r.Get("/", eventHandler.ListEvents)
			r.Get("/{id}", eventHandler.GetEvent)
			r.Patch("/{id}", eventHandler.UpdateEvent)
			r.Post("/{id}/publish", eventHandler.PublishEvent)
			r.Post("/{id}/status", eventHandler.SetEventStatus)
			r.Get("/{id}/registrations", eventHandler.ListEventRegistrations)
			r.Post("/{id}/register", regHandler.Register)
			r.Post("/{id}/merch", regHandler.RegisterMerch)
			r.Post("/{id}/checkin", regHandler.CheckIn)
			r.Post("/{id}/teams", teamHandler.CreateTeam)
		})

		r.Route("/registrations", func(r chi.Router) {
			r.Get("/mine", regHandler.ListMine)
			r.Post("/{id}/proof", regHandler.UploadProof)
			r.Post("/{id}/approve", regHandler.ApprovePayment)
			r.Post("/{id}/reject", regHandler.RejectPayment)
			r.Post("/{id}/cancel", regHandler.CancelRegistration)
		})

		r.Route("/teams", func(r chi.Router) {
			r.Post("/join", teamHandler.JoinTeam)
			r.Get("/{id}", teamHandler.GetTeam)
			r.Post("/{id}/leave", teamHandler.LeaveTeam)
			r.Post("/{id}/cancel", teamHandler.CancelTeam)
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", notifHandler.ListNotifications)
			r.Post("/read", notifHandler.MarkNotificationsRead)
		})
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Run in a background goroutine so we can listen for the shutdown
	// signal.
	go func() {
		slog.Info("server listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

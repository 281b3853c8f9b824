// cmd/worker processes queued side-effect tasks, currently ticket emails.
// It runs separately from the API so slow deliveries never touch request
// latency.
package main

import (
	"log/slog"
	"os"

	"github.com/hibiken/asynq"

	"github.com/openfest/registrar/internal/config"
	"github.com/openfest/registrar/internal/tasks"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config", "error", err)
		os.Exit(1)
	}

	srv := asynq.NewServer(
		asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		asynq.Config{Concurrency: 5},
	)

	mux := asynq.NewServeMux()
	mux.Handle(tasks.TypeTicketEmail, tasks.HandleTicketEmail(tasks.LogSender{}))

	slog.Info("worker starting", "redis", cfg.RedisAddr)
	if err := srv.Run(mux); err != nil {
		slog.Error("worker stopped", "error", err)
		os.Exit(1)
	}
}

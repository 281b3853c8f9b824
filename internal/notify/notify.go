// Package notify implements the side-effect sinks the lifecycle engine
// dispatches to: in-app notifications, ticket emails, and the publish
// announcement webhook. All of them are best-effort; a sink failure is
// logged and swallowed, never turning a committed state transition into a
// reported error.
package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/openfest/registrar/internal/model"
)

// Notifier delivers an in-app notification.
type Notifier interface {
	Notify(ctx context.Context, n *model.Notification) error
}

// Mailer queues a ticket email for a confirmed registration.
type Mailer interface {
	EnqueueTicketEmail(ctx context.Context, reg *model.Registration, eventName string) error
}

// Announcer posts a public announcement when an event is published.
type Announcer interface {
	Announce(ctx context.Context, event *model.Event) error
}

// Dispatcher fans state-transition side effects out to the sinks,
// absorbing failures. Any nil sink is skipped.
type Dispatcher struct {
	Notifier  Notifier
	Mailer    Mailer
	Announcer Announcer
}

// Notify writes an in-app notification, best-effort.
func (d *Dispatcher) Notify(ctx context.Context, userID, kind, title, body string, refs model.JSONMap) {
	if d == nil || d.Notifier == nil {
		return
	}
	n := &model.Notification{
		ID:        uuid.New().String(),
		UserID:    userID,
		Kind:      kind,
		Title:     title,
		Body:      body,
		Refs:      refs,
		CreatedAt: time.Now().UTC(),
	}
	if err := d.Notifier.Notify(ctx, n); err != nil {
		slog.Warn("notification dispatch failed", "user_id", userID, "kind", kind, "error", err)
	}
}

// TicketEmail queues the ticket email, best-effort.
func (d *Dispatcher) TicketEmail(ctx context.Context, reg *model.Registration, eventName string) {
	if d == nil || d.Mailer == nil {
		return
	}
	if err := d.Mailer.EnqueueTicketEmail(ctx, reg, eventName); err != nil {
		slog.Warn("ticket email enqueue failed", "registration_id", reg.ID, "error", err)
	}
}

// Announce posts the publish announcement, best-effort.
func (d *Dispatcher) Announce(ctx context.Context, event *model.Event) {
	if d == nil || d.Announcer == nil {
		return
	}
	if err := d.Announcer.Announce(ctx, event); err != nil {
		slog.Warn("publish announcement failed", "event_id", event.ID, "error", err)
	}
}

// DBNotifier persists notifications through the repository.
type DBNotifier struct {
	Repo interface {
		Create(ctx context.Context, n *model.Notification) error
	}
}

// Notify implements Notifier.
func (s *DBNotifier) Notify(ctx context.Context, n *model.Notification) error {
	return s.Repo.Create(ctx, n)
}

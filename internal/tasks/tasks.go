// Package tasks defines the asynq task types exchanged between the API and
// the worker process. Ticket emails are delivered off the request path: the
// API enqueues, the worker sends.
package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// TypeTicketEmail is the task type for ticket delivery emails.
const TypeTicketEmail = "email:ticket"

// TicketEmailPayload carries everything the worker needs to render and send
// a ticket email.
type TicketEmailPayload struct {
	ParticipantID string `json:"participant_id"`
	EventID       string `json:"event_id"`
	EventName     string `json:"event_name"`
	TicketID      string `json:"ticket_id"`
	QRPayload     string `json:"qr_payload"`
}

// NewTicketEmailTask builds the asynq task for a ticket email.
func NewTicketEmailTask(p TicketEmailPayload) (*asynq.Task, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal ticket email payload: %w", err)
	}
	return asynq.NewTask(TypeTicketEmail, payload,
		asynq.MaxRetry(5), asynq.Timeout(30*time.Second)), nil
}

// HandleTicketEmail processes a ticket email task. Rendering and SMTP
// delivery live behind the Sender so the worker stays testable.
func HandleTicketEmail(sender TicketSender) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var p TicketEmailPayload
		if err := json.Unmarshal(t.Payload(), &p); err != nil {
			return fmt.Errorf("unmarshal ticket email payload: %w", err)
		}
		if err := sender.SendTicket(ctx, p); err != nil {
			return fmt.Errorf("send ticket email: %w", err)
		}
		slog.Info("ticket email sent",
			"participant_id", p.ParticipantID, "ticket_id", p.TicketID)
		return nil
	}
}

// TicketSender delivers a rendered ticket email.
type TicketSender interface {
	SendTicket(ctx context.Context, p TicketEmailPayload) error
}

// LogSender is the default sender used until an SMTP provider is wired in
// deployment; it records the delivery in the log.
type LogSender struct{}

// SendTicket implements TicketSender.
func (LogSender) SendTicket(ctx context.Context, p TicketEmailPayload) error {
	slog.Info("ticket email (log delivery)",
		"participant_id", p.ParticipantID,
		"event", p.EventName,
		"ticket_id", p.TicketID)
	return nil
}

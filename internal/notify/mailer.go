package notify

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/openfest/registrar/internal/model"
	"github.com/openfest/registrar/internal/tasks"
)

// QueueMailer enqueues ticket emails onto the asynq queue; the worker
// process performs the actual delivery.
type QueueMailer struct {
	Client *asynq.Client
}

// NewQueueMailer constructs a QueueMailer for the given Redis address.
func NewQueueMailer(redisAddr string) *QueueMailer {
	return &QueueMailer{
		Client: asynq.NewClient(asynq.RedisClientOpt{Addr: redisAddr}),
	}
}

// Close releases the underlying queue connection.
func (m *QueueMailer) Close() error { return m.Client.Close() }

// EnqueueTicketEmail implements Mailer.
func (m *QueueMailer) EnqueueTicketEmail(ctx context.Context, reg *model.Registration, eventName string) error {
	task, err := tasks.NewTicketEmailTask(tasks.TicketEmailPayload{
		ParticipantID: reg.ParticipantID,
		EventID:       reg.EventID,
		EventName:     eventName,
		TicketID:      reg.TicketID,
		QRPayload:     reg.QRPayload,
	})
	if err != nil {
		return err
	}
	if _, err := m.Client.EnqueueContext(ctx, task); err != nil {
		return fmt.Errorf("enqueue ticket email: %w", err)
	}
	return nil
}

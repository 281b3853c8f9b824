package tasks

import (
	"context"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureSender struct {
	got TicketEmailPayload
	err error
}

func (c *captureSender) SendTicket(ctx context.Context, p TicketEmailPayload) error {
	c.got = p
	return c.err
}

func TestHandleTicketEmail(t *testing.T) {
	payload := TicketEmailPayload{
		ParticipantID: "alice",
		EventID:       "e-1",
		EventName:     "Hack Night",
		TicketID:      "TKT-AAAABBBBCCCC",
		QRPayload:     "payload",
	}
	task, err := NewTicketEmailTask(payload)
	require.NoError(t, err)
	assert.Equal(t, TypeTicketEmail, task.Type())

	sender := &captureSender{}
	require.NoError(t, HandleTicketEmail(sender)(context.Background(), task))
	assert.Equal(t, payload, sender.got)
}

func TestHandleTicketEmailRejectsGarbage(t *testing.T) {
	sender := &captureSender{}
	task := asynq.NewTask(TypeTicketEmail, []byte("{not json"))
	assert.Error(t, HandleTicketEmail(sender)(context.Background(), task))
}

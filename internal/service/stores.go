// Package service implements the lifecycle orchestrator: it sequences
// policy checks, capacity reservation, state transitions and best-effort
// side-effect dispatch between the HTTP handlers and the repositories.
package service

import (
	"context"
	"time"

	"github.com/openfest/registrar/internal/model"
	"github.com/openfest/registrar/internal/repository"
)

// The services accept these narrow store contracts instead of concrete
// repositories so the state-machine tests can run against an in-memory
// implementation. The pgx repositories satisfy them.

// EventStore is the persistence contract for events.
type EventStore interface {
	Create(ctx context.Context, event *model.Event) error
	GetByID(ctx context.Context, id string) (*model.Event, error)
	ListPublished(ctx context.Context) ([]model.Event, error)
	Update(ctx context.Context, event *model.Event, rewriteCatalog bool) error
}

// RegistrationStore is the persistence contract for registrations. Every
// method that arbitrates capacity or mutates lifecycle state is atomic.
type RegistrationStore interface {
	CreateWithSeat(ctx context.Context, reg *model.Registration) error
	GetByID(ctx context.Context, id string) (*model.Registration, error)
	ListByEvent(ctx context.Context, eventID string) ([]model.Registration, error)
	ListByParticipant(ctx context.Context, participantID string) ([]model.Registration, error)
	AttachProof(ctx context.Context, regID, actorID, proofRef string) (*model.Registration, error)
	Approve(ctx context.Context, regID string) (*model.Registration, error)
	Reject(ctx context.Context, regID, reason string) (*model.Registration, error)
	Cancel(ctx context.Context, regID, actorID string) (*model.Registration, error)
	CheckIn(ctx context.Context, eventID, ticketID string, now time.Time) (*model.Registration, bool, error)
}

// TeamStore is the persistence contract for teams.
type TeamStore interface {
	Create(ctx context.Context, team *model.Team, now time.Time, newReg repository.NewRegistrationFunc) error
	GetByID(ctx context.Context, id string) (*model.Team, error)
	GetByInvite(ctx context.Context, inviteCode string) (*model.Team, error)
	Join(ctx context.Context, inviteCode, userID string, now time.Time, newReg repository.NewRegistrationFunc) (*model.Team, error)
	Leave(ctx context.Context, teamID, userID string) (*model.Team, error)
	Cancel(ctx context.Context, teamID, actorID string) (*model.Team, error)
}

// NotificationStore is the persistence contract for in-app notifications.
type NotificationStore interface {
	Create(ctx context.Context, n *model.Notification) error
	ListByUser(ctx context.Context, userID string) ([]model.Notification, error)
	MarkRead(ctx context.Context, userID string, ids []string) error
}

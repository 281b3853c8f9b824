package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/openfest/registrar/internal/apperr"
	"github.com/openfest/registrar/internal/auth"
	"github.com/openfest/registrar/internal/model"
	"github.com/openfest/registrar/internal/notify"
)

// EventService owns the event lifecycle: creation, the per-status edit
// allow-list, and status transitions.
type EventService struct {
	events     EventStore
	dispatcher *notify.Dispatcher
}

// NewEventService constructs an EventService.
func NewEventService(events EventStore, dispatcher *notify.Dispatcher) *EventService {
	return &EventService{events: events, dispatcher: dispatcher}
}

// Create validates and stores a new DRAFT event.
func (s *EventService) Create(ctx context.Context, actor auth.Actor, req model.CreateEventRequest) (*model.Event, error) {
	if !actor.IsOrganizer() {
		return nil, apperr.Forbiddenf("only organizers can create events")
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return nil, apperr.Validationf("event name is required")
	}
	if req.Type != model.EventNormal && req.Type != model.EventMerch {
		return nil, apperr.Validationf("event type must be NORMAL or MERCH")
	}
	if req.StartDate.IsZero() || req.EndDate.IsZero() || req.EndDate.Before(req.StartDate) {
		return nil, apperr.Validationf("event dates are invalid")
	}
	if req.RegistrationDeadline != nil && req.RegistrationDeadline.After(req.StartDate) {
		return nil, apperr.Validationf("registration deadline must not be after the event start")
	}
	if req.MaxParticipants != nil && *req.MaxParticipants <= 0 {
		return nil, apperr.Validationf("max participants must be positive")
	}
	if req.RegistrationFee < 0 {
		return nil, apperr.Validationf("registration fee cannot be negative")
	}
	if req.AllowTeams {
		if req.MinTeamSize < 1 || req.MaxTeamSize < req.MinTeamSize {
			return nil, apperr.Validationf("team size bounds are invalid")
		}
	}
	if err := validateCatalog(req.Items); err != nil {
		return nil, err
	}

	event := &model.Event{
		ID:                   uuid.New().String(),
		OrganizerID:          actor.ID,
		Name:                 req.Name,
		Description:          req.Description,
		Type:                 req.Type,
		Status:               model.EventDraft,
		MaxParticipants:      req.MaxParticipants,
		RegistrationFee:      req.RegistrationFee,
		RegistrationDeadline: req.RegistrationDeadline,
		StartDate:            req.StartDate,
		EndDate:              req.EndDate,
		Eligibility:          req.Eligibility,
		AllowTeams:           req.AllowTeams,
		MinTeamSize:          req.MinTeamSize,
		MaxTeamSize:          req.MaxTeamSize,
		Items:                req.Items,
		FormSchema:           req.FormSchema,
		CreatedAt:            time.Now().UTC(),
	}
	if err := s.events.Create(ctx, event); err != nil {
		return nil, err
	}
	return event, nil
}

func validateCatalog(items []model.MerchItem) error {
	seen := map[string]bool{}
	for _, item := range items {
		if item.SKU == "" || item.SKU == model.FeeSKU {
			return apperr.Validationf("invalid sku %q", item.SKU)
		}
		if seen[item.SKU] {
			return apperr.Validationf("duplicate sku %q", item.SKU)
		}
		seen[item.SKU] = true
		if item.Price < 0 {
			return apperr.Validationf("price for %q cannot be negative", item.SKU)
		}
		for _, v := range item.Variants {
			if v.Stock < 0 {
				return apperr.Validationf("stock for %q %s/%s cannot be negative",
					item.SKU, v.Size, v.Color)
			}
		}
	}
	return nil
}

// Get returns one event.
func (s *EventService) Get(ctx context.Context, id string) (*model.Event, error) {
	return s.events.GetByID(ctx, id)
}

// ListPublished returns events visible to participants.
func (s *EventService) ListPublished(ctx context.Context) ([]model.Event, error) {
	return s.events.ListPublished(ctx)
}

// Update applies an allow-listed edit. The honored fields depend on the
// event's status: a DRAFT accepts the full command, a PUBLISHED event only
// a narrow subset, later states none. Form-schema edits are refused once
// the form is locked by a registration.
func (s *EventService) Update(ctx context.Context, actor auth.Actor, id string, req model.UpdateEventRequest) (*model.Event, error) {
	event, err := s.ownedEvent(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	if req.FormSchema != nil && event.FormLocked {
		return nil, apperr.InvalidStatef("form schema is locked after the first registration")
	}

	rewriteCatalog := false
	switch event.Status {
	case model.EventDraft:
		if req.Name != nil {
			if strings.TrimSpace(*req.Name) == "" {
				return nil, apperr.Validationf("event name is required")
			}
			event.Name = strings.TrimSpace(*req.Name)
		}
		if req.Description != nil {
			event.Description = *req.Description
		}
		if req.MaxParticipants != nil {
			event.MaxParticipants = req.MaxParticipants
		}
		if req.RegistrationFee != nil {
			if *req.RegistrationFee < 0 {
				return nil, apperr.Validationf("registration fee cannot be negative")
			}
			event.RegistrationFee = *req.RegistrationFee
		}
		if req.RegistrationDeadline != nil {
			event.RegistrationDeadline = req.RegistrationDeadline
		}
		if req.StartDate != nil {
			event.StartDate = *req.StartDate
		}
		if req.EndDate != nil {
			event.EndDate = *req.EndDate
		}
		if req.Eligibility != nil {
			event.Eligibility = req.Eligibility
		}
		if req.Items != nil {
			if err := validateCatalog(req.Items); err != nil {
				return nil, err
			}
			event.Items = req.Items
			rewriteCatalog = true
		}
		if req.FormSchema != nil {
			event.FormSchema = req.FormSchema
		}
		if event.EndDate.Before(event.StartDate) {
			return nil, apperr.Validationf("event dates are invalid")
		}

	case model.EventPublished:
		// Published events are immutable except this narrow allow-list.
		if req.Description != nil {
			event.Description = *req.Description
		}
		if req.RegistrationDeadline != nil {
			if req.RegistrationDeadline.After(event.StartDate) {
				return nil, apperr.Validationf("registration deadline must not be after the event start")
			}
			event.RegistrationDeadline = req.RegistrationDeadline
		}
		if req.MaxParticipants != nil {
			if event.MaxParticipants != nil && *req.MaxParticipants < *event.MaxParticipants {
				return nil, apperr.Validationf("participant cap can only be raised once published")
			}
			event.MaxParticipants = req.MaxParticipants
		}
		if req.Name != nil || req.RegistrationFee != nil || req.StartDate != nil ||
			req.EndDate != nil || req.Eligibility != nil || req.Items != nil {
			return nil, apperr.InvalidStatef("field not editable once published")
		}

	default:
		return nil, apperr.InvalidStatef("event is not editable in status %s", event.Status)
	}

	if err := s.events.Update(ctx, event, rewriteCatalog); err != nil {
		return nil, err
	}
	return event, nil
}

// SetStatus advances the event lifecycle. Publishing dispatches the
// announcement webhook; its failure never fails the publish.
func (s *EventService) SetStatus(ctx context.Context, actor auth.Actor, id string, status model.EventStatus) (*model.Event, error) {
	event, err := s.ownedEvent(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !event.Status.CanTransition(status) {
		return nil, apperr.InvalidStatef("cannot move event from %s to %s", event.Status, status)
	}

	event.Status = status
	if err := s.events.Update(ctx, event, false); err != nil {
		return nil, err
	}

	if status == model.EventPublished {
		s.dispatcher.Announce(ctx, event)
	}
	return event, nil
}

// ownedEvent loads the event and verifies the actor is its organizer.
func (s *EventService) ownedEvent(ctx context.Context, actor auth.Actor, id string) (*model.Event, error) {
	event, err := s.events.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsOrganizer() || event.OrganizerID != actor.ID {
		return nil, apperr.Forbiddenf("you do not organize this event")
	}
	return event, nil
}

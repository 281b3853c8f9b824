package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/openfest/registrar/internal/apperr"
	"github.com/openfest/registrar/internal/auth"
	"github.com/openfest/registrar/internal/model"
	"github.com/openfest/registrar/internal/notify"
	"github.com/openfest/registrar/internal/policy"
	"github.com/openfest/registrar/internal/ticket"
)

// RegistrationService owns the registration state machine for individual
// and merchandise flows, payment approval, cancellation and check-in.
type RegistrationService struct {
	events        EventStore
	registrations RegistrationStore
	dispatcher    *notify.Dispatcher
	now           func() time.Time
}

// NewRegistrationService constructs a RegistrationService.
func NewRegistrationService(events EventStore, registrations RegistrationStore, dispatcher *notify.Dispatcher) *RegistrationService {
	return &RegistrationService{
		events:        events,
		registrations: registrations,
		dispatcher:    dispatcher,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// RegisterIndividual registers the actor for a NORMAL event. A zero-fee
// event confirms immediately with a ticket; a paid one creates a PENDING
// registration carrying a fee order.
func (s *RegistrationService) RegisterIndividual(ctx context.Context, actor auth.Actor, eventID string, req model.RegisterRequest) (*model.Registration, error) {
	event, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event.Type != model.EventNormal {
		return nil, apperr.Validationf("use the merchandise flow for this event")
	}
	if err := policy.CanRegister(event, actor.Tags, s.now(), false); err != nil {
		return nil, err
	}

	reg, err := s.newRegistration(event, actor.ID, model.RegistrationNormal, req.FormData)
	if err != nil {
		return nil, err
	}
	if event.RegistrationFee > 0 {
		reg.Status = model.RegistrationPending
		reg.Order = feeOrder(event.RegistrationFee)
	} else {
		reg.QRPayload = ticket.EncodeQR(reg.TicketID, event.ID)
	}

	if err := s.registrations.CreateWithSeat(ctx, reg); err != nil {
		return nil, err
	}

	s.afterRegistration(ctx, event, reg)
	return reg, nil
}

// RegisterMerchandise registers the actor for a MERCH event, optionally
// with a merchandise order. Stock is not reserved here; the soft hold is
// bounded only by the per-user purchase limit, and the hard decrement
// happens at payment approval.
func (s *RegistrationService) RegisterMerchandise(ctx context.Context, actor auth.Actor, eventID string, req model.MerchRegisterRequest) (*model.Registration, error) {
	event, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event.Type != model.EventMerch {
		return nil, apperr.Validationf("event does not sell merchandise")
	}
	if err := policy.CanRegister(event, actor.Tags, s.now(), false); err != nil {
		return nil, err
	}

	total := event.RegistrationFee
	var order *model.Order
	if req.Order != nil && req.Order.SKU != "" {
		item, err := policy.ValidateOrder(event, req.Order)
		if err != nil {
			return nil, err
		}
		total += item.Price * int64(req.Order.Quantity)
		order = &model.Order{
			SKU:           req.Order.SKU,
			VariantSize:   req.Order.VariantSize,
			VariantColor:  req.Order.VariantColor,
			Quantity:      req.Order.Quantity,
			Price:         item.Price,
			AmountPaid:    total,
			PaymentStatus: model.PaymentPending,
		}
	} else if event.RegistrationFee > 0 {
		order = feeOrder(event.RegistrationFee)
	}

	reg, err := s.newRegistration(event, actor.ID, model.RegistrationMerch, req.FormData)
	if err != nil {
		return nil, err
	}
	if total > 0 {
		// A nonzero total awaits manual payment approval.
		reg.Status = model.RegistrationPending
		reg.Order = order
	} else {
		reg.QRPayload = ticket.EncodeQR(reg.TicketID, event.ID)
	}

	if err := s.registrations.CreateWithSeat(ctx, reg); err != nil {
		return nil, err
	}

	s.afterRegistration(ctx, event, reg)
	return reg, nil
}

func feeOrder(fee int64) *model.Order {
	return &model.Order{
		SKU:           model.FeeSKU,
		Quantity:      1,
		Price:         fee,
		AmountPaid:    fee,
		PaymentStatus: model.PaymentPending,
	}
}

// newRegistration builds a CONFIRMED registration skeleton; callers flip it
// to PENDING when payment is due, or stamp the QR payload when it stays
// confirmed.
func (s *RegistrationService) newRegistration(event *model.Event, participantID string, typ model.RegistrationType, formData model.JSONMap) (*model.Registration, error) {
	ticketID, err := ticket.NewTicketID()
	if err != nil {
		return nil, err
	}
	return &model.Registration{
		ID:            uuid.New().String(),
		EventID:       event.ID,
		ParticipantID: participantID,
		Type:          typ,
		Status:        model.RegistrationConfirmed,
		TicketID:      ticketID,
		FormData:      formData,
		CreatedAt:     s.now(),
	}, nil
}

func (s *RegistrationService) afterRegistration(ctx context.Context, event *model.Event, reg *model.Registration) {
	if reg.Status == model.RegistrationConfirmed {
		s.dispatcher.Notify(ctx, reg.ParticipantID, "registration_confirmed",
			"Registration confirmed",
			"You are registered for "+event.Name,
			model.JSONMap{"event_id": event.ID, "registration_id": reg.ID})
		s.dispatcher.TicketEmail(ctx, reg, event.Name)
		return
	}
	s.dispatcher.Notify(ctx, reg.ParticipantID, "registration_pending",
		"Registration pending payment",
		"Upload your payment proof to complete registration for "+event.Name,
		model.JSONMap{"event_id": event.ID, "registration_id": reg.ID})
}

// CheckProofUpload verifies the actor may attach a payment proof to the
// registration. Callers run it before storing the uploaded file, so a
// refused upload leaves no orphan object behind. AttachProof re-checks
// under the row lock.
func (s *RegistrationService) CheckProofUpload(ctx context.Context, actor auth.Actor, regID string) error {
	reg, err := s.registrations.GetByID(ctx, regID)
	if err != nil {
		return err
	}
	return reg.CanAttachProof(actor.ID)
}

// UploadPaymentProof records a stored proof reference on the registration.
func (s *RegistrationService) UploadPaymentProof(ctx context.Context, actor auth.Actor, regID, proofRef string) (*model.Registration, error) {
	if proofRef == "" {
		return nil, apperr.Validationf("payment proof file is required")
	}
	return s.registrations.AttachProof(ctx, regID, actor.ID, proofRef)
}

// ApprovePayment approves a pending order. For merchandise SKUs the stock
// decrement happens inside the same atomic unit; if stock ran out since the
// order was placed, nothing changes and the caller sees the conflict.
func (s *RegistrationService) ApprovePayment(ctx context.Context, actor auth.Actor, regID string) (*model.Registration, error) {
	reg, event, err := s.organizedRegistration(ctx, actor, regID)
	if err != nil {
		return nil, err
	}
	reg, err = s.registrations.Approve(ctx, reg.ID)
	if err != nil {
		return nil, err
	}

	s.dispatcher.Notify(ctx, reg.ParticipantID, "payment_approved",
		"Payment approved",
		"Your payment for "+event.Name+" was approved",
		model.JSONMap{"event_id": event.ID, "registration_id": reg.ID})
	s.dispatcher.TicketEmail(ctx, reg, event.Name)
	return reg, nil
}

// RejectPayment rejects a pending order with a reason.
func (s *RegistrationService) RejectPayment(ctx context.Context, actor auth.Actor, regID, reason string) (*model.Registration, error) {
	if reason == "" {
		return nil, apperr.Validationf("a rejection reason is required")
	}
	reg, event, err := s.organizedRegistration(ctx, actor, regID)
	if err != nil {
		return nil, err
	}
	reg, err = s.registrations.Reject(ctx, reg.ID, reason)
	if err != nil {
		return nil, err
	}

	s.dispatcher.Notify(ctx, reg.ParticipantID, "payment_rejected",
		"Payment rejected",
		"Your payment for "+event.Name+" was rejected: "+reason,
		model.JSONMap{"event_id": event.ID, "registration_id": reg.ID})
	return reg, nil
}

// Cancel cancels a registration. The owning participant may cancel unless
// a merchandise order was approved; the event organizer may cancel even
// then, which re-credits the stock.
func (s *RegistrationService) Cancel(ctx context.Context, actor auth.Actor, regID string) (*model.Registration, error) {
	reg, err := s.registrations.Cancel(ctx, regID, actor.ID)
	if err != nil {
		return nil, err
	}

	s.dispatcher.Notify(ctx, reg.ParticipantID, "registration_cancelled",
		"Registration cancelled", "Your registration was cancelled",
		model.JSONMap{"event_id": reg.EventID, "registration_id": reg.ID})
	return reg, nil
}

// CheckIn validates a scanned QR payload and marks attendance. Repeat
// scans are a no-op reported through the already flag, not an error.
func (s *RegistrationService) CheckIn(ctx context.Context, actor auth.Actor, eventID, qrPayload string) (*model.Registration, bool, error) {
	event, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, false, err
	}
	if !actor.IsOrganizer() || event.OrganizerID != actor.ID {
		return nil, false, apperr.Forbiddenf("you do not organize this event")
	}

	ticketID, payloadEventID, err := ticket.DecodeQR(qrPayload)
	if err != nil {
		return nil, false, apperr.Validationf("invalid qr payload")
	}
	if payloadEventID != eventID {
		return nil, false, apperr.Validationf("ticket belongs to a different event")
	}

	return s.registrations.CheckIn(ctx, eventID, ticketID, s.now())
}

// ListByEvent returns an event's registrations to its organizer.
func (s *RegistrationService) ListByEvent(ctx context.Context, actor auth.Actor, eventID string) ([]model.Registration, error) {
	event, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if !actor.IsOrganizer() || event.OrganizerID != actor.ID {
		return nil, apperr.Forbiddenf("you do not organize this event")
	}
	return s.registrations.ListByEvent(ctx, eventID)
}

// ListMine returns the actor's own registrations.
func (s *RegistrationService) ListMine(ctx context.Context, actor auth.Actor) ([]model.Registration, error) {
	return s.registrations.ListByParticipant(ctx, actor.ID)
}

// organizedRegistration loads a registration and verifies the actor
// organizes its event.
func (s *RegistrationService) organizedRegistration(ctx context.Context, actor auth.Actor, regID string) (*model.Registration, *model.Event, error) {
	reg, err := s.registrations.GetByID(ctx, regID)
	if err != nil {
		return nil, nil, err
	}
	event, err := s.events.GetByID(ctx, reg.EventID)
	if err != nil {
		return nil, nil, err
	}
	if !actor.IsOrganizer() || event.OrganizerID != actor.ID {
		return nil, nil, apperr.Forbiddenf("you do not organize this event")
	}
	return reg, event, nil
}

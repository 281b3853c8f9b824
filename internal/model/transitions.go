package model

import (
	"time"

	"github.com/openfest/registrar/internal/apperr"
)

// The transition methods below are the single source of truth for the
// registration state machine. The SQL repository calls them while holding a
// row lock inside a transaction; the in-memory store used in tests calls
// them under its mutex. Persistence never re-implements these rules.

// CanAttachProof validates the proof-upload preconditions without
// mutating, so callers can refuse an upload before the file is stored.
func (r *Registration) CanAttachProof(actorID string) error {
	if r.ParticipantID != actorID {
		return apperr.Forbiddenf("registration belongs to another participant")
	}
	if r.Order == nil {
		return apperr.InvalidStatef("registration has no pending order")
	}
	if r.Order.PaymentStatus == PaymentApproved {
		return apperr.InvalidStatef("payment is already approved")
	}
	return nil
}

// AttachProof records an uploaded payment proof. Allowed only while the
// order has not been approved; re-upload after rejection resets the payment
// to PENDING.
func (r *Registration) AttachProof(actorID, proofRef string) error {
	if err := r.CanAttachProof(actorID); err != nil {
		return err
	}
	r.Order.PaymentProof = proofRef
	r.Order.PaymentStatus = PaymentPending
	r.Order.RejectionReason = ""
	return nil
}

// CanApprove validates the approval preconditions without mutating. The
// caller decrements stock (for merchandise SKUs) between this check and
// MarkApproved, inside the same atomic unit.
func (r *Registration) CanApprove() error {
	if r.Status == RegistrationCancelled {
		return apperr.InvalidStatef("registration is cancelled")
	}
	if r.Order == nil {
		return apperr.InvalidStatef("registration has no order to approve")
	}
	if r.Order.PaymentProof == "" {
		return apperr.InvalidStatef("no payment proof uploaded")
	}
	if r.Order.PaymentStatus == PaymentApproved {
		return apperr.Conflictf("payment is already approved")
	}
	return nil
}

// MarkApproved applies the approval transition. qrPayload is the freshly
// generated ticket payload.
func (r *Registration) MarkApproved(qrPayload string) {
	r.Order.PaymentStatus = PaymentApproved
	r.Status = RegistrationConfirmed
	r.QRPayload = qrPayload
}

// RejectPayment applies the organizer's rejection. Forbidden once approved.
func (r *Registration) RejectPayment(reason string) error {
	if r.Order == nil {
		return apperr.InvalidStatef("registration has no order to reject")
	}
	if r.Order.PaymentStatus == PaymentApproved {
		return apperr.InvalidStatef("payment is already approved")
	}
	r.Order.PaymentStatus = PaymentRejected
	r.Order.RejectionReason = reason
	r.Status = RegistrationRejected
	return nil
}

// CancelBy applies the cancel transition for the given actor. The owning
// participant may cancel unless a merchandise order was already approved;
// the event's organizer may cancel even then. The returned restock flag is
// true when the caller must re-credit stock (the order had been approved,
// so exactly one decrement happened).
func (r *Registration) CancelBy(actorID, organizerID string) (restock bool, err error) {
	owner := r.ParticipantID == actorID
	organizer := organizerID != "" && actorID == organizerID
	if !owner && !organizer {
		return false, apperr.Forbiddenf("registration belongs to another participant")
	}
	if r.Status == RegistrationCancelled {
		return false, apperr.InvalidStatef("registration is already cancelled")
	}
	approved := r.Order != nil && r.Order.PaymentStatus == PaymentApproved
	if approved && !organizer && r.Order.IsMerch() {
		return false, apperr.Forbiddenf("approved merchandise orders can only be cancelled by the organizer")
	}
	r.Status = RegistrationCancelled
	return approved && r.Order.IsMerch(), nil
}

// MarkAttended applies check-in idempotently. The returned already flag is
// true when the registration was checked in before; attendedAt is left
// untouched in that case.
func (r *Registration) MarkAttended(now time.Time) (already bool, err error) {
	if r.Status == RegistrationCancelled {
		return false, apperr.InvalidStatef("registration is cancelled")
	}
	if r.Status != RegistrationConfirmed {
		return false, apperr.InvalidStatef("registration is not confirmed")
	}
	if r.Attended {
		return true, nil
	}
	r.Attended = true
	r.AttendedAt = &now
	return false, nil
}

package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/openfest/registrar/internal/apperr"
	"github.com/openfest/registrar/internal/model"
	"github.com/openfest/registrar/internal/ticket"
)

// RegistrationRepository handles persistence for registrations.
//
// The naive check-then-write pattern (read the seat count, decide, write
// later) leaves a window where two requests both observe a free seat and
// both insert. Every method here that arbitrates capacity therefore locks
// the owning event row with SELECT … FOR UPDATE first, so concurrent
// attempts for the same event queue up behind one another and the second
// one sees the first one's writes.
type RegistrationRepository struct {
	db *pgxpool.Pool
}

// NewRegistrationRepository constructs a RegistrationRepository.
func NewRegistrationRepository(db *pgxpool.Pool) *RegistrationRepository {
	return &RegistrationRepository{db: db}
}

const registrationColumns = `id, event_id, participant_id, team_id, type,
	status, ticket_id, qr_payload, form_data, attended, attended_at,
	order_sku, order_size, order_color, order_qty, order_price, amount_paid,
	payment_status, payment_proof, rejection_reason, created_at`

func scanRegistration(row pgx.Row) (*model.Registration, error) {
	var (
		reg      model.Registration
		teamID   *string
		sku      *string
		size     *string
		color    *string
		qty      *int
		price    *int64
		paid     *int64
		payState *string
		proof    *string
		reason   *string
	)
	err := row.Scan(&reg.ID, &reg.EventID, &reg.ParticipantID, &teamID,
		&reg.Type, &reg.Status, &reg.TicketID, &reg.QRPayload, &reg.FormData,
		&reg.Attended, &reg.AttendedAt, &sku, &size, &color, &qty, &price,
		&paid, &payState, &proof, &reason, &reg.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFoundf("registration not found")
		}
		return nil, fmt.Errorf("scan registration: %w", err)
	}
	if teamID != nil {
		reg.TeamID = *teamID
	}
	if sku != nil {
		reg.Order = &model.Order{SKU: *sku}
		if size != nil {
			reg.Order.VariantSize = *size
		}
		if color != nil {
			reg.Order.VariantColor = *color
		}
		if qty != nil {
			reg.Order.Quantity = *qty
		}
		if price != nil {
			reg.Order.Price = *price
		}
		if paid != nil {
			reg.Order.AmountPaid = *paid
		}
		if payState != nil {
			reg.Order.PaymentStatus = model.PaymentStatus(*payState)
		}
		if proof != nil {
			reg.Order.PaymentProof = *proof
		}
		if reason != nil {
			reg.Order.RejectionReason = *reason
		}
	}
	return &reg, nil
}

func registrationArgs(reg *model.Registration) []any {
	var (
		teamID   *string
		sku      *string
		size     *string
		color    *string
		qty      *int
		price    *int64
		paid     *int64
		payState *string
		proof    *string
		reason   *string
	)
	if reg.TeamID != "" {
		teamID = &reg.TeamID
	}
	if o := reg.Order; o != nil {
		sku = &o.SKU
		size = &o.VariantSize
		color = &o.VariantColor
		qty = &o.Quantity
		price = &o.Price
		paid = &o.AmountPaid
		s := string(o.PaymentStatus)
		payState = &s
		proof = &o.PaymentProof
		reason = &o.RejectionReason
	}
	return []any{reg.ID, reg.EventID, reg.ParticipantID, teamID, reg.Type,
		reg.Status, reg.TicketID, reg.QRPayload, reg.FormData, reg.Attended,
		reg.AttendedAt, sku, size, color, qty, price, paid, payState, proof,
		reason, reg.CreatedAt}
}

func insertRegistration(ctx context.Context, tx pgx.Tx, reg *model.Registration) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO registrations (`+registrationColumns+`)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)`,
		registrationArgs(reg)...,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperr.ErrAlreadyRegistered
		}
		return fmt.Errorf("insert registration: %w", err)
	}
	return nil
}

func saveRegistration(ctx context.Context, tx pgx.Tx, reg *model.Registration) error {
	var (
		payState *string
		proof    *string
		reason   *string
	)
	if o := reg.Order; o != nil {
		s := string(o.PaymentStatus)
		payState = &s
		proof = &o.PaymentProof
		reason = &o.RejectionReason
	}
	_, err := tx.Exec(ctx,
		`UPDATE registrations SET
			status = $2, qr_payload = $3, attended = $4, attended_at = $5,
			payment_status = $6, payment_proof = $7, rejection_reason = $8
		 WHERE id = $1`,
		reg.ID, reg.Status, reg.QRPayload, reg.Attended, reg.AttendedAt,
		payState, proof, reason,
	)
	if err != nil {
		return fmt.Errorf("save registration: %w", err)
	}
	return nil
}

// CreateWithSeat atomically reserves a seat and inserts the registration.
// A stale REJECTED or CANCELLED row for the same (event, participant) pair
// is removed first; an active one fails the call. The first registration
// permanently locks the event's form schema.
func (r *RegistrationRepository) CreateWithSeat(ctx context.Context, reg *model.Registration) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	// Lock the event row: all seat arbitration for this event serializes
	// here.
	var maxParticipants *int
	err = tx.QueryRow(ctx,
		`SELECT max_participants FROM events WHERE id = $1 FOR UPDATE`,
		reg.EventID,
	).Scan(&maxParticipants)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = apperr.NotFoundf("event not found")
		}
		return err
	}

	// Supersede a rejected/cancelled row; refuse an active one.
	var existingStatus *string
	err = tx.QueryRow(ctx,
		`SELECT status FROM registrations
		 WHERE event_id = $1 AND participant_id = $2`,
		reg.EventID, reg.ParticipantID,
	).Scan(&existingStatus)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("check existing registration: %w", err)
	}
	err = nil
	if existingStatus != nil {
		if model.RegistrationStatus(*existingStatus).Active() {
			err = apperr.ErrAlreadyRegistered
			return err
		}
		if _, err = tx.Exec(ctx,
			`DELETE FROM registrations WHERE event_id = $1 AND participant_id = $2`,
			reg.EventID, reg.ParticipantID); err != nil {
			return fmt.Errorf("remove superseded registration: %w", err)
		}
	}

	// A participant in an active team for this event registers through the
	// team, never individually.
	var teams int
	err = tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM team_members m
		 JOIN teams t ON t.id = m.team_id
		 WHERE t.event_id = $1 AND m.user_id = $2
		   AND t.status <> $3 AND m.status <> $4`,
		reg.EventID, reg.ParticipantID,
		model.TeamCancelled, model.MemberDeclined,
	).Scan(&teams)
	if err != nil {
		return fmt.Errorf("check team membership: %w", err)
	}
	if teams > 0 {
		err = apperr.Conflictf("already in a team for this event")
		return err
	}

	if maxParticipants != nil {
		var active int
		err = tx.QueryRow(ctx,
			`SELECT COUNT(*) FROM registrations
			 WHERE event_id = $1 AND status <> $2`,
			reg.EventID, model.RegistrationCancelled,
		).Scan(&active)
		if err != nil {
			return fmt.Errorf("count registrations: %w", err)
		}
		if active >= *maxParticipants {
			err = apperr.ErrCapacityExceeded
			return err
		}
	}

	if err = insertRegistration(ctx, tx, reg); err != nil {
		return err
	}

	if _, err = tx.Exec(ctx,
		`UPDATE events SET form_locked = TRUE WHERE id = $1 AND NOT form_locked`,
		reg.EventID); err != nil {
		return fmt.Errorf("lock event form: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// GetByID returns a single registration.
func (r *RegistrationRepository) GetByID(ctx context.Context, id string) (*model.Registration, error) {
	return scanRegistration(r.db.QueryRow(ctx,
		`SELECT `+registrationColumns+` FROM registrations WHERE id = $1`, id))
}

// ListByEvent returns all registrations for an event, oldest first.
func (r *RegistrationRepository) ListByEvent(ctx context.Context, eventID string) ([]model.Registration, error) {
	return r.list(ctx,
		`SELECT `+registrationColumns+` FROM registrations
		 WHERE event_id = $1 ORDER BY created_at ASC`, eventID)
}

// ListByParticipant returns all of a participant's registrations, newest
// first.
func (r *RegistrationRepository) ListByParticipant(ctx context.Context, participantID string) ([]model.Registration, error) {
	return r.list(ctx,
		`SELECT `+registrationColumns+` FROM registrations
		 WHERE participant_id = $1 ORDER BY created_at DESC`, participantID)
}

func (r *RegistrationRepository) list(ctx context.Context, query string, arg any) ([]model.Registration, error) {
	rows, err := r.db.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	defer rows.Close()

	var regs []model.Registration
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, err
		}
		regs = append(regs, *reg)
	}
	return regs, rows.Err()
}

// AttachProof records an uploaded payment proof under the row lock.
func (r *RegistrationRepository) AttachProof(ctx context.Context, regID, actorID, proofRef string) (*model.Registration, error) {
	return r.mutate(ctx, regID, func(ctx context.Context, tx pgx.Tx, reg *model.Registration) error {
		return reg.AttachProof(actorID, proofRef)
	})
}

// Approve applies payment approval. For merchandise SKUs the stock
// decrement and the approval are one atomic unit: if the conditional
// UPDATE finds no row with enough stock, the whole transaction rolls back
// and the registration is left untouched.
func (r *RegistrationRepository) Approve(ctx context.Context, regID string) (*model.Registration, error) {
	return r.mutate(ctx, regID, func(ctx context.Context, tx pgx.Tx, reg *model.Registration) error {
		if err := reg.CanApprove(); err != nil {
			return err
		}
		if reg.Order.IsMerch() {
			if err := reserveStock(ctx, tx, reg.EventID, reg.Order); err != nil {
				return err
			}
		}
		reg.MarkApproved(ticket.EncodeQR(reg.TicketID, reg.EventID))
		return nil
	})
}

// Reject applies payment rejection.
func (r *RegistrationRepository) Reject(ctx context.Context, regID, reason string) (*model.Registration, error) {
	return r.mutate(ctx, regID, func(ctx context.Context, tx pgx.Tx, reg *model.Registration) error {
		return reg.RejectPayment(reason)
	})
}

// Cancel applies the cancel transition for the given actor and, when the
// order had been approved, re-credits stock in the same transaction. The
// restock is keyed to the approval that decremented it, so it happens
// exactly once.
func (r *RegistrationRepository) Cancel(ctx context.Context, regID, actorID string) (*model.Registration, error) {
	return r.mutate(ctx, regID, func(ctx context.Context, tx pgx.Tx, reg *model.Registration) error {
		var organizerID string
		if err := tx.QueryRow(ctx,
			`SELECT organizer_id FROM events WHERE id = $1`, reg.EventID,
		).Scan(&organizerID); err != nil {
			return fmt.Errorf("load event organizer: %w", err)
		}
		restock, err := reg.CancelBy(actorID, organizerID)
		if err != nil {
			return err
		}
		if restock {
			if err := releaseStock(ctx, tx, reg.EventID, reg.Order); err != nil {
				return err
			}
		}
		return nil
	})
}

// CheckIn marks attendance by ticket id, idempotently. The already flag is
// true on repeat scans.
func (r *RegistrationRepository) CheckIn(ctx context.Context, eventID, ticketID string, now time.Time) (*model.Registration, bool, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	reg, err := scanRegistration(tx.QueryRow(ctx,
		`SELECT `+registrationColumns+` FROM registrations
		 WHERE event_id = $1 AND ticket_id = $2 FOR UPDATE`,
		eventID, ticketID))
	if err != nil {
		return nil, false, err
	}

	already, err := reg.MarkAttended(now)
	if err != nil {
		return nil, false, err
	}
	if !already {
		if err = saveRegistration(ctx, tx, reg); err != nil {
			return nil, false, err
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, false, fmt.Errorf("commit transaction: %w", err)
	}
	return reg, already, nil
}

// mutate loads the registration under FOR UPDATE, applies fn, and persists
// the result. Any error from fn rolls the whole transaction back.
func (r *RegistrationRepository) mutate(ctx context.Context, regID string,
	fn func(context.Context, pgx.Tx, *model.Registration) error) (*model.Registration, error) {

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	reg, err := scanRegistration(tx.QueryRow(ctx,
		`SELECT `+registrationColumns+` FROM registrations WHERE id = $1 FOR UPDATE`,
		regID))
	if err != nil {
		return nil, err
	}

	if err = fn(ctx, tx, reg); err != nil {
		return nil, err
	}

	if err = saveRegistration(ctx, tx, reg); err != nil {
		return nil, err
	}
	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return reg, nil
}

// reserveStock decrements variant stock if and only if enough remains. The
// conditional UPDATE is atomic: no reader ever observes negative stock.
func reserveStock(ctx context.Context, tx pgx.Tx, eventID string, o *model.Order) error {
	tag, err := tx.Exec(ctx,
		`UPDATE merch_variants SET stock = stock - $5
		 WHERE event_id = $1 AND sku = $2 AND size = $3 AND color = $4
		   AND stock >= $5`,
		eventID, o.SKU, o.VariantSize, o.VariantColor, o.Quantity,
	)
	if err != nil {
		return fmt.Errorf("reserve stock: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrInsufficientStock
	}
	return nil
}

// releaseStock re-credits stock for an approved order being cancelled.
func releaseStock(ctx context.Context, tx pgx.Tx, eventID string, o *model.Order) error {
	_, err := tx.Exec(ctx,
		`UPDATE merch_variants SET stock = stock + $5
		 WHERE event_id = $1 AND sku = $2 AND size = $3 AND color = $4`,
		eventID, o.SKU, o.VariantSize, o.VariantColor, o.Quantity,
	)
	if err != nil {
		return fmt.Errorf("release stock: %w", err)
	}
	return nil
}

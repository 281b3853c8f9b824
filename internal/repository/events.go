// Package repository implements all database access for the registration
// engine. It uses pgx directly (no ORM); every capacity or membership
// mutation runs inside a transaction holding a row-level lock on the one
// event or team row it arbitrates, so concurrent attempts serialize instead
// of racing a read-then-write window.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/openfest/registrar/internal/apperr"
	"github.com/openfest/registrar/internal/model"
)

// uniqueViolation is the Postgres error code for a unique constraint hit.
const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// EventRepository handles persistence for events and their merchandise
// catalog.
type EventRepository struct {
	db *pgxpool.Pool
}

// NewEventRepository constructs an EventRepository.
func NewEventRepository(db *pgxpool.Pool) *EventRepository {
	return &EventRepository{db: db}
}

const eventColumns = `id, organizer_id, name, description, type, status,
	max_participants, registration_fee, registration_deadline,
	start_date, end_date, eligibility, allow_teams, min_team_size,
	max_team_size, form_locked, form_schema, created_at`

func scanEvent(row pgx.Row) (*model.Event, error) {
	var e model.Event
	err := row.Scan(&e.ID, &e.OrganizerID, &e.Name, &e.Description, &e.Type,
		&e.Status, &e.MaxParticipants, &e.RegistrationFee,
		&e.RegistrationDeadline, &e.StartDate, &e.EndDate, &e.Eligibility,
		&e.AllowTeams, &e.MinTeamSize, &e.MaxTeamSize, &e.FormLocked,
		&e.FormSchema, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFoundf("event not found")
		}
		return nil, fmt.Errorf("scan event: %w", err)
	}
	return &e, nil
}

// Create inserts a new event together with its merchandise catalog.
func (r *EventRepository) Create(ctx context.Context, event *model.Event) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	_, err = tx.Exec(ctx,
		`INSERT INTO events (`+eventColumns+`)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)`,
		event.ID, event.OrganizerID, event.Name, event.Description, event.Type,
		event.Status, event.MaxParticipants, event.RegistrationFee,
		event.RegistrationDeadline, event.StartDate, event.EndDate,
		event.Eligibility, event.AllowTeams, event.MinTeamSize,
		event.MaxTeamSize, event.FormLocked, event.FormSchema, event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}

	if err = insertCatalog(ctx, tx, event.ID, event.Items); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func insertCatalog(ctx context.Context, tx pgx.Tx, eventID string, items []model.MerchItem) error {
	for _, item := range items {
		_, err := tx.Exec(ctx,
			`INSERT INTO merch_items (event_id, sku, name, price, purchase_limit_per_user)
			 VALUES ($1,$2,$3,$4,$5)`,
			eventID, item.SKU, item.Name, item.Price, item.PurchaseLimitPerUser,
		)
		if err != nil {
			return fmt.Errorf("insert merch item %s: %w", item.SKU, err)
		}
		for _, v := range item.Variants {
			_, err := tx.Exec(ctx,
				`INSERT INTO merch_variants (event_id, sku, size, color, stock)
				 VALUES ($1,$2,$3,$4,$5)`,
				eventID, item.SKU, v.Size, v.Color, v.Stock,
			)
			if err != nil {
				return fmt.Errorf("insert variant %s %s/%s: %w", item.SKU, v.Size, v.Color, err)
			}
		}
	}
	return nil
}

// GetByID returns a single event with its merchandise catalog.
func (r *EventRepository) GetByID(ctx context.Context, id string) (*model.Event, error) {
	event, err := scanEvent(r.db.QueryRow(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	if err := r.loadCatalog(ctx, event); err != nil {
		return nil, err
	}
	return event, nil
}

func (r *EventRepository) loadCatalog(ctx context.Context, event *model.Event) error {
	rows, err := r.db.Query(ctx,
		`SELECT i.sku, i.name, i.price, i.purchase_limit_per_user,
		        v.size, v.color, v.stock
		 FROM merch_items i
		 JOIN merch_variants v ON v.event_id = i.event_id AND v.sku = i.sku
		 WHERE i.event_id = $1
		 ORDER BY i.sku, v.size, v.color`,
		event.ID,
	)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	defer rows.Close()

	bySKU := map[string]*model.MerchItem{}
	for rows.Next() {
		var (
			item model.MerchItem
			v    model.Variant
		)
		if err := rows.Scan(&item.SKU, &item.Name, &item.Price,
			&item.PurchaseLimitPerUser, &v.Size, &v.Color, &v.Stock); err != nil {
			return fmt.Errorf("scan catalog row: %w", err)
		}
		existing, ok := bySKU[item.SKU]
		if !ok {
			event.Items = append(event.Items, item)
			existing = &event.Items[len(event.Items)-1]
			bySKU[item.SKU] = existing
		}
		existing.Variants = append(existing.Variants, v)
	}
	return rows.Err()
}

// ListPublished returns all events visible to participants, newest first.
func (r *EventRepository) ListPublished(ctx context.Context) ([]model.Event, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+eventColumns+` FROM events
		 WHERE status NOT IN ($1, $2)
		 ORDER BY created_at DESC`,
		model.EventDraft, model.EventCancelled,
	)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

// Update persists the event row and, when items is non-nil, rewrites the
// merchandise catalog. Callers only pass items for DRAFT events; once stock
// is live it is mutated exclusively through the approval/cancel
// transactions.
//
// The caller's snapshot may be stale, so the row is re-read under FOR
// UPDATE first: form_locked is monotone (a registration committed since the
// caller's read must not be undone) and a status change is re-validated
// against the committed status.
func (r *EventRepository) Update(ctx context.Context, event *model.Event, rewriteCatalog bool) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	var (
		curStatus model.EventStatus
		curLocked bool
	)
	err = tx.QueryRow(ctx,
		`SELECT status, form_locked FROM events WHERE id = $1 FOR UPDATE`,
		event.ID,
	).Scan(&curStatus, &curLocked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = apperr.NotFoundf("event not found")
		}
		return err
	}
	if event.Status != curStatus && !curStatus.CanTransition(event.Status) {
		err = apperr.InvalidStatef("cannot move event from %s to %s", curStatus, event.Status)
		return err
	}
	event.FormLocked = event.FormLocked || curLocked

	_, err = tx.Exec(ctx,
		`UPDATE events SET
			name = $2, description = $3, status = $4, max_participants = $5,
			registration_fee = $6, registration_deadline = $7, start_date = $8,
			end_date = $9, eligibility = $10, allow_teams = $11,
			min_team_size = $12, max_team_size = $13, form_locked = $14,
			form_schema = $15
		 WHERE id = $1`,
		event.ID, event.Name, event.Description, event.Status,
		event.MaxParticipants, event.RegistrationFee,
		event.RegistrationDeadline, event.StartDate, event.EndDate,
		event.Eligibility, event.AllowTeams, event.MinTeamSize,
		event.MaxTeamSize, event.FormLocked, event.FormSchema,
	)
	if err != nil {
		return fmt.Errorf("update event: %w", err)
	}

	if rewriteCatalog {
		if _, err = tx.Exec(ctx,
			`DELETE FROM merch_variants WHERE event_id = $1`, event.ID); err != nil {
			return fmt.Errorf("clear variants: %w", err)
		}
		if _, err = tx.Exec(ctx,
			`DELETE FROM merch_items WHERE event_id = $1`, event.ID); err != nil {
			return fmt.Errorf("clear items: %w", err)
		}
		if err = insertCatalog(ctx, tx, event.ID, event.Items); err != nil {
			return err
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

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
)

// ErrInviteCollision signals that a generated invite code is already taken.
// The service layer regenerates and retries.
var ErrInviteCollision = errors.New("invite code already exists")

// NewRegistrationFunc builds a fresh CONFIRMED registration for one team
// member during batch registration. It exists so the repository does not
// own ticket generation; failures abort the whole batch.
type NewRegistrationFunc func(userID string) (*model.Registration, error)

// TeamRepository handles persistence for teams. A member join that fills
// the team and the consequent batch registration are a single transaction
// per team, serialized by a FOR UPDATE lock on the team row, so a stored
// team is only ever FORMING, REGISTERED or CANCELLED.
type TeamRepository struct {
	db *pgxpool.Pool
}

// NewTeamRepository constructs a TeamRepository.
func NewTeamRepository(db *pgxpool.Pool) *TeamRepository {
	return &TeamRepository{db: db}
}

const teamColumns = `id, event_id, leader_id, team_size, invite_code, status,
	form_data, created_at`

func scanTeam(row pgx.Row) (*model.Team, error) {
	var t model.Team
	err := row.Scan(&t.ID, &t.EventID, &t.LeaderID, &t.TeamSize,
		&t.InviteCode, &t.Status, &t.FormData, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFoundf("team not found")
		}
		return nil, fmt.Errorf("scan team: %w", err)
	}
	return &t, nil
}

func loadMembers(ctx context.Context, q interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}, team *model.Team) error {
	rows, err := q.Query(ctx,
		`SELECT user_id, status, joined_at FROM team_members
		 WHERE team_id = $1 ORDER BY joined_at ASC`,
		team.ID,
	)
	if err != nil {
		return fmt.Errorf("load team members: %w", err)
	}
	defer rows.Close()

	team.Members = nil
	for rows.Next() {
		var m model.TeamMember
		if err := rows.Scan(&m.UserID, &m.Status, &m.JoinedAt); err != nil {
			return fmt.Errorf("scan team member: %w", err)
		}
		team.Members = append(team.Members, m)
	}
	return rows.Err()
}

// Create inserts a new FORMING team with the leader auto-accepted. The
// leader must hold no other active team membership or registration for the
// event; both are checked inside the transaction. Size-1 teams complete
// and batch-register before the transaction commits.
func (r *TeamRepository) Create(ctx context.Context, team *model.Team, now time.Time, newReg NewRegistrationFunc) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if err = checkNoOtherCommitments(ctx, tx, team.EventID, team.LeaderID, ""); err != nil {
		return err
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO teams (`+teamColumns+`)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		team.ID, team.EventID, team.LeaderID, team.TeamSize, team.InviteCode,
		team.Status, team.FormData, team.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			err = ErrInviteCollision
			return err
		}
		return fmt.Errorf("insert team: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO team_members (team_id, user_id, status, joined_at)
		 VALUES ($1,$2,$3,$4)`,
		team.ID, team.LeaderID, model.MemberAccepted, now,
	)
	if err != nil {
		return fmt.Errorf("insert leader member: %w", err)
	}
	team.Members = []model.TeamMember{{
		UserID: team.LeaderID, Status: model.MemberAccepted, JoinedAt: now,
	}}

	if team.TeamSize == 1 {
		if err = registerLockedTeam(ctx, tx, team, newReg); err != nil {
			return err
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// GetByID returns a team with its member list.
func (r *TeamRepository) GetByID(ctx context.Context, id string) (*model.Team, error) {
	team, err := scanTeam(r.db.QueryRow(ctx,
		`SELECT `+teamColumns+` FROM teams WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	if err := loadMembers(ctx, r.db, team); err != nil {
		return nil, err
	}
	return team, nil
}

// GetByInvite returns the team behind an invite code, with members.
func (r *TeamRepository) GetByInvite(ctx context.Context, inviteCode string) (*model.Team, error) {
	team, err := scanTeam(r.db.QueryRow(ctx,
		`SELECT `+teamColumns+` FROM teams WHERE invite_code = $1`, inviteCode))
	if err != nil {
		return nil, err
	}
	if err := loadMembers(ctx, r.db, team); err != nil {
		return nil, err
	}
	return team, nil
}

// Join appends userID to the team behind the invite code. When the
// accepted-member count reaches the target size, the batch registration
// runs in the same transaction; any failure there (seats gone, duplicate
// registration) rolls everything back, including the member append, so the
// team is never left COMPLETE with a partial registration set.
func (r *TeamRepository) Join(ctx context.Context, inviteCode, userID string, now time.Time, newReg NewRegistrationFunc) (*model.Team, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	team, err := scanTeam(tx.QueryRow(ctx,
		`SELECT `+teamColumns+` FROM teams WHERE invite_code = $1 FOR UPDATE`,
		inviteCode))
	if err != nil {
		return nil, err
	}
	if err = loadMembers(ctx, tx, team); err != nil {
		return nil, err
	}

	switch team.Status {
	case model.TeamForming:
	case model.TeamCancelled:
		err = apperr.InvalidStatef("team is cancelled")
		return nil, err
	default:
		err = apperr.ErrTeamFull
		return nil, err
	}
	if team.HasMember(userID) {
		err = apperr.Conflictf("already a member of this team")
		return nil, err
	}
	if team.AcceptedCount() >= team.TeamSize {
		// Racing joins for the last slot queue up on the row lock; the
		// loser lands here.
		err = apperr.ErrTeamFull
		return nil, err
	}
	if err = checkNoOtherCommitments(ctx, tx, team.EventID, userID, team.ID); err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO team_members (team_id, user_id, status, joined_at)
		 VALUES ($1,$2,$3,$4)`,
		team.ID, userID, model.MemberAccepted, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert team member: %w", err)
	}
	team.Members = append(team.Members, model.TeamMember{
		UserID: userID, Status: model.MemberAccepted, JoinedAt: now,
	})

	if team.AcceptedCount() == team.TeamSize {
		if err = registerLockedTeam(ctx, tx, team, newReg); err != nil {
			return nil, err
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return team, nil
}

// Leave removes a non-leader member from a team that has not registered
// yet.
func (r *TeamRepository) Leave(ctx context.Context, teamID, userID string) (*model.Team, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	team, err := scanTeam(tx.QueryRow(ctx,
		`SELECT `+teamColumns+` FROM teams WHERE id = $1 FOR UPDATE`, teamID))
	if err != nil {
		return nil, err
	}
	if team.Status == model.TeamRegistered {
		err = apperr.InvalidStatef("team has already registered")
		return nil, err
	}
	if team.LeaderID == userID {
		err = apperr.Forbiddenf("the leader cannot leave; cancel the team instead")
		return nil, err
	}

	tag, err := tx.Exec(ctx,
		`DELETE FROM team_members WHERE team_id = $1 AND user_id = $2`,
		teamID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("delete team member: %w", err)
	}
	if tag.RowsAffected() == 0 {
		err = apperr.NotFoundf("not a member of this team")
		return nil, err
	}

	if err = loadMembers(ctx, tx, team); err != nil {
		return nil, err
	}
	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return team, nil
}

// Cancel sets a team CANCELLED. Leader-only; forbidden once registered.
func (r *TeamRepository) Cancel(ctx context.Context, teamID, actorID string) (*model.Team, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	team, err := scanTeam(tx.QueryRow(ctx,
		`SELECT `+teamColumns+` FROM teams WHERE id = $1 FOR UPDATE`, teamID))
	if err != nil {
		return nil, err
	}
	if team.LeaderID != actorID {
		err = apperr.Forbiddenf("only the team leader can cancel the team")
		return nil, err
	}
	switch team.Status {
	case model.TeamRegistered:
		err = apperr.InvalidStatef("team has already registered")
		return nil, err
	case model.TeamCancelled:
		err = apperr.InvalidStatef("team is already cancelled")
		return nil, err
	}

	team.Status = model.TeamCancelled
	if _, err = tx.Exec(ctx,
		`UPDATE teams SET status = $2 WHERE id = $1`,
		teamID, model.TeamCancelled); err != nil {
		return nil, fmt.Errorf("cancel team: %w", err)
	}

	if err = loadMembers(ctx, tx, team); err != nil {
		return nil, err
	}
	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return team, nil
}

// registerLockedTeam converts a full team into a batch of CONFIRMED
// registrations. Caller holds the team row lock. The event row is locked
// to arbitrate seats for the whole batch at once; stale rejected/cancelled
// registrations for members are superseded. All-or-nothing: the caller's
// transaction rolls back on any error.
func registerLockedTeam(ctx context.Context, tx pgx.Tx, team *model.Team, newReg NewRegistrationFunc) error {
	var maxParticipants *int
	err := tx.QueryRow(ctx,
		`SELECT max_participants FROM events WHERE id = $1 FOR UPDATE`,
		team.EventID,
	).Scan(&maxParticipants)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperr.NotFoundf("event not found")
		}
		return fmt.Errorf("lock event row: %w", err)
	}

	accepted := team.AcceptedMembers()

	if maxParticipants != nil {
		var active int
		err = tx.QueryRow(ctx,
			`SELECT COUNT(*) FROM registrations
			 WHERE event_id = $1 AND status <> $2`,
			team.EventID, model.RegistrationCancelled,
		).Scan(&active)
		if err != nil {
			return fmt.Errorf("count registrations: %w", err)
		}
		if active+len(accepted) > *maxParticipants {
			return apperr.ErrCapacityExceeded
		}
	}

	for _, m := range accepted {
		if _, err := tx.Exec(ctx,
			`DELETE FROM registrations
			 WHERE event_id = $1 AND participant_id = $2 AND status IN ($3, $4)`,
			team.EventID, m.UserID,
			model.RegistrationRejected, model.RegistrationCancelled); err != nil {
			return fmt.Errorf("remove superseded registration: %w", err)
		}
		reg, err := newReg(m.UserID)
		if err != nil {
			return err
		}
		if err := insertRegistration(ctx, tx, reg); err != nil {
			return err
		}
	}

	team.Status = model.TeamRegistered
	if _, err := tx.Exec(ctx,
		`UPDATE teams SET status = $2 WHERE id = $1`,
		team.ID, model.TeamRegistered); err != nil {
		return fmt.Errorf("mark team registered: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE events SET form_locked = TRUE WHERE id = $1 AND NOT form_locked`,
		team.EventID); err != nil {
		return fmt.Errorf("lock event form: %w", err)
	}
	return nil
}

// checkNoOtherCommitments verifies the user neither belongs to another
// active team for the event nor holds an active individual registration.
// excludeTeamID skips the team being joined.
func checkNoOtherCommitments(ctx context.Context, tx pgx.Tx, eventID, userID, excludeTeamID string) error {
	var teams int
	err := tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM team_members m
		 JOIN teams t ON t.id = m.team_id
		 WHERE t.event_id = $1 AND m.user_id = $2
		   AND t.status <> $3 AND m.status <> $4 AND t.id <> $5`,
		eventID, userID, model.TeamCancelled, model.MemberDeclined, excludeTeamID,
	).Scan(&teams)
	if err != nil {
		return fmt.Errorf("check team membership: %w", err)
	}
	if teams > 0 {
		return apperr.Conflictf("already in a team for this event")
	}

	var regs int
	err = tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM registrations
		 WHERE event_id = $1 AND participant_id = $2 AND status IN ($3, $4)`,
		eventID, userID, model.RegistrationPending, model.RegistrationConfirmed,
	).Scan(&regs)
	if err != nil {
		return fmt.Errorf("check existing registration: %w", err)
	}
	if regs > 0 {
		return apperr.ErrAlreadyRegistered
	}
	return nil
}

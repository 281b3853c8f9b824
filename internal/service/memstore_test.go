package service

import (
	"context"
	"sync"
	"time"

	"github.com/openfest/registrar/internal/apperr"
	"github.com/openfest/registrar/internal/model"
	"github.com/openfest/registrar/internal/repository"
	"github.com/openfest/registrar/internal/ticket"
)

// memStore is an in-memory stand-in for the pgx repositories. It mirrors
// their atomicity guarantees with a single mutex and applies the same
// model transition methods, so the service tests exercise the real
// state-machine rules without Postgres. The store contracts overlap in
// method names, so each one is satisfied by a thin view over the core.
type memStore struct {
	mu     sync.Mutex
	events map[string]*model.Event
	regs   map[string]*model.Registration
	teams  map[string]*model.Team
	notifs []model.Notification
}

type memEvents struct{ *memStore }
type memRegs struct{ *memStore }
type memTeams struct{ *memStore }
type memNotifs struct{ *memStore }

func newMemStore() *memStore {
	return &memStore{
		events: map[string]*model.Event{},
		regs:   map[string]*model.Registration{},
		teams:  map[string]*model.Team{},
	}
}

func (m *memStore) eventStore() EventStore               { return memEvents{m} }
func (m *memStore) registrationStore() RegistrationStore { return memRegs{m} }
func (m *memStore) teamStore() TeamStore                 { return memTeams{m} }
func (m *memStore) notificationStore() NotificationStore { return memNotifs{m} }

// ─── EventStore ───────────────────────────────────────────────────────────────

func (m memEvents) Create(ctx context.Context, event *model.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[event.ID] = copyEvent(event)
	return nil
}

func (m memEvents) GetByID(ctx context.Context, id string) (*model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	event, ok := m.events[id]
	if !ok {
		return nil, apperr.NotFoundf("event not found")
	}
	return copyEvent(event), nil
}

func (m memEvents) ListPublished(ctx context.Context) ([]model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Event
	for _, e := range m.events {
		if e.Status != model.EventDraft && e.Status != model.EventCancelled {
			out = append(out, *copyEvent(e))
		}
	}
	return out, nil
}

func (m memEvents) Update(ctx context.Context, event *model.Event, rewriteCatalog bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.events[event.ID]
	if !ok {
		return apperr.NotFoundf("event not found")
	}
	next := copyEvent(event)
	if next.Status != stored.Status && !stored.Status.CanTransition(next.Status) {
		return apperr.InvalidStatef("cannot move event from %s to %s", stored.Status, next.Status)
	}
	// form_locked is monotone; a stale snapshot must not reopen it.
	next.FormLocked = next.FormLocked || stored.FormLocked
	if !rewriteCatalog {
		// Live stock is owned by the approval/cancel transitions.
		next.Items = stored.Items
	}
	m.events[event.ID] = next
	return nil
}

// ─── RegistrationStore ────────────────────────────────────────────────────────

func (m memRegs) CreateWithSeat(ctx context.Context, reg *model.Registration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	event, ok := m.events[reg.EventID]
	if !ok {
		return apperr.NotFoundf("event not found")
	}
	if m.inActiveTeamLocked(reg.EventID, reg.ParticipantID) {
		return apperr.Conflictf("already in a team for this event")
	}
	for id, existing := range m.regs {
		if existing.EventID == reg.EventID && existing.ParticipantID == reg.ParticipantID {
			if existing.Status.Active() {
				return apperr.ErrAlreadyRegistered
			}
			delete(m.regs, id)
		}
	}
	if event.MaxParticipants != nil &&
		m.activeCountLocked(reg.EventID) >= *event.MaxParticipants {
		return apperr.ErrCapacityExceeded
	}
	m.regs[reg.ID] = copyReg(reg)
	event.FormLocked = true
	return nil
}

func (m memRegs) GetByID(ctx context.Context, id string) (*model.Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	reg, ok := m.regs[id]
	if !ok {
		return nil, apperr.NotFoundf("registration not found")
	}
	return copyReg(reg), nil
}

func (m memRegs) ListByEvent(ctx context.Context, eventID string) ([]model.Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Registration
	for _, reg := range m.regs {
		if reg.EventID == eventID {
			out = append(out, *copyReg(reg))
		}
	}
	return out, nil
}

func (m memRegs) ListByParticipant(ctx context.Context, participantID string) ([]model.Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Registration
	for _, reg := range m.regs {
		if reg.ParticipantID == participantID {
			out = append(out, *copyReg(reg))
		}
	}
	return out, nil
}

func (m memRegs) AttachProof(ctx context.Context, regID, actorID, proofRef string) (*model.Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	reg, ok := m.regs[regID]
	if !ok {
		return nil, apperr.NotFoundf("registration not found")
	}
	if err := reg.AttachProof(actorID, proofRef); err != nil {
		return nil, err
	}
	return copyReg(reg), nil
}

func (m memRegs) Approve(ctx context.Context, regID string) (*model.Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	reg, ok := m.regs[regID]
	if !ok {
		return nil, apperr.NotFoundf("registration not found")
	}
	if err := reg.CanApprove(); err != nil {
		return nil, err
	}
	if reg.Order.IsMerch() {
		v := m.variantLocked(reg.EventID, reg.Order)
		if v == nil || v.Stock < reg.Order.Quantity {
			return nil, apperr.ErrInsufficientStock
		}
		v.Stock -= reg.Order.Quantity
	}
	reg.MarkApproved(ticket.EncodeQR(reg.TicketID, reg.EventID))
	return copyReg(reg), nil
}

func (m memRegs) Reject(ctx context.Context, regID, reason string) (*model.Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	reg, ok := m.regs[regID]
	if !ok {
		return nil, apperr.NotFoundf("registration not found")
	}
	if err := reg.RejectPayment(reason); err != nil {
		return nil, err
	}
	return copyReg(reg), nil
}

func (m memRegs) Cancel(ctx context.Context, regID, actorID string) (*model.Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	reg, ok := m.regs[regID]
	if !ok {
		return nil, apperr.NotFoundf("registration not found")
	}
	event, ok := m.events[reg.EventID]
	if !ok {
		return nil, apperr.NotFoundf("event not found")
	}
	restock, err := reg.CancelBy(actorID, event.OrganizerID)
	if err != nil {
		return nil, err
	}
	if restock {
		if v := m.variantLocked(reg.EventID, reg.Order); v != nil {
			v.Stock += reg.Order.Quantity
		}
	}
	return copyReg(reg), nil
}

func (m memRegs) CheckIn(ctx context.Context, eventID, ticketID string, now time.Time) (*model.Registration, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, reg := range m.regs {
		if reg.EventID == eventID && reg.TicketID == ticketID {
			already, err := reg.MarkAttended(now)
			if err != nil {
				return nil, false, err
			}
			return copyReg(reg), already, nil
		}
	}
	return nil, false, apperr.NotFoundf("registration not found")
}

// ─── TeamStore ────────────────────────────────────────────────────────────────

func (m memTeams) Create(ctx context.Context, team *model.Team, now time.Time, newReg repository.NewRegistrationFunc) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, t := range m.teams {
		if t.InviteCode == team.InviteCode {
			return repository.ErrInviteCollision
		}
	}
	if err := m.checkCommitmentsLocked(team.EventID, team.LeaderID, ""); err != nil {
		return err
	}

	stored := copyTeam(team)
	stored.Members = []model.TeamMember{{
		UserID: team.LeaderID, Status: model.MemberAccepted, JoinedAt: now,
	}}
	m.teams[team.ID] = stored

	if team.TeamSize == 1 {
		if err := m.registerTeamLocked(stored, newReg); err != nil {
			delete(m.teams, team.ID)
			return err
		}
	}
	*team = *copyTeam(stored)
	return nil
}

func (m memTeams) GetByID(ctx context.Context, id string) (*model.Team, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	team, ok := m.teams[id]
	if !ok {
		return nil, apperr.NotFoundf("team not found")
	}
	return copyTeam(team), nil
}

func (m memTeams) GetByInvite(ctx context.Context, inviteCode string) (*model.Team, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, team := range m.teams {
		if team.InviteCode == inviteCode {
			return copyTeam(team), nil
		}
	}
	return nil, apperr.NotFoundf("team not found")
}

func (m memTeams) Join(ctx context.Context, inviteCode, userID string, now time.Time, newReg repository.NewRegistrationFunc) (*model.Team, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var team *model.Team
	for _, t := range m.teams {
		if t.InviteCode == inviteCode {
			team = t
			break
		}
	}
	if team == nil {
		return nil, apperr.NotFoundf("team not found")
	}

	switch team.Status {
	case model.TeamForming:
	case model.TeamCancelled:
		return nil, apperr.InvalidStatef("team is cancelled")
	default:
		return nil, apperr.ErrTeamFull
	}
	if team.HasMember(userID) {
		return nil, apperr.Conflictf("already a member of this team")
	}
	if team.AcceptedCount() >= team.TeamSize {
		return nil, apperr.ErrTeamFull
	}
	if err := m.checkCommitmentsLocked(team.EventID, userID, team.ID); err != nil {
		return nil, err
	}

	before := len(team.Members)
	team.Members = append(team.Members, model.TeamMember{
		UserID: userID, Status: model.MemberAccepted, JoinedAt: now,
	})

	if team.AcceptedCount() == team.TeamSize {
		if err := m.registerTeamLocked(team, newReg); err != nil {
			// All-or-nothing: the join rolls back with the batch.
			team.Members = team.Members[:before]
			return nil, err
		}
	}
	return copyTeam(team), nil
}

func (m memTeams) Leave(ctx context.Context, teamID, userID string) (*model.Team, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	team, ok := m.teams[teamID]
	if !ok {
		return nil, apperr.NotFoundf("team not found")
	}
	if team.Status == model.TeamRegistered {
		return nil, apperr.InvalidStatef("team has already registered")
	}
	if team.LeaderID == userID {
		return nil, apperr.Forbiddenf("the leader cannot leave; cancel the team instead")
	}
	found := false
	for i, member := range team.Members {
		if member.UserID == userID {
			team.Members = append(team.Members[:i], team.Members[i+1:]...)
			found = true
			break
		}
	}
	if !found {
		return nil, apperr.NotFoundf("not a member of this team")
	}
	return copyTeam(team), nil
}

func (m memTeams) Cancel(ctx context.Context, teamID, actorID string) (*model.Team, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	team, ok := m.teams[teamID]
	if !ok {
		return nil, apperr.NotFoundf("team not found")
	}
	if team.LeaderID != actorID {
		return nil, apperr.Forbiddenf("only the team leader can cancel the team")
	}
	switch team.Status {
	case model.TeamRegistered:
		return nil, apperr.InvalidStatef("team has already registered")
	case model.TeamCancelled:
		return nil, apperr.InvalidStatef("team is already cancelled")
	}
	team.Status = model.TeamCancelled
	return copyTeam(team), nil
}

// registerTeamLocked mirrors the repository's batch transaction: seat
// arbitration for the whole batch, then all registrations or none.
func (m *memStore) registerTeamLocked(team *model.Team, newReg repository.NewRegistrationFunc) error {
	event, ok := m.events[team.EventID]
	if !ok {
		return apperr.NotFoundf("event not found")
	}
	accepted := team.AcceptedMembers()

	if event.MaxParticipants != nil &&
		m.activeCountLocked(team.EventID)+len(accepted) > *event.MaxParticipants {
		return apperr.ErrCapacityExceeded
	}

	staged := make([]*model.Registration, 0, len(accepted))
	for _, member := range accepted {
		for _, existing := range m.regs {
			if existing.EventID == team.EventID &&
				existing.ParticipantID == member.UserID && existing.Status.Active() {
				return apperr.ErrAlreadyRegistered
			}
		}
		reg, err := newReg(member.UserID)
		if err != nil {
			return err
		}
		staged = append(staged, reg)
	}

	for _, reg := range staged {
		for id, existing := range m.regs {
			if existing.EventID == reg.EventID && existing.ParticipantID == reg.ParticipantID {
				delete(m.regs, id)
			}
		}
		m.regs[reg.ID] = copyReg(reg)
	}
	team.Status = model.TeamRegistered
	event.FormLocked = true
	return nil
}

// ─── NotificationStore ────────────────────────────────────────────────────────

func (m memNotifs) Create(ctx context.Context, n *model.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifs = append(m.notifs, *n)
	return nil
}

func (m memNotifs) ListByUser(ctx context.Context, userID string) ([]model.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Notification
	for _, n := range m.notifs {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out, nil
}

func (m memNotifs) MarkRead(ctx context.Context, userID string, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	want := map[string]bool{}
	for _, id := range ids {
		want[id] = true
	}
	for i := range m.notifs {
		if m.notifs[i].UserID == userID && want[m.notifs[i].ID] {
			m.notifs[i].Read = true
		}
	}
	return nil
}

// ─── internals ────────────────────────────────────────────────────────────────

func (m *memStore) activeCountLocked(eventID string) int {
	n := 0
	for _, reg := range m.regs {
		if reg.EventID == eventID && reg.Status != model.RegistrationCancelled {
			n++
		}
	}
	return n
}

func (m *memStore) inActiveTeamLocked(eventID, userID string) bool {
	for _, team := range m.teams {
		if team.EventID == eventID && team.Status.Active() {
			for _, member := range team.Members {
				if member.UserID == userID && member.Status != model.MemberDeclined {
					return true
				}
			}
		}
	}
	return false
}

func (m *memStore) checkCommitmentsLocked(eventID, userID, excludeTeamID string) error {
	for _, team := range m.teams {
		if team.ID == excludeTeamID || team.EventID != eventID || !team.Status.Active() {
			continue
		}
		for _, member := range team.Members {
			if member.UserID == userID && member.Status != model.MemberDeclined {
				return apperr.Conflictf("already in a team for this event")
			}
		}
	}
	for _, reg := range m.regs {
		if reg.EventID == eventID && reg.ParticipantID == userID && reg.Status.Active() {
			return apperr.ErrAlreadyRegistered
		}
	}
	return nil
}

func (m *memStore) variantLocked(eventID string, o *model.Order) *model.Variant {
	event, ok := m.events[eventID]
	if !ok {
		return nil
	}
	item := event.FindItem(o.SKU)
	if item == nil {
		return nil
	}
	return item.FindVariant(o.VariantSize, o.VariantColor)
}

func copyEvent(e *model.Event) *model.Event {
	out := *e
	out.Items = make([]model.MerchItem, len(e.Items))
	for i, item := range e.Items {
		out.Items[i] = item
		out.Items[i].Variants = append([]model.Variant(nil), item.Variants...)
	}
	out.Eligibility = append([]string(nil), e.Eligibility...)
	return &out
}

func copyReg(r *model.Registration) *model.Registration {
	out := *r
	if r.Order != nil {
		o := *r.Order
		out.Order = &o
	}
	if r.AttendedAt != nil {
		at := *r.AttendedAt
		out.AttendedAt = &at
	}
	return &out
}

func copyTeam(t *model.Team) *model.Team {
	out := *t
	out.Members = append([]model.TeamMember(nil), t.Members...)
	return &out
}

package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/openfest/registrar/internal/apperr"
	"github.com/openfest/registrar/internal/auth"
	"github.com/openfest/registrar/internal/model"
	"github.com/openfest/registrar/internal/notify"
	"github.com/openfest/registrar/internal/policy"
	"github.com/openfest/registrar/internal/repository"
	"github.com/openfest/registrar/internal/ticket"
)

// inviteAttempts bounds the retry loop when a generated invite code
// collides with an existing one.
const inviteAttempts = 5

// TeamService owns team formation and the batch registration that fires
// when a team fills up.
type TeamService struct {
	events        EventStore
	registrations RegistrationStore
	teams         TeamStore
	dispatcher    *notify.Dispatcher
	now           func() time.Time
}

// NewTeamService constructs a TeamService.
func NewTeamService(events EventStore, registrations RegistrationStore, teams TeamStore, dispatcher *notify.Dispatcher) *TeamService {
	return &TeamService{
		events:        events,
		registrations: registrations,
		teams:         teams,
		dispatcher:    dispatcher,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Create forms a new team led by the actor. A team of size 1 completes and
// registers in the same call.
func (s *TeamService) Create(ctx context.Context, actor auth.Actor, eventID string, req model.CreateTeamRequest) (*model.Team, error) {
	event, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if err := policy.CanRegister(event, actor.Tags, s.now(), true); err != nil {
		return nil, err
	}
	if err := policy.ValidateTeamSize(event, req.TeamSize); err != nil {
		return nil, err
	}

	var (
		team    *model.Team
		created []*model.Registration
	)
	newReg := s.batchRegistrationFunc(event, req.FormData, &created, func() string { return team.ID })

	createErr := error(nil)
	for attempt := 0; attempt < inviteAttempts; attempt++ {
		code, err := ticket.NewInviteCode()
		if err != nil {
			return nil, err
		}
		team = &model.Team{
			ID:         uuid.New().String(),
			EventID:    event.ID,
			LeaderID:   actor.ID,
			TeamSize:   req.TeamSize,
			InviteCode: code,
			Status:     model.TeamForming,
			FormData:   req.FormData,
			CreatedAt:  s.now(),
		}
		created = created[:0]
		createErr = s.teams.Create(ctx, team, s.now(), newReg)
		if createErr == nil {
			break
		}
		if !errors.Is(createErr, repository.ErrInviteCollision) {
			return nil, createErr
		}
	}
	if createErr != nil {
		// Every attempt collided; nothing was persisted.
		return nil, apperr.Conflictf("could not allocate an invite code")
	}

	s.afterTeamChange(ctx, event, team, created)
	return team, nil
}

// Join adds the actor to the team behind the invite code. Filling the last
// slot triggers the batch registration before this call returns; if that
// fails (seats gone, a member already registered), the join itself is
// rolled back.
func (s *TeamService) Join(ctx context.Context, actor auth.Actor, inviteCode string) (*model.Team, error) {
	existing, err := s.teams.GetByInvite(ctx, inviteCode)
	if err != nil {
		return nil, err
	}
	event, err := s.events.GetByID(ctx, existing.EventID)
	if err != nil {
		return nil, err
	}
	if err := policy.CanRegister(event, actor.Tags, s.now(), true); err != nil {
		return nil, err
	}

	var created []*model.Registration
	newReg := s.batchRegistrationFunc(event, existing.FormData, &created, func() string { return existing.ID })

	team, err := s.teams.Join(ctx, inviteCode, actor.ID, s.now(), newReg)
	if err != nil {
		return nil, err
	}

	s.dispatcher.Notify(ctx, team.LeaderID, "team_member_joined",
		"New team member",
		"A participant joined your team for "+event.Name,
		model.JSONMap{"team_id": team.ID, "user_id": actor.ID})
	s.afterTeamChange(ctx, event, team, created)
	return team, nil
}

// batchRegistrationFunc builds the per-member registration factory handed
// to the repository. Each member gets a fresh ticket and a CONFIRMED
// registration sharing the team's form response; the repository inserts
// them all inside the team transaction.
func (s *TeamService) batchRegistrationFunc(event *model.Event, formData model.JSONMap, created *[]*model.Registration, teamID func() string) repository.NewRegistrationFunc {
	return func(userID string) (*model.Registration, error) {
		ticketID, err := ticket.NewTicketID()
		if err != nil {
			return nil, err
		}
		reg := &model.Registration{
			ID:            uuid.New().String(),
			EventID:       event.ID,
			ParticipantID: userID,
			TeamID:        teamID(),
			Type:          model.RegistrationNormal,
			Status:        model.RegistrationConfirmed,
			TicketID:      ticketID,
			QRPayload:     ticket.EncodeQR(ticketID, event.ID),
			FormData:      formData,
			CreatedAt:     s.now(),
		}
		*created = append(*created, reg)
		return reg, nil
	}
}

// afterTeamChange dispatches side effects once a team has registered.
func (s *TeamService) afterTeamChange(ctx context.Context, event *model.Event, team *model.Team, created []*model.Registration) {
	if team.Status != model.TeamRegistered {
		return
	}
	for _, reg := range created {
		s.dispatcher.Notify(ctx, reg.ParticipantID, "team_registered",
			"Team registered",
			"Your team is registered for "+event.Name,
			model.JSONMap{"team_id": team.ID, "registration_id": reg.ID})
		s.dispatcher.TicketEmail(ctx, reg, event.Name)
	}
}

// Get returns one team with its members.
func (s *TeamService) Get(ctx context.Context, id string) (*model.Team, error) {
	return s.teams.GetByID(ctx, id)
}

// Leave removes the actor from a team. The leader cannot leave; a
// registered team cannot be left.
func (s *TeamService) Leave(ctx context.Context, actor auth.Actor, teamID string) (*model.Team, error) {
	team, err := s.teams.Leave(ctx, teamID, actor.ID)
	if err != nil {
		return nil, err
	}
	s.dispatcher.Notify(ctx, team.LeaderID, "team_member_left",
		"Team member left",
		"A participant left your team",
		model.JSONMap{"team_id": team.ID, "user_id": actor.ID})
	return team, nil
}

// Cancel cancels a team. Leader-only; forbidden once registered.
func (s *TeamService) Cancel(ctx context.Context, actor auth.Actor, teamID string) (*model.Team, error) {
	team, err := s.teams.Cancel(ctx, teamID, actor.ID)
	if err != nil {
		return nil, err
	}
	for _, m := range team.Members {
		if m.UserID == actor.ID {
			continue
		}
		s.dispatcher.Notify(ctx, m.UserID, "team_cancelled",
			"Team cancelled",
			"Your team was cancelled by its leader",
			model.JSONMap{"team_id": team.ID})
	}
	return team, nil
}

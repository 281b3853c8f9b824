package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/openfest/registrar/internal/model"
	"github.com/openfest/registrar/internal/service"
)

// TeamHandler holds the HTTP handlers for team formation.
type TeamHandler struct {
	teams *service.TeamService
}

// NewTeamHandler constructs a TeamHandler.
func NewTeamHandler(teams *service.TeamService) *TeamHandler {
	return &TeamHandler{teams: teams}
}

// CreateTeam handles POST /events/{id}/teams
func (h *TeamHandler) CreateTeam(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFrom(r)

	var req model.CreateTeamRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	team, err := h.teams.Create(r.Context(), actor, chi.URLParam(r, "id"), req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, team)
}

// JoinTeam handles POST /teams/join
func (h *TeamHandler) JoinTeam(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFrom(r)

	var req model.JoinTeamRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.InviteCode == "" {
		writeError(w, http.StatusBadRequest, "invite_code is required")
		return
	}

	team, err := h.teams.Join(r.Context(), actor, req.InviteCode)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, team)
}

// GetTeam handles GET /teams/{id}
func (h *TeamHandler) GetTeam(w http.ResponseWriter, r *http.Request) {
	team, err := h.teams.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, team)
}

// LeaveTeam handles POST /teams/{id}/leave
func (h *TeamHandler) LeaveTeam(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFrom(r)

	team, err := h.teams.Leave(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, team)
}

// CancelTeam handles POST /teams/{id}/cancel
func (h *TeamHandler) CancelTeam(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFrom(r)

	team, err := h.teams.Cancel(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, team)
}

package handler

import (
	"net/http"

	"github.com/openfest/registrar/internal/model"
	"github.com/openfest/registrar/internal/service"
)

// NotificationHandler exposes a participant's in-app notifications.
type NotificationHandler struct {
	notifications *service.NotificationService
}

// NewNotificationHandler constructs a NotificationHandler.
func NewNotificationHandler(notifications *service.NotificationService) *NotificationHandler {
	return &NotificationHandler{notifications: notifications}
}

// ListNotifications handles GET /notifications
func (h *NotificationHandler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFrom(r)

	out, err := h.notifications.ListMine(r.Context(), actor)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if out == nil {
		out = []model.Notification{}
	}
	writeJSON(w, http.StatusOK, out)
}

// MarkNotificationsRead handles POST /notifications/read
func (h *NotificationHandler) MarkNotificationsRead(w http.ResponseWriter, r *http.Request) {
	actor, _ := actorFrom(r)

	var req model.MarkReadRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if err := h.notifications.MarkRead(r.Context(), actor, req.IDs); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

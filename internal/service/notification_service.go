package service

import (
	"context"

	"github.com/openfest/registrar/internal/apperr"
	"github.com/openfest/registrar/internal/auth"
	"github.com/openfest/registrar/internal/model"
)

// NotificationService exposes a participant's in-app notifications.
type NotificationService struct {
	notifications NotificationStore
}

// NewNotificationService constructs a NotificationService.
func NewNotificationService(notifications NotificationStore) *NotificationService {
	return &NotificationService{notifications: notifications}
}

// ListMine returns the actor's notifications, newest first.
func (s *NotificationService) ListMine(ctx context.Context, actor auth.Actor) ([]model.Notification, error) {
	return s.notifications.ListByUser(ctx, actor.ID)
}

// MarkRead marks the given notifications as read.
func (s *NotificationService) MarkRead(ctx context.Context, actor auth.Actor, ids []string) error {
	if len(ids) == 0 {
		return apperr.Validationf("notification ids are required")
	}
	return s.notifications.MarkRead(ctx, actor.ID, ids)
}

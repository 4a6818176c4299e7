package services

import (
	"context"
	"strings"

	"github.com/chachabrian/haulbook-backend/internal/apperr"
	"github.com/chachabrian/haulbook-backend/internal/models"
	"github.com/chachabrian/haulbook-backend/internal/store"
)

// NotificationService is the read side of a user's in-app notifications.
type NotificationService struct {
	notifications store.NotificationStore
	users         store.UserStore
}

func NewNotificationService(notifications store.NotificationStore, users store.UserStore) *NotificationService {
	return &NotificationService{notifications: notifications, users: users}
}

func (s *NotificationService) List(ctx context.Context, userID string, unreadOnly bool, page store.Page) ([]models.Notification, int64, error) {
	return s.notifications.ListNotifications(ctx, userID, unreadOnly, page)
}

func (s *NotificationService) MarkRead(ctx context.Context, userID, id string) error {
	return s.notifications.MarkNotificationRead(ctx, userID, id)
}

func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	return s.notifications.MarkAllNotificationsRead(ctx, userID)
}

func (s *NotificationService) RegisterToken(ctx context.Context, userID, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return apperr.Validation("fcmToken is required")
	}
	return s.users.SetFCMToken(ctx, userID, token)
}

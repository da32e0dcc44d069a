// Package services раскладывает события уведомлений из RabbitMQ на
// уведомления отдельных пользователей с учётом их настроек.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/planzy/internal/lib/sl"
	"github.com/magabrotheeeer/planzy/internal/models"
)

// Repository описывает методы хранилища, нужные воркеру уведомлений.
type Repository interface {
	NotificationSettings(ctx context.Context, userUIDs []string) (map[string]models.NotificationSettings, error)
	InsertNotifications(ctx context.Context, list []models.Notification) ([]models.Notification, error)
}

// NotificationService обрабатывает события уведомлений.
type NotificationService struct {
	repo Repository
	log  *slog.Logger
	now  func() time.Time
}

// NewNotificationService создает новый экземпляр NotificationService.
func NewNotificationService(repo Repository, log *slog.Logger) *NotificationService {
	return &NotificationService{
		repo: repo,
		log:  log,
		now:  time.Now,
	}
}

// HandleEvent сохраняет по одному уведомлению на каждого получателя, чьи
// настройки разрешают тип события. Некорректное сообщение отбрасывается:
// повторная доставка его не исправит.
func (s *NotificationService) HandleEvent(ctx context.Context, body []byte) error {
	const op = "services.HandleEvent"
	log := s.log.With(slog.String("op", op))

	var event models.NotificationEvent
	if err := json.Unmarshal(body, &event); err != nil {
		log.Error("dropping malformed notification event", sl.Err(err))
		return nil
	}
	if event.Type == "" {
		log.Error("dropping notification event without type")
		return nil
	}

	recipients := event.Recipients()
	if len(recipients) == 0 {
		return nil
	}
	settings, err := s.repo.NotificationSettings(ctx, recipients)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	now := s.now().UTC()
	list := make([]models.Notification, 0, len(recipients))
	for _, id := range recipients {
		us, ok := settings[id]
		if !ok || !us.Allows(event.Type) {
			continue
		}
		list = append(list, models.Notification{
			ID:        uuid.New().String(),
			UserID:    id,
			Type:      event.Type,
			Title:     event.Title,
			Message:   event.Message,
			PlanID:    event.PlanID,
			CreatedAt: now,
		})
	}
	if len(list) == 0 {
		log.Debug("all recipients muted this notification type", slog.String("type", string(event.Type)))
		return nil
	}

	if _, err = s.repo.InsertNotifications(ctx, list); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	log.Info("notifications stored",
		slog.String("type", string(event.Type)),
		slog.String("plan_id", event.PlanID),
		slog.Int("count", len(list)))
	return nil
}

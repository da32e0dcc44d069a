// Package services запускает периодические задачи Planzy: понижение
// истёкших премиум-тарифов и напоминания о ближайших планах.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/planzy/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/planzy/internal/lib/sl"
	"github.com/magabrotheeeer/planzy/internal/models"
)

// Repository описывает запросы хранилища, нужные планировщику.
type Repository interface {
	DowngradeExpiredPremium(ctx context.Context, now time.Time) ([]string, error)
	FindPlansStartingBetween(ctx context.Context, from, to time.Time) ([]models.Plan, error)
}

// Publisher публикует события уведомлений.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, message any) error
}

type SchedulerService struct {
	repo      Repository
	publisher Publisher
	log       *slog.Logger
	now       func() time.Time
}

// NewSchedulerService создает новый экземпляр SchedulerService.
func NewSchedulerService(repo Repository, publisher Publisher, log *slog.Logger) *SchedulerService {
	return &SchedulerService{
		repo:      repo,
		publisher: publisher,
		log:       log,
		now:       time.Now,
	}
}

// every выполняет job сразу и затем с интервалом interval, пока не отменён ctx.
func every(ctx context.Context, interval time.Duration, job func(context.Context)) {
	job(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			job(ctx)
		}
	}
}

// DowngradeExpiredPremium периодически переводит пользователей с истёкшим
// платным тарифом на бесплатный.
func (s *SchedulerService) DowngradeExpiredPremium(ctx context.Context, interval time.Duration) {
	every(ctx, interval, func(ctx context.Context) {
		if _, err := s.runDowngradeExpiredPremium(ctx); err != nil {
			s.log.Error("failed to downgrade expired premium", sl.Err(err))
		}
	})
}

func (s *SchedulerService) runDowngradeExpiredPremium(ctx context.Context) (int, error) {
	const op = "services.runDowngradeExpiredPremium"
	ids, err := s.repo.DowngradeExpiredPremium(ctx, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	if len(ids) > 0 {
		s.log.Info("expired premium plans downgraded", slog.Int("count", len(ids)))
	}
	return len(ids), nil
}

// NotifyUpcomingPlans периодически публикует напоминания участникам планов,
// которые начнутся в ближайшие window.
func (s *SchedulerService) NotifyUpcomingPlans(ctx context.Context, interval, window time.Duration) {
	every(ctx, interval, func(ctx context.Context) {
		if _, err := s.runNotifyUpcomingPlans(ctx, window); err != nil {
			s.log.Error("failed to notify upcoming plans", sl.Err(err))
		}
	})
}

func (s *SchedulerService) runNotifyUpcomingPlans(ctx context.Context, window time.Duration) (int, error) {
	const op = "services.runNotifyUpcomingPlans"
	from := s.now().UTC()
	plans, err := s.repo.FindPlansStartingBetween(ctx, from, from.Add(window))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	if len(plans) == 0 {
		s.log.Info("no upcoming plans found")
		return 0, nil
	}

	published := 0
	for _, p := range plans {
		event := upcomingEvent(p)
		if len(event.Recipients()) == 0 {
			continue
		}
		if err = s.publisher.Publish(ctx, rabbitmq.RoutingKeyUpcoming, event); err != nil {
			s.log.Error("failed to publish message", slog.String("plan_id", p.ID), sl.Err(err))
			continue
		}
		published++
	}
	s.log.Info("upcoming plan reminders published", slog.Int("plans", len(plans)), slog.Int("published", published))
	return published, nil
}

func upcomingEvent(p models.Plan) models.NotificationEvent {
	ids := make([]string, 0, len(p.Participants))
	for _, u := range p.Participants {
		ids = append(ids, u.ID)
	}
	when := p.Date.Format("02.01.2006")
	if p.Time != "" {
		when += " " + p.Time
	}
	return models.NotificationEvent{
		Type:         models.NotificationUpcoming,
		Title:        p.Title,
		Message:      fmt.Sprintf("%s · %s", when, p.Location.Name),
		PlanID:       p.ID,
		RecipientIDs: ids,
	}
}

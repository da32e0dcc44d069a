package gateway

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/magabrotheeeer/planzy/internal/lib/month"
	"github.com/magabrotheeeer/planzy/internal/lib/sl"
	"github.com/magabrotheeeer/planzy/internal/models"
)

// GetPlans возвращает все планы по возрастанию даты. Список кешируется;
// ошибки кеша не прерывают чтение.
func (s *Service) GetPlans(ctx context.Context) ([]models.Plan, error) {
	const op = "gateway.GetPlans"

	if s.cache != nil {
		var cached []models.Plan
		found, err := s.cache.Get(ctx, PlansCacheKey, &cached)
		if err != nil {
			s.log.Warn("failed to read plans cache", slog.String("op", op), sl.Err(err))
		} else if found {
			return cached, nil
		}
	}

	plans, err := s.repo.ListPlans(ctx)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, PlansCacheKey, plans, s.plansTTL); err != nil {
			s.log.Warn("failed to cache plans", slog.String("op", op), sl.Err(err))
		}
	}
	return plans, nil
}

// GetPlan возвращает план по ID.
func (s *Service) GetPlan(ctx context.Context, planID string) (*models.Plan, error) {
	return s.repo.GetPlan(ctx, planID)
}

// CountPlansCreatedThisMonth возвращает число планов, созданных пользователем
// с начала текущего календарного месяца (UTC).
func (s *Service) CountPlansCreatedThisMonth(ctx context.Context, userUID string) (int, error) {
	now := s.now().UTC()
	start := month.Start(now)
	return s.repo.CountPlansCreatedSince(ctx, userUID, start)
}

// CreatePlan сохраняет план вместе с его групповым чатом.
func (s *Service) CreatePlan(ctx context.Context, p models.Plan) (*models.Plan, error) {
	created, err := s.repo.InsertPlan(ctx, p)
	if err != nil {
		return nil, err
	}
	s.invalidatePlans(ctx)
	s.log.Info("plan created", slog.String("plan_id", created.ID), slog.String("creator_uid", created.Creator.ID))
	return created, nil
}

// requireCreator проверяет, что actorUID — создатель плана.
func (s *Service) requireCreator(ctx context.Context, planID, actorUID string) (*models.Plan, error) {
	p, err := s.repo.GetPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	if p.Creator.ID != actorUID {
		return nil, models.ErrForbidden
	}
	return p, nil
}

// UpdatePlan меняет план и уведомляет участников. Менять план может только создатель.
func (s *Service) UpdatePlan(ctx context.Context, planID, actorUID string, upd models.PlanUpdate) (*models.Plan, error) {
	const op = "gateway.UpdatePlan"
	if _, err := s.requireCreator(ctx, planID, actorUID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	updated, err := s.repo.UpdatePlan(ctx, planID, upd)
	if err != nil {
		return nil, err
	}
	s.invalidatePlans(ctx)
	s.publishPlanEvent(ctx, models.NotificationEvent{
		Type:         models.NotificationPlanChange,
		Title:        "Plan updated",
		Message:      fmt.Sprintf("%q has been updated", updated.Title),
		PlanID:       planID,
		RecipientIDs: participantIDs(updated),
		ExcludeID:    actorUID,
	})
	return updated, nil
}

// DeletePlan удаляет план и уведомляет его участников. Удалять может только создатель.
func (s *Service) DeletePlan(ctx context.Context, planID, actorUID string) error {
	const op = "gateway.DeletePlan"
	p, err := s.requireCreator(ctx, planID, actorUID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err = s.repo.DeletePlan(ctx, planID); err != nil {
		return err
	}
	s.invalidatePlans(ctx)
	s.publishPlanEvent(ctx, models.NotificationEvent{
		Type:         models.NotificationPlanChange,
		Title:        "Plan cancelled",
		Message:      fmt.Sprintf("%q has been cancelled", p.Title),
		RecipientIDs: participantIDs(p),
		ExcludeID:    actorUID,
	})
	return nil
}

// JoinPlan добавляет пользователя в участники плана.
func (s *Service) JoinPlan(ctx context.Context, planID, userUID string) (*models.Plan, error) {
	p, err := s.repo.JoinPlan(ctx, planID, userUID)
	if err != nil {
		return nil, err
	}
	s.invalidatePlans(ctx)
	return p, nil
}

// LeavePlan удаляет пользователя из участников плана.
func (s *Service) LeavePlan(ctx context.Context, planID, userUID string) (*models.Plan, error) {
	p, err := s.repo.LeavePlan(ctx, planID, userUID)
	if err != nil {
		return nil, err
	}
	s.invalidatePlans(ctx)
	return p, nil
}

// PayResult — итог оплаты или возврата за участие в плане.
type PayResult struct {
	Plan        *models.Plan
	Transaction *models.WalletTransaction
	Balance     decimal.Decimal
}

// PayPlan оплачивает участие в плане из кошелька и добавляет пользователя
// в участники.
func (s *Service) PayPlan(ctx context.Context, planID, userUID string) (*PayResult, error) {
	res, err := s.repo.PayForPlan(ctx, planID, userUID, "Plan payment")
	if err != nil {
		return nil, err
	}
	s.invalidatePlans(ctx)
	return &PayResult{Plan: res.Plan, Transaction: res.Transaction, Balance: res.Balance}, nil
}

// LeavePlanWithRefund удаляет пользователя из участников, возвращает оплату
// на кошелёк и уведомляет создателя об отмене участия.
func (s *Service) LeavePlanWithRefund(ctx context.Context, planID, userUID string) (*PayResult, error) {
	res, err := s.repo.LeavePlanWithRefund(ctx, planID, userUID, "Refund")
	if err != nil {
		return nil, err
	}
	s.invalidatePlans(ctx)
	if res.Transaction != nil {
		s.publishPlanEvent(ctx, models.NotificationEvent{
			Type:         models.NotificationPlanChange,
			Title:        "Participant cancelled",
			Message:      fmt.Sprintf("A participant left %q and was refunded", res.Plan.Title),
			PlanID:       planID,
			RecipientIDs: []string{res.Plan.Creator.ID},
			ExcludeID:    userUID,
		})
	}
	return &PayResult{Plan: res.Plan, Transaction: res.Transaction, Balance: res.Balance}, nil
}

// GetTournaments возвращает все турниры, новые первыми.
func (s *Service) GetTournaments(ctx context.Context) ([]models.Tournament, error) {
	return s.repo.ListTournaments(ctx)
}

// CreateTournament сохраняет турнир.
func (s *Service) CreateTournament(ctx context.Context, t models.Tournament) (*models.Tournament, error) {
	return s.repo.InsertTournament(ctx, t)
}

func participantIDs(p *models.Plan) []string {
	ids := make([]string, 0, len(p.Participants))
	for _, u := range p.Participants {
		ids = append(ids, u.ID)
	}
	return ids
}

package store

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/planzy/internal/lib/sl"
	"github.com/magabrotheeeer/planzy/internal/models"
)

// checkParticipantLimit проверяет лимит участников тарифа пользователя.
func (s *Store) checkParticipantLimit(maxParticipants *int) error {
	limit := s.state.effectivePremium(s.now()).Limits().MaxParticipants
	if limit > 0 && maxParticipants != nil && *maxParticipants > limit {
		return models.ErrParticipantLimit
	}
	return nil
}

// AddPlan создаёт план от имени пользователя. Число планов в месяц и
// максимальное число участников ограничены тарифом; если лимит участников
// не задан, для ограниченных тарифов подставляется лимит тарифа.
func (s *Store) AddPlan(in models.PlanInput) (*models.Plan, *Pending, error) {
	if strings.TrimSpace(in.Title) == "" || strings.TrimSpace(in.Location.Name) == "" {
		return nil, nil, models.ErrInvalidInput
	}
	if in.PricePerPerson.Valid && in.PricePerPerson.Decimal.IsNegative() {
		return nil, nil, models.ErrInvalidAmount
	}
	if err := s.begin(); err != nil {
		return nil, nil, err
	}
	defer s.mu.Unlock()

	user, err := s.requireUser()
	if err != nil {
		return nil, nil, err
	}
	limits := s.state.effectivePremium(s.now()).Limits()
	if limits.PlansPerMonth > 0 && s.state.PlansCreatedThisMonth >= limits.PlansPerMonth {
		return nil, nil, models.ErrPlanLimitReached
	}
	if err = s.checkParticipantLimit(in.MaxParticipants); err != nil {
		return nil, nil, err
	}
	maxParticipants := in.MaxParticipants
	if maxParticipants == nil && limits.MaxParticipants > 0 {
		v := limits.MaxParticipants
		maxParticipants = &v
	}

	plan := models.Plan{
		ID:               uuid.New().String(),
		Title:            strings.TrimSpace(in.Title),
		Description:      in.Description,
		Image:            in.Image,
		Category:         in.Category,
		Date:             in.Date,
		Time:             in.Time,
		Location:         in.Location,
		MaxParticipants:  maxParticipants,
		PricePerPerson:   in.PricePerPerson,
		MinAge:           in.MinAge,
		CourtReservation: in.CourtReservation,
		Creator:          user.Summary(),
		Participants:     []models.UserSummary{},
		CreatedAt:        s.now().UTC(),
	}
	s.state.upsertPlan(plan.Clone())
	s.state.PlansCreatedThisMonth++

	pending := s.enqueue(&task{
		op: "AddPlan",
		persist: func(ctx context.Context) (func(*State), error) {
			created, err := s.gw.CreatePlan(ctx, plan)
			if err != nil {
				return nil, err
			}
			chat, err := s.gw.GetChatForPlan(ctx, created.ID)
			if err != nil {
				s.log.Warn("failed to load plan chat", slog.String("plan_id", created.ID), sl.Err(err))
			}
			return func(st *State) {
				st.upsertPlan(created.Clone())
				if chat != nil {
					st.upsertChat(chat.Clone())
				}
			}, nil
		},
		revert: func(st *State) {
			st.removePlan(plan.ID)
			if st.PlansCreatedThisMonth > 0 {
				st.PlansCreatedThisMonth--
			}
		},
	})
	return &plan, pending, nil
}

// ownPlan возвращает план, созданный текущим пользователем. Вызывается под s.mu.
func (s *Store) ownPlan(planID string) (*models.User, *models.Plan, error) {
	user, err := s.requireUser()
	if err != nil {
		return nil, nil, err
	}
	plan, _ := s.state.plan(planID)
	if plan == nil {
		return nil, nil, models.ErrNotFound
	}
	if plan.Creator.ID != user.ID {
		return nil, nil, models.ErrForbidden
	}
	return user, plan, nil
}

// EditPlan меняет план. Менять план может только его создатель.
func (s *Store) EditPlan(planID string, upd models.PlanUpdate) (*Pending, error) {
	if err := s.begin(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	user, plan, err := s.ownPlan(planID)
	if err != nil {
		return nil, err
	}
	if err = s.checkParticipantLimit(upd.MaxParticipants); err != nil {
		return nil, err
	}
	if upd.MaxParticipants != nil && *upd.MaxParticipants < plan.CurrentParticipants() {
		return nil, fmt.Errorf("max participants below current count: %w", models.ErrInvalidInput)
	}
	if upd.PricePerPerson != nil && upd.PricePerPerson.Valid && upd.PricePerPerson.Decimal.IsNegative() {
		return nil, models.ErrInvalidAmount
	}

	prev := plan.Clone()
	upd.Apply(plan)
	if upd.Title != nil {
		if chat := s.state.chatForPlan(planID); chat != nil {
			chat.PlanTitle = plan.Title
		}
	}
	sortPlans(s.state.Plans)

	userID := user.ID
	return s.enqueue(&task{
		op: "EditPlan",
		persist: func(ctx context.Context) (func(*State), error) {
			updated, err := s.gw.UpdatePlan(ctx, planID, userID, upd)
			if err != nil {
				return nil, err
			}
			return func(st *State) {
				st.upsertPlan(updated.Clone())
				if chat := st.chatForPlan(planID); chat != nil {
					chat.PlanTitle = updated.Title
				}
			}, nil
		},
		undo: map[string]func(*State){
			planKey(planID): func(st *State) {
				current, _ := st.plan(planID)
				if current == nil {
					return
				}
				participants := current.Participants
				*current = prev.Clone()
				current.Participants = participants
				if chat := st.chatForPlan(planID); chat != nil {
					chat.PlanTitle = prev.Title
				}
				sortPlans(st.Plans)
			},
		},
	}), nil
}

func planKey(planID string) string {
	return "plan." + planID
}

// DeletePlan удаляет план вместе с его чатом. Удалять план может только
// его создатель.
func (s *Store) DeletePlan(planID string) (*Pending, error) {
	if err := s.begin(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	user, plan, err := s.ownPlan(planID)
	if err != nil {
		return nil, err
	}
	prev := plan.Clone()
	var prevChat *models.Chat
	if chat := s.state.chatForPlan(planID); chat != nil {
		c := chat.Clone()
		prevChat = &c
	}
	wasFavorite := contains(s.state.Favorites, planID)
	wasJoined := contains(s.state.JoinedPlans, planID)

	s.state.removePlan(planID)
	s.state.Favorites = without(s.state.Favorites, planID)
	s.state.JoinedPlans = without(s.state.JoinedPlans, planID)
	s.state.Chats = removeChatForPlan(s.state.Chats, planID)

	userID := user.ID
	return s.enqueue(&task{
		op: "DeletePlan",
		persist: func(ctx context.Context) (func(*State), error) {
			return nil, s.gw.DeletePlan(ctx, planID, userID)
		},
		revert: func(st *State) {
			st.upsertPlan(prev.Clone())
			if prevChat != nil {
				st.upsertChat(prevChat.Clone())
			}
			if wasFavorite {
				st.Favorites = withItem(st.Favorites, planID)
			}
			if wasJoined {
				st.JoinedPlans = withItem(st.JoinedPlans, planID)
			}
		},
	}), nil
}

func removeChatForPlan(chats []models.Chat, planID string) []models.Chat {
	out := make([]models.Chat, 0, len(chats))
	for _, c := range chats {
		if c.PlanID != planID {
			out = append(out, c)
		}
	}
	return out
}

// ToggleFavorite добавляет план в избранное или убирает из него и
// возвращает новое значение. Избранное хранится только в сессии.
func (s *Store) ToggleFavorite(planID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p, _ := s.state.plan(planID); p == nil {
		return false, models.ErrNotFound
	}
	if contains(s.state.Favorites, planID) {
		s.state.Favorites = without(s.state.Favorites, planID)
		return false, nil
	}
	s.state.Favorites = append(s.state.Favorites, planID)
	return true, nil
}

// checkJoin проверяет, что пользователь может присоединиться к плану.
// Вызывается под s.mu.
func (s *Store) checkJoin(user *models.User, planID string) (*models.Plan, error) {
	plan, _ := s.state.plan(planID)
	if plan == nil {
		return nil, models.ErrNotFound
	}
	if plan.HasParticipant(user.ID) {
		return nil, models.ErrAlreadyJoined
	}
	if plan.IsFull() {
		return nil, models.ErrPlanFull
	}
	if plan.MinAge != nil && user.Age != nil && *user.Age < *plan.MinAge {
		return nil, models.ErrUnderage
	}
	return plan, nil
}

// JoinPlan добавляет пользователя в участники плана. Вместимость
// окончательно проверяется хранилищем; локальная проверка лишь отсекает
// заведомо невозможные попытки.
func (s *Store) JoinPlan(planID string) (*Pending, error) {
	if err := s.begin(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	user, err := s.requireUser()
	if err != nil {
		return nil, err
	}
	plan, err := s.checkJoin(user, planID)
	if err != nil {
		return nil, err
	}
	summary := user.Summary()
	addParticipant(plan, summary)
	s.state.JoinedPlans = withItem(s.state.JoinedPlans, planID)

	return s.enqueue(&task{
		op: "JoinPlan",
		persist: func(ctx context.Context) (func(*State), error) {
			updated, err := s.gw.JoinPlan(ctx, planID, summary.ID)
			if err != nil {
				return nil, err
			}
			return func(st *State) {
				st.upsertPlan(updated.Clone())
			}, nil
		},
		revert: func(st *State) {
			if p, _ := st.plan(planID); p != nil {
				removeParticipant(p, summary.ID)
			}
			st.JoinedPlans = without(st.JoinedPlans, planID)
		},
	}), nil
}

// LeavePlan удаляет пользователя из участников. С isRefund оплаченная
// сумма возвращается на кошелёк, а создатель плана получает уведомление.
func (s *Store) LeavePlan(planID string, isRefund bool) (*Pending, error) {
	if err := s.begin(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	user, err := s.requireUser()
	if err != nil {
		return nil, err
	}
	plan, _ := s.state.plan(planID)
	if plan == nil {
		return nil, models.ErrNotFound
	}
	if !plan.HasParticipant(user.ID) {
		return nil, models.ErrNotJoined
	}

	summary := user.Summary()
	removeParticipant(plan, summary.ID)
	s.state.JoinedPlans = without(s.state.JoinedPlans, planID)

	var refund *models.WalletTransaction
	paid, hasPaid := s.state.paidAmount(planID)
	if isRefund && hasPaid && paid.IsPositive() {
		refund = &models.WalletTransaction{
			ID:          uuid.New().String(),
			UserID:      summary.ID,
			Type:        models.TxRefund,
			Amount:      paid,
			Description: "Refund: " + plan.Title,
			PlanID:      planID,
			CreatedAt:   s.now().UTC(),
		}
		s.state.addTransaction(*refund)
		s.state.removePaidPlan(planID)
	}

	return s.enqueue(&task{
		op: "LeavePlan",
		persist: func(ctx context.Context) (func(*State), error) {
			if !isRefund {
				updated, err := s.gw.LeavePlan(ctx, planID, summary.ID)
				if err != nil {
					return nil, err
				}
				return func(st *State) {
					st.upsertPlan(updated.Clone())
				}, nil
			}
			res, err := s.gw.LeavePlanWithRefund(ctx, planID, summary.ID)
			if err != nil {
				return nil, err
			}
			return func(st *State) {
				st.upsertPlan(res.Plan.Clone())
				switch {
				case refund != nil:
					st.replaceTransaction(refund.ID, res.Transaction)
				case res.Transaction != nil:
					st.addTransaction(*res.Transaction)
					st.removePaidPlan(planID)
				}
				s.reconcileBalance(st, res.Balance)
			}, nil
		},
		revert: func(st *State) {
			if p, _ := st.plan(planID); p != nil {
				addParticipant(p, summary)
			}
			st.JoinedPlans = withItem(st.JoinedPlans, planID)
			if refund != nil {
				st.removeTransaction(refund.ID)
				st.addPaidPlan(models.PaidPlan{PlanID: planID, Amount: paid})
			}
		},
	}), nil
}

// GetChatForPlan возвращает групповой чат плана, загружая его при
// необходимости.
func (s *Store) GetChatForPlan(ctx context.Context, planID string) (*models.Chat, error) {
	s.mu.RLock()
	if chat := s.state.chatForPlan(planID); chat != nil {
		c := chat.Clone()
		s.mu.RUnlock()
		return &c, nil
	}
	_, err := s.requireUser()
	s.mu.RUnlock()
	if err != nil {
		return nil, err
	}

	chat, err := s.gw.GetChatForPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.upsertChat(chat.Clone())
	c := chat.Clone()
	return &c, nil
}

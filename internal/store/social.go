package store

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/planzy/internal/models"
)

// BlockUser блокирует пользователя. Сообщения от него продолжают
// сохраняться, но открыть с ним личный чат нельзя.
func (s *Store) BlockUser(targetUID string) (*Pending, error) {
	return s.changeBlocked("BlockUser", targetUID, true)
}

// UnblockUser снимает блокировку.
func (s *Store) UnblockUser(targetUID string) (*Pending, error) {
	return s.changeBlocked("UnblockUser", targetUID, false)
}

func (s *Store) changeBlocked(op, targetUID string, block bool) (*Pending, error) {
	if err := s.begin(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	user, err := s.requireUser()
	if err != nil {
		return nil, err
	}
	if targetUID == "" || targetUID == user.ID {
		return nil, models.ErrInvalidInput
	}
	if s.state.isBlocked(targetUID) == block {
		return resolved(), nil
	}

	current := append([]string{}, s.state.BlockedUsers...)
	if block {
		s.state.setBlocked(withItem(current, targetUID))
	} else {
		s.state.setBlocked(without(current, targetUID))
	}

	userID := user.ID
	return s.enqueue(&task{
		op: op,
		persist: func(ctx context.Context) (func(*State), error) {
			var (
				list []string
				err  error
			)
			if block {
				list, err = s.gw.BlockUser(ctx, userID, targetUID)
			} else {
				list, err = s.gw.UnblockUser(ctx, userID, targetUID)
			}
			if err != nil {
				return nil, err
			}
			return func(st *State) {
				// Список сервера ещё не содержит изменений из очереди.
				if s.queueLen() == 0 {
					st.setBlocked(append([]string{}, list...))
				}
			}, nil
		},
		undo: map[string]func(*State){
			"blocked." + targetUID: func(st *State) {
				list := append([]string{}, st.BlockedUsers...)
				if block {
					st.setBlocked(without(list, targetUID))
				} else {
					st.setBlocked(withItem(list, targetUID))
				}
			},
		},
	}), nil
}

// ReportUser сохраняет жалобу на пользователя для модерации.
func (s *Store) ReportUser(targetUID, reason string) (*Pending, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, models.ErrInvalidInput
	}
	if err := s.begin(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	user, err := s.requireUser()
	if err != nil {
		return nil, err
	}
	if targetUID == "" || targetUID == user.ID {
		return nil, models.ErrInvalidInput
	}

	userID := user.ID
	return s.enqueue(&task{
		op: "ReportUser",
		persist: func(ctx context.Context) (func(*State), error) {
			_, err := s.gw.ReportUser(ctx, userID, targetUID, reason)
			return nil, err
		},
	}), nil
}

// AddNotification добавляет уведомление текущему пользователю.
func (s *Store) AddNotification(n models.Notification) (*models.Notification, *Pending, error) {
	if strings.TrimSpace(n.Title) == "" {
		return nil, nil, models.ErrInvalidInput
	}
	if err := s.begin(); err != nil {
		return nil, nil, err
	}
	defer s.mu.Unlock()

	user, err := s.requireUser()
	if err != nil {
		return nil, nil, err
	}
	n.ID = uuid.New().String()
	n.UserID = user.ID
	n.Read = false
	n.CreatedAt = s.now().UTC()
	s.state.Notifications = append([]models.Notification{n}, s.state.Notifications...)

	pending := s.enqueue(&task{
		op: "AddNotification",
		persist: func(ctx context.Context) (func(*State), error) {
			saved, err := s.gw.CreateNotification(ctx, n)
			if err != nil {
				return nil, err
			}
			return func(st *State) {
				for i := range st.Notifications {
					if st.Notifications[i].ID == n.ID {
						read := st.Notifications[i].Read
						st.Notifications[i] = *saved
						st.Notifications[i].Read = read || saved.Read
						return
					}
				}
			}, nil
		},
		revert: func(st *State) {
			out := make([]models.Notification, 0, len(st.Notifications))
			for _, x := range st.Notifications {
				if x.ID != n.ID {
					out = append(out, x)
				}
			}
			st.Notifications = out
		},
	})
	return &n, pending, nil
}

// MarkNotificationRead помечает уведомление прочитанным.
func (s *Store) MarkNotificationRead(notificationID string) (*Pending, error) {
	if err := s.begin(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	user, err := s.requireUser()
	if err != nil {
		return nil, err
	}
	var target *models.Notification
	for i := range s.state.Notifications {
		if s.state.Notifications[i].ID == notificationID {
			target = &s.state.Notifications[i]
			break
		}
	}
	if target == nil {
		return nil, models.ErrNotFound
	}
	if target.Read {
		return resolved(), nil
	}
	target.Read = true

	userID := user.ID
	return s.enqueue(&task{
		op: "MarkNotificationRead",
		persist: func(ctx context.Context) (func(*State), error) {
			return nil, s.gw.MarkNotificationRead(ctx, userID, notificationID)
		},
		revert: func(st *State) {
			for i := range st.Notifications {
				if st.Notifications[i].ID == notificationID {
					st.Notifications[i].Read = false
				}
			}
		},
	}), nil
}

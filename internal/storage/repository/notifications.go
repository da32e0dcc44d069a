package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/planzy/internal/models"
)

// ListNotifications возвращает уведомления пользователя, новые первыми.
func (s *Storage) ListNotifications(ctx context.Context, userUID string) ([]models.Notification, error) {
	const op = "storage.ListNotifications"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	rows, err := s.DB.QueryContext(ctx, `SELECT id, user_id, type, title, message, plan_id::text, read, created_at
			  FROM notifications WHERE user_id = $1
			  ORDER BY created_at DESC, id`, userUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	result := make([]models.Notification, 0)
	for rows.Next() {
		var n models.Notification
		var planID sql.NullString
		if err = rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Message, &planID, &n.Read, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		n.PlanID = planID.String
		result = append(result, n)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// InsertNotifications сохраняет пачку уведомлений в одной транзакции.
func (s *Storage) InsertNotifications(ctx context.Context, list []models.Notification) ([]models.Notification, error) {
	const op = "storage.InsertNotifications"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return []models.Notification{}, nil
	}

	now := s.now().UTC()
	out := make([]models.Notification, 0, len(list))
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO notifications (id, user_id, type, title, message, plan_id, read, created_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`)
		if err != nil {
			return err
		}
		defer func() {
			_ = stmt.Close()
		}()

		for _, n := range list {
			if n.ID == "" {
				n.ID = uuid.New().String()
			}
			if n.CreatedAt.IsZero() {
				n.CreatedAt = now
			}
			if _, err = stmt.ExecContext(ctx, n.ID, n.UserID, string(n.Type), n.Title, n.Message,
				nullString(n.PlanID), n.Read, n.CreatedAt); err != nil {
				if _, ok := pgError(err, codeForeignKeyViolation); ok {
					return models.ErrNotFound
				}
				return err
			}
			out = append(out, n)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

// MarkNotificationRead помечает уведомление пользователя прочитанным.
func (s *Storage) MarkNotificationRead(ctx context.Context, userUID, notificationID string) error {
	const op = "storage.MarkNotificationRead"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}
	res, err := s.DB.ExecContext(ctx,
		`UPDATE notifications SET read = TRUE WHERE id = $1 AND user_id = $2`, notificationID, userUID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}
	return nil
}

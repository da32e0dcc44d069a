package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/planzy/internal/models"
)

func listBlocked(ctx context.Context, q querier, userUID string) ([]string, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT blocked_id FROM user_blocks WHERE user_id = $1 ORDER BY created_at`, userUID)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err = rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// BlockUser добавляет targetUID в список заблокированных пользователем userUID.
// Повторная блокировка ничего не меняет.
func (s *Storage) BlockUser(ctx context.Context, userUID, targetUID string) ([]string, error) {
	const op = "storage.BlockUser"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	if userUID == targetUID {
		return nil, fmt.Errorf("%s: %w", op, models.ErrInvalidInput)
	}
	_, err := s.DB.ExecContext(ctx, `INSERT INTO user_blocks (user_id, blocked_id, created_at)
			  VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`, userUID, targetUID, s.now().UTC())
	if err != nil {
		if _, ok := pgError(err, codeForeignKeyViolation); ok {
			return nil, fmt.Errorf("%s: %w", op, models.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	blocked, err := listBlocked(ctx, s.DB, userUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return blocked, nil
}

// UnblockUser снимает блокировку.
func (s *Storage) UnblockUser(ctx context.Context, userUID, targetUID string) ([]string, error) {
	const op = "storage.UnblockUser"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	if _, err := s.DB.ExecContext(ctx,
		`DELETE FROM user_blocks WHERE user_id = $1 AND blocked_id = $2`, userUID, targetUID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	blocked, err := listBlocked(ctx, s.DB, userUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return blocked, nil
}

// IsBlocked сообщает, заблокировал ли кто-то из пары другого.
func (s *Storage) IsBlocked(ctx context.Context, a, b string) (bool, error) {
	const op = "storage.IsBlocked"
	var blocked bool
	err := s.DB.QueryRowContext(ctx, `SELECT EXISTS (
			  SELECT 1 FROM user_blocks
			  WHERE (user_id = $1 AND blocked_id = $2) OR (user_id = $2 AND blocked_id = $1))`, a, b).Scan(&blocked)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return blocked, nil
}

// InsertReport сохраняет жалобу на пользователя.
func (s *Storage) InsertReport(ctx context.Context, reporterUID, reportedUID, reason string) (*models.UserReport, error) {
	const op = "storage.InsertReport"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	report := models.UserReport{
		ID:         uuid.New().String(),
		ReporterID: reporterUID,
		ReportedID: reportedUID,
		Reason:     reason,
		CreatedAt:  s.now().UTC(),
	}
	_, err := s.DB.ExecContext(ctx, `INSERT INTO user_reports (id, reporter_id, reported_id, reason, created_at)
			  VALUES ($1, $2, $3, $4, $5)`,
		report.ID, report.ReporterID, report.ReportedID, report.Reason, report.CreatedAt)
	if err != nil {
		if _, ok := pgError(err, codeForeignKeyViolation); ok {
			return nil, fmt.Errorf("%s: %w", op, models.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &report, nil
}

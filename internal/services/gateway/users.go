package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/magabrotheeeer/planzy/internal/models"
	"github.com/magabrotheeeer/planzy/internal/storage/repository"
)

// maxUsernameAttempts — сколько числовых суффиксов перебирается перед
// переходом на суффикс из времени.
const maxUsernameAttempts = 1000

// GetUser возвращает пользователя по email.
func (s *Service) GetUser(ctx context.Context, email string) (*models.User, error) {
	return s.repo.GetUserByEmail(ctx, email)
}

// GetUserByID возвращает пользователя по UID.
func (s *Service) GetUserByID(ctx context.Context, userUID string) (*models.User, error) {
	return s.repo.GetUserByID(ctx, userUID)
}

// CreateUser сохраняет пользователя. Существующая запись с тем же email и
// неподтверждённой почтой удаляется и создаётся заново; подтверждённая
// возвращается без изменений. Username делается уникальным добавлением
// числового суффикса.
func (s *Service) CreateUser(ctx context.Context, u models.User) (*models.User, error) {
	const op = "gateway.CreateUser"
	log := s.log.With(slog.String("op", op))

	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	existing, err := s.repo.GetUserByEmail(ctx, u.Email)
	switch {
	case err == nil && existing.IsEmailVerified:
		return existing, nil
	case err == nil:
		if err = s.repo.DeleteUser(ctx, existing.ID); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		s.invalidatePlans(ctx)
		log.Info("superseded unverified registration", slog.String("user_uid", existing.ID))
	case !errors.Is(err, models.ErrNotFound):
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	base := normalizeUsername(u.Username, u.Email)
	if u.Username, err = s.uniqueUsername(ctx, base); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	created, err := s.repo.InsertUser(ctx, u)
	if errors.Is(err, repository.ErrUsernameTaken) {
		u.Username = base + "_" + strconv.FormatInt(s.now().UnixMilli(), 10)
		created, err = s.repo.InsertUser(ctx, u)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	log.Info("user created", slog.String("user_uid", created.ID), slog.String("username", created.Username))
	return created, nil
}

// uniqueUsername подбирает свободный username: base, base1, base2, ...
func (s *Service) uniqueUsername(ctx context.Context, base string) (string, error) {
	candidate := base
	for i := 1; i <= maxUsernameAttempts; i++ {
		taken, err := s.repo.UsernameExists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
		candidate = base + strconv.Itoa(i)
	}
	return base + strconv.FormatInt(s.now().UnixMilli(), 10), nil
}

// normalizeUsername приводит username к нижнему регистру без пробелов; если
// он пуст, берётся локальная часть email.
func normalizeUsername(username, email string) string {
	username = strings.ToLower(strings.Join(strings.Fields(username), ""))
	if username == "" {
		username, _, _ = strings.Cut(email, "@")
	}
	if username == "" {
		username = "user"
	}
	return username
}

// UpdateUser применяет частичное обновление профиля. Планы показывают
// краткий профиль создателя и участников, поэтому его изменение сбрасывает
// кэш списка планов.
func (s *Service) UpdateUser(ctx context.Context, userUID string, upd models.UserUpdate) (*models.User, error) {
	updated, err := s.repo.UpdateUser(ctx, userUID, upd)
	if err != nil {
		return nil, err
	}
	if changesSummary(upd) {
		s.invalidatePlans(ctx)
	}
	return updated, nil
}

func changesSummary(upd models.UserUpdate) bool {
	for _, f := range []models.UserField{models.FieldName, models.FieldAvatar, models.FieldIsVerified, models.FieldAge} {
		if upd.Has(f) {
			return true
		}
	}
	return false
}

// SetPremium меняет тариф без оплаты из кошелька.
func (s *Service) SetPremium(ctx context.Context, userUID string, plan models.PremiumPlan, expiresAt *time.Time) error {
	return s.repo.SetPremium(ctx, userUID, plan, expiresAt)
}

// PurchasePremium оплачивает тариф из кошелька по его цене и возвращает
// операцию списания вместе с новым балансом.
func (s *Service) PurchasePremium(ctx context.Context, userUID string, plan models.PremiumPlan,
	expiresAt time.Time) (*models.WalletTransaction, decimal.Decimal, error) {
	return s.repo.PurchasePremium(ctx, userUID, plan, plan.Limits().Price, expiresAt, "Premium "+string(plan))
}

// DeleteUserByEmail удаляет пользователя по email (административная очистка).
func (s *Service) DeleteUserByEmail(ctx context.Context, email string, includeVerified bool) (int64, error) {
	n, err := s.repo.DeleteUserByEmail(ctx, email, includeVerified)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.invalidatePlans(ctx)
	}
	return n, nil
}

// DeleteAllUnverifiedUsers удаляет всех пользователей с неподтверждённой почтой.
func (s *Service) DeleteAllUnverifiedUsers(ctx context.Context) (int64, error) {
	n, err := s.repo.DeleteUnverifiedUsers(ctx)
	if err != nil {
		return 0, err
	}
	s.log.Info("unverified users deleted", slog.Int64("count", n))
	if n > 0 {
		s.invalidatePlans(ctx)
	}
	return n, nil
}

// ListUsers возвращает всех пользователей.
func (s *Service) ListUsers(ctx context.Context) ([]models.User, error) {
	return s.repo.ListUsers(ctx)
}

// BlockUser блокирует пользователя.
func (s *Service) BlockUser(ctx context.Context, userUID, targetUID string) ([]string, error) {
	return s.repo.BlockUser(ctx, userUID, targetUID)
}

// UnblockUser снимает блокировку.
func (s *Service) UnblockUser(ctx context.Context, userUID, targetUID string) ([]string, error) {
	return s.repo.UnblockUser(ctx, userUID, targetUID)
}

// ReportUser сохраняет жалобу.
func (s *Service) ReportUser(ctx context.Context, reporterUID, reportedUID, reason string) (*models.UserReport, error) {
	report, err := s.repo.InsertReport(ctx, reporterUID, reportedUID, reason)
	if err != nil {
		return nil, err
	}
	s.log.Warn("user reported",
		slog.String("reporter_uid", reporterUID),
		slog.String("reported_uid", reportedUID),
		slog.String("report_id", report.ID))
	return report, nil
}

// GetNotifications возвращает уведомления пользователя.
func (s *Service) GetNotifications(ctx context.Context, userUID string) ([]models.Notification, error) {
	return s.repo.ListNotifications(ctx, userUID)
}

// CreateNotification сохраняет одно уведомление.
func (s *Service) CreateNotification(ctx context.Context, n models.Notification) (*models.Notification, error) {
	saved, err := s.repo.InsertNotifications(ctx, []models.Notification{n})
	if err != nil {
		return nil, err
	}
	if len(saved) == 0 {
		return nil, models.ErrNotFound
	}
	return &saved[0], nil
}

// MarkNotificationRead помечает уведомление прочитанным.
func (s *Service) MarkNotificationRead(ctx context.Context, userUID, notificationID string) error {
	return s.repo.MarkNotificationRead(ctx, userUID, notificationID)
}

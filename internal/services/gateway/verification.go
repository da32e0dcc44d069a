package gateway

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/magabrotheeeer/planzy/internal/models"
)

// VerificationCodeTTL — время жизни кода подтверждения email.
const VerificationCodeTTL = 10 * time.Minute

// Причины результата проверки кода.
const (
	VerifySuccess  = "success"
	VerifyNotFound = "not-found"
	VerifyExpired  = "expired"
	VerifyInvalid  = "invalid"
)

var codeLimit = big.NewInt(1_000_000)

// newVerificationCode возвращает шесть случайных цифр.
func newVerificationCode() (string, error) {
	n, err := rand.Int(rand.Reader, codeLimit)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// IssueVerificationCode генерирует новый код для email и сохраняет его со
// сроком действия VerificationCodeTTL. Предыдущий код перестаёт действовать.
func (s *Service) IssueVerificationCode(ctx context.Context, email string) (string, error) {
	const op = "gateway.IssueVerificationCode"
	email = strings.ToLower(strings.TrimSpace(email))

	code, err := s.newCode()
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if err = s.repo.SetVerificationCode(ctx, email, code, s.now().Add(VerificationCodeTTL)); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return code, nil
}

// VerifyRegisterCode проверяет код и при совпадении подтверждает email.
// Ошибки: models.ErrNotFound (нет пользователя или кода),
// models.ErrCodeExpired, models.ErrInvalidCode.
func (s *Service) VerifyRegisterCode(ctx context.Context, email, code string) (*models.User, error) {
	const op = "gateway.VerifyRegisterCode"
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if user.EmailVerificationCode == "" || user.EmailVerificationExpiresAt == nil {
		return nil, fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}
	if s.now().After(*user.EmailVerificationExpiresAt) {
		return nil, fmt.Errorf("%s: %w", op, models.ErrCodeExpired)
	}
	if user.EmailVerificationCode != strings.TrimSpace(code) {
		return nil, fmt.Errorf("%s: %w", op, models.ErrInvalidCode)
	}

	if err = s.repo.ConfirmEmail(ctx, user.ID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	user.IsEmailVerified = true
	user.EmailVerificationCode = ""
	user.EmailVerificationExpiresAt = nil
	s.log.Info("email verified", slog.String("user_uid", user.ID))
	return user, nil
}

// VerifyReason переводит ошибку VerifyRegisterCode в причину для клиента.
func VerifyReason(err error) string {
	switch {
	case err == nil:
		return VerifySuccess
	case errors.Is(err, models.ErrNotFound):
		return VerifyNotFound
	case errors.Is(err, models.ErrCodeExpired):
		return VerifyExpired
	case errors.Is(err, models.ErrInvalidCode):
		return VerifyInvalid
	}
	return ""
}

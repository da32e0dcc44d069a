// Package services доставляет письма с кодом подтверждения регистрации.
package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/magabrotheeeer/planzy/internal/lib/mailer"
	"github.com/magabrotheeeer/planzy/internal/lib/sl"
	"github.com/magabrotheeeer/planzy/internal/models"
)

// ConfigurableSender — отправитель, который может быть не настроен (нет ключа API).
type ConfigurableSender interface {
	mailer.Sender
	Configured() bool
}

// SenderService выбирает канал доставки: HTTP API, если он настроен, иначе SMTP-релей.
type SenderService struct {
	api      ConfigurableSender
	relay    mailer.Sender
	devCodes bool
	log      *slog.Logger
}

// NewSenderService создаёт новый экземпляр SenderService. При devCodes ошибка
// SMTP-релея не возвращается: вызывающий получает emailSent=false и может
// показать код пользователю.
func NewSenderService(api ConfigurableSender, relay mailer.Sender, devCodes bool, log *slog.Logger) *SenderService {
	return &SenderService{
		api:      api,
		relay:    relay,
		devCodes: devCodes,
		log:      log,
	}
}

// SendVerificationCode отправляет код подтверждения и сообщает, ушло ли письмо.
func (s *SenderService) SendVerificationCode(ctx context.Context, email, name, code string,
	lang models.Language) (bool, error) {
	const op = "services.SendVerificationCode"
	log := s.log.With(slog.String("op", op), slog.String("email", email))

	msg := verificationMessage(email, name, code, lang)

	if s.api != nil && s.api.Configured() {
		if err := s.api.Send(ctx, msg); err != nil {
			log.Error("failed to send verification email via api", sl.Err(err))
			return false, fmt.Errorf("%s: %w", op, err)
		}
		log.Info("verification email sent", slog.String("channel", "api"))
		return true, nil
	}

	if err := s.relay.Send(ctx, msg); err != nil {
		if s.devCodes {
			log.Warn("smtp relay unavailable, returning code to client", sl.Err(err))
			return false, nil
		}
		log.Error("failed to send verification email via smtp", sl.Err(err))
		return false, fmt.Errorf("%s: %w", op, err)
	}
	log.Info("verification email sent", slog.String("channel", "smtp"))
	return true, nil
}

func verificationMessage(email, name, code string, lang models.Language) mailer.Message {
	if name == "" {
		name = email
	}
	if lang == models.LanguageEN {
		return mailer.Message{
			To:      email,
			Subject: "Your Planzy verification code",
			Text: fmt.Sprintf("Hi %s!\n\nYour verification code is %s.\nIt expires in 10 minutes.\n\n"+
				"If you did not sign up for Planzy, ignore this email.", name, code),
			HTML: fmt.Sprintf("<p>Hi %s!</p><p>Your verification code is <b>%s</b>.</p>"+
				"<p>It expires in 10 minutes.</p>", name, code),
		}
	}
	return mailer.Message{
		To:      email,
		Subject: "Tu código de verificación de Planzy",
		Text: fmt.Sprintf("¡Hola %s!\n\nTu código de verificación es %s.\nCaduca en 10 minutos.\n\n"+
			"Si no te has registrado en Planzy, ignora este correo.", name, code),
		HTML: fmt.Sprintf("<p>¡Hola %s!</p><p>Tu código de verificación es <b>%s</b>.</p>"+
			"<p>Caduca en 10 minutos.</p>", name, code),
	}
}

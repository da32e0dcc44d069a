// Package auth реализует HTTP-обработчики регистрации, подтверждения email,
// входа по паролю и через OAuth-провайдера, а также выхода.
//
// Успешный вход открывает Store сессии в реестре и возвращает JWT, в
// котором записан идентификатор этой сессии.
package auth

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/planzy/internal/http/middlewarectx"
	"github.com/magabrotheeeer/planzy/internal/http/request"
	"github.com/magabrotheeeer/planzy/internal/http/response"
	"github.com/magabrotheeeer/planzy/internal/lib/sl"
	"github.com/magabrotheeeer/planzy/internal/models"
	authsvc "github.com/magabrotheeeer/planzy/internal/services/auth"
	"github.com/magabrotheeeer/planzy/internal/store"
)

// Service описывает бизнес-логику аутентификации.
type Service interface {
	Register(ctx context.Context, in models.RegisterRequest) (*models.VerificationResult, error)
	ResendCode(ctx context.Context, email string) (*models.VerificationResult, error)
	VerifyRegisterCode(ctx context.Context, email, code string) (*authsvc.Session, error)
	Login(ctx context.Context, email, password string) (*authsvc.Session, error)
	LoginOAuth(ctx context.Context, provider, idToken string) (*authsvc.Session, error)
}

// Sessions открывает и закрывает Store сессий.
type Sessions interface {
	Open(ctx context.Context, sessionID string, user *models.User) (*store.Store, error)
	Remove(ctx context.Context, sessionID string) error
}

// Revoker запоминает сессии, из которых вышел пользователь, чтобы их
// токены больше не принимались.
type Revoker interface {
	Revoke(ctx context.Context, sessionID string, until time.Time) error
}

// Handler обрабатывает HTTP-запросы аутентификации.
type Handler struct {
	log      *slog.Logger
	service  Service
	sessions Sessions
	revoker  Revoker
	validate *validator.Validate
}

// New создает новый Handler.
func New(log *slog.Logger, service Service, sessions Sessions, revoker Revoker) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		sessions: sessions,
		revoker:  revoker,
		validate: validator.New(),
	}
}

// SessionResponse — ответ на успешный вход.
type SessionResponse struct {
	Token string      `json:"token"`
	State store.State `json:"state"`
}

// Register godoc
// @Summary Регистрация
// @Description Создаёт пользователя с неподтверждённым email и отправляет код подтверждения.
// @Tags Auth
// @Accept  json
// @Produce  json
// @Param request body models.RegisterRequest true "Данные регистрации"
// @Success 201 {object} models.VerificationResult
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 409 {object} response.ErrorResponse "Email уже зарегистрирован"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Router /register [post]
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.Register"
	log := request.Logger(h.log, r, op)

	var req models.RegisterRequest
	if !request.Decode(w, r, log, h.validate, &req) {
		return
	}

	res, err := h.service.Register(r.Context(), req)
	if err != nil {
		log.Error("registration failed", sl.Err(err))
		response.Fail(w, r, err)
		return
	}

	log.Info("user registered", slog.Bool("email_sent", res.EmailSent))
	render.Status(r, http.StatusCreated)
	response.OK(w, r, res)
}

// Resend godoc
// @Summary Повторная отправка кода
// @Tags Auth
// @Accept  json
// @Produce  json
// @Param request body models.ResendRequest true "Email"
// @Success 200 {object} models.VerificationResult
// @Failure 404 {object} response.ErrorResponse "Email не найден"
// @Failure 409 {object} response.ErrorResponse "Email уже подтверждён"
// @Router /register/resend [post]
func (h *Handler) Resend(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.Resend"
	log := request.Logger(h.log, r, op)

	var req models.ResendRequest
	if !request.Decode(w, r, log, h.validate, &req) {
		return
	}

	res, err := h.service.ResendCode(r.Context(), req.Email)
	if err != nil {
		log.Error("failed to resend code", sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	log.Info("verification code resent", slog.Bool("email_sent", res.EmailSent))
	response.OK(w, r, res)
}

// Verify godoc
// @Summary Подтверждение email
// @Description Проверяет код и открывает сессию.
// @Tags Auth
// @Accept  json
// @Produce  json
// @Param request body models.VerifyRequest true "Email и код"
// @Success 200 {object} SessionResponse
// @Failure 404 {object} response.ErrorResponse "Код не выдавался"
// @Failure 410 {object} response.ErrorResponse "Код просрочен"
// @Failure 422 {object} response.ErrorResponse "Неверный код"
// @Router /register/verify [post]
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.Verify"
	log := request.Logger(h.log, r, op)

	var req models.VerifyRequest
	if !request.Decode(w, r, log, h.validate, &req) {
		return
	}

	sess, err := h.service.VerifyRegisterCode(r.Context(), req.Email, req.Code)
	if err != nil {
		log.Info("verification failed", sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	h.openSession(w, r, log, sess)
}

// Login godoc
// @Summary Вход по email и паролю
// @Tags Auth
// @Accept  json
// @Produce  json
// @Param request body models.LoginRequest true "Учетные данные пользователя"
// @Success 200 {object} SessionResponse
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 401 {object} response.ErrorResponse "Неверные учетные данные"
// @Failure 403 {object} response.ErrorResponse "Email не подтверждён"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Router /login [post]
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.Login"
	log := request.Logger(h.log, r, op)

	var req models.LoginRequest
	if !request.Decode(w, r, log, h.validate, &req) {
		return
	}

	sess, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		log.Info("login failed", sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	h.openSession(w, r, log, sess)
}

// OAuth godoc
// @Summary Вход через внешнего провайдера
// @Tags Auth
// @Accept  json
// @Produce  json
// @Param provider path string true "Провайдер, например google"
// @Param request body models.OAuthRequest true "ID-токен провайдера"
// @Success 200 {object} SessionResponse
// @Failure 401 {object} response.ErrorResponse "Недействительный ID-токен"
// @Failure 404 {object} response.ErrorResponse "Провайдер не настроен"
// @Router /oauth/{provider} [post]
func (h *Handler) OAuth(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.OAuth"
	log := request.Logger(h.log, r, op)

	var req models.OAuthRequest
	if !request.Decode(w, r, log, h.validate, &req) {
		return
	}

	provider := chi.URLParam(r, "provider")
	sess, err := h.service.LoginOAuth(r.Context(), provider, req.IDToken)
	if err != nil {
		log.Info("oauth login failed", slog.String("provider", provider), sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	h.openSession(w, r, log, sess)
}

// Logout godoc
// @Summary Выход
// @Description Закрывает сессию, дождавшись синхронизации её очереди. Токен сессии больше не принимается.
// @Tags Auth
// @Produce  json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Router /logout [post]
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.Logout"
	log := request.Logger(h.log, r, op)

	claims, ok := middlewarectx.ClaimsFrom(r.Context())
	if !ok {
		response.Fail(w, r, models.ErrNotAuthenticated)
		return
	}
	var until time.Time
	if claims.ExpiresAt != nil {
		until = claims.ExpiresAt.Time
	}
	if err := h.revoker.Revoke(r.Context(), claims.SessionID, until); err != nil {
		log.Error("failed to revoke session", sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	if err := h.sessions.Remove(r.Context(), claims.SessionID); err != nil {
		log.Error("failed to close session", sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	log.Info("logged out", slog.String("user_uid", claims.UserUID))
	response.OK(w, r, nil)
}

func (h *Handler) openSession(w http.ResponseWriter, r *http.Request, log *slog.Logger, sess *authsvc.Session) {
	s, err := h.sessions.Open(r.Context(), sess.SessionID, sess.User)
	if err != nil {
		log.Error("failed to open session", sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	log.Info("session opened", slog.String("user_uid", sess.User.ID))
	response.OK(w, r, SessionResponse{Token: sess.Token, State: s.Snapshot()})
}

// Package middlewarectx содержит HTTP middleware для проверки JWT, привязки
// запроса к Store сессии, ограничения частоты запросов и проверки роли.
//
// JWTMiddleware проверяет токен из заголовка Authorization и кладёт в
// контекст его claims и Store сессии. Если сессии нет в реестре (например,
// после перезапуска сервиса), она открывается заново по пользователю из
// токена. Токен сессии, из которой пользователь вышел, отклоняется. В
// случае ошибки проверки возвращает HTTP 401 Unauthorized.
package middlewarectx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/planzy/internal/http/response"
	"github.com/magabrotheeeer/planzy/internal/lib/jwt"
	"github.com/magabrotheeeer/planzy/internal/lib/sl"
	"github.com/magabrotheeeer/planzy/internal/models"
	"github.com/magabrotheeeer/planzy/internal/store"
)

// Key тип для ключей контекста HTTP-запроса.
type Key string

const (
	// Claims — ключ для claims JWT в контексте.
	Claims Key = "claims"
	// Session — ключ для Store сессии в контексте.
	Session Key = "session"
)

// TokenValidator проверяет JWT.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*jwt.CustomClaims, error)
}

// Sessions — реестр Store сессий.
type Sessions interface {
	Get(sessionID string) (*store.Store, bool)
	Open(ctx context.Context, sessionID string, user *models.User) (*store.Store, error)
}

// Revocations сообщает, вышел ли пользователь из сессии.
type Revocations interface {
	IsRevoked(ctx context.Context, sessionID string) (bool, error)
}

// UserLoader загружает пользователя для восстановления сессии.
type UserLoader interface {
	GetUserByID(ctx context.Context, userUID string) (*models.User, error)
}

// JWTMiddleware возвращает HTTP middleware, который проверяет JWT в заголовке
// Authorization и привязывает запрос к Store сессии.
func JWTMiddleware(auth TokenValidator, sessions Sessions, revoked Revocations, users UserLoader,
	log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.JWTMiddleware"
			log := log.With(
				slog.String("op", op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)

			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				log.Error("missing or invalid authorization header")
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.Error("missing or invalid authorization header"))
				return
			}
			tokenStr := strings.TrimPrefix(authHeader, "Bearer ")

			claims, err := auth.ValidateToken(r.Context(), tokenStr)
			if err != nil || claims.SessionID == "" {
				log.Error("invalid or expired token", sl.Err(err))
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.Error("invalid or expired token"))
				return
			}

			isRevoked, err := revoked.IsRevoked(r.Context(), claims.SessionID)
			if err != nil {
				log.Error("failed to check session revocation", sl.Err(err))
				response.Fail(w, r, err)
				return
			}
			if isRevoked {
				log.Info("token of a closed session", slog.String("user_uid", claims.UserUID))
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.Error("session is closed"))
				return
			}

			s, ok := sessions.Get(claims.SessionID)
			if !ok {
				s, err = restore(r.Context(), sessions, users, claims)
				if err != nil {
					log.Error("failed to restore session", slog.String("user_uid", claims.UserUID), sl.Err(err))
					if errors.Is(err, models.ErrNotFound) {
						render.Status(r, http.StatusUnauthorized)
						render.JSON(w, r, response.Error("user no longer exists"))
						return
					}
					response.Fail(w, r, err)
					return
				}
				log.Info("session restored", slog.String("user_uid", claims.UserUID))
			}

			ctx := context.WithValue(r.Context(), Claims, claims)
			ctx = context.WithValue(ctx, Session, s)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func restore(ctx context.Context, sessions Sessions, users UserLoader, claims *jwt.CustomClaims) (*store.Store, error) {
	user, err := users.GetUserByID(ctx, claims.UserUID)
	if err != nil {
		return nil, err
	}
	return sessions.Open(ctx, claims.SessionID, user)
}

// StoreFrom возвращает Store сессии текущего запроса.
func StoreFrom(ctx context.Context) (*store.Store, bool) {
	s, ok := ctx.Value(Session).(*store.Store)
	return s, ok && s != nil
}

// ClaimsFrom возвращает claims JWT текущего запроса.
func ClaimsFrom(ctx context.Context) (*jwt.CustomClaims, bool) {
	c, ok := ctx.Value(Claims).(*jwt.CustomClaims)
	return c, ok && c != nil
}

// WithSession кладёт Store и claims в контекст. Используется в тестах
// обработчиков.
func WithSession(ctx context.Context, s *store.Store, claims *jwt.CustomClaims) context.Context {
	ctx = context.WithValue(ctx, Session, s)
	return context.WithValue(ctx, Claims, claims)
}

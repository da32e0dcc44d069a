// Package request содержит общие шаги HTTP-обработчиков: разбор и проверку
// тела запроса, получение Store сессии и ожидание синхронизации действия.
package request

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/planzy/internal/http/middlewarectx"
	"github.com/magabrotheeeer/planzy/internal/http/response"
	"github.com/magabrotheeeer/planzy/internal/lib/sl"
	"github.com/magabrotheeeer/planzy/internal/store"
)

// SyncTimeout ограничивает ожидание синхронизации действия в рамках запроса.
const SyncTimeout = 15 * time.Second

// Logger возвращает логгер запроса с op и request_id.
func Logger(log *slog.Logger, r *http.Request, op string) *slog.Logger {
	return log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)
}

// Decode разбирает JSON-тело в dst и проверяет его валидатором. При ошибке
// ответ уже записан и возвращается false.
func Decode(w http.ResponseWriter, r *http.Request, log *slog.Logger, validate *validator.Validate, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		log.Error("failed to decode request", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return false
	}

	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			log.Error("validation failed", sl.Err(err))
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("invalid request body"))
			return false
		}
		log.Info("validation failed", sl.Err(err))
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(verrs))
		return false
	}
	return true
}

// Session возвращает Store сессии из контекста или отвечает 401.
func Session(w http.ResponseWriter, r *http.Request, log *slog.Logger) (*store.Store, bool) {
	s, ok := middlewarectx.StoreFrom(r.Context())
	if !ok {
		log.Error("session not found in context")
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return nil, false
	}
	return s, true
}

// Await ждёт синхронизации действия, но не дольше SyncTimeout и жизни запроса.
func Await(ctx context.Context, p *store.Pending) error {
	if p == nil {
		return nil
	}
	ctx, cancel := WithTimeout(ctx)
	defer cancel()
	return p.Wait(ctx)
}

// WithTimeout ограничивает синхронный вызов хранилища SyncTimeout.
func WithTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, SyncTimeout)
}

// Finish ждёт синхронизации и отвечает data либо ошибкой. msg пишется в
// лог при успехе.
func Finish(w http.ResponseWriter, r *http.Request, log *slog.Logger, p *store.Pending, msg string, data any) {
	if err := Await(r.Context(), p); err != nil {
		log.Error("action was not saved", sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	log.Info(msg)
	response.OK(w, r, data)
}

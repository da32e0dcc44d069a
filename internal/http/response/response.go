// Package response содержит вспомогательные типы и функции для формирования
// унифицированных JSON‑ответов HTTP‑обработчиков: успешных ответов, ошибок
// и сообщений валидации в едином формате.
package response

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/planzy/internal/lib/jwt"
	"github.com/magabrotheeeer/planzy/internal/models"
	"github.com/magabrotheeeer/planzy/internal/paymentprovider"
	authsvc "github.com/magabrotheeeer/planzy/internal/services/auth"
	"github.com/magabrotheeeer/planzy/internal/store"
)

// Response описывает стандартную структуру JSON‑ответа сервера.
// Поле Status — статус запроса ("OK" или "Error").
// Поле Error — текст ошибки (опционально, при неуспехе).
// Поле Data — данные ответа (опционально, при успехе).
type Response struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
	Data   any    `json:"data,omitempty"`
}

// ErrorResponse — структура ошибки для Swagger-документации.
// Используется в аннотациях @Failure как возвращаемый тип ошибки.
type ErrorResponse struct {
	Status string `json:"status" example:"Error"`
	Error  string `json:"error" example:"invalid request body"`
}

const (
	// StatusOK — значение статуса для успешного ответа.
	StatusOK = "OK"
	// StatusError — значение статуса для ответа с ошибкой.
	StatusError = "Error"
)

// StatusOKWithData возвращает успешный Response с переданными данными.
func StatusOKWithData(data any) Response {
	return Response{
		Status: StatusOK,
		Data:   data,
	}
}

// Error возвращает Response с ошибкой и переданным сообщением.
func Error(msg string) ErrorResponse {
	return ErrorResponse{
		Status: StatusError,
		Error:  msg,
	}
}

// ValidationError формирует Response со статусом Error на основе ошибок валидации.
// Каждое нарушение формируется в человеко‑читаемый текст, объединённый через запятую.
func ValidationError(errs validator.ValidationErrors) Response {
	var errsMsgs []string

	for _, err := range errs {
		switch err.ActualTag() {
		case "required":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s is a required field", err.Field()))
		case "alphanum":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s can contain only numbers and letters", err.Field()))
		case "numeric":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s can contain only numbers", err.Field()))
		case "email":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s must be a valid email", err.Field()))
		case "uuid", "uuid4":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s can contain only uuid", err.Field()))
		case "oneof":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s must be one of [%s]", err.Field(), err.Param()))
		case "min", "gte":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s must be at least %s", err.Field(), err.Param()))
		case "max", "lte":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s must be at most %s", err.Field(), err.Param()))
		case "len":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s must be exactly %s long", err.Field(), err.Param()))
		default:
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s is not a valid", err.Field()))
		}
	}
	return Response{
		Status: StatusError,
		Error:  strings.Join(errsMsgs, ", "),
	}
}

var statuses = []struct {
	err    error
	status int
}{
	{models.ErrInvalidInput, http.StatusUnprocessableEntity},
	{models.ErrInvalidAmount, http.StatusUnprocessableEntity},
	{models.ErrInvalidCode, http.StatusUnprocessableEntity},
	{models.ErrCodeExpired, http.StatusGone},
	{paymentprovider.ErrDeclined, http.StatusPaymentRequired},
	{models.ErrNotAuthenticated, http.StatusUnauthorized},
	{authsvc.ErrInvalidCredentials, http.StatusUnauthorized},
	{jwt.ErrInvalidToken, http.StatusUnauthorized},
	{authsvc.ErrEmailNotVerified, http.StatusForbidden},
	{models.ErrForbidden, http.StatusForbidden},
	{models.ErrPremiumRequired, http.StatusForbidden},
	{models.ErrUnderage, http.StatusForbidden},
	{models.ErrBlocked, http.StatusForbidden},
	{models.ErrNotFound, http.StatusNotFound},
	{authsvc.ErrUnknownProvider, http.StatusNotFound},
	{models.ErrPlanFull, http.StatusConflict},
	{models.ErrAlreadyJoined, http.StatusConflict},
	{models.ErrNotJoined, http.StatusConflict},
	{models.ErrInsufficientFunds, http.StatusConflict},
	{models.ErrPlanLimitReached, http.StatusConflict},
	{models.ErrParticipantLimit, http.StatusConflict},
	{models.ErrEmailTaken, http.StatusConflict},
	{models.ErrAlreadyExists, http.StatusConflict},
	{store.ErrQueueFull, http.StatusConflict},
	{store.ErrClosed, http.StatusConflict},
}

// StatusFor сопоставляет ошибку сервиса HTTP-статусу и тексту для клиента.
// Доменная причина важнее обёртки: отклонённая базой синхронизация
// ErrPlanFull отдаёт 409, а не 502.
func StatusFor(err error) (int, string) {
	for _, s := range statuses {
		if errors.Is(err, s.err) {
			return s.status, s.err.Error()
		}
	}
	var syncErr *store.SyncFailedError
	if errors.As(err, &syncErr) {
		return http.StatusBadGateway, "failed to save changes, please retry"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout, "request timed out"
	}
	return http.StatusInternalServerError, "internal error"
}

// Fail записывает ответ с ошибкой и статусом, выбранным StatusFor.
func Fail(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := StatusFor(err)
	render.Status(r, status)
	render.JSON(w, r, Error(msg))
}

// OK записывает успешный ответ с данными.
func OK(w http.ResponseWriter, r *http.Request, data any) {
	render.JSON(w, r, StatusOKWithData(data))
}

// Package admin реализует административные обработчики: список
// пользователей и очистку неподтверждённых учётных записей.
package admin

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/render"

	"github.com/magabrotheeeer/planzy/internal/http/request"
	"github.com/magabrotheeeer/planzy/internal/http/response"
	"github.com/magabrotheeeer/planzy/internal/lib/sl"
	"github.com/magabrotheeeer/planzy/internal/models"
)

// Service описывает административные операции хранилища.
type Service interface {
	ListUsers(ctx context.Context) ([]models.User, error)
	DeleteAllUnverifiedUsers(ctx context.Context) (int64, error)
	DeleteUserByEmail(ctx context.Context, email string, includeVerified bool) (int64, error)
}

// Handler обрабатывает административные запросы.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// DeletedResponse — число удалённых пользователей.
type DeletedResponse struct {
	Deleted int64 `json:"deleted"`
}

// ListUsers godoc
// @Summary Все пользователи
// @Tags Admin
// @Produce  json
// @Security BearerAuth
// @Success 200 {array} models.User
// @Failure 403 {object} response.ErrorResponse "Нужна роль admin"
// @Router /admin/users [get]
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.ListUsers"
	log := request.Logger(h.log, r, op)

	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		log.Error("failed to list users", sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	if users == nil {
		users = []models.User{}
	}
	response.OK(w, r, users)
}

// DeleteUnverified godoc
// @Summary Удалить пользователей с неподтверждённой почтой
// @Tags Admin
// @Produce  json
// @Security BearerAuth
// @Success 200 {object} DeletedResponse
// @Router /admin/users/unverified [delete]
func (h *Handler) DeleteUnverified(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.DeleteUnverified"
	log := request.Logger(h.log, r, op)

	n, err := h.service.DeleteAllUnverifiedUsers(r.Context())
	if err != nil {
		log.Error("failed to delete unverified users", sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	log.Info("unverified users deleted", slog.Int64("count", n))
	response.OK(w, r, DeletedResponse{Deleted: n})
}

// DeleteByEmail godoc
// @Summary Удалить пользователя по email
// @Description Без include_verified удаляется только неподтверждённая учётная запись.
// @Tags Admin
// @Produce  json
// @Security BearerAuth
// @Param email query string true "Email пользователя"
// @Param include_verified query bool false "Удалить и подтверждённого"
// @Success 200 {object} DeletedResponse
// @Failure 400 {object} response.ErrorResponse "Не указан email"
// @Router /admin/users [delete]
func (h *Handler) DeleteByEmail(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.DeleteByEmail"
	log := request.Logger(h.log, r, op)

	email := r.URL.Query().Get("email")
	if email == "" {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("email query parameter is required"))
		return
	}
	includeVerified := false
	if raw := r.URL.Query().Get("include_verified"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("include_verified must be a boolean"))
			return
		}
		includeVerified = v
	}

	n, err := h.service.DeleteUserByEmail(r.Context(), email, includeVerified)
	if err != nil {
		log.Error("failed to delete user", sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	log.Info("user deleted by admin", slog.Int64("count", n), slog.Bool("include_verified", includeVerified))
	response.OK(w, r, DeletedResponse{Deleted: n})
}

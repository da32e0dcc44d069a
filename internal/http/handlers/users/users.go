// Package users реализует блокировку пользователей и жалобы на них.
package users

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/planzy/internal/http/request"
	"github.com/magabrotheeeer/planzy/internal/http/response"
	"github.com/magabrotheeeer/planzy/internal/models"
	"github.com/magabrotheeeer/planzy/internal/store"
)

// Handler обрабатывает действия над другими пользователями.
type Handler struct {
	log      *slog.Logger
	validate *validator.Validate
}

// New создает новый Handler.
func New(log *slog.Logger) *Handler {
	return &Handler{log: log, validate: validator.New()}
}

// BlockedResponse — список заблокированных пользователей.
type BlockedResponse struct {
	BlockedUsers []string `json:"blocked_users"`
}

// Block godoc
// @Summary Заблокировать пользователя
// @Description Личный чат с заблокированным пользователем открыть нельзя.
// @Tags Users
// @Produce  json
// @Security BearerAuth
// @Param id path string true "ID пользователя"
// @Success 200 {object} BlockedResponse
// @Router /users/{id}/block [post]
func (h *Handler) Block(w http.ResponseWriter, r *http.Request) {
	h.changeBlocked(w, r, "handlers.users.Block", true)
}

// Unblock godoc
// @Summary Разблокировать пользователя
// @Tags Users
// @Produce  json
// @Security BearerAuth
// @Param id path string true "ID пользователя"
// @Success 200 {object} BlockedResponse
// @Router /users/{id}/block [delete]
func (h *Handler) Unblock(w http.ResponseWriter, r *http.Request) {
	h.changeBlocked(w, r, "handlers.users.Unblock", false)
}

func (h *Handler) changeBlocked(w http.ResponseWriter, r *http.Request, op string, block bool) {
	log := request.Logger(h.log, r, op)

	s, ok := request.Session(w, r, log)
	if !ok {
		return
	}
	target := chi.URLParam(r, "id")
	action := s.UnblockUser
	if block {
		action = s.BlockUser
	}
	p, err := action(target)
	if err != nil {
		response.Fail(w, r, err)
		return
	}
	finish(w, r, log.With(slog.String("target_id", target), slog.Bool("blocked", block)), s, p)
}

func finish(w http.ResponseWriter, r *http.Request, log *slog.Logger, s *store.Store, p *store.Pending) {
	if err := request.Await(r.Context(), p); err != nil {
		response.Fail(w, r, err)
		return
	}
	log.Info("blocked users changed")
	response.OK(w, r, BlockedResponse{BlockedUsers: s.Snapshot().BlockedUsers})
}

// Report godoc
// @Summary Пожаловаться на пользователя
// @Tags Users
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param id path string true "ID пользователя"
// @Param request body models.ReportInput true "Причина жалобы"
// @Success 200 {object} response.Response
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Router /users/{id}/report [post]
func (h *Handler) Report(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.users.Report"
	log := request.Logger(h.log, r, op)

	s, ok := request.Session(w, r, log)
	if !ok {
		return
	}
	var in models.ReportInput
	if !request.Decode(w, r, log, h.validate, &in) {
		return
	}
	target := chi.URLParam(r, "id")
	p, err := s.ReportUser(target, in.Reason)
	if err != nil {
		response.Fail(w, r, err)
		return
	}
	request.Finish(w, r, log.With(slog.String("target_id", target)), p, "user reported",
		map[string]string{"reported_id": target})
}

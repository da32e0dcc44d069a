// Package notifications реализует HTTP-обработчики уведомлений пользователя.
package notifications

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"

	"github.com/magabrotheeeer/planzy/internal/http/request"
	"github.com/magabrotheeeer/planzy/internal/http/response"
	"github.com/magabrotheeeer/planzy/internal/models"
)

// Handler обрабатывает запросы к уведомлениям.
type Handler struct {
	log *slog.Logger
}

// New создает новый Handler.
func New(log *slog.Logger) *Handler {
	return &Handler{log: log}
}

// ListResponse — уведомления и число непрочитанных.
type ListResponse struct {
	Notifications []models.Notification `json:"notifications"`
	Unread        int                   `json:"unread"`
}

// List godoc
// @Summary Уведомления пользователя
// @Description Новые сверху. ?unread=true оставляет только непрочитанные.
// @Tags Notifications
// @Produce  json
// @Security BearerAuth
// @Param unread query bool false "Только непрочитанные"
// @Success 200 {object} ListResponse
// @Router /notifications [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.notifications.List"
	log := request.Logger(h.log, r, op)

	s, ok := request.Session(w, r, log)
	if !ok {
		return
	}
	onlyUnread := r.URL.Query().Get("unread") == "true"

	res := ListResponse{Notifications: make([]models.Notification, 0)}
	for _, n := range s.Snapshot().Notifications {
		if !n.Read {
			res.Unread++
		}
		if onlyUnread && n.Read {
			continue
		}
		res.Notifications = append(res.Notifications, n)
	}
	response.OK(w, r, res)
}

// Read godoc
// @Summary Отметить уведомление прочитанным
// @Tags Notifications
// @Produce  json
// @Security BearerAuth
// @Param id path string true "ID уведомления"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse "Уведомление не найдено"
// @Router /notifications/{id}/read [post]
func (h *Handler) Read(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.notifications.Read"
	log := request.Logger(h.log, r, op)

	s, ok := request.Session(w, r, log)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	p, err := s.MarkNotificationRead(id)
	if err != nil {
		response.Fail(w, r, err)
		return
	}
	request.Finish(w, r, log.With(slog.String("notification_id", id)), p, "notification read",
		map[string]string{"id": id})
}

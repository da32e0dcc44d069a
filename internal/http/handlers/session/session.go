// Package session реализует HTTP-обработчики снимка состояния сессии и
// принудительной синхронизации с хранилищем.
package session

import (
	"log/slog"
	"net/http"

	"github.com/magabrotheeeer/planzy/internal/http/request"
	"github.com/magabrotheeeer/planzy/internal/http/response"
	"github.com/magabrotheeeer/planzy/internal/lib/sl"
)

// Handler обрабатывает запросы к состоянию сессии.
type Handler struct {
	log *slog.Logger
}

// New создает новый Handler.
func New(log *slog.Logger) *Handler {
	return &Handler{log: log}
}

// State godoc
// @Summary Состояние сессии
// @Description Возвращает снимок состояния, включая оптимистичные изменения и ошибки синхронизации.
// @Tags Session
// @Produce  json
// @Security BearerAuth
// @Success 200 {object} store.State
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Router /state [get]
func (h *Handler) State(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.session.State"
	log := request.Logger(h.log, r, op)

	s, ok := request.Session(w, r, log)
	if !ok {
		return
	}
	response.OK(w, r, s.Snapshot())
}

// Sync godoc
// @Summary Синхронизация
// @Description Дожидается очереди синхронизации и перечитывает состояние из хранилища.
// @Tags Session
// @Produce  json
// @Security BearerAuth
// @Success 200 {object} store.State
// @Failure 500 {object} response.ErrorResponse "Ошибка хранилища"
// @Router /sync [post]
func (h *Handler) Sync(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.session.Sync"
	log := request.Logger(h.log, r, op)

	s, ok := request.Session(w, r, log)
	if !ok {
		return
	}
	if err := s.Sync(r.Context()); err != nil {
		log.Error("failed to sync session", sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	log.Info("session synced")
	response.OK(w, r, s.Snapshot())
}

// DismissErrors godoc
// @Summary Скрыть ошибки синхронизации
// @Tags Session
// @Produce  json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Router /sync-errors [delete]
func (h *Handler) DismissErrors(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.session.DismissErrors"
	log := request.Logger(h.log, r, op)

	s, ok := request.Session(w, r, log)
	if !ok {
		return
	}
	s.DismissSyncErrors()
	response.OK(w, r, nil)
}

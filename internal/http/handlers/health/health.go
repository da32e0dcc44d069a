// Package health реализует проверку готовности сервиса.
package health

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/render"

	"github.com/magabrotheeeer/planzy/internal/http/response"
	"github.com/magabrotheeeer/planzy/internal/lib/sl"
)

// checkTimeout ограничивает одну проверку зависимости.
const checkTimeout = 2 * time.Second

// Check проверяет доступность зависимости.
type Check func(ctx context.Context) error

// Handler отвечает статусом сервиса и его зависимостей.
type Handler struct {
	log    *slog.Logger
	checks map[string]Check
}

// New создает новый Handler. checks может быть пустым: тогда проверяется
// только то, что процесс отвечает.
func New(log *slog.Logger, checks map[string]Check) *Handler {
	return &Handler{
		log:    log,
		checks: checks,
	}
}

// ServeHTTP godoc
// @Summary Проверка готовности
// @Tags Health
// @Produce  json
// @Success 200 {object} response.Response
// @Failure 503 {object} response.Response
// @Router /health [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.health"
	log := h.log.With(slog.String("op", op))

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := map[string]string{"status": "ok"}
	healthy := true
	for _, name := range names {
		ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
		err := h.checks[name](ctx)
		cancel()
		if err != nil {
			log.Warn("dependency is unhealthy", slog.String("dependency", name), sl.Err(err))
			status[name] = "unavailable"
			healthy = false
			continue
		}
		status[name] = "ok"
	}

	if !healthy {
		status["status"] = "degraded"
		render.Status(r, http.StatusServiceUnavailable)
	}
	render.JSON(w, r, response.StatusOKWithData(status))
}

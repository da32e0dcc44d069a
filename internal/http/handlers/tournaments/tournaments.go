// Package tournaments реализует HTTP-обработчики турниров.
package tournaments

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/planzy/internal/http/request"
	"github.com/magabrotheeeer/planzy/internal/http/response"
	"github.com/magabrotheeeer/planzy/internal/lib/sl"
	"github.com/magabrotheeeer/planzy/internal/models"
)

// Handler обрабатывает запросы к турнирам.
type Handler struct {
	log      *slog.Logger
	validate *validator.Validate
}

// New создает новый Handler.
func New(log *slog.Logger) *Handler {
	return &Handler{log: log, validate: validator.New()}
}

// List godoc
// @Summary Список турниров
// @Tags Tournaments
// @Produce  json
// @Security BearerAuth
// @Param plan_id query string false "Турнир конкретного плана"
// @Success 200 {array} models.Tournament
// @Router /tournaments [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.tournaments.List"
	log := request.Logger(h.log, r, op)

	s, ok := request.Session(w, r, log)
	if !ok {
		return
	}
	planID := r.URL.Query().Get("plan_id")
	out := make([]models.Tournament, 0)
	for _, t := range s.Snapshot().Tournaments {
		if planID == "" || t.PlanID == planID {
			out = append(out, t)
		}
	}
	response.OK(w, r, out)
}

// Create godoc
// @Summary Создать турнир для плана
// @Description Доступно создателю плана на тарифе club. Без teams создаётся team_count пустых команд (по умолчанию 2).
// @Tags Tournaments
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param request body models.TournamentInput true "Параметры турнира"
// @Success 201 {object} models.Tournament
// @Failure 403 {object} response.ErrorResponse "Нужен тариф club или пользователь не создатель плана"
// @Failure 409 {object} response.ErrorResponse "У плана уже есть турнир"
// @Router /tournaments [post]
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.tournaments.Create"
	log := request.Logger(h.log, r, op)

	s, ok := request.Session(w, r, log)
	if !ok {
		return
	}
	var in models.TournamentInput
	if !request.Decode(w, r, log, h.validate, &in) {
		return
	}
	tournament, p, err := s.AddTournament(in)
	if err != nil {
		log.Info("tournament rejected", slog.String("plan_id", in.PlanID), sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	if err = request.Await(r.Context(), p); err != nil {
		log.Error("tournament was not saved", slog.String("plan_id", in.PlanID), sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	for _, t := range s.Snapshot().Tournaments {
		if t.ID == tournament.ID {
			tournament = &t
			break
		}
	}
	log.Info("tournament created", slog.String("tournament_id", tournament.ID))
	render.Status(r, http.StatusCreated)
	response.OK(w, r, tournament)
}

// Package premium реализует смену тарифа пользователя.
package premium

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/planzy/internal/http/request"
	"github.com/magabrotheeeer/planzy/internal/http/response"
	"github.com/magabrotheeeer/planzy/internal/lib/sl"
	"github.com/magabrotheeeer/planzy/internal/models"
)

// Handler обрабатывает запросы смены тарифа.
type Handler struct {
	log      *slog.Logger
	validate *validator.Validate
}

// New создает новый Handler.
func New(log *slog.Logger) *Handler {
	return &Handler{log: log, validate: validator.New()}
}

// Status — текущий тариф пользователя.
type Status struct {
	Plan      models.PremiumPlan `json:"plan"`
	ExpiresAt *time.Time         `json:"expires_at,omitempty"`
}

// Set godoc
// @Summary Сменить тариф
// @Description pro и club действуют 30 дней. С pay_with_wallet цена списывается с кошелька.
// @Tags Premium
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param request body models.PremiumInput true "Тариф"
// @Success 200 {object} Status
// @Failure 409 {object} response.ErrorResponse "Недостаточно средств"
// @Failure 422 {object} response.ErrorResponse "Неизвестный тариф"
// @Router /premium [put]
func (h *Handler) Set(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.premium.Set"
	log := request.Logger(h.log, r, op)

	s, ok := request.Session(w, r, log)
	if !ok {
		return
	}
	var in models.PremiumInput
	if !request.Decode(w, r, log, h.validate, &in) {
		return
	}
	p, err := s.SetPremiumPlan(in.Plan, in.PayWithWallet)
	if err != nil {
		log.Info("premium change rejected", slog.String("plan", string(in.Plan)), sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	if err = request.Await(r.Context(), p); err != nil {
		log.Error("premium change was not saved", sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	log.Info("premium plan changed", slog.String("plan", string(in.Plan)), slog.Bool("wallet", in.PayWithWallet))
	st := s.Snapshot()
	response.OK(w, r, Status{Plan: st.PremiumPlan, ExpiresAt: st.PremiumExpiresAt})
}

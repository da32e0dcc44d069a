// Package profile реализует HTTP-обработчики профиля пользователя, его
// настроек и сохранённых способов выплат.
package profile

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/planzy/internal/http/request"
	"github.com/magabrotheeeer/planzy/internal/http/response"
	"github.com/magabrotheeeer/planzy/internal/lib/sl"
	"github.com/magabrotheeeer/planzy/internal/models"
	"github.com/magabrotheeeer/planzy/internal/store"
)

// Handler обрабатывает запросы к профилю.
type Handler struct {
	log      *slog.Logger
	validate *validator.Validate
}

// New создает новый Handler.
func New(log *slog.Logger) *Handler {
	return &Handler{log: log, validate: validator.New()}
}

// Update godoc
// @Summary Обновить профиль
// @Tags Profile
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param request body models.UserUpdate true "Изменяемые поля"
// @Success 200 {object} models.User
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 502 {object} response.ErrorResponse "Изменение не сохранено"
// @Router /me [patch]
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.profile.Update"
	log := request.Logger(h.log, r, op)

	s, ok := request.Session(w, r, log)
	if !ok {
		return
	}
	var upd models.UserUpdate
	if !request.Decode(w, r, log, h.validate, &upd) {
		return
	}
	// Верификация и платёжные данные меняются своими действиями.
	upd.IsVerified, upd.SavedPaymentMethods, upd.PaidPlans = nil, nil, nil

	p, err := s.UpdateUser(upd)
	if err != nil {
		log.Info("profile update rejected", sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	h.finishUser(w, r, log, s, p, "profile updated")
}

// Verify godoc
// @Summary Отметить профиль проверенным
// @Tags Profile
// @Produce  json
// @Security BearerAuth
// @Success 200 {object} models.User
// @Router /me/verify [post]
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.profile.Verify"
	log := request.Logger(h.log, r, op)

	s, ok := request.Session(w, r, log)
	if !ok {
		return
	}
	p, err := s.VerifyUser()
	if err != nil {
		response.Fail(w, r, err)
		return
	}
	h.finishUser(w, r, log, s, p, "profile verified")
}

// Settings godoc
// @Summary Изменить настройки
// @Description Язык, уведомления, предпочитаемый способ оплаты и местоположение.
// @Tags Profile
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param request body models.SettingsInput true "Настройки"
// @Success 200 {object} store.State
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Router /me/settings [put]
func (h *Handler) Settings(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.profile.Settings"
	log := request.Logger(h.log, r, op)

	s, ok := request.Session(w, r, log)
	if !ok {
		return
	}
	var in models.SettingsInput
	if !request.Decode(w, r, log, h.validate, &in) {
		return
	}

	var actions []func() (*store.Pending, error)
	if in.Language != nil {
		actions = append(actions, func() (*store.Pending, error) { return s.SetLanguage(*in.Language) })
	}
	if in.NotificationSettings != nil {
		actions = append(actions, func() (*store.Pending, error) {
			return s.UpdateNotificationSettings(*in.NotificationSettings)
		})
	}
	if in.PreferredPaymentMethod != nil {
		actions = append(actions, func() (*store.Pending, error) {
			return s.SetPreferredPaymentMethod(*in.PreferredPaymentMethod)
		})
	}
	if in.Location != nil || in.ClearLocation {
		actions = append(actions, func() (*store.Pending, error) { return s.SetUserLocation(in.Location) })
	}

	var pending []*store.Pending
	for _, action := range actions {
		p, err := action()
		if err != nil {
			log.Info("settings change rejected", sl.Err(err))
			response.Fail(w, r, err)
			return
		}
		pending = append(pending, p)
	}
	for _, p := range pending {
		if err := request.Await(r.Context(), p); err != nil {
			log.Error("settings were not saved", sl.Err(err))
			response.Fail(w, r, err)
			return
		}
	}
	log.Info("settings updated", slog.Int("changes", len(pending)))
	response.OK(w, r, s.Snapshot())
}

// PaymentMethods godoc
// @Summary Сохранённые способы выплат
// @Tags PaymentMethods
// @Produce  json
// @Security BearerAuth
// @Success 200 {array} models.PaymentMethodConfig
// @Router /payment-methods [get]
func (h *Handler) PaymentMethods(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.profile.PaymentMethods"
	log := request.Logger(h.log, r, op)

	s, ok := request.Session(w, r, log)
	if !ok {
		return
	}
	response.OK(w, r, s.Snapshot().SavedPaymentMethods)
}

// AddPaymentMethod godoc
// @Summary Сохранить способ выплат
// @Description Заменяет способ того же типа. Первый сохранённый способ становится основным.
// @Tags PaymentMethods
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param request body models.PaymentMethodConfig true "Способ выплат"
// @Success 200 {array} models.PaymentMethodConfig
// @Failure 422 {object} response.ErrorResponse "Не заполнены реквизиты"
// @Router /payment-methods [post]
func (h *Handler) AddPaymentMethod(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.profile.AddPaymentMethod"
	log := request.Logger(h.log, r, op)

	s, ok := request.Session(w, r, log)
	if !ok {
		return
	}
	var m models.PaymentMethodConfig
	if !request.Decode(w, r, log, h.validate, &m) {
		return
	}
	p, err := s.AddSavedPaymentMethod(m)
	if err != nil {
		response.Fail(w, r, err)
		return
	}
	h.finishMethods(w, r, log, s, p, "payment method saved")
}

// RemovePaymentMethod godoc
// @Summary Удалить способ выплат
// @Tags PaymentMethods
// @Produce  json
// @Security BearerAuth
// @Param type path string true "bank, bizum или paypal"
// @Success 200 {array} models.PaymentMethodConfig
// @Failure 404 {object} response.ErrorResponse "Способ не сохранён"
// @Router /payment-methods/{type} [delete]
func (h *Handler) RemovePaymentMethod(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.profile.RemovePaymentMethod"
	log := request.Logger(h.log, r, op)

	s, ok := request.Session(w, r, log)
	if !ok {
		return
	}
	p, err := s.RemoveSavedPaymentMethod(models.SavedPaymentType(chi.URLParam(r, "type")))
	if err != nil {
		response.Fail(w, r, err)
		return
	}
	h.finishMethods(w, r, log, s, p, "payment method removed")
}

// SetDefaultPaymentMethod godoc
// @Summary Сделать способ выплат основным
// @Tags PaymentMethods
// @Produce  json
// @Security BearerAuth
// @Param type path string true "bank, bizum или paypal"
// @Success 200 {array} models.PaymentMethodConfig
// @Failure 404 {object} response.ErrorResponse "Способ не сохранён"
// @Router /payment-methods/{type}/default [put]
func (h *Handler) SetDefaultPaymentMethod(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.profile.SetDefaultPaymentMethod"
	log := request.Logger(h.log, r, op)

	s, ok := request.Session(w, r, log)
	if !ok {
		return
	}
	p, err := s.SetDefaultPaymentMethod(models.SavedPaymentType(chi.URLParam(r, "type")))
	if err != nil {
		response.Fail(w, r, err)
		return
	}
	h.finishMethods(w, r, log, s, p, "default payment method changed")
}

func (h *Handler) finishUser(w http.ResponseWriter, r *http.Request, log *slog.Logger, s *store.Store,
	p *store.Pending, msg string) {
	if err := request.Await(r.Context(), p); err != nil {
		log.Error("profile change was not saved", sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	log.Info(msg)
	response.OK(w, r, s.Snapshot().User)
}

func (h *Handler) finishMethods(w http.ResponseWriter, r *http.Request, log *slog.Logger, s *store.Store,
	p *store.Pending, msg string) {
	if err := request.Await(r.Context(), p); err != nil {
		log.Error("payment methods were not saved", sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	log.Info(msg)
	response.OK(w, r, s.Snapshot().SavedPaymentMethods)
}

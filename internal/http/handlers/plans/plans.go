// Package plans реализует HTTP-обработчики планов: список, создание,
// изменение, удаление, избранное, участие и оплату участия.
//
// Каждое изменение выполняется через Store сессии: предусловия проверяются
// сразу, а ответ отправляется после синхронизации с хранилищем.
package plans

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/planzy/internal/http/request"
	"github.com/magabrotheeeer/planzy/internal/http/response"
	"github.com/magabrotheeeer/planzy/internal/lib/sl"
	"github.com/magabrotheeeer/planzy/internal/models"
	"github.com/magabrotheeeer/planzy/internal/store"
)

// Handler обрабатывает запросы к планам.
type Handler struct {
	log      *slog.Logger
	validate *validator.Validate
}

// New создает новый Handler.
func New(log *slog.Logger) *Handler {
	return &Handler{log: log, validate: validator.New()}
}

// FavoriteResponse — результат переключения избранного.
type FavoriteResponse struct {
	PlanID   string `json:"plan_id"`
	Favorite bool   `json:"favorite"`
}

// List godoc
// @Summary Список планов
// @Tags Plans
// @Produce  json
// @Security BearerAuth
// @Param category query string false "Фильтр по категории"
// @Param city query string false "Фильтр по городу"
// @Success 200 {array} models.PlanJSON
// @Router /plans [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.plans.List"
	log := request.Logger(h.log, r, op)

	s, ok := request.Session(w, r, log)
	if !ok {
		return
	}
	category := r.URL.Query().Get("category")
	city := r.URL.Query().Get("city")

	out := make([]models.PlanJSON, 0)
	for _, p := range s.Snapshot().Plans {
		if category != "" && !strings.EqualFold(p.Category, category) {
			continue
		}
		if city != "" && !strings.EqualFold(p.Location.City, city) {
			continue
		}
		out = append(out, p.ToJSON())
	}
	response.OK(w, r, out)
}

// Get godoc
// @Summary План по ID
// @Tags Plans
// @Produce  json
// @Security BearerAuth
// @Param id path string true "ID плана"
// @Success 200 {object} models.PlanJSON
// @Failure 404 {object} response.ErrorResponse "План не найден"
// @Router /plans/{id} [get]
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.plans.Get"
	log := request.Logger(h.log, r, op)

	s, ok := request.Session(w, r, log)
	if !ok {
		return
	}
	p, ok := findPlan(s, chi.URLParam(r, "id"))
	if !ok {
		response.Fail(w, r, models.ErrNotFound)
		return
	}
	response.OK(w, r, p.ToJSON())
}

// Create godoc
// @Summary Создать план
// @Description Лимиты тарифа: free — 3 плана в месяц и до 10 участников, pro — 10 и 20, club — без ограничений.
// @Tags Plans
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param request body models.PlanInput true "Данные плана"
// @Success 201 {object} models.PlanJSON
// @Failure 409 {object} response.ErrorResponse "Превышен лимит тарифа"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Router /plans [post]
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.plans.Create"
	log := request.Logger(h.log, r, op)

	s, ok := request.Session(w, r, log)
	if !ok {
		return
	}
	var in models.PlanInput
	if !request.Decode(w, r, log, h.validate, &in) {
		return
	}

	plan, p, err := s.AddPlan(in)
	if err != nil {
		log.Info("plan rejected", sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	if err := request.Await(r.Context(), p); err != nil {
		log.Error("plan was not saved", sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	if saved, ok := findPlan(s, plan.ID); ok {
		plan = &saved
	}
	log.Info("plan created", slog.String("plan_id", plan.ID))
	render.Status(r, http.StatusCreated)
	response.OK(w, r, plan.ToJSON())
}

// Update godoc
// @Summary Изменить план
// @Description Доступно только создателю плана.
// @Tags Plans
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param id path string true "ID плана"
// @Param request body models.PlanUpdate true "Изменяемые поля"
// @Success 200 {object} models.PlanJSON
// @Failure 403 {object} response.ErrorResponse "Пользователь не создатель плана"
// @Failure 404 {object} response.ErrorResponse "План не найден"
// @Router /plans/{id} [put]
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.plans.Update"
	log := request.Logger(h.log, r, op)

	s, ok := request.Session(w, r, log)
	if !ok {
		return
	}
	var upd models.PlanUpdate
	if !request.Decode(w, r, log, h.validate, &upd) {
		return
	}
	id := chi.URLParam(r, "id")
	p, err := s.EditPlan(id, upd)
	if err != nil {
		response.Fail(w, r, err)
		return
	}
	h.finishPlan(w, r, log, s, p, id, "plan updated")
}

// Delete godoc
// @Summary Удалить план
// @Description Доступно только создателю плана. Удаляет и групповой чат плана.
// @Tags Plans
// @Produce  json
// @Security BearerAuth
// @Param id path string true "ID плана"
// @Success 200 {object} response.Response
// @Failure 403 {object} response.ErrorResponse "Пользователь не создатель плана"
// @Router /plans/{id} [delete]
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.plans.Delete"
	log := request.Logger(h.log, r, op)

	s, ok := request.Session(w, r, log)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	p, err := s.DeletePlan(id)
	if err != nil {
		response.Fail(w, r, err)
		return
	}
	request.Finish(w, r, log.With(slog.String("plan_id", id)), p, "plan deleted", map[string]string{"id": id})
}

// Favorite godoc
// @Summary Добавить или убрать из избранного
// @Tags Plans
// @Produce  json
// @Security BearerAuth
// @Param id path string true "ID плана"
// @Success 200 {object} FavoriteResponse
// @Router /plans/{id}/favorite [post]
func (h *Handler) Favorite(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.plans.Favorite"
	log := request.Logger(h.log, r, op)

	s, ok := request.Session(w, r, log)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	fav, err := s.ToggleFavorite(id)
	if err != nil {
		response.Fail(w, r, err)
		return
	}
	response.OK(w, r, FavoriteResponse{PlanID: id, Favorite: fav})
}

// Join godoc
// @Summary Присоединиться к плану
// @Tags Plans
// @Produce  json
// @Security BearerAuth
// @Param id path string true "ID плана"
// @Success 200 {object} models.PlanJSON
// @Failure 403 {object} response.ErrorResponse "Не подходит по возрасту"
// @Failure 409 {object} response.ErrorResponse "Мест нет или пользователь уже участвует"
// @Router /plans/{id}/join [post]
func (h *Handler) Join(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.plans.Join"
	log := request.Logger(h.log, r, op)

	s, ok := request.Session(w, r, log)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	p, err := s.JoinPlan(id)
	if err != nil {
		log.Info("join rejected", slog.String("plan_id", id), sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	h.finishPlan(w, r, log, s, p, id, "joined plan")
}

// Leave godoc
// @Summary Покинуть план
// @Description При refund оплаченное участие возвращается на кошелёк, создатель получает уведомление.
// @Tags Plans
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param id path string true "ID плана"
// @Param request body models.LeaveInput false "Возврат оплаты"
// @Success 200 {object} models.PlanJSON
// @Failure 409 {object} response.ErrorResponse "Пользователь не участвует"
// @Router /plans/{id}/leave [post]
func (h *Handler) Leave(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.plans.Leave"
	log := request.Logger(h.log, r, op)

	s, ok := request.Session(w, r, log)
	if !ok {
		return
	}
	var in models.LeaveInput
	if r.ContentLength != 0 && !request.Decode(w, r, log, h.validate, &in) {
		return
	}
	id := chi.URLParam(r, "id")
	p, err := s.LeavePlan(id, in.Refund)
	if err != nil {
		response.Fail(w, r, err)
		return
	}
	h.finishPlan(w, r, log, s, p, id, "left plan")
}

// Pay godoc
// @Summary Оплатить участие кошельком
// @Description Списывает цену плана с кошелька, записывает оплату и присоединяет к плану.
// @Tags Plans
// @Produce  json
// @Security BearerAuth
// @Param id path string true "ID плана"
// @Success 200 {object} models.PlanJSON
// @Failure 409 {object} response.ErrorResponse "Недостаточно средств"
// @Router /plans/{id}/pay [post]
func (h *Handler) Pay(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.plans.Pay"
	log := request.Logger(h.log, r, op)

	s, ok := request.Session(w, r, log)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	p, err := s.PayPlan(id)
	if err != nil {
		log.Info("payment rejected", slog.String("plan_id", id), sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	h.finishPlan(w, r, log, s, p, id, "plan paid")
}

// Chat godoc
// @Summary Групповой чат плана
// @Tags Plans
// @Produce  json
// @Security BearerAuth
// @Param id path string true "ID плана"
// @Success 200 {object} models.Chat
// @Failure 404 {object} response.ErrorResponse "Чат не найден"
// @Router /plans/{id}/chat [get]
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.plans.Chat"
	log := request.Logger(h.log, r, op)

	s, ok := request.Session(w, r, log)
	if !ok {
		return
	}
	chat, err := s.GetChatForPlan(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.Fail(w, r, err)
		return
	}
	response.OK(w, r, chat)
}

func (h *Handler) finishPlan(w http.ResponseWriter, r *http.Request, log *slog.Logger, s *store.Store,
	p *store.Pending, planID, msg string) {
	if err := request.Await(r.Context(), p); err != nil {
		log.Error("plan change was not saved", slog.String("plan_id", planID), sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	log.Info(msg, slog.String("plan_id", planID))
	plan, ok := findPlan(s, planID)
	if !ok {
		response.OK(w, r, nil)
		return
	}
	response.OK(w, r, plan.ToJSON())
}

func findPlan(s *store.Store, planID string) (models.Plan, bool) {
	for _, p := range s.Snapshot().Plans {
		if p.ID == planID {
			return p, true
		}
	}
	return models.Plan{}, false
}

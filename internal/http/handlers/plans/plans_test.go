package plans

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/planzy/internal/http/handlers/handlertest"
	"github.com/magabrotheeeer/planzy/internal/models"
	"github.com/magabrotheeeer/planzy/internal/store"
	"github.com/magabrotheeeer/planzy/internal/store/storetest"
)

func newClient(s *store.Store) *handlertest.Client {
	h := New(handlertest.NoopLogger())
	r := chi.NewRouter()
	r.Route("/plans", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Get("/{id}", h.Get)
		r.Put("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)
		r.Post("/{id}/favorite", h.Favorite)
		r.Post("/{id}/join", h.Join)
		r.Post("/{id}/leave", h.Leave)
		r.Post("/{id}/pay", h.Pay)
		r.Get("/{id}/chat", h.Chat)
	})
	return &handlertest.Client{Router: r, Store: s}
}

func planInput(title string) models.PlanInput {
	return models.PlanInput{
		Title:    title,
		Category: "sports",
		Date:     time.Date(2030, 1, 2, 0, 0, 0, 0, time.UTC),
		Time:     "10:00",
		Location: models.PlanLocation{Name: "Parque", City: "Madrid"},
	}
}

func seedPlan(gw *storetest.Gateway, creator models.User, mutate func(*models.Plan)) models.Plan {
	p := models.Plan{
		Title:    "Padel en el Retiro",
		Category: "sports",
		Date:     time.Date(2030, 5, 10, 0, 0, 0, 0, time.UTC),
		Time:     "18:00",
		Location: models.PlanLocation{Name: "Retiro", City: "Madrid"},
		Creator:  creator.Summary(),
	}
	if mutate != nil {
		mutate(&p)
	}
	return gw.SeedPlan(p)
}

func TestHandler_Create(t *testing.T) {
	gw := storetest.New()
	s, user := handlertest.Session(t, gw, models.User{})
	c := newClient(s)

	rec := c.Do(http.MethodPost, "/plans", planInput("Cena"))
	require.Equal(t, http.StatusCreated, rec.Code)

	plan := handlertest.Decode[models.PlanJSON](t, rec).Data
	assert.Equal(t, "Cena", plan.Title)
	assert.Equal(t, user.ID, plan.Creator.ID)
	require.NotNil(t, plan.MaxParticipants)
	assert.Equal(t, 10, *plan.MaxParticipants, "free tier limit applied")
	_, ok := gw.Plan(plan.ID)
	assert.True(t, ok)
}

func TestHandler_Create_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       any
		prepare    func(gw *storetest.Gateway, s *store.Store)
		wantStatus int
	}{
		{
			name:       "invalid json",
			body:       "{",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "missing title",
			body:       planInput(""),
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name: "participant limit",
			body: func() models.PlanInput {
				in := planInput("Torneo")
				in.MaxParticipants = handlertest.IntRef(50)
				return in
			}(),
			wantStatus: http.StatusConflict,
		},
		{
			name: "storage down",
			body: planInput("Cena"),
			prepare: func(gw *storetest.Gateway, _ *store.Store) {
				gw.FailNext("CreatePlan", errors.New("timeout"), errors.New("timeout"))
			},
			wantStatus: http.StatusBadGateway,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := storetest.New()
			s, _ := handlertest.Session(t, gw, models.User{})
			if tt.prepare != nil {
				tt.prepare(gw, s)
			}
			rec := newClient(s).Do(http.MethodPost, "/plans", tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Empty(t, s.Snapshot().Plans)
		})
	}
}

func TestHandler_Create_MonthlyLimit(t *testing.T) {
	gw := storetest.New()
	s, _ := handlertest.Session(t, gw, models.User{})
	c := newClient(s)

	for i := 0; i < 3; i++ {
		require.Equal(t, http.StatusCreated, c.Do(http.MethodPost, "/plans", planInput("Plan")).Code)
	}
	rec := c.Do(http.MethodPost, "/plans", planInput("Plan"))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), models.ErrPlanLimitReached.Error())
}

func TestHandler_ListAndGet(t *testing.T) {
	gw := storetest.New()
	creator := gw.SeedUser(models.User{Email: "bob@example.com", Name: "Bob"})
	padel := seedPlan(gw, creator, nil)
	seedPlan(gw, creator, func(p *models.Plan) {
		p.Category = "food"
		p.Location.City = "Sevilla"
	})
	s, _ := handlertest.Session(t, gw, models.User{})
	c := newClient(s)

	rec := c.Do(http.MethodGet, "/plans", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, handlertest.Decode[[]models.PlanJSON](t, rec).Data, 2)

	rec = c.Do(http.MethodGet, "/plans?category=SPORTS", nil)
	assert.Len(t, handlertest.Decode[[]models.PlanJSON](t, rec).Data, 1)

	rec = c.Do(http.MethodGet, "/plans?city=sevilla", nil)
	assert.Len(t, handlertest.Decode[[]models.PlanJSON](t, rec).Data, 1)

	rec = c.Do(http.MethodGet, "/plans/"+padel.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, padel.Title, handlertest.Decode[models.PlanJSON](t, rec).Data.Title)

	rec = c.Do(http.MethodGet, "/plans/unknown", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler_UpdateAndDelete(t *testing.T) {
	gw := storetest.New()
	other := gw.SeedUser(models.User{Email: "bob@example.com", Name: "Bob"})
	foreign := seedPlan(gw, other, nil)
	s, user := handlertest.Session(t, gw, models.User{})
	own := seedPlan(gw, user, nil)
	require.NoError(t, s.Sync(t.Context()))
	c := newClient(s)

	rec := c.Do(http.MethodPut, "/plans/"+own.ID, map[string]any{"title": "Padel nocturno"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Padel nocturno", handlertest.Decode[models.PlanJSON](t, rec).Data.Title)

	rec = c.Do(http.MethodPut, "/plans/"+foreign.ID, map[string]any{"title": "Mío"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = c.Do(http.MethodDelete, "/plans/"+foreign.ID, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = c.Do(http.MethodDelete, "/plans/"+own.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	_, ok := gw.Plan(own.ID)
	assert.False(t, ok)
}

func TestHandler_Favorite(t *testing.T) {
	gw := storetest.New()
	creator := gw.SeedUser(models.User{Email: "bob@example.com", Name: "Bob"})
	plan := seedPlan(gw, creator, nil)
	s, _ := handlertest.Session(t, gw, models.User{})
	c := newClient(s)

	rec := c.Do(http.MethodPost, "/plans/"+plan.ID+"/favorite", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, handlertest.Decode[FavoriteResponse](t, rec).Data.Favorite)

	rec = c.Do(http.MethodPost, "/plans/"+plan.ID+"/favorite", nil)
	assert.False(t, handlertest.Decode[FavoriteResponse](t, rec).Data.Favorite)
}

func TestHandler_JoinAndLeave(t *testing.T) {
	gw := storetest.New()
	creator := gw.SeedUser(models.User{Email: "bob@example.com", Name: "Bob"})
	plan := seedPlan(gw, creator, func(p *models.Plan) { p.MinAge = handlertest.IntRef(18) })
	s, user := handlertest.Session(t, gw, models.User{Age: handlertest.IntRef(30)})
	c := newClient(s)

	rec := c.Do(http.MethodPost, "/plans/"+plan.ID+"/join", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	joined := handlertest.Decode[models.PlanJSON](t, rec).Data
	assert.Equal(t, 1, joined.CurrentParticipants)
	assert.True(t, joined.HasParticipant(user.ID))

	rec = c.Do(http.MethodPost, "/plans/"+plan.ID+"/join", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = c.Do(http.MethodPost, "/plans/"+plan.ID+"/leave", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, handlertest.Decode[models.PlanJSON](t, rec).Data.CurrentParticipants)

	rec = c.Do(http.MethodPost, "/plans/"+plan.ID+"/leave", models.LeaveInput{})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHandler_Join_Rejected(t *testing.T) {
	gw := storetest.New()
	creator := gw.SeedUser(models.User{Email: "bob@example.com", Name: "Bob"})
	adults := seedPlan(gw, creator, func(p *models.Plan) { p.MinAge = handlertest.IntRef(18) })
	full := seedPlan(gw, creator, func(p *models.Plan) {
		p.MaxParticipants = handlertest.IntRef(1)
		p.Participants = []models.UserSummary{creator.Summary()}
	})
	s, _ := handlertest.Session(t, gw, models.User{Age: handlertest.IntRef(15)})
	c := newClient(s)

	assert.Equal(t, http.StatusForbidden, c.Do(http.MethodPost, "/plans/"+adults.ID+"/join", nil).Code)
	assert.Equal(t, http.StatusConflict, c.Do(http.MethodPost, "/plans/"+full.ID+"/join", nil).Code)
	assert.Equal(t, http.StatusNotFound, c.Do(http.MethodPost, "/plans/missing/join", nil).Code)
}

func TestHandler_PayAndRefund(t *testing.T) {
	gw := storetest.New()
	creator := gw.SeedUser(models.User{Email: "bob@example.com", Name: "Bob"})
	plan := seedPlan(gw, creator, func(p *models.Plan) {
		p.PricePerPerson = decimal.NewNullDecimal(decimal.RequireFromString("7.50"))
	})
	s, user := handlertest.Session(t, gw, models.User{})
	c := newClient(s)

	rec := c.Do(http.MethodPost, "/plans/"+plan.ID+"/pay", nil)
	assert.Equal(t, http.StatusConflict, rec.Code, "empty wallet")

	gw.SeedDeposit(user.ID, decimal.NewFromInt(10))
	require.NoError(t, s.Sync(t.Context()))

	rec = c.Do(http.MethodPost, "/plans/"+plan.ID+"/pay", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, gw.Balance(user.ID).Equal(decimal.RequireFromString("2.50")))

	rec = c.Do(http.MethodPost, "/plans/"+plan.ID+"/leave", models.LeaveInput{Refund: true})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, gw.Balance(user.ID).Equal(decimal.NewFromInt(10)))
	assert.Empty(t, s.Snapshot().PaidPlans)
}

func TestHandler_Chat(t *testing.T) {
	gw := storetest.New()
	s, user := handlertest.Session(t, gw, models.User{})
	plan := seedPlan(gw, user, nil)
	c := newClient(s)

	rec := c.Do(http.MethodGet, "/plans/"+plan.ID+"/chat", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, plan.ID, handlertest.Decode[models.Chat](t, rec).Data.PlanID)
}

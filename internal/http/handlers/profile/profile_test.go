package profile

import (
	"errors"
	"net/http"
	"testing"

	"github.com/go-chi/chi"
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
	r.Patch("/me", h.Update)
	r.Post("/me/verify", h.Verify)
	r.Put("/me/settings", h.Settings)
	r.Get("/payment-methods", h.PaymentMethods)
	r.Post("/payment-methods", h.AddPaymentMethod)
	r.Delete("/payment-methods/{type}", h.RemovePaymentMethod)
	r.Put("/payment-methods/{type}/default", h.SetDefaultPaymentMethod)
	return &handlertest.Client{Router: r, Store: s}
}

func TestHandler_Update(t *testing.T) {
	gw := storetest.New()
	s, user := handlertest.Session(t, gw, models.User{})
	c := newClient(s)

	rec := c.Do(http.MethodPatch, "/me", map[string]any{"name": "Ana María", "is_verified": true, "age": 31})
	require.Equal(t, http.StatusOK, rec.Code)

	env := handlertest.Decode[models.User](t, rec)
	assert.Equal(t, "Ana María", env.Data.Name)
	assert.False(t, env.Data.IsVerified, "verification goes through its own action")

	stored, _ := gw.User(user.ID)
	assert.Equal(t, "Ana María", stored.Name)
	require.NotNil(t, stored.Age)
	assert.Equal(t, 31, *stored.Age)
}

func TestHandler_Update_Errors(t *testing.T) {
	gw := storetest.New()
	s, user := handlertest.Session(t, gw, models.User{Name: "Ana"})
	c := newClient(s)

	rec := c.Do(http.MethodPatch, "/me", map[string]any{"age": 200})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = c.Do(http.MethodPatch, "/me", map[string]any{"name": "   "})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	gw.FailNext("UpdateUser", errors.New("timeout"), errors.New("timeout"))
	rec = c.Do(http.MethodPatch, "/me", map[string]any{"name": "Ana B"})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "Ana", s.Snapshot().User.Name, "optimistic change reverted")
	stored, _ := gw.User(user.ID)
	assert.Equal(t, "Ana", stored.Name)
}

func TestHandler_Verify(t *testing.T) {
	gw := storetest.New()
	s, user := handlertest.Session(t, gw, models.User{})

	rec := newClient(s).Do(http.MethodPost, "/me/verify", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, handlertest.Decode[models.User](t, rec).Data.IsVerified)
	stored, _ := gw.User(user.ID)
	assert.True(t, stored.IsVerified)
}

func TestHandler_Settings(t *testing.T) {
	gw := storetest.New()
	s, user := handlertest.Session(t, gw, models.User{})
	c := newClient(s)

	rec := c.Do(http.MethodPut, "/me/settings", map[string]any{
		"language":                 "en",
		"preferred_payment_method": "wallet",
		"location":                 map[string]any{"lat": 40.4, "lng": -3.7, "city": "Madrid"},
		"notification_settings":    map[string]any{"upcoming_plans": true},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	state := handlertest.Decode[store.State](t, rec).Data
	assert.Equal(t, models.LanguageEN, state.Language)
	assert.Equal(t, models.PaymentWallet, state.PreferredPaymentMethod)
	assert.False(t, state.NotificationSettings.GroupMessages)
	require.NotNil(t, state.UserLocation)
	assert.Equal(t, "Madrid", state.UserLocation.City)

	stored, _ := gw.User(user.ID)
	assert.Equal(t, models.LanguageEN, stored.Language)

	rec = c.Do(http.MethodPut, "/me/settings", map[string]any{"language": "fr"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = c.Do(http.MethodPut, "/me/settings", map[string]any{"clear_location": true})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, handlertest.Decode[store.State](t, rec).Data.UserLocation)
	stored, _ = gw.User(user.ID)
	assert.Nil(t, stored.Location)
}

func TestHandler_Update_ClearAge(t *testing.T) {
	gw := storetest.New()
	s, user := handlertest.Session(t, gw, models.User{Age: intRef(30)})

	rec := newClient(s).Do(http.MethodPatch, "/me", map[string]any{"clear_age": true})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, handlertest.Decode[models.User](t, rec).Data.Age)
	stored, _ := gw.User(user.ID)
	assert.Nil(t, stored.Age)
}

func intRef(v int) *int { return &v }

func TestHandler_PaymentMethods(t *testing.T) {
	gw := storetest.New()
	s, _ := handlertest.Session(t, gw, models.User{})
	c := newClient(s)

	rec := c.Do(http.MethodPost, "/payment-methods", models.PaymentMethodConfig{Type: models.SavedBank})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, "iban required for bank")

	rec = c.Do(http.MethodPost, "/payment-methods", models.PaymentMethodConfig{Type: "cheque"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = c.Do(http.MethodPost, "/payment-methods",
		models.PaymentMethodConfig{Type: models.SavedBank, IBAN: "ES9121000418450200051332"})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = c.Do(http.MethodPost, "/payment-methods",
		models.PaymentMethodConfig{Type: models.SavedPaypal, PaypalEmail: "ana@example.com"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = c.Do(http.MethodPut, "/payment-methods/paypal/default", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	methods := handlertest.Decode[[]models.PaymentMethodConfig](t, rec).Data
	require.Len(t, methods, 2)
	for _, m := range methods {
		assert.Equal(t, m.Type == models.SavedPaypal, m.IsDefault)
	}

	rec = c.Do(http.MethodDelete, "/payment-methods/bank", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = c.Do(http.MethodDelete, "/payment-methods/bank", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = c.Do(http.MethodGet, "/payment-methods", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, handlertest.Decode[[]models.PaymentMethodConfig](t, rec).Data, 1)
}

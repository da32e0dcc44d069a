// Package handlertest содержит общие помощники для тестов HTTP-обработчиков:
// Store, авторизованный под пользователем из storetest.Gateway, и отправку
// запроса через chi-роутер с сессией в контексте.
package handlertest

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/planzy/internal/http/middlewarectx"
	"github.com/magabrotheeeer/planzy/internal/lib/jwt"
	"github.com/magabrotheeeer/planzy/internal/models"
	"github.com/magabrotheeeer/planzy/internal/store"
	"github.com/magabrotheeeer/planzy/internal/store/storetest"
)

// NoopLogger возвращает логгер, который ничего не пишет.
func NoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

// Session создаёт пользователя в gw и Store, авторизованный под ним.
func Session(t *testing.T, gw *storetest.Gateway, u models.User) (*store.Store, models.User) {
	t.Helper()
	if u.Email == "" {
		u.Email = "ana@example.com"
	}
	if u.Name == "" {
		u.Name = "Ana"
	}
	seeded := gw.SeedUser(u)

	s := store.New(gw, store.WithLogger(NoopLogger()), store.WithRetry(1, time.Millisecond, 20*time.Millisecond))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = s.Close(ctx)
	})
	ctx := context.Background()
	require.NoError(t, s.Initialize(ctx))
	require.NoError(t, s.SetUser(ctx, &models.User{Email: seeded.Email}))
	return s, seeded
}

// Client отправляет запросы в роутер от имени сессии.
type Client struct {
	Router chi.Router
	Store  *store.Store
	Claims *jwt.CustomClaims
}

// Do отправляет запрос. body сериализуется в JSON; строка передаётся как есть.
func (c *Client) Do(method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	switch v := body.(type) {
	case nil:
	case string:
		buf.WriteString(v)
	default:
		_ = json.NewEncoder(&buf).Encode(v)
	}
	req := httptest.NewRequest(method, path, &buf)
	if c.Store != nil {
		claims := c.Claims
		if claims == nil {
			claims = &jwt.CustomClaims{UserUID: c.Store.UserID(), Role: models.RoleUser, SessionID: "s-1"}
		}
		req = req.WithContext(middlewarectx.WithSession(req.Context(), c.Store, claims))
	}
	rec := httptest.NewRecorder()
	c.Router.ServeHTTP(rec, req)
	return rec
}

// Envelope — разобранный ответ API.
type Envelope[T any] struct {
	Status string `json:"status"`
	Error  string `json:"error"`
	Data   T      `json:"data"`
}

// Decode разбирает ответ в Envelope.
func Decode[T any](t *testing.T, rec *httptest.ResponseRecorder) Envelope[T] {
	t.Helper()
	var env Envelope[T]
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	return env
}

// IntRef возвращает указатель на v.
func IntRef(v int) *int { return &v }

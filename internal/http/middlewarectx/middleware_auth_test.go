package middlewarectx_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/planzy/internal/http/middlewarectx"
	"github.com/magabrotheeeer/planzy/internal/lib/jwt"
	"github.com/magabrotheeeer/planzy/internal/models"
	"github.com/magabrotheeeer/planzy/internal/store"
	"github.com/magabrotheeeer/planzy/internal/store/storetest"
)

type AuthMock struct {
	mock.Mock
}

func (m *AuthMock) ValidateToken(ctx context.Context, token string) (*jwt.CustomClaims, error) {
	args := m.Called(ctx, token)
	claims, _ := args.Get(0).(*jwt.CustomClaims)
	return claims, args.Error(1)
}

// revokedSet — закрытые сессии в памяти.
type revokedSet map[string]bool

func (r revokedSet) IsRevoked(_ context.Context, sessionID string) (bool, error) {
	return r[sessionID], nil
}

type RevocationsMock struct {
	mock.Mock
}

func (m *RevocationsMock) IsRevoked(ctx context.Context, sessionID string) (bool, error) {
	args := m.Called(ctx, sessionID)
	return args.Bool(0), args.Error(1)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func newRegistry(t *testing.T, gw *storetest.Gateway) *store.Registry {
	t.Helper()
	r := store.NewRegistry(gw, time.Hour, newNoopLogger(), store.WithRetry(1, time.Millisecond, 10*time.Millisecond))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = r.Close(ctx)
	})
	return r
}

func TestJWTMiddleware(t *testing.T) {
	gw := storetest.New()
	user := gw.SeedUser(models.User{Email: "ana@example.com", Name: "Ana", IsEmailVerified: true})

	tests := []struct {
		name           string
		authHeader     string
		claims         *jwt.CustomClaims
		validateErr    error
		wantStatusCode int
		wantCalled     bool
	}{
		{
			name:           "missing Authorization header",
			wantStatusCode: http.StatusUnauthorized,
		},
		{
			name:           "invalid Authorization header prefix",
			authHeader:     "Basic sometoken",
			wantStatusCode: http.StatusUnauthorized,
		},
		{
			name:           "token validation error",
			authHeader:     "Bearer token",
			validateErr:    jwt.ErrInvalidToken,
			wantStatusCode: http.StatusUnauthorized,
		},
		{
			name:           "token without session",
			authHeader:     "Bearer token",
			claims:         &jwt.CustomClaims{UserUID: user.ID},
			wantStatusCode: http.StatusUnauthorized,
		},
		{
			name:           "deleted user",
			authHeader:     "Bearer token",
			claims:         &jwt.CustomClaims{UserUID: "ghost", SessionID: "s-ghost"},
			wantStatusCode: http.StatusUnauthorized,
		},
		{
			name:           "valid token restores session",
			authHeader:     "Bearer validtoken",
			claims:         &jwt.CustomClaims{UserUID: user.ID, Username: "ana", Role: models.RoleUser, SessionID: "s-1"},
			wantStatusCode: http.StatusOK,
			wantCalled:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auth := &AuthMock{}
			if tt.claims != nil || tt.validateErr != nil {
				auth.On("ValidateToken", mock.Anything, strings.TrimPrefix(tt.authHeader, "Bearer ")).
					Return(tt.claims, tt.validateErr).Once()
			}
			registry := newRegistry(t, gw)

			called := false
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
				s, ok := middlewarectx.StoreFrom(r.Context())
				require.True(t, ok)
				assert.Equal(t, user.ID, s.UserID())
				claims, ok := middlewarectx.ClaimsFrom(r.Context())
				require.True(t, ok)
				assert.Equal(t, "s-1", claims.SessionID)
				w.WriteHeader(http.StatusOK)
			})
			handler := middlewarectx.JWTMiddleware(auth, registry, revokedSet{}, gw, newNoopLogger())(next)

			req := httptest.NewRequest(http.MethodGet, "/api/v1/state", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatusCode, rec.Code)
			assert.Equal(t, tt.wantCalled, called)
			auth.AssertExpectations(t)
		})
	}
}

func TestJWTMiddleware_ReusesOpenSession(t *testing.T) {
	gw := storetest.New()
	user := gw.SeedUser(models.User{Email: "ana@example.com", Name: "Ana", IsEmailVerified: true})
	registry := newRegistry(t, gw)
	opened, err := registry.Open(context.Background(), "s-1", &user)
	require.NoError(t, err)

	auth := &AuthMock{}
	auth.On("ValidateToken", mock.Anything, "tok").
		Return(&jwt.CustomClaims{UserUID: user.ID, SessionID: "s-1"}, nil).Twice()

	var seen []*store.Store
	handler := middlewarectx.JWTMiddleware(auth, registry, revokedSet{}, gw, newNoopLogger())(
		http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			s, _ := middlewarectx.StoreFrom(r.Context())
			seen = append(seen, s)
		}))

	for range 2 {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer tok")
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}

	require.Len(t, seen, 2)
	assert.Same(t, opened, seen[0])
	assert.Same(t, opened, seen[1])
	assert.Equal(t, 1, registry.Len())
}

func TestJWTMiddleware_StorageFailure(t *testing.T) {
	gw := storetest.New()
	gw.FailNext("GetUserByID", errors.New("connection refused"))
	registry := newRegistry(t, gw)

	auth := &AuthMock{}
	auth.On("ValidateToken", mock.Anything, "tok").
		Return(&jwt.CustomClaims{UserUID: "u1", SessionID: "s-1"}, nil).Once()

	handler := middlewarectx.JWTMiddleware(auth, registry, revokedSet{}, gw, newNoopLogger())(
		http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
			t.Fatal("handler must not be called")
		}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer tok")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestJWTMiddleware_ClosedSession(t *testing.T) {
	gw := storetest.New()
	user := gw.SeedUser(models.User{Email: "ana@example.com", Name: "Ana", IsEmailVerified: true})
	registry := newRegistry(t, gw)

	auth := &AuthMock{}
	auth.On("ValidateToken", mock.Anything, "tok").
		Return(&jwt.CustomClaims{UserUID: user.ID, SessionID: "s-1"}, nil).Once()

	handler := middlewarectx.JWTMiddleware(auth, registry, revokedSet{"s-1": true}, gw, newNoopLogger())(
		http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
			t.Fatal("handler must not be called")
		}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer tok")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Zero(t, registry.Len(), "closed session must not be restored")
	assert.Zero(t, gw.Calls("GetUserByID"))
}

func TestJWTMiddleware_RevocationCheckFails(t *testing.T) {
	gw := storetest.New()
	registry := newRegistry(t, gw)

	auth := &AuthMock{}
	auth.On("ValidateToken", mock.Anything, "tok").
		Return(&jwt.CustomClaims{UserUID: "u1", SessionID: "s-1"}, nil).Once()
	revoked := &RevocationsMock{}
	revoked.On("IsRevoked", mock.Anything, "s-1").Return(false, errors.New("redis: connection refused")).Once()

	handler := middlewarectx.JWTMiddleware(auth, registry, revoked, gw, newNoopLogger())(
		http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
			t.Fatal("handler must not be called")
		}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer tok")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	revoked.AssertExpectations(t)
}

func TestRequireRole(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	handler := middlewarectx.RequireRole(models.RoleAdmin, newNoopLogger())(ok)

	tests := []struct {
		name   string
		claims *jwt.CustomClaims
		want   int
	}{
		{"no claims", nil, http.StatusUnauthorized},
		{"regular user", &jwt.CustomClaims{UserUID: "u1", Role: models.RoleUser}, http.StatusForbidden},
		{"admin", &jwt.CustomClaims{UserUID: "u2", Role: models.RoleAdmin}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin/users", nil)
			if tt.claims != nil {
				req = req.WithContext(middlewarectx.WithSession(req.Context(), nil, tt.claims))
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi"
	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/planzy/internal/http/middlewarectx"
	"github.com/magabrotheeeer/planzy/internal/lib/jwt"
	"github.com/magabrotheeeer/planzy/internal/models"
	authsvc "github.com/magabrotheeeer/planzy/internal/services/auth"
	"github.com/magabrotheeeer/planzy/internal/store"
	"github.com/magabrotheeeer/planzy/internal/store/storetest"
)

type ServiceMock struct {
	mock.Mock
}

func (m *ServiceMock) Register(ctx context.Context, in models.RegisterRequest) (*models.VerificationResult, error) {
	args := m.Called(ctx, in)
	res, _ := args.Get(0).(*models.VerificationResult)
	return res, args.Error(1)
}

func (m *ServiceMock) ResendCode(ctx context.Context, email string) (*models.VerificationResult, error) {
	args := m.Called(ctx, email)
	res, _ := args.Get(0).(*models.VerificationResult)
	return res, args.Error(1)
}

func (m *ServiceMock) VerifyRegisterCode(ctx context.Context, email, code string) (*authsvc.Session, error) {
	args := m.Called(ctx, email, code)
	sess, _ := args.Get(0).(*authsvc.Session)
	return sess, args.Error(1)
}

func (m *ServiceMock) Login(ctx context.Context, email, password string) (*authsvc.Session, error) {
	args := m.Called(ctx, email, password)
	sess, _ := args.Get(0).(*authsvc.Session)
	return sess, args.Error(1)
}

func (m *ServiceMock) LoginOAuth(ctx context.Context, provider, idToken string) (*authsvc.Session, error) {
	args := m.Called(ctx, provider, idToken)
	sess, _ := args.Get(0).(*authsvc.Session)
	return sess, args.Error(1)
}

type RevokerMock struct {
	mock.Mock
}

func (m *RevokerMock) Revoke(ctx context.Context, sessionID string, until time.Time) error {
	return m.Called(ctx, sessionID, until).Error(0)
}

var tokenExpiry = time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

type fixture struct {
	service  *ServiceMock
	revoker  *RevokerMock
	gw       *storetest.Gateway
	registry *store.Registry
	router   chi.Router
	user     models.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gw := storetest.New()
	user := gw.SeedUser(models.User{Email: "ana@example.com", Name: "Ana", IsEmailVerified: true})
	registry := store.NewRegistry(gw, time.Hour, newNoopLogger())
	t.Cleanup(func() { _ = registry.Close(context.Background()) })

	f := &fixture{service: &ServiceMock{}, revoker: &RevokerMock{}, gw: gw, registry: registry, user: user}
	h := New(newNoopLogger(), f.service, registry, f.revoker)

	r := chi.NewRouter()
	r.Post("/register", h.Register)
	r.Post("/register/resend", h.Resend)
	r.Post("/register/verify", h.Verify)
	r.Post("/login", h.Login)
	r.Post("/oauth/{provider}", h.OAuth)
	r.With(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := &jwt.CustomClaims{
				UserUID:          user.ID,
				SessionID:        "s-1",
				RegisteredClaims: gojwt.RegisteredClaims{ExpiresAt: gojwt.NewNumericDate(tokenExpiry)},
			}
			next.ServeHTTP(w, r.WithContext(middlewarectx.WithSession(r.Context(), nil, claims)))
		})
	}).Post("/logout", h.Logout)
	f.router = r
	return f
}

func (f *fixture) do(method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	switch v := body.(type) {
	case string:
		buf.WriteString(v)
	case nil:
	default:
		_ = json.NewEncoder(&buf).Encode(v)
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestHandler_Register(t *testing.T) {
	valid := models.RegisterRequest{Name: "Ana", Email: "ana@example.com", Password: "secret123"}

	tests := []struct {
		name       string
		body       any
		setup      func(m *ServiceMock)
		wantStatus int
		wantBody   string
	}{
		{
			name: "created",
			body: valid,
			setup: func(m *ServiceMock) {
				m.On("Register", mock.Anything, valid).
					Return(&models.VerificationResult{Email: "ana@example.com", EmailSent: true}, nil).Once()
			},
			wantStatus: http.StatusCreated,
			wantBody:   `"email_sent":true`,
		},
		{
			name:       "invalid json",
			body:       "not a json",
			wantStatus: http.StatusBadRequest,
			wantBody:   `{"status":"Error","error":"invalid request body"}`,
		},
		{
			name:       "validation",
			body:       models.RegisterRequest{Name: "Ana", Email: "nope", Password: "short"},
			wantStatus: http.StatusUnprocessableEntity,
			wantBody:   "field Email must be a valid email",
		},
		{
			name: "email taken",
			body: valid,
			setup: func(m *ServiceMock) {
				m.On("Register", mock.Anything, valid).
					Return(nil, fmt.Errorf("services.Register: %w", models.ErrEmailTaken)).Once()
			},
			wantStatus: http.StatusConflict,
			wantBody:   models.ErrEmailTaken.Error(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			if tt.setup != nil {
				tt.setup(f.service)
			}
			rec := f.do(http.MethodPost, "/register", tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantBody)
			f.service.AssertExpectations(t)
		})
	}
}

func TestHandler_Resend(t *testing.T) {
	f := newFixture(t)
	f.service.On("ResendCode", mock.Anything, "ana@example.com").
		Return(&models.VerificationResult{Email: "ana@example.com", Code: "123456"}, nil).Once()

	rec := f.do(http.MethodPost, "/register/resend", models.ResendRequest{Email: "ana@example.com"})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"123456"`)
}

func TestHandler_Login(t *testing.T) {
	f := newFixture(t)
	f.service.On("Login", mock.Anything, "ana@example.com", "secret123").
		Return(&authsvc.Session{Token: "tok", SessionID: "s-1", User: &f.user}, nil).Once()

	rec := f.do(http.MethodPost, "/login", models.LoginRequest{Email: "ana@example.com", Password: "secret123"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Status string          `json:"status"`
		Data   SessionResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "tok", resp.Data.Token)
	require.NotNil(t, resp.Data.State.User)
	assert.Equal(t, f.user.ID, resp.Data.State.User.ID)
	assert.True(t, resp.Data.State.IsAuthenticated)

	s, ok := f.registry.Get("s-1")
	require.True(t, ok)
	assert.Equal(t, f.user.ID, s.UserID())
}

func TestHandler_LoginErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"invalid credentials", authsvc.ErrInvalidCredentials, http.StatusUnauthorized},
		{"email not verified", authsvc.ErrEmailNotVerified, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.service.On("Login", mock.Anything, "ana@example.com", "secret123").
				Return(nil, fmt.Errorf("services.Login: %w", tt.err)).Once()

			rec := f.do(http.MethodPost, "/login", models.LoginRequest{Email: "ana@example.com", Password: "secret123"})
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Zero(t, f.registry.Len())
		})
	}
}

func TestHandler_Verify(t *testing.T) {
	f := newFixture(t)
	f.service.On("VerifyRegisterCode", mock.Anything, "ana@example.com", "000000").
		Return(nil, models.ErrCodeExpired).Once()
	f.service.On("VerifyRegisterCode", mock.Anything, "ana@example.com", "123456").
		Return(&authsvc.Session{Token: "tok", SessionID: "s-2", User: &f.user}, nil).Once()

	rec := f.do(http.MethodPost, "/register/verify", models.VerifyRequest{Email: "ana@example.com", Code: "000000"})
	assert.Equal(t, http.StatusGone, rec.Code)

	rec = f.do(http.MethodPost, "/register/verify", models.VerifyRequest{Email: "ana@example.com", Code: "12a456"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = f.do(http.MethodPost, "/register/verify", models.VerifyRequest{Email: "ana@example.com", Code: "123456"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, f.registry.Len())
}

func TestHandler_OAuth(t *testing.T) {
	f := newFixture(t)
	f.service.On("LoginOAuth", mock.Anything, "google", "id-token").
		Return(&authsvc.Session{Token: "tok", SessionID: "s-3", User: &f.user}, nil).Once()
	f.service.On("LoginOAuth", mock.Anything, "github", "id-token").
		Return(nil, authsvc.ErrUnknownProvider).Once()

	rec := f.do(http.MethodPost, "/oauth/google", models.OAuthRequest{IDToken: "id-token"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(http.MethodPost, "/oauth/github", models.OAuthRequest{IDToken: "id-token"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	f.service.AssertExpectations(t)
}

func TestHandler_Logout(t *testing.T) {
	f := newFixture(t)
	_, err := f.registry.Open(context.Background(), "s-1", &f.user)
	require.NoError(t, err)
	f.revoker.On("Revoke", mock.Anything, "s-1", mock.MatchedBy(tokenExpiry.Equal)).Return(nil).Once()

	rec := f.do(http.MethodPost, "/logout", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Body.String(), `{"status":"OK"`))
	assert.Zero(t, f.registry.Len())
	f.revoker.AssertExpectations(t)
}

func TestHandler_Logout_RevokeFails(t *testing.T) {
	f := newFixture(t)
	_, err := f.registry.Open(context.Background(), "s-1", &f.user)
	require.NoError(t, err)
	f.revoker.On("Revoke", mock.Anything, "s-1", mock.MatchedBy(tokenExpiry.Equal)).Return(errors.New("redis: connection refused")).Once()

	rec := f.do(http.MethodPost, "/logout", nil)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, 1, f.registry.Len(), "session stays open when logout is not recorded")
}

package admin

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/planzy/internal/http/handlers/handlertest"
	"github.com/magabrotheeeer/planzy/internal/models"
)

type ServiceMock struct {
	mock.Mock
}

func (m *ServiceMock) ListUsers(ctx context.Context) ([]models.User, error) {
	args := m.Called(ctx)
	users, _ := args.Get(0).([]models.User)
	return users, args.Error(1)
}

func (m *ServiceMock) DeleteAllUnverifiedUsers(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *ServiceMock) DeleteUserByEmail(ctx context.Context, email string, includeVerified bool) (int64, error) {
	args := m.Called(ctx, email, includeVerified)
	return args.Get(0).(int64), args.Error(1)
}

func newRouter(service Service) chi.Router {
	h := New(handlertest.NoopLogger(), service)
	r := chi.NewRouter()
	r.Get("/admin/users", h.ListUsers)
	r.Delete("/admin/users", h.DeleteByEmail)
	r.Delete("/admin/users/unverified", h.DeleteUnverified)
	return r
}

func do(r chi.Router, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestHandler_ListUsers(t *testing.T) {
	service := &ServiceMock{}
	service.On("ListUsers", mock.Anything).Return([]models.User{
		{ID: "u-1", Email: "ana@example.com"},
		{ID: "u-2", Email: "bob@example.com"},
	}, nil).Once()

	rec := do(newRouter(service), http.MethodGet, "/admin/users")

	require.Equal(t, http.StatusOK, rec.Code)
	users := handlertest.Decode[[]models.User](t, rec).Data
	assert.Len(t, users, 2)
	service.AssertExpectations(t)
}

func TestHandler_ListUsers_Error(t *testing.T) {
	service := &ServiceMock{}
	service.On("ListUsers", mock.Anything).Return(nil, errors.New("connection reset")).Once()

	rec := do(newRouter(service), http.MethodGet, "/admin/users")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "connection reset")
}

func TestHandler_DeleteUnverified(t *testing.T) {
	service := &ServiceMock{}
	service.On("DeleteAllUnverifiedUsers", mock.Anything).Return(int64(3), nil).Once()

	rec := do(newRouter(service), http.MethodDelete, "/admin/users/unverified")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(3), handlertest.Decode[DeletedResponse](t, rec).Data.Deleted)
	service.AssertExpectations(t)
}

func TestHandler_DeleteByEmail(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		mock       func(m *ServiceMock)
		wantStatus int
		wantCount  int64
	}{
		{
			name:  "unverified only",
			query: "?email=ana@example.com",
			mock: func(m *ServiceMock) {
				m.On("DeleteUserByEmail", mock.Anything, "ana@example.com", false).Return(int64(1), nil).Once()
			},
			wantStatus: http.StatusOK,
			wantCount:  1,
		},
		{
			name:  "include verified",
			query: "?email=ana@example.com&include_verified=true",
			mock: func(m *ServiceMock) {
				m.On("DeleteUserByEmail", mock.Anything, "ana@example.com", true).Return(int64(1), nil).Once()
			},
			wantStatus: http.StatusOK,
			wantCount:  1,
		},
		{
			name:  "nothing deleted",
			query: "?email=ghost@example.com",
			mock: func(m *ServiceMock) {
				m.On("DeleteUserByEmail", mock.Anything, "ghost@example.com", false).Return(int64(0), nil).Once()
			},
			wantStatus: http.StatusOK,
		},
		{
			name:       "missing email",
			query:      "",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "bad flag",
			query:      "?email=ana@example.com&include_verified=maybe",
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := &ServiceMock{}
			if tt.mock != nil {
				tt.mock(service)
			}

			rec := do(newRouter(service), http.MethodDelete, "/admin/users"+tt.query)

			require.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, tt.wantCount, handlertest.Decode[DeletedResponse](t, rec).Data.Deleted)
			}
			service.AssertExpectations(t)
		})
	}
}

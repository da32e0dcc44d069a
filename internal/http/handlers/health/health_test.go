package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/planzy/internal/http/handlers/handlertest"
)

func TestHandler_ServeHTTP(t *testing.T) {
	tests := []struct {
		name       string
		checks     map[string]Check
		wantStatus int
		wantData   map[string]string
	}{
		{
			name:       "no dependencies",
			wantStatus: http.StatusOK,
			wantData:   map[string]string{"status": "ok"},
		},
		{
			name: "all healthy",
			checks: map[string]Check{
				"postgres": func(context.Context) error { return nil },
				"redis":    func(context.Context) error { return nil },
			},
			wantStatus: http.StatusOK,
			wantData:   map[string]string{"status": "ok", "postgres": "ok", "redis": "ok"},
		},
		{
			name: "redis down",
			checks: map[string]Check{
				"postgres": func(context.Context) error { return nil },
				"redis":    func(context.Context) error { return errors.New("dial tcp: i/o timeout") },
			},
			wantStatus: http.StatusServiceUnavailable,
			wantData:   map[string]string{"status": "degraded", "postgres": "ok", "redis": "unavailable"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			New(handlertest.NoopLogger(), tt.checks).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

			require.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantData, handlertest.Decode[map[string]string](t, rec).Data)
		})
	}
}

package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/planzy/internal/lib/mailer"
	"github.com/magabrotheeeer/planzy/internal/models"
)

type MockAPI struct {
	mock.Mock
	configured bool
}

func (m *MockAPI) Send(ctx context.Context, msg mailer.Message) error {
	return m.Called(ctx, msg).Error(0)
}

func (m *MockAPI) Configured() bool {
	return m.configured
}

type MockRelay struct {
	mock.Mock
}

func (m *MockRelay) Send(ctx context.Context, msg mailer.Message) error {
	return m.Called(ctx, msg).Error(0)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func withCode(code string) any {
	return mock.MatchedBy(func(msg mailer.Message) bool {
		return msg.To == "ana@example.com" && strings.Contains(msg.Text, code) && strings.Contains(msg.HTML, code)
	})
}

func TestSenderService_SendVerificationCode(t *testing.T) {
	errRelay := errors.New("dial tcp 127.0.0.1:1025: connection refused")
	errAPI := errors.New("resend returned status 422")

	tests := []struct {
		name       string
		configured bool
		devCodes   bool
		setup      func(api *MockAPI, relay *MockRelay)
		wantSent   bool
		wantErr    error
	}{
		{
			name:       "api configured",
			configured: true,
			setup: func(api *MockAPI, _ *MockRelay) {
				api.On("Send", mock.Anything, withCode("123456")).Return(nil).Once()
			},
			wantSent: true,
		},
		{
			name:       "api error propagates even in dev",
			configured: true,
			devCodes:   true,
			setup: func(api *MockAPI, _ *MockRelay) {
				api.On("Send", mock.Anything, mock.Anything).Return(errAPI).Once()
			},
			wantErr: errAPI,
		},
		{
			name: "smtp relay",
			setup: func(_ *MockAPI, relay *MockRelay) {
				relay.On("Send", mock.Anything, withCode("123456")).Return(nil).Once()
			},
			wantSent: true,
		},
		{
			name:     "smtp failure in dev returns code",
			devCodes: true,
			setup: func(_ *MockAPI, relay *MockRelay) {
				relay.On("Send", mock.Anything, mock.Anything).Return(errRelay).Once()
			},
			wantSent: false,
		},
		{
			name: "smtp failure in prod",
			setup: func(_ *MockAPI, relay *MockRelay) {
				relay.On("Send", mock.Anything, mock.Anything).Return(errRelay).Once()
			},
			wantErr: errRelay,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &MockAPI{configured: tt.configured}
			relay := &MockRelay{}
			tt.setup(api, relay)
			svc := NewSenderService(api, relay, tt.devCodes, newNoopLogger())

			sent, err := svc.SendVerificationCode(context.Background(), "ana@example.com", "Ana", "123456",
				models.LanguageES)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.False(t, sent)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantSent, sent)
			api.AssertExpectations(t)
			relay.AssertExpectations(t)
		})
	}
}

func TestVerificationMessage_Language(t *testing.T) {
	es := verificationMessage("ana@example.com", "", "000042", models.LanguageES)
	assert.Equal(t, "Tu código de verificación de Planzy", es.Subject)
	assert.Contains(t, es.Text, "ana@example.com")
	assert.Contains(t, es.Text, "000042")

	en := verificationMessage("ana@example.com", "Ana", "000042", models.LanguageEN)
	assert.Equal(t, "Your Planzy verification code", en.Subject)
	assert.Contains(t, en.HTML, "<b>000042</b>")
}

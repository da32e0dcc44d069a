package services

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/planzy/internal/models"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) NotificationSettings(ctx context.Context, userUIDs []string) (map[string]models.NotificationSettings, error) {
	args := m.Called(ctx, userUIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]models.NotificationSettings), args.Error(1)
}

func (m *MockRepository) InsertNotifications(ctx context.Context, list []models.Notification) ([]models.Notification, error) {
	args := m.Called(ctx, list)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Notification), args.Error(1)
}

func newService(repo Repository) *NotificationService {
	s := NewNotificationService(repo, slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.now = func() time.Time { return time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC) }
	return s
}

func encode(t *testing.T, e models.NotificationEvent) []byte {
	t.Helper()
	body, err := json.Marshal(e)
	require.NoError(t, err)
	return body
}

func TestNotificationService_HandleEvent_FiltersBySettings(t *testing.T) {
	muted := models.DefaultNotificationSettings()
	muted.PlanChanges = false

	repo := &MockRepository{}
	repo.On("NotificationSettings", mock.Anything, []string{"a", "b", "c"}).Return(map[string]models.NotificationSettings{
		"a": models.DefaultNotificationSettings(),
		"b": muted,
	}, nil).Once()

	var stored []models.Notification
	repo.On("InsertNotifications", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		stored = args.Get(1).([]models.Notification)
	}).Return([]models.Notification{}, nil).Once()

	err := newService(repo).HandleEvent(context.Background(), encode(t, models.NotificationEvent{
		Type:         models.NotificationPlanChange,
		Title:        "Plan updated",
		Message:      "Padel moved to 19:00",
		PlanID:       "p1",
		RecipientIDs: []string{"a", "b", "c", "owner", "a"},
		ExcludeID:    "owner",
	}))
	require.NoError(t, err)
	repo.AssertExpectations(t)

	require.Len(t, stored, 1, "b muted plan changes and c no longer exists")
	n := stored[0]
	assert.Equal(t, "a", n.UserID)
	assert.Equal(t, models.NotificationPlanChange, n.Type)
	assert.Equal(t, "p1", n.PlanID)
	assert.NotEmpty(t, n.ID)
	assert.False(t, n.Read)
	assert.Equal(t, time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC), n.CreatedAt)
}

func TestNotificationService_HandleEvent_AllMuted(t *testing.T) {
	muted := models.DefaultNotificationSettings()
	muted.UpcomingPlans = false

	repo := &MockRepository{}
	repo.On("NotificationSettings", mock.Anything, []string{"a"}).
		Return(map[string]models.NotificationSettings{"a": muted}, nil).Once()

	err := newService(repo).HandleEvent(context.Background(), encode(t, models.NotificationEvent{
		Type:         models.NotificationUpcoming,
		RecipientIDs: []string{"a"},
	}))
	require.NoError(t, err)
	repo.AssertNotCalled(t, "InsertNotifications", mock.Anything, mock.Anything)
}

func TestNotificationService_HandleEvent_Dropped(t *testing.T) {
	repo := &MockRepository{}
	svc := newService(repo)

	assert.NoError(t, svc.HandleEvent(context.Background(), []byte("{not json")))
	assert.NoError(t, svc.HandleEvent(context.Background(), encode(t, models.NotificationEvent{
		RecipientIDs: []string{"a"},
	})))
	assert.NoError(t, svc.HandleEvent(context.Background(), encode(t, models.NotificationEvent{
		Type:         models.NotificationMessage,
		RecipientIDs: []string{"a"},
		ExcludeID:    "a",
	})))
	repo.AssertNotCalled(t, "NotificationSettings", mock.Anything, mock.Anything)
}

func TestNotificationService_HandleEvent_StorageErrorRequeues(t *testing.T) {
	repo := &MockRepository{}
	repo.On("NotificationSettings", mock.Anything, mock.Anything).
		Return(map[string]models.NotificationSettings{"a": models.DefaultNotificationSettings()}, nil).Once()
	repo.On("InsertNotifications", mock.Anything, mock.Anything).Return(nil, assert.AnError).Once()

	err := newService(repo).HandleEvent(context.Background(), encode(t, models.NotificationEvent{
		Type:         models.NotificationMessage,
		RecipientIDs: []string{"a"},
	}))
	assert.ErrorIs(t, err, assert.AnError)
}

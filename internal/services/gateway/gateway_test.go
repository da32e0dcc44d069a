package gateway

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/planzy/internal/cache"
	"github.com/magabrotheeeer/planzy/internal/config"
	"github.com/magabrotheeeer/planzy/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/planzy/internal/models"
	"github.com/magabrotheeeer/planzy/internal/storage/repository"
)

func newTestCache(t *testing.T) (*cache.Cache, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	c, err := cache.InitServer(context.Background(), config.RedisConnection{AddressRedis: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestService_GetPlans_CacheAside(t *testing.T) {
	repo := &RepoMock{}
	c, mr := newTestCache(t)
	svc := New(repo, c, nil, newNoopLogger(), time.Minute)
	ctx := context.Background()

	plans := []models.Plan{{ID: "p1", Title: "Padel", Participants: []models.UserSummary{}}}
	repo.On("ListPlans", mock.Anything).Return(plans, nil).Once()

	got, err := svc.GetPlans(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Padel", got[0].Title)
	assert.True(t, mr.Exists(PlansCacheKey))

	got, err = svc.GetPlans(ctx)
	require.NoError(t, err)
	assert.Equal(t, "p1", got[0].ID)
	repo.AssertNumberOfCalls(t, "ListPlans", 1)

	repo.On("JoinPlan", mock.Anything, "p1", "u1").Return(&models.Plan{ID: "p1"}, nil).Once()
	_, err = svc.JoinPlan(ctx, "p1", "u1")
	require.NoError(t, err)
	assert.False(t, mr.Exists(PlansCacheKey))

	mr.Close()
	repo.On("ListPlans", mock.Anything).Return(plans, nil).Once()
	got, err = svc.GetPlans(ctx)
	require.NoError(t, err, "cache failure must not fail the read")
	assert.Len(t, got, 1)
}

func TestService_CreateUser(t *testing.T) {
	tests := []struct {
		name         string
		setup        func(r *RepoMock)
		input        models.User
		wantUsername string
		wantErr      error
	}{
		{
			name: "new user gets first free suffix",
			setup: func(r *RepoMock) {
				r.On("GetUserByEmail", mock.Anything, "ana@example.com").Return(nil, models.ErrNotFound).Once()
				r.On("UsernameExists", mock.Anything, "ana").Return(true, nil).Once()
				r.On("UsernameExists", mock.Anything, "ana1").Return(true, nil).Once()
				r.On("UsernameExists", mock.Anything, "ana2").Return(false, nil).Once()
				r.On("InsertUser", mock.Anything, mock.MatchedBy(func(u models.User) bool {
					return u.Username == "ana2" && u.Email == "ana@example.com" && u.ID != ""
				})).Return(&models.User{ID: "u1", Username: "ana2"}, nil).Once()
			},
			input:        models.User{Name: "Ana", Username: "Ana", Email: " Ana@Example.com "},
			wantUsername: "ana2",
		},
		{
			name: "verified user is returned unchanged",
			setup: func(r *RepoMock) {
				r.On("GetUserByEmail", mock.Anything, "bob@example.com").
					Return(&models.User{ID: "old", Username: "bob", IsEmailVerified: true}, nil).Once()
			},
			input:        models.User{Username: "bobby", Email: "bob@example.com"},
			wantUsername: "bob",
		},
		{
			name: "unverified registration is superseded",
			setup: func(r *RepoMock) {
				r.On("GetUserByEmail", mock.Anything, "eve@example.com").
					Return(&models.User{ID: "stale", Username: "eve"}, nil).Once()
				r.On("DeleteUser", mock.Anything, "stale").Return(nil).Once()
				r.On("UsernameExists", mock.Anything, "eve").Return(false, nil).Once()
				r.On("InsertUser", mock.Anything, mock.Anything).Return(&models.User{ID: "new", Username: "eve"}, nil).Once()
			},
			input:        models.User{Username: "eve", Email: "eve@example.com"},
			wantUsername: "eve",
		},
		{
			name: "username race retries with timestamp suffix",
			setup: func(r *RepoMock) {
				r.On("GetUserByEmail", mock.Anything, "kim@example.com").Return(nil, models.ErrNotFound).Once()
				r.On("UsernameExists", mock.Anything, "kim").Return(false, nil).Once()
				r.On("InsertUser", mock.Anything, mock.MatchedBy(func(u models.User) bool {
					return u.Username == "kim"
				})).Return(nil, repository.ErrUsernameTaken).Once()
				r.On("InsertUser", mock.Anything, mock.MatchedBy(func(u models.User) bool {
					return u.Username == "kim_1700000000000"
				})).Return(&models.User{ID: "k", Username: "kim_1700000000000"}, nil).Once()
			},
			input:        models.User{Username: "kim", Email: "kim@example.com"},
			wantUsername: "kim_1700000000000",
		},
		{
			name: "email taken",
			setup: func(r *RepoMock) {
				r.On("GetUserByEmail", mock.Anything, "x@example.com").Return(nil, models.ErrNotFound).Once()
				r.On("UsernameExists", mock.Anything, "x").Return(false, nil).Once()
				r.On("InsertUser", mock.Anything, mock.Anything).Return(nil, models.ErrEmailTaken).Once()
			},
			input:   models.User{Email: "x@example.com"},
			wantErr: models.ErrEmailTaken,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &RepoMock{}
			tt.setup(repo)
			svc := New(repo, nil, nil, newNoopLogger(), 0)
			svc.now = func() time.Time { return time.UnixMilli(1700000000000) }

			got, err := svc.CreateUser(context.Background(), tt.input)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantUsername, got.Username)
			repo.AssertExpectations(t)
		})
	}
}

func TestService_ProfileChangesInvalidatePlans(t *testing.T) {
	name := "Ana María"
	lang := models.LanguageEN

	tests := []struct {
		name       string
		run        func(svc *Service, repo *RepoMock) error
		wantCached bool
	}{
		{
			name: "name change",
			run: func(svc *Service, repo *RepoMock) error {
				upd := models.UserUpdate{Name: &name}
				repo.On("UpdateUser", mock.Anything, "u1", upd).Return(&models.User{ID: "u1", Name: name}, nil).Once()
				_, err := svc.UpdateUser(context.Background(), "u1", upd)
				return err
			},
		},
		{
			name: "cleared age",
			run: func(svc *Service, repo *RepoMock) error {
				upd := models.UserUpdate{ClearAge: true}
				repo.On("UpdateUser", mock.Anything, "u1", upd).Return(&models.User{ID: "u1"}, nil).Once()
				_, err := svc.UpdateUser(context.Background(), "u1", upd)
				return err
			},
		},
		{
			name: "language change keeps cache",
			run: func(svc *Service, repo *RepoMock) error {
				upd := models.UserUpdate{Language: &lang}
				repo.On("UpdateUser", mock.Anything, "u1", upd).Return(&models.User{ID: "u1"}, nil).Once()
				_, err := svc.UpdateUser(context.Background(), "u1", upd)
				return err
			},
			wantCached: true,
		},
		{
			name: "superseded registration",
			run: func(svc *Service, repo *RepoMock) error {
				repo.On("GetUserByEmail", mock.Anything, "eve@example.com").
					Return(&models.User{ID: "stale", Username: "eve"}, nil).Once()
				repo.On("DeleteUser", mock.Anything, "stale").Return(nil).Once()
				repo.On("UsernameExists", mock.Anything, "eve").Return(false, nil).Once()
				repo.On("InsertUser", mock.Anything, mock.Anything).Return(&models.User{ID: "new", Username: "eve"}, nil).Once()
				_, err := svc.CreateUser(context.Background(), models.User{Username: "eve", Email: "eve@example.com"})
				return err
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &RepoMock{}
			c, mr := newTestCache(t)
			svc := New(repo, c, nil, newNoopLogger(), time.Minute)
			require.NoError(t, mr.Set(PlansCacheKey, "[]"))

			require.NoError(t, tt.run(svc, repo))
			assert.Equal(t, tt.wantCached, mr.Exists(PlansCacheKey))
			repo.AssertExpectations(t)
		})
	}
}

func TestService_UniqueUsernameFallsBackToTimestamp(t *testing.T) {
	repo := &RepoMock{}
	repo.On("UsernameExists", mock.Anything, mock.Anything).Return(true, nil)
	svc := New(repo, nil, nil, newNoopLogger(), 0)
	svc.now = func() time.Time { return time.UnixMilli(42) }

	got, err := svc.uniqueUsername(context.Background(), "popular")
	require.NoError(t, err)
	assert.Equal(t, "popular42", got)
	repo.AssertNumberOfCalls(t, "UsernameExists", maxUsernameAttempts)
}

func TestService_UpdatePlan_PublishesToParticipants(t *testing.T) {
	repo := &RepoMock{}
	pub := &PublisherMock{}
	svc := New(repo, nil, pub, newNoopLogger(), 0)
	ctx := context.Background()

	plan := &models.Plan{ID: "p1", Title: "Padel", Creator: models.UserSummary{ID: "owner"},
		Participants: []models.UserSummary{{ID: "owner"}, {ID: "a"}, {ID: "b"}}}
	title := "Padel 2"
	repo.On("GetPlan", mock.Anything, "p1").Return(plan, nil)
	repo.On("UpdatePlan", mock.Anything, "p1", models.PlanUpdate{Title: &title}).Return(plan, nil).Once()
	pub.On("Publish", mock.Anything, rabbitmq.RoutingKeyPlan, mock.MatchedBy(func(e models.NotificationEvent) bool {
		return e.Type == models.NotificationPlanChange && assert.ObjectsAreEqual([]string{"a", "b"}, e.Recipients())
	})).Return(errors.New("broker down")).Once()

	_, err := svc.UpdatePlan(ctx, "p1", "owner", models.PlanUpdate{Title: &title})
	require.NoError(t, err, "publish failures are only logged")
	pub.AssertExpectations(t)

	_, err = svc.UpdatePlan(ctx, "p1", "stranger", models.PlanUpdate{Title: &title})
	assert.ErrorIs(t, err, models.ErrForbidden)
}

func TestService_DeletePlan(t *testing.T) {
	repo := &RepoMock{}
	pub := &PublisherMock{}
	svc := New(repo, nil, pub, newNoopLogger(), 0)

	plan := &models.Plan{ID: "p1", Title: "Cena", Creator: models.UserSummary{ID: "owner"}}
	repo.On("GetPlan", mock.Anything, "p1").Return(plan, nil)
	repo.On("DeletePlan", mock.Anything, "p1").Return(nil).Once()

	require.NoError(t, svc.DeletePlan(context.Background(), "p1", "owner"))
	pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}

func TestService_LeavePlanWithRefund_NotifiesCreator(t *testing.T) {
	repo := &RepoMock{}
	pub := &PublisherMock{}
	svc := New(repo, nil, pub, newNoopLogger(), 0)

	plan := &models.Plan{ID: "p1", Title: "Futbol", Creator: models.UserSummary{ID: "owner"}}
	refund := &models.WalletTransaction{ID: "t1", Type: models.TxRefund, Amount: decimal.RequireFromString("4")}
	repo.On("LeavePlanWithRefund", mock.Anything, "p1", "u1", "Refund").
		Return(&repository.PaymentResult{Plan: plan, Transaction: refund}, nil).Once()
	pub.On("Publish", mock.Anything, rabbitmq.RoutingKeyPlan, mock.MatchedBy(func(e models.NotificationEvent) bool {
		return e.Title == "Participant cancelled" && e.RecipientIDs[0] == "owner"
	})).Return(nil).Once()

	res, err := svc.LeavePlanWithRefund(context.Background(), "p1", "u1")
	require.NoError(t, err)
	assert.Equal(t, "t1", res.Transaction.ID)
	pub.AssertExpectations(t)
}

func TestService_PrivateChatBlocked(t *testing.T) {
	repo := &RepoMock{}
	svc := New(repo, nil, nil, newNoopLogger(), 0)
	repo.On("IsBlocked", mock.Anything, "a", "b").Return(true, nil).Once()

	_, err := svc.GetOrCreatePrivateChat(context.Background(), "a", "b")
	assert.ErrorIs(t, err, models.ErrBlocked)
	repo.AssertNotCalled(t, "GetOrCreatePrivateChat", mock.Anything, mock.Anything, mock.Anything)
}

func TestService_AppendMessage_NotifiesMembers(t *testing.T) {
	repo := &RepoMock{}
	pub := &PublisherMock{}
	svc := New(repo, nil, pub, newNoopLogger(), 0)

	msg := models.Message{SenderID: "a", SenderName: "Ana", Content: "hola"}
	repo.On("InsertMessage", mock.Anything, "c1", msg).Return(&models.Message{ID: "m1", SenderID: "a",
		SenderName: "Ana", Content: "hola"}, nil).Once()
	repo.On("ChatMemberIDs", mock.Anything, "c1").Return([]string{"a", "b"}, nil).Once()
	pub.On("Publish", mock.Anything, rabbitmq.RoutingKeyPlan, mock.MatchedBy(func(e models.NotificationEvent) bool {
		return e.Type == models.NotificationMessage && len(e.Recipients()) == 1 && e.Recipients()[0] == "b"
	})).Return(nil).Once()

	saved, err := svc.AppendMessage(context.Background(), "c1", msg)
	require.NoError(t, err)
	assert.Equal(t, "m1", saved.ID)
	pub.AssertExpectations(t)
}

func TestService_CountPlansCreatedThisMonth(t *testing.T) {
	repo := &RepoMock{}
	svc := New(repo, nil, nil, newNoopLogger(), 0)
	svc.now = func() time.Time { return time.Date(2025, 3, 17, 10, 0, 0, 0, time.UTC) }
	repo.On("CountPlansCreatedSince", mock.Anything, "u1", time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)).
		Return(2, nil).Once()

	n, err := svc.CountPlansCreatedThisMonth(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "short", preview("short"))
	long := make([]rune, previewLength+10)
	for i := range long {
		long[i] = 'ñ'
	}
	got := []rune(preview(string(long)))
	assert.Len(t, got, previewLength+1)
}

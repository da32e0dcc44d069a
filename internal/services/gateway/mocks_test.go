package gateway

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/planzy/internal/models"
	"github.com/magabrotheeeer/planzy/internal/storage/repository"
)

type RepoMock struct{ mock.Mock }

func (m *RepoMock) userResult(args mock.Arguments) (*models.User, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *RepoMock) planResult(args mock.Arguments) (*models.Plan, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Plan), args.Error(1)
}

func (m *RepoMock) txResult(args mock.Arguments) (*models.WalletTransaction, decimal.Decimal, error) {
	if args.Get(0) == nil {
		return nil, decimal.Zero, args.Error(2)
	}
	return args.Get(0).(*models.WalletTransaction), args.Get(1).(decimal.Decimal), args.Error(2)
}

func (m *RepoMock) paymentResult(args mock.Arguments) (*repository.PaymentResult, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.PaymentResult), args.Error(1)
}

func (m *RepoMock) messageResult(args mock.Arguments) (*models.Message, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Message), args.Error(1)
}

func (m *RepoMock) chatResult(args mock.Arguments) (*models.Chat, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Chat), args.Error(1)
}

func (m *RepoMock) stringsResult(args mock.Arguments) ([]string, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *RepoMock) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return m.userResult(m.Called(ctx, email))
}
func (m *RepoMock) GetUserByID(ctx context.Context, userUID string) (*models.User, error) {
	return m.userResult(m.Called(ctx, userUID))
}
func (m *RepoMock) UsernameExists(ctx context.Context, username string) (bool, error) {
	args := m.Called(ctx, username)
	return args.Bool(0), args.Error(1)
}
func (m *RepoMock) InsertUser(ctx context.Context, u models.User) (*models.User, error) {
	return m.userResult(m.Called(ctx, u))
}
func (m *RepoMock) UpdateUser(ctx context.Context, userUID string, upd models.UserUpdate) (*models.User, error) {
	return m.userResult(m.Called(ctx, userUID, upd))
}
func (m *RepoMock) SetPremium(ctx context.Context, userUID string, plan models.PremiumPlan, expiresAt *time.Time) error {
	return m.Called(ctx, userUID, plan, expiresAt).Error(0)
}
func (m *RepoMock) SetVerificationCode(ctx context.Context, email, code string, expiresAt time.Time) error {
	return m.Called(ctx, email, code, expiresAt).Error(0)
}
func (m *RepoMock) ConfirmEmail(ctx context.Context, userUID string) error {
	return m.Called(ctx, userUID).Error(0)
}
func (m *RepoMock) DeleteUser(ctx context.Context, userUID string) error {
	return m.Called(ctx, userUID).Error(0)
}
func (m *RepoMock) DeleteUserByEmail(ctx context.Context, email string, includeVerified bool) (int64, error) {
	args := m.Called(ctx, email, includeVerified)
	return args.Get(0).(int64), args.Error(1)
}
func (m *RepoMock) DeleteUnverifiedUsers(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}
func (m *RepoMock) ListUsers(ctx context.Context) ([]models.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.User), args.Error(1)
}

func (m *RepoMock) ListPlans(ctx context.Context) ([]models.Plan, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Plan), args.Error(1)
}
func (m *RepoMock) GetPlan(ctx context.Context, planID string) (*models.Plan, error) {
	return m.planResult(m.Called(ctx, planID))
}
func (m *RepoMock) CountPlansCreatedSince(ctx context.Context, creatorUID string, since time.Time) (int, error) {
	args := m.Called(ctx, creatorUID, since)
	return args.Int(0), args.Error(1)
}
func (m *RepoMock) InsertPlan(ctx context.Context, p models.Plan) (*models.Plan, error) {
	return m.planResult(m.Called(ctx, p))
}
func (m *RepoMock) UpdatePlan(ctx context.Context, planID string, upd models.PlanUpdate) (*models.Plan, error) {
	return m.planResult(m.Called(ctx, planID, upd))
}
func (m *RepoMock) DeletePlan(ctx context.Context, planID string) error {
	return m.Called(ctx, planID).Error(0)
}
func (m *RepoMock) JoinPlan(ctx context.Context, planID, userUID string) (*models.Plan, error) {
	return m.planResult(m.Called(ctx, planID, userUID))
}
func (m *RepoMock) LeavePlan(ctx context.Context, planID, userUID string) (*models.Plan, error) {
	return m.planResult(m.Called(ctx, planID, userUID))
}
func (m *RepoMock) PlanMemberIDs(ctx context.Context, planID string) ([]string, error) {
	return m.stringsResult(m.Called(ctx, planID))
}

func (m *RepoMock) ListWalletTransactions(ctx context.Context, userUID string) ([]models.WalletTransaction, error) {
	args := m.Called(ctx, userUID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.WalletTransaction), args.Error(1)
}
func (m *RepoMock) WalletBalance(ctx context.Context, userUID string) (decimal.Decimal, error) {
	args := m.Called(ctx, userUID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}
func (m *RepoMock) InsertWalletTransaction(ctx context.Context, wt models.WalletTransaction) (*models.WalletTransaction, decimal.Decimal, error) {
	return m.txResult(m.Called(ctx, wt))
}
func (m *RepoMock) WithdrawAll(ctx context.Context, userUID string, amount decimal.Decimal, description string) (*models.WalletTransaction, decimal.Decimal, error) {
	return m.txResult(m.Called(ctx, userUID, amount, description))
}
func (m *RepoMock) PayForPlan(ctx context.Context, planID, userUID, description string) (*repository.PaymentResult, error) {
	return m.paymentResult(m.Called(ctx, planID, userUID, description))
}
func (m *RepoMock) LeavePlanWithRefund(ctx context.Context, planID, userUID, description string) (*repository.PaymentResult, error) {
	return m.paymentResult(m.Called(ctx, planID, userUID, description))
}
func (m *RepoMock) PurchasePremium(ctx context.Context, userUID string, plan models.PremiumPlan, price decimal.Decimal,
	expiresAt time.Time, description string) (*models.WalletTransaction, decimal.Decimal, error) {
	return m.txResult(m.Called(ctx, userUID, plan, price, expiresAt, description))
}

func (m *RepoMock) ListTournaments(ctx context.Context) ([]models.Tournament, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Tournament), args.Error(1)
}
func (m *RepoMock) InsertTournament(ctx context.Context, t models.Tournament) (*models.Tournament, error) {
	args := m.Called(ctx, t)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Tournament), args.Error(1)
}

func (m *RepoMock) ListChats(ctx context.Context, userUID string) ([]models.Chat, error) {
	args := m.Called(ctx, userUID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Chat), args.Error(1)
}
func (m *RepoMock) GetChatByPlan(ctx context.Context, planID string) (*models.Chat, error) {
	return m.chatResult(m.Called(ctx, planID))
}
func (m *RepoMock) GetOrCreatePrivateChat(ctx context.Context, userUID, otherUID string) (*models.Chat, error) {
	return m.chatResult(m.Called(ctx, userUID, otherUID))
}
func (m *RepoMock) InsertMessage(ctx context.Context, chatID string, msg models.Message) (*models.Message, error) {
	return m.messageResult(m.Called(ctx, chatID, msg))
}
func (m *RepoMock) UpdateMessage(ctx context.Context, chatID, messageID, senderUID, content string) (*models.Message, error) {
	return m.messageResult(m.Called(ctx, chatID, messageID, senderUID, content))
}
func (m *RepoMock) SoftDeleteMessage(ctx context.Context, chatID, messageID, senderUID string) (*models.Message, error) {
	return m.messageResult(m.Called(ctx, chatID, messageID, senderUID))
}
func (m *RepoMock) ChatMemberIDs(ctx context.Context, chatID string) ([]string, error) {
	return m.stringsResult(m.Called(ctx, chatID))
}

func (m *RepoMock) ListNotifications(ctx context.Context, userUID string) ([]models.Notification, error) {
	args := m.Called(ctx, userUID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Notification), args.Error(1)
}
func (m *RepoMock) InsertNotifications(ctx context.Context, list []models.Notification) ([]models.Notification, error) {
	args := m.Called(ctx, list)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Notification), args.Error(1)
}
func (m *RepoMock) MarkNotificationRead(ctx context.Context, userUID, notificationID string) error {
	return m.Called(ctx, userUID, notificationID).Error(0)
}

func (m *RepoMock) BlockUser(ctx context.Context, userUID, targetUID string) ([]string, error) {
	return m.stringsResult(m.Called(ctx, userUID, targetUID))
}
func (m *RepoMock) UnblockUser(ctx context.Context, userUID, targetUID string) ([]string, error) {
	return m.stringsResult(m.Called(ctx, userUID, targetUID))
}
func (m *RepoMock) IsBlocked(ctx context.Context, a, b string) (bool, error) {
	args := m.Called(ctx, a, b)
	return args.Bool(0), args.Error(1)
}
func (m *RepoMock) InsertReport(ctx context.Context, reporterUID, reportedUID, reason string) (*models.UserReport, error) {
	args := m.Called(ctx, reporterUID, reportedUID, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.UserReport), args.Error(1)
}

type PublisherMock struct{ mock.Mock }

func (m *PublisherMock) Publish(ctx context.Context, routingKey string, message any) error {
	return m.Called(ctx, routingKey, message).Error(0)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

package store

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/magabrotheeeer/planzy/internal/models"
	"github.com/magabrotheeeer/planzy/internal/services/gateway"
)

// Gateway — операции долговременного хранилища, которыми пользуется Store.
// Его реализует *gateway.Service; в тестах — storetest.Gateway.
type Gateway interface {
	GetUser(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, userUID string) (*models.User, error)
	CreateUser(ctx context.Context, u models.User) (*models.User, error)
	UpdateUser(ctx context.Context, userUID string, upd models.UserUpdate) (*models.User, error)
	SetPremium(ctx context.Context, userUID string, plan models.PremiumPlan, expiresAt *time.Time) error
	PurchasePremium(ctx context.Context, userUID string, plan models.PremiumPlan, expiresAt time.Time) (*models.WalletTransaction, decimal.Decimal, error)

	GetPlans(ctx context.Context) ([]models.Plan, error)
	CountPlansCreatedThisMonth(ctx context.Context, userUID string) (int, error)
	CreatePlan(ctx context.Context, p models.Plan) (*models.Plan, error)
	UpdatePlan(ctx context.Context, planID, actorUID string, upd models.PlanUpdate) (*models.Plan, error)
	DeletePlan(ctx context.Context, planID, actorUID string) error
	JoinPlan(ctx context.Context, planID, userUID string) (*models.Plan, error)
	LeavePlan(ctx context.Context, planID, userUID string) (*models.Plan, error)
	PayPlan(ctx context.Context, planID, userUID string) (*gateway.PayResult, error)
	LeavePlanWithRefund(ctx context.Context, planID, userUID string) (*gateway.PayResult, error)

	GetTournaments(ctx context.Context) ([]models.Tournament, error)
	CreateTournament(ctx context.Context, t models.Tournament) (*models.Tournament, error)

	GetWalletTransactions(ctx context.Context, userUID string) ([]models.WalletTransaction, error)
	GetWalletBalance(ctx context.Context, userUID string) (decimal.Decimal, error)
	CreateWalletTransaction(ctx context.Context, userUID string, wt models.WalletTransaction) (*models.WalletTransaction, decimal.Decimal, error)
	Withdraw(ctx context.Context, userUID string, amount decimal.Decimal) (*models.WalletTransaction, decimal.Decimal, error)

	GetChats(ctx context.Context, userUID string) ([]models.Chat, error)
	GetChatForPlan(ctx context.Context, planID string) (*models.Chat, error)
	GetOrCreatePrivateChat(ctx context.Context, userUID, otherUID string) (*models.Chat, error)
	AppendMessage(ctx context.Context, chatID string, m models.Message) (*models.Message, error)
	EditMessage(ctx context.Context, chatID, messageID, senderUID, content string) (*models.Message, error)
	DeleteMessage(ctx context.Context, chatID, messageID, senderUID string) (*models.Message, error)

	GetNotifications(ctx context.Context, userUID string) ([]models.Notification, error)
	CreateNotification(ctx context.Context, n models.Notification) (*models.Notification, error)
	MarkNotificationRead(ctx context.Context, userUID, notificationID string) error

	BlockUser(ctx context.Context, userUID, targetUID string) ([]string, error)
	UnblockUser(ctx context.Context, userUID, targetUID string) ([]string, error)
	ReportUser(ctx context.Context, reporterUID, reportedUID, reason string) (*models.UserReport, error)
}

var _ Gateway = (*gateway.Service)(nil)

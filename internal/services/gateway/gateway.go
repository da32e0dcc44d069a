// Package gateway связывает хранилище PostgreSQL с остальным приложением:
// кеширует список планов в Redis, подбирает уникальные username, заменяет
// неподтверждённые регистрации и публикует события уведомлений в RabbitMQ.
package gateway

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/magabrotheeeer/planzy/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/planzy/internal/lib/sl"
	"github.com/magabrotheeeer/planzy/internal/models"
	"github.com/magabrotheeeer/planzy/internal/storage/repository"
)

// PlansCacheKey — ключ кеша со списком всех планов.
const PlansCacheKey = "plans:all"

// Repository определяет методы хранилища, которыми пользуется шлюз.
type Repository interface {
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, userUID string) (*models.User, error)
	UsernameExists(ctx context.Context, username string) (bool, error)
	InsertUser(ctx context.Context, u models.User) (*models.User, error)
	UpdateUser(ctx context.Context, userUID string, upd models.UserUpdate) (*models.User, error)
	SetPremium(ctx context.Context, userUID string, plan models.PremiumPlan, expiresAt *time.Time) error
	SetVerificationCode(ctx context.Context, email, code string, expiresAt time.Time) error
	ConfirmEmail(ctx context.Context, userUID string) error
	DeleteUser(ctx context.Context, userUID string) error
	DeleteUserByEmail(ctx context.Context, email string, includeVerified bool) (int64, error)
	DeleteUnverifiedUsers(ctx context.Context) (int64, error)
	ListUsers(ctx context.Context) ([]models.User, error)

	ListPlans(ctx context.Context) ([]models.Plan, error)
	GetPlan(ctx context.Context, planID string) (*models.Plan, error)
	CountPlansCreatedSince(ctx context.Context, creatorUID string, since time.Time) (int, error)
	InsertPlan(ctx context.Context, p models.Plan) (*models.Plan, error)
	UpdatePlan(ctx context.Context, planID string, upd models.PlanUpdate) (*models.Plan, error)
	DeletePlan(ctx context.Context, planID string) error
	JoinPlan(ctx context.Context, planID, userUID string) (*models.Plan, error)
	LeavePlan(ctx context.Context, planID, userUID string) (*models.Plan, error)
	PlanMemberIDs(ctx context.Context, planID string) ([]string, error)

	ListWalletTransactions(ctx context.Context, userUID string) ([]models.WalletTransaction, error)
	WalletBalance(ctx context.Context, userUID string) (decimal.Decimal, error)
	InsertWalletTransaction(ctx context.Context, wt models.WalletTransaction) (*models.WalletTransaction, decimal.Decimal, error)
	WithdrawAll(ctx context.Context, userUID string, amount decimal.Decimal, description string) (*models.WalletTransaction, decimal.Decimal, error)
	PayForPlan(ctx context.Context, planID, userUID, description string) (*repository.PaymentResult, error)
	LeavePlanWithRefund(ctx context.Context, planID, userUID, description string) (*repository.PaymentResult, error)
	PurchasePremium(ctx context.Context, userUID string, plan models.PremiumPlan, price decimal.Decimal,
		expiresAt time.Time, description string) (*models.WalletTransaction, decimal.Decimal, error)

	ListTournaments(ctx context.Context) ([]models.Tournament, error)
	InsertTournament(ctx context.Context, t models.Tournament) (*models.Tournament, error)

	ListChats(ctx context.Context, userUID string) ([]models.Chat, error)
	GetChatByPlan(ctx context.Context, planID string) (*models.Chat, error)
	GetOrCreatePrivateChat(ctx context.Context, userUID, otherUID string) (*models.Chat, error)
	InsertMessage(ctx context.Context, chatID string, m models.Message) (*models.Message, error)
	UpdateMessage(ctx context.Context, chatID, messageID, senderUID, content string) (*models.Message, error)
	SoftDeleteMessage(ctx context.Context, chatID, messageID, senderUID string) (*models.Message, error)
	ChatMemberIDs(ctx context.Context, chatID string) ([]string, error)

	ListNotifications(ctx context.Context, userUID string) ([]models.Notification, error)
	InsertNotifications(ctx context.Context, list []models.Notification) ([]models.Notification, error)
	MarkNotificationRead(ctx context.Context, userUID, notificationID string) error

	BlockUser(ctx context.Context, userUID, targetUID string) ([]string, error)
	UnblockUser(ctx context.Context, userUID, targetUID string) ([]string, error)
	IsBlocked(ctx context.Context, a, b string) (bool, error)
	InsertReport(ctx context.Context, reporterUID, reportedUID, reason string) (*models.UserReport, error)
}

// Cache описывает методы для кэширования данных.
type Cache interface {
	Get(ctx context.Context, key string, result any) (bool, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Invalidate(ctx context.Context, keys ...string) error
}

// Publisher публикует события уведомлений.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, message any) error
}

// Service реализует операции шлюза хранения.
type Service struct {
	repo      Repository
	cache     Cache
	publisher Publisher
	log       *slog.Logger
	plansTTL  time.Duration
	now       func() time.Time
	newCode   func() (string, error)
}

// New создаёт шлюз. cache и publisher могут быть nil: тогда кеширование и
// публикация событий отключены.
func New(repo Repository, cache Cache, publisher Publisher, log *slog.Logger, plansTTL time.Duration) *Service {
	if plansTTL <= 0 {
		plansTTL = time.Minute
	}
	return &Service{
		repo:      repo,
		cache:     cache,
		publisher: publisher,
		log:       log,
		plansTTL:  plansTTL,
		now:       time.Now,
		newCode:   newVerificationCode,
	}
}

func (s *Service) invalidatePlans(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, PlansCacheKey); err != nil {
		s.log.Warn("failed to invalidate plans cache", slog.String("key", PlansCacheKey), sl.Err(err))
	}
}

// publish отправляет событие; ошибки только логируются.
func (s *Service) publish(ctx context.Context, routingKey string, event models.NotificationEvent) {
	if s.publisher == nil || len(event.Recipients()) == 0 {
		return
	}
	if err := s.publisher.Publish(ctx, routingKey, event); err != nil {
		s.log.Warn("failed to publish notification event",
			slog.String("type", string(event.Type)),
			slog.String("plan_id", event.PlanID),
			sl.Err(err))
	}
}

func (s *Service) publishPlanEvent(ctx context.Context, event models.NotificationEvent) {
	s.publish(ctx, rabbitmq.RoutingKeyPlan, event)
}

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/magabrotheeeer/planzy/internal/models"
)

// Initialize загружает планы и турниры. Вызывается при создании сессии.
func (s *Store) Initialize(ctx context.Context) error {
	const op = "store.Initialize"

	plans, err := s.gw.GetPlans(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	tournaments, err := s.gw.GetTournaments(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Plans = clonePlans(plans)
	sortPlans(s.state.Plans)
	s.state.Tournaments = tournaments
	s.state.JoinedPlans = s.state.joinedFromPlans()
	return nil
}

// userData — всё, что загружается для пользователя при входе или синхронизации.
type userData struct {
	user          *models.User
	transactions  []models.WalletTransaction
	balance       decimal.Decimal
	chats         []models.Chat
	notifications []models.Notification
	plansCreated  int
}

func (s *Store) loadUserData(ctx context.Context, user *models.User) (*userData, error) {
	var (
		d   = userData{user: user}
		err error
	)
	if d.transactions, err = s.gw.GetWalletTransactions(ctx, user.ID); err != nil {
		return nil, err
	}
	if d.balance, err = s.gw.GetWalletBalance(ctx, user.ID); err != nil {
		return nil, err
	}
	if d.chats, err = s.gw.GetChats(ctx, user.ID); err != nil {
		return nil, err
	}
	if d.notifications, err = s.gw.GetNotifications(ctx, user.ID); err != nil {
		return nil, err
	}
	if d.plansCreated, err = s.gw.CountPlansCreatedThisMonth(ctx, user.ID); err != nil {
		return nil, err
	}
	return &d, nil
}

// SetUser загружает пользователя (создавая запись, если её ещё нет) вместе
// с кошельком, чатами и уведомлениями. nil очищает пользовательскую часть
// состояния; планы и турниры сохраняются.
func (s *Store) SetUser(ctx context.Context, u *models.User) error {
	const op = "store.SetUser"

	if u == nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		plans, tournaments := s.state.Plans, s.state.Tournaments
		s.state = initialState()
		s.state.Plans, s.state.Tournaments = plans, tournaments
		return nil
	}

	user, err := s.gw.GetUser(ctx, u.Email)
	if errors.Is(err, models.ErrNotFound) {
		user, err = s.gw.CreateUser(ctx, *u)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	data, err := s.loadUserData(ctx, user)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.IsAuthenticated = true
	s.applyUserData(data, true)
	return nil
}

// SetAuthenticated меняет флаг авторизации. Снятие флага не очищает данные
// пользователя; для этого служит SetUser(nil).
func (s *Store) SetAuthenticated(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.IsAuthenticated = v
}

// applyUserData переносит загруженные данные в состояние. Вызывается под s.mu.
func (s *Store) applyUserData(d *userData, replaceChats bool) {
	user := *d.user
	user.ApplyDefaults()
	s.state.User = &user
	s.state.mirrorUser(s.now())
	s.state.WalletTransactions = d.transactions
	s.state.WalletBalance = d.balance
	s.state.Notifications = d.notifications
	s.state.PlansCreatedThisMonth = d.plansCreated
	s.state.JoinedPlans = s.state.joinedFromPlans()

	group, private := splitChats(d.chats)
	if replaceChats {
		s.state.Chats, s.state.PrivateChats = group, private
		return
	}
	s.state.Chats = mergeChats(s.state.Chats, group, user.ID)
	s.state.PrivateChats = mergeChats(s.state.PrivateChats, private, user.ID)
}

// Flush ждёт, пока будут синхронизированы все действия, поставленные в
// очередь до вызова.
func (s *Store) Flush(ctx context.Context) error {
	s.mu.RLock()
	last := s.last
	s.mu.RUnlock()
	if last == nil {
		return nil
	}
	select {
	case <-last.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Sync дожидается очереди синхронизации и перечитывает состояние из
// хранилища. Новые сообщения от других пользователей увеличивают
// счётчик непрочитанных.
func (s *Store) Sync(ctx context.Context) error {
	const op = "store.Sync"
	if err := s.Flush(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.Initialize(ctx); err != nil {
		return err
	}

	userID := s.UserID()
	if userID == "" {
		return nil
	}
	user, err := s.gw.GetUserByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	data, err := s.loadUserData(ctx, user)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.User == nil || s.state.User.ID != userID {
		return nil
	}
	s.applyUserData(data, false)
	return nil
}

// DismissSyncErrors очищает список ошибок синхронизации.
func (s *Store) DismissSyncErrors() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.SyncErrors = []models.SyncError{}
}

// mirrorUser копирует поля пользователя в плоские поля состояния.
func (st *State) mirrorUser(now time.Time) {
	u := st.User
	if u == nil {
		return
	}
	st.Language = u.Language
	st.NotificationSettings = u.NotificationSettings
	st.PreferredPaymentMethod = u.PreferredPaymentMethod
	st.UserLocation = nil
	if u.Location != nil {
		loc := *u.Location
		st.UserLocation = &loc
	}
	st.SavedPaymentMethods = append([]models.PaymentMethodConfig{}, u.SavedPaymentMethods...)
	st.PaidPlans = append([]models.PaidPlan{}, u.PaidPlans...)
	st.BlockedUsers = append([]string{}, u.BlockedUsers...)
	st.PremiumPlan = models.Effective(u.PremiumPlan, u.PremiumExpiresAt, now)
	st.PremiumExpiresAt = nil
	if st.PremiumPlan != models.PremiumFree && u.PremiumExpiresAt != nil {
		t := *u.PremiumExpiresAt
		st.PremiumExpiresAt = &t
	}
}

func (st *State) joinedFromPlans() []string {
	joined := []string{}
	if st.User == nil {
		return joined
	}
	for _, p := range st.Plans {
		if p.HasParticipant(st.User.ID) {
			joined = append(joined, p.ID)
		}
	}
	return joined
}

func clonePlans(plans []models.Plan) []models.Plan {
	out := make([]models.Plan, len(plans))
	for i, p := range plans {
		out[i] = p.Clone()
	}
	return out
}

func splitChats(chats []models.Chat) (group, private []models.Chat) {
	group, private = []models.Chat{}, []models.Chat{}
	for _, c := range chats {
		if c.IsPrivate {
			private = append(private, c)
		} else {
			group = append(group, c)
		}
	}
	return group, private
}

// mergeChats заменяет локальные чаты серверными и увеличивает счётчик
// непрочитанных на число новых сообщений от других пользователей.
func mergeChats(local, remote []models.Chat, userID string) []models.Chat {
	known := make(map[string]map[string]struct{}, len(local))
	unread := make(map[string]int, len(local))
	for _, c := range local {
		ids := make(map[string]struct{}, len(c.Messages))
		for _, m := range c.Messages {
			ids[m.ID] = struct{}{}
		}
		known[c.ID] = ids
		unread[c.ID] = c.UnreadCount
	}

	out := make([]models.Chat, 0, len(remote))
	for _, c := range remote {
		c.UnreadCount = unread[c.ID]
		ids, seen := known[c.ID]
		for _, m := range c.Messages {
			if m.SenderID == userID || m.IsDeleted {
				continue
			}
			if _, ok := ids[m.ID]; !seen || !ok {
				c.UnreadCount++
			}
		}
		out = append(out, c)
	}
	return out
}

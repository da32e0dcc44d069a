package store

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/magabrotheeeer/planzy/internal/models"
)

// State — состояние сессии пользователя. Количество участников плана не
// хранится отдельно: оно выводится из Plan.Participants.
type State struct {
	IsAuthenticated        bool                         `json:"is_authenticated"`
	User                   *models.User                 `json:"user"`
	Plans                  []models.Plan                `json:"plans"`
	Favorites              []string                     `json:"favorites"`
	JoinedPlans            []string                     `json:"joined_plans"`
	Notifications          []models.Notification        `json:"notifications"`
	NotificationSettings   models.NotificationSettings  `json:"notification_settings"`
	Language               models.Language              `json:"language"`
	UserLocation           *models.Location             `json:"user_location,omitempty"`
	Chats                  []models.Chat                `json:"chats"`
	PrivateChats           []models.Chat                `json:"private_chats"`
	PreferredPaymentMethod models.PaymentMethod         `json:"preferred_payment_method,omitempty"`
	WalletBalance          decimal.Decimal              `json:"wallet_balance"`
	WalletTransactions     []models.WalletTransaction   `json:"wallet_transactions"`
	PaidPlans              []models.PaidPlan            `json:"paid_plans"`
	BlockedUsers           []string                     `json:"blocked_users"`
	PremiumPlan            models.PremiumPlan           `json:"premium_plan"`
	PremiumExpiresAt       *time.Time                   `json:"premium_expires_at,omitempty"`
	PlansCreatedThisMonth  int                          `json:"plans_created_this_month"`
	Tournaments            []models.Tournament          `json:"tournaments"`
	SavedPaymentMethods    []models.PaymentMethodConfig `json:"saved_payment_methods"`
	SyncErrors             []models.SyncError           `json:"sync_errors"`
}

func initialState() State {
	return State{
		Plans:                []models.Plan{},
		Favorites:            []string{},
		JoinedPlans:          []string{},
		Notifications:        []models.Notification{},
		NotificationSettings: models.DefaultNotificationSettings(),
		Language:             models.LanguageES,
		Chats:                []models.Chat{},
		PrivateChats:         []models.Chat{},
		WalletTransactions:   []models.WalletTransaction{},
		PaidPlans:            []models.PaidPlan{},
		BlockedUsers:         []string{},
		PremiumPlan:          models.PremiumFree,
		Tournaments:          []models.Tournament{},
		SavedPaymentMethods:  []models.PaymentMethodConfig{},
		SyncErrors:           []models.SyncError{},
	}
}

// Clone возвращает глубокую копию состояния.
func (s State) Clone() State {
	c := s
	if s.User != nil {
		u := *s.User
		u.Interests = append([]string{}, s.User.Interests...)
		u.SavedPaymentMethods = append([]models.PaymentMethodConfig{}, s.User.SavedPaymentMethods...)
		u.PaidPlans = append([]models.PaidPlan{}, s.User.PaidPlans...)
		u.BlockedUsers = append([]string{}, s.User.BlockedUsers...)
		c.User = &u
	}
	c.Plans = make([]models.Plan, len(s.Plans))
	for i, p := range s.Plans {
		c.Plans[i] = p.Clone()
	}
	c.Favorites = append([]string{}, s.Favorites...)
	c.JoinedPlans = append([]string{}, s.JoinedPlans...)
	c.Notifications = append([]models.Notification{}, s.Notifications...)
	if s.UserLocation != nil {
		loc := *s.UserLocation
		c.UserLocation = &loc
	}
	c.Chats = cloneChats(s.Chats)
	c.PrivateChats = cloneChats(s.PrivateChats)
	c.WalletTransactions = append([]models.WalletTransaction{}, s.WalletTransactions...)
	c.PaidPlans = append([]models.PaidPlan{}, s.PaidPlans...)
	c.BlockedUsers = append([]string{}, s.BlockedUsers...)
	if s.PremiumExpiresAt != nil {
		t := *s.PremiumExpiresAt
		c.PremiumExpiresAt = &t
	}
	c.Tournaments = make([]models.Tournament, len(s.Tournaments))
	for i, t := range s.Tournaments {
		c.Tournaments[i] = t.Clone()
	}
	c.SavedPaymentMethods = append([]models.PaymentMethodConfig{}, s.SavedPaymentMethods...)
	c.SyncErrors = append([]models.SyncError{}, s.SyncErrors...)
	return c
}

func cloneChats(chats []models.Chat) []models.Chat {
	out := make([]models.Chat, len(chats))
	for i, c := range chats {
		out[i] = c.Clone()
	}
	return out
}

// plan возвращает план по ID и его индекс.
func (s *State) plan(planID string) (*models.Plan, int) {
	for i := range s.Plans {
		if s.Plans[i].ID == planID {
			return &s.Plans[i], i
		}
	}
	return nil, -1
}

func (s *State) upsertPlan(p models.Plan) {
	if existing, _ := s.plan(p.ID); existing != nil {
		*existing = p
		return
	}
	s.Plans = append(s.Plans, p)
	sortPlans(s.Plans)
}

func (s *State) removePlan(planID string) {
	if _, i := s.plan(planID); i >= 0 {
		s.Plans = append(s.Plans[:i], s.Plans[i+1:]...)
	}
}

func (s *State) chat(chatID string) *models.Chat {
	for i := range s.Chats {
		if s.Chats[i].ID == chatID {
			return &s.Chats[i]
		}
	}
	for i := range s.PrivateChats {
		if s.PrivateChats[i].ID == chatID {
			return &s.PrivateChats[i]
		}
	}
	return nil
}

func (s *State) chatForPlan(planID string) *models.Chat {
	for i := range s.Chats {
		if s.Chats[i].PlanID == planID {
			return &s.Chats[i]
		}
	}
	return nil
}

func (s *State) upsertChat(c models.Chat) {
	if existing := s.chat(c.ID); existing != nil {
		unread := existing.UnreadCount
		*existing = c
		existing.UnreadCount = unread
		return
	}
	if c.IsPrivate {
		s.PrivateChats = append(s.PrivateChats, c)
		return
	}
	s.Chats = append(s.Chats, c)
}

func (s *State) paidAmount(planID string) (decimal.Decimal, bool) {
	for _, p := range s.PaidPlans {
		if p.PlanID == planID {
			return p.Amount, true
		}
	}
	return decimal.Zero, false
}

func (s *State) removePaidPlan(planID string) {
	out := make([]models.PaidPlan, 0, len(s.PaidPlans))
	for _, p := range s.PaidPlans {
		if p.PlanID != planID {
			out = append(out, p)
		}
	}
	s.setPaidPlans(out)
}

func (s *State) addPaidPlan(p models.PaidPlan) {
	out := make([]models.PaidPlan, 0, len(s.PaidPlans)+1)
	for _, existing := range s.PaidPlans {
		if existing.PlanID != p.PlanID {
			out = append(out, existing)
		}
	}
	s.setPaidPlans(append(out, p))
}

func (s *State) isBlocked(userUID string) bool {
	return contains(s.BlockedUsers, userUID)
}

// effectivePremium возвращает тариф с учётом срока действия.
func (s *State) effectivePremium(now time.Time) models.PremiumPlan {
	return models.Effective(s.PremiumPlan, s.PremiumExpiresAt, now)
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

func without(list []string, v string) []string {
	out := make([]string, 0, len(list))
	for _, x := range list {
		if x != v {
			out = append(out, x)
		}
	}
	return out
}

func withItem(list []string, v string) []string {
	if contains(list, v) {
		return list
	}
	return append(list, v)
}

func removeParticipant(p *models.Plan, userUID string) {
	out := make([]models.UserSummary, 0, len(p.Participants))
	for _, u := range p.Participants {
		if u.ID != userUID {
			out = append(out, u)
		}
	}
	p.Participants = out
}

func addParticipant(p *models.Plan, u models.UserSummary) {
	if !p.HasParticipant(u.ID) {
		p.Participants = append(p.Participants, u)
	}
}

// setPaidPlans обновляет оплаченные планы в состоянии и в профиле пользователя.
func (s *State) setPaidPlans(list []models.PaidPlan) {
	s.PaidPlans = list
	if s.User != nil {
		s.User.PaidPlans = append([]models.PaidPlan{}, list...)
	}
}

func (s *State) setBlocked(list []string) {
	s.BlockedUsers = list
	if s.User != nil {
		s.User.BlockedUsers = append([]string{}, list...)
	}
}

func (s *State) setPremium(plan models.PremiumPlan, expiresAt *time.Time) {
	s.PremiumPlan = plan
	s.PremiumExpiresAt = expiresAt
	if s.User != nil {
		s.User.PremiumPlan = plan
		s.User.PremiumExpiresAt = expiresAt
	}
}

func (s *State) addTransaction(tx models.WalletTransaction) {
	s.WalletTransactions = append([]models.WalletTransaction{tx}, s.WalletTransactions...)
	s.WalletBalance = s.WalletBalance.Add(tx.Signed())
}

// removeTransaction удаляет операцию и откатывает её влияние на баланс.
func (s *State) removeTransaction(txID string) {
	for i, tx := range s.WalletTransactions {
		if tx.ID == txID {
			s.WalletTransactions = append(s.WalletTransactions[:i], s.WalletTransactions[i+1:]...)
			s.WalletBalance = s.WalletBalance.Sub(tx.Signed())
			return
		}
	}
}

// replaceTransaction заменяет локальную операцию сохранённой. Баланс
// корректируется на разницу сумм.
func (s *State) replaceTransaction(localID string, saved *models.WalletTransaction) {
	if saved == nil {
		s.removeTransaction(localID)
		return
	}
	for i, tx := range s.WalletTransactions {
		if tx.ID == localID {
			s.WalletBalance = s.WalletBalance.Sub(tx.Signed()).Add(saved.Signed())
			s.WalletTransactions[i] = *saved
			return
		}
	}
}

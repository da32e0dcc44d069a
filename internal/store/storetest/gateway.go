// Package storetest содержит хранилище в памяти для тестов Store.
package storetest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/magabrotheeeer/planzy/internal/lib/month"
	"github.com/magabrotheeeer/planzy/internal/models"
	"github.com/magabrotheeeer/planzy/internal/services/gateway"
)

// Gateway — хранилище в памяти с внедрением ошибок. Методы повторяют
// семантику gateway.Service, включая атомарную проверку вместимости и
// баланса.
type Gateway struct {
	mu sync.Mutex

	users         map[string]*models.User
	plans         map[string]*models.Plan
	tournaments   []models.Tournament
	transactions  map[string][]models.WalletTransaction
	chats         map[string]*models.Chat
	notifications map[string][]models.Notification
	reports       []models.UserReport

	failures map[string][]error
	calls    map[string]int
	blockers map[string]chan struct{}

	Now func() time.Time
}

// New создаёт пустое хранилище.
func New() *Gateway {
	return &Gateway{
		users:         make(map[string]*models.User),
		plans:         make(map[string]*models.Plan),
		transactions:  make(map[string][]models.WalletTransaction),
		chats:         make(map[string]*models.Chat),
		notifications: make(map[string][]models.Notification),
		failures:      make(map[string][]error),
		calls:         make(map[string]int),
		blockers:      make(map[string]chan struct{}),
		Now:           time.Now,
	}
}

// FailNext заставляет следующие вызовы метода вернуть errs по порядку.
func (g *Gateway) FailNext(method string, errs ...error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failures[method] = append(g.failures[method], errs...)
}

// Block задерживает вызовы метода, пока не будет вызвана возвращённая функция.
func (g *Gateway) Block(method string) (release func()) {
	ch := make(chan struct{})
	g.mu.Lock()
	g.blockers[method] = ch
	g.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.blockers, method)
			g.mu.Unlock()
			close(ch)
		})
	}
}

// Calls возвращает число вызовов метода.
func (g *Gateway) Calls(method string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[method]
}

// enter учитывает вызов и возвращает внедрённую ошибку. После enter
// блокировка g.mu захвачена, если ошибки нет.
func (g *Gateway) enter(ctx context.Context, method string) error {
	g.mu.Lock()
	g.calls[method]++
	if ch, ok := g.blockers[method]; ok {
		g.mu.Unlock()
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
		g.mu.Lock()
	}
	if errs := g.failures[method]; len(errs) > 0 {
		g.failures[method] = errs[1:]
		g.mu.Unlock()
		return errs[0]
	}
	return nil
}

// SeedUser сохраняет пользователя как есть и возвращает его копию.
func (g *Gateway) SeedUser(u models.User) models.User {
	g.mu.Lock()
	defer g.mu.Unlock()
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	u.ApplyDefaults()
	g.users[u.ID] = &u
	return u
}

// SeedPlan сохраняет план вместе с его групповым чатом.
func (g *Gateway) SeedPlan(p models.Plan) models.Plan {
	g.mu.Lock()
	defer g.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.Participants == nil {
		p.Participants = []models.UserSummary{}
	}
	g.plans[p.ID] = &p
	g.ensurePlanChat(&p)
	return p.Clone()
}

// SeedDeposit пополняет кошелёк пользователя.
func (g *Gateway) SeedDeposit(userUID string, amount decimal.Decimal) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.transactions[userUID] = append(g.transactions[userUID], models.WalletTransaction{
		ID: uuid.New().String(), UserID: userUID, Type: models.TxDeposit, Amount: amount,
		Description: "Deposit", CreatedAt: g.Now().UTC(),
	})
}

// Plan возвращает сохранённый план.
func (g *Gateway) Plan(planID string) (models.Plan, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	p, ok := g.plans[planID]
	if !ok {
		return models.Plan{}, false
	}
	return p.Clone(), true
}

// User возвращает сохранённого пользователя.
func (g *Gateway) User(userUID string) (models.User, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	u, ok := g.users[userUID]
	if !ok {
		return models.User{}, false
	}
	return *u, true
}

// Balance возвращает баланс по журналу.
func (g *Gateway) Balance(userUID string) decimal.Decimal {
	g.mu.Lock()
	defer g.mu.Unlock()
	return models.Balance(g.transactions[userUID])
}

// Reports возвращает сохранённые жалобы.
func (g *Gateway) Reports() []models.UserReport {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]models.UserReport{}, g.reports...)
}

func (g *Gateway) ensurePlanChat(p *models.Plan) *models.Chat {
	for _, c := range g.chats {
		if c.PlanID == p.ID {
			return c
		}
	}
	c := &models.Chat{
		ID: uuid.New().String(), PlanID: p.ID, PlanTitle: p.Title,
		Messages: []models.Message{}, CreatedAt: g.Now().UTC(),
	}
	g.chats[c.ID] = c
	return c
}

func (g *Gateway) GetUser(ctx context.Context, email string) (*models.User, error) {
	if err := g.enter(ctx, "GetUser"); err != nil {
		return nil, err
	}
	defer g.mu.Unlock()
	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range g.users {
		if u.Email == email {
			c := *u
			return &c, nil
		}
	}
	return nil, models.ErrNotFound
}

func (g *Gateway) GetUserByID(ctx context.Context, userUID string) (*models.User, error) {
	if err := g.enter(ctx, "GetUserByID"); err != nil {
		return nil, err
	}
	defer g.mu.Unlock()
	u, ok := g.users[userUID]
	if !ok {
		return nil, models.ErrNotFound
	}
	c := *u
	return &c, nil
}

func (g *Gateway) CreateUser(ctx context.Context, u models.User) (*models.User, error) {
	if err := g.enter(ctx, "CreateUser"); err != nil {
		return nil, err
	}
	defer g.mu.Unlock()
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	for _, existing := range g.users {
		if existing.Email == u.Email {
			c := *existing
			return &c, nil
		}
	}
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	if u.Username == "" {
		u.Username = strings.SplitN(u.Email, "@", 2)[0]
	}
	u.ApplyDefaults()
	u.CreatedAt = g.Now().UTC()
	g.users[u.ID] = &u
	c := u
	return &c, nil
}

func (g *Gateway) UpdateUser(ctx context.Context, userUID string, upd models.UserUpdate) (*models.User, error) {
	if err := g.enter(ctx, "UpdateUser"); err != nil {
		return nil, err
	}
	defer g.mu.Unlock()
	u, ok := g.users[userUID]
	if !ok {
		return nil, models.ErrNotFound
	}
	upd.Apply(u)
	c := *u
	return &c, nil
}

func (g *Gateway) SetPremium(ctx context.Context, userUID string, plan models.PremiumPlan, expiresAt *time.Time) error {
	if err := g.enter(ctx, "SetPremium"); err != nil {
		return err
	}
	defer g.mu.Unlock()
	u, ok := g.users[userUID]
	if !ok {
		return models.ErrNotFound
	}
	u.PremiumPlan, u.PremiumExpiresAt = plan, expiresAt
	return nil
}

// appendTx добавляет операцию, не допуская отрицательного баланса.
// Вызывается под g.mu.
func (g *Gateway) appendTx(wt models.WalletTransaction) (*models.WalletTransaction, decimal.Decimal, error) {
	if !wt.Type.Valid() {
		return nil, decimal.Zero, models.ErrInvalidInput
	}
	if !wt.Amount.IsPositive() {
		return nil, decimal.Zero, models.ErrInvalidAmount
	}
	balance := models.Balance(g.transactions[wt.UserID]).Add(wt.Signed())
	if balance.IsNegative() {
		return nil, decimal.Zero, models.ErrInsufficientFunds
	}
	if wt.ID == "" {
		wt.ID = uuid.New().String()
	}
	wt.CreatedAt = g.Now().UTC()
	g.transactions[wt.UserID] = append(g.transactions[wt.UserID], wt)
	return &wt, balance, nil
}

func (g *Gateway) PurchasePremium(ctx context.Context, userUID string, plan models.PremiumPlan,
	expiresAt time.Time) (*models.WalletTransaction, decimal.Decimal, error) {
	if err := g.enter(ctx, "PurchasePremium"); err != nil {
		return nil, decimal.Zero, err
	}
	defer g.mu.Unlock()
	u, ok := g.users[userUID]
	if !ok {
		return nil, decimal.Zero, models.ErrNotFound
	}
	tx, balance, err := g.appendTx(models.WalletTransaction{
		UserID: userUID, Type: models.TxPayment, Amount: plan.Limits().Price, Description: "Premium " + string(plan),
	})
	if err != nil {
		return nil, decimal.Zero, err
	}
	u.PremiumPlan, u.PremiumExpiresAt = plan, &expiresAt
	return tx, balance, nil
}

func (g *Gateway) GetPlans(ctx context.Context) ([]models.Plan, error) {
	if err := g.enter(ctx, "GetPlans"); err != nil {
		return nil, err
	}
	defer g.mu.Unlock()
	out := make([]models.Plan, 0, len(g.plans))
	for _, p := range g.plans {
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (g *Gateway) CountPlansCreatedThisMonth(ctx context.Context, userUID string) (int, error) {
	if err := g.enter(ctx, "CountPlansCreatedThisMonth"); err != nil {
		return 0, err
	}
	defer g.mu.Unlock()
	now := g.Now().UTC()
	start := month.Start(now)
	n := 0
	for _, p := range g.plans {
		if p.Creator.ID == userUID && !p.CreatedAt.Before(start) {
			n++
		}
	}
	return n, nil
}

func (g *Gateway) CreatePlan(ctx context.Context, p models.Plan) (*models.Plan, error) {
	if err := g.enter(ctx, "CreatePlan"); err != nil {
		return nil, err
	}
	defer g.mu.Unlock()
	creator, ok := g.users[p.Creator.ID]
	if !ok {
		return nil, models.ErrNotFound
	}
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	p.Creator = creator.Summary()
	p.Participants = []models.UserSummary{}
	p.CreatedAt = g.Now().UTC()
	g.plans[p.ID] = &p
	g.ensurePlanChat(&p)
	c := p.Clone()
	return &c, nil
}

func (g *Gateway) UpdatePlan(ctx context.Context, planID, actorUID string, upd models.PlanUpdate) (*models.Plan, error) {
	if err := g.enter(ctx, "UpdatePlan"); err != nil {
		return nil, err
	}
	defer g.mu.Unlock()
	p, ok := g.plans[planID]
	if !ok {
		return nil, models.ErrNotFound
	}
	if p.Creator.ID != actorUID {
		return nil, models.ErrForbidden
	}
	upd.Apply(p)
	if upd.Title != nil {
		g.ensurePlanChat(p).PlanTitle = p.Title
	}
	c := p.Clone()
	return &c, nil
}

func (g *Gateway) DeletePlan(ctx context.Context, planID, actorUID string) error {
	if err := g.enter(ctx, "DeletePlan"); err != nil {
		return err
	}
	defer g.mu.Unlock()
	p, ok := g.plans[planID]
	if !ok {
		return models.ErrNotFound
	}
	if p.Creator.ID != actorUID {
		return models.ErrForbidden
	}
	delete(g.plans, planID)
	for id, c := range g.chats {
		if c.PlanID == planID {
			delete(g.chats, id)
		}
	}
	return nil
}

// join проверяет возраст и вместимость и добавляет участника.
// Вызывается под g.mu.
func (g *Gateway) join(p *models.Plan, u *models.User) (joined bool, err error) {
	if p.HasParticipant(u.ID) {
		return false, nil
	}
	if p.MinAge != nil && u.Age != nil && *u.Age < *p.MinAge {
		return false, models.ErrUnderage
	}
	if p.IsFull() {
		return false, models.ErrPlanFull
	}
	p.Participants = append(p.Participants, u.Summary())
	return true, nil
}

func (g *Gateway) JoinPlan(ctx context.Context, planID, userUID string) (*models.Plan, error) {
	if err := g.enter(ctx, "JoinPlan"); err != nil {
		return nil, err
	}
	defer g.mu.Unlock()
	p, ok := g.plans[planID]
	u, uok := g.users[userUID]
	if !ok || !uok {
		return nil, models.ErrNotFound
	}
	if _, err := g.join(p, u); err != nil {
		return nil, err
	}
	c := p.Clone()
	return &c, nil
}

func removeSummary(list []models.UserSummary, userUID string) []models.UserSummary {
	out := make([]models.UserSummary, 0, len(list))
	for _, u := range list {
		if u.ID != userUID {
			out = append(out, u)
		}
	}
	return out
}

func (g *Gateway) LeavePlan(ctx context.Context, planID, userUID string) (*models.Plan, error) {
	if err := g.enter(ctx, "LeavePlan"); err != nil {
		return nil, err
	}
	defer g.mu.Unlock()
	p, ok := g.plans[planID]
	if !ok {
		return nil, models.ErrNotFound
	}
	p.Participants = removeSummary(p.Participants, userUID)
	c := p.Clone()
	return &c, nil
}

func (g *Gateway) PayPlan(ctx context.Context, planID, userUID string) (*gateway.PayResult, error) {
	if err := g.enter(ctx, "PayPlan"); err != nil {
		return nil, err
	}
	defer g.mu.Unlock()
	p, ok := g.plans[planID]
	u, uok := g.users[userUID]
	if !ok || !uok {
		return nil, models.ErrNotFound
	}
	if p.HasParticipant(userUID) {
		return nil, models.ErrAlreadyJoined
	}
	if !p.IsPaid() {
		return nil, models.ErrInvalidInput
	}
	if p.IsFull() {
		return nil, models.ErrPlanFull
	}
	tx, balance, err := g.appendTx(models.WalletTransaction{
		UserID: userUID, Type: models.TxPayment, Amount: p.PricePerPerson.Decimal,
		Description: "Plan payment", PlanID: planID,
	})
	if err != nil {
		return nil, err
	}
	if _, err = g.join(p, u); err != nil {
		return nil, err
	}
	u.PaidPlans = append(u.PaidPlans, models.PaidPlan{PlanID: planID, Amount: tx.Amount})
	c := p.Clone()
	return &gateway.PayResult{Plan: &c, Transaction: tx, Balance: balance}, nil
}

func (g *Gateway) LeavePlanWithRefund(ctx context.Context, planID, userUID string) (*gateway.PayResult, error) {
	if err := g.enter(ctx, "LeavePlanWithRefund"); err != nil {
		return nil, err
	}
	defer g.mu.Unlock()
	p, ok := g.plans[planID]
	u, uok := g.users[userUID]
	if !ok || !uok {
		return nil, models.ErrNotFound
	}
	p.Participants = removeSummary(p.Participants, userUID)

	res := &gateway.PayResult{Balance: models.Balance(g.transactions[userUID])}
	paid := make([]models.PaidPlan, 0, len(u.PaidPlans))
	for _, pp := range u.PaidPlans {
		if pp.PlanID != planID {
			paid = append(paid, pp)
			continue
		}
		if pp.Amount.IsPositive() {
			tx, balance, err := g.appendTx(models.WalletTransaction{
				UserID: userUID, Type: models.TxRefund, Amount: pp.Amount, Description: "Refund", PlanID: planID,
			})
			if err != nil {
				return nil, err
			}
			res.Transaction, res.Balance = tx, balance
		}
	}
	u.PaidPlans = paid
	c := p.Clone()
	res.Plan = &c
	return res, nil
}

func (g *Gateway) GetTournaments(ctx context.Context) ([]models.Tournament, error) {
	if err := g.enter(ctx, "GetTournaments"); err != nil {
		return nil, err
	}
	defer g.mu.Unlock()
	return append([]models.Tournament{}, g.tournaments...), nil
}

func (g *Gateway) CreateTournament(ctx context.Context, t models.Tournament) (*models.Tournament, error) {
	if err := g.enter(ctx, "CreateTournament"); err != nil {
		return nil, err
	}
	defer g.mu.Unlock()
	if _, ok := g.plans[t.PlanID]; !ok {
		return nil, models.ErrNotFound
	}
	for _, existing := range g.tournaments {
		if existing.PlanID == t.PlanID {
			return nil, models.ErrAlreadyExists
		}
	}
	t.CreatedAt = g.Now().UTC()
	g.tournaments = append([]models.Tournament{t}, g.tournaments...)
	return &t, nil
}

func (g *Gateway) GetWalletTransactions(ctx context.Context, userUID string) ([]models.WalletTransaction, error) {
	if err := g.enter(ctx, "GetWalletTransactions"); err != nil {
		return nil, err
	}
	defer g.mu.Unlock()
	txs := g.transactions[userUID]
	out := make([]models.WalletTransaction, len(txs))
	for i, tx := range txs {
		out[len(txs)-1-i] = tx
	}
	return out, nil
}

func (g *Gateway) GetWalletBalance(ctx context.Context, userUID string) (decimal.Decimal, error) {
	if err := g.enter(ctx, "GetWalletBalance"); err != nil {
		return decimal.Zero, err
	}
	defer g.mu.Unlock()
	return models.Balance(g.transactions[userUID]), nil
}

func (g *Gateway) CreateWalletTransaction(ctx context.Context, userUID string,
	wt models.WalletTransaction) (*models.WalletTransaction, decimal.Decimal, error) {
	if err := g.enter(ctx, "CreateWalletTransaction"); err != nil {
		return nil, decimal.Zero, err
	}
	defer g.mu.Unlock()
	wt.UserID = userUID
	return g.appendTx(wt)
}

func (g *Gateway) Withdraw(ctx context.Context, userUID string, amount decimal.Decimal) (*models.WalletTransaction, decimal.Decimal, error) {
	if err := g.enter(ctx, "Withdraw"); err != nil {
		return nil, decimal.Zero, err
	}
	defer g.mu.Unlock()
	balance := models.Balance(g.transactions[userUID])
	if !balance.IsPositive() {
		return nil, decimal.Zero, models.ErrInsufficientFunds
	}
	return g.appendTx(models.WalletTransaction{
		UserID: userUID, Type: models.TxWithdrawal, Amount: decimal.Min(amount, balance), Description: "Withdrawal",
	})
}

func (g *Gateway) GetChats(ctx context.Context, userUID string) ([]models.Chat, error) {
	if err := g.enter(ctx, "GetChats"); err != nil {
		return nil, err
	}
	defer g.mu.Unlock()
	out := []models.Chat{}
	for _, c := range g.chats {
		if c.IsPrivate {
			if c.HasParticipant(userUID) {
				out = append(out, c.Clone())
			}
			continue
		}
		if p, ok := g.plans[c.PlanID]; ok && (p.Creator.ID == userUID || p.HasParticipant(userUID)) {
			out = append(out, c.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (g *Gateway) GetChatForPlan(ctx context.Context, planID string) (*models.Chat, error) {
	if err := g.enter(ctx, "GetChatForPlan"); err != nil {
		return nil, err
	}
	defer g.mu.Unlock()
	p, ok := g.plans[planID]
	if !ok {
		return nil, models.ErrNotFound
	}
	c := g.ensurePlanChat(p).Clone()
	return &c, nil
}

func (g *Gateway) GetOrCreatePrivateChat(ctx context.Context, userUID, otherUID string) (*models.Chat, error) {
	if err := g.enter(ctx, "GetOrCreatePrivateChat"); err != nil {
		return nil, err
	}
	defer g.mu.Unlock()
	if userUID == otherUID {
		return nil, models.ErrInvalidInput
	}
	a, aok := g.users[userUID]
	b, bok := g.users[otherUID]
	if !aok || !bok {
		return nil, models.ErrNotFound
	}
	for _, c := range g.chats {
		if c.IsPrivate && c.HasParticipant(userUID) && c.HasParticipant(otherUID) {
			cp := c.Clone()
			return &cp, nil
		}
	}
	c := &models.Chat{
		ID: uuid.New().String(), IsPrivate: true,
		Participants: []models.UserSummary{a.Summary(), b.Summary()},
		Messages:     []models.Message{}, CreatedAt: g.Now().UTC(),
	}
	g.chats[c.ID] = c
	cp := c.Clone()
	return &cp, nil
}

func (g *Gateway) AppendMessage(ctx context.Context, chatID string, m models.Message) (*models.Message, error) {
	if err := g.enter(ctx, "AppendMessage"); err != nil {
		return nil, err
	}
	defer g.mu.Unlock()
	c, ok := g.chats[chatID]
	if !ok {
		return nil, models.ErrNotFound
	}
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	m.CreatedAt = g.Now().UTC()
	c.Messages = append(c.Messages, m)
	return &m, nil
}

// message возвращает сообщение отправителя. Вызывается под g.mu.
func (g *Gateway) message(chatID, messageID, senderUID string) (*models.Message, error) {
	c, ok := g.chats[chatID]
	if !ok {
		return nil, models.ErrNotFound
	}
	for i := range c.Messages {
		m := &c.Messages[i]
		if m.ID != messageID {
			continue
		}
		if m.IsDeleted {
			return nil, models.ErrNotFound
		}
		if m.SenderID != senderUID {
			return nil, models.ErrForbidden
		}
		return m, nil
	}
	return nil, models.ErrNotFound
}

func (g *Gateway) EditMessage(ctx context.Context, chatID, messageID, senderUID, content string) (*models.Message, error) {
	if err := g.enter(ctx, "EditMessage"); err != nil {
		return nil, err
	}
	defer g.mu.Unlock()
	m, err := g.message(chatID, messageID, senderUID)
	if err != nil {
		return nil, err
	}
	m.Content, m.IsEdited = content, true
	c := *m
	return &c, nil
}

func (g *Gateway) DeleteMessage(ctx context.Context, chatID, messageID, senderUID string) (*models.Message, error) {
	if err := g.enter(ctx, "DeleteMessage"); err != nil {
		return nil, err
	}
	defer g.mu.Unlock()
	m, err := g.message(chatID, messageID, senderUID)
	if err != nil {
		return nil, err
	}
	m.Content, m.IsDeleted = "", true
	c := *m
	return &c, nil
}

func (g *Gateway) GetNotifications(ctx context.Context, userUID string) ([]models.Notification, error) {
	if err := g.enter(ctx, "GetNotifications"); err != nil {
		return nil, err
	}
	defer g.mu.Unlock()
	return append([]models.Notification{}, g.notifications[userUID]...), nil
}

func (g *Gateway) CreateNotification(ctx context.Context, n models.Notification) (*models.Notification, error) {
	if err := g.enter(ctx, "CreateNotification"); err != nil {
		return nil, err
	}
	defer g.mu.Unlock()
	if _, ok := g.users[n.UserID]; !ok {
		return nil, models.ErrNotFound
	}
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	n.CreatedAt = g.Now().UTC()
	g.notifications[n.UserID] = append([]models.Notification{n}, g.notifications[n.UserID]...)
	return &n, nil
}

func (g *Gateway) MarkNotificationRead(ctx context.Context, userUID, notificationID string) error {
	if err := g.enter(ctx, "MarkNotificationRead"); err != nil {
		return err
	}
	defer g.mu.Unlock()
	list := g.notifications[userUID]
	for i := range list {
		if list[i].ID == notificationID {
			list[i].Read = true
			return nil
		}
	}
	return models.ErrNotFound
}

func (g *Gateway) BlockUser(ctx context.Context, userUID, targetUID string) ([]string, error) {
	if err := g.enter(ctx, "BlockUser"); err != nil {
		return nil, err
	}
	defer g.mu.Unlock()
	u, ok := g.users[userUID]
	if !ok {
		return nil, models.ErrNotFound
	}
	for _, id := range u.BlockedUsers {
		if id == targetUID {
			return append([]string{}, u.BlockedUsers...), nil
		}
	}
	u.BlockedUsers = append(u.BlockedUsers, targetUID)
	return append([]string{}, u.BlockedUsers...), nil
}

func (g *Gateway) UnblockUser(ctx context.Context, userUID, targetUID string) ([]string, error) {
	if err := g.enter(ctx, "UnblockUser"); err != nil {
		return nil, err
	}
	defer g.mu.Unlock()
	u, ok := g.users[userUID]
	if !ok {
		return nil, models.ErrNotFound
	}
	out := make([]string, 0, len(u.BlockedUsers))
	for _, id := range u.BlockedUsers {
		if id != targetUID {
			out = append(out, id)
		}
	}
	u.BlockedUsers = out
	return append([]string{}, out...), nil
}

func (g *Gateway) ReportUser(ctx context.Context, reporterUID, reportedUID, reason string) (*models.UserReport, error) {
	if err := g.enter(ctx, "ReportUser"); err != nil {
		return nil, err
	}
	defer g.mu.Unlock()
	r := models.UserReport{
		ID: uuid.New().String(), ReporterID: reporterUID, ReportedID: reportedUID,
		Reason: reason, CreatedAt: g.Now().UTC(),
	}
	g.reports = append(g.reports, r)
	return &r, nil
}

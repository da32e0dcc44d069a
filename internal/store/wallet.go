package store

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/magabrotheeeer/planzy/internal/models"
)

// reconcileBalance принимает баланс сервера, только если в очереди нет
// других действий: иначе он не учитывает ещё не сохранённые операции.
// Вызывается под s.mu.
func (s *Store) reconcileBalance(st *State, balance decimal.Decimal) {
	if s.queueLen() == 0 {
		st.WalletBalance = balance
	}
}

// ledgerTask сохраняет локальную операцию кошелька и заменяет её
// сохранённой версией.
func (s *Store) ledgerTask(op string, userID string, tx models.WalletTransaction) *task {
	return &task{
		op: op,
		persist: func(ctx context.Context) (func(*State), error) {
			saved, balance, err := s.gw.CreateWalletTransaction(ctx, userID, tx)
			if err != nil {
				return nil, err
			}
			return func(st *State) {
				st.replaceTransaction(tx.ID, saved)
				s.reconcileBalance(st, balance)
			}, nil
		},
		revert: func(st *State) {
			st.removeTransaction(tx.ID)
		},
	}
}

func (s *Store) newTransaction(userID string, t models.TransactionType, amount decimal.Decimal,
	description, planID string) models.WalletTransaction {
	return models.WalletTransaction{
		ID:          uuid.New().String(),
		UserID:      userID,
		Type:        t,
		Amount:      amount,
		Description: strings.TrimSpace(description),
		PlanID:      planID,
		CreatedAt:   s.now().UTC(),
	}
}

// AddToWallet зачисляет средства: возврат или доход от плана.
func (s *Store) AddToWallet(amount decimal.Decimal, description, planID string, t models.TransactionType) (*Pending, error) {
	if t != models.TxRefund && t != models.TxIncome {
		return nil, models.ErrInvalidInput
	}
	if !amount.IsPositive() {
		return nil, models.ErrInvalidAmount
	}
	if err := s.begin(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	user, err := s.requireUser()
	if err != nil {
		return nil, err
	}
	tx := s.newTransaction(user.ID, t, amount, description, planID)
	s.state.addTransaction(tx)
	return s.enqueue(s.ledgerTask("AddToWallet", user.ID, tx)), nil
}

// DepositToWallet пополняет кошелёк, например после оплаты картой.
func (s *Store) DepositToWallet(amount decimal.Decimal, description string) (*Pending, error) {
	if !amount.IsPositive() {
		return nil, models.ErrInvalidAmount
	}
	if err := s.begin(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	user, err := s.requireUser()
	if err != nil {
		return nil, err
	}
	if description == "" {
		description = "Deposit"
	}
	tx := s.newTransaction(user.ID, models.TxDeposit, amount, description, "")
	s.state.addTransaction(tx)
	return s.enqueue(s.ledgerTask("DepositToWallet", user.ID, tx)), nil
}

// WithdrawFromWallet выводит средства. Сумма ограничивается доступным
// балансом; фактически списанная сумма возвращается вызывающему.
func (s *Store) WithdrawFromWallet(amount decimal.Decimal) (decimal.Decimal, *Pending, error) {
	if !amount.IsPositive() {
		return decimal.Zero, nil, models.ErrInvalidAmount
	}
	if err := s.begin(); err != nil {
		return decimal.Zero, nil, err
	}
	defer s.mu.Unlock()

	user, err := s.requireUser()
	if err != nil {
		return decimal.Zero, nil, err
	}
	if !s.state.WalletBalance.IsPositive() {
		return decimal.Zero, nil, models.ErrInsufficientFunds
	}
	effective := decimal.Min(amount, s.state.WalletBalance)
	tx := s.newTransaction(user.ID, models.TxWithdrawal, effective, "Withdrawal", "")
	s.state.addTransaction(tx)

	userID := user.ID
	pending := s.enqueue(&task{
		op: "WithdrawFromWallet",
		persist: func(ctx context.Context) (func(*State), error) {
			saved, balance, err := s.gw.Withdraw(ctx, userID, effective)
			if err != nil {
				return nil, err
			}
			return func(st *State) {
				st.replaceTransaction(tx.ID, saved)
				s.reconcileBalance(st, balance)
			}, nil
		},
		revert: func(st *State) {
			st.removeTransaction(tx.ID)
		},
	})
	return effective, pending, nil
}

// AddPaidPlan записывает оплату участия в плане, сделанную вне кошелька.
func (s *Store) AddPaidPlan(planID string, amount decimal.Decimal) (*Pending, error) {
	if amount.IsNegative() {
		return nil, models.ErrInvalidAmount
	}
	if err := s.begin(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	user, err := s.requireUser()
	if err != nil {
		return nil, err
	}
	prev, hadPrev := s.state.paidAmount(planID)
	s.state.addPaidPlan(models.PaidPlan{PlanID: planID, Amount: amount})

	userID := user.ID
	return s.enqueue(&task{
		op: "AddPaidPlan",
		persist: func(ctx context.Context) (func(*State), error) {
			// Список читается при записи: откаченные к этому моменту оплаты
			// в него уже не попадают.
			s.mu.RLock()
			next := append([]models.PaidPlan{}, s.state.PaidPlans...)
			s.mu.RUnlock()

			updated, err := s.gw.UpdateUser(ctx, userID, models.UserUpdate{PaidPlans: &next})
			if err != nil {
				return nil, err
			}
			return func(st *State) {
				if s.queueLen() == 0 {
					st.setPaidPlans(append([]models.PaidPlan{}, updated.PaidPlans...))
				}
			}, nil
		},
		undo: map[string]func(*State){
			paidKey(planID): func(st *State) {
				if hadPrev {
					st.addPaidPlan(models.PaidPlan{PlanID: planID, Amount: prev})
					return
				}
				st.removePaidPlan(planID)
			},
		},
	}), nil
}

func paidKey(planID string) string {
	return "paid." + planID
}

// PayPlan оплачивает участие в платном плане из кошелька: списывает цену,
// записывает оплату и добавляет пользователя в участники.
func (s *Store) PayPlan(planID string) (*Pending, error) {
	if err := s.begin(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	user, err := s.requireUser()
	if err != nil {
		return nil, err
	}
	plan, err := s.checkJoin(user, planID)
	if err != nil {
		return nil, err
	}
	if !plan.IsPaid() {
		return nil, models.ErrInvalidInput
	}
	price := plan.PricePerPerson.Decimal
	if s.state.WalletBalance.LessThan(price) {
		return nil, models.ErrInsufficientFunds
	}

	summary := user.Summary()
	tx := s.newTransaction(summary.ID, models.TxPayment, price, "Payment: "+plan.Title, planID)
	s.state.addTransaction(tx)
	s.state.addPaidPlan(models.PaidPlan{PlanID: planID, Amount: price})
	addParticipant(plan, summary)
	s.state.JoinedPlans = withItem(s.state.JoinedPlans, planID)

	return s.enqueue(&task{
		op: "PayPlan",
		persist: func(ctx context.Context) (func(*State), error) {
			res, err := s.gw.PayPlan(ctx, planID, summary.ID)
			if err != nil {
				return nil, err
			}
			return func(st *State) {
				st.upsertPlan(res.Plan.Clone())
				st.replaceTransaction(tx.ID, res.Transaction)
				if res.Transaction != nil {
					st.addPaidPlan(models.PaidPlan{PlanID: planID, Amount: res.Transaction.Amount})
				}
				s.reconcileBalance(st, res.Balance)
			}, nil
		},
		revert: func(st *State) {
			st.removeTransaction(tx.ID)
			st.removePaidPlan(planID)
			if p, _ := st.plan(planID); p != nil {
				removeParticipant(p, summary.ID)
			}
			st.JoinedPlans = without(st.JoinedPlans, planID)
		},
	}), nil
}

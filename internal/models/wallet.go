package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType — тип операции по кошельку.
type TransactionType string

const (
	TxRefund     TransactionType = "refund"
	TxWithdrawal TransactionType = "withdrawal"
	TxIncome     TransactionType = "income"
	TxDeposit    TransactionType = "deposit"
	TxPayment    TransactionType = "payment"
)

// IsCredit сообщает, увеличивает ли операция баланс.
func (t TransactionType) IsCredit() bool {
	switch t {
	case TxRefund, TxIncome, TxDeposit:
		return true
	}
	return false
}

// Valid сообщает, известен ли тип операции.
func (t TransactionType) Valid() bool {
	switch t {
	case TxRefund, TxWithdrawal, TxIncome, TxDeposit, TxPayment:
		return true
	}
	return false
}

// WalletTransaction — запись журнала кошелька. Amount всегда положителен,
// знак определяется типом операции.
type WalletTransaction struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	Type        TransactionType `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	PlanID      string          `json:"plan_id,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Signed возвращает сумму со знаком.
func (tx WalletTransaction) Signed() decimal.Decimal {
	if tx.Type.IsCredit() {
		return tx.Amount
	}
	return tx.Amount.Neg()
}

// Balance вычисляет баланс по журналу операций.
func Balance(txs []WalletTransaction) decimal.Decimal {
	sum := decimal.Zero
	for _, tx := range txs {
		sum = sum.Add(tx.Signed())
	}
	return sum
}

// WalletState — снимок кошелька: баланс и журнал.
type WalletState struct {
	Balance      decimal.Decimal     `json:"balance"`
	Transactions []WalletTransaction `json:"transactions"`
}

// AmountInput — сумма пополнения или вывода средств.
type AmountInput struct {
	Amount decimal.Decimal `json:"amount"`
}

// DepositInput — пополнение кошелька. PaymentToken — токен карты для
// платёжного шлюза.
type DepositInput struct {
	Amount       decimal.Decimal `json:"amount"`
	PaymentToken string          `json:"payment_token,omitempty"`
	Description  string          `json:"description,omitempty" validate:"max=200"`
}

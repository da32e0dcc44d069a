package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/magabrotheeeer/planzy/internal/models"
)

const signedAmountSum = `COALESCE(SUM(CASE WHEN type IN ('refund', 'income', 'deposit') THEN amount ELSE -amount END), 0)`

func scanTransaction(row rowScanner) (*models.WalletTransaction, error) {
	var tx models.WalletTransaction
	var planID sql.NullString
	err := row.Scan(&tx.ID, &tx.UserID, &tx.Type, &tx.Amount, &tx.Description, &planID, &tx.CreatedAt)
	if err != nil {
		return nil, err
	}
	tx.PlanID = planID.String
	return &tx, nil
}

// ListWalletTransactions возвращает журнал кошелька, новые записи первыми.
func (s *Storage) ListWalletTransactions(ctx context.Context, userUID string) ([]models.WalletTransaction, error) {
	const op = "storage.ListWalletTransactions"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	rows, err := s.DB.QueryContext(ctx, `SELECT id, user_id, type, amount, description, plan_id::text, created_at
			  FROM wallet_transactions WHERE user_id = $1
			  ORDER BY created_at DESC, id`, userUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	result := make([]models.WalletTransaction, 0)
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, *tx)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// WalletBalance вычисляет баланс пользователя по журналу.
func (s *Storage) WalletBalance(ctx context.Context, userUID string) (decimal.Decimal, error) {
	const op = "storage.WalletBalance"
	balance, err := balanceOf(ctx, s.DB, userUID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %w", op, err)
	}
	return balance, nil
}

func balanceOf(ctx context.Context, q querier, userUID string) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := q.QueryRowContext(ctx,
		`SELECT `+signedAmountSum+` FROM wallet_transactions WHERE user_id = $1`, userUID).Scan(&balance)
	return balance, err
}

// lockWallet блокирует строку пользователя, сериализуя операции по его
// кошельку, и возвращает текущий баланс.
func lockWallet(ctx context.Context, tx *sql.Tx, userUID string) (decimal.Decimal, error) {
	var uid string
	if err := tx.QueryRowContext(ctx, `SELECT uid FROM users WHERE uid = $1 FOR UPDATE`, userUID).Scan(&uid); err != nil {
		return decimal.Zero, notFound(err)
	}
	return balanceOf(ctx, tx, userUID)
}

// appendTransaction проверяет, что операция не уводит баланс в минус, и
// записывает её в журнал. Кошелёк должен быть заблокирован.
func (s *Storage) appendTransaction(ctx context.Context, tx *sql.Tx, balance decimal.Decimal,
	wt models.WalletTransaction) (*models.WalletTransaction, decimal.Decimal, error) {
	if !wt.Type.Valid() {
		return nil, balance, models.ErrInvalidInput
	}
	if !wt.Amount.IsPositive() {
		return nil, balance, models.ErrInvalidAmount
	}
	next := balance.Add(wt.Signed())
	if next.IsNegative() {
		return nil, balance, models.ErrInsufficientFunds
	}
	if wt.ID == "" {
		wt.ID = uuid.New().String()
	}
	if wt.CreatedAt.IsZero() {
		wt.CreatedAt = s.now().UTC()
	}
	_, err := tx.ExecContext(ctx, `INSERT INTO wallet_transactions (id, user_id, type, amount, description, plan_id, created_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		wt.ID, wt.UserID, string(wt.Type), wt.Amount, wt.Description, nullString(wt.PlanID), wt.CreatedAt)
	if err != nil {
		return nil, balance, err
	}
	return &wt, next, nil
}

// InsertWalletTransaction атомарно добавляет операцию в журнал и возвращает
// её вместе с новым балансом. Списание сверх баланса отклоняется с
// models.ErrInsufficientFunds.
func (s *Storage) InsertWalletTransaction(ctx context.Context, wt models.WalletTransaction) (*models.WalletTransaction, decimal.Decimal, error) {
	const op = "storage.InsertWalletTransaction"
	if err := checkCtx(ctx, op); err != nil {
		return nil, decimal.Zero, err
	}

	var (
		created *models.WalletTransaction
		balance decimal.Decimal
	)
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		current, err := lockWallet(ctx, tx, wt.UserID)
		if err != nil {
			return err
		}
		created, balance, err = s.appendTransaction(ctx, tx, current, wt)
		return err
	})
	if err != nil {
		return nil, decimal.Zero, fmt.Errorf("%s: %w", op, err)
	}
	return created, balance, nil
}

// WithdrawAll списывает не больше доступного баланса. Возвращает
// models.ErrInsufficientFunds, если баланс нулевой.
func (s *Storage) WithdrawAll(ctx context.Context, userUID string, amount decimal.Decimal, description string) (*models.WalletTransaction, decimal.Decimal, error) {
	const op = "storage.WithdrawAll"
	if err := checkCtx(ctx, op); err != nil {
		return nil, decimal.Zero, err
	}
	if !amount.IsPositive() {
		return nil, decimal.Zero, fmt.Errorf("%s: %w", op, models.ErrInvalidAmount)
	}

	var (
		created *models.WalletTransaction
		balance decimal.Decimal
	)
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		current, err := lockWallet(ctx, tx, userUID)
		if err != nil {
			return err
		}
		if !current.IsPositive() {
			return models.ErrInsufficientFunds
		}
		created, balance, err = s.appendTransaction(ctx, tx, current, models.WalletTransaction{
			UserID:      userUID,
			Type:        models.TxWithdrawal,
			Amount:      decimal.Min(amount, current),
			Description: description,
		})
		return err
	})
	if err != nil {
		return nil, decimal.Zero, fmt.Errorf("%s: %w", op, err)
	}
	return created, balance, nil
}

// PaymentResult — итог оплаты участия в плане кошельком.
type PaymentResult struct {
	Plan        *models.Plan
	Transaction *models.WalletTransaction
	Balance     decimal.Decimal
}

// PayForPlan в одной транзакции проверяет вместимость плана, списывает
// стоимость участия, сохраняет запись об оплате и добавляет пользователя
// в участники. Бесплатный план возвращает models.ErrInvalidInput.
func (s *Storage) PayForPlan(ctx context.Context, planID, userUID, description string) (*PaymentResult, error) {
	const op = "storage.PayForPlan"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	var res PaymentResult
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		joined, price, err := lockPlanForJoin(ctx, tx, planID, userUID)
		if err != nil {
			return err
		}
		if joined {
			return models.ErrAlreadyJoined
		}
		if !price.Valid || !price.Decimal.IsPositive() {
			return models.ErrInvalidInput
		}
		amount := price.Decimal
		current, err := lockWallet(ctx, tx, userUID)
		if err != nil {
			return err
		}
		res.Transaction, res.Balance, err = s.appendTransaction(ctx, tx, current, models.WalletTransaction{
			UserID:      userUID,
			Type:        models.TxPayment,
			Amount:      amount,
			Description: description,
			PlanID:      planID,
		})
		if err != nil {
			return err
		}
		if _, err = tx.ExecContext(ctx, `UPDATE users SET paid_plans = (
			      SELECT COALESCE(jsonb_agg(e), '[]'::jsonb)
			      FROM jsonb_array_elements(paid_plans) e WHERE e->>'plan_id' <> $2
			  ) || jsonb_build_array(jsonb_build_object('plan_id', $2::text, 'amount', $3::numeric))
			  WHERE uid = $1`, userUID, planID, amount); err != nil {
			return err
		}
		if err = insertParticipant(ctx, tx, planID, userUID, s.now().UTC()); err != nil {
			return err
		}
		res.Plan, err = s.getPlan(ctx, tx, planID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &res, nil
}

// LeavePlanWithRefund удаляет пользователя из участников и, если участие
// было оплачено, возвращает оплаченную сумму на кошелёк. Transaction
// результата nil, если возвращать нечего.
func (s *Storage) LeavePlanWithRefund(ctx context.Context, planID, userUID, description string) (*PaymentResult, error) {
	const op = "storage.LeavePlanWithRefund"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	var res PaymentResult
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		current, err := lockWallet(ctx, tx, userUID)
		if err != nil {
			return err
		}
		res.Balance = current
		if _, err = tx.ExecContext(ctx,
			`DELETE FROM plan_participants WHERE plan_id = $1 AND user_id = $2`, planID, userUID); err != nil {
			return err
		}

		var paid decimal.NullDecimal
		err = tx.QueryRowContext(ctx, `SELECT (e->>'amount')::numeric
			  FROM users u, jsonb_array_elements(u.paid_plans) e
			  WHERE u.uid = $1 AND e->>'plan_id' = $2
			  LIMIT 1`, userUID, planID).Scan(&paid)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		if paid.Valid && paid.Decimal.IsPositive() {
			res.Transaction, res.Balance, err = s.appendTransaction(ctx, tx, current, models.WalletTransaction{
				UserID:      userUID,
				Type:        models.TxRefund,
				Amount:      paid.Decimal,
				Description: description,
				PlanID:      planID,
			})
			if err != nil {
				return err
			}
			if _, err = tx.ExecContext(ctx, `UPDATE users SET paid_plans = (
				      SELECT COALESCE(jsonb_agg(e), '[]'::jsonb)
				      FROM jsonb_array_elements(paid_plans) e WHERE e->>'plan_id' <> $2)
				  WHERE uid = $1`, userUID, planID); err != nil {
				return err
			}
		}
		res.Plan, err = s.getPlan(ctx, tx, planID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &res, nil
}

// PurchasePremium списывает стоимость тарифа с кошелька и активирует тариф.
func (s *Storage) PurchasePremium(ctx context.Context, userUID string, plan models.PremiumPlan, price decimal.Decimal,
	expiresAt time.Time, description string) (*models.WalletTransaction, decimal.Decimal, error) {
	const op = "storage.PurchasePremium"
	if err := checkCtx(ctx, op); err != nil {
		return nil, decimal.Zero, err
	}

	var (
		created *models.WalletTransaction
		balance decimal.Decimal
	)
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		current, err := lockWallet(ctx, tx, userUID)
		if err != nil {
			return err
		}
		created, balance, err = s.appendTransaction(ctx, tx, current, models.WalletTransaction{
			UserID:      userUID,
			Type:        models.TxPayment,
			Amount:      price,
			Description: description,
		})
		if err != nil {
			return err
		}
		return setPremium(ctx, tx, userUID, plan, &expiresAt)
	})
	if err != nil {
		return nil, decimal.Zero, fmt.Errorf("%s: %w", op, err)
	}
	return created, balance, nil
}

package gateway

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/magabrotheeeer/planzy/internal/models"
)

// GetWalletTransactions возвращает журнал кошелька, новые записи первыми.
func (s *Service) GetWalletTransactions(ctx context.Context, userUID string) ([]models.WalletTransaction, error) {
	return s.repo.ListWalletTransactions(ctx, userUID)
}

// GetWalletBalance возвращает баланс, вычисленный по журналу.
func (s *Service) GetWalletBalance(ctx context.Context, userUID string) (decimal.Decimal, error) {
	return s.repo.WalletBalance(ctx, userUID)
}

// CreateWalletTransaction добавляет операцию в журнал пользователя и
// возвращает её вместе с новым балансом.
func (s *Service) CreateWalletTransaction(ctx context.Context, userUID string,
	wt models.WalletTransaction) (*models.WalletTransaction, decimal.Decimal, error) {
	wt.UserID = userUID
	return s.repo.InsertWalletTransaction(ctx, wt)
}

// Withdraw выводит средства, не больше доступного баланса.
func (s *Service) Withdraw(ctx context.Context, userUID string, amount decimal.Decimal) (*models.WalletTransaction, decimal.Decimal, error) {
	return s.repo.WithdrawAll(ctx, userUID, amount, "Withdrawal")
}

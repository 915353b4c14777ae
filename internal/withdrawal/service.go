// Package withdrawal debits income wallets. Withdrawing breaks any
// compounding streak the member has built; that reset happens inside the
// same database transaction as the debit.
package withdrawal

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/amankumar-in/phantom-stake-sub001/internal/domain"
	"github.com/amankumar-in/phantom-stake-sub001/pkg/errors"
	"github.com/amankumar-in/phantom-stake-sub001/pkg/logger"
)

// WalletRepository performs the atomic debit plus record plus streak reset.
type WalletRepository interface {
	WithdrawIncome(ctx context.Context, record *domain.Transaction, now time.Time) error
	FindByUserAndType(ctx context.Context, userID string, walletType domain.WalletType) (*domain.Wallet, error)
}

// Service handles income withdrawals.
type Service struct {
	wallets WalletRepository
	logger  logger.Logger
	now     func() time.Time
}

func NewService(wallets WalletRepository, log logger.Logger) *Service {
	return &Service{wallets: wallets, logger: log, now: time.Now}
}

// WithdrawRequest captures a withdrawal from the income wallet.
type WithdrawRequest struct {
	Amount decimal.Decimal `json:"amount" validate:"required"`
}

// Withdraw debits the member's income wallet. The balance check, the
// withdrawal record, and the compounding reset all commit together or not at
// all. ErrInsufficientBalance is returned when the balance does not cover the
// amount.
func (s *Service) Withdraw(ctx context.Context, userID uuid.UUID, req *WithdrawRequest) (*domain.Transaction, error) {
	if !req.Amount.IsPositive() {
		return nil, errors.ErrInsufficientBalance
	}

	record := &domain.Transaction{
		ID:          uuid.New(),
		UserID:      userID,
		Type:        domain.TransactionTypeWithdrawal,
		Amount:      req.Amount,
		Reference:   fmt.Sprintf("withdraw-%s", uuid.New()),
		Description: "Income wallet withdrawal",
	}

	if err := s.wallets.WithdrawIncome(ctx, record, s.now()); err != nil {
		return nil, err
	}

	s.logger.Info("Withdrawal processed", map[string]interface{}{
		"user_id": userID,
		"amount":  req.Amount.String(),
	})

	return record, nil
}

// Balance reports the member's income wallet.
func (s *Service) Balance(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error) {
	return s.wallets.FindByUserAndType(ctx, userID.String(), domain.WalletTypeIncome)
}

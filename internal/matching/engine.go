// Package matching pays upline override bonuses derived from the day's ROI
// payments.
package matching

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

// Summary reports one matching-bonus pass.
type Summary struct {
	PaymentsScanned int             `json:"payments_scanned"`
	PaidCount       int             `json:"paid_count"`
	SkippedCount    int             `json:"skipped_count"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	ErrorCount      int             `json:"error_count"`
}

// PaymentRepository lists the ROI payments a day produced.
type PaymentRepository interface {
	FindByDay(ctx context.Context, day time.Time) ([]*domain.ROIPayment, error)
}

// UserRepository resolves users along the sponsor chain.
type UserRepository interface {
	FindByID(ctx context.Context, id string) (*domain.User, error)
}

// WalletRepository credits bonuses. The unique transaction reference makes
// each credit exactly-once across repeated passes.
type WalletRepository interface {
	CreditIncomeWithRecord(ctx context.Context, record *domain.Transaction) (bool, error)
}

// Engine walks each earner's sponsor chain and pays rank-gated overrides on
// the day's ROI. Reprocessing a day is safe; already-paid bonuses are skipped
// by their references.
type Engine struct {
	payments PaymentRepository
	users    UserRepository
	wallets  WalletRepository
	logger   logger.Logger
}

func NewEngine(payments PaymentRepository, users UserRepository, wallets WalletRepository, log logger.Logger) *Engine {
	return &Engine{payments: payments, users: users, wallets: wallets, logger: log}
}

// ProcessDailyBonuses pays matching bonuses for every ROI payment recorded on
// day. Per-payment failures are counted and the pass continues.
func (e *Engine) ProcessDailyBonuses(ctx context.Context, day time.Time) (*Summary, error) {
	payments, err := e.payments.FindByDay(ctx, day)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list roi payments for day")
	}

	summary := &Summary{
		PaymentsScanned: len(payments),
		TotalAmount:     decimal.Zero,
	}

	for _, payment := range payments {
		if err := e.processPayment(ctx, payment, summary); err != nil {
			summary.ErrorCount++
			e.logger.Error("Matching bonus failed for payment", map[string]interface{}{
				"payment_id": payment.ID,
				"user_id":    payment.UserID,
				"error":      err.Error(),
			})
		}
	}

	e.logger.Info("Matching bonus pass complete", map[string]interface{}{
		"payments_scanned": summary.PaymentsScanned,
		"bonuses_paid":     summary.PaidCount,
		"bonuses_skipped":  summary.SkippedCount,
		"total_amount":     summary.TotalAmount.String(),
		"error_count":      summary.ErrorCount,
	})

	return summary, nil
}

// processPayment walks up the sponsor chain from the earner, at most
// MaxMatchingLevels deep. The walk is iterative; a missing sponsor ends it.
func (e *Engine) processPayment(ctx context.Context, payment *domain.ROIPayment, summary *Summary) error {
	earner, err := e.users.FindByID(ctx, payment.UserID.String())
	if err != nil {
		return errors.Wrap(err, "failed to resolve earner")
	}

	sponsorID := earner.SponsorID
	for level := 1; level <= domain.MaxMatchingLevels && sponsorID != nil; level++ {
		upline, err := e.users.FindByID(ctx, sponsorID.String())
		if err != nil {
			return errors.Wrap(err, fmt.Sprintf("failed to resolve upline at level %d", level))
		}

		paid, amount, err := e.payUpline(ctx, upline, payment, level)
		if err != nil {
			return err
		}
		switch paid {
		case bonusPaid:
			summary.PaidCount++
			summary.TotalAmount = summary.TotalAmount.Add(amount)
		case bonusSkipped:
			summary.SkippedCount++
		}

		sponsorID = upline.SponsorID
	}
	return nil
}

type bonusOutcome int

const (
	bonusNotDue bonusOutcome = iota
	bonusPaid
	bonusSkipped
)

// payUpline credits one upline member and reports the amount actually moved,
// so the summary totals only what was paid.
func (e *Engine) payUpline(ctx context.Context, upline *domain.User, payment *domain.ROIPayment, level int) (bonusOutcome, decimal.Decimal, error) {
	if !upline.IsActive {
		return bonusNotDue, decimal.Zero, nil
	}
	// Rank gates how deep a member earns: level 1 for everyone, one more per
	// leadership rank.
	if level > domain.UnlockedMatchingLevels(upline.Rank) {
		return bonusNotDue, decimal.Zero, nil
	}

	amount := payment.Amount.Mul(domain.MatchingLevelRates[level-1]).Round(2)
	if !amount.IsPositive() {
		return bonusNotDue, decimal.Zero, nil
	}

	record := &domain.Transaction{
		ID:          uuid.New(),
		UserID:      upline.ID,
		StakeID:     &payment.StakeID,
		Type:        domain.TransactionTypeMatchingBonus,
		Amount:      amount,
		Reference:   fmt.Sprintf("match-%s-%s", payment.ID, upline.ID),
		Description: fmt.Sprintf("Level %d matching bonus on daily ROI", level),
	}

	credited, err := e.wallets.CreditIncomeWithRecord(ctx, record)
	if err != nil {
		return bonusNotDue, decimal.Zero, errors.Wrap(err, "failed to credit matching bonus")
	}
	if !credited {
		return bonusSkipped, decimal.Zero, nil
	}
	return bonusPaid, amount, nil
}

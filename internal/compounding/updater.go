// Package compounding maintains the no-withdrawal streak counters that gate
// entry into the compounding interest regime.
package compounding

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/amankumar-in/phantom-stake-sub001/internal/domain"
	"github.com/amankumar-in/phantom-stake-sub001/pkg/errors"
	"github.com/amankumar-in/phantom-stake-sub001/pkg/logger"
)

// Summary reports one counter-updater pass.
type Summary struct {
	StakesChecked  int `json:"stakes_checked"`
	IncrementCount int `json:"increment_count"`
	ActivatedCount int `json:"activated_count"`
	ResetCount     int `json:"reset_count"`
	ErrorCount     int `json:"error_count"`
}

// StakeRepository is the persistence surface the updater mutates. All counter
// movement happens through conditional updates so the updater itself holds no
// state between runs.
type StakeRepository interface {
	FindActiveNonCompounding(ctx context.Context) ([]*domain.Stake, error)
	IncrementCompoundingDay(ctx context.Context, stakeID string, dayStart time.Time) (int, error)
	ActivateCompounding(ctx context.Context, stakeID string, rate decimal.Decimal, now time.Time) (bool, error)
	ResetCompounding(ctx context.Context, stakeID string) error
}

// WalletRepository reads the owner's income wallet for the activation checks.
type WalletRepository interface {
	FindByUserAndType(ctx context.Context, userID string, walletType domain.WalletType) (*domain.Wallet, error)
}

// Updater advances per-stake streak counters. It may run on any cadence; the
// persisted compounding_checked_at guard limits each counter to one increment
// per UTC day.
type Updater struct {
	stakes  StakeRepository
	wallets WalletRepository
	logger  logger.Logger
	now     func() time.Time
}

func NewUpdater(stakes StakeRepository, wallets WalletRepository, log logger.Logger) *Updater {
	return &Updater{stakes: stakes, wallets: wallets, logger: log, now: time.Now}
}

// UpdateCounters makes one pass over all active non-compounding stakes. A
// withdrawal today resets the streak; otherwise the counter advances, and a
// stake whose streak and income balance both meet its program's thresholds is
// switched into compounding. Per-stake failures are counted and skipped.
func (u *Updater) UpdateCounters(ctx context.Context) (*Summary, error) {
	now := u.now()
	today := domain.StartOfUTCDay(now)

	stakes, err := u.stakes.FindActiveNonCompounding(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to enumerate non-compounding stakes")
	}

	summary := &Summary{StakesChecked: len(stakes)}

	for _, stake := range stakes {
		if err := u.updateStake(ctx, stake, now, today, summary); err != nil {
			summary.ErrorCount++
			u.logger.Error("Compounding counter update failed for stake", map[string]interface{}{
				"stake_id": stake.ID,
				"user_id":  stake.UserID,
				"error":    err.Error(),
			})
		}
	}

	u.logger.Info("Compounding counter pass complete", map[string]interface{}{
		"stakes_checked": summary.StakesChecked,
		"incremented":    summary.IncrementCount,
		"activated":      summary.ActivatedCount,
		"reset":          summary.ResetCount,
		"error_count":    summary.ErrorCount,
	})

	return summary, nil
}

func (u *Updater) updateStake(ctx context.Context, stake *domain.Stake, now, today time.Time, summary *Summary) error {
	program, err := domain.ProgramByID(stake.Program)
	if err != nil {
		return err
	}

	wallet, err := u.wallets.FindByUserAndType(ctx, stake.UserID.String(), domain.WalletTypeIncome)
	if err != nil {
		return errors.Wrap(err, "failed to read income wallet")
	}

	// A withdrawal during today's UTC day breaks the streak. The withdrawal
	// flow already zeroes the counter; this catches stakes created after it.
	if wallet.LastWithdrawalAt != nil && !wallet.LastWithdrawalAt.UTC().Before(today) {
		if stake.CompoundingDays > 0 {
			if err := u.stakes.ResetCompounding(ctx, stake.ID.String()); err != nil {
				return err
			}
			summary.ResetCount++
		}
		return nil
	}

	days := stake.CompoundingDays
	incremented, err := u.stakes.IncrementCompoundingDay(ctx, stake.ID.String(), today)
	if err != nil {
		return err
	}
	if incremented > 0 {
		days = incremented
		summary.IncrementCount++
	}

	if days < program.CompoundingDays {
		return nil
	}
	if wallet.Balance.LessThan(program.CompoundingMinIncome) {
		return nil
	}

	activated, err := u.stakes.ActivateCompounding(ctx, stake.ID.String(), program.CompoundingRate, now)
	if err != nil {
		return err
	}
	if activated {
		summary.ActivatedCount++
		u.logger.Info("Stake entered compounding", map[string]interface{}{
			"stake_id":    stake.ID,
			"user_id":     stake.UserID,
			"program":     stake.Program.String(),
			"streak_days": days,
		})
	}
	return nil
}

// Package qualification decides, for one stake on one UTC day, whether a
// payment is due, which rate regime applies, and the resulting amount.
package qualification

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/amankumar-in/phantom-stake-sub001/internal/domain"
	"github.com/amankumar-in/phantom-stake-sub001/pkg/errors"
	"github.com/amankumar-in/phantom-stake-sub001/pkg/logger"
)

// Regime is the interest regime selected for a payment. Compounding takes
// priority over enhanced, enhanced over base.
type Regime string

const (
	RegimeBase        Regime = "base"
	RegimeEnhanced    Regime = "enhanced"
	RegimeCompounding Regime = "compounding"
)

// Snapshot carries the live inputs a payment decision depends on. It must be
// fetched fresh for every decision; cached flags are display-only.
type Snapshot struct {
	IncomeBalance      decimal.Decimal
	TotalActiveStake   decimal.Decimal
	QualifiedReferrals int
}

// Decision is the outcome for one stake on one day. When Due is false the
// caller must not mutate anything.
type Decision struct {
	Due            bool
	Regime         Regime
	PaymentType    domain.PaymentType
	Rate           decimal.Decimal
	Basis          decimal.Decimal
	Amount         decimal.Decimal
	CompoundingDay int
}

// Decide is a pure function of (stake snapshot, fresh qualification data,
// now). It performs no I/O and no mutation.
func Decide(stake *domain.Stake, snap Snapshot, now time.Time) (Decision, error) {
	program, err := domain.ProgramByID(stake.Program)
	if err != nil {
		return Decision{}, err
	}

	if !stake.IsActive || stake.PaidToday(now) {
		return Decision{Due: false}, nil
	}

	var d Decision
	switch {
	case stake.CompoundingActive:
		// Compounding interest applies to the income-wallet balance, not the
		// principal, regardless of enhanced qualification.
		d = Decision{
			Regime:         RegimeCompounding,
			PaymentType:    domain.PaymentTypeCompounding,
			Rate:           program.CompoundingRate,
			Basis:          snap.IncomeBalance,
			CompoundingDay: stake.CompoundingDays,
		}
	case qualifiesEnhanced(program, snap):
		d = Decision{
			Regime:      RegimeEnhanced,
			PaymentType: domain.PaymentTypeEnhancedROI,
			Rate:        program.EnhancedRate,
			Basis:       stake.Principal,
		}
	default:
		d = Decision{
			Regime:      RegimeBase,
			PaymentType: domain.PaymentTypeBaseROI,
			Rate:        program.BaseRate,
			Basis:       stake.Principal,
		}
	}

	d.Amount = d.Rate.Mul(d.Basis).Round(2)
	// A zero amount means no payment is due and no record may be written.
	d.Due = d.Amount.IsPositive()
	return d, nil
}

func qualifiesEnhanced(program domain.Program, snap Snapshot) bool {
	if snap.TotalActiveStake.LessThan(program.EnhancedMinTotalStake) {
		return false
	}
	return snap.QualifiedReferrals >= program.RequiredReferrals
}

// Engine fetches fresh qualification inputs and produces decisions. The
// optional display cache is refreshed as a side channel for UI surfaces and
// is never read on the decision path.
type Engine struct {
	stakes  StakeRepository
	wallets WalletRepository
	cache   DisplayCache
	logger  logger.Logger
}

// StakeRepository is the subset of stake persistence the engine reads.
type StakeRepository interface {
	TotalActiveStake(ctx context.Context, userID string) (decimal.Decimal, error)
	CountQualifiedReferrals(ctx context.Context, userID string, minStake decimal.Decimal) (int, error)
	SetEnhancedQualified(ctx context.Context, stakeID string, qualified bool) error
}

// WalletRepository reads income balances.
type WalletRepository interface {
	IncomeBalance(ctx context.Context, userID string) (decimal.Decimal, error)
}

// DisplayCache mirrors qualification state for read-only UI endpoints.
type DisplayCache interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
}

func NewEngine(stakes StakeRepository, wallets WalletRepository, cache DisplayCache, log logger.Logger) *Engine {
	return &Engine{stakes: stakes, wallets: wallets, cache: cache, logger: log}
}

// Evaluate builds a fresh snapshot for the stake's owner and decides the
// day's payment. Stored qualification flags are refreshed, never trusted.
func (e *Engine) Evaluate(ctx context.Context, stake *domain.Stake, now time.Time) (Decision, error) {
	program, err := domain.ProgramByID(stake.Program)
	if err != nil {
		return Decision{}, err
	}

	userID := stake.UserID.String()

	incomeBalance, err := e.wallets.IncomeBalance(ctx, userID)
	if err != nil {
		return Decision{}, errors.Wrap(err, "failed to read income balance")
	}

	totalStake, err := e.stakes.TotalActiveStake(ctx, userID)
	if err != nil {
		return Decision{}, errors.Wrap(err, "failed to total active stakes")
	}

	referrals, err := e.stakes.CountQualifiedReferrals(ctx, userID, program.ReferralMinStake)
	if err != nil {
		return Decision{}, errors.Wrap(err, "failed to count qualified referrals")
	}

	snap := Snapshot{
		IncomeBalance:      incomeBalance,
		TotalActiveStake:   totalStake,
		QualifiedReferrals: referrals,
	}

	decision, err := Decide(stake, snap, now)
	if err != nil {
		return Decision{}, err
	}

	e.refreshDisplayState(ctx, stake, program, snap)

	return decision, nil
}

// refreshDisplayState updates the stored flag and the Redis mirror so UI
// reads stay roughly current. Failures here never affect the payment.
func (e *Engine) refreshDisplayState(ctx context.Context, stake *domain.Stake, program domain.Program, snap Snapshot) {
	qualified := qualifiesEnhanced(program, snap)
	if qualified != stake.EnhancedQualified {
		if err := e.stakes.SetEnhancedQualified(ctx, stake.ID.String(), qualified); err != nil {
			e.logger.Warn("Failed to refresh enhanced flag", map[string]interface{}{
				"stake_id": stake.ID,
				"error":    err.Error(),
			})
		}
	}
	if e.cache != nil {
		entry := map[string]interface{}{
			"enhanced_qualified":  qualified,
			"total_active_stake":  snap.TotalActiveStake.String(),
			"qualified_referrals": snap.QualifiedReferrals,
		}
		if err := e.cache.Set(ctx, "qualification:"+stake.UserID.String(), entry, 24*time.Hour); err != nil {
			e.logger.Debug("Qualification cache refresh failed", map[string]interface{}{
				"user_id": stake.UserID,
				"error":   err.Error(),
			})
		}
	}
}

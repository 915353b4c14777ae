// Package roi implements the daily ROI processing pipeline: one pass over
// every active stake, paying each at most once per UTC day.
package roi

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/amankumar-in/phantom-stake-sub001/internal/compounding"
	"github.com/amankumar-in/phantom-stake-sub001/internal/domain"
	"github.com/amankumar-in/phantom-stake-sub001/internal/matching"
	"github.com/amankumar-in/phantom-stake-sub001/internal/qualification"
	"github.com/amankumar-in/phantom-stake-sub001/pkg/errors"
	"github.com/amankumar-in/phantom-stake-sub001/pkg/logger"
)

// StakeRepository enumerates stakes and applies the per-stake atomic payment.
type StakeRepository interface {
	FindActive(ctx context.Context) ([]*domain.Stake, error)
	ApplyROIPayment(ctx context.Context, payment *domain.ROIPayment, day time.Time) (bool, error)
}

// Evaluator produces the day's payment decision for one stake.
type Evaluator interface {
	Evaluate(ctx context.Context, stake *domain.Stake, now time.Time) (qualification.Decision, error)
}

// CounterUpdater advances compounding streaks; run after the ROI pass.
type CounterUpdater interface {
	UpdateCounters(ctx context.Context) (*compounding.Summary, error)
}

// BonusEngine pays upline matching bonuses for the day's ROI payments.
type BonusEngine interface {
	ProcessDailyBonuses(ctx context.Context, day time.Time) (*matching.Summary, error)
}

// StakeResult is one successful payment in a run summary. Failed stakes are
// reported only through ErrorCount.
type StakeResult struct {
	StakeID     uuid.UUID          `json:"stake_id"`
	UserID      uuid.UUID          `json:"user_id"`
	Program     domain.ProgramID   `json:"program"`
	Amount      decimal.Decimal    `json:"amount"`
	Rate        decimal.Decimal    `json:"rate"`
	PaymentType domain.PaymentType `json:"payment_type"`
}

// RunSummary aggregates one full processor run.
type RunSummary struct {
	Success         bool            `json:"success"`
	ProcessedStakes int             `json:"processed_stakes"`
	TotalStakes     int             `json:"total_stakes"`
	TotalROIPaid    decimal.Decimal `json:"total_roi_paid"`
	ErrorCount      int             `json:"error_count"`
	ProcessingTime  time.Duration   `json:"processing_time"`
	Results         []StakeResult   `json:"results"`

	Compounding *compounding.Summary `json:"compounding,omitempty"`
	Bonuses     *matching.Summary    `json:"bonuses,omitempty"`
}

// Processor walks all active stakes once per run. Per-stake failures are
// swallowed and counted; only a failure to enumerate stakes aborts the run.
type Processor struct {
	stakes    StakeRepository
	evaluator Evaluator
	counters  CounterUpdater
	bonuses   BonusEngine
	logger    logger.Logger

	// now is injectable for deterministic tests.
	now func() time.Time
}

func NewProcessor(
	stakes StakeRepository,
	evaluator Evaluator,
	counters CounterUpdater,
	bonuses BonusEngine,
	log logger.Logger,
) *Processor {
	return &Processor{
		stakes:    stakes,
		evaluator: evaluator,
		counters:  counters,
		bonuses:   bonuses,
		logger:    log,
		now:       time.Now,
	}
}

// Run executes one daily cycle: the ROI pass, then the compounding counter
// update, then matching bonuses. Safe to invoke any number of times per day;
// stakes already paid today are skipped by the persisted last_roi_paid_at
// guard, never by process memory.
func (p *Processor) Run(ctx context.Context) (*RunSummary, error) {
	started := p.now()
	today := domain.StartOfUTCDay(started)

	stakes, err := p.stakes.FindActive(ctx)
	if err != nil {
		// Fatal: nothing was attempted, report to the caller.
		p.logger.Error("Daily ROI run aborted: cannot enumerate stakes", map[string]interface{}{
			"error": err.Error(),
		})
		return nil, errors.Wrap(err, "failed to enumerate active stakes")
	}

	summary := &RunSummary{
		TotalStakes:  len(stakes),
		TotalROIPaid: decimal.Zero,
		Results:      []StakeResult{},
	}

	for _, stake := range stakes {
		result, err := p.processStake(ctx, stake, started, today)
		if err != nil {
			summary.ErrorCount++
			p.logger.Error("Stake processing failed", map[string]interface{}{
				"stake_id": stake.ID,
				"user_id":  stake.UserID,
				"program":  stake.Program.String(),
				"error":    err.Error(),
			})
			continue
		}
		if result == nil {
			// Not due today (already paid, inactive, or zero amount).
			continue
		}
		summary.ProcessedStakes++
		summary.TotalROIPaid = summary.TotalROIPaid.Add(result.Amount)
		summary.Results = append(summary.Results, *result)
	}

	// The derived passes run after the ROI pass completes, in this order, so
	// bonus calculations observe final wallet and ROI state for the day.
	if p.counters != nil {
		counterSummary, err := p.counters.UpdateCounters(ctx)
		if err != nil {
			p.logger.Error("Compounding counter update failed", map[string]interface{}{
				"error": err.Error(),
			})
		} else {
			summary.Compounding = counterSummary
		}
	}

	if p.bonuses != nil {
		bonusSummary, err := p.bonuses.ProcessDailyBonuses(ctx, today)
		if err != nil {
			p.logger.Error("Matching bonus pass failed", map[string]interface{}{
				"error": err.Error(),
			})
		} else {
			summary.Bonuses = bonusSummary
		}
	}

	summary.Success = true
	summary.ProcessingTime = p.now().Sub(started)

	p.logger.Info("Daily ROI run complete", map[string]interface{}{
		"total_stakes":     summary.TotalStakes,
		"processed_stakes": summary.ProcessedStakes,
		"total_roi_paid":   summary.TotalROIPaid.String(),
		"error_count":      summary.ErrorCount,
		"elapsed":          summary.ProcessingTime.String(),
	})

	return summary, nil
}

func (p *Processor) processStake(ctx context.Context, stake *domain.Stake, now, today time.Time) (*StakeResult, error) {
	decision, err := p.evaluator.Evaluate(ctx, stake, now)
	if err != nil {
		return nil, err
	}
	if !decision.Due {
		return nil, nil
	}

	payment := &domain.ROIPayment{
		ID:             uuid.New(),
		UserID:         stake.UserID,
		StakeID:        stake.ID,
		Program:        stake.Program,
		Amount:         decision.Amount,
		Rate:           decision.Rate,
		PaymentType:    decision.PaymentType,
		CompoundingDay: decision.CompoundingDay,
		PaidForDate:    today,
	}

	applied, err := p.stakes.ApplyROIPayment(ctx, payment, today)
	if err != nil {
		return nil, err
	}
	if !applied {
		// Lost the race to another run; the day's payment already exists.
		return nil, nil
	}

	return &StakeResult{
		StakeID:     stake.ID,
		UserID:      stake.UserID,
		Program:     stake.Program,
		Amount:      decision.Amount,
		Rate:        decision.Rate,
		PaymentType: decision.PaymentType,
	}, nil
}

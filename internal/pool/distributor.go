// Package pool accrues and distributes the monthly leadership pools.
package pool

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

// PoolRepository is the persistence surface for monthly pools.
type PoolRepository interface {
	FindByProgramMonth(ctx context.Context, program domain.ProgramID, month string) (*domain.LeadershipPool, error)
	Accrue(ctx context.Context, pool *domain.LeadershipPool, deposit, contribution decimal.Decimal) error
	MarkReady(ctx context.Context, currentMonth string) (int64, error)
	ClaimForDistribution(ctx context.Context, poolID string, now time.Time) (bool, error)
	SaveTiers(ctx context.Context, poolID string, tiers []*domain.PoolTier) error
	FindTiers(ctx context.Context, poolID string) ([]*domain.PoolTier, error)
}

// UserRepository finds tier-qualified members.
type UserRepository interface {
	FindQualifiedByRank(ctx context.Context, rank domain.Rank, minStake decimal.Decimal) ([]*domain.User, error)
}

// WalletRepository credits pool shares idempotently by reference.
type WalletRepository interface {
	CreditIncomeWithRecord(ctx context.Context, record *domain.Transaction) (bool, error)
}

// TierPlan is one rank tier's computed slice of a pool.
type TierPlan struct {
	Tier             domain.Rank     `json:"tier"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
	QualifiedMembers int             `json:"qualified_members"`
	PerMemberShare   decimal.Decimal `json:"per_member_share"`

	members []*domain.User
}

// Distribution is the full payout plan for one pool. CalculateDistribution
// returns it without mutating anything; Distribute executes it.
type Distribution struct {
	Pool  *domain.LeadershipPool `json:"pool"`
	Tiers []TierPlan             `json:"tiers"`
}

// DistributeResult reports an executed distribution. AlreadyDistributed is
// set when the pool had been paid out before this call; nothing was credited.
type DistributeResult struct {
	Pool               *domain.LeadershipPool `json:"pool"`
	Tiers              []TierPlan             `json:"tiers"`
	Distributed        bool                   `json:"distributed"`
	AlreadyDistributed bool                   `json:"already_distributed"`
	CreditedTotal      decimal.Decimal        `json:"credited_total"`
	MembersPaid        int                    `json:"members_paid"`
	SkippedCount       int                    `json:"skipped_count"`
	ErrorCount         int                    `json:"error_count"`
}

// Distributor owns pool accrual, month closing, and tier distribution.
type Distributor struct {
	pools   PoolRepository
	users   UserRepository
	wallets WalletRepository
	logger  logger.Logger
}

func NewDistributor(pools PoolRepository, users UserRepository, wallets WalletRepository, log logger.Logger) *Distributor {
	return &Distributor{pools: pools, users: users, wallets: wallets, logger: log}
}

// RecordDeposit accrues a deposit's pool contribution into the current month's
// pool for the program. Called inline from the deposit flow.
func (d *Distributor) RecordDeposit(ctx context.Context, programID domain.ProgramID, amount decimal.Decimal, now time.Time) error {
	program, err := domain.ProgramByID(programID)
	if err != nil {
		return err
	}
	contribution := amount.Mul(program.PoolPercent).Round(2)

	pool := &domain.LeadershipPool{
		ID:            uuid.New(),
		Program:       programID,
		Month:         domain.MonthKey(now),
		TotalDeposits: amount,
		PoolFund:      contribution,
		Status:        domain.PoolStatusOpen,
	}
	return d.pools.Accrue(ctx, pool, amount, contribution)
}

// CloseElapsedMonths flips every open pool from a past month to ready.
func (d *Distributor) CloseElapsedMonths(ctx context.Context, now time.Time) (int64, error) {
	closed, err := d.pools.MarkReady(ctx, domain.MonthKey(now))
	if err != nil {
		return 0, errors.Wrap(err, "failed to close elapsed pool months")
	}
	if closed > 0 {
		d.logger.Info("Leadership pools marked ready", map[string]interface{}{
			"count": closed,
		})
	}
	return closed, nil
}

// CalculateDistribution computes the payout plan for a pool without mutating
// anything. Used as the admin preview and internally by Distribute. For a
// pool that has already been distributed the persisted tier breakdown is
// returned instead of a recomputed plan, so the preview reflects what was
// actually paid.
func (d *Distributor) CalculateDistribution(ctx context.Context, programID domain.ProgramID, month string) (*Distribution, error) {
	pool, err := d.pools.FindByProgramMonth(ctx, programID, month)
	if err != nil {
		return nil, err
	}

	if pool.Status == domain.PoolStatusDistributed {
		rows, err := d.pools.FindTiers(ctx, pool.ID.String())
		if err != nil {
			return nil, errors.Wrap(err, "failed to load distributed tier breakdown")
		}
		tiers := make([]TierPlan, 0, len(rows))
		for _, row := range rows {
			tiers = append(tiers, TierPlan{
				Tier:             row.Tier,
				TotalAmount:      row.TotalAmount,
				QualifiedMembers: row.QualifiedMembers,
				PerMemberShare:   row.PerMemberShare,
			})
		}
		return &Distribution{Pool: pool, Tiers: tiers}, nil
	}

	tiers, err := d.planTiers(ctx, pool)
	if err != nil {
		return nil, err
	}
	return &Distribution{Pool: pool, Tiers: tiers}, nil
}

func (d *Distributor) planTiers(ctx context.Context, pool *domain.LeadershipPool) ([]TierPlan, error) {
	plans := make([]TierPlan, 0, len(domain.PoolTiers))
	for _, tier := range domain.PoolTiers {
		tierFund := pool.PoolFund.Mul(domain.PoolTierSplit[tier]).Round(2)

		members, err := d.users.FindQualifiedByRank(ctx, tier, domain.PoolTierMinStake[tier])
		if err != nil {
			return nil, errors.Wrap(err, "failed to find qualified members for tier")
		}

		plan := TierPlan{
			Tier:             tier,
			TotalAmount:      tierFund,
			QualifiedMembers: len(members),
			PerMemberShare:   decimal.Zero,
			members:          members,
		}
		// An empty tier pays nobody; its fund stays undistributed rather than
		// rolling into other tiers.
		if len(members) > 0 {
			plan.PerMemberShare = tierFund.Div(decimal.NewFromInt(int64(len(members)))).RoundDown(2)
		}
		plans = append(plans, plan)
	}
	return plans, nil
}

// Distribute executes a ready pool's payout exactly once. The payout plan is
// computed before the status claim; planning is read-only, so a planning
// failure leaves the pool ready and the call retryable. A concurrent or
// repeated call loses the claim and returns a no-op result instead of paying
// anyone again.
func (d *Distributor) Distribute(ctx context.Context, programID domain.ProgramID, month string, now time.Time) (*DistributeResult, error) {
	pool, err := d.pools.FindByProgramMonth(ctx, programID, month)
	if err != nil {
		return nil, err
	}
	switch pool.Status {
	case domain.PoolStatusOpen:
		return nil, errors.ErrPoolNotReady
	case domain.PoolStatusDistributed:
		return alreadyDistributed(pool), nil
	}

	tiers, err := d.planTiers(ctx, pool)
	if err != nil {
		return nil, err
	}

	claimed, err := d.pools.ClaimForDistribution(ctx, pool.ID.String(), now)
	if err != nil {
		return nil, errors.Wrap(err, "failed to claim pool for distribution")
	}
	if !claimed {
		return alreadyDistributed(pool), nil
	}

	result := &DistributeResult{
		Pool:          pool,
		Tiers:         tiers,
		Distributed:   true,
		CreditedTotal: decimal.Zero,
	}

	for _, tier := range tiers {
		for _, member := range tier.members {
			record := &domain.Transaction{
				ID:          uuid.New(),
				UserID:      member.ID,
				Type:        domain.TransactionTypeLeadershipPool,
				Amount:      tier.PerMemberShare,
				Reference:   fmt.Sprintf("pool-%s-%s", pool.ID, member.ID),
				Description: fmt.Sprintf("%s tier leadership pool share for %s", tier.Tier, pool.Month),
			}
			credited, err := d.wallets.CreditIncomeWithRecord(ctx, record)
			if err != nil {
				result.ErrorCount++
				d.logger.Error("Pool share credit failed", map[string]interface{}{
					"pool_id": pool.ID,
					"user_id": member.ID,
					"tier":    tier.Tier,
					"error":   err.Error(),
				})
				continue
			}
			if !credited {
				result.SkippedCount++
				continue
			}
			result.MembersPaid++
			result.CreditedTotal = result.CreditedTotal.Add(tier.PerMemberShare)
		}
	}

	if err := d.pools.SaveTiers(ctx, pool.ID.String(), toTierRows(pool.ID, tiers)); err != nil {
		d.logger.Error("Failed to persist pool tier breakdown", map[string]interface{}{
			"pool_id": pool.ID,
			"error":   err.Error(),
		})
	}

	d.logger.Info("Leadership pool distributed", map[string]interface{}{
		"pool_id":        pool.ID,
		"program":        pool.Program.String(),
		"month":          pool.Month,
		"members_paid":   result.MembersPaid,
		"credited_total": result.CreditedTotal.String(),
		"error_count":    result.ErrorCount,
	})

	return result, nil
}

func alreadyDistributed(pool *domain.LeadershipPool) *DistributeResult {
	return &DistributeResult{
		Pool:               pool,
		Distributed:        true,
		AlreadyDistributed: true,
		CreditedTotal:      decimal.Zero,
	}
}

func toTierRows(poolID uuid.UUID, tiers []TierPlan) []*domain.PoolTier {
	rows := make([]*domain.PoolTier, 0, len(tiers))
	for _, t := range tiers {
		rows = append(rows, &domain.PoolTier{
			ID:               uuid.New(),
			PoolID:           poolID,
			Tier:             t.Tier,
			TotalAmount:      t.TotalAmount,
			QualifiedMembers: t.QualifiedMembers,
			PerMemberShare:   t.PerMemberShare,
		})
	}
	return rows
}

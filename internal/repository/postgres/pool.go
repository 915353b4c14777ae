package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/amankumar-in/phantom-stake-sub001/internal/domain"
	"github.com/amankumar-in/phantom-stake-sub001/pkg/errors"
)

type PoolRepository struct {
	db *sqlx.DB
}

func NewPoolRepository(db *sqlx.DB) *PoolRepository {
	return &PoolRepository{db: db}
}

func (r *PoolRepository) FindByProgramMonth(ctx context.Context, program domain.ProgramID, month string) (*domain.LeadershipPool, error) {
	pool := &domain.LeadershipPool{}
	query := `SELECT * FROM leadership_pools WHERE program = $1 AND month = $2`
	err := r.db.GetContext(ctx, pool, query, program, month)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.ErrPoolNotFound
		}
		return nil, errors.Wrap(err, "failed to find leadership pool")
	}
	return pool, nil
}

// Accrue upserts the month's pool row and adds one deposit's contribution.
// Called from the deposit flow as volume arrives during the month.
func (r *PoolRepository) Accrue(ctx context.Context, pool *domain.LeadershipPool, deposit, contribution decimal.Decimal) error {
	query := `
		INSERT INTO leadership_pools (
			id, program, month, total_deposits, pool_fund, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		ON CONFLICT (program, month) DO UPDATE SET
			total_deposits = leadership_pools.total_deposits + EXCLUDED.total_deposits,
			pool_fund = leadership_pools.pool_fund + EXCLUDED.pool_fund,
			updated_at = NOW()
	`
	_, err := r.db.ExecContext(ctx, query,
		pool.ID, pool.Program, pool.Month, deposit, contribution, domain.PoolStatusOpen)
	return errors.Wrap(err, "failed to accrue leadership pool")
}

// MarkReady closes open pools whose month has passed so they become
// distributable. Safe to call repeatedly.
func (r *PoolRepository) MarkReady(ctx context.Context, currentMonth string) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE leadership_pools SET status = $1, updated_at = NOW()
		WHERE status = $2 AND month < $3
	`, domain.PoolStatusReady, domain.PoolStatusOpen, currentMonth)
	if err != nil {
		return 0, errors.Wrap(err, "failed to mark pools ready")
	}
	rows, err := result.RowsAffected()
	return rows, errors.Wrap(err, "failed to get rows affected")
}

// ClaimForDistribution is the terminal check-and-set: the first caller flips
// ready -> distributed and wins; later callers get (false, nil) and must not
// credit anyone.
func (r *PoolRepository) ClaimForDistribution(ctx context.Context, poolID string, now time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE leadership_pools SET
			status = $1,
			distributed_at = $2,
			updated_at = NOW()
		WHERE id = $3 AND status = $4
	`, domain.PoolStatusDistributed, now, poolID, domain.PoolStatusReady)
	if err != nil {
		return false, errors.Wrap(err, "failed to claim pool for distribution")
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "failed to get rows affected")
	}
	return rows > 0, nil
}

// SaveTiers replaces the pool's tier breakdown with the distribution result.
func (r *PoolRepository) SaveTiers(ctx context.Context, poolID string, tiers []*domain.PoolTier) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin tier save")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM pool_tiers WHERE pool_id = $1`, poolID); err != nil {
		return errors.Wrap(err, "failed to clear pool tiers")
	}

	for _, tier := range tiers {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO pool_tiers (
				id, pool_id, tier, total_amount, qualified_members, per_member_share
			) VALUES ($1, $2, $3, $4, $5, $6)
		`, tier.ID, tier.PoolID, tier.Tier, tier.TotalAmount, tier.QualifiedMembers, tier.PerMemberShare)
		if err != nil {
			return errors.Wrap(err, "failed to insert pool tier")
		}
	}

	return errors.Wrap(tx.Commit(), "failed to commit pool tiers")
}

func (r *PoolRepository) FindTiers(ctx context.Context, poolID string) ([]*domain.PoolTier, error) {
	var tiers []*domain.PoolTier
	query := `SELECT * FROM pool_tiers WHERE pool_id = $1`
	err := r.db.SelectContext(ctx, &tiers, query, poolID)
	return tiers, errors.Wrap(err, "failed to find pool tiers")
}

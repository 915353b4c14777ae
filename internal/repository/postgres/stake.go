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

type StakeRepository struct {
	db *sqlx.DB
}

func NewStakeRepository(db *sqlx.DB) *StakeRepository {
	return &StakeRepository{db: db}
}

func (r *StakeRepository) Create(ctx context.Context, stake *domain.Stake) error {
	query := `
		INSERT INTO stakes (
			id, user_id, program, principal, base_rate, is_active,
			last_roi_paid_at, total_roi_earned,
			compounding_active, compounding_days, compounding_rate,
			compounding_started_at, compounding_checked_at,
			enhanced_qualified, created_at, updated_at
		) VALUES (
			:id, :user_id, :program, :principal, :base_rate, :is_active,
			:last_roi_paid_at, :total_roi_earned,
			:compounding_active, :compounding_days, :compounding_rate,
			:compounding_started_at, :compounding_checked_at,
			:enhanced_qualified, :created_at, :updated_at
		)
	`
	_, err := r.db.NamedExecContext(ctx, query, stake)
	return errors.Wrap(err, "failed to create stake")
}

// CreateWithDeposit inserts the stake, credits the owner's principal wallet,
// and records the deposit transaction as one database transaction.
func (r *StakeRepository) CreateWithDeposit(ctx context.Context, stake *domain.Stake, record *domain.Transaction) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin deposit transaction")
	}
	defer tx.Rollback()

	_, err = tx.NamedExecContext(ctx, `
		INSERT INTO stakes (
			id, user_id, program, principal, base_rate, is_active,
			last_roi_paid_at, total_roi_earned,
			compounding_active, compounding_days, compounding_rate,
			compounding_started_at, compounding_checked_at,
			enhanced_qualified, created_at, updated_at
		) VALUES (
			:id, :user_id, :program, :principal, :base_rate, :is_active,
			:last_roi_paid_at, :total_roi_earned,
			:compounding_active, :compounding_days, :compounding_rate,
			:compounding_started_at, :compounding_checked_at,
			:enhanced_qualified, :created_at, :updated_at
		)
	`, stake)
	if err != nil {
		return errors.Wrap(err, "failed to insert stake")
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE wallets SET
			balance = balance + $1,
			updated_at = NOW()
		WHERE user_id = $2 AND wallet_type = $3
	`, stake.Principal, stake.UserID, domain.WalletTypePrincipal)
	if err != nil {
		return errors.Wrap(err, "failed to credit principal wallet")
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to get rows affected")
	}
	if rows == 0 {
		return errors.ErrWalletNotFound
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO transactions (
			id, user_id, stake_id, type, amount, reference, description, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
	`,
		record.ID, record.UserID, record.StakeID, record.Type,
		record.Amount, record.Reference, record.Description,
	)
	if err != nil {
		return errors.Wrap(err, "failed to record deposit")
	}

	return errors.Wrap(tx.Commit(), "failed to commit deposit")
}

func (r *StakeRepository) FindByID(ctx context.Context, id string) (*domain.Stake, error) {
	stake := &domain.Stake{}
	query := `SELECT * FROM stakes WHERE id = $1`
	err := r.db.GetContext(ctx, stake, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.ErrStakeNotFound
		}
		return nil, errors.Wrap(err, "failed to find stake by id")
	}
	return stake, nil
}

func (r *StakeRepository) FindByUserID(ctx context.Context, userID string) ([]*domain.Stake, error) {
	var stakes []*domain.Stake
	query := `SELECT * FROM stakes WHERE user_id = $1 ORDER BY created_at DESC`
	err := r.db.SelectContext(ctx, &stakes, query, userID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to find stakes by user id")
	}
	return stakes, nil
}

// FindActive enumerates every active stake across all programs and users.
// The daily processor iterates this set exactly once per run.
func (r *StakeRepository) FindActive(ctx context.Context) ([]*domain.Stake, error) {
	var stakes []*domain.Stake
	query := `SELECT * FROM stakes WHERE is_active = true ORDER BY created_at`
	err := r.db.SelectContext(ctx, &stakes, query)
	if err != nil {
		return nil, errors.Wrap(err, "failed to enumerate active stakes")
	}
	return stakes, nil
}

// FindActiveNonCompounding lists stakes eligible for the counter updater.
func (r *StakeRepository) FindActiveNonCompounding(ctx context.Context) ([]*domain.Stake, error) {
	var stakes []*domain.Stake
	query := `SELECT * FROM stakes WHERE is_active = true AND compounding_active = false ORDER BY created_at`
	err := r.db.SelectContext(ctx, &stakes, query)
	if err != nil {
		return nil, errors.Wrap(err, "failed to enumerate non-compounding stakes")
	}
	return stakes, nil
}

// ApplyROIPayment performs the per-stake daily mutation as one database
// transaction: advance the stake's payment fields, credit the owner's income
// wallet, and append the immutable payment record. The conditional update on
// last_roi_paid_at is the idempotency guard; when another run already paid
// this UTC day the whole transaction is abandoned and (false, nil) returned.
func (r *StakeRepository) ApplyROIPayment(ctx context.Context, payment *domain.ROIPayment, day time.Time) (bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, errors.Wrap(err, "failed to begin roi transaction")
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE stakes SET
			last_roi_paid_at = $1,
			total_roi_earned = total_roi_earned + $2,
			updated_at = NOW()
		WHERE id = $3
		  AND is_active = true
		  AND (last_roi_paid_at IS NULL OR last_roi_paid_at < $1)
	`, day, payment.Amount, payment.StakeID)
	if err != nil {
		return false, errors.Wrap(err, "failed to advance stake payment fields")
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "failed to get rows affected")
	}
	if rows == 0 {
		// Already paid for this day by a concurrent or earlier run.
		return false, nil
	}

	result, err = tx.ExecContext(ctx, `
		UPDATE wallets SET
			balance = balance + $1,
			total_earned = total_earned + $1,
			updated_at = NOW()
		WHERE user_id = $2 AND wallet_type = $3
	`, payment.Amount, payment.UserID, domain.WalletTypeIncome)
	if err != nil {
		return false, errors.Wrap(err, "failed to credit income wallet")
	}
	rows, err = result.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "failed to get rows affected")
	}
	if rows == 0 {
		return false, errors.ErrWalletNotFound
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO roi_payments (
			id, user_id, stake_id, program, amount, rate,
			payment_type, compounding_day, paid_for_date, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
	`,
		payment.ID, payment.UserID, payment.StakeID, payment.Program,
		payment.Amount, payment.Rate, payment.PaymentType,
		payment.CompoundingDay, utcDate(day),
	)
	if err != nil {
		// UNIQUE (stake_id, paid_for_date) is the backstop behind the
		// conditional stake update.
		if pqErr, ok := err.(interface{ SQLState() string }); ok && pqErr.SQLState() == "23505" {
			return false, errors.ErrPaymentRecordExists
		}
		return false, errors.Wrap(err, "failed to append roi payment record")
	}

	if err := tx.Commit(); err != nil {
		return false, errors.Wrap(err, "failed to commit roi transaction")
	}
	return true, nil
}

// TotalActiveStake sums the principal across all of a user's active stakes.
func (r *StakeRepository) TotalActiveStake(ctx context.Context, userID string) (decimal.Decimal, error) {
	var total decimal.Decimal
	query := `SELECT COALESCE(SUM(principal), 0) FROM stakes WHERE user_id = $1 AND is_active = true`
	err := r.db.GetContext(ctx, &total, query, userID)
	return total, errors.Wrap(err, "failed to total active stakes")
}

// CountQualifiedReferrals counts direct referrals whose own active staking
// total meets the per-referral threshold.
func (r *StakeRepository) CountQualifiedReferrals(ctx context.Context, userID string, minStake decimal.Decimal) (int, error) {
	var count int
	query := `
		SELECT COUNT(*) FROM (
			SELECT u.id
			FROM users u
			JOIN stakes s ON s.user_id = u.id AND s.is_active = true
			WHERE u.sponsor_id = $1
			GROUP BY u.id
			HAVING SUM(s.principal) >= $2
		) qualified
	`
	err := r.db.GetContext(ctx, &count, query, userID, minStake)
	return count, errors.Wrap(err, "failed to count qualified referrals")
}

func (r *StakeRepository) SetEnhancedQualified(ctx context.Context, stakeID string, qualified bool) error {
	query := `UPDATE stakes SET enhanced_qualified = $1, updated_at = NOW() WHERE id = $2`
	_, err := r.db.ExecContext(ctx, query, qualified, stakeID)
	return errors.Wrap(err, "failed to set enhanced flag")
}

// IncrementCompoundingDay bumps the no-withdrawal counter at most once per
// UTC day. The compounding_checked_at guard makes the hourly schedule and the
// daily cycle both safe to run.
func (r *StakeRepository) IncrementCompoundingDay(ctx context.Context, stakeID string, dayStart time.Time) (int, error) {
	var days int
	query := `
		UPDATE stakes SET
			compounding_days = compounding_days + 1,
			compounding_checked_at = NOW(),
			updated_at = NOW()
		WHERE id = $1
		  AND is_active = true
		  AND compounding_active = false
		  AND (compounding_checked_at IS NULL OR compounding_checked_at < $2)
		RETURNING compounding_days
	`
	err := r.db.GetContext(ctx, &days, query, stakeID, dayStart)
	if err != nil {
		if err == sql.ErrNoRows {
			// Counter already advanced today, or state changed underneath us.
			return 0, nil
		}
		return 0, errors.Wrap(err, "failed to increment compounding counter")
	}
	return days, nil
}

// ActivateCompounding flips the stake into compounding. The WHERE clause is
// the one-way guard: a stake already compounding is left untouched.
func (r *StakeRepository) ActivateCompounding(ctx context.Context, stakeID string, rate decimal.Decimal, now time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE stakes SET
			compounding_active = true,
			compounding_rate = $1,
			compounding_started_at = $2,
			updated_at = NOW()
		WHERE id = $3 AND is_active = true AND compounding_active = false
	`, rate, now, stakeID)
	if err != nil {
		return false, errors.Wrap(err, "failed to activate compounding")
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "failed to get rows affected")
	}
	return rows > 0, nil
}

// ResetCompounding zeroes the counter and deactivates compounding. Invoked
// when the owner withdraws from income; idempotent.
func (r *StakeRepository) ResetCompounding(ctx context.Context, stakeID string) error {
	query := `
		UPDATE stakes SET
			compounding_active = false,
			compounding_days = 0,
			compounding_started_at = NULL,
			compounding_checked_at = NOW(),
			updated_at = NOW()
		WHERE id = $1
	`
	_, err := r.db.ExecContext(ctx, query, stakeID)
	return errors.Wrap(err, "failed to reset compounding state")
}

// Deactivate retires a stake from the daily cycle. Retiring a stake that is
// missing or already inactive reports ErrStakeInactive.
func (r *StakeRepository) Deactivate(ctx context.Context, stakeID string) error {
	query := `
		UPDATE stakes SET
			is_active = false,
			compounding_active = false,
			updated_at = NOW()
		WHERE id = $1 AND is_active = true
	`
	result, err := r.db.ExecContext(ctx, query, stakeID)
	if err != nil {
		return errors.Wrap(err, "failed to deactivate stake")
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to get rows affected")
	}
	if rows == 0 {
		return errors.ErrStakeInactive
	}
	return nil
}

package postgres

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/amankumar-in/phantom-stake-sub001/internal/domain"
	"github.com/amankumar-in/phantom-stake-sub001/pkg/errors"
)

// PaymentRepository reads the append-only roi_payments ledger. Writes happen
// only inside StakeRepository.ApplyROIPayment.
type PaymentRepository struct {
	db *sqlx.DB
}

func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) FindByStakeID(ctx context.Context, stakeID string, limit, offset int) ([]*domain.ROIPayment, error) {
	var payments []*domain.ROIPayment
	query := `SELECT * FROM roi_payments WHERE stake_id = $1 ORDER BY paid_for_date DESC LIMIT $2 OFFSET $3`
	err := r.db.SelectContext(ctx, &payments, query, stakeID, limit, offset)
	return payments, errors.Wrap(err, "failed to find payments by stake")
}

func (r *PaymentRepository) FindByUserID(ctx context.Context, userID string, limit, offset int) ([]*domain.ROIPayment, error) {
	var payments []*domain.ROIPayment
	query := `SELECT * FROM roi_payments WHERE user_id = $1 ORDER BY paid_for_date DESC LIMIT $2 OFFSET $3`
	err := r.db.SelectContext(ctx, &payments, query, userID, limit, offset)
	return payments, errors.Wrap(err, "failed to find payments by user")
}

// FindByDay returns every payment disbursed for one UTC day. The matching
// bonus engine consumes this after the ROI pass completes.
func (r *PaymentRepository) FindByDay(ctx context.Context, day time.Time) ([]*domain.ROIPayment, error) {
	var payments []*domain.ROIPayment
	query := `SELECT * FROM roi_payments WHERE paid_for_date = $1 ORDER BY created_at`
	err := r.db.SelectContext(ctx, &payments, query, utcDate(day))
	return payments, errors.Wrap(err, "failed to find payments by day")
}

// utcDate renders a timestamp as the YYYY-MM-DD string for DATE columns.
// Binding a timestamp directly would cast through the database session time
// zone and can shift the day bucket on a non-UTC server.
func utcDate(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

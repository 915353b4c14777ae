package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/amankumar-in/phantom-stake-sub001/internal/domain"
	"github.com/amankumar-in/phantom-stake-sub001/pkg/errors"
)

type TransactionRepository struct {
	db *sqlx.DB
}

func NewTransactionRepository(db *sqlx.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

func (r *TransactionRepository) FindByUserID(ctx context.Context, userID string, limit, offset int) ([]*domain.Transaction, error) {
	var txs []*domain.Transaction
	query := `SELECT * FROM transactions WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	err := r.db.SelectContext(ctx, &txs, query, userID, limit, offset)
	return txs, errors.Wrap(err, "failed to find transactions by user")
}

func (r *TransactionRepository) CountByUserID(ctx context.Context, userID string) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM transactions WHERE user_id = $1`
	err := r.db.GetContext(ctx, &count, query, userID)
	return count, errors.Wrap(err, "failed to count transactions by user")
}

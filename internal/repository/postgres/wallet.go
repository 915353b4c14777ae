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

type WalletRepository struct {
	db *sqlx.DB
}

func NewWalletRepository(db *sqlx.DB) *WalletRepository {
	return &WalletRepository{db: db}
}

func (r *WalletRepository) Create(ctx context.Context, wallet *domain.Wallet) error {
	query := `
		INSERT INTO wallets (
			id, user_id, wallet_type, balance, total_earned, total_withdrawn,
			last_withdrawal_at, created_at, updated_at
		) VALUES (
			:id, :user_id, :wallet_type, :balance, :total_earned, :total_withdrawn,
			:last_withdrawal_at, :created_at, :updated_at
		)
	`
	_, err := r.db.NamedExecContext(ctx, query, wallet)
	return errors.Wrap(err, "failed to create wallet")
}

func (r *WalletRepository) FindByUserAndType(ctx context.Context, userID string, walletType domain.WalletType) (*domain.Wallet, error) {
	wallet := &domain.Wallet{}
	query := `SELECT * FROM wallets WHERE user_id = $1 AND wallet_type = $2`
	err := r.db.GetContext(ctx, wallet, query, userID, walletType)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.ErrWalletNotFound
		}
		return nil, errors.Wrap(err, "failed to find wallet")
	}
	return wallet, nil
}

func (r *WalletRepository) FindByUserID(ctx context.Context, userID string) ([]*domain.Wallet, error) {
	var wallets []*domain.Wallet
	query := `SELECT * FROM wallets WHERE user_id = $1 ORDER BY wallet_type`
	err := r.db.SelectContext(ctx, &wallets, query, userID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to find wallets by user id")
	}
	return wallets, nil
}

// IncomeBalance reads the current income-wallet balance for a user.
func (r *WalletRepository) IncomeBalance(ctx context.Context, userID string) (decimal.Decimal, error) {
	var balance decimal.Decimal
	query := `SELECT balance FROM wallets WHERE user_id = $1 AND wallet_type = $2`
	err := r.db.GetContext(ctx, &balance, query, userID, domain.WalletTypeIncome)
	if err != nil {
		if err == sql.ErrNoRows {
			return decimal.Zero, errors.ErrWalletNotFound
		}
		return decimal.Zero, errors.Wrap(err, "failed to read income balance")
	}
	return balance, nil
}

// CreditPrincipal adds locked capital to the principal wallet.
func (r *WalletRepository) CreditPrincipal(ctx context.Context, tx *sqlx.Tx, userID string, amount decimal.Decimal) error {
	query := `
		UPDATE wallets SET
			balance = balance + $1,
			updated_at = NOW()
		WHERE user_id = $2 AND wallet_type = $3
	`
	var (
		result sql.Result
		err    error
	)
	if tx != nil {
		result, err = tx.ExecContext(ctx, query, amount, userID, domain.WalletTypePrincipal)
	} else {
		result, err = r.db.ExecContext(ctx, query, amount, userID, domain.WalletTypePrincipal)
	}
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
	return nil
}

// CreditIncomeWithRecord credits the income wallet and writes the bonus
// transaction in one database transaction. The unique reference makes the
// credit idempotent: a second attempt with the same reference is a no-op and
// returns (false, nil).
func (r *WalletRepository) CreditIncomeWithRecord(ctx context.Context, record *domain.Transaction) (bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, errors.Wrap(err, "failed to begin credit transaction")
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		INSERT INTO transactions (
			id, user_id, stake_id, type, amount, reference, description, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT (reference) DO NOTHING
	`,
		record.ID, record.UserID, record.StakeID, record.Type,
		record.Amount, record.Reference, record.Description,
	)
	if err != nil {
		return false, errors.Wrap(err, "failed to insert transaction record")
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "failed to get rows affected")
	}
	if rows == 0 {
		// Reference already processed.
		return false, nil
	}

	result, err = tx.ExecContext(ctx, `
		UPDATE wallets SET
			balance = balance + $1,
			total_earned = total_earned + $1,
			updated_at = NOW()
		WHERE user_id = $2 AND wallet_type = $3
	`, record.Amount, record.UserID, domain.WalletTypeIncome)
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

	if err := tx.Commit(); err != nil {
		return false, errors.Wrap(err, "failed to commit credit transaction")
	}
	return true, nil
}

// WithdrawIncome debits the income wallet, stamps last_withdrawal_at, and
// records the withdrawal, all in one transaction. The balance check rides on
// the conditional update.
func (r *WalletRepository) WithdrawIncome(ctx context.Context, record *domain.Transaction, now time.Time) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin withdrawal transaction")
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE wallets SET
			balance = balance - $1,
			total_withdrawn = total_withdrawn + $1,
			last_withdrawal_at = $2,
			updated_at = NOW()
		WHERE user_id = $3 AND wallet_type = $4 AND balance >= $1
	`, record.Amount, now, record.UserID, domain.WalletTypeIncome)
	if err != nil {
		return errors.Wrap(err, "failed to debit income wallet")
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to get rows affected")
	}
	if rows == 0 {
		return errors.ErrInsufficientBalance
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
		return errors.Wrap(err, "failed to record withdrawal")
	}

	// Withdrawing undoes any compounding streak for the user's stakes.
	_, err = tx.ExecContext(ctx, `
		UPDATE stakes SET
			compounding_active = false,
			compounding_days = 0,
			compounding_started_at = NULL,
			updated_at = NOW()
		WHERE user_id = $1
	`, record.UserID)
	if err != nil {
		return errors.Wrap(err, "failed to reset compounding on withdrawal")
	}

	return errors.Wrap(tx.Commit(), "failed to commit withdrawal")
}

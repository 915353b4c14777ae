package postgres

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/amankumar-in/phantom-stake-sub001/internal/domain"
	"github.com/amankumar-in/phantom-stake-sub001/pkg/errors"
)

type UserRepository struct {
	db *sqlx.DB
}

func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO users (
			id, email, password_hash, first_name, last_name, referral_code,
			sponsor_id, rank, is_admin, is_active, created_at, updated_at
		) VALUES (
			:id, :email, :password_hash, :first_name, :last_name, :referral_code,
			:sponsor_id, :rank, :is_admin, :is_active, :created_at, :updated_at
		)
	`
	_, err := r.db.NamedExecContext(ctx, query, user)
	if err != nil {
		if pqErr, ok := err.(interface{ SQLState() string }); ok && pqErr.SQLState() == "23505" {
			return errors.ErrUserAlreadyExists
		}
		return errors.Wrap(err, "failed to create user")
	}
	return nil
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	user := &domain.User{}
	query := `SELECT * FROM users WHERE id = $1`
	err := r.db.GetContext(ctx, user, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.ErrUserNotFound
		}
		return nil, errors.Wrap(err, "failed to find user by id")
	}
	return user, nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	user := &domain.User{}
	query := `SELECT * FROM users WHERE email = $1`
	err := r.db.GetContext(ctx, user, query, email)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.ErrUserNotFound
		}
		return nil, errors.Wrap(err, "failed to find user by email")
	}
	return user, nil
}

func (r *UserRepository) FindByReferralCode(ctx context.Context, code string) (*domain.User, error) {
	user := &domain.User{}
	query := `SELECT * FROM users WHERE referral_code = $1`
	err := r.db.GetContext(ctx, user, query, code)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.ErrSponsorNotFound
		}
		return nil, errors.Wrap(err, "failed to find user by referral code")
	}
	return user, nil
}

func (r *UserRepository) UpdateLastLogin(ctx context.Context, id string) error {
	query := `UPDATE users SET last_login = NOW(), updated_at = NOW() WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	return errors.Wrap(err, "failed to update last login")
}

func (r *UserRepository) UpdateRank(ctx context.Context, id string, rank domain.Rank) error {
	query := `UPDATE users SET rank = $1, updated_at = NOW() WHERE id = $2`
	_, err := r.db.ExecContext(ctx, query, rank, id)
	return errors.Wrap(err, "failed to update rank")
}

// FindQualifiedByRank lists active users holding exactly the given rank whose
// active personal stake meets the tier minimum. Leadership pool tiers pay
// each rank's own bucket, so ranks are matched exactly, not by seniority.
func (r *UserRepository) FindQualifiedByRank(ctx context.Context, rank domain.Rank, minStake decimal.Decimal) ([]*domain.User, error) {
	var users []*domain.User
	query := `
		SELECT u.* FROM users u
		WHERE u.rank = $1
		  AND u.is_active = true
		  AND (
			SELECT COALESCE(SUM(s.principal), 0)
			FROM stakes s
			WHERE s.user_id = u.id AND s.is_active = true
		  ) >= $2
		ORDER BY u.created_at
	`
	err := r.db.SelectContext(ctx, &users, query, rank, minStake)
	return users, errors.Wrap(err, "failed to find qualified members")
}

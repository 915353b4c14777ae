package postgres

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/amankumar-in/phantom-stake-sub001/internal/domain"
	"github.com/amankumar-in/phantom-stake-sub001/pkg/errors"
)

type TreeRepository struct {
	db *sqlx.DB
}

func NewTreeRepository(db *sqlx.DB) *TreeRepository {
	return &TreeRepository{db: db}
}

func (r *TreeRepository) Create(ctx context.Context, node *domain.TreeNode) error {
	query := `
		INSERT INTO tree_nodes (
			id, user_id, parent_id, sponsor_id, position, path, depth,
			personal_volume, left_leg_volume, right_leg_volume, is_active,
			created_at, updated_at
		) VALUES (
			:id, :user_id, :parent_id, :sponsor_id, :position, :path, :depth,
			:personal_volume, :left_leg_volume, :right_leg_volume, :is_active,
			:created_at, :updated_at
		)
	`
	_, err := r.db.NamedExecContext(ctx, query, node)
	if err != nil {
		if pqErr, ok := err.(interface{ SQLState() string }); ok && pqErr.SQLState() == "23505" {
			return errors.ErrPositionOccupied
		}
		return errors.Wrap(err, "failed to create tree node")
	}
	return nil
}

func (r *TreeRepository) FindByUserID(ctx context.Context, userID string) (*domain.TreeNode, error) {
	node := &domain.TreeNode{}
	query := `SELECT * FROM tree_nodes WHERE user_id = $1`
	err := r.db.GetContext(ctx, node, query, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.ErrTreeNodeNotFound
		}
		return nil, errors.Wrap(err, "failed to find tree node by user")
	}
	return node, nil
}

func (r *TreeRepository) FindByID(ctx context.Context, id string) (*domain.TreeNode, error) {
	node := &domain.TreeNode{}
	query := `SELECT * FROM tree_nodes WHERE id = $1`
	err := r.db.GetContext(ctx, node, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.ErrTreeNodeNotFound
		}
		return nil, errors.Wrap(err, "failed to find tree node")
	}
	return node, nil
}

// FindChild returns the node at one side under a parent, or nil when the
// slot is free.
func (r *TreeRepository) FindChild(ctx context.Context, parentID string, position domain.TreePosition) (*domain.TreeNode, error) {
	node := &domain.TreeNode{}
	query := `SELECT * FROM tree_nodes WHERE parent_id = $1 AND position = $2`
	err := r.db.GetContext(ctx, node, query, parentID, position)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to find child node")
	}
	return node, nil
}

// AddPersonalVolume bumps the depositing user's own volume.
func (r *TreeRepository) AddPersonalVolume(ctx context.Context, userID string, amount decimal.Decimal) error {
	query := `
		UPDATE tree_nodes SET
			personal_volume = personal_volume + $1,
			updated_at = NOW()
		WHERE user_id = $2
	`
	_, err := r.db.ExecContext(ctx, query, amount, userID)
	return errors.Wrap(err, "failed to add personal volume")
}

// AddLegVolume rolls a deposit into one ancestor's left or right leg.
func (r *TreeRepository) AddLegVolume(ctx context.Context, nodeID string, position domain.TreePosition, amount decimal.Decimal) error {
	column := "left_leg_volume"
	if position == domain.TreePositionRight {
		column = "right_leg_volume"
	}
	query := `UPDATE tree_nodes SET ` + column + ` = ` + column + ` + $1, updated_at = NOW() WHERE id = $2`
	_, err := r.db.ExecContext(ctx, query, amount, nodeID)
	return errors.Wrap(err, "failed to add leg volume")
}


// Package deposit creates stakes from member deposits and fans out the
// side effects: principal credit, tree volume rollup, and pool accrual.
package deposit

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

// StakeRepository persists the stake and its deposit record atomically.
type StakeRepository interface {
	CreateWithDeposit(ctx context.Context, stake *domain.Stake, record *domain.Transaction) error
	FindByID(ctx context.Context, id string) (*domain.Stake, error)
	FindByUserID(ctx context.Context, userID string) ([]*domain.Stake, error)
}

// TreeRepository rolls deposit volume up the placement tree.
type TreeRepository interface {
	FindByUserID(ctx context.Context, userID string) (*domain.TreeNode, error)
	FindByID(ctx context.Context, id string) (*domain.TreeNode, error)
	AddPersonalVolume(ctx context.Context, userID string, amount decimal.Decimal) error
	AddLegVolume(ctx context.Context, nodeID string, position domain.TreePosition, amount decimal.Decimal) error
}

// PoolAccruer records the deposit's leadership pool contribution.
type PoolAccruer interface {
	RecordDeposit(ctx context.Context, programID domain.ProgramID, amount decimal.Decimal, now time.Time) error
}

// Service handles stake creation.
type Service struct {
	stakes StakeRepository
	tree   TreeRepository
	pool   PoolAccruer
	logger logger.Logger
	now    func() time.Time
}

func NewService(stakes StakeRepository, tree TreeRepository, pool PoolAccruer, log logger.Logger) *Service {
	return &Service{stakes: stakes, tree: tree, pool: pool, logger: log, now: time.Now}
}

// CreateStakeRequest captures a deposit into a program.
type CreateStakeRequest struct {
	Program domain.ProgramID `json:"program" validate:"required,program_id"`
	Amount  decimal.Decimal  `json:"amount" validate:"required"`
}

// CreateStake validates the deposit against the program, creates the stake
// with its principal credit and deposit record in one transaction, then rolls
// volume up the tree and accrues the pool contribution. Rollup and accrual
// failures are logged, not returned; the stake itself is already durable.
func (s *Service) CreateStake(ctx context.Context, userID uuid.UUID, req *CreateStakeRequest) (*domain.Stake, error) {
	program, err := domain.ProgramByID(req.Program)
	if err != nil {
		return nil, err
	}
	if !req.Amount.IsPositive() || req.Amount.LessThan(program.MinStake) {
		return nil, errors.ErrBelowMinimumStake
	}

	now := s.now()
	stake := &domain.Stake{
		ID:              uuid.New(),
		UserID:          userID,
		Program:         program.ID,
		Principal:       req.Amount,
		BaseRate:        program.BaseRate,
		IsActive:        true,
		TotalROIEarned:  decimal.Zero,
		CompoundingRate: program.CompoundingRate,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	record := &domain.Transaction{
		ID:          uuid.New(),
		UserID:      userID,
		StakeID:     &stake.ID,
		Type:        domain.TransactionTypeDeposit,
		Amount:      req.Amount,
		Reference:   fmt.Sprintf("deposit-%s", stake.ID),
		Description: fmt.Sprintf("Deposit into Program %s", program.ID),
	}

	if err := s.stakes.CreateWithDeposit(ctx, stake, record); err != nil {
		return nil, err
	}

	if err := s.rollUpVolume(ctx, userID, req.Amount); err != nil {
		s.logger.Error("Tree volume rollup failed", map[string]interface{}{
			"user_id": userID,
			"amount":  req.Amount.String(),
			"error":   err.Error(),
		})
	}

	if err := s.pool.RecordDeposit(ctx, program.ID, req.Amount, now); err != nil {
		s.logger.Error("Pool accrual failed", map[string]interface{}{
			"user_id": userID,
			"program": program.ID.String(),
			"amount":  req.Amount.String(),
			"error":   err.Error(),
		})
	}

	s.logger.Info("Stake created", map[string]interface{}{
		"stake_id":  stake.ID,
		"user_id":   userID,
		"program":   program.ID.String(),
		"principal": req.Amount.String(),
	})

	return stake, nil
}

// rollUpVolume credits the depositor's personal volume, then walks the parent
// chain adding the amount to whichever leg the child hangs from.
func (s *Service) rollUpVolume(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) error {
	node, err := s.tree.FindByUserID(ctx, userID.String())
	if err != nil {
		return err
	}
	if err := s.tree.AddPersonalVolume(ctx, userID.String(), amount); err != nil {
		return err
	}

	child := node
	for child.ParentID != nil {
		parentID := child.ParentID.String()
		if err := s.tree.AddLegVolume(ctx, parentID, child.Position, amount); err != nil {
			return err
		}
		parent, err := s.tree.FindByID(ctx, parentID)
		if err != nil {
			return err
		}
		child = parent
	}
	return nil
}

// Stakes lists a member's stakes, newest first.
func (s *Service) Stakes(ctx context.Context, userID uuid.UUID) ([]*domain.Stake, error) {
	return s.stakes.FindByUserID(ctx, userID.String())
}

// Stake fetches one stake and verifies ownership.
func (s *Service) Stake(ctx context.Context, userID uuid.UUID, stakeID string) (*domain.Stake, error) {
	stake, err := s.stakes.FindByID(ctx, stakeID)
	if err != nil {
		return nil, err
	}
	if stake.UserID != userID {
		return nil, errors.ErrStakeNotFound
	}
	return stake, nil
}

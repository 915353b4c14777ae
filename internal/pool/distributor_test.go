package pool

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/amankumar-in/phantom-stake-sub001/internal/domain"
	"github.com/amankumar-in/phantom-stake-sub001/pkg/errors"
	"github.com/amankumar-in/phantom-stake-sub001/pkg/logger"
)

// Mocks

type MockPoolRepository struct {
	mock.Mock
}

func (m *MockPoolRepository) FindByProgramMonth(ctx context.Context, program domain.ProgramID, month string) (*domain.LeadershipPool, error) {
	args := m.Called(ctx, program, month)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.LeadershipPool), args.Error(1)
}

func (m *MockPoolRepository) Accrue(ctx context.Context, pool *domain.LeadershipPool, deposit, contribution decimal.Decimal) error {
	args := m.Called(ctx, pool, deposit, contribution)
	return args.Error(0)
}

func (m *MockPoolRepository) MarkReady(ctx context.Context, currentMonth string) (int64, error) {
	args := m.Called(ctx, currentMonth)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockPoolRepository) ClaimForDistribution(ctx context.Context, poolID string, now time.Time) (bool, error) {
	args := m.Called(ctx, poolID, now)
	return args.Bool(0), args.Error(1)
}

func (m *MockPoolRepository) SaveTiers(ctx context.Context, poolID string, tiers []*domain.PoolTier) error {
	args := m.Called(ctx, poolID, tiers)
	return args.Error(0)
}

func (m *MockPoolRepository) FindTiers(ctx context.Context, poolID string) ([]*domain.PoolTier, error) {
	args := m.Called(ctx, poolID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.PoolTier), args.Error(1)
}

type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) FindQualifiedByRank(ctx context.Context, rank domain.Rank, minStake decimal.Decimal) ([]*domain.User, error) {
	args := m.Called(ctx, rank, minStake)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.User), args.Error(1)
}

type MockWalletRepository struct {
	mock.Mock
}

func (m *MockWalletRepository) CreditIncomeWithRecord(ctx context.Context, record *domain.Transaction) (bool, error) {
	args := m.Called(ctx, record)
	return args.Bool(0), args.Error(1)
}

var marchNoon = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func readyPool(fund int64) *domain.LeadershipPool {
	return &domain.LeadershipPool{
		ID:       uuid.New(),
		Program:  domain.ProgramI,
		Month:    "2026-02",
		PoolFund: decimal.NewFromInt(fund),
		Status:   domain.PoolStatusReady,
	}
}

func member() *domain.User {
	return &domain.User{ID: uuid.New(), IsActive: true}
}

// expectTiers wires FindQualifiedByRank for every tier. Tiers absent from
// membersByTier get no members.
func expectTiers(users *MockUserRepository, membersByTier map[domain.Rank][]*domain.User) {
	for _, tier := range domain.PoolTiers {
		members := membersByTier[tier]
		if members == nil {
			members = []*domain.User{}
		}
		users.On("FindQualifiedByRank", mock.Anything, tier, mock.Anything).Return(members, nil)
	}
}

func TestRecordDepositAccruesPoolPercent(t *testing.T) {
	pools := new(MockPoolRepository)
	// Program I contributes 1% of each deposit.
	pools.On("Accrue", mock.Anything, mock.MatchedBy(func(p *domain.LeadershipPool) bool {
		return p.Program == domain.ProgramI && p.Month == "2026-03"
	}), mock.MatchedBy(func(d decimal.Decimal) bool {
		return d.Equal(decimal.NewFromInt(1000))
	}), mock.MatchedBy(func(d decimal.Decimal) bool {
		return d.Equal(decimal.NewFromInt(10))
	})).Return(nil)

	d := NewDistributor(pools, new(MockUserRepository), new(MockWalletRepository), logger.NewNop())
	err := d.RecordDeposit(context.Background(), domain.ProgramI, decimal.NewFromInt(1000), marchNoon)

	assert.NoError(t, err)
	pools.AssertExpectations(t)
}

func TestCalculateDistributionEmptyTierKeepsFund(t *testing.T) {
	pools := new(MockPoolRepository)
	users := new(MockUserRepository)

	pool := readyPool(1000)
	pools.On("FindByProgramMonth", mock.Anything, domain.ProgramI, "2026-02").Return(pool, nil)
	expectTiers(users, map[domain.Rank][]*domain.User{
		domain.RankSilver: {member(), member()},
	})

	d := NewDistributor(pools, users, new(MockWalletRepository), logger.NewNop())
	dist, err := d.CalculateDistribution(context.Background(), domain.ProgramI, "2026-02")

	assert.NoError(t, err)
	assert.Len(t, dist.Tiers, 4)
	for _, tier := range dist.Tiers {
		switch tier.Tier {
		case domain.RankSilver:
			// 40% of 1000 split across two members.
			assert.True(t, tier.TotalAmount.Equal(decimal.NewFromInt(400)))
			assert.True(t, tier.PerMemberShare.Equal(decimal.NewFromInt(200)))
		default:
			assert.Equal(t, 0, tier.QualifiedMembers)
			assert.True(t, tier.PerMemberShare.IsZero())
		}
	}
}

func TestCalculateDistributionShareRoundsDown(t *testing.T) {
	pools := new(MockPoolRepository)
	users := new(MockUserRepository)

	pool := readyPool(1000)
	pools.On("FindByProgramMonth", mock.Anything, domain.ProgramI, "2026-02").Return(pool, nil)
	expectTiers(users, map[domain.Rank][]*domain.User{
		domain.RankGold: {member(), member(), member()},
	})

	d := NewDistributor(pools, users, new(MockWalletRepository), logger.NewNop())
	dist, err := d.CalculateDistribution(context.Background(), domain.ProgramI, "2026-02")

	assert.NoError(t, err)
	for _, tier := range dist.Tiers {
		if tier.Tier == domain.RankGold {
			// 30% of 1000 is 300; a third rounds down to 100.00 exactly here,
			// the rounding mode matters for funds that do not divide evenly.
			assert.True(t, tier.PerMemberShare.Equal(decimal.NewFromInt(100)))
		}
	}
}

func TestDistributeOpenPoolNotReady(t *testing.T) {
	pools := new(MockPoolRepository)
	pool := readyPool(1000)
	pool.Status = domain.PoolStatusOpen
	pools.On("FindByProgramMonth", mock.Anything, domain.ProgramI, "2026-02").Return(pool, nil)

	d := NewDistributor(pools, new(MockUserRepository), new(MockWalletRepository), logger.NewNop())
	result, err := d.Distribute(context.Background(), domain.ProgramI, "2026-02", marchNoon)

	assert.ErrorIs(t, err, errors.ErrPoolNotReady)
	assert.Nil(t, result)
	pools.AssertNotCalled(t, "ClaimForDistribution", mock.Anything, mock.Anything, mock.Anything)
}

func TestDistributeRepeatedCallIsNoOp(t *testing.T) {
	pools := new(MockPoolRepository)
	wallets := new(MockWalletRepository)
	pool := readyPool(1000)
	pool.Status = domain.PoolStatusDistributed
	pools.On("FindByProgramMonth", mock.Anything, domain.ProgramI, "2026-02").Return(pool, nil)

	d := NewDistributor(pools, new(MockUserRepository), wallets, logger.NewNop())
	result, err := d.Distribute(context.Background(), domain.ProgramI, "2026-02", marchNoon)

	assert.NoError(t, err)
	assert.True(t, result.Distributed)
	assert.True(t, result.AlreadyDistributed)
	assert.Equal(t, 0, result.MembersPaid)
	wallets.AssertNotCalled(t, "CreditIncomeWithRecord", mock.Anything, mock.Anything)
}

func TestDistributeLostClaimIsNoOp(t *testing.T) {
	pools := new(MockPoolRepository)
	users := new(MockUserRepository)
	wallets := new(MockWalletRepository)
	pool := readyPool(1000)
	pools.On("FindByProgramMonth", mock.Anything, domain.ProgramI, "2026-02").Return(pool, nil)
	pools.On("ClaimForDistribution", mock.Anything, pool.ID.String(), marchNoon).Return(false, nil)
	expectTiers(users, nil)

	d := NewDistributor(pools, users, wallets, logger.NewNop())
	result, err := d.Distribute(context.Background(), domain.ProgramI, "2026-02", marchNoon)

	assert.NoError(t, err)
	assert.True(t, result.AlreadyDistributed)
	wallets.AssertNotCalled(t, "CreditIncomeWithRecord", mock.Anything, mock.Anything)
}

func TestDistributePlanningFailureLeavesPoolClaimable(t *testing.T) {
	pools := new(MockPoolRepository)
	users := new(MockUserRepository)
	wallets := new(MockWalletRepository)
	pool := readyPool(1000)
	pools.On("FindByProgramMonth", mock.Anything, domain.ProgramI, "2026-02").Return(pool, nil)
	users.On("FindQualifiedByRank", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, fmt.Errorf("connection reset"))

	d := NewDistributor(pools, users, wallets, logger.NewNop())
	result, err := d.Distribute(context.Background(), domain.ProgramI, "2026-02", marchNoon)

	// A transient lookup failure must not flip the pool to distributed, or
	// every retry would short-circuit and the fund would never pay out.
	assert.Error(t, err)
	assert.Nil(t, result)
	pools.AssertNotCalled(t, "ClaimForDistribution", mock.Anything, mock.Anything, mock.Anything)
	wallets.AssertNotCalled(t, "CreditIncomeWithRecord", mock.Anything, mock.Anything)

	// With the member lookup healthy again, the same pool distributes.
	users.ExpectedCalls = nil
	alice := member()
	expectTiers(users, map[domain.Rank][]*domain.User{domain.RankSilver: {alice}})
	pools.On("ClaimForDistribution", mock.Anything, pool.ID.String(), marchNoon).Return(true, nil)
	pools.On("SaveTiers", mock.Anything, pool.ID.String(), mock.Anything).Return(nil)
	wallets.On("CreditIncomeWithRecord", mock.Anything, mock.Anything).Return(true, nil)

	retry, err := d.Distribute(context.Background(), domain.ProgramI, "2026-02", marchNoon)
	assert.NoError(t, err)
	assert.Equal(t, 1, retry.MembersPaid)
}

func TestDistributeCreditsMembersAndSavesTiers(t *testing.T) {
	pools := new(MockPoolRepository)
	users := new(MockUserRepository)
	wallets := new(MockWalletRepository)

	pool := readyPool(1000)
	alice := member()
	bob := member()

	pools.On("FindByProgramMonth", mock.Anything, domain.ProgramI, "2026-02").Return(pool, nil)
	pools.On("ClaimForDistribution", mock.Anything, pool.ID.String(), marchNoon).Return(true, nil)
	expectTiers(users, map[domain.Rank][]*domain.User{
		domain.RankSilver: {alice, bob},
	})

	for _, m := range []*domain.User{alice, bob} {
		userID := m.ID
		wallets.On("CreditIncomeWithRecord", mock.Anything, mock.MatchedBy(func(r *domain.Transaction) bool {
			return r.UserID == userID &&
				r.Type == domain.TransactionTypeLeadershipPool &&
				r.Amount.Equal(decimal.NewFromInt(200)) &&
				r.Reference == fmt.Sprintf("pool-%s-%s", pool.ID, userID)
		})).Return(true, nil)
	}
	pools.On("SaveTiers", mock.Anything, pool.ID.String(), mock.Anything).Return(nil)

	d := NewDistributor(pools, users, wallets, logger.NewNop())
	result, err := d.Distribute(context.Background(), domain.ProgramI, "2026-02", marchNoon)

	assert.NoError(t, err)
	assert.Equal(t, 2, result.MembersPaid)
	assert.True(t, result.CreditedTotal.Equal(decimal.NewFromInt(400)))
	wallets.AssertExpectations(t)
	pools.AssertExpectations(t)
}

func TestDistributeReplayedCreditCountsSkipped(t *testing.T) {
	pools := new(MockPoolRepository)
	users := new(MockUserRepository)
	wallets := new(MockWalletRepository)

	pool := readyPool(1000)
	pools.On("FindByProgramMonth", mock.Anything, domain.ProgramI, "2026-02").Return(pool, nil)
	pools.On("ClaimForDistribution", mock.Anything, pool.ID.String(), marchNoon).Return(true, nil)
	expectTiers(users, map[domain.Rank][]*domain.User{
		domain.RankSilver: {member()},
	})
	wallets.On("CreditIncomeWithRecord", mock.Anything, mock.Anything).Return(false, nil)
	pools.On("SaveTiers", mock.Anything, pool.ID.String(), mock.Anything).Return(nil)

	d := NewDistributor(pools, users, wallets, logger.NewNop())
	result, err := d.Distribute(context.Background(), domain.ProgramI, "2026-02", marchNoon)

	assert.NoError(t, err)
	assert.Equal(t, 0, result.MembersPaid)
	assert.Equal(t, 1, result.SkippedCount)
	assert.True(t, result.CreditedTotal.IsZero())
}

func TestCloseElapsedMonths(t *testing.T) {
	pools := new(MockPoolRepository)
	pools.On("MarkReady", mock.Anything, "2026-03").Return(int64(2), nil)

	d := NewDistributor(pools, new(MockUserRepository), new(MockWalletRepository), logger.NewNop())
	closed, err := d.CloseElapsedMonths(context.Background(), marchNoon)

	assert.NoError(t, err)
	assert.Equal(t, int64(2), closed)
}

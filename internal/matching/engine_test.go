package matching

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
	"github.com/amankumar-in/phantom-stake-sub001/pkg/logger"
)

// Mocks

type MockPaymentRepository struct {
	mock.Mock
}

func (m *MockPaymentRepository) FindByDay(ctx context.Context, day time.Time) ([]*domain.ROIPayment, error) {
	args := m.Called(ctx, day)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.ROIPayment), args.Error(1)
}

type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

type MockWalletRepository struct {
	mock.Mock
}

func (m *MockWalletRepository) CreditIncomeWithRecord(ctx context.Context, record *domain.Transaction) (bool, error) {
	args := m.Called(ctx, record)
	return args.Bool(0), args.Error(1)
}

var day = time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)

func activeUser(rank domain.Rank, sponsorID *uuid.UUID) *domain.User {
	return &domain.User{
		ID:        uuid.New(),
		SponsorID: sponsorID,
		Rank:      rank,
		IsActive:  true,
	}
}

func roiPayment(userID uuid.UUID, amount int64) *domain.ROIPayment {
	return &domain.ROIPayment{
		ID:          uuid.New(),
		UserID:      userID,
		StakeID:     uuid.New(),
		Program:     domain.ProgramI,
		Amount:      decimal.NewFromInt(amount),
		PaidForDate: day,
	}
}

func expectUser(users *MockUserRepository, u *domain.User) {
	users.On("FindByID", mock.Anything, u.ID.String()).Return(u, nil)
}

func TestProcessDailyBonusesPaysDirectSponsor(t *testing.T) {
	payments := new(MockPaymentRepository)
	users := new(MockUserRepository)
	wallets := new(MockWalletRepository)

	sponsor := activeUser(domain.RankNone, nil)
	earner := activeUser(domain.RankNone, &sponsor.ID)
	payment := roiPayment(earner.ID, 100)

	payments.On("FindByDay", mock.Anything, day).Return([]*domain.ROIPayment{payment}, nil)
	expectUser(users, earner)
	expectUser(users, sponsor)

	wallets.On("CreditIncomeWithRecord", mock.Anything, mock.MatchedBy(func(r *domain.Transaction) bool {
		return r.UserID == sponsor.ID &&
			r.Type == domain.TransactionTypeMatchingBonus &&
			r.Amount.Equal(decimal.NewFromInt(10)) &&
			r.Reference == fmt.Sprintf("match-%s-%s", payment.ID, sponsor.ID)
	})).Return(true, nil)

	engine := NewEngine(payments, users, wallets, logger.NewNop())
	summary, err := engine.ProcessDailyBonuses(context.Background(), day)

	assert.NoError(t, err)
	assert.Equal(t, 1, summary.PaidCount)
	assert.True(t, summary.TotalAmount.Equal(decimal.NewFromInt(10)))
	wallets.AssertExpectations(t)
}

func TestProcessDailyBonusesRankGatesDeepLevels(t *testing.T) {
	payments := new(MockPaymentRepository)
	users := new(MockUserRepository)
	wallets := new(MockWalletRepository)

	// Grandsponsor has no rank, so level 2 pays nothing; level 1 still pays.
	grand := activeUser(domain.RankNone, nil)
	sponsor := activeUser(domain.RankNone, &grand.ID)
	earner := activeUser(domain.RankNone, &sponsor.ID)
	payment := roiPayment(earner.ID, 100)

	payments.On("FindByDay", mock.Anything, day).Return([]*domain.ROIPayment{payment}, nil)
	expectUser(users, earner)
	expectUser(users, sponsor)
	expectUser(users, grand)
	wallets.On("CreditIncomeWithRecord", mock.Anything, mock.MatchedBy(func(r *domain.Transaction) bool {
		return r.UserID == sponsor.ID
	})).Return(true, nil)

	engine := NewEngine(payments, users, wallets, logger.NewNop())
	summary, err := engine.ProcessDailyBonuses(context.Background(), day)

	assert.NoError(t, err)
	assert.Equal(t, 1, summary.PaidCount)
	wallets.AssertNumberOfCalls(t, "CreditIncomeWithRecord", 1)
}

func TestProcessDailyBonusesRankedUplineEarnsDeeper(t *testing.T) {
	payments := new(MockPaymentRepository)
	users := new(MockUserRepository)
	wallets := new(MockWalletRepository)

	// Silver unlocks level 2 at 5%.
	grand := activeUser(domain.RankSilver, nil)
	sponsor := activeUser(domain.RankNone, &grand.ID)
	earner := activeUser(domain.RankNone, &sponsor.ID)
	payment := roiPayment(earner.ID, 200)

	payments.On("FindByDay", mock.Anything, day).Return([]*domain.ROIPayment{payment}, nil)
	expectUser(users, earner)
	expectUser(users, sponsor)
	expectUser(users, grand)
	wallets.On("CreditIncomeWithRecord", mock.Anything, mock.MatchedBy(func(r *domain.Transaction) bool {
		return r.UserID == sponsor.ID && r.Amount.Equal(decimal.NewFromInt(20))
	})).Return(true, nil)
	wallets.On("CreditIncomeWithRecord", mock.Anything, mock.MatchedBy(func(r *domain.Transaction) bool {
		return r.UserID == grand.ID && r.Amount.Equal(decimal.NewFromInt(10))
	})).Return(true, nil)

	engine := NewEngine(payments, users, wallets, logger.NewNop())
	summary, err := engine.ProcessDailyBonuses(context.Background(), day)

	assert.NoError(t, err)
	assert.Equal(t, 2, summary.PaidCount)
	assert.True(t, summary.TotalAmount.Equal(decimal.NewFromInt(30)))
}

func TestProcessDailyBonusesSummaryMatchesCreditedRecords(t *testing.T) {
	payments := new(MockPaymentRepository)
	users := new(MockUserRepository)
	wallets := new(MockWalletRepository)

	grand := activeUser(domain.RankSilver, nil)
	sponsor := activeUser(domain.RankNone, &grand.ID)
	earner := activeUser(domain.RankNone, &sponsor.ID)
	// 33.33 forces fractional bonuses, where an independent recalculation
	// could drift from the cents actually written to the ledger.
	payment := roiPayment(earner.ID, 0)
	payment.Amount = decimal.RequireFromString("33.33")

	payments.On("FindByDay", mock.Anything, day).Return([]*domain.ROIPayment{payment}, nil)
	expectUser(users, earner)
	expectUser(users, sponsor)
	expectUser(users, grand)

	credited := decimal.Zero
	wallets.On("CreditIncomeWithRecord", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			credited = credited.Add(args.Get(1).(*domain.Transaction).Amount)
		}).
		Return(true, nil)

	engine := NewEngine(payments, users, wallets, logger.NewNop())
	summary, err := engine.ProcessDailyBonuses(context.Background(), day)

	assert.NoError(t, err)
	assert.Equal(t, 2, summary.PaidCount)
	// 10% and 5% of 33.33, rounded to cents: 3.33 + 1.67.
	assert.True(t, credited.Equal(decimal.RequireFromString("5.00")))
	assert.True(t, summary.TotalAmount.Equal(credited),
		"summary total %s differs from credited ledger total %s", summary.TotalAmount, credited)
}

func TestProcessDailyBonusesSkipsInactiveUpline(t *testing.T) {
	payments := new(MockPaymentRepository)
	users := new(MockUserRepository)
	wallets := new(MockWalletRepository)

	sponsor := activeUser(domain.RankNone, nil)
	sponsor.IsActive = false
	earner := activeUser(domain.RankNone, &sponsor.ID)
	payment := roiPayment(earner.ID, 100)

	payments.On("FindByDay", mock.Anything, day).Return([]*domain.ROIPayment{payment}, nil)
	expectUser(users, earner)
	expectUser(users, sponsor)

	engine := NewEngine(payments, users, wallets, logger.NewNop())
	summary, err := engine.ProcessDailyBonuses(context.Background(), day)

	assert.NoError(t, err)
	assert.Equal(t, 0, summary.PaidCount)
	wallets.AssertNotCalled(t, "CreditIncomeWithRecord", mock.Anything, mock.Anything)
}

func TestProcessDailyBonusesReplayCountsSkipped(t *testing.T) {
	payments := new(MockPaymentRepository)
	users := new(MockUserRepository)
	wallets := new(MockWalletRepository)

	sponsor := activeUser(domain.RankNone, nil)
	earner := activeUser(domain.RankNone, &sponsor.ID)
	payment := roiPayment(earner.ID, 100)

	payments.On("FindByDay", mock.Anything, day).Return([]*domain.ROIPayment{payment}, nil)
	expectUser(users, earner)
	expectUser(users, sponsor)
	// Reference already exists from an earlier pass.
	wallets.On("CreditIncomeWithRecord", mock.Anything, mock.Anything).Return(false, nil)

	engine := NewEngine(payments, users, wallets, logger.NewNop())
	summary, err := engine.ProcessDailyBonuses(context.Background(), day)

	assert.NoError(t, err)
	assert.Equal(t, 0, summary.PaidCount)
	assert.Equal(t, 1, summary.SkippedCount)
	assert.True(t, summary.TotalAmount.IsZero())
}

func TestProcessDailyBonusesContinuesPastFailingPayment(t *testing.T) {
	payments := new(MockPaymentRepository)
	users := new(MockUserRepository)
	wallets := new(MockWalletRepository)

	sponsor := activeUser(domain.RankNone, nil)
	good := activeUser(domain.RankNone, &sponsor.ID)
	orphanID := uuid.New()

	bad := roiPayment(orphanID, 100)
	ok := roiPayment(good.ID, 100)

	payments.On("FindByDay", mock.Anything, day).Return([]*domain.ROIPayment{bad, ok}, nil)
	users.On("FindByID", mock.Anything, orphanID.String()).Return(nil, assert.AnError)
	expectUser(users, good)
	expectUser(users, sponsor)
	wallets.On("CreditIncomeWithRecord", mock.Anything, mock.Anything).Return(true, nil)

	engine := NewEngine(payments, users, wallets, logger.NewNop())
	summary, err := engine.ProcessDailyBonuses(context.Background(), day)

	assert.NoError(t, err)
	assert.Equal(t, 1, summary.ErrorCount)
	assert.Equal(t, 1, summary.PaidCount)
}

func TestProcessDailyBonusesFatalWhenListingFails(t *testing.T) {
	payments := new(MockPaymentRepository)
	payments.On("FindByDay", mock.Anything, day).Return(nil, assert.AnError)

	engine := NewEngine(payments, new(MockUserRepository), new(MockWalletRepository), logger.NewNop())
	summary, err := engine.ProcessDailyBonuses(context.Background(), day)

	assert.Error(t, err)
	assert.Nil(t, summary)
}

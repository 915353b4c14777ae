package roi

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/amankumar-in/phantom-stake-sub001/internal/domain"
	"github.com/amankumar-in/phantom-stake-sub001/internal/qualification"
	"github.com/amankumar-in/phantom-stake-sub001/pkg/logger"
)

// Mocks

type MockStakeRepository struct {
	mock.Mock
}

func (m *MockStakeRepository) FindActive(ctx context.Context) ([]*domain.Stake, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Stake), args.Error(1)
}

func (m *MockStakeRepository) ApplyROIPayment(ctx context.Context, payment *domain.ROIPayment, day time.Time) (bool, error) {
	args := m.Called(ctx, payment, day)
	return args.Bool(0), args.Error(1)
}

type MockEvaluator struct {
	mock.Mock
}

func (m *MockEvaluator) Evaluate(ctx context.Context, stake *domain.Stake, now time.Time) (qualification.Decision, error) {
	args := m.Called(ctx, stake, now)
	return args.Get(0).(qualification.Decision), args.Error(1)
}

func activeStake() *domain.Stake {
	return &domain.Stake{
		ID:        uuid.New(),
		UserID:    uuid.New(),
		Program:   domain.ProgramI,
		Principal: decimal.NewFromInt(1000),
		IsActive:  true,
	}
}

func dueDecision(amount string) qualification.Decision {
	return qualification.Decision{
		Due:         true,
		Regime:      qualification.RegimeBase,
		PaymentType: domain.PaymentTypeBaseROI,
		Rate:        decimal.RequireFromString("0.0075"),
		Amount:      decimal.RequireFromString(amount),
	}
}

func TestRunPaysDueStakes(t *testing.T) {
	repo := new(MockStakeRepository)
	eval := new(MockEvaluator)

	s1 := activeStake()
	s2 := activeStake()
	repo.On("FindActive", mock.Anything).Return([]*domain.Stake{s1, s2}, nil)
	eval.On("Evaluate", mock.Anything, s1, mock.Anything).Return(dueDecision("7.5"), nil)
	eval.On("Evaluate", mock.Anything, s2, mock.Anything).Return(dueDecision("10"), nil)
	repo.On("ApplyROIPayment", mock.Anything, mock.Anything, mock.Anything).Return(true, nil)

	p := NewProcessor(repo, eval, nil, nil, logger.NewNop())
	summary, err := p.Run(context.Background())

	assert.NoError(t, err)
	assert.True(t, summary.Success)
	assert.Equal(t, 2, summary.TotalStakes)
	assert.Equal(t, 2, summary.ProcessedStakes)
	assert.Equal(t, 0, summary.ErrorCount)
	assert.True(t, summary.TotalROIPaid.Equal(decimal.RequireFromString("17.5")))
	assert.Len(t, summary.Results, 2)
}

func TestRunSkipsAlreadyPaidStakes(t *testing.T) {
	repo := new(MockStakeRepository)
	eval := new(MockEvaluator)

	s := activeStake()
	repo.On("FindActive", mock.Anything).Return([]*domain.Stake{s}, nil)
	eval.On("Evaluate", mock.Anything, s, mock.Anything).Return(dueDecision("7.5"), nil)
	// Another run won the race; the conditional update matched no rows.
	repo.On("ApplyROIPayment", mock.Anything, mock.Anything, mock.Anything).Return(false, nil)

	p := NewProcessor(repo, eval, nil, nil, logger.NewNop())
	summary, err := p.Run(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, 0, summary.ProcessedStakes)
	assert.Equal(t, 0, summary.ErrorCount)
	assert.True(t, summary.TotalROIPaid.IsZero())
}

func TestRunSkipsNotDueStakes(t *testing.T) {
	repo := new(MockStakeRepository)
	eval := new(MockEvaluator)

	s := activeStake()
	repo.On("FindActive", mock.Anything).Return([]*domain.Stake{s}, nil)
	eval.On("Evaluate", mock.Anything, s, mock.Anything).Return(qualification.Decision{Due: false}, nil)

	p := NewProcessor(repo, eval, nil, nil, logger.NewNop())
	summary, err := p.Run(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, 0, summary.ProcessedStakes)
	repo.AssertNotCalled(t, "ApplyROIPayment", mock.Anything, mock.Anything, mock.Anything)
}

func TestRunContinuesPastFailingStake(t *testing.T) {
	repo := new(MockStakeRepository)
	eval := new(MockEvaluator)

	bad := activeStake()
	bad.Program = domain.ProgramID(99)
	good := activeStake()

	repo.On("FindActive", mock.Anything).Return([]*domain.Stake{bad, good}, nil)
	eval.On("Evaluate", mock.Anything, bad, mock.Anything).Return(qualification.Decision{}, assert.AnError)
	eval.On("Evaluate", mock.Anything, good, mock.Anything).Return(dueDecision("7.5"), nil)
	repo.On("ApplyROIPayment", mock.Anything, mock.Anything, mock.Anything).Return(true, nil)

	p := NewProcessor(repo, eval, nil, nil, logger.NewNop())
	summary, err := p.Run(context.Background())

	assert.NoError(t, err)
	assert.True(t, summary.Success)
	assert.Equal(t, 1, summary.ErrorCount)
	assert.Equal(t, 1, summary.ProcessedStakes)
	// Failed stakes never appear in results.
	assert.Len(t, summary.Results, 1)
	assert.Equal(t, good.ID, summary.Results[0].StakeID)
}

func TestRunFatalWhenEnumerationFails(t *testing.T) {
	repo := new(MockStakeRepository)
	eval := new(MockEvaluator)

	repo.On("FindActive", mock.Anything).Return(nil, assert.AnError)

	p := NewProcessor(repo, eval, nil, nil, logger.NewNop())
	summary, err := p.Run(context.Background())

	assert.Error(t, err)
	assert.Nil(t, summary)
}

func TestRunRecordsPaidForDateAsUTCDay(t *testing.T) {
	repo := new(MockStakeRepository)
	eval := new(MockEvaluator)

	s := activeStake()
	repo.On("FindActive", mock.Anything).Return([]*domain.Stake{s}, nil)
	eval.On("Evaluate", mock.Anything, s, mock.Anything).Return(dueDecision("7.5"), nil)

	var captured *domain.ROIPayment
	repo.On("ApplyROIPayment", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			captured = args.Get(1).(*domain.ROIPayment)
		}).
		Return(true, nil)

	p := NewProcessor(repo, eval, nil, nil, logger.NewNop())
	p.now = func() time.Time {
		return time.Date(2026, 3, 14, 17, 42, 3, 0, time.UTC)
	}

	_, err := p.Run(context.Background())

	assert.NoError(t, err)
	assert.NotNil(t, captured)
	assert.Equal(t, time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC), captured.PaidForDate)
	assert.Equal(t, s.UserID, captured.UserID)
}

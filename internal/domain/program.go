package domain

import (
	"github.com/shopspring/decimal"

	"github.com/amankumar-in/phantom-stake-sub001/pkg/errors"
)

// ProgramID identifies one of the four staking programs.
type ProgramID int

const (
	ProgramI ProgramID = iota + 1
	ProgramII
	ProgramIII
	ProgramIV
)

func (p ProgramID) String() string {
	switch p {
	case ProgramI:
		return "I"
	case ProgramII:
		return "II"
	case ProgramIII:
		return "III"
	case ProgramIV:
		return "IV"
	default:
		return "unknown"
	}
}

// Program carries the full parameter set of one staking product.
type Program struct {
	ID       ProgramID
	Name     string
	MinStake decimal.Decimal

	// Daily interest rates applied to principal.
	BaseRate     decimal.Decimal
	EnhancedRate decimal.Decimal

	// Enhanced-ROI qualification thresholds.
	EnhancedMinTotalStake decimal.Decimal
	ReferralMinStake      decimal.Decimal
	RequiredReferrals     int

	// Compounding: entered after CompoundingDays consecutive days without an
	// income withdrawal, provided the income balance meets the minimum. The
	// compounding rate applies to the income-wallet balance.
	CompoundingDays      int
	CompoundingMinIncome decimal.Decimal
	CompoundingRate      decimal.Decimal

	// Share of each deposit accrued into the monthly leadership pool.
	PoolPercent decimal.Decimal
}

var programs = map[ProgramID]Program{
	ProgramI: {
		ID:                    ProgramI,
		Name:                  "Program I",
		MinStake:              decimal.NewFromInt(100),
		BaseRate:              decimal.RequireFromString("0.0075"),
		EnhancedRate:          decimal.RequireFromString("0.0100"),
		EnhancedMinTotalStake: decimal.NewFromInt(5000),
		ReferralMinStake:      decimal.NewFromInt(500),
		RequiredReferrals:     2,
		CompoundingDays:       7,
		CompoundingMinIncome:  decimal.NewFromInt(100),
		CompoundingRate:       decimal.RequireFromString("0.0050"),
		PoolPercent:           decimal.RequireFromString("0.010"),
	},
	ProgramII: {
		ID:                    ProgramII,
		Name:                  "Program II",
		MinStake:              decimal.NewFromInt(1000),
		BaseRate:              decimal.RequireFromString("0.0085"),
		EnhancedRate:          decimal.RequireFromString("0.0115"),
		EnhancedMinTotalStake: decimal.NewFromInt(15000),
		ReferralMinStake:      decimal.NewFromInt(1500),
		RequiredReferrals:     3,
		CompoundingDays:       5,
		CompoundingMinIncome:  decimal.NewFromInt(250),
		CompoundingRate:       decimal.RequireFromString("0.0060"),
		PoolPercent:           decimal.RequireFromString("0.015"),
	},
	ProgramIII: {
		ID:                    ProgramIII,
		Name:                  "Program III",
		MinStake:              decimal.NewFromInt(10000),
		BaseRate:              decimal.RequireFromString("0.0100"),
		EnhancedRate:          decimal.RequireFromString("0.0130"),
		EnhancedMinTotalStake: decimal.NewFromInt(50000),
		ReferralMinStake:      decimal.NewFromInt(5000),
		RequiredReferrals:     4,
		CompoundingDays:       3,
		CompoundingMinIncome:  decimal.NewFromInt(500),
		CompoundingRate:       decimal.RequireFromString("0.0075"),
		PoolPercent:           decimal.RequireFromString("0.020"),
	},
	ProgramIV: {
		ID:                    ProgramIV,
		Name:                  "Program IV",
		MinStake:              decimal.NewFromInt(50000),
		BaseRate:              decimal.RequireFromString("0.0125"),
		EnhancedRate:          decimal.RequireFromString("0.0150"),
		EnhancedMinTotalStake: decimal.NewFromInt(150000),
		ReferralMinStake:      decimal.NewFromInt(15000),
		RequiredReferrals:     5,
		CompoundingDays:       1,
		CompoundingMinIncome:  decimal.NewFromInt(1000),
		CompoundingRate:       decimal.RequireFromString("0.0100"),
		PoolPercent:           decimal.RequireFromString("0.025"),
	},
}

// ProgramByID resolves a program or reports ErrUnknownProgram. Callers must
// not fall back to a default rate on error.
func ProgramByID(id ProgramID) (Program, error) {
	p, ok := programs[id]
	if !ok {
		return Program{}, errors.ErrUnknownProgram
	}
	return p, nil
}

// AllPrograms returns the four programs in order.
func AllPrograms() []Program {
	return []Program{
		programs[ProgramI],
		programs[ProgramII],
		programs[ProgramIII],
		programs[ProgramIV],
	}
}

// PoolTierSplit maps rank tiers to their share of a monthly pool fund.
var PoolTierSplit = map[Rank]decimal.Decimal{
	RankSilver:  decimal.RequireFromString("0.40"),
	RankGold:    decimal.RequireFromString("0.30"),
	RankDiamond: decimal.RequireFromString("0.20"),
	RankRuby:    decimal.RequireFromString("0.10"),
}

// PoolTierMinStake is the personal active stake a member must maintain to
// qualify for a tier's share.
var PoolTierMinStake = map[Rank]decimal.Decimal{
	RankSilver:  decimal.NewFromInt(1000),
	RankGold:    decimal.NewFromInt(5000),
	RankDiamond: decimal.NewFromInt(25000),
	RankRuby:    decimal.NewFromInt(100000),
}

// PoolTiers lists the payable tiers in descending order.
var PoolTiers = []Rank{RankRuby, RankDiamond, RankGold, RankSilver}

// MatchingLevelRates is the percent of downline ROI paid per upline level.
var MatchingLevelRates = []decimal.Decimal{
	decimal.RequireFromString("0.10"),
	decimal.RequireFromString("0.05"),
	decimal.RequireFromString("0.03"),
	decimal.RequireFromString("0.02"),
	decimal.RequireFromString("0.01"),
}

// MaxMatchingLevels caps the upline walk for matching bonuses.
const MaxMatchingLevels = 5

// UnlockedMatchingLevels returns how many upline levels a rank can earn
// matching bonuses on. Everyone earns level 1; each rank unlocks one more.
func UnlockedMatchingLevels(r Rank) int {
	levels := r.Level() + 1
	if levels > MaxMatchingLevels {
		levels = MaxMatchingLevels
	}
	return levels
}

// Package domain holds the shared data model for the staking platform.
package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// User represents a platform member.
type User struct {
	ID           uuid.UUID  `json:"id" db:"id"`
	Email        string     `json:"email" db:"email"`
	PasswordHash string     `json:"-" db:"password_hash"`
	FirstName    string     `json:"first_name" db:"first_name"`
	LastName     string     `json:"last_name" db:"last_name"`
	ReferralCode string     `json:"referral_code" db:"referral_code"`
	SponsorID    *uuid.UUID `json:"sponsor_id,omitempty" db:"sponsor_id"`
	Rank         Rank       `json:"rank" db:"rank"`
	IsAdmin      bool       `json:"is_admin" db:"is_admin"`
	IsActive     bool       `json:"is_active" db:"is_active"`
	LastLogin    *time.Time `json:"last_login,omitempty" db:"last_login"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`
}

// Rank is a leadership rank earned through network volume.
type Rank string

const (
	RankNone    Rank = "none"
	RankSilver  Rank = "silver"
	RankGold    Rank = "gold"
	RankDiamond Rank = "diamond"
	RankRuby    Rank = "ruby"
)

// Level returns the rank's ordinal, used for tier comparisons and for the
// number of matching-bonus levels the rank unlocks.
func (r Rank) Level() int {
	switch r {
	case RankSilver:
		return 1
	case RankGold:
		return 2
	case RankDiamond:
		return 3
	case RankRuby:
		return 4
	default:
		return 0
	}
}

// WalletType distinguishes the two wallets every user owns.
type WalletType string

const (
	WalletTypePrincipal WalletType = "principal"
	WalletTypeIncome    WalletType = "income"
)

// Wallet holds a user's balance of one type. The principal wallet carries
// locked staking capital; the income wallet receives ROI and bonus credits
// and is the only wallet withdrawals draw from.
type Wallet struct {
	ID               uuid.UUID       `json:"id" db:"id"`
	UserID           uuid.UUID       `json:"user_id" db:"user_id"`
	WalletType       WalletType      `json:"wallet_type" db:"wallet_type"`
	Balance          decimal.Decimal `json:"balance" db:"balance"`
	TotalEarned      decimal.Decimal `json:"total_earned" db:"total_earned"`
	TotalWithdrawn   decimal.Decimal `json:"total_withdrawn" db:"total_withdrawn"`
	LastWithdrawalAt *time.Time      `json:"last_withdrawal_at,omitempty" db:"last_withdrawal_at"`
	CreatedAt        time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at" db:"updated_at"`
}

// Stake is a locked principal deposit earning daily ROI under a program.
// A stake is never deleted, only deactivated.
type Stake struct {
	ID             uuid.UUID       `json:"id" db:"id"`
	UserID         uuid.UUID       `json:"user_id" db:"user_id"`
	Program        ProgramID       `json:"program" db:"program"`
	Principal      decimal.Decimal `json:"principal" db:"principal"`
	BaseRate       decimal.Decimal `json:"base_rate" db:"base_rate"`
	IsActive       bool            `json:"is_active" db:"is_active"`
	LastROIPaidAt  *time.Time      `json:"last_roi_paid_at,omitempty" db:"last_roi_paid_at"`
	TotalROIEarned decimal.Decimal `json:"total_roi_earned" db:"total_roi_earned"`

	// Compounding sub-state. While active, daily interest is computed on the
	// income-wallet balance instead of the principal.
	CompoundingActive    bool            `json:"compounding_active" db:"compounding_active"`
	CompoundingDays      int             `json:"compounding_days" db:"compounding_days"`
	CompoundingRate      decimal.Decimal `json:"compounding_rate" db:"compounding_rate"`
	CompoundingStartedAt *time.Time      `json:"compounding_started_at,omitempty" db:"compounding_started_at"`
	CompoundingCheckedAt *time.Time      `json:"compounding_checked_at,omitempty" db:"compounding_checked_at"`

	// Cached enhanced-ROI flag for display surfaces only. Payment decisions
	// always requalify from live data.
	EnhancedQualified bool `json:"enhanced_qualified" db:"enhanced_qualified"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// PaidToday reports whether the stake has already received its ROI for the
// UTC day containing now.
func (s *Stake) PaidToday(now time.Time) bool {
	if s.LastROIPaidAt == nil {
		return false
	}
	paid := s.LastROIPaidAt.UTC()
	day := now.UTC()
	return paid.Year() == day.Year() && paid.YearDay() == day.YearDay()
}

// PaymentType tags which regime produced an ROI payment.
type PaymentType string

const (
	PaymentTypeBaseROI     PaymentType = "base_roi"
	PaymentTypeEnhancedROI PaymentType = "enhanced_roi"
	PaymentTypeCompounding PaymentType = "compounding"
)

// ROIPayment is the immutable record of one daily disbursement. At most one
// payment exists per stake per UTC day.
type ROIPayment struct {
	ID             uuid.UUID       `json:"id" db:"id"`
	UserID         uuid.UUID       `json:"user_id" db:"user_id"`
	StakeID        uuid.UUID       `json:"stake_id" db:"stake_id"`
	Program        ProgramID       `json:"program" db:"program"`
	Amount         decimal.Decimal `json:"amount" db:"amount"`
	Rate           decimal.Decimal `json:"rate" db:"rate"`
	PaymentType    PaymentType     `json:"payment_type" db:"payment_type"`
	CompoundingDay int             `json:"compounding_day" db:"compounding_day"`
	PaidForDate    time.Time       `json:"paid_for_date" db:"paid_for_date"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
}

// TransactionType classifies income-wallet movements beyond daily ROI.
type TransactionType string

const (
	TransactionTypeDeposit        TransactionType = "deposit"
	TransactionTypeWithdrawal     TransactionType = "withdrawal"
	TransactionTypeMatchingBonus  TransactionType = "matching_bonus"
	TransactionTypeLeadershipPool TransactionType = "leadership_pool"
)

// Transaction records a wallet movement (deposits, withdrawals, bonuses).
type Transaction struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	UserID      uuid.UUID       `json:"user_id" db:"user_id"`
	StakeID     *uuid.UUID      `json:"stake_id,omitempty" db:"stake_id"`
	Type        TransactionType `json:"type" db:"type"`
	Amount      decimal.Decimal `json:"amount" db:"amount"`
	Reference   string          `json:"reference" db:"reference"`
	Description string          `json:"description" db:"description"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

// PoolStatus is the lifecycle of a monthly leadership pool.
type PoolStatus string

const (
	PoolStatusOpen        PoolStatus = "open"
	PoolStatusReady       PoolStatus = "ready"
	PoolStatusDistributed PoolStatus = "distributed"
)

// LeadershipPool aggregates a percentage of one program's deposits for one
// calendar month. Distribution is a one-time terminal transition.
type LeadershipPool struct {
	ID            uuid.UUID       `json:"id" db:"id"`
	Program       ProgramID       `json:"program" db:"program"`
	Month         string          `json:"month" db:"month"` // YYYY-MM
	TotalDeposits decimal.Decimal `json:"total_deposits" db:"total_deposits"`
	PoolFund      decimal.Decimal `json:"pool_fund" db:"pool_fund"`
	Status        PoolStatus      `json:"status" db:"status"`
	DistributedAt *time.Time      `json:"distributed_at,omitempty" db:"distributed_at"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at" db:"updated_at"`
}

// PoolTier is one rank tier's slice of a monthly pool.
type PoolTier struct {
	ID               uuid.UUID       `json:"id" db:"id"`
	PoolID           uuid.UUID       `json:"pool_id" db:"pool_id"`
	Tier             Rank            `json:"tier" db:"tier"`
	TotalAmount      decimal.Decimal `json:"total_amount" db:"total_amount"`
	QualifiedMembers int             `json:"qualified_members" db:"qualified_members"`
	PerMemberShare   decimal.Decimal `json:"per_member_share" db:"per_member_share"`
}

// TreePosition is a slot in the binary placement tree.
type TreePosition string

const (
	TreePositionRoot  TreePosition = "root"
	TreePositionLeft  TreePosition = "left"
	TreePositionRight TreePosition = "right"
)

// TreeNode places a user in the binary referral tree. Parent is the placement
// parent; Sponsor is the referring user, which may differ under spillover.
type TreeNode struct {
	ID             uuid.UUID       `json:"id" db:"id"`
	UserID         uuid.UUID       `json:"user_id" db:"user_id"`
	ParentID       *uuid.UUID      `json:"parent_id,omitempty" db:"parent_id"`
	SponsorID      *uuid.UUID      `json:"sponsor_id,omitempty" db:"sponsor_id"`
	Position       TreePosition    `json:"position" db:"position"`
	Path           string          `json:"path" db:"path"`
	Depth          int             `json:"depth" db:"depth"`
	PersonalVolume decimal.Decimal `json:"personal_volume" db:"personal_volume"`
	LeftLegVolume  decimal.Decimal `json:"left_leg_volume" db:"left_leg_volume"`
	RightLegVolume decimal.Decimal `json:"right_leg_volume" db:"right_leg_volume"`
	IsActive       bool            `json:"is_active" db:"is_active"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at" db:"updated_at"`
}

// StartOfUTCDay truncates t to 00:00:00 UTC of its calendar day.
func StartOfUTCDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// MonthKey formats t's UTC month as YYYY-MM, the leadership pool key.
func MonthKey(t time.Time) string {
	return t.UTC().Format("2006-01")
}

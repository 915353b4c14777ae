// Package errors provides common, reusable error values and helpers.
package errors

import (
	"errors"
	"fmt"
)

// Common errors
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUserAlreadyExists  = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")

	ErrWalletNotFound      = errors.New("wallet not found")
	ErrInsufficientBalance = errors.New("insufficient balance")

	// Stake / qualification errors
	ErrStakeNotFound     = errors.New("stake not found")
	ErrStakeInactive     = errors.New("stake is not active")
	ErrUnknownProgram    = errors.New("unknown staking program")
	ErrBelowMinimumStake = errors.New("amount below program minimum stake")

	// Leadership pool errors
	ErrPoolNotFound = errors.New("leadership pool not found")
	ErrPoolNotReady = errors.New("leadership pool is not ready for distribution")

	// Referral tree errors
	ErrTreeNodeNotFound = errors.New("referral tree node not found")
	ErrPositionOccupied = errors.New("tree position already occupied")
	ErrSponsorNotFound  = errors.New("sponsor not found for referral code")

	ErrPaymentRecordExists = errors.New("roi payment already recorded for this day")
)

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

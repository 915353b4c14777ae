package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/amankumar-in/phantom-stake-sub001/internal/domain"
	"github.com/amankumar-in/phantom-stake-sub001/internal/middleware"
	"github.com/amankumar-in/phantom-stake-sub001/internal/withdrawal"
	"github.com/amankumar-in/phantom-stake-sub001/pkg/errors"
	"github.com/amankumar-in/phantom-stake-sub001/pkg/logger"
	"github.com/amankumar-in/phantom-stake-sub001/pkg/validator"
)

// WalletReader lists a member's wallets.
type WalletReader interface {
	FindByUserID(ctx context.Context, userID string) ([]*domain.Wallet, error)
}

// TransactionReader pages a member's transaction history.
type TransactionReader interface {
	FindByUserID(ctx context.Context, userID string, limit, offset int) ([]*domain.Transaction, error)
	CountByUserID(ctx context.Context, userID string) (int, error)
}

// WalletHandler handles wallet queries and withdrawals.
type WalletHandler struct {
	withdrawals  *withdrawal.Service
	wallets      WalletReader
	transactions TransactionReader
	validator    *validator.Validator
	logger       logger.Logger
}

func NewWalletHandler(
	withdrawals *withdrawal.Service,
	wallets WalletReader,
	transactions TransactionReader,
	val *validator.Validator,
	log logger.Logger,
) *WalletHandler {
	return &WalletHandler{
		withdrawals:  withdrawals,
		wallets:      wallets,
		transactions: transactions,
		validator:    val,
		logger:       log,
	}
}

// GetWallets returns the caller's principal and income wallets.
func (h *WalletHandler) GetWallets(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	wallets, err := h.wallets.FindByUserID(r.Context(), userID.String())
	if err != nil {
		h.logger.Error("Failed to list wallets", map[string]interface{}{
			"user_id": userID,
			"error":   err.Error(),
		})
		respondError(w, http.StatusInternalServerError, "Failed to list wallets")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"wallets": wallets})
}

// Withdraw debits the caller's income wallet. A withdrawal resets any
// compounding streak on the caller's stakes.
func (h *WalletHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req withdrawal.WithdrawRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.validator.Validate(&req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	record, err := h.withdrawals.Withdraw(r.Context(), userID, &req)
	if err != nil {
		switch err {
		case errors.ErrInsufficientBalance:
			respondError(w, http.StatusUnprocessableEntity, "Insufficient balance")
		case errors.ErrWalletNotFound:
			respondError(w, http.StatusNotFound, "Wallet not found")
		default:
			h.logger.Error("Withdrawal failed", map[string]interface{}{
				"user_id": userID,
				"error":   err.Error(),
			})
			respondError(w, http.StatusInternalServerError, "Withdrawal failed")
		}
		return
	}

	respondJSON(w, http.StatusCreated, record)
}

// ListTransactions pages the caller's transaction history.
func (h *WalletHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	limit, offset := pagination(r, 50)

	transactions, err := h.transactions.FindByUserID(r.Context(), userID.String(), limit, offset)
	if err != nil {
		h.logger.Error("Failed to list transactions", map[string]interface{}{
			"user_id": userID,
			"error":   err.Error(),
		})
		respondError(w, http.StatusInternalServerError, "Failed to list transactions")
		return
	}

	total, err := h.transactions.CountByUserID(r.Context(), userID.String())
	if err != nil {
		h.logger.Warn("Failed to count transactions", map[string]interface{}{
			"user_id": userID,
			"error":   err.Error(),
		})
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": transactions,
		"total":        total,
		"limit":        limit,
		"offset":       offset,
	})
}

func pagination(r *http.Request, defaultLimit int) (int, int) {
	limit := defaultLimit
	offset := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}

package handler

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/amankumar-in/phantom-stake-sub001/internal/deposit"
	"github.com/amankumar-in/phantom-stake-sub001/internal/domain"
	"github.com/amankumar-in/phantom-stake-sub001/internal/middleware"
	"github.com/amankumar-in/phantom-stake-sub001/pkg/errors"
	"github.com/amankumar-in/phantom-stake-sub001/pkg/logger"
	"github.com/amankumar-in/phantom-stake-sub001/pkg/validator"
)

// PaymentReader pages ROI payment history by member or by stake.
type PaymentReader interface {
	FindByUserID(ctx context.Context, userID string, limit, offset int) ([]*domain.ROIPayment, error)
	FindByStakeID(ctx context.Context, stakeID string, limit, offset int) ([]*domain.ROIPayment, error)
}

// StakeHandler handles deposits, stake queries, and ROI history.
type StakeHandler struct {
	service   *deposit.Service
	payments  PaymentReader
	validator *validator.Validator
	logger    logger.Logger
}

func NewStakeHandler(service *deposit.Service, payments PaymentReader, val *validator.Validator, log logger.Logger) *StakeHandler {
	return &StakeHandler{
		service:   service,
		payments:  payments,
		validator: val,
		logger:    log,
	}
}

// ListPrograms returns the four staking programs and their parameters.
func (h *StakeHandler) ListPrograms(w http.ResponseWriter, r *http.Request) {
	type programView struct {
		ID                int    `json:"id"`
		Name              string `json:"name"`
		MinStake          string `json:"min_stake"`
		BaseRate          string `json:"base_rate"`
		EnhancedRate      string `json:"enhanced_rate"`
		CompoundingDays   int    `json:"compounding_days"`
		CompoundingRate   string `json:"compounding_rate"`
		RequiredReferrals int    `json:"required_referrals"`
	}

	views := []programView{}
	for _, p := range domain.AllPrograms() {
		views = append(views, programView{
			ID:                int(p.ID),
			Name:              p.Name,
			MinStake:          p.MinStake.String(),
			BaseRate:          p.BaseRate.String(),
			EnhancedRate:      p.EnhancedRate.String(),
			CompoundingDays:   p.CompoundingDays,
			CompoundingRate:   p.CompoundingRate.String(),
			RequiredReferrals: p.RequiredReferrals,
		})
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"programs": views})
}

// CreateStake deposits into a program, creating a new stake.
func (h *StakeHandler) CreateStake(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req deposit.CreateStakeRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.validator.Validate(&req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	stake, err := h.service.CreateStake(r.Context(), userID, &req)
	if err != nil {
		switch err {
		case errors.ErrUnknownProgram:
			respondError(w, http.StatusBadRequest, "Unknown program")
		case errors.ErrBelowMinimumStake:
			respondError(w, http.StatusBadRequest, "Amount below program minimum")
		case errors.ErrWalletNotFound:
			respondError(w, http.StatusNotFound, "Wallet not found")
		default:
			h.logger.Error("Stake creation failed", map[string]interface{}{
				"user_id": userID,
				"error":   err.Error(),
			})
			respondError(w, http.StatusInternalServerError, "Failed to create stake")
		}
		return
	}

	respondJSON(w, http.StatusCreated, stake)
}

// ListStakes returns the caller's stakes, newest first.
func (h *StakeHandler) ListStakes(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	stakes, err := h.service.Stakes(r.Context(), userID)
	if err != nil {
		h.logger.Error("Failed to list stakes", map[string]interface{}{
			"user_id": userID,
			"error":   err.Error(),
		})
		respondError(w, http.StatusInternalServerError, "Failed to list stakes")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"stakes": stakes})
}

// GetStake returns one of the caller's stakes.
func (h *StakeHandler) GetStake(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	stakeID := mux.Vars(r)["id"]
	stake, err := h.service.Stake(r.Context(), userID, stakeID)
	if err != nil {
		if err == errors.ErrStakeNotFound {
			respondError(w, http.StatusNotFound, "Stake not found")
			return
		}
		h.logger.Error("Failed to fetch stake", map[string]interface{}{
			"stake_id": stakeID,
			"error":    err.Error(),
		})
		respondError(w, http.StatusInternalServerError, "Failed to fetch stake")
		return
	}

	respondJSON(w, http.StatusOK, stake)
}

// ListStakePayments pages the ROI history of one of the caller's stakes.
func (h *StakeHandler) ListStakePayments(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	// Ownership gate before touching the payment ledger.
	stakeID := mux.Vars(r)["id"]
	if _, err := h.service.Stake(r.Context(), userID, stakeID); err != nil {
		if err == errors.ErrStakeNotFound {
			respondError(w, http.StatusNotFound, "Stake not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "Failed to fetch stake")
		return
	}

	limit, offset := pagination(r, 50)
	payments, err := h.payments.FindByStakeID(r.Context(), stakeID, limit, offset)
	if err != nil {
		h.logger.Error("Failed to list stake payments", map[string]interface{}{
			"stake_id": stakeID,
			"error":    err.Error(),
		})
		respondError(w, http.StatusInternalServerError, "Failed to list payments")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"payments": payments,
		"limit":    limit,
		"offset":   offset,
	})
}

// ListROIPayments pages the caller's daily ROI history, newest first.
func (h *StakeHandler) ListROIPayments(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	limit, offset := pagination(r, 50)
	payments, err := h.payments.FindByUserID(r.Context(), userID.String(), limit, offset)
	if err != nil {
		h.logger.Error("Failed to list roi payments", map[string]interface{}{
			"user_id": userID,
			"error":   err.Error(),
		})
		respondError(w, http.StatusInternalServerError, "Failed to list payments")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"payments": payments,
		"limit":    limit,
		"offset":   offset,
	})
}

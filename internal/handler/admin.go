package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/amankumar-in/phantom-stake-sub001/internal/domain"
	"github.com/amankumar-in/phantom-stake-sub001/internal/pool"
	"github.com/amankumar-in/phantom-stake-sub001/internal/scheduler"
	"github.com/amankumar-in/phantom-stake-sub001/pkg/errors"
	"github.com/amankumar-in/phantom-stake-sub001/pkg/logger"
)

// RankSetter assigns leadership ranks. Ranks feed pool tier membership and
// matching bonus depth.
type RankSetter interface {
	UpdateRank(ctx context.Context, id string, rank domain.Rank) error
}

// StakeRetirer removes stakes from the daily cycle.
type StakeRetirer interface {
	Deactivate(ctx context.Context, stakeID string) error
}

// AdminHandler exposes the manual batch triggers, pool administration, and
// member management. All routes sit behind the admin gate.
type AdminHandler struct {
	processor   scheduler.DailyProcessor
	counters    scheduler.CounterUpdater
	distributor *pool.Distributor
	ranks       RankSetter
	stakes      StakeRetirer
	logger      logger.Logger
}

func NewAdminHandler(
	processor scheduler.DailyProcessor,
	counters scheduler.CounterUpdater,
	distributor *pool.Distributor,
	ranks RankSetter,
	stakes StakeRetirer,
	log logger.Logger,
) *AdminHandler {
	return &AdminHandler{
		processor:   processor,
		counters:    counters,
		distributor: distributor,
		ranks:       ranks,
		stakes:      stakes,
		logger:      log,
	}
}

// RunDailyROI triggers the daily cycle manually. Re-running within the same
// UTC day is safe; already-paid stakes are skipped.
func (h *AdminHandler) RunDailyROI(w http.ResponseWriter, r *http.Request) {
	summary, err := h.processor.Run(r.Context())
	if err != nil {
		h.logger.Error("Manual daily run failed", map[string]interface{}{"error": err.Error()})
		respondError(w, http.StatusInternalServerError, "Daily run failed")
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

// RunCounterPass triggers the compounding counter pass manually.
func (h *AdminHandler) RunCounterPass(w http.ResponseWriter, r *http.Request) {
	summary, err := h.counters.UpdateCounters(r.Context())
	if err != nil {
		h.logger.Error("Manual counter pass failed", map[string]interface{}{"error": err.Error()})
		respondError(w, http.StatusInternalServerError, "Counter pass failed")
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

// ClosePools flips pools from elapsed months to ready.
func (h *AdminHandler) ClosePools(w http.ResponseWriter, r *http.Request) {
	closed, err := h.distributor.CloseElapsedMonths(r.Context(), time.Now())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to close pools")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"pools_closed": closed})
}

// PreviewPool returns the computed distribution plan without paying anyone.
func (h *AdminHandler) PreviewPool(w http.ResponseWriter, r *http.Request) {
	programID, month, ok := poolParams(w, r)
	if !ok {
		return
	}

	plan, err := h.distributor.CalculateDistribution(r.Context(), programID, month)
	if err != nil {
		if err == errors.ErrPoolNotFound {
			respondError(w, http.StatusNotFound, "Pool not found")
			return
		}
		h.logger.Error("Pool preview failed", map[string]interface{}{
			"program": programID.String(),
			"month":   month,
			"error":   err.Error(),
		})
		respondError(w, http.StatusInternalServerError, "Pool preview failed")
		return
	}

	respondJSON(w, http.StatusOK, plan)
}

// DistributePool executes a ready pool's payout. Distribution happens at most
// once per pool; a repeat call succeeds without moving money and the result
// carries already_distributed.
func (h *AdminHandler) DistributePool(w http.ResponseWriter, r *http.Request) {
	programID, month, ok := poolParams(w, r)
	if !ok {
		return
	}

	result, err := h.distributor.Distribute(r.Context(), programID, month, time.Now())
	if err != nil {
		switch err {
		case errors.ErrPoolNotFound:
			respondError(w, http.StatusNotFound, "Pool not found")
		case errors.ErrPoolNotReady:
			respondError(w, http.StatusConflict, "Pool month is still open")
		default:
			h.logger.Error("Pool distribution failed", map[string]interface{}{
				"program": programID.String(),
				"month":   month,
				"error":   err.Error(),
			})
			respondError(w, http.StatusInternalServerError, "Pool distribution failed")
		}
		return
	}

	respondJSON(w, http.StatusOK, result)
}

type setRankRequest struct {
	Rank domain.Rank `json:"rank"`
}

// SetUserRank assigns a member's leadership rank. The change takes effect on
// the next matching pass and pool distribution.
func (h *AdminHandler) SetUserRank(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["id"]

	var req setRankRequest
	if !decodeBody(w, r, &req) {
		return
	}
	switch req.Rank {
	case domain.RankNone, domain.RankSilver, domain.RankGold, domain.RankDiamond, domain.RankRuby:
	default:
		respondError(w, http.StatusBadRequest, "Unknown rank")
		return
	}

	if err := h.ranks.UpdateRank(r.Context(), userID, req.Rank); err != nil {
		h.logger.Error("Rank update failed", map[string]interface{}{
			"user_id": userID,
			"rank":    req.Rank,
			"error":   err.Error(),
		})
		respondError(w, http.StatusInternalServerError, "Rank update failed")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"user_id": userID,
		"rank":    req.Rank,
	})
}

// DeactivateStake retires a stake from the daily cycle.
func (h *AdminHandler) DeactivateStake(w http.ResponseWriter, r *http.Request) {
	stakeID := mux.Vars(r)["id"]

	if err := h.stakes.Deactivate(r.Context(), stakeID); err != nil {
		if err == errors.ErrStakeInactive {
			respondError(w, http.StatusConflict, "Stake is not active")
			return
		}
		h.logger.Error("Stake deactivation failed", map[string]interface{}{
			"stake_id": stakeID,
			"error":    err.Error(),
		})
		respondError(w, http.StatusInternalServerError, "Stake deactivation failed")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"stake_id":  stakeID,
		"is_active": false,
	})
}

func poolParams(w http.ResponseWriter, r *http.Request) (domain.ProgramID, string, bool) {
	vars := mux.Vars(r)

	programNum, err := strconv.Atoi(vars["program"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid program")
		return 0, "", false
	}
	programID := domain.ProgramID(programNum)
	if _, err := domain.ProgramByID(programID); err != nil {
		respondError(w, http.StatusBadRequest, "Unknown program")
		return 0, "", false
	}

	month := vars["month"]
	if _, err := time.Parse("2006-01", month); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid month, expected YYYY-MM")
		return 0, "", false
	}

	return programID, month, true
}

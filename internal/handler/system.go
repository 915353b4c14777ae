package handler

import (
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/amankumar-in/phantom-stake-sub001/pkg/logger"
)

// SystemHandler serves health and readiness probes.
type SystemHandler struct {
	db          *sqlx.DB
	redisClient *redis.Client
	logger      logger.Logger
	startTime   time.Time
}

func NewSystemHandler(db *sqlx.DB, redisClient *redis.Client, log logger.Logger) *SystemHandler {
	return &SystemHandler{
		db:          db,
		redisClient: redisClient,
		logger:      log,
		startTime:   time.Now(),
	}
}

// Health is the liveness probe.
func (h *SystemHandler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"uptime":  time.Since(h.startTime).String(),
		"version": "1.0.0",
	})
}

// Status reports the state of the API's dependencies. Redis degradation does
// not fail the check; the database does.
func (h *SystemHandler) Status(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	dbStatus := "operational"

	dbStart := time.Now()
	if err := h.db.PingContext(r.Context()); err != nil {
		dbStatus = "outage"
		status = http.StatusServiceUnavailable
		h.logger.Error("Database ping failed", map[string]interface{}{"error": err.Error()})
	}
	dbLatency := time.Since(dbStart).Milliseconds()

	redisStatus := "operational"
	redisStart := time.Now()
	if err := h.redisClient.Ping(r.Context()).Err(); err != nil {
		redisStatus = "outage"
		h.logger.Error("Redis ping failed", map[string]interface{}{"error": err.Error()})
	}
	redisLatency := time.Since(redisStart).Milliseconds()

	respondJSON(w, status, map[string]interface{}{
		"database": map[string]interface{}{
			"status":     dbStatus,
			"latency_ms": dbLatency,
		},
		"redis": map[string]interface{}{
			"status":     redisStatus,
			"latency_ms": redisLatency,
		},
	})
}

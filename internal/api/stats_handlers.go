package api

import (
	"net/http"

	"github.com/onnwee/replay/internal/middleware"
	"github.com/onnwee/replay/internal/stats"
)

// StatsHandlers holds dependencies for user stats HTTP handlers.
type StatsHandlers struct {
	aggregator *stats.Aggregator
}

// NewStatsHandlers creates a new StatsHandlers instance.
func NewStatsHandlers(aggregator *stats.Aggregator) *StatsHandlers {
	return &StatsHandlers{aggregator: aggregator}
}

// UserStats handles GET /v1/users/me/stats - the caller's listening summary.
// A user with no recorded plays gets all-zero stats, not an error.
func (h *StatsHandlers) UserStats(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeAuthFailed)
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeAuthFailed, "Authentication required")
		return
	}

	userStats, err := h.aggregator.StatsFor(r.Context(), userID)
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to load stats")
		return
	}

	writeJSON(w, http.StatusOK, userStats)
}

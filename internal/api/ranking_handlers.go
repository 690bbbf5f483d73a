package api

import (
	"errors"
	"net/http"

	"github.com/onnwee/replay/internal/middleware"
	"github.com/onnwee/replay/internal/ranking"
	"github.com/onnwee/replay/internal/recency"
)

// Limits for ranking and recency queries.
const (
	DefaultTopLimit    = 10
	MaxTopLimit        = 100
	DefaultRecentLimit = 20
	MaxRecentLimit     = 100
)

// TopSongsResponse represents a ranked list of songs for a period.
type TopSongsResponse struct {
	Period string              `json:"period"`
	Songs  []ranking.SongCount `json:"songs"`
}

// RecentSongsResponse represents a user's most recently played distinct songs.
type RecentSongsResponse struct {
	Songs []recency.Entry `json:"songs"`
}

// RankingHandlers holds dependencies for ranking and recency HTTP handlers.
type RankingHandlers struct {
	engine  ranking.Engine
	recency recency.Index
}

// NewRankingHandlers creates a new RankingHandlers instance.
func NewRankingHandlers(engine ranking.Engine, recencyIndex recency.Index) *RankingHandlers {
	return &RankingHandlers{engine: engine, recency: recencyIndex}
}

// parsePeriodParam reads and validates the period query parameter.
func parsePeriodParam(r *http.Request) (ranking.Period, error) {
	return ranking.ParsePeriod(r.URL.Query().Get("period"))
}

// TopSongs handles GET /v1/users/me/top - the caller's most played songs
// within the requested period.
func (h *RankingHandlers) TopSongs(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeAuthFailed)
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeAuthFailed, "Authentication required")
		return
	}

	period, err := parsePeriodParam(r)
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInvalidPeriod)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeInvalidPeriod, "period must be one of: day, week, month, all")
		return
	}

	limit, ok := parseLimit(r, DefaultTopLimit, MaxTopLimit)
	if !ok {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInvalidLimit)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeInvalidLimit, "limit must be a positive integer")
		return
	}

	songs, err := h.engine.TopSongsForUser(r.Context(), userID, period, limit)
	if err != nil {
		if errors.Is(err, ranking.ErrInvalidLimit) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeInvalidLimit)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeInvalidLimit, "limit must be a positive integer")
			return
		}
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to rank songs")
		return
	}

	if songs == nil {
		songs = []ranking.SongCount{}
	}
	writeJSON(w, http.StatusOK, TopSongsResponse{Period: string(period), Songs: songs})
}

// Charts handles GET /v1/charts - the global most played songs within the
// requested period.
func (h *RankingHandlers) Charts(w http.ResponseWriter, r *http.Request) {
	period, err := parsePeriodParam(r)
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInvalidPeriod)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeInvalidPeriod, "period must be one of: day, week, month, all")
		return
	}

	limit, ok := parseLimit(r, DefaultTopLimit, MaxTopLimit)
	if !ok {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInvalidLimit)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeInvalidLimit, "limit must be a positive integer")
		return
	}

	songs, err := h.engine.TopSongsGlobal(r.Context(), period, limit)
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to rank songs")
		return
	}

	if songs == nil {
		songs = []ranking.SongCount{}
	}
	writeJSON(w, http.StatusOK, TopSongsResponse{Period: string(period), Songs: songs})
}

// RecentSongs handles GET /v1/users/me/recent - the caller's most recently
// played distinct songs, newest first.
func (h *RankingHandlers) RecentSongs(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeAuthFailed)
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeAuthFailed, "Authentication required")
		return
	}

	limit, ok := parseLimit(r, DefaultRecentLimit, MaxRecentLimit)
	if !ok {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInvalidLimit)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeInvalidLimit, "limit must be a positive integer")
		return
	}

	songs, err := h.recency.MostRecentDistinct(r.Context(), userID, limit)
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to list recent songs")
		return
	}

	if songs == nil {
		songs = []recency.Entry{}
	}
	writeJSON(w, http.StatusOK, RecentSongsResponse{Songs: songs})
}

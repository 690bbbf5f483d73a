package api

import (
	"encoding/json"
	"net/http"

	"github.com/onnwee/replay/internal/middleware"
	"github.com/onnwee/replay/internal/play"
	"github.com/onnwee/replay/internal/validate"
)

// SubmitPlayRequest represents the request body for submitting a play.
type SubmitPlayRequest struct {
	SongID        string `json:"song_id"`
	PlayedSeconds int    `json:"played_seconds"`
}

// PlayHandlers holds dependencies for play submission HTTP handlers.
type PlayHandlers struct {
	recorder *play.Recorder
}

// NewPlayHandlers creates a new PlayHandlers instance.
func NewPlayHandlers(recorder *play.Recorder) *PlayHandlers {
	return &PlayHandlers{recorder: recorder}
}

// SubmitPlay handles POST /v1/plays - records a completed listen.
//
// Status codes mirror the recording outcome: 201 when the play was accepted
// and persisted, 200 when it was discarded below the listen threshold (a
// normal outcome, not an error), 422 for unknown songs, 400 for invalid
// input.
func (h *PlayHandlers) SubmitPlay(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeAuthFailed)
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeAuthFailed, "Authentication required")
		return
	}

	var req SubmitPlayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}

	songID, err := validate.SongID(req.SongID)
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, "Invalid song_id: "+err.Error())
		return
	}

	result, err := h.recorder.Record(r.Context(), userID, songID, req.PlayedSeconds)
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to record play")
		return
	}

	switch result.Status {
	case play.StatusRejected:
		code := ErrCodeValidation
		status := http.StatusBadRequest
		if result.Reason == play.ErrUnknownSong.Error() {
			code = ErrCodeUnknownSong
			status = http.StatusUnprocessableEntity
		}
		ctx := middleware.SetErrorCode(r.Context(), code)
		WriteError(w, ctx, status, code, result.Reason)
		return

	case play.StatusDiscarded:
		writeJSON(w, http.StatusOK, result)
		return

	default:
		writeJSON(w, http.StatusCreated, result)
	}
}

// writeJSON writes a JSON response body with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

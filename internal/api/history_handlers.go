package api

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/onnwee/replay/internal/history"
	"github.com/onnwee/replay/internal/middleware"
	"github.com/onnwee/replay/internal/play"
)

// Pagination limits for history listing.
const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 200
)

// HistoryResponse represents a page of a user's play history.
type HistoryResponse struct {
	Events     []*play.Event `json:"events"`
	NextCursor string        `json:"next_cursor,omitempty"`
}

// HistoryHandlers holds dependencies for history HTTP handlers.
type HistoryHandlers struct {
	store   history.Store
	clearer *play.ClearService
}

// NewHistoryHandlers creates a new HistoryHandlers instance.
func NewHistoryHandlers(store history.Store, clearer *play.ClearService) *HistoryHandlers {
	return &HistoryHandlers{store: store, clearer: clearer}
}

// encodeCursor renders a pagination cursor as an opaque URL-safe token.
func encodeCursor(c *history.Cursor) string {
	data, err := json.Marshal(c)
	if err != nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(data)
}

// decodeCursor parses an opaque cursor token.
func decodeCursor(token string) (*history.Cursor, error) {
	data, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, err
	}
	var c history.Cursor
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// parseLimit reads a limit query parameter with default and cap.
func parseLimit(r *http.Request, def, max int) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, false
	}
	if limit > max {
		limit = max
	}
	return limit, true
}

// ListHistory handles GET /v1/users/me/history - newest-first paginated history.
func (h *HistoryHandlers) ListHistory(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeAuthFailed)
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeAuthFailed, "Authentication required")
		return
	}

	limit, ok := parseLimit(r, DefaultHistoryLimit, MaxHistoryLimit)
	if !ok {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInvalidLimit)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeInvalidLimit, "limit must be a positive integer")
		return
	}

	var cursor *history.Cursor
	if token := r.URL.Query().Get("cursor"); token != "" {
		parsed, err := decodeCursor(token)
		if err != nil {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeInvalidCursor)
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeInvalidCursor, "Malformed pagination cursor")
			return
		}
		cursor = parsed
	}

	events, next, err := h.store.ListByUser(r.Context(), userID, limit, cursor)
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to list history")
		return
	}

	resp := HistoryResponse{Events: events}
	if resp.Events == nil {
		resp.Events = []*play.Event{}
	}
	if next != nil {
		resp.NextCursor = encodeCursor(next)
	}
	writeJSON(w, http.StatusOK, resp)
}

// ClearHistory handles DELETE /v1/users/me/history - removes the caller's
// entire history and invalidates their derived views.
func (h *HistoryHandlers) ClearHistory(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeAuthFailed)
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeAuthFailed, "Authentication required")
		return
	}

	if err := h.clearer.Clear(r.Context(), userID); err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to clear history")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

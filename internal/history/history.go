// Package history provides the append-only durable log of play events,
// queryable by user, song and time range.
package history

import (
	"context"
	"errors"
	"time"

	"github.com/onnwee/replay/internal/play"
)

// Common errors for history operations.
var (
	// ErrInvalidLimit is returned when a query limit is not positive.
	ErrInvalidLimit = errors.New("limit must be > 0")
)

// TimeRange is a half-open interval [Start, End). A zero Start means
// unbounded below; a zero End means unbounded above.
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls within the range.
func (r TimeRange) Contains(t time.Time) bool {
	if !r.Start.IsZero() && t.Before(r.Start) {
		return false
	}
	if !r.End.IsZero() && !t.Before(r.End) {
		return false
	}
	return true
}

// Cursor represents a position for paginating through a user's history.
// Uses (occurred_at, id) for stable pagination with tie-breaking.
type Cursor struct {
	OccurredAt time.Time `json:"occurred_at"`
	ID         string    `json:"id"`
}

// Store defines the interface for the play event log.
//
// Appends are fresh inserts, never in-place mutations, so they are safe
// under concurrent writers. Implementations must order ListByUser results
// by occurred_at DESC, id ASC (tie-breaker).
type Store interface {
	play.HistoryAppender
	play.HistoryClearer

	// ListByUser retrieves a page of the user's events, newest first.
	// If cursor is nil, starts from the most recent event.
	// Returns events, next cursor (nil if no more), and error.
	ListByUser(ctx context.Context, userID string, limit int, cursor *Cursor) ([]*play.Event, *Cursor, error)

	// ListBySong retrieves a song's events within the time range, in no
	// guaranteed order. Used for ranking recomputation.
	ListBySong(ctx context.Context, songID string, tr TimeRange) ([]*play.Event, error)

	// EventsByUserInRange retrieves all of a user's events within the time
	// range, in no guaranteed order.
	EventsByUserInRange(ctx context.Context, userID string, tr TimeRange) ([]*play.Event, error)

	// EventsInRange retrieves all events within the time range across all
	// users, in no guaranteed order. Used for global aggregation.
	EventsInRange(ctx context.Context, tr TimeRange) ([]*play.Event, error)
}

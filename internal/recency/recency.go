// Package recency maintains the per-user "recently played, deduplicated by
// song, most-recent-first" view derived from play history.
package recency

import (
	"context"
	"errors"
	"time"

	"github.com/onnwee/replay/internal/play"
)

// ErrInvalidLimit is returned when a query limit is not positive.
var ErrInvalidLimit = errors.New("limit must be > 0")

// Entry is one deduplicated recently-played song for a user.
type Entry struct {
	SongID       string    `json:"song_id"`
	LastPlayedAt time.Time `json:"last_played_at"`
}

// Index defines the interface for the recency view.
//
// Upsert is keyed by (user, song): repeated plays of the same song update
// the entry rather than duplicating it. Upserts carrying a lastPlayedAt
// older than the stored value are ignored, which makes the index tolerant
// of out-of-order event delivery.
type Index interface {
	play.DerivedView

	// Upsert records that the user played the song at lastPlayedAt.
	Upsert(ctx context.Context, userID, songID string, lastPlayedAt time.Time) error

	// MostRecentDistinct returns up to limit distinct songs the user played,
	// most recent first. A song never appears twice.
	MostRecentDistinct(ctx context.Context, userID string, limit int) ([]Entry, error)

	// Reset drops every entry so the recompute job can rebuild the index
	// from history. A failed best-effort invalidation otherwise leaves
	// cleared songs in the index indefinitely.
	Reset(ctx context.Context) error
}

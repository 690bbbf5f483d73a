// Package stats provides per-user summary counters derived from play history.
package stats

import (
	"context"
	"sync"

	"github.com/onnwee/replay/internal/play"
)

// UserStats is the summary for one user. Values are monotonically
// non-decreasing except when the user's history is cleared, at which point
// they reset to zero.
type UserStats struct {
	TotalPlays        int64 `json:"total_plays"`
	TotalSeconds      int64 `json:"total_seconds"`
	DistinctSongCount int   `json:"distinct_song_count"`
}

// userAccum is the mutable accumulator behind a user's stats.
type userAccum struct {
	totalPlays   int64
	totalSeconds int64
	songs        map[string]struct{}
}

// Aggregator maintains per-user stats incrementally from accepted events.
// Thread-safe: increments for the same user interleave without lost updates.
type Aggregator struct {
	mu    sync.RWMutex
	users map[string]*userAccum
}

// NewAggregator creates an empty stats aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{
		users: make(map[string]*userAccum),
	}
}

// Name implements play.DerivedView.
func (a *Aggregator) Name() string {
	return "stats"
}

// Apply implements play.DerivedView.
func (a *Aggregator) Apply(_ context.Context, event *play.Event) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	accum := a.users[event.UserID]
	if accum == nil {
		accum = &userAccum{songs: make(map[string]struct{})}
		a.users[event.UserID] = accum
	}
	accum.totalPlays++
	accum.totalSeconds += int64(event.PlayedSeconds)
	accum.songs[event.SongID] = struct{}{}
	return nil
}

// StatsFor returns the user's summary. A user with no recorded plays gets
// all-zero stats.
func (a *Aggregator) StatsFor(_ context.Context, userID string) (UserStats, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	accum := a.users[userID]
	if accum == nil {
		return UserStats{}, nil
	}
	return UserStats{
		TotalPlays:        accum.totalPlays,
		TotalSeconds:      accum.totalSeconds,
		DistinctSongCount: len(accum.songs),
	}, nil
}

// InvalidateUser implements play.DerivedView. Resets the user to zero.
func (a *Aggregator) InvalidateUser(_ context.Context, userID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.users, userID)
	return nil
}

// Reset drops all accumulated stats. Used by the recompute job before
// replaying history from scratch.
func (a *Aggregator) Reset(_ context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.users = make(map[string]*userAccum)
	return nil
}

package recency

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/onnwee/replay/internal/play"
)

// InMemoryIndex is an in-memory implementation of Index.
// Thread-safe via RWMutex.
type InMemoryIndex struct {
	mu      sync.RWMutex
	entries map[string]map[string]time.Time // userID -> songID -> lastPlayedAt
}

// NewInMemoryIndex creates a new in-memory recency index.
func NewInMemoryIndex() *InMemoryIndex {
	return &InMemoryIndex{
		entries: make(map[string]map[string]time.Time),
	}
}

// Name implements play.DerivedView.
func (i *InMemoryIndex) Name() string {
	return "recency"
}

// Apply implements play.DerivedView.
func (i *InMemoryIndex) Apply(ctx context.Context, event *play.Event) error {
	return i.Upsert(ctx, event.UserID, event.SongID, event.OccurredAt)
}

// Upsert records a play, keeping only the newest timestamp per (user, song).
func (i *InMemoryIndex) Upsert(_ context.Context, userID, songID string, lastPlayedAt time.Time) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	user := i.entries[userID]
	if user == nil {
		user = make(map[string]time.Time)
		i.entries[userID] = user
	}

	// Ignore out-of-order older plays
	if existing, ok := user[songID]; ok && !lastPlayedAt.After(existing) {
		return nil
	}
	user[songID] = lastPlayedAt
	return nil
}

// MostRecentDistinct returns up to limit distinct songs, most recent first.
func (i *InMemoryIndex) MostRecentDistinct(_ context.Context, userID string, limit int) ([]Entry, error) {
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}

	i.mu.RLock()
	defer i.mu.RUnlock()

	user := i.entries[userID]
	result := make([]Entry, 0, len(user))
	for songID, playedAt := range user {
		result = append(result, Entry{SongID: songID, LastPlayedAt: playedAt})
	}

	// lastPlayedAt DESC, songID ASC tie-break for determinism
	sort.Slice(result, func(a, b int) bool {
		if !result[a].LastPlayedAt.Equal(result[b].LastPlayedAt) {
			return result[a].LastPlayedAt.After(result[b].LastPlayedAt)
		}
		return result[a].SongID < result[b].SongID
	})

	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// InvalidateUser implements play.DerivedView.
func (i *InMemoryIndex) InvalidateUser(_ context.Context, userID string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	delete(i.entries, userID)
	return nil
}

// Reset drops all entries. Used by the recompute job before replaying
// history from scratch.
func (i *InMemoryIndex) Reset(_ context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.entries = make(map[string]map[string]time.Time)
	return nil
}

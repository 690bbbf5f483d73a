package history

import (
	"context"
	"sort"
	"sync"

	"github.com/onnwee/replay/internal/play"
)

// InMemoryStore is an in-memory implementation of Store.
// Thread-safe via RWMutex. Used in tests and single-node development.
type InMemoryStore struct {
	mu     sync.RWMutex
	events []*play.Event
}

// NewInMemoryStore creates a new in-memory history store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

// Append adds an event to the log.
func (s *InMemoryStore) Append(_ context.Context, event *play.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *event
	s.events = append(s.events, &copied)
	return nil
}

// ListByUser retrieves a page of the user's events, newest first.
func (s *InMemoryStore) ListByUser(_ context.Context, userID string, limit int, cursor *Cursor) ([]*play.Event, *Cursor, error) {
	if limit <= 0 {
		return nil, nil, ErrInvalidLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*play.Event
	for _, e := range s.events {
		if e.UserID == userID {
			matched = append(matched, e)
		}
	}

	// occurred_at DESC, id ASC tie-break for stable pagination
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].OccurredAt.Equal(matched[j].OccurredAt) {
			return matched[i].OccurredAt.After(matched[j].OccurredAt)
		}
		return matched[i].ID < matched[j].ID
	})

	// Skip entries at or before the cursor position
	start := 0
	if cursor != nil {
		for start < len(matched) {
			e := matched[start]
			if e.OccurredAt.After(cursor.OccurredAt) {
				start++
				continue
			}
			if e.OccurredAt.Equal(cursor.OccurredAt) && e.ID <= cursor.ID {
				start++
				continue
			}
			break
		}
	}

	end := start + limit
	if end > len(matched) {
		end = len(matched)
	}

	page := make([]*play.Event, 0, end-start)
	for _, e := range matched[start:end] {
		copied := *e
		page = append(page, &copied)
	}

	var next *Cursor
	if end < len(matched) && len(page) > 0 {
		last := page[len(page)-1]
		next = &Cursor{OccurredAt: last.OccurredAt, ID: last.ID}
	}

	return page, next, nil
}

// ListBySong retrieves a song's events within the time range.
func (s *InMemoryStore) ListBySong(_ context.Context, songID string, tr TimeRange) ([]*play.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*play.Event
	for _, e := range s.events {
		if e.SongID == songID && tr.Contains(e.OccurredAt) {
			copied := *e
			result = append(result, &copied)
		}
	}
	return result, nil
}

// EventsByUserInRange retrieves all of a user's events within the time range.
func (s *InMemoryStore) EventsByUserInRange(_ context.Context, userID string, tr TimeRange) ([]*play.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*play.Event
	for _, e := range s.events {
		if e.UserID == userID && tr.Contains(e.OccurredAt) {
			copied := *e
			result = append(result, &copied)
		}
	}
	return result, nil
}

// EventsInRange retrieves all events within the time range across all users.
func (s *InMemoryStore) EventsInRange(_ context.Context, tr TimeRange) ([]*play.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*play.Event
	for _, e := range s.events {
		if tr.Contains(e.OccurredAt) {
			copied := *e
			result = append(result, &copied)
		}
	}
	return result, nil
}

// ClearUser removes all events for a user, returning the removed events.
func (s *InMemoryStore) ClearUser(_ context.Context, userID string) ([]*play.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var kept, removed []*play.Event
	for _, e := range s.events {
		if e.UserID == userID {
			removed = append(removed, e)
		} else {
			kept = append(kept, e)
		}
	}
	s.events = kept
	return removed, nil
}

// Len returns the total number of stored events.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

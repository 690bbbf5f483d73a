package ranking

import (
	"context"
	"sync"
	"time"

	"github.com/onnwee/replay/internal/play"
)

// bucketCounts accumulates totals for one (scope, period, window, song).
type bucketCounts struct {
	playCount    int64
	totalSeconds int64
}

// bucketKey addresses a window within a period. For PeriodAll the window
// start is the zero time.
type bucketKey struct {
	period      Period
	windowStart int64 // unix seconds of window start; 0 for PeriodAll
}

// Counters is the incremental Engine implementation: period-bucketed
// counters keyed by (scope, period, window, song), updated on every
// accepted event and read directly at query time.
//
// Events are bucketed by their occurredAt, so late-arriving events land in
// the window they belong to, not the window that is current at apply time.
type Counters struct {
	mu     sync.RWMutex
	user   map[string]map[bucketKey]map[string]*bucketCounts // userID -> bucket -> songID
	global map[bucketKey]map[string]*bucketCounts
	now    func() time.Time
}

// NewCounters creates an empty incremental ranking engine.
func NewCounters() *Counters {
	return &Counters{
		user:   make(map[string]map[bucketKey]map[string]*bucketCounts),
		global: make(map[bucketKey]map[string]*bucketCounts),
		now:    time.Now,
	}
}

// NewCountersWithClock creates a Counters with a custom time source. Used in tests.
func NewCountersWithClock(now func() time.Time) *Counters {
	c := NewCounters()
	c.now = now
	return c
}

// Name implements play.DerivedView.
func (c *Counters) Name() string {
	return "ranking"
}

// Apply folds an accepted event into every period bucket containing its
// occurrence time, for both the user and global scopes.
func (c *Counters) Apply(_ context.Context, event *play.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, period := range Periods {
		key := keyFor(period, event.OccurredAt)

		userBuckets := c.user[event.UserID]
		if userBuckets == nil {
			userBuckets = make(map[bucketKey]map[string]*bucketCounts)
			c.user[event.UserID] = userBuckets
		}
		increment(userBuckets, key, event)
		increment(c.global, key, event)
	}
	return nil
}

func keyFor(period Period, at time.Time) bucketKey {
	start, _ := period.Window(at)
	key := bucketKey{period: period}
	if !start.IsZero() {
		key.windowStart = start.Unix()
	}
	return key
}

func increment(buckets map[bucketKey]map[string]*bucketCounts, key bucketKey, event *play.Event) {
	songs := buckets[key]
	if songs == nil {
		songs = make(map[string]*bucketCounts)
		buckets[key] = songs
	}
	counts := songs[event.SongID]
	if counts == nil {
		counts = &bucketCounts{}
		songs[event.SongID] = counts
	}
	counts.playCount++
	counts.totalSeconds += int64(event.PlayedSeconds)
}

// TopSongsForUser implements Engine.
func (c *Counters) TopSongsForUser(_ context.Context, userID string, period Period, limit int) ([]SongCount, error) {
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	key := keyFor(period, c.now())
	return collect(c.user[userID][key], limit), nil
}

// TopSongsGlobal implements Engine.
func (c *Counters) TopSongsGlobal(_ context.Context, period Period, limit int) ([]SongCount, error) {
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	key := keyFor(period, c.now())
	return collect(c.global[key], limit), nil
}

func collect(songs map[string]*bucketCounts, limit int) []SongCount {
	result := make([]SongCount, 0, len(songs))
	for songID, counts := range songs {
		result = append(result, SongCount{
			SongID:       songID,
			PlayCount:    counts.playCount,
			TotalSeconds: counts.totalSeconds,
		})
	}
	return topN(result, limit)
}

// InvalidateUser implements play.DerivedView. Only the user scope is
// dropped; global buckets keep their totals until the next recompute, since
// other users' aggregates must not be disturbed synchronously.
func (c *Counters) InvalidateUser(_ context.Context, userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.user, userID)
	return nil
}

// Reset drops all counters. Used by the recompute job before replaying
// history from scratch.
func (c *Counters) Reset(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.user = make(map[string]map[bucketKey]map[string]*bucketCounts)
	c.global = make(map[bucketKey]map[string]*bucketCounts)
	return nil
}

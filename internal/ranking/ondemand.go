package ranking

import (
	"context"
	"fmt"
	"time"

	"github.com/onnwee/replay/internal/history"
	"github.com/onnwee/replay/internal/play"
)

// EventSource supplies play events within a time range. Satisfied by
// history.Store.
type EventSource interface {
	EventsByUserInRange(ctx context.Context, userID string, tr history.TimeRange) ([]*play.Event, error)
	EventsInRange(ctx context.Context, tr history.TimeRange) ([]*play.Event, error)
}

// Aggregator is the on-demand Engine implementation: every query scans the
// history store filtered by the current period window. Slower than Counters
// but always consistent with history; it also serves as the oracle the
// incremental implementation is tested against.
type Aggregator struct {
	source EventSource
	now    func() time.Time
}

// NewAggregator creates an on-demand ranking engine over the given source.
func NewAggregator(source EventSource) *Aggregator {
	return &Aggregator{source: source, now: time.Now}
}

// NewAggregatorWithClock creates an Aggregator with a custom time source. Used in tests.
func NewAggregatorWithClock(source EventSource, now func() time.Time) *Aggregator {
	return &Aggregator{source: source, now: now}
}

// TopSongsForUser implements Engine.
func (a *Aggregator) TopSongsForUser(ctx context.Context, userID string, period Period, limit int) ([]SongCount, error) {
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}

	start, end := period.Window(a.now())
	events, err := a.source.EventsByUserInRange(ctx, userID, history.TimeRange{Start: start, End: end})
	if err != nil {
		return nil, fmt.Errorf("aggregate user ranking: %w", err)
	}
	return aggregate(events, limit), nil
}

// TopSongsGlobal implements Engine.
func (a *Aggregator) TopSongsGlobal(ctx context.Context, period Period, limit int) ([]SongCount, error) {
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}

	start, end := period.Window(a.now())
	events, err := a.source.EventsInRange(ctx, history.TimeRange{Start: start, End: end})
	if err != nil {
		return nil, fmt.Errorf("aggregate global ranking: %w", err)
	}
	return aggregate(events, limit), nil
}

func aggregate(events []*play.Event, limit int) []SongCount {
	bySong := make(map[string]*bucketCounts)
	for _, e := range events {
		counts := bySong[e.SongID]
		if counts == nil {
			counts = &bucketCounts{}
			bySong[e.SongID] = counts
		}
		counts.playCount++
		counts.totalSeconds += int64(e.PlayedSeconds)
	}

	result := make([]SongCount, 0, len(bySong))
	for songID, counts := range bySong {
		result = append(result, SongCount{
			SongID:       songID,
			PlayCount:    counts.playCount,
			TotalSeconds: counts.totalSeconds,
		})
	}
	return topN(result, limit)
}

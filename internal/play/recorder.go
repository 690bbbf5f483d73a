package play

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Validation errors surfaced as rejections.
var (
	ErrNegativeSeconds = errors.New("played seconds must be >= 0")
	ErrEmptyUserID     = errors.New("user ID cannot be empty")
	ErrEmptySongID     = errors.New("song ID cannot be empty")
	ErrUnknownSong     = errors.New("song does not exist")
)

// HistoryAppender persists accepted play events. The append is the primary
// write: a failure here is surfaced to the caller.
type HistoryAppender interface {
	Append(ctx context.Context, event *Event) error
}

// DerivedView is a read model maintained incrementally from accepted events.
// Apply failures are swallowed by the Recorder (derived views are
// reconstructible from history); InvalidateUser drops a user's entries.
type DerivedView interface {
	// Name identifies the view in logs and metrics.
	Name() string

	// Apply folds a single accepted event into the view.
	Apply(ctx context.Context, event *Event) error

	// InvalidateUser removes the user's data from the view.
	InvalidateUser(ctx context.Context, userID string) error
}

// Catalog answers whether a song exists. Optional hardening: when nil,
// orphan events for unknown songs are tolerated.
type Catalog interface {
	SongExists(ctx context.Context, songID string) (bool, error)
}

// Recorder validates play submissions, appends accepted events to history
// and fans them out to derived views on a best-effort basis.
type Recorder struct {
	history        HistoryAppender
	views          []DerivedView
	catalog        Catalog // may be nil
	minPlaySeconds int
	logger         *slog.Logger
	metrics        *Metrics // may be nil
	now            func() time.Time
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithCatalog enables unknown-song rejection via the given catalog.
func WithCatalog(c Catalog) RecorderOption {
	return func(r *Recorder) { r.catalog = c }
}

// WithMetrics attaches prometheus metrics to the recorder.
func WithMetrics(m *Metrics) RecorderOption {
	return func(r *Recorder) { r.metrics = m }
}

// WithClock overrides the time source. Used in tests.
func WithClock(now func() time.Time) RecorderOption {
	return func(r *Recorder) { r.now = now }
}

// NewRecorder creates a Recorder. minPlaySeconds below zero is clamped to zero.
func NewRecorder(history HistoryAppender, views []DerivedView, minPlaySeconds int, logger *slog.Logger, opts ...RecorderOption) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	if minPlaySeconds < 0 {
		minPlaySeconds = 0
	}
	r := &Recorder{
		history:        history,
		views:          views,
		minPlaySeconds: minPlaySeconds,
		logger:         logger,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// MinPlaySeconds returns the configured minimum-listen threshold.
func (r *Recorder) MinPlaySeconds() int {
	return r.minPlaySeconds
}

// Record validates and persists a single play that occurred now.
// The returned error is non-nil only for primary-write failures; validation
// problems and below-threshold plays are reported through RecordResult.
func (r *Recorder) Record(ctx context.Context, userID, songID string, playedSeconds int) (*RecordResult, error) {
	return r.RecordAt(ctx, userID, songID, playedSeconds, r.now().UTC())
}

// RecordAt is Record with an explicit occurrence time. Used by the ingest
// daemon when replaying gateway signals that carry their own timestamps.
func (r *Recorder) RecordAt(ctx context.Context, userID, songID string, playedSeconds int, occurredAt time.Time) (*RecordResult, error) {
	if userID == "" {
		return r.rejected(ErrEmptyUserID), nil
	}
	if songID == "" {
		return r.rejected(ErrEmptySongID), nil
	}
	if playedSeconds < 0 {
		return r.rejected(ErrNegativeSeconds), nil
	}

	if r.catalog != nil {
		exists, err := r.catalog.SongExists(ctx, songID)
		if err != nil {
			return nil, fmt.Errorf("catalog lookup for song %s: %w", songID, err)
		}
		if !exists {
			return r.rejected(ErrUnknownSong), nil
		}
	}

	// Below-threshold plays are discarded before any event is created.
	if playedSeconds < r.minPlaySeconds {
		r.logger.Debug("discarding below-threshold play",
			"user_id", userID,
			"song_id", songID,
			"played_seconds", playedSeconds,
			"min_play_seconds", r.minPlaySeconds)
		if r.metrics != nil {
			r.metrics.IncPlaysDiscarded()
		}
		return &RecordResult{Status: StatusDiscarded, Reason: "below minimum play threshold"}, nil
	}

	event := &Event{
		ID:            uuid.New().String(),
		UserID:        userID,
		SongID:        songID,
		PlayedSeconds: playedSeconds,
		OccurredAt:    occurredAt.UTC(),
	}

	if err := r.history.Append(ctx, event); err != nil {
		if r.metrics != nil {
			r.metrics.IncAppendFailures()
		}
		// No internal retry: the caller decides, so transport-level retries
		// are not masked by duplicate appends.
		return nil, fmt.Errorf("append play event: %w", err)
	}

	if r.metrics != nil {
		r.metrics.IncPlaysAccepted()
	}

	// Derived updates are best-effort: a failure is logged and counted but
	// never rolls back the history write. Views self-heal on recompute.
	for _, view := range r.views {
		if err := view.Apply(ctx, event); err != nil {
			r.logger.Warn("derived view update failed",
				"view", view.Name(),
				"event_id", event.ID,
				"user_id", userID,
				"error", err)
			if r.metrics != nil {
				r.metrics.IncViewFailures(view.Name())
			}
		}
	}

	return &RecordResult{Status: StatusAccepted, Event: event}, nil
}

func (r *Recorder) rejected(reason error) *RecordResult {
	if r.metrics != nil {
		r.metrics.IncPlaysRejected()
	}
	return &RecordResult{Status: StatusRejected, Reason: reason.Error()}
}

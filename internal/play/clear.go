package play

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// HistoryClearer removes all events for a user from durable history,
// returning the events that were removed so they can be archived.
type HistoryClearer interface {
	ClearUser(ctx context.Context, userID string) ([]*Event, error)
}

// Archiver exports a user's events to external storage before deletion.
type Archiver interface {
	Export(ctx context.Context, userID string, events []*Event) (string, error)
}

// ClearService deletes a user's play history and synchronously invalidates
// that user's derived views. Partial failures leave the system in a state
// that self-heals on the next recompute; they are logged, and view failures
// do not abort the clear.
type ClearService struct {
	history  HistoryClearer
	views    []DerivedView
	archiver Archiver // may be nil
	logger   *slog.Logger
	metrics  *Metrics // may be nil
}

// NewClearService creates a ClearService. archiver may be nil to disable
// pre-deletion export.
func NewClearService(history HistoryClearer, views []DerivedView, archiver Archiver, logger *slog.Logger, metrics *Metrics) *ClearService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ClearService{
		history:  history,
		views:    views,
		archiver: archiver,
		logger:   logger,
		metrics:  metrics,
	}
}

// Clear removes the user's history and invalidates their derived views.
// Archival and view invalidation failures do not abort the clear: the
// deletion has already happened, and stale view data is replaced on the
// next recompute.
func (s *ClearService) Clear(ctx context.Context, userID string) error {
	if userID == "" {
		return ErrEmptyUserID
	}

	start := time.Now()

	cleared, err := s.history.ClearUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("clear history for user %s: %w", userID, err)
	}

	if s.archiver != nil && len(cleared) > 0 {
		key, err := s.archiver.Export(ctx, userID, cleared)
		if err != nil {
			// The events are already gone from history; losing the export is
			// an operational problem, not a correctness one. Log loudly.
			s.logger.Error("failed to archive cleared history",
				"user_id", userID,
				"event_count", len(cleared),
				"error", err)
		} else {
			s.logger.Info("archived cleared history",
				"user_id", userID,
				"event_count", len(cleared),
				"archive_key", key)
		}
	}

	for _, view := range s.views {
		if err := view.InvalidateUser(ctx, userID); err != nil {
			s.logger.Warn("derived view invalidation failed",
				"view", view.Name(),
				"user_id", userID,
				"error", err)
			if s.metrics != nil {
				s.metrics.IncViewFailures(view.Name())
			}
		}
	}

	s.logger.Info("cleared play history",
		"user_id", userID,
		"event_count", len(cleared),
		"duration_ms", time.Since(start).Milliseconds())

	return nil
}

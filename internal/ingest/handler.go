package ingest

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/onnwee/replay/internal/play"
	"github.com/onnwee/replay/internal/session"
)

// DefaultTrackerTTL is how long a (user, context) tracker may go without a
// signal before it is drained and evicted. Contexts come and go as
// listeners switch devices, so the map would otherwise grow without bound.
const DefaultTrackerTTL = 30 * time.Minute

// PlayRecorder records finalized plays. Satisfied by *play.Recorder.
type PlayRecorder interface {
	Record(ctx context.Context, userID, songID string, playedSeconds int) (*play.RecordResult, error)
}

// Handler routes firehose signals to per-context session trackers and hands
// finalized plays to the recorder. One tracker exists per (user, context)
// pair, so a listener's phone and desktop are accounted independently.
// Trackers idle past the TTL are drained and evicted by a background sweep.
type Handler struct {
	recorder    PlayRecorder
	seq         SequenceTracker
	logger      *slog.Logger
	metrics     *Metrics
	trackerOpts []session.TrackerOption
	trackerTTL  time.Duration
	now         func() time.Time
	stop        chan struct{}

	mu       sync.Mutex
	trackers map[trackerKey]*trackerEntry
	closed   bool
}

type trackerKey struct {
	userID    string
	contextID string
}

// trackerEntry pairs a tracker with the time of its last signal so the
// sweeper can find idle ones.
type trackerEntry struct {
	tracker  *session.Tracker
	lastSeen time.Time
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithHandlerMetrics attaches ingest metrics to the handler.
func WithHandlerMetrics(m *Metrics) HandlerOption {
	return func(h *Handler) { h.metrics = m }
}

// WithTrackerOptions sets options applied to every tracker the handler
// creates. Tests use this to shrink the debounce delay.
func WithTrackerOptions(opts ...session.TrackerOption) HandlerOption {
	return func(h *Handler) { h.trackerOpts = opts }
}

// WithTrackerTTL overrides how long an idle tracker is kept before being
// drained and evicted. Zero disables eviction.
func WithTrackerTTL(d time.Duration) HandlerOption {
	return func(h *Handler) { h.trackerTTL = d }
}

// WithHandlerClock overrides the time source. Used in tests.
func WithHandlerClock(now func() time.Time) HandlerOption {
	return func(h *Handler) { h.now = now }
}

// NewHandler creates a firehose signal handler.
func NewHandler(recorder PlayRecorder, seq SequenceTracker, logger *slog.Logger, opts ...HandlerOption) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		recorder:   recorder,
		seq:        seq,
		logger:     logger,
		trackerTTL: DefaultTrackerTTL,
		now:        time.Now,
		stop:       make(chan struct{}),
		trackers:   make(map[trackerKey]*trackerEntry),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.trackerTTL > 0 {
		go h.sweepIdleTrackers(h.trackerTTL / 2)
	}
	return h
}

// sweepIdleTrackers periodically drains and evicts trackers that have not
// seen a signal within the TTL, until the handler is closed.
func (h *Handler) sweepIdleTrackers(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-h.stop:
			return
		case <-ticker.C:
			h.evictIdleTrackers()
		}
	}
}

// evictIdleTrackers removes trackers idle past the TTL. Evicted trackers
// are closed, which flushes any pending plays, so an abandoned context's
// last listen is still recorded.
func (h *Handler) evictIdleTrackers() {
	cutoff := h.now().Add(-h.trackerTTL)

	h.mu.Lock()
	var evicted []*session.Tracker
	for key, entry := range h.trackers {
		if entry.lastSeen.Before(cutoff) {
			evicted = append(evicted, entry.tracker)
			delete(h.trackers, key)
		}
	}
	remaining := len(h.trackers)
	h.mu.Unlock()

	if len(evicted) == 0 {
		return
	}
	for _, tr := range evicted {
		tr.Close()
	}
	h.logger.Debug("evicted idle session trackers",
		slog.Int("evicted", len(evicted)),
		slog.Int("remaining", remaining))
	if h.metrics != nil {
		h.metrics.SetActiveTrackers(remaining)
	}
}

// HandleFrame processes one firehose frame. It satisfies MessageHandler.
// Malformed frames are counted and skipped rather than killing the
// connection; the firehose never replays a frame the ingester rejected.
func (h *Handler) HandleFrame(messageType int, payload []byte) error {
	if h.metrics != nil {
		h.metrics.IncFrames()
	}

	msg, err := ParseSignal(payload)
	if err != nil {
		if errors.Is(err, ErrUnsupportedKind) {
			if h.metrics != nil {
				h.metrics.IncSkippedFrames()
			}
			return nil
		}
		if h.metrics != nil {
			h.metrics.IncDecodeFailures()
		}
		h.logger.Warn("dropping malformed firehose frame",
			slog.String("error", err.Error()))
		return nil
	}

	if err := h.applySignal(msg.Signal); err != nil {
		return err
	}

	if h.metrics != nil {
		h.metrics.IncSignals(msg.Signal.Action)
	}

	if h.seq != nil && msg.Seq > 0 {
		if err := h.seq.UpdateSequence(context.Background(), msg.Seq); err != nil {
			// Cursor persistence is best-effort; a stale cursor only means
			// some frames are re-read after restart.
			h.logger.Warn("failed to persist sequence cursor",
				slog.Int64("seq", msg.Seq),
				slog.String("error", err.Error()))
		}
	}

	return nil
}

// applySignal drives the session tracker for the signal's playback context.
// A tracker evicted between lookup and use reports ErrClosed; one retry
// lands the signal on a fresh tracker.
func (h *Handler) applySignal(sig *PlayerSignal) error {
	for attempt := 0; ; attempt++ {
		tracker, err := h.trackerFor(sig.UserID, sig.ContextID)
		if err != nil {
			return err
		}

		switch sig.Action {
		case ActionStart:
			err = tracker.StartTracking(sig.SongID)
		case ActionPause:
			err = tracker.PauseTracking()
		case ActionResume:
			err = tracker.ResumeTracking()
		case ActionStop:
			err = tracker.StopTracking()
		default:
			// ParseSignal already rejected unknown actions.
			return nil
		}

		if errors.Is(err, session.ErrClosed) && attempt == 0 {
			continue
		}
		return err
	}
}

// trackerFor returns the tracker for a (user, context) pair, creating it on
// first use.
func (h *Handler) trackerFor(userID, contextID string) (*session.Tracker, error) {
	key := trackerKey{userID: userID, contextID: contextID}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, session.ErrClosed
	}
	if entry, ok := h.trackers[key]; ok {
		entry.lastSeen = h.now()
		return entry.tracker, nil
	}

	tracker := session.NewTracker(h.flushFunc(userID), h.logger, h.trackerOpts...)
	h.trackers[key] = &trackerEntry{tracker: tracker, lastSeen: h.now()}
	if h.metrics != nil {
		h.metrics.SetActiveTrackers(len(h.trackers))
	}
	return tracker, nil
}

// flushFunc binds a user to the recorder callback a tracker fires with.
func (h *Handler) flushFunc(userID string) session.FlushFunc {
	return func(songID string, playedSeconds int) {
		result, err := h.recorder.Record(context.Background(), userID, songID, playedSeconds)
		if err != nil {
			h.logger.Error("failed to record play",
				slog.String("user_id", userID),
				slog.String("song_id", songID),
				slog.String("error", err.Error()))
			return
		}
		if result.Status != play.StatusAccepted {
			h.logger.Debug("play not accepted",
				slog.String("user_id", userID),
				slog.String("song_id", songID),
				slog.String("status", string(result.Status)),
				slog.String("reason", result.Reason))
		}
	}
}

// Close drains every tracker, flushing pending plays synchronously.
func (h *Handler) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	close(h.stop)
	trackers := make([]*session.Tracker, 0, len(h.trackers))
	for _, entry := range h.trackers {
		trackers = append(trackers, entry.tracker)
	}
	h.trackers = make(map[trackerKey]*trackerEntry)
	h.mu.Unlock()

	for _, t := range trackers {
		t.Close()
	}
	if h.metrics != nil {
		h.metrics.SetActiveTrackers(0)
	}
}

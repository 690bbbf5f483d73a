// Package session tracks one playback context's active listen and decides
// whether and when a play is worth recording. Rapid track switches are
// debounced so scrubbing through a queue does not flood history with skips.
package session

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Defaults matching the product's listen-accounting policy.
const (
	DefaultMinPlay  = 5 * time.Second
	DefaultDebounce = 1000 * time.Millisecond
)

// ErrClosed is returned when the tracker has been shut down.
var ErrClosed = errors.New("tracker is closed")

// FlushFunc receives a finalized play once its debounce delay has elapsed.
// Implementations typically hand the play to the event recorder.
type FlushFunc func(songID string, playedSeconds int)

// activeSession is the transient accounting for the song currently playing.
// Exactly one exists per tracker; it is replaced, never merged, on track
// change, and is never persisted.
type activeSession struct {
	songID      string
	startedAt   time.Time
	accumulated time.Duration // listened time banked across pause/resume cycles
	paused      bool
}

// pendingFlush is a play awaiting its debounce delay.
type pendingFlush struct {
	timer   *time.Timer
	seconds int
}

// Tracker owns the play-tracking state machine for a single playback
// context: Idle or Tracking(song). All transition methods are expected to
// be called by one owning context; the mutex exists only because debounce
// timers fire on their own goroutines.
//
// Elapsed time accumulates across pause/resume cycles for the same song, so
// "seconds played" reflects actual listening rather than the last
// resume-to-stop stretch.
type Tracker struct {
	flush    FlushFunc
	minPlay  time.Duration
	debounce time.Duration
	logger   *slog.Logger
	now      func() time.Time

	mu      sync.Mutex
	current *activeSession
	pending map[string]*pendingFlush
	closed  bool

	// fires counts armed debounce timers whose callbacks have not finished.
	// Close waits on it so a flush in flight is delivered before teardown.
	fires sync.WaitGroup
}

// TrackerOption configures a Tracker.
type TrackerOption func(*Tracker)

// WithMinPlay overrides the minimum-listen threshold.
func WithMinPlay(d time.Duration) TrackerOption {
	return func(t *Tracker) { t.minPlay = d }
}

// WithDebounce overrides the debounce delay before a flush fires.
func WithDebounce(d time.Duration) TrackerOption {
	return func(t *Tracker) { t.debounce = d }
}

// WithClock overrides the time source. Used in tests.
func WithClock(now func() time.Time) TrackerOption {
	return func(t *Tracker) { t.now = now }
}

// NewTracker creates a Tracker that reports finalized plays to flush.
func NewTracker(flush FlushFunc, logger *slog.Logger, opts ...TrackerOption) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	t := &Tracker{
		flush:    flush,
		minPlay:  DefaultMinPlay,
		debounce: DefaultDebounce,
		logger:   logger,
		now:      time.Now,
		pending:  make(map[string]*pendingFlush),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// StartTracking begins tracking a song. If a different song is already
// being tracked it is finalized first (threshold check plus debounced
// flush). Calling it again for the song already being tracked is a no-op:
// the timer is untouched and accounting is not reopened.
func (t *Tracker) StartTracking(songID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return ErrClosed
	}
	if t.current != nil && t.current.songID == songID {
		return nil
	}
	if t.current != nil {
		t.finalizeLocked(t.current)
	}
	t.current = &activeSession{songID: songID, startedAt: t.now()}
	return nil
}

// PauseTracking freezes elapsed-time accounting without finalizing the
// session. No event is emitted and the session stays open.
func (t *Tracker) PauseTracking() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return ErrClosed
	}
	if t.current == nil || t.current.paused {
		return nil
	}
	t.current.accumulated += t.now().Sub(t.current.startedAt)
	t.current.paused = true
	return nil
}

// ResumeTracking restarts accounting for the current song after a pause.
// Previously accumulated listen time is kept.
func (t *Tracker) ResumeTracking() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return ErrClosed
	}
	if t.current == nil || !t.current.paused {
		return nil
	}
	t.current.startedAt = t.now()
	t.current.paused = false
	return nil
}

// StopTracking finalizes the current session: if the listened time meets
// the threshold a flush is scheduled, otherwise the play is discarded
// silently. The tracker returns to Idle either way.
func (t *Tracker) StopTracking() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return ErrClosed
	}
	if t.current == nil {
		return nil
	}
	t.finalizeLocked(t.current)
	t.current = nil
	return nil
}

// Tracking returns the song currently being tracked, or "" when idle.
func (t *Tracker) Tracking() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current == nil {
		return ""
	}
	return t.current.songID
}

// Close drains the tracker: the current session, if any, is finalized, and
// every pending flush is executed immediately rather than dropped. After
// Close all transition methods return ErrClosed.
func (t *Tracker) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true

	// Finalize the active session into the pending set so it drains with
	// the rest.
	if t.current != nil {
		t.finalizeLocked(t.current)
		t.current = nil
	}

	type drained struct {
		songID  string
		seconds int
	}
	var toFlush []drained
	for songID, p := range t.pending {
		// An entry still registered here has not been delivered: either its
		// timer never expired, or the fire callback is blocked on t.mu and
		// will find the entry gone. Both cases are flushed below.
		if p.timer.Stop() {
			// Timer cancelled before firing; settle its accounting here.
			t.fires.Done()
		}
		toFlush = append(toFlush, drained{songID: songID, seconds: p.seconds})
		delete(t.pending, songID)
	}
	t.mu.Unlock()

	for _, d := range toFlush {
		t.flush(d.songID, d.seconds)
	}

	// A fire that already claimed its entry still owns that delivery; wait
	// for it so every scheduled play has been flushed when Close returns.
	t.fires.Wait()
}

// finalizeLocked computes the session's listened time and schedules a
// debounced flush when it meets the threshold. Caller holds t.mu.
func (t *Tracker) finalizeLocked(s *activeSession) {
	elapsed := s.accumulated
	if !s.paused {
		elapsed += t.now().Sub(s.startedAt)
	}

	if elapsed < t.minPlay {
		t.logger.Debug("discarding short play",
			"song_id", s.songID,
			"elapsed_ms", elapsed.Milliseconds(),
			"min_play_ms", t.minPlay.Milliseconds())
		return
	}

	t.scheduleFlushLocked(s.songID, int(elapsed/time.Second))
}

// scheduleFlushLocked arms the debounce timer for a song. A newer schedule
// for the same song cancels the older pending one. Caller holds t.mu.
func (t *Tracker) scheduleFlushLocked(songID string, seconds int) {
	if prior, ok := t.pending[songID]; ok {
		if prior.timer.Stop() {
			t.fires.Done()
		}
	}

	p := &pendingFlush{seconds: seconds}
	t.fires.Add(1)
	p.timer = time.AfterFunc(t.debounce, func() {
		t.fire(songID, p)
	})
	t.pending[songID] = p

	// Closed trackers flush synchronously in Close; a schedule racing Close
	// is drained there because closed is checked by every caller.
}

// fire executes a debounced flush unless it was superseded or drained.
func (t *Tracker) fire(songID string, p *pendingFlush) {
	defer t.fires.Done()

	t.mu.Lock()
	registered, ok := t.pending[songID]
	if !ok || registered != p {
		// Superseded by a newer schedule or drained by Close.
		t.mu.Unlock()
		return
	}
	delete(t.pending, songID)
	t.mu.Unlock()

	t.flush(songID, p.seconds)
}

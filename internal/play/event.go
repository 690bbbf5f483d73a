// Package play provides the play-event model and the recorder that turns
// validated listen signals into durable history and derived views.
package play

import (
	"time"
)

// Event represents a single completed listen of a song by a user.
// Events are immutable facts: created once by the Recorder, never mutated.
type Event struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	SongID        string    `json:"song_id"`
	PlayedSeconds int       `json:"played_seconds"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// RecordStatus describes the outcome of a Record call.
type RecordStatus string

const (
	// StatusAccepted means the event was persisted to history.
	StatusAccepted RecordStatus = "accepted"

	// StatusRejected means the input failed validation (negative duration,
	// unknown song). Nothing was persisted.
	StatusRejected RecordStatus = "rejected"

	// StatusDiscarded means the play was below the minimum-listen threshold.
	// Not an error; nothing was persisted.
	StatusDiscarded RecordStatus = "discarded"
)

// RecordResult is the outcome of recording a single play.
type RecordResult struct {
	Status RecordStatus `json:"status"`
	Event  *Event       `json:"event,omitempty"`  // Set when Status == StatusAccepted
	Reason string       `json:"reason,omitempty"` // Set when Status != StatusAccepted
}

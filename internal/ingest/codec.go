// Package ingest consumes the player signal firehose and turns raw
// transport signals into recorded plays.
package ingest

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Firehose CBOR parsing errors.
var (
	ErrInvalidCBOR      = errors.New("invalid CBOR data")
	ErrMissingSignal    = errors.New("missing signal in message")
	ErrMissingUserID    = errors.New("missing user ID in signal")
	ErrMissingSongID    = errors.New("missing song ID in signal")
	ErrUnknownAction    = errors.New("unknown signal action")
	ErrUnsupportedKind  = errors.New("unsupported message kind")
)

// Player actions carried on the firehose.
const (
	ActionStart  = "start"
	ActionPause  = "pause"
	ActionResume = "resume"
	ActionStop   = "stop"
)

// PlayerSignal is one playback transport event from a client device.
type PlayerSignal struct {
	// UserID identifies the listener.
	UserID string `cbor:"user_id"`

	// ContextID identifies the playback context (device or app session).
	// A user may have several simultaneous contexts.
	ContextID string `cbor:"context_id"`

	// SongID identifies the track, required for the start action.
	SongID string `cbor:"song_id,omitempty"`

	// Action is one of start, pause, resume, stop.
	Action string `cbor:"action"`
}

// Message is the top-level firehose frame.
type Message struct {
	// Seq is the firehose sequence number, monotonically increasing.
	Seq int64 `cbor:"seq"`

	// TimeUS is the emission timestamp in microseconds.
	TimeUS int64 `cbor:"time_us"`

	// Kind is the message type; only "signal" frames carry playback data.
	Kind string `cbor:"kind"`

	// Signal holds the playback data when Kind == "signal".
	Signal *PlayerSignal `cbor:"signal,omitempty"`
}

// DecodeMessage decodes a CBOR-encoded firehose frame.
func DecodeMessage(data []byte) (*Message, error) {
	if len(data) == 0 {
		return nil, ErrInvalidCBOR
	}

	var msg Message
	dec := cbor.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCBOR, err)
	}
	return &msg, nil
}

// ParseSignal extracts and validates a playback signal from a firehose
// frame. Frames of other kinds return ErrUnsupportedKind so callers can
// skip them without treating them as corruption.
func ParseSignal(data []byte) (*Message, error) {
	msg, err := DecodeMessage(data)
	if err != nil {
		return nil, err
	}

	if msg.Kind != "signal" {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedKind, msg.Kind)
	}
	if msg.Signal == nil {
		return nil, ErrMissingSignal
	}

	sig := msg.Signal
	if sig.UserID == "" {
		return nil, ErrMissingUserID
	}
	switch sig.Action {
	case ActionStart:
		if sig.SongID == "" {
			return nil, ErrMissingSongID
		}
	case ActionPause, ActionResume, ActionStop:
		// Song is implied by the tracked session.
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, sig.Action)
	}

	return msg, nil
}

// EncodeMessage encodes a frame to CBOR bytes. Used by tests and tooling.
func EncodeMessage(msg *Message) ([]byte, error) {
	var buf bytes.Buffer
	enc := cbor.NewEncoder(&buf)
	if err := enc.Encode(msg); err != nil {
		return nil, fmt.Errorf("failed to encode CBOR: %w", err)
	}
	return buf.Bytes(), nil
}

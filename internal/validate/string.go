// Package validate provides centralized input validation for the Replay API.
// Identifiers arriving from clients and the firehose are opaque strings; the
// helpers here bound their length and character set before they reach storage.
package validate

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// String validation errors
var (
	ErrStringTooShort    = errors.New("string is too short")
	ErrStringTooLong     = errors.New("string is too long")
	ErrInvalidCharacters = errors.New("string contains invalid characters")
	ErrEmpty             = errors.New("string is empty")
)

// StringConstraints defines validation constraints for a string.
type StringConstraints struct {
	MinLength      int            // Minimum length (0 = no minimum)
	MaxLength      int            // Maximum length (0 = no maximum)
	AllowedPattern *regexp.Regexp // Optional regex pattern for allowed characters
	AllowEmpty     bool           // Whether empty strings are allowed
	TrimSpace      bool           // Whether to trim whitespace before validation
}

// String validates a string against the given constraints.
// Returns the validated (and optionally trimmed) string and an error if validation fails.
func String(s string, constraints StringConstraints) (string, error) {
	if constraints.TrimSpace {
		s = strings.TrimSpace(s)
	}

	if s == "" {
		if !constraints.AllowEmpty {
			return "", ErrEmpty
		}
		return s, nil
	}

	// Character count, not byte count
	length := utf8.RuneCountInString(s)

	if constraints.MinLength > 0 && length < constraints.MinLength {
		return "", fmt.Errorf("%w: got %d chars, need at least %d", ErrStringTooShort, length, constraints.MinLength)
	}

	if constraints.MaxLength > 0 && length > constraints.MaxLength {
		return "", fmt.Errorf("%w: got %d chars, maximum is %d", ErrStringTooLong, length, constraints.MaxLength)
	}

	if constraints.AllowedPattern != nil && !constraints.AllowedPattern.MatchString(s) {
		return "", fmt.Errorf("%w: does not match required pattern", ErrInvalidCharacters)
	}

	return s, nil
}

// idPattern matches the opaque identifiers used for songs and users: ASCII
// letters, digits, dash, underscore, colon, and period. Colons appear in
// namespaced catalog IDs (e.g. "catalog:track:abc123").
var idPattern = regexp.MustCompile(`^[A-Za-z0-9_\-:\.]+$`)

// MaxIDLength bounds song and user identifiers.
const MaxIDLength = 128

// SongID validates a song identifier:
// - 1-128 characters
// - Letters, digits, dash, underscore, colon, period only
func SongID(id string) (string, error) {
	return String(id, StringConstraints{
		MinLength:      1,
		MaxLength:      MaxIDLength,
		AllowedPattern: idPattern,
		AllowEmpty:     false,
		TrimSpace:      true,
	})
}

// UserID validates a user identifier with the same rules as SongID.
func UserID(id string) (string, error) {
	return String(id, StringConstraints{
		MinLength:      1,
		MaxLength:      MaxIDLength,
		AllowedPattern: idPattern,
		AllowEmpty:     false,
		TrimSpace:      true,
	})
}

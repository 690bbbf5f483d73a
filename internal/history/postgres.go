package history

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/onnwee/replay/internal/play"
	"github.com/onnwee/replay/internal/tracing"
)

// PostgresStore implements Store using PostgreSQL.
type PostgresStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(db *sql.DB, logger *slog.Logger) *PostgresStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresStore{
		db:     db,
		logger: logger,
	}
}

// Append inserts a play event. Each append is a fresh insert keyed by the
// event's UUID, so concurrent writers cannot conflict.
func (s *PostgresStore) Append(ctx context.Context, event *play.Event) (err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "play_events", tracing.DBOperationInsert)
	defer func() { endSpan(err) }()

	query := `
		INSERT INTO play_events (id, user_id, song_id, played_seconds, occurred_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err = s.db.ExecContext(ctx, query,
		event.ID, event.UserID, event.SongID, event.PlayedSeconds, event.OccurredAt)
	if err != nil {
		return fmt.Errorf("insert play event: %w", err)
	}
	return nil
}

// ListByUser retrieves a page of the user's events, newest first, using
// (occurred_at, id) keyset pagination.
func (s *PostgresStore) ListByUser(ctx context.Context, userID string, limit int, cursor *Cursor) (_ []*play.Event, _ *Cursor, err error) {
	if limit <= 0 {
		return nil, nil, ErrInvalidLimit
	}

	ctx, endSpan := tracing.StartDBSpan(ctx, "play_events", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	var rows *sql.Rows
	if cursor == nil {
		query := `
			SELECT id, user_id, song_id, played_seconds, occurred_at
			FROM play_events
			WHERE user_id = $1
			ORDER BY occurred_at DESC, id ASC
			LIMIT $2
		`
		rows, err = s.db.QueryContext(ctx, query, userID, limit+1)
	} else {
		query := `
			SELECT id, user_id, song_id, played_seconds, occurred_at
			FROM play_events
			WHERE user_id = $1
			  AND (occurred_at < $2 OR (occurred_at = $2 AND id > $3))
			ORDER BY occurred_at DESC, id ASC
			LIMIT $4
		`
		rows, err = s.db.QueryContext(ctx, query, userID, cursor.OccurredAt, cursor.ID, limit+1)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("query user history: %w", err)
	}
	defer rows.Close()

	events, err := scanEvents(rows)
	if err != nil {
		return nil, nil, err
	}

	var next *Cursor
	if len(events) > limit {
		events = events[:limit]
		last := events[len(events)-1]
		next = &Cursor{OccurredAt: last.OccurredAt, ID: last.ID}
	}

	return events, next, nil
}

// ListBySong retrieves a song's events within the time range.
func (s *PostgresStore) ListBySong(ctx context.Context, songID string, tr TimeRange) (_ []*play.Event, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "play_events", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	query := `
		SELECT id, user_id, song_id, played_seconds, occurred_at
		FROM play_events
		WHERE song_id = $1
	` + rangeClause(tr, 2)

	rows, err := s.db.QueryContext(ctx, query, rangeArgs(tr, songID)...)
	if err != nil {
		return nil, fmt.Errorf("query song history: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// EventsByUserInRange retrieves all of a user's events within the time range.
func (s *PostgresStore) EventsByUserInRange(ctx context.Context, userID string, tr TimeRange) (_ []*play.Event, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "play_events", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	query := `
		SELECT id, user_id, song_id, played_seconds, occurred_at
		FROM play_events
		WHERE user_id = $1
	` + rangeClause(tr, 2)

	rows, err := s.db.QueryContext(ctx, query, rangeArgs(tr, userID)...)
	if err != nil {
		return nil, fmt.Errorf("query user events in range: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// EventsInRange retrieves all events within the time range across all users.
func (s *PostgresStore) EventsInRange(ctx context.Context, tr TimeRange) (_ []*play.Event, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "play_events", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	query := `
		SELECT id, user_id, song_id, played_seconds, occurred_at
		FROM play_events
		WHERE TRUE
	` + rangeClause(tr, 1)

	rows, err := s.db.QueryContext(ctx, query, rangeArgs(tr)...)
	if err != nil {
		return nil, fmt.Errorf("query events in range: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// ClearUser deletes all of a user's events, returning the removed events so
// the caller can archive them.
func (s *PostgresStore) ClearUser(ctx context.Context, userID string) (_ []*play.Event, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "play_events", tracing.DBOperationDelete)
	defer func() { endSpan(err) }()

	query := `
		DELETE FROM play_events
		WHERE user_id = $1
		RETURNING id, user_id, song_id, played_seconds, occurred_at
	`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("clear user history: %w", err)
	}
	defer rows.Close()

	removed, err := scanEvents(rows)
	if err != nil {
		return nil, err
	}

	s.logger.Info("cleared user history from database",
		"user_id", userID,
		"event_count", len(removed))

	return removed, nil
}

// rangeClause builds the occurred_at predicates for a TimeRange, with
// placeholders starting at nextArg.
func rangeClause(tr TimeRange, nextArg int) string {
	clause := ""
	if !tr.Start.IsZero() {
		clause += fmt.Sprintf(" AND occurred_at >= $%d", nextArg)
		nextArg++
	}
	if !tr.End.IsZero() {
		clause += fmt.Sprintf(" AND occurred_at < $%d", nextArg)
	}
	return clause
}

// rangeArgs appends the TimeRange bounds to the given leading arguments.
func rangeArgs(tr TimeRange, leading ...interface{}) []interface{} {
	args := make([]interface{}, 0, len(leading)+2)
	args = append(args, leading...)
	if !tr.Start.IsZero() {
		args = append(args, tr.Start)
	}
	if !tr.End.IsZero() {
		args = append(args, tr.End)
	}
	return args
}

func scanEvents(rows *sql.Rows) ([]*play.Event, error) {
	var events []*play.Event
	for rows.Next() {
		var e play.Event
		if err := rows.Scan(&e.ID, &e.UserID, &e.SongID, &e.PlayedSeconds, &e.OccurredAt); err != nil {
			return nil, fmt.Errorf("scan play event: %w", err)
		}
		e.OccurredAt = e.OccurredAt.UTC()
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate play events: %w", err)
	}
	return events, nil
}

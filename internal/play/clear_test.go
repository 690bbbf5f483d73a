package play

import (
	"context"
	"errors"
	"testing"
	"time"
)

// stubClearer returns a fixed set of cleared events.
type stubClearer struct {
	events  []*Event
	err     error
	cleared []string
}

func (c *stubClearer) ClearUser(_ context.Context, userID string) ([]*Event, error) {
	if c.err != nil {
		return nil, c.err
	}
	c.cleared = append(c.cleared, userID)
	return c.events, nil
}

// spyArchiver records export calls.
type spyArchiver struct {
	err     error
	userIDs []string
	counts  []int
}

func (a *spyArchiver) Export(_ context.Context, userID string, events []*Event) (string, error) {
	if a.err != nil {
		return "", a.err
	}
	a.userIDs = append(a.userIDs, userID)
	a.counts = append(a.counts, len(events))
	return "archives/" + userID + ".json", nil
}

func clearedEvents(n int) []*Event {
	events := make([]*Event, n)
	for i := range events {
		events[i] = &Event{
			ID:            "evt-" + string(rune('a'+i)),
			UserID:        "user-1",
			SongID:        "song-1",
			PlayedSeconds: 60,
			OccurredAt:    time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		}
	}
	return events
}

func TestClear_EmptyUserID(t *testing.T) {
	svc := NewClearService(&stubClearer{}, nil, nil, discardLogger(), nil)

	if err := svc.Clear(context.Background(), ""); !errors.Is(err, ErrEmptyUserID) {
		t.Errorf("Clear(\"\") error = %v, want %v", err, ErrEmptyUserID)
	}
}

func TestClear_RemovesHistoryAndInvalidatesViews(t *testing.T) {
	clearer := &stubClearer{events: clearedEvents(3)}
	view := &spyView{name: "test"}
	svc := NewClearService(clearer, []DerivedView{view}, nil, discardLogger(), nil)

	if err := svc.Clear(context.Background(), "user-1"); err != nil {
		t.Fatalf("Clear() unexpected error: %v", err)
	}
	if len(clearer.cleared) != 1 || clearer.cleared[0] != "user-1" {
		t.Errorf("expected ClearUser(user-1), got %v", clearer.cleared)
	}
	if len(view.invalidated) != 1 || view.invalidated[0] != "user-1" {
		t.Errorf("expected InvalidateUser(user-1), got %v", view.invalidated)
	}
}

func TestClear_HistoryFailureAborts(t *testing.T) {
	clearErr := errors.New("delete failed")
	view := &spyView{name: "test"}
	svc := NewClearService(&stubClearer{err: clearErr}, []DerivedView{view}, nil, discardLogger(), nil)

	err := svc.Clear(context.Background(), "user-1")
	if !errors.Is(err, clearErr) {
		t.Fatalf("Clear() error = %v, want wrapped %v", err, clearErr)
	}
	if len(view.invalidated) != 0 {
		t.Errorf("views must not be invalidated when the clear fails, got %v", view.invalidated)
	}
}

func TestClear_ArchivesBeforeReporting(t *testing.T) {
	clearer := &stubClearer{events: clearedEvents(2)}
	archiver := &spyArchiver{}
	svc := NewClearService(clearer, nil, archiver, discardLogger(), nil)

	if err := svc.Clear(context.Background(), "user-1"); err != nil {
		t.Fatalf("Clear() unexpected error: %v", err)
	}
	if len(archiver.userIDs) != 1 || archiver.userIDs[0] != "user-1" {
		t.Errorf("expected one export for user-1, got %v", archiver.userIDs)
	}
	if archiver.counts[0] != 2 {
		t.Errorf("expected 2 events exported, got %d", archiver.counts[0])
	}
}

func TestClear_ArchiveFailureDoesNotAbort(t *testing.T) {
	clearer := &stubClearer{events: clearedEvents(2)}
	archiver := &spyArchiver{err: errors.New("bucket unavailable")}
	view := &spyView{name: "test"}
	svc := NewClearService(clearer, []DerivedView{view}, archiver, discardLogger(), nil)

	if err := svc.Clear(context.Background(), "user-1"); err != nil {
		t.Fatalf("Clear() should succeed despite archive failure, got %v", err)
	}
	if len(view.invalidated) != 1 {
		t.Errorf("expected views invalidated despite archive failure, got %v", view.invalidated)
	}
}

func TestClear_SkipsArchiveWhenNothingCleared(t *testing.T) {
	clearer := &stubClearer{events: nil}
	archiver := &spyArchiver{}
	svc := NewClearService(clearer, nil, archiver, discardLogger(), nil)

	if err := svc.Clear(context.Background(), "user-1"); err != nil {
		t.Fatalf("Clear() unexpected error: %v", err)
	}
	if len(archiver.userIDs) != 0 {
		t.Errorf("expected no export for empty history, got %v", archiver.userIDs)
	}
}

func TestClear_ViewFailureDoesNotAbort(t *testing.T) {
	clearer := &stubClearer{events: clearedEvents(1)}
	bad := &spyView{name: "bad", invalidErr: errors.New("view broken")}
	good := &spyView{name: "good"}
	svc := NewClearService(clearer, []DerivedView{bad, good}, nil, discardLogger(), nil)

	if err := svc.Clear(context.Background(), "user-1"); err != nil {
		t.Fatalf("Clear() unexpected error: %v", err)
	}
	if len(good.invalidated) != 1 {
		t.Errorf("expected later view invalidated despite earlier failure, got %v", good.invalidated)
	}
}

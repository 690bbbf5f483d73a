package stats

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/onnwee/replay/internal/play"
)

func applyEvent(t *testing.T, a *Aggregator, userID, songID string, seconds int) {
	t.Helper()
	err := a.Apply(context.Background(), &play.Event{
		UserID:        userID,
		SongID:        songID,
		PlayedSeconds: seconds,
		OccurredAt:    time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("Apply() unexpected error: %v", err)
	}
}

func TestAggregator_AccumulatesPerUser(t *testing.T) {
	a := NewAggregator()

	applyEvent(t, a, "user-a", "song-1", 100)
	applyEvent(t, a, "user-a", "song-1", 50)
	applyEvent(t, a, "user-a", "song-2", 200)
	applyEvent(t, a, "user-b", "song-1", 30)

	got, err := a.StatsFor(context.Background(), "user-a")
	if err != nil {
		t.Fatalf("StatsFor() unexpected error: %v", err)
	}
	want := UserStats{TotalPlays: 3, TotalSeconds: 350, DistinctSongCount: 2}
	if got != want {
		t.Errorf("StatsFor(user-a) = %+v, want %+v", got, want)
	}

	got, err = a.StatsFor(context.Background(), "user-b")
	if err != nil {
		t.Fatalf("StatsFor() unexpected error: %v", err)
	}
	want = UserStats{TotalPlays: 1, TotalSeconds: 30, DistinctSongCount: 1}
	if got != want {
		t.Errorf("StatsFor(user-b) = %+v, want %+v", got, want)
	}
}

func TestAggregator_UnknownUserIsZero(t *testing.T) {
	a := NewAggregator()

	got, err := a.StatsFor(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("StatsFor() unexpected error: %v", err)
	}
	if got != (UserStats{}) {
		t.Errorf("StatsFor(unknown) = %+v, want zero stats", got)
	}
}

func TestAggregator_RepeatedSongCountedOnce(t *testing.T) {
	a := NewAggregator()
	for i := 0; i < 10; i++ {
		applyEvent(t, a, "user-a", "song-1", 60)
	}

	got, err := a.StatsFor(context.Background(), "user-a")
	if err != nil {
		t.Fatalf("StatsFor() unexpected error: %v", err)
	}
	if got.DistinctSongCount != 1 {
		t.Errorf("DistinctSongCount = %d, want 1", got.DistinctSongCount)
	}
	if got.TotalPlays != 10 {
		t.Errorf("TotalPlays = %d, want 10", got.TotalPlays)
	}
}

func TestAggregator_InvalidateUserResetsToZero(t *testing.T) {
	a := NewAggregator()
	applyEvent(t, a, "user-a", "song-1", 60)
	applyEvent(t, a, "user-b", "song-1", 60)

	if err := a.InvalidateUser(context.Background(), "user-a"); err != nil {
		t.Fatalf("InvalidateUser() unexpected error: %v", err)
	}

	got, err := a.StatsFor(context.Background(), "user-a")
	if err != nil {
		t.Fatalf("StatsFor() unexpected error: %v", err)
	}
	if got != (UserStats{}) {
		t.Errorf("StatsFor(user-a) after invalidate = %+v, want zero stats", got)
	}

	other, err := a.StatsFor(context.Background(), "user-b")
	if err != nil {
		t.Fatalf("StatsFor() unexpected error: %v", err)
	}
	if other.TotalPlays != 1 {
		t.Errorf("user-b stats disturbed by user-a invalidation: %+v", other)
	}
}

func TestAggregator_Reset(t *testing.T) {
	a := NewAggregator()
	applyEvent(t, a, "user-a", "song-1", 60)

	if err := a.Reset(context.Background()); err != nil {
		t.Fatalf("Reset() unexpected error: %v", err)
	}

	got, err := a.StatsFor(context.Background(), "user-a")
	if err != nil {
		t.Fatalf("StatsFor() unexpected error: %v", err)
	}
	if got != (UserStats{}) {
		t.Errorf("StatsFor after reset = %+v, want zero stats", got)
	}
}

func TestAggregator_ConcurrentApplies(t *testing.T) {
	a := NewAggregator()

	const goroutines = 10
	const perGoroutine = 100

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				err := a.Apply(context.Background(), &play.Event{
					UserID:        "user-shared",
					SongID:        fmt.Sprintf("song-%d", g),
					PlayedSeconds: 1,
					OccurredAt:    time.Now(),
				})
				if err != nil {
					t.Errorf("Apply() unexpected error: %v", err)
				}
			}
		}(g)
	}
	wg.Wait()

	got, err := a.StatsFor(context.Background(), "user-shared")
	if err != nil {
		t.Fatalf("StatsFor() unexpected error: %v", err)
	}
	if got.TotalPlays != goroutines*perGoroutine {
		t.Errorf("TotalPlays = %d, want %d (lost updates)", got.TotalPlays, goroutines*perGoroutine)
	}
	if got.TotalSeconds != goroutines*perGoroutine {
		t.Errorf("TotalSeconds = %d, want %d", got.TotalSeconds, goroutines*perGoroutine)
	}
	if got.DistinctSongCount != goroutines {
		t.Errorf("DistinctSongCount = %d, want %d", got.DistinctSongCount, goroutines)
	}
}

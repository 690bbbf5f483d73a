package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/onnwee/replay/internal/play"
	"github.com/onnwee/replay/internal/ranking"
	"github.com/onnwee/replay/internal/recency"
)

func newRankingHandlers(t *testing.T, events []*play.Event) *RankingHandlers {
	t.Helper()
	counters := ranking.NewCounters()
	index := recency.NewInMemoryIndex()
	for _, ev := range events {
		if err := counters.Apply(context.Background(), ev); err != nil {
			t.Fatalf("counters Apply() unexpected error: %v", err)
		}
		if err := index.Apply(context.Background(), ev); err != nil {
			t.Fatalf("recency Apply() unexpected error: %v", err)
		}
	}
	return NewRankingHandlers(counters, index)
}

func decodeTopSongs(t *testing.T, rec *httptest.ResponseRecorder) TopSongsResponse {
	t.Helper()
	var resp TopSongsResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode top songs response: %v", err)
	}
	return resp
}

func recentPlays(userID string) []*play.Event {
	now := time.Now().UTC()
	return []*play.Event{
		{ID: "evt-1", UserID: userID, SongID: "song-1", PlayedSeconds: 100, OccurredAt: now.Add(-3 * time.Minute)},
		{ID: "evt-2", UserID: userID, SongID: "song-1", PlayedSeconds: 100, OccurredAt: now.Add(-2 * time.Minute)},
		{ID: "evt-3", UserID: userID, SongID: "song-2", PlayedSeconds: 400, OccurredAt: now.Add(-time.Minute)},
	}
}

func TestTopSongs(t *testing.T) {
	h := newRankingHandlers(t, recentPlays("user-a"))

	req := authedRequest(http.MethodGet, "/v1/users/me/top?period=all", "", "user-a")
	rec := httptest.NewRecorder()
	h.TopSongs(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d (body: %s)", rec.Code, http.StatusOK, rec.Body.String())
	}
	resp := decodeTopSongs(t, rec)
	if resp.Period != "all" {
		t.Errorf("period = %s, want all", resp.Period)
	}
	if len(resp.Songs) != 2 {
		t.Fatalf("got %d songs, want 2", len(resp.Songs))
	}
	// song-1 has two plays and ranks first.
	if resp.Songs[0].SongID != "song-1" || resp.Songs[0].PlayCount != 2 {
		t.Errorf("top song = %+v, want song-1 with 2 plays", resp.Songs[0])
	}
}

func TestTopSongs_DefaultPeriodIsAll(t *testing.T) {
	h := newRankingHandlers(t, recentPlays("user-a"))

	req := authedRequest(http.MethodGet, "/v1/users/me/top", "", "user-a")
	rec := httptest.NewRecorder()
	h.TopSongs(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if resp := decodeTopSongs(t, rec); resp.Period != "all" {
		t.Errorf("period = %s, want all", resp.Period)
	}
}

func TestTopSongs_InvalidPeriod(t *testing.T) {
	h := newRankingHandlers(t, nil)

	req := authedRequest(http.MethodGet, "/v1/users/me/top?period=year", "", "user-a")
	rec := httptest.NewRecorder()
	h.TopSongs(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	if code := decodeErrorCode(t, rec); code != ErrCodeInvalidPeriod {
		t.Errorf("error code = %s, want %s", code, ErrCodeInvalidPeriod)
	}
}

func TestTopSongs_InvalidLimit(t *testing.T) {
	h := newRankingHandlers(t, nil)

	req := authedRequest(http.MethodGet, "/v1/users/me/top?limit=-3", "", "user-a")
	rec := httptest.NewRecorder()
	h.TopSongs(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	if code := decodeErrorCode(t, rec); code != ErrCodeInvalidLimit {
		t.Errorf("error code = %s, want %s", code, ErrCodeInvalidLimit)
	}
}

func TestTopSongs_Unauthenticated(t *testing.T) {
	h := newRankingHandlers(t, nil)

	req := authedRequest(http.MethodGet, "/v1/users/me/top", "", "")
	rec := httptest.NewRecorder()
	h.TopSongs(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestTopSongs_EmptyIsEmptyArray(t *testing.T) {
	h := newRankingHandlers(t, nil)

	req := authedRequest(http.MethodGet, "/v1/users/me/top", "", "user-quiet")
	rec := httptest.NewRecorder()
	h.TopSongs(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(rec.Body.Bytes(), &raw); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if string(raw["songs"]) != "[]" {
		t.Errorf("songs = %s, want []", raw["songs"])
	}
}

func TestCharts(t *testing.T) {
	events := append(recentPlays("user-a"), recentPlays("user-b")...)
	h := newRankingHandlers(t, events)

	// Charts are public: no authentication required.
	req := authedRequest(http.MethodGet, "/v1/charts?period=week&limit=1", "", "")
	rec := httptest.NewRecorder()
	h.Charts(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d (body: %s)", rec.Code, http.StatusOK, rec.Body.String())
	}
	resp := decodeTopSongs(t, rec)
	if resp.Period != "week" {
		t.Errorf("period = %s, want week", resp.Period)
	}
	if len(resp.Songs) != 1 {
		t.Fatalf("got %d songs, want limit of 1", len(resp.Songs))
	}
	if resp.Songs[0].SongID != "song-1" || resp.Songs[0].PlayCount != 4 {
		t.Errorf("top chart entry = %+v, want song-1 with 4 plays across users", resp.Songs[0])
	}
}

func TestCharts_InvalidPeriod(t *testing.T) {
	h := newRankingHandlers(t, nil)

	req := authedRequest(http.MethodGet, "/v1/charts?period=fortnight", "", "")
	rec := httptest.NewRecorder()
	h.Charts(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	if code := decodeErrorCode(t, rec); code != ErrCodeInvalidPeriod {
		t.Errorf("error code = %s, want %s", code, ErrCodeInvalidPeriod)
	}
}

func TestRecentSongs(t *testing.T) {
	h := newRankingHandlers(t, recentPlays("user-a"))

	req := authedRequest(http.MethodGet, "/v1/users/me/recent", "", "user-a")
	rec := httptest.NewRecorder()
	h.RecentSongs(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d (body: %s)", rec.Code, http.StatusOK, rec.Body.String())
	}
	var resp RecentSongsResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode recent songs response: %v", err)
	}
	// song-1 was replayed but appears once, behind the newer song-2.
	if len(resp.Songs) != 2 {
		t.Fatalf("got %d songs, want 2 distinct", len(resp.Songs))
	}
	if resp.Songs[0].SongID != "song-2" || resp.Songs[1].SongID != "song-1" {
		t.Errorf("order = %s, %s; want song-2, song-1", resp.Songs[0].SongID, resp.Songs[1].SongID)
	}
}

func TestRecentSongs_LimitTruncates(t *testing.T) {
	h := newRankingHandlers(t, recentPlays("user-a"))

	req := authedRequest(http.MethodGet, "/v1/users/me/recent?limit=1", "", "user-a")
	rec := httptest.NewRecorder()
	h.RecentSongs(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var resp RecentSongsResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode recent songs response: %v", err)
	}
	if len(resp.Songs) != 1 || resp.Songs[0].SongID != "song-2" {
		t.Errorf("songs = %+v, want only newest song-2", resp.Songs)
	}
}

func TestRecentSongs_Unauthenticated(t *testing.T) {
	h := newRankingHandlers(t, nil)

	req := authedRequest(http.MethodGet, "/v1/users/me/recent", "", "")
	rec := httptest.NewRecorder()
	h.RecentSongs(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

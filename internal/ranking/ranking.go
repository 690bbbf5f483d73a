package ranking

import (
	"context"
	"errors"
	"sort"
)

// ErrInvalidLimit is returned when a query limit is not positive.
var ErrInvalidLimit = errors.New("limit must be > 0")

// SongCount is one ranked entry: a song with its aggregated play totals
// within a period window.
type SongCount struct {
	SongID       string `json:"song_id"`
	PlayCount    int64  `json:"play_count"`
	TotalSeconds int64  `json:"total_seconds"`
}

// Engine defines the ranking contract. The incremental Counters and the
// on-demand Aggregator are two implementations of this contract and must
// produce identical results, including tie-break order, for the same
// underlying history.
type Engine interface {
	// TopSongsForUser returns up to limit songs for the user within the
	// period window containing the current time.
	TopSongsForUser(ctx context.Context, userID string, period Period, limit int) ([]SongCount, error)

	// TopSongsGlobal returns up to limit songs across all users within the
	// period window containing the current time.
	TopSongsGlobal(ctx context.Context, period Period, limit int) ([]SongCount, error)
}

// sortSongCounts orders entries by playCount DESC, then totalSeconds DESC,
// then songID ASC for determinism.
func sortSongCounts(counts []SongCount) {
	sort.Slice(counts, func(a, b int) bool {
		if counts[a].PlayCount != counts[b].PlayCount {
			return counts[a].PlayCount > counts[b].PlayCount
		}
		if counts[a].TotalSeconds != counts[b].TotalSeconds {
			return counts[a].TotalSeconds > counts[b].TotalSeconds
		}
		return counts[a].SongID < counts[b].SongID
	})
}

// topN sorts and truncates a ranking to limit entries.
func topN(counts []SongCount, limit int) []SongCount {
	sortSongCounts(counts)
	if len(counts) > limit {
		counts = counts[:limit]
	}
	return counts
}

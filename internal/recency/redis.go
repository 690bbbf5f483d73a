package recency

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/onnwee/replay/internal/play"
)

// keyPrefix namespaces recency sorted sets in Redis.
const keyPrefix = "replay:recency:"

// RedisIndex implements Index on a Redis sorted set per user, scored by
// last-played time in microseconds. ZADD GT gives the monotonic upsert:
// an older timestamp never overwrites a newer one.
type RedisIndex struct {
	client *redis.Client
}

// NewRedisIndex creates a Redis-backed recency index.
func NewRedisIndex(client *redis.Client) *RedisIndex {
	return &RedisIndex{client: client}
}

// Name implements play.DerivedView.
func (i *RedisIndex) Name() string {
	return "recency"
}

// Apply implements play.DerivedView.
func (i *RedisIndex) Apply(ctx context.Context, event *play.Event) error {
	return i.Upsert(ctx, event.UserID, event.SongID, event.OccurredAt)
}

// Upsert records a play, keeping only the newest timestamp per (user, song).
func (i *RedisIndex) Upsert(ctx context.Context, userID, songID string, lastPlayedAt time.Time) error {
	err := i.client.ZAddGT(ctx, keyPrefix+userID, redis.Z{
		Score:  float64(lastPlayedAt.UnixMicro()),
		Member: songID,
	}).Err()
	if err != nil {
		return fmt.Errorf("recency upsert for user %s: %w", userID, err)
	}
	return nil
}

// MostRecentDistinct returns up to limit distinct songs, most recent first.
// Songs sharing a timestamp are ordered songID ASC, the same tie-break the
// in-memory index uses, so the two backends serve identical pages.
func (i *RedisIndex) MostRecentDistinct(ctx context.Context, userID string, limit int) ([]Entry, error) {
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}

	key := keyPrefix + userID
	members, err := i.client.ZRevRangeWithScores(ctx, key, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("recency query for user %s: %w", userID, err)
	}

	byID := make(map[string]float64, len(members))
	for _, m := range members {
		if songID, ok := m.Member.(string); ok {
			byID[songID] = m.Score
		}
	}

	// A full page may have cut a tie group short: Redis orders equal scores
	// reverse-lexically, so fetch everything sharing the boundary score and
	// let the songID tie-break decide which members make the page.
	if len(members) == limit {
		boundary := strconv.FormatFloat(members[len(members)-1].Score, 'f', -1, 64)
		tied, err := i.client.ZRangeByScoreWithScores(ctx, key, &redis.ZRangeBy{
			Min: boundary,
			Max: boundary,
		}).Result()
		if err != nil {
			return nil, fmt.Errorf("recency query for user %s: %w", userID, err)
		}
		for _, m := range tied {
			if songID, ok := m.Member.(string); ok {
				byID[songID] = m.Score
			}
		}
	}

	entries := make([]Entry, 0, len(byID))
	for songID, score := range byID {
		entries = append(entries, Entry{
			SongID:       songID,
			LastPlayedAt: time.UnixMicro(int64(score)).UTC(),
		})
	}
	sort.Slice(entries, func(a, b int) bool {
		if !entries[a].LastPlayedAt.Equal(entries[b].LastPlayedAt) {
			return entries[a].LastPlayedAt.After(entries[b].LastPlayedAt)
		}
		return entries[a].SongID < entries[b].SongID
	})
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// InvalidateUser implements play.DerivedView.
func (i *RedisIndex) InvalidateUser(ctx context.Context, userID string) error {
	if err := i.client.Del(ctx, keyPrefix+userID).Err(); err != nil {
		return fmt.Errorf("recency invalidate for user %s: %w", userID, err)
	}
	return nil
}

// Reset deletes every recency sorted set so the recompute job can rebuild
// the index from history. SCAN rather than KEYS keeps Redis responsive on
// large keyspaces.
func (i *RedisIndex) Reset(ctx context.Context) error {
	iter := i.client.Scan(ctx, 0, keyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := i.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("recency reset: %w", err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("recency reset scan: %w", err)
	}
	return nil
}

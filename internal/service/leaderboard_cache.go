package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/bmc-canvas-api/internal/dto"
	"github.com/noah-isme/bmc-canvas-api/internal/observability"
)

// LeaderboardCache is a read-through cache of ranked leaderboards. A nil cache, or one
// without a client, is a no-op.
type LeaderboardCache struct {
	client *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// NewLeaderboardCache constructs the cache. Returns nil when client is nil or ttl is not positive.
func NewLeaderboardCache(client *redis.Client, ttl time.Duration, logger zerolog.Logger) *LeaderboardCache {
	if client == nil || ttl <= 0 {
		return nil
	}
	return &LeaderboardCache{
		client: client,
		ttl:    ttl,
		logger: logger.With().Str("component", "leaderboard_cache").Logger(),
	}
}

// Entries are keyed by a per-session generation that Invalidate bumps. A read that started
// before an invalidation writes under the old generation, which no later read looks at.
func leaderboardCacheKey(sessionID string, generation int64) string {
	return fmt.Sprintf("leaderboard:%s:%d", sessionID, generation)
}

func leaderboardGenerationKey(sessionID string) string {
	return "leaderboard:" + sessionID + ":gen"
}

// generation reports the current cache generation of a session. ok is false when the cache
// is disabled or unreachable, in which case callers skip it.
func (c *LeaderboardCache) generation(ctx context.Context, sessionID string) (int64, bool) {
	if c == nil {
		return 0, false
	}

	generation, err := c.client.Get(ctx, leaderboardGenerationKey(sessionID)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, true
		}
		c.logger.Warn().Err(err).Msg("failed to read leaderboard cache generation")
		return 0, false
	}
	return generation, true
}

func (c *LeaderboardCache) get(ctx context.Context, sessionID string, generation int64) ([]dto.SubmissionResponse, bool) {
	if c == nil {
		return nil, false
	}

	cached, err := c.client.Get(ctx, leaderboardCacheKey(sessionID, generation)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn().Err(err).Msg("failed to read leaderboard cache")
		}
		observability.LeaderboardCache().WithLabelValues("miss").Inc()
		return nil, false
	}

	var rows []dto.SubmissionResponse
	if err := json.Unmarshal([]byte(cached), &rows); err != nil {
		c.logger.Warn().Err(err).Msg("discarding unreadable leaderboard cache entry")
		observability.LeaderboardCache().WithLabelValues("miss").Inc()
		return nil, false
	}

	observability.LeaderboardCache().WithLabelValues("hit").Inc()
	return rows, true
}

func (c *LeaderboardCache) set(ctx context.Context, sessionID string, generation int64, rows []dto.SubmissionResponse) {
	if c == nil {
		return
	}

	payload, err := json.Marshal(rows)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, leaderboardCacheKey(sessionID, generation), payload, c.ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Msg("failed to store leaderboard cache")
	}
}

// Invalidate moves the session to a new cache generation and drops the current entry.
func (c *LeaderboardCache) Invalidate(ctx context.Context, sessionID string) {
	if c == nil {
		return
	}

	generationKey := leaderboardGenerationKey(sessionID)
	previous, _ := c.generation(ctx, sessionID)
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, generationKey)
		// outlives every entry written under an older generation
		pipe.Expire(ctx, generationKey, 2*c.ttl)
		pipe.Del(ctx, leaderboardCacheKey(sessionID, previous))
		return nil
	})
	if err != nil {
		c.logger.Warn().Err(err).Str("session_id", sessionID).Msg("failed to invalidate leaderboard cache")
	}
}

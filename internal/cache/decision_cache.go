package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/quantara-ai/quantara-go/internal/models"
)

// DecisionCacheStats tracks cache performance counters.
type DecisionCacheStats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Sets   int64 `json:"sets"`

	mu sync.Mutex
}

// RedisDecisionCache keeps each user's most recent decision history in Redis
// so the read API does not hit Postgres on every scheduler poll. Entries are
// invalidated by TTL only; a freshly persisted decision shows up after at
// most one TTL window.
type RedisDecisionCache struct {
	redis  *redis.Client
	ttl    time.Duration
	prefix string
	stats  *DecisionCacheStats
	logger *logrus.Logger
}

func NewRedisDecisionCache(redisClient *redis.Client, ttl time.Duration, logger *logrus.Logger) *RedisDecisionCache {
	return &RedisDecisionCache{
		redis:  redisClient,
		ttl:    ttl,
		prefix: "decision_cache:",
		stats:  &DecisionCacheStats{},
		logger: logger,
	}
}

// Get returns the cached decision list for a user, if present and fresh.
func (c *RedisDecisionCache) Get(ctx context.Context, userID string) ([]models.Decision, bool) {
	data, err := c.redis.Get(ctx, c.prefix+userID).Result()
	if err == redis.Nil {
		c.miss()
		return nil, false
	}
	if err != nil {
		c.logger.WithError(err).WithField("user_id", userID).Warn("Decision cache read failed")
		c.miss()
		return nil, false
	}

	var decisions []models.Decision
	if err := json.Unmarshal([]byte(data), &decisions); err != nil {
		c.logger.WithError(err).WithField("user_id", userID).Warn("Decision cache entry corrupt, dropping")
		_ = c.redis.Del(ctx, c.prefix+userID).Err()
		c.miss()
		return nil, false
	}

	c.stats.mu.Lock()
	c.stats.Hits++
	c.stats.mu.Unlock()
	return decisions, true
}

// Set stores a user's decision list. Failures are logged and swallowed; the
// cache is never load-bearing.
func (c *RedisDecisionCache) Set(ctx context.Context, userID string, decisions []models.Decision) {
	data, err := json.Marshal(decisions)
	if err != nil {
		c.logger.WithError(err).WithField("user_id", userID).Warn("Decision cache marshal failed")
		return
	}
	if err := c.redis.Set(ctx, c.prefix+userID, data, c.ttl).Err(); err != nil {
		c.logger.WithError(err).WithField("user_id", userID).Warn("Decision cache write failed")
		return
	}
	c.stats.mu.Lock()
	c.stats.Sets++
	c.stats.mu.Unlock()
}

// Invalidate drops a user's cached history, used after a new decision lands.
func (c *RedisDecisionCache) Invalidate(ctx context.Context, userID string) {
	if err := c.redis.Del(ctx, c.prefix+userID).Err(); err != nil {
		c.logger.WithError(err).WithField("user_id", userID).Warn("Decision cache invalidation failed")
	}
}

// Stats returns a copy of the counters.
func (c *RedisDecisionCache) Stats() DecisionCacheStats {
	c.stats.mu.Lock()
	defer c.stats.mu.Unlock()
	return DecisionCacheStats{Hits: c.stats.Hits, Misses: c.stats.Misses, Sets: c.stats.Sets}
}

func (c *RedisDecisionCache) miss() {
	c.stats.mu.Lock()
	c.stats.Misses++
	c.stats.mu.Unlock()
}

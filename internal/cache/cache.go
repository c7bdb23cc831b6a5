package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Verdict is a cached classification result.
type Verdict struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// ClassificationCache memoizes verdicts by text digest so repeated detect
// calls for identical comments skip inference. A nil cache is valid and
// misses everything.
type ClassificationCache struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func New(rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *ClassificationCache {
	return &ClassificationCache{rdb: rdb, ttl: ttl, logger: logger}
}

func key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return "verdict:" + hex.EncodeToString(sum[:])
}

// Get returns the cached verdict for the text, if any.
func (c *ClassificationCache) Get(ctx context.Context, text string) (*Verdict, bool) {
	if c == nil {
		return nil, false
	}

	data, err := c.rdb.Get(ctx, key(text)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("Cache lookup failed", zap.Error(err))
		}
		return nil, false
	}

	var v Verdict
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, false
	}
	return &v, true
}

// Set stores a verdict with the configured TTL. Failures are logged only.
func (c *ClassificationCache) Set(ctx context.Context, text string, v Verdict) {
	if c == nil {
		return
	}

	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, key(text), data, c.ttl).Err(); err != nil {
		c.logger.Warn("Cache store failed", zap.Error(err))
	}
}

package extract

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/redis/go-redis/v9"

	"github.com/apconsolide/tale-mosaic/internal/activitylog"
)

// Cache stores extraction results keyed by extractor and transcription text.
// Implementations must fail open: a broken cache degrades to re-extraction,
// never to a request failure.
type Cache interface {
	// Get returns the cached records for key, or false on a miss.
	Get(ctx context.Context, key string) ([]activitylog.RawLog, bool)

	// Set stores records under key.
	Set(ctx context.Context, key string, logs []activitylog.RawLog)
}

// CacheKey derives a deterministic cache key from the extractor name and
// transcription text. The text is hashed so keys stay bounded; a NUL
// separator keeps (name, text) pairs unambiguous.
func CacheKey(extractor, text string) string {
	sum := sha256.Sum256([]byte(extractor + "\x00" + text))
	return "extract:" + extractor + ":" + hex.EncodeToString(sum[:])
}

// cachedResult is the CBOR envelope stored in Redis.
type cachedResult struct {
	Logs []activitylog.RawLog `cbor:"logs"`
}

// EncodeCachedLogs encodes extraction results for cache storage.
func EncodeCachedLogs(logs []activitylog.RawLog) ([]byte, error) {
	data, err := cbor.Marshal(cachedResult{Logs: logs})
	if err != nil {
		return nil, fmt.Errorf("failed to encode cached logs: %w", err)
	}
	return data, nil
}

// DecodeCachedLogs decodes cache payloads written by EncodeCachedLogs.
func DecodeCachedLogs(data []byte) ([]activitylog.RawLog, error) {
	var result cachedResult
	if err := cbor.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to decode cached logs: %w", err)
	}
	return result.Logs, nil
}

// RedisCache implements Cache backed by Redis with CBOR-encoded values.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisCache creates a RedisCache. A non-positive ttl defaults to one hour.
func NewRedisCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *RedisCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisCache{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

// Get returns the cached records for key, or false on a miss. Redis and
// decode errors count as misses.
func (c *RedisCache) Get(ctx context.Context, key string) ([]activitylog.RawLog, bool) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		c.logger.Warn("extraction cache read failed",
			slog.String("error", err.Error()))
		return nil, false
	}
	logs, err := DecodeCachedLogs(data)
	if err != nil {
		c.logger.Warn("extraction cache entry is corrupt",
			slog.String("key", key),
			slog.String("error", err.Error()))
		return nil, false
	}
	return logs, true
}

// Set stores records under key with the configured TTL. Failures are logged
// and otherwise ignored.
func (c *RedisCache) Set(ctx context.Context, key string, logs []activitylog.RawLog) {
	data, err := EncodeCachedLogs(logs)
	if err != nil {
		c.logger.Warn("failed to encode extraction cache entry",
			slog.String("error", err.Error()))
		return
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Warn("extraction cache write failed",
			slog.String("error", err.Error()))
	}
}

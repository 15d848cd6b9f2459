package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/irfndi/newsindex-ai-go/internal/models"
)

const (
	DefaultRecordTTL = time.Hour

	recordKeyPrefix = "newsindex:record:"
	latestSuffix    = "latest"
)

// Backend is the record persistence the cache sits in front of.
type Backend interface {
	Put(ctx context.Context, kind models.RecordKind, date models.CalendarDate, payload []byte) error
	Get(ctx context.Context, kind models.RecordKind, date models.CalendarDate) (models.StoredRecord, error)
	Latest(ctx context.Context, kind models.RecordKind) (models.StoredRecord, error)
	List(ctx context.Context, kind models.RecordKind, limit int) ([]models.StoredRecord, error)
}

// RecordCacheStats tracks cache performance metrics
type RecordCacheStats struct {
	Hits          int64 `json:"hits"`
	Misses        int64 `json:"misses"`
	Sets          int64 `json:"sets"`
	Invalidations int64 `json:"invalidations"`
	Errors        int64 `json:"errors"`
}

// RedisRecordCache is a read-through Redis cache over a record Backend.
// Single-date and latest lookups are cached; List always reads the backend.
// A Redis failure never fails a call, the backend answers instead.
type RedisRecordCache struct {
	backend Backend
	redis   redis.Cmdable
	ttl     time.Duration
	logger  *logrus.Logger

	mu    sync.Mutex
	stats RecordCacheStats
}

func NewRedisRecordCache(backend Backend, client redis.Cmdable, ttl time.Duration, logger *logrus.Logger) *RedisRecordCache {
	if ttl <= 0 {
		ttl = DefaultRecordTTL
	}
	return &RedisRecordCache{
		backend: backend,
		redis:   client,
		ttl:     ttl,
		logger:  logger,
	}
}

func recordKey(kind models.RecordKind, date models.CalendarDate) string {
	return fmt.Sprintf("%s%s:%s", recordKeyPrefix, kind, date)
}

func latestKey(kind models.RecordKind) string {
	return fmt.Sprintf("%s%s:%s", recordKeyPrefix, kind, latestSuffix)
}

// Put writes through to the backend, then drops the stale cache entries.
func (c *RedisRecordCache) Put(ctx context.Context, kind models.RecordKind, date models.CalendarDate, payload []byte) error {
	if err := c.backend.Put(ctx, kind, date, payload); err != nil {
		return err
	}
	if err := c.redis.Del(ctx, recordKey(kind, date), latestKey(kind)).Err(); err != nil {
		c.recordError("invalidate", kind, err)
		return nil
	}
	c.bump(func(s *RecordCacheStats) { s.Invalidations++ })
	return nil
}

func (c *RedisRecordCache) Get(ctx context.Context, kind models.RecordKind, date models.CalendarDate) (models.StoredRecord, error) {
	return c.readThrough(ctx, kind, recordKey(kind, date), func() (models.StoredRecord, error) {
		return c.backend.Get(ctx, kind, date)
	})
}

func (c *RedisRecordCache) Latest(ctx context.Context, kind models.RecordKind) (models.StoredRecord, error) {
	return c.readThrough(ctx, kind, latestKey(kind), func() (models.StoredRecord, error) {
		return c.backend.Latest(ctx, kind)
	})
}

func (c *RedisRecordCache) List(ctx context.Context, kind models.RecordKind, limit int) ([]models.StoredRecord, error) {
	return c.backend.List(ctx, kind, limit)
}

func (c *RedisRecordCache) readThrough(ctx context.Context, kind models.RecordKind, key string, load func() (models.StoredRecord, error)) (models.StoredRecord, error) {
	data, err := c.redis.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var rec models.StoredRecord
		jsonErr := json.Unmarshal(data, &rec)
		if jsonErr == nil {
			c.bump(func(s *RecordCacheStats) { s.Hits++ })
			return rec, nil
		}
		c.recordError("decode", kind, jsonErr)
	case errors.Is(err, redis.Nil):
	default:
		c.recordError("get", kind, err)
	}
	c.bump(func(s *RecordCacheStats) { s.Misses++ })

	rec, err := load()
	if err != nil {
		return models.StoredRecord{}, err
	}

	encoded, err := json.Marshal(rec)
	if err != nil {
		c.recordError("encode", kind, err)
		return rec, nil
	}
	if err := c.redis.Set(ctx, key, encoded, c.ttl).Err(); err != nil {
		c.recordError("set", kind, err)
		return rec, nil
	}
	c.bump(func(s *RecordCacheStats) { s.Sets++ })
	return rec, nil
}

func (c *RedisRecordCache) recordError(op string, kind models.RecordKind, err error) {
	c.bump(func(s *RecordCacheStats) { s.Errors++ })
	c.logger.WithFields(logrus.Fields{
		"operation": op,
		"kind":      kind,
		"error":     err.Error(),
	}).Warn("Record cache unavailable, using backend")
}

func (c *RedisRecordCache) bump(fn func(*RecordCacheStats)) {
	c.mu.Lock()
	fn(&c.stats)
	c.mu.Unlock()
}

// GetStats returns current cache statistics
func (c *RedisRecordCache) GetStats() RecordCacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// LogStats logs current cache performance statistics
func (c *RedisRecordCache) LogStats() {
	stats := c.GetStats()
	hitRate := 0.0
	if total := stats.Hits + stats.Misses; total > 0 {
		hitRate = float64(stats.Hits) / float64(total) * 100
	}
	c.logger.WithFields(logrus.Fields{
		"hits":          stats.Hits,
		"misses":        stats.Misses,
		"sets":          stats.Sets,
		"invalidations": stats.Invalidations,
		"errors":        stats.Errors,
		"hit_rate":      fmt.Sprintf("%.2f%%", hitRate),
	}).Info("Record cache stats")
}

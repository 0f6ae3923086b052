package sla

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/campusdesk/ticket-engine/internal/domain"
	"github.com/campusdesk/ticket-engine/internal/repository"
)

// Lookup is the status-catalog surface services depend on. The catalog is
// admin-configurable data; callers must branch on IsFinal, never on
// literal status text.
type Lookup interface {
	Get(ctx context.Context, value string) (*domain.StatusRow, error)
	IsFinal(ctx context.Context, value string) (bool, error)
	InitialStatus(ctx context.Context) (string, error)
	DefaultActiveTarget(ctx context.Context) (string, error)
	DefaultCloseTarget(ctx context.Context) (string, error)
}

// Cache is the small key/value surface the catalog needs; backed by Redis
// in production, a map in tests.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string, ttl time.Duration)
}

// Catalog resolves status values to catalog rows through a cache with
// database fallthrough.
type Catalog struct {
	repo   repository.StatusRepository
	cache  Cache
	ttl    time.Duration
	logger *zap.Logger
}

// NewCatalog builds a catalog over the status repository. cache may be nil.
func NewCatalog(repo repository.StatusRepository, cache Cache, ttl time.Duration, logger *zap.Logger) *Catalog {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Catalog{repo: repo, cache: cache, ttl: ttl, logger: logger}
}

const cacheKeyPrefix = "status_catalog:"

// Get resolves a status value to its row.
func (c *Catalog) Get(ctx context.Context, value string) (*domain.StatusRow, error) {
	if c.cache != nil {
		if cached, ok := c.cache.Get(ctx, cacheKeyPrefix+value); ok {
			var row domain.StatusRow
			if err := json.Unmarshal([]byte(cached), &row); err == nil {
				return &row, nil
			}
		}
	}

	row, err := c.repo.Get(ctx, value)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		if encoded, err := json.Marshal(row); err == nil {
			c.cache.Set(ctx, cacheKeyPrefix+value, string(encoded), c.ttl)
		}
	}
	return row, nil
}

// IsFinal reports whether the status value is terminal.
func (c *Catalog) IsFinal(ctx context.Context, value string) (bool, error) {
	row, err := c.Get(ctx, value)
	if err != nil {
		return false, err
	}
	return row.IsFinal, nil
}

// InitialStatus returns the first non-final catalog row by display order;
// intake creates tickets in this status.
func (c *Catalog) InitialStatus(ctx context.Context) (string, error) {
	rows, err := c.repo.ListOrdered(ctx)
	if err != nil {
		return "", err
	}
	for _, row := range rows {
		if !row.IsFinal {
			return row.Value, nil
		}
	}
	return "", errors.New("status catalog has no non-final rows")
}

// DefaultActiveTarget returns the first non-final row past the initial one
// by display order: the status work-in-progress tickets move into when a
// group TAT is propagated onto them.
func (c *Catalog) DefaultActiveTarget(ctx context.Context) (string, error) {
	rows, err := c.repo.ListOrdered(ctx)
	if err != nil {
		return "", err
	}
	seenInitial := false
	for _, row := range rows {
		if row.IsFinal {
			continue
		}
		if !seenInitial {
			seenInitial = true
			continue
		}
		return row.Value, nil
	}
	return c.InitialStatus(ctx)
}

// DefaultCloseTarget returns the first final catalog row by display order,
// used when a close action names no explicit target status.
func (c *Catalog) DefaultCloseTarget(ctx context.Context) (string, error) {
	rows, err := c.repo.ListOrdered(ctx)
	if err != nil {
		return "", err
	}
	for _, row := range rows {
		if row.IsFinal {
			return row.Value, nil
		}
	}
	return "", errors.New("status catalog has no final rows")
}

// redisCache adapts a go-redis client to the Cache interface. Failures are
// logged and treated as misses so catalog reads never depend on Redis.
type redisCache struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisCache wraps a redis client for catalog caching.
func NewRedisCache(client *redis.Client, logger *zap.Logger) Cache {
	return &redisCache{client: client, logger: logger}
}

func (r *redisCache) Get(ctx context.Context, key string) (string, bool) {
	val, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if err != redis.Nil {
			r.logger.Debug("catalog cache read failed", zap.String("key", key), zap.Error(err))
		}
		return "", false
	}
	return val, true
}

func (r *redisCache) Set(ctx context.Context, key, value string, ttl time.Duration) {
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		r.logger.Debug("catalog cache write failed", zap.String("key", key), zap.Error(err))
	}
}

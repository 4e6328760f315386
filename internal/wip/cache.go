package wip

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	cacheVersionKey = "wip:version"
	bumpChannel     = "wip.bump"
)

// Cache fronts the whole pipeline with versioned Redis keys. It is strictly
// best-effort: a read failure is a miss, a write failure never fails the
// request. Both degrade to always-compute and are logged at debug level.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewCache instantiates the cache helper. A nil client disables caching.
func NewCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{client: client, ttl: ttl, logger: logger}
}

// Version returns the current cache version, initialising when missing.
func (c *Cache) Version(ctx context.Context) (int64, error) {
	if c == nil || c.client == nil {
		return 0, nil
	}
	ver, err := c.client.Get(ctx, cacheVersionKey).Int64()
	if err == redis.Nil {
		if err := c.client.Set(ctx, cacheVersionKey, 1, 0).Err(); err != nil {
			return 0, err
		}
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	if ver <= 0 {
		ver = 1
		if err := c.client.Set(ctx, cacheVersionKey, ver, 0).Err(); err != nil {
			return 0, err
		}
	}
	return ver, nil
}

// BuildKey composes a cache key from the canonical parts plus the current
// version. When Redis is unreachable the unversioned key is returned so the
// caller can proceed straight to compute.
func (c *Cache) BuildKey(ctx context.Context, parts ...string) string {
	joined := strings.Join(parts, ":")
	if c == nil || c.client == nil {
		return joined
	}
	ver, err := c.Version(ctx)
	if err != nil {
		c.logger.Debug("wip cache version unavailable", slog.Any("error", err))
		return joined
	}
	return joined + ":" + strconv.FormatInt(ver, 10)
}

// FetchJSON loads a cached value or populates it using the loader. Cache
// failures on either side degrade to compute-only.
func (c *Cache) FetchJSON(ctx context.Context, key string, dest interface{}, loader func(context.Context) (interface{}, error)) error {
	if loader == nil {
		return errors.New("wip cache: loader required")
	}
	if c != nil && c.client != nil {
		payload, err := c.client.Get(ctx, key).Bytes()
		if err == nil {
			if err := json.Unmarshal(payload, dest); err == nil {
				return nil
			}
			// A corrupt payload is treated as a miss and overwritten below.
			c.logger.Debug("wip cache payload corrupt", slog.String("key", key))
		} else if err != redis.Nil {
			c.logger.Debug("wip cache read failed", slog.String("key", key), slog.Any("error", err))
		}
	}

	value, err := loader(ctx)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if c != nil && c.client != nil {
		if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
			c.logger.Debug("wip cache write failed", slog.String("key", key), slog.Any("error", err))
		}
	}
	return json.Unmarshal(raw, dest)
}

// Bump invalidates every report key by incrementing the global version and
// publishing the new value for other instances.
func (c *Cache) Bump(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	ver, err := c.client.Incr(ctx, cacheVersionKey).Result()
	if err != nil {
		return err
	}
	return c.client.Publish(ctx, bumpChannel, strconv.FormatInt(ver, 10)).Err()
}

// ListenForInvalidation subscribes to version bump notifications so ledger
// imports elsewhere invalidate this instance's keys too.
func (c *Cache) ListenForInvalidation(ctx context.Context, channel string) error {
	if c == nil || c.client == nil {
		return nil
	}
	if channel == "" {
		channel = bumpChannel
	}
	pubsub := c.client.Subscribe(ctx, channel)
	go func() {
		defer func() { _ = pubsub.Close() }()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				if msg.Payload != "" {
					if ver, err := strconv.ParseInt(msg.Payload, 10, 64); err == nil {
						_ = c.client.Set(ctx, cacheVersionKey, ver, 0).Err()
						continue
					}
				}
				_ = c.client.Incr(ctx, cacheVersionKey).Err()
			}
		}
	}()
	return nil
}

// reportKeyParts serializes the full filter record in a fixed field order so
// two requests differing in any dimension can never collide, and requests
// that agree always share a key regardless of how the caller ordered its
// parameters.
func reportKeyParts(q Query, strategy string, productionIncludesDisb bool) []string {
	token := func(v string) string {
		if v == "" {
			return "-"
		}
		return strings.ToLower(v)
	}
	convention := "time"
	if productionIncludesDisb {
		convention = "time+disb"
	}
	return []string{
		"wip", "report",
		token(q.ClientCode),
		strategy,
		convention,
		token(q.Period.Mode),
		token(q.Period.FiscalYear),
		token(q.Period.FiscalMonth),
		token(q.Period.StartDate),
		token(q.Period.EndDate),
		token(q.SubGroup),
	}
}

package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/oversite/patrol-backend/internal/pkg/logger"
	"github.com/oversite/patrol-backend/internal/types"
)

// StatusCache caches state-query responses keyed by badge number. The
// ingestion engine invalidates an entry every time it applies a scan for
// that badge, so a hit is never staler than the TTL after a crash.
type StatusCache struct {
	log *logger.Logger
	rdb *goredis.Client
	ttl time.Duration
}

func NewStatusCache(log *logger.Logger, ttl time.Duration) (*StatusCache, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}

	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &StatusCache{
		log: log.With("client", "RedisStatusCache"),
		rdb: rdb,
		ttl: ttl,
	}, nil
}

func statusKey(badgeNumber int) string {
	return fmt.Sprintf("guard_status:%d", badgeNumber)
}

func (c *StatusCache) Get(ctx context.Context, badgeNumber int) (*types.GuardStatus, bool, error) {
	raw, err := c.rdb.Get(ctx, statusKey(badgeNumber)).Bytes()
	if err == goredis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var status types.GuardStatus
	if err := json.Unmarshal(raw, &status); err != nil {
		// A corrupt entry behaves like a miss and gets overwritten.
		c.log.Warn("Dropping unreadable cache entry", "badge_number", badgeNumber, "error", err)
		return nil, false, nil
	}
	return &status, true, nil
}

func (c *StatusCache) Set(ctx context.Context, badgeNumber int, status *types.GuardStatus) error {
	raw, err := json.Marshal(status)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, statusKey(badgeNumber), raw, c.ttl).Err()
}

func (c *StatusCache) Invalidate(ctx context.Context, badgeNumber int) error {
	return c.rdb.Del(ctx, statusKey(badgeNumber)).Err()
}

func (c *StatusCache) Close() error {
	return c.rdb.Close()
}

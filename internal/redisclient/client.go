package redisclient

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

//go:embed scripts/release_lock.lua
var releaseLockScript string

const keyPrefix = "analytics"

type Client struct {
	rdb           *redis.Client
	releaseScript *redis.Script
	ttl           time.Duration
}

// NewClient creates a new Redis client; cached reports expire after ttl
func NewClient(addr, password string, db int, ttl time.Duration) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{
		rdb:           rdb,
		releaseScript: redis.NewScript(releaseLockScript),
		ttl:           ttl,
	}, nil
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping checks the connection is alive
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// ReportKey is the cache key of one report as of one date
func ReportKey(report, asOf string) string {
	return fmt.Sprintf("%s:report:%s:%s", keyPrefix, report, asOf)
}

func lockKey(report, asOf string) string {
	return fmt.Sprintf("%s:lock:%s:%s", keyPrefix, report, asOf)
}

// GetReport returns the cached rows of a report; ok is false on a miss
func (c *Client) GetReport(ctx context.Context, report, asOf string) (data []byte, ok bool, err error) {
	data, err = c.rdb.Get(ctx, ReportKey(report, asOf)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get cached report: %w", err)
	}
	return data, true, nil
}

// SetReport caches the rows of a report with the configured TTL
func (c *Client) SetReport(ctx context.Context, report, asOf string, data []byte) error {
	if err := c.rdb.Set(ctx, ReportKey(report, asOf), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache report: %w", err)
	}
	return nil
}

// InvalidateReport drops a cached report
func (c *Client) InvalidateReport(ctx context.Context, report, asOf string) error {
	return c.rdb.Del(ctx, ReportKey(report, asOf)).Err()
}

// AcquireLock acquires the run lock of a report, held by owner until
// released or expired
func (c *Client) AcquireLock(ctx context.Context, report, asOf, owner string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, lockKey(report, asOf), owner, ttl).Result()
}

// ReleaseLock releases the run lock if owner still holds it
func (c *Client) ReleaseLock(ctx context.Context, report, asOf, owner string) error {
	_, err := c.releaseScript.Run(ctx, c.rdb, []string{lockKey(report, asOf)}, owner).Result()
	if err != nil {
		return fmt.Errorf("release lock script failed: %w", err)
	}
	return nil
}

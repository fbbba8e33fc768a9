// Package redisx holds the run lock and the latest run report in Redis so
// that several enricher processes can share one record store.
package redisx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/yourorg/vacants-enricher/internal/hydrator"
)

// ErrLocked is returned when another process holds the lock.
var ErrLocked = errors.New("lock held by another run")

const (
	lockPrefix = "enricher:lock:"
	reportKey  = "enricher:report:latest"
)

// releaseScript deletes the lock only if we still own it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

type Client struct {
	Rdb     *redis.Client
	LockTTL time.Duration
}

func New(addr string, password string, db int) *Client {
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	return &Client{Rdb: rdb, LockTTL: 2 * time.Hour}
}

func (c *Client) Ping(ctx context.Context) error {
	return c.Rdb.Ping(ctx).Err()
}

func (c *Client) Close() error { return c.Rdb.Close() }

// Acquire takes the named lock for LockTTL. The returned func releases it and
// is safe to call after the TTL expired.
func (c *Client) Acquire(ctx context.Context, name string) (func(), error) {
	key := lockPrefix + name
	token := uuid.NewString()
	ok, err := c.Rdb.SetNX(ctx, key, token, c.ttl()).Result()
	if err != nil {
		return nil, fmt.Errorf("redis setnx %s: %w", key, err)
	}
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, ErrLocked)
	}
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = releaseScript.Run(ctx, c.Rdb, []string{key}, token).Err()
	}, nil
}

func (c *Client) ttl() time.Duration {
	if c.LockTTL <= 0 {
		return 2 * time.Hour
	}
	return c.LockTTL
}

// SaveReport stores rep as the latest report. Per-record results are kept.
func (c *Client) SaveReport(ctx context.Context, rep hydrator.Report) error {
	b, err := json.Marshal(rep)
	if err != nil {
		return err
	}
	return c.Rdb.Set(ctx, reportKey, b, 0).Err()
}

// LatestReport returns the last saved report, or false if none was saved.
func (c *Client) LatestReport(ctx context.Context) (hydrator.Report, bool, error) {
	b, err := c.Rdb.Get(ctx, reportKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return hydrator.Report{}, false, nil
	}
	if err != nil {
		return hydrator.Report{}, false, err
	}
	var rep hydrator.Report
	if err := json.Unmarshal(b, &rep); err != nil {
		return hydrator.Report{}, false, fmt.Errorf("decode report: %w", err)
	}
	return rep, true, nil
}

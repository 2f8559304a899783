package rediscache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds Redis connection configuration.
type Config struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
}

// Client wraps Redis operations for sessions and VIN decode caching.
type Client struct {
	rdb *redis.Client
}

// NewClient creates a new Redis client. Connectivity is not verified here;
// the cache breaker guards every call.
func NewClient(cfg Config) (*Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	return &Client{rdb: redis.NewClient(opts)}, nil
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

func sessionKey(token string) string {
	return fmt.Sprintf("session:%s", token)
}

func decodeKey(vin string) string {
	return fmt.Sprintf("vin_decode:%s", vin)
}

// Session returns the user ID for a session token, or found=false on a miss.
func (c *Client) Session(ctx context.Context, token string) (userID string, found bool, err error) {
	val, err := c.rdb.Get(ctx, sessionKey(token)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get session: %w", err)
	}
	return val, true, nil
}

// StoreSession stores a session token with a TTL.
func (c *Client) StoreSession(ctx context.Context, token, userID string, ttl time.Duration) error {
	if err := c.rdb.Set(ctx, sessionKey(token), userID, ttl).Err(); err != nil {
		return fmt.Errorf("set session: %w", err)
	}
	return nil
}

// CachedDecode returns a previously cached VIN decode result.
func (c *Client) CachedDecode(ctx context.Context, vin string) (payload string, found bool, err error) {
	val, err := c.rdb.Get(ctx, decodeKey(vin)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get decode: %w", err)
	}
	return val, true, nil
}

// StoreDecode caches a VIN decode result. Vehicle data is stable, so the TTL
// is generous.
func (c *Client) StoreDecode(ctx context.Context, vin, payload string) error {
	if err := c.rdb.Set(ctx, decodeKey(vin), payload, 30*24*time.Hour).Err(); err != nil {
		return fmt.Errorf("set decode: %w", err)
	}
	return nil
}

// Ping verifies connectivity; used as the guarded health probe.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"
)

// Client stores msgpack encoded values under a key namespace.
type Client struct {
	conn      redis.UniversalClient
	namespace string
}

func New(conn redis.UniversalClient, namespace string) (*Client, error) {
	if conn == nil {
		return nil, errors.New("redis connection is nil")
	}
	return &Client{conn: conn, namespace: namespace}, nil
}

func (c *Client) store(key string) string {
	return fmt.Sprintf("%s#%s#", c.namespace, key)
}

// SetNX sets key to val only if it does not exist. It reports whether the
// value was set.
func (c *Client) SetNX(ctx context.Context, key string, val interface{}, ttl time.Duration) (bool, error) {
	bs, err := marshal(val)
	if err != nil {
		return false, err
	}
	ok, err := c.conn.SetNX(ctx, c.store(key), bs, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to setnx %s: %w", key, err)
	}
	return ok, nil
}

// Update overwrites an existing key and keeps its ttl. It reports whether
// the key existed.
func (c *Client) Update(ctx context.Context, key string, val interface{}) (bool, error) {
	bs, err := marshal(val)
	if err != nil {
		return false, err
	}
	res, err := c.conn.SetArgs(ctx, c.store(key), bs, redis.SetArgs{Mode: "XX", KeepTTL: true}).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to update %s: %w", key, err)
	}
	return res == "OK", nil
}

// Get decodes key into target. It reports false when the key is missing.
func (c *Client) Get(ctx context.Context, key string, target interface{}) (bool, error) {
	bs, err := c.conn.Get(ctx, c.store(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get %s: %w", key, err)
	}
	if err := unmarshal(bs, target); err != nil {
		return false, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return true, nil
}

// Invalidate explicitly invalidates cache keys
func (c *Client) Invalidate(ctx context.Context, keys ...string) error {
	stored := make([]string, len(keys))
	for i, k := range keys {
		stored[i] = c.store(k)
	}
	return c.conn.Del(ctx, stored...).Err()
}

func marshal(value interface{}) ([]byte, error) {
	switch value := value.(type) {
	case nil:
		return nil, nil
	case []byte:
		return value, nil
	case string:
		return []byte(value), nil
	}

	b, err := msgpack.Marshal(value)
	if err != nil {
		return nil, err
	}

	return b, nil
}

func unmarshal(b []byte, value interface{}) error {
	if len(b) == 0 {
		return nil
	}

	switch value := value.(type) {
	case nil:
		return nil
	case *[]byte:
		clone := make([]byte, len(b))
		copy(clone, b)
		*value = clone
		return nil
	case *string:
		*value = string(b)
		return nil
	}

	return msgpack.Unmarshal(b, value)
}

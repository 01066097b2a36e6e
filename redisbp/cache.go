package redisbp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-redis/redis/v8"

	"github.com/reddit/secureconfig.go/breakerbp"
	"github.com/reddit/secureconfig.go/secrets"
)

// ErrEmptyKey is returned by Delete when called with an empty key.
var ErrEmptyKey = errors.New("redisbp: empty key")

// Cache is a string cache backed by redis.
//
// Missing keys are not errors: Get reports them with ok == false.
// When a breaker is set, every call goes through it, and a missing key
// doesn't count as a failure.
type Cache struct {
	client  *Client
	breaker breakerbp.CircuitBreaker
}

// NewCache creates a Cache using client.
//
// breaker is optional.
func NewCache(client *Client, breaker breakerbp.CircuitBreaker) *Cache {
	return &Cache{
		client:  client,
		breaker: breaker,
	}
}

// NewCacheFromSecrets connects to the cache described by the secret named by
// cfg.SecretName.
//
// It returns a nil Cache and a nil error when the secret is absent or empty.
// The connection is lazy, use Ping to check it.
func NewCacheFromSecrets(set secrets.Set, cfg ClientConfig, breaker breakerbp.CircuitBreaker) (*Cache, error) {
	conn, ok := set.ConnectionString(cfg.SecretName())
	if !ok || strings.TrimSpace(conn) == "" {
		return nil, nil
	}
	options, err := cfg.Options(conn)
	if err != nil {
		// Never include the connection string, it usually holds a password.
		return nil, fmt.Errorf("redisbp.NewCacheFromSecrets: secret %q: %w", cfg.SecretName(), err)
	}
	return NewCache(NewMonitoredClient(cfg.ClientName(), options), breaker), nil
}

// Client returns the underlying client.
func (c *Cache) Client() *Client {
	return c.client
}

func (c *Cache) do(fn func() error) error {
	if c.breaker == nil {
		return fn()
	}
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	return err
}

// Ping checks the connection.
func (c *Cache) Ping(ctx context.Context) error {
	return c.do(func() error {
		return c.client.Ping(ctx).Err()
	})
}

// Exists reports whether key is in the cache.
func (c *Cache) Exists(ctx context.Context, key string) (exists bool, err error) {
	err = c.do(func() error {
		n, err := c.client.Exists(ctx, key).Result()
		exists = n > 0
		return err
	})
	return exists, err
}

// Get returns the value of key, and whether it's in the cache.
func (c *Cache) Get(ctx context.Context, key string) (value string, ok bool, err error) {
	err = c.do(func() error {
		v, err := c.client.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}
		value, ok = v, true
		return nil
	})
	return value, ok, err
}

// Set sets key to value, without expiration.
func (c *Cache) Set(ctx context.Context, key, value string) error {
	return c.do(func() error {
		return c.client.Set(ctx, key, value, 0).Err()
	})
}

// Delete removes key. Deleting a missing key is not an error.
func (c *Cache) Delete(ctx context.Context, key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	return c.do(func() error {
		return c.client.Del(ctx, key).Err()
	})
}

// CacheObject stores v as JSON under key.
func (c *Cache) CacheObject(ctx context.Context, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("redisbp.Cache.CacheObject: %w", err)
	}
	return c.Set(ctx, key, string(data))
}

// GetCachedObject decodes the JSON stored under key into v.
//
// It returns false, leaving v untouched, when key is missing or empty.
func (c *Cache) GetCachedObject(ctx context.Context, key string, v interface{}) (bool, error) {
	value, ok, err := c.Get(ctx, key)
	if err != nil || !ok || value == "" {
		return false, err
	}
	if err := json.Unmarshal([]byte(value), v); err != nil {
		return false, fmt.Errorf("redisbp.Cache.GetCachedObject: key %q: %w", key, err)
	}
	return true, nil
}

// Close closes the underlying client.
func (c *Cache) Close() error {
	return c.client.Close()
}

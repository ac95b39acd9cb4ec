package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	cacheVersionKey = "stockflow:snapshot:version"
	keyPrefix       = "stockflow:snapshot"

	// DefaultInvalidationChannel carries cache version bumps between instances.
	DefaultInvalidationChannel = "reports.bump"
)

// Cache wraps Redis based snapshot caching with versioning controls. A nil
// Cache, or one without a client, loads straight from the source.
type Cache struct {
	client  *redis.Client
	ttl     time.Duration
	channel string
}

// NewCache instantiates the cache helper. An empty channel selects
// DefaultInvalidationChannel.
func NewCache(client *redis.Client, ttl time.Duration, channel string) *Cache {
	if channel == "" {
		channel = DefaultInvalidationChannel
	}
	return &Cache{client: client, ttl: ttl, channel: channel}
}

// Version returns the current cache version, initialising when missing.
func (c *Cache) Version(ctx context.Context) (int64, error) {
	if c == nil || c.client == nil {
		return 0, nil
	}
	ver, err := c.client.Get(ctx, cacheVersionKey).Int64()
	if errors.Is(err, redis.Nil) {
		// SetNX keeps a concurrently initialised version.
		if err := c.client.SetNX(ctx, cacheVersionKey, 1, 0).Err(); err != nil {
			return 0, err
		}
		return c.client.Get(ctx, cacheVersionKey).Int64()
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

// BuildKey composes the cache key with the current version.
func (c *Cache) BuildKey(ctx context.Context, parts ...string) (string, error) {
	joined := strings.Join(append([]string{keyPrefix}, parts...), ":")
	if c == nil || c.client == nil {
		return joined, nil
	}
	ver, err := c.Version(ctx)
	if err != nil {
		return "", fmt.Errorf("source: cache version: %w", err)
	}
	return joined + ":v" + strconv.FormatInt(ver, 10), nil
}

// FetchJSON decodes the cached value at key into dest, or runs the loader,
// stores its JSON encoding with the cache TTL and decodes that into dest.
// Loader errors are returned unchanged.
func (c *Cache) FetchJSON(ctx context.Context, key string, dest any, loader func(context.Context) (any, error)) error {
	if loader == nil {
		return errors.New("source: cache loader required")
	}
	if c == nil || c.client == nil {
		value, err := loader(ctx)
		if err != nil {
			return err
		}
		return roundTrip(value, dest)
	}
	payload, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		return json.Unmarshal(payload, dest)
	}
	if !errors.Is(err, redis.Nil) {
		return fmt.Errorf("source: cache get: %w", err)
	}
	value, err := loader(ctx)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("source: cache set: %w", err)
	}
	return json.Unmarshal(raw, dest)
}

// Bump invalidates the cache by incrementing the global version and publishing an event.
func (c *Cache) Bump(ctx context.Context) (int64, error) {
	if c == nil || c.client == nil {
		return 0, nil
	}
	ver, err := c.client.Incr(ctx, cacheVersionKey).Result()
	if err != nil {
		return 0, fmt.Errorf("source: cache bump: %w", err)
	}
	if err := c.client.Publish(ctx, c.channel, strconv.FormatInt(ver, 10)).Err(); err != nil {
		return ver, fmt.Errorf("source: cache publish: %w", err)
	}
	return ver, nil
}

// ListenForInvalidation subscribes to version bump notifications until ctx is
// done. A numeric payload raises the local version to at least that value;
// any other payload increments it.
func (c *Cache) ListenForInvalidation(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	pubsub := c.client.Subscribe(ctx, c.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("source: subscribe %s: %w", c.channel, err)
	}
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
				c.applyBump(ctx, msg.Payload)
			}
		}
	}()
	return nil
}

func (c *Cache) applyBump(ctx context.Context, payload string) {
	ver, err := strconv.ParseInt(payload, 10, 64)
	if err != nil {
		_ = c.client.Incr(ctx, cacheVersionKey).Err()
		return
	}
	current, err := c.client.Get(ctx, cacheVersionKey).Int64()
	if err == nil && current >= ver {
		return
	}
	_ = c.client.Set(ctx, cacheVersionKey, ver, 0).Err()
}

func roundTrip(value, dest any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}

// Package livestate mirrors the active registries into Redis so the map/HUD
// consumers can read current tracks without touching the engine. Writes are
// best-effort; the engine logs and continues when Redis is down.
package livestate

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/BlackAtlas-Tech/griddown-sentry/internal/types"
)

const (
	trackTTL    = 5 * time.Minute
	operatorTTL = 15 * time.Minute
)

// RedisClientInterface defines the Redis operations used by our client.
type RedisClientInterface interface {
	Ping(ctx context.Context) *redis.StatusCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Close() error
}

// Client manages the Redis mirror.
type Client struct {
	client RedisClientInterface
}

// New creates a live-state client and verifies connectivity.
func New(addr string) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Client{client: client}, nil
}

// NewWithClient wraps a custom RedisClientInterface (useful for testing).
func NewWithClient(client RedisClientInterface) *Client {
	return &Client{client: client}
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.client.Close()
}

// StoreTrack mirrors one track under track:<mac>.
func (c *Client) StoreTrack(ctx context.Context, tr *types.Track) error {
	data, err := json.Marshal(tr)
	if err != nil {
		return fmt.Errorf("failed to marshal track: %w", err)
	}
	return c.client.Set(ctx, "track:"+tr.MAC, data, trackTTL).Err()
}

// GetTrack reads one mirrored track. Returns nil without error when the
// key is absent.
func (c *Client) GetTrack(ctx context.Context, mac string) (*types.Track, error) {
	data, err := c.client.Get(ctx, "track:"+types.NormalizeMAC(mac)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get track: %w", err)
	}
	var tr types.Track
	if err := json.Unmarshal(data, &tr); err != nil {
		return nil, fmt.Errorf("failed to unmarshal track: %w", err)
	}
	return &tr, nil
}

// DeleteTrack removes an evicted track from the mirror.
func (c *Client) DeleteTrack(ctx context.Context, mac string) error {
	return c.client.Del(ctx, "track:"+types.NormalizeMAC(mac)).Err()
}

// StoreOperator mirrors one operator link under operator:<mac>.
func (c *Client) StoreOperator(ctx context.Context, op *types.OperatorLink) error {
	data, err := json.Marshal(op)
	if err != nil {
		return fmt.Errorf("failed to marshal operator link: %w", err)
	}
	return c.client.Set(ctx, "operator:"+op.MAC, data, operatorTTL).Err()
}

// DeleteOperator removes a pruned operator link from the mirror.
func (c *Client) DeleteOperator(ctx context.Context, mac string) error {
	return c.client.Del(ctx, "operator:"+types.NormalizeMAC(mac)).Err()
}

package redisclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"fleamarket-service/internal/cart"

	"github.com/go-redis/redis/v8"
)

type Client struct {
	rdb     *redis.Client
	cartTTL time.Duration
}

// NewClient creates a new Redis client
func NewClient(addr, password string, db int, cartTTL time.Duration) (*Client, error) {
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

	return NewFromRedis(rdb, cartTTL), nil
}

// NewFromRedis wraps an existing connection
func NewFromRedis(rdb *redis.Client, cartTTL time.Duration) *Client {
	return &Client{rdb: rdb, cartTTL: cartTTL}
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping checks the connection, used by the readiness probe
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func cartKey(sessionID string) string {
	return fmt.Sprintf("cart:%s", sessionID)
}

func idempotencyKey(key string) string {
	return fmt.Sprintf("idempotency:%s", key)
}

// LoadCart reads the cart blob of a session. A missing key is an empty cart.
func (c *Client) LoadCart(ctx context.Context, sessionID string) (cart.Cart, error) {
	raw, err := c.rdb.Get(ctx, cartKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return cart.Cart{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}

	var stored cart.Cart
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil, fmt.Errorf("failed to decode cart: %w", err)
	}
	return stored.Clone(), nil
}

// SaveCart writes the cart blob and refreshes its TTL
func (c *Client) SaveCart(ctx context.Context, sessionID string, snapshot cart.Cart) error {
	if len(snapshot) == 0 {
		return c.ClearCart(ctx, sessionID)
	}

	raw, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to encode cart: %w", err)
	}
	if err := c.rdb.Set(ctx, cartKey(sessionID), raw, c.cartTTL).Err(); err != nil {
		return fmt.Errorf("failed to save cart: %w", err)
	}
	return nil
}

// ClearCart deletes the cart of a session
func (c *Client) ClearCart(ctx context.Context, sessionID string) error {
	return c.rdb.Del(ctx, cartKey(sessionID)).Err()
}

// Reserve claims an idempotency key. It returns false when the key was
// already claimed, in which case Lookup yields the recorded order id.
func (c *Client) Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, idempotencyKey(key), "", ttl).Result()
}

// Complete records the order id created for a claimed key
func (c *Client) Complete(ctx context.Context, key, orderID string, ttl time.Duration) error {
	return c.rdb.Set(ctx, idempotencyKey(key), orderID, ttl).Err()
}

// Lookup returns the order id recorded for key, empty while still in flight
func (c *Client) Lookup(ctx context.Context, key string) (string, error) {
	v, err := c.rdb.Get(ctx, idempotencyKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return v, err
}

// Release drops a claim whose request failed so the client may retry
func (c *Client) Release(ctx context.Context, key string) error {
	return c.rdb.Del(ctx, idempotencyKey(key)).Err()
}

package redisclient

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

//go:embed scripts/set_inventory.lua
var setInventoryScript string

//go:embed scripts/release_lock.lua
var releaseLockScript string

type Client struct {
	rdb             *redis.Client
	inventoryScript *redis.Script
	releaseScript   *redis.Script
	// owner identifies this client's locks
	owner string
}

// NewClient creates a new Redis client with Lua scripts loaded
func NewClient(addr, password string, db int) (*Client, error) {
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

	return Wrap(rdb), nil
}

// Wrap builds a Client around an existing connection
func Wrap(rdb *redis.Client) *Client {
	return &Client{
		rdb:             rdb,
		inventoryScript: redis.NewScript(setInventoryScript),
		releaseScript:   redis.NewScript(releaseLockScript),
		owner:           uuid.NewString(),
	}
}

// Ping checks the connection
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

func inventoryKey(productID string) string {
	return "inventory:" + productID
}

// SetInventory caches a product's stock level. Writes carrying an older
// version than the cached one are dropped so out-of-order updates cannot
// roll the cache back. Returns true when the value was written.
func (c *Client) SetInventory(ctx context.Context, productID string, inventory int, version time.Time) (bool, error) {
	result, err := c.inventoryScript.Run(ctx, c.rdb,
		[]string{inventoryKey(productID)}, inventory, version.UnixMilli()).Result()
	if err != nil {
		return false, fmt.Errorf("set inventory script failed: %w", err)
	}

	written, ok := result.(int64)
	if !ok {
		return false, fmt.Errorf("unexpected script result type %T", result)
	}
	return written == 1, nil
}

// GetInventory returns the cached stock level and whether it was present
func (c *Client) GetInventory(ctx context.Context, productID string) (int, bool, error) {
	val, err := c.rdb.HGet(ctx, inventoryKey(productID), "inventory").Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}

	inventory, err := strconv.Atoi(val)
	if err != nil {
		return 0, false, fmt.Errorf("corrupt inventory cache for %s: %w", productID, err)
	}
	return inventory, true, nil
}

// ClaimIdempotencyKey stores value under key unless the key already exists.
// It returns the value stored under the key and whether this call stored it.
func (c *Client) ClaimIdempotencyKey(ctx context.Context, key, value string, ttl time.Duration) (string, bool, error) {
	k := fmt.Sprintf("idempotency:%s", key)

	ok, err := c.rdb.SetNX(ctx, k, value, ttl).Result()
	if err != nil {
		return "", false, err
	}
	if ok {
		return value, true, nil
	}

	existing, err := c.rdb.Get(ctx, k).Result()
	if errors.Is(err, redis.Nil) {
		return c.ClaimIdempotencyKey(ctx, key, value, ttl)
	}
	if err != nil {
		return "", false, err
	}
	return existing, false, nil
}

// ReleaseIdempotencyKey removes a claim, used when the guarded operation failed
func (c *Client) ReleaseIdempotencyKey(ctx context.Context, key string) error {
	return c.rdb.Del(ctx, fmt.Sprintf("idempotency:%s", key)).Err()
}

// AcquireLock acquires a distributed lock owned by this client
func (c *Client) AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, fmt.Sprintf("lock:%s", lockKey), c.owner, ttl).Result()
}

// ReleaseLock releases the lock if this client still holds it. A lock that
// expired and was taken by another client is left alone.
func (c *Client) ReleaseLock(ctx context.Context, lockKey string) error {
	err := c.releaseScript.Run(ctx, c.rdb, []string{fmt.Sprintf("lock:%s", lockKey)}, c.owner).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release lock script failed: %w", err)
	}
	return nil
}

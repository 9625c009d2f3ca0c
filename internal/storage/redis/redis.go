package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/redis/go-redis/v9"
	"sw360auth/internal/config"
	"sw360auth/internal/domain/models"
	"sw360auth/internal/storage"
	"time"
)

// Redis keys
// -- pkce: in-flight authorization attempt, keyed by OAuth state
const pkceKey = "pkce"

// Cache keeps authorization attempts in redis with a TTL, so several gateway instances can share them
type Cache struct {
	rdb *redis.Client
	now func() time.Time
}

// NewCache creates new instance of redis client
func NewCache(conf *config.RedisConfig) (*Cache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     conf.Addr(),
		Password: conf.Password,
		DB:       conf.DB,
	})

	return &Cache{rdb: rdb, now: time.Now}, nil
}

// NewCacheFromClient wraps an existing redis client
func NewCacheFromClient(rdb *redis.Client) *Cache {
	return &Cache{rdb: rdb, now: time.Now}
}

// Ping checks the connection
func (c *Cache) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close closes the client
func (c *Cache) Close() error {
	return c.rdb.Close()
}

// SavePKCE saves the attempt until it expires, fails if the state is already taken
func (c *Cache) SavePKCE(ctx context.Context, pkce *models.PKCE) error {
	const op = "storage.redis.SavePKCE"

	ttl := pkce.ExpiresAt.Sub(c.now())
	if ttl <= 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrAttemptExpired)
	}
	data, err := json.Marshal(pkce)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	ok, err := c.rdb.SetNX(ctx, attemptKey(pkce.State), data, ttl).Result()
	if err != nil {
		return fmt.Errorf("%s: failed to save pkce: %w", op, err)
	}
	if !ok {
		return fmt.Errorf("%s: %w", op, storage.ErrAttemptExists)
	}
	return nil
}

// ConsumePKCE atomically reads and deletes the attempt bound to state
func (c *Cache) ConsumePKCE(ctx context.Context, state string) (*models.PKCE, error) {
	const op = "storage.redis.ConsumePKCE"

	data, err := c.rdb.GetDel(ctx, attemptKey(state)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, storage.ErrAttemptNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	var pkce models.PKCE
	if err := json.Unmarshal(data, &pkce); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if pkce.Expired(c.now()) {
		return nil, storage.ErrAttemptExpired
	}
	return &pkce, nil
}

func attemptKey(state string) string {
	return fmt.Sprintf("%s:%s", pkceKey, state)
}

package remote

import (
	"context"
	"encoding/json"
	"fmt"

	"driftq/internal/config"
	"driftq/internal/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// RedisStore syncs records into a Redis-backed remote as JSON values
// keyed by "<prefix>:<collection>:<id>". Writes are upserts, which gives
// the replay-safety the queue expects from a remote store.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
	limiter   *rate.Limiter
}

// NewRedisClient creates a Redis client from configuration.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

// NewRedisStore wraps a client. A positive rps caps how fast drain
// batches hit the remote so a recovering backend is not flooded.
func NewRedisStore(client *redis.Client, keyPrefix string, rl config.RateLimitConfig) *RedisStore {
	var limiter *rate.Limiter
	if rl.RPS > 0 {
		burst := rl.Burst
		if burst <= 0 {
			burst = 5
		}
		limiter = rate.NewLimiter(rate.Limit(rl.RPS), burst)
	}
	if keyPrefix == "" {
		keyPrefix = "driftq"
	}
	return &RedisStore{client: client, keyPrefix: keyPrefix, limiter: limiter}
}

func (r *RedisStore) Create(ctx context.Context, collection string, record models.Record) error {
	id, ok := record.RecordID()
	if !ok {
		// The remote owns id assignment when the payload has none.
		id = uuid.NewString()
	}
	return r.put(ctx, collection, id, record)
}

func (r *RedisStore) Update(ctx context.Context, collection string, record models.Record) error {
	id, ok := record.RecordID()
	if !ok {
		return fmt.Errorf("update %s: record has no id", collection)
	}
	return r.put(ctx, collection, id, record)
}

func (r *RedisStore) Delete(ctx context.Context, collection string, id string) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if err := r.wait(ctx); err != nil {
		return err
	}
	if err := r.client.Del(ctx, r.key(collection, id)).Err(); err != nil {
		return fmt.Errorf("failed to delete %s/%s from redis: %w", collection, id, err)
	}
	return nil
}

func (r *RedisStore) put(ctx context.Context, collection, id string, record models.Record) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if err := r.wait(ctx); err != nil {
		return err
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	if err := r.client.Set(ctx, r.key(collection, id), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to set %s/%s in redis: %w", collection, id, err)
	}
	return nil
}

func (r *RedisStore) wait(ctx context.Context) error {
	if r.limiter == nil {
		return nil
	}
	return r.limiter.Wait(ctx)
}

func (r *RedisStore) key(collection, id string) string {
	return fmt.Sprintf("%s:%s:%s", r.keyPrefix, collection, id)
}

// Ping verifies the connection.
func Ping(ctx context.Context, client *redis.Client) error {
	if _, err := client.Ping(ctx).Result(); err != nil {
		return fmt.Errorf("failed to ping redis: %w", err)
	}
	return nil
}

// Close closes the underlying client.
func Close(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}

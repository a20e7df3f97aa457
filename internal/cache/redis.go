package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/zfogg/blog/backend/internal/logger"
	"go.uber.org/zap"
)

const tagPrefix = "tag:"

// RedisClient wraps redis.Client and implements Store. Tags are Redis sets
// named "tag:<tag>" whose members are cache keys.
type RedisClient struct {
	client *redis.Client
}

// invalidateScript deletes every member of each tag set plus the set itself
// in one atomic step, so a concurrent Set cannot slip between read and delete.
var invalidateScript = redis.NewScript(`
local n = 0
for _, tag in ipairs(KEYS) do
  local members = redis.call('SMEMBERS', tag)
  for _, key in ipairs(members) do
    n = n + redis.call('DEL', key)
  end
  redis.call('DEL', tag)
end
return n
`)

// NewRedisClient connects to host:port and verifies the connection.
func NewRedisClient(host, port, password string) (*RedisClient, error) {
	if host == "" {
		host = "localhost"
	}
	if port == "" {
		port = "6379"
	}
	addr := fmt.Sprintf("%s:%s", host, port)

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           0,
		MaxRetries:   3,
		PoolSize:     10,
		MinIdleConns: 2,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		DialTimeout:  5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.ErrorWithFields("Failed to connect to Redis", err, zap.String("address", addr))
		return nil, err
	}

	logger.Log.Info("✅ Redis client connected", zap.String("address", addr))
	return &RedisClient{client: client}, nil
}

// NewRedisClientFromClient wraps an existing client.
func NewRedisClientFromClient(client *redis.Client) *RedisClient {
	return &RedisClient{client: client}
}

// Close closes the Redis connection gracefully
func (rc *RedisClient) Close() error {
	if rc == nil || rc.client == nil {
		return nil
	}
	return rc.client.Close()
}

func (rc *RedisClient) Get(ctx context.Context, key string) (string, error) {
	val, err := rc.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrMiss
	}
	return val, err
}

// Set writes the value and its tag memberships in one MULTI. Each tag set's
// TTL is only ever raised (NX then GT), so a tag outlives all of its members.
// EXPIRE NX/GT needs Redis 7.
func (rc *RedisClient) Set(ctx context.Context, key, value string, ttl time.Duration, tags ...string) error {
	pipe := rc.client.TxPipeline()
	pipe.Set(ctx, key, value, ttl)
	for _, tag := range tags {
		tagKey := tagPrefix + tag
		pipe.SAdd(ctx, tagKey, key)
		if ttl > 0 {
			pipe.ExpireNX(ctx, tagKey, ttl)
			pipe.ExpireGT(ctx, tagKey, ttl)
		}
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (rc *RedisClient) InvalidateTags(ctx context.Context, tags ...string) (int64, error) {
	if len(tags) == 0 {
		return 0, nil
	}
	keys := make([]string, len(tags))
	for i, tag := range tags {
		keys[i] = tagPrefix + tag
	}
	return invalidateScript.Run(ctx, rc.client, keys).Int64()
}

func (rc *RedisClient) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return rc.client.Del(ctx, keys...).Err()
}

func (rc *RedisClient) IncrBy(ctx context.Context, key string, n int64) (int64, error) {
	return rc.client.IncrBy(ctx, key, n).Result()
}

func (rc *RedisClient) IncrWithExpiry(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	pipe := rc.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

func (rc *RedisClient) TakeInt(ctx context.Context, key string) (int64, error) {
	n, err := rc.client.GetDel(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return n, err
}

// Keys walks the keyspace with SCAN rather than KEYS.
func (rc *RedisClient) Keys(ctx context.Context, pattern string) ([]string, error) {
	var out []string
	iter := rc.client.Scan(ctx, 0, pattern, 500).Iterator()
	for iter.Next(ctx) {
		out = append(out, iter.Val())
	}
	return out, iter.Err()
}

func (rc *RedisClient) Ping(ctx context.Context) error {
	return rc.client.Ping(ctx).Err()
}

var _ Store = (*RedisClient)(nil)

package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/okian/stripe-connect/pkg/metrics"
)

// Redis is a Backend on a Redis server. Values are plain string keys and
// lists are sorted sets scored by a per-list sequence, so ordering holds
// across processes sharing the server.
type Redis struct {
	client *redis.Client
	prefix string
}

// seqSuffix names the counter key kept next to each list.
const seqSuffix = "#seq"

// addScript scores the member with the next value of the list's counter.
// Scores stay below 2^53 and are exact in a float64.
var addScript = redis.NewScript(`
local seq = redis.call("INCR", KEYS[2])
redis.call("ZADD", KEYS[1], seq, ARGV[1])
return seq
`)

var _ Backend = (*Redis)(nil)

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRedis connects to Redis and checks the connection.
func NewRedis(ctx context.Context, cfg RedisConfig, opts ...Option) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("storage: connect to redis: %w", err)
	}
	return NewRedisWithClient(client, opts...), nil
}

// NewRedisWithClient wraps an existing client.
func NewRedisWithClient(client *redis.Client, opts ...Option) *Redis {
	o := buildOptions(opts)
	return &Redis{client: client, prefix: o.prefix}
}

func (r *Redis) key(k string) string {
	return r.prefix + k
}

func record(op string, err error) error {
	if err != nil {
		metrics.RecordStorageOp(op, "error")
		return fmt.Errorf("storage: %s: %w", op, err)
	}
	metrics.RecordStorageOp(op, "ok")
	return nil
}

func (r *Redis) Get(ctx context.Context, key string) (string, error) {
	v, err := r.client.Get(ctx, r.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		metrics.RecordStorageOp("get", "miss")
		return "", ErrNotFound
	}
	if err != nil {
		return "", record("get", err)
	}
	metrics.RecordStorageOp("get", "hit")
	return v, nil
}

func (r *Redis) Set(ctx context.Context, key, value string) error {
	return record("set", r.client.Set(ctx, r.key(key), value, 0).Err())
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	return record("delete", r.client.Del(ctx, r.key(key)).Err())
}

func (r *Redis) Add(ctx context.Context, path, id string) error {
	key := r.key(path)
	err := addScript.Run(ctx, r.client, []string{key, key + seqSuffix}, id).Err()
	return record("list_add", err)
}

func (r *Redis) Remove(ctx context.Context, path, id string) error {
	return record("list_remove", r.client.ZRem(ctx, r.key(path), id).Err())
}

func (r *Redis) Exists(ctx context.Context, path, id string) (bool, error) {
	err := r.client.ZScore(ctx, r.key(path), id).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, record("list_exists", err)
	}
	return true, nil
}

func (r *Redis) Count(ctx context.Context, path string) (int, error) {
	n, err := r.client.ZCard(ctx, r.key(path)).Result()
	if err != nil {
		return 0, record("list_count", err)
	}
	return int(n), nil
}

func (r *Redis) List(ctx context.Context, path string, offset, limit int) ([]string, error) {
	if limit <= 0 || offset < 0 {
		return []string{}, nil
	}
	return r.rangeIDs(ctx, path, int64(offset), int64(offset+limit-1))
}

func (r *Redis) ListAll(ctx context.Context, path string) ([]string, error) {
	return r.rangeIDs(ctx, path, 0, -1)
}

func (r *Redis) rangeIDs(ctx context.Context, path string, start, stop int64) ([]string, error) {
	ids, err := r.client.ZRevRange(ctx, r.key(path), start, stop).Result()
	if err := record("list_range", err); err != nil {
		return nil, err
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

// Close closes the underlying client.
func (r *Redis) Close() error {
	return r.client.Close()
}

package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// CounterStore — минимальный контракт общего хранилища счётчиков.
// Инкремент и выставление TTL — две отдельные операции: если процесс упадёт
// между ними, ключ останется без TTL до ручной очистки.
type CounterStore interface {
	// Incr атомарно увеличивает счётчик и возвращает новое значение.
	Incr(ctx context.Context, key string) (int64, error)
	// PExpire выставляет ключу TTL с миллисекундной точностью.
	PExpire(ctx context.Context, key string, ttl time.Duration) error
}

// RedisStore — CounterStore поверх Redis.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
}

// Connect создаёт клиент Redis из URL (например, redis://:pass@host:6379/0)
// и проверяет соединение.
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	const op = "ratelimit.Connect"

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	rdb := redis.NewClient(opt)

	// Fail-fast на старте.
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return rdb, nil
}

// NewRedisStore оборачивает клиент. Ключи пишутся как есть, если prefix пустой.
func NewRedisStore(rdb *redis.Client, prefix string) *RedisStore {
	return &RedisStore{rdb: rdb, prefix: prefix}
}

func (s *RedisStore) key(k string) string { return s.prefix + k }

func (s *RedisStore) Incr(ctx context.Context, key string) (int64, error) {
	return s.rdb.Incr(ctx, s.key(key)).Result()
}

func (s *RedisStore) PExpire(ctx context.Context, key string, ttl time.Duration) error {
	return s.rdb.PExpire(ctx, s.key(key), ttl).Err()
}

var _ CounterStore = (*RedisStore)(nil)

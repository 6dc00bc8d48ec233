package identity

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore shares the identity between terminals through one key.
type RedisStore struct {
	Client *redis.Client
	Key    string
}

func NewRedisStore(addr, prefix string) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisStore{Client: rdb, Key: prefix + ":user_id"}, nil
}

func (r *RedisStore) Load(ctx context.Context) (int64, bool, error) {
	raw, err := r.Client.Get(ctx, r.Key).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("parse %s: %w", r.Key, err)
	}
	return id, id > 0, nil
}

func (r *RedisStore) Save(ctx context.Context, userID int64) error {
	return r.Client.Set(ctx, r.Key, strconv.FormatInt(userID, 10), 0).Err()
}

func (r *RedisStore) Clear(ctx context.Context) error {
	return r.Client.Del(ctx, r.Key).Err()
}

func (r *RedisStore) Close() error {
	return r.Client.Close()
}

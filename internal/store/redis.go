package store

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

const redisNamespace = "capitalquiz:"

// Redis stores blobs under a namespaced key, no expiry: the session blob
// lives until an explicit reset.
type Redis struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func (r *Redis) Save(ctx context.Context, key string, data []byte) error {
	return r.client.Set(ctx, redisNamespace+key, data, 0).Err()
}

func (r *Redis) Load(ctx context.Context, key string) ([]byte, error) {
	data, err := r.client.Get(ctx, redisNamespace+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	return data, err
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, redisNamespace+key).Err()
}

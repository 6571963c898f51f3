package pricecache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Redis is the distributed Cache variant. Points live in a capped list per
// key, newest first.
type Redis struct {
	client   *redis.Client
	capacity int64
}

// NewRedis connects to the given address and returns a redis-backed cache.
func NewRedis(addr string, capacity int) (*Redis, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("pricecache: connect redis at %s: %w", addr, err)
	}
	if capacity <= 0 {
		capacity = 288
	}
	return &Redis{client: client, capacity: int64(capacity)}, nil
}

func redisKey(key string) string {
	return "pricehist:" + key
}

// Append pushes the observation and trims the list to capacity.
func (r *Redis) Append(key string, p Point) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	ctx := context.Background()
	pipe := r.client.TxPipeline()
	pipe.LPush(ctx, redisKey(key), data)
	pipe.LTrim(ctx, redisKey(key), 0, r.capacity-1)
	_, err = pipe.Exec(ctx)
	return err
}

// Latest returns the newest observation for the key.
func (r *Redis) Latest(key string) (*Point, error) {
	data, err := r.client.LIndex(context.Background(), redisKey(key), 0).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var p Point
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// History returns observations oldest-first.
func (r *Redis) History(key string) ([]Point, error) {
	items, err := r.client.LRange(context.Background(), redisKey(key), 0, r.capacity-1).Result()
	if err != nil {
		return nil, err
	}
	// List is newest-first; reverse while decoding.
	out := make([]Point, 0, len(items))
	for i := len(items) - 1; i >= 0; i-- {
		var p Point
		if err := json.Unmarshal([]byte(items[i]), &p); err != nil {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

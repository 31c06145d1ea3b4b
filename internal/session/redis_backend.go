package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisKeyPrefix はRedis上のセッションキーの接頭辞。
const redisKeyPrefix = "intelitalk:session:"

// RedisClient はRedisBackendが使用するコマンドの部分集合。
// *redis.Clientと*redis.ClusterClientが満たす。
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisBackend はRedisにセッションを保存するBackend。
// 有効期限はRedisのキーTTLに任せる。
type RedisBackend struct {
	client RedisClient
}

// NewRedisBackend はRedisBackendを生成する。
func NewRedisBackend(client RedisClient) *RedisBackend {
	return &RedisBackend{client: client}
}

// Get は指定IDのデータを返す。キーが存在しない場合はnil, nilを返す。
func (b *RedisBackend) Get(ctx context.Context, id string) ([]byte, error) {
	data, err := b.client.Get(ctx, redisKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session from redis: %w", err)
	}
	return data, nil
}

// Set は指定IDにデータをTTL付きで保存する。
func (b *RedisBackend) Set(ctx context.Context, id string, data []byte, ttl time.Duration) error {
	if err := b.client.Set(ctx, redisKeyPrefix+id, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set session in redis: %w", err)
	}
	return nil
}

// Delete は指定IDのデータを削除する。
func (b *RedisBackend) Delete(ctx context.Context, id string) error {
	if err := b.client.Del(ctx, redisKeyPrefix+id).Err(); err != nil {
		return fmt.Errorf("failed to delete session from redis: %w", err)
	}
	return nil
}

// compile-time interface check
var _ Backend = (*RedisBackend)(nil)

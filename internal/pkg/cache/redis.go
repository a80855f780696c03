package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"pomelo/internal/config"
	"pomelo/internal/model"
)

// RedisCache Redis 缓存封装
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache 创建 Redis 缓存客户端
func NewRedisCache(cfg *config.RedisConfig) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisCache{client: client}, nil
}

// Set 设置缓存
func (c *RedisCache) Set(ctx context.Context, key string, value any, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, data, expiration).Err()
}

// Get 获取缓存
func (c *RedisCache) Get(ctx context.Context, key string, dest any) error {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

// Delete 删除缓存
func (c *RedisCache) Delete(ctx context.Context, keys ...string) error {
	return c.client.Del(ctx, keys...).Err()
}

// Exists 检查 key 是否存在
func (c *RedisCache) Exists(ctx context.Context, key string) (bool, error) {
	n, err := c.client.Exists(ctx, key).Result()
	return n > 0, err
}

// Close 关闭连接
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// Client 获取原始客户端
func (c *RedisCache) Client() *redis.Client {
	return c.client
}

// 常用 key 模式
const (
	CompletionCacheKeyPrefix = "chat:"
	CompletionCacheTTL       = 10 * time.Minute
)

// CompletionCacheKey 生成同步对话结果的缓存 key
// 模型、对话历史和采样参数完全相同的请求映射到同一个 key
func CompletionCacheKey(modelName string, messages []model.Message, opts *model.ChatOptions) string {
	h := sha256.New()
	h.Write([]byte(modelName))
	for _, msg := range messages {
		h.Write([]byte{0})
		h.Write([]byte(msg.Role))
		h.Write([]byte{0})
		h.Write([]byte(msg.Content))
	}
	if opts != nil {
		if opts.Temperature != nil {
			fmt.Fprintf(h, "|temp=%g", *opts.Temperature)
		}
		if opts.MaxTokens != nil {
			fmt.Fprintf(h, "|max=%d", *opts.MaxTokens)
		}
		if opts.TopP != nil {
			fmt.Fprintf(h, "|top_p=%g", *opts.TopP)
		}
	}
	return CompletionCacheKeyPrefix + hex.EncodeToString(h.Sum(nil))
}

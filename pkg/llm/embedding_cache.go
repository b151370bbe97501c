package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/kart-io/logger"
	goredis "github.com/redis/go-redis/v9"

	"github.com/kart-io/docqa/pkg/utils/json"
)

// EmbeddingCacheConfig Embedding 缓存配置。
type EmbeddingCacheConfig struct {
	// Enabled 是否启用缓存。
	Enabled bool
	// TTL 缓存过期时间。
	TTL time.Duration
	// KeyPrefix 缓存键前缀。
	KeyPrefix string
	// Namespace 区分不同模型的向量，通常为模型名。
	Namespace string
}

// DefaultEmbeddingCacheConfig 返回默认的 Embedding 缓存配置。
func DefaultEmbeddingCacheConfig() *EmbeddingCacheConfig {
	return &EmbeddingCacheConfig{
		Enabled:   true,
		TTL:       24 * time.Hour,
		KeyPrefix: "docqa:emb:",
	}
}

// CachedEmbeddingProvider 为 EmbeddingProvider 增加 Redis 缓存。
// Redis 出错时退化为直接调用底层 provider。
type CachedEmbeddingProvider struct {
	provider EmbeddingProvider
	redis    goredis.UniversalClient
	config   *EmbeddingCacheConfig
}

// NewCachedEmbeddingProvider 创建带缓存的 Embedding Provider。
func NewCachedEmbeddingProvider(provider EmbeddingProvider, redis goredis.UniversalClient, config *EmbeddingCacheConfig) *CachedEmbeddingProvider {
	if config == nil {
		config = DefaultEmbeddingCacheConfig()
	}
	return &CachedEmbeddingProvider{provider: provider, redis: redis, config: config}
}

func (c *CachedEmbeddingProvider) cacheKey(text string) string {
	hash := sha256.Sum256([]byte(c.config.Namespace + "\x00" + text))
	return c.config.KeyPrefix + hex.EncodeToString(hash[:])
}

// Embed 批量生成 Embedding，只对未命中的文本调用底层 provider。
func (c *CachedEmbeddingProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if !c.config.Enabled || c.redis == nil || len(texts) == 0 {
		return c.provider.Embed(ctx, texts)
	}

	keys := make([]string, len(texts))
	for i, text := range texts {
		keys[i] = c.cacheKey(text)
	}

	embeddings := make([][]float32, len(texts))
	var missIdx []int

	values, err := c.redis.MGet(ctx, keys...).Result()
	if err != nil {
		logger.Warnw("embedding cache lookup failed, falling back to provider", "error", err.Error())
		values = make([]any, len(texts))
	}
	for i, v := range values {
		s, ok := v.(string)
		if ok {
			var vec []float32
			if err := json.Unmarshal([]byte(s), &vec); err == nil {
				embeddings[i] = vec
				continue
			}
			logger.Warnw("discarding corrupt cached embedding", "key", keys[i])
		}
		missIdx = append(missIdx, i)
	}

	if len(missIdx) == 0 {
		logger.Debugw("all embeddings served from cache", "total", len(texts))
		return embeddings, nil
	}

	missTexts := make([]string, len(missIdx))
	for i, idx := range missIdx {
		missTexts[i] = texts[idx]
	}
	logger.Debugw("embedding cache miss", "total", len(texts), "uncached", len(missTexts))

	fresh, err := c.provider.Embed(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(fresh) != len(missTexts) {
		return nil, errors.New("embedding provider returned mismatched vector count")
	}

	pipe := c.redis.Pipeline()
	for i, idx := range missIdx {
		embeddings[idx] = fresh[i]
		data, err := json.Marshal(fresh[i])
		if err != nil {
			continue
		}
		pipe.Set(ctx, keys[idx], data, c.config.TTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		logger.Warnw("failed to cache embeddings", "error", err.Error())
	}

	return embeddings, nil
}

// Name 返回底层 provider 的名称。
func (c *CachedEmbeddingProvider) Name() string {
	return c.provider.Name() + "-cached"
}

// MaxBatchSize 透传底层 provider 的批大小限制。
func (c *CachedEmbeddingProvider) MaxBatchSize() int {
	if bl, ok := c.provider.(BatchLimiter); ok {
		return bl.MaxBatchSize()
	}
	return 0
}

// ClearCache 清除所有 Embedding 缓存。
func (c *CachedEmbeddingProvider) ClearCache(ctx context.Context) (int, error) {
	if !c.config.Enabled || c.redis == nil {
		return 0, nil
	}

	iter := c.redis.Scan(ctx, 0, c.config.KeyPrefix+"*", 0).Iterator()
	deleted := 0
	for iter.Next(ctx) {
		if err := c.redis.Del(ctx, iter.Val()).Err(); err != nil {
			logger.Warnw("failed to delete cache key", "error", err.Error(), "key", iter.Val())
			continue
		}
		deleted++
	}
	if err := iter.Err(); err != nil {
		return deleted, err
	}

	logger.Infow("cleared embedding cache", "deleted_count", deleted)
	return deleted, nil
}

var (
	_ EmbeddingProvider = (*CachedEmbeddingProvider)(nil)
	_ BatchLimiter      = (*CachedEmbeddingProvider)(nil)
)

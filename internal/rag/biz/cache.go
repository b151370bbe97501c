package biz

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	stderrors "errors"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/kart-io/logger"
	goredis "github.com/redis/go-redis/v9"

	"github.com/kart-io/docqa/pkg/utils/json"
)

// QueryCacheConfig 查询缓存配置。
type QueryCacheConfig struct {
	// Enabled 是否启用缓存。
	Enabled bool
	// TTL 缓存过期时间。
	TTL time.Duration
	// KeyPrefix 缓存键前缀。
	KeyPrefix string
}

// QueryCache 缓存无历史对话的查询结果。文档集合变化时整体清空。
type QueryCache struct {
	redis  goredis.UniversalClient
	config QueryCacheConfig
}

// NewQueryCache 创建查询缓存实例。
func NewQueryCache(redis goredis.UniversalClient, config QueryCacheConfig) *QueryCache {
	if config.TTL <= 0 {
		config.TTL = 10 * time.Minute
	}
	if config.KeyPrefix == "" {
		config.KeyPrefix = "docqa:query:"
	}
	return &QueryCache{redis: redis, config: config}
}

func (c *QueryCache) enabled() bool {
	return c != nil && c.config.Enabled && c.redis != nil
}

// cacheKey 由问题、文档范围和 k 生成缓存键（SHA256）。
func (c *QueryCache) cacheKey(question string, documentIDs []string, k int) string {
	docs := append([]string(nil), documentIDs...)
	sort.Strings(docs)

	h := sha256.New()
	h.Write([]byte(strings.TrimSpace(question)))
	h.Write([]byte{0})
	h.Write([]byte(strings.Join(docs, "\x1f")))
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(k)))
	return c.config.KeyPrefix + hex.EncodeToString(h.Sum(nil))
}

// Get 读取缓存结果。未命中返回 (nil, nil)。
func (c *QueryCache) Get(ctx context.Context, question string, documentIDs []string, k int) (*QueryResult, error) {
	if !c.enabled() {
		return nil, nil
	}
	key := c.cacheKey(question, documentIDs, k)

	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if stderrors.Is(err, goredis.Nil) {
			logger.Debugw("query cache miss", "key", key)
			return nil, nil
		}
		logger.Warnw("failed to get from query cache", "error", err.Error(), "key", key)
		return nil, err
	}

	var result QueryResult
	if err := json.Unmarshal(data, &result); err != nil {
		logger.Warnw("failed to unmarshal cached query result", "error", err.Error(), "key", key)
		_ = c.redis.Del(ctx, key).Err()
		return nil, err
	}

	logger.Debugw("query cache hit", "key", key)
	return &result, nil
}

// Set 写入缓存结果。
func (c *QueryCache) Set(ctx context.Context, question string, documentIDs []string, k int, result *QueryResult) error {
	if !c.enabled() {
		return nil
	}
	key := c.cacheKey(question, documentIDs, k)

	data, err := json.Marshal(result)
	if err != nil {
		logger.Warnw("failed to marshal query result for caching", "error", err.Error())
		return err
	}
	if err := c.redis.Set(ctx, key, data, c.config.TTL).Err(); err != nil {
		logger.Warnw("failed to set query cache", "error", err.Error(), "key", key)
		return err
	}
	return nil
}

// Clear 删除所有查询缓存，返回删除的键数量。
func (c *QueryCache) Clear(ctx context.Context) (int, error) {
	if !c.enabled() {
		return 0, nil
	}

	iter := c.redis.Scan(ctx, 0, c.config.KeyPrefix+"*", 100).Iterator()
	deleted := 0
	for iter.Next(ctx) {
		if err := c.redis.Del(ctx, iter.Val()).Err(); err != nil {
			logger.Warnw("failed to delete query cache key", "error", err.Error(), "key", iter.Val())
			continue
		}
		deleted++
	}
	if err := iter.Err(); err != nil {
		logger.Warnw("error during query cache scan", "error", err.Error())
		return deleted, err
	}

	if deleted > 0 {
		logger.Infow("cleared query cache", "deleted", deleted)
	}
	return deleted, nil
}

// CacheStats 缓存统计信息。
type CacheStats struct {
	Enabled   bool   `json:"enabled"`
	Keys      int    `json:"keys"`
	TTL       string `json:"ttl,omitempty"`
	KeyPrefix string `json:"key_prefix,omitempty"`
}

// Stats 返回缓存统计信息。
func (c *QueryCache) Stats(ctx context.Context) (*CacheStats, error) {
	if !c.enabled() {
		return &CacheStats{Enabled: false}, nil
	}

	iter := c.redis.Scan(ctx, 0, c.config.KeyPrefix+"*", 100).Iterator()
	keys := 0
	for iter.Next(ctx) {
		keys++
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return &CacheStats{
		Enabled:   true,
		Keys:      keys,
		TTL:       c.config.TTL.String(),
		KeyPrefix: c.config.KeyPrefix,
	}, nil
}

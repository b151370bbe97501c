package biz

import (
	"context"
	"strings"
	"time"

	"github.com/kart-io/logger"

	"github.com/kart-io/docqa/internal/rag/metrics"
	"github.com/kart-io/docqa/internal/rag/store"
)

// RetrieverConfig 检索器配置。
type RetrieverConfig struct {
	// TopK 请求未指定时的检索数量。
	TopK int
	// MaxTopK 单次请求允许的最大检索数量。
	MaxTopK int
	// IndexTimeout 向量库调用超时。
	IndexTimeout time.Duration
}

// Retriever 将问题向量化后查询向量索引。
type Retriever struct {
	embedder *Embedder
	index    store.VectorIndex
	config   RetrieverConfig
	metrics  *metrics.Metrics
}

// NewRetriever 创建检索器实例。
func NewRetriever(embedder *Embedder, index store.VectorIndex, config RetrieverConfig, m *metrics.Metrics) *Retriever {
	if config.TopK <= 0 {
		config.TopK = 5
	}
	if config.MaxTopK < config.TopK {
		config.MaxTopK = config.TopK
	}
	return &Retriever{embedder: embedder, index: index, config: config, metrics: m}
}

// ResolveTopK 将请求的 k 规整到 [1, MaxTopK]，k <= 0 时使用默认值。
func (r *Retriever) ResolveTopK(k int) int {
	if k <= 0 {
		return r.config.TopK
	}
	return min(k, r.config.MaxTopK)
}

// Retrieve 返回与 query 最相关的至多 k 个分块。
// 空问题或空索引得到空结果，不视为错误。
func (r *Retriever) Retrieve(ctx context.Context, query string, k int, filter store.Filter) (*store.RetrievalResult, error) {
	if strings.TrimSpace(query) == "" {
		return &store.RetrievalResult{Hits: []store.Hit{}}, nil
	}
	k = r.ResolveTopK(k)

	start := time.Now()
	result, err := r.retrieve(ctx, query, k, filter)
	r.metrics.RecordRetrieval(time.Since(start), result.Len(), err)
	if err != nil {
		return nil, err
	}

	logger.Debugw("retrieval completed",
		"k", k,
		"hits", result.Len(),
		"documents", len(filter.DocumentIDs),
		"duration", time.Since(start),
	)
	return result, nil
}

func (r *Retriever) retrieve(ctx context.Context, query string, k int, filter store.Filter) (*store.RetrievalResult, error) {
	embedded, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}

	queryCtx, cancel := withTimeout(ctx, r.config.IndexTimeout)
	defer cancel()

	result, err := r.index.Query(queryCtx, embedded.Vectors[0], k, filter)
	if err != nil {
		return nil, err
	}
	if len(result.Hits) > k {
		result.Hits = result.Hits[:k]
	}
	return result, nil
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

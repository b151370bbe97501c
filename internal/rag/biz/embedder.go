package biz

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kart-io/logger"

	"github.com/kart-io/docqa/internal/rag/metrics"
	"github.com/kart-io/docqa/pkg/llm"
	"github.com/kart-io/docqa/pkg/llm/resilience"
)

// EmbedderConfig 向量化配置。
type EmbedderConfig struct {
	// BatchSize 单次调用的最大文本数，供应商声明的上限更小时以供应商为准。
	BatchSize int
	// MaxAttempts 每批最大尝试次数（含首次）。
	MaxAttempts int
	// InitialBackoff 首次重试前的等待时间，之后指数增长。
	InitialBackoff time.Duration
	// MaxBackoff 单次等待上限。
	MaxBackoff time.Duration
	// CallTimeout 单次供应商调用超时。
	CallTimeout time.Duration
	// Sleep 重试等待函数，为空时使用计时器。
	Sleep resilience.SleepFunc
}

// DefaultEmbedderConfig 返回默认向量化配置。
func DefaultEmbedderConfig() EmbedderConfig {
	return EmbedderConfig{
		BatchSize:      64,
		MaxAttempts:    3,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     10 * time.Second,
		CallTimeout:    60 * time.Second,
	}
}

// EmbedResult 是一次向量化的结果。Vectors[i] 对应输入 texts[i]，
// 被跳过的空白文本在 Omitted 中列出，其向量为 nil。
type EmbedResult struct {
	Vectors   [][]float32
	Omitted   []int
	Dimension int
}

// Embedder 分批调用 Embedding 供应商并做有界重试。
type Embedder struct {
	provider llm.EmbeddingProvider
	config   EmbedderConfig
	metrics  *metrics.Metrics
}

// NewEmbedder 创建向量化器。
func NewEmbedder(provider llm.EmbeddingProvider, config EmbedderConfig, m *metrics.Metrics) *Embedder {
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultEmbedderConfig().BatchSize
	}
	if bl, ok := provider.(llm.BatchLimiter); ok {
		if limit := bl.MaxBatchSize(); limit > 0 && limit < config.BatchSize {
			config.BatchSize = limit
		}
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 1
	}
	return &Embedder{provider: provider, config: config, metrics: m}
}

// Name 返回底层供应商名称。
func (e *Embedder) Name() string {
	return e.provider.Name()
}

// Embed 为 texts 生成向量。批次之间检查取消。
func (e *Embedder) Embed(ctx context.Context, texts []string) (*EmbedResult, error) {
	result := &EmbedResult{Vectors: make([][]float32, len(texts))}

	pending := make([]int, 0, len(texts))
	for i, t := range texts {
		if strings.TrimSpace(t) == "" {
			result.Omitted = append(result.Omitted, i)
			continue
		}
		pending = append(pending, i)
	}

	for from := 0; from < len(pending); from += e.config.BatchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		idx := pending[from:min(from+e.config.BatchSize, len(pending))]
		batch := make([]string, len(idx))
		for j, i := range idx {
			batch[j] = texts[i]
		}

		vectors, err := e.embedBatch(ctx, batch)
		if err != nil {
			return nil, err
		}

		for j, v := range vectors {
			if result.Dimension == 0 {
				result.Dimension = len(v)
			}
			if len(v) == 0 || len(v) != result.Dimension {
				return nil, &EmbeddingError{Err: fmt.Errorf(
					"provider %s returned inconsistent dimensions %d and %d", e.provider.Name(), result.Dimension, len(v))}
			}
			result.Vectors[idx[j]] = v
		}
	}

	if len(result.Omitted) > 0 {
		logger.Debugw("embedding skipped blank texts", "omitted", len(result.Omitted), "total", len(texts))
	}
	return result, nil
}

func (e *Embedder) embedBatch(ctx context.Context, batch []string) ([][]float32, error) {
	start := time.Now()

	var vectors [][]float32
	err := resilience.RetryWithBackoff(ctx, &resilience.RetryConfig{
		MaxAttempts:     e.config.MaxAttempts,
		InitialDelay:    e.config.InitialBackoff,
		MaxDelay:        e.config.MaxBackoff,
		Multiplier:      2,
		RetryableErrors: resilience.IsRetryableError,
		Sleep:           e.config.Sleep,
		OnRetry: func(attempt int, err error) {
			e.metrics.RecordEmbeddingRetry()
			logger.Warnw("embedding batch failed, retrying",
				"provider", e.provider.Name(),
				"attempt", attempt,
				"batch", len(batch),
				"error", err.Error(),
			)
		},
	}, func(ctx context.Context) error {
		callCtx, cancel := e.callContext(ctx)
		defer cancel()

		var err error
		vectors, err = e.provider.Embed(callCtx, batch)
		return err
	})
	e.metrics.RecordEmbedding(time.Since(start), err)

	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("embedding cancelled: %w", err)
		}
		return nil, &EmbeddingError{Err: err}
	}
	if len(vectors) != len(batch) {
		return nil, &EmbeddingError{Err: fmt.Errorf(
			"provider %s returned %d vectors for %d texts", e.provider.Name(), len(vectors), len(batch))}
	}
	return vectors, nil
}

func (e *Embedder) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.config.CallTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, e.config.CallTimeout)
}

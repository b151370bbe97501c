// Package metrics 提供 docqa 的 Prometheus 业务指标。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "docqa"

// Metrics 汇总入库、向量化、检索、生成与缓存指标。
// 所有方法在接收者为 nil 时不做任何事，便于在测试中省略。
type Metrics struct {
	registry *prometheus.Registry

	ingestTotal    *prometheus.CounterVec
	ingestDuration *prometheus.HistogramVec
	chunksIndexed  prometheus.Counter
	chunksOmitted  prometheus.Counter

	embedCalls    *prometheus.CounterVec
	embedDuration prometheus.Histogram
	embedRetries  prometheus.Counter

	queriesTotal      *prometheus.CounterVec
	retrievalDuration prometheus.Histogram
	retrievedChunks   prometheus.Histogram

	llmCalls    *prometheus.CounterVec
	llmDuration prometheus.Histogram
	llmRetries  prometheus.Counter
	llmTokens   *prometheus.CounterVec

	cacheLookups *prometheus.CounterVec
	cacheWrites  *prometheus.CounterVec
}

// New 创建指标集合并注册到独立的 Registry。
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		ingestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "ingest", Name: "documents_total",
			Help: "Documents ingested, by document type and final status.",
		}, []string{"type", "status"}),
		ingestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "ingest", Name: "duration_seconds",
			Help:    "End-to-end ingestion latency by document type.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"type"}),
		chunksIndexed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "ingest", Name: "chunks_indexed_total",
			Help: "Chunks written to the vector index.",
		}),
		chunksOmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "ingest", Name: "chunks_omitted_total",
			Help: "Chunks skipped because they had no embeddable text.",
		}),

		embedCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "embedding", Name: "calls_total",
			Help: "Embedding provider batch calls by result.",
		}, []string{"result"}),
		embedDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "embedding", Name: "duration_seconds",
			Help:    "Embedding batch latency including retries.",
			Buckets: prometheus.DefBuckets,
		}),
		embedRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "embedding", Name: "retries_total",
			Help: "Embedding batch retries.",
		}),

		queriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "query", Name: "total",
			Help: "Queries answered by result (hit, miss, error).",
		}, []string{"result"}),
		retrievalDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "retrieval", Name: "duration_seconds",
			Help:    "Retrieval latency including the query embedding.",
			Buckets: prometheus.DefBuckets,
		}),
		retrievedChunks: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "retrieval", Name: "hits",
			Help:    "Chunks returned per retrieval.",
			Buckets: prometheus.LinearBuckets(0, 5, 11),
		}),

		llmCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "generation", Name: "calls_total",
			Help: "Chat provider calls by result.",
		}, []string{"result"}),
		llmDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "generation", Name: "duration_seconds",
			Help:    "Answer generation latency including retries.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		llmRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "generation", Name: "retries_total",
			Help: "Chat provider retries.",
		}),
		llmTokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "generation", Name: "tokens_total",
			Help: "Tokens reported by the chat provider.",
		}, []string{"kind"}),

		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "cache", Name: "lookups_total",
			Help: "Query cache lookups by result.",
		}, []string{"result"}),
		cacheWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "cache", Name: "writes_total",
			Help: "Query cache writes by result.",
		}, []string{"result"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.ingestTotal, m.ingestDuration, m.chunksIndexed, m.chunksOmitted,
		m.embedCalls, m.embedDuration, m.embedRetries,
		m.queriesTotal, m.retrievalDuration, m.retrievedChunks,
		m.llmCalls, m.llmDuration, m.llmRetries, m.llmTokens,
		m.cacheLookups, m.cacheWrites,
	)
	return m
}

// Registry 返回底层 Registry。
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler 返回 /metrics 的 HTTP handler。
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// RecordIngest 记录一次入库的最终状态。
func (m *Metrics) RecordIngest(docType, status string, chunks, omitted int, d time.Duration) {
	if m == nil {
		return
	}
	m.ingestTotal.WithLabelValues(docType, status).Inc()
	m.ingestDuration.WithLabelValues(docType).Observe(d.Seconds())
	m.chunksIndexed.Add(float64(chunks))
	m.chunksOmitted.Add(float64(omitted))
}

// RecordEmbedding 记录一次 Embedding 批量调用。
func (m *Metrics) RecordEmbedding(d time.Duration, err error) {
	if m == nil {
		return
	}
	m.embedCalls.WithLabelValues(result(err)).Inc()
	m.embedDuration.Observe(d.Seconds())
}

// RecordEmbeddingRetry 记录一次 Embedding 重试。
func (m *Metrics) RecordEmbeddingRetry() {
	if m == nil {
		return
	}
	m.embedRetries.Inc()
}

// RecordQuery 记录查询结果。
func (m *Metrics) RecordQuery(cacheHit bool, err error) {
	if m == nil {
		return
	}
	switch {
	case err != nil:
		m.queriesTotal.WithLabelValues("error").Inc()
	case cacheHit:
		m.queriesTotal.WithLabelValues("hit").Inc()
	default:
		m.queriesTotal.WithLabelValues("miss").Inc()
	}
}

// RecordRetrieval 记录检索耗时与命中数。
func (m *Metrics) RecordRetrieval(d time.Duration, hits int, err error) {
	if m == nil {
		return
	}
	m.retrievalDuration.Observe(d.Seconds())
	if err == nil {
		m.retrievedChunks.Observe(float64(hits))
	}
}

// RecordLLMCall 记录一次答案生成。
func (m *Metrics) RecordLLMCall(d time.Duration, promptTokens, completionTokens int, err error) {
	if m == nil {
		return
	}
	m.llmCalls.WithLabelValues(result(err)).Inc()
	m.llmDuration.Observe(d.Seconds())
	m.llmTokens.WithLabelValues("prompt").Add(float64(promptTokens))
	m.llmTokens.WithLabelValues("completion").Add(float64(completionTokens))
}

// RecordLLMRetry 记录一次生成重试。
func (m *Metrics) RecordLLMRetry() {
	if m == nil {
		return
	}
	m.llmRetries.Inc()
}

// RecordCacheLookup 记录一次缓存查询。
func (m *Metrics) RecordCacheLookup(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.cacheLookups.WithLabelValues("hit").Inc()
		return
	}
	m.cacheLookups.WithLabelValues("miss").Inc()
}

// RecordCacheWrite 记录一次缓存写入。
func (m *Metrics) RecordCacheWrite(err error) {
	if m == nil {
		return
	}
	m.cacheWrites.WithLabelValues(result(err)).Inc()
}

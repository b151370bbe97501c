package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/kart-io/logger"
	"github.com/milvus-io/milvus/client/v2/column"
	"github.com/milvus-io/milvus/client/v2/entity"

	"github.com/kart-io/docqa/internal/pkg/rag/parser"
	"github.com/kart-io/docqa/pkg/component/milvus"
	"github.com/kart-io/docqa/pkg/llm/resilience"
	"github.com/kart-io/docqa/pkg/utils/json"
)

// Milvus 集合字段名。
const (
	fieldChunkID    = "chunk_id"
	fieldVector     = "embedding"
	fieldDocumentID = "document_id"
	fieldFilename   = "filename"
	fieldText       = "text"
	fieldLocator    = "locator"
	fieldChunkIndex = "chunk_index"
	fieldStart      = "start"
	fieldEnd        = "end"
	fieldInsertedAt = "inserted_at"
)

var outputFields = []string{
	fieldDocumentID, fieldFilename, fieldText, fieldLocator,
	fieldChunkIndex, fieldStart, fieldEnd, fieldInsertedAt,
}

// milvusClient 是 MilvusIndex 依赖的 Milvus 操作子集。
type milvusClient interface {
	EnsureCollection(ctx context.Context, schema *milvus.CollectionSchema) error
	Upsert(ctx context.Context, collection string, columns ...column.Column) (int64, error)
	Search(ctx context.Context, req *milvus.SearchRequest) ([]milvus.SearchResult, error)
	Delete(ctx context.Context, collection, expr string) (int64, error)
	Count(ctx context.Context, collection, expr string) (int64, error)
}

// MilvusIndexConfig 配置 MilvusIndex。
type MilvusIndexConfig struct {
	Collection string
	Dimension  int
	NList      int
	NProbe     int
	// Breaker 为空时使用默认熔断配置。
	Breaker *resilience.CircuitBreakerConfig
}

// MilvusIndex 是基于 Milvus 的 VectorIndex 实现，使用 COSINE 度量。
type MilvusIndex struct {
	client  milvusClient
	config  MilvusIndexConfig
	breaker *resilience.CircuitBreaker
	clock   func() time.Time
	lastSeq atomic.Int64
}

// NewMilvusIndex 确保集合存在并返回索引。
func NewMilvusIndex(ctx context.Context, client *milvus.Client, config MilvusIndexConfig) (*MilvusIndex, error) {
	return newMilvusIndex(ctx, client, config)
}

func newMilvusIndex(ctx context.Context, client milvusClient, config MilvusIndexConfig) (*MilvusIndex, error) {
	if config.Dimension <= 0 {
		return nil, fmt.Errorf("milvus index: dimension must be positive, got %d", config.Dimension)
	}
	if config.NProbe <= 0 {
		config.NProbe = 16
	}
	if config.NList <= 0 {
		config.NList = 128
	}

	schema := &milvus.CollectionSchema{
		Name:        config.Collection,
		Description: "docqa document chunks",
		PrimaryKey:  fieldChunkID,
		KeyMaxLen:   256,
		VectorField: fieldVector,
		Dimension:   config.Dimension,
		Metric:      entity.COSINE,
		NList:       config.NList,
		MetaFields: []milvus.MetaField{
			{Name: fieldDocumentID, DataType: entity.FieldTypeVarChar, MaxLen: 128},
			{Name: fieldFilename, DataType: entity.FieldTypeVarChar, MaxLen: 512},
			{Name: fieldText, DataType: entity.FieldTypeVarChar, MaxLen: 65535},
			{Name: fieldLocator, DataType: entity.FieldTypeVarChar, MaxLen: 1024},
			{Name: fieldChunkIndex, DataType: entity.FieldTypeInt64},
			{Name: fieldStart, DataType: entity.FieldTypeInt64},
			{Name: fieldEnd, DataType: entity.FieldTypeInt64},
			{Name: fieldInsertedAt, DataType: entity.FieldTypeInt64},
		},
	}
	if err := client.EnsureCollection(ctx, schema); err != nil {
		return nil, &IndexError{Op: "ensure collection", Err: err}
	}

	logger.Infow("milvus index ready",
		"collection", config.Collection,
		"dimension", config.Dimension,
		"nlist", config.NList,
	)
	return &MilvusIndex{
		client:  client,
		config:  config,
		breaker: resilience.NewCircuitBreaker("milvus:"+config.Collection, config.Breaker),
		clock:   time.Now,
	}, nil
}

// Upsert 实现 VectorIndex。
func (s *MilvusIndex) Upsert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	if err := checkDimensions(records, s.config.Dimension); err != nil {
		return err
	}

	columns, err := s.buildColumns(records)
	if err != nil {
		return err
	}

	return s.call(ctx, "upsert", func() error {
		n, err := s.client.Upsert(ctx, s.config.Collection, columns...)
		if err != nil {
			return err
		}
		logger.Debugw("milvus upsert", "collection", s.config.Collection, "records", n)
		return nil
	})
}

// nextSeq 返回严格递增的写入序号（纳秒时间戳，冲突时顺延）。
func (s *MilvusIndex) nextSeq() int64 {
	now := s.clock().UnixNano()
	for {
		last := s.lastSeq.Load()
		next := now
		if next <= last {
			next = last + 1
		}
		if s.lastSeq.CompareAndSwap(last, next) {
			return next
		}
	}
}

func (s *MilvusIndex) buildColumns(records []Record) ([]column.Column, error) {
	n := len(records)
	var (
		ids        = make([]string, n)
		vectors    = make([][]float32, n)
		docIDs     = make([]string, n)
		filenames  = make([]string, n)
		texts      = make([]string, n)
		locators   = make([]string, n)
		indexes    = make([]int64, n)
		starts     = make([]int64, n)
		ends       = make([]int64, n)
		insertedAt = make([]int64, n)
	)
	for i, r := range records {
		loc, err := json.Marshal(r.Locator)
		if err != nil {
			return nil, fmt.Errorf("encode locator of %s: %w", r.ChunkID, err)
		}
		ids[i] = r.ChunkID
		vectors[i] = r.Vector
		docIDs[i] = r.DocumentID
		filenames[i] = r.Filename
		texts[i] = r.Text
		locators[i] = string(loc)
		indexes[i] = int64(r.ChunkIndex)
		starts[i] = int64(r.Start)
		ends[i] = int64(r.End)
		insertedAt[i] = s.nextSeq()
	}

	return []column.Column{
		column.NewColumnVarChar(fieldChunkID, ids),
		column.NewColumnFloatVector(fieldVector, s.config.Dimension, vectors),
		column.NewColumnVarChar(fieldDocumentID, docIDs),
		column.NewColumnVarChar(fieldFilename, filenames),
		column.NewColumnVarChar(fieldText, texts),
		column.NewColumnVarChar(fieldLocator, locators),
		column.NewColumnInt64(fieldChunkIndex, indexes),
		column.NewColumnInt64(fieldStart, starts),
		column.NewColumnInt64(fieldEnd, ends),
		column.NewColumnInt64(fieldInsertedAt, insertedAt),
	}, nil
}

// Query 实现 VectorIndex。
// 额外取回 k 条候选，使落在截断边界上的同分记录也能按写入先后排序。
func (s *MilvusIndex) Query(ctx context.Context, vector []float32, k int, filter Filter) (*RetrievalResult, error) {
	if k <= 0 {
		return &RetrievalResult{Hits: []Hit{}}, nil
	}
	if len(vector) != s.config.Dimension {
		return nil, fmt.Errorf("%w: query has %d, collection expects %d",
			ErrDimensionMismatch, len(vector), s.config.Dimension)
	}

	var results []milvus.SearchResult
	err := s.call(ctx, "query", func() error {
		var err error
		results, err = s.client.Search(ctx, &milvus.SearchRequest{
			Collection:   s.config.Collection,
			VectorField:  fieldVector,
			Vector:       vector,
			TopK:         2 * k,
			Filter:       documentFilter(filter.DocumentIDs),
			NProbe:       s.config.NProbe,
			OutputFields: outputFields,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	hits := make([]rankedHit, 0, len(results))
	for _, r := range results {
		h, err := hitFromResult(r)
		if err != nil {
			return nil, &IndexError{Op: "query", Err: err}
		}
		hits = append(hits, h)
	}
	return &RetrievalResult{Hits: rank(hits, k)}, nil
}

// Delete 实现 VectorIndex。
func (s *MilvusIndex) Delete(ctx context.Context, documentID string) (int, error) {
	return s.deleteWhere(ctx, "delete", documentFilter([]string{documentID}))
}

// DeleteStale 实现 VectorIndex。
func (s *MilvusIndex) DeleteStale(ctx context.Context, documentID string, keep []string) (int, error) {
	expr := documentFilter([]string{documentID})
	if len(keep) > 0 {
		quoted := make([]string, len(keep))
		for i, id := range keep {
			quoted[i] = strconv.Quote(id)
		}
		expr += " && " + fieldChunkID + " not in [" + strings.Join(quoted, ", ") + "]"
	}
	return s.deleteWhere(ctx, "delete_stale", expr)
}

func (s *MilvusIndex) deleteWhere(ctx context.Context, op, expr string) (int, error) {
	var n int64
	err := s.call(ctx, op, func() error {
		var err error
		if n, err = s.client.Count(ctx, s.config.Collection, expr); err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		_, err = s.client.Delete(ctx, s.config.Collection, expr)
		return err
	})
	return int(n), err
}

// Stats 实现 VectorIndex。
func (s *MilvusIndex) Stats(ctx context.Context) (*IndexStats, error) {
	stats := &IndexStats{
		Collection: s.config.Collection,
		Dimension:  s.config.Dimension,
		Status:     StatusGreen,
	}
	err := s.call(ctx, "stats", func() error {
		var err error
		stats.Count, err = s.client.Count(ctx, s.config.Collection, "")
		return err
	})
	if err != nil {
		stats.Status = StatusRed
		return stats, err
	}
	return stats, nil
}

// call 经熔断器执行 fn，失败包装为 IndexError。调用方取消不计入熔断失败。
func (s *MilvusIndex) call(ctx context.Context, op string, fn func() error) error {
	err := s.breaker.Execute(fn, func(err error) bool {
		return errors.Is(err, context.Canceled)
	})
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		return err
	}
	logger.Warnw("milvus call failed",
		"op", op,
		"collection", s.config.Collection,
		"breaker", s.breaker.State().String(),
		"error", err.Error(),
	)
	return &IndexError{Op: op, Err: err}
}

// documentFilter 生成 document_id 过滤表达式，ids 为空时返回空串。
func documentFilter(ids []string) string {
	switch len(ids) {
	case 0:
		return ""
	case 1:
		return fieldDocumentID + " == " + strconv.Quote(ids[0])
	}
	quoted := make([]string, len(ids))
	for i, id := range ids {
		quoted[i] = strconv.Quote(id)
	}
	return fieldDocumentID + " in [" + strings.Join(quoted, ", ") + "]"
}

func hitFromResult(r milvus.SearchResult) (rankedHit, error) {
	h := rankedHit{Hit: Hit{Score: float64(r.Score)}}
	h.ChunkID = r.ID
	h.DocumentID = stringField(r.Fields, fieldDocumentID)
	h.Filename = stringField(r.Fields, fieldFilename)
	h.Text = stringField(r.Fields, fieldText)
	h.ChunkIndex = int(intField(r.Fields, fieldChunkIndex))
	h.Start = int(intField(r.Fields, fieldStart))
	h.End = int(intField(r.Fields, fieldEnd))
	h.seq = intField(r.Fields, fieldInsertedAt)

	if raw := stringField(r.Fields, fieldLocator); raw != "" {
		var loc parser.Locator
		if err := json.Unmarshal([]byte(raw), &loc); err != nil {
			return h, fmt.Errorf("decode locator of %s: %w", r.ID, err)
		}
		h.Locator = loc
	}
	return h, nil
}

func stringField(fields map[string]any, name string) string {
	s, _ := fields[name].(string)
	return s
}

func intField(fields map[string]any, name string) int64 {
	n, _ := fields[name].(int64)
	return n
}

var _ VectorIndex = (*MilvusIndex)(nil)

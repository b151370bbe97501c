package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/milvus-io/milvus/client/v2/column"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/docqa/pkg/component/milvus"
	"github.com/kart-io/docqa/pkg/llm/resilience"
)

type fakeMilvus struct {
	schema   *milvus.CollectionSchema
	upserts  [][]column.Column
	requests []*milvus.SearchRequest
	results  []milvus.SearchResult
	count    int64
	deleted  []string
	err      error
}

var _ milvusClient = (*fakeMilvus)(nil)

func (f *fakeMilvus) EnsureCollection(_ context.Context, schema *milvus.CollectionSchema) error {
	f.schema = schema
	return nil
}

func (f *fakeMilvus) Upsert(_ context.Context, _ string, columns ...column.Column) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.upserts = append(f.upserts, columns)
	return int64(columns[0].Len()), nil
}

func (f *fakeMilvus) Search(_ context.Context, req *milvus.SearchRequest) ([]milvus.SearchResult, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

func (f *fakeMilvus) Delete(_ context.Context, _ string, expr string) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.deleted = append(f.deleted, expr)
	return f.count, nil
}

func (f *fakeMilvus) Count(context.Context, string, string) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.count, nil
}

func newTestMilvusIndex(t *testing.T, f *fakeMilvus) *MilvusIndex {
	t.Helper()
	idx, err := newMilvusIndex(context.Background(), f, MilvusIndexConfig{
		Collection: "chunks",
		Dimension:  2,
		Breaker:    &resilience.CircuitBreakerConfig{MaxFailures: 2, Timeout: time.Minute, HalfOpenMaxCalls: 1},
	})
	require.NoError(t, err)
	return idx
}

func TestMilvusIndexSchema(t *testing.T) {
	f := &fakeMilvus{}
	newTestMilvusIndex(t, f)

	require.NotNil(t, f.schema)
	assert.Equal(t, fieldChunkID, f.schema.PrimaryKey)
	assert.Equal(t, 2, f.schema.Dimension)
	assert.Equal(t, 128, f.schema.NList)
}

func TestMilvusIndexUpsertColumns(t *testing.T) {
	f := &fakeMilvus{}
	idx := newTestMilvusIndex(t, f)

	require.NoError(t, idx.Upsert(context.Background(), []Record{
		record("a", 0, 1, 0),
		record("a", 1, 0, 1),
	}))
	require.Len(t, f.upserts, 1)

	cols := make(map[string]column.Column)
	for _, c := range f.upserts[0] {
		cols[c.Name()] = c
	}
	ids := cols[fieldChunkID].(*column.ColumnVarChar).Data()
	assert.Equal(t, []string{"a#00000", "a#00001"}, ids)

	seqs := cols[fieldInsertedAt].(*column.ColumnInt64).Data()
	assert.Less(t, seqs[0], seqs[1])

	loc := cols[fieldLocator].(*column.ColumnVarChar).Data()[1]
	assert.Contains(t, loc, `"offset":10`)
}

func TestMilvusIndexUpsertDimensionMismatch(t *testing.T) {
	f := &fakeMilvus{}
	idx := newTestMilvusIndex(t, f)

	err := idx.Upsert(context.Background(), []Record{record("a", 0, 1, 0), record("a", 1, 1)})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
	assert.Empty(t, f.upserts)
}

func TestMilvusIndexQueryRanksTies(t *testing.T) {
	f := &fakeMilvus{results: []milvus.SearchResult{
		{ID: "old#00000", Score: 0.9, Fields: map[string]any{
			fieldDocumentID: "old", fieldInsertedAt: int64(100), fieldLocator: `{"kind":"page","page":2,"offset":0}`,
		}},
		{ID: "new#00000", Score: 0.9, Fields: map[string]any{
			fieldDocumentID: "new", fieldInsertedAt: int64(200), fieldChunkIndex: int64(0),
		}},
		{ID: "low#00000", Score: 0.1, Fields: map[string]any{fieldDocumentID: "low"}},
	}}
	idx := newTestMilvusIndex(t, f)

	res, err := idx.Query(context.Background(), []float32{1, 0}, 2, Filter{DocumentIDs: []string{"old", "new"}})
	require.NoError(t, err)
	require.Len(t, res.Hits, 2)
	assert.Equal(t, "new#00000", res.Hits[0].ChunkID)
	assert.Equal(t, "old#00000", res.Hits[1].ChunkID)
	assert.Equal(t, 2, res.Hits[1].Locator.Page)

	require.Len(t, f.requests, 1)
	assert.Equal(t, 4, f.requests[0].TopK)
	assert.Equal(t, `document_id in ["old", "new"]`, f.requests[0].Filter)
}

func TestMilvusIndexQueryDimension(t *testing.T) {
	f := &fakeMilvus{}
	idx := newTestMilvusIndex(t, f)

	_, err := idx.Query(context.Background(), []float32{1, 0, 0}, 3, Filter{})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
	assert.Empty(t, f.requests)
}

func TestMilvusIndexErrorsAndBreaker(t *testing.T) {
	f := &fakeMilvus{err: errors.New("connection refused")}
	idx := newTestMilvusIndex(t, f)
	ctx := context.Background()

	_, err := idx.Query(ctx, []float32{1, 0}, 1, Filter{})
	var ie *IndexError
	require.ErrorAs(t, err, &ie)
	assert.True(t, ie.Retryable())
	assert.Equal(t, "query", ie.Op)

	stats, err := idx.Stats(ctx)
	require.Error(t, err)
	assert.Equal(t, StatusRed, stats.Status)

	// 连续两次失败后熔断器打开，不再调用 Milvus
	calls := len(f.requests)
	_, err = idx.Query(ctx, []float32{1, 0}, 1, Filter{})
	require.ErrorAs(t, err, &ie)
	assert.ErrorIs(t, err, resilience.ErrCircuitBreakerOpen)
	assert.Equal(t, calls, len(f.requests))
}

func TestMilvusIndexDeleteAndStats(t *testing.T) {
	f := &fakeMilvus{count: 3}
	idx := newTestMilvusIndex(t, f)
	ctx := context.Background()

	n, err := idx.Delete(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []string{`document_id == "a"`}, f.deleted)

	stats, err := idx.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.Count)
	assert.Equal(t, StatusGreen, stats.Status)

	f.count = 0
	n, err = idx.Delete(ctx, "missing")
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Len(t, f.deleted, 1)
}

func TestMilvusIndexDeleteStale(t *testing.T) {
	f := &fakeMilvus{count: 2}
	idx := newTestMilvusIndex(t, f)

	n, err := idx.DeleteStale(context.Background(), "a", []string{"a#00000", "a#00001"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{`document_id == "a" && chunk_id not in ["a#00000", "a#00001"]`}, f.deleted)
}

func TestDocumentFilter(t *testing.T) {
	assert.Empty(t, documentFilter(nil))
	assert.Equal(t, `document_id == "x\"y"`, documentFilter([]string{`x"y`}))
}

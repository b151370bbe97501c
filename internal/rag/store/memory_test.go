package store

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/docqa/internal/pkg/rag/parser"
)

func record(doc string, idx int, vec ...float32) Record {
	return Record{
		ChunkID: fmt.Sprintf("%s#%05d", doc, idx),
		Vector:  vec,
		Payload: Payload{
			DocumentID: doc,
			Filename:   doc + ".txt",
			Text:       fmt.Sprintf("chunk %d of %s", idx, doc),
			Locator:    parser.OffsetLocator(idx * 10),
			ChunkIndex: idx,
		},
	}
}

func TestMemoryIndexQueryOrdering(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex("test", 2)

	require.NoError(t, idx.Upsert(ctx, []Record{
		record("a", 0, 1, 0),
		record("a", 1, 0, 1),
		record("b", 0, 1, 1),
	}))

	res, err := idx.Query(ctx, []float32{1, 0}, 2, Filter{})
	require.NoError(t, err)
	require.Len(t, res.Hits, 2)
	assert.Equal(t, "a#00000", res.Hits[0].ChunkID)
	assert.Equal(t, "b#00000", res.Hits[1].ChunkID)
	assert.GreaterOrEqual(t, res.Hits[0].Score, res.Hits[1].Score)
	assert.Nil(t, res.Hits[0].Vector)

	res, err = idx.Query(ctx, []float32{1, 0}, 10, Filter{})
	require.NoError(t, err)
	require.Len(t, res.Hits, 3)
	for i := 1; i < len(res.Hits); i++ {
		assert.GreaterOrEqual(t, res.Hits[i-1].Score, res.Hits[i].Score)
	}
}

func TestMemoryIndexTieBreakByRecency(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex("test", 2)

	require.NoError(t, idx.Upsert(ctx, []Record{record("old", 0, 1, 1)}))
	require.NoError(t, idx.Upsert(ctx, []Record{record("new", 0, 2, 2)}))

	res, err := idx.Query(ctx, []float32{1, 1}, 1, Filter{})
	require.NoError(t, err)
	require.Len(t, res.Hits, 1)
	assert.Equal(t, "new", res.Hits[0].DocumentID)

	// 重新写入使旧记录变为最新
	require.NoError(t, idx.Upsert(ctx, []Record{record("old", 0, 1, 1)}))
	res, err = idx.Query(ctx, []float32{1, 1}, 1, Filter{})
	require.NoError(t, err)
	assert.Equal(t, "old", res.Hits[0].DocumentID)
}

func TestMemoryIndexDimensionMismatch(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex("test", 3)

	err := idx.Upsert(ctx, []Record{
		record("a", 0, 1, 0, 0),
		record("a", 1, 1, 0),
	})
	require.ErrorIs(t, err, ErrDimensionMismatch)

	stats, err := idx.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Count)

	_, err = NewMemoryIndex("test", 3).Query(ctx, []float32{1}, 1, Filter{})
	assert.NoError(t, err, "empty index answers any query with no hits")

	require.NoError(t, idx.Upsert(ctx, []Record{record("a", 0, 1, 0, 0)}))
	_, err = idx.Query(ctx, []float32{1, 0}, 1, Filter{})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestMemoryIndexDimensionFromFirstUpsert(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex("test", 0)

	require.NoError(t, idx.Upsert(ctx, []Record{record("a", 0, 1, 2, 3, 4)}))
	require.ErrorIs(t, idx.Upsert(ctx, []Record{record("a", 1, 1, 2)}), ErrDimensionMismatch)

	stats, err := idx.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Dimension)
	assert.Equal(t, int64(1), stats.Count)
	assert.Equal(t, StatusGreen, stats.Status)
}

func TestMemoryIndexIdempotentUpsert(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex("test", 2)

	batch := []Record{record("a", 0, 1, 0), record("a", 1, 0, 1)}
	require.NoError(t, idx.Upsert(ctx, batch))
	require.NoError(t, idx.Upsert(ctx, batch))

	stats, err := idx.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Count)
}

func TestMemoryIndexFilterAndDelete(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex("test", 2)
	require.NoError(t, idx.Upsert(ctx, []Record{
		record("a", 0, 1, 0),
		record("a", 1, 1, 0.5),
		record("b", 0, 1, 0),
	}))

	res, err := idx.Query(ctx, []float32{1, 0}, 5, Filter{DocumentIDs: []string{"b"}})
	require.NoError(t, err)
	require.Len(t, res.Hits, 1)
	assert.Equal(t, "b", res.Hits[0].DocumentID)

	n, err := idx.Delete(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = idx.Delete(ctx, "a")
	require.NoError(t, err)
	assert.Zero(t, n)

	res, err = idx.Query(ctx, []float32{1, 0}, 5, Filter{})
	require.NoError(t, err)
	assert.Len(t, res.Hits, 1)
}

func TestMemoryIndexDeleteStale(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex("test", 2)
	require.NoError(t, idx.Upsert(ctx, []Record{
		record("a", 0, 1, 0),
		record("a", 1, 1, 0),
		record("a", 2, 1, 0),
		record("b", 5, 1, 0),
	}))

	n, err := idx.DeleteStale(ctx, "a", []string{"a#00000", "a#00001"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	res, err := idx.Query(ctx, []float32{1, 0}, 10, Filter{})
	require.NoError(t, err)
	ids := make([]string, 0, len(res.Hits))
	for _, h := range res.Hits {
		ids = append(ids, h.ChunkID)
	}
	assert.ElementsMatch(t, []string{"a#00000", "a#00001", "b#00005"}, ids)

	n, err = idx.DeleteStale(ctx, "a", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestMemoryIndexEmptyAndZeroK(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex("test", 2)

	res, err := idx.Query(ctx, []float32{1, 0}, 5, Filter{})
	require.NoError(t, err)
	assert.Zero(t, res.Len())

	require.NoError(t, idx.Upsert(ctx, []Record{record("a", 0, 1, 0)}))
	res, err = idx.Query(ctx, []float32{1, 0}, 0, Filter{})
	require.NoError(t, err)
	assert.Zero(t, res.Len())
}

func TestMemoryIndexConcurrentUpsert(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex("test", 2)

	batch := make([]Record, 50)
	for i := range batch {
		batch[i] = record("doc", i, float32(i), 1)
	}

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, idx.Upsert(ctx, batch))
		}()
	}
	wg.Wait()

	stats, err := idx.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(len(batch)), stats.Count)
}

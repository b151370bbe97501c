package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/kart-io/docqa/internal/pkg/rag/textutil"
)

type memoryEntry struct {
	record Record
	seq    int64
}

// MemoryIndex 是进程内的 VectorIndex 实现。
type MemoryIndex struct {
	collection string

	mu      sync.RWMutex
	dim     int
	seq     int64
	entries map[string]*memoryEntry
}

// NewMemoryIndex 创建进程内索引。dim 为 0 时由第一次写入确定维度。
func NewMemoryIndex(collection string, dim int) *MemoryIndex {
	return &MemoryIndex{
		collection: collection,
		dim:        dim,
		entries:    make(map[string]*memoryEntry),
	}
}

// Upsert 实现 VectorIndex。
func (m *MemoryIndex) Upsert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	dim := m.dim
	if dim == 0 {
		dim = len(records[0].Vector)
	}
	if dim == 0 {
		return fmt.Errorf("%w: record %s has an empty vector", ErrDimensionMismatch, records[0].ChunkID)
	}
	if err := checkDimensions(records, dim); err != nil {
		return err
	}
	m.dim = dim

	for _, r := range records {
		m.seq++
		r.Vector = append([]float32(nil), r.Vector...)
		m.entries[r.ChunkID] = &memoryEntry{record: r, seq: m.seq}
	}
	return nil
}

// Query 实现 VectorIndex。
func (m *MemoryIndex) Query(ctx context.Context, vector []float32, k int, filter Filter) (*RetrievalResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if k <= 0 || len(m.entries) == 0 {
		return &RetrievalResult{Hits: []Hit{}}, nil
	}
	if len(vector) != m.dim {
		return nil, fmt.Errorf("%w: query has %d, collection expects %d", ErrDimensionMismatch, len(vector), m.dim)
	}

	docs := documentSet(filter.DocumentIDs)
	hits := make([]rankedHit, 0, len(m.entries))
	for _, e := range m.entries {
		if docs != nil {
			if _, ok := docs[e.record.DocumentID]; !ok {
				continue
			}
		}
		rec := e.record
		rec.Vector = nil
		hits = append(hits, rankedHit{
			Hit: Hit{Record: rec, Score: textutil.CosineSimilarity(vector, e.record.Vector)},
			seq: e.seq,
		})
	}
	return &RetrievalResult{Hits: rank(hits, k)}, nil
}

// Delete 实现 VectorIndex。
func (m *MemoryIndex) Delete(ctx context.Context, documentID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for id, e := range m.entries {
		if e.record.DocumentID == documentID {
			delete(m.entries, id)
			n++
		}
	}
	return n, nil
}

// DeleteStale 实现 VectorIndex。
func (m *MemoryIndex) DeleteStale(ctx context.Context, documentID string, keep []string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	kept := make(map[string]struct{}, len(keep))
	for _, id := range keep {
		kept[id] = struct{}{}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for id, e := range m.entries {
		if e.record.DocumentID != documentID {
			continue
		}
		if _, ok := kept[id]; !ok {
			delete(m.entries, id)
			n++
		}
	}
	return n, nil
}

// Stats 实现 VectorIndex。
func (m *MemoryIndex) Stats(ctx context.Context) (*IndexStats, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	return &IndexStats{
		Collection: m.collection,
		Count:      int64(len(m.entries)),
		Dimension:  m.dim,
		Status:     StatusGreen,
	}, nil
}

var _ VectorIndex = (*MemoryIndex)(nil)

package store

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/kart-io/docqa/internal/pkg/rag/parser"
)

// ErrDimensionMismatch 表示向量维度与集合维度不一致，整批写入被拒绝。
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// Payload 是随向量保存的分块信息。
type Payload struct {
	DocumentID string         `json:"document_id"`
	Filename   string         `json:"filename"`
	Text       string         `json:"text"`
	Locator    parser.Locator `json:"locator"`
	ChunkIndex int            `json:"chunk_index"`
	Start      int            `json:"start"`
	End        int            `json:"end"`
}

// Record 是向量索引中的一条记录，ChunkID 为幂等键。
type Record struct {
	ChunkID string    `json:"chunk_id"`
	Vector  []float32 `json:"-"`
	Payload
}

// Hit 是一条检索命中，不携带向量。
type Hit struct {
	Record
	Score float64 `json:"score"`
}

// RetrievalResult 按分数非递增排列，长度不超过 k。
type RetrievalResult struct {
	Hits []Hit `json:"hits"`
}

// Len 返回命中数。
func (r *RetrievalResult) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Hits)
}

// Filter 限定检索范围，DocumentIDs 为空表示不限。
type Filter struct {
	DocumentIDs []string
}

// IndexStats 集合统计信息。
type IndexStats struct {
	Collection string `json:"collection"`
	Count      int64  `json:"count"`
	Dimension  int    `json:"dimension"`
	Status     string `json:"status"`
}

const (
	// StatusGreen 集合可用。
	StatusGreen = "green"
	// StatusRed 集合不可达。
	StatusRed = "red"
)

// VectorIndex 定义向量索引接口。
type VectorIndex interface {
	// Upsert 按 ChunkID 幂等写入。任何一条维度不符时整批拒绝，不写入任何记录。
	Upsert(ctx context.Context, records []Record) error

	// Query 返回与 vector 余弦相似度最高的至多 k 条记录，分数相同时较新写入的在前。
	Query(ctx context.Context, vector []float32, k int, filter Filter) (*RetrievalResult, error)

	// Delete 删除文档的全部记录，返回删除条数。
	Delete(ctx context.Context, documentID string) (int, error)

	// DeleteStale 删除文档中 ChunkID 不在 keep 内的记录，返回删除条数。
	DeleteStale(ctx context.Context, documentID string, keep []string) (int, error)

	// Stats 返回集合统计信息。
	Stats(ctx context.Context) (*IndexStats, error)
}

// IndexError 表示向量库调用失败，可稍后重试。
type IndexError struct {
	Op  string
	Err error
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("vector index %s: %v", e.Op, e.Err)
}

func (e *IndexError) Unwrap() error { return e.Err }

// Retryable 向量库故障通常是暂时的。
func (e *IndexError) Retryable() bool { return true }

// checkDimensions 在写入前校验所有记录的维度。
func checkDimensions(records []Record, dim int) error {
	for _, r := range records {
		if len(r.Vector) != dim {
			return fmt.Errorf("%w: record %s has %d, collection expects %d",
				ErrDimensionMismatch, r.ChunkID, len(r.Vector), dim)
		}
	}
	return nil
}

// rankedHit 附带写入序号，用于相同分数时按写入先后排序。
type rankedHit struct {
	Hit
	seq int64
}

// rank 按分数降序、写入序号降序排序并截断到 k。
func rank(hits []rankedHit, k int) []Hit {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].seq > hits[j].seq
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	out := make([]Hit, len(hits))
	for i, h := range hits {
		out[i] = h.Hit
	}
	return out
}

func documentSet(ids []string) map[string]struct{} {
	if len(ids) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

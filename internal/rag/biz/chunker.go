package biz

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kart-io/docqa/internal/pkg/rag/parser"
)

// Chunk 是可检索的文档分块。Start/End 为拼接后文档文本中的字符（rune）偏移，End 不含。
type Chunk struct {
	ID         string         `json:"id"`
	DocumentID string         `json:"document_id"`
	Index      int            `json:"index"`
	Text       string         `json:"text"`
	Length     int            `json:"length"`
	Start      int            `json:"start"`
	End        int            `json:"end"`
	PrevID     string         `json:"prev_id,omitempty"`
	NextID     string         `json:"next_id,omitempty"`
	Locator    parser.Locator `json:"locator"`
}

// ChunkID 返回分块的确定性 ID，同一文档同一序号总是得到相同结果。
func ChunkID(docID string, index int) string {
	return fmt.Sprintf("%s#%05d", docID, index)
}

// ChunkerConfig 分块配置。
type ChunkerConfig struct {
	// MaxLen 每个分块的最大字符数。
	MaxLen int
	// Overlap 相邻分块共享的字符数，必须小于 MaxLen。
	Overlap int
}

// Validate 校验分块配置。
func (c ChunkerConfig) Validate() error {
	if c.MaxLen <= 0 {
		return fmt.Errorf("chunk max length must be positive, got %d", c.MaxLen)
	}
	if c.Overlap < 0 || c.Overlap >= c.MaxLen {
		return fmt.Errorf("chunk overlap must be in [0, %d), got %d", c.MaxLen, c.Overlap)
	}
	return nil
}

// Chunker 以滑动窗口切分文档。
//
// 片段以单个换行拼接。窗口长 MaxLen，步长 MaxLen-Overlap，末尾不足一个窗口的部分保留。
// 窗口末端若会切断一个不超过 MaxLen 的片段，则回退到该片段起点，下一个窗口从能完整容纳该片段的位置开始；
// 超过 MaxLen 的片段被强制切分。
type Chunker struct {
	config ChunkerConfig
}

// NewChunker 创建分块器。
func NewChunker(config ChunkerConfig) (*Chunker, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Chunker{config: config}, nil
}

type segmentSpan struct {
	start, end int
	locator    parser.Locator
}

// Chunk 将片段切分为分块。没有文本时返回 nil。
func (c *Chunker) Chunk(docID string, segments []parser.Segment) []Chunk {
	runes, spans := joinSegments(segments)
	n := len(runes)
	if n == 0 {
		return nil
	}

	maxLen, overlap := c.config.MaxLen, c.config.Overlap
	var chunks []Chunk
	for start := 0; ; {
		end := min(start+maxLen, n)
		next := end - overlap

		if end < n {
			// 回退后的分块仍须包含上一个分块之后的新内容
			floor := start
			if len(chunks) > 0 {
				floor = max(floor, chunks[len(chunks)-1].End)
			}
			if s := splitSpan(spans, end); s != nil && s.end-s.start <= maxLen && s.start > floor {
				end = s.start
			}
			// 下一个窗口须能完整容纳紧随 end 的片段
			if s := spanFrom(spans, end); s != nil && s.end-s.start <= maxLen {
				next = max(end-overlap, min(s.end-maxLen, end))
			}
		}

		chunks = append(chunks, Chunk{
			ID:         ChunkID(docID, len(chunks)),
			DocumentID: docID,
			Index:      len(chunks),
			Text:       string(runes[start:end]),
			Length:     end - start,
			Start:      start,
			End:        end,
			Locator:    locate(spans, start, end),
		})

		if end >= n {
			break
		}
		if next <= start {
			next = start + 1
		}
		start = next
	}

	for i := range chunks {
		if i > 0 {
			chunks[i].PrevID = chunks[i-1].ID
		}
		if i+1 < len(chunks) {
			chunks[i].NextID = chunks[i+1].ID
		}
	}
	return chunks
}

func joinSegments(segments []parser.Segment) ([]rune, []segmentSpan) {
	var (
		b     strings.Builder
		spans = make([]segmentSpan, 0, len(segments))
		pos   int
	)
	for i, s := range segments {
		if i > 0 {
			b.WriteByte('\n')
			pos++
		}
		n := len([]rune(s.Text))
		b.WriteString(s.Text)
		spans = append(spans, segmentSpan{start: pos, end: pos + n, locator: s.Locator})
		pos += n
	}
	return []rune(b.String()), spans
}

// splitSpan 返回被位置 pos 切断的片段（start < pos < end）。
func splitSpan(spans []segmentSpan, pos int) *segmentSpan {
	i := sort.Search(len(spans), func(i int) bool { return spans[i].end > pos })
	if i < len(spans) && spans[i].start < pos {
		return &spans[i]
	}
	return nil
}

// spanFrom 返回位置 pos 之后第一个尚未结束的片段（end > pos）。
func spanFrom(spans []segmentSpan, pos int) *segmentSpan {
	i := sort.Search(len(spans), func(i int) bool { return spans[i].end > pos })
	if i < len(spans) {
		return &spans[i]
	}
	return nil
}

// locate 合并 [start, end) 覆盖的片段定位信息。
func locate(spans []segmentSpan, start, end int) parser.Locator {
	first := sort.Search(len(spans), func(i int) bool { return spans[i].end > start })
	if first == len(spans) {
		first = len(spans) - 1
	}
	last := first
	for last+1 < len(spans) && spans[last+1].start < end {
		last++
	}

	loc := spans[first].locator
	if loc.Kind == parser.LocatorOffset {
		loc.Offset += max(start-spans[first].start, 0)
		return loc
	}
	return loc.Through(spans[last].locator)
}

package biz

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"

	"github.com/kart-io/docqa/internal/pkg/rag/parser"
	"github.com/kart-io/docqa/internal/rag/store"
)

// TokenCounter 计算文本的 token 数。
type TokenCounter interface {
	Count(text string) int
}

// RuneCounter 按字符计数。
type RuneCounter struct{}

// Count 实现 TokenCounter。
func (RuneCounter) Count(text string) int { return utf8.RuneCountInString(text) }

// TiktokenCounter 使用 tiktoken 编码计数。
type TiktokenCounter struct {
	encoding string
	tke      *tiktoken.Tiktoken
}

// NewTiktokenCounter 按编码名（如 cl100k_base）或模型名创建计数器。
func NewTiktokenCounter(encodingOrModel string) (*TiktokenCounter, error) {
	if encodingOrModel == "" {
		encodingOrModel = "cl100k_base"
	}
	tke, err := tiktoken.GetEncoding(encodingOrModel)
	if err != nil {
		var modelErr error
		if tke, modelErr = tiktoken.EncodingForModel(encodingOrModel); modelErr != nil {
			return nil, fmt.Errorf("load tiktoken encoding %q: %w", encodingOrModel, err)
		}
	}
	return &TiktokenCounter{encoding: encodingOrModel, tke: tke}, nil
}

// Count 实现 TokenCounter。
func (c *TiktokenCounter) Count(text string) int {
	return len(c.tke.Encode(text, nil, nil))
}

// Citation 指向答案所依据的一段来源文本。相邻分块合并后只产生一条引用。
type Citation struct {
	// Ref 是上下文中的编号，从 1 开始。
	Ref        int            `json:"ref"`
	DocumentID string         `json:"document_id"`
	Filename   string         `json:"filename"`
	Locator    parser.Locator `json:"locator"`
	Location   string         `json:"location"`
	ChunkIDs   []string       `json:"chunk_ids"`
	Score      float64        `json:"score"`
	Text       string         `json:"text"`
}

// AssembledContext 是渲染后的上下文和对应引用。
type AssembledContext struct {
	Text      string     `json:"text"`
	Tokens    int        `json:"tokens"`
	Citations []Citation `json:"citations"`
}

// Empty 报告是否没有任何上下文。
func (a *AssembledContext) Empty() bool {
	return a == nil || len(a.Citations) == 0
}

// Assembler 在 token 预算内组装上下文。
type Assembler struct {
	counter TokenCounter
}

// NewAssembler 创建组装器，counter 为空时按字符计数。
func NewAssembler(counter TokenCounter) *Assembler {
	if counter == nil {
		counter = RuneCounter{}
	}
	return &Assembler{counter: counter}
}

// Assemble 按分数从高到低贪心加入分块，遇到第一个会使上下文超出预算的分块即停止。
// 同一文档序号连续的分块合并为一段，重叠文本按偏移去除。
func (a *Assembler) Assemble(result *store.RetrievalResult, budget int) (*AssembledContext, error) {
	if budget <= 0 {
		return nil, fmt.Errorf("token budget must be positive, got %d", budget)
	}
	empty := &AssembledContext{Citations: []Citation{}}
	if result.Len() == 0 {
		return empty, nil
	}

	hits := append([]store.Hit(nil), result.Hits...)
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })

	best := empty
	for i := range hits {
		candidate := render(hits[:i+1])
		candidate.Tokens = a.counter.Count(candidate.Text)
		if candidate.Tokens > budget {
			break
		}
		best = candidate
	}
	return best, nil
}

type span struct {
	hits  []store.Hit
	score float64
}

// render 合并相邻分块并按最高分排序后渲染。
func render(hits []store.Hit) *AssembledContext {
	byDoc := make(map[string][]store.Hit)
	var docs []string
	for _, h := range hits {
		if _, ok := byDoc[h.DocumentID]; !ok {
			docs = append(docs, h.DocumentID)
		}
		byDoc[h.DocumentID] = append(byDoc[h.DocumentID], h)
	}

	var spans []span
	for _, doc := range docs {
		group := byDoc[doc]
		sort.Slice(group, func(i, j int) bool { return group[i].ChunkIndex < group[j].ChunkIndex })

		cur := span{hits: group[:1], score: group[0].Score}
		for _, h := range group[1:] {
			last := cur.hits[len(cur.hits)-1]
			if h.ChunkIndex == last.ChunkIndex+1 {
				cur.hits = append(cur.hits, h)
				cur.score = max(cur.score, h.Score)
				continue
			}
			spans = append(spans, cur)
			cur = span{hits: []store.Hit{h}, score: h.Score}
		}
		spans = append(spans, cur)
	}
	sort.SliceStable(spans, func(i, j int) bool { return spans[i].score > spans[j].score })

	var b strings.Builder
	citations := make([]Citation, len(spans))
	for i, s := range spans {
		c := citationFor(i+1, s)
		fmt.Fprintf(&b, "[%d] %s (%s)\n%s\n\n", c.Ref, c.Filename, c.Location, c.Text)
		citations[i] = c
	}
	return &AssembledContext{Text: strings.TrimRight(b.String(), "\n"), Citations: citations}
}

func citationFor(ref int, s span) Citation {
	first, last := s.hits[0], s.hits[len(s.hits)-1]

	text := []rune(first.Text)
	end := first.End
	ids := []string{first.ChunkID}
	for _, h := range s.hits[1:] {
		r := []rune(h.Text)
		skip := min(max(end-h.Start, 0), len(r))
		text = append(text, r[skip:]...)
		end = max(end, h.End)
		ids = append(ids, h.ChunkID)
	}

	loc := first.Locator.Through(last.Locator)
	return Citation{
		Ref:        ref,
		DocumentID: first.DocumentID,
		Filename:   first.Filename,
		Locator:    loc,
		Location:   loc.String(),
		ChunkIDs:   ids,
		Score:      s.score,
		Text:       string(text),
	}
}

package biz

import (
	"context"
	stderrors "errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/kart-io/docqa/internal/model"
	"github.com/kart-io/docqa/internal/pkg/rag/parser"
	"github.com/kart-io/docqa/internal/rag/store"
	"github.com/kart-io/docqa/pkg/llm"
	"github.com/kart-io/docqa/pkg/llm/resilience"
	"github.com/kart-io/docqa/pkg/utils/errors"
)

// topics 决定测试向量的各个维度，最后一维为常量偏置。
var topics = []string{"alpha", "beta", "gamma", "delta"}

const testDim = 5

func topicVector(text string) []float32 {
	v := make([]float32, testDim)
	lower := strings.ToLower(text)
	for i, topic := range topics {
		v[i] = float32(strings.Count(lower, topic))
	}
	v[testDim-1] = 0.1
	return v
}

func transientErr() error {
	return &llm.ProviderError{Provider: "fake", StatusCode: 503, Kind: llm.KindTransient, Err: stderrors.New("service unavailable")}
}

func permanentErr() error {
	return &llm.ProviderError{Provider: "fake", StatusCode: 400, Kind: llm.KindPermanent, Err: stderrors.New("bad request")}
}

type fakeEmbedding struct {
	maxBatch int

	mu      sync.Mutex
	batches [][]string
	errs    []error
	vectors func(texts []string) [][]float32
	hook    func(ctx context.Context, texts []string) error
}

func (f *fakeEmbedding) Name() string { return "fake-embedding" }

func (f *fakeEmbedding) MaxBatchSize() int { return f.maxBatch }

func (f *fakeEmbedding) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	f.batches = append(f.batches, append([]string(nil), texts...))
	var err error
	if len(f.errs) > 0 {
		err, f.errs = f.errs[0], f.errs[1:]
	}
	hook, vectors := f.hook, f.vectors
	f.mu.Unlock()

	if hook != nil {
		if err := hook(ctx, texts); err != nil {
			return nil, err
		}
	}
	if err != nil {
		return nil, err
	}
	if vectors != nil {
		return vectors(texts), nil
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = topicVector(t)
	}
	return out, nil
}

func (f *fakeEmbedding) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.batches)
}

func (f *fakeEmbedding) setHook(hook func(ctx context.Context, texts []string) error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hook = hook
}

type fakeChat struct {
	mu    sync.Mutex
	calls [][]llm.Message
	errs  []error
}

func (f *fakeChat) Name() string { return "fake-chat" }

func (f *fakeChat) Chat(ctx context.Context, messages []llm.Message) (*llm.ChatResponse, error) {
	f.mu.Lock()
	f.calls = append(f.calls, append([]llm.Message(nil), messages...))
	var err error
	if len(f.errs) > 0 {
		err, f.errs = f.errs[0], f.errs[1:]
	}
	f.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &llm.ChatResponse{
		Content: "answer to " + messages[len(messages)-1].Content,
		Usage:   llm.TokenUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}, nil
}

func (f *fakeChat) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeChat) lastCall() []llm.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return nil
	}
	return f.calls[len(f.calls)-1]
}

// memDocuments 是内存中的 DocumentStore，并记录每个文档的状态迁移。
type memDocuments struct {
	mu      sync.Mutex
	docs    map[string]*model.Document
	history map[string][]model.DocumentStatus
}

func newMemDocuments() *memDocuments {
	return &memDocuments{
		docs:    make(map[string]*model.Document),
		history: make(map[string][]model.DocumentStatus),
	}
}

func (m *memDocuments) Save(_ context.Context, doc *model.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *doc
	if prev, ok := m.docs[doc.ID]; ok {
		cp.CreatedAt = prev.CreatedAt
	} else {
		cp.CreatedAt = time.Now()
	}
	cp.UpdatedAt = time.Now()
	m.docs[doc.ID] = &cp
	m.history[doc.ID] = append(m.history[doc.ID], doc.Status)
	return nil
}

func (m *memDocuments) Get(_ context.Context, id string) (*model.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[id]
	if !ok {
		return nil, errors.ErrDocNotFound
	}
	cp := *doc
	return &cp, nil
}

func (m *memDocuments) List(_ context.Context, offset, limit int) (*model.DocumentList, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.docs))
	for id := range m.docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	list := &model.DocumentList{TotalCount: int64(len(ids)), Items: []*model.Document{}}
	for i := offset; i < len(ids) && (limit <= 0 || i < offset+limit); i++ {
		cp := *m.docs[ids[i]]
		list.Items = append(list.Items, &cp)
	}
	return list, nil
}

func (m *memDocuments) UpdateStatus(_ context.Context, id string, update store.StatusUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[id]
	if !ok {
		return errors.ErrDocNotFound
	}
	doc.Status = update.Status
	doc.Reason = update.Reason
	if update.ChunkCount > 0 {
		doc.ChunkCount = update.ChunkCount
	}
	if update.OmittedCount > 0 {
		doc.OmittedCount = update.OmittedCount
	}
	m.history[id] = append(m.history[id], update.Status)
	return nil
}

func (m *memDocuments) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[id]; !ok {
		return errors.ErrDocNotFound
	}
	delete(m.docs, id)
	return nil
}

func (m *memDocuments) Count(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.docs)), nil
}

func (m *memDocuments) statuses(id string) []model.DocumentStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.DocumentStatus(nil), m.history[id]...)
}

// flakyIndex 在第 failOn 次写入时返回 err。
type flakyIndex struct {
	*store.MemoryIndex

	mu      sync.Mutex
	upserts int
	failOn  int
	err     error
}

func (f *flakyIndex) Upsert(ctx context.Context, records []store.Record) error {
	f.mu.Lock()
	f.upserts++
	n := f.upserts
	f.mu.Unlock()
	if n == f.failOn {
		return f.err
	}
	return f.MemoryIndex.Upsert(ctx, records)
}

// observedIndex 在每次写入前调用 before。
type observedIndex struct {
	*store.MemoryIndex

	before func(records []store.Record)
}

func (o *observedIndex) Upsert(ctx context.Context, records []store.Record) error {
	if o.before != nil {
		o.before(records)
	}
	return o.MemoryIndex.Upsert(ctx, records)
}

type testEnv struct {
	svc   *Service
	index *store.MemoryIndex
	docs  *memDocuments
	embed *fakeEmbedding
	chat  *fakeChat
}

func testConfig() Config {
	return Config{
		Collection: "test",
		Chunker:    ChunkerConfig{MaxLen: 40, Overlap: 10},
		Embedder: EmbedderConfig{
			BatchSize:   4,
			MaxAttempts: 3,
			Sleep:       resilience.NoDelay,
		},
		Retriever: RetrieverConfig{TopK: 3, MaxTopK: 10},
		Generator: GeneratorConfig{
			SystemPrompt:    "Answer from the context.\n{{context}}",
			NoContextPrompt: "No documents matched.",
			MaxAttempts:     2,
			Sleep:           resilience.NoDelay,
		},
		TokenBudget:     1000,
		MaxFileSize:     1 << 20,
		UpsertBatchSize: 2,
	}
}

func newTestEnv(t *testing.T, mutate ...func(*Config, *Dependencies)) *testEnv {
	t.Helper()

	env := &testEnv{
		index: store.NewMemoryIndex("test", 0),
		docs:  newMemDocuments(),
		embed: &fakeEmbedding{},
		chat:  &fakeChat{},
	}
	cfg := testConfig()
	deps := Dependencies{
		Parser:    parser.New(),
		Index:     env.index,
		Documents: env.docs,
		Embedding: env.embed,
		Chat:      env.chat,
	}
	for _, m := range mutate {
		m(&cfg, &deps)
	}

	svc, err := NewService(cfg, deps)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	env.svc = svc
	return env
}

func newTestCache(t *testing.T) (*QueryCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewQueryCache(client, QueryCacheConfig{Enabled: true, TTL: 10 * time.Minute, KeyPrefix: "test:query:"}), mr
}

package biz

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/kart-io/logger"
	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/kart-io/docqa/internal/model"
	"github.com/kart-io/docqa/internal/pkg/rag/docutil"
	"github.com/kart-io/docqa/internal/pkg/rag/parser"
	"github.com/kart-io/docqa/internal/pkg/rag/textutil"
	"github.com/kart-io/docqa/internal/rag/metrics"
	"github.com/kart-io/docqa/internal/rag/store"
	"github.com/kart-io/docqa/pkg/infra/pool"
	"github.com/kart-io/docqa/pkg/llm"
	"github.com/kart-io/docqa/pkg/utils/errors"
)

var tracer = otel.Tracer("github.com/kart-io/docqa/internal/rag/biz")

// Config 流水线配置，构造后不再改变。
type Config struct {
	Collection  string
	Chunker     ChunkerConfig
	Embedder    EmbedderConfig
	Retriever   RetrieverConfig
	Generator   GeneratorConfig
	TokenBudget int
	MaxFileSize int64
	// IndexTimeout 单次向量库写入或删除的超时。
	IndexTimeout time.Duration
	// UpsertBatchSize 单次写入向量库的记录数。
	UpsertBatchSize int
	// JobTimeout 异步入库任务的总超时。
	JobTimeout time.Duration
}

// Dependencies 是 Service 的协作者。Cache、Pool、Metrics 可以为空。
type Dependencies struct {
	Parser    *parser.Parser
	Index     store.VectorIndex
	Documents store.DocumentStore
	Embedding llm.EmbeddingProvider
	Chat      llm.ChatProvider
	Counter   TokenCounter
	Cache     *QueryCache
	Pool      *pool.Pool
	Metrics   *metrics.Metrics
}

// IngestRequest 入库请求。Type 为空时按文件名或内容推断，DocumentID 为空时由文件名派生。
type IngestRequest struct {
	Filename   string
	Type       string
	Content    []byte
	DocumentID string
}

// IngestResult 入库结果。
type IngestResult struct {
	DocumentID string               `json:"document_id"`
	JobID      string               `json:"job_id"`
	Status     model.DocumentStatus `json:"status"`
	Chunks     int                  `json:"chunks"`
	Omitted    int                  `json:"omitted"`
	Reason     string               `json:"reason,omitempty"`
}

// QueryRequest 查询请求。
type QueryRequest struct {
	Question    string
	DocumentIDs []string
	History     []llm.Message
	TopK        int
}

// QueryResult 查询结果。Sources 为去重后的来源文件名。
type QueryResult struct {
	Answer    string         `json:"answer"`
	Citations []Citation     `json:"citations"`
	Sources   []string       `json:"sources"`
	Usage     llm.TokenUsage `json:"usage"`
	Cached    bool           `json:"cached"`

	// HasContext 为 false 时回答未基于任何检索片段
	HasContext bool `json:"has_context"`
}

// Stats 知识库统计信息。
type Stats struct {
	Collection        string      `json:"collection"`
	Count             int64       `json:"count"`
	Dimension         int         `json:"dimension"`
	Status            string      `json:"status"`
	Documents         int64       `json:"documents"`
	EmbeddingProvider string      `json:"embedding_provider"`
	ChatProvider      string      `json:"chat_provider"`
	Cache             *CacheStats `json:"cache,omitempty"`
}

// DeleteResult 删除结果。
type DeleteResult struct {
	DocumentID string `json:"document_id"`
	Records    int    `json:"records"`
}

// Service 组合解析、分块、向量化、检索、组装与生成，提供入库和问答入口。
type Service struct {
	config    Config
	parser    *parser.Parser
	chunker   *Chunker
	embedder  *Embedder
	index     store.VectorIndex
	docs      store.DocumentStore
	retriever *Retriever
	assembler *Assembler
	generator *Generator
	cache     *QueryCache
	pool      *pool.Pool
	metrics   *metrics.Metrics
	locks     *keyedMutex
}

// NewService 创建服务实例。
func NewService(config Config, deps Dependencies) (*Service, error) {
	switch {
	case deps.Index == nil:
		return nil, fmt.Errorf("vector index is required")
	case deps.Documents == nil:
		return nil, fmt.Errorf("document store is required")
	case deps.Embedding == nil:
		return nil, fmt.Errorf("embedding provider is required")
	case deps.Chat == nil:
		return nil, fmt.Errorf("chat provider is required")
	case config.TokenBudget <= 0:
		return nil, fmt.Errorf("token budget must be positive, got %d", config.TokenBudget)
	}

	chunker, err := NewChunker(config.Chunker)
	if err != nil {
		return nil, err
	}
	if deps.Parser == nil {
		deps.Parser = parser.New()
	}
	if config.UpsertBatchSize <= 0 {
		config.UpsertBatchSize = 128
	}
	if config.JobTimeout <= 0 {
		config.JobTimeout = 10 * time.Minute
	}

	embedder := NewEmbedder(deps.Embedding, config.Embedder, deps.Metrics)
	return &Service{
		config:    config,
		parser:    deps.Parser,
		chunker:   chunker,
		embedder:  embedder,
		index:     deps.Index,
		docs:      deps.Documents,
		retriever: NewRetriever(embedder, deps.Index, config.Retriever, deps.Metrics),
		assembler: NewAssembler(deps.Counter),
		generator: NewGenerator(deps.Chat, config.Generator, deps.Metrics),
		cache:     deps.Cache,
		pool:      deps.Pool,
		metrics:   deps.Metrics,
		locks:     newKeyedMutex(),
	}, nil
}

// ingestJob 是校验后的入库任务。
type ingestJob struct {
	id       string
	docID    string
	filename string
	docType  parser.DocumentType
	mime     string
	content  []byte
}

func (j *ingestJob) document() *model.Document {
	return &model.Document{
		ID:       j.docID,
		Filename: j.filename,
		Type:     string(j.docType),
		MIMEType: j.mime,
		Size:     int64(len(j.content)),
		Status:   model.StatusPending,
		JobID:    j.id,
	}
}

func (s *Service) prepare(req IngestRequest) (*ingestJob, error) {
	filename := strings.TrimSpace(req.Filename)
	if filename == "" {
		return nil, errors.ErrInvalidParam.WithMessage("filename is required")
	}
	if size := int64(len(req.Content)); s.config.MaxFileSize > 0 && size > s.config.MaxFileSize {
		return nil, &TooLargeError{Size: size, Limit: s.config.MaxFileSize}
	}

	var (
		docType parser.DocumentType
		err     error
	)
	if req.Type != "" {
		docType, err = parser.ParseTypeTag(req.Type)
	} else {
		docType, err = parser.InferType(filename, req.Content)
	}
	if err != nil {
		return nil, err
	}

	docID := strings.TrimSpace(req.DocumentID)
	if docID == "" {
		docID = textutil.HashString(filename)
	}
	return &ingestJob{
		id:       ulid.Make().String(),
		docID:    docID,
		filename: filename,
		docType:  docType,
		mime:     mimetype.Detect(req.Content).String(),
		content:  req.Content,
	}, nil
}

// Ingest 同步完成解析、分块、向量化与写入。同一文档的入库在进程内串行执行。
// 失败时文档标记为 failed；写入阶段失败会删除该文档的全部记录（取消除外）。
func (s *Service) Ingest(ctx context.Context, req IngestRequest) (*IngestResult, error) {
	j, err := s.prepare(req)
	if err != nil {
		return nil, err
	}
	return s.run(ctx, j)
}

// IngestAsync 校验请求后在工作池中入库，立即返回 pending 状态。
// 文档记录在任务取得文档锁后才写入，不会覆盖同一文档正在进行的入库状态。
func (s *Service) IngestAsync(ctx context.Context, req IngestRequest) (*IngestResult, error) {
	j, err := s.prepare(req)
	if err != nil {
		return nil, err
	}

	task := func() {
		jobCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.config.JobTimeout)
		defer cancel()
		if _, err := s.run(jobCtx, j); err != nil {
			logger.Warnw("async ingestion failed", "document_id", j.docID, "job_id", j.id, "error", err.Error())
		}
	}

	if s.pool == nil {
		go task()
	} else if err := s.pool.Submit(task); err != nil {
		s.recordRejected(ctx, j, "ingestion queue is full")
		return nil, fmt.Errorf("submit ingestion job: %w", err)
	}

	logger.Infow("ingestion job queued", "document_id", j.docID, "job_id", j.id, "filename", j.filename)
	return &IngestResult{DocumentID: j.docID, JobID: j.id, Status: model.StatusPending}, nil
}

// recordRejected 为未能排队的新文档留下 failed 记录；已有记录保持不变。
func (s *Service) recordRejected(ctx context.Context, j *ingestJob, reason string) {
	if _, err := s.docs.Get(ctx, j.docID); !stderrors.Is(err, errors.ErrDocNotFound) {
		return
	}
	doc := j.document()
	doc.Status = model.StatusFailed
	doc.Reason = reason
	if err := s.docs.Save(ctx, doc); err != nil {
		logger.Warnw("failed to record rejected ingestion", "document_id", j.docID, "error", err.Error())
	}
}

func (s *Service) run(ctx context.Context, j *ingestJob) (*IngestResult, error) {
	unlock := s.locks.Lock(j.docID)
	defer unlock()

	ctx, span := tracer.Start(ctx, "docqa.Ingest", trace.WithAttributes(
		attribute.String("docqa.document_id", j.docID),
		attribute.String("docqa.job_id", j.id),
		attribute.String("docqa.type", string(j.docType)),
		attribute.Int("docqa.bytes", len(j.content)),
	))
	defer span.End()

	start := time.Now()
	res := &IngestResult{DocumentID: j.docID, JobID: j.id, Status: model.StatusPending}

	if err := s.docs.Save(ctx, j.document()); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	indexed, omitted, wrote, err := s.process(ctx, j)
	res.Omitted = omitted
	if err != nil {
		if wrote {
			// 索引已被改动，缓存中的答案可能引用已不存在的记录
			s.invalidateCache(context.WithoutCancel(ctx))
		}
		res.Status = model.StatusFailed
		res.Reason = failureReason(err)
		s.transition(ctx, j.docID, store.StatusUpdate{Status: model.StatusFailed, Reason: res.Reason})
		s.metrics.RecordIngest(string(j.docType), string(res.Status), 0, omitted, time.Since(start))

		span.RecordError(err)
		span.SetStatus(codes.Error, res.Reason)
		logger.Errorw("ingestion failed",
			"document_id", j.docID,
			"job_id", j.id,
			"filename", j.filename,
			"error", err.Error(),
		)
		return res, err
	}

	res.Status = model.StatusIndexed
	res.Chunks = indexed
	if err := s.docs.UpdateStatus(ctx, j.docID, store.StatusUpdate{
		Status:       model.StatusIndexed,
		ChunkCount:   indexed,
		OmittedCount: omitted,
	}); err != nil {
		span.RecordError(err)
		return res, err
	}
	s.invalidateCache(ctx)
	s.metrics.RecordIngest(string(j.docType), string(res.Status), indexed, omitted, time.Since(start))

	span.SetAttributes(attribute.Int("docqa.chunks", indexed), attribute.Int("docqa.omitted", omitted))
	logger.Infow("document indexed",
		"document_id", j.docID,
		"job_id", j.id,
		"filename", j.filename,
		"chunks", indexed,
		"omitted", omitted,
		"duration", time.Since(start),
	)
	return res, nil
}

// process 依次执行解析、分块、向量化与写入，返回写入记录数、跳过的分块数以及索引是否已被改动。
// 所有分块向量化完成后才开始写入。新记录全部写入后才删除旧版本多出的记录，
// 重新入库期间旧版本保持完整可查。
func (s *Service) process(ctx context.Context, j *ingestJob) (int, int, bool, error) {
	segments, err := s.parser.Parse(ctx, j.content, j.docType)
	if err != nil {
		return 0, 0, false, err
	}
	s.transition(ctx, j.docID, store.StatusUpdate{Status: model.StatusParsed})

	chunks := s.chunker.Chunk(j.docID, segments)
	s.transition(ctx, j.docID, store.StatusUpdate{Status: model.StatusChunked, ChunkCount: len(chunks)})
	logger.Debugw("document chunked", "document_id", j.docID, "segments", len(segments), "chunks", len(chunks))

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	embedded, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return 0, 0, false, err
	}
	omitted := len(embedded.Omitted)
	s.transition(ctx, j.docID, store.StatusUpdate{Status: model.StatusEmbedded, OmittedCount: omitted})

	records := make([]store.Record, 0, len(chunks)-omitted)
	for i, c := range chunks {
		if embedded.Vectors[i] == nil {
			continue
		}
		records = append(records, store.Record{
			ChunkID: c.ID,
			Vector:  embedded.Vectors[i],
			Payload: store.Payload{
				DocumentID: j.docID,
				Filename:   j.filename,
				Text:       c.Text,
				Locator:    c.Locator,
				ChunkIndex: c.Index,
				Start:      c.Start,
				End:        c.End,
			},
		})
	}

	if err := s.writeRecords(ctx, j.docID, records); err != nil {
		if ctx.Err() == nil {
			s.rollback(ctx, j.docID)
		}
		return 0, omitted, true, err
	}
	return len(records), omitted, true, nil
}

// writeRecords 分批写入 records，再删除文档中不属于本次写入的旧记录。
func (s *Service) writeRecords(ctx context.Context, docID string, records []store.Record) error {
	keep := make([]string, len(records))
	for from := 0; from < len(records); from += s.config.UpsertBatchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		batch := records[from:min(from+s.config.UpsertBatchSize, len(records))]
		for i, r := range batch {
			keep[from+i] = r.ChunkID
		}

		upsertCtx, cancel := withTimeout(ctx, s.config.IndexTimeout)
		err := s.index.Upsert(upsertCtx, batch)
		cancel()
		if err != nil {
			return err
		}
	}

	deleteCtx, cancel := withTimeout(ctx, s.config.IndexTimeout)
	defer cancel()
	n, err := s.index.DeleteStale(deleteCtx, docID, keep)
	if err != nil {
		return err
	}
	if n > 0 {
		logger.Debugw("removed stale records", "document_id", docID, "records", n)
	}
	return nil
}

// rollback 删除文档的全部记录，索引中不保留半新半旧的版本。
func (s *Service) rollback(ctx context.Context, docID string) {
	deleteCtx, cancel := withTimeout(context.WithoutCancel(ctx), s.config.IndexTimeout)
	defer cancel()
	if _, err := s.index.Delete(deleteCtx, docID); err != nil {
		logger.Errorw("failed to roll back partial ingestion", "document_id", docID, "error", err.Error())
	}
}

// transition 记录状态迁移。状态写入失败只记录日志，不中断入库。
func (s *Service) transition(ctx context.Context, docID string, update store.StatusUpdate) {
	if err := s.docs.UpdateStatus(context.WithoutCancel(ctx), docID, update); err != nil {
		logger.Warnw("failed to update document status",
			"document_id", docID,
			"status", string(update.Status),
			"error", err.Error(),
		)
	}
}

func (s *Service) invalidateCache(ctx context.Context) {
	if _, err := s.cache.Clear(ctx); err != nil {
		logger.Warnw("failed to clear query cache", "error", err.Error())
	}
}

// IngestDirectory 入库目录下所有支持的文件，单个文件失败不影响其余文件。
func (s *Service) IngestDirectory(ctx context.Context, dir string) ([]*IngestResult, error) {
	files, err := docutil.FindFiles(dir, parser.SupportedExtensions())
	if err != nil {
		return nil, fmt.Errorf("find files: %w", err)
	}
	logger.Infow("ingesting directory", "dir", dir, "files", len(files))

	results := make([]*IngestResult, 0, len(files))
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			rel = path
		}
		content, err := os.ReadFile(path)
		if err != nil {
			logger.Warnw("failed to read file", "path", path, "error", err.Error())
			continue
		}

		res, err := s.Ingest(ctx, IngestRequest{
			Filename:   filepath.Base(path),
			Content:    content,
			DocumentID: textutil.HashString(filepath.ToSlash(rel)),
		})
		if err != nil {
			logger.Warnw("failed to ingest file", "path", path, "error", err.Error())
			if res == nil {
				continue
			}
		}
		results = append(results, res)
	}
	return results, nil
}

// Query 检索相关分块、组装上下文并生成答案。无历史对话的查询会被缓存。
func (s *Service) Query(ctx context.Context, req QueryRequest) (result *QueryResult, err error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}
	k := s.retriever.ResolveTopK(req.TopK)

	ctx, span := tracer.Start(ctx, "docqa.Query", trace.WithAttributes(
		attribute.Int("docqa.top_k", k),
		attribute.Int("docqa.history", len(req.History)),
		attribute.Int("docqa.documents", len(req.DocumentIDs)),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			s.metrics.RecordQuery(false, err)
		}
		span.End()
	}()

	cacheable := len(req.History) == 0
	if cacheable && s.cache.enabled() {
		cached, cacheErr := s.cache.Get(ctx, question, req.DocumentIDs, k)
		s.metrics.RecordCacheLookup(cached != nil)
		if cacheErr == nil && cached != nil {
			cached.Cached = true
			s.metrics.RecordQuery(true, nil)
			span.SetAttributes(attribute.Bool("docqa.cached", true))
			return cached, nil
		}
	}

	retrieved, err := s.retriever.Retrieve(ctx, question, k, store.Filter{DocumentIDs: req.DocumentIDs})
	if err != nil {
		return nil, err
	}
	assembled, err := s.assembler.Assemble(retrieved, s.config.TokenBudget)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("docqa.hits", retrieved.Len()),
		attribute.Int("docqa.context_tokens", assembled.Tokens),
	)

	answer, err := s.generator.Generate(ctx, req.History, question, assembled)
	if err != nil {
		return nil, err
	}

	result = &QueryResult{
		Answer:    answer.Text,
		Citations: answer.Citations,
		Sources:   sourceFilenames(answer.Citations),
		Usage:     answer.Usage,

		HasContext: len(answer.Citations) > 0,
	}
	if cacheable && s.cache.enabled() {
		s.metrics.RecordCacheWrite(s.cache.Set(ctx, question, req.DocumentIDs, k, result))
	}
	s.metrics.RecordQuery(false, nil)
	return result, nil
}

func sourceFilenames(citations []Citation) []string {
	seen := make(map[string]struct{}, len(citations))
	sources := make([]string, 0, len(citations))
	for _, c := range citations {
		if _, ok := seen[c.Filename]; ok {
			continue
		}
		seen[c.Filename] = struct{}{}
		sources = append(sources, c.Filename)
	}
	return sources
}

// Stats 返回向量集合与文档统计。
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	idx, err := s.index.Stats(ctx)
	if err != nil {
		return nil, err
	}
	docs, err := s.docs.Count(ctx)
	if err != nil {
		return nil, err
	}

	stats := &Stats{
		Collection:        idx.Collection,
		Count:             idx.Count,
		Dimension:         idx.Dimension,
		Status:            idx.Status,
		Documents:         docs,
		EmbeddingProvider: s.embedder.Name(),
		ChatProvider:      s.generator.Name(),
	}
	if s.cache.enabled() {
		if cs, err := s.cache.Stats(ctx); err == nil {
			stats.Cache = cs
		}
	}
	return stats, nil
}

// GetDocument 查询文档记录。
func (s *Service) GetDocument(ctx context.Context, id string) (*model.Document, error) {
	return s.docs.Get(ctx, id)
}

// ListDocuments 分页列出文档。
func (s *Service) ListDocuments(ctx context.Context, offset, limit int) (*model.DocumentList, error) {
	return s.docs.List(ctx, offset, limit)
}

// DeleteDocument 删除文档及其全部向量记录。
func (s *Service) DeleteDocument(ctx context.Context, id string) (*DeleteResult, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	if _, err := s.docs.Get(ctx, id); err != nil {
		return nil, err
	}

	deleteCtx, cancel := withTimeout(ctx, s.config.IndexTimeout)
	n, err := s.index.Delete(deleteCtx, id)
	cancel()
	if err != nil {
		return nil, err
	}
	if err := s.docs.Delete(ctx, id); err != nil && !stderrors.Is(err, errors.ErrDocNotFound) {
		return nil, err
	}
	s.invalidateCache(ctx)

	logger.Infow("document deleted", "document_id", id, "records", n)
	return &DeleteResult{DocumentID: id, Records: n}, nil
}

// Package handler provides HTTP handlers for the docqa service.
package handler

import (
	"context"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/docqa/internal/model"
	"github.com/kart-io/docqa/internal/pkg/httputils"
	"github.com/kart-io/docqa/internal/pkg/rag/parser"
	"github.com/kart-io/docqa/internal/rag/biz"
	"github.com/kart-io/docqa/pkg/llm"
	"github.com/kart-io/docqa/pkg/utils/errors"
	"github.com/kart-io/docqa/pkg/utils/response"
	"github.com/kart-io/docqa/pkg/utils/validator"
)

// Service is the part of biz.Service the handlers call.
type Service interface {
	Ingest(ctx context.Context, req biz.IngestRequest) (*biz.IngestResult, error)
	IngestAsync(ctx context.Context, req biz.IngestRequest) (*biz.IngestResult, error)
	Query(ctx context.Context, req biz.QueryRequest) (*biz.QueryResult, error)
	Stats(ctx context.Context) (*biz.Stats, error)
	GetDocument(ctx context.Context, id string) (*model.Document, error)
	ListDocuments(ctx context.Context, offset, limit int) (*model.DocumentList, error)
	DeleteDocument(ctx context.Context, id string) (*biz.DeleteResult, error)
}

var _ Service = (*biz.Service)(nil)

const (
	defaultPageLimit = 20
	maxPageLimit     = 200
)

// Config 处理器配置。
type Config struct {
	// MaxFileSize 上传文件大小上限，超出部分不再读取。
	MaxFileSize int64
	// QueryTimeout 单次问答的超时时间，0 表示不限制。
	QueryTimeout time.Duration
	// MaxTopK 请求允许的最大 top_k。
	MaxTopK int
}

// RAGHandler handles docqa HTTP requests.
type RAGHandler struct {
	service   Service
	config    Config
	validator *validator.Validator
}

// NewRAGHandler creates a new RAGHandler.
func NewRAGHandler(service Service, config Config) *RAGHandler {
	if config.MaxTopK <= 0 {
		config.MaxTopK = 50
	}
	return &RAGHandler{
		service:   service,
		config:    config,
		validator: validator.Global(),
	}
}

// UploadForm 上传表单中除文件以外的字段。
type UploadForm struct {
	Type       string `form:"type" validate:"omitempty,max=128"`
	DocumentID string `form:"document_id" validate:"docid"`
	Async      bool   `form:"async"`
}

// Upload 接收 multipart 文件并入库。async=true 时立即返回 pending。
func (h *RAGHandler) Upload(c *gin.Context) {
	var form UploadForm
	if err := c.ShouldBind(&form); err != nil {
		httputils.WriteResponse(c, errors.ErrBind.WithCause(err), nil)
		return
	}
	if errs := h.validator.ValidateWithLang(form, httputils.Lang(c)); errs != nil {
		httputils.WriteResponse(c, errors.ErrInvalidParam.WithMessage(errs.First()), nil)
		return
	}

	fh, err := c.FormFile("file")
	if err != nil {
		httputils.WriteResponse(c, errors.ErrInvalidParam.WithMessage("file is required"), nil)
		return
	}
	f, err := fh.Open()
	if err != nil {
		httputils.WriteResponse(c, errors.ErrBind.WithCause(err), nil)
		return
	}
	defer f.Close()

	var r io.Reader = f
	if h.config.MaxFileSize > 0 {
		// 多读一个字节，让业务层识别超限
		r = io.LimitReader(f, h.config.MaxFileSize+1)
	}
	content, err := io.ReadAll(r)
	if err != nil {
		httputils.WriteResponse(c, errors.ErrBind.WithCause(err), nil)
		return
	}

	req := biz.IngestRequest{
		Filename:   fh.Filename,
		Type:       form.Type,
		Content:    content,
		DocumentID: form.DocumentID,
	}
	if req.Type == "" {
		// 只采用能识别的分片 Content-Type，其余交给扩展名和内容推断
		if ct := fh.Header.Get("Content-Type"); ct != "" {
			if _, err := parser.ParseTypeTag(ct); err == nil {
				req.Type = ct
			}
		}
	}

	ingest := h.service.Ingest
	if form.Async {
		ingest = h.service.IngestAsync
	}
	result, err := ingest(c.Request.Context(), req)
	if err != nil {
		httputils.WriteResponse(c, biz.ToErrno(err), nil)
		return
	}

	logger.Infow("document uploaded",
		"document_id", result.DocumentID,
		"filename", fh.Filename,
		"size", len(content),
		"status", result.Status,
		"async", form.Async,
	)
	httputils.WriteResponse(c, nil, result)
}

// ListDocuments 分页列出文档。
func (h *RAGHandler) ListDocuments(c *gin.Context) {
	offset, err := queryInt(c, "offset", 0)
	if err != nil || offset < 0 {
		httputils.WriteResponse(c, errors.ErrInvalidParam.WithMessage("offset must be a non-negative integer"), nil)
		return
	}
	limit, err := queryInt(c, "limit", defaultPageLimit)
	if err != nil || limit <= 0 {
		httputils.WriteResponse(c, errors.ErrInvalidParam.WithMessage("limit must be a positive integer"), nil)
		return
	}
	limit = min(limit, maxPageLimit)

	list, err := h.service.ListDocuments(c.Request.Context(), offset, limit)
	if err != nil {
		httputils.WriteResponse(c, biz.ToErrno(err), nil)
		return
	}
	httputils.WriteResponse(c, nil, response.Page(list.Items, list.TotalCount, offset, limit))
}

// GetDocument 返回单个文档的入库状态。
func (h *RAGHandler) GetDocument(c *gin.Context) {
	doc, err := h.service.GetDocument(c.Request.Context(), c.Param("id"))
	if err != nil {
		httputils.WriteResponse(c, biz.ToErrno(err), nil)
		return
	}
	httputils.WriteResponse(c, nil, doc)
}

// DeleteDocument 删除文档及其向量。
func (h *RAGHandler) DeleteDocument(c *gin.Context) {
	result, err := h.service.DeleteDocument(c.Request.Context(), c.Param("id"))
	if err != nil {
		httputils.WriteResponse(c, biz.ToErrno(err), nil)
		return
	}
	httputils.WriteResponse(c, nil, result)
}

// HistoryTurn 是一轮历史对话。
type HistoryTurn struct {
	Role    string `json:"role" validate:"oneof=user assistant"`
	Content string `json:"content" validate:"notblank"`
}

// QueryRequest represents a query request.
type QueryRequest struct {
	Question    string        `json:"question" validate:"notblank,max=4000"`
	DocumentIDs []string      `json:"document_ids" validate:"max=100,dive,required,docid"`
	History     []HistoryTurn `json:"history" validate:"max=50,dive"`
	TopK        int           `json:"top_k" validate:"gte=0"`
}

// Query 检索相关分块并生成带引用的答案。
func (h *RAGHandler) Query(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputils.WriteResponse(c, errors.ErrBind.WithCause(err), nil)
		return
	}
	if errs := h.validator.ValidateWithLang(req, httputils.Lang(c)); errs != nil {
		if strings.TrimSpace(req.Question) == "" {
			httputils.WriteResponse(c, errors.ErrQueryEmpty, nil)
			return
		}
		httputils.WriteResponse(c, errors.ErrInvalidParam.WithMessage(errs.First()), nil)
		return
	}
	if req.TopK > h.config.MaxTopK {
		httputils.WriteResponse(c, errors.ErrInvalidParam.WithMessagef("top_k must not exceed %d", h.config.MaxTopK), nil)
		return
	}

	history := make([]llm.Message, 0, len(req.History))
	for _, turn := range req.History {
		history = append(history, llm.Message{Role: llm.Role(turn.Role), Content: turn.Content})
	}

	ctx := c.Request.Context()
	if h.config.QueryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.config.QueryTimeout)
		defer cancel()
	}

	result, err := h.service.Query(ctx, biz.QueryRequest{
		Question:    req.Question,
		DocumentIDs: req.DocumentIDs,
		History:     history,
		TopK:        req.TopK,
	})
	if err != nil {
		httputils.WriteResponse(c, biz.ToErrno(err), nil)
		return
	}
	httputils.WriteResponse(c, nil, result)
}

// Stats returns knowledge base statistics.
func (h *RAGHandler) Stats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context())
	if err != nil {
		httputils.WriteResponse(c, biz.ToErrno(err), nil)
		return
	}
	httputils.WriteResponse(c, nil, stats)
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

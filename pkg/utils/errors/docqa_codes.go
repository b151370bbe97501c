package errors

import (
	"net/http"
	"time"
)

// DocQA 服务错误码: 20 (业务服务范围 20-79)
var (
	// 请求参数错误 (类别 01)
	ErrDocUnsupportedType = Register(New(MakeCode(ServiceDocQA, CategoryRequest, 1), http.StatusUnsupportedMediaType, "Unsupported document type", "不支持的文档类型"))
	ErrDocParseFailed     = Register(New(MakeCode(ServiceDocQA, CategoryRequest, 2), http.StatusUnprocessableEntity, "Document could not be parsed", "文档解析失败"))
	ErrDocTooLarge        = Register(New(MakeCode(ServiceDocQA, CategoryRequest, 3), http.StatusRequestEntityTooLarge, "Document exceeds the size limit", "文档超过大小限制"))
	ErrQueryEmpty         = Register(New(MakeCode(ServiceDocQA, CategoryRequest, 4), http.StatusBadRequest, "Question must not be empty", "问题不能为空"))

	// 资源错误 (类别 04)
	ErrDocNotFound = Register(New(MakeCode(ServiceDocQA, CategoryResource, 1), http.StatusNotFound, "Document not found", "文档不存在"))

	// 限流 (类别 06)
	ErrIngestBusy = Register(New(MakeCode(ServiceDocQA, CategoryRateLimit, 1), http.StatusServiceUnavailable, "Ingestion queue is full, retry later", "入库队列已满，请稍后重试").WithRetryAfter(time.Second))

	// 内部错误 (类别 07)
	ErrIndexDimension = Register(New(MakeCode(ServiceDocQA, CategoryInternal, 1), http.StatusInternalServerError, "Embedding dimension mismatch", "向量维度不匹配"))
	ErrIngestFailed   = Register(New(MakeCode(ServiceDocQA, CategoryInternal, 2), http.StatusInternalServerError, "Document ingestion failed", "文档入库失败"))

	// 外部服务错误 (类别 10)
	ErrEmbeddingFailed  = Register(New(MakeCode(ServiceDocQA, CategoryNetwork, 1), http.StatusBadGateway, "Embedding provider failed", "向量化服务失败"))
	ErrIndexUnavailable = Register(New(MakeCode(ServiceDocQA, CategoryNetwork, 2), http.StatusServiceUnavailable, "Vector index unavailable, retry later", "向量库不可用，请稍后重试").WithRetryAfter(5*time.Second))
	ErrGenerationFailed = Register(New(MakeCode(ServiceDocQA, CategoryNetwork, 3), http.StatusBadGateway, "Answer generation failed", "答案生成失败"))

	// 超时 (类别 11)
	ErrQueryTimeout = Register(New(MakeCode(ServiceDocQA, CategoryTimeout, 1), http.StatusGatewayTimeout, "Query timeout", "查询超时"))
)

package errors

import "net/http"

// OK 表示成功。
var OK = &Errno{Code: 0, HTTP: http.StatusOK, MessageEN: "success", MessageZH: "成功"}

// 通用错误 (服务代码 00)
var (
	ErrInvalidParam = Register(New(MakeCode(ServiceCommon, CategoryRequest, 0), http.StatusBadRequest, "Invalid parameter", "参数错误"))
	ErrBind         = Register(New(MakeCode(ServiceCommon, CategoryRequest, 1), http.StatusBadRequest, "Failed to bind request", "请求解析失败"))
	ErrNotFound     = Register(New(MakeCode(ServiceCommon, CategoryResource, 0), http.StatusNotFound, "Resource not found", "资源不存在"))
	ErrTimeout      = Register(New(MakeCode(ServiceCommon, CategoryTimeout, 0), http.StatusGatewayTimeout, "Request timeout", "请求超时"))
	ErrInternal     = Register(New(MakeCode(ServiceCommon, CategoryInternal, 0), http.StatusInternalServerError, "Internal server error", "服务器内部错误"))
)

// 基础设施错误
var (
	ErrDatabase = Register(New(MakeCode(ServiceInfraDB, CategoryDatabase, 0), http.StatusInternalServerError, "Database error", "数据库错误"))
	ErrCache    = Register(New(MakeCode(ServiceInfraCache, CategoryCache, 0), http.StatusInternalServerError, "Cache error", "缓存错误"))
)

package errors

// 服务代码 (AA)
const (
	ServiceCommon     = 0  // 通用错误
	ServiceInfraDB    = 10 // 数据库
	ServiceInfraCache = 11 // 缓存
	ServiceDocQA      = 20 // 文档问答服务
)

// 错误类别 (BB)。01-06 对应客户端错误，07-12 对应服务端错误。
const (
	CategoryRequest   = 1
	CategoryResource  = 4
	CategoryRateLimit = 6
	CategoryInternal  = 7
	CategoryDatabase  = 8
	CategoryCache     = 9
	CategoryNetwork   = 10
	CategoryTimeout   = 11
	categoryMax       = 12
)

const (
	serviceUnit  = 100000
	categoryUnit = 1000
)

// MakeCode 按 AABBCCC 格式组合错误码。
func MakeCode(service, category, sequence int) int {
	return service*serviceUnit + category*categoryUnit + sequence
}

// ParseCode 拆分错误码。
func ParseCode(code int) (service, category, sequence int) {
	return code / serviceUnit, GetCategory(code), code % categoryUnit
}

// GetCategory 返回错误码中的类别。
func GetCategory(code int) int {
	return (code % serviceUnit) / categoryUnit
}

// IsClientError 判断错误码是否属于客户端错误 (4xx)。
func IsClientError(code int) bool {
	c := GetCategory(code)
	return c >= CategoryRequest && c < CategoryInternal
}

// IsServerError 判断错误码是否属于服务端错误 (5xx)。
func IsServerError(code int) bool {
	c := GetCategory(code)
	return c >= CategoryInternal && c <= categoryMax
}

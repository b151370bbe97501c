package llm

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind 对供应商错误分类，决定是否重试。
type ErrorKind int

const (
	// KindPermanent 无效请求、鉴权失败、内容策略拒绝等，重试无意义。
	KindPermanent ErrorKind = iota
	// KindRateLimited 供应商限流。
	KindRateLimited
	// KindTransient 超时、连接失败、5xx。
	KindTransient
)

func (k ErrorKind) String() string {
	switch k {
	case KindRateLimited:
		return "rate_limited"
	case KindTransient:
		return "transient"
	default:
		return "permanent"
	}
}

// ProviderError 是供应商调用失败时返回的统一错误。
type ProviderError struct {
	Provider   string
	StatusCode int
	Kind       ErrorKind
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %s error (status %d): %v", e.Provider, e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %s error: %v", e.Provider, e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Retryable 报告该错误是否值得重试。
func (e *ProviderError) Retryable() bool {
	return e.Kind != KindPermanent
}

// KindForStatus 将 HTTP 状态码映射为错误分类。
func KindForStatus(status int) ErrorKind {
	switch {
	case status == http.StatusTooManyRequests:
		return KindRateLimited
	case status == http.StatusRequestTimeout, status >= 500:
		return KindTransient
	default:
		return KindPermanent
	}
}

// NewStatusError 根据 HTTP 状态码构造 ProviderError。
func NewStatusError(provider string, status int, err error) *ProviderError {
	return &ProviderError{Provider: provider, StatusCode: status, Kind: KindForStatus(status), Err: err}
}

// IsRateLimited 判断 err 是否为限流错误。
func IsRateLimited(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.Kind == KindRateLimited
}

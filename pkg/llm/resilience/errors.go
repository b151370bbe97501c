package resilience

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/kart-io/docqa/pkg/llm"
	"github.com/kart-io/docqa/pkg/utils/httpclient"
)

// IsRetryableError 判断错误是否为瞬时错误（超时、限流、连接失败、5xx）。
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	var pe *llm.ProviderError
	if errors.As(err, &pe) {
		return pe.Retryable()
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	if status := httpclient.StatusCode(err); status != 0 {
		return status == http.StatusTooManyRequests ||
			status == http.StatusRequestTimeout ||
			status >= 500
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

// IsRateLimitError 判断错误是否为限流信号。
func IsRateLimitError(err error) bool {
	if llm.IsRateLimited(err) {
		return true
	}
	return httpclient.StatusCode(err) == http.StatusTooManyRequests
}

// Package resilience 提供外部调用的韧性模式：有界重试与熔断器。
package resilience

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kart-io/logger"
)

// SleepFunc 在两次尝试之间等待；ctx 取消时应立即返回 ctx.Err()。
type SleepFunc func(ctx context.Context, d time.Duration) error

// RetryConfig 重试配置。
type RetryConfig struct {
	// MaxAttempts 最大尝试次数（包括首次调用）。
	MaxAttempts int
	// InitialDelay 初始延迟时间。
	InitialDelay time.Duration
	// MaxDelay 最大延迟时间。
	MaxDelay time.Duration
	// Multiplier 延迟倍增因子（指数退避）。
	Multiplier float64
	// RetryableErrors 可重试的错误判断函数，为空时使用 IsRetryableError。
	RetryableErrors func(error) bool
	// Sleep 注入的等待函数，为空时使用计时器。测试中可替换为立即返回。
	Sleep SleepFunc
	// OnRetry 每次决定重试前回调，可为空。
	OnRetry func(attempt int, err error)
}

// DefaultRetryConfig 返回默认重试配置。
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:     3,
		InitialDelay:    500 * time.Millisecond,
		MaxDelay:        10 * time.Second,
		Multiplier:      2.0,
		RetryableErrors: IsRetryableError,
	}
}

// NoDelay 是不等待的 SleepFunc，只检查 ctx。
func NoDelay(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}

// TimerSleep 使用计时器等待 d。
func TimerSleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ErrRetriesExhausted 表示重试预算已耗尽。
var ErrRetriesExhausted = errors.New("max retry attempts reached")

// RetryWithBackoff 使用指数退避重试 fn，最多执行 MaxAttempts 次。
// 不可重试的错误原样返回；预算耗尽时返回同时包装 ErrRetriesExhausted 和最后一次错误的错误。
func RetryWithBackoff(ctx context.Context, config *RetryConfig, fn func(ctx context.Context) error) error {
	if config == nil {
		config = DefaultRetryConfig()
	}
	retryable := config.RetryableErrors
	if retryable == nil {
		retryable = IsRetryableError
	}
	sleep := config.Sleep
	if sleep == nil {
		sleep = TimerSleep
	}
	maxAttempts := config.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	delay := config.InitialDelay
	for attempt := 1; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%w (last error: %v)", ctxErr, err)
		}

		if !retryable(err) {
			logger.Debugw("error is not retryable", "error", err.Error())
			return err
		}

		if attempt >= maxAttempts {
			logger.Warnw("max retry attempts reached",
				"attempts", attempt,
				"error", err.Error(),
			)
			return fmt.Errorf("%w (%d): %w", ErrRetriesExhausted, maxAttempts, err)
		}

		if config.OnRetry != nil {
			config.OnRetry(attempt, err)
		}
		logger.Debugw("retrying after delay",
			"attempt", attempt,
			"delay", delay,
			"error", err.Error(),
		)

		if err := sleep(ctx, delay); err != nil {
			return err
		}

		delay = time.Duration(float64(delay) * config.Multiplier)
		if config.MaxDelay > 0 && delay > config.MaxDelay {
			delay = config.MaxDelay
		}
	}
}

// CircuitBreakerConfig 熔断器配置。
type CircuitBreakerConfig struct {
	// MaxFailures 触发熔断的连续失败次数。
	MaxFailures int
	// Timeout 熔断器打开后转为半开前的等待时间。
	Timeout time.Duration
	// HalfOpenMaxCalls 半开状态允许的最大探测调用次数。
	HalfOpenMaxCalls int
}

// DefaultCircuitBreakerConfig 返回默认熔断器配置。
func DefaultCircuitBreakerConfig() *CircuitBreakerConfig {
	return &CircuitBreakerConfig{
		MaxFailures:      5,
		Timeout:          30 * time.Second,
		HalfOpenMaxCalls: 1,
	}
}

// CircuitBreakerState 熔断器状态。
type CircuitBreakerState int

const (
	// StateClosed 熔断器关闭，正常工作。
	StateClosed CircuitBreakerState = iota
	// StateOpen 熔断器打开，拒绝所有请求。
	StateOpen
	// StateHalfOpen 熔断器半开，允许部分请求探测。
	StateHalfOpen
)

func (s CircuitBreakerState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrCircuitBreakerOpen 熔断器打开错误。
var ErrCircuitBreakerOpen = errors.New("circuit breaker is open")

// CircuitBreaker 熔断器实现。
type CircuitBreaker struct {
	name   string
	config *CircuitBreakerConfig
	now    func() time.Time

	mu                sync.Mutex
	state             CircuitBreakerState
	failures          int
	lastFailureTime   time.Time
	halfOpenCalls     int
	halfOpenSuccesses int
}

// NewCircuitBreaker 创建熔断器。
func NewCircuitBreaker(name string, config *CircuitBreakerConfig) *CircuitBreaker {
	if config == nil {
		config = DefaultCircuitBreakerConfig()
	}
	return &CircuitBreaker{
		name:   name,
		config: config,
		now:    time.Now,
		state:  StateClosed,
	}
}

// Execute 通过熔断器执行函数。
// ignore 返回 true 的错误不计入失败次数（例如调用方自身的参数错误）。
func (cb *CircuitBreaker) Execute(fn func() error, ignore func(error) bool) error {
	if err := cb.beforeCall(); err != nil {
		return err
	}

	err := fn()
	if err != nil && ignore != nil && ignore(err) {
		cb.afterCall(nil)
		return err
	}
	cb.afterCall(err)
	return err
}

func (cb *CircuitBreaker) beforeCall() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return nil
	case StateOpen:
		if cb.now().Sub(cb.lastFailureTime) > cb.config.Timeout {
			logger.Infow("circuit breaker transitioning to half-open", "name", cb.name)
			cb.state = StateHalfOpen
			cb.halfOpenCalls = 1
			cb.halfOpenSuccesses = 0
			return nil
		}
		return ErrCircuitBreakerOpen
	case StateHalfOpen:
		if cb.halfOpenCalls >= cb.config.HalfOpenMaxCalls {
			return ErrCircuitBreakerOpen
		}
		cb.halfOpenCalls++
		return nil
	default:
		return ErrCircuitBreakerOpen
	}
}

func (cb *CircuitBreaker) afterCall(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err == nil {
		switch cb.state {
		case StateClosed:
			cb.failures = 0
		case StateHalfOpen:
			cb.halfOpenSuccesses++
			if cb.halfOpenSuccesses >= cb.halfOpenCalls {
				logger.Infow("circuit breaker transitioning to closed", "name", cb.name)
				cb.state = StateClosed
				cb.failures = 0
			}
		}
		return
	}

	cb.failures++
	cb.lastFailureTime = cb.now()
	switch cb.state {
	case StateClosed:
		if cb.failures >= cb.config.MaxFailures {
			logger.Warnw("circuit breaker opening",
				"name", cb.name,
				"failures", cb.failures,
				"max_failures", cb.config.MaxFailures,
			)
			cb.state = StateOpen
		}
	case StateHalfOpen:
		logger.Warnw("circuit breaker re-opening after half-open failure", "name", cb.name)
		cb.state = StateOpen
	}
}

// State 获取当前状态。
func (cb *CircuitBreaker) State() CircuitBreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Reset 重置熔断器状态。
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.state = StateClosed
	cb.failures = 0
	cb.halfOpenCalls = 0
	cb.halfOpenSuccesses = 0
}

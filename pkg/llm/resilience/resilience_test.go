package resilience

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/docqa/pkg/llm"
	"github.com/kart-io/docqa/pkg/utils/httpclient"
)

func zeroDelayConfig(attempts int) *RetryConfig {
	return &RetryConfig{
		MaxAttempts:  attempts,
		InitialDelay: time.Second,
		MaxDelay:     time.Minute,
		Multiplier:   2,
		Sleep:        NoDelay,
	}
}

func TestRetryWithBackoff_SucceedsAfterTransientErrors(t *testing.T) {
	calls := 0
	err := RetryWithBackoff(context.Background(), zeroDelayConfig(3), func(context.Context) error {
		calls++
		if calls < 3 {
			return llm.NewStatusError("mock", http.StatusTooManyRequests, errors.New("slow down"))
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryWithBackoff_Exhausted(t *testing.T) {
	calls := 0
	cause := llm.NewStatusError("mock", http.StatusServiceUnavailable, errors.New("down"))
	err := RetryWithBackoff(context.Background(), zeroDelayConfig(4), func(context.Context) error {
		calls++
		return cause
	})
	require.Error(t, err)
	assert.Equal(t, 4, calls)
	assert.ErrorIs(t, err, ErrRetriesExhausted)
	assert.ErrorIs(t, err, cause)
}

func TestRetryWithBackoff_PermanentErrorNotRetried(t *testing.T) {
	calls := 0
	err := RetryWithBackoff(context.Background(), zeroDelayConfig(5), func(context.Context) error {
		calls++
		return llm.NewStatusError("mock", http.StatusBadRequest, errors.New("bad prompt"))
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.NotErrorIs(t, err, ErrRetriesExhausted)
}

func TestRetryWithBackoff_ExponentialDelays(t *testing.T) {
	var delays []time.Duration
	cfg := &RetryConfig{
		MaxAttempts:  5,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     300 * time.Millisecond,
		Multiplier:   2,
		Sleep: func(_ context.Context, d time.Duration) error {
			delays = append(delays, d)
			return nil
		},
	}

	_ = RetryWithBackoff(context.Background(), cfg, func(context.Context) error {
		return context.DeadlineExceeded
	})

	assert.Equal(t, []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		300 * time.Millisecond,
		300 * time.Millisecond,
	}, delays)
}

func TestRetryWithBackoff_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := RetryWithBackoff(ctx, zeroDelayConfig(5), func(context.Context) error {
		calls++
		cancel()
		return context.DeadlineExceeded
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"rate limited", llm.NewStatusError("p", 429, errors.New("x")), true},
		{"server error", llm.NewStatusError("p", 502, errors.New("x")), true},
		{"invalid request", llm.NewStatusError("p", 400, errors.New("x")), false},
		{"deadline", context.DeadlineExceeded, true},
		{"cancelled", context.Canceled, false},
		{"http 503", &httpclient.StatusError{StatusCode: 503}, true},
		{"http 401", &httpclient.StatusError{StatusCode: 401}, false},
		{"plain", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryableError(tt.err))
		})
	}

	assert.True(t, IsRateLimitError(&httpclient.StatusError{StatusCode: 429}))
	assert.False(t, IsRateLimitError(llm.NewStatusError("p", 500, errors.New("x"))))
}

func TestCircuitBreaker_OpenOnMaxFailures(t *testing.T) {
	cb := NewCircuitBreaker("test", &CircuitBreakerConfig{
		MaxFailures:      3,
		Timeout:          time.Second,
		HalfOpenMaxCalls: 1,
	})

	testErr := errors.New("test error")
	for i := 0; i < 3; i++ {
		assert.Error(t, cb.Execute(func() error { return testErr }, nil))
	}
	assert.Equal(t, StateOpen, cb.State())

	err := cb.Execute(func() error { return nil }, nil)
	assert.ErrorIs(t, err, ErrCircuitBreakerOpen)
}

func TestCircuitBreaker_HalfOpenTransition(t *testing.T) {
	cb := NewCircuitBreaker("test", &CircuitBreakerConfig{
		MaxFailures:      2,
		Timeout:          time.Minute,
		HalfOpenMaxCalls: 1,
	})
	now := time.Now()
	cb.now = func() time.Time { return now }

	testErr := errors.New("test error")
	for i := 0; i < 2; i++ {
		_ = cb.Execute(func() error { return testErr }, nil)
	}
	require.Equal(t, StateOpen, cb.State())

	now = now.Add(2 * time.Minute)
	require.NoError(t, cb.Execute(func() error { return nil }, nil))
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_IgnoredErrorsDoNotTrip(t *testing.T) {
	cb := NewCircuitBreaker("test", &CircuitBreakerConfig{MaxFailures: 1, Timeout: time.Minute, HalfOpenMaxCalls: 1})
	ignored := errors.New("caller error")

	err := cb.Execute(func() error { return ignored }, func(err error) bool { return errors.Is(err, ignored) })
	assert.ErrorIs(t, err, ignored)
	assert.Equal(t, StateClosed, cb.State())

	cb.Reset()
	assert.Equal(t, StateClosed, cb.State())
}

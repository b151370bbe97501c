package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestPostJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"embedding":[0.1,0.2]}`))
	}))
	defer srv.Close()

	c := NewClient(5*time.Second, 0)
	var out struct {
		Embedding []float32 `json:"embedding"`
	}
	err := c.PostJSON(context.Background(), srv.URL, map[string]string{"Authorization": "Bearer k"}, map[string]string{"prompt": "hi"}, &out)
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2}, out.Embedding)
}

func TestDoJSONStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte("slow down"))
	}))
	defer srv.Close()

	c := NewClient(5*time.Second, 0)
	err := c.PostJSON(context.Background(), srv.URL, nil, struct{}{}, nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusTooManyRequests, StatusCode(err))
	assert.Contains(t, err.Error(), "slow down")
}

func TestDoRequestRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewClient(5*time.Second, 2)
	c.backoff = time.Millisecond
	require.NoError(t, c.PostJSON(context.Background(), srv.URL, nil, struct{}{}, nil))
	assert.Equal(t, int32(3), calls.Load())
}

func TestInjectTraceContext(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()
	otel.SetTextMapPropagator(propagation.TraceContext{})

	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	defer span.End()

	req := httptest.NewRequest(http.MethodGet, "http://example.com", nil).WithContext(ctx)
	NewClient(time.Second, 0).injectTraceContext(req)
	assert.NotEmpty(t, req.Header.Get("traceparent"))
}

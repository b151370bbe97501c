package middleware

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/version"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/docqa/internal/pkg/httputils"
	"github.com/kart-io/docqa/pkg/utils/errors"
	"github.com/kart-io/docqa/pkg/utils/json"
)

func newEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Recovery(), RequestID(), Logger("/healthz"), Tracing("/healthz"))
	return r
}

func TestRequestID(t *testing.T) {
	r := newEngine()
	r.GET("/id", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(httputils.RequestIDKey))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/id", nil))
	generated := w.Header().Get(HeaderXRequestID)
	assert.Len(t, generated, 32)
	assert.Equal(t, generated, w.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/id", nil)
	req.Header.Set(HeaderXRequestID, "abc-123")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get(HeaderXRequestID))
	assert.Equal(t, "abc-123", w.Body.String())
}

func TestRecovery(t *testing.T) {
	r := newEngine()
	r.GET("/panic", func(*gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var body struct {
		Code      int    `json:"code"`
		Message   string `json:"message"`
		RequestID string `json:"request_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, errors.ErrInternal.Code, body.Code)
	assert.Equal(t, "panic: boom", body.Message)
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	assert.Equal(t, "10.0.0.1", clientIP(req))

	req.Header.Set("X-Real-IP", "10.0.0.2")
	assert.Equal(t, "10.0.0.2", clientIP(req))

	req.Header.Set("X-Forwarded-For", "10.0.0.3, 10.0.0.4")
	assert.Equal(t, "10.0.0.3", clientIP(req))
}

func TestHealth(t *testing.T) {
	h := NewHealthManager("v1.2.3", 0)
	r := newEngine()
	r.GET("/healthz", h.Handler())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, HealthStatusUp, resp.Status)
	assert.Equal(t, "v1.2.3", resp.Version)

	h.RegisterChecker("database", func(context.Context) error { return nil })
	h.RegisterChecker("redis", func(context.Context) error { return fmt.Errorf("connection refused") })

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, HealthStatusDown, resp.Status)
	assert.Equal(t, CheckResult{Status: HealthStatusUp}, resp.Checks["database"])
	assert.Equal(t, CheckResult{Status: HealthStatusDown, Message: "connection refused"}, resp.Checks["redis"])
}

func TestHealthCheckTimeout(t *testing.T) {
	h := NewHealthManager("", 0)
	h.RegisterChecker("slow", func(ctx context.Context) error {
		_, ok := ctx.Deadline()
		if !ok {
			return fmt.Errorf("no deadline")
		}
		return nil
	})
	assert.Equal(t, HealthStatusUp, h.Check(context.Background()).Status)
}

func TestVersionHandler(t *testing.T) {
	r := newEngine()
	r.GET("/version", VersionHandler("docqa", false))
	r.GET("/version/short", VersionHandler("docqa", true))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/version", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var full VersionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &full))
	assert.Equal(t, "docqa", full.Service)
	assert.Equal(t, version.Get().GitVersion, full.GitVersion)
	assert.Equal(t, version.Get().GoVersion, full.GoVersion)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/version/short", nil))
	var short VersionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &short))
	assert.Empty(t, short.GoVersion)
	assert.Empty(t, short.Platform)
}

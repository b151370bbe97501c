// Package httputils provides HTTP utility functions.
package httputils

import (
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/docqa/pkg/utils/errors"
	"github.com/kart-io/docqa/pkg/utils/response"
)

// RequestIDKey is the gin context key holding the request id.
const RequestIDKey = "request_id"

// Lang returns the preferred response language of the request.
func Lang(c *gin.Context) string {
	if strings.HasPrefix(strings.ToLower(c.GetHeader("Accept-Language")), "zh") {
		return "zh"
	}
	return "en"
}

// WriteResponse writes the response to the client.
// Client errors carry their cause in the message; server errors are logged
// and answered with the bare code message.
func WriteResponse(c *gin.Context, err error, data any) {
	if err != nil {
		e := errors.FromError(err)
		resp := response.ErrWithLang(e, Lang(c))
		defer response.Release(resp)

		if cause := e.Unwrap(); cause != nil {
			if e.HTTPStatus() < http.StatusInternalServerError {
				resp.Message += ": " + cause.Error()
			} else {
				logger.Errorw("request failed",
					"method", c.Request.Method,
					"path", c.FullPath(),
					"code", e.Code,
					"error", cause.Error(),
				)
			}
		}
		if e.Retryable() {
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(e.RetryAfter.Seconds()))))
		}
		resp.WithRequestID(c.GetString(RequestIDKey))
		c.JSON(resp.HTTPStatus(), resp)
		return
	}

	// data can be *response.Response (e.g. from response.Page) or raw data
	resp, ok := data.(*response.Response)
	if !ok {
		resp = response.Success(data)
	}
	defer response.Release(resp)
	resp.WithRequestID(c.GetString(RequestIDKey))
	c.JSON(resp.HTTPStatus(), resp)
}

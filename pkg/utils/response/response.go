// Package response provides unified API response structures.
// All docqa endpoints answer with the same {code, message, data} envelope.
package response

import (
	"net/http"
	"sync"

	"github.com/kart-io/docqa/pkg/utils/errors"
)

// Response is the unified API response structure.
type Response struct {
	// Code is the business error code (0 = success)
	Code int `json:"code"`

	// HTTPCode is the HTTP status code, not serialized
	HTTPCode int `json:"-"`

	// Message is a human-readable message
	Message string `json:"message"`

	// Data contains the response payload (nil for errors)
	Data any `json:"data,omitempty"`

	// RequestID is the unique request identifier for tracing
	RequestID string `json:"request_id,omitempty"`
}

// PageData represents one window of a listing.
type PageData struct {
	List   any   `json:"list"`
	Total  int64 `json:"total"`
	Offset int   `json:"offset"`
	Limit  int   `json:"limit"`
}

var pool = sync.Pool{
	New: func() any { return new(Response) },
}

// Acquire returns a zeroed Response from the pool.
func Acquire() *Response {
	return pool.Get().(*Response)
}

// Release resets r and puts it back to the pool. r must not be used afterwards.
func Release(r *Response) {
	if r == nil {
		return
	}
	*r = Response{}
	pool.Put(r)
}

// Success creates a successful response with data.
func Success(data any) *Response {
	r := Acquire()
	r.Code = 0
	r.HTTPCode = http.StatusOK
	r.Message = "success"
	r.Data = data
	return r
}

// SuccessWithMessage creates a successful response with custom message.
func SuccessWithMessage(message string, data any) *Response {
	r := Success(data)
	r.Message = message
	return r
}

// Err creates an error response from an Errno.
func Err(e *errors.Errno) *Response {
	return ErrWithLang(e, "en")
}

// ErrWithLang creates an error response with language-specific message.
func ErrWithLang(e *errors.Errno, lang string) *Response {
	if e == nil {
		return Success(nil)
	}
	r := Acquire()
	r.Code = e.Code
	r.HTTPCode = e.HTTPStatus()
	r.Message = e.Message(lang)
	return r
}

// Page creates a listing response.
func Page(list any, total int64, offset, limit int) *Response {
	return Success(&PageData{List: list, Total: total, Offset: offset, Limit: limit})
}

// WithRequestID adds request ID to the response.
func (r *Response) WithRequestID(requestID string) *Response {
	r.RequestID = requestID
	return r
}

// IsSuccess returns true if the response indicates success.
func (r *Response) IsSuccess() bool {
	return r.Code == 0
}

// HTTPStatus returns the HTTP status code for this response.
func (r *Response) HTTPStatus() int {
	if r.HTTPCode != 0 {
		return r.HTTPCode
	}
	if r.Code == 0 {
		return http.StatusOK
	}
	if e, ok := errors.Lookup(r.Code); ok {
		return e.HTTPStatus()
	}

	switch errors.GetCategory(r.Code) {
	case errors.CategoryRequest:
		return http.StatusBadRequest
	case errors.CategoryResource:
		return http.StatusNotFound
	case errors.CategoryRateLimit:
		return http.StatusTooManyRequests
	case errors.CategoryTimeout:
		return http.StatusGatewayTimeout
	case errors.CategoryNetwork:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

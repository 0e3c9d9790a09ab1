package httpkit

import (
	"context"
	"encoding/json"
	"net/http"
)

// HTTPError interface for HTTP-aware errors with detailed causes
type HTTPError interface {
	HTTPCode() int
	Cause() error
	error
}

const (
	contentTypeHeader  = "Content-Type"
	contentTypeOptions = "X-Content-Type-Options"
	cacheControlHeader = "Cache-Control"
)

var (
	jsonContentType           = []string{"application/json; charset=utf-8"}
	nosniffContentTypeOptions = []string{"nosniff"}
	noStore                   = []string{"no-store"}
)

func addHeaderIfNotSet(w http.ResponseWriter, key string, value []string) {
	header := w.Header()
	if val := header[key]; len(val) == 0 {
		header[key] = value
	}
}

// jsonHeaders marks the response as uncacheable JSON; health data is only valid at the moment it is read
func jsonHeaders(w http.ResponseWriter) {
	addHeaderIfNotSet(w, contentTypeHeader, jsonContentType)
	addHeaderIfNotSet(w, contentTypeOptions, nosniffContentTypeOptions)
	addHeaderIfNotSet(w, cacheControlHeader, noStore)
}

type ctxKeyError struct{}

type errorHolder struct {
	err error
}

// WithErrorTracking creates context with error tracking capability, or returns existing context if already present
func WithErrorTracking(ctx context.Context) context.Context {
	if _, ok := ctx.Value(ctxKeyError{}).(*errorHolder); ok {
		return ctx
	}
	return context.WithValue(ctx, ctxKeyError{}, &errorHolder{})
}

// SetError records the error of the current request for the access log
func SetError(ctx context.Context, err error) {
	if holder, ok := ctx.Value(ctxKeyError{}).(*errorHolder); ok {
		holder.err = err
	}
}

// Error returns the error recorded for the current request, if any
func Error(ctx context.Context) error {
	if holder, ok := ctx.Value(ctxKeyError{}).(*errorHolder); ok {
		return holder.err
	}
	return nil
}

// HandlerFunc is a handler that picks the response writer to run
type HandlerFunc func(http.ResponseWriter, *http.Request) http.HandlerFunc

func (h HandlerFunc) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	r = r.WithContext(WithErrorTracking(r.Context()))

	if handler := h(w, r); handler != nil {
		handler(w, r)
	}
}

// JSON creates a handler that writes data as JSON with the given status code
func JSON(status int, data any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jsonHeaders(w)
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(data)
	}
}

// JsonError creates a handler that sets an error in context and writes the error response
func JsonError(err HTTPError) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		SetError(r.Context(), err)

		jsonHeaders(w)
		w.WriteHeader(err.HTTPCode())
		_ = json.NewEncoder(w).Encode(err)
	}
}

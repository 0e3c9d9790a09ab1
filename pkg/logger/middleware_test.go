package logger_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/screwyprof/keeper/pkg/httpkit"
	"github.com/screwyprof/keeper/pkg/logger"
)

// Error is a test error type that implements httpkit.HTTPError
type Error struct {
	err  error
	code int
}

func (e Error) Error() string { return e.err.Error() }
func (e Error) HTTPCode() int { return e.code }
func (e Error) Cause() error  { return e.err }

// logEntry represents a parsed log entry for testing
type logEntry struct {
	Level    string  `json:"level"`
	Msg      string  `json:"msg"`
	Method   string  `json:"method"`
	URI      string  `json:"uri"`
	Status   int     `json:"status"`
	Duration float64 `json:"duration"` // slog logs duration as nanoseconds (number)
	BytesIn  int     `json:"bytes_in"`
	BytesOut int     `json:"bytes_out"`
	Error    string  `json:"error,omitempty"`
}

func debugLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// parseLogEntry parses a single JSON log line
func parseLogEntry(t *testing.T, logOutput string) logEntry {
	t.Helper()

	// Get the last line (most recent log entry)
	lines := strings.Split(strings.TrimSpace(logOutput), "\n")
	lastLine := lines[len(lines)-1]

	var entry logEntry
	err := json.Unmarshal([]byte(lastLine), &entry)
	require.NoError(t, err, "Should parse log entry as JSON")

	return entry
}

func TestNewMiddleware(t *testing.T) {
	t.Parallel()

	t.Run("it logs successful probes at debug level", func(t *testing.T) {
		t.Parallel()

		// Arrange
		var logBuffer bytes.Buffer
		log := debugLogger(&logBuffer)

		successHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"status": "ok"}`))
		})

		middleware := logger.NewMiddleware(log)(successHandler)
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		rec := httptest.NewRecorder()

		// Act
		middleware.ServeHTTP(rec, req)

		// Assert
		assert.Equal(t, http.StatusOK, rec.Code)

		entry := parseLogEntry(t, logBuffer.String())
		assert.Equal(t, "DEBUG", entry.Level)
		assert.Equal(t, "HTTP", entry.Msg)
		assert.Equal(t, http.MethodGet, entry.Method)
		assert.Equal(t, "/healthz", entry.URI)
		assert.Equal(t, http.StatusOK, entry.Status)
		assert.Greater(t, entry.Duration, 0.0)
		assert.Equal(t, req.ContentLength, int64(entry.BytesIn))
		assert.Equal(t, rec.Body.Len(), entry.BytesOut)
		assert.Empty(t, entry.Error)
	})

	t.Run("it keeps successful probes out of info logs", func(t *testing.T) {
		t.Parallel()

		// Arrange
		var logBuffer bytes.Buffer
		log := slog.New(slog.NewJSONHandler(&logBuffer, &slog.HandlerOptions{Level: slog.LevelInfo}))
		middleware := logger.NewMiddleware(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

		// Act
		middleware.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/metrics", nil))

		// Assert
		assert.Empty(t, logBuffer.String())
	})

	t.Run("it logs client errors at warn level with error details", func(t *testing.T) {
		t.Parallel()

		// Arrange
		var logBuffer bytes.Buffer
		log := debugLogger(&logBuffer)

		notFoundHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			routeErr := errors.New("no route for /vaults")
			apiErr := Error{err: routeErr, code: http.StatusNotFound}
			httpkit.JsonError(apiErr)(w, r)
		})

		middleware := logger.NewMiddleware(log)(notFoundHandler)
		req := httptest.NewRequest(http.MethodGet, "/vaults", nil)
		rec := httptest.NewRecorder()

		// Act
		middleware.ServeHTTP(rec, req)

		// Assert
		assert.Equal(t, http.StatusNotFound, rec.Code)

		entry := parseLogEntry(t, logBuffer.String())
		assert.Equal(t, "WARN", entry.Level)
		assert.Equal(t, "HTTP", entry.Msg)
		assert.Equal(t, "/vaults", entry.URI)
		assert.Equal(t, http.StatusNotFound, entry.Status)
		assert.Equal(t, "no route for /vaults", entry.Error)
	})

	t.Run("it logs an unhealthy keeper at error level with the cause", func(t *testing.T) {
		t.Parallel()

		// Arrange
		var logBuffer bytes.Buffer
		log := debugLogger(&logBuffer)

		unhealthyHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			staleErr := errors.New("no recent completed pass: none for 2m0s")
			apiErr := Error{err: staleErr, code: http.StatusServiceUnavailable}
			httpkit.JsonError(apiErr)(w, r)
		})

		middleware := logger.NewMiddleware(log)(unhealthyHandler)
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		rec := httptest.NewRecorder()

		// Act
		middleware.ServeHTTP(rec, req)

		// Assert
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

		entry := parseLogEntry(t, logBuffer.String())
		assert.Equal(t, "ERROR", entry.Level)
		assert.Equal(t, "/healthz", entry.URI)
		assert.Equal(t, http.StatusServiceUnavailable, entry.Status)
		assert.Equal(t, "no recent completed pass: none for 2m0s", entry.Error)
	})

	t.Run("it captures request duration accurately", func(t *testing.T) {
		t.Parallel()

		// Arrange
		var logBuffer bytes.Buffer
		log := debugLogger(&logBuffer)

		slowHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(10 * time.Millisecond) // Small delay
			w.WriteHeader(http.StatusOK)
		})

		middleware := logger.NewMiddleware(log)(slowHandler)
		req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
		rec := httptest.NewRecorder()

		// Act
		start := time.Now()
		middleware.ServeHTTP(rec, req)
		actualDuration := time.Since(start)

		// Assert
		entry := parseLogEntry(t, logBuffer.String())

		// Duration should be at least 10ms (our artificial delay)
		assert.GreaterOrEqual(t, entry.Duration, 10_000_000.0) // 10ms in nanoseconds

		// Duration should be reasonably close to actual duration (within 50ms tolerance)
		toleranceNs := 50_000_000.0 // 50ms in nanoseconds
		assert.InDelta(t, float64(actualDuration.Nanoseconds()), entry.Duration, toleranceNs)
	})

	t.Run("it tracks request and response bytes", func(t *testing.T) {
		t.Parallel()

		// Arrange
		var logBuffer bytes.Buffer
		log := debugLogger(&logBuffer)

		echoHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("Hello, World!"))
		})

		middleware := logger.NewMiddleware(log)(echoHandler)

		// Create request with body
		reqBody := `{"test": "data"}`
		req := httptest.NewRequest(http.MethodPost, "/healthz", strings.NewReader(reqBody))
		req.Header.Set("Content-Length", strconv.Itoa(len(reqBody)))
		rec := httptest.NewRecorder()

		// Act
		middleware.ServeHTTP(rec, req)

		// Assert
		entry := parseLogEntry(t, logBuffer.String())
		assert.Equal(t, len(reqBody), entry.BytesIn)
		assert.Equal(t, rec.Body.Len(), entry.BytesOut)
	})
}

package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"

	"github.com/km-arc/coreapi/framework/logging"
)

func lastLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.NotEmpty(t, lines)
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &m))
	return m
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"WARN", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"info", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, logging.ParseLevel(tt.in))
		})
	}
}

func TestNew_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.New(&buf, "warn", "json")

	logger.Info("hidden")
	assert.Empty(t, buf.String())

	logger.Warn("shown")
	assert.Equal(t, "shown", lastLine(t, &buf)["msg"])
}

func TestNew_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	logging.New(&buf, "info", "text").Info("hello", "k", "v")
	assert.Contains(t, buf.String(), "msg=hello")
	assert.Contains(t, buf.String(), "k=v")
}

func TestTraceHandler_AddsIDs(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.New(&buf, "info", "json")

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16},
		SpanID:     trace.SpanID{1, 2, 3, 4, 5, 6, 7, 8},
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	logger.InfoContext(ctx, "traced")
	m := lastLine(t, &buf)
	assert.Equal(t, sc.TraceID().String(), m["trace_id"])
	assert.Equal(t, sc.SpanID().String(), m["span_id"])

	logger.Info("untraced")
	_, ok := lastLine(t, &buf)["trace_id"]
	assert.False(t, ok)
}

func TestTraceHandler_WithAttrsKeepsTracing(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.New(&buf, "info", "json").With("component", "test")

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: trace.TraceID{1},
		SpanID:  trace.SpanID{1},
	})
	logger.InfoContext(trace.ContextWithSpanContext(context.Background(), sc), "x")

	m := lastLine(t, &buf)
	assert.Equal(t, "test", m["component"])
	assert.NotEmpty(t, m["trace_id"])
}

func TestMiddleware_LogsRequest(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.New(&buf, "info", "json")

	var reqID string
	h := logging.Middleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID = middleware.GetReqID(r.Context())
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("hello"))
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/notes", nil))

	assert.Equal(t, http.StatusCreated, rr.Code)
	assert.NotEmpty(t, reqID)

	m := lastLine(t, &buf)
	assert.Equal(t, "request", m["msg"])
	assert.Equal(t, "POST", m["method"])
	assert.Equal(t, "/api/notes", m["path"])
	assert.Equal(t, float64(201), m["status"])
	assert.Equal(t, float64(5), m["bytes"])
	assert.Equal(t, reqID, m["request_id"])
}

func TestMiddleware_DefaultStatusIsOK(t *testing.T) {
	var buf bytes.Buffer
	h := logging.Middleware(logging.New(&buf, "info", "json"))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, float64(200), lastLine(t, &buf)["status"])
}

func TestMiddleware_PanicIsLoggedAndReraised(t *testing.T) {
	var buf bytes.Buffer
	h := logging.Middleware(logging.New(&buf, "info", "json"))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	assert.PanicsWithValue(t, "boom", func() {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/explode", nil))
	})

	m := lastLine(t, &buf)
	assert.Equal(t, float64(500), m["status"])
	assert.Equal(t, "ERROR", m["level"])
}

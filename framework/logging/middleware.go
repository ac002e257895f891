package logging

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/km-arc/coreapi/framework/logging"

// Middleware wraps the rest of the chain: it assigns a request id, starts a
// server span and, once the chain returns, logs method, path, status,
// bytes and duration. A panic passing through is logged and re-raised.
func Middleware(logger *slog.Logger) func(http.Handler) http.Handler {
	tracer := otel.Tracer(tracerName)
	return func(next http.Handler) http.Handler {
		logged := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ctx, span := tracer.Start(r.Context(), r.Method+" "+r.URL.Path,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					attribute.String("http.request.method", r.Method),
					attribute.String("url.path", r.URL.Path),
				),
			)
			defer span.End()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			r = r.WithContext(ctx)

			defer func() {
				status := ww.Status()
				if status == 0 {
					status = http.StatusOK
				}
				rec := recover()
				if rec != nil {
					status = http.StatusInternalServerError
				}
				span.SetAttributes(attribute.Int("http.response.status_code", status))
				if status >= http.StatusInternalServerError {
					span.SetStatus(codes.Error, http.StatusText(status))
				}

				level := slog.LevelInfo
				if status >= http.StatusInternalServerError {
					level = slog.LevelError
				}
				logger.LogAttrs(ctx, level, "request",
					slog.String("request_id", middleware.GetReqID(ctx)),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.Int("status", status),
					slog.Int("bytes", ww.BytesWritten()),
					slog.Int64("latency_ms", time.Since(start).Milliseconds()),
					slog.String("client_ip", r.RemoteAddr),
				)
				if rec != nil {
					panic(rec)
				}
			}()

			next.ServeHTTP(ww, r)
		})
		return middleware.RequestID(logged)
	}
}

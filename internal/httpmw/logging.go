package httpmw

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/keithlinneman/go-microservice-template/internal/log"
)

// responseWriter captures status and bytes written
type responseWriter struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func (rw *responseWriter) WriteHeader(code int) {
	if rw.status == 0 {
		rw.status = code
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if rw.status == 0 {
		rw.status = http.StatusOK
	}
	n, err := rw.ResponseWriter.Write(b)
	rw.bytes += int64(n)
	return n, err
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("underlying ResponseWriter does not implement http.Hijacker")
	}
	return h.Hijack()
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (rw *responseWriter) Unwrap() http.ResponseWriter { return rw.ResponseWriter }

// WithLogger stores base, scoped to this request, in the request context.
// Handlers read it back with log.FromContext.
func WithLogger(base log.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			reqID := RequestIDFromContext(ctx)

			if span := trace.SpanFromContext(ctx); span.IsRecording() && reqID != "" {
				span.SetAttributes(attribute.String("request_id", reqID))
			}

			kv := []any{
				"request_id", reqID,
				"http.request.method", r.Method,
				"url.path", r.URL.Path,
			}
			if ip := ClientIPFromContext(ctx); ip != "" {
				kv = append(kv, "client.address", ip)
			}
			L := base.With(kv...)
			next.ServeHTTP(w, r.WithContext(log.WithContext(ctx, L)))
		})
	}
}

// AccessLog writes "METHOD PATH" at debug before the handler runs and
// "METHOD PATH STATUS SECONDS" once it returns. Probe paths are skipped.
// When the handler panics the closing line still fires, with the status
// already sent or 500 if none was, and the panic continues to the recover
// middleware.
func AccessLog() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if IsProbePath(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			L := log.FromContext(ctx)
			method, path := r.Method, r.URL.Path

			start := time.Now()
			L.Debug(ctx, method+" "+path)

			rw := &responseWriter{ResponseWriter: w}
			completed := false
			defer func() {
				duration := time.Since(start)
				status := rw.status
				// a panic before anything was written is served as a 500
				if status == 0 {
					status = http.StatusOK
					if !completed {
						status = http.StatusInternalServerError
					}
				}

				route := path
				if rc := chi.RouteContext(ctx); rc != nil && rc.RoutePattern() != "" {
					route = rc.RoutePattern()
				}

				L.Debug(ctx, fmt.Sprintf("%s %s %d %.6f", method, path, status, duration.Seconds()),
					"http.response.status_code", status,
					"http.server.request.duration", duration.Seconds(),
					"http.response.body.size", rw.bytes,
					"http.route", route,
				)
			}()

			next.ServeHTTP(rw, r)
			completed = true
		})
	}
}

// Scope tags the request logger and span with a handler name.
func Scope(handler string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			ctx = log.WithContext(ctx, log.FromContext(ctx).With("handler", handler))

			if span := trace.SpanFromContext(ctx); span.IsRecording() {
				span.SetAttributes(attribute.String("app.handler", handler))
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

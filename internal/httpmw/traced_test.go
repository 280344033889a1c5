package httpmw

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func TestTraced_NoSpan(t *testing.T) {
	rec := httptest.NewRecorder()
	Traced("", "")(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Header().Get("X-Trace-Id") != "" || rec.Header().Get("X-Span-Id") != "" {
		t.Fatal("no ids expected without a span")
	}
}

func TestTraced_HeadersAndRouteName(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	r := chi.NewRouter()
	r.Use(Traced("X-Trace", "X-Span"))
	r.Get("/items/{id}", func(http.ResponseWriter, *http.Request) {})

	ctx, span := tp.Tracer("test").Start(context.Background(), "GET")
	req := httptest.NewRequest(http.MethodGet, "/items/7", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	span.End()

	sc := trace.SpanContextFromContext(ctx)
	if rec.Header().Get("X-Trace") != sc.TraceID().String() {
		t.Fatalf("trace header = %q", rec.Header().Get("X-Trace"))
	}
	if rec.Header().Get("X-Span") != sc.SpanID().String() {
		t.Fatalf("span header = %q", rec.Header().Get("X-Span"))
	}

	ended := sr.Ended()
	if len(ended) != 1 || ended[0].Name() != "GET /items/{id}" {
		t.Fatalf("span names = %v", ended)
	}
}

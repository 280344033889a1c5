package log

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestFromContext_Fallback(t *testing.T) {
	l := FromContext(context.Background())
	if _, ok := l.(nopLogger); !ok {
		t.Fatalf("expected nop fallback, got %T", l)
	}
	// must not panic
	l.With("k", "v").Error(context.Background(), nil, "ignored")
	if err := l.Sync(); err != nil {
		t.Fatalf("Sync: %v", err)
	}
}

func TestWithContext_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	base := newTestLogger(t, &buf, Options{App: "t", JsonFormat: true})
	ctx := WithContext(context.Background(), base.With("request_id", "r1"))

	FromContext(ctx).Info(ctx, "scoped")

	if got := jsonRecord(t, &buf)["request_id"]; got != "r1" {
		t.Fatalf("request_id = %v", got)
	}
}

func TestNewStdLogger(t *testing.T) {
	var buf bytes.Buffer
	base := newTestLogger(t, &buf, Options{App: "t", JsonFormat: true, Level: slog.LevelDebug})

	std := NewStdLogger(base, slog.LevelWarn)
	std.Printf("http: TLS handshake error from %s", "10.0.0.1")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected exactly one line, got %d: %q", len(lines), buf.String())
	}
	m := jsonRecord(t, &buf)
	if m["level"] != "WARN" {
		t.Fatalf("level = %v", m["level"])
	}
	if m["msg"] != "http: TLS handshake error from 10.0.0.1" {
		t.Fatalf("msg = %q", m["msg"])
	}
	if m["component"] != "net/http" {
		t.Fatalf("component = %v", m["component"])
	}
}

func TestLookup(t *testing.T) {
	if _, ok := Lookup(context.Background()); ok {
		t.Fatal("empty context should not report a logger")
	}
	ctx := WithContext(context.Background(), Nop())
	if l, ok := Lookup(ctx); !ok || l == nil {
		t.Fatal("stored logger not found")
	}
}

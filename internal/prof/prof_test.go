package prof

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/grafana/pyroscope-go"

	"github.com/keithlinneman/go-microservice-template/internal/log"
)

type spyLogger struct {
	mu   *sync.Mutex
	msgs *[]string
}

func newSpy() spyLogger {
	return spyLogger{mu: &sync.Mutex{}, msgs: &[]string{}}
}

func (s spyLogger) record(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	*s.msgs = append(*s.msgs, msg)
}

func (s spyLogger) With(...any) log.Logger                      { return s }
func (s spyLogger) Debug(_ context.Context, m string, _ ...any) { s.record(m) }
func (s spyLogger) Info(_ context.Context, m string, _ ...any)  { s.record(m) }
func (s spyLogger) Warn(_ context.Context, m string, _ ...any)  { s.record(m) }
func (s spyLogger) Error(_ context.Context, _ error, m string, _ ...any) {
	s.record(m)
}
func (s spyLogger) Sync() error { return nil }

func TestStart_Disabled(t *testing.T) {
	spy := newSpy()
	ctx := log.WithContext(context.Background(), spy)
	called := false

	stop, err := Start(ctx, Options{
		Enabled:  false,
		TenantID: "tenant",
		OnActive: func(bool) { called = true },
	})
	if err != nil {
		t.Fatalf("disabled should never error, got: %v", err)
	}
	stop()
	stop()

	if called {
		t.Fatal("OnActive must not fire when disabled")
	}
	if len(*spy.msgs) != 1 || (*spy.msgs)[0] != "pyroscope disabled" {
		t.Fatalf("logs = %v, want [pyroscope disabled]", *spy.msgs)
	}
}

func TestStart_EmptyServerAddress(t *testing.T) {
	stop, err := Start(context.Background(), Options{
		Enabled: true,
		AppName: "test",
		Tags:    map[string]string{"env": "test"},
	})
	if err == nil {
		t.Fatal("expected error for empty server address")
	}
	if !strings.Contains(err.Error(), "invalid server address") {
		t.Fatalf("error = %q, want 'invalid server address'", err.Error())
	}
	if stop == nil {
		t.Fatal("stop must be non-nil even on error")
	}
	stop()
}

func TestStart_Enabled_StopIsIdempotent(t *testing.T) {
	var transitions []bool
	stop, err := Start(context.Background(), Options{
		Enabled:       true,
		AppName:       "test",
		ServerAddress: "http://localhost:0/nonexistent",
		OnActive:      func(a bool) { transitions = append(transitions, a) },
	})
	if stop == nil {
		t.Fatal("stop func should always be non-nil")
	}
	stop()
	stop()

	// uploads are asynchronous so start may succeed against a dead address
	if err != nil {
		return
	}
	if len(transitions) != 2 || !transitions[0] || transitions[1] {
		t.Fatalf("OnActive transitions = %v, want [true false]", transitions)
	}
}

func TestProfileTypes(t *testing.T) {
	has := func(types []pyroscope.ProfileType, want pyroscope.ProfileType) bool {
		for _, pt := range types {
			if pt == want {
				return true
			}
		}
		return false
	}

	base := profileTypes(Options{})
	if !has(base, pyroscope.ProfileCPU) || has(base, pyroscope.ProfileMutexCount) || has(base, pyroscope.ProfileBlockCount) {
		t.Fatalf("default profile types = %v", base)
	}

	all := profileTypes(Options{ProfileMutexFraction: 5, BlockProfileRate: 1000})
	for _, want := range []pyroscope.ProfileType{
		pyroscope.ProfileMutexCount, pyroscope.ProfileMutexDuration,
		pyroscope.ProfileBlockCount, pyroscope.ProfileBlockDuration,
	} {
		if !has(all, want) {
			t.Errorf("missing %v", want)
		}
	}
}

func TestPyroLogger_RoutesToLogger(t *testing.T) {
	spy := newSpy()
	pl := pyroLogger{l: spy}
	pl.Infof("uploaded %d profiles", 3)
	pl.Debugf("tick")
	pl.Errorf("upload failed: %s", "boom")

	want := []string{"uploaded 3 profiles", "tick", "pyroscope error"}
	if len(*spy.msgs) != len(want) {
		t.Fatalf("logs = %v, want %v", *spy.msgs, want)
	}
	for i := range want {
		if (*spy.msgs)[i] != want[i] {
			t.Errorf("log[%d] = %q, want %q", i, (*spy.msgs)[i], want[i])
		}
	}
}

package httpmw

import (
	"context"
	"sync"

	"github.com/keithlinneman/go-microservice-template/internal/log"
)

type captured struct {
	level  string
	msg    string
	err    error
	fields []any
}

// spyLogger returns itself from With so every line lands in one place;
// With fields are kept separately.
type spyLogger struct {
	mu    sync.Mutex
	lines []captured
	withs [][]any
}

func newSpyLogger() *spyLogger { return &spyLogger{} }

func (s *spyLogger) With(kv ...any) log.Logger {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.withs = append(s.withs, kv)
	return s
}

func (s *spyLogger) add(level, msg string, err error, kv []any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = append(s.lines, captured{level: level, msg: msg, err: err, fields: kv})
}

func (s *spyLogger) Debug(_ context.Context, msg string, kv ...any) { s.add("debug", msg, nil, kv) }
func (s *spyLogger) Info(_ context.Context, msg string, kv ...any)  { s.add("info", msg, nil, kv) }
func (s *spyLogger) Warn(_ context.Context, msg string, kv ...any)  { s.add("warn", msg, nil, kv) }
func (s *spyLogger) Error(_ context.Context, err error, msg string, kv ...any) {
	s.add("error", msg, err, kv)
}
func (s *spyLogger) Sync() error { return nil }

func (s *spyLogger) all() []captured {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]captured(nil), s.lines...)
}

func (s *spyLogger) lastWith() []any {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.withs) == 0 {
		return nil
	}
	return s.withs[len(s.withs)-1]
}

func fieldValue(kv []any, key string) (any, bool) {
	for i := 0; i+1 < len(kv); i += 2 {
		if kv[i] == key {
			return kv[i+1], true
		}
	}
	return nil, false
}

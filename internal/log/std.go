package log

import (
	"bytes"
	"context"
	stdlog "log"
	"log/slog"
)

// NewStdLogger returns a *log.Logger whose lines are re-emitted through l
// at lvl. http.Server.ErrorLog uses it so the server's own messages share
// the process sink instead of going to stderr a second time.
func NewStdLogger(l Logger, lvl slog.Level) *stdlog.Logger {
	return stdlog.New(&stdWriter{l: l, lvl: lvl}, "", 0)
}

type stdWriter struct {
	l   Logger
	lvl slog.Level
}

func (w *stdWriter) Write(p []byte) (int, error) {
	msg := string(bytes.TrimRight(p, "\r\n"))
	ctx := context.Background()
	switch {
	case w.lvl >= slog.LevelError:
		w.l.Error(ctx, nil, msg, "component", "net/http")
	case w.lvl >= slog.LevelWarn:
		w.l.Warn(ctx, msg, "component", "net/http")
	case w.lvl >= slog.LevelInfo:
		w.l.Info(ctx, msg, "component", "net/http")
	default:
		w.l.Debug(ctx, msg, "component", "net/http")
	}
	return len(p), nil
}

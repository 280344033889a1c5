package health

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/keithlinneman/go-microservice-template/internal/xerrors"
)

// Probe is evaluated at request time
// nil = OK non-nil = FAIL with reason.
type Probe interface{ Check(context.Context) error }

// CheckFunc adapts a function into a Probe.
type CheckFunc func(context.Context) error

func (f CheckFunc) Check(ctx context.Context) error { return f(ctx) }

// Fixed always passes, or always fails with reason.
func Fixed(ok bool, reason string) CheckFunc {
	if ok {
		return func(context.Context) error { return nil }
	}
	if reason == "" {
		reason = "unhealthy"
	}
	return func(context.Context) error { return xerrors.New(reason) }
}

// All passes only if every probe passes and returns the first failure.
// nil probes are ignored.
func All(ps ...Probe) CheckFunc {
	return func(ctx context.Context) error {
		for _, p := range ps {
			if p == nil {
				continue
			}
			if err := p.Check(ctx); err != nil {
				return err
			}
		}
		return nil
	}
}

// Any passes if one probe passes; otherwise it returns the last failure.
func Any(ps ...Probe) CheckFunc {
	return func(ctx context.Context) error {
		var last error
		for _, p := range ps {
			if p == nil {
				continue
			}
			err := p.Check(ctx)
			if err == nil {
				return nil
			}
			last = err
		}
		if last == nil {
			return xerrors.New("no probes configured")
		}
		return last
	}
}

// Named prefixes failures from p with name so a composite reason says
// which dependency failed.
func Named(name string, p Probe) CheckFunc {
	return func(ctx context.Context) error {
		return xerrors.Wrap(p.Check(ctx), name)
	}
}

// Timeout bounds p to d.
func Timeout(d time.Duration, p Probe) CheckFunc {
	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()
		return p.Check(ctx)
	}
}

// ShutdownGate starts open; Close marks the process as draining.
type ShutdownGate struct {
	closed atomic.Bool
	reason atomic.Value
}

// Close fails the gate's probe with reason from now on. Safe to call more
// than once; the latest reason wins.
func (g *ShutdownGate) Close(reason string) {
	if reason == "" {
		reason = "draining"
	}
	g.reason.Store(reason)
	g.closed.Store(true)
}

func (g *ShutdownGate) Closed() bool { return g.closed.Load() }

func (g *ShutdownGate) Probe() CheckFunc {
	return func(context.Context) error {
		if !g.closed.Load() {
			return nil
		}
		r, _ := g.reason.Load().(string)
		return xerrors.New(r)
	}
}

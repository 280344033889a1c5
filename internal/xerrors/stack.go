package xerrors

import "runtime"

const maxStackDepth = 64

// stacked carries the program counters captured where the error was created
type stacked struct {
	err error
	pcs []uintptr
}

func (s *stacked) Error() string       { return s.err.Error() }
func (s *stacked) Unwrap() error       { return s.err }
func (s *stacked) StackPCs() []uintptr { return s.pcs }

// wrapped adds a message and the single caller frame of Wrap/Wrapf
type wrapped struct {
	err error
	msg string
	pc  uintptr
}

func (w *wrapped) Error() string { return w.msg + ": " + w.err.Error() }
func (w *wrapped) Unwrap() error { return w.err }
func (w *wrapped) PC() uintptr   { return w.pc }

// stackAt captures the stack skipping skip frames above its own caller
func stackAt(skip int) []uintptr {
	pcs := make([]uintptr, maxStackDepth)
	// 2 = runtime.Callers + stackAt
	n := runtime.Callers(2+skip, pcs)
	return pcs[:n]
}

func pcAt(skip int) uintptr {
	var pcs [1]uintptr
	if runtime.Callers(2+skip, pcs[:]) == 0 {
		return 0
	}
	return pcs[0]
}

// Package xerrors attaches call-site information to errors so the logger
// can render where a failure started without every caller formatting it.
package xerrors

import (
	"errors"
	"fmt"
)

// New returns an error carrying the caller's stack.
func New(msg string) error { return &stacked{err: errors.New(msg), pcs: stackAt(1)} }

func Newf(format string, args ...any) error {
	return &stacked{err: fmt.Errorf(format, args...), pcs: stackAt(1)}
}

// Wrap prefixes err with msg and records the calling frame. A nil err
// stays nil.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return &wrapped{err: err, msg: msg, pc: pcAt(1)}
}

func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &wrapped{err: err, msg: fmt.Sprintf(format, args...), pc: pcAt(1)}
}

func WithStack(err error) error {
	if err == nil {
		return nil
	}
	return &stacked{err: err, pcs: stackAt(1)}
}

// EnsureTrace adds a stack only when nothing in the chain has one yet.
func EnsureTrace(err error) error {
	if err == nil || HasStack(err) {
		return err
	}
	return &stacked{err: err, pcs: stackAt(1)}
}

func HasStack(err error) bool {
	var hs interface{ StackPCs() []uintptr }
	return errors.As(err, &hs) && len(hs.StackPCs()) > 0
}

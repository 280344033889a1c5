package httpmw

import (
	"net/http"
)

// Middleware is the shape every constructor in this package returns.
type Middleware = func(http.Handler) http.Handler

// Chain wraps h so mws[0] runs first. nil entries are skipped, which lets
// callers toggle optional middleware inline.
func Chain(h http.Handler, mws ...Middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		if mws[i] != nil {
			h = mws[i](h)
		}
	}
	return h
}

// Probe endpoints polled by the orchestrator.
const (
	PathHealthz = "/-/healthz"
	PathReady   = "/-/ready"
	PathCheckUp = "/-/check-up"
)

func IsProbePath(p string) bool {
	switch p {
	case PathHealthz, PathReady, PathCheckUp:
		return true
	}
	return false
}

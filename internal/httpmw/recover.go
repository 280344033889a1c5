package httpmw

import (
	"fmt"
	"net/http"

	"github.com/keithlinneman/go-microservice-template/internal/headers"
	"github.com/keithlinneman/go-microservice-template/internal/log"
	"github.com/keithlinneman/go-microservice-template/internal/xerrors"
)

// Recover turns a handler panic into a 500 JSON response and an error log.
// It sits outside the logger middleware, so it logs through base. onPanic,
// if set, runs once per recovered panic. http.ErrAbortHandler is re-raised
// so net/http can abort the connection quietly.
func Recover(base log.Logger, onPanic func()) Middleware {
	if base == nil {
		base = log.Nop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				p := recover()
				if p == nil {
					return
				}
				if p == http.ErrAbortHandler {
					panic(p)
				}
				if onPanic != nil {
					onPanic()
				}

				err, ok := p.(error)
				if !ok {
					err = fmt.Errorf("panic: %v", p)
				}

				base.Error(r.Context(), xerrors.WithStack(err), "http panic recovered",
					"request_id", w.Header().Get(headers.RequestID),
					"http.request.method", r.Method,
					"url.path", r.URL.Path,
				)

				WriteError(w, http.StatusInternalServerError, "internal server error")
			}()
			next.ServeHTTP(w, r)
		})
	}
}

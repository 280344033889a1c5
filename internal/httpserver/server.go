// Package httpserver assembles the service listener: probes, application
// routes and the middleware chain every request passes through.
package httpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/keithlinneman/go-microservice-template/internal/health"
	"github.com/keithlinneman/go-microservice-template/internal/httpmw"
	"github.com/keithlinneman/go-microservice-template/internal/log"
	"github.com/keithlinneman/go-microservice-template/internal/xerrors"
)

const defaultPort = 3000

// NewHandler builds an HTTP handler with routes + middleware
// main() owns *http.Server so it can do graceful shutdown
func NewHandler(opts Options) http.Handler {
	L := opts.Logger
	if L == nil {
		L = log.Nop()
	}

	r := chi.NewRouter()

	// Compress JSON responses for clients that ask for it
	r.Use(middleware.Compress(5, "application/json"))

	r.NotFound(httpmw.NotFound)
	r.MethodNotAllowed(httpmw.MethodNotAllowed)

	r.Method(http.MethodGet, httpmw.PathHealthz, health.Handler(opts.Health))
	r.Method(http.MethodGet, httpmw.PathReady, health.Handler(opts.Readiness))
	r.Method(http.MethodGet, httpmw.PathCheckUp, health.Handler(opts.CheckUp))

	if opts.APIRoutes != nil {
		opts.APIRoutes(r)
	}

	return httpmw.Chain(r,
		// Security headers outermost so every response carries them
		httpmw.SecurityHeaders,
		// Recovery logs through the base logger and serves the 500
		httpmw.Recover(L, opts.OnPanic),
		// Request ID before anything that logs
		httpmw.RequestID(),
		// chi fills this in as it routes; outer middleware read the pattern after next returns
		routeContext,
		// caller address for rate limit keys and logs
		httpmw.ClientIP(httpmw.ClientIPOptions{TrustedHops: opts.TrustedHops}),
		opts.RateLimitMW,
		httpmw.MaxBody(opts.MaxBodyBytes),
		tracing(),
		// trace-id headers on any request with a recording trace
		httpmw.Traced("X-Trace-Id", "X-Span-Id"),
		opts.MetricsMW,
		// Logging stage then client attachment, in that order
		httpmw.WithLogger(L),
		httpmw.AccessLog(),
		httpmw.WithPlatformClient(opts.Factory),
	)
}

func routeContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if chi.RouteContext(r.Context()) == nil {
			r = r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, chi.NewRouteContext()))
		}
		next.ServeHTTP(w, r)
	})
}

// tracing starts a server span per request. Probes are never traced.
func tracing() httpmw.Middleware {
	return func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(
			next,
			"http.server",
			otelhttp.WithFilter(func(r *http.Request) bool {
				return !httpmw.IsProbePath(r.URL.Path)
			}),
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				// Traced renames the span to the route pattern once routed
				return r.Method + " " + r.URL.Path
			}),
		)
	}
}

// Server timeout defaults
const (
	DefaultReadHeaderTimeout = 5 * time.Second
	DefaultReadTimeout       = 10 * time.Second
	// outbound platform calls default to 30s, leave room to answer after one
	DefaultWriteTimeout   = 35 * time.Second
	DefaultIdleTimeout    = 60 * time.Second
	DefaultMaxHeaderBytes = 1 << 20 // 1 MB
)

// NewServer wraps handler in an *http.Server whose own error output goes
// through L instead of the default stderr logger.
func NewServer(addr string, handler http.Handler, L log.Logger) *http.Server {
	if L == nil {
		L = log.Nop()
	}
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ErrorLog:          log.NewStdLogger(L, slog.LevelWarn),
		ReadHeaderTimeout: DefaultReadHeaderTimeout,
		ReadTimeout:       DefaultReadTimeout,
		WriteTimeout:      DefaultWriteTimeout,
		IdleTimeout:       DefaultIdleTimeout,
		MaxHeaderBytes:    DefaultMaxHeaderBytes,
	}
}

// Start public HTTP server
// Returns stop(ctx) for graceful shutdown
func Start(ctx context.Context, opts Options) (func(context.Context) error, error) {
	if opts.Logger == nil {
		opts.Logger = log.Nop()
	}
	L := opts.Logger

	port := opts.Port
	if port == 0 {
		port = defaultPort
	}
	addr := fmt.Sprintf(":%d", port)

	srv := NewServer(addr, NewHandler(opts), L.With("component", "httpserver"))

	ln, err := (&net.ListenConfig{}).Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, xerrors.Wrapf(err, "could not listen for http port on addr=%v", addr)
	}

	go func() {
		L.Info(ctx, "http server listening", "addr", addr)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			L.Error(ctx, err, "http server error")
		}
	}()

	var once sync.Once
	stop := func(sctx context.Context) (retErr error) {
		once.Do(func() {
			L.Info(sctx, "http server shutting down")
			c, cancel := context.WithTimeout(sctx, 5*time.Second)
			defer cancel()
			retErr = srv.Shutdown(c)
		})
		return retErr
	}
	return stop, nil
}

package httpserver

import (
	"github.com/go-chi/chi/v5"

	"github.com/keithlinneman/go-microservice-template/internal/health"
	"github.com/keithlinneman/go-microservice-template/internal/httpmw"
	"github.com/keithlinneman/go-microservice-template/internal/log"
	"github.com/keithlinneman/go-microservice-template/internal/platformclient"
)

type Options struct {
	Logger log.Logger
	Port   int

	// nil probes always pass
	Health    health.Probe
	Readiness health.Probe
	CheckUp   health.Probe

	// APIRoutes mounts the application routes on the router
	APIRoutes func(chi.Router)
	// Factory builds the per-request platform client; nil skips attachment
	Factory *platformclient.Factory

	// TrustedHops is passed to httpmw.ClientIP
	TrustedHops int

	MetricsMW   httpmw.Middleware
	RateLimitMW httpmw.Middleware
	// OnPanic runs for every recovered handler panic
	OnPanic func()
	// MaxBodyBytes caps request bodies; 0 disables the cap
	MaxBodyBytes int64
}

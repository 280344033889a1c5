package opshttp

import (
	"net/http"

	"github.com/keithlinneman/go-microservice-template/internal/health"
)

type Options struct {
	Port        int
	Metrics     http.Handler
	EnablePprof bool
	Health      health.Probe
	Readiness   health.Probe
	// OnPanic runs for every recovered handler panic, e.g. to bump the
	// http_panics_total counter
	OnPanic func()
}

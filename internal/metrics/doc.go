// Package metrics owns the service's Prometheus registry: HTTP server
// metrics, outbound platform client metrics and process build info. The
// registry is served on the admin listener only.
package metrics

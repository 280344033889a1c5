// Package httpmw provides HTTP middleware for the service listener.
//
// httpserver.NewHandler composes them outermost first: security headers,
// recover, request ID, client address, rate limit, body limit, tracing,
// metrics, then the logging stage followed by platform client attachment.
//
// Probe paths (see [IsProbePath]) are kept out of the access log and the
// rate limiter so orchestrator polling never drowns real traffic.
package httpmw

// Package ratelimit is per-caller rate limiting middleware.
//
// Callers are keyed by the cluster identity header (miauserid) when the
// gateway set one, else by the peer IP. State is in memory and per
// instance; it guards one replica against a single noisy caller and does
// nothing against distributed load, which the gateway owns.
//
// Probe paths are never limited so an orchestrator cannot be locked out
// of its own health checks.
package ratelimit

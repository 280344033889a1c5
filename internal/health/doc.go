// Package health provides composable probes and the JSON handlers behind
// the liveness, readiness and check-up endpoints.
//
// Probes combine with [All] (AND) and [Any] (OR); [Fixed] is static and
// [CheckFunc] adapts a plain function. [ShutdownGate] flips readiness off
// at the start of a graceful shutdown so the orchestrator stops routing
// traffic before listeners close.
package health

// Package health provides liveness and readiness endpoints for the function
// host.
//
// Readiness runs dependency checks such as the revocation store and the OPA
// server. A failing critical check makes the host unhealthy and the readiness
// endpoint answers 503; a failing non-critical check only degrades it.
//
// # Usage
//
//	checker := health.NewChecker(version, health.WithLogger(logger))
//	checker.Register(health.PingCheck("revocation", health.DependencyTypeCache, store))
//	checker.Mount(mux)
package health

// Package policy holds the named policy table and the engines that evaluate
// policies against a validated identity.
//
// A Definition names its engine:
//
//   - requirements: required roles, claim values or an authenticated caller,
//     evaluated in process.
//   - cel: a CEL expression over identity and now, compiled at startup.
//   - opa: a query against an OPA server's data API behind a circuit breaker.
//   - openfga: a relationship check against an OpenFGA store.
//
// The Table is built once from configuration and never mutated. The Router
// sends each Definition to the Evaluator registered for its engine and
// records metrics and a span per evaluation.
//
// # Usage
//
//	table, err := policy.NewTable(cfg.Policies)
//	celEngine, err := policy.NewCELEngine(table.Definitions(policy.EngineCEL))
//	router := policy.NewRouter(policy.WithEngine(policy.EngineCEL, celEngine))
//	def, ok := table.Lookup("CanPublish")
//	allowed, err := router.Evaluate(ctx, identity, def)
//
// An evaluation error means "not satisfied". No engine retries.
package policy

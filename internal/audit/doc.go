// Package audit writes the authorization audit trail of the function host.
//
// Events are JSON lines written to stdout, stderr or an append-only file.
// The Auditor plugs into the authorization dispatcher and records denied
// decisions, or every decision when configured, together with token
// revocations.
//
// # Usage
//
//	logger, err := audit.NewLogger(cfg.Audit, audit.WithLoggerMetrics(metrics))
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	auditor := audit.NewAuditor(logger, cfg.Audit)
//	dispatcher := authz.NewDispatcher(tokens, evaluator,
//	    authz.WithDispatcherAuditor(auditor),
//	)
package audit

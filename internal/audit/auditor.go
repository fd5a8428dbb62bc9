package audit

import (
	"context"
	"net"
	"net/http"

	"github.com/vyrodovalexey/funcauthz/internal/auth"
	"github.com/vyrodovalexey/funcauthz/internal/authz"
	"github.com/vyrodovalexey/funcauthz/internal/observability"
)

// Auditor turns authorization decisions and token administration into
// audit events.
type Auditor struct {
	logger Logger
	config *Config
}

// NewAuditor creates an auditor writing to logger. A nil config records
// denied decisions only.
func NewAuditor(logger Logger, cfg *Config) *Auditor {
	if logger == nil {
		logger = NewNoopLogger()
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Auditor{logger: logger, config: cfg}
}

// AuditDecision records one terminal decision. Proceed decisions are
// recorded only when every decision is selected.
func (a *Auditor) AuditDecision(ctx context.Context, inv *authz.Invocation, decision *authz.Decision) {
	function := observability.FunctionFromContext(ctx)
	if a.config.skips(function) {
		return
	}

	var event *Event
	switch decision.Outcome {
	case authz.OutcomeProceed:
		if !a.config.RecordsAll() {
			return
		}
		event = NewEvent(EventTypeAuthorization, ActionAccess, OutcomeSuccess)
	case authz.OutcomeUnauthorized:
		event = NewEvent(EventTypeAuthorization, ActionDeny, OutcomeFailure)
	default:
		event = NewEvent(EventTypeAuthorization, ActionDeny, OutcomeDenied)
	}

	event.Subject = SubjectFromIdentity(decision.Identity)
	event.Resource = &Resource{Function: function}
	if inv.Requirements != nil {
		event.Resource.Handler = inv.Requirements.Handler.String()
	}
	if inv.Request != nil {
		event.Resource.Method = inv.Request.Method
		event.Resource.Path = inv.Request.URL.Path
		event.Subject = withClientIP(event.Subject, inv.Request)
	}
	event.Reason = decision.Reason
	event.StatusCode = decision.StatusCode
	if requestID := observability.RequestIDFromContext(ctx); requestID != "" {
		event.WithMetadata("request_id", requestID)
	}

	a.logger.LogEvent(ctx, event)
}

// TokenRevoked records a token revocation performed by actor. A non-nil err
// marks the revocation as failed.
func (a *Auditor) TokenRevoked(ctx context.Context, r *http.Request, actor *auth.Identity, tokenID string, err error) {
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeFailure
	}
	event := NewEvent(EventTypeAdministrative, ActionTokenRevoke, outcome)
	event.Subject = SubjectFromIdentity(actor)
	event.Resource = &Resource{Function: observability.FunctionFromContext(ctx)}
	if r != nil {
		event.Resource.Method = r.Method
		event.Resource.Path = r.URL.Path
		event.Subject = withClientIP(event.Subject, r)
	}
	event.WithMetadata("revoked_token_id", tokenID)
	if err != nil {
		event.WithMetadata("error", err.Error())
	}

	a.logger.LogEvent(ctx, event)
}

func withClientIP(s *Subject, r *http.Request) *Subject {
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	if ip == "" {
		return s
	}
	if s == nil {
		s = &Subject{}
	}
	s.IP = ip
	return s
}

var _ authz.DecisionAuditor = (*Auditor)(nil)

package audit

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/funcauthz/internal/auth"
	"github.com/vyrodovalexey/funcauthz/internal/authz"
	"github.com/vyrodovalexey/funcauthz/internal/observability"
)

func readEvents(t *testing.T, buf *bytes.Buffer) []Event {
	t.Helper()
	var events []Event
	scanner := bufio.NewScanner(buf)
	for scanner.Scan() {
		var e Event
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &e))
		events = append(events, e)
	}
	return events
}

func newBufferLogger(t *testing.T, opts ...LoggerOption) (Logger, *bytes.Buffer) {
	t.Helper()
	buf := &bytes.Buffer{}
	l, err := NewLogger(&Config{Enabled: true}, append(opts, WithWriter(buf))...)
	require.NoError(t, err)
	return l, buf
}

func alice() *auth.Identity {
	return &auth.Identity{
		Subject: "alice",
		Name:    "Alice",
		Issuer:  "https://issuer.example.com/",
		Scheme:  auth.DefaultScheme,
		Roles:   []string{"viewer"},
		TokenID: "jti-1",
	}
}

func invocation(method, path string) *authz.Invocation {
	return &authz.Invocation{
		Request: httptest.NewRequest(method, path, nil),
		Requirements: &authz.Requirements{
			Handler:  authz.HandlerRef{Type: "Orders", Method: "Delete"},
			Required: true,
		},
	}
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	assert.NoError(t, (*Config)(nil).Validate())
	assert.NoError(t, (&Config{Decisions: "bogus"}).Validate(), "disabled configs are not checked")
	assert.NoError(t, (&Config{Enabled: true}).Validate())
	assert.NoError(t, (&Config{Enabled: true, Decisions: DecisionsAll}).Validate())

	err := (&Config{Enabled: true, Decisions: "bogus"}).Validate()
	assert.ErrorIs(t, err, ErrInvalidDecisions)
}

func TestConfig_Defaults(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	assert.False(t, cfg.Enabled)
	assert.Equal(t, OutputStdout, cfg.GetEffectiveOutput())
	assert.False(t, cfg.RecordsAll())
	assert.Equal(t, OutputStdout, (&Config{}).GetEffectiveOutput())
}

func TestNewLogger_Disabled(t *testing.T) {
	t.Parallel()

	l, err := NewLogger(nil)
	require.NoError(t, err)
	assert.IsType(t, noopLogger{}, l)
	l.LogEvent(context.Background(), NewEvent(EventTypeAuthorization, ActionDeny, OutcomeDenied))
	assert.NoError(t, l.Close())

	_, err = NewLogger(&Config{Enabled: true, Decisions: "bogus"})
	assert.Error(t, err)
}

func TestLogger_WritesJSONLines(t *testing.T) {
	t.Parallel()

	metrics := NewMetrics("test", prometheus.NewRegistry())
	l, buf := newBufferLogger(t, WithLoggerMetrics(metrics))

	l.LogEvent(context.Background(), NewEvent(EventTypeAuthorization, ActionDeny, OutcomeDenied))
	l.LogEvent(context.Background(), NewEvent(EventTypeAdministrative, ActionTokenRevoke, OutcomeSuccess))

	events := readEvents(t, buf)
	require.Len(t, events, 2)
	assert.Equal(t, ActionDeny, events[0].Action)
	assert.NotEmpty(t, events[0].ID)
	assert.NotEqual(t, events[0].ID, events[1].ID)
	assert.False(t, events[0].Timestamp.IsZero())

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.eventsTotal.WithLabelValues("authorization", "deny", "denied")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.eventsTotal.WithLabelValues("administrative", "token_revoke", "success")))
}

func TestLogger_File(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "audit.log")
	l, err := NewLogger(&Config{Enabled: true, Output: path})
	require.NoError(t, err)

	l.LogEvent(context.Background(), NewEvent(EventTypeAuthorization, ActionAccess, OutcomeSuccess))
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(data), "\n"))
	assert.Contains(t, string(data), `"action":"access"`)

	_, err = NewLogger(&Config{Enabled: true, Output: filepath.Join(t.TempDir(), "missing", "audit.log")})
	assert.Error(t, err)
}

func TestAuditor_DeniedOnly(t *testing.T) {
	t.Parallel()

	l, buf := newBufferLogger(t)
	a := NewAuditor(l, nil)
	ctx := observability.ContextWithFunction(context.Background(), "orders-delete")
	ctx = observability.ContextWithRequestID(ctx, "req-1")

	a.AuditDecision(ctx, invocation("DELETE", "/api/orders/7"),
		&authz.Decision{Outcome: authz.OutcomeProceed, Identity: alice(), Reason: authz.ReasonAuthorized})
	a.AuditDecision(ctx, invocation("DELETE", "/api/orders/7"),
		&authz.Decision{Outcome: authz.OutcomeForbidden, Identity: alice(), StatusCode: 403, Reason: authz.ReasonPolicy})
	a.AuditDecision(ctx, invocation("DELETE", "/api/orders/7"),
		&authz.Decision{Outcome: authz.OutcomeUnauthorized, StatusCode: 401, Reason: authz.ReasonNoIdentity})

	events := readEvents(t, buf)
	require.Len(t, events, 2)

	forbidden := events[0]
	assert.Equal(t, EventTypeAuthorization, forbidden.Type)
	assert.Equal(t, ActionDeny, forbidden.Action)
	assert.Equal(t, OutcomeDenied, forbidden.Outcome)
	assert.Equal(t, authz.ReasonPolicy, forbidden.Reason)
	assert.Equal(t, 403, forbidden.StatusCode)
	require.NotNil(t, forbidden.Subject)
	assert.Equal(t, "alice", forbidden.Subject.ID)
	assert.Equal(t, "jti-1", forbidden.Subject.TokenID)
	assert.Equal(t, "192.0.2.1", forbidden.Subject.IP)
	require.NotNil(t, forbidden.Resource)
	assert.Equal(t, "orders-delete", forbidden.Resource.Function)
	assert.Equal(t, "Orders.Delete()", forbidden.Resource.Handler)
	assert.Equal(t, "DELETE", forbidden.Resource.Method)
	assert.Equal(t, "/api/orders/7", forbidden.Resource.Path)
	assert.Equal(t, "req-1", forbidden.Metadata["request_id"])

	unauthorized := events[1]
	assert.Equal(t, OutcomeFailure, unauthorized.Outcome)
	require.NotNil(t, unauthorized.Subject, "the client address is kept for anonymous callers")
	assert.Empty(t, unauthorized.Subject.ID)
	assert.Equal(t, "192.0.2.1", unauthorized.Subject.IP)
}

func TestAuditor_AllDecisionsAndSkips(t *testing.T) {
	t.Parallel()

	l, buf := newBufferLogger(t)
	a := NewAuditor(l, &Config{Enabled: true, Decisions: DecisionsAll, SkipFunctions: []string{"status"}})

	ctx := observability.ContextWithFunction(context.Background(), "orders-delete")
	a.AuditDecision(ctx, &authz.Invocation{},
		&authz.Decision{Outcome: authz.OutcomeProceed, Reason: authz.ReasonNotRequired})
	a.AuditDecision(ctx, &authz.Invocation{},
		&authz.Decision{Outcome: authz.OutcomeCustom, Identity: alice(), StatusCode: 404, Reason: authz.ReasonFilter})

	skipped := observability.ContextWithFunction(context.Background(), "status")
	a.AuditDecision(skipped, &authz.Invocation{},
		&authz.Decision{Outcome: authz.OutcomeForbidden, StatusCode: 403})

	events := readEvents(t, buf)
	require.Len(t, events, 2)
	assert.Equal(t, ActionAccess, events[0].Action)
	assert.Equal(t, OutcomeSuccess, events[0].Outcome)
	assert.Nil(t, events[0].Subject)
	assert.Empty(t, events[0].Resource.Handler)
	assert.Equal(t, OutcomeDenied, events[1].Outcome)
	assert.Equal(t, 404, events[1].StatusCode)
}

func TestAuditor_WiredIntoDispatcher(t *testing.T) {
	t.Parallel()

	c := authz.NewCatalog()
	require.NoError(t, c.AddType("Fn", "", authz.WithAuthorize(authz.Authorize{})))
	require.NoError(t, c.AddMethod("Fn", "Run", nil))
	req, err := c.Resolve(authz.HandlerRef{Type: "Fn", Method: "Run"})
	require.NoError(t, err)

	l, buf := newBufferLogger(t)
	d := authz.NewDispatcher(nil, nil, authz.WithDispatcherAuditor(NewAuditor(l, nil)))
	decision := d.Decide(context.Background(), &authz.Invocation{Requirements: req})
	require.Equal(t, authz.OutcomeUnauthorized, decision.Outcome)

	events := readEvents(t, buf)
	require.Len(t, events, 1)
	assert.Equal(t, authz.ReasonNoIdentity, events[0].Reason)
	assert.Equal(t, "Fn.Run()", events[0].Resource.Handler)
}

func TestAuditor_TokenRevoked(t *testing.T) {
	t.Parallel()

	l, buf := newBufferLogger(t)
	a := NewAuditor(l, nil)
	ctx := observability.ContextWithFunction(context.Background(), "tokens-revoke")
	r := httptest.NewRequest("POST", "/api/tokens/revoke", nil)

	a.TokenRevoked(ctx, r, alice(), "jti-9", nil)
	a.TokenRevoked(ctx, r, alice(), "jti-9", errors.New("connection refused"))

	events := readEvents(t, buf)
	require.Len(t, events, 2)
	assert.Equal(t, EventTypeAdministrative, events[0].Type)
	assert.Equal(t, ActionTokenRevoke, events[0].Action)
	assert.Equal(t, OutcomeSuccess, events[0].Outcome)
	assert.Equal(t, "jti-9", events[0].Metadata["revoked_token_id"])
	assert.Equal(t, "tokens-revoke", events[0].Resource.Function)
	assert.Equal(t, OutcomeFailure, events[1].Outcome)
	assert.Equal(t, "connection refused", events[1].Metadata["error"])
}

func TestSubjectFromIdentity(t *testing.T) {
	t.Parallel()

	assert.Nil(t, SubjectFromIdentity(nil))
	assert.Nil(t, SubjectFromIdentity(auth.AnonymousIdentity()))

	s := SubjectFromIdentity(alice())
	require.NotNil(t, s)
	assert.Equal(t, "Alice", s.Name)
	assert.Equal(t, []string{"viewer"}, s.Roles)
}

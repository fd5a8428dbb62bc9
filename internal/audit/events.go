package audit

import (
	"time"

	"github.com/google/uuid"

	"github.com/vyrodovalexey/funcauthz/internal/auth"
)

// EventType is the category of an audit event.
type EventType string

// Event types.
const (
	EventTypeAuthorization  EventType = "authorization"
	EventTypeAdministrative EventType = "administrative"
)

// Action is the audited action.
type Action string

// Actions.
const (
	ActionAccess      Action = "access"
	ActionDeny        Action = "deny"
	ActionTokenRevoke Action = "token_revoke"
)

// Outcome is the result of an audited action.
type Outcome string

// Outcomes.
const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
	OutcomeDenied  Outcome = "denied"
)

// Event is one audit record. It is written as a single JSON line.
type Event struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	Action    Action    `json:"action"`
	Outcome   Outcome   `json:"outcome"`

	Subject  *Subject  `json:"subject,omitempty"`
	Resource *Resource `json:"resource,omitempty"`

	// Reason is the decision reason, for example roles or policy.
	Reason string `json:"reason,omitempty"`

	// StatusCode is the response status produced by the decision.
	StatusCode int `json:"status_code,omitempty"`

	Metadata map[string]interface{} `json:"metadata,omitempty"`

	TraceID string `json:"trace_id,omitempty"`
	SpanID  string `json:"span_id,omitempty"`
}

// Subject is the caller of an audited action.
type Subject struct {
	ID      string   `json:"id"`
	Name    string   `json:"name,omitempty"`
	Issuer  string   `json:"issuer,omitempty"`
	Roles   []string `json:"roles,omitempty"`
	TokenID string   `json:"token_id,omitempty"`
	IP      string   `json:"ip,omitempty"`
}

// Resource is the function an audited action targets.
type Resource struct {
	Function string `json:"function,omitempty"`
	Handler  string `json:"handler,omitempty"`
	Method   string `json:"method,omitempty"`
	Path     string `json:"path,omitempty"`
}

// NewEvent creates an event with a fresh id and the current time.
func NewEvent(eventType EventType, action Action, outcome Outcome) *Event {
	return &Event{
		ID:        uuid.New().String(),
		Timestamp: time.Now().UTC(),
		Type:      eventType,
		Action:    action,
		Outcome:   outcome,
	}
}

// SubjectFromIdentity builds a subject from a validated identity. A nil or
// anonymous identity yields nil.
func SubjectFromIdentity(identity *auth.Identity) *Subject {
	if !identity.IsAuthenticated() {
		return nil
	}
	return &Subject{
		ID:      identity.Subject,
		Name:    identity.Name,
		Issuer:  identity.Issuer,
		Roles:   identity.Roles,
		TokenID: identity.TokenID,
	}
}

// WithMetadata adds a metadata entry and returns the event.
func (e *Event) WithMetadata(key string, value interface{}) *Event {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

package policy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vyrodovalexey/funcauthz/internal/auth"
	"github.com/vyrodovalexey/funcauthz/internal/observability"
)

// Defaults for the OPA engine.
const (
	DefaultOPATimeout          = 2 * time.Second
	DefaultBreakerThreshold    = 5
	DefaultBreakerOpenDuration = 30 * time.Second
)

// ErrBreakerOpen is returned while the OPA circuit breaker is open.
var ErrBreakerOpen = errors.New("opa circuit breaker is open")

// OPAConfig configures the OPA engine.
type OPAConfig struct {
	// URL is the OPA server base URL.
	URL string `yaml:"url" json:"url"`

	// Timeout bounds a single query.
	Timeout time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`

	// Headers are sent with every query.
	Headers map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`

	// BreakerThreshold is the number of consecutive failures that opens the breaker.
	BreakerThreshold int `yaml:"breakerThreshold,omitempty" json:"breakerThreshold,omitempty"`

	// BreakerOpenDuration is how long the breaker stays open.
	BreakerOpenDuration time.Duration `yaml:"breakerOpenDuration,omitempty" json:"breakerOpenDuration,omitempty"`
}

// OPAEngine queries an OPA server's data API. Each query is one attempt;
// failures are not retried and count against the circuit breaker.
type OPAEngine struct {
	config     *OPAConfig
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	logger     observability.Logger
	metrics    *Metrics
}

// OPAOption is a functional option for the OPA engine.
type OPAOption func(*OPAEngine)

// WithOPAHTTPClient sets the HTTP client.
func WithOPAHTTPClient(client *http.Client) OPAOption {
	return func(e *OPAEngine) {
		e.httpClient = client
	}
}

// WithOPALogger sets the logger.
func WithOPALogger(logger observability.Logger) OPAOption {
	return func(e *OPAEngine) {
		e.logger = logger
	}
}

// WithOPAMetrics sets the metrics.
func WithOPAMetrics(metrics *Metrics) OPAOption {
	return func(e *OPAEngine) {
		e.metrics = metrics
	}
}

// NewOPAEngine creates an OPA engine.
func NewOPAEngine(config *OPAConfig, opts ...OPAOption) (*OPAEngine, error) {
	if config == nil || config.URL == "" {
		return nil, fmt.Errorf("%w: opa url is required", ErrEngineNotConfigured)
	}

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = DefaultOPATimeout
	}

	e := &OPAEngine{
		config:     config,
		httpClient: &http.Client{Timeout: timeout},
		logger:     observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}

	threshold := config.BreakerThreshold
	if threshold <= 0 {
		threshold = DefaultBreakerThreshold
	}
	openFor := config.BreakerOpenDuration
	if openFor <= 0 {
		openFor = DefaultBreakerOpenDuration
	}

	e.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "opa",
		MaxRequests: 1,
		Timeout:     openFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= safeUint32(threshold)
		},
		IsSuccessful: func(err error) bool {
			var abandoned *abandonedQueryError
			return err == nil || errors.As(err, &abandoned)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			e.logger.Warn("policy circuit breaker state change",
				observability.String("name", name),
				observability.String("from", from.String()),
				observability.String("to", to.String()),
			)
			if e.metrics != nil {
				e.metrics.SetBreakerState(name, int(to))
			}
		},
	})

	return e, nil
}

// abandonedQueryError is a query that failed because its caller went away.
// It does not count against the breaker.
type abandonedQueryError struct {
	err error
}

func (e *abandonedQueryError) Error() string { return e.err.Error() }

func (e *abandonedQueryError) Unwrap() error { return e.err }

func safeUint32(n int) uint32 {
	if n < 0 {
		return 0
	}
	if n > int(^uint32(0)) {
		return ^uint32(0)
	}
	return uint32(n) //nolint:gosec // bounds checked above
}

// BreakerState returns the breaker state.
func (e *OPAEngine) BreakerState() gobreaker.State {
	return e.breaker.State()
}

// Evaluate queries POST {url}/v1/data/{path} with the identity as input.
func (e *OPAEngine) Evaluate(ctx context.Context, identity *auth.Identity, def *Definition) (bool, error) {
	if def.OPA == nil || def.OPA.Path == "" {
		return false, fmt.Errorf("%w: policy %q has no opa path", ErrInvalidDefinition, def.Name)
	}

	trace.SpanFromContext(ctx).SetAttributes(attribute.String("policy.opa.path", def.OPA.Path))

	body, err := json.Marshal(map[string]interface{}{
		"input": map[string]interface{}{
			"identity": identityAttributes(identity),
			"policy":   def.Name,
		},
	})
	if err != nil {
		return false, fmt.Errorf("failed to marshal input: %w", err)
	}

	url := strings.TrimRight(e.config.URL, "/") + "/v1/data/" + strings.Trim(def.OPA.Path, "/")

	if err := ctx.Err(); err != nil {
		return false, err
	}

	result, err := e.breaker.Execute(func() (interface{}, error) {
		allowed, queryErr := e.query(ctx, url, body)
		if queryErr != nil && ctx.Err() != nil {
			return false, &abandonedQueryError{err: queryErr}
		}
		return allowed, queryErr
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return false, ErrBreakerOpen
		}
		return false, err
	}

	allowed, _ := result.(bool)
	return allowed, nil
}

func (e *OPAEngine) query(ctx context.Context, url string, body []byte) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range e.config.Headers {
		req.Header.Set(k, v)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return false, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("opa returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var decoded struct {
		Result interface{} `json:"result"`
	}
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return false, fmt.Errorf("failed to parse response: %w", err)
	}

	switch v := decoded.Result.(type) {
	case bool:
		return v, nil
	case map[string]interface{}:
		allow, ok := v["allow"].(bool)
		if !ok {
			return false, fmt.Errorf("%w: result object has no boolean allow", ErrUnexpectedResult)
		}
		return allow, nil
	case nil:
		// Undefined document: OPA omits result.
		return false, nil
	default:
		return false, fmt.Errorf("%w: %T", ErrUnexpectedResult, v)
	}
}

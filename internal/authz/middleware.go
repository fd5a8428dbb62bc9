package authz

import (
	"encoding/json"
	"net/http"

	"github.com/vyrodovalexey/funcauthz/internal/auth"
	"github.com/vyrodovalexey/funcauthz/internal/observability"
)

// middlewareConfig holds per-handler middleware settings.
type middlewareConfig struct {
	routeValues func(*http.Request) map[string]string
}

// MiddlewareOption is a functional option for Middleware.
type MiddlewareOption func(*middlewareConfig)

// WithRouteValues sets the function that extracts route parameters for
// custom filters.
func WithRouteValues(fn func(*http.Request) map[string]string) MiddlewareOption {
	return func(c *middlewareConfig) {
		c.routeValues = fn
	}
}

// Middleware guards next with the requirements of one handler. On Proceed
// the identity is attached to the request context and the item bag.
// Unauthorized and Forbidden responses have no body.
func (d *Dispatcher) Middleware(req *Requirements, opts ...MiddlewareOption) func(http.Handler) http.Handler {
	cfg := &middlewareConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			items, ok := ItemsFromContext(ctx)
			if !ok {
				items = NewRequestItems()
				ctx = ContextWithItems(ctx, items)
			}

			inv := &Invocation{
				Request:      r,
				Token:        auth.TokenFromRequest(r, d.Scheme()),
				Requirements: req,
				Items:        items,
			}
			if cfg.routeValues != nil {
				inv.RouteValues = cfg.routeValues(r)
			}

			decision := d.Decide(ctx, inv)

			switch decision.Outcome {
			case OutcomeProceed:
				if decision.Identity != nil {
					ctx = auth.ContextWithIdentity(ctx, decision.Identity)
				}
				next.ServeHTTP(w, r.WithContext(ctx))
			case OutcomeCustom:
				d.writeBody(w, r, decision)
			default:
				w.WriteHeader(decision.StatusCode)
			}
		})
	}
}

// writeBody writes a custom filter response. Byte slices are written raw,
// strings as text and anything else as JSON.
func (d *Dispatcher) writeBody(w http.ResponseWriter, r *http.Request, decision *Decision) {
	switch body := decision.Body.(type) {
	case nil:
		w.WriteHeader(decision.StatusCode)
	case []byte:
		w.Header().Set("Content-Type", "application/octet-stream")
		w.WriteHeader(decision.StatusCode)
		_, _ = w.Write(body)
	case string:
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(decision.StatusCode)
		_, _ = w.Write([]byte(body))
	default:
		data, err := json.Marshal(body)
		if err != nil {
			d.logger.WithContext(r.Context()).Error("failed to encode filter response",
				observability.Error(err),
			)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(decision.StatusCode)
		_, _ = w.Write(data)
	}
}

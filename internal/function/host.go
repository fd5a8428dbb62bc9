package function

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/vyrodovalexey/funcauthz/internal/auth"
	"github.com/vyrodovalexey/funcauthz/internal/authz"
	"github.com/vyrodovalexey/funcauthz/internal/observability"
)

var supportedMethods = map[string]bool{
	http.MethodGet:     true,
	http.MethodHead:    true,
	http.MethodPost:    true,
	http.MethodPut:     true,
	http.MethodPatch:   true,
	http.MethodDelete:  true,
	http.MethodOptions: true,
}

// Function is an HTTP-triggered function.
type Function struct {
	// Name is the unique function name used in logs and metrics.
	Name string

	// Method is the HTTP method.
	Method string

	// Route is a chi pattern such as /orders/{id}.
	Route string

	// Handler references the handler method whose declarations apply.
	Handler authz.HandlerRef

	// Func serves the invocation.
	Func http.HandlerFunc
}

type registration struct {
	fn           Function
	requirements *authz.Requirements
}

// Host routes requests to registered functions through the authorization
// middleware. Requirements are resolved once at registration.
type Host struct {
	router     chi.Router
	catalog    *authz.Catalog
	dispatcher *authz.Dispatcher
	logger     observability.Logger
	metrics    *observability.Metrics
	tracer     *observability.Tracer
	limiter    *RateLimiter
	realIP     bool

	mu        sync.RWMutex
	functions map[string]*registration
	routes    map[string]string
}

// HostOption is a functional option for the host.
type HostOption func(*Host)

// WithHostLogger sets the logger.
func WithHostLogger(logger observability.Logger) HostOption {
	return func(h *Host) {
		h.logger = logger
	}
}

// WithHostMetrics enables HTTP metrics and panic counting.
func WithHostMetrics(metrics *observability.Metrics) HostOption {
	return func(h *Host) {
		h.metrics = metrics
	}
}

// WithHostTracer enables a server span per invocation.
func WithHostTracer(tracer *observability.Tracer) HostOption {
	return func(h *Host) {
		h.tracer = tracer
	}
}

// WithRateLimiter enables rate limiting.
func WithRateLimiter(limiter *RateLimiter) HostOption {
	return func(h *Host) {
		h.limiter = limiter
	}
}

// WithRealIP takes the client address from X-Forwarded-For / X-Real-IP.
// Enable only behind a trusted proxy.
func WithRealIP() HostOption {
	return func(h *Host) {
		h.realIP = true
	}
}

// NewHost creates a host over catalog. Transport middleware is installed in
// order: request id, real ip, tracing, logging, metrics, recovery, rate limit.
func NewHost(catalog *authz.Catalog, dispatcher *authz.Dispatcher, opts ...HostOption) *Host {
	h := &Host{
		router:     chi.NewRouter(),
		catalog:    catalog,
		dispatcher: dispatcher,
		logger:     observability.NopLogger(),
		functions:  make(map[string]*registration),
		routes:     make(map[string]string),
	}
	for _, opt := range opts {
		opt(h)
	}

	h.router.Use(RequestID())
	if h.realIP {
		h.router.Use(middleware.RealIP)
	}
	if h.tracer != nil {
		h.router.Use(h.tracer.Middleware)
	}
	h.router.Use(Logging(h.logger, h.functionName))
	if h.metrics != nil {
		h.router.Use(h.metrics.Middleware(h.functionName))
	}
	h.router.Use(Recovery(h.logger, h.metrics))
	if h.limiter != nil {
		h.router.Use(h.limiter.Middleware())
	}

	return h
}

// Register resolves the authorization requirements of fn and routes it.
func (h *Host) Register(fn Function) (*authz.Requirements, error) {
	if fn.Name == "" || fn.Route == "" || fn.Func == nil {
		return nil, fmt.Errorf("function %q: %w", fn.Name, ErrInvalidFunction)
	}
	method := strings.ToUpper(fn.Method)
	if !supportedMethods[method] {
		return nil, fmt.Errorf("function %q: %w: %s", fn.Name, ErrUnsupportedMethod, fn.Method)
	}
	fn.Method = method

	req, err := h.catalog.Resolve(fn.Handler)
	if err != nil {
		return nil, fmt.Errorf("function %q: %w", fn.Name, err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.functions[fn.Name]; exists {
		return nil, fmt.Errorf("function %q: %w", fn.Name, ErrDuplicateFunction)
	}

	name := fn.Name
	guarded := h.dispatcher.Middleware(req, authz.WithRouteValues(RouteValues))(fn.Func)
	h.router.Method(method, fn.Route, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := observability.ContextWithFunction(r.Context(), name)
		guarded.ServeHTTP(w, r.WithContext(ctx))
	}))

	h.functions[name] = &registration{fn: fn, requirements: req}
	h.routes[routeKey(method, fn.Route)] = name

	h.logger.Info("function registered",
		observability.String("function", name),
		observability.String("method", method),
		observability.String("route", fn.Route),
		observability.String("handler", fn.Handler.String()),
		observability.Bool("authorization_required", req.Required),
	)

	return req, nil
}

// Requirements returns the resolved requirements of a registered function.
func (h *Host) Requirements(name string) (*authz.Requirements, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	reg, ok := h.functions[name]
	if !ok {
		return nil, false
	}
	return reg.requirements, true
}

// Functions returns the registered functions sorted by name.
func (h *Host) Functions() []Function {
	h.mu.RLock()
	defer h.mu.RUnlock()

	fns := make([]Function, 0, len(h.functions))
	for _, reg := range h.functions {
		fns = append(fns, reg.fn)
	}
	sort.Slice(fns, func(i, j int) bool { return fns[i].Name < fns[j].Name })
	return fns
}

// ServeHTTP implements http.Handler.
func (h *Host) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

// functionName resolves the function served for r once routing is done.
func (h *Host) functionName(r *http.Request) string {
	if name := observability.FunctionFromContext(r.Context()); name != "" {
		return name
	}
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return ""
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.routes[routeKey(r.Method, rctx.RoutePattern())]
}

func routeKey(method, pattern string) string {
	return method + " " + pattern
}

// RouteValues returns the chi URL parameters of r.
func RouteValues(r *http.Request) map[string]string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return nil
	}
	values := make(map[string]string, len(rctx.URLParams.Keys))
	for i, key := range rctx.URLParams.Keys {
		if i < len(rctx.URLParams.Values) {
			values[key] = rctx.URLParams.Values[i]
		}
	}
	return values
}

// User returns the caller identity stored for the invocation, or nil when
// the caller is anonymous.
func User(r *http.Request) *auth.Identity {
	return authz.UserFromContext(r.Context())
}

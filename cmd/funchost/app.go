package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vyrodovalexey/funcauthz/internal/audit"
	"github.com/vyrodovalexey/funcauthz/internal/auth"
	"github.com/vyrodovalexey/funcauthz/internal/auth/jwt"
	"github.com/vyrodovalexey/funcauthz/internal/auth/revocation"
	"github.com/vyrodovalexey/funcauthz/internal/authz"
	"github.com/vyrodovalexey/funcauthz/internal/config"
	"github.com/vyrodovalexey/funcauthz/internal/function"
	"github.com/vyrodovalexey/funcauthz/internal/health"
	"github.com/vyrodovalexey/funcauthz/internal/observability"
	"github.com/vyrodovalexey/funcauthz/internal/policy"
	"github.com/vyrodovalexey/funcauthz/internal/secrets"
)

const (
	readHeaderTimeout     = 5 * time.Second
	opsServerTimeout      = 10 * time.Second
	opaHealthCheckTimeout = 2 * time.Second
)

// application holds all application components.
type application struct {
	config  *config.Config
	logger  observability.Logger
	metrics *observability.Metrics
	tracer  *observability.Tracer
	health  *health.Checker

	secrets     secrets.Provider
	revocations *revocation.RedisStore
	audit       audit.Logger
	auditor     *audit.Auditor
	rateLimiter *function.RateLimiter
	host        *function.Host

	server    *http.Server
	opsServer *http.Server
}

// newApplication builds every component from cfg. Resources acquired before
// a failure are released.
func newApplication(ctx context.Context, cfg *config.Config, logger observability.Logger) (app *application, err error) {
	if logger == nil {
		logger = observability.NopLogger()
	}
	if cfg.Logging.Level != "" {
		configured, logErr := observability.NewLogger(cfg.Logging)
		if logErr != nil {
			return nil, fmt.Errorf("failed to initialize logger: %w", logErr)
		}
		logger = configured
	}

	app = &application{config: cfg, logger: logger}
	defer func() {
		if err != nil {
			app.close(context.Background())
			app = nil
		}
	}()

	namespace := cfg.Metrics.Namespace
	if namespace == "" {
		namespace = config.DefaultNamespace
	}
	app.metrics = observability.NewMetrics(namespace)
	registry := app.metrics.Registry()

	app.tracer, err = observability.NewTracer(ctx, cfg.Tracing)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}

	tokens, err := app.initTokenService(ctx, namespace, registry)
	if err != nil {
		return nil, err
	}

	checker, err := app.initPolicies(namespace, registry)
	if err != nil {
		return nil, err
	}

	dispatcherOpts := []authz.DispatcherOption{
		authz.WithDispatcherLogger(logger),
		authz.WithDispatcherMetrics(authz.NewMetricsWithRegisterer(namespace, registry)),
	}
	if cfg.Audit != nil && cfg.Audit.Enabled {
		app.audit, err = audit.NewLogger(cfg.Audit,
			audit.WithLoggerLogger(logger),
			audit.WithLoggerMetrics(audit.NewMetrics(namespace, registry)),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create audit logger: %w", err)
		}
		app.auditor = audit.NewAuditor(app.audit, cfg.Audit)
		dispatcherOpts = append(dispatcherOpts, authz.WithDispatcherAuditor(app.auditor))
	}
	dispatcher := authz.NewDispatcher(tokens, checker, dispatcherOpts...)

	if err = app.initHost(dispatcher); err != nil {
		return nil, err
	}

	if cfg.Metrics.Enabled {
		app.initHealth(namespace, registry)
	}
	app.initServers()

	return app, nil
}

// initTokenService builds the jwt validator. Signing keys held by the secret
// provider are appended to the configured static keys.
func (a *application) initTokenService(
	ctx context.Context,
	namespace string,
	registry prometheus.Registerer,
) (*auth.TokenService, error) {
	cfg := a.config
	jwtCfg := cfg.Auth.JWT

	if cfg.Secrets != nil {
		provider, err := secrets.NewProvider(&cfg.Secrets.Config, a.logger, secrets.NewMetrics(namespace, registry))
		if err != nil {
			return nil, fmt.Errorf("failed to create secret provider: %w", err)
		}
		a.secrets = provider

		if refs := cfg.SigningKeyRefs(); len(refs) > 0 {
			keys, err := secrets.ResolveSigningKeys(ctx, provider, refs)
			if err != nil {
				return nil, fmt.Errorf("failed to resolve signing keys: %w", err)
			}
			jwtCfg.StaticKeys = append(append([]jwt.StaticKey{}, jwtCfg.StaticKeys...), keys...)
			a.logger.Info("signing keys resolved",
				observability.String("provider", string(provider.Type())),
				observability.Int("keys", len(keys)),
			)
		}
	}

	opts := []jwt.Option{jwt.WithLogger(a.logger)}
	if cfg.Auth.Revocation != nil {
		store, err := revocation.NewRedisStore(ctx, cfg.Auth.Revocation, a.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect revocation store: %w", err)
		}
		a.revocations = store
		opts = append(opts, jwt.WithRevocationChecker(store))
	}

	validator, err := jwt.NewValidator(ctx, &jwtCfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create token validator: %w", err)
	}

	return auth.NewTokenService(validator,
		auth.WithTokenServiceLogger(a.logger),
		auth.WithTokenServiceMetrics(auth.NewMetricsWithRegisterer(namespace, registry)),
		auth.WithScheme(cfg.Auth.GetEffectiveScheme()),
	), nil
}

// initPolicies builds the policy table and an engine for every engine the
// table or the configuration needs.
func (a *application) initPolicies(namespace string, registry prometheus.Registerer) (*authz.RequirementEvaluator, error) {
	cfg := &a.config.Policies

	table, err := policy.NewTable(cfg.Definitions)
	if err != nil {
		return nil, fmt.Errorf("failed to build policy table: %w", err)
	}

	metrics := policy.NewMetricsWithRegisterer(namespace, registry)
	opts := []policy.RouterOption{
		policy.WithRouterLogger(a.logger),
		policy.WithRouterMetrics(metrics),
	}

	if defs := table.Definitions(policy.EngineCEL); len(defs) > 0 {
		engine, err := policy.NewCELEngine(defs)
		if err != nil {
			return nil, fmt.Errorf("failed to compile cel policies: %w", err)
		}
		opts = append(opts, policy.WithEngine(policy.EngineCEL, engine))
	}

	if cfg.OPA != nil {
		engine, err := policy.NewOPAEngine(cfg.OPA,
			policy.WithOPALogger(a.logger),
			policy.WithOPAMetrics(metrics),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create opa engine: %w", err)
		}
		opts = append(opts, policy.WithEngine(policy.EngineOPA, engine))
	}

	if cfg.OpenFGA != nil {
		engine, err := policy.NewOpenFGAEngine(cfg.OpenFGA)
		if err != nil {
			return nil, fmt.Errorf("failed to create openfga engine: %w", err)
		}
		opts = append(opts, policy.WithEngine(policy.EngineOpenFGA, engine))
	}

	a.logger.Info("policies loaded",
		observability.Int("policies", table.Len()),
		observability.Strings("names", table.Names()),
	)

	return authz.NewRequirementEvaluator(table, policy.NewRouter(opts...),
		authz.WithEvaluatorLogger(a.logger),
	), nil
}

// initHost creates the function host and registers the bundled functions.
func (a *application) initHost(dispatcher *authz.Dispatcher) error {
	cfg := a.config
	store := newOrderStore()

	catalog, err := newCatalog(store)
	if err != nil {
		return fmt.Errorf("failed to build handler catalog: %w", err)
	}

	opts := []function.HostOption{
		function.WithHostLogger(a.logger),
		function.WithHostMetrics(a.metrics),
		function.WithHostTracer(a.tracer),
	}
	if cfg.Server.TrustForwardedHeaders {
		opts = append(opts, function.WithRealIP())
	}
	if rl := cfg.RateLimit; rl != nil && rl.Enabled {
		a.rateLimiter = function.NewRateLimiter(rl.RequestsPerSecond, rl.Burst, rl.PerClient,
			function.WithRateLimiterLogger(a.logger),
			function.WithClientTTL(rl.ClientTTL.Duration()),
		)
		opts = append(opts, function.WithRateLimiter(a.rateLimiter))
	}

	a.host = function.NewHost(catalog, dispatcher, opts...)

	fs := newFunctionSet(store, a.revocations, a.auditor, a.logger)
	for _, fn := range fs.functions() {
		req, err := a.host.Register(fn)
		if err != nil {
			return fmt.Errorf("failed to register function %s: %w", fn.Name, err)
		}
		a.logger.Debug("function registered",
			observability.String("function", fn.Name),
			observability.String("method", fn.Method),
			observability.String("route", fn.Route),
			observability.Bool("requires_authorization", req.Required),
		)
	}
	return nil
}

// initHealth registers readiness checks for the external dependencies. The
// probes are served by the operations listener only.
func (a *application) initHealth(namespace string, registry prometheus.Registerer) {
	a.health = health.NewChecker(version,
		health.WithLogger(a.logger),
		health.WithMetrics(health.NewMetrics(namespace, registry)),
	)

	if a.revocations != nil {
		a.health.Register(health.PingCheck("revocation", health.DependencyTypeCache, a.revocations))
	}
	if opa := a.config.Policies.OPA; opa != nil {
		a.health.Register(health.HTTPHealthCheck("opa", strings.TrimRight(opa.URL, "/")+"/health",
			opaHealthCheckTimeout, health.WithCritical(false)))
	}
}

// initServers creates the function listener and, when metrics are enabled,
// the operations listener serving metrics and health probes.
func (a *application) initServers() {
	s := a.config.Server
	a.server = &http.Server{
		Addr:              s.Address,
		Handler:           a.host,
		ReadTimeout:       s.ReadTimeout.OrDefault(config.DefaultReadTimeout),
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      s.WriteTimeout.OrDefault(config.DefaultWriteTimeout),
		IdleTimeout:       s.IdleTimeout.OrDefault(config.DefaultIdleTimeout),
	}

	m := a.config.Metrics
	if !m.Enabled {
		return
	}
	path := m.Path
	if path == "" {
		path = config.DefaultMetricsPath
	}

	mux := http.NewServeMux()
	mux.Handle(path, a.metrics.Handler())
	a.health.Mount(mux)

	a.opsServer = &http.Server{
		Addr:              m.Address,
		Handler:           mux,
		ReadTimeout:       opsServerTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      opsServerTimeout,
	}
}

// run serves until ctx is done, a termination signal arrives or a listener
// fails, then shuts down.
func (a *application) run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 2)
	serve := func(name string, srv *http.Server) {
		a.logger.Info("starting listener",
			observability.String("listener", name),
			observability.String("address", srv.Addr),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("%s listener: %w", name, err)
		}
	}

	go serve("functions", a.server)
	if a.opsServer != nil {
		go serve("operations", a.opsServer)
	}
	if a.rateLimiter != nil {
		a.rateLimiter.StartAutoCleanup()
	}

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("received shutdown signal")
	case runErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(),
		a.config.Server.ShutdownTimeout.OrDefault(config.DefaultShutdownTimeout))
	defer cancel()
	a.close(shutdownCtx)

	return runErr
}

// close stops the listeners and releases every resource in reverse order of
// acquisition.
func (a *application) close(ctx context.Context) {
	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil {
			a.logger.Error("failed to stop function listener gracefully", observability.Error(err))
		}
	}
	if a.opsServer != nil {
		if err := a.opsServer.Shutdown(ctx); err != nil {
			a.logger.Error("failed to stop operations listener gracefully", observability.Error(err))
		}
	}
	if a.rateLimiter != nil {
		a.rateLimiter.Stop()
	}
	if a.revocations != nil {
		if err := a.revocations.Close(); err != nil {
			a.logger.Error("failed to close revocation store", observability.Error(err))
		}
	}
	if a.audit != nil {
		if err := a.audit.Close(); err != nil {
			a.logger.Error("failed to close audit log", observability.Error(err))
		}
	}
	if a.secrets != nil {
		if err := a.secrets.Close(); err != nil {
			a.logger.Error("failed to close secret provider", observability.Error(err))
		}
	}
	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			a.logger.Error("failed to shutdown tracer", observability.Error(err))
		}
	}

	a.logger.Info("function host stopped")
	_ = a.logger.Sync()
}

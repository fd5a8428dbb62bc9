package health

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// DependencyType represents the type of dependency.
type DependencyType string

const (
	// DependencyTypeCache is a cache or key-value store dependency.
	DependencyTypeCache DependencyType = "cache"
	// DependencyTypeHTTP is an HTTP service dependency.
	DependencyTypeHTTP DependencyType = "http"
	// DependencyTypeCustom is a custom dependency.
	DependencyTypeCustom DependencyType = "custom"
)

// Pinger is implemented by clients that can verify their connection.
type Pinger interface {
	Ping(ctx context.Context) error
}

// DependencyCheck is a named readiness check against a dependency.
type DependencyCheck struct {
	name     string
	depType  DependencyType
	checkFn  func(ctx context.Context) error
	critical bool
}

// DependencyCheckOption configures a DependencyCheck.
type DependencyCheckOption func(*DependencyCheck)

// WithCritical marks the dependency as critical. A failing critical check
// makes the service unhealthy; a failing non-critical check degrades it.
func WithCritical(critical bool) DependencyCheckOption {
	return func(d *DependencyCheck) {
		d.critical = critical
	}
}

// NewDependencyCheck creates a new dependency check. Checks are critical
// unless configured otherwise.
func NewDependencyCheck(
	name string,
	depType DependencyType,
	checkFn func(ctx context.Context) error,
	opts ...DependencyCheckOption,
) *DependencyCheck {
	d := &DependencyCheck{
		name:     name,
		depType:  depType,
		checkFn:  checkFn,
		critical: true,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Name returns the name of the dependency check.
func (d *DependencyCheck) Name() string {
	return d.name
}

// Type returns the dependency type.
func (d *DependencyCheck) Type() DependencyType {
	return d.depType
}

// IsCritical returns true if the dependency is critical.
func (d *DependencyCheck) IsCritical() bool {
	return d.critical
}

// Check runs the check.
func (d *DependencyCheck) Check(ctx context.Context) error {
	return d.checkFn(ctx)
}

// PingCheck creates a check that pings a client.
func PingCheck(name string, depType DependencyType, p Pinger, opts ...DependencyCheckOption) *DependencyCheck {
	return NewDependencyCheck(name, depType, func(ctx context.Context) error {
		if p == nil {
			return errors.New("client is nil")
		}
		if err := p.Ping(ctx); err != nil {
			return fmt.Errorf("ping failed: %w", err)
		}
		return nil
	}, opts...)
}

// HTTPHealthCheck creates a check that expects a 2xx from url.
func HTTPHealthCheck(name, url string, timeout time.Duration, opts ...DependencyCheckOption) *DependencyCheck {
	client := &http.Client{Timeout: timeout}

	return NewDependencyCheck(name, DependencyTypeHTTP, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}

		resp, err := client.Do(req)
		if err != nil {
			return fmt.Errorf("failed to connect: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("unhealthy status code: %d", resp.StatusCode)
		}
		return nil
	}, opts...)
}

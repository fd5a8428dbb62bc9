package secrets

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/vyrodovalexey/funcauthz/internal/observability"
)

// DefaultEnvPrefix is the default prefix for environment variable secrets.
const DefaultEnvPrefix = "FUNCAUTHZ_SECRET_"

// EnvProvider reads secrets from environment variables. The path
// "jwt/signing-key" maps to FUNCAUTHZ_SECRET_JWT_SIGNING_KEY. A JSON object
// value is split into keys; any other value is stored under "value".
type EnvProvider struct {
	prefix  string
	logger  observability.Logger
	metrics *Metrics
	lookup  func(string) (string, bool)
}

// NewEnvProvider creates an environment provider. An empty prefix uses
// DefaultEnvPrefix.
func NewEnvProvider(prefix string, logger observability.Logger, metrics *Metrics) *EnvProvider {
	if prefix == "" {
		prefix = DefaultEnvPrefix
	}
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &EnvProvider{
		prefix:  prefix,
		logger:  logger,
		metrics: metrics,
		lookup:  os.LookupEnv,
	}
}

// Type returns ProviderTypeEnv.
func (p *EnvProvider) Type() ProviderType {
	return ProviderTypeEnv
}

// EnvName converts a secret path to the environment variable name.
func (p *EnvProvider) EnvName(path string) string {
	name := strings.ToUpper(path)
	name = strings.NewReplacer("-", "_", ".", "_", "/", "_").Replace(name)
	return p.prefix + name
}

// GetSecret retrieves a secret from the environment.
func (p *EnvProvider) GetSecret(_ context.Context, path string) (secret *Secret, err error) {
	start := time.Now()
	defer func() {
		p.metrics.RecordOperation(p.Type(), "get", time.Since(start), err)
	}()

	if path == "" {
		return nil, ErrInvalidPath
	}

	envName := p.EnvName(path)
	value, exists := p.lookup(envName)
	if !exists {
		return nil, fmt.Errorf("%w: environment variable %s not set", ErrSecretNotFound, envName)
	}

	data := make(map[string][]byte)
	var jsonData map[string]interface{}
	if json.Unmarshal([]byte(value), &jsonData) == nil {
		for k, v := range jsonData {
			if s, ok := v.(string); ok {
				data[k] = []byte(s)
				continue
			}
			raw, marshalErr := json.Marshal(v)
			if marshalErr != nil {
				p.logger.Warn("skipping secret field",
					observability.String("key", k),
					observability.Error(marshalErr),
				)
				continue
			}
			data[k] = raw
		}
	} else {
		data["value"] = []byte(value)
	}

	p.logger.Debug("secret read from environment",
		observability.String("env_var", envName),
		observability.Int("keys", len(data)),
	)

	return &Secret{Name: path, Data: data}, nil
}

// Close is a no-op.
func (p *EnvProvider) Close() error {
	return nil
}

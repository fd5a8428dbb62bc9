package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/vyrodovalexey/funcauthz/internal/audit"
	"github.com/vyrodovalexey/funcauthz/internal/auth/revocation"
	"github.com/vyrodovalexey/funcauthz/internal/policy"
	"github.com/vyrodovalexey/funcauthz/internal/secrets"
)

const validYAML = `
server:
  address: ":9000"
  readTimeout: 5s
  shutdownTimeout: 1m
metrics:
  enabled: true
  address: ":9100"
logging:
  level: debug
  format: console
auth:
  scheme: Token
  jwt:
    issuers: ["https://issuer.example.com"]
    audience: ["orders"]
    clockSkew: 30s
    staticKeys:
      - keyId: k1
        algorithm: HS256
        key: ${SIGNING_KEY:-c2VjcmV0}
    claimMapping:
      roles: realm_access.roles
  revocation:
    url: redis://localhost:6379/0
policies:
  definitions:
    - name: editors
      roles: [editor]
    - name: tenant
      engine: cel
      expression: identity.claims.tenant == "acme"
    - name: opa-allow
      engine: opa
      opa:
        path: funcauthz/allow
  opa:
    url: http://localhost:8181
    timeout: 2s
rateLimit:
  enabled: true
  requestsPerSecond: 50
  burst: 100
  perClient: true
  clientTTL: 5m
audit:
  enabled: true
  output: stderr
  decisions: all
  skipFunctions: [status]
`

func newTestLoader(env map[string]string) *Loader {
	return &Loader{lookupEnv: func(name string) (string, bool) {
		v, ok := env[name]
		return v, ok
	}}
}

func TestLoader_LoadFromReader(t *testing.T) {
	t.Parallel()

	cfg, err := newTestLoader(nil).LoadFromReader(strings.NewReader(validYAML))
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Server.Address)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout.Duration())
	assert.Equal(t, time.Minute, cfg.Server.ShutdownTimeout.Duration())
	assert.Equal(t, DefaultWriteTimeout, cfg.Server.WriteTimeout.Duration(), "unset fields keep defaults")

	assert.Equal(t, ":9100", cfg.Metrics.Address)
	assert.Equal(t, DefaultMetricsPath, cfg.Metrics.Path)
	assert.Equal(t, "debug", cfg.Logging.Level)

	assert.Equal(t, "Token", cfg.Auth.GetEffectiveScheme())
	require.Len(t, cfg.Auth.JWT.StaticKeys, 1)
	assert.Equal(t, "c2VjcmV0", cfg.Auth.JWT.StaticKeys[0].Key)
	require.NotNil(t, cfg.Auth.JWT.ClockSkew)
	assert.Equal(t, 30*time.Second, *cfg.Auth.JWT.ClockSkew)
	assert.Equal(t, "realm_access.roles", cfg.Auth.JWT.ClaimMapping.Roles)
	require.NotNil(t, cfg.Auth.Revocation)

	require.Len(t, cfg.Policies.Definitions, 3)
	assert.Equal(t, policy.EngineCEL, cfg.Policies.Definitions[1].EffectiveEngine())
	require.NotNil(t, cfg.Policies.OPA)
	assert.Equal(t, 2*time.Second, cfg.Policies.OPA.Timeout)

	require.NotNil(t, cfg.RateLimit)
	assert.Equal(t, 5*time.Minute, cfg.RateLimit.ClientTTL.Duration())

	require.NotNil(t, cfg.Audit)
	assert.True(t, cfg.Audit.RecordsAll())
	assert.Equal(t, "stderr", cfg.Audit.GetEffectiveOutput())
	assert.Equal(t, []string{"status"}, cfg.Audit.SkipFunctions)
}

func TestLoader_EnvSubstitution(t *testing.T) {
	t.Parallel()

	l := newTestLoader(map[string]string{"HOST": "example.com", "EMPTY": ""})

	tests := []struct {
		in   string
		want string
	}{
		{in: "${HOST}", want: "example.com"},
		{in: "${HOST:-fallback}", want: "example.com"},
		{in: "${MISSING:-fallback}", want: "fallback"},
		{in: "${MISSING}", want: ""},
		{in: "${EMPTY:-fallback}", want: ""},
		{in: "$${HOST}", want: "${HOST}"},
		{in: "cost: $$5", want: "cost: $5"},
		{in: "https://${HOST}:${PORT:-443}/x", want: "https://example.com:443/x"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, l.substituteEnvVars(tt.in), tt.in)
	}
}

func TestLoader_Load(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "funchost.yaml")
	require.NoError(t, os.WriteFile(path, []byte(validYAML), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Server.Address)

	_, err = LoadConfig(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestLoader_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{name: "empty document lacks keys", yaml: "", wantErr: "auth.jwt"},
		{name: "unknown field", yaml: "bogus: true\n", wantErr: "failed to parse YAML"},
		{name: "malformed", yaml: "server: [\n", wantErr: "failed to parse YAML"},
		{name: "bad duration", yaml: "server:\n  readTimeout: soon\n", wantErr: "failed to parse YAML"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := newTestLoader(nil).LoadFromReader(strings.NewReader(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.Auth.JWT.JWKSUrl = "https://issuer.example.com/jwks"
	return cfg
}

func TestValidateConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		mutate   func(*Config)
		wantPath string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "missing address", mutate: func(c *Config) { c.Server.Address = "" }, wantPath: "server.address"},
		{name: "negative timeout", mutate: func(c *Config) { c.Server.IdleTimeout = -1 }, wantPath: "server"},
		{name: "metrics address", mutate: func(c *Config) { c.Metrics.Address = "" }, wantPath: "metrics.address"},
		{name: "metrics disabled", mutate: func(c *Config) { c.Metrics = MetricsConfig{} }},
		{name: "metrics path", mutate: func(c *Config) { c.Metrics.Path = "metrics" }, wantPath: "metrics.path"},
		{name: "log level", mutate: func(c *Config) { c.Logging.Level = "loud" }, wantPath: "logging.level"},
		{name: "log format", mutate: func(c *Config) { c.Logging.Format = "xml" }, wantPath: "logging.format"},
		{
			name:     "tracing endpoint",
			mutate:   func(c *Config) { c.Tracing.Enabled = true },
			wantPath: "tracing.otlpEndpoint",
		},
		{
			name: "tracing sampling",
			mutate: func(c *Config) {
				c.Tracing.Enabled = true
				c.Tracing.OTLPEndpoint = "localhost:4317"
				c.Tracing.SamplingRate = 2
			},
			wantPath: "tracing.samplingRate",
		},
		{name: "scheme whitespace", mutate: func(c *Config) { c.Auth.Scheme = "Bear er" }, wantPath: "auth.scheme"},
		{name: "no keys", mutate: func(c *Config) { c.Auth.JWT.JWKSUrl = "" }, wantPath: "auth.jwt"},
		{
			name:     "bad algorithm",
			mutate:   func(c *Config) { c.Auth.JWT.Algorithms = []string{"none"} },
			wantPath: "auth.jwt",
		},
		{
			name: "keys from secrets",
			mutate: func(c *Config) {
				c.Auth.JWT.JWKSUrl = ""
				c.Secrets = &SecretsConfig{
					Config:      secrets.Config{Provider: "env"},
					SigningKeys: []secrets.KeyRef{{Path: "jwt/signing"}},
				}
			},
		},
		{
			name: "secrets provider",
			mutate: func(c *Config) {
				c.Secrets = &SecretsConfig{Config: secrets.Config{Provider: "vault"}}
			},
			wantPath: "secrets",
		},
		{
			name: "signing key path",
			mutate: func(c *Config) {
				c.Secrets = &SecretsConfig{
					Config:      secrets.Config{Provider: "env"},
					SigningKeys: []secrets.KeyRef{{}},
				}
			},
			wantPath: "secrets.signingKeys[0].path",
		},
		{
			name: "revocation url",
			mutate: func(c *Config) {
				c.Auth.Revocation = &revocation.Config{}
			},
			wantPath: "auth.revocation.url",
		},
		{
			name: "invalid policy",
			mutate: func(c *Config) {
				c.Policies.Definitions = []policy.Definition{{Name: "p"}}
			},
			wantPath: "policies.definitions[0]",
		},
		{
			name: "duplicate policy",
			mutate: func(c *Config) {
				c.Policies.Definitions = []policy.Definition{
					{Name: "p", Roles: []string{"a"}},
					{Name: "p", Roles: []string{"b"}},
				}
			},
			wantPath: "policies.definitions[1].name",
		},
		{
			name: "opa policy without engine",
			mutate: func(c *Config) {
				c.Policies.Definitions = []policy.Definition{
					{Name: "p", Engine: policy.EngineOPA, OPA: &policy.OPAQuery{Path: "a/allow"}},
				}
			},
			wantPath: "policies.definitions[0]",
		},
		{
			name: "openfga policy without engine",
			mutate: func(c *Config) {
				c.Policies.Definitions = []policy.Definition{
					{Name: "p", Engine: policy.EngineOpenFGA,
						OpenFGA: &policy.RelationCheck{Relation: "viewer", Object: "doc:1"}},
				}
			},
			wantPath: "policies.definitions[0]",
		},
		{
			name: "rate limit",
			mutate: func(c *Config) {
				c.RateLimit = &RateLimitConfig{Enabled: true}
			},
			wantPath: "rateLimit.requestsPerSecond",
		},
		{
			name: "audit decisions",
			mutate: func(c *Config) {
				c.Audit = &audit.Config{Enabled: true, Decisions: "some"}
			},
			wantPath: "audit.decisions",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := validConfig()
			tt.mutate(cfg)

			err := ValidateConfig(cfg)
			if tt.wantPath == "" {
				assert.NoError(t, err)
				return
			}

			require.Error(t, err)
			var verrs ValidationErrors
			require.ErrorAs(t, err, &verrs)
			paths := make([]string, 0, len(verrs))
			for _, e := range verrs {
				paths = append(paths, e.Path)
			}
			assert.Contains(t, paths, tt.wantPath)
		})
	}
}

func TestValidateConfig_Nil(t *testing.T) {
	t.Parallel()

	err := ValidateConfig(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configuration is nil")
}

func TestValidationErrors_Error(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "no validation errors", ValidationErrors{}.Error())
	assert.Equal(t, "a: b", ValidationErrors{{Path: "a", Message: "b"}}.Error())
	assert.Equal(t, "b", (&ValidationError{Message: "b"}).Error())

	multi := ValidationErrors{{Path: "a", Message: "x"}, {Path: "b", Message: "y"}}.Error()
	assert.Contains(t, multi, "2 validation errors")
	assert.Contains(t, multi, "1. a: x")
}

func TestDuration(t *testing.T) {
	t.Parallel()

	var holder struct {
		D Duration `yaml:"d" json:"d"`
	}

	require.NoError(t, yaml.Unmarshal([]byte("d: 90s"), &holder))
	assert.Equal(t, 90*time.Second, holder.D.Duration())

	require.NoError(t, yaml.Unmarshal([]byte(`d: ""`), &holder))
	assert.Zero(t, holder.D)

	require.NoError(t, json.Unmarshal([]byte(`{"d":"2m"}`), &holder))
	assert.Equal(t, 2*time.Minute, holder.D.Duration())

	require.NoError(t, json.Unmarshal([]byte(`{"d":null}`), &holder))
	assert.Zero(t, holder.D)

	data, err := json.Marshal(holder)
	require.NoError(t, err)
	assert.JSONEq(t, `{"d":"0s"}`, string(data))

	out, err := yaml.Marshal(struct {
		D Duration `yaml:"d"`
	}{D: Duration(time.Hour)})
	require.NoError(t, err)
	assert.Equal(t, "d: 1h0m0s\n", string(out))

	assert.Equal(t, time.Second, Duration(0).OrDefault(time.Second))
	assert.Equal(t, time.Minute, Duration(time.Minute).OrDefault(time.Second))
}

func TestLoadConfig_Sample(t *testing.T) {
	t.Parallel()

	cfg, err := newTestLoader(nil).Load(filepath.Join("..", "..", "configs", "funchost.yaml"))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, "https://login.example.com/.well-known/jwks.json", cfg.Auth.JWT.JWKSUrl)
	assert.Len(t, cfg.Policies.Definitions, 2)
	require.NotNil(t, cfg.RateLimit)
	assert.True(t, cfg.RateLimit.Enabled)
}

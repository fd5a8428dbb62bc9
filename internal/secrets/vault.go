package secrets

import (
	"context"
	"fmt"
	"strings"
	"time"

	vaultapi "github.com/hashicorp/vault/api"

	"github.com/vyrodovalexey/funcauthz/internal/observability"
)

// VaultConfig configures the Vault provider. Token authentication only.
type VaultConfig struct {
	Address    string        `yaml:"address" json:"address"`
	Token      string        `yaml:"token,omitempty" json:"token,omitempty"`
	Namespace  string        `yaml:"namespace,omitempty" json:"namespace,omitempty"`
	MountPoint string        `yaml:"mountPoint,omitempty" json:"mountPoint,omitempty"`
	Timeout    time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	MaxRetries int           `yaml:"maxRetries,omitempty" json:"maxRetries,omitempty"`
}

// VaultProvider reads secrets from a KV v2 engine.
type VaultProvider struct {
	client     *vaultapi.Client
	mountPoint string
	logger     observability.Logger
	metrics    *Metrics
}

// NewVaultProvider creates a Vault provider. The client is not contacted
// until the first read.
func NewVaultProvider(cfg *VaultConfig, logger observability.Logger, metrics *Metrics) (*VaultProvider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: vault config is required", ErrProviderNotConfigured)
	}
	if cfg.Address == "" {
		return nil, fmt.Errorf("%w: vault address is required", ErrProviderNotConfigured)
	}
	if logger == nil {
		logger = observability.NopLogger()
	}

	apiConfig := vaultapi.DefaultConfig()
	apiConfig.Address = cfg.Address
	if cfg.Timeout > 0 {
		apiConfig.Timeout = cfg.Timeout
	}
	apiConfig.MaxRetries = cfg.MaxRetries

	client, err := vaultapi.NewClient(apiConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	if cfg.Token != "" {
		client.SetToken(cfg.Token)
	}
	if cfg.Namespace != "" {
		client.SetNamespace(cfg.Namespace)
	}

	mount := strings.Trim(cfg.MountPoint, "/")
	if mount == "" {
		mount = "secret"
	}

	logger.Info("vault secrets provider initialized",
		observability.String("address", cfg.Address),
		observability.String("mount", mount),
	)

	return &VaultProvider{
		client:     client,
		mountPoint: mount,
		logger:     logger,
		metrics:    metrics,
	}, nil
}

// Type returns ProviderTypeVault.
func (p *VaultProvider) Type() ProviderType {
	return ProviderTypeVault
}

// GetSecret reads the latest version of the secret at path.
func (p *VaultProvider) GetSecret(ctx context.Context, path string) (secret *Secret, err error) {
	start := time.Now()
	defer func() {
		p.metrics.RecordOperation(p.Type(), "get", time.Since(start), err)
	}()

	path = strings.Trim(path, "/")
	if path == "" {
		return nil, ErrInvalidPath
	}

	fullPath := p.mountPoint + "/data/" + path
	raw, err := p.client.Logical().ReadWithContext(ctx, fullPath)
	if err != nil {
		p.logger.Error("vault read failed",
			observability.String("path", fullPath),
			observability.Error(err),
		)
		return nil, fmt.Errorf("failed to read secret from vault: %w", err)
	}
	if raw == nil || raw.Data == nil {
		return nil, fmt.Errorf("%w: %s", ErrSecretNotFound, path)
	}

	inner, ok := raw.Data["data"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSecretNotFound, path)
	}

	data := make(map[string][]byte, len(inner))
	for k, v := range inner {
		if s, ok := v.(string); ok {
			data[k] = []byte(s)
		}
	}

	secret = &Secret{Name: path, Data: data}
	if meta, ok := raw.Data["metadata"].(map[string]interface{}); ok {
		if v, ok := meta["version"]; ok {
			secret.Version = fmt.Sprint(v)
		}
	}

	return secret, nil
}

// Close is a no-op; the API client holds no long-lived resources.
func (p *VaultProvider) Close() error {
	return nil
}

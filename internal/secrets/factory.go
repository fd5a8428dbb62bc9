package secrets

import (
	"fmt"

	"github.com/vyrodovalexey/funcauthz/internal/observability"
)

// Config selects and configures a secrets provider.
type Config struct {
	Provider  string       `yaml:"provider" json:"provider"`
	EnvPrefix string       `yaml:"envPrefix,omitempty" json:"envPrefix,omitempty"`
	Vault     *VaultConfig `yaml:"vault,omitempty" json:"vault,omitempty"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	providerType, err := ValidateProviderType(c.Provider)
	if err != nil {
		return err
	}
	if providerType == ProviderTypeVault && (c.Vault == nil || c.Vault.Address == "") {
		return fmt.Errorf("%w: vault.address is required", ErrProviderNotConfigured)
	}
	return nil
}

// NewProvider creates the provider named by cfg.Provider.
func NewProvider(cfg *Config, logger observability.Logger, metrics *Metrics) (Provider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: config is required", ErrProviderNotConfigured)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch ProviderType(cfg.Provider) {
	case ProviderTypeVault:
		return NewVaultProvider(cfg.Vault, logger, metrics)
	default:
		return NewEnvProvider(cfg.EnvPrefix, logger, metrics), nil
	}
}

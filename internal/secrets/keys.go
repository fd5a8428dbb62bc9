package secrets

import (
	"context"
	"fmt"

	"github.com/vyrodovalexey/funcauthz/internal/auth/jwt"
)

// Secret data keys read by ResolveSigningKeys.
const (
	KeyField       = "key"
	KeyIDField     = "keyId"
	AlgorithmField = "algorithm"
)

// KeyRef points at a secret holding token verification key material.
// KeyID and Algorithm are used when the secret does not carry them.
type KeyRef struct {
	Path      string `yaml:"path" json:"path"`
	KeyID     string `yaml:"keyId,omitempty" json:"keyId,omitempty"`
	Algorithm string `yaml:"algorithm,omitempty" json:"algorithm,omitempty"`
}

// ResolveSigningKeys reads every referenced secret and returns the static
// keys for the jwt validator.
func ResolveSigningKeys(ctx context.Context, provider Provider, refs []KeyRef) ([]jwt.StaticKey, error) {
	keys := make([]jwt.StaticKey, 0, len(refs))
	for i, ref := range refs {
		secret, err := provider.GetSecret(ctx, ref.Path)
		if err != nil {
			return nil, fmt.Errorf("signingKeys[%d]: %w", i, err)
		}

		material, ok := secret.GetString(KeyField)
		if !ok || material == "" {
			return nil, fmt.Errorf("signingKeys[%d]: secret %q has no %q field", i, ref.Path, KeyField)
		}

		key := jwt.StaticKey{
			KeyID:     ref.KeyID,
			Algorithm: ref.Algorithm,
			Key:       material,
		}
		if v, ok := secret.GetString(KeyIDField); ok && v != "" {
			key.KeyID = v
		}
		if v, ok := secret.GetString(AlgorithmField); ok && v != "" {
			key.Algorithm = v
		}
		if key.Algorithm == "" {
			return nil, fmt.Errorf("signingKeys[%d]: algorithm is required", i)
		}

		keys = append(keys, key)
	}
	return keys, nil
}

// Package secrets reads key material for token validation from HashiCorp
// Vault (KV v2) or from environment variables.
//
// # Usage
//
//	provider, err := secrets.NewProvider(&secrets.Config{
//	    Provider: "vault",
//	    Vault:    &secrets.VaultConfig{Address: "https://vault:8200", Token: token},
//	}, logger, nil)
//	keys, err := secrets.ResolveSigningKeys(ctx, provider, []secrets.KeyRef{
//	    {Path: "funcauthz/jwt", Algorithm: "HS256"},
//	})
package secrets

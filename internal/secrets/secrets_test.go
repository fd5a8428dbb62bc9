package secrets

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEnvProvider(env map[string]string) *EnvProvider {
	p := NewEnvProvider("", nil, NewMetrics("test", prometheus.NewRegistry()))
	p.lookup = func(name string) (string, bool) {
		v, ok := env[name]
		return v, ok
	}
	return p
}

func TestEnvProvider_EnvName(t *testing.T) {
	t.Parallel()

	p := NewEnvProvider("", nil, nil)
	assert.Equal(t, "FUNCAUTHZ_SECRET_JWT_SIGNING_KEY", p.EnvName("jwt/signing-key"))
	assert.Equal(t, "FUNCAUTHZ_SECRET_A_B", p.EnvName("a.b"))

	custom := NewEnvProvider("APP_", nil, nil)
	assert.Equal(t, "APP_TOKEN", custom.EnvName("token"))
}

func TestEnvProvider_GetSecret(t *testing.T) {
	t.Parallel()

	p := testEnvProvider(map[string]string{
		"FUNCAUTHZ_SECRET_PLAIN": "s3cret",
		"FUNCAUTHZ_SECRET_JSON":  `{"key":"abc","keyId":"k1","version":3}`,
	})

	secret, err := p.GetSecret(context.Background(), "plain")
	require.NoError(t, err)
	v, ok := secret.GetString("value")
	assert.True(t, ok)
	assert.Equal(t, "s3cret", v)

	secret, err = p.GetSecret(context.Background(), "json")
	require.NoError(t, err)
	v, _ = secret.GetString("key")
	assert.Equal(t, "abc", v)
	v, _ = secret.GetString("version")
	assert.Equal(t, "3", v)

	_, err = p.GetSecret(context.Background(), "missing")
	assert.True(t, errors.Is(err, ErrSecretNotFound))

	_, err = p.GetSecret(context.Background(), "")
	assert.True(t, errors.Is(err, ErrInvalidPath))

	assert.Equal(t, ProviderTypeEnv, p.Type())
	assert.NoError(t, p.Close())
}

func TestSecret_GetString_Nil(t *testing.T) {
	t.Parallel()

	var s *Secret
	_, ok := s.GetString("x")
	assert.False(t, ok)
}

func newVaultServer(t *testing.T, secrets map[string]map[string]interface{}) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Vault-Token") != "root" {
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"errors":["permission denied"]}`))
			return
		}
		data, ok := secrets[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"errors":[]}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]interface{}{
				"data":     data,
				"metadata": map[string]interface{}{"version": 2},
			},
		})
	}))
}

func TestVaultProvider_GetSecret(t *testing.T) {
	t.Parallel()

	server := newVaultServer(t, map[string]map[string]interface{}{
		"/v1/secret/data/funcauthz/jwt": {"key": "c2VjcmV0", "algorithm": "HS256"},
	})
	defer server.Close()

	p, err := NewVaultProvider(&VaultConfig{Address: server.URL, Token: "root"}, nil,
		NewMetrics("test", prometheus.NewRegistry()))
	require.NoError(t, err)

	secret, err := p.GetSecret(context.Background(), "funcauthz/jwt")
	require.NoError(t, err)
	v, _ := secret.GetString("key")
	assert.Equal(t, "c2VjcmV0", v)
	assert.Equal(t, "2", secret.Version)

	_, err = p.GetSecret(context.Background(), "funcauthz/missing")
	assert.True(t, errors.Is(err, ErrSecretNotFound))

	_, err = p.GetSecret(context.Background(), "/")
	assert.True(t, errors.Is(err, ErrInvalidPath))
}

func TestVaultProvider_PermissionDenied(t *testing.T) {
	t.Parallel()

	server := newVaultServer(t, nil)
	defer server.Close()

	p, err := NewVaultProvider(&VaultConfig{Address: server.URL, Token: "wrong"}, nil, nil)
	require.NoError(t, err)

	_, err = p.GetSecret(context.Background(), "any")
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrSecretNotFound))
}

func TestNewProvider(t *testing.T) {
	t.Parallel()

	_, err := NewProvider(nil, nil, nil)
	assert.True(t, errors.Is(err, ErrProviderNotConfigured))

	_, err = NewProvider(&Config{Provider: "kubernetes"}, nil, nil)
	assert.True(t, errors.Is(err, ErrInvalidProviderType))

	_, err = NewProvider(&Config{Provider: "vault"}, nil, nil)
	assert.True(t, errors.Is(err, ErrProviderNotConfigured))

	p, err := NewProvider(&Config{Provider: "env"}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, ProviderTypeEnv, p.Type())

	p, err = NewProvider(&Config{Provider: "vault", Vault: &VaultConfig{Address: "http://127.0.0.1:8200"}}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, ProviderTypeVault, p.Type())
}

func TestResolveSigningKeys(t *testing.T) {
	t.Parallel()

	p := testEnvProvider(map[string]string{
		"FUNCAUTHZ_SECRET_FULL":    `{"key":"c2VjcmV0","keyId":"from-secret","algorithm":"HS512"}`,
		"FUNCAUTHZ_SECRET_BARE":    "c2VjcmV0",
		"FUNCAUTHZ_SECRET_NOALG":   `{"key":"c2VjcmV0"}`,
		"FUNCAUTHZ_SECRET_NOFIELD": `{"other":"x"}`,
	})

	keys, err := ResolveSigningKeys(context.Background(), p, []KeyRef{
		{Path: "full", KeyID: "ignored", Algorithm: "HS256"},
	})
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.Equal(t, "from-secret", keys[0].KeyID)
	assert.Equal(t, "HS512", keys[0].Algorithm)
	assert.Equal(t, "c2VjcmV0", keys[0].Key)

	_, err = ResolveSigningKeys(context.Background(), p, []KeyRef{{Path: "bare", Algorithm: "HS256"}})
	assert.Error(t, err, "plain values are stored under \"value\", not \"key\"")

	_, err = ResolveSigningKeys(context.Background(), p, []KeyRef{{Path: "noalg"}})
	assert.Error(t, err)

	_, err = ResolveSigningKeys(context.Background(), p, []KeyRef{{Path: "nofield", Algorithm: "HS256"}})
	assert.Error(t, err)

	_, err = ResolveSigningKeys(context.Background(), p, []KeyRef{{Path: "absent", Algorithm: "HS256"}})
	assert.True(t, errors.Is(err, ErrSecretNotFound))
}

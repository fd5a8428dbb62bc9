package jwt

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"os"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
)

// buildStaticKeySet converts configured static keys into a key set.
func buildStaticKeySet(keys []StaticKey) (jwk.Set, error) {
	set := jwk.NewSet()
	for i, sk := range keys {
		key, err := parseStaticKey(sk)
		if err != nil {
			return nil, fmt.Errorf("staticKeys[%d]: %w", i, err)
		}
		if err := set.AddKey(key); err != nil {
			return nil, fmt.Errorf("staticKeys[%d]: %w", i, err)
		}
	}
	return set, nil
}

func parseStaticKey(sk StaticKey) (jwk.Key, error) {
	material := []byte(sk.Key)
	if sk.KeyFile != "" {
		data, err := os.ReadFile(sk.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read key file: %w", err)
		}
		material = data
	}

	var (
		key jwk.Key
		err error
	)
	if isHMAC(sk.Algorithm) {
		secret, decodeErr := base64.StdEncoding.DecodeString(string(material))
		if decodeErr != nil {
			return nil, fmt.Errorf("hmac key must be base64: %w", decodeErr)
		}
		key, err = jwk.FromRaw(secret)
	} else {
		key, err = jwk.ParseKey(material, jwk.WithPEM(true))
		if err == nil {
			key, err = jwk.PublicKeyOf(key)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse key: %w", err)
	}

	if err := key.Set(jwk.AlgorithmKey, jwa.SignatureAlgorithm(sk.Algorithm)); err != nil {
		return nil, err
	}
	if sk.KeyID != "" {
		if err := key.Set(jwk.KeyIDKey, sk.KeyID); err != nil {
			return nil, err
		}
	}
	return key, nil
}

// newRemoteKeySet registers url with an auto-refreshing cache and performs the
// first fetch so configuration errors surface at startup.
func newRemoteKeySet(ctx context.Context, url string, cfg *Config, client *http.Client) (jwk.Set, error) {
	cache := jwk.NewCache(ctx)

	opts := []jwk.RegisterOption{jwk.WithMinRefreshInterval(cfg.GetEffectiveJWKSRefreshInterval())}
	if client != nil {
		opts = append(opts, jwk.WithHTTPClient(client))
	}
	if err := cache.Register(url, opts...); err != nil {
		return nil, fmt.Errorf("failed to register jwks url: %w", err)
	}
	if _, err := cache.Refresh(ctx, url); err != nil {
		return nil, fmt.Errorf("failed to fetch jwks: %w", err)
	}
	return jwk.NewCachedSet(cache, url), nil
}

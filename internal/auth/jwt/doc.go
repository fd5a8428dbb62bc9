// Package jwt validates signed JSON Web Tokens with lestrrat-go/jwx.
//
// Keys come from static configuration (base64 HMAC secrets, PEM public
// keys), from a remote JWKS endpoint refreshed in the background, or both.
// Issuer, audience, lifetime and clock skew are checked on every token; an
// optional RevocationChecker rejects tokens whose jti has been revoked.
//
// Validator implements auth.Validator:
//
//	v, err := jwt.NewValidator(ctx, &jwt.Config{
//	    Issuers:  []string{"https://login.example.com"},
//	    Audience: []string{"api://funcs"},
//	    JWKSUrl:  "https://login.example.com/.well-known/jwks.json",
//	})
package jwt

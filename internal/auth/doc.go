// Package auth turns bearer tokens into caller identities.
//
// TokenService is the identity validator used by the authorization
// dispatcher. It delegates verification to a Validator (see the jwt
// subpackage) and fails closed: a missing token, a validator error or a
// validator panic all produce a nil identity.
//
// # Usage
//
//	validator, err := jwt.NewValidator(ctx, jwtConfig)
//	if err != nil {
//	    return err
//	}
//	tokens := auth.NewTokenService(validator,
//	    auth.WithScheme("Bearer"),
//	    auth.WithTokenServiceLogger(logger),
//	)
//
//	identity := tokens.ValidateToken(ctx, auth.TokenFromRequest(r, tokens.Scheme()))
//	if identity.IsInRole("admin") {
//	    // ...
//	}
package auth

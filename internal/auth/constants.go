package auth

// HeaderAuthorization is the Authorization header name.
const HeaderAuthorization = "Authorization"

// DefaultScheme is the authentication scheme used when none is configured.
const DefaultScheme = "Bearer"

// Failure reasons recorded by TokenService metrics.
const (
	reasonMissing  = "missing"
	reasonInvalid  = "invalid"
	reasonPanic    = "panic"
	reasonCanceled = "canceled"
)

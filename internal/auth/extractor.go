package auth

import (
	"net/http"
	"strings"
)

// ExtractToken strips the "<scheme> " prefix from an Authorization header
// value. The scheme is matched case-insensitively. A value without the prefix
// is returned unchanged so the validator decides whether it is a token.
func ExtractToken(header, scheme string) string {
	if header == "" {
		return ""
	}
	if scheme == "" {
		scheme = DefaultScheme
	}

	prefix := scheme + " "
	if len(header) >= len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return header
}

// TokenFromRequest returns the raw token carried by the first Authorization
// header of r.
func TokenFromRequest(r *http.Request, scheme string) string {
	return ExtractToken(r.Header.Get(HeaderAuthorization), scheme)
}

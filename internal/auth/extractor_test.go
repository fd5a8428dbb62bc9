package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractToken(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		header string
		scheme string
		want   string
	}{
		{name: "empty header", header: "", scheme: "Bearer", want: ""},
		{name: "bearer prefix", header: "Bearer abc.def.ghi", scheme: "Bearer", want: "abc.def.ghi"},
		{name: "lowercase scheme", header: "bearer abc", scheme: "Bearer", want: "abc"},
		{name: "default scheme", header: "Bearer abc", scheme: "", want: "abc"},
		{name: "extra spaces trimmed", header: "Bearer   abc  ", scheme: "Bearer", want: "abc"},
		{name: "no prefix passes through", header: "abc.def.ghi", scheme: "Bearer", want: "abc.def.ghi"},
		{name: "other scheme passes through", header: "Basic dXNlcg==", scheme: "Bearer", want: "Basic dXNlcg=="},
		{name: "custom scheme", header: "Token xyz", scheme: "Token", want: "xyz"},
		{name: "scheme only", header: "Bearer ", scheme: "Bearer", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ExtractToken(tt.header, tt.scheme))
		})
	}
}

func TestTokenFromRequest(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, TokenFromRequest(req, "Bearer"))

	req.Header.Add(HeaderAuthorization, "Bearer first")
	req.Header.Add(HeaderAuthorization, "Bearer second")
	assert.Equal(t, "first", TokenFromRequest(req, "Bearer"))
}

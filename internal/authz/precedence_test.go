package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequiresAuthorization(t *testing.T) {
	t.Parallel()

	method := func(depth int) *Placement { return &Placement{Source: SourceMethod, Depth: depth} }
	typ := func(depth int) *Placement { return &Placement{Source: SourceType, Depth: depth} }

	tests := []struct {
		name      string
		authorize *Placement
		anonymous *Placement
		want      bool
	}{
		{name: "nothing declared", want: false},
		{name: "anonymous only", anonymous: method(0), want: false},
		{name: "method authorize only", authorize: method(0), want: true},
		{name: "type authorize only", authorize: typ(2), want: true},

		{name: "method anonymous overrides type authorize", authorize: typ(0), anonymous: method(0), want: false},
		{name: "shallower method anonymous overrides deeper type authorize", authorize: typ(1), anonymous: method(0), want: false},
		// Deeper method anonymous falls through to the depth comparison.
		{name: "deeper method anonymous keeps type authorize", authorize: typ(0), anonymous: method(1), want: true},

		{name: "type anonymous never overrides method authorize", authorize: method(0), anonymous: typ(0), want: true},
		{name: "type anonymous shallower than method authorize", authorize: method(1), anonymous: typ(0), want: true},

		{name: "method pair same depth", authorize: method(0), anonymous: method(0), want: true},
		{name: "method pair authorize shallower", authorize: method(0), anonymous: method(1), want: true},
		{name: "method pair anonymous shallower", authorize: method(1), anonymous: method(0), want: false},

		{name: "type pair same depth", authorize: typ(0), anonymous: typ(0), want: true},
		{name: "type pair anonymous shallower", authorize: typ(1), anonymous: typ(0), want: true},
		{name: "type pair authorize shallower", authorize: typ(0), anonymous: typ(1), want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, RequiresAuthorization(tt.authorize, tt.anonymous))
		})
	}
}

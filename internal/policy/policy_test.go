package policy

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/funcauthz/internal/auth"
)

func editor() *auth.Identity {
	return &auth.Identity{
		Subject: "alice",
		Scheme:  auth.DefaultScheme,
		Roles:   []string{"editor"},
		Claims: map[string]interface{}{
			"tenant": "acme",
			"scope":  []interface{}{"read", "write"},
		},
	}
}

func TestDefinition_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		def     Definition
		wantErr bool
	}{
		{name: "roles", def: Definition{Name: "p", Roles: []string{"a"}}},
		{name: "claims", def: Definition{Name: "p", Claims: map[string][]string{"tenant": nil}}},
		{name: "authenticated", def: Definition{Name: "p", RequireAuthenticated: true}},
		{name: "missing name", def: Definition{Roles: []string{"a"}}, wantErr: true},
		{name: "empty requirements", def: Definition{Name: "p"}, wantErr: true},
		{name: "cel", def: Definition{Name: "p", Engine: EngineCEL, Expression: "true"}},
		{name: "cel without expression", def: Definition{Name: "p", Engine: EngineCEL}, wantErr: true},
		{name: "opa", def: Definition{Name: "p", Engine: EngineOPA, OPA: &OPAQuery{Path: "a/allow"}}},
		{name: "opa without path", def: Definition{Name: "p", Engine: EngineOPA}, wantErr: true},
		{
			name: "openfga",
			def: Definition{Name: "p", Engine: EngineOpenFGA,
				OpenFGA: &RelationCheck{Relation: "viewer", Object: "doc:1"}},
		},
		{
			name:    "openfga without object",
			def:     Definition{Name: "p", Engine: EngineOpenFGA, OpenFGA: &RelationCheck{Relation: "viewer"}},
			wantErr: true,
		},
		{name: "unknown engine", def: Definition{Name: "p", Engine: "xacml"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.def.Validate()
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrInvalidDefinition))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewTable(t *testing.T) {
	t.Parallel()

	table, err := NewTable([]Definition{
		{Name: "Editors", Roles: []string{"editor"}},
		{Name: "Expr", Engine: EngineCEL, Expression: "true"},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, table.Len())
	assert.Equal(t, []string{"Editors", "Expr"}, table.Names())

	def, ok := table.Lookup("Editors")
	require.True(t, ok)
	assert.Equal(t, EngineRequirements, def.EffectiveEngine())

	_, ok = table.Lookup("editors")
	assert.False(t, ok, "lookup is case sensitive")

	cel := table.Definitions(EngineCEL)
	require.Len(t, cel, 1)
	assert.Equal(t, "Expr", cel[0].Name)

	_, err = NewTable([]Definition{{Name: "a", Roles: []string{"x"}}, {Name: "a", Roles: []string{"y"}}})
	assert.True(t, errors.Is(err, ErrDuplicatePolicy))

	_, err = NewTable([]Definition{{Name: "bad"}})
	assert.True(t, errors.Is(err, ErrInvalidDefinition))

	var nilTable *Table
	_, ok = nilTable.Lookup("x")
	assert.False(t, ok)
	assert.Zero(t, nilTable.Len())
}

func TestRequirementsEngine(t *testing.T) {
	t.Parallel()

	engine := NewRequirementsEngine()

	tests := []struct {
		name     string
		identity *auth.Identity
		def      Definition
		want     bool
	}{
		{name: "nil identity", identity: nil, def: Definition{Roles: []string{"editor"}}, want: false},
		{name: "role match", identity: editor(), def: Definition{Roles: []string{"admin", "editor"}}, want: true},
		{name: "role miss", identity: editor(), def: Definition{Roles: []string{"admin"}}, want: false},
		{name: "claim value", identity: editor(), def: Definition{Claims: map[string][]string{"tenant": {"acme"}}}, want: true},
		{name: "claim wrong value", identity: editor(), def: Definition{Claims: map[string][]string{"tenant": {"other"}}}, want: false},
		{name: "claim list", identity: editor(), def: Definition{Claims: map[string][]string{"scope": {"write"}}}, want: true},
		{name: "claim presence", identity: editor(), def: Definition{Claims: map[string][]string{"tenant": nil}}, want: true},
		{name: "claim absent", identity: editor(), def: Definition{Claims: map[string][]string{"dept": nil}}, want: false},
		{
			name:     "all claims required",
			identity: editor(),
			def:      Definition{Claims: map[string][]string{"tenant": {"acme"}, "dept": {"x"}}},
			want:     false,
		},
		{name: "authenticated", identity: editor(), def: Definition{RequireAuthenticated: true}, want: true},
		{name: "anonymous", identity: auth.AnonymousIdentity(), def: Definition{RequireAuthenticated: true}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			def := tt.def
			def.Name = "p"
			got, err := engine.Evaluate(context.Background(), tt.identity, &def)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCELEngine(t *testing.T) {
	t.Parallel()

	defs := []*Definition{
		{Name: "role", Engine: EngineCEL, Expression: `"editor" in identity.roles`},
		{Name: "tenant", Engine: EngineCEL, Expression: `identity.claims.tenant == "acme"`},
		{Name: "admin", Engine: EngineCEL, Expression: `"admin" in identity.roles`},
		{Name: "time", Engine: EngineCEL, Expression: `now > timestamp("2020-01-01T00:00:00Z")`},
		{Name: "notbool", Engine: EngineCEL, Expression: `identity.subject`},
		{Name: "authn", Engine: EngineCEL, Expression: `identity.authenticated`},
		{Name: "ignored", Roles: []string{"x"}},
	}
	engine, err := NewCELEngine(defs)
	require.NoError(t, err)

	ctx := context.Background()

	for _, name := range []string{"role", "tenant", "time", "authn"} {
		got, err := engine.Evaluate(ctx, editor(), defs[indexOf(defs, name)])
		require.NoError(t, err, name)
		assert.True(t, got, name)
	}

	got, err := engine.Evaluate(ctx, editor(), defs[indexOf(defs, "admin")])
	require.NoError(t, err)
	assert.False(t, got)

	_, err = engine.Evaluate(ctx, editor(), defs[indexOf(defs, "notbool")])
	assert.True(t, errors.Is(err, ErrUnexpectedResult))

	// Missing claim is an evaluation error, not a panic.
	_, err = engine.Evaluate(ctx, &auth.Identity{Subject: "bob"}, defs[indexOf(defs, "tenant")])
	assert.Error(t, err)

	got, err = engine.Evaluate(ctx, nil, defs[indexOf(defs, "authn")])
	require.NoError(t, err)
	assert.False(t, got)

	_, err = engine.Evaluate(ctx, editor(), defs[indexOf(defs, "ignored")])
	assert.True(t, errors.Is(err, ErrEngineNotConfigured))
}

func TestNewCELEngine_CompileError(t *testing.T) {
	t.Parallel()

	_, err := NewCELEngine([]*Definition{{Name: "broken", Engine: EngineCEL, Expression: "identity.("}})
	assert.True(t, errors.Is(err, ErrInvalidDefinition))
}

func indexOf(defs []*Definition, name string) int {
	for i, d := range defs {
		if d.Name == name {
			return i
		}
	}
	return -1
}

type stubEvaluator struct {
	allowed bool
	err     error
	calls   int
}

func (s *stubEvaluator) Evaluate(context.Context, *auth.Identity, *Definition) (bool, error) {
	s.calls++
	return s.allowed, s.err
}

func TestRouter_Evaluate(t *testing.T) {
	t.Parallel()

	metrics := NewMetricsWithRegisterer("test", prometheus.NewRegistry())
	failing := &stubEvaluator{err: errors.New("boom")}
	allowing := &stubEvaluator{allowed: true}

	router := NewRouter(
		WithEngine(EngineOPA, failing),
		WithEngine(EngineCEL, allowing),
		WithRouterMetrics(metrics),
	)

	ctx := context.Background()

	got, err := router.Evaluate(ctx, editor(), &Definition{Name: "r", Roles: []string{"editor"}})
	require.NoError(t, err)
	assert.True(t, got)

	got, err = router.Evaluate(ctx, editor(), &Definition{Name: "c", Engine: EngineCEL})
	require.NoError(t, err)
	assert.True(t, got)
	assert.Equal(t, 1, allowing.calls)

	got, err = router.Evaluate(ctx, editor(), &Definition{Name: "o", Engine: EngineOPA})
	assert.False(t, got)
	var evalErr *EvaluationError
	require.True(t, errors.As(err, &evalErr))
	assert.Equal(t, "o", evalErr.Policy)
	assert.Equal(t, EngineOPA, evalErr.Engine)
	assert.Contains(t, evalErr.Error(), "boom")

	got, err = router.Evaluate(ctx, editor(), &Definition{Name: "f", Engine: EngineOpenFGA})
	assert.False(t, got)
	assert.True(t, errors.Is(err, ErrEngineNotConfigured))
}

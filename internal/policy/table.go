package policy

import (
	"fmt"
	"sort"
)

// Table is an immutable set of named policies.
type Table struct {
	policies map[string]*Definition
}

// NewTable validates defs and builds a table. Definitions are copied.
func NewTable(defs []Definition) (*Table, error) {
	t := &Table{policies: make(map[string]*Definition, len(defs))}
	for i := range defs {
		def := defs[i]
		if err := def.Validate(); err != nil {
			return nil, err
		}
		if _, exists := t.policies[def.Name]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicatePolicy, def.Name)
		}
		t.policies[def.Name] = &def
	}
	return t, nil
}

// Lookup returns the named policy.
func (t *Table) Lookup(name string) (*Definition, bool) {
	if t == nil {
		return nil, false
	}
	def, ok := t.policies[name]
	return def, ok
}

// Names returns the policy names in sorted order.
func (t *Table) Names() []string {
	if t == nil {
		return nil
	}
	names := make([]string, 0, len(t.policies))
	for name := range t.policies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Definitions returns the definitions using engine.
func (t *Table) Definitions(engine string) []*Definition {
	var out []*Definition
	for _, name := range t.Names() {
		def := t.policies[name]
		if def.EffectiveEngine() == engine {
			out = append(out, def)
		}
	}
	return out
}

// Len returns the number of policies.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.policies)
}

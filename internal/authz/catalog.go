package authz

import (
	"strings"
	"sync"
)

// HandlerRef identifies a handler method. Params are the parameter type
// names and take part in signature matching.
type HandlerRef struct {
	Type   string
	Method string
	Params []string
}

// String returns Type.Method(params).
func (r HandlerRef) String() string {
	return r.Type + "." + signature(r.Method, r.Params)
}

func signature(method string, params []string) string {
	return method + "(" + strings.Join(params, ",") + ")"
}

type typeEntry struct {
	name    string
	base    string
	decls   declarations
	methods map[string]*methodEntry
}

type methodEntry struct {
	declaringType string
	signature     string
	decls         declarations
}

// Catalog records handler types, their inheritance and their declarations.
// It is populated at startup; resolution only reads it.
type Catalog struct {
	mu    sync.RWMutex
	types map[string]*typeEntry
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{types: make(map[string]*typeEntry)}
}

// AddType adds a type. base names the base type or is empty. The base does
// not need to exist yet; it is checked on resolution.
func (c *Catalog) AddType(name, base string, opts ...DeclOption) error {
	if name == "" {
		return &CatalogError{Op: "add type", Type: name, Err: ErrUnknownType}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.types[name]; exists {
		return &CatalogError{Op: "add type", Type: name, Err: ErrDuplicateType}
	}
	if base == name {
		return &CatalogError{Op: "add type", Type: name, Err: ErrInheritanceCycle}
	}

	entry := &typeEntry{name: name, base: base, methods: make(map[string]*methodEntry)}
	for _, opt := range opts {
		opt(&entry.decls)
	}
	c.types[name] = entry
	return nil
}

// AddMethod declares method with params on typeName. Redeclaring a method
// that a base type also declares models an override.
func (c *Catalog) AddMethod(typeName, method string, params []string, opts ...DeclOption) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	t, ok := c.types[typeName]
	if !ok {
		return &CatalogError{Op: "add method", Type: typeName, Method: method, Err: ErrUnknownType}
	}

	sig := signature(method, params)
	if _, exists := t.methods[sig]; exists {
		return &CatalogError{Op: "add method", Type: typeName, Method: sig, Err: ErrDuplicateMethod}
	}

	entry := &methodEntry{declaringType: typeName, signature: sig}
	for _, opt := range opts {
		opt(&entry.decls)
	}
	t.methods[sig] = entry
	return nil
}

// findMethod returns the method with sig declared on typeName or its nearest
// ancestor declaring it.
func (c *Catalog) findMethod(typeName, sig string) (*methodEntry, error) {
	visited := make(map[string]bool)
	for name := typeName; name != ""; {
		if visited[name] {
			return nil, &CatalogError{Op: "resolve", Type: typeName, Method: sig, Err: ErrInheritanceCycle}
		}
		visited[name] = true

		t, ok := c.types[name]
		if !ok {
			return nil, &CatalogError{Op: "resolve", Type: name, Method: sig, Err: ErrUnknownType}
		}
		if m, ok := t.methods[sig]; ok {
			return m, nil
		}
		name = t.base
	}
	return nil, nil
}

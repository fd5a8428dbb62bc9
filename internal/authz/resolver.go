package authz

// resolve finds the nearest declaration selected by pick for ref. It checks
// the method, then the method's declaring type, then repeats on the same
// signature found on the base type or its ancestors with depth+1. A nil
// result means no declaration exists along the chain.
func resolve[T any](c *Catalog, ref HandlerRef, pick func(declarations) *T) (*Resolved[T], error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	sig := signature(ref.Method, ref.Params)
	method, err := c.findMethod(ref.Type, sig)
	if err != nil {
		return nil, err
	}
	if method == nil {
		return nil, &CatalogError{Op: "resolve", Type: ref.Type, Method: sig, Err: ErrHandlerNotFound}
	}

	visited := make(map[*methodEntry]bool)
	for depth := 0; ; depth++ {
		if visited[method] {
			return nil, &CatalogError{Op: "resolve", Type: ref.Type, Method: sig, Err: ErrInheritanceCycle}
		}
		visited[method] = true

		if d := pick(method.decls); d != nil {
			return &Resolved[T]{Declaration: d, Placement: Placement{Source: SourceMethod, Depth: depth}}, nil
		}

		declaring := c.types[method.declaringType]
		if d := pick(declaring.decls); d != nil {
			return &Resolved[T]{Declaration: d, Placement: Placement{Source: SourceType, Depth: depth}}, nil
		}

		if declaring.base == "" {
			return nil, nil
		}
		base, err := c.findMethod(declaring.base, sig)
		if err != nil {
			return nil, err
		}
		if base == nil || base.declaringType == method.declaringType {
			return nil, nil
		}
		method = base
	}
}

// ResolveAuthorize returns the nearest Authorize declaration for ref.
func (c *Catalog) ResolveAuthorize(ref HandlerRef) (*Resolved[Authorize], error) {
	return resolve(c, ref, pickAuthorize)
}

// ResolveAllowAnonymous returns the nearest AllowAnonymous declaration for ref.
func (c *Catalog) ResolveAllowAnonymous(ref HandlerRef) (*Resolved[AllowAnonymous], error) {
	return resolve(c, ref, pickAnonymous)
}

// placementOf returns the placement of r or nil.
func placementOf[T any](r *Resolved[T]) *Placement {
	if r == nil {
		return nil
	}
	p := r.Placement
	return &p
}

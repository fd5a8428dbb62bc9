// Package authz decides whether a triggered function invocation may run.
//
// Handlers and their enclosing types carry Authorize and AllowAnonymous
// declarations recorded in a Catalog at startup. For each handler the
// nearest declaration of each kind is resolved along the inheritance chain
// of the handler method, the two placements are compared once, and the
// result is stored as a flat Requirements record.
//
// At invocation time the Dispatcher validates the bearer token, then walks
// the requirements: authentication, roles (any of), policies (any of) and
// finally an optional custom Filter. Every invocation ends in exactly one
// Decision: Proceed, Unauthorized (401), Forbidden (403) or a custom status
// and body supplied by the filter.
//
// # Usage
//
//	catalog := authz.NewCatalog()
//	_ = catalog.AddType("Orders", "", authz.WithAuthorize(authz.Authorize{Roles: "admin,editor"}))
//	_ = catalog.AddMethod("Orders", "List", nil, authz.WithAllowAnonymous())
//	_ = catalog.AddMethod("Orders", "Delete", []string{"string"})
//
//	req, err := catalog.Resolve(authz.HandlerRef{Type: "Orders", Method: "Delete", Params: []string{"string"}})
//	if err != nil {
//		return err
//	}
//
//	dispatcher := authz.NewDispatcher(tokenService,
//		authz.NewRequirementEvaluator(policyTable, policyRouter),
//		authz.WithDispatcherLogger(logger),
//	)
//	handler = dispatcher.Middleware(req)(handler)
package authz

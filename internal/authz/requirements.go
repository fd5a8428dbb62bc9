package authz

import "strings"

// Requirements is the flat authorization record of one handler. It is
// computed once and shared read-only by every invocation.
type Requirements struct {
	Handler   HandlerRef
	Authorize *Resolved[Authorize]
	Anonymous *Resolved[AllowAnonymous]

	// Required is the precedence outcome, fixed at resolution.
	Required bool

	Roles    []string
	Policies []string
	Filter   Filter
}

// Resolve resolves both declarations for ref and compares them once.
func (c *Catalog) Resolve(ref HandlerRef) (*Requirements, error) {
	authorize, err := c.ResolveAuthorize(ref)
	if err != nil {
		return nil, err
	}
	anonymous, err := c.ResolveAllowAnonymous(ref)
	if err != nil {
		return nil, err
	}

	req := &Requirements{
		Handler:   ref,
		Authorize: authorize,
		Anonymous: anonymous,
		Required:  RequiresAuthorization(placementOf(authorize), placementOf(anonymous)),
	}
	if authorize != nil {
		req.Roles = ParseList(authorize.Declaration.Roles)
		req.Policies = ParseList(authorize.Declaration.Policy)
		req.Filter = authorize.Declaration.Filter
	}
	return req, nil
}

// ParseList splits a raw declaration value on commas. Elements are not
// trimmed. An empty value yields an empty list.
func ParseList(raw string) []string {
	if raw == "" {
		return nil
	}
	if !strings.Contains(raw, ",") {
		return []string{raw}
	}
	return strings.Split(raw, ",")
}

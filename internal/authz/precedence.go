package authz

// RequiresAuthorization decides whether a handler needs an authenticated
// caller given its nearest Authorize and AllowAnonymous placements. Rules
// apply in order:
//
//  1. no Authorize: false
//  2. Authorize without AllowAnonymous: true
//  3. Authorize on a type, AllowAnonymous on a method no deeper: false
//  4. Authorize on a method, AllowAnonymous on a type: true
//  5. both on methods: true iff Authorize is no deeper
//  6. both on types: true
//  7. otherwise: true iff Authorize is strictly shallower
func RequiresAuthorization(authorize, anonymous *Placement) bool {
	switch {
	case authorize == nil:
		return false
	case anonymous == nil:
		return true
	case authorize.Source == SourceType && anonymous.Source == SourceMethod &&
		anonymous.Depth <= authorize.Depth:
		return false
	case authorize.Source == SourceMethod && anonymous.Source == SourceType:
		return true
	case authorize.Source == SourceMethod && anonymous.Source == SourceMethod:
		return authorize.Depth <= anonymous.Depth
	case authorize.Source == SourceType && anonymous.Source == SourceType:
		return true
	default:
		return authorize.Depth < anonymous.Depth
	}
}

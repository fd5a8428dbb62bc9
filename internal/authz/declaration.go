package authz

// Source is where a declaration was found.
type Source int

const (
	// SourceMethod is a declaration on the handler method.
	SourceMethod Source = iota
	// SourceType is a declaration on the method's declaring type.
	SourceType
)

// String returns the string representation of the source.
func (s Source) String() string {
	switch s {
	case SourceMethod:
		return "method"
	case SourceType:
		return "type"
	default:
		return "unknown"
	}
}

// Authorize requires an authenticated caller. Roles and Policy are raw
// comma-separated lists; the empty string means absent.
type Authorize struct {
	Roles  string
	Policy string

	// Filter runs after roles and policies pass.
	Filter Filter
}

// AllowAnonymous overrides an Authorize declaration according to the
// precedence rules.
type AllowAnonymous struct{}

// Placement records where a declaration was found. Depth counts the base
// methods walked; 0 is the invoked method or its declaring type.
type Placement struct {
	Source Source
	Depth  int
}

// Resolved is a declaration together with its placement.
type Resolved[T any] struct {
	Declaration *T
	Placement
}

// DeclOption attaches a declaration to a type or method in the catalog.
type DeclOption func(*declarations)

type declarations struct {
	authorize *Authorize
	anonymous *AllowAnonymous
}

// WithAuthorize attaches an Authorize declaration.
func WithAuthorize(a Authorize) DeclOption {
	return func(d *declarations) {
		d.authorize = &a
	}
}

// WithAllowAnonymous attaches an AllowAnonymous declaration.
func WithAllowAnonymous() DeclOption {
	return func(d *declarations) {
		d.anonymous = &AllowAnonymous{}
	}
}

func pickAuthorize(d declarations) *Authorize { return d.authorize }

func pickAnonymous(d declarations) *AllowAnonymous { return d.anonymous }

// Package auth models the capability set of a requester. The graph layer
// only ever asks "does the caller hold permission P"; how tokens map to
// permissions is the authenticator collaborator's concern.
package auth

// Permission is a named capability required by gated fields.
type Permission string

const (
	// ManageProducts gates admin-only product data: margins, costs,
	// allocations, stocks, digital content and private metadata.
	ManageProducts Permission = "product.manage_products"
)

// Requester is a resolved caller identity with its capability set.
type Requester interface {
	Has(Permission) bool
}

// Anonymous is a requester with no permissions.
type Anonymous struct{}

func (Anonymous) Has(Permission) bool { return false }

// PermissionSet is a static capability set, used by the authenticator and in
// tests.
type PermissionSet map[Permission]struct{}

// NewPermissionSet builds a set from the given permissions.
func NewPermissionSet(perms ...Permission) PermissionSet {
	s := make(PermissionSet, len(perms))
	for _, p := range perms {
		s[p] = struct{}{}
	}
	return s
}

func (s PermissionSet) Has(p Permission) bool {
	_, ok := s[p]
	return ok
}

// Authenticator resolves a bearer token to a requester. Implementations are
// external collaborators; the server falls back to Anonymous when the token
// is unknown or absent.
type Authenticator interface {
	Authenticate(token string) (Requester, bool)
}

// StaticTokens is a token→permissions table, suitable for development and
// tests.
type StaticTokens map[string]PermissionSet

func (s StaticTokens) Authenticate(token string) (Requester, bool) {
	set, ok := s[token]
	return set, ok
}

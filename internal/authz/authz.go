// Package authz holds the pure authorization decision functions. They
// operate on already-resolved values and never touch the network or the
// database; callers load the identity and the post first and pass them in.
// Any missing or unresolved input degrades to a deny, never an error.
package authz

import (
	"github.com/soficodes/bloghub/internal/domain/identity"
	"github.com/soficodes/bloghub/internal/domain/post"
)

// CheckKind selects the rule Check dispatches to.
type CheckKind string

const (
	CheckAdmin CheckKind = "admin"
	CheckOwner CheckKind = "owner"
)

// IsAdmin reports whether the identity carries the admin role. A nil
// identity is never an admin.
func IsAdmin(ident *identity.Identity) bool {
	return ident != nil && ident.Role == identity.RoleAdmin
}

// CanEdit allows admins to edit any post and authors to edit their own.
func CanEdit(ident *identity.Identity, p *post.Post) bool {
	if ident == nil || p == nil {
		return false
	}

	if IsAdmin(ident) {
		return true
	}

	return ident.ID != "" && ident.ID == p.AuthorID
}

// CanDelete uses the same rule as CanEdit; there is no finer-grained
// distinction between the two.
func CanDelete(ident *identity.Identity, p *post.Post) bool {
	return CanEdit(ident, p)
}

// Check dispatches to the rule named by kind. The owner check requires a
// resource; without one it fails closed. Unknown kinds also fail closed.
func Check(ident *identity.Identity, kind CheckKind, resource *post.Post) bool {
	if ident == nil {
		return false
	}

	switch kind {
	case CheckAdmin:
		return IsAdmin(ident)
	case CheckOwner:
		if resource == nil {
			return false
		}
		return CanEdit(ident, resource)
	default:
		return false
	}
}

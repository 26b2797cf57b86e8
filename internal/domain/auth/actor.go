// Package auth holds the actor model and the authorization policy that gates
// every operation before it reaches a store.
package auth

import "github.com/go-faster/errors"

// Role is the closed set of actor roles. Adding a role means revisiting every
// policy switch in this package; the compiler has no exhaustiveness check, so
// each switch lists all four roles explicitly and treats anything else as a
// denial.
type Role uint8

const (
	// RoleAnonymous is a request with no resolved identity.
	RoleAnonymous Role = iota
	// RoleCustomer is an authenticated shopper.
	RoleCustomer
	// RoleVendor sells products and fulfils orders containing them. A vendor
	// acts as a customer for their own cart and purchases.
	RoleVendor
	// RoleAdmin has unrestricted access.
	RoleAdmin
)

// String returns the storage/wire label for the role.
func (r Role) String() string {
	switch r {
	case RoleAnonymous:
		return "anonymous"
	case RoleCustomer:
		return "customer"
	case RoleVendor:
		return "vendor"
	case RoleAdmin:
		return "admin"
	default:
		return "unknown"
	}
}

// ParseRole maps a storage label back to a Role. Unknown labels are rejected
// rather than defaulting, so a corrupted row can never grant access.
func ParseRole(s string) (Role, error) {
	switch s {
	case "customer":
		return RoleCustomer, nil
	case "vendor":
		return RoleVendor, nil
	case "admin":
		return RoleAdmin, nil
	case "anonymous":
		return RoleAnonymous, nil
	default:
		return RoleAnonymous, errors.Errorf("unknown role %q", s)
	}
}

// Actor is the resolved identity of a request: who is acting and in what
// capacity. The zero value is anonymous.
type Actor struct {
	UserID string
	Role   Role
}

// Anonymous returns the actor for an unauthenticated request.
func Anonymous() Actor {
	return Actor{Role: RoleAnonymous}
}

// Authenticated reports whether the actor has a resolved identity.
func (a Actor) Authenticated() bool {
	return a.Role != RoleAnonymous && a.UserID != ""
}

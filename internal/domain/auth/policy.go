package auth

import "github.com/go-faster/errors"

// Sentinel errors distinguishing "no identity" from "identity without
// privilege". Handlers map these to 401 and 403 respectively.
var (
	ErrUnauthenticated = errors.New("not authenticated")
	ErrUnauthorized    = errors.New("not authorized")
)

// OrderScope describes which slice of the order set an actor may list.
type OrderScope uint8

const (
	// ScopeOwn limits the listing to orders purchased by the actor.
	ScopeOwn OrderScope = iota
	// ScopeVendor limits the listing to orders containing at least one of the
	// actor's products.
	ScopeVendor
	// ScopeAll is the unrestricted admin listing.
	ScopeAll
)

// deny returns the policy failure appropriate for the actor: anonymous
// requests fail authentication, everyone else fails authorization.
func deny(actor Actor) error {
	if !actor.Authenticated() {
		return ErrUnauthenticated
	}
	return ErrUnauthorized
}

// RequireShopper gates cart mutation and checkout. Every authenticated role
// acts as a customer for its own cart; anonymous requests are rejected.
func RequireShopper(actor Actor) error {
	switch actor.Role {
	case RoleCustomer, RoleVendor, RoleAdmin:
		if !actor.Authenticated() {
			return ErrUnauthenticated
		}
		return nil
	case RoleAnonymous:
		return ErrUnauthenticated
	default:
		return deny(actor)
	}
}

// ListOrdersScope resolves the order-listing visibility for the actor.
func ListOrdersScope(actor Actor) (OrderScope, error) {
	switch actor.Role {
	case RoleCustomer:
		return ScopeOwn, nil
	case RoleVendor:
		return ScopeVendor, nil
	case RoleAdmin:
		return ScopeAll, nil
	case RoleAnonymous:
		return 0, ErrUnauthenticated
	default:
		return 0, deny(actor)
	}
}

// CanReadOrder decides whether the actor may read a single order. purchaserID
// is the order's buyer; vendorIDs are the vendors referenced by its items.
func CanReadOrder(actor Actor, purchaserID string, vendorIDs []string) error {
	switch actor.Role {
	case RoleCustomer:
		if actor.UserID == purchaserID {
			return nil
		}
		return ErrUnauthorized
	case RoleVendor:
		// A vendor also reads orders they purchased themselves.
		if actor.UserID == purchaserID || containsID(vendorIDs, actor.UserID) {
			return nil
		}
		return ErrUnauthorized
	case RoleAdmin:
		return nil
	case RoleAnonymous:
		return ErrUnauthenticated
	default:
		return deny(actor)
	}
}

// CanUpdateOrderStatus decides whether the actor may drive the order's
// fulfilment status. Customers never may, vendors only on orders containing
// at least one of their products.
func CanUpdateOrderStatus(actor Actor, vendorIDs []string) error {
	switch actor.Role {
	case RoleVendor:
		if containsID(vendorIDs, actor.UserID) {
			return nil
		}
		return ErrUnauthorized
	case RoleAdmin:
		return nil
	case RoleCustomer:
		return ErrUnauthorized
	case RoleAnonymous:
		return ErrUnauthenticated
	default:
		return deny(actor)
	}
}

// CanCreateProduct gates catalog writes that create a new product.
func CanCreateProduct(actor Actor) error {
	switch actor.Role {
	case RoleVendor, RoleAdmin:
		return nil
	case RoleCustomer:
		return ErrUnauthorized
	case RoleAnonymous:
		return ErrUnauthenticated
	default:
		return deny(actor)
	}
}

// CanManageProduct gates edits and deletes of an existing product owned by
// ownerVendorID.
func CanManageProduct(actor Actor, ownerVendorID string) error {
	switch actor.Role {
	case RoleVendor:
		if actor.UserID == ownerVendorID {
			return nil
		}
		return ErrUnauthorized
	case RoleAdmin:
		return nil
	case RoleCustomer:
		return ErrUnauthorized
	case RoleAnonymous:
		return ErrUnauthenticated
	default:
		return deny(actor)
	}
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

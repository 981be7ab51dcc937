package orders

import "github.com/ariefcatur/go-shop-orders/internal/auth"

// CanAccessOrder is the single ownership rule for reading and mutating an
// order: the owner or an admin.
func CanAccessOrder(who auth.Identity, o Order) bool {
	if who.ID == "" {
		return false
	}
	return who.IsAdmin() || who.ID == o.User
}

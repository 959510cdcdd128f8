package models

import "time"

// Permission names a mutating or privileged storefront operation.
type Permission string

const (
	PermProductsCreate Permission = "products.create"
	PermProductsDelete Permission = "products.delete"
	PermProductsEdit   Permission = "products.edit"
	PermOrdersView     Permission = "orders.view"
	PermOrdersStatus   Permission = "orders.status"
)

// rolePermissions is the capability table checked at every mutating call.
// Shoppers browse, fill carts and place orders, none of which need a grant.
var rolePermissions = map[Role][]Permission{
	RoleShopper: {},
	RoleMerchant: {
		PermProductsEdit,
		PermOrdersView, PermOrdersStatus,
	},
	RoleAdmin: {
		PermProductsCreate, PermProductsDelete, PermProductsEdit,
		PermOrdersView, PermOrdersStatus,
	},
}

// Can reports whether the role holds the permission.
func (r Role) Can(p Permission) bool {
	for _, granted := range rolePermissions[r] {
		if granted == p {
			return true
		}
	}
	return false
}

// RolesWith lists the roles holding p, in a stable order.
func RolesWith(p Permission) []Role {
	var roles []Role
	for _, r := range []Role{RoleShopper, RoleMerchant, RoleAdmin} {
		if r.Can(p) {
			roles = append(roles, r)
		}
	}
	return roles
}

// AuditLog records a privileged action.
type AuditLog struct {
	ID         string    `json:"id" bson:"id"`
	UserID     string    `json:"user_id" bson:"user_id"`
	UserEmail  string    `json:"user_email" bson:"user_email"`
	Action     string    `json:"action" bson:"action"`
	Resource   string    `json:"resource" bson:"resource"`
	ResourceID string    `json:"resource_id,omitempty" bson:"resource_id,omitempty"`
	OldValue   string    `json:"old_value,omitempty" bson:"old_value,omitempty"`
	NewValue   string    `json:"new_value,omitempty" bson:"new_value,omitempty"`
	IPAddress  string    `json:"ip_address" bson:"ip_address"`
	Success    bool      `json:"success" bson:"success"`
	ErrorMsg   string    `json:"error_msg,omitempty" bson:"error_msg,omitempty"`
	Timestamp  time.Time `json:"timestamp" bson:"timestamp"`
}

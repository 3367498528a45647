package domain

// Role enumerates the account roles recognised by the system.
type Role string

const (
	RoleAdministrator Role = "administrator"
	RoleSalesperson   Role = "salesperson"
	RoleSupervisor    Role = "supervisor"
	RoleGuest         Role = "guest"
)

// DefaultRole is assigned to accounts constructed without an explicit role.
const DefaultRole = RoleSalesperson

// Permission names granted by role defaults.
const (
	PermissionViewProducts   = "view_products"
	PermissionViewCustomers  = "view_customers"
	PermissionCreateOrders   = "create_orders"
	PermissionViewReports    = "view_reports"
	PermissionManageProducts = "manage_products"

	// PermissionManageAccounts guards account administration endpoints. It is
	// not part of any role's default set, so only administrators or accounts
	// with an explicit grant hold it.
	PermissionManageAccounts = "manage_accounts"
)

var rolePermissions = map[Role][]string{
	RoleSalesperson: {
		PermissionViewProducts,
		PermissionViewCustomers,
		PermissionCreateOrders,
	},
	RoleSupervisor: {
		PermissionViewProducts,
		PermissionViewCustomers,
		PermissionCreateOrders,
		PermissionViewReports,
		PermissionManageProducts,
	},
	RoleGuest: {},
}

// ValidRoles returns the closed set of assignable roles in a stable order.
func ValidRoles() []Role {
	return []Role{RoleAdministrator, RoleSalesperson, RoleSupervisor, RoleGuest}
}

// IsValid reports whether the role is a member of the closed enumeration.
func (r Role) IsValid() bool {
	switch r {
	case RoleAdministrator, RoleSalesperson, RoleSupervisor, RoleGuest:
		return true
	}
	return false
}

// DefaultPermissions returns the fixed permission set for the role. The
// administrator wildcard is resolved in ResolvePermission, not here.
func (r Role) DefaultPermissions() []string {
	perms, ok := rolePermissions[r]
	if !ok {
		return nil
	}
	out := make([]string, len(perms))
	copy(out, perms)
	return out
}

// ResolvePermission decides whether an account with the given role and custom
// grants holds the named permission. Administrators hold every permission,
// including names the system has never seen. Unknown roles resolve to false.
func ResolvePermission(role Role, custom map[string]struct{}, permission string) bool {
	if role == RoleAdministrator {
		return true
	}

	if _, ok := custom[permission]; ok {
		return true
	}

	for _, granted := range rolePermissions[role] {
		if granted == permission {
			return true
		}
	}

	return false
}

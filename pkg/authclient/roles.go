package authclient

const (
	RoleSuperadmin = "superadmin"
	RoleAdmin      = "admin"
	RoleFinance    = "finance"
	RoleWarehouse  = "warehouse"
	RoleInspector  = "inspector"
	RoleStaff      = "staff"
	RoleClient     = "client"
)

// StaffRoles is every role except client.
var StaffRoles = []string{RoleSuperadmin, RoleAdmin, RoleFinance, RoleWarehouse, RoleInspector, RoleStaff}

func ValidRole(role string) bool {
	if role == RoleClient {
		return true
	}
	for _, r := range StaffRoles {
		if r == role {
			return true
		}
	}
	return false
}

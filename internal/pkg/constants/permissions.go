package constants

const (
	ViewLedger      = "view_ledger"
	RegisterPayment = "register_payment"
	CancelPayment   = "cancel_payment"
	ReloadLedger    = "reload_ledger"
	CreateUser      = "create_user"
	RemoveUser      = "remove_user"
	AssignRole      = "assign_role"
)

// PermissionRoles maps each permission to the roles allowed to perform it.
var PermissionRoles = map[string][]string{
	ViewLedger:      {Viewer, Manager, Admin, Superadmin},
	RegisterPayment: {Manager, Admin, Superadmin},
	CancelPayment:   {Manager, Admin, Superadmin},
	ReloadLedger:    {Viewer, Manager, Admin, Superadmin},
	CreateUser:      {Admin, Superadmin},
	RemoveUser:      {Admin, Superadmin},
	AssignRole:      {Admin, Superadmin},
}

// AllowedRole returns true if role is in the list of allowed roles for the permission.
func AllowedRole(permission, role string) bool {
	roles, ok := PermissionRoles[permission]
	if !ok {
		return false
	}
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

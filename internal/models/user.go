package models

// UserRole represents the roles recognised by the RBAC layer.
type UserRole string

const (
	RoleStudent        UserRole = "STUDENT"
	RoleDean           UserRole = "DEAN"
	RoleAccounting     UserRole = "ACCOUNTING"
	RoleSAO            UserRole = "SAO"
	RoleLibrary        UserRole = "LIBRARY"
	RoleRecords        UserRole = "RECORDS"
	RoleCampusDirector UserRole = "CAMPUS_DIRECTOR"
	RoleCashier        UserRole = "CASHIER"
	RoleAdmin          UserRole = "ADMIN"
)

// ApproverRoles lists the roles that own a step of the approval chain.
var ApproverRoles = []UserRole{RoleDean, RoleAccounting, RoleSAO, RoleLibrary, RoleRecords}

// Valid reports whether r is a known role.
func (r UserRole) Valid() bool {
	switch r {
	case RoleStudent, RoleDean, RoleAccounting, RoleSAO, RoleLibrary, RoleRecords,
		RoleCampusDirector, RoleCashier, RoleAdmin:
		return true
	}
	return false
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}

package models

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleStudent    UserRole = "student"
	RoleInstructor UserRole = "instructor"
	RoleRegistrar  UserRole = "registrar"
)

// Principal is the verified caller identity handed to the services.
type Principal struct {
	Subject     string     `json:"subject"`
	DisplayName string     `json:"display_name"`
	Roles       []UserRole `json:"roles"`
}

// HasRole reports whether the principal carries any of the given roles.
func (p Principal) HasRole(roles ...UserRole) bool {
	for _, have := range p.Roles {
		for _, want := range roles {
			if have == want {
				return true
			}
		}
	}
	return false
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}

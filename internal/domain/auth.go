package domain

// SubjectType differentiates residents vs staff tokens.
type SubjectType string

const (
	SubjectTypeResident SubjectType = "RESIDENT"
	SubjectTypeStaff    SubjectType = "STAFF"
)

// Role is the authorization role of an actor.
type Role string

const (
	RoleResident Role = "RESIDENT"
	RoleStaff    Role = "STAFF"
	RoleAdmin    Role = "ADMIN"
)

// IsValid reports whether r is a known role.
func (r Role) IsValid() bool {
	return r == RoleResident || r == RoleStaff || r == RoleAdmin
}

// Actor identifies who is performing an operation.
type Actor struct {
	ID   string
	Role Role
}

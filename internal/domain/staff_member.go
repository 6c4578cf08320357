package domain

import "time"

// StaffMember models maintenance staff and building administrators.
type StaffMember struct {
	ID        string
	Name      string
	Email     string
	Role      Role
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Assignable reports whether complaints can be handed to this member.
func (s *StaffMember) Assignable() bool {
	return s != nil && s.Active && s.Role == RoleStaff
}

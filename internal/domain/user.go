package domain

import "time"

// Resident is the end-user who files complaints.
type Resident struct {
	ID        string
	Name      string
	Email     string
	Apartment string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

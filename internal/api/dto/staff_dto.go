package dto

import "time"

// StaffWorkloadResponse is one roster row.
type StaffWorkloadResponse struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	OpenComplaints int       `json:"openComplaints"`
	Since          time.Time `json:"since"`
}

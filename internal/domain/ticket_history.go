package domain

import "time"

// PriorityChange is an immutable audit entry for priority edits.
type PriorityChange struct {
	OldValue  TicketPriority `json:"old_value"`
	NewValue  TicketPriority `json:"new_value"`
	ChangedBy string         `json:"changed_by"`
	Timestamp time.Time      `json:"timestamp"`
}

// StatusChange is an immutable audit entry for every lifecycle transition.
type StatusChange struct {
	From      TicketStatus `json:"from"`
	To        TicketStatus `json:"to"`
	Event     Event        `json:"event"`
	ChangedBy string       `json:"changed_by"`
	Reason    string       `json:"reason,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}

package domain

import "time"

// TicketStatus enumerates lifecycle states for complaints.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "OPEN"
	TicketStatusAssigned   TicketStatus = "ASSIGNED"
	TicketStatusInProgress TicketStatus = "IN_PROGRESS"
	TicketStatusResolved   TicketStatus = "RESOLVED"
	TicketStatusClosed     TicketStatus = "CLOSED"
	TicketStatusCancelled  TicketStatus = "CANCELLED"
	TicketStatusReopened   TicketStatus = "REOPENED"
)

// AllStatuses lists every state a ticket can be in.
var AllStatuses = []TicketStatus{
	TicketStatusOpen,
	TicketStatusAssigned,
	TicketStatusInProgress,
	TicketStatusResolved,
	TicketStatusClosed,
	TicketStatusCancelled,
	TicketStatusReopened,
}

// IsValid reports whether s is one of the known states.
func (s TicketStatus) IsValid() bool {
	for _, known := range AllStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no work remains on a ticket in this state.
func (s TicketStatus) IsTerminal() bool {
	return s == TicketStatusClosed || s == TicketStatusCancelled
}

// RequiresAssignee reports whether a ticket in this state must carry an assignee.
func (s TicketStatus) RequiresAssignee() bool {
	switch s {
	case TicketStatusAssigned, TicketStatusInProgress, TicketStatusReopened:
		return true
	default:
		return false
	}
}

// TicketPriority enumerates urgency.
type TicketPriority string

const (
	TicketPriorityLow       TicketPriority = "LOW"
	TicketPriorityMedium    TicketPriority = "MEDIUM"
	TicketPriorityHigh      TicketPriority = "HIGH"
	TicketPriorityEmergency TicketPriority = "EMERGENCY"
)

// IsValid reports whether p is a known priority.
func (p TicketPriority) IsValid() bool {
	switch p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh, TicketPriorityEmergency:
		return true
	default:
		return false
	}
}

// TicketCategory enumerates the trade a complaint belongs to.
type TicketCategory string

const (
	CategoryElectrical TicketCategory = "ELECTRICAL"
	CategoryPlumbing   TicketCategory = "PLUMBING"
	CategoryCarpentry  TicketCategory = "CARPENTRY"
	CategoryPainting   TicketCategory = "PAINTING"
	CategoryCleaning   TicketCategory = "CLEANING"
	CategorySecurity   TicketCategory = "SECURITY"
	CategoryElevator   TicketCategory = "ELEVATOR"
	CategoryCommonArea TicketCategory = "COMMON_AREA"
	CategoryOther      TicketCategory = "OTHER"
)

// IsValid reports whether c is a known category.
func (c TicketCategory) IsValid() bool {
	switch c {
	case CategoryElectrical, CategoryPlumbing, CategoryCarpentry, CategoryPainting, CategoryCleaning,
		CategorySecurity, CategoryElevator, CategoryCommonArea, CategoryOther:
		return true
	default:
		return false
	}
}

// Ticket is the aggregate for resident complaints.
type Ticket struct {
	ID              string
	ExternalKey     string
	CreatedBy       string
	Category        TicketCategory
	Priority        TicketPriority
	Status          TicketStatus
	Description     string
	Location        string
	Media           []MediaRef
	AssignedStaff   *string
	LastAssignee    *string
	WorkUpdates     []WorkUpdate
	Comments        []Comment
	InternalNotes   []InternalNote
	AdminMedia      []MediaRef
	Rating          *Rating
	PriorityHistory []PriorityChange
	StatusHistory   []StatusChange
	CreatedAt       time.Time
	UpdatedAt       time.Time
	ResolvedAt      *time.Time
	ClosedAt        *time.Time
	CancelledAt     *time.Time
	Version         int64
}

// IsOwnedBy reports whether residentID filed the ticket.
func (t *Ticket) IsOwnedBy(residentID string) bool {
	return t.CreatedBy == residentID
}

// IsAssignedTo reports whether staffID currently holds the ticket.
func (t *Ticket) IsAssignedTo(staffID string) bool {
	return t.AssignedStaff != nil && *t.AssignedStaff == staffID
}

// Clone returns a deep copy so callers can mutate without aliasing store state.
func (t *Ticket) Clone() *Ticket {
	if t == nil {
		return nil
	}
	out := *t
	out.Media = append([]MediaRef(nil), t.Media...)
	out.WorkUpdates = append([]WorkUpdate(nil), t.WorkUpdates...)
	out.Comments = append([]Comment(nil), t.Comments...)
	out.InternalNotes = append([]InternalNote(nil), t.InternalNotes...)
	out.AdminMedia = append([]MediaRef(nil), t.AdminMedia...)
	out.PriorityHistory = append([]PriorityChange(nil), t.PriorityHistory...)
	out.StatusHistory = append([]StatusChange(nil), t.StatusHistory...)
	out.AssignedStaff = cloneString(t.AssignedStaff)
	out.LastAssignee = cloneString(t.LastAssignee)
	out.ResolvedAt = cloneTime(t.ResolvedAt)
	out.ClosedAt = cloneTime(t.ClosedAt)
	out.CancelledAt = cloneTime(t.CancelledAt)
	if t.Rating != nil {
		rating := *t.Rating
		out.Rating = &rating
	}
	return &out
}

func cloneString(v *string) *string {
	if v == nil {
		return nil
	}
	s := *v
	return &s
}

func cloneTime(v *time.Time) *time.Time {
	if v == nil {
		return nil
	}
	t := *v
	return &t
}

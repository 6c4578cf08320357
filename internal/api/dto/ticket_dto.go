package dto

import (
	"time"

	"github.com/spec-kit/complaint-service/internal/domain"
)

// Envelope wraps successful responses.
type Envelope struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

// ErrorResponse is rendered for every failed request.
type ErrorResponse struct {
	Success     bool           `json:"success"`
	Message     string         `json:"message"`
	Code        string         `json:"code"`
	Details     map[string]any `json:"details,omitempty"`
	Diagnostics *Diagnostics   `json:"diagnostics,omitempty"`
}

// Diagnostics exposes internals outside production.
type Diagnostics struct {
	Error string `json:"error,omitempty"`
	Stack string `json:"stack,omitempty"`
}

// MediaRefPayload references an uploaded file.
type MediaRefPayload struct {
	URL      string `json:"url"`
	PublicID string `json:"publicId"`
}

// CreateComplaintRequest payload.
type CreateComplaintRequest struct {
	Category    domain.TicketCategory `json:"category"`
	Priority    domain.TicketPriority `json:"priority"`
	Description string                `json:"description"`
	Location    string                `json:"location"`
	Media       []MediaRefPayload     `json:"media"`
}

// AssignRequest payload. An empty StaffID asks for automatic selection.
type AssignRequest struct {
	StaffID string `json:"staffId"`
}

// TextRequest carries work updates and internal notes.
type TextRequest struct {
	Text string `json:"text"`
}

// CommentRequest payload.
type CommentRequest struct {
	Text       string                   `json:"text"`
	Visibility domain.CommentVisibility `json:"visibility"`
}

// UpdateStatusRequest payload.
type UpdateStatusRequest struct {
	Status domain.TicketStatus `json:"status"`
	Reason string              `json:"reason"`
}

// RateRequest payload.
type RateRequest struct {
	Score   int    `json:"score"`
	Comment string `json:"comment"`
}

// ReasonRequest carries the optional reason for reopen and cancel.
type ReasonRequest struct {
	Reason string `json:"reason"`
}

// AdminMediaRequest payload.
type AdminMediaRequest struct {
	MediaRefs []MediaRefPayload `json:"mediaRefs"`
}

// UpdatePriorityRequest payload.
type UpdatePriorityRequest struct {
	Priority domain.TicketPriority `json:"priority"`
}

// ComplaintListQuery captures list filters.
type ComplaintListQuery struct {
	Statuses   []domain.TicketStatus
	Priorities []domain.TicketPriority
	Categories []domain.TicketCategory
	Page       int
	PageSize   int
}

// ComplaintSummary is one row of a listing.
type ComplaintSummary struct {
	ID            string                `json:"id"`
	ExternalKey   string                `json:"externalKey"`
	CreatedBy     string                `json:"createdBy"`
	Category      domain.TicketCategory `json:"category"`
	Priority      domain.TicketPriority `json:"priority"`
	Status        domain.TicketStatus   `json:"status"`
	Location      string                `json:"location"`
	AssignedStaff *string               `json:"assignedStaff"`
	CreatedAt     time.Time             `json:"createdAt"`
	UpdatedAt     time.Time             `json:"updatedAt"`
}

// ComplaintPage is a page of summaries.
type ComplaintPage struct {
	Items    []ComplaintSummary `json:"items"`
	Page     int                `json:"page"`
	PageSize int                `json:"pageSize"`
}

// ComplaintResponse provides full complaint info.
type ComplaintResponse struct {
	ID              string                   `json:"id"`
	ExternalKey     string                   `json:"externalKey"`
	CreatedBy       string                   `json:"createdBy"`
	Category        domain.TicketCategory    `json:"category"`
	Priority        domain.TicketPriority    `json:"priority"`
	Status          domain.TicketStatus      `json:"status"`
	Description     string                   `json:"description"`
	Location        string                   `json:"location"`
	Media           []MediaRefResponse       `json:"media"`
	AssignedStaff   *string                  `json:"assignedStaff"`
	LastAssignee    *string                  `json:"lastAssignee"`
	WorkUpdates     []EntryResponse          `json:"workUpdates"`
	Comments        []CommentResponse        `json:"comments"`
	InternalNotes   []EntryResponse          `json:"internalNotes,omitempty"`
	AdminMedia      []MediaRefResponse       `json:"adminMedia"`
	Rating          *RatingResponse          `json:"rating"`
	PriorityHistory []PriorityChangeResponse `json:"priorityHistory"`
	StatusHistory   []StatusChangeResponse   `json:"statusHistory"`
	CreatedAt       time.Time                `json:"createdAt"`
	UpdatedAt       time.Time                `json:"updatedAt"`
	ResolvedAt      *time.Time               `json:"resolvedAt"`
	ClosedAt        *time.Time               `json:"closedAt"`
	CancelledAt     *time.Time               `json:"cancelledAt"`
	Version         int64                    `json:"version"`
}

// MediaRefResponse represents an attachment reference.
type MediaRefResponse struct {
	URL      string `json:"url"`
	PublicID string `json:"publicId,omitempty"`
	AddedBy  string `json:"addedBy,omitempty"`
}

// EntryResponse represents a work update or internal note.
type EntryResponse struct {
	Author    string    `json:"author"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// CommentResponse represents thread comment.
type CommentResponse struct {
	Author     string                   `json:"author"`
	AuthorRole domain.Role              `json:"authorRole"`
	Text       string                   `json:"text"`
	Visibility domain.CommentVisibility `json:"visibility"`
	Timestamp  time.Time                `json:"timestamp"`
}

// RatingResponse represents the resident's score.
type RatingResponse struct {
	Score   int       `json:"score"`
	Comment string    `json:"comment,omitempty"`
	RatedAt time.Time `json:"ratedAt"`
}

// PriorityChangeResponse represents priority audit entry.
type PriorityChangeResponse struct {
	OldValue  domain.TicketPriority `json:"oldValue"`
	NewValue  domain.TicketPriority `json:"newValue"`
	ChangedBy string                `json:"changedBy"`
	Timestamp time.Time             `json:"timestamp"`
}

// StatusChangeResponse represents status audit entry.
type StatusChangeResponse struct {
	From      domain.TicketStatus `json:"from"`
	To        domain.TicketStatus `json:"to"`
	Event     domain.Event        `json:"event"`
	ChangedBy string              `json:"changedBy"`
	Reason    string              `json:"reason,omitempty"`
	Timestamp time.Time           `json:"timestamp"`
}

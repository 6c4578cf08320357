package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// Event names a lifecycle operation applied to a ticket.
type Event string

const (
	EventCreate          Event = "create"
	EventAssign          Event = "assign"
	EventStartWork       Event = "start_work"
	EventAddWorkUpdate   Event = "add_work_update"
	EventResolve         Event = "resolve"
	EventClose           Event = "close"
	EventCancel          Event = "cancel"
	EventReopen          Event = "reopen"
	EventRate            Event = "rate"
	EventAddComment      Event = "add_comment"
	EventAddAdminMedia   Event = "add_admin_media"
	EventAddInternalNote Event = "add_internal_note"
	EventUpdatePriority  Event = "update_priority"
)

const (
	maxTextLength        = 2000
	maxLocationLength    = 200
	maxRatingCommentSize = 1000
)

// ErrRatingAlreadySet is returned when a second rating is attempted.
var ErrRatingAlreadySet = errors.New("ticket already rated")

// InvalidTransitionError reports an event that the current status does not accept.
type InvalidTransitionError struct {
	From  TicketStatus
	Event Event
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot %s ticket in status %s", e.Event, e.From)
}

// ValidationError reports malformed input to a ticket mutation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

type transition struct {
	sources []TicketStatus
	// target is empty for events that never move the status.
	target TicketStatus
}

var transitions = map[Event]transition{
	EventAssign: {
		sources: []TicketStatus{TicketStatusOpen, TicketStatusReopened},
		target:  TicketStatusAssigned,
	},
	EventStartWork: {
		sources: []TicketStatus{TicketStatusAssigned},
		target:  TicketStatusInProgress,
	},
	EventAddWorkUpdate: {
		sources: []TicketStatus{TicketStatusAssigned, TicketStatusInProgress},
		target:  TicketStatusInProgress,
	},
	EventResolve: {
		sources: []TicketStatus{TicketStatusInProgress},
		target:  TicketStatusResolved,
	},
	EventClose: {
		sources: []TicketStatus{TicketStatusResolved},
		target:  TicketStatusClosed,
	},
	EventCancel: {
		sources: []TicketStatus{TicketStatusOpen, TicketStatusAssigned, TicketStatusInProgress, TicketStatusReopened},
		target:  TicketStatusCancelled,
	},
	EventReopen: {
		sources: []TicketStatus{TicketStatusClosed, TicketStatusResolved},
		target:  TicketStatusReopened,
	},
	EventRate: {
		sources: []TicketStatus{TicketStatusResolved, TicketStatusClosed},
	},
	EventUpdatePriority: {
		sources: []TicketStatus{TicketStatusOpen, TicketStatusAssigned, TicketStatusInProgress, TicketStatusResolved, TicketStatusReopened},
	},
	EventAddComment: {
		sources: []TicketStatus{TicketStatusOpen, TicketStatusAssigned, TicketStatusInProgress, TicketStatusResolved, TicketStatusClosed, TicketStatusReopened},
	},
	EventAddInternalNote: {
		sources: []TicketStatus{TicketStatusOpen, TicketStatusAssigned, TicketStatusInProgress, TicketStatusResolved, TicketStatusClosed, TicketStatusReopened},
	},
	EventAddAdminMedia: {
		sources: []TicketStatus{TicketStatusOpen, TicketStatusAssigned, TicketStatusInProgress, TicketStatusResolved, TicketStatusClosed, TicketStatusReopened},
	},
}

// NextStatus returns the status a ticket in from ends up in after event.
func NextStatus(from TicketStatus, event Event) (TicketStatus, error) {
	rule, ok := transitions[event]
	if !ok {
		return from, &InvalidTransitionError{From: from, Event: event}
	}
	for _, source := range rule.sources {
		if source == from {
			if rule.target == "" {
				return from, nil
			}
			return rule.target, nil
		}
	}
	return from, &InvalidTransitionError{From: from, Event: event}
}

// Accepts reports whether a ticket in status s accepts event.
func (s TicketStatus) Accepts(event Event) bool {
	_, err := NextStatus(s, event)
	return err == nil
}

// TicketParams describes a new complaint.
type TicketParams struct {
	ExternalKey string
	CreatedBy   string
	Category    TicketCategory
	Priority    TicketPriority
	Description string
	Location    string
	Media       []MediaRef
}

// NewTicket validates params and builds an OPEN ticket.
func NewTicket(id string, params TicketParams, at time.Time) (*Ticket, error) {
	if strings.TrimSpace(params.CreatedBy) == "" {
		return nil, &ValidationError{Field: "created_by", Message: "is required"}
	}
	params.Category = ParseCategory(string(params.Category))
	params.Priority = ParsePriority(string(params.Priority))
	if !params.Category.IsValid() {
		return nil, &ValidationError{Field: "category", Message: "is not a known category"}
	}
	if params.Priority == "" {
		params.Priority = TicketPriorityMedium
	}
	if !params.Priority.IsValid() {
		return nil, &ValidationError{Field: "priority", Message: "is not a known priority"}
	}
	description, err := requireText("description", params.Description, maxTextLength)
	if err != nil {
		return nil, err
	}
	location, err := requireText("location", params.Location, maxLocationLength)
	if err != nil {
		return nil, err
	}
	media, err := normalizeMedia(params.Media, params.CreatedBy)
	if err != nil {
		return nil, err
	}

	return &Ticket{
		ID:          id,
		ExternalKey: params.ExternalKey,
		CreatedBy:   params.CreatedBy,
		Category:    params.Category,
		Priority:    params.Priority,
		Status:      TicketStatusOpen,
		Description: description,
		Location:    location,
		Media:       media,
		CreatedAt:   at,
		UpdatedAt:   at,
	}, nil
}

// Assign hands the ticket to staffID.
func (t *Ticket) Assign(staffID, by string, at time.Time) error {
	next, err := NextStatus(t.Status, EventAssign)
	if err != nil {
		return err
	}
	if strings.TrimSpace(staffID) == "" {
		return &ValidationError{Field: "staff_id", Message: "is required"}
	}
	t.AssignedStaff = &staffID
	assignee := staffID
	t.LastAssignee = &assignee
	t.moveTo(next, EventAssign, by, "", at)
	return nil
}

// StartWork moves an assigned ticket into progress.
func (t *Ticket) StartWork(by string, at time.Time) error {
	next, err := NextStatus(t.Status, EventStartWork)
	if err != nil {
		return err
	}
	t.moveTo(next, EventStartWork, by, "", at)
	return nil
}

// AddWorkUpdate records progress and implicitly starts work.
func (t *Ticket) AddWorkUpdate(author, text string, at time.Time) error {
	next, err := NextStatus(t.Status, EventAddWorkUpdate)
	if err != nil {
		return err
	}
	body, err := requireText("text", text, maxTextLength)
	if err != nil {
		return err
	}
	t.WorkUpdates = append(t.WorkUpdates, WorkUpdate{Author: author, Text: body, Timestamp: at})
	if next != t.Status {
		t.moveTo(next, EventAddWorkUpdate, author, "", at)
		return nil
	}
	t.UpdatedAt = at
	return nil
}

// Resolve marks the work as done. The assignee is kept in LastAssignee.
func (t *Ticket) Resolve(by string, at time.Time) error {
	next, err := NextStatus(t.Status, EventResolve)
	if err != nil {
		return err
	}
	resolvedAt := at
	t.ResolvedAt = &resolvedAt
	t.AssignedStaff = nil
	t.moveTo(next, EventResolve, by, "", at)
	return nil
}

// Close finalizes a resolved ticket.
func (t *Ticket) Close(by string, at time.Time) error {
	next, err := NextStatus(t.Status, EventClose)
	if err != nil {
		return err
	}
	closedAt := at
	t.ClosedAt = &closedAt
	t.moveTo(next, EventClose, by, "", at)
	return nil
}

// Cancel abandons a ticket that has not been resolved.
func (t *Ticket) Cancel(by, reason string, at time.Time) error {
	next, err := NextStatus(t.Status, EventCancel)
	if err != nil {
		return err
	}
	reason, err = optionalText("reason", reason, maxTextLength)
	if err != nil {
		return err
	}
	cancelledAt := at
	t.CancelledAt = &cancelledAt
	t.AssignedStaff = nil
	t.moveTo(next, EventCancel, by, reason, at)
	return nil
}

// Reopen sends a resolved or closed ticket back to its last assignee.
func (t *Ticket) Reopen(by, reason string, at time.Time) error {
	next, err := NextStatus(t.Status, EventReopen)
	if err != nil {
		return err
	}
	if t.LastAssignee == nil {
		return &InvalidTransitionError{From: t.Status, Event: EventReopen}
	}
	reason, err = optionalText("reason", reason, maxTextLength)
	if err != nil {
		return err
	}
	t.ResolvedAt = nil
	t.ClosedAt = nil
	t.AssignedStaff = cloneString(t.LastAssignee)
	t.moveTo(next, EventReopen, by, reason, at)
	return nil
}

// Rate stores the resident's score. A ticket is rated at most once.
func (t *Ticket) Rate(score int, comment string, at time.Time) error {
	if _, err := NextStatus(t.Status, EventRate); err != nil {
		return err
	}
	if t.Rating != nil {
		return ErrRatingAlreadySet
	}
	if score < 1 || score > 5 {
		return &ValidationError{Field: "score", Message: "must be between 1 and 5"}
	}
	comment, err := optionalText("comment", comment, maxRatingCommentSize)
	if err != nil {
		return err
	}
	t.Rating = &Rating{Score: score, Comment: comment, RatedAt: at}
	t.UpdatedAt = at
	return nil
}

// AddComment appends to the discussion thread.
func (t *Ticket) AddComment(author string, role Role, text string, visibility CommentVisibility, at time.Time) error {
	if _, err := NextStatus(t.Status, EventAddComment); err != nil {
		return err
	}
	visibility = ParseVisibility(string(visibility))
	if visibility == "" {
		visibility = VisibilityPublic
	}
	if !visibility.IsValid() {
		return &ValidationError{Field: "visibility", Message: "must be PUBLIC or STAFF"}
	}
	if role == RoleResident && visibility != VisibilityPublic {
		return &ValidationError{Field: "visibility", Message: "residents can only post public comments"}
	}
	body, err := requireText("text", text, maxTextLength)
	if err != nil {
		return err
	}
	t.Comments = append(t.Comments, Comment{
		Author:     author,
		AuthorRole: role,
		Text:       body,
		Timestamp:  at,
		Visibility: visibility,
	})
	t.UpdatedAt = at
	return nil
}

// AddInternalNote appends a staff-only note.
func (t *Ticket) AddInternalNote(author, text string, at time.Time) error {
	if _, err := NextStatus(t.Status, EventAddInternalNote); err != nil {
		return err
	}
	body, err := requireText("text", text, maxTextLength)
	if err != nil {
		return err
	}
	t.InternalNotes = append(t.InternalNotes, InternalNote{Author: author, Text: body, Timestamp: at})
	t.UpdatedAt = at
	return nil
}

// AddAdminMedia attaches references not already present. It returns how many were added.
func (t *Ticket) AddAdminMedia(refs []MediaRef, by string, at time.Time) (int, error) {
	if _, err := NextStatus(t.Status, EventAddAdminMedia); err != nil {
		return 0, err
	}
	if len(refs) == 0 {
		return 0, &ValidationError{Field: "media_refs", Message: "at least one reference is required"}
	}
	normalized, err := normalizeMedia(refs, by)
	if err != nil {
		return 0, err
	}
	seen := make(map[string]struct{}, len(t.AdminMedia))
	for _, ref := range t.AdminMedia {
		seen[ref.URL] = struct{}{}
	}
	fresh := make([]MediaRef, 0, len(normalized))
	for _, ref := range normalized {
		if _, dup := seen[ref.URL]; dup {
			continue
		}
		seen[ref.URL] = struct{}{}
		fresh = append(fresh, ref)
	}
	if len(fresh) == 0 {
		return 0, &ValidationError{Field: "media_refs", Message: "all references are already attached"}
	}
	t.AdminMedia = append(t.AdminMedia, fresh...)
	t.UpdatedAt = at
	return len(fresh), nil
}

// UpdatePriority changes urgency and records the change.
func (t *Ticket) UpdatePriority(priority TicketPriority, by string, at time.Time) error {
	if _, err := NextStatus(t.Status, EventUpdatePriority); err != nil {
		return err
	}
	priority = ParsePriority(string(priority))
	if !priority.IsValid() {
		return &ValidationError{Field: "priority", Message: "is not a known priority"}
	}
	if priority == t.Priority {
		return &ValidationError{Field: "priority", Message: "is unchanged"}
	}
	t.PriorityHistory = append(t.PriorityHistory, PriorityChange{
		OldValue:  t.Priority,
		NewValue:  priority,
		ChangedBy: by,
		Timestamp: at,
	})
	t.Priority = priority
	t.UpdatedAt = at
	return nil
}

func (t *Ticket) moveTo(next TicketStatus, event Event, by, reason string, at time.Time) {
	t.StatusHistory = append(t.StatusHistory, StatusChange{
		From:      t.Status,
		To:        next,
		Event:     event,
		ChangedBy: by,
		Reason:    reason,
		Timestamp: at,
	})
	t.Status = next
	t.UpdatedAt = at
}

func requireText(field, value string, max int) (string, error) {
	value, err := optionalText(field, value, max)
	if err != nil {
		return "", err
	}
	if value == "" {
		return "", &ValidationError{Field: field, Message: "is required"}
	}
	return value, nil
}

// optionalText trims value and bounds it in characters, not bytes.
func optionalText(field, value string, max int) (string, error) {
	if !utf8.ValidString(value) {
		return "", &ValidationError{Field: field, Message: "is not valid UTF-8"}
	}
	value = strings.TrimSpace(value)
	if utf8.RuneCountInString(value) > max {
		return "", &ValidationError{Field: field, Message: fmt.Sprintf("exceeds %d characters", max)}
	}
	return value, nil
}

func normalizeMedia(refs []MediaRef, addedBy string) ([]MediaRef, error) {
	if len(refs) == 0 {
		return nil, nil
	}
	out := make([]MediaRef, 0, len(refs))
	for _, ref := range refs {
		ref.URL = strings.TrimSpace(ref.URL)
		if ref.URL == "" {
			return nil, &ValidationError{Field: "media", Message: "url is required"}
		}
		ref.PublicID = strings.TrimSpace(ref.PublicID)
		if ref.AddedBy == "" {
			ref.AddedBy = addedBy
		}
		out = append(out, ref)
	}
	return out, nil
}

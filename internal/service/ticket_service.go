package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/complaint-service/internal/domain"
	"github.com/spec-kit/complaint-service/internal/events"
	"github.com/spec-kit/complaint-service/internal/observability"
	"github.com/spec-kit/complaint-service/internal/policy"
	"github.com/spec-kit/complaint-service/internal/repository"
	apperrors "github.com/spec-kit/complaint-service/pkg/util/errorutil"
)

const (
	defaultMaxAttempts = 3
	ticketKeyPrefix    = "CMP-"
)

// TicketService coordinates the complaint lifecycle.
type TicketService struct {
	tickets     repository.TicketRepository
	assignment  *AssignmentService
	dispatcher  events.Dispatcher
	metrics     *observability.Metrics
	logger      *zap.Logger
	maxAttempts int
	now         func() time.Time
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo repository.TicketRepository
	Assignment *AssignmentService
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
	// MaxAttempts bounds load/check/write cycles per operation under contention.
	MaxAttempts int
	Clock       func() time.Time
}

// TicketCreateInput describes complaint creation payload.
type TicketCreateInput struct {
	Category    domain.TicketCategory
	Priority    domain.TicketPriority
	Description string
	Location    string
	Media       []domain.MediaRef
}

// TicketListFilter describes listing filters. Scope comes from the caller's role.
type TicketListFilter struct {
	Statuses   []domain.TicketStatus
	Priorities []domain.TicketPriority
	Categories []domain.TicketCategory
	Limit      int
	Offset     int
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	attempts := deps.MaxAttempts
	if attempts <= 0 {
		attempts = defaultMaxAttempts
	}
	clock := deps.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	return &TicketService{
		tickets:     deps.TicketRepo,
		assignment:  deps.Assignment,
		dispatcher:  deps.Dispatcher,
		metrics:     deps.Metrics,
		logger:      logger.With(zap.String("component", "ticket_service")),
		maxAttempts: attempts,
		now:         clock,
	}
}

// CreateTicket files a complaint on behalf of a resident.
func (s *TicketService) CreateTicket(ctx context.Context, actor domain.Actor, input TicketCreateInput) (*domain.Ticket, error) {
	if err := authorize(actor, policy.ActionCreate, domain.EventCreate, nil); err != nil {
		return nil, err
	}

	params := domain.TicketParams{
		CreatedBy:   actor.ID,
		Category:    input.Category,
		Priority:    input.Priority,
		Description: input.Description,
		Location:    input.Location,
		Media:       input.Media,
	}
	for attempt := 1; ; attempt++ {
		params.ExternalKey = generateTicketKey()
		ticket, err := domain.NewTicket(uuid.NewString(), params, s.now())
		if err != nil {
			return nil, mapDomainError(err)
		}
		err = s.tickets.Create(ctx, ticket)
		if err == nil {
			s.metrics.RecordTransition(string(domain.EventCreate))
			s.publish(ctx, actor, ticket, "", domain.EventCreate, "")
			return ticket, nil
		}
		if !errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.MapError(err)
		}
		if attempt >= s.maxAttempts {
			return nil, apperrors.NewConflict("could not allocate a complaint key", nil)
		}
	}
}

// GetTicket returns a complaint by id or external key, redacted for the caller.
func (s *TicketService) GetTicket(ctx context.Context, actor domain.Actor, ref string) (*domain.Ticket, error) {
	ticket, err := s.load(ctx, ref)
	if err != nil {
		return nil, err
	}
	if err := authorize(actor, policy.ActionView, "", ticket); err != nil {
		return nil, err
	}
	return viewFor(actor, ticket), nil
}

// ListTickets returns the complaints visible to the caller, newest first.
func (s *TicketService) ListTickets(ctx context.Context, actor domain.Actor, filter TicketListFilter) ([]domain.Ticket, error) {
	if err := authorize(actor, policy.ActionList, "", nil); err != nil {
		return nil, err
	}
	filter = normalizeFilter(filter)
	if err := validateFilter(filter); err != nil {
		return nil, err
	}

	repoFilter := repository.TicketFilter{
		Statuses:   filter.Statuses,
		Priorities: filter.Priorities,
		Categories: filter.Categories,
		Limit:      filter.Limit,
		Offset:     filter.Offset,
	}
	switch actor.Role {
	case domain.RoleResident:
		repoFilter.CreatedBy = &actor.ID
	case domain.RoleStaff:
		repoFilter.AssignedStaff = &actor.ID
	}

	tickets, err := s.tickets.List(ctx, repoFilter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	for i := range tickets {
		tickets[i] = *viewFor(actor, &tickets[i])
	}
	return tickets, nil
}

// Assign hands a complaint to staffID, or to the least loaded staff member when staffID is empty.
func (s *TicketService) Assign(ctx context.Context, actor domain.Actor, ref, staffID string) (*domain.Ticket, error) {
	var assignee string
	return s.mutate(ctx, actor, ref, mutation{
		action: policy.ActionAssign,
		event:  domain.EventAssign,
		apply: func(t *domain.Ticket, at time.Time) error {
			if !t.Status.Accepts(domain.EventAssign) {
				return &domain.InvalidTransitionError{From: t.Status, Event: domain.EventAssign}
			}
			if assignee == "" {
				member, err := s.assignment.ResolveAssignee(ctx, staffID)
				if err != nil {
					return err
				}
				assignee = member.ID
			}
			return t.Assign(assignee, actor.ID, at)
		},
	})
}

// AddWorkUpdate records progress from the assigned staff member.
func (s *TicketService) AddWorkUpdate(ctx context.Context, actor domain.Actor, ref, text string) (*domain.Ticket, error) {
	return s.mutate(ctx, actor, ref, mutation{
		action: policy.ActionAddWorkUpdate,
		event:  domain.EventAddWorkUpdate,
		apply: func(t *domain.Ticket, at time.Time) error {
			return t.AddWorkUpdate(actor.ID, text, at)
		},
	})
}

// UpdateStatus drives a complaint to status on behalf of an admin.
func (s *TicketService) UpdateStatus(ctx context.Context, actor domain.Actor, ref string, status domain.TicketStatus, reason string) (*domain.Ticket, error) {
	event, err := eventForStatus(status)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, actor, ref, mutation{
		action: policy.ActionUpdateStatus,
		event:  event,
		apply: func(t *domain.Ticket, at time.Time) error {
			switch event {
			case domain.EventStartWork:
				return t.StartWork(actor.ID, at)
			case domain.EventResolve:
				return t.Resolve(actor.ID, at)
			case domain.EventClose:
				return t.Close(actor.ID, at)
			default:
				return t.Cancel(actor.ID, reason, at)
			}
		},
	})
}

// Rate stores the owner's satisfaction score.
func (s *TicketService) Rate(ctx context.Context, actor domain.Actor, ref string, score int, comment string) (*domain.Ticket, error) {
	return s.mutate(ctx, actor, ref, mutation{
		action: policy.ActionRate,
		event:  domain.EventRate,
		apply: func(t *domain.Ticket, at time.Time) error {
			return t.Rate(score, comment, at)
		},
	})
}

// Reopen sends a resolved or closed complaint back to work.
func (s *TicketService) Reopen(ctx context.Context, actor domain.Actor, ref, reason string) (*domain.Ticket, error) {
	return s.mutate(ctx, actor, ref, mutation{
		action: policy.ActionReopen,
		event:  domain.EventReopen,
		apply: func(t *domain.Ticket, at time.Time) error {
			return t.Reopen(actor.ID, reason, at)
		},
	})
}

// Close finalizes a resolved complaint.
func (s *TicketService) Close(ctx context.Context, actor domain.Actor, ref string) (*domain.Ticket, error) {
	return s.mutate(ctx, actor, ref, mutation{
		action: policy.ActionClose,
		event:  domain.EventClose,
		apply: func(t *domain.Ticket, at time.Time) error {
			return t.Close(actor.ID, at)
		},
	})
}

// Cancel abandons a complaint.
func (s *TicketService) Cancel(ctx context.Context, actor domain.Actor, ref, reason string) (*domain.Ticket, error) {
	return s.mutate(ctx, actor, ref, mutation{
		action: policy.ActionCancel,
		event:  domain.EventCancel,
		apply: func(t *domain.Ticket, at time.Time) error {
			return t.Cancel(actor.ID, reason, at)
		},
	})
}

// AddComment posts to the complaint thread. Residents may only post public comments.
func (s *TicketService) AddComment(ctx context.Context, actor domain.Actor, ref, text string, visibility domain.CommentVisibility) (*domain.Ticket, error) {
	visibility = domain.ParseVisibility(string(visibility))
	if visibility == "" {
		visibility = domain.VisibilityPublic
	}
	return s.mutate(ctx, actor, ref, mutation{
		action:     policy.ActionAddComment,
		event:      domain.EventAddComment,
		visibility: visibility,
		apply: func(t *domain.Ticket, at time.Time) error {
			return t.AddComment(actor.ID, actor.Role, text, visibility, at)
		},
	})
}

// AddAdminMedia attaches admin-supplied references.
func (s *TicketService) AddAdminMedia(ctx context.Context, actor domain.Actor, ref string, media []domain.MediaRef) (*domain.Ticket, error) {
	return s.mutate(ctx, actor, ref, mutation{
		action: policy.ActionAddAdminMedia,
		event:  domain.EventAddAdminMedia,
		apply: func(t *domain.Ticket, at time.Time) error {
			_, err := t.AddAdminMedia(media, actor.ID, at)
			return err
		},
	})
}

// AddInternalNote appends a note residents never see.
func (s *TicketService) AddInternalNote(ctx context.Context, actor domain.Actor, ref, text string) (*domain.Ticket, error) {
	return s.mutate(ctx, actor, ref, mutation{
		action: policy.ActionAddInternalNote,
		event:  domain.EventAddInternalNote,
		apply: func(t *domain.Ticket, at time.Time) error {
			return t.AddInternalNote(actor.ID, text, at)
		},
	})
}

// UpdatePriority changes urgency.
func (s *TicketService) UpdatePriority(ctx context.Context, actor domain.Actor, ref string, priority domain.TicketPriority) (*domain.Ticket, error) {
	return s.mutate(ctx, actor, ref, mutation{
		action: policy.ActionUpdatePriority,
		event:  domain.EventUpdatePriority,
		apply: func(t *domain.Ticket, at time.Time) error {
			return t.UpdatePriority(priority, actor.ID, at)
		},
	})
}

// AuthorizeTicketRoom allows a realtime subscription when the actor may view the complaint.
func (s *TicketService) AuthorizeTicketRoom(ctx context.Context, actor domain.Actor, ticketID string) error {
	ticket, err := s.load(ctx, ticketID)
	if err != nil {
		return err
	}
	return authorize(actor, policy.ActionView, "", ticket)
}

type mutation struct {
	action     policy.Action
	event      domain.Event
	visibility domain.CommentVisibility
	apply      func(ticket *domain.Ticket, at time.Time) error
}

// mutate runs load, authorize, apply and a versioned write, starting over from
// a fresh read whenever another writer got there first.
func (s *TicketService) mutate(ctx context.Context, actor domain.Actor, ref string, m mutation) (*domain.Ticket, error) {
	for attempt := 1; ; attempt++ {
		ticket, err := s.load(ctx, ref)
		if err != nil {
			return nil, err
		}
		if err := authorize(actor, m.action, m.event, ticket); err != nil {
			return nil, err
		}

		from := ticket.Status
		if err := m.apply(ticket, s.now()); err != nil {
			return nil, mapDomainError(err)
		}

		err = s.tickets.Update(ctx, ticket)
		switch {
		case err == nil:
			s.metrics.RecordTransition(string(m.event))
			s.publish(ctx, actor, ticket, from, m.event, m.visibility)
			return viewFor(actor, ticket), nil
		case errors.Is(err, repository.ErrVersionConflict):
			s.metrics.RecordConflict()
			if attempt >= s.maxAttempts {
				s.logger.Warn("giving up after repeated version conflicts",
					zap.String("ticket_id", ticket.ID),
					zap.String("event", string(m.event)),
					zap.Int("attempts", attempt))
				return nil, apperrors.NewConcurrentModification("complaint", attempt)
			}
			s.logger.Debug("version conflict, retrying",
				zap.String("ticket_id", ticket.ID),
				zap.String("event", string(m.event)),
				zap.Int("attempt", attempt))
		case errors.Is(err, repository.ErrNotFound):
			return nil, ticketNotFound(ref)
		default:
			return nil, apperrors.MapError(err)
		}
	}
}

func (s *TicketService) load(ctx context.Context, ref string) (*domain.Ticket, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, apperrors.NewValidationError("complaint id is required", nil)
	}

	var (
		ticket *domain.Ticket
		err    error
	)
	if strings.HasPrefix(ref, ticketKeyPrefix) {
		ticket, err = s.tickets.GetByExternalKey(ctx, ref)
	} else {
		ticket, err = s.tickets.GetByID(ctx, ref)
	}
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ticketNotFound(ref)
		}
		return nil, apperrors.MapError(err)
	}
	return ticket, nil
}

func (s *TicketService) publish(ctx context.Context, actor domain.Actor, ticket *domain.Ticket, from domain.TicketStatus, event domain.Event, visibility domain.CommentVisibility) {
	if s.dispatcher == nil {
		return
	}
	evt := events.Event{
		ID:          uuid.NewString(),
		Type:        events.TypeFor(event),
		TicketID:    ticket.ID,
		ExternalKey: ticket.ExternalKey,
		Event:       event,
		ActorID:     actor.ID,
		ActorRole:   actor.Role,
		FromState:   from,
		ToState:     ticket.Status,
		OwnerID:     ticket.CreatedBy,
		Visibility:  visibility,
		Timestamp:   ticket.UpdatedAt,
	}
	// Resolved and cancelled tickets still notify whoever worked on them.
	if ticket.AssignedStaff != nil {
		evt.AssignedStaff = *ticket.AssignedStaff
		evt.Assignee = *ticket.AssignedStaff
	} else if ticket.LastAssignee != nil {
		evt.AssignedStaff = *ticket.LastAssignee
	}
	if err := s.dispatcher.Publish(ctx, evt); err != nil {
		s.logger.Warn("event publish failed", zap.String("ticket_id", ticket.ID), zap.Error(err))
	}
}

func authorize(actor domain.Actor, action policy.Action, event domain.Event, ticket *domain.Ticket) error {
	decision := policy.CanPerform(actor, action, ticket)
	if decision.Allowed {
		return nil
	}
	if decision.Reason == policy.ReasonInvalidStateForAction {
		var from string
		if ticket != nil {
			from = string(ticket.Status)
		}
		if event == "" {
			event = domain.Event(action)
		}
		return apperrors.NewInvalidTransition(from, string(event), string(decision.Reason))
	}
	return apperrors.NewForbiddenReason(string(decision.Reason), fmt.Sprintf("not allowed to %s this complaint", action))
}

func mapDomainError(err error) error {
	var (
		validation *domain.ValidationError
		transition *domain.InvalidTransitionError
	)
	switch {
	case errors.As(err, &validation):
		return apperrors.NewValidationError(validation.Error(), map[string]any{"field": validation.Field})
	case errors.As(err, &transition):
		return apperrors.NewInvalidTransition(string(transition.From), string(transition.Event), "")
	case errors.Is(err, domain.ErrRatingAlreadySet):
		return apperrors.NewConflict("complaint has already been rated", nil)
	default:
		return apperrors.MapError(err)
	}
}

func eventForStatus(status domain.TicketStatus) (domain.Event, error) {
	switch status = domain.ParseStatus(string(status)); status {
	case domain.TicketStatusInProgress:
		return domain.EventStartWork, nil
	case domain.TicketStatusResolved:
		return domain.EventResolve, nil
	case domain.TicketStatusClosed:
		return domain.EventClose, nil
	case domain.TicketStatusCancelled:
		return domain.EventCancel, nil
	case domain.TicketStatusAssigned, domain.TicketStatusReopened, domain.TicketStatusOpen:
		return "", apperrors.NewValidationError("status cannot be set directly", map[string]any{
			"status": status,
			"hint":   "use the assign or reopen operations",
		})
	default:
		return "", apperrors.NewValidationError("unknown status", map[string]any{"status": status})
	}
}

// viewFor strips what a resident may not read.
func viewFor(actor domain.Actor, ticket *domain.Ticket) *domain.Ticket {
	if actor.Role != domain.RoleResident {
		return ticket
	}
	view := ticket.Clone()
	view.InternalNotes = nil
	public := view.Comments[:0]
	for _, c := range view.Comments {
		if c.Visibility != domain.VisibilityStaff {
			public = append(public, c)
		}
	}
	view.Comments = public
	return view
}

func normalizeFilter(filter TicketListFilter) TicketListFilter {
	out := filter
	out.Statuses = make([]domain.TicketStatus, len(filter.Statuses))
	for i, st := range filter.Statuses {
		out.Statuses[i] = domain.ParseStatus(string(st))
	}
	out.Priorities = make([]domain.TicketPriority, len(filter.Priorities))
	for i, p := range filter.Priorities {
		out.Priorities[i] = domain.ParsePriority(string(p))
	}
	out.Categories = make([]domain.TicketCategory, len(filter.Categories))
	for i, c := range filter.Categories {
		out.Categories[i] = domain.ParseCategory(string(c))
	}
	return out
}

func validateFilter(filter TicketListFilter) error {
	for _, st := range filter.Statuses {
		if !st.IsValid() {
			return apperrors.NewValidationError("unknown status", map[string]any{"status": st})
		}
	}
	for _, p := range filter.Priorities {
		if !p.IsValid() {
			return apperrors.NewValidationError("unknown priority", map[string]any{"priority": p})
		}
	}
	for _, c := range filter.Categories {
		if !c.IsValid() {
			return apperrors.NewValidationError("unknown category", map[string]any{"category": c})
		}
	}
	if filter.Limit < 0 || filter.Offset < 0 {
		return apperrors.NewValidationError("pagination must not be negative", nil)
	}
	return nil
}

func ticketNotFound(ref string) error {
	return apperrors.NewNotFound("complaint", map[string]any{"complaint_id": ref})
}

func generateTicketKey() string {
	return ticketKeyPrefix + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

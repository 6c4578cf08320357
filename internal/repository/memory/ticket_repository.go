// Package memory provides in-memory repositories for tests and local development.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/spec-kit/complaint-service/internal/domain"
	"github.com/spec-kit/complaint-service/internal/repository"
)

// TicketRepository stores deep copies of tickets keyed by id.
type TicketRepository struct {
	mu      sync.RWMutex
	tickets map[string]*domain.Ticket
	keys    map[string]string
}

var _ repository.TicketRepository = (*TicketRepository)(nil)

// NewTicketRepository creates an empty store.
func NewTicketRepository() *TicketRepository {
	return &TicketRepository{
		tickets: make(map[string]*domain.Ticket),
		keys:    make(map[string]string),
	}
}

// Create stores a new ticket at version 1.
func (r *TicketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tickets[ticket.ID]; exists {
		return repository.ErrDuplicate
	}
	if _, exists := r.keys[ticket.ExternalKey]; exists && ticket.ExternalKey != "" {
		return repository.ErrDuplicate
	}
	ticket.Version = 1
	r.tickets[ticket.ID] = ticket.Clone()
	if ticket.ExternalKey != "" {
		r.keys[ticket.ExternalKey] = ticket.ID
	}
	return nil
}

// Update replaces the stored ticket when ticket.Version matches.
func (r *TicketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.tickets[ticket.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if current.Version != ticket.Version {
		return repository.ErrVersionConflict
	}
	ticket.Version++
	r.tickets[ticket.ID] = ticket.Clone()
	return nil
}

// GetByID returns a copy of the ticket.
func (r *TicketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	ticket, ok := r.tickets[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return ticket.Clone(), nil
}

// GetByExternalKey looks a ticket up by its CMP key.
func (r *TicketRepository) GetByExternalKey(ctx context.Context, key string) (*domain.Ticket, error) {
	r.mu.RLock()
	id, ok := r.keys[key]
	r.mu.RUnlock()
	if !ok {
		return nil, repository.ErrNotFound
	}
	return r.GetByID(ctx, id)
}

// List returns tickets newest first.
func (r *TicketRepository) List(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	matched := make([]domain.Ticket, 0, len(r.tickets))
	for _, t := range r.tickets {
		if matches(t, filter) {
			matched = append(matched, *t.Clone())
		}
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID < matched[j].ID
	})

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= len(matched) {
		return []domain.Ticket{}, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], nil
}

// CountActiveByAssignee counts workload per staff id.
func (r *TicketRepository) CountActiveByAssignee(ctx context.Context, staffIDs []string) (map[string]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	wanted := make(map[string]struct{}, len(staffIDs))
	for _, id := range staffIDs {
		wanted[id] = struct{}{}
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	counts := make(map[string]int, len(staffIDs))
	for _, t := range r.tickets {
		if t.AssignedStaff == nil || !containsStatus(repository.ActiveStatuses, t.Status) {
			continue
		}
		if _, ok := wanted[*t.AssignedStaff]; ok {
			counts[*t.AssignedStaff]++
		}
	}
	return counts, nil
}

func matches(t *domain.Ticket, f repository.TicketFilter) bool {
	if f.CreatedBy != nil && t.CreatedBy != *f.CreatedBy {
		return false
	}
	if f.AssignedStaff != nil && !t.IsAssignedTo(*f.AssignedStaff) {
		return false
	}
	if len(f.Statuses) > 0 && !containsStatus(f.Statuses, t.Status) {
		return false
	}
	if len(f.Priorities) > 0 && !contains(f.Priorities, t.Priority) {
		return false
	}
	if len(f.Categories) > 0 && !contains(f.Categories, t.Category) {
		return false
	}
	return true
}

func containsStatus(statuses []domain.TicketStatus, s domain.TicketStatus) bool {
	return contains(statuses, s)
}

func contains[T comparable](values []T, v T) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

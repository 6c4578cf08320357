package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/spec-kit/complaint-service/internal/domain"
	"github.com/spec-kit/complaint-service/internal/repository"
)

// StaffRepository is an in-memory staff directory.
type StaffRepository struct {
	mu    sync.RWMutex
	staff map[string]domain.StaffMember
}

var _ repository.StaffRepository = (*StaffRepository)(nil)

// NewStaffRepository creates a directory seeded with members.
func NewStaffRepository(members ...domain.StaffMember) *StaffRepository {
	r := &StaffRepository{staff: make(map[string]domain.StaffMember, len(members))}
	for _, m := range members {
		r.staff[m.ID] = m
	}
	return r
}

// Create adds a member, stamping timestamps when unset.
func (r *StaffRepository) Create(_ context.Context, staff *domain.StaffMember) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.staff[staff.ID]; exists {
		return repository.ErrDuplicate
	}
	if staff.CreatedAt.IsZero() {
		staff.CreatedAt = time.Now().UTC()
	}
	if staff.UpdatedAt.IsZero() {
		staff.UpdatedAt = staff.CreatedAt
	}
	r.staff[staff.ID] = *staff
	return nil
}

func (r *StaffRepository) GetByID(_ context.Context, id string) (*domain.StaffMember, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.staff[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &m, nil
}

// ListActive returns active members with role, oldest first.
func (r *StaffRepository) ListActive(_ context.Context, role domain.Role) ([]domain.StaffMember, error) {
	r.mu.RLock()
	out := make([]domain.StaffMember, 0, len(r.staff))
	for _, m := range r.staff {
		if m.Active && m.Role == role {
			out = append(out, m)
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// ResidentRepository is an in-memory resident directory.
type ResidentRepository struct {
	mu        sync.RWMutex
	residents map[string]domain.Resident
}

var _ repository.ResidentRepository = (*ResidentRepository)(nil)

// NewResidentRepository creates a directory seeded with residents.
func NewResidentRepository(residents ...domain.Resident) *ResidentRepository {
	r := &ResidentRepository{residents: make(map[string]domain.Resident, len(residents))}
	for _, res := range residents {
		r.residents[res.ID] = res
	}
	return r
}

func (r *ResidentRepository) Create(_ context.Context, resident *domain.Resident) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.residents[resident.ID]; exists {
		return repository.ErrDuplicate
	}
	if resident.CreatedAt.IsZero() {
		resident.CreatedAt = time.Now().UTC()
	}
	if resident.UpdatedAt.IsZero() {
		resident.UpdatedAt = resident.CreatedAt
	}
	r.residents[resident.ID] = *resident
	return nil
}

func (r *ResidentRepository) GetByID(_ context.Context, id string) (*domain.Resident, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res, ok := r.residents[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &res, nil
}

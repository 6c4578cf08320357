package service

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/spec-kit/complaint-service/internal/domain"
	"github.com/spec-kit/complaint-service/internal/repository"
	apperrors "github.com/spec-kit/complaint-service/pkg/util/errorutil"
)

// AssignmentService picks and validates assignees.
type AssignmentService struct {
	tickets repository.TicketRepository
	staff   repository.StaffRepository
}

// AssignmentDependencies bundles repositories.
type AssignmentDependencies struct {
	TicketRepo repository.TicketRepository
	StaffRepo  repository.StaffRepository
}

// NewAssignmentService creates the service.
func NewAssignmentService(deps AssignmentDependencies) *AssignmentService {
	return &AssignmentService{
		tickets: deps.TicketRepo,
		staff:   deps.StaffRepo,
	}
}

// ResolveAssignee validates staffID, or picks the least loaded staff member when it is empty.
func (s *AssignmentService) ResolveAssignee(ctx context.Context, staffID string) (*domain.StaffMember, error) {
	staffID = strings.TrimSpace(staffID)
	if staffID == "" {
		return s.LeastLoaded(ctx)
	}

	member, err := s.staff.GetByID(ctx, staffID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("staff", map[string]any{"staff_id": staffID})
		}
		return nil, apperrors.MapError(err)
	}
	if member.Role != domain.RoleStaff {
		return nil, apperrors.NewValidationError("only staff members can be assigned", map[string]any{
			"staff_id": staffID,
			"role":     member.Role,
		})
	}
	if !member.Active {
		return nil, apperrors.NewConflict("assignee inactive", map[string]any{"staff_id": staffID})
	}
	return member, nil
}

// StaffWorkload pairs an active staff member with the number of open tickets they hold.
type StaffWorkload struct {
	Member domain.StaffMember
	Open   int
}

// Workloads lists active staff ordered from least to most loaded.
// Ties go to the longest serving member, then the lowest id.
func (s *AssignmentService) Workloads(ctx context.Context) ([]StaffWorkload, error) {
	candidates, err := s.staff.ListActive(ctx, domain.RoleStaff)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	ids := make([]string, len(candidates))
	for i, member := range candidates {
		ids[i] = member.ID
	}
	load, err := s.tickets.CountActiveByAssignee(ctx, ids)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	result := make([]StaffWorkload, len(candidates))
	for i, member := range candidates {
		result[i] = StaffWorkload{Member: member, Open: load[member.ID]}
	}
	sort.SliceStable(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if a.Open != b.Open {
			return a.Open < b.Open
		}
		if !a.Member.CreatedAt.Equal(b.Member.CreatedAt) {
			return a.Member.CreatedAt.Before(b.Member.CreatedAt)
		}
		return a.Member.ID < b.Member.ID
	})
	return result, nil
}

// LeastLoaded returns the active staff member holding the fewest open tickets.
func (s *AssignmentService) LeastLoaded(ctx context.Context) (*domain.StaffMember, error) {
	workloads, err := s.Workloads(ctx)
	if err != nil {
		return nil, err
	}
	if len(workloads) == 0 {
		return nil, apperrors.NewConflict("no eligible staff available", nil)
	}
	chosen := workloads[0].Member
	return &chosen, nil
}

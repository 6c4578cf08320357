package service

import (
	"context"

	"github.com/spec-kit/complaint-service/internal/domain"
	apperrors "github.com/spec-kit/complaint-service/pkg/util/errorutil"
)

// StaffService exposes the maintenance roster to admins.
type StaffService struct {
	assignment *AssignmentService
}

// NewStaffService constructs the service.
func NewStaffService(assignment *AssignmentService) *StaffService {
	return &StaffService{assignment: assignment}
}

func requireAdmin(actor domain.Actor) error {
	if actor.Role != domain.RoleAdmin {
		return apperrors.NewForbiddenReason("ROLE_FORBIDDEN", "admin role required")
	}
	return nil
}

// Roster lists active staff with their open ticket counts, least loaded first.
// The first entry is who an assign without staffId would pick.
func (s *StaffService) Roster(ctx context.Context, actor domain.Actor) ([]StaffWorkload, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	workloads, err := s.assignment.Workloads(ctx)
	if err != nil {
		return nil, err
	}
	if workloads == nil {
		workloads = []StaffWorkload{}
	}
	return workloads, nil
}

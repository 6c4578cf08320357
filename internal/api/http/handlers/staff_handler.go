package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/complaint-service/internal/api/dto"
	"github.com/spec-kit/complaint-service/internal/service"
)

// StaffHandler exposes the staff roster.
type StaffHandler struct {
	staffService *service.StaffService
}

// NewStaffHandler constructs handler.
func NewStaffHandler(staffService *service.StaffService) *StaffHandler {
	return &StaffHandler{staffService: staffService}
}

// Roster handles GET /staff.
func (h *StaffHandler) Roster(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	workloads, err := h.staffService.Roster(c.UserContext(), actor)
	if err != nil {
		return err
	}

	rows := make([]dto.StaffWorkloadResponse, len(workloads))
	for i, w := range workloads {
		rows[i] = dto.StaffWorkloadResponse{
			ID:             w.Member.ID,
			Name:           w.Member.Name,
			Email:          w.Member.Email,
			OpenComplaints: w.Open,
			Since:          w.Member.CreatedAt,
		}
	}
	return respond(c, http.StatusOK, rows)
}

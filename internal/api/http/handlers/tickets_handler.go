package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/complaint-service/internal/api/dto"
	"github.com/spec-kit/complaint-service/internal/auth"
	"github.com/spec-kit/complaint-service/internal/domain"
	"github.com/spec-kit/complaint-service/internal/service"
	apperrors "github.com/spec-kit/complaint-service/pkg/util/errorutil"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// TicketsHandler manages complaint endpoints.
type TicketsHandler struct {
	service *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

// CreateTicket POST /complaints.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.CreateComplaintRequest
	if err := parseBody(c, &req, false); err != nil {
		return err
	}

	ticket, err := h.service.CreateTicket(c.UserContext(), actor, service.TicketCreateInput{
		Category:    req.Category,
		Priority:    req.Priority,
		Description: req.Description,
		Location:    req.Location,
		Media:       mediaRefs(req.Media),
	})
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, ticketDetail(ticket))
}

// ListTickets GET /complaints.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	query, err := parseTicketQuery(c)
	if err != nil {
		return err
	}

	tickets, err := h.service.ListTickets(c.UserContext(), actor, service.TicketListFilter{
		Statuses:   query.Statuses,
		Priorities: query.Priorities,
		Categories: query.Categories,
		Limit:      query.PageSize,
		Offset:     (query.Page - 1) * query.PageSize,
	})
	if err != nil {
		return err
	}
	items := make([]dto.ComplaintSummary, 0, len(tickets))
	for i := range tickets {
		items = append(items, ticketSummary(&tickets[i]))
	}
	return respond(c, http.StatusOK, dto.ComplaintPage{Items: items, Page: query.Page, PageSize: query.PageSize})
}

// GetTicket GET /complaints/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	ticket, err := h.service.GetTicket(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, ticketDetail(ticket))
}

// Assign POST /complaints/:id/assign.
func (h *TicketsHandler) Assign(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.AssignRequest
	if err := parseBody(c, &req, true); err != nil {
		return err
	}
	return h.reply(c)(h.service.Assign(c.UserContext(), actor, c.Params("id"), req.StaffID))
}

// AddWorkUpdate POST /complaints/:id/work-updates.
func (h *TicketsHandler) AddWorkUpdate(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.TextRequest
	if err := parseBody(c, &req, false); err != nil {
		return err
	}
	return h.reply(c)(h.service.AddWorkUpdate(c.UserContext(), actor, c.Params("id"), req.Text))
}

// UpdateStatus PUT /complaints/:id/status.
func (h *TicketsHandler) UpdateStatus(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.UpdateStatusRequest
	if err := parseBody(c, &req, false); err != nil {
		return err
	}
	if req.Status == "" {
		return apperrors.NewValidationError("status required", map[string]any{"field": "status"})
	}
	return h.reply(c)(h.service.UpdateStatus(c.UserContext(), actor, c.Params("id"), req.Status, req.Reason))
}

// Rate POST /complaints/:id/rate.
func (h *TicketsHandler) Rate(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.RateRequest
	if err := parseBody(c, &req, false); err != nil {
		return err
	}
	return h.reply(c)(h.service.Rate(c.UserContext(), actor, c.Params("id"), req.Score, req.Comment))
}

// Reopen POST /complaints/:id/reopen.
func (h *TicketsHandler) Reopen(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.ReasonRequest
	if err := parseBody(c, &req, true); err != nil {
		return err
	}
	return h.reply(c)(h.service.Reopen(c.UserContext(), actor, c.Params("id"), req.Reason))
}

// Close POST /complaints/:id/close.
func (h *TicketsHandler) Close(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	return h.reply(c)(h.service.Close(c.UserContext(), actor, c.Params("id")))
}

// Cancel POST /complaints/:id/cancel.
func (h *TicketsHandler) Cancel(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.ReasonRequest
	if err := parseBody(c, &req, true); err != nil {
		return err
	}
	return h.reply(c)(h.service.Cancel(c.UserContext(), actor, c.Params("id"), req.Reason))
}

// AddComment POST /complaints/:id/comments.
func (h *TicketsHandler) AddComment(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.CommentRequest
	if err := parseBody(c, &req, false); err != nil {
		return err
	}
	return h.reply(c)(h.service.AddComment(c.UserContext(), actor, c.Params("id"), req.Text, req.Visibility))
}

// AddAdminMedia POST /complaints/:id/admin-media.
func (h *TicketsHandler) AddAdminMedia(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.AdminMediaRequest
	if err := parseBody(c, &req, false); err != nil {
		return err
	}
	return h.reply(c)(h.service.AddAdminMedia(c.UserContext(), actor, c.Params("id"), mediaRefs(req.MediaRefs)))
}

// AddInternalNote POST /complaints/:id/internal-notes.
func (h *TicketsHandler) AddInternalNote(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.TextRequest
	if err := parseBody(c, &req, false); err != nil {
		return err
	}
	return h.reply(c)(h.service.AddInternalNote(c.UserContext(), actor, c.Params("id"), req.Text))
}

// UpdatePriority PUT /complaints/:id/priority.
func (h *TicketsHandler) UpdatePriority(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.UpdatePriorityRequest
	if err := parseBody(c, &req, false); err != nil {
		return err
	}
	return h.reply(c)(h.service.UpdatePriority(c.UserContext(), actor, c.Params("id"), req.Priority))
}

func (h *TicketsHandler) reply(c *fiber.Ctx) func(*domain.Ticket, error) error {
	return func(ticket *domain.Ticket, err error) error {
		if err != nil {
			return err
		}
		return respond(c, http.StatusOK, ticketDetail(ticket))
	}
}

func actorFrom(c *fiber.Ctx) (domain.Actor, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return domain.Actor{}, apperrors.NewUnauthorized("authentication required")
	}
	return principal.Actor(), nil
}

func respond(c *fiber.Ctx, status int, data any) error {
	return c.Status(status).JSON(dto.Envelope{Success: true, Data: data})
}

// parseBody decodes a JSON body. Optional bodies may be empty.
func parseBody(c *fiber.Ctx, out any, optional bool) error {
	if optional && len(c.Body()) == 0 {
		return nil
	}
	if err := c.BodyParser(out); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	return nil
}

func parseTicketQuery(c *fiber.Ctx) (dto.ComplaintListQuery, error) {
	query := dto.ComplaintListQuery{}
	for _, part := range splitList(c.Query("status")) {
		query.Statuses = append(query.Statuses, domain.ParseStatus(part))
	}
	for _, part := range splitList(c.Query("priority")) {
		query.Priorities = append(query.Priorities, domain.ParsePriority(part))
	}
	for _, part := range splitList(c.Query("category")) {
		query.Categories = append(query.Categories, domain.ParseCategory(part))
	}

	var err error
	if query.Page, err = parseInt(c.Query("page"), 1); err != nil || query.Page < 1 {
		return query, apperrors.NewValidationError("page must be a positive integer", map[string]any{"field": "page"})
	}
	if query.PageSize, err = parseInt(c.Query("page_size"), defaultPageSize); err != nil || query.PageSize < 1 || query.PageSize > maxPageSize {
		return query, apperrors.NewValidationError("page_size must be between 1 and 100", map[string]any{"field": "page_size"})
	}
	return query, nil
}

func splitList(val string) []string {
	if val == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseInt(val string, def int) (int, error) {
	if val == "" {
		return def, nil
	}
	return strconv.Atoi(val)
}

func mediaRefs(payload []dto.MediaRefPayload) []domain.MediaRef {
	if len(payload) == 0 {
		return nil
	}
	refs := make([]domain.MediaRef, 0, len(payload))
	for _, p := range payload {
		refs = append(refs, domain.MediaRef{URL: p.URL, PublicID: p.PublicID})
	}
	return refs
}

func ticketSummary(t *domain.Ticket) dto.ComplaintSummary {
	return dto.ComplaintSummary{
		ID:            t.ID,
		ExternalKey:   t.ExternalKey,
		CreatedBy:     t.CreatedBy,
		Category:      t.Category,
		Priority:      t.Priority,
		Status:        t.Status,
		Location:      t.Location,
		AssignedStaff: t.AssignedStaff,
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     t.UpdatedAt,
	}
}

func ticketDetail(t *domain.Ticket) dto.ComplaintResponse {
	resp := dto.ComplaintResponse{
		ID:              t.ID,
		ExternalKey:     t.ExternalKey,
		CreatedBy:       t.CreatedBy,
		Category:        t.Category,
		Priority:        t.Priority,
		Status:          t.Status,
		Description:     t.Description,
		Location:        t.Location,
		Media:           mediaResponses(t.Media),
		AssignedStaff:   t.AssignedStaff,
		LastAssignee:    t.LastAssignee,
		WorkUpdates:     make([]dto.EntryResponse, 0, len(t.WorkUpdates)),
		Comments:        make([]dto.CommentResponse, 0, len(t.Comments)),
		AdminMedia:      mediaResponses(t.AdminMedia),
		PriorityHistory: make([]dto.PriorityChangeResponse, 0, len(t.PriorityHistory)),
		StatusHistory:   make([]dto.StatusChangeResponse, 0, len(t.StatusHistory)),
		CreatedAt:       t.CreatedAt,
		UpdatedAt:       t.UpdatedAt,
		ResolvedAt:      t.ResolvedAt,
		ClosedAt:        t.ClosedAt,
		CancelledAt:     t.CancelledAt,
		Version:         t.Version,
	}
	for _, u := range t.WorkUpdates {
		resp.WorkUpdates = append(resp.WorkUpdates, dto.EntryResponse{Author: u.Author, Text: u.Text, Timestamp: u.Timestamp})
	}
	for _, cm := range t.Comments {
		resp.Comments = append(resp.Comments, dto.CommentResponse{
			Author:     cm.Author,
			AuthorRole: cm.AuthorRole,
			Text:       cm.Text,
			Visibility: cm.Visibility,
			Timestamp:  cm.Timestamp,
		})
	}
	for _, n := range t.InternalNotes {
		resp.InternalNotes = append(resp.InternalNotes, dto.EntryResponse{Author: n.Author, Text: n.Text, Timestamp: n.Timestamp})
	}
	if t.Rating != nil {
		resp.Rating = &dto.RatingResponse{Score: t.Rating.Score, Comment: t.Rating.Comment, RatedAt: t.Rating.RatedAt}
	}
	for _, p := range t.PriorityHistory {
		resp.PriorityHistory = append(resp.PriorityHistory, dto.PriorityChangeResponse{
			OldValue:  p.OldValue,
			NewValue:  p.NewValue,
			ChangedBy: p.ChangedBy,
			Timestamp: p.Timestamp,
		})
	}
	for _, s := range t.StatusHistory {
		resp.StatusHistory = append(resp.StatusHistory, dto.StatusChangeResponse{
			From:      s.From,
			To:        s.To,
			Event:     s.Event,
			ChangedBy: s.ChangedBy,
			Reason:    s.Reason,
			Timestamp: s.Timestamp,
		})
	}
	return resp
}

func mediaResponses(refs []domain.MediaRef) []dto.MediaRefResponse {
	out := make([]dto.MediaRefResponse, 0, len(refs))
	for _, r := range refs {
		out = append(out, dto.MediaRefResponse{URL: r.URL, PublicID: r.PublicID, AddedBy: r.AddedBy})
	}
	return out
}

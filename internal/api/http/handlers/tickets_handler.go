package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/campusdesk/ticket-engine/internal/api/dto"
	"github.com/campusdesk/ticket-engine/internal/auth"
	"github.com/campusdesk/ticket-engine/internal/domain"
	"github.com/campusdesk/ticket-engine/internal/service"
	apperrors "github.com/campusdesk/ticket-engine/pkg/util"
)

// TicketsHandler manages ticket endpoints.
type TicketsHandler struct {
	service  *service.TicketService
	location *time.Location
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService, location *time.Location) *TicketsHandler {
	if location == nil {
		location = time.UTC
	}
	return &TicketsHandler{service: ticketService, location: location}
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.CreatorID == "" || req.CategoryID == "" || strings.TrimSpace(req.Title) == "" {
		return apperrors.NewValidationError("creator_id, category_id, title required", nil)
	}

	input := service.TicketCreateInput{
		Title:       req.Title,
		Description: req.Description,
		CategoryID:  req.CategoryID,
		Location:    req.Location,
		TAT:         req.TAT,
	}
	ticket, err := h.service.CreateTicket(c.Context(), req.CreatorID, input)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": h.response(ticket)})
}

// ListQueue GET /tickets. Returns active tickets visible to the caller.
func (h *TicketsHandler) ListQueue(c *fiber.Ctx) error {
	admin, ok := auth.AdminFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("admin required")
	}
	limit := parseIntQuery(c, "limit", 50)
	offset := parseIntQuery(c, "offset", 0)

	tickets, err := h.service.QueueForAdmin(c.Context(), admin, limit, offset)
	if err != nil {
		return err
	}
	now := time.Now()
	items := make([]dto.TicketResponse, 0, len(tickets))
	for i := range tickets {
		items = append(items, dto.NewTicketResponse(&tickets[i], now, h.location))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	ticket, err := h.service.GetTicket(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": h.response(ticket)})
}

// UpdateStatus POST /tickets/:id/status.
func (h *TicketsHandler) UpdateStatus(c *fiber.Ctx) error {
	admin, ok := auth.AdminFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("admin required")
	}
	var req dto.UpdateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Status == "" {
		return apperrors.NewValidationError("status required", nil)
	}
	ticket, err := h.service.UpdateStatus(c.Context(), admin, c.Params("id"), req.Status, req.Comment)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": h.response(ticket)})
}

// SetTAT POST /tickets/:id/tat.
func (h *TicketsHandler) SetTAT(c *fiber.Ctx) error {
	admin, ok := auth.AdminFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("admin required")
	}
	var req dto.SetTATRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.TAT == "" {
		return apperrors.NewValidationError("tat required", nil)
	}
	ticket, err := h.service.SetTAT(c.Context(), admin, c.Params("id"), req.TAT)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": h.response(ticket)})
}

// AddComment POST /tickets/:id/comment.
func (h *TicketsHandler) AddComment(c *fiber.Ctx) error {
	admin, ok := auth.AdminFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("admin required")
	}
	var req dto.CommentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.Body) == "" {
		return apperrors.NewValidationError("body required", nil)
	}
	ticket, err := h.service.AddComment(c.Context(), admin, c.Params("id"), req.Body)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": h.response(ticket)})
}

// Escalate POST /tickets/:id/escalate.
func (h *TicketsHandler) Escalate(c *fiber.Ctx) error {
	admin, ok := auth.AdminFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("admin required")
	}
	ticket, err := h.service.Escalate(c.Context(), admin, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": h.response(ticket)})
}

// Assign POST /tickets/:id/assign.
func (h *TicketsHandler) Assign(c *fiber.Ctx) error {
	admin, ok := auth.AdminFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("admin required")
	}
	var req dto.AssignRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.AssigneeID == "" {
		return apperrors.NewValidationError("assignee_id required", nil)
	}
	ticket, err := h.service.Assign(c.Context(), admin, c.Params("id"), req.AssigneeID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": h.response(ticket)})
}

func (h *TicketsHandler) response(ticket *domain.Ticket) dto.TicketResponse {
	return dto.NewTicketResponse(ticket, time.Now(), h.location)
}

func parseIntQuery(c *fiber.Ctx, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return fallback
	}
	return value
}

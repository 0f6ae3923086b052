package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/campusdesk/ticket-engine/internal/api/dto"
	"github.com/campusdesk/ticket-engine/internal/auth"
	"github.com/campusdesk/ticket-engine/internal/service"
	apperrors "github.com/campusdesk/ticket-engine/pkg/util"
)

// GroupsHandler manages ticket group endpoints.
type GroupsHandler struct {
	service *service.GroupService
}

// NewGroupsHandler constructs handler.
func NewGroupsHandler(groupService *service.GroupService) *GroupsHandler {
	return &GroupsHandler{service: groupService}
}

// CreateGroup POST /groups.
func (h *GroupsHandler) CreateGroup(c *fiber.Ctx) error {
	admin, ok := auth.AdminFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("admin required")
	}
	var req dto.CreateGroupRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	group, err := h.service.CreateGroup(c.Context(), admin, service.GroupCreateInput{
		Name:        req.Name,
		CommitteeID: req.CommitteeID,
		TAT:         req.TAT,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewGroupResponse(group)})
}

// GetGroup GET /groups/:id.
func (h *GroupsHandler) GetGroup(c *fiber.Ctx) error {
	group, err := h.service.GetGroup(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewGroupResponse(group)})
}

// Act POST /groups/:id/actions.
func (h *GroupsHandler) Act(c *fiber.Ctx) error {
	admin, ok := auth.AdminFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("admin required")
	}
	var req dto.GroupActionRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	result, err := h.service.BulkAct(c.Context(), admin, c.Params("id"), service.BulkActionInput{
		Action:       req.Action,
		Comment:      req.Comment,
		TargetStatus: req.TargetStatus,
	})
	if err != nil {
		return err
	}
	status := http.StatusOK
	if !result.Success {
		status = http.StatusMultiStatus
	}
	return c.Status(status).JSON(fiber.Map{"data": dto.NewBulkResultResponse(result)})
}

// AddTickets POST /groups/:id/tickets.
func (h *GroupsHandler) AddTickets(c *fiber.Ctx) error {
	admin, ok := auth.AdminFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("admin required")
	}
	var req dto.AddGroupTicketsRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if len(req.TicketIDs) == 0 {
		return apperrors.NewValidationError("ticket_ids required", nil)
	}
	result, err := h.service.AddTickets(c.Context(), admin, c.Params("id"), req.TicketIDs)
	if err != nil {
		return err
	}
	status := http.StatusOK
	if !result.Success {
		status = http.StatusMultiStatus
	}
	return c.Status(status).JSON(fiber.Map{"data": dto.NewBulkResultResponse(result)})
}

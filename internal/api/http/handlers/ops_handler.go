package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/campusdesk/ticket-engine/internal/domain"
	"github.com/campusdesk/ticket-engine/internal/repository"
	"github.com/campusdesk/ticket-engine/internal/service"
	apperrors "github.com/campusdesk/ticket-engine/pkg/util"
)

// OpsHandler exposes operational endpoints: manual sweep runs and
// dead-letter inspection.
type OpsHandler struct {
	sweeps *service.SweepService
	outbox repository.OutboxRepository
}

// NewOpsHandler constructs handler.
func NewOpsHandler(sweeps *service.SweepService, outbox repository.OutboxRepository) *OpsHandler {
	return &OpsHandler{sweeps: sweeps, outbox: outbox}
}

// RunReminderSweep POST /sweeps/reminders.
func (h *OpsHandler) RunReminderSweep(c *fiber.Ctx) error {
	sent, err := h.sweeps.Run(c.Context())
	if err != nil {
		return apperrors.MapError(err)
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"reminders_sent": sent}})
}

// DeadLetterEntry describes one exhausted outbox event.
type DeadLetterEntry struct {
	ID             string         `json:"id"`
	EventType      string         `json:"event_type"`
	Payload        map[string]any `json:"payload"`
	Attempts       int            `json:"attempts"`
	LastError      *string        `json:"last_error"`
	DeadLetteredAt *time.Time     `json:"dead_lettered_at"`
	CreatedAt      time.Time      `json:"created_at"`
}

// ListDeadLetters GET /outbox/dead-letters.
func (h *OpsHandler) ListDeadLetters(c *fiber.Ctx) error {
	limit := parseIntQuery(c, "limit", 100)
	events, err := h.outbox.ListDeadLettered(c.Context(), limit)
	if err != nil {
		return apperrors.MapError(err)
	}
	items := make([]DeadLetterEntry, 0, len(events))
	for i := range events {
		items = append(items, newDeadLetterEntry(&events[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

func newDeadLetterEntry(event *domain.OutboxEvent) DeadLetterEntry {
	return DeadLetterEntry{
		ID:             event.ID,
		EventType:      string(event.EventType),
		Payload:        event.Payload,
		Attempts:       event.Attempts,
		LastError:      event.LastError,
		DeadLetteredAt: event.DeadLetteredAt,
		CreatedAt:      event.CreatedAt,
	}
}

package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/campusdesk/ticket-engine/internal/api/dto"
	"github.com/campusdesk/ticket-engine/internal/auth"
	"github.com/campusdesk/ticket-engine/internal/repository"
	apperrors "github.com/campusdesk/ticket-engine/pkg/util"
)

// AuthHandler issues admin tokens.
type AuthHandler struct {
	admins repository.AdminRepository
	tokens *auth.TokenManager
}

// NewAuthHandler constructs handler.
func NewAuthHandler(admins repository.AdminRepository, tokens *auth.TokenManager) *AuthHandler {
	return &AuthHandler{admins: admins, tokens: tokens}
}

// Login POST /auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Email == "" || req.Password == "" {
		return apperrors.NewValidationError("email and password required", nil)
	}

	admin, err := h.admins.GetByEmail(c.Context(), req.Email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewUnauthorized("invalid credentials")
		}
		return apperrors.MapError(err)
	}
	if !admin.Active {
		return apperrors.NewUnauthorized("admin deactivated")
	}
	if err := auth.ComparePassword(admin.PasswordHash, req.Password); err != nil {
		return apperrors.NewUnauthorized("invalid credentials")
	}

	token, expiresAt, err := h.tokens.GenerateToken(admin.ID, admin.Role)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	return c.JSON(fiber.Map{"data": dto.LoginResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		AdminID:   admin.ID,
		Role:      string(admin.Role),
	}})
}

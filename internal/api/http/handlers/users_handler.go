package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/helpdesk-kit/helpdesk/internal/api/dto"
	"github.com/helpdesk-kit/helpdesk/internal/auth"
	"github.com/helpdesk-kit/helpdesk/internal/service"
	apperrors "github.com/helpdesk-kit/helpdesk/pkg/util/errorutil"
)

// UsersHandler manages registration, login and user lookups.
type UsersHandler struct {
	authService *service.AuthService
	queries     *service.QueryService
}

// NewUsersHandler constructs the handler.
func NewUsersHandler(authService *service.AuthService, queries *service.QueryService) *UsersHandler {
	return &UsersHandler{authService: authService, queries: queries}
}

// Register POST /auth/register.
func (h *UsersHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	user, err := h.authService.Register(c.UserContext(), service.RegisterInput{
		Email:    req.Email,
		Name:     req.Name,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.UserFromDomain(user)})
}

// Login POST /auth/login.
func (h *UsersHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	user, token, expiresAt, err := h.authService.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.LoginResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      dto.UserFromDomain(user),
	}})
}

// ListOperators GET /users/operators.
func (h *UsersHandler) ListOperators(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	if !auth.Allowed(principal.User.Role, auth.ActionUsersRead) {
		return apperrors.NewForbidden("action not permitted for role")
	}

	operators, err := h.queries.ListOperators(c.UserContext())
	if err != nil {
		return err
	}
	items := make([]dto.UserResponse, 0, len(operators))
	for i := range operators {
		items = append(items, dto.UserFromDomain(&operators[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

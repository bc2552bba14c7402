package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/display-support/internal/api/dto"
	"github.com/spec-kit/display-support/internal/domain"
	"github.com/spec-kit/display-support/internal/service"
	apperrors "github.com/spec-kit/display-support/pkg/util/errorutil"
)

// StaffHandler exposes staff auth endpoints.
type StaffHandler struct {
	authService *service.AuthService
}

// NewStaffHandler constructs handler.
func NewStaffHandler(authService *service.AuthService) *StaffHandler {
	return &StaffHandler{authService: authService}
}

// Login handles POST /auth/staff/login.
func (h *StaffHandler) Login(c *fiber.Ctx) error {
	var req dto.StaffLoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewInvalidInput("invalid payload", nil)
	}

	staff, token, exp, err := h.authService.LoginStaff(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"data": dto.StaffLoginResponse{
			Staff: staffResponse(staff),
			Auth:  dto.AuthResponse{Token: token, ExpiresAt: exp},
		},
	})
}

// Me handles GET /api/staff/me.
func (h *StaffHandler) Me(c *fiber.Ctx) error {
	staff, err := staffPrincipal(c)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": staffResponse(staff)})
}

func staffResponse(staff *domain.StaffMember) dto.StaffResponse {
	return dto.StaffResponse{
		ID:    staff.ID,
		Name:  staff.Name,
		Email: staff.Email,
		Role:  string(staff.Role),
	}
}

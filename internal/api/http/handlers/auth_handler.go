package handlers

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/protocol-service/internal/api/dto"
	"github.com/spec-kit/protocol-service/internal/auth"
	"github.com/spec-kit/protocol-service/internal/domain"
	"github.com/spec-kit/protocol-service/internal/service"
	apperrors "github.com/spec-kit/protocol-service/pkg/util"
)

// AuthHandler serves login and account provisioning.
type AuthHandler struct {
	service *service.AuthService
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{service: authService}
}

// Login POST /auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.Login) == "" || req.Password == "" {
		return apperrors.NewValidationError("login and password required", nil)
	}

	result, err := h.service.Login(c.Context(), req.Login, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.LoginResponse{
		Token:     result.Token,
		ExpiresAt: result.ExpiresAt,
		ActorID:   result.Actor.ID,
		ActorName: result.Actor.Name,
		Role:      string(result.Actor.Role),
		Unit:      result.Actor.Unit,
	}})
}

// Register POST /accounts.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("actor required")
	}
	var req dto.RegisterAccountRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	account, err := h.service.RegisterAccount(c.Context(), actor, service.RegisterAccountInput{
		Login:    req.Login,
		Name:     req.Name,
		Password: req.Password,
		Role:     domain.ActorRole(req.Role),
		Unit:     req.Unit,
		Phone:    req.Phone,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.AccountResponse{
		ID:       account.ID,
		Login:    account.Login,
		Name:     account.Name,
		Role:     string(account.Role),
		Unit:     account.Unit,
		Phone:    account.Phone,
		IsActive: account.IsActive,
	}})
}

package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/satbounty/backend/internal/http/dto"
	"github.com/satbounty/backend/internal/services"
)

type AuthHandler struct {
	accounts *services.AccountService
	log      *zap.Logger
}

func NewAuthHandler(accounts *services.AccountService, log *zap.Logger) *AuthHandler {
	return &AuthHandler{accounts: accounts, log: log}
}

// Register creates the account and hands back the bond invoice the user
// must pay to activate it.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}

	user, activation, token, err := h.accounts.Register(c.Context(), req.Username, req.Password)
	if err != nil {
		h.log.Debug("register failed", zap.String("username", req.Username), zap.Error(err))
		return serviceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(dto.AuthResponse{
		Token:             token,
		User:              user,
		ActivationInvoice: activation.InvoicePaymentRequest,
	})
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}

	user, token, err := h.accounts.Login(c.Context(), req.Username, req.Password)
	if err != nil {
		return serviceError(c, err)
	}

	return c.JSON(dto.AuthResponse{Token: token, User: user})
}

package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/satbounty/backend/internal/http/dto"
	"github.com/satbounty/backend/internal/repositories"
	"github.com/satbounty/backend/internal/services"
)

// serviceError maps the core's sentinel errors onto HTTP statuses;
// everything else is treated as a validation failure.
func serviceError(c *fiber.Ctx, err error) error {
	switch {
	case repositories.IsNotFound(err):
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: "not found"})
	case errors.Is(err, services.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{Error: err.Error()})
	case errors.Is(err, services.ErrInvalidCredentials):
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Error: err.Error()})
	case errors.Is(err, repositories.ErrWithdrawalRateLimited):
		return c.Status(fiber.StatusTooManyRequests).JSON(dto.ErrorResponse{Error: err.Error()})
	default:
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: err.Error()})
	}
}

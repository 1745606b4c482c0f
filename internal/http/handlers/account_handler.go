package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/satbounty/backend/internal/http/dto"
	"github.com/satbounty/backend/internal/middleware"
	"github.com/satbounty/backend/internal/services"
)

type AccountHandler struct {
	accounts *services.AccountService
	log      *zap.Logger
}

func NewAccountHandler(accounts *services.AccountService, log *zap.Logger) *AccountHandler {
	return &AccountHandler{accounts: accounts, log: log}
}

func (h *AccountHandler) Me(c *fiber.Ctx) error {
	info, err := h.accounts.Info(c.Context(), middleware.GetUserID(c))
	if err != nil {
		h.log.Error("account info failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: info})
}

// Activation returns the bond invoice so an unactivated user can retry
// payment from a fresh session.
func (h *AccountHandler) Activation(c *fiber.Ctx) error {
	activation, err := h.accounts.Activation(c.Context(), middleware.GetUserID(c))
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: activation})
}

func (h *AccountHandler) Ledger(c *fiber.Ctx) error {
	page := 0
	if v := c.Query("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			page = n
		}
	}

	changes, err := h.accounts.Ledger(c.Context(), middleware.GetUserID(c), page)
	if err != nil {
		h.log.Error("ledger page failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: changes})
}

func (h *AccountHandler) Withdrawals(c *fiber.Ctx) error {
	withdrawals, err := h.accounts.Withdrawals(c.Context(), middleware.GetUserID(c))
	if err != nil {
		h.log.Error("withdrawal list failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: withdrawals})
}

func (h *AccountHandler) Withdraw(c *fiber.Ctx) error {
	var req dto.WithdrawRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}
	if req.PaymentRequest == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "payment_request is required"})
	}

	w, err := h.accounts.Withdraw(c.Context(), middleware.GetUserID(c), req.PaymentRequest)
	if err != nil {
		return serviceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: w})
}

func (h *AccountHandler) Deactivate(c *fiber.Ctx) error {
	var req dto.DeactivateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}
	if req.PaymentRequest == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "payment_request is required"})
	}

	if err := h.accounts.Deactivate(c.Context(), middleware.GetUserID(c), req.PaymentRequest); err != nil {
		return serviceError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true})
}

// Admin endpoints

func (h *AccountHandler) SetActivationDisabled(c *fiber.Ctx) error {
	userPublicID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid user id"})
	}

	var req dto.SetDisabledRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}

	if err := h.accounts.SetActivationDisabled(c.Context(), userPublicID, req.Disabled); err != nil {
		return serviceError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true})
}

func (h *AccountHandler) AllChanges(c *fiber.Ctx) error {
	page := 0
	if v := c.Query("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			page = n
		}
	}

	changes, err := h.accounts.AllChanges(c.Context(), page)
	if err != nil {
		h.log.Error("market ledger failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: changes})
}

func (h *AccountHandler) Liabilities(c *fiber.Ctx) error {
	total, err := h.accounts.MarketLiabilities(c.Context())
	if err != nil {
		h.log.Error("liabilities failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: dto.LiabilitiesResponse{TotalSat: total}})
}

package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/satbounty/backend/internal/http/dto"
	"github.com/satbounty/backend/internal/middleware"
	"github.com/satbounty/backend/internal/services"
)

type BountyHandler struct {
	bounties *services.BountyService
	log      *zap.Logger
}

func NewBountyHandler(bounties *services.BountyService, log *zap.Logger) *BountyHandler {
	return &BountyHandler{bounties: bounties, log: log}
}

func (h *BountyHandler) Create(c *fiber.Ctx) error {
	var req dto.CreateBountyRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}

	userID := middleware.GetUserID(c)
	bounty, err := h.bounties.Create(c.Context(), userID, req.Title, req.Description, req.PriceSat)
	if err != nil {
		return serviceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: bounty})
}

func (h *BountyHandler) Get(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid bounty id"})
	}

	bounty, err := h.bounties.Get(c.Context(), id)
	if err != nil {
		return serviceError(c, err)
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: bounty})
}

func (h *BountyHandler) ListActive(c *fiber.Ctx) error {
	bounties, err := h.bounties.ListActive(c.Context())
	if err != nil {
		h.log.Error("list active bounties failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: bounties})
}

func (h *BountyHandler) ListMine(c *fiber.Ctx) error {
	bounties, err := h.bounties.ListMine(c.Context(), middleware.GetUserID(c))
	if err != nil {
		h.log.Error("list own bounties failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: bounties})
}

func (h *BountyHandler) Submit(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid bounty id"})
	}

	if err := h.bounties.Submit(c.Context(), id, middleware.GetUserID(c)); err != nil {
		return serviceError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true})
}

func (h *BountyHandler) Deactivate(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid bounty id"})
	}

	if err := h.bounties.Deactivate(c.Context(), id, middleware.GetUserID(c), middleware.IsAdmin(c)); err != nil {
		return serviceError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true})
}

// Admin endpoints

func (h *BountyHandler) PendingReview(c *fiber.Ctx) error {
	bounties, err := h.bounties.ListPendingReview(c.Context())
	if err != nil {
		h.log.Error("list pending bounties failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: bounties})
}

func (h *BountyHandler) Approve(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid bounty id"})
	}

	if err := h.bounties.Approve(c.Context(), id); err != nil {
		return serviceError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true})
}

func (h *BountyHandler) Reject(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid bounty id"})
	}

	if err := h.bounties.Reject(c.Context(), id); err != nil {
		return serviceError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true})
}

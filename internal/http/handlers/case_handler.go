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

type CaseHandler struct {
	cases *services.CaseService
	log   *zap.Logger
}

func NewCaseHandler(cases *services.CaseService, log *zap.Logger) *CaseHandler {
	return &CaseHandler{cases: cases, log: log}
}

func (h *CaseHandler) Create(c *fiber.Ctx) error {
	var req dto.CreateCaseRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}

	bountyID, err := uuid.Parse(req.BountyID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid bounty_id"})
	}

	buyerID := middleware.GetUserID(c)
	created, err := h.cases.Create(c.Context(), buyerID, bountyID, req.Quantity, req.Details)
	if err != nil {
		return serviceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: created})
}

func (h *CaseHandler) Get(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid case id"})
	}

	found, err := h.cases.Get(c.Context(), id, middleware.GetUserID(c), middleware.IsAdmin(c))
	if err != nil {
		return serviceError(c, err)
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: found})
}

func (h *CaseHandler) List(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)

	var err error
	var data any
	switch c.Query("role") {
	case "seller":
		data, err = h.cases.ListForSeller(c.Context(), userID)
	default:
		data, err = h.cases.ListForBuyer(c.Context(), userID)
	}
	if err != nil {
		h.log.Error("list cases failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: data})
}

func (h *CaseHandler) Award(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid case id"})
	}

	if err := h.cases.Award(c.Context(), id, middleware.GetUserID(c)); err != nil {
		return serviceError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true})
}

func (h *CaseHandler) Cancel(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid case id"})
	}

	if err := h.cases.Cancel(c.Context(), id, middleware.GetUserID(c)); err != nil {
		return serviceError(c, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true})
}

func (h *CaseHandler) MySales(c *fiber.Ctx) error {
	totals, err := h.cases.SellerTotals(c.Context(), middleware.GetUserID(c))
	if err != nil {
		h.log.Error("seller totals failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: totals})
}

func (h *CaseHandler) TopSellers(c *fiber.Ctx) error {
	limit := 20
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}

	sellers, err := h.cases.TopSellers(c.Context(), limit)
	if err != nil {
		h.log.Error("top sellers failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: sellers})
}

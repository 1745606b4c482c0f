package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/satbounty/backend/internal/config"
	"github.com/satbounty/backend/internal/events"
	"github.com/satbounty/backend/internal/models"
	"github.com/satbounty/backend/internal/repositories"
)

type BountyService struct {
	bountyRepo     *repositories.BountyRepo
	activationRepo *repositories.ActivationRepo
	publisher      events.Publisher
	cfg            *config.Config
	log            *zap.Logger
}

func NewBountyService(
	bountyRepo *repositories.BountyRepo,
	activationRepo *repositories.ActivationRepo,
	publisher events.Publisher,
	cfg *config.Config,
	log *zap.Logger,
) *BountyService {
	return &BountyService{
		bountyRepo:     bountyRepo,
		activationRepo: activationRepo,
		publisher:      publisher,
		cfg:            cfg,
		log:            log,
	}
}

// Create drafts a bounty. The fee rate in force is frozen into the row so
// later config changes do not reprice existing listings.
func (s *BountyService) Create(ctx context.Context, userID int64, title, description string, priceSat int64) (*models.Bounty, error) {
	if title == "" {
		return nil, fmt.Errorf("title is required")
	}
	if priceSat <= 0 {
		return nil, fmt.Errorf("price must be positive")
	}

	activation, err := s.activationRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !activation.IsActive() {
		return nil, ErrAccountInactive
	}

	b := &models.Bounty{
		PublicID:           uuid.New(),
		UserID:             userID,
		Title:              title,
		Description:        description,
		PriceSat:           priceSat,
		FeeRateBasisPoints: s.cfg.FeeRateBPS,
	}

	if err := s.bountyRepo.Create(ctx, b, s.cfg.MaxUnapprovedBounties); err != nil {
		return nil, err
	}
	return b, nil
}

func (s *BountyService) Get(ctx context.Context, publicID uuid.UUID) (*models.Bounty, error) {
	return s.bountyRepo.GetByPublicID(ctx, publicID)
}

func (s *BountyService) ListActive(ctx context.Context) ([]*models.Bounty, error) {
	return s.bountyRepo.ListActive(ctx)
}

func (s *BountyService) ListMine(ctx context.Context, userID int64) ([]*models.Bounty, error) {
	return s.bountyRepo.ListForUser(ctx, userID)
}

func (s *BountyService) ListPendingReview(ctx context.Context) ([]*models.Bounty, error) {
	return s.bountyRepo.ListPendingReview(ctx)
}

func (s *BountyService) Submit(ctx context.Context, publicID uuid.UUID, userID int64) error {
	rows, err := s.bountyRepo.Submit(ctx, publicID, userID)
	if err != nil {
		return err
	}
	if rows == 0 {
		return repositories.ErrNotTransitionable
	}
	return nil
}

func (s *BountyService) Approve(ctx context.Context, publicID uuid.UUID) error {
	rows, err := s.bountyRepo.Approve(ctx, publicID)
	if err != nil {
		return err
	}
	if rows == 0 {
		return repositories.ErrNotTransitionable
	}

	_ = s.publisher.Publish(ctx, events.StreamMarket, events.Event{
		Type:    events.EventBountyApproved,
		Payload: map[string]any{"bounty_id": publicID.String()},
	})
	return nil
}

func (s *BountyService) Reject(ctx context.Context, publicID uuid.UUID) error {
	rows, err := s.bountyRepo.Reject(ctx, publicID)
	if err != nil {
		return err
	}
	if rows == 0 {
		return repositories.ErrNotTransitionable
	}
	return nil
}

// Deactivate pulls an approved bounty from the market. Sellers pull only
// their own; admins can pull anything.
func (s *BountyService) Deactivate(ctx context.Context, publicID uuid.UUID, userID int64, isAdmin bool) error {
	var rows int64
	var err error
	if isAdmin {
		rows, err = s.bountyRepo.DeactivateByAdmin(ctx, publicID)
	} else {
		rows, err = s.bountyRepo.DeactivateBySeller(ctx, publicID, userID)
	}
	if err != nil {
		return err
	}
	if rows == 0 {
		return repositories.ErrNotTransitionable
	}
	return nil
}

package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/satbounty/backend/internal/config"
	"github.com/satbounty/backend/internal/events"
	"github.com/satbounty/backend/internal/lightning"
	"github.com/satbounty/backend/internal/models"
	"github.com/satbounty/backend/internal/repositories"
)

type CaseService struct {
	caseRepo       *repositories.CaseRepo
	bountyRepo     *repositories.BountyRepo
	activationRepo *repositories.ActivationRepo
	ln             lightning.Client
	publisher      events.Publisher
	cfg            *config.Config
	log            *zap.Logger
}

func NewCaseService(
	caseRepo *repositories.CaseRepo,
	bountyRepo *repositories.BountyRepo,
	activationRepo *repositories.ActivationRepo,
	ln lightning.Client,
	publisher events.Publisher,
	cfg *config.Config,
	log *zap.Logger,
) *CaseService {
	return &CaseService{
		caseRepo:       caseRepo,
		bountyRepo:     bountyRepo,
		activationRepo: activationRepo,
		ln:             ln,
		publisher:      publisher,
		cfg:            cfg,
		log:            log,
	}
}

// Create opens an escrowed case against an active bounty: freeze the
// price and fee into the row, issue the invoice, insert under the unpaid
// cap. Nothing is owed to anyone until the invoice settles.
func (s *CaseService) Create(ctx context.Context, buyerID int64, bountyPublicID uuid.UUID, quantity int64, details string) (*models.Case, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("quantity must be positive")
	}

	bounty, err := s.bountyRepo.GetByPublicID(ctx, bountyPublicID)
	if err != nil {
		return nil, err
	}
	if !bounty.IsActive() {
		return nil, ErrBountyNotActive
	}
	if bounty.UserID == buyerID {
		return nil, ErrOwnBounty
	}

	activation, err := s.activationRepo.GetByUserID(ctx, buyerID)
	if err != nil {
		return nil, err
	}
	if !activation.IsActive() {
		return nil, ErrAccountInactive
	}

	amountOwed, sellerCredit := models.CaseAmounts(bounty.PriceSat, quantity, bounty.FeeRateBasisPoints)

	c := &models.Case{
		PublicID:        uuid.New(),
		BountyID:        bounty.ID,
		BountyPublicID:  bounty.PublicID,
		BuyerUserID:     buyerID,
		SellerUserID:    bounty.UserID,
		Quantity:        quantity,
		CaseDetails:     details,
		AmountOwedSat:   amountOwed,
		SellerCreditSat: sellerCredit,
	}

	invoice, err := s.ln.AddInvoice(ctx, amountOwed, "case "+c.PublicID.String(), s.cfg.LNDInvoiceExpirySeconds)
	if err != nil {
		return nil, fmt.Errorf("issue invoice: %w", err)
	}
	c.InvoiceHash = invoice.PaymentHash
	c.InvoicePaymentRequest = invoice.PaymentRequest

	if err := s.caseRepo.Create(ctx, c, s.cfg.MaxUnpaidCasesPerBuyer); err != nil {
		// The row never existed; release the invoice so the buyer cannot
		// pay into a void.
		if cancelErr := s.ln.CancelInvoice(ctx, c.InvoiceHash); cancelErr != nil {
			s.log.Warn("cancel invoice after failed case insert",
				zap.String("invoice_hash", c.InvoiceHash), zap.Error(cancelErr))
		}
		return nil, err
	}

	return c, nil
}

// Get is restricted to the two parties and admins.
func (s *CaseService) Get(ctx context.Context, publicID uuid.UUID, userID int64, isAdmin bool) (*models.Case, error) {
	c, err := s.caseRepo.GetByPublicID(ctx, publicID)
	if err != nil {
		return nil, err
	}
	if !isAdmin && c.BuyerUserID != userID && c.SellerUserID != userID {
		return nil, ErrForbidden
	}
	return c, nil
}

func (s *CaseService) ListForBuyer(ctx context.Context, userID int64) ([]*models.Case, error) {
	return s.caseRepo.ListForBuyer(ctx, userID)
}

func (s *CaseService) ListForSeller(ctx context.Context, userID int64) ([]*models.Case, error) {
	return s.caseRepo.ListForSeller(ctx, userID)
}

// Award releases escrow to the seller. Only the seller can award, and
// only a paid, open case qualifies; the guard is a single conditioned
// update so two racing resolutions settle to exactly one winner.
func (s *CaseService) Award(ctx context.Context, publicID uuid.UUID, sellerID int64) error {
	rows, err := s.caseRepo.MarkAwarded(ctx, publicID, sellerID)
	if err != nil {
		return err
	}
	if rows == 0 {
		return repositories.ErrNotTransitionable
	}

	_ = s.publisher.Publish(ctx, events.StreamMarket, events.Event{
		Type:    events.EventCaseAwarded,
		Payload: map[string]any{"case_id": publicID.String()},
	})
	return nil
}

// Cancel closes the case from either side. A paid case turns into a
// buyer refund credit; an unpaid one just disappears from the books, and
// its invoice is canceled best-effort.
func (s *CaseService) Cancel(ctx context.Context, publicID uuid.UUID, userID int64) error {
	c, err := s.caseRepo.GetByPublicID(ctx, publicID)
	if err != nil {
		return err
	}

	var rows int64
	switch userID {
	case c.SellerUserID:
		rows, err = s.caseRepo.MarkCanceledBySeller(ctx, publicID, userID)
	case c.BuyerUserID:
		rows, err = s.caseRepo.MarkCanceledByBuyer(ctx, publicID, userID)
	default:
		return ErrForbidden
	}
	if err != nil {
		return err
	}
	if rows == 0 {
		return repositories.ErrNotTransitionable
	}

	if !c.Paid {
		if err := s.ln.CancelInvoice(ctx, c.InvoiceHash); err != nil {
			s.log.Warn("cancel invoice for canceled case",
				zap.String("invoice_hash", c.InvoiceHash), zap.Error(err))
		}
	}

	_ = s.publisher.Publish(ctx, events.StreamMarket, events.Event{
		Type:    events.EventCaseCanceled,
		Payload: map[string]any{"case_id": publicID.String()},
	})
	return nil
}

// SellerTotals is the caller's own sales record.
func (s *CaseService) SellerTotals(ctx context.Context, userID int64) (*repositories.SellerTotals, error) {
	return s.caseRepo.SellerTotalsForUser(ctx, userID)
}

func (s *CaseService) TopSellers(ctx context.Context, limit int) ([]repositories.SellerTotals, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.caseRepo.TopSellers(ctx, limit)
}

package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/satbounty/backend/internal/auth"
	"github.com/satbounty/backend/internal/config"
	"github.com/satbounty/backend/internal/events"
	"github.com/satbounty/backend/internal/lightning"
	"github.com/satbounty/backend/internal/models"
	"github.com/satbounty/backend/internal/repositories"
)

type AccountService struct {
	userRepo       *repositories.UserRepo
	activationRepo *repositories.ActivationRepo
	caseRepo       *repositories.CaseRepo
	withdrawalRepo *repositories.WithdrawalRepo
	ledgerRepo     *repositories.LedgerRepo
	ln             lightning.Client
	publisher      events.Publisher
	cfg            *config.Config
	log            *zap.Logger
}

func NewAccountService(
	userRepo *repositories.UserRepo,
	activationRepo *repositories.ActivationRepo,
	caseRepo *repositories.CaseRepo,
	withdrawalRepo *repositories.WithdrawalRepo,
	ledgerRepo *repositories.LedgerRepo,
	ln lightning.Client,
	publisher events.Publisher,
	cfg *config.Config,
	log *zap.Logger,
) *AccountService {
	return &AccountService{
		userRepo:       userRepo,
		activationRepo: activationRepo,
		caseRepo:       caseRepo,
		withdrawalRepo: withdrawalRepo,
		ledgerRepo:     ledgerRepo,
		ln:             ln,
		publisher:      publisher,
		cfg:            cfg,
		log:            log,
	}
}

// Register creates the user together with their bond invoice. The account
// stays inactive until the activation invoice settles; if it never does,
// the reaper deletes both rows.
func (s *AccountService) Register(ctx context.Context, username, password string) (*models.User, *models.Activation, string, error) {
	if len(username) < 3 {
		return nil, nil, "", fmt.Errorf("username must be at least 3 characters")
	}
	if len(password) < 8 {
		return nil, nil, "", fmt.Errorf("password must be at least 8 characters")
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, nil, "", err
	}

	u := &models.User{
		PublicID:     uuid.New(),
		Username:     username,
		PasswordHash: hash,
		IsAdmin:      s.cfg.IsAdmin(username),
	}
	if err := s.userRepo.Create(ctx, u, s.cfg.MaxAllowedUsers); err != nil {
		return nil, nil, "", err
	}

	invoice, err := s.ln.AddInvoice(ctx, s.cfg.UserBondSat, "activation "+username, s.cfg.LNDInvoiceExpirySeconds)
	if err != nil {
		// Leave the user row; without an activation the reaper's orphan
		// sweep collects it.
		return nil, nil, "", fmt.Errorf("issue activation invoice: %w", err)
	}

	a := &models.Activation{
		PublicID:              uuid.New(),
		UserID:                u.ID,
		AmountOwedSat:         s.cfg.UserBondSat,
		InvoiceHash:           invoice.PaymentHash,
		InvoicePaymentRequest: invoice.PaymentRequest,
	}
	if err := s.activationRepo.Create(ctx, a); err != nil {
		return nil, nil, "", err
	}

	token, err := auth.GenerateJWT(s.cfg.JWTSecret, u.ID, u.PublicID, u.Username, u.IsAdmin, s.cfg.JWTExpiration)
	if err != nil {
		return nil, nil, "", err
	}
	return u, a, token, nil
}

func (s *AccountService) Login(ctx context.Context, username, password string) (*models.User, string, error) {
	u, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		if repositories.IsNotFound(err) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", err
	}
	if !auth.CheckPassword(u.PasswordHash, password) {
		return nil, "", ErrInvalidCredentials
	}

	token, err := auth.GenerateJWT(s.cfg.JWTSecret, u.ID, u.PublicID, u.Username, u.IsAdmin, s.cfg.JWTExpiration)
	if err != nil {
		return nil, "", err
	}
	return u, token, nil
}

// Info assembles the derived account view: ledger balance, bond state and
// open obligations.
func (s *AccountService) Info(ctx context.Context, userID int64) (*models.AccountInfo, error) {
	u, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	balance, err := s.ledgerRepo.BalanceForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	info := &models.AccountInfo{
		Username:   u.Username,
		BalanceSat: balance,
	}

	activation, err := s.activationRepo.GetByUserID(ctx, userID)
	if err != nil && !repositories.IsNotFound(err) {
		return nil, err
	}
	if activation != nil {
		info.ActivationPaid = activation.Paid
		info.BondSat = activation.AmountOwedSat
	}

	if info.UnresolvedCases, err = s.caseRepo.NumProcessingForUser(ctx, userID); err != nil {
		return nil, err
	}
	if info.UnpaidCases, err = s.caseRepo.NumUnpaidForBuyer(ctx, userID); err != nil {
		return nil, err
	}
	if info.WithdrawalsInWindow, err = s.withdrawalRepo.CountInInterval(ctx, userID, s.cfg.WithdrawalInterval); err != nil {
		return nil, err
	}
	return info, nil
}

func (s *AccountService) Activation(ctx context.Context, userID int64) (*models.Activation, error) {
	return s.activationRepo.GetByUserID(ctx, userID)
}

func (s *AccountService) Ledger(ctx context.Context, userID int64, page int) ([]models.BalanceChange, error) {
	return s.ledgerRepo.ChangesForUser(ctx, userID, page, 50)
}

// Withdraw pays the user-supplied invoice out of their ledger balance.
// The amount comes from the decoded payment request; zero-amount invoices
// are refused because the debit must be known before the send.
func (s *AccountService) Withdrawals(ctx context.Context, userID int64) ([]*models.Withdrawal, error) {
	return s.withdrawalRepo.ListForUser(ctx, userID)
}

func (s *AccountService) Withdraw(ctx context.Context, userID int64, paymentRequest string) (*models.Withdrawal, error) {
	decoded, err := s.ln.DecodePayReq(ctx, paymentRequest)
	if err != nil {
		return nil, fmt.Errorf("decode payment request: %w", err)
	}
	if decoded.AmountSat <= 0 {
		return nil, fmt.Errorf("invoice must carry a concrete amount")
	}

	w := &models.Withdrawal{
		PublicID:              uuid.New(),
		UserID:                userID,
		AmountSat:             decoded.AmountSat,
		InvoicePaymentRequest: paymentRequest,
	}

	send := func(ctx context.Context) (string, error) {
		if _, err := s.ln.SendPayment(ctx, paymentRequest); err != nil {
			return "", err
		}
		return decoded.PaymentHash, nil
	}

	if err := s.withdrawalRepo.DoWithdrawal(ctx, w, s.cfg.MaxWithdrawalsPerInterval, s.cfg.WithdrawalInterval, send); err != nil {
		return nil, err
	}

	_ = s.publisher.Publish(ctx, events.StreamMarket, events.Event{
		Type:    events.EventWithdrawalSent,
		Payload: map[string]any{"withdrawal_id": w.PublicID.String(), "user_id": userID, "amount_sat": w.AmountSat},
	})
	return w, nil
}

// Deactivate closes the account and returns the bond minus the exit fee
// to the supplied invoice. The invoice must ask for exactly that payout.
func (s *AccountService) Deactivate(ctx context.Context, userID int64, paymentRequest string) error {
	decoded, err := s.ln.DecodePayReq(ctx, paymentRequest)
	if err != nil {
		return fmt.Errorf("decode payment request: %w", err)
	}

	send := func(ctx context.Context, payoutSat int64) error {
		if decoded.AmountSat != payoutSat {
			return ErrWrongInvoiceAmount
		}
		_, err := s.ln.SendPayment(ctx, paymentRequest)
		return err
	}

	return s.activationRepo.DoDeactivation(ctx, userID, s.cfg.DeactivationFeeSat, send)
}

// SetActivationDisabled is the admin toggle for a user's market access.
func (s *AccountService) SetActivationDisabled(ctx context.Context, userPublicID uuid.UUID, disabled bool) error {
	if _, err := s.userRepo.GetByPublicID(ctx, userPublicID); err != nil {
		return err
	}

	rows, err := s.activationRepo.SetDisabled(ctx, userPublicID, disabled)
	if err != nil {
		return err
	}
	if rows == 0 {
		return repositories.ErrNotTransitionable
	}
	return nil
}

func (s *AccountService) AllChanges(ctx context.Context, page int) ([]models.BalanceChange, error) {
	return s.ledgerRepo.AllChanges(ctx, page, 100)
}

func (s *AccountService) MarketLiabilities(ctx context.Context) (int64, error) {
	return s.ledgerRepo.MarketLiabilities(ctx)
}

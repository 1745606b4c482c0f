package settlement

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/satbounty/backend/internal/repositories"
)

// repoStore adapts the case and activation repositories to the consumer's
// Store interface.
type repoStore struct {
	cases       *repositories.CaseRepo
	activations *repositories.ActivationRepo
}

func NewStore(cases *repositories.CaseRepo, activations *repositories.ActivationRepo) Store {
	return &repoStore{cases: cases, activations: activations}
}

func (s *repoStore) LatestPaidInvoiceHash(ctx context.Context) (string, bool, error) {
	return s.cases.LatestPaidInvoiceHash(ctx)
}

func (s *repoStore) MarkCasePaid(ctx context.Context, invoiceHash string, paidAt time.Time) (uuid.UUID, int64, bool, error) {
	return s.cases.MarkPaidByInvoiceHash(ctx, invoiceHash, paidAt)
}

func (s *repoStore) MarkActivationPaid(ctx context.Context, invoiceHash string, paidAt time.Time) (int64, bool, error) {
	return s.activations.MarkPaidByInvoiceHash(ctx, invoiceHash, paidAt)
}

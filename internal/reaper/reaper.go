package reaper

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/satbounty/backend/internal/repositories"
)

// CaseStore and ActivationStore are the delete-side slices of the
// repositories. Every delete re-checks NOT paid so the reaper loses
// cleanly to a concurrent settlement.
type CaseStore interface {
	UnpaidOlderThan(ctx context.Context, cutoff time.Time) ([]repositories.ExpiredCase, error)
	DeleteUnpaid(ctx context.Context, id int64) (bool, error)
}

type ActivationStore interface {
	UnpaidOlderThan(ctx context.Context, cutoff time.Time) ([]repositories.ExpiredActivation, error)
	DeleteUnpaidWithUser(ctx context.Context, activationID, userID int64) (bool, error)
}

type UserStore interface {
	DeleteWithoutActivation(ctx context.Context) (int64, error)
}

type InvoiceCanceler interface {
	CancelInvoice(ctx context.Context, paymentHash string) error
}

// Reaper deletes unpaid cases and activations that outlived their
// payment window, holding the ledger's time-bounded-exposure invariant.
type Reaper struct {
	cases       CaseStore
	activations ActivationStore
	users       UserStore
	ln          InvoiceCanceler

	caseWindow       time.Duration
	activationWindow time.Duration
	interval         time.Duration
	log              *zap.Logger
}

func New(cases CaseStore, activations ActivationStore, users UserStore, ln InvoiceCanceler,
	caseWindow, activationWindow, interval time.Duration, log *zap.Logger) *Reaper {
	return &Reaper{
		cases:            cases,
		activations:      activations,
		users:            users,
		ln:               ln,
		caseWindow:       caseWindow,
		activationWindow: activationWindow,
		interval:         interval,
		log:              log,
	}
}

// Run drives one ticker per entity type until the context ends. Sweep
// errors are logged and the next tick tries again.
func (r *Reaper) Run(ctx context.Context) error {
	caseTicker := time.NewTicker(r.interval)
	defer caseTicker.Stop()
	activationTicker := time.NewTicker(r.interval)
	defer activationTicker.Stop()

	r.SweepCases(ctx)
	r.SweepActivations(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-caseTicker.C:
			r.SweepCases(ctx)
		case <-activationTicker.C:
			r.SweepActivations(ctx)
		}
	}
}

// SweepCases deletes unpaid cases past the window. One bad row does not
// stop the sweep, and the invoice is canceled only after the row is
// gone; a row kept by the NOT paid re-check keeps its settled invoice.
func (r *Reaper) SweepCases(ctx context.Context) {
	cutoff := time.Now().Add(-r.caseWindow)
	expired, err := r.cases.UnpaidOlderThan(ctx, cutoff)
	if err != nil {
		r.log.Error("list expired cases", zap.Error(err))
		return
	}

	for _, e := range expired {
		deleted, err := r.cases.DeleteUnpaid(ctx, e.ID)
		if err != nil {
			r.log.Error("delete expired case", zap.Int64("case_id", e.ID), zap.Error(err))
			continue
		}
		if !deleted {
			// Paid between the sweep query and the delete.
			continue
		}
		r.cancelInvoice(ctx, e.InvoiceHash)
		r.log.Info("expired case reaped", zap.Int64("case_id", e.ID))
	}
}

// SweepActivations deletes expired unpaid bonds together with their
// users, then collects any users left without an activation row.
func (r *Reaper) SweepActivations(ctx context.Context) {
	cutoff := time.Now().Add(-r.activationWindow)
	expired, err := r.activations.UnpaidOlderThan(ctx, cutoff)
	if err != nil {
		r.log.Error("list expired activations", zap.Error(err))
		return
	}

	for _, e := range expired {
		deleted, err := r.activations.DeleteUnpaidWithUser(ctx, e.ID, e.UserID)
		if err != nil {
			r.log.Error("delete expired activation",
				zap.Int64("activation_id", e.ID), zap.Error(err))
			continue
		}
		if !deleted {
			continue
		}
		r.cancelInvoice(ctx, e.InvoiceHash)
		r.log.Info("expired activation reaped",
			zap.Int64("activation_id", e.ID), zap.Int64("user_id", e.UserID))
	}

	orphans, err := r.users.DeleteWithoutActivation(ctx)
	if err != nil {
		r.log.Error("delete orphan users", zap.Error(err))
		return
	}
	if orphans > 0 {
		r.log.Info("orphan users removed", zap.Int64("count", orphans))
	}
}

// cancelInvoice is best-effort: the row is already gone and a failed
// cancel only leaves a dangling open invoice on the node.
func (r *Reaper) cancelInvoice(ctx context.Context, hash string) {
	if err := r.ln.CancelInvoice(ctx, hash); err != nil {
		r.log.Warn("cancel invoice", zap.String("invoice_hash", hash), zap.Error(err))
	}
}

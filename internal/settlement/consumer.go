package settlement

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/satbounty/backend/internal/events"
	"github.com/satbounty/backend/internal/lightning"
)

// Store is the slice of persistence the consumer needs. Both mark calls
// are guard-conditioned updates: a miss (already paid, or the hash
// belongs to the other table) reports ok=false, not an error.
type Store interface {
	LatestPaidInvoiceHash(ctx context.Context) (string, bool, error)
	MarkCasePaid(ctx context.Context, invoiceHash string, paidAt time.Time) (casePublicID uuid.UUID, buyerID int64, ok bool, err error)
	MarkActivationPaid(ctx context.Context, invoiceHash string, paidAt time.Time) (userID int64, ok bool, err error)
}

// Consumer applies node-side settlements to the ledger. It is the only
// writer of the paid flags.
type Consumer struct {
	store      Store
	ln         lightning.Client
	publisher  events.Publisher
	retryDelay time.Duration
	log        *zap.Logger
}

func NewConsumer(store Store, ln lightning.Client, publisher events.Publisher, retryDelay time.Duration, log *zap.Logger) *Consumer {
	return &Consumer{
		store:      store,
		ln:         ln,
		publisher:  publisher,
		retryDelay: retryDelay,
		log:        log,
	}
}

// Run keeps a settlement subscription alive until the context ends. Any
// stream or subscribe failure tears the attempt down, waits a fixed
// delay and re-derives the resume position from the database, so crash
// recovery and reconnect are the same code path.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		if err := c.runOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.log.Error("settlement subscription failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.retryDelay):
		}
	}
}

func (c *Consumer) runOnce(ctx context.Context) error {
	startIndex, err := c.resolveStartIndex(ctx)
	if err != nil {
		return err
	}
	c.log.Info("subscribing to settlements", zap.Uint64("settle_index", startIndex))

	stream, err := c.ln.SubscribeSettlements(ctx, startIndex)
	if err != nil {
		return err
	}
	defer stream.Close()

	for {
		inv, err := stream.Recv()
		if err != nil {
			return err
		}
		if err := c.apply(ctx, inv); err != nil {
			return err
		}
	}
}

// resolveStartIndex asks the node for the settle index of the most
// recently applied settlement. No paid records means start from zero and
// let the node replay everything; the guarded updates absorb redelivery.
func (c *Consumer) resolveStartIndex(ctx context.Context) (uint64, error) {
	hash, ok, err := c.store.LatestPaidInvoiceHash(ctx)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}

	inv, err := c.ln.LookupInvoice(ctx, hash)
	if err != nil {
		return 0, err
	}
	return inv.SettleIndex, nil
}

func (c *Consumer) apply(ctx context.Context, inv *lightning.Invoice) error {
	paidAt := inv.SettledAt
	if paidAt.IsZero() {
		paidAt = time.Now().UTC()
	}

	casePublicID, buyerID, ok, err := c.store.MarkCasePaid(ctx, inv.PaymentHash, paidAt)
	if err != nil {
		return err
	}
	if ok {
		c.log.Info("case paid",
			zap.String("case_id", casePublicID.String()),
			zap.Uint64("settle_index", inv.SettleIndex))
		c.publish(ctx, events.EventPaymentReceived, map[string]any{
			"case_id":    casePublicID.String(),
			"user_id":    buyerID,
			"amount_sat": inv.AmountSat,
		})
		return nil
	}

	userID, ok, err := c.store.MarkActivationPaid(ctx, inv.PaymentHash, paidAt)
	if err != nil {
		return err
	}
	if ok {
		c.log.Info("activation paid",
			zap.Int64("user_id", userID),
			zap.Uint64("settle_index", inv.SettleIndex))
		c.publish(ctx, events.EventAccountActivated, map[string]any{
			"user_id":    userID,
			"amount_sat": inv.AmountSat,
		})
		return nil
	}

	// Unknown or already-applied hash: reaped invoice, redelivery after
	// reconnect, or a payment to the node outside the market.
	c.log.Debug("settlement without matching record", zap.String("invoice_hash", inv.PaymentHash))
	return nil
}

func (c *Consumer) publish(ctx context.Context, eventType string, payload map[string]any) {
	if c.publisher == nil {
		return
	}
	if err := c.publisher.Publish(ctx, events.StreamMarket, events.Event{Type: eventType, Payload: payload}); err != nil {
		c.log.Warn("publish settlement event", zap.Error(err))
	}
}

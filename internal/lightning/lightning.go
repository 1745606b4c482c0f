package lightning

import (
	"context"
	"time"
)

// Invoice is the node-side view of a payment request. PaymentHash is hex.
type Invoice struct {
	PaymentHash    string
	PaymentRequest string
	AmountSat      int64
	Settled        bool
	SettleIndex    uint64
	AddIndex       uint64
	SettledAt      time.Time
}

// PayReq is a decoded BOLT11 payment request.
type PayReq struct {
	Destination string
	PaymentHash string
	AmountSat   int64
	Expiry      time.Duration
}

// SettlementStream yields invoices as the node settles them.
// Recv blocks until the next settled invoice or a stream error.
type SettlementStream interface {
	Recv() (*Invoice, error)
	Close() error
}

// Client is the Lightning node surface the platform depends on.
type Client interface {
	AddInvoice(ctx context.Context, amountSat int64, memo string, expirySeconds int) (*Invoice, error)
	LookupInvoice(ctx context.Context, paymentHash string) (*Invoice, error)
	CancelInvoice(ctx context.Context, paymentHash string) error
	DecodePayReq(ctx context.Context, paymentRequest string) (*PayReq, error)
	SendPayment(ctx context.Context, paymentRequest string) (preimageHex string, err error)
	SubscribeSettlements(ctx context.Context, settleIndex uint64) (SettlementStream, error)
}

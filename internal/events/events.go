package events

import "context"

// Event types
const (
	EventPaymentReceived  = "payment_received"
	EventCaseAwarded      = "case_awarded"
	EventCaseCanceled     = "case_canceled"
	EventBountyApproved   = "bounty_approved"
	EventWithdrawalSent   = "withdrawal_sent"
	EventAccountActivated = "account_activated"
)

// StreamMarket is the single pub/sub channel feeding the websocket hub.
const StreamMarket = "market_events"

type Event struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}

type Publisher interface {
	Publish(ctx context.Context, stream string, event Event) error
}

type Subscriber interface {
	Subscribe(ctx context.Context, stream string, handler func(Event)) error
}

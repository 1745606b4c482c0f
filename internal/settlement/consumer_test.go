package settlement

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/satbounty/backend/internal/events"
	"github.com/satbounty/backend/internal/lightning"
)

type fakeStore struct {
	mu          sync.Mutex
	latestHash  string
	cases       map[string]uuid.UUID // unpaid case invoice hash -> public id
	activations map[string]int64     // unpaid activation invoice hash -> user id
	casesPaid   []string
	actsPaid    []string
	err         error
}

func (s *fakeStore) LatestPaidInvoiceHash(ctx context.Context) (string, bool, error) {
	if s.err != nil {
		return "", false, s.err
	}
	return s.latestHash, s.latestHash != "", nil
}

func (s *fakeStore) MarkCasePaid(ctx context.Context, hash string, paidAt time.Time) (uuid.UUID, int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.cases[hash]
	if !ok {
		return uuid.Nil, 0, false, nil
	}
	delete(s.cases, hash)
	s.casesPaid = append(s.casesPaid, hash)
	return id, 1, true, nil
}

func (s *fakeStore) MarkActivationPaid(ctx context.Context, hash string, paidAt time.Time) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	userID, ok := s.activations[hash]
	if !ok {
		return 0, false, nil
	}
	delete(s.activations, hash)
	s.actsPaid = append(s.actsPaid, hash)
	return userID, true, nil
}

type fakeStream struct {
	invoices []*lightning.Invoice
	pos      int
	finalErr error
	closed   bool
}

func (s *fakeStream) Recv() (*lightning.Invoice, error) {
	if s.pos >= len(s.invoices) {
		if s.finalErr != nil {
			return nil, s.finalErr
		}
		return nil, io.EOF
	}
	inv := s.invoices[s.pos]
	s.pos++
	return inv, nil
}

func (s *fakeStream) Close() error {
	s.closed = true
	return nil
}

type fakeClient struct {
	lookup     map[string]*lightning.Invoice
	streams    []*fakeStream
	subscribed []uint64
}

func (c *fakeClient) AddInvoice(ctx context.Context, amountSat int64, memo string, expiry int) (*lightning.Invoice, error) {
	return nil, errors.New("not implemented")
}

func (c *fakeClient) LookupInvoice(ctx context.Context, hash string) (*lightning.Invoice, error) {
	inv, ok := c.lookup[hash]
	if !ok {
		return nil, errors.New("invoice not found")
	}
	return inv, nil
}

func (c *fakeClient) CancelInvoice(ctx context.Context, hash string) error { return nil }

func (c *fakeClient) DecodePayReq(ctx context.Context, payReq string) (*lightning.PayReq, error) {
	return nil, errors.New("not implemented")
}

func (c *fakeClient) SendPayment(ctx context.Context, payReq string) (string, error) {
	return "", errors.New("not implemented")
}

func (c *fakeClient) SubscribeSettlements(ctx context.Context, settleIndex uint64) (lightning.SettlementStream, error) {
	c.subscribed = append(c.subscribed, settleIndex)
	if len(c.streams) == 0 {
		return nil, errors.New("no more streams")
	}
	s := c.streams[0]
	c.streams = c.streams[1:]
	return s, nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *fakePublisher) Publish(ctx context.Context, stream string, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func settled(hash string, index uint64, amount int64) *lightning.Invoice {
	return &lightning.Invoice{
		PaymentHash: hash,
		AmountSat:   amount,
		Settled:     true,
		SettleIndex: index,
		SettledAt:   time.Unix(1700000000, 0),
	}
}

func TestResolveStartIndexFromLatestPaid(t *testing.T) {
	store := &fakeStore{latestHash: "aa"}
	client := &fakeClient{lookup: map[string]*lightning.Invoice{
		"aa": {PaymentHash: "aa", Settled: true, SettleIndex: 42},
	}}
	c := NewConsumer(store, client, nil, time.Millisecond, zap.NewNop())

	idx, err := c.resolveStartIndex(context.Background())
	if err != nil {
		t.Fatalf("resolveStartIndex: %v", err)
	}
	if idx != 42 {
		t.Errorf("start index = %d, want 42", idx)
	}
}

func TestResolveStartIndexEmptyLedger(t *testing.T) {
	c := NewConsumer(&fakeStore{}, &fakeClient{}, nil, time.Millisecond, zap.NewNop())

	idx, err := c.resolveStartIndex(context.Background())
	if err != nil {
		t.Fatalf("resolveStartIndex: %v", err)
	}
	if idx != 0 {
		t.Errorf("start index = %d, want 0", idx)
	}
}

func TestRunOnceAppliesSettlements(t *testing.T) {
	caseID := uuid.New()
	store := &fakeStore{
		cases:       map[string]uuid.UUID{"c1": caseID},
		activations: map[string]int64{"a1": 7},
	}
	stream := &fakeStream{invoices: []*lightning.Invoice{
		settled("c1", 10, 1050),
		settled("a1", 11, 10000),
		settled("unknown", 12, 999), // miss must be tolerated
	}}
	client := &fakeClient{streams: []*fakeStream{stream}}
	pub := &fakePublisher{}
	c := NewConsumer(store, client, pub, time.Millisecond, zap.NewNop())

	err := c.runOnce(context.Background())
	if err != io.EOF {
		t.Fatalf("runOnce error = %v, want io.EOF", err)
	}
	if !stream.closed {
		t.Error("stream should be closed after runOnce")
	}

	if len(store.casesPaid) != 1 || store.casesPaid[0] != "c1" {
		t.Errorf("cases paid = %v, want [c1]", store.casesPaid)
	}
	if len(store.actsPaid) != 1 || store.actsPaid[0] != "a1" {
		t.Errorf("activations paid = %v, want [a1]", store.actsPaid)
	}

	if len(pub.events) != 2 {
		t.Fatalf("published %d events, want 2", len(pub.events))
	}
	if pub.events[0].Type != events.EventPaymentReceived {
		t.Errorf("first event = %s, want %s", pub.events[0].Type, events.EventPaymentReceived)
	}
	if pub.events[1].Type != events.EventAccountActivated {
		t.Errorf("second event = %s, want %s", pub.events[1].Type, events.EventAccountActivated)
	}
}

func TestRunOnceRedeliveryIsIdempotent(t *testing.T) {
	caseID := uuid.New()
	store := &fakeStore{cases: map[string]uuid.UUID{"c1": caseID}}
	// The node replays the same settlement after reconnect.
	stream := &fakeStream{invoices: []*lightning.Invoice{
		settled("c1", 10, 1050),
		settled("c1", 10, 1050),
	}}
	client := &fakeClient{streams: []*fakeStream{stream}}
	pub := &fakePublisher{}
	c := NewConsumer(store, client, pub, time.Millisecond, zap.NewNop())

	if err := c.runOnce(context.Background()); err != io.EOF {
		t.Fatalf("runOnce error = %v, want io.EOF", err)
	}
	if len(store.casesPaid) != 1 {
		t.Errorf("case marked paid %d times, want 1", len(store.casesPaid))
	}
	if len(pub.events) != 1 {
		t.Errorf("published %d events, want 1", len(pub.events))
	}
}

func TestRunReconnectsAfterStreamError(t *testing.T) {
	store := &fakeStore{latestHash: "aa"}
	client := &fakeClient{
		lookup: map[string]*lightning.Invoice{
			"aa": {PaymentHash: "aa", Settled: true, SettleIndex: 5},
		},
		streams: []*fakeStream{
			{finalErr: errors.New("connection reset")},
			{finalErr: errors.New("connection reset")},
		},
	}
	c := NewConsumer(store, client, nil, time.Millisecond, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	err := c.Run(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Run error = %v, want deadline exceeded", err)
	}
	if len(client.subscribed) < 2 {
		t.Fatalf("subscribed %d times, want at least 2", len(client.subscribed))
	}
	for i, idx := range client.subscribed[:2] {
		if idx != 5 {
			t.Errorf("subscribe %d index = %d, want 5", i, idx)
		}
	}
}

package lightning

import (
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"io"
	"strings"
	"testing"
)

func b64hash(hexHash string) string {
	raw, _ := hex.DecodeString(hexHash)
	return base64.StdEncoding.EncodeToString(raw)
}

func TestLndInvoiceConversion(t *testing.T) {
	hash := "aa11bb22cc33dd44ee55ff6600112233445566778899aabbccddeeff00112233"
	in := lndInvoice{
		RHash:          b64hash(hash),
		PaymentRequest: "lnbc10u1p...",
		Value:          "1050",
		Settled:        true,
		SettleIndex:    "42",
		AddIndex:       "7",
		SettleDate:     "1700000000",
	}

	inv, err := in.toInvoice()
	if err != nil {
		t.Fatalf("toInvoice: %v", err)
	}
	if inv.PaymentHash != hash {
		t.Errorf("PaymentHash = %s, want %s", inv.PaymentHash, hash)
	}
	if inv.AmountSat != 1050 {
		t.Errorf("AmountSat = %d, want 1050", inv.AmountSat)
	}
	if !inv.Settled || inv.SettleIndex != 42 || inv.AddIndex != 7 {
		t.Errorf("unexpected settle fields: %+v", inv)
	}
	if inv.SettledAt.IsZero() {
		t.Error("SettledAt should be set when settle_date is present")
	}
}

func TestLndInvoiceConversionBadHash(t *testing.T) {
	in := lndInvoice{RHash: "!!!not-base64!!!"}
	if _, err := in.toInvoice(); err == nil {
		t.Fatal("expected error for invalid r_hash")
	}
}

func TestLndStreamSkipsUnsettled(t *testing.T) {
	hashA := "00112233445566778899aabbccddeeff00112233445566778899aabbccddeeff"
	hashB := "ffeeddccbbaa99887766554433221100ffeeddccbbaa99887766554433221100"
	raw := `{"result":{"r_hash":"` + b64hash(hashA) + `","settled":false,"add_index":"1"}}
{"result":{"r_hash":"` + b64hash(hashB) + `","settled":true,"settle_index":"9","value":"500"}}
`
	s := newTestStream(raw)

	inv, err := s.Recv()
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if inv.PaymentHash != hashB {
		t.Errorf("Recv skipped to wrong invoice: %s", inv.PaymentHash)
	}
	if inv.SettleIndex != 9 {
		t.Errorf("SettleIndex = %d, want 9", inv.SettleIndex)
	}

	if _, err := s.Recv(); err != io.EOF {
		t.Errorf("expected EOF after stream end, got %v", err)
	}
}

func TestLndStreamErrorEnvelope(t *testing.T) {
	s := newTestStream(`{"error":{"message":"permission denied"}}` + "\n")
	if _, err := s.Recv(); err == nil || !strings.Contains(err.Error(), "permission denied") {
		t.Errorf("expected stream error, got %v", err)
	}
}

func newTestStream(raw string) *lndStream {
	r := io.NopCloser(strings.NewReader(raw))
	return &lndStream{body: r, dec: json.NewDecoder(r)}
}

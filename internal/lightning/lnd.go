package lightning

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// LNDClient talks to lnd's REST proxy. All amounts and indexes come back
// as decimal strings on the wire, hashes as base64.
type LNDClient struct {
	baseURL      string
	macaroonHex  string
	httpClient   *http.Client // with timeout, for unary calls
	streamClient *http.Client // no timeout, for subscriptions
	log          *zap.Logger
}

func NewLNDClient(host, tlsCertPath, macaroonPath string, log *zap.Logger) (*LNDClient, error) {
	tlsCfg := &tls.Config{}
	if tlsCertPath != "" {
		pem, err := os.ReadFile(tlsCertPath)
		if err != nil {
			return nil, fmt.Errorf("read lnd tls cert: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("lnd tls cert %s: no certificates found", tlsCertPath)
		}
		tlsCfg.RootCAs = pool
	}

	var macaroonHex string
	if macaroonPath != "" {
		mac, err := os.ReadFile(macaroonPath)
		if err != nil {
			return nil, fmt.Errorf("read lnd macaroon: %w", err)
		}
		macaroonHex = hex.EncodeToString(mac)
	}

	transport := &http.Transport{TLSClientConfig: tlsCfg}
	return &LNDClient{
		baseURL:      strings.TrimRight(host, "/"),
		macaroonHex:  macaroonHex,
		httpClient:   &http.Client{Timeout: 30 * time.Second, Transport: transport},
		streamClient: &http.Client{Transport: transport},
		log:          log,
	}, nil
}

type lndInvoice struct {
	RHash          string `json:"r_hash"`
	PaymentRequest string `json:"payment_request"`
	Value          string `json:"value"`
	Settled        bool   `json:"settled"`
	SettleIndex    string `json:"settle_index"`
	AddIndex       string `json:"add_index"`
	SettleDate     string `json:"settle_date"`
}

func (in *lndInvoice) toInvoice() (*Invoice, error) {
	hashRaw, err := base64.StdEncoding.DecodeString(in.RHash)
	if err != nil {
		return nil, fmt.Errorf("decode r_hash: %w", err)
	}
	inv := &Invoice{
		PaymentHash:    hex.EncodeToString(hashRaw),
		PaymentRequest: in.PaymentRequest,
		AmountSat:      parseInt64(in.Value),
		Settled:        in.Settled,
		SettleIndex:    parseUint64(in.SettleIndex),
		AddIndex:       parseUint64(in.AddIndex),
	}
	if ts := parseInt64(in.SettleDate); ts > 0 {
		inv.SettledAt = time.Unix(ts, 0).UTC()
	}
	return inv, nil
}

func (c *LNDClient) AddInvoice(ctx context.Context, amountSat int64, memo string, expirySeconds int) (*Invoice, error) {
	body := map[string]any{
		"value":  strconv.FormatInt(amountSat, 10),
		"memo":   memo,
		"expiry": strconv.Itoa(expirySeconds),
	}
	var out lndInvoice
	if err := c.call(ctx, http.MethodPost, "/v1/invoices", body, &out); err != nil {
		return nil, err
	}
	inv, err := out.toInvoice()
	if err != nil {
		return nil, err
	}
	inv.AmountSat = amountSat
	return inv, nil
}

func (c *LNDClient) LookupInvoice(ctx context.Context, paymentHash string) (*Invoice, error) {
	var out lndInvoice
	if err := c.call(ctx, http.MethodGet, "/v1/invoice/"+paymentHash, nil, &out); err != nil {
		return nil, err
	}
	return out.toInvoice()
}

func (c *LNDClient) CancelInvoice(ctx context.Context, paymentHash string) error {
	hashRaw, err := hex.DecodeString(paymentHash)
	if err != nil {
		return fmt.Errorf("decode payment hash: %w", err)
	}
	body := map[string]any{"payment_hash": base64.StdEncoding.EncodeToString(hashRaw)}
	return c.call(ctx, http.MethodPost, "/v2/invoices/cancel", body, &struct{}{})
}

func (c *LNDClient) DecodePayReq(ctx context.Context, paymentRequest string) (*PayReq, error) {
	var out struct {
		Destination string `json:"destination"`
		PaymentHash string `json:"payment_hash"`
		NumSatoshis string `json:"num_satoshis"`
		Expiry      string `json:"expiry"`
	}
	if err := c.call(ctx, http.MethodGet, "/v1/payreq/"+paymentRequest, nil, &out); err != nil {
		return nil, err
	}
	return &PayReq{
		Destination: out.Destination,
		PaymentHash: out.PaymentHash,
		AmountSat:   parseInt64(out.NumSatoshis),
		Expiry:      time.Duration(parseInt64(out.Expiry)) * time.Second,
	}, nil
}

func (c *LNDClient) SendPayment(ctx context.Context, paymentRequest string) (string, error) {
	body := map[string]any{"payment_request": paymentRequest}
	var out struct {
		PaymentError    string `json:"payment_error"`
		PaymentPreimage string `json:"payment_preimage"`
	}
	if err := c.call(ctx, http.MethodPost, "/v1/channels/transactions", body, &out); err != nil {
		return "", err
	}
	if out.PaymentError != "" {
		return "", fmt.Errorf("lnd payment failed: %s", out.PaymentError)
	}
	preimageRaw, err := base64.StdEncoding.DecodeString(out.PaymentPreimage)
	if err != nil {
		return "", fmt.Errorf("decode payment preimage: %w", err)
	}
	return hex.EncodeToString(preimageRaw), nil
}

func (c *LNDClient) SubscribeSettlements(ctx context.Context, settleIndex uint64) (SettlementStream, error) {
	url := fmt.Sprintf("%s/v1/invoices/subscribe?settle_index=%d", c.baseURL, settleIndex)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Grpc-Metadata-macaroon", c.macaroonHex)

	resp, err := c.streamClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("lnd unavailable: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("lnd returned %d: %s", resp.StatusCode, string(body))
	}

	return &lndStream{body: resp.Body, dec: json.NewDecoder(resp.Body)}, nil
}

// lndStream reads the newline-delimited JSON stream the REST proxy
// produces for server-streaming RPCs. Each line wraps the invoice in
// a "result" envelope.
type lndStream struct {
	body io.ReadCloser
	dec  *json.Decoder
}

func (s *lndStream) Recv() (*Invoice, error) {
	for {
		var envelope struct {
			Result *lndInvoice `json:"result"`
			Error  *struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		if err := s.dec.Decode(&envelope); err != nil {
			return nil, err
		}
		if envelope.Error != nil {
			return nil, fmt.Errorf("lnd stream error: %s", envelope.Error.Message)
		}
		if envelope.Result == nil {
			continue
		}
		inv, err := envelope.Result.toInvoice()
		if err != nil {
			return nil, err
		}
		// Subscription also fires on invoice creation; only settlements matter.
		if !inv.Settled {
			continue
		}
		return inv, nil
	}
}

func (s *lndStream) Close() error {
	return s.body.Close()
}

func (c *LNDClient) call(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Grpc-Metadata-macaroon", c.macaroonHex)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("lnd unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("lnd returned %d: %s", resp.StatusCode, string(raw))
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

func parseInt64(s string) int64 {
	v, _ := strconv.ParseInt(s, 10, 64)
	return v
}

func parseUint64(s string) uint64 {
	v, _ := strconv.ParseUint(s, 10, 64)
	return v
}

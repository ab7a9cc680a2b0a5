// Package gateway implements the HTTP client for the external payment
// gateway. The wire contract is the Zarinpal v4 shape: a request call that
// yields an authority token, a redirect URL built from that token, and a
// verify call that settles by (amount, authority) and returns a ref id.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/vitrino/marketplace/internal/domain"
)

// StatusOK is the gateway's success code for both request and verify calls.
// Verify also returns StatusAlreadyVerified when the same authority is
// verified twice on the gateway side.
const (
	StatusOK              = 100
	StatusAlreadyVerified = 101
)

// Client is the outbound interface the payment service depends on. The
// concrete implementation talks HTTP; tests substitute a stub.
type Client interface {
	// Request registers a payment and returns the gateway authority token.
	Request(ctx context.Context, amount decimal.Decimal, description, callbackURL string) (string, error)
	// Verify settles a payment by amount and authority.
	Verify(ctx context.Context, amount decimal.Decimal, authority string) (*VerifyResult, error)
	// PaymentURL builds the redirect URL the payer is sent to.
	PaymentURL(authority string) string
}

// VerifyResult is the gateway's answer to a verify call. Code is the raw
// gateway code; RefID is the settlement reference, set only on success;
// Amount is what the gateway reports it settled, zero when absent.
type VerifyResult struct {
	Code   int
	RefID  string
	Amount decimal.Decimal
}

// Succeeded reports whether the gateway confirmed the payment.
func (r *VerifyResult) Succeeded() bool {
	return r.Code == StatusOK || r.Code == StatusAlreadyVerified
}

// ──────────────────────────────────────────────────────────────────────────────
// HTTP client
// ──────────────────────────────────────────────────────────────────────────────

// HTTPClient talks to the real gateway over HTTPS.
type HTTPClient struct {
	baseURL        string
	paymentBaseURL string
	merchantID     string
	http           *http.Client
}

// NewHTTPClient builds a gateway client. timeout bounds every call; the
// payment service never holds database locks across these calls, so the
// bound is a user-experience concern, not a correctness one.
func NewHTTPClient(baseURL, paymentBaseURL, merchantID string, httpc *http.Client) *HTTPClient {
	if httpc == nil {
		httpc = http.DefaultClient
	}
	return &HTTPClient{
		baseURL:        baseURL,
		paymentBaseURL: paymentBaseURL,
		merchantID:     merchantID,
		http:           httpc,
	}
}

type requestPayload struct {
	MerchantID  string `json:"merchant_id"`
	Amount      int64  `json:"amount"`
	CallbackURL string `json:"callback_url"`
	Description string `json:"description"`
}

type requestResponse struct {
	Data struct {
		Code      int    `json:"code"`
		Authority string `json:"authority"`
	} `json:"data"`
	Errors json.RawMessage `json:"errors"`
}

// Request registers a payment with the gateway and returns the authority.
func (c *HTTPClient) Request(ctx context.Context, amount decimal.Decimal, description, callbackURL string) (string, error) {
	body := requestPayload{
		MerchantID:  c.merchantID,
		Amount:      amount.IntPart(),
		CallbackURL: callbackURL,
		Description: description,
	}
	var resp requestResponse
	if err := c.post(ctx, "/payment/request.json", body, &resp); err != nil {
		return "", err
	}
	if resp.Data.Code != StatusOK || resp.Data.Authority == "" {
		return "", fmt.Errorf("%w: request rejected with code %d", domain.ErrGatewayCommunication, resp.Data.Code)
	}
	return resp.Data.Authority, nil
}

type verifyPayload struct {
	MerchantID string `json:"merchant_id"`
	Amount     int64  `json:"amount"`
	Authority  string `json:"authority"`
}

type verifyResponse struct {
	Data struct {
		Code   int   `json:"code"`
		RefID  int64 `json:"ref_id"`
		Amount int64 `json:"amount"`
	} `json:"data"`
	Errors json.RawMessage `json:"errors"`
}

// Verify settles a payment. A non-success gateway code is returned in the
// result, not as an error: only transport and decoding failures error out,
// so the caller can tell "gateway said no" from "gateway unreachable".
// Amount carries the gateway-reported figure off the wire, never the amount
// the caller asked about; a response with no amount field yields zero, which
// the caller's integrity check rejects.
func (c *HTTPClient) Verify(ctx context.Context, amount decimal.Decimal, authority string) (*VerifyResult, error) {
	body := verifyPayload{
		MerchantID: c.merchantID,
		Amount:     amount.IntPart(),
		Authority:  authority,
	}
	var resp verifyResponse
	if err := c.post(ctx, "/payment/verify.json", body, &resp); err != nil {
		return nil, err
	}
	res := &VerifyResult{
		Code:   resp.Data.Code,
		Amount: decimal.NewFromInt(resp.Data.Amount),
	}
	if res.Succeeded() {
		res.RefID = fmt.Sprintf("%d", resp.Data.RefID)
	}
	return res, nil
}

// PaymentURL builds the redirect URL for an authority token.
func (c *HTTPClient) PaymentURL(authority string) string {
	return fmt.Sprintf("%s/%s", c.paymentBaseURL, authority)
}

func (c *HTTPClient) post(ctx context.Context, path string, in, out any) error {
	raw, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("gateway: marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("gateway: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrGatewayCommunication, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: gateway returned %d", domain.ErrGatewayCommunication, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", domain.ErrGatewayCommunication, err)
	}
	return nil
}

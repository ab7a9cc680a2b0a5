package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/vitrino/marketplace/internal/domain"
)

func newTestClient(handler http.HandlerFunc) (*HTTPClient, *httptest.Server) {
	srv := httptest.NewServer(handler)
	c := NewHTTPClient(srv.URL, "https://pay.example.com/start", "merchant-1", srv.Client())
	return c, srv
}

func TestRequest_ReturnsAuthority(t *testing.T) {
	var got requestPayload
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/payment/request.json" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{"code": 100, "authority": "A0001"},
		})
	})
	defer srv.Close()

	auth, err := c.Request(context.Background(), decimal.NewFromInt(500000), "subscription", "http://cb")
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if auth != "A0001" {
		t.Fatalf("authority = %q, want A0001", auth)
	}
	if got.Amount != 500000 || got.MerchantID != "merchant-1" {
		t.Fatalf("payload = %+v", got)
	}
}

func TestRequest_RejectedCode(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{"code": -9, "authority": ""},
		})
	})
	defer srv.Close()

	_, err := c.Request(context.Background(), decimal.NewFromInt(100), "x", "http://cb")
	if !errors.Is(err, domain.ErrGatewayCommunication) {
		t.Fatalf("want ErrGatewayCommunication, got %v", err)
	}
}

func TestRequest_ServerDown(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {})
	srv.Close() // connection refused from here on

	_, err := c.Request(context.Background(), decimal.NewFromInt(100), "x", "http://cb")
	if !errors.Is(err, domain.ErrGatewayCommunication) {
		t.Fatalf("want ErrGatewayCommunication, got %v", err)
	}
}

func TestVerify_Success(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/payment/verify.json" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{"code": 100, "ref_id": 987654, "amount": 500000},
		})
	})
	defer srv.Close()

	res, err := c.Verify(context.Background(), decimal.NewFromInt(500000), "A0001")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !res.Succeeded() {
		t.Fatal("expected success")
	}
	if res.RefID != "987654" {
		t.Fatalf("ref id = %q", res.RefID)
	}
	if !res.Amount.Equal(decimal.NewFromInt(500000)) {
		t.Fatalf("amount = %s, want 500000", res.Amount)
	}
}

func TestVerify_AmountComesFromTheWire(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{"code": 100, "ref_id": 987654, "amount": 40000},
		})
	})
	defer srv.Close()

	res, err := c.Verify(context.Background(), decimal.NewFromInt(50000), "A0001")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !res.Amount.Equal(decimal.NewFromInt(40000)) {
		t.Fatalf("amount = %s, want the gateway-reported 40000", res.Amount)
	}
}

func TestVerify_MissingAmountYieldsZero(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{"code": 100, "ref_id": 987654},
		})
	})
	defer srv.Close()

	res, err := c.Verify(context.Background(), decimal.NewFromInt(50000), "A0001")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !res.Amount.IsZero() {
		t.Fatalf("amount = %s, want zero for a response without an amount", res.Amount)
	}
}

func TestVerify_RejectionIsNotAnError(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{"code": -51, "ref_id": 0},
		})
	})
	defer srv.Close()

	res, err := c.Verify(context.Background(), decimal.NewFromInt(100), "A0001")
	if err != nil {
		t.Fatalf("rejection must not be a transport error: %v", err)
	}
	if res.Succeeded() {
		t.Fatal("code -51 must not count as success")
	}
	if res.RefID != "" {
		t.Fatalf("ref id should be empty on rejection, got %q", res.RefID)
	}
}

func TestVerify_GatewayError500(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	defer srv.Close()

	_, err := c.Verify(context.Background(), decimal.NewFromInt(100), "A0001")
	if !errors.Is(err, domain.ErrGatewayCommunication) {
		t.Fatalf("want ErrGatewayCommunication, got %v", err)
	}
}

func TestPaymentURL(t *testing.T) {
	c := NewHTTPClient("https://api", "https://pay.example.com/start", "m", nil)
	if got := c.PaymentURL("A0001"); got != "https://pay.example.com/start/A0001" {
		t.Fatalf("PaymentURL = %q", got)
	}
}

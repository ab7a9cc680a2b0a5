package domain

import (
	"errors"
	"testing"
	"time"
)

func TestPaymentTarget_IsValid(t *testing.T) {
	for _, tgt := range AllTargets {
		if !tgt.IsValid() {
			t.Errorf("target %q should be valid", tgt)
		}
	}
	for _, tgt := range []PaymentTarget{"", "subscription", "ADVERTISEMENT", "wallets"} {
		if tgt.IsValid() {
			t.Errorf("target %q should be invalid", tgt)
		}
	}
}

func TestGatewayTransaction_Verified(t *testing.T) {
	gt := GatewayTransaction{}
	if gt.Verified() {
		t.Fatal("fresh gateway transaction should not be verified")
	}
	ref := "12345"
	gt.TransactionID = &ref
	if !gt.Verified() {
		t.Fatal("transaction with ref id should be verified")
	}
}

func TestMarket_ValidateGatewaySelection(t *testing.T) {
	m := Market{GatewayKind: GatewayPlatform}
	if err := m.ValidateGatewaySelection(); err != nil {
		t.Fatalf("platform gateway needs no config: %v", err)
	}

	m = Market{GatewayKind: GatewayPersonal}
	if err := m.ValidateGatewaySelection(); !errors.Is(err, ErrMissingGatewayConfig) {
		t.Fatalf("want ErrMissingGatewayConfig, got %v", err)
	}

	m.PersonalGateway = GatewayConfig{"merchant_id": "abc"}
	if err := m.ValidateGatewaySelection(); err != nil {
		t.Fatalf("configured personal gateway should pass: %v", err)
	}

	m = Market{GatewayKind: GatewayKind("paypal")}
	if err := m.ValidateGatewaySelection(); !errors.Is(err, ErrValidation) {
		t.Fatalf("want ErrValidation for unknown kind, got %v", err)
	}
}

func TestMarket_SubscriptionExpired(t *testing.T) {
	now := time.Now()
	m := Market{}
	if m.SubscriptionExpired(now) {
		t.Fatal("nil end date never expires")
	}
	past := now.Add(-time.Hour)
	m.SubscriptionEndsAt = &past
	if !m.SubscriptionExpired(now) {
		t.Fatal("past end date should be expired")
	}
	future := now.Add(time.Hour)
	m.SubscriptionEndsAt = &future
	if m.SubscriptionExpired(now) {
		t.Fatal("future end date should not be expired")
	}
}

func TestGatewayConfig_ValueScanRoundTrip(t *testing.T) {
	cfg := GatewayConfig{"merchant_id": "m-1", "api_key": "k-1"}
	v, err := cfg.Value()
	if err != nil {
		t.Fatalf("Value: %v", err)
	}
	var back GatewayConfig
	if err := back.Scan(v); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if back["merchant_id"] != "m-1" || back["api_key"] != "k-1" {
		t.Fatalf("round trip lost data: %v", back)
	}

	var empty GatewayConfig
	if err := empty.Scan(nil); err != nil {
		t.Fatalf("Scan(nil): %v", err)
	}
	if empty != nil {
		t.Fatal("scanning NULL should leave the map nil")
	}
}

func TestErrorClassification(t *testing.T) {
	cases := []struct {
		err  error
		fn   func(error) bool
		want bool
		name string
	}{
		{ErrNotFound, IsNotFound, true, "IsNotFound(ErrNotFound)"},
		{ErrAlreadyProcessed, IsConflict, true, "IsConflict(ErrAlreadyProcessed)"},
		{ErrInvalidTransition, IsConflict, true, "IsConflict(ErrInvalidTransition)"},
		{ErrApprovalDecided, IsConflict, true, "IsConflict(ErrApprovalDecided)"},
		{ErrInvalidTarget, IsValidation, true, "IsValidation(ErrInvalidTarget)"},
		{ErrSameWallet, IsValidation, true, "IsValidation(ErrSameWallet)"},
		{ErrMissingGatewayConfig, IsValidation, true, "IsValidation(ErrMissingGatewayConfig)"},
		{ErrTokenExpired, IsAuthError, true, "IsAuthError(ErrTokenExpired)"},
		{ErrInsufficientBalance, IsValidation, false, "IsValidation(ErrInsufficientBalance)"},
		{ErrGatewayCommunication, IsConflict, false, "IsConflict(ErrGatewayCommunication)"},
	}
	for _, c := range cases {
		if got := c.fn(c.err); got != c.want {
			t.Errorf("%s = %v, want %v", c.name, got, c.want)
		}
	}
}

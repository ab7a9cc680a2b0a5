package domain

import (
	"errors"
	"testing"
)

func TestValidateGatewaySelection(t *testing.T) {
	cases := []struct {
		name    string
		kind    GatewayKind
		cfg     GatewayConfig
		wantErr error
	}{
		{"platform needs no config", GatewayPlatform, nil, nil},
		{"personal with url", GatewayPersonal, GatewayConfig{GatewayURLKey: "https://m.example.com/pay"}, nil},
		{"personal without config", GatewayPersonal, nil, ErrMissingGatewayConfig},
		{"personal with empty config", GatewayPersonal, GatewayConfig{}, ErrMissingGatewayConfig},
		{"personal missing the url key", GatewayPersonal, GatewayConfig{"merchant_id": "m-1"}, ErrMissingGatewayConfig},
		{"personal with blank url", GatewayPersonal, GatewayConfig{GatewayURLKey: ""}, ErrMissingGatewayConfig},
		{"unknown kind", GatewayKind("paypal"), nil, ErrValidation},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			m := &Market{GatewayKind: c.kind, PersonalGateway: c.cfg}
			err := m.ValidateGatewaySelection()
			if c.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, c.wantErr) {
				t.Fatalf("want %v, got %v", c.wantErr, err)
			}
		})
	}
}

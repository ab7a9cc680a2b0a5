// Package api_test runs HTTP-level smoke tests using net/http/httptest.
// These tests do NOT require a PostgreSQL database — they verify:
//   - Gin router routing and middleware wiring
//   - Request validation error responses (400)
//   - JWT auth middleware (401 without token, 401 with bad token)
//   - Response format consistency (success/error envelope)
//   - CORS preflight handling
package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/vitrino/marketplace/internal/api"
	"github.com/vitrino/marketplace/internal/config"
	"github.com/vitrino/marketplace/internal/domain"
	"github.com/vitrino/marketplace/internal/gateway"
	"github.com/vitrino/marketplace/internal/repository"
	"github.com/vitrino/marketplace/internal/service"
)

// ── Test helpers ──────────────────────────────────────────────────────────────

func testCfg() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Env:  "development",
			Port: "8080",
		},
		JWT: config.JWTConfig{
			AccessSecret:  "test-access-secret-abcdefghijklmnop",
			RefreshSecret: "test-refresh-secret-abcdefghijklmnop",
			AccessTTL:     15 * time.Minute,
			RefreshTTL:    30 * 24 * time.Hour,
		},
		Market: config.MarketConfig{
			BaseDomain:      "vitrino.local",
			SubscriptionFee: "500000",
		},
	}
}

// buildTestRouter creates a Gin engine with a real AuthService (no DB needed
// for token parsing) and nil for everything that requires a DB.
func buildTestRouter(t *testing.T) http.Handler {
	t.Helper()
	cfg := testCfg()
	// NewAuthService with nil DB works for ParseAccessToken (secret-only op)
	authSvc := service.NewAuthService(nil, nil, cfg)

	return api.SetupRouter(api.RouterDeps{
		AuthSvc: authSvc,
		Cfg:     cfg,
	})
}

func do(t *testing.T, h http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	buf := bytes.NewBufferString(body)
	req := httptest.NewRequest(method, path, buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&m); err != nil {
		t.Fatalf("response is not valid JSON: %v — body: %s", err, rr.Body.String())
	}
	return m
}

// ── /health and /metrics ──────────────────────────────────────────────────────

func TestHealthEndpoint(t *testing.T) {
	h := buildTestRouter(t)
	rr := do(t, h, http.MethodGet, "/health", "", nil)
	if rr.Code != http.StatusOK {
		t.Errorf("GET /health = %d, want 200", rr.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h := buildTestRouter(t)
	rr := do(t, h, http.MethodGet, "/metrics", "", nil)
	if rr.Code != http.StatusOK {
		t.Errorf("GET /metrics = %d, want 200", rr.Code)
	}
}

// ── Auth endpoints — validation layer ─────────────────────────────────────────

func TestRegister_MissingFields(t *testing.T) {
	h := buildTestRouter(t)
	rr := do(t, h, http.MethodPost, "/api/auth/register", `{}`, nil)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("POST /api/auth/register empty body = %d, want 400", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["success"] != false {
		t.Errorf("response.success should be false on error, got %v", body["success"])
	}
	if body["code"] == nil {
		t.Errorf("error envelope missing 'code', got: %v", body)
	}
}

func TestRegister_InvalidEmail(t *testing.T) {
	h := buildTestRouter(t)
	payload := `{"username":"shopkeeper","email":"notanemail","password":"password123"}`
	rr := do(t, h, http.MethodPost, "/api/auth/register", payload, nil)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("register with invalid email = %d, want 400", rr.Code)
	}
}

func TestRegister_ShortPassword(t *testing.T) {
	h := buildTestRouter(t)
	payload := `{"username":"shopkeeper","email":"user@example.com","password":"short"}`
	rr := do(t, h, http.MethodPost, "/api/auth/register", payload, nil)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("register with short password = %d, want 400", rr.Code)
	}
}

func TestLogin_MissingFields(t *testing.T) {
	h := buildTestRouter(t)
	rr := do(t, h, http.MethodPost, "/api/auth/login", `{}`, nil)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("POST /api/auth/login empty = %d, want 400", rr.Code)
	}
}

// ── JWT auth middleware (no token → 401) ──────────────────────────────────────

func TestMe_NoToken_Returns401(t *testing.T) {
	h := buildTestRouter(t)
	rr := do(t, h, http.MethodGet, "/api/me", "", nil)
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("GET /api/me without token = %d, want 401", rr.Code)
	}
}

func TestCreateMarket_NoToken_Returns401(t *testing.T) {
	h := buildTestRouter(t)
	payload := `{"title":"My Shop","gateway_kind":"platform"}`
	rr := do(t, h, http.MethodPost, "/api/markets", payload, nil)
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("POST /api/markets without token = %d, want 401", rr.Code)
	}
}

func TestCreatePayment_NoToken_Returns401(t *testing.T) {
	h := buildTestRouter(t)
	payload := `{"target":"wallet","target_id":"11111111-1111-1111-1111-111111111111","amount":"100.00"}`
	rr := do(t, h, http.MethodPost, "/api/payments", payload, nil)
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("POST /api/payments without token = %d, want 401", rr.Code)
	}
}

func TestWalletBalance_NoToken_Returns401(t *testing.T) {
	h := buildTestRouter(t)
	rr := do(t, h, http.MethodGet, "/api/wallet/balance", "", nil)
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("GET /api/wallet/balance without token = %d, want 401", rr.Code)
	}
}

func TestWalletTransfer_NoToken_Returns401(t *testing.T) {
	h := buildTestRouter(t)
	payload := `{"to_wallet_id":"11111111-1111-1111-1111-111111111111","amount":"100.00"}`
	rr := do(t, h, http.MethodPost, "/api/wallet/transfer", payload, nil)
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("POST /api/wallet/transfer without token = %d, want 401", rr.Code)
	}
}

// ── JWT auth middleware (invalid token → 401) ─────────────────────────────────

func TestMe_InvalidToken_Returns401(t *testing.T) {
	h := buildTestRouter(t)
	rr := do(t, h, http.MethodGet, "/api/me", "", map[string]string{
		"Authorization": "Bearer not.a.valid.jwt",
	})
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("GET /api/me with bad JWT = %d, want 401", rr.Code)
	}
}

func TestCreatePayment_InvalidToken_Returns401(t *testing.T) {
	h := buildTestRouter(t)
	payload := `{"target":"wallet","target_id":"11111111-1111-1111-1111-111111111111","amount":"100.00"}`
	// A well-formed JWT header+payload but wrong secret → ParseAccessToken will reject it
	fakeJWT := "eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9" +
		".eyJzdWIiOiIxMjM0NTY3ODkwIiwicm9sZSI6Im93bmVyIiwidHlwZSI6ImFjY2VzcyJ9" +
		".BADSIG"
	rr := do(t, h, http.MethodPost, "/api/payments", payload, map[string]string{
		"Authorization": "Bearer " + fakeJWT,
	})
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("POST /api/payments with invalid JWT = %d, want 401", rr.Code)
	}
}

// ── Public endpoints ──────────────────────────────────────────────────────────

func TestStorefrontResolve_IsPublic(t *testing.T) {
	h := buildTestRouter(t)
	// Empty hostname: 400 from the handler, not 401 from auth middleware.
	rr := do(t, h, http.MethodGet, "/api/storefronts/resolve", "", nil)
	if rr.Code == http.StatusUnauthorized {
		t.Error("GET /api/storefronts/resolve should be a public endpoint (no 401)")
	}
	if rr.Code != http.StatusBadRequest {
		t.Errorf("resolve without hostname = %d, want 400", rr.Code)
	}
}

func TestPaymentCallback_IsPublic(t *testing.T) {
	h := buildTestRouter(t)
	// Missing Authority: 400 from the handler, not 401.
	rr := do(t, h, http.MethodGet, "/api/payments/callback", "", nil)
	if rr.Code == http.StatusUnauthorized {
		t.Error("GET /api/payments/callback should be public (no 401)")
	}
	if rr.Code != http.StatusBadRequest {
		t.Errorf("callback without Authority = %d, want 400", rr.Code)
	}
}

func TestPaymentCallback_NOKDoesNotNeedDB(t *testing.T) {
	h := buildTestRouter(t)
	rr := do(t, h, http.MethodGet, "/api/payments/callback?Authority=A1&Status=NOK", "", nil)
	if rr.Code != http.StatusPaymentRequired {
		t.Errorf("NOK callback = %d, want 402", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["code"] != "ERR_PAYMENT_CANCELLED" {
		t.Errorf("NOK callback code = %v, want ERR_PAYMENT_CANCELLED", body["code"])
	}
	if body["error"] != "payment was cancelled" {
		t.Errorf("NOK callback message = %v, want the fixed category message", body["error"])
	}
}

// A rejected verification must not surface gateway codes to the payer.
func TestPaymentCallback_FailureMessageIsGeneric(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer mockDB.Close()
	db := sqlx.NewDb(mockDB, "sqlmock")

	cfg := testCfg()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	paymentSvc := service.NewPaymentService(db,
		repository.NewPaymentRepository(db),
		repository.NewCommerceRepository(db),
		repository.NewWalletRepository(db),
		repository.NewMarketRepository(db),
		rejectingGateway{code: -51},
		service.NewLedgerService(db, repository.NewWalletRepository(db), log),
		service.NewWorkflowService(db, repository.NewMarketRepository(db), log),
		cfg, log)

	h := api.SetupRouter(api.RouterDeps{
		AuthSvc:    service.NewAuthService(nil, nil, cfg),
		PaymentSvc: paymentSvc,
		Cfg:        cfg,
	})

	gtID, paymentID, payerID := uuid.New(), uuid.New(), uuid.New()
	now := time.Now()
	mock.ExpectQuery(`SELECT \* FROM gateway_transactions WHERE authority = \$1`).
		WithArgs("A51").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "payment_id", "authority", "transaction_id", "status_code", "verified_at", "created_at",
		}).AddRow(gtID.String(), paymentID.String(), "A51", nil, nil, nil, now))
	mock.ExpectQuery(`SELECT \* FROM payments WHERE id = \$1`).
		WithArgs(paymentID).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "payer_id", "target", "target_id", "amount", "status",
			"gateway_kind", "idempotency_key", "description", "created_at", "updated_at",
		}).AddRow(paymentID.String(), payerID.String(), "wallet", uuid.New().String(),
			"50000", "pending", "platform", nil, "", now, now))
	mock.ExpectExec(`UPDATE gateway_transactions\s+SET status_code = \$1`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE payments SET status = \$1`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	rr := do(t, h, http.MethodGet, "/api/payments/callback?Authority=A51&Status=OK", "", nil)
	if rr.Code != http.StatusPaymentRequired {
		t.Fatalf("rejected callback = %d, want 402", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["code"] != "ERR_PAYMENT_FAILED" {
		t.Errorf("code = %v, want ERR_PAYMENT_FAILED", body["code"])
	}
	if body["error"] != "payment was not completed" {
		t.Errorf("message = %v, want the fixed category message", body["error"])
	}
	if msg, _ := body["error"].(string); strings.Contains(msg, "-51") {
		t.Errorf("gateway code leaked to the payer: %q", msg)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

// rejectingGateway answers every verify with a fixed rejection code.
type rejectingGateway struct{ code int }

func (g rejectingGateway) Request(ctx context.Context, amount decimal.Decimal, description, callbackURL string) (string, error) {
	return "", domain.ErrGatewayCommunication
}

func (g rejectingGateway) Verify(ctx context.Context, amount decimal.Decimal, authority string) (*gateway.VerifyResult, error) {
	return &gateway.VerifyResult{Code: g.code}, nil
}

func (g rejectingGateway) PaymentURL(authority string) string { return "" }

// ── Error envelope format ─────────────────────────────────────────────────────

func TestErrorEnvelope_HasRequiredFields(t *testing.T) {
	h := buildTestRouter(t)
	rr := do(t, h, http.MethodPost, "/api/auth/register", `{}`, nil)
	body := decodeBody(t, rr)

	for _, field := range []string{"success", "error", "code"} {
		if _, ok := body[field]; !ok {
			t.Errorf("error envelope missing field %q, got: %v", field, body)
		}
	}
	if body["success"] != false {
		t.Errorf("error envelope.success = %v, want false", body["success"])
	}
}

// ── CORS headers ──────────────────────────────────────────────────────────────

func TestCORSOptionsRequest(t *testing.T) {
	h := buildTestRouter(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/auth/login", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	// OPTIONS should return 204 (no content) in dev mode
	if rr.Code != http.StatusNoContent && rr.Code != http.StatusOK {
		t.Errorf("OPTIONS /api/auth/login = %d, want 204 or 200", rr.Code)
	}
	allow := rr.Header().Get("Access-Control-Allow-Methods")
	if !strings.Contains(allow, "POST") {
		t.Errorf("Access-Control-Allow-Methods missing POST, got %q", allow)
	}
}

func TestCORSAllowOrigin_Dev(t *testing.T) {
	h := buildTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	origin := rr.Header().Get("Access-Control-Allow-Origin")
	if origin != "*" {
		t.Errorf("Dev CORS origin = %q, want *", origin)
	}
}

package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ──────────────────────────────────────────────────────────────────────────────
// Payment targets
// ──────────────────────────────────────────────────────────────────────────────

// PaymentTarget names the business object a payment settles. The set is
// closed; the payment service keeps a handler per target and rejects anything
// outside this set before touching the gateway.
type PaymentTarget string

const (
	TargetAdvertisement PaymentTarget = "advertisement" // promote an advertisement
	TargetWallet        PaymentTarget = "wallet"        // top up a wallet
	TargetOrder         PaymentTarget = "order"         // pay for a customer order
	TargetMarket        PaymentTarget = "market"        // market subscription fee
)

// AllTargets lists every payment target; the payment service asserts its
// dispatch table covers exactly this set at construction.
var AllTargets = []PaymentTarget{TargetAdvertisement, TargetWallet, TargetOrder, TargetMarket}

// IsValid returns true if the target is in the closed set.
func (t PaymentTarget) IsValid() bool {
	switch t {
	case TargetAdvertisement, TargetWallet, TargetOrder, TargetMarket:
		return true
	}
	return false
}

// ──────────────────────────────────────────────────────────────────────────────
// Payment
// ──────────────────────────────────────────────────────────────────────────────

// PaymentStatus is the settlement state of a payment.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentComplete PaymentStatus = "complete"
	PaymentFailed   PaymentStatus = "failed"
	PaymentExpired  PaymentStatus = "expired" // stale pending payments swept by the scheduler
)

// Payment records one attempt to settle a target through a gateway. Amounts
// are stored as NUMERIC and carried as decimals; no floats anywhere in money
// paths.
type Payment struct {
	ID             uuid.UUID       `json:"id"              db:"id"`
	PayerID        uuid.UUID       `json:"payer_id"        db:"payer_id"`
	Target         PaymentTarget   `json:"target"          db:"target"`
	TargetID       uuid.UUID       `json:"target_id"       db:"target_id"`
	Amount         decimal.Decimal `json:"amount"          db:"amount"`
	Status         PaymentStatus   `json:"status"          db:"status"`
	GatewayKind    GatewayKind     `json:"gateway_kind"    db:"gateway_kind"`
	IdempotencyKey *string         `json:"idempotency_key" db:"idempotency_key"`
	Description    string          `json:"description"     db:"description"`
	CreatedAt      time.Time       `json:"created_at"      db:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"      db:"updated_at"`
}

// GatewayTransaction is the per-payment record of the conversation with the
// external gateway. transaction_id (the gateway's settlement reference, ref_id
// on the wire) is write-once: it is set exactly one time on successful
// verification and the guarded UPDATE that sets it is what makes verification
// exactly-once.
type GatewayTransaction struct {
	ID            uuid.UUID  `json:"id"             db:"id"`
	PaymentID     uuid.UUID  `json:"payment_id"     db:"payment_id"`
	Authority     string     `json:"authority"      db:"authority"`
	TransactionID *string    `json:"transaction_id" db:"transaction_id"`
	StatusCode    *int       `json:"status_code"    db:"status_code"`
	VerifiedAt    *time.Time `json:"verified_at"    db:"verified_at"`
	CreatedAt     time.Time  `json:"created_at"     db:"created_at"`
}

// Verified reports whether the gateway has already confirmed this
// transaction.
func (t *GatewayTransaction) Verified() bool {
	return t.TransactionID != nil
}

// RedirectInfo tells the client where to send the payer. For personal
// gateways the URL is assembled from the merchant's own configuration and no
// gateway transaction row exists.
type RedirectInfo struct {
	PaymentID   uuid.UUID   `json:"payment_id"`
	GatewayKind GatewayKind `json:"gateway_kind"`
	RedirectURL string      `json:"redirect_url"`
	Authority   string      `json:"authority,omitempty"`
}

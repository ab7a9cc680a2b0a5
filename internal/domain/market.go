// Package domain defines the core business entities and types for the
// marketplace transactional backbone: storefront ("market") lifecycle,
// payment orchestration, and the wallet ledger.
package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ──────────────────────────────────────────────────────────────────────────────
// Types & constants
// ──────────────────────────────────────────────────────────────────────────────

// MarketStatus represents the lifecycle state of a market (storefront).
type MarketStatus string

const (
	StatusUnpaidUnderCreation MarketStatus = "unpaid_under_creation"     // created, subscription not yet paid
	StatusPaidUnderCreation   MarketStatus = "paid_under_creation"       // paid, owner still setting up
	StatusPaidQueue           MarketStatus = "paid_in_publication_queue" // submitted, awaiting admin review
	StatusPaidNonPublication  MarketStatus = "paid_non_publication"      // paid but withheld from publication
	StatusPublished           MarketStatus = "published"                 // live and routable
	StatusPaidNeedsEditing    MarketStatus = "paid_needs_editing"        // pulled back for owner edits
	StatusInactive            MarketStatus = "inactive"                  // soft-deleted / shut down
	StatusPaymentPending      MarketStatus = "payment_pending"           // awaiting gateway confirmation
)

// GatewayKind selects which payment gateway a market's customers are sent to.
type GatewayKind string

const (
	GatewayPlatform GatewayKind = "platform" // platform-operated gateway
	GatewayPersonal GatewayKind = "personal" // merchant's own gateway credentials
)

// IsValid returns true if the gateway kind is recognised.
func (g GatewayKind) IsValid() bool {
	return g == GatewayPlatform || g == GatewayPersonal
}

// ──────────────────────────────────────────────────────────────────────────────
// GatewayConfig
// ──────────────────────────────────────────────────────────────────────────────

// GatewayConfig holds a merchant's personal gateway settings as a flat
// key/value map, stored as JSONB. Required iff the market selects the
// personal gateway.
type GatewayConfig map[string]string

// GatewayURLKey is the config key holding the merchant gateway's payment
// page URL. It is the one key a personal gateway cannot do without.
const GatewayURLKey = "gateway_url"

// Value implements driver.Valuer so the map is stored as JSONB.
func (c GatewayConfig) Value() (driver.Value, error) {
	if c == nil {
		return nil, nil
	}
	return json.Marshal(c)
}

// Scan implements sql.Scanner for reading JSONB back into the map.
func (c *GatewayConfig) Scan(src interface{}) error {
	if src == nil {
		*c = nil
		return nil
	}
	b, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("GatewayConfig.Scan: unsupported type %T", src)
	}
	return json.Unmarshal(b, c)
}

// ──────────────────────────────────────────────────────────────────────────────
// Market
// ──────────────────────────────────────────────────────────────────────────────

// Market represents a tenant's storefront whose publication lifecycle is
// governed by the workflow state machine. Status and is_paid are mutated
// only through the workflow transition operation; markets are never
// hard-deleted (soft lifecycle via StatusInactive).
type Market struct {
	ID                   uuid.UUID     `json:"id"                     db:"id"`
	OwnerID              uuid.UUID     `json:"owner_id"               db:"owner_id"`
	Title                string        `json:"title"                  db:"title"`
	Slug                 string        `json:"slug"                   db:"slug"`
	Status               MarketStatus  `json:"status"                 db:"status"`
	IsPaid               bool          `json:"is_paid"                db:"is_paid"`
	SubscriptionStartsAt *time.Time    `json:"subscription_starts_at" db:"subscription_starts_at"`
	SubscriptionEndsAt   *time.Time    `json:"subscription_ends_at"   db:"subscription_ends_at"`
	GatewayKind          GatewayKind   `json:"gateway_kind"           db:"gateway_kind"`
	PersonalGateway      GatewayConfig `json:"personal_gateway"       db:"personal_gateway"`
	CreatedAt            time.Time     `json:"created_at"             db:"created_at"`
	UpdatedAt            time.Time     `json:"updated_at"             db:"updated_at"`
}

// UsesPersonalGateway returns true when customer payments for this market go
// to the merchant's own gateway rather than the platform one.
func (m *Market) UsesPersonalGateway() bool {
	return m.GatewayKind == GatewayPersonal
}

// ValidateGatewaySelection checks that a personal gateway selection carries
// its configuration. The gateway_url key is mandatory: without it no redirect
// can be built for the payer.
func (m *Market) ValidateGatewaySelection() error {
	if !m.GatewayKind.IsValid() {
		return fmt.Errorf("%w: unknown gateway kind %q", ErrValidation, m.GatewayKind)
	}
	if m.GatewayKind == GatewayPersonal && m.PersonalGateway[GatewayURLKey] == "" {
		return ErrMissingGatewayConfig
	}
	return nil
}

// SubscriptionExpired reports whether the paid subscription window has ended.
func (m *Market) SubscriptionExpired(now time.Time) bool {
	return m.SubscriptionEndsAt != nil && m.SubscriptionEndsAt.Before(now)
}

// ──────────────────────────────────────────────────────────────────────────────
// MarketWorkflowHistory
// ──────────────────────────────────────────────────────────────────────────────

// MarketWorkflowHistory is an append-only audit record of a single status
// transition. Exactly one row is written per successful transition, in the
// same transaction as the market mutation. Rows are never updated or deleted.
type MarketWorkflowHistory struct {
	ID         uuid.UUID    `json:"id"          db:"id"`
	MarketID   uuid.UUID    `json:"market_id"   db:"market_id"`
	FromStatus MarketStatus `json:"from_status" db:"from_status"`
	ToStatus   MarketStatus `json:"to_status"   db:"to_status"`
	ActorID    *uuid.UUID   `json:"actor_id"    db:"actor_id"` // nil for system-driven transitions
	Reason     string       `json:"reason"      db:"reason"`
	CreatedAt  time.Time    `json:"created_at"  db:"created_at"`
}

// TransitionSummary describes a committed transition; returned by the
// workflow service and handed to post-commit listeners.
type TransitionSummary struct {
	MarketID   uuid.UUID    `json:"market_id"`
	From       MarketStatus `json:"from"`
	To         MarketStatus `json:"to"`
	IsPaid     bool         `json:"is_paid"`
	ActorID    *uuid.UUID   `json:"actor_id"`
	Reason     string       `json:"reason"`
	OccurredAt time.Time    `json:"occurred_at"`
}

// ──────────────────────────────────────────────────────────────────────────────
// MarketDomain — explicit routing registry entry
// ──────────────────────────────────────────────────────────────────────────────

// MarketDomain maps a published market to the hostname it is served under.
// Rows are written by the routing service when a market is published and
// deactivated when it leaves the published state; routing state lives only
// here, never in process-wide mutable configuration.
type MarketDomain struct {
	ID        uuid.UUID `json:"id"         db:"id"`
	MarketID  uuid.UUID `json:"market_id"  db:"market_id"`
	Hostname  string    `json:"hostname"   db:"hostname"`
	Active    bool      `json:"active"     db:"active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ──────────────────────────────────────────────────────────────────────────────
// Advertisements
// ──────────────────────────────────────────────────────────────────────────────

// AdvertisementStatus is the promotion state of an advertisement.
type AdvertisementStatus string

const (
	AdDraft    AdvertisementStatus = "draft"
	AdPromoted AdvertisementStatus = "promoted"
	AdExpired  AdvertisementStatus = "expired"
)

// Advertisement is a promotable listing. Promotion is a payment side effect:
// the payment orchestrator flips status to promoted when the promotion fee
// verifies.
type Advertisement struct {
	ID         uuid.UUID           `json:"id"          db:"id"`
	MarketID   uuid.UUID           `json:"market_id"   db:"market_id"`
	Title      string              `json:"title"       db:"title"`
	Price      decimal.Decimal     `json:"price"       db:"price"`
	Status     AdvertisementStatus `json:"status"      db:"status"`
	PromotedAt *time.Time          `json:"promoted_at" db:"promoted_at"`
	CreatedAt  time.Time           `json:"created_at"  db:"created_at"`
	UpdatedAt  time.Time           `json:"updated_at"  db:"updated_at"`
}

// ──────────────────────────────────────────────────────────────────────────────
// Orders
// ──────────────────────────────────────────────────────────────────────────────

// OrderStatus is the fulfilment state of a customer order.
type OrderStatus string

const (
	OrderAwaitingPayment OrderStatus = "awaiting_payment"
	OrderPaid            OrderStatus = "paid"
	OrderCancelled       OrderStatus = "cancelled"
)

// Order is a customer purchase inside a market. Settlement is a payment side
// effect: the orchestrator marks it paid when verification succeeds.
type Order struct {
	ID         uuid.UUID       `json:"id"          db:"id"`
	MarketID   uuid.UUID       `json:"market_id"   db:"market_id"`
	CustomerID uuid.UUID       `json:"customer_id" db:"customer_id"`
	Total      decimal.Decimal `json:"total"       db:"total"`
	Status     OrderStatus     `json:"status"      db:"status"`
	PaidAt     *time.Time      `json:"paid_at"     db:"paid_at"`
	CreatedAt  time.Time       `json:"created_at"  db:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"  db:"updated_at"`
}

package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// WalletStatus gates whether a wallet may participate in ledger operations.
type WalletStatus string

const (
	WalletActive WalletStatus = "active"
	WalletFrozen WalletStatus = "frozen"
)

// Wallet holds a user's balance. The balance column is the single source of
// truth and is only ever mutated under a row lock taken by the ledger
// service; every mutation appends exactly one WalletTransaction in the same
// database transaction.
type Wallet struct {
	ID        uuid.UUID       `json:"id"         db:"id"`
	OwnerID   uuid.UUID       `json:"owner_id"   db:"owner_id"`
	Balance   decimal.Decimal `json:"balance"    db:"balance"`
	Status    WalletStatus    `json:"status"     db:"status"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}

// Active reports whether the wallet may take part in ledger operations.
func (w *Wallet) Active() bool {
	return w.Status == WalletActive
}

// LedgerEntryKind classifies a wallet transaction row.
type LedgerEntryKind string

const (
	LedgerDeposit  LedgerEntryKind = "deposit"
	LedgerWithdraw LedgerEntryKind = "withdraw"
	LedgerExchange LedgerEntryKind = "exchange" // wallet-to-wallet transfer
)

// WalletTransaction is an append-only ledger row. BalanceAfter snapshots the
// wallet balance after the mutation; for exchanges a single row carries both
// endpoints. ActorID records who initiated the mutation and is nil only for
// system-driven entries. Rows are never updated or deleted.
type WalletTransaction struct {
	ID           uuid.UUID       `json:"id"             db:"id"`
	WalletID     uuid.UUID       `json:"wallet_id"      db:"wallet_id"`
	PeerWalletID *uuid.UUID      `json:"peer_wallet_id" db:"peer_wallet_id"` // set for exchanges
	ActorID      *uuid.UUID      `json:"actor_id"       db:"actor_id"`       // nil for system-driven entries
	Kind         LedgerEntryKind `json:"kind"           db:"kind"`
	Amount       decimal.Decimal `json:"amount"         db:"amount"`
	BalanceAfter decimal.Decimal `json:"balance_after"  db:"balance_after"`
	Reference    string          `json:"reference"      db:"reference"` // e.g. payment id, admin note
	CreatedAt    time.Time       `json:"created_at"     db:"created_at"`
}

package domain

import (
	"time"

	"github.com/google/uuid"
)

// ApprovalKind identifies what the owner is asking the back office for.
type ApprovalKind string

const (
	ApprovalPublication  ApprovalKind = "publication"  // first publication of a queued market
	ApprovalEditing      ApprovalKind = "editing"      // pull a published market back for edits
	ApprovalReactivation ApprovalKind = "reactivation" // revive an inactive market
)

// IsValid returns true if the approval kind is recognised.
func (k ApprovalKind) IsValid() bool {
	switch k {
	case ApprovalPublication, ApprovalEditing, ApprovalReactivation:
		return true
	}
	return false
}

// ApprovalStatus is the decision state of an approval request.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

// MarketApprovalRequest is an owner-initiated request that an admin decides.
// A decision is written once; deciding flips status from pending exactly one
// time and triggers the implied market transition in the same transaction.
type MarketApprovalRequest struct {
	ID        uuid.UUID      `json:"id"         db:"id"`
	MarketID  uuid.UUID      `json:"market_id"  db:"market_id"`
	Requester uuid.UUID      `json:"requester"  db:"requester"`
	Kind      ApprovalKind   `json:"kind"       db:"kind"`
	Status    ApprovalStatus `json:"status"     db:"status"`
	Note      string         `json:"note"       db:"note"`     // owner's message
	Response  string         `json:"response"   db:"response"` // admin's answer
	DecidedBy *uuid.UUID     `json:"decided_by" db:"decided_by"`
	DecidedAt *time.Time     `json:"decided_at" db:"decided_at"`
	CreatedAt time.Time      `json:"created_at" db:"created_at"`
}

// Pending reports whether the request is still awaiting a decision.
func (r *MarketApprovalRequest) Pending() bool {
	return r.Status == ApprovalPending
}

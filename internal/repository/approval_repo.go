package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/vitrino/marketplace/internal/domain"
)

// ApprovalRepository handles market approval requests.
type ApprovalRepository struct {
	db *sqlx.DB
}

// NewApprovalRepository creates a new ApprovalRepository.
func NewApprovalRepository(db *sqlx.DB) *ApprovalRepository {
	return &ApprovalRepository{db: db}
}

// CreateTx inserts a new pending request inside a transaction.
func (r *ApprovalRepository) CreateTx(ctx context.Context, tx *sqlx.Tx, req *domain.MarketApprovalRequest) error {
	query := `
		INSERT INTO market_approval_requests
			(id, market_id, requester, kind, status, note, response, decided_by, decided_at, created_at)
		VALUES
			(:id, :market_id, :requester, :kind, :status, :note, :response, :decided_by, :decided_at, :created_at)`
	if _, err := tx.NamedExecContext(ctx, query, req); err != nil {
		return fmt.Errorf("approval_repo.CreateTx: %w", err)
	}
	return nil
}

// GetByID fetches a request by primary key.
func (r *ApprovalRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.MarketApprovalRequest, error) {
	var req domain.MarketApprovalRequest
	err := r.db.GetContext(ctx, &req, `SELECT * FROM market_approval_requests WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("approval_repo.GetByID: %w", err)
	}
	return &req, nil
}

// ListPending returns pending requests, oldest first, optionally filtered by
// kind. kind="" means all kinds.
func (r *ApprovalRepository) ListPending(ctx context.Context, kind domain.ApprovalKind, limit, offset int) ([]*domain.MarketApprovalRequest, error) {
	var reqs []*domain.MarketApprovalRequest
	var err error
	if kind != "" {
		err = r.db.SelectContext(ctx, &reqs, `
			SELECT * FROM market_approval_requests
			WHERE status = 'pending' AND kind = $1
			ORDER BY created_at ASC
			LIMIT $2 OFFSET $3`,
			kind, limit, offset)
	} else {
		err = r.db.SelectContext(ctx, &reqs, `
			SELECT * FROM market_approval_requests
			WHERE status = 'pending'
			ORDER BY created_at ASC
			LIMIT $1 OFFSET $2`,
			limit, offset)
	}
	if err != nil {
		return nil, fmt.Errorf("approval_repo.ListPending: %w", err)
	}
	return reqs, nil
}

// HasPending reports whether the market already has an undecided request of
// the given kind.
func (r *ApprovalRepository) HasPending(ctx context.Context, marketID uuid.UUID, kind domain.ApprovalKind) (bool, error) {
	var n int
	err := r.db.GetContext(ctx, &n, `
		SELECT COUNT(*) FROM market_approval_requests
		WHERE market_id = $1 AND kind = $2 AND status = 'pending'`,
		marketID, kind)
	if err != nil {
		return false, fmt.Errorf("approval_repo.HasPending: %w", err)
	}
	return n > 0, nil
}

// DecideTx flips a pending request to its decision inside a transaction. The
// WHERE status = 'pending' guard makes the decision single-shot: a second
// decider affects zero rows and gets ErrApprovalDecided.
func (r *ApprovalRepository) DecideTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, status domain.ApprovalStatus, response string, deciderID uuid.UUID, decidedAt time.Time) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE market_approval_requests
		SET status = $1, response = $2, decided_by = $3, decided_at = $4
		WHERE id = $5 AND status = 'pending'`,
		status, response, deciderID, decidedAt, id)
	if err != nil {
		return fmt.Errorf("approval_repo.DecideTx: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrApprovalDecided
	}
	return nil
}

// ListByMarket returns all requests for a market, newest first.
func (r *ApprovalRepository) ListByMarket(ctx context.Context, marketID uuid.UUID, limit, offset int) ([]*domain.MarketApprovalRequest, error) {
	var reqs []*domain.MarketApprovalRequest
	err := r.db.SelectContext(ctx, &reqs, `
		SELECT * FROM market_approval_requests
		WHERE market_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`,
		marketID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("approval_repo.ListByMarket: %w", err)
	}
	return reqs, nil
}

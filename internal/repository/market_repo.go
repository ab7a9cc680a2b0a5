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

// MarketRepository handles all database operations for Markets and their
// workflow history. Status mutations always run inside a transaction
// supplied by the workflow service, paired with a history insert.
type MarketRepository struct {
	db *sqlx.DB
}

// NewMarketRepository creates a new MarketRepository.
func NewMarketRepository(db *sqlx.DB) *MarketRepository {
	return &MarketRepository{db: db}
}

// Create inserts a new market row.
func (r *MarketRepository) Create(ctx context.Context, m *domain.Market) error {
	query := `
		INSERT INTO markets
			(id, owner_id, title, slug, status, is_paid, subscription_starts_at,
			 subscription_ends_at, gateway_kind, personal_gateway, created_at, updated_at)
		VALUES
			(:id, :owner_id, :title, :slug, :status, :is_paid, :subscription_starts_at,
			 :subscription_ends_at, :gateway_kind, :personal_gateway, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, m); err != nil {
		if isPgUniqueViolation(err, "markets_slug_key") {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("market_repo.Create: %w", err)
	}
	return nil
}

// GetByID fetches a market by primary key.
func (r *MarketRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Market, error) {
	var m domain.Market
	err := r.db.GetContext(ctx, &m, `SELECT * FROM markets WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("market_repo.GetByID: %w", err)
	}
	return &m, nil
}

// GetBySlug fetches a market by its unique slug.
func (r *MarketRepository) GetBySlug(ctx context.Context, slug string) (*domain.Market, error) {
	var m domain.Market
	err := r.db.GetContext(ctx, &m, `SELECT * FROM markets WHERE slug = $1`, slug)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("market_repo.GetBySlug: %w", err)
	}
	return &m, nil
}

// GetForUpdateTx locks a market row for the duration of the transaction.
// Every status transition starts here so concurrent transitions serialise on
// the row.
func (r *MarketRepository) GetForUpdateTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*domain.Market, error) {
	var m domain.Market
	err := tx.GetContext(ctx, &m, `SELECT * FROM markets WHERE id = $1 FOR UPDATE`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("market_repo.GetForUpdateTx: %w", err)
	}
	return &m, nil
}

// ListByOwner returns all markets owned by a user.
func (r *MarketRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*domain.Market, error) {
	var ms []*domain.Market
	err := r.db.SelectContext(ctx, &ms,
		`SELECT * FROM markets WHERE owner_id = $1 ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("market_repo.ListByOwner: %w", err)
	}
	return ms, nil
}

// List returns paginated markets filtered by status. status="" means all.
func (r *MarketRepository) List(ctx context.Context, status domain.MarketStatus, limit, offset int) ([]*domain.Market, error) {
	var ms []*domain.Market
	var err error
	if status != "" {
		err = r.db.SelectContext(ctx, &ms, `
			SELECT * FROM markets
			WHERE status = $1
			ORDER BY created_at DESC
			LIMIT $2 OFFSET $3`,
			status, limit, offset)
	} else {
		err = r.db.SelectContext(ctx, &ms, `
			SELECT * FROM markets
			ORDER BY created_at DESC
			LIMIT $1 OFFSET $2`,
			limit, offset)
	}
	if err != nil {
		return nil, fmt.Errorf("market_repo.List: %w", err)
	}
	return ms, nil
}

// UpdateStatusTx mutates status and is_paid inside a transaction. The caller
// holds the row lock from GetForUpdateTx.
func (r *MarketRepository) UpdateStatusTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, status domain.MarketStatus, isPaid bool) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE markets SET status = $1, is_paid = $2, updated_at = now() WHERE id = $3`,
		status, isPaid, id)
	if err != nil {
		return fmt.Errorf("market_repo.UpdateStatusTx: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// SetSubscriptionTx records the paid subscription window inside a transaction.
func (r *MarketRepository) SetSubscriptionTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, start, end time.Time) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE markets
		SET subscription_starts_at = $1, subscription_ends_at = $2, updated_at = now()
		WHERE id = $3`,
		start, end, id)
	if err != nil {
		return fmt.Errorf("market_repo.SetSubscriptionTx: %w", err)
	}
	return nil
}

// UpdateGateway changes the market's gateway selection and config.
func (r *MarketRepository) UpdateGateway(ctx context.Context, id uuid.UUID, kind domain.GatewayKind, cfg domain.GatewayConfig) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE markets
		SET gateway_kind = $1, personal_gateway = $2, updated_at = now()
		WHERE id = $3`,
		kind, cfg, id)
	if err != nil {
		return fmt.Errorf("market_repo.UpdateGateway: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListExpiredSubscriptions returns published-family markets whose paid window
// ended before the cutoff. Used by the scheduler sweep.
func (r *MarketRepository) ListExpiredSubscriptions(ctx context.Context, cutoff time.Time, limit int) ([]*domain.Market, error) {
	var ms []*domain.Market
	err := r.db.SelectContext(ctx, &ms, `
		SELECT * FROM markets
		WHERE is_paid = true
		  AND subscription_ends_at IS NOT NULL
		  AND subscription_ends_at < $1
		ORDER BY subscription_ends_at ASC
		LIMIT $2`,
		cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("market_repo.ListExpiredSubscriptions: %w", err)
	}
	return ms, nil
}

// ── Workflow history ─────────────────────────────────────────────────────────

// InsertHistoryTx appends the audit record for one transition, inside the
// same transaction as the status mutation. History rows are append-only.
func (r *MarketRepository) InsertHistoryTx(ctx context.Context, tx *sqlx.Tx, h *domain.MarketWorkflowHistory) error {
	query := `
		INSERT INTO market_workflow_history
			(id, market_id, from_status, to_status, actor_id, reason, created_at)
		VALUES
			(:id, :market_id, :from_status, :to_status, :actor_id, :reason, :created_at)`
	if _, err := tx.NamedExecContext(ctx, query, h); err != nil {
		return fmt.Errorf("market_repo.InsertHistoryTx: %w", err)
	}
	return nil
}

// ListHistory returns a market's transition history, oldest first.
func (r *MarketRepository) ListHistory(ctx context.Context, marketID uuid.UUID, limit, offset int) ([]*domain.MarketWorkflowHistory, error) {
	var hs []*domain.MarketWorkflowHistory
	err := r.db.SelectContext(ctx, &hs, `
		SELECT * FROM market_workflow_history
		WHERE market_id = $1
		ORDER BY created_at ASC, id ASC
		LIMIT $2 OFFSET $3`,
		marketID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("market_repo.ListHistory: %w", err)
	}
	return hs, nil
}

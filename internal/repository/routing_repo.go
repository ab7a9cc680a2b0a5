package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/vitrino/marketplace/internal/domain"
)

// RoutingRepository handles the market_domains routing registry. Routing
// state lives only in these rows; nothing mutates process-wide configuration.
type RoutingRepository struct {
	db *sqlx.DB
}

// NewRoutingRepository creates a new RoutingRepository.
func NewRoutingRepository(db *sqlx.DB) *RoutingRepository {
	return &RoutingRepository{db: db}
}

// Upsert activates the routing entry for a market's hostname, creating it on
// first publication and re-activating it after a republish.
func (r *RoutingRepository) Upsert(ctx context.Context, d *domain.MarketDomain) error {
	query := `
		INSERT INTO market_domains (id, market_id, hostname, active, created_at, updated_at)
		VALUES (:id, :market_id, :hostname, :active, :created_at, :updated_at)
		ON CONFLICT (hostname) DO UPDATE
		SET market_id = EXCLUDED.market_id,
		    active     = EXCLUDED.active,
		    updated_at = now()`
	if _, err := r.db.NamedExecContext(ctx, query, d); err != nil {
		return fmt.Errorf("routing_repo.Upsert: %w", err)
	}
	return nil
}

// Deactivate turns off every routing entry for a market.
func (r *RoutingRepository) Deactivate(ctx context.Context, marketID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE market_domains SET active = false, updated_at = now() WHERE market_id = $1`,
		marketID)
	if err != nil {
		return fmt.Errorf("routing_repo.Deactivate: %w", err)
	}
	return nil
}

// GetActiveByHostname resolves a hostname to its active routing entry.
func (r *RoutingRepository) GetActiveByHostname(ctx context.Context, hostname string) (*domain.MarketDomain, error) {
	var d domain.MarketDomain
	err := r.db.GetContext(ctx, &d,
		`SELECT * FROM market_domains WHERE hostname = $1 AND active = true`, hostname)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("routing_repo.GetActiveByHostname: %w", err)
	}
	return &d, nil
}

// ListByMarket returns all routing entries for a market.
func (r *RoutingRepository) ListByMarket(ctx context.Context, marketID uuid.UUID) ([]*domain.MarketDomain, error) {
	var ds []*domain.MarketDomain
	err := r.db.SelectContext(ctx, &ds,
		`SELECT * FROM market_domains WHERE market_id = $1 ORDER BY created_at ASC`, marketID)
	if err != nil {
		return nil, fmt.Errorf("routing_repo.ListByMarket: %w", err)
	}
	return ds, nil
}

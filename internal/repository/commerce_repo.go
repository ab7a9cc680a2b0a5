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

// CommerceRepository handles advertisements and orders. The payment
// orchestrator drives their paid-side mutations through the Tx methods.
type CommerceRepository struct {
	db *sqlx.DB
}

// NewCommerceRepository creates a new CommerceRepository.
func NewCommerceRepository(db *sqlx.DB) *CommerceRepository {
	return &CommerceRepository{db: db}
}

// ── Advertisements ───────────────────────────────────────────────────────────

// CreateAdvertisement inserts a new advertisement row.
func (r *CommerceRepository) CreateAdvertisement(ctx context.Context, ad *domain.Advertisement) error {
	query := `
		INSERT INTO advertisements
			(id, market_id, title, price, status, promoted_at, created_at, updated_at)
		VALUES
			(:id, :market_id, :title, :price, :status, :promoted_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, ad); err != nil {
		return fmt.Errorf("commerce_repo.CreateAdvertisement: %w", err)
	}
	return nil
}

// GetAdvertisement fetches an advertisement by primary key.
func (r *CommerceRepository) GetAdvertisement(ctx context.Context, id uuid.UUID) (*domain.Advertisement, error) {
	var ad domain.Advertisement
	err := r.db.GetContext(ctx, &ad, `SELECT * FROM advertisements WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("commerce_repo.GetAdvertisement: %w", err)
	}
	return &ad, nil
}

// ListAdvertisements returns a market's advertisements, newest first.
func (r *CommerceRepository) ListAdvertisements(ctx context.Context, marketID uuid.UUID, limit, offset int) ([]*domain.Advertisement, error) {
	var ads []*domain.Advertisement
	err := r.db.SelectContext(ctx, &ads, `
		SELECT * FROM advertisements
		WHERE market_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`,
		marketID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("commerce_repo.ListAdvertisements: %w", err)
	}
	return ads, nil
}

// PromoteAdvertisementTx marks an advertisement promoted inside a
// transaction; a payment verification side effect.
func (r *CommerceRepository) PromoteAdvertisementTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, at time.Time) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE advertisements
		SET status = 'promoted', promoted_at = $1, updated_at = now()
		WHERE id = $2`,
		at, id)
	if err != nil {
		return fmt.Errorf("commerce_repo.PromoteAdvertisementTx: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ── Orders ───────────────────────────────────────────────────────────────────

// CreateOrder inserts a new order row.
func (r *CommerceRepository) CreateOrder(ctx context.Context, o *domain.Order) error {
	query := `
		INSERT INTO orders
			(id, market_id, customer_id, total, status, paid_at, created_at, updated_at)
		VALUES
			(:id, :market_id, :customer_id, :total, :status, :paid_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, o); err != nil {
		return fmt.Errorf("commerce_repo.CreateOrder: %w", err)
	}
	return nil
}

// GetOrder fetches an order by primary key.
func (r *CommerceRepository) GetOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	var o domain.Order
	err := r.db.GetContext(ctx, &o, `SELECT * FROM orders WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("commerce_repo.GetOrder: %w", err)
	}
	return &o, nil
}

// ListOrders returns a market's orders, newest first.
func (r *CommerceRepository) ListOrders(ctx context.Context, marketID uuid.UUID, limit, offset int) ([]*domain.Order, error) {
	var os []*domain.Order
	err := r.db.SelectContext(ctx, &os, `
		SELECT * FROM orders
		WHERE market_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`,
		marketID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("commerce_repo.ListOrders: %w", err)
	}
	return os, nil
}

// MarkOrderPaidTx settles an awaiting-payment order inside a transaction; a
// payment verification side effect. The status guard keeps the mutation
// single-shot.
func (r *CommerceRepository) MarkOrderPaidTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, at time.Time) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE orders
		SET status = 'paid', paid_at = $1, updated_at = now()
		WHERE id = $2 AND status = 'awaiting_payment'`,
		at, id)
	if err != nil {
		return fmt.Errorf("commerce_repo.MarkOrderPaidTx: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrAlreadyProcessed
	}
	return nil
}

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

// PaymentRepository handles payments and their gateway transactions. The
// write-once transaction_id on gateway_transactions is the exactly-once
// anchor: ClaimRefTx is the only writer and its guarded UPDATE can succeed
// at most one time per payment.
type PaymentRepository struct {
	db *sqlx.DB
}

// NewPaymentRepository creates a new PaymentRepository.
func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// ── Payments ─────────────────────────────────────────────────────────────────

// CreateTx inserts a new payment inside a transaction.
func (r *PaymentRepository) CreateTx(ctx context.Context, tx *sqlx.Tx, p *domain.Payment) error {
	query := `
		INSERT INTO payments
			(id, payer_id, target, target_id, amount, status, gateway_kind,
			 idempotency_key, description, created_at, updated_at)
		VALUES
			(:id, :payer_id, :target, :target_id, :amount, :status, :gateway_kind,
			 :idempotency_key, :description, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, query, p); err != nil {
		if isPgUniqueViolation(err, "payments_idempotency_key_key") {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("payment_repo.CreateTx: %w", err)
	}
	return nil
}

// GetByID fetches a payment by primary key.
func (r *PaymentRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	var p domain.Payment
	err := r.db.GetContext(ctx, &p, `SELECT * FROM payments WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("payment_repo.GetByID: %w", err)
	}
	return &p, nil
}

// GetByIdempotencyKey fetches a payer's payment by its idempotency key.
func (r *PaymentRepository) GetByIdempotencyKey(ctx context.Context, payerID uuid.UUID, key string) (*domain.Payment, error) {
	var p domain.Payment
	err := r.db.GetContext(ctx, &p,
		`SELECT * FROM payments WHERE payer_id = $1 AND idempotency_key = $2`, payerID, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("payment_repo.GetByIdempotencyKey: %w", err)
	}
	return &p, nil
}

// GetForUpdateTx locks a payment row for the duration of the transaction.
func (r *PaymentRepository) GetForUpdateTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*domain.Payment, error) {
	var p domain.Payment
	err := tx.GetContext(ctx, &p, `SELECT * FROM payments WHERE id = $1 FOR UPDATE`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("payment_repo.GetForUpdateTx: %w", err)
	}
	return &p, nil
}

// SettleTx moves a pending payment to its terminal status inside a
// transaction. The WHERE status = 'pending' guard means a payment settles at
// most once; zero affected rows surfaces as ErrAlreadyProcessed.
func (r *PaymentRepository) SettleTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, status domain.PaymentStatus) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE payments SET status = $1, updated_at = now() WHERE id = $2 AND status = 'pending'`,
		status, id)
	if err != nil {
		return fmt.Errorf("payment_repo.SettleTx: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrAlreadyProcessed
	}
	return nil
}

// Settle is SettleTx without an enclosing transaction, for failure paths
// that record an outcome and nothing else.
func (r *PaymentRepository) Settle(ctx context.Context, id uuid.UUID, status domain.PaymentStatus) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE payments SET status = $1, updated_at = now() WHERE id = $2 AND status = 'pending'`,
		status, id)
	if err != nil {
		return fmt.Errorf("payment_repo.Settle: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrAlreadyProcessed
	}
	return nil
}

// ListByPayer returns a payer's payments, newest first.
func (r *PaymentRepository) ListByPayer(ctx context.Context, payerID uuid.UUID, limit, offset int) ([]*domain.Payment, error) {
	var ps []*domain.Payment
	err := r.db.SelectContext(ctx, &ps, `
		SELECT * FROM payments
		WHERE payer_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`,
		payerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("payment_repo.ListByPayer: %w", err)
	}
	return ps, nil
}

// ListStalePending returns pending platform-gateway payments created before
// the cutoff, for the scheduler's expiry sweep.
func (r *PaymentRepository) ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]*domain.Payment, error) {
	var ps []*domain.Payment
	err := r.db.SelectContext(ctx, &ps, `
		SELECT * FROM payments
		WHERE status = 'pending' AND gateway_kind = 'platform' AND created_at < $1
		ORDER BY created_at ASC
		LIMIT $2`,
		cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("payment_repo.ListStalePending: %w", err)
	}
	return ps, nil
}

// ── Gateway transactions ─────────────────────────────────────────────────────

// CreateGatewayTx inserts the gateway transaction row for a platform payment.
func (r *PaymentRepository) CreateGatewayTx(ctx context.Context, tx *sqlx.Tx, gt *domain.GatewayTransaction) error {
	query := `
		INSERT INTO gateway_transactions
			(id, payment_id, authority, transaction_id, status_code, verified_at, created_at)
		VALUES
			(:id, :payment_id, :authority, :transaction_id, :status_code, :verified_at, :created_at)`
	if _, err := tx.NamedExecContext(ctx, query, gt); err != nil {
		return fmt.Errorf("payment_repo.CreateGatewayTx: %w", err)
	}
	return nil
}

// SetAuthority records the authority token returned by the gateway.
func (r *PaymentRepository) SetAuthority(ctx context.Context, paymentID uuid.UUID, authority string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE gateway_transactions SET authority = $1 WHERE payment_id = $2`,
		authority, paymentID)
	if err != nil {
		return fmt.Errorf("payment_repo.SetAuthority: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// GetByPaymentID fetches the gateway transaction belonging to a payment.
func (r *PaymentRepository) GetByPaymentID(ctx context.Context, paymentID uuid.UUID) (*domain.GatewayTransaction, error) {
	var gt domain.GatewayTransaction
	err := r.db.GetContext(ctx, &gt,
		`SELECT * FROM gateway_transactions WHERE payment_id = $1`, paymentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("payment_repo.GetByPaymentID: %w", err)
	}
	return &gt, nil
}

// GetByAuthority looks up the gateway transaction for a callback authority.
func (r *PaymentRepository) GetByAuthority(ctx context.Context, authority string) (*domain.GatewayTransaction, error) {
	var gt domain.GatewayTransaction
	err := r.db.GetContext(ctx, &gt,
		`SELECT * FROM gateway_transactions WHERE authority = $1`, authority)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("payment_repo.GetByAuthority: %w", err)
	}
	return &gt, nil
}

// ClaimRefTx sets the write-once gateway reference. The transaction_id IS
// NULL guard is the exactly-once barrier: the first claimant wins, every
// later attempt affects zero rows and gets ErrAlreadyProcessed.
func (r *PaymentRepository) ClaimRefTx(ctx context.Context, tx *sqlx.Tx, paymentID uuid.UUID, refID string, statusCode int, verifiedAt time.Time) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE gateway_transactions
		SET transaction_id = $1, status_code = $2, verified_at = $3
		WHERE payment_id = $4 AND transaction_id IS NULL`,
		refID, statusCode, verifiedAt, paymentID)
	if err != nil {
		return fmt.Errorf("payment_repo.ClaimRefTx: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrAlreadyProcessed
	}
	return nil
}

// RecordFailureCode stores the gateway's rejection code on the transaction
// row without touching transaction_id.
func (r *PaymentRepository) RecordFailureCode(ctx context.Context, paymentID uuid.UUID, statusCode int) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE gateway_transactions
		SET status_code = $1
		WHERE payment_id = $2 AND transaction_id IS NULL`,
		statusCode, paymentID)
	if err != nil {
		return fmt.Errorf("payment_repo.RecordFailureCode: %w", err)
	}
	return nil
}

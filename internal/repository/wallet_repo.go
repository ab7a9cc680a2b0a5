package repository

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/vitrino/marketplace/internal/domain"
)

// WalletRepository handles all database operations for wallets and the
// append-only ledger. Balance mutations only happen through the Tx methods
// while the caller holds the row lock from LockTx/LockPairTx.
type WalletRepository struct {
	db *sqlx.DB
}

// NewWalletRepository creates a new WalletRepository.
func NewWalletRepository(db *sqlx.DB) *WalletRepository {
	return &WalletRepository{db: db}
}

// Create inserts a new wallet row.
func (r *WalletRepository) Create(ctx context.Context, w *domain.Wallet) error {
	query := `
		INSERT INTO wallets (id, owner_id, balance, status, created_at, updated_at)
		VALUES (:id, :owner_id, :balance, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, w); err != nil {
		if isPgUniqueViolation(err, "wallets_owner_id_key") {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("wallet_repo.Create: %w", err)
	}
	return nil
}

// GetByID fetches a wallet by primary key, without locking.
func (r *WalletRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Wallet, error) {
	var w domain.Wallet
	err := r.db.GetContext(ctx, &w, `SELECT * FROM wallets WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("wallet_repo.GetByID: %w", err)
	}
	return &w, nil
}

// GetByOwner fetches the wallet belonging to a user.
func (r *WalletRepository) GetByOwner(ctx context.Context, ownerID uuid.UUID) (*domain.Wallet, error) {
	var w domain.Wallet
	err := r.db.GetContext(ctx, &w, `SELECT * FROM wallets WHERE owner_id = $1`, ownerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("wallet_repo.GetByOwner: %w", err)
	}
	return &w, nil
}

// LockTx locks a wallet row with SELECT ... FOR UPDATE and returns its
// current state. The lock is held until the transaction ends.
func (r *WalletRepository) LockTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*domain.Wallet, error) {
	var w domain.Wallet
	err := tx.GetContext(ctx, &w, `SELECT * FROM wallets WHERE id = $1 FOR UPDATE`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("wallet_repo.LockTx: %w", err)
	}
	return &w, nil
}

// LockPairTx locks two wallet rows in ascending id order regardless of the
// transfer direction, so concurrent opposite transfers cannot deadlock. The
// returned wallets match the argument order, not the lock order.
func (r *WalletRepository) LockPairTx(ctx context.Context, tx *sqlx.Tx, a, b uuid.UUID) (*domain.Wallet, *domain.Wallet, error) {
	first, second := a, b
	if bytes.Compare(b[:], a[:]) < 0 {
		first, second = b, a
	}
	w1, err := r.LockTx(ctx, tx, first)
	if err != nil {
		return nil, nil, err
	}
	w2, err := r.LockTx(ctx, tx, second)
	if err != nil {
		return nil, nil, err
	}
	if first == a {
		return w1, w2, nil
	}
	return w2, w1, nil
}

// UpdateBalanceTx writes a wallet's new balance. The caller holds the row
// lock and has already computed the new value on the locked snapshot.
func (r *WalletRepository) UpdateBalanceTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, balance decimal.Decimal) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE wallets SET balance = $1, updated_at = now() WHERE id = $2`,
		balance, id)
	if err != nil {
		return fmt.Errorf("wallet_repo.UpdateBalanceTx: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// InsertLedgerTx appends one ledger row inside the same transaction as the
// balance mutation it records.
func (r *WalletRepository) InsertLedgerTx(ctx context.Context, tx *sqlx.Tx, entry *domain.WalletTransaction) error {
	query := `
		INSERT INTO wallet_transactions
			(id, wallet_id, peer_wallet_id, actor_id, kind, amount, balance_after, reference, created_at)
		VALUES
			(:id, :wallet_id, :peer_wallet_id, :actor_id, :kind, :amount, :balance_after, :reference, :created_at)`
	if _, err := tx.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("wallet_repo.InsertLedgerTx: %w", err)
	}
	return nil
}

// ListLedger returns a wallet's ledger history, newest first. Exchange rows
// surface on both sides of the transfer.
func (r *WalletRepository) ListLedger(ctx context.Context, walletID uuid.UUID, limit, offset int) ([]*domain.WalletTransaction, error) {
	var entries []*domain.WalletTransaction
	err := r.db.SelectContext(ctx, &entries, `
		SELECT * FROM wallet_transactions
		WHERE wallet_id = $1 OR peer_wallet_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`,
		walletID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("wallet_repo.ListLedger: %w", err)
	}
	return entries, nil
}

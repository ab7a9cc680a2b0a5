// Package service contains the business logic of the marketplace backbone.
// Services own transaction boundaries; repositories own SQL.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/vitrino/marketplace/internal/domain"
	"github.com/vitrino/marketplace/internal/metrics"
	"github.com/vitrino/marketplace/internal/repository"
)

// ──────────────────────────────────────────────────────────────────────────────
// LedgerService
// ──────────────────────────────────────────────────────────────────────────────

// LedgerService owns every wallet balance mutation. Each operation locks the
// affected wallet rows FOR UPDATE, mutates balances, and appends the ledger
// rows, all in one PostgreSQL transaction. The Tx variants run inside a
// caller-owned transaction so the payment orchestrator can compose them with
// its own writes.
type LedgerService struct {
	db         *sqlx.DB
	walletRepo *repository.WalletRepository
	log        *slog.Logger
}

// NewLedgerService creates a LedgerService.
func NewLedgerService(db *sqlx.DB, walletRepo *repository.WalletRepository, log *slog.Logger) *LedgerService {
	return &LedgerService{db: db, walletRepo: walletRepo, log: log}
}

// CreateWallet opens a wallet for a user with a zero balance.
func (s *LedgerService) CreateWallet(ctx context.Context, ownerID uuid.UUID) (*domain.Wallet, error) {
	now := time.Now().UTC()
	w := &domain.Wallet{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		Balance:   decimal.Zero,
		Status:    domain.WalletActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.walletRepo.Create(ctx, w); err != nil {
		return nil, fmt.Errorf("ledger_service.CreateWallet: %w", err)
	}
	return w, nil
}

// GetWallet returns a wallet by id.
func (s *LedgerService) GetWallet(ctx context.Context, id uuid.UUID) (*domain.Wallet, error) {
	return s.walletRepo.GetByID(ctx, id)
}

// GetWalletByOwner returns a user's wallet.
func (s *LedgerService) GetWalletByOwner(ctx context.Context, ownerID uuid.UUID) (*domain.Wallet, error) {
	return s.walletRepo.GetByOwner(ctx, ownerID)
}

// History returns a wallet's ledger entries, newest first.
func (s *LedgerService) History(ctx context.Context, walletID uuid.UUID, limit, offset int) ([]*domain.WalletTransaction, error) {
	return s.walletRepo.ListLedger(ctx, walletID, limit, offset)
}

// ── Increase ─────────────────────────────────────────────────────────────────

// Increase credits a wallet in its own transaction. actorID names who asked
// for the credit; nil marks a system-driven entry.
func (s *LedgerService) Increase(ctx context.Context, walletID uuid.UUID, amount decimal.Decimal, actorID *uuid.UUID, reference string) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ledger_service.Increase: begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = s.IncreaseTx(ctx, tx, walletID, amount, actorID, reference); err != nil {
		metrics.RecordLedgerOp("deposit", "error")
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("ledger_service.Increase: commit: %w", err)
	}
	metrics.RecordLedgerOp("deposit", "ok")
	return nil
}

// IncreaseTx credits a wallet inside a caller-owned transaction. Locks the
// row, writes the new balance, appends one deposit ledger row.
func (s *LedgerService) IncreaseTx(ctx context.Context, tx *sqlx.Tx, walletID uuid.UUID, amount decimal.Decimal, actorID *uuid.UUID, reference string) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("%w: amount must be positive", domain.ErrValidation)
	}

	w, err := s.walletRepo.LockTx(ctx, tx, walletID)
	if err != nil {
		return fmt.Errorf("ledger_service.IncreaseTx: lock: %w", err)
	}
	if !w.Active() {
		return domain.ErrWalletInactive
	}

	newBalance := w.Balance.Add(amount)
	if err := s.walletRepo.UpdateBalanceTx(ctx, tx, walletID, newBalance); err != nil {
		return fmt.Errorf("ledger_service.IncreaseTx: update: %w", err)
	}
	entry := &domain.WalletTransaction{
		ID:           uuid.New(),
		WalletID:     walletID,
		ActorID:      actorID,
		Kind:         domain.LedgerDeposit,
		Amount:       amount,
		BalanceAfter: newBalance,
		Reference:    reference,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.walletRepo.InsertLedgerTx(ctx, tx, entry); err != nil {
		return fmt.Errorf("ledger_service.IncreaseTx: ledger: %w", err)
	}
	return nil
}

// ── Decrease ─────────────────────────────────────────────────────────────────

// Decrease debits a wallet in its own transaction. Fails with
// ErrInsufficientBalance when the locked balance cannot cover the amount.
func (s *LedgerService) Decrease(ctx context.Context, walletID uuid.UUID, amount decimal.Decimal, actorID *uuid.UUID, reference string) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ledger_service.Decrease: begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = s.DecreaseTx(ctx, tx, walletID, amount, actorID, reference); err != nil {
		metrics.RecordLedgerOp("withdraw", "error")
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("ledger_service.Decrease: commit: %w", err)
	}
	metrics.RecordLedgerOp("withdraw", "ok")
	return nil
}

// DecreaseTx debits a wallet inside a caller-owned transaction. The balance
// check runs on the locked row, so concurrent debits serialise and the
// balance can never go negative.
func (s *LedgerService) DecreaseTx(ctx context.Context, tx *sqlx.Tx, walletID uuid.UUID, amount decimal.Decimal, actorID *uuid.UUID, reference string) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("%w: amount must be positive", domain.ErrValidation)
	}

	w, err := s.walletRepo.LockTx(ctx, tx, walletID)
	if err != nil {
		return fmt.Errorf("ledger_service.DecreaseTx: lock: %w", err)
	}
	if !w.Active() {
		return domain.ErrWalletInactive
	}
	if w.Balance.LessThan(amount) {
		return domain.ErrInsufficientBalance
	}

	newBalance := w.Balance.Sub(amount)
	if err := s.walletRepo.UpdateBalanceTx(ctx, tx, walletID, newBalance); err != nil {
		return fmt.Errorf("ledger_service.DecreaseTx: update: %w", err)
	}
	entry := &domain.WalletTransaction{
		ID:           uuid.New(),
		WalletID:     walletID,
		ActorID:      actorID,
		Kind:         domain.LedgerWithdraw,
		Amount:       amount,
		BalanceAfter: newBalance,
		Reference:    reference,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.walletRepo.InsertLedgerTx(ctx, tx, entry); err != nil {
		return fmt.Errorf("ledger_service.DecreaseTx: ledger: %w", err)
	}
	return nil
}

// ── Transfer ─────────────────────────────────────────────────────────────────

// Transfer moves amount between two wallets atomically. Both rows are locked
// in ascending id order regardless of direction, so two opposite transfers
// running concurrently cannot deadlock. A single exchange ledger row records
// both endpoints.
func (s *LedgerService) Transfer(ctx context.Context, fromID, toID uuid.UUID, amount decimal.Decimal, actorID *uuid.UUID, reference string) (err error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("%w: amount must be positive", domain.ErrValidation)
	}
	if fromID == toID {
		return domain.ErrSameWallet
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ledger_service.Transfer: begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	from, to, err := s.walletRepo.LockPairTx(ctx, tx, fromID, toID)
	if err != nil {
		metrics.RecordLedgerOp("exchange", "error")
		return fmt.Errorf("ledger_service.Transfer: lock pair: %w", err)
	}
	if !from.Active() || !to.Active() {
		err = domain.ErrWalletInactive
		return err
	}
	if from.Balance.LessThan(amount) {
		err = domain.ErrInsufficientBalance
		metrics.RecordLedgerOp("exchange", "insufficient")
		return err
	}

	fromBalance := from.Balance.Sub(amount)
	toBalance := to.Balance.Add(amount)
	if err = s.walletRepo.UpdateBalanceTx(ctx, tx, fromID, fromBalance); err != nil {
		return fmt.Errorf("ledger_service.Transfer: debit: %w", err)
	}
	if err = s.walletRepo.UpdateBalanceTx(ctx, tx, toID, toBalance); err != nil {
		return fmt.Errorf("ledger_service.Transfer: credit: %w", err)
	}

	entry := &domain.WalletTransaction{
		ID:           uuid.New(),
		WalletID:     fromID,
		PeerWalletID: &toID,
		ActorID:      actorID,
		Kind:         domain.LedgerExchange,
		Amount:       amount,
		BalanceAfter: fromBalance,
		Reference:    reference,
		CreatedAt:    time.Now().UTC(),
	}
	if err = s.walletRepo.InsertLedgerTx(ctx, tx, entry); err != nil {
		return fmt.Errorf("ledger_service.Transfer: ledger: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("ledger_service.Transfer: commit: %w", err)
	}
	metrics.RecordLedgerOp("exchange", "ok")
	s.log.Info("wallet transfer committed",
		"from", fromID, "to", toID, "amount", amount.String())
	return nil
}

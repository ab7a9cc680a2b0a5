package service_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/vitrino/marketplace/internal/domain"
	"github.com/vitrino/marketplace/internal/repository"
	"github.com/vitrino/marketplace/internal/service"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { mockDB.Close() })
	return sqlx.NewDb(mockDB, "sqlmock"), mock
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func decimalFromInt(n int64) decimal.Decimal { return decimal.NewFromInt(n) }

func walletRows(id, owner uuid.UUID, balance, status string) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{"id", "owner_id", "balance", "status", "created_at", "updated_at"}).
		AddRow(id.String(), owner.String(), balance, status, now, now)
}

func TestDecrease_InsufficientBalanceRollsBack(t *testing.T) {
	db, mock := newMockDB(t)
	svc := service.NewLedgerService(db, repository.NewWalletRepository(db), discardLogger())

	walletID, owner := uuid.New(), uuid.New()
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM wallets WHERE id = \$1 FOR UPDATE`).
		WithArgs(walletID).
		WillReturnRows(walletRows(walletID, owner, "100", "active"))
	mock.ExpectRollback()

	err := svc.Decrease(context.Background(), walletID, decimalFromInt(500), nil, "test")
	if !errors.Is(err, domain.ErrInsufficientBalance) {
		t.Fatalf("want ErrInsufficientBalance, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestDecrease_WritesBalanceAndLedger(t *testing.T) {
	db, mock := newMockDB(t)
	svc := service.NewLedgerService(db, repository.NewWalletRepository(db), discardLogger())

	walletID, owner := uuid.New(), uuid.New()
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM wallets WHERE id = \$1 FOR UPDATE`).
		WithArgs(walletID).
		WillReturnRows(walletRows(walletID, owner, "1000", "active"))
	mock.ExpectExec(`UPDATE wallets SET balance = \$1`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO wallet_transactions`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := svc.Decrease(context.Background(), walletID, decimalFromInt(300), nil, "test"); err != nil {
		t.Fatalf("Decrease: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestDecrease_FrozenWallet(t *testing.T) {
	db, mock := newMockDB(t)
	svc := service.NewLedgerService(db, repository.NewWalletRepository(db), discardLogger())

	walletID, owner := uuid.New(), uuid.New()
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM wallets WHERE id = \$1 FOR UPDATE`).
		WithArgs(walletID).
		WillReturnRows(walletRows(walletID, owner, "1000", "frozen"))
	mock.ExpectRollback()

	err := svc.Decrease(context.Background(), walletID, decimalFromInt(100), nil, "test")
	if !errors.Is(err, domain.ErrWalletInactive) {
		t.Fatalf("want ErrWalletInactive, got %v", err)
	}
}

func TestIncrease_RejectsNonPositiveAmount(t *testing.T) {
	db, mock := newMockDB(t)
	svc := service.NewLedgerService(db, repository.NewWalletRepository(db), discardLogger())

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := svc.Increase(context.Background(), uuid.New(), decimalFromInt(0), nil, "test")
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("want ErrValidation, got %v", err)
	}
}

// Wallet ids with fixed bytes so the canonical lock order is known.
var (
	lowWallet  = uuid.MustParse("11111111-1111-1111-1111-111111111111")
	highWallet = uuid.MustParse("99999999-9999-9999-9999-999999999999")
)

func TestTransfer_LocksAscendingRegardlessOfDirection(t *testing.T) {
	db, mock := newMockDB(t)
	svc := service.NewLedgerService(db, repository.NewWalletRepository(db), discardLogger())
	owner := uuid.New()

	// Transfer FROM the high wallet TO the low wallet: the low id must still
	// be locked first.
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM wallets WHERE id = \$1 FOR UPDATE`).
		WithArgs(lowWallet).
		WillReturnRows(walletRows(lowWallet, owner, "0", "active"))
	mock.ExpectQuery(`SELECT \* FROM wallets WHERE id = \$1 FOR UPDATE`).
		WithArgs(highWallet).
		WillReturnRows(walletRows(highWallet, owner, "1000", "active"))
	mock.ExpectExec(`UPDATE wallets SET balance = \$1`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE wallets SET balance = \$1`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO wallet_transactions`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := svc.Transfer(context.Background(), highWallet, lowWallet, decimalFromInt(400), nil, "test"); err != nil {
		t.Fatalf("Transfer: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestTransfer_FailureAfterDebitRollsBack(t *testing.T) {
	db, mock := newMockDB(t)
	svc := service.NewLedgerService(db, repository.NewWalletRepository(db), discardLogger())
	owner := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM wallets WHERE id = \$1 FOR UPDATE`).
		WithArgs(lowWallet).
		WillReturnRows(walletRows(lowWallet, owner, "1000", "active"))
	mock.ExpectQuery(`SELECT \* FROM wallets WHERE id = \$1 FOR UPDATE`).
		WithArgs(highWallet).
		WillReturnRows(walletRows(highWallet, owner, "0", "active"))
	mock.ExpectExec(`UPDATE wallets SET balance = \$1`).
		WillReturnResult(sqlmock.NewResult(0, 1)) // debit applies
	mock.ExpectExec(`UPDATE wallets SET balance = \$1`).
		WillReturnError(errors.New("connection reset")) // credit fails
	mock.ExpectRollback()

	err := svc.Transfer(context.Background(), lowWallet, highWallet, decimalFromInt(400), nil, "test")
	if err == nil {
		t.Fatal("expected transfer to fail")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("rollback not issued: %v", err)
	}
}

func TestTransfer_SameWallet(t *testing.T) {
	db, _ := newMockDB(t)
	svc := service.NewLedgerService(db, repository.NewWalletRepository(db), discardLogger())

	id := uuid.New()
	err := svc.Transfer(context.Background(), id, id, decimalFromInt(10), nil, "test")
	if !errors.Is(err, domain.ErrSameWallet) {
		t.Fatalf("want ErrSameWallet, got %v", err)
	}
}

func TestTransfer_InsufficientAfterLock(t *testing.T) {
	db, mock := newMockDB(t)
	svc := service.NewLedgerService(db, repository.NewWalletRepository(db), discardLogger())
	owner := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM wallets WHERE id = \$1 FOR UPDATE`).
		WithArgs(lowWallet).
		WillReturnRows(walletRows(lowWallet, owner, "100", "active"))
	mock.ExpectQuery(`SELECT \* FROM wallets WHERE id = \$1 FOR UPDATE`).
		WithArgs(highWallet).
		WillReturnRows(walletRows(highWallet, owner, "0", "active"))
	mock.ExpectRollback()

	err := svc.Transfer(context.Background(), lowWallet, highWallet, decimalFromInt(400), nil, "test")
	if !errors.Is(err, domain.ErrInsufficientBalance) {
		t.Fatalf("want ErrInsufficientBalance, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

// The ledger row must say who asked for the move, not just what moved.
func TestTransfer_RecordsActor(t *testing.T) {
	db, mock := newMockDB(t)
	svc := service.NewLedgerService(db, repository.NewWalletRepository(db), discardLogger())
	owner := uuid.New()
	actor := uuid.MustParse("aaaaaaaa-aaaa-aaaa-aaaa-aaaaaaaaaaaa")

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM wallets WHERE id = \$1 FOR UPDATE`).
		WithArgs(lowWallet).
		WillReturnRows(walletRows(lowWallet, owner, "1000", "active"))
	mock.ExpectQuery(`SELECT \* FROM wallets WHERE id = \$1 FOR UPDATE`).
		WithArgs(highWallet).
		WillReturnRows(walletRows(highWallet, owner, "0", "active"))
	mock.ExpectExec(`UPDATE wallets SET balance = \$1`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE wallets SET balance = \$1`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	// Insert order: id, wallet_id, peer_wallet_id, actor_id, kind, amount,
	// balance_after, reference, created_at.
	mock.ExpectExec(`INSERT INTO wallet_transactions`).
		WithArgs(sqlmock.AnyArg(), lowWallet, highWallet, actor,
			"exchange", "400", "600", "audit", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := svc.Transfer(context.Background(), lowWallet, highWallet, decimalFromInt(400), &actor, "audit"); err != nil {
		t.Fatalf("Transfer: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

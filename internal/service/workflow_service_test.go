package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/vitrino/marketplace/internal/domain"
	"github.com/vitrino/marketplace/internal/repository"
	"github.com/vitrino/marketplace/internal/service"
)

func marketRows(id, owner uuid.UUID, status domain.MarketStatus, isPaid bool) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "owner_id", "title", "slug", "status", "is_paid",
		"subscription_starts_at", "subscription_ends_at",
		"gateway_kind", "personal_gateway", "created_at", "updated_at",
	}).AddRow(id.String(), owner.String(), "Shop", "shop", string(status), isPaid,
		nil, nil, "platform", nil, now, now)
}

func newWorkflow(db *sqlx.DB) *service.WorkflowService {
	return service.NewWorkflowService(db, repository.NewMarketRepository(db), discardLogger())
}

func TestTransition_SuccessWritesStatusAndHistory(t *testing.T) {
	db, mock := newMockDB(t)
	wf := newWorkflow(db)

	marketID, owner, actor := uuid.New(), uuid.New(), uuid.New()
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM markets WHERE id = \$1 FOR UPDATE`).
		WithArgs(marketID).
		WillReturnRows(marketRows(marketID, owner, domain.StatusPaidQueue, true))
	mock.ExpectExec(`UPDATE markets SET status = \$1, is_paid = \$2`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO market_workflow_history`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	summary, err := wf.Transition(context.Background(), marketID, domain.StatusPublished, &actor, "looks good")
	if err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if summary.From != domain.StatusPaidQueue || summary.To != domain.StatusPublished {
		t.Fatalf("summary edge = %s -> %s", summary.From, summary.To)
	}
	if !summary.IsPaid {
		t.Fatal("published market must be flagged paid")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestTransition_InvalidEdgeWritesNothing(t *testing.T) {
	db, mock := newMockDB(t)
	wf := newWorkflow(db)

	marketID, owner := uuid.New(), uuid.New()
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM markets WHERE id = \$1 FOR UPDATE`).
		WithArgs(marketID).
		WillReturnRows(marketRows(marketID, owner, domain.StatusPublished, true))
	mock.ExpectRollback()

	_, err := wf.Transition(context.Background(), marketID, domain.StatusPaidQueue, nil, "")
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("want ErrInvalidTransition, got %v", err)
	}
	// No UPDATE or INSERT was expected; any write would fail the mock.
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestTransition_UnknownMarket(t *testing.T) {
	db, mock := newMockDB(t)
	wf := newWorkflow(db)

	marketID := uuid.New()
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM markets WHERE id = \$1 FOR UPDATE`).
		WithArgs(marketID).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	_, err := wf.Transition(context.Background(), marketID, domain.StatusInactive, nil, "")
	if !domain.IsNotFound(err) {
		t.Fatalf("want not found, got %v", err)
	}
}

type captureListener struct {
	got []domain.TransitionSummary
}

func (c *captureListener) TransitionCommitted(_ context.Context, s domain.TransitionSummary) {
	c.got = append(c.got, s)
}

func TestTransition_NotifiesListenersAfterCommit(t *testing.T) {
	db, mock := newMockDB(t)
	wf := newWorkflow(db)
	listener := &captureListener{}
	wf.AddListener(listener)

	marketID, owner := uuid.New(), uuid.New()
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM markets WHERE id = \$1 FOR UPDATE`).
		WithArgs(marketID).
		WillReturnRows(marketRows(marketID, owner, domain.StatusPublished, true))
	mock.ExpectExec(`UPDATE markets SET status = \$1, is_paid = \$2`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO market_workflow_history`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if _, err := wf.Transition(context.Background(), marketID, domain.StatusInactive, nil, "shutdown"); err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if len(listener.got) != 1 {
		t.Fatalf("listener calls = %d, want 1", len(listener.got))
	}
	if listener.got[0].To != domain.StatusInactive {
		t.Fatalf("listener saw %s", listener.got[0].To)
	}
}

func TestCreateMarket_Validation(t *testing.T) {
	db, _ := newMockDB(t)
	wf := newWorkflow(db)

	_, err := wf.CreateMarket(context.Background(), uuid.New(), "  ", domain.GatewayPlatform, nil)
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("want ErrValidation for empty title, got %v", err)
	}

	_, err = wf.CreateMarket(context.Background(), uuid.New(), "My Shop", domain.GatewayPersonal, nil)
	if !errors.Is(err, domain.ErrMissingGatewayConfig) {
		t.Fatalf("want ErrMissingGatewayConfig, got %v", err)
	}
}

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"My Shop":        "my-shop",
		"  Caffè  24/7 ": "caff-24-7",
		"already-good":   "already-good",
	}
	for in, want := range cases {
		if got := service.Slugify(in); got != want {
			t.Errorf("Slugify(%q) = %q, want %q", in, got, want)
		}
	}
}

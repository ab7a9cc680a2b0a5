package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/vitrino/marketplace/internal/domain"
	"github.com/vitrino/marketplace/internal/repository"
)

// ──────────────────────────────────────────────────────────────────────────────
// ApprovalService
// ──────────────────────────────────────────────────────────────────────────────

// ApprovalService manages market approval requests. Requests drive, but
// never bypass, the workflow: every approved decision moves the market
// through WorkflowService.TransitionTx inside the same transaction as the
// decision write.
type ApprovalService struct {
	db           *sqlx.DB
	approvalRepo *repository.ApprovalRepository
	marketRepo   *repository.MarketRepository
	workflow     *WorkflowService
	log          *slog.Logger
}

// NewApprovalService creates an ApprovalService.
func NewApprovalService(
	db *sqlx.DB,
	approvalRepo *repository.ApprovalRepository,
	marketRepo *repository.MarketRepository,
	workflow *WorkflowService,
	log *slog.Logger,
) *ApprovalService {
	return &ApprovalService{
		db:           db,
		approvalRepo: approvalRepo,
		marketRepo:   marketRepo,
		workflow:     workflow,
		log:          log,
	}
}

// submitPrecondition names the state a market must be in to file each kind
// of request.
var submitPrecondition = map[domain.ApprovalKind]domain.MarketStatus{
	domain.ApprovalPublication:  domain.StatusPaidUnderCreation,
	domain.ApprovalEditing:      domain.StatusPublished,
	domain.ApprovalReactivation: domain.StatusInactive,
}

// ── Submit ───────────────────────────────────────────────────────────────────

// Submit files an approval request on behalf of a market owner. Publication
// requests also move the market into the review queue, in the same
// transaction as the request insert.
func (s *ApprovalService) Submit(ctx context.Context, marketID, requesterID uuid.UUID, kind domain.ApprovalKind, note string) (req *domain.MarketApprovalRequest, err error) {
	if !kind.IsValid() {
		return nil, fmt.Errorf("%w: unknown approval kind %q", domain.ErrValidation, kind)
	}

	m, err := s.marketRepo.GetByID(ctx, marketID)
	if err != nil {
		return nil, err
	}
	if m.OwnerID != requesterID {
		return nil, domain.ErrForbidden
	}
	if want := submitPrecondition[kind]; m.Status != want {
		return nil, fmt.Errorf("%w: %s requires status %s, market is %s",
			domain.ErrInvalidTransition, kind, want, m.Status)
	}
	pending, err := s.approvalRepo.HasPending(ctx, marketID, kind)
	if err != nil {
		return nil, err
	}
	if pending {
		return nil, domain.ErrDuplicate
	}

	req = &domain.MarketApprovalRequest{
		ID:        uuid.New(),
		MarketID:  marketID,
		Requester: requesterID,
		Kind:      kind,
		Status:    domain.ApprovalPending,
		Note:      note,
		CreatedAt: time.Now().UTC(),
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("approval_service.Submit: begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = s.approvalRepo.CreateTx(ctx, tx, req); err != nil {
		return nil, err
	}

	// Filing a publication request is what puts the market in the queue.
	var summary *domain.TransitionSummary
	if kind == domain.ApprovalPublication {
		summary, err = s.workflow.TransitionTx(ctx, tx, marketID, domain.StatusPaidQueue, &requesterID, "publication requested")
		if err != nil {
			return nil, err
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("approval_service.Submit: commit: %w", err)
	}
	if summary != nil {
		s.workflow.NotifyCommitted(ctx, *summary)
	}

	s.log.Info("approval request submitted",
		"request_id", req.ID, "market_id", marketID, "kind", kind)
	return req, nil
}

// ── Decide ───────────────────────────────────────────────────────────────────

// decisionEdge returns the market state an approval decision implies, or ""
// when the decision leaves the market where it is.
func decisionEdge(kind domain.ApprovalKind, approved bool, m *domain.Market, now time.Time) domain.MarketStatus {
	switch kind {
	case domain.ApprovalPublication:
		if approved {
			return domain.StatusPublished
		}
		return domain.StatusPaidNonPublication
	case domain.ApprovalEditing:
		if approved {
			return domain.StatusPaidNeedsEditing
		}
	case domain.ApprovalReactivation:
		if approved {
			if m.SubscriptionEndsAt != nil && !m.SubscriptionExpired(now) {
				return domain.StatusPaidUnderCreation
			}
			return domain.StatusUnpaidUnderCreation
		}
	}
	return ""
}

// Decide records an admin decision exactly once and performs the implied
// transition in the same transaction. A second decision on the same request
// fails with ErrApprovalDecided and changes nothing.
func (s *ApprovalService) Decide(ctx context.Context, requestID, deciderID uuid.UUID, approved bool, response string) (err error) {
	req, err := s.approvalRepo.GetByID(ctx, requestID)
	if err != nil {
		return err
	}
	if !req.Pending() {
		return domain.ErrApprovalDecided
	}
	m, err := s.marketRepo.GetByID(ctx, req.MarketID)
	if err != nil {
		return err
	}

	status := domain.ApprovalRejected
	if approved {
		status = domain.ApprovalApproved
	}
	now := time.Now().UTC()
	target := decisionEdge(req.Kind, approved, m, now)

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("approval_service.Decide: begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = s.approvalRepo.DecideTx(ctx, tx, requestID, status, response, deciderID, now); err != nil {
		return err
	}

	var summary *domain.TransitionSummary
	if target != "" {
		summary, err = s.workflow.TransitionTx(ctx, tx, req.MarketID, target, &deciderID,
			fmt.Sprintf("%s %s", req.Kind, status))
		if err != nil {
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("approval_service.Decide: commit: %w", err)
	}
	if summary != nil {
		s.workflow.NotifyCommitted(ctx, *summary)
	}

	s.log.Info("approval request decided",
		"request_id", requestID, "kind", req.Kind, "decision", status, "decider", deciderID)
	return nil
}

// ── Queries ──────────────────────────────────────────────────────────────────

// Get returns a request by id.
func (s *ApprovalService) Get(ctx context.Context, id uuid.UUID) (*domain.MarketApprovalRequest, error) {
	return s.approvalRepo.GetByID(ctx, id)
}

// ListPending returns the admin review queue, oldest first.
func (s *ApprovalService) ListPending(ctx context.Context, kind domain.ApprovalKind, limit, offset int) ([]*domain.MarketApprovalRequest, error) {
	if kind != "" && !kind.IsValid() {
		return nil, fmt.Errorf("%w: unknown approval kind %q", domain.ErrValidation, kind)
	}
	return s.approvalRepo.ListPending(ctx, kind, limit, offset)
}

// ListByMarket returns a market's request history, newest first.
func (s *ApprovalService) ListByMarket(ctx context.Context, marketID uuid.UUID, limit, offset int) ([]*domain.MarketApprovalRequest, error) {
	return s.approvalRepo.ListByMarket(ctx, marketID, limit, offset)
}

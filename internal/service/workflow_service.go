package service

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/vitrino/marketplace/internal/domain"
	"github.com/vitrino/marketplace/internal/metrics"
	"github.com/vitrino/marketplace/internal/repository"
)

// ──────────────────────────────────────────────────────────────────────────────
// Interfaces injected into WorkflowService to avoid import cycles
// ──────────────────────────────────────────────────────────────────────────────

// TransitionListener is notified after a transition commits. Implemented by
// RoutingService, which activates and deactivates hostname routing when
// markets enter or leave the published state.
type TransitionListener interface {
	TransitionCommitted(ctx context.Context, summary domain.TransitionSummary)
}

// ──────────────────────────────────────────────────────────────────────────────
// WorkflowService
// ──────────────────────────────────────────────────────────────────────────────

// WorkflowService owns the market lifecycle. Every transition locks the
// market row, validates the edge against the closed graph, mutates status
// and is_paid together, and appends exactly one history row, all in one
// transaction. Listeners run only after the commit.
type WorkflowService struct {
	db         *sqlx.DB
	marketRepo *repository.MarketRepository
	log        *slog.Logger
	listeners  []TransitionListener
}

// NewWorkflowService creates a WorkflowService.
func NewWorkflowService(db *sqlx.DB, marketRepo *repository.MarketRepository, log *slog.Logger) *WorkflowService {
	return &WorkflowService{db: db, marketRepo: marketRepo, log: log}
}

// AddListener injects a post-commit listener post-construction.
func (s *WorkflowService) AddListener(l TransitionListener) {
	s.listeners = append(s.listeners, l)
}

// ── Market CRUD ──────────────────────────────────────────────────────────────

var slugCleaner = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify derives a hostname-safe slug from a title.
func Slugify(title string) string {
	s := slugCleaner.ReplaceAllString(strings.ToLower(title), "-")
	return strings.Trim(s, "-")
}

// CreateMarket opens a new storefront in the unpaid_under_creation state.
func (s *WorkflowService) CreateMarket(ctx context.Context, ownerID uuid.UUID, title string, gatewayKind domain.GatewayKind, gatewayCfg domain.GatewayConfig) (*domain.Market, error) {
	if strings.TrimSpace(title) == "" {
		return nil, fmt.Errorf("%w: title is required", domain.ErrValidation)
	}
	slug := Slugify(title)
	if slug == "" {
		return nil, fmt.Errorf("%w: title yields an empty slug", domain.ErrValidation)
	}
	if gatewayKind == "" {
		gatewayKind = domain.GatewayPlatform
	}

	now := time.Now().UTC()
	m := &domain.Market{
		ID:              uuid.New(),
		OwnerID:         ownerID,
		Title:           title,
		Slug:            slug,
		Status:          domain.StatusUnpaidUnderCreation,
		IsPaid:          false,
		GatewayKind:     gatewayKind,
		PersonalGateway: gatewayCfg,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := m.ValidateGatewaySelection(); err != nil {
		return nil, err
	}
	if err := s.marketRepo.Create(ctx, m); err != nil {
		return nil, fmt.Errorf("workflow_service.CreateMarket: %w", err)
	}
	s.log.Info("market created", "market_id", m.ID, "owner_id", ownerID, "slug", slug)
	return m, nil
}

// GetMarket returns a market by id.
func (s *WorkflowService) GetMarket(ctx context.Context, id uuid.UUID) (*domain.Market, error) {
	return s.marketRepo.GetByID(ctx, id)
}

// GetMarketBySlug returns a market by its slug.
func (s *WorkflowService) GetMarketBySlug(ctx context.Context, slug string) (*domain.Market, error) {
	return s.marketRepo.GetBySlug(ctx, slug)
}

// ListMarketsByOwner returns a user's markets.
func (s *WorkflowService) ListMarketsByOwner(ctx context.Context, ownerID uuid.UUID) ([]*domain.Market, error) {
	return s.marketRepo.ListByOwner(ctx, ownerID)
}

// ListMarkets returns paginated markets, optionally filtered by status.
func (s *WorkflowService) ListMarkets(ctx context.Context, status domain.MarketStatus, limit, offset int) ([]*domain.Market, error) {
	if status != "" && !domain.IsValidStatus(status) {
		return nil, fmt.Errorf("%w: unknown status %q", domain.ErrValidation, status)
	}
	return s.marketRepo.List(ctx, status, limit, offset)
}

// UpdateGateway changes a market's gateway selection.
func (s *WorkflowService) UpdateGateway(ctx context.Context, id uuid.UUID, kind domain.GatewayKind, cfg domain.GatewayConfig) error {
	probe := domain.Market{GatewayKind: kind, PersonalGateway: cfg}
	if err := probe.ValidateGatewaySelection(); err != nil {
		return err
	}
	return s.marketRepo.UpdateGateway(ctx, id, kind, cfg)
}

// History returns a market's transition audit trail, oldest first.
func (s *WorkflowService) History(ctx context.Context, marketID uuid.UUID, limit, offset int) ([]*domain.MarketWorkflowHistory, error) {
	return s.marketRepo.ListHistory(ctx, marketID, limit, offset)
}

// ValidTargets returns the states reachable from a market's current state.
func (s *WorkflowService) ValidTargets(ctx context.Context, marketID uuid.UUID) (domain.MarketStatus, []domain.MarketStatus, error) {
	m, err := s.marketRepo.GetByID(ctx, marketID)
	if err != nil {
		return "", nil, err
	}
	return m.Status, domain.ValidTargets(m.Status), nil
}

// ── Transition ───────────────────────────────────────────────────────────────

// Transition moves a market to a new state in its own transaction and
// notifies listeners after the commit. actorID is nil for system-driven
// transitions.
func (s *WorkflowService) Transition(ctx context.Context, marketID uuid.UUID, to domain.MarketStatus, actorID *uuid.UUID, reason string) (summary *domain.TransitionSummary, err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("workflow_service.Transition: begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	summary, err = s.TransitionTx(ctx, tx, marketID, to, actorID, reason)
	if err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("workflow_service.Transition: commit: %w", err)
	}

	s.NotifyCommitted(ctx, *summary)
	return summary, nil
}

// TransitionTx performs the transition inside a caller-owned transaction so
// other services (payments, approvals) can compose it with their own writes.
// The caller is responsible for invoking NotifyCommitted after its commit.
func (s *WorkflowService) TransitionTx(ctx context.Context, tx *sqlx.Tx, marketID uuid.UUID, to domain.MarketStatus, actorID *uuid.UUID, reason string) (*domain.TransitionSummary, error) {
	m, err := s.marketRepo.GetForUpdateTx(ctx, tx, marketID)
	if err != nil {
		return nil, fmt.Errorf("workflow_service.TransitionTx: lock: %w", err)
	}

	if err := domain.CheckTransition(m.Status, to); err != nil {
		metrics.RecordTransitionRejected(string(m.Status), string(to))
		s.log.Warn("transition rejected",
			"market_id", marketID, "from", m.Status, "to", to)
		return nil, err
	}

	isPaid := domain.IsPaidStatus(to)
	if err := s.marketRepo.UpdateStatusTx(ctx, tx, marketID, to, isPaid); err != nil {
		return nil, fmt.Errorf("workflow_service.TransitionTx: update: %w", err)
	}

	now := time.Now().UTC()
	h := &domain.MarketWorkflowHistory{
		ID:         uuid.New(),
		MarketID:   marketID,
		FromStatus: m.Status,
		ToStatus:   to,
		ActorID:    actorID,
		Reason:     reason,
		CreatedAt:  now,
	}
	if err := s.marketRepo.InsertHistoryTx(ctx, tx, h); err != nil {
		return nil, fmt.Errorf("workflow_service.TransitionTx: history: %w", err)
	}

	return &domain.TransitionSummary{
		MarketID:   marketID,
		From:       m.Status,
		To:         to,
		IsPaid:     isPaid,
		ActorID:    actorID,
		Reason:     reason,
		OccurredAt: now,
	}, nil
}

// NotifyCommitted records metrics and fans a committed transition out to
// listeners. Callers of TransitionTx invoke it after their own commit.
func (s *WorkflowService) NotifyCommitted(ctx context.Context, summary domain.TransitionSummary) {
	metrics.RecordTransition(string(summary.From), string(summary.To))
	s.log.Info("market transition committed",
		"market_id", summary.MarketID,
		"from", summary.From,
		"to", summary.To,
		"action", domain.ActionVerb(summary.From, summary.To))
	for _, l := range s.listeners {
		l.TransitionCommitted(ctx, summary)
	}
}

// SetSubscriptionTx records the paid window inside a caller-owned
// transaction; used by the payment orchestrator when a subscription fee
// verifies.
func (s *WorkflowService) SetSubscriptionTx(ctx context.Context, tx *sqlx.Tx, marketID uuid.UUID, start, end time.Time) error {
	return s.marketRepo.SetSubscriptionTx(ctx, tx, marketID, start, end)
}

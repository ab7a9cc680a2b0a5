package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/vitrino/marketplace/internal/domain"
	"github.com/vitrino/marketplace/internal/repository"
)

// ──────────────────────────────────────────────────────────────────────────────
// RoutingService
// ──────────────────────────────────────────────────────────────────────────────

// RoutingService keeps the market_domains registry in step with the
// lifecycle: a market entering published gets an active hostname entry, and
// one leaving published has its entries deactivated. It subscribes to the
// workflow as a TransitionListener; routing never mutates process-wide
// configuration.
type RoutingService struct {
	routingRepo *repository.RoutingRepository
	marketRepo  *repository.MarketRepository
	baseDomain  string
	log         *slog.Logger
}

// NewRoutingService creates a RoutingService.
func NewRoutingService(routingRepo *repository.RoutingRepository, marketRepo *repository.MarketRepository, baseDomain string, log *slog.Logger) *RoutingService {
	return &RoutingService{
		routingRepo: routingRepo,
		marketRepo:  marketRepo,
		baseDomain:  baseDomain,
		log:         log,
	}
}

// Hostname returns the hostname a market slug is served under.
func (s *RoutingService) Hostname(slug string) string {
	return fmt.Sprintf("%s.%s", slug, s.baseDomain)
}

// TransitionCommitted implements TransitionListener. Runs after the
// workflow's commit; a registry write failure here is logged, not
// propagated, since the lifecycle change already happened.
func (s *RoutingService) TransitionCommitted(ctx context.Context, summary domain.TransitionSummary) {
	entering := domain.IsRoutable(summary.To)
	leaving := domain.IsRoutable(summary.From) && !entering
	if !entering && !leaving {
		return
	}

	if leaving {
		if err := s.routingRepo.Deactivate(ctx, summary.MarketID); err != nil {
			s.log.Error("routing deactivate failed", "market_id", summary.MarketID, "error", err)
		}
		return
	}

	m, err := s.marketRepo.GetByID(ctx, summary.MarketID)
	if err != nil {
		s.log.Error("routing activate: market lookup failed", "market_id", summary.MarketID, "error", err)
		return
	}
	now := time.Now().UTC()
	entry := &domain.MarketDomain{
		ID:        uuid.New(),
		MarketID:  m.ID,
		Hostname:  s.Hostname(m.Slug),
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.routingRepo.Upsert(ctx, entry); err != nil {
		s.log.Error("routing activate failed", "market_id", m.ID, "error", err)
		return
	}
	s.log.Info("routing activated", "market_id", m.ID, "hostname", entry.Hostname)
}

// Resolve maps a hostname to its published market.
func (s *RoutingService) Resolve(ctx context.Context, hostname string) (*domain.Market, error) {
	entry, err := s.routingRepo.GetActiveByHostname(ctx, hostname)
	if err != nil {
		return nil, err
	}
	return s.marketRepo.GetByID(ctx, entry.MarketID)
}

// ListByMarket returns a market's routing entries.
func (s *RoutingService) ListByMarket(ctx context.Context, marketID uuid.UUID) ([]*domain.MarketDomain, error) {
	return s.routingRepo.ListByMarket(ctx, marketID)
}

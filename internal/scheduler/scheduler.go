// Package scheduler runs the two background sweeps of the marketplace:
//  1. subscriptionExpiryLoop – deactivates markets whose paid window lapsed.
//  2. stalePaymentLoop       – expires pending platform payments older than
//     the gateway pending TTL.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/vitrino/marketplace/internal/config"
	"github.com/vitrino/marketplace/internal/domain"
	"github.com/vitrino/marketplace/internal/repository"
	"github.com/vitrino/marketplace/internal/service"
)

const sweepBatchSize = 100

// Scheduler wires together the services and runs the background sweeps.
// Call Start(ctx) once from main(); cancel the context to shut it down
// gracefully.
type Scheduler struct {
	workflow   *service.WorkflowService
	paymentSvc *service.PaymentService
	marketRepo *repository.MarketRepository
	cfg        *config.Config
	logger     *slog.Logger
}

// NewScheduler creates a Scheduler.
func NewScheduler(
	workflow *service.WorkflowService,
	paymentSvc *service.PaymentService,
	marketRepo *repository.MarketRepository,
	cfg *config.Config,
	logger *slog.Logger,
) *Scheduler {
	return &Scheduler{
		workflow:   workflow,
		paymentSvc: paymentSvc,
		marketRepo: marketRepo,
		cfg:        cfg,
		logger:     logger,
	}
}

// Start launches the background goroutines. It returns immediately; all
// loops run until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	go s.subscriptionExpiryLoop(ctx)
	go s.stalePaymentLoop(ctx)
	s.logger.Info("scheduler started",
		"expiry_sweep_every", s.cfg.Market.ExpirySweepEvery,
		"pending_ttl", s.cfg.Gateway.PendingTTL)
}

// ──────────────────────────────────────────────────────────────────────────────
// subscriptionExpiryLoop
// ──────────────────────────────────────────────────────────────────────────────

// subscriptionExpiryLoop periodically deactivates markets whose subscription
// window has lapsed. Deactivation goes through the workflow like any other
// transition, so it lands in market_workflow_history and routing entries are
// torn down by the listeners.
func (s *Scheduler) subscriptionExpiryLoop(ctx context.Context) {
	defer s.recoverAndLog("subscriptionExpiryLoop")

	ticker := time.NewTicker(s.cfg.Market.ExpirySweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("subscriptionExpiryLoop: shutting down")
			return
		case <-ticker.C:
			s.sweepExpiredSubscriptions(ctx)
		}
	}
}

func (s *Scheduler) sweepExpiredSubscriptions(ctx context.Context) {
	expired, err := s.marketRepo.ListExpiredSubscriptions(ctx, time.Now().UTC(), sweepBatchSize)
	if err != nil {
		s.logger.Error("subscriptionExpiryLoop: list expired", "err", err)
		return
	}

	for _, m := range expired {
		_, err := s.workflow.Transition(ctx, m.ID, domain.StatusInactive, nil, "subscription expired")
		if err != nil {
			// A renewal or another sweep may have moved it first; conflicts
			// are expected, anything else is worth a look.
			if domain.IsConflict(err) || domain.IsNotFound(err) {
				continue
			}
			s.logger.Error("subscriptionExpiryLoop: deactivate", "market_id", m.ID, "err", err)
			continue
		}
		s.logger.Info("market deactivated, subscription expired",
			"market_id", m.ID, "slug", m.Slug)
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// stalePaymentLoop
// ──────────────────────────────────────────────────────────────────────────────

// stalePaymentLoop expires pending platform payments the payer abandoned.
// Runs at a quarter of the pending TTL so a payment is never pending for much
// longer than the TTL itself.
func (s *Scheduler) stalePaymentLoop(ctx context.Context) {
	defer s.recoverAndLog("stalePaymentLoop")

	every := s.cfg.Gateway.PendingTTL / 4
	if every < time.Minute {
		every = time.Minute
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("stalePaymentLoop: shutting down")
			return
		case <-ticker.C:
			n, err := s.paymentSvc.ExpireStalePending(ctx, s.cfg.Gateway.PendingTTL, sweepBatchSize)
			if err != nil {
				s.logger.Error("stalePaymentLoop: sweep", "err", err)
			} else if n > 0 {
				s.logger.Info("stalePaymentLoop: swept", "expired", n)
			}
		}
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Panic recovery
// ──────────────────────────────────────────────────────────────────────────────

// recoverAndLog is deferred inside each goroutine to catch unexpected panics,
// log them, and allow the scheduler to continue running.
func (s *Scheduler) recoverAndLog(loop string) {
	if r := recover(); r != nil {
		s.logger.Error("PANIC recovered in scheduler loop",
			"loop", loop, "panic", r)
	}
}

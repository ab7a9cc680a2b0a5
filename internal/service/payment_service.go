package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/vitrino/marketplace/internal/config"
	"github.com/vitrino/marketplace/internal/domain"
	"github.com/vitrino/marketplace/internal/gateway"
	"github.com/vitrino/marketplace/internal/metrics"
	"github.com/vitrino/marketplace/internal/repository"
)

// ──────────────────────────────────────────────────────────────────────────────
// Target handlers
// ──────────────────────────────────────────────────────────────────────────────

// targetHandler bundles the per-target behaviour of the orchestrator.
// prepare validates the target and fixes the amount before any row is
// written; apply runs the post-payment side effect inside the verify
// success transaction and returns any workflow transitions it performed so
// the caller can announce them after the commit.
type targetHandler struct {
	prepare func(ctx context.Context, req CreateRequest) (decimal.Decimal, error)
	apply   func(ctx context.Context, tx *sqlx.Tx, p *domain.Payment) ([]domain.TransitionSummary, error)
}

// CreateRequest is the input to PaymentService.Create.
type CreateRequest struct {
	PayerID        uuid.UUID
	Target         domain.PaymentTarget
	TargetID       uuid.UUID
	Amount         decimal.Decimal // ignored for order and market targets (amount is authoritative server-side)
	IdempotencyKey *string
	Description    string
}

// ──────────────────────────────────────────────────────────────────────────────
// PaymentService
// ──────────────────────────────────────────────────────────────────────────────

// PaymentService orchestrates payment creation and exactly-once verification
// against the external gateway. The target dispatch table is closed: it is
// built at construction over every known target and anything else fails with
// ErrInvalidTarget before a single row is written.
//
// No row lock is ever held across an outbound gateway call: Create talks to
// the gateway after its insert transaction commits, and Verify talks to the
// gateway before its success transaction begins.
type PaymentService struct {
	db           *sqlx.DB
	paymentRepo  *repository.PaymentRepository
	commerceRepo *repository.CommerceRepository
	walletRepo   *repository.WalletRepository
	marketRepo   *repository.MarketRepository
	gw           gateway.Client
	ledger       *LedgerService
	workflow     *WorkflowService
	cfg          *config.Config
	log          *slog.Logger
	handlers     map[domain.PaymentTarget]targetHandler
}

// NewPaymentService creates a PaymentService and wires its dispatch table.
// Panics if the table does not cover every payment target; this is a
// programming error caught at boot.
func NewPaymentService(
	db *sqlx.DB,
	paymentRepo *repository.PaymentRepository,
	commerceRepo *repository.CommerceRepository,
	walletRepo *repository.WalletRepository,
	marketRepo *repository.MarketRepository,
	gw gateway.Client,
	ledger *LedgerService,
	workflow *WorkflowService,
	cfg *config.Config,
	log *slog.Logger,
) *PaymentService {
	s := &PaymentService{
		db:           db,
		paymentRepo:  paymentRepo,
		commerceRepo: commerceRepo,
		walletRepo:   walletRepo,
		marketRepo:   marketRepo,
		gw:           gw,
		ledger:       ledger,
		workflow:     workflow,
		cfg:          cfg,
		log:          log,
	}
	s.handlers = map[domain.PaymentTarget]targetHandler{
		domain.TargetAdvertisement: {prepare: s.prepareAdvertisement, apply: s.applyAdvertisement},
		domain.TargetWallet:        {prepare: s.prepareWallet, apply: s.applyWallet},
		domain.TargetOrder:         {prepare: s.prepareOrder, apply: s.applyOrder},
		domain.TargetMarket:        {prepare: s.prepareMarket, apply: s.applyMarket},
	}
	for _, t := range domain.AllTargets {
		if _, ok := s.handlers[t]; !ok {
			panic(fmt.Sprintf("payment_service: no handler for target %q", t))
		}
	}
	return s
}

// ── Create ───────────────────────────────────────────────────────────────────

// Create registers a payment intent and returns where to send the payer.
//
// Market targets whose market selected a personal gateway are
// short-circuited: a pending Payment is written, the redirect is assembled
// from the merchant's own configuration, and no gateway transaction row or
// external call is made.
//
// Platform payments insert the pending Payment plus an empty gateway
// transaction, then call the gateway. A communication failure leaves the
// Payment pending; there is no automatic retry, but a caller-supplied
// idempotency key makes an external retry return the existing pending
// payment instead of duplicating it.
func (s *PaymentService) Create(ctx context.Context, req CreateRequest) (*domain.RedirectInfo, error) {
	handler, ok := s.handlers[req.Target]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidTarget, req.Target)
	}

	// Idempotent replay: hand back the existing pending payment.
	if req.IdempotencyKey != nil && *req.IdempotencyKey != "" {
		existing, err := s.paymentRepo.GetByIdempotencyKey(ctx, req.PayerID, *req.IdempotencyKey)
		switch {
		case err == nil:
			if existing.Status != domain.PaymentPending {
				return nil, domain.ErrAlreadyProcessed
			}
			return s.redirectFor(ctx, existing)
		case !domain.IsNotFound(err):
			return nil, err
		}
	}

	amount, err := handler.prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%w: amount must be positive", domain.ErrValidation)
	}

	if req.Target == domain.TargetMarket {
		m, err := s.marketRepo.GetByID(ctx, req.TargetID)
		if err != nil {
			return nil, err
		}
		if m.UsesPersonalGateway() {
			return s.createPersonal(ctx, req, amount, m)
		}
	}
	return s.createPlatform(ctx, req, amount)
}

// createPersonal is the short-circuit path: pending payment only, redirect
// built from the merchant's stored configuration.
func (s *PaymentService) createPersonal(ctx context.Context, req CreateRequest, amount decimal.Decimal, m *domain.Market) (info *domain.RedirectInfo, err error) {
	if err := m.ValidateGatewaySelection(); err != nil {
		return nil, err
	}

	p := s.newPayment(req, amount, domain.GatewayPersonal)
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("payment_service.createPersonal: begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if err = s.paymentRepo.CreateTx(ctx, tx, p); err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("payment_service.createPersonal: commit: %w", err)
	}

	metrics.RecordPaymentCreated(string(req.Target), string(domain.GatewayPersonal))
	s.log.Info("personal-gateway payment created",
		"payment_id", p.ID, "market_id", m.ID, "amount", amount.String())
	return &domain.RedirectInfo{
		PaymentID:   p.ID,
		GatewayKind: domain.GatewayPersonal,
		RedirectURL: m.PersonalGateway[domain.GatewayURLKey],
	}, nil
}

// createPlatform inserts the pending payment and its gateway transaction,
// commits, and only then calls the gateway.
func (s *PaymentService) createPlatform(ctx context.Context, req CreateRequest, amount decimal.Decimal) (info *domain.RedirectInfo, err error) {
	p := s.newPayment(req, amount, domain.GatewayPlatform)
	gt := &domain.GatewayTransaction{
		ID:        uuid.New(),
		PaymentID: p.ID,
		Authority: "",
		CreatedAt: time.Now().UTC(),
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("payment_service.createPlatform: begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if err = s.paymentRepo.CreateTx(ctx, tx, p); err != nil {
		return nil, err
	}
	if err = s.paymentRepo.CreateGatewayTx(ctx, tx, gt); err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("payment_service.createPlatform: commit: %w", err)
	}

	// Outbound call after the commit; no lock is held here.
	start := time.Now()
	authority, gwErr := s.gw.Request(ctx, amount, p.Description, s.cfg.Gateway.CallbackURL)
	metrics.ObserveGatewayCall("request", time.Since(start))
	if gwErr != nil {
		// The payment stays pending; the scheduler expires it if never retried.
		s.log.Warn("gateway request failed, payment left pending",
			"payment_id", p.ID, "error", gwErr)
		return nil, gwErr
	}
	if err = s.paymentRepo.SetAuthority(ctx, p.ID, authority); err != nil {
		return nil, err
	}

	metrics.RecordPaymentCreated(string(req.Target), string(domain.GatewayPlatform))
	s.log.Info("platform payment created",
		"payment_id", p.ID, "target", req.Target, "amount", amount.String())
	return &domain.RedirectInfo{
		PaymentID:   p.ID,
		GatewayKind: domain.GatewayPlatform,
		RedirectURL: s.gw.PaymentURL(authority),
		Authority:   authority,
	}, nil
}

func (s *PaymentService) newPayment(req CreateRequest, amount decimal.Decimal, gw domain.GatewayKind) *domain.Payment {
	now := time.Now().UTC()
	return &domain.Payment{
		ID:             uuid.New(),
		PayerID:        req.PayerID,
		Target:         req.Target,
		TargetID:       req.TargetID,
		Amount:         amount,
		Status:         domain.PaymentPending,
		GatewayKind:    gw,
		IdempotencyKey: req.IdempotencyKey,
		Description:    req.Description,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// redirectFor rebuilds the redirect for an existing pending payment, used
// when an idempotency key replays a create.
func (s *PaymentService) redirectFor(ctx context.Context, p *domain.Payment) (*domain.RedirectInfo, error) {
	if p.GatewayKind == domain.GatewayPersonal {
		m, err := s.marketRepo.GetByID(ctx, p.TargetID)
		if err != nil {
			return nil, err
		}
		return &domain.RedirectInfo{
			PaymentID:   p.ID,
			GatewayKind: domain.GatewayPersonal,
			RedirectURL: m.PersonalGateway[domain.GatewayURLKey],
		}, nil
	}
	gt, err := s.paymentRepo.GetByPaymentID(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	if gt.Authority == "" {
		// The original create never reached the gateway; nothing to redirect
		// to yet. The caller retries without the key or lets the payment
		// expire.
		return nil, fmt.Errorf("%w: payment has no gateway authority yet", domain.ErrGatewayCommunication)
	}
	return &domain.RedirectInfo{
		PaymentID:   p.ID,
		GatewayKind: domain.GatewayPlatform,
		RedirectURL: s.gw.PaymentURL(gt.Authority),
		Authority:   gt.Authority,
	}, nil
}

// ── Verify ───────────────────────────────────────────────────────────────────

// Verify settles a payment from the gateway callback. The write-once gateway
// reference makes it exactly-once: a replayed callback fails with
// ErrAlreadyProcessed and repeats no side effect.
func (s *PaymentService) Verify(ctx context.Context, authority, callbackStatus string) (err error) {
	// 1. A definitive negative from the gateway touches nothing.
	if callbackStatus == "NOK" {
		return domain.ErrPaymentCancelled
	}

	// 2. Correlate the callback.
	gt, err := s.paymentRepo.GetByAuthority(ctx, authority)
	if err != nil {
		return err
	}

	// 3–4. Idempotency and state guards.
	if gt.Verified() {
		return domain.ErrAlreadyProcessed
	}
	p, err := s.paymentRepo.GetByID(ctx, gt.PaymentID)
	if err != nil {
		return err
	}
	if p.Status != domain.PaymentPending {
		return domain.ErrAlreadyProcessed
	}

	// 5. Outbound verify with the stored amount; no lock held.
	start := time.Now()
	res, err := s.gw.Verify(ctx, p.Amount, authority)
	metrics.ObserveGatewayCall("verify", time.Since(start))
	if err != nil {
		// Communication failure is not a verdict; the payment stays pending.
		return err
	}

	// 6. Definitive rejection: record the outcome.
	if !res.Succeeded() {
		_ = s.paymentRepo.RecordFailureCode(ctx, p.ID, res.Code)
		if settleErr := s.paymentRepo.Settle(ctx, p.ID, domain.PaymentFailed); settleErr != nil {
			return settleErr
		}
		metrics.RecordPaymentVerified(string(p.Target), "failed")
		s.log.Warn("gateway rejected payment", "payment_id", p.ID, "code", res.Code)
		return fmt.Errorf("%w: gateway code %d", domain.ErrGatewayVerification, res.Code)
	}

	// 7. Strict amount integrity; a falsy reported amount is a mismatch too.
	if !res.Amount.Equal(p.Amount) {
		if settleErr := s.paymentRepo.Settle(ctx, p.ID, domain.PaymentFailed); settleErr != nil {
			return settleErr
		}
		metrics.RecordPaymentVerified(string(p.Target), "mismatch")
		s.log.Warn("amount mismatch on verify",
			"payment_id", p.ID, "stored", p.Amount.String(), "reported", res.Amount.String())
		return fmt.Errorf("%w: expected %s, gateway reported %s",
			domain.ErrAmountMismatch, p.Amount, res.Amount)
	}

	// 8. Success path: side effect + both status writes, one transaction.
	handler := s.handlers[p.Target]
	var summaries []domain.TransitionSummary

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("payment_service.Verify: begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	// The IS NULL guard on the reference write decides the race: only one
	// concurrent verifier passes this line.
	if err = s.paymentRepo.ClaimRefTx(ctx, tx, p.ID, res.RefID, res.Code, time.Now().UTC()); err != nil {
		return err
	}
	if summaries, err = handler.apply(ctx, tx, p); err != nil {
		return err
	}
	if err = s.paymentRepo.SettleTx(ctx, tx, p.ID, domain.PaymentComplete); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("payment_service.Verify: commit: %w", err)
	}

	for _, sum := range summaries {
		s.workflow.NotifyCommitted(ctx, sum)
	}
	metrics.RecordPaymentVerified(string(p.Target), "complete")
	s.log.Info("payment verified",
		"payment_id", p.ID, "target", p.Target, "ref_id", res.RefID)
	return nil
}

// ── Queries ──────────────────────────────────────────────────────────────────

// GetPayment returns a payment by id.
func (s *PaymentService) GetPayment(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	return s.paymentRepo.GetByID(ctx, id)
}

// ListByPayer returns a payer's payments, newest first.
func (s *PaymentService) ListByPayer(ctx context.Context, payerID uuid.UUID, limit, offset int) ([]*domain.Payment, error) {
	return s.paymentRepo.ListByPayer(ctx, payerID, limit, offset)
}

// ExpireStalePending sweeps pending platform payments older than the
// configured TTL. Called by the scheduler.
func (s *PaymentService) ExpireStalePending(ctx context.Context, olderThan time.Duration, limit int) (int, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	stale, err := s.paymentRepo.ListStalePending(ctx, cutoff, limit)
	if err != nil {
		return 0, err
	}
	expired := 0
	for _, p := range stale {
		if err := s.paymentRepo.Settle(ctx, p.ID, domain.PaymentExpired); err != nil {
			if errors.Is(err, domain.ErrAlreadyProcessed) {
				continue // verified between the list and the sweep
			}
			return expired, err
		}
		metrics.RecordPaymentExpired()
		expired++
	}
	if expired > 0 {
		s.log.Info("expired stale pending payments", "count", expired)
	}
	return expired, nil
}

// ── Target handlers ──────────────────────────────────────────────────────────

func (s *PaymentService) prepareAdvertisement(ctx context.Context, req CreateRequest) (decimal.Decimal, error) {
	ad, err := s.commerceRepo.GetAdvertisement(ctx, req.TargetID)
	if err != nil {
		return decimal.Zero, err
	}
	if ad.Status == domain.AdPromoted {
		return decimal.Zero, domain.ErrAlreadyProcessed
	}
	return req.Amount, nil
}

func (s *PaymentService) applyAdvertisement(ctx context.Context, tx *sqlx.Tx, p *domain.Payment) ([]domain.TransitionSummary, error) {
	return nil, s.commerceRepo.PromoteAdvertisementTx(ctx, tx, p.TargetID, time.Now().UTC())
}

func (s *PaymentService) prepareWallet(ctx context.Context, req CreateRequest) (decimal.Decimal, error) {
	w, err := s.walletRepo.GetByID(ctx, req.TargetID)
	if err != nil {
		return decimal.Zero, err
	}
	if !w.Active() {
		return decimal.Zero, domain.ErrWalletInactive
	}
	return req.Amount, nil
}

func (s *PaymentService) applyWallet(ctx context.Context, tx *sqlx.Tx, p *domain.Payment) ([]domain.TransitionSummary, error) {
	return nil, s.ledger.IncreaseTx(ctx, tx, p.TargetID, p.Amount, &p.PayerID, p.ID.String())
}

func (s *PaymentService) prepareOrder(ctx context.Context, req CreateRequest) (decimal.Decimal, error) {
	o, err := s.commerceRepo.GetOrder(ctx, req.TargetID)
	if err != nil {
		return decimal.Zero, err
	}
	if o.Status != domain.OrderAwaitingPayment {
		return decimal.Zero, domain.ErrAlreadyProcessed
	}
	return o.Total, nil // the order total is authoritative
}

func (s *PaymentService) applyOrder(ctx context.Context, tx *sqlx.Tx, p *domain.Payment) ([]domain.TransitionSummary, error) {
	return nil, s.commerceRepo.MarkOrderPaidTx(ctx, tx, p.TargetID, time.Now().UTC())
}

func (s *PaymentService) prepareMarket(ctx context.Context, req CreateRequest) (decimal.Decimal, error) {
	if _, err := s.marketRepo.GetByID(ctx, req.TargetID); err != nil {
		return decimal.Zero, err
	}
	fee, err := decimal.NewFromString(s.cfg.Market.SubscriptionFee)
	if err != nil {
		return decimal.Zero, fmt.Errorf("payment_service: bad subscription fee config: %w", err)
	}
	return fee, nil
}

// applyMarket settles a subscription: record the paid window and move the
// market into the paid family through the workflow, never by writing status
// directly.
func (s *PaymentService) applyMarket(ctx context.Context, tx *sqlx.Tx, p *domain.Payment) ([]domain.TransitionSummary, error) {
	now := time.Now().UTC()
	if err := s.workflow.SetSubscriptionTx(ctx, tx, p.TargetID, now, now.Add(s.cfg.Market.SubscriptionPeriod)); err != nil {
		return nil, err
	}

	m, err := s.marketRepo.GetForUpdateTx(ctx, tx, p.TargetID)
	if err != nil {
		return nil, err
	}
	switch m.Status {
	case domain.StatusUnpaidUnderCreation, domain.StatusPaymentPending:
		summary, err := s.workflow.TransitionTx(ctx, tx, p.TargetID, domain.StatusPaidUnderCreation, nil, "subscription payment "+p.ID.String())
		if err != nil {
			return nil, err
		}
		return []domain.TransitionSummary{*summary}, nil
	default:
		// Renewal of an already-paid market: the window moved, status stands.
		return nil, nil
	}
}

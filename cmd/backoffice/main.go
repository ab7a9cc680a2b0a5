// Package main is the entry point for the vitrino back-office admin server.
// Runs on its own port and exposes staff-only endpoints protected by RBAC
// and an optional IP allowlist.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/vitrino/marketplace/internal/backoffice"
	"github.com/vitrino/marketplace/internal/config"
	"github.com/vitrino/marketplace/internal/gateway"
	"github.com/vitrino/marketplace/internal/repository"
	"github.com/vitrino/marketplace/internal/service"
)

func main() {
	// ── Config + logger ───────────────────────────────────────────────────────
	cfg := config.MustLoad()

	var logHandler slog.Handler
	if cfg.IsProd() {
		logHandler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	} else {
		logHandler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	}
	logger := slog.New(logHandler)
	slog.SetDefault(logger)

	logger.Info("starting vitrino backoffice server",
		"env", cfg.Server.Env, "port", cfg.Server.BackofficePort)

	// ── Database ──────────────────────────────────────────────────────────────
	db, err := sqlx.Connect("postgres", cfg.DB.DSN)
	if err != nil {
		logger.Error("database connection failed", "err", err)
		os.Exit(1)
	}
	db.SetMaxOpenConns(cfg.DB.MaxOpenConns)
	db.SetMaxIdleConns(cfg.DB.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.DB.ConnMaxLifetime)

	if err = db.Ping(); err != nil {
		logger.Error("database ping failed", "err", err)
		os.Exit(1)
	}
	logger.Info("database connected")

	// ── Repositories ──────────────────────────────────────────────────────────
	userRepo := repository.NewUserRepository(db)
	walletRepo := repository.NewWalletRepository(db)
	marketRepo := repository.NewMarketRepository(db)
	approvalRepo := repository.NewApprovalRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	commerceRepo := repository.NewCommerceRepository(db)
	routingRepo := repository.NewRoutingRepository(db)

	// ── Services ──────────────────────────────────────────────────────────────
	gw := gateway.NewHTTPClient(
		cfg.Gateway.BaseURL,
		cfg.Gateway.PaymentBaseURL,
		cfg.Gateway.MerchantID,
		&http.Client{Timeout: cfg.Gateway.Timeout},
	)

	authSvc := service.NewAuthService(db, userRepo, cfg)
	ledgerSvc := service.NewLedgerService(db, walletRepo, logger)
	workflowSvc := service.NewWorkflowService(db, marketRepo, logger)
	routingSvc := service.NewRoutingService(routingRepo, marketRepo, cfg.Market.BaseDomain, logger)
	approvalSvc := service.NewApprovalService(db, approvalRepo, marketRepo, workflowSvc, logger)
	paymentSvc := service.NewPaymentService(db, paymentRepo, commerceRepo, walletRepo, marketRepo,
		gw, ledgerSvc, workflowSvc, cfg, logger)

	// Admin transitions maintain routing entries the same way the public
	// server does.
	workflowSvc.AddListener(routingSvc)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Router ────────────────────────────────────────────────────────────────
	router := backoffice.SetupBackofficeRouter(backoffice.BackofficeDeps{
		AuthSvc:     authSvc,
		WorkflowSvc: workflowSvc,
		ApprovalSvc: approvalSvc,
		PaymentSvc:  paymentSvc,
		LedgerSvc:   ledgerSvc,
		RoutingSvc:  routingSvc,
		UserRepo:    userRepo,
		Cfg:         cfg,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.BackofficePort,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// ── Start ─────────────────────────────────────────────────────────────────
	go func() {
		logger.Info("backoffice http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("backoffice server error", "err", err)
			stop()
		}
	}()

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err = srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("backoffice shutdown error", "err", err)
	}

	db.Close()
	logger.Info("backoffice server stopped cleanly")
}

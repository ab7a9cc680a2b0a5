// Package main is the entry point for the vitrino marketplace API server.
// It wires together all services and starts the HTTP server alongside the
// background scheduler.
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
	_ "github.com/lib/pq" // postgres driver

	"github.com/vitrino/marketplace/internal/api"
	"github.com/vitrino/marketplace/internal/config"
	"github.com/vitrino/marketplace/internal/gateway"
	"github.com/vitrino/marketplace/internal/migrate"
	"github.com/vitrino/marketplace/internal/repository"
	"github.com/vitrino/marketplace/internal/scheduler"
	"github.com/vitrino/marketplace/internal/service"
)

func main() {
	// ── 1. Config + logger ────────────────────────────────────────────────────
	cfg := config.MustLoad()

	var logHandler slog.Handler
	if cfg.IsProd() {
		logHandler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	} else {
		logHandler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	}
	logger := slog.New(logHandler)
	slog.SetDefault(logger)

	logger.Info("starting vitrino marketplace server", "env", cfg.Server.Env, "port", cfg.Server.Port)

	// ── 2. Database ───────────────────────────────────────────────────────────
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

	// ── 3. Migrations ─────────────────────────────────────────────────────────
	if err = migrate.Run(db, cfg.DB.MigrationsPath); err != nil {
		logger.Error("migrations failed", "err", err)
		os.Exit(1)
	}
	logger.Info("migrations applied")

	// ── 4. Repositories ───────────────────────────────────────────────────────
	userRepo := repository.NewUserRepository(db)
	walletRepo := repository.NewWalletRepository(db)
	marketRepo := repository.NewMarketRepository(db)
	approvalRepo := repository.NewApprovalRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	commerceRepo := repository.NewCommerceRepository(db)
	routingRepo := repository.NewRoutingRepository(db)

	// ── 5. Gateway client ─────────────────────────────────────────────────────
	gw := gateway.NewHTTPClient(
		cfg.Gateway.BaseURL,
		cfg.Gateway.PaymentBaseURL,
		cfg.Gateway.MerchantID,
		&http.Client{Timeout: cfg.Gateway.Timeout},
	)

	// ── 6. Services (order matters for injection) ─────────────────────────────
	authSvc := service.NewAuthService(db, userRepo, cfg)
	ledgerSvc := service.NewLedgerService(db, walletRepo, logger)
	workflowSvc := service.NewWorkflowService(db, marketRepo, logger)
	routingSvc := service.NewRoutingService(routingRepo, marketRepo, cfg.Market.BaseDomain, logger)
	approvalSvc := service.NewApprovalService(db, approvalRepo, marketRepo, workflowSvc, logger)
	commerceSvc := service.NewCommerceService(commerceRepo, marketRepo)
	paymentSvc := service.NewPaymentService(db, paymentRepo, commerceRepo, walletRepo, marketRepo,
		gw, ledgerSvc, workflowSvc, cfg, logger)

	// Routing follows the workflow: publish registers a hostname, leaving
	// published tears it down.
	workflowSvc.AddListener(routingSvc)

	// ── 7. Root context + signal handling ─────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── 8. Scheduler ──────────────────────────────────────────────────────────
	sched := scheduler.NewScheduler(workflowSvc, paymentSvc, marketRepo, cfg, logger)
	sched.Start(ctx)

	// ── 9. HTTP Router ────────────────────────────────────────────────────────
	router := api.SetupRouter(api.RouterDeps{
		AuthSvc:     authSvc,
		WorkflowSvc: workflowSvc,
		ApprovalSvc: approvalSvc,
		PaymentSvc:  paymentSvc,
		LedgerSvc:   ledgerSvc,
		CommerceSvc: commerceSvc,
		RoutingSvc:  routingSvc,
		Cfg:         cfg,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// ── 10. Start server ──────────────────────────────────────────────────────
	go func() {
		logger.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
			stop() // trigger graceful shutdown
		}
	}()

	// ── 11. Graceful shutdown ─────────────────────────────────────────────────
	<-ctx.Done()
	logger.Info("shutdown signal received, draining connections…")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err = srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown error", "err", err)
	}

	db.Close()
	logger.Info("server stopped cleanly")
}

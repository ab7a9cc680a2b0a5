package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vitrino/marketplace/internal/api/handler"
	"github.com/vitrino/marketplace/internal/api/middleware"
	"github.com/vitrino/marketplace/internal/config"
	"github.com/vitrino/marketplace/internal/service"
)

// RouterDeps bundles every dependency needed to build the router.
// Populated once in main() and passed to SetupRouter.
type RouterDeps struct {
	AuthSvc     *service.AuthService
	WorkflowSvc *service.WorkflowService
	ApprovalSvc *service.ApprovalService
	PaymentSvc  *service.PaymentService
	LedgerSvc   *service.LedgerService
	CommerceSvc *service.CommerceService
	RoutingSvc  *service.RoutingService
	Cfg         *config.Config
}

// SetupRouter creates and configures the main Gin engine with all routes,
// middleware, CORS, and rate limiting rules.
func SetupRouter(deps RouterDeps) *gin.Engine {
	if deps.Cfg.IsProd() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Logger())
	r.Use(gin.Recovery())

	// ── CORS ─────────────────────────────────────────────────────────────────
	r.Use(corsMiddleware(deps.Cfg))

	// ── Health check and metrics ─────────────────────────────────────────────
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// ── Handlers ─────────────────────────────────────────────────────────────
	userH := handler.NewUserHandler(deps.AuthSvc, deps.LedgerSvc)
	marketH := handler.NewMarketHandler(deps.WorkflowSvc, deps.ApprovalSvc, deps.RoutingSvc)
	paymentH := handler.NewPaymentHandler(deps.PaymentSvc)
	walletH := handler.NewWalletHandler(deps.LedgerSvc)
	commerceH := handler.NewCommerceHandler(deps.CommerceSvc)

	// ── JWT middleware (shared) ───────────────────────────────────────────────
	jwtMW := middleware.JWTMiddleware(deps.AuthSvc)

	// ── Rate limiters ─────────────────────────────────────────────────────────
	authRL := middleware.RateLimitMiddleware(10)    // 10 req/s per IP for auth endpoints
	paymentRL := middleware.RateLimitMiddleware(20) // 20 req/s per IP for payment endpoints

	api := r.Group("/api")
	{
		// ── Auth (public, strict rate limit) ─────────────────────────────────
		auth := api.Group("/auth")
		auth.Use(authRL)
		{
			auth.POST("/register", userH.Register)
			auth.POST("/login", userH.Login)
			auth.POST("/refresh", userH.Refresh)
		}

		// ── Public storefront front door ─────────────────────────────────────
		api.GET("/storefronts/resolve", marketH.Resolve)

		// ── Gateway callback (public: the gateway redirects the payer here) ──
		api.GET("/payments/callback", paymentRL, paymentH.Callback)

		// ── Authenticated routes ──────────────────────────────────────────────
		authed := api.Group("")
		authed.Use(jwtMW)
		{
			// Profile
			authed.GET("/me", userH.Me)

			// Markets
			markets := authed.Group("/markets")
			{
				markets.POST("", marketH.Create)
				markets.GET("/my", marketH.ListMine)
				markets.GET("/:id", marketH.GetByID)
				markets.PUT("/:id/gateway", marketH.UpdateGateway)
				markets.POST("/:id/transition", marketH.Transition)
				markets.GET("/:id/transitions", marketH.ValidTargets)
				markets.GET("/:id/history", marketH.History)
				markets.POST("/:id/approvals", marketH.SubmitApproval)
				markets.GET("/:id/approvals", marketH.ListApprovals)
			}

			// Payments
			payments := authed.Group("/payments")
			payments.Use(paymentRL)
			{
				payments.POST("", paymentH.Create)
				payments.GET("/my", paymentH.ListMine)
				payments.GET("/:id", paymentH.GetByID)
			}

			// Wallet
			wallet := authed.Group("/wallet")
			{
				wallet.GET("/balance", walletH.GetBalance)
				wallet.GET("/transactions", walletH.GetTransactions)
				wallet.POST("/transfer", walletH.Transfer)
			}

			// Advertisements and orders
			authed.POST("/advertisements", commerceH.CreateAdvertisement)
			authed.GET("/advertisements", commerceH.ListAdvertisements)
			authed.POST("/orders", commerceH.CreateOrder)
			authed.GET("/orders/:id", commerceH.GetOrder)
		}
	}

	return r
}

// ── CORS helper ───────────────────────────────────────────────────────────────

// corsMiddleware returns a gin middleware that sets appropriate CORS headers.
// In development all origins are allowed; in production only configured origins.
func corsMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		if !cfg.IsProd() {
			// Development: allow any origin
			c.Header("Access-Control-Allow-Origin", "*")
		} else if origin != "" {
			allowed := map[string]bool{
				"https://vitrino.example":     true,
				"https://www.vitrino.example": true,
			}
			if allowed[origin] {
				c.Header("Access-Control-Allow-Origin", origin)
			}
		}

		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Request-ID")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

package backoffice

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/vitrino/marketplace/internal/backoffice/handler"
	"github.com/vitrino/marketplace/internal/config"
	"github.com/vitrino/marketplace/internal/domain"
	"github.com/vitrino/marketplace/internal/repository"
	"github.com/vitrino/marketplace/internal/service"
)

// BackofficeDeps bundles every dependency needed for the admin router.
type BackofficeDeps struct {
	AuthSvc     *service.AuthService
	WorkflowSvc *service.WorkflowService
	ApprovalSvc *service.ApprovalService
	PaymentSvc  *service.PaymentService
	LedgerSvc   *service.LedgerService
	RoutingSvc  *service.RoutingService
	UserRepo    *repository.UserRepository
	Cfg         *config.Config
}

// SetupBackofficeRouter creates the admin Gin engine on the backoffice port.
func SetupBackofficeRouter(deps BackofficeDeps) *gin.Engine {
	if deps.Cfg.IsProd() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Logger())
	r.Use(gin.Recovery())
	r.Use(ipWhitelistMiddleware(deps.Cfg.Server.BackofficeAllowedIPs))

	approvalH := handler.NewApprovalHandler(deps.ApprovalSvc)
	marketH := handler.NewMarketAdminHandler(deps.WorkflowSvc, deps.ApprovalSvc, deps.RoutingSvc)
	userH := handler.NewUserAdminHandler(deps.UserRepo, deps.LedgerSvc)
	financeH := handler.NewFinanceHandler(deps.LedgerSvc, deps.PaymentSvc)

	jwtMW := adminJWTMiddleware(deps.AuthSvc)
	adminOnly := requireRoles(domain.RoleAdmin)
	adminOrFinance := requireRoles(domain.RoleAdmin, domain.RoleFinance)

	admin := r.Group("/admin")
	admin.Use(jwtMW)
	{
		// Approvals — the review queue. Reading is open to all staff,
		// deciding is admin-only.
		a := admin.Group("/approvals")
		{
			a.GET("", approvalH.ListPending)
			a.GET("/:id", approvalH.Detail)
			a.POST("/:id/approve", adminOnly, approvalH.Approve)
			a.POST("/:id/reject", adminOnly, approvalH.Reject)
		}

		// Markets
		m := admin.Group("/markets")
		{
			m.GET("", marketH.List)
			m.GET("/:id", marketH.Detail)
			m.GET("/:id/history", marketH.History)
			m.POST("/:id/transition", adminOnly, marketH.Transition)
		}

		// Users
		u := admin.Group("/users")
		{
			u.GET("", userH.List)
			u.GET("/:id", userH.Detail)
			u.POST("/:id/suspend", adminOnly, userH.Suspend)
			u.POST("/:id/activate", adminOnly, userH.Activate)
			u.POST("/:id/role", adminOnly, userH.SetRole)
		}

		// Finance
		fin := admin.Group("/finance")
		{
			fin.GET("/wallets/:id/ledger", financeH.WalletLedger)
			fin.POST("/wallets/:id/adjust", adminOrFinance, financeH.AdjustWallet)
			fin.GET("/payments/:id", financeH.Payment)
			fin.POST("/payments/expire-stale", adminOrFinance, financeH.ExpireStale)
		}
	}

	return r
}

// ── IP whitelist middleware ───────────────────────────────────────────────────

// ipWhitelistMiddleware blocks requests from IPs not in the allowlist.
// allowedIPs is a comma-separated string; empty means allow all.
func ipWhitelistMiddleware(allowedIPs string) gin.HandlerFunc {
	if allowedIPs == "" {
		return func(c *gin.Context) { c.Next() } // dev mode: no restriction
	}

	allowed := make(map[string]bool)
	for _, ip := range strings.Split(allowedIPs, ",") {
		ip = strings.TrimSpace(ip)
		if ip != "" {
			allowed[ip] = true
		}
	}

	return func(c *gin.Context) {
		if !allowed[c.ClientIP()] {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "access denied: your IP is not whitelisted",
			})
			return
		}
		c.Next()
	}
}

// ── Admin JWT middleware ──────────────────────────────────────────────────────

// adminJWTMiddleware validates a JWT and requires a staff role.
func adminJWTMiddleware(authSvc *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		claims, err := authSvc.ParseAccessToken(strings.TrimPrefix(header, "Bearer "))
		if err != nil || claims.TokenType != "access" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		if !domain.UserRole(claims.Role).CanAccessBackoffice() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient permissions"})
			return
		}

		c.Set("userID", claims.Subject)
		c.Set("role", claims.Role)
		c.Next()
	}
}

// requireRoles narrows a route to specific staff roles. Must run after
// adminJWTMiddleware.
func requireRoles(roles ...domain.UserRole) gin.HandlerFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[string(r)] = true
	}
	return func(c *gin.Context) {
		role, _ := c.Get("role")
		roleStr, _ := role.(string)
		if !allowed[roleStr] {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient permissions"})
			return
		}
		c.Next()
	}
}

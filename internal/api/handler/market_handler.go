package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/vitrino/marketplace/internal/api/middleware"
	"github.com/vitrino/marketplace/internal/domain"
	"github.com/vitrino/marketplace/internal/service"
)

// MarketHandler serves storefront lifecycle endpoints for owners plus the
// public hostname resolution used by the storefront front door.
type MarketHandler struct {
	workflow *service.WorkflowService
	approval *service.ApprovalService
	routing  *service.RoutingService
}

// NewMarketHandler creates a MarketHandler.
func NewMarketHandler(workflow *service.WorkflowService, approval *service.ApprovalService, routing *service.RoutingService) *MarketHandler {
	return &MarketHandler{workflow: workflow, approval: approval, routing: routing}
}

// Create godoc
// POST /api/markets [JWT]
func (h *MarketHandler) Create(c *gin.Context) {
	var body struct {
		Title           string               `json:"title"        binding:"required,min=2,max=120"`
		GatewayKind     string               `json:"gateway_kind" binding:"required"`
		PersonalGateway domain.GatewayConfig `json:"personal_gateway"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
		return
	}

	m, err := h.workflow.CreateMarket(c.Request.Context(), middleware.GetUserID(c),
		body.Title, domain.GatewayKind(body.GatewayKind), body.PersonalGateway)
	if err != nil {
		respondDomainError(c, err, "could not create market")
		return
	}
	respondSuccess(c, http.StatusCreated, m)
}

// GetByID godoc
// GET /api/markets/:id [JWT]
func (h *MarketHandler) GetByID(c *gin.Context) {
	m, ok := h.ownedMarket(c)
	if !ok {
		return
	}
	respondSuccess(c, http.StatusOK, m)
}

// ListMine godoc
// GET /api/markets/my [JWT]
func (h *MarketHandler) ListMine(c *gin.Context) {
	markets, err := h.workflow.ListMarketsByOwner(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not list markets")
		return
	}
	respondList(c, markets, len(markets), 1, len(markets))
}

// UpdateGateway godoc
// PUT /api/markets/:id/gateway [JWT]
func (h *MarketHandler) UpdateGateway(c *gin.Context) {
	m, ok := h.ownedMarket(c)
	if !ok {
		return
	}

	var body struct {
		GatewayKind     string               `json:"gateway_kind" binding:"required"`
		PersonalGateway domain.GatewayConfig `json:"personal_gateway"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
		return
	}

	err := h.workflow.UpdateGateway(c.Request.Context(), m.ID,
		domain.GatewayKind(body.GatewayKind), body.PersonalGateway)
	if err != nil {
		respondDomainError(c, err, "could not update gateway")
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"market_id": m.ID})
}

// Transition godoc
// POST /api/markets/:id/transition [JWT]
// Body: {"to":"inactive","reason":"closing for the season"}
//
// Owners move their own market; staff transitions go through the backoffice.
func (h *MarketHandler) Transition(c *gin.Context) {
	m, ok := h.ownedMarket(c)
	if !ok {
		return
	}

	var body struct {
		To     string `json:"to" binding:"required"`
		Reason string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
		return
	}

	actorID := middleware.GetUserID(c)
	summary, err := h.workflow.Transition(c.Request.Context(), m.ID,
		domain.MarketStatus(body.To), &actorID, body.Reason)
	if err != nil {
		respondDomainError(c, err, "could not transition market")
		return
	}
	respondSuccess(c, http.StatusOK, summary)
}

// ValidTargets godoc
// GET /api/markets/:id/transitions [JWT]
func (h *MarketHandler) ValidTargets(c *gin.Context) {
	m, ok := h.ownedMarket(c)
	if !ok {
		return
	}
	current, targets, err := h.workflow.ValidTargets(c.Request.Context(), m.ID)
	if err != nil {
		respondDomainError(c, err, "could not list transitions")
		return
	}
	type edge struct {
		Status domain.MarketStatus `json:"status"`
		Action string              `json:"action"`
	}
	edges := make([]edge, 0, len(targets))
	for _, to := range targets {
		edges = append(edges, edge{Status: to, Action: domain.ActionVerb(current, to)})
	}
	respondSuccess(c, http.StatusOK, gin.H{
		"current":     current,
		"targets":     edges,
		"editable":    domain.IsEditable(current),
		"publishable": domain.IsPublishable(current),
	})
}

// History godoc
// GET /api/markets/:id/history?page=1&limit=20 [JWT]
func (h *MarketHandler) History(c *gin.Context) {
	m, ok := h.ownedMarket(c)
	if !ok {
		return
	}
	page, limit := parsePagination(c)
	entries, err := h.workflow.History(c.Request.Context(), m.ID, limit, (page-1)*limit)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not fetch history")
		return
	}
	respondList(c, entries, len(entries), page, limit)
}

// SubmitApproval godoc
// POST /api/markets/:id/approvals [JWT]
// Body: {"kind":"publication","note":"ready for review"}
func (h *MarketHandler) SubmitApproval(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_ID", "invalid market id")
		return
	}

	var body struct {
		Kind string `json:"kind" binding:"required"`
		Note string `json:"note"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
		return
	}

	req, err := h.approval.Submit(c.Request.Context(), id, middleware.GetUserID(c),
		domain.ApprovalKind(body.Kind), body.Note)
	if err != nil {
		respondDomainError(c, err, "could not submit approval request")
		return
	}
	respondSuccess(c, http.StatusCreated, req)
}

// ListApprovals godoc
// GET /api/markets/:id/approvals?page=1&limit=20 [JWT]
func (h *MarketHandler) ListApprovals(c *gin.Context) {
	m, ok := h.ownedMarket(c)
	if !ok {
		return
	}
	page, limit := parsePagination(c)
	reqs, err := h.approval.ListByMarket(c.Request.Context(), m.ID, limit, (page-1)*limit)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not list approval requests")
		return
	}
	respondList(c, reqs, len(reqs), page, limit)
}

// Resolve godoc
// GET /api/storefronts/resolve?hostname=shop.vitrino.local  (public)
//
// Front door for storefront traffic: maps an active hostname to its market.
// Only published markets resolve.
func (h *MarketHandler) Resolve(c *gin.Context) {
	hostname := c.Query("hostname")
	if hostname == "" {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", "hostname is required")
		return
	}
	m, err := h.routing.Resolve(c.Request.Context(), hostname)
	if err != nil {
		respondDomainError(c, err, "could not resolve storefront")
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{
		"market_id": m.ID,
		"slug":      m.Slug,
		"title":     m.Title,
	})
}

// ── helpers ──────────────────────────────────────────────────────────────────

// ownedMarket parses :id, loads the market, and enforces that the caller owns
// it. On failure it writes the error response and returns ok=false.
func (h *MarketHandler) ownedMarket(c *gin.Context) (*domain.Market, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_ID", "invalid market id")
		return nil, false
	}
	m, err := h.workflow.GetMarket(c.Request.Context(), id)
	if err != nil {
		respondDomainError(c, err, "could not fetch market")
		return nil, false
	}
	if m.OwnerID != middleware.GetUserID(c) {
		respondError(c, http.StatusForbidden, "ERR_FORBIDDEN", domain.ErrForbidden.Error())
		return nil, false
	}
	return m, true
}

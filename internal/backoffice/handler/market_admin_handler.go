package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/vitrino/marketplace/internal/domain"
	"github.com/vitrino/marketplace/internal/service"
)

// MarketAdminHandler serves /admin/markets endpoints.
type MarketAdminHandler struct {
	workflow *service.WorkflowService
	approval *service.ApprovalService
	routing  *service.RoutingService
}

// NewMarketAdminHandler creates a MarketAdminHandler.
func NewMarketAdminHandler(
	workflow *service.WorkflowService,
	approval *service.ApprovalService,
	routing *service.RoutingService,
) *MarketAdminHandler {
	return &MarketAdminHandler{workflow: workflow, approval: approval, routing: routing}
}

// List godoc
// GET /admin/markets?status=published&page=1&limit=50
func (h *MarketAdminHandler) List(c *gin.Context) {
	status := domain.MarketStatus(c.Query("status"))
	if status != "" && !domain.IsValidStatus(status) {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", "unknown status")
		return
	}
	page, limit := adminPagination(c)

	markets, err := h.workflow.ListMarkets(c.Request.Context(), status, limit, (page-1)*limit)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondList(c, markets, len(markets), page, limit)
}

// Detail godoc
// GET /admin/markets/:id
//
// Everything staff needs on one screen: the market, its workflow trail,
// approval requests, and routing entries.
func (h *MarketAdminHandler) Detail(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_ID", "invalid market id")
		return
	}

	ctx := c.Request.Context()
	m, err := h.workflow.GetMarket(ctx, id)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	history, _ := h.workflow.History(ctx, id, 50, 0)
	approvals, _ := h.approval.ListByMarket(ctx, id, 50, 0)
	domains, _ := h.routing.ListByMarket(ctx, id)

	respondSuccess(c, http.StatusOK, gin.H{
		"market":    m,
		"history":   history,
		"approvals": approvals,
		"domains":   domains,
	})
}

// Transition godoc
// POST /admin/markets/:id/transition
// Body: {"to":"paid_needs_editing","reason":"broken storefront images"}
//
// Staff can drive any edge the workflow graph allows; invalid edges get 409.
func (h *MarketAdminHandler) Transition(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_ID", "invalid market id")
		return
	}
	var body struct {
		To     string `json:"to"     binding:"required"`
		Reason string `json:"reason" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
		return
	}

	actorID := adminUserID(c)
	summary, err := h.workflow.Transition(c.Request.Context(), id,
		domain.MarketStatus(body.To), &actorID, body.Reason)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, summary)
}

// History godoc
// GET /admin/markets/:id/history?page=1&limit=50
func (h *MarketAdminHandler) History(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_ID", "invalid market id")
		return
	}
	page, limit := adminPagination(c)
	entries, err := h.workflow.History(c.Request.Context(), id, limit, (page-1)*limit)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondList(c, entries, len(entries), page, limit)
}

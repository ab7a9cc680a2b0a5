package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vitrino/marketplace/internal/domain"
	"github.com/vitrino/marketplace/internal/service"
)

// FinanceHandler serves /admin/finance endpoints: ledger inspection, manual
// wallet adjustments, and payment lookups.
type FinanceHandler struct {
	ledger     *service.LedgerService
	paymentSvc *service.PaymentService
}

// NewFinanceHandler creates a FinanceHandler.
func NewFinanceHandler(ledger *service.LedgerService, paymentSvc *service.PaymentService) *FinanceHandler {
	return &FinanceHandler{ledger: ledger, paymentSvc: paymentSvc}
}

// WalletLedger godoc
// GET /admin/finance/wallets/:id/ledger?page=1&limit=50
func (h *FinanceHandler) WalletLedger(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_ID", "invalid wallet id")
		return
	}
	page, limit := adminPagination(c)
	entries, err := h.ledger.History(c.Request.Context(), id, limit, (page-1)*limit)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondList(c, entries, len(entries), page, limit)
}

// AdjustWallet godoc
// POST /admin/finance/wallets/:id/adjust
// Body: {"direction":"increase","amount":"500.00","reference":"support ticket 8812"}
//
// Manual corrections land in the same append-only ledger as everything else;
// the reference is mandatory so every adjustment is traceable.
func (h *FinanceHandler) AdjustWallet(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_ID", "invalid wallet id")
		return
	}
	var body struct {
		Direction string `json:"direction" binding:"required,oneof=increase decrease"`
		Amount    string `json:"amount"    binding:"required"`
		Reference string `json:"reference" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
		return
	}
	amount, err := decimal.NewFromString(body.Amount)
	if err != nil || !amount.IsPositive() {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_AMOUNT", "amount must be a positive decimal string")
		return
	}

	ctx := c.Request.Context()
	actor := adminUserID(c)
	if body.Direction == "increase" {
		err = h.ledger.Increase(ctx, id, amount, &actor, body.Reference)
	} else {
		err = h.ledger.Decrease(ctx, id, amount, &actor, body.Reference)
	}
	if err != nil {
		if err == domain.ErrInsufficientBalance {
			respondError(c, http.StatusPaymentRequired, "ERR_INSUFFICIENT_BALANCE", err.Error())
			return
		}
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{
		"wallet_id": id,
		"direction": body.Direction,
		"amount":    amount,
	})
}

// Payment godoc
// GET /admin/finance/payments/:id
func (h *FinanceHandler) Payment(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_ID", "invalid payment id")
		return
	}
	p, err := h.paymentSvc.GetPayment(c.Request.Context(), id)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, p)
}

// ExpireStale godoc
// POST /admin/finance/payments/expire-stale
// Body: {"older_than":"1h","limit":100}
//
// Manual trigger for the same sweep the scheduler runs.
func (h *FinanceHandler) ExpireStale(c *gin.Context) {
	var body struct {
		OlderThan string `json:"older_than" binding:"required"`
		Limit     int    `json:"limit"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
		return
	}
	olderThan, err := time.ParseDuration(body.OlderThan)
	if err != nil || olderThan <= 0 {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", "older_than must be a positive duration")
		return
	}
	if body.Limit <= 0 || body.Limit > 1000 {
		body.Limit = 100
	}

	expired, err := h.paymentSvc.ExpireStalePending(c.Request.Context(), olderThan, body.Limit)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"expired": expired})
}

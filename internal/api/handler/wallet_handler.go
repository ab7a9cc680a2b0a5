package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vitrino/marketplace/internal/api/middleware"
	"github.com/vitrino/marketplace/internal/domain"
	"github.com/vitrino/marketplace/internal/service"
)

// WalletHandler serves balance, ledger history, and transfer endpoints.
type WalletHandler struct {
	ledger *service.LedgerService
}

// NewWalletHandler creates a WalletHandler.
func NewWalletHandler(ledger *service.LedgerService) *WalletHandler {
	return &WalletHandler{ledger: ledger}
}

// GetBalance godoc
// GET /api/wallet/balance [JWT]
func (h *WalletHandler) GetBalance(c *gin.Context) {
	wallet, err := h.ledger.GetWalletByOwner(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, http.StatusNotFound, "ERR_WALLET_NOT_FOUND", err.Error())
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{
		"wallet_id": wallet.ID,
		"balance":   wallet.Balance,
		"status":    wallet.Status,
	})
}

// GetTransactions godoc
// GET /api/wallet/transactions?page=1&limit=20 [JWT]
func (h *WalletHandler) GetTransactions(c *gin.Context) {
	wallet, err := h.ledger.GetWalletByOwner(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, http.StatusNotFound, "ERR_WALLET_NOT_FOUND", err.Error())
		return
	}
	page, limit := parsePagination(c)
	entries, err := h.ledger.History(c.Request.Context(), wallet.ID, limit, (page-1)*limit)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not fetch transactions")
		return
	}
	respondList(c, entries, len(entries), page, limit)
}

// Transfer godoc
// POST /api/wallet/transfer [JWT]
// Body: {"to_wallet_id":"...","amount":"150.00","reference":"invoice 42"}
func (h *WalletHandler) Transfer(c *gin.Context) {
	var body struct {
		ToWalletID string `json:"to_wallet_id" binding:"required,uuid"`
		Amount     string `json:"amount"       binding:"required"`
		Reference  string `json:"reference"`
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
	from, err := h.ledger.GetWalletByOwner(ctx, middleware.GetUserID(c))
	if err != nil {
		respondError(c, http.StatusNotFound, "ERR_WALLET_NOT_FOUND", err.Error())
		return
	}

	actor := middleware.GetUserID(c)
	err = h.ledger.Transfer(ctx, from.ID, uuid.MustParse(body.ToWalletID), amount, &actor, body.Reference)
	if err != nil {
		if err == domain.ErrInsufficientBalance {
			respondError(c, http.StatusPaymentRequired, "ERR_INSUFFICIENT_BALANCE", err.Error())
			return
		}
		respondDomainError(c, err, "could not transfer")
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{
		"from_wallet_id": from.ID,
		"to_wallet_id":   body.ToWalletID,
		"amount":         amount,
	})
}

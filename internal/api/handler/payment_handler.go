package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vitrino/marketplace/internal/api/middleware"
	"github.com/vitrino/marketplace/internal/domain"
	"github.com/vitrino/marketplace/internal/service"
)

// PaymentHandler serves payment creation, lookup, and the gateway callback.
type PaymentHandler struct {
	paymentSvc *service.PaymentService
}

// NewPaymentHandler creates a PaymentHandler.
func NewPaymentHandler(paymentSvc *service.PaymentService) *PaymentHandler {
	return &PaymentHandler{paymentSvc: paymentSvc}
}

// Create godoc
// POST /api/payments [JWT]
// Body: {"target":"wallet","target_id":"...","amount":"2500.00","idempotency_key":"..."}
//
// Amount is required for advertisement and wallet targets; order and market
// targets price themselves server-side and ignore it.
func (h *PaymentHandler) Create(c *gin.Context) {
	var body struct {
		Target         string `json:"target"    binding:"required"`
		TargetID       string `json:"target_id" binding:"required,uuid"`
		Amount         string `json:"amount"`
		IdempotencyKey string `json:"idempotency_key"`
		Description    string `json:"description"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
		return
	}

	amount := decimal.Zero
	if body.Amount != "" {
		var err error
		if amount, err = decimal.NewFromString(body.Amount); err != nil {
			respondError(c, http.StatusBadRequest, "ERR_INVALID_AMOUNT", "amount must be a decimal string")
			return
		}
	}

	req := service.CreateRequest{
		PayerID:     middleware.GetUserID(c),
		Target:      domain.PaymentTarget(body.Target),
		TargetID:    uuid.MustParse(body.TargetID),
		Amount:      amount,
		Description: body.Description,
	}
	if body.IdempotencyKey != "" {
		req.IdempotencyKey = &body.IdempotencyKey
	}

	info, err := h.paymentSvc.Create(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, domain.ErrGatewayCommunication) {
			respondError(c, http.StatusBadGateway, "ERR_GATEWAY", domain.ErrGatewayCommunication.Error())
			return
		}
		respondDomainError(c, err, "could not create payment")
		return
	}
	respondSuccess(c, http.StatusCreated, info)
}

// GetByID godoc
// GET /api/payments/:id [JWT]
func (h *PaymentHandler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_ID", "invalid payment id")
		return
	}
	p, err := h.paymentSvc.GetPayment(c.Request.Context(), id)
	if err != nil {
		respondDomainError(c, err, "could not fetch payment")
		return
	}
	if p.PayerID != middleware.GetUserID(c) {
		respondError(c, http.StatusForbidden, "ERR_FORBIDDEN", domain.ErrForbidden.Error())
		return
	}
	respondSuccess(c, http.StatusOK, p)
}

// ListMine godoc
// GET /api/payments/my?page=1&limit=20 [JWT]
func (h *PaymentHandler) ListMine(c *gin.Context) {
	page, limit := parsePagination(c)
	payments, err := h.paymentSvc.ListByPayer(c.Request.Context(), middleware.GetUserID(c), limit, (page-1)*limit)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not list payments")
		return
	}
	respondList(c, payments, len(payments), page, limit)
}

// Callback godoc
// GET /api/payments/callback?Authority=A000...&Status=OK  (public)
//
// The gateway redirects the payer here after the hosted payment page. The
// response tells the payer the settled outcome; a replayed callback gets 409
// without repeating any side effect.
func (h *PaymentHandler) Callback(c *gin.Context) {
	authority := c.Query("Authority")
	status := c.Query("Status")
	if authority == "" {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", "Authority is required")
		return
	}

	err := h.paymentSvc.Verify(c.Request.Context(), authority, status)
	switch {
	case err == nil:
		respondSuccess(c, http.StatusOK, gin.H{"status": "complete"})
	case errors.Is(err, domain.ErrPaymentCancelled):
		respondError(c, http.StatusPaymentRequired, "ERR_PAYMENT_CANCELLED", "payment was cancelled")
	case errors.Is(err, domain.ErrGatewayVerification),
		errors.Is(err, domain.ErrAmountMismatch):
		// The payer gets the category only; codes and amounts stay in the logs.
		respondError(c, http.StatusPaymentRequired, "ERR_PAYMENT_FAILED", "payment was not completed")
	case errors.Is(err, domain.ErrGatewayCommunication):
		// Not a verdict: the payment is still pending and the callback can be
		// retried.
		respondError(c, http.StatusBadGateway, "ERR_GATEWAY", domain.ErrGatewayCommunication.Error())
	default:
		respondDomainError(c, err, "could not verify payment")
	}
}

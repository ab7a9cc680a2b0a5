package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vitrino/marketplace/internal/api/middleware"
	"github.com/vitrino/marketplace/internal/service"
)

// CommerceHandler serves advertisement and order endpoints. Both are thin:
// the interesting part of their lifecycle happens through payments.
type CommerceHandler struct {
	commerceSvc *service.CommerceService
}

// NewCommerceHandler creates a CommerceHandler.
func NewCommerceHandler(commerceSvc *service.CommerceService) *CommerceHandler {
	return &CommerceHandler{commerceSvc: commerceSvc}
}

// CreateAdvertisement godoc
// POST /api/advertisements [JWT]
// Body: {"market_id":"...","title":"front page slot","price":"30000"}
func (h *CommerceHandler) CreateAdvertisement(c *gin.Context) {
	var body struct {
		MarketID string `json:"market_id" binding:"required,uuid"`
		Title    string `json:"title"     binding:"required,min=2,max=200"`
		Price    string `json:"price"     binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
		return
	}
	price, err := decimal.NewFromString(body.Price)
	if err != nil || !price.IsPositive() {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_AMOUNT", "price must be a positive decimal string")
		return
	}

	ad, err := h.commerceSvc.CreateAdvertisement(c.Request.Context(),
		uuid.MustParse(body.MarketID), middleware.GetUserID(c), body.Title, price)
	if err != nil {
		respondDomainError(c, err, "could not create advertisement")
		return
	}
	respondSuccess(c, http.StatusCreated, ad)
}

// ListAdvertisements godoc
// GET /api/advertisements?market_id=...&page=1&limit=20 [JWT]
func (h *CommerceHandler) ListAdvertisements(c *gin.Context) {
	marketID, err := uuid.Parse(c.Query("market_id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_ID", "market_id is required")
		return
	}
	page, limit := parsePagination(c)
	ads, err := h.commerceSvc.ListAdvertisements(c.Request.Context(), marketID, limit, (page-1)*limit)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not list advertisements")
		return
	}
	respondList(c, ads, len(ads), page, limit)
}

// CreateOrder godoc
// POST /api/orders [JWT]
// Body: {"market_id":"...","total":"1250.00"}
func (h *CommerceHandler) CreateOrder(c *gin.Context) {
	var body struct {
		MarketID string `json:"market_id" binding:"required,uuid"`
		Total    string `json:"total"     binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
		return
	}
	total, err := decimal.NewFromString(body.Total)
	if err != nil || !total.IsPositive() {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_AMOUNT", "total must be a positive decimal string")
		return
	}

	o, err := h.commerceSvc.CreateOrder(c.Request.Context(),
		uuid.MustParse(body.MarketID), middleware.GetUserID(c), total)
	if err != nil {
		respondDomainError(c, err, "could not create order")
		return
	}
	respondSuccess(c, http.StatusCreated, o)
}

// GetOrder godoc
// GET /api/orders/:id [JWT]
func (h *CommerceHandler) GetOrder(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_ID", "invalid order id")
		return
	}
	o, err := h.commerceSvc.GetOrder(c.Request.Context(), id)
	if err != nil {
		respondDomainError(c, err, "could not fetch order")
		return
	}
	respondSuccess(c, http.StatusOK, o)
}

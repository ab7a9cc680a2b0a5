package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vitrino/marketplace/internal/domain"
	"github.com/vitrino/marketplace/internal/repository"
)

// CommerceService manages advertisements and orders. Their paid-side
// mutations (promotion, order settlement) are payment side effects and
// happen only through the payment orchestrator.
type CommerceService struct {
	commerceRepo *repository.CommerceRepository
	marketRepo   *repository.MarketRepository
}

// NewCommerceService creates a CommerceService.
func NewCommerceService(commerceRepo *repository.CommerceRepository, marketRepo *repository.MarketRepository) *CommerceService {
	return &CommerceService{commerceRepo: commerceRepo, marketRepo: marketRepo}
}

// CreateAdvertisement creates a draft advertisement in an owner's market.
func (s *CommerceService) CreateAdvertisement(ctx context.Context, marketID, ownerID uuid.UUID, title string, price decimal.Decimal) (*domain.Advertisement, error) {
	if strings.TrimSpace(title) == "" {
		return nil, fmt.Errorf("%w: title is required", domain.ErrValidation)
	}
	if price.LessThan(decimal.Zero) {
		return nil, fmt.Errorf("%w: price cannot be negative", domain.ErrValidation)
	}
	m, err := s.marketRepo.GetByID(ctx, marketID)
	if err != nil {
		return nil, err
	}
	if m.OwnerID != ownerID {
		return nil, domain.ErrForbidden
	}

	now := time.Now().UTC()
	ad := &domain.Advertisement{
		ID:        uuid.New(),
		MarketID:  marketID,
		Title:     title,
		Price:     price,
		Status:    domain.AdDraft,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.commerceRepo.CreateAdvertisement(ctx, ad); err != nil {
		return nil, err
	}
	return ad, nil
}

// GetAdvertisement returns an advertisement by id.
func (s *CommerceService) GetAdvertisement(ctx context.Context, id uuid.UUID) (*domain.Advertisement, error) {
	return s.commerceRepo.GetAdvertisement(ctx, id)
}

// ListAdvertisements returns a market's advertisements.
func (s *CommerceService) ListAdvertisements(ctx context.Context, marketID uuid.UUID, limit, offset int) ([]*domain.Advertisement, error) {
	return s.commerceRepo.ListAdvertisements(ctx, marketID, limit, offset)
}

// CreateOrder places a customer order in a published market. The order
// starts awaiting payment; settlement happens through the orchestrator.
func (s *CommerceService) CreateOrder(ctx context.Context, marketID, customerID uuid.UUID, total decimal.Decimal) (*domain.Order, error) {
	if total.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%w: order total must be positive", domain.ErrValidation)
	}
	m, err := s.marketRepo.GetByID(ctx, marketID)
	if err != nil {
		return nil, err
	}
	if !domain.IsRoutable(m.Status) {
		return nil, fmt.Errorf("%w: market %s is not published", domain.ErrValidation, marketID)
	}

	now := time.Now().UTC()
	o := &domain.Order{
		ID:         uuid.New(),
		MarketID:   marketID,
		CustomerID: customerID,
		Total:      total,
		Status:     domain.OrderAwaitingPayment,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.commerceRepo.CreateOrder(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

// GetOrder returns an order by id.
func (s *CommerceService) GetOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	return s.commerceRepo.GetOrder(ctx, id)
}

// ListOrders returns a market's orders.
func (s *CommerceService) ListOrders(ctx context.Context, marketID uuid.UUID, limit, offset int) ([]*domain.Order, error) {
	return s.commerceRepo.ListOrders(ctx, marketID, limit, offset)
}

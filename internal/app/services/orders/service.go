// Package orders implements order placement with balance settlement.
package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	apperrors "github.com/boostgrid/panel-service/internal/errors"

	"github.com/boostgrid/panel-service/internal/app/domain/order"
	"github.com/boostgrid/panel-service/internal/app/domain/profile"
	"github.com/boostgrid/panel-service/internal/app/storage"
	"github.com/boostgrid/panel-service/pkg/logger"
)

var perThousand = decimal.NewFromInt(1000)

// URLValidator checks that a target URL is syntactically valid and points at
// a plausible destination.
type URLValidator interface {
	Validate(rawURL string) error
}

// Service places orders against the catalog and settles their cost.
type Service struct {
	services storage.ServiceStore
	profiles storage.ProfileStore
	orders   storage.OrderStore
	urls     URLValidator
	log      *logger.Logger
}

// New creates an order Service. urls may be nil, in which case the default
// syntactic validator is used.
func New(services storage.ServiceStore, profiles storage.ProfileStore, orders storage.OrderStore, urls URLValidator, log *logger.Logger) *Service {
	if urls == nil {
		urls = DefaultURLValidator{}
	}
	if log == nil {
		log = logger.NewDefault("orders")
	}
	return &Service{services: services, profiles: profiles, orders: orders, urls: urls, log: log}
}

// PlaceOrderRequest carries the three caller-supplied order fields.
type PlaceOrderRequest struct {
	ServiceID string `json:"service_id"`
	TargetURL string `json:"target_url"`
	Quantity  int    `json:"quantity"`
}

// PlaceOrderResult is the created order plus the profile after settlement.
type PlaceOrderResult struct {
	Order   order.Order     `json:"order"`
	Profile profile.Profile `json:"profile"`
}

// PlaceOrder validates the request, prices it, and creates the order while
// debiting the caller's balance in a single conditional datastore operation.
func (s *Service) PlaceOrder(ctx context.Context, userID string, req PlaceOrderRequest) (PlaceOrderResult, error) {
	if req.ServiceID == "" || req.TargetURL == "" || req.Quantity == 0 {
		return PlaceOrderResult{}, apperrors.BadRequest("service_id, target_url and quantity are required")
	}

	svc, err := s.services.GetService(ctx, req.ServiceID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return PlaceOrderResult{}, apperrors.NotFound("Service not found")
		}
		return PlaceOrderResult{}, apperrors.Internal("failed to load service", err)
	}
	if !svc.Active() {
		return PlaceOrderResult{}, apperrors.NotFound("Service not found")
	}

	if req.Quantity < svc.MinQuantity {
		return PlaceOrderResult{}, apperrors.BadRequest(fmt.Sprintf("Minimum quantity is %d", svc.MinQuantity))
	}
	if req.Quantity > svc.MaxQuantity {
		return PlaceOrderResult{}, apperrors.BadRequest(fmt.Sprintf("Maximum quantity is %d", svc.MaxQuantity))
	}

	if err := s.urls.Validate(req.TargetURL); err != nil {
		return PlaceOrderResult{}, apperrors.BadRequest("Invalid target URL")
	}

	cost := Cost(req.Quantity, svc.PricePer1000)

	p, err := s.profiles.GetProfileByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return PlaceOrderResult{}, apperrors.NotFound("Profile not found")
		}
		return PlaceOrderResult{}, apperrors.Internal("failed to load profile", err)
	}
	if p.Balance.LessThan(cost) {
		return PlaceOrderResult{}, apperrors.InsufficientBalance(cost.String(), p.Balance.String())
	}

	created, updated, err := s.orders.CreateOrderAndDebit(ctx, order.Order{
		UserID:    userID,
		ServiceID: svc.ID,
		TargetURL: req.TargetURL,
		Quantity:  req.Quantity,
		TotalCost: cost,
		Status:    order.StatusPending,
	})
	if err != nil {
		// The balance can shrink between the check above and the debit.
		if errors.Is(err, storage.ErrInsufficientBalance) {
			return PlaceOrderResult{}, apperrors.InsufficientBalance(cost.String(), p.Balance.String())
		}
		if errors.Is(err, storage.ErrNotFound) {
			return PlaceOrderResult{}, apperrors.NotFound("Profile not found")
		}
		return PlaceOrderResult{}, apperrors.Internal("failed to create order", err)
	}

	s.log.WithFields(map[string]interface{}{
		"order_id":   created.ID,
		"user_id":    userID,
		"service_id": svc.ID,
		"quantity":   req.Quantity,
		"total_cost": cost.String(),
	}).Info("order created")

	return PlaceOrderResult{Order: created, Profile: updated}, nil
}

// Cost computes (quantity / 1000) * pricePer1000 rounded to cents with
// banker's rounding.
func Cost(quantity int, pricePer1000 decimal.Decimal) decimal.Decimal {
	return decimal.NewFromInt(int64(quantity)).Div(perThousand).Mul(pricePer1000).RoundBank(2)
}

// Get returns one of the caller's orders.
func (s *Service) Get(ctx context.Context, userID, orderID string) (order.Order, error) {
	o, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return order.Order{}, apperrors.NotFound("Order not found")
		}
		return order.Order{}, apperrors.Internal("failed to load order", err)
	}
	if o.UserID != userID {
		return order.Order{}, apperrors.NotFound("Order not found")
	}
	return o, nil
}

// ListByUser returns the caller's orders, newest first.
func (s *Service) ListByUser(ctx context.Context, userID string) ([]order.Order, error) {
	list, err := s.orders.ListOrdersByUser(ctx, userID)
	if err != nil {
		return nil, apperrors.Internal("failed to list orders", err)
	}
	if list == nil {
		list = []order.Order{}
	}
	return list, nil
}

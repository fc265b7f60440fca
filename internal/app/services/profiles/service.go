// Package profiles serves authenticated profile reads with order aggregates.
package profiles

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	apperrors "github.com/boostgrid/panel-service/internal/errors"

	"github.com/boostgrid/panel-service/internal/app/domain/order"
	"github.com/boostgrid/panel-service/internal/app/domain/profile"
	"github.com/boostgrid/panel-service/internal/app/storage"
	"github.com/boostgrid/panel-service/pkg/logger"
)

// Service reads profiles and derives per-user order statistics.
type Service struct {
	profiles storage.ProfileStore
	orders   storage.OrderStore
	log      *logger.Logger
}

func New(profiles storage.ProfileStore, orders storage.OrderStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("profiles")
	}
	return &Service{profiles: profiles, orders: orders, log: log}
}

// View is a profile together with its derived statistics.
type View struct {
	Profile profile.Profile `json:"profile"`
	Stats   profile.Stats   `json:"stats"`
}

// Get returns the caller's profile and aggregates over their orders.
// totalSpent sums total_cost across every order regardless of status.
func (s *Service) Get(ctx context.Context, userID string) (View, error) {
	p, err := s.profiles.GetProfileByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return View{}, apperrors.NotFound("Profile not found")
		}
		return View{}, apperrors.Internal("failed to load profile", err)
	}

	orders, err := s.orders.ListOrdersByUser(ctx, userID)
	if err != nil {
		return View{}, apperrors.Internal("failed to load orders", err)
	}

	stats := profile.Stats{TotalSpent: decimal.Zero}
	for _, o := range orders {
		stats.TotalSpent = stats.TotalSpent.Add(o.TotalCost)
		switch o.Status {
		case order.StatusCompleted:
			stats.CompletedOrders++
		case order.StatusPending:
			stats.PendingOrders++
		}
	}

	return View{Profile: p, Stats: stats}, nil
}

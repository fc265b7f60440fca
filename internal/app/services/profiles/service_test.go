package profiles

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	apperrors "github.com/boostgrid/panel-service/internal/errors"

	"github.com/boostgrid/panel-service/internal/app/domain/order"
	"github.com/boostgrid/panel-service/internal/app/domain/profile"
	"github.com/boostgrid/panel-service/internal/app/storage/memory"
)

func TestGetAggregatesOrders(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	if _, err := store.CreateProfile(ctx, profile.Profile{
		UserID:  "user-1",
		Balance: decimal.RequireFromString("500"),
	}); err != nil {
		t.Fatalf("seed profile: %v", err)
	}

	costs := []struct {
		cost   string
		status order.Status
	}{
		{"75", order.StatusCompleted},
		{"30", order.StatusCompleted},
		{"10", order.StatusPending},
		{"5", order.StatusProcessing},
	}
	for _, c := range costs {
		if _, _, err := store.CreateOrderAndDebit(ctx, order.Order{
			UserID:    "user-1",
			ServiceID: "svc-1",
			TotalCost: decimal.RequireFromString(c.cost),
			Status:    c.status,
		}); err != nil {
			t.Fatalf("seed order: %v", err)
		}
	}

	svc := New(store, store, nil)
	view, err := svc.Get(ctx, "user-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	if !view.Stats.TotalSpent.Equal(decimal.RequireFromString("120")) {
		t.Fatalf("expected totalSpent 120, got %s", view.Stats.TotalSpent)
	}
	if view.Stats.CompletedOrders != 2 {
		t.Fatalf("expected 2 completed orders, got %d", view.Stats.CompletedOrders)
	}
	if view.Stats.PendingOrders != 1 {
		t.Fatalf("expected 1 pending order, got %d", view.Stats.PendingOrders)
	}
	if !view.Profile.Balance.Equal(decimal.RequireFromString("380")) {
		t.Fatalf("expected balance 380, got %s", view.Profile.Balance)
	}
}

func TestGetNoOrders(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	if _, err := store.CreateProfile(ctx, profile.Profile{UserID: "user-1", Balance: decimal.Zero}); err != nil {
		t.Fatalf("seed profile: %v", err)
	}

	svc := New(store, store, nil)
	view, err := svc.Get(ctx, "user-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !view.Stats.TotalSpent.IsZero() || view.Stats.CompletedOrders != 0 || view.Stats.PendingOrders != 0 {
		t.Fatalf("expected zero stats, got %+v", view.Stats)
	}
}

func TestGetMissingProfile(t *testing.T) {
	svc := New(memory.New(), memory.New(), nil)

	_, err := svc.Get(context.Background(), "ghost")
	serr := apperrors.GetServiceError(err)
	if serr == nil {
		t.Fatalf("expected service error, got %v", err)
	}
	if serr.Code != apperrors.CodeNotFound {
		t.Fatalf("expected NOT_FOUND, got %s", serr.Code)
	}
}

package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/boostgrid/panel-service/internal/app/domain/invitation"
	"github.com/boostgrid/panel-service/internal/app/domain/order"
	"github.com/boostgrid/panel-service/internal/app/domain/profile"
	"github.com/boostgrid/panel-service/internal/app/storage"
)

func TestCreateOrderAndDebitConcurrentOverspend(t *testing.T) {
	store := New()
	ctx := context.Background()

	if _, err := store.CreateProfile(ctx, profile.Profile{
		UserID:  "user-1",
		Balance: decimal.RequireFromString("100"),
	}); err != nil {
		t.Fatalf("seed profile: %v", err)
	}

	// Two concurrent 75-cost orders against a 100 balance: exactly one may
	// win.
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, errs[i] = store.CreateOrderAndDebit(ctx, order.Order{
				UserID:    "user-1",
				ServiceID: "svc-1",
				TotalCost: decimal.RequireFromString("75"),
			})
		}(i)
	}
	wg.Wait()

	var succeeded, rejected int
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, storage.ErrInsufficientBalance):
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 || rejected != 1 {
		t.Fatalf("expected exactly one success and one rejection, got %d/%d", succeeded, rejected)
	}

	p, err := store.GetProfileByUserID(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetProfileByUserID: %v", err)
	}
	if !p.Balance.Equal(decimal.RequireFromString("25")) {
		t.Fatalf("expected balance 25, got %s", p.Balance)
	}
	if p.TotalOrders != 1 {
		t.Fatalf("expected total_orders 1, got %d", p.TotalOrders)
	}
}

func TestConsumeInvitationSingleUse(t *testing.T) {
	store := New()
	ctx := context.Background()
	now := time.Now().UTC()

	if _, err := store.CreateInvitation(ctx, invitation.Invitation{
		Token:     "tok-1",
		Email:     "a@example.com",
		ExpiresAt: now.Add(time.Hour),
	}); err != nil {
		t.Fatalf("CreateInvitation: %v", err)
	}

	first, err := store.ConsumeInvitation(ctx, "tok-1", now)
	if err != nil {
		t.Fatalf("first consume: %v", err)
	}
	if first.UsedAt == nil {
		t.Fatal("expected used_at stamp")
	}

	if _, err := store.ConsumeInvitation(ctx, "tok-1", now); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on reuse, got %v", err)
	}
}

func TestConsumeInvitationExpired(t *testing.T) {
	store := New()
	ctx := context.Background()
	now := time.Now().UTC()

	if _, err := store.CreateInvitation(ctx, invitation.Invitation{
		Token:     "tok-2",
		Email:     "b@example.com",
		ExpiresAt: now.Add(-time.Minute),
	}); err != nil {
		t.Fatalf("CreateInvitation: %v", err)
	}

	if _, err := store.ConsumeInvitation(ctx, "tok-2", now); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for expired token, got %v", err)
	}
}

package orders

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	apperrors "github.com/boostgrid/panel-service/internal/errors"

	"github.com/boostgrid/panel-service/internal/app/domain/catalog"
	"github.com/boostgrid/panel-service/internal/app/domain/order"
	"github.com/boostgrid/panel-service/internal/app/domain/profile"
	"github.com/boostgrid/panel-service/internal/app/storage/memory"
)

func setup(t *testing.T, balance string) (*Service, *memory.Store, string) {
	t.Helper()
	store := memory.New()
	ctx := context.Background()

	svc, err := store.CreateService(ctx, catalog.Service{
		Platform:     "instagram",
		Category:     "followers",
		Name:         "Instagram Followers",
		PricePer1000: decimal.RequireFromString("150"),
		MinQuantity:  10,
		MaxQuantity:  1000,
	})
	if err != nil {
		t.Fatalf("seed service: %v", err)
	}
	if _, err := store.CreateProfile(ctx, profile.Profile{
		UserID:  "user-1",
		Balance: decimal.RequireFromString(balance),
	}); err != nil {
		t.Fatalf("seed profile: %v", err)
	}
	return New(store, store, store, nil, nil), store, svc.ID
}

func TestPlaceOrderDebitsBalance(t *testing.T) {
	svc, _, serviceID := setup(t, "100")

	result, err := svc.PlaceOrder(context.Background(), "user-1", PlaceOrderRequest{
		ServiceID: serviceID,
		TargetURL: "https://instagram.com/someaccount",
		Quantity:  500,
	})
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}

	if !result.Order.TotalCost.Equal(decimal.RequireFromString("75")) {
		t.Fatalf("expected total_cost 75, got %s", result.Order.TotalCost)
	}
	if result.Order.Status != order.StatusPending {
		t.Fatalf("expected pending status, got %s", result.Order.Status)
	}
	if !result.Profile.Balance.Equal(decimal.RequireFromString("25")) {
		t.Fatalf("expected balance 25, got %s", result.Profile.Balance)
	}
	if result.Profile.TotalOrders != 1 {
		t.Fatalf("expected total_orders 1, got %d", result.Profile.TotalOrders)
	}
}

func TestPlaceOrderInsufficientBalance(t *testing.T) {
	svc, store, serviceID := setup(t, "50")
	ctx := context.Background()

	_, err := svc.PlaceOrder(ctx, "user-1", PlaceOrderRequest{
		ServiceID: serviceID,
		TargetURL: "https://instagram.com/someaccount",
		Quantity:  500,
	})
	serr := apperrors.GetServiceError(err)
	if serr == nil || serr.Code != apperrors.CodeInsufficientBalance {
		t.Fatalf("expected INSUFFICIENT_BALANCE, got %v", err)
	}
	if serr.Details["required"] != "75" || serr.Details["available"] != "50" {
		t.Fatalf("unexpected details: %v", serr.Details)
	}

	// No order may be persisted and the balance must be untouched.
	orders, err := store.ListOrdersByUser(ctx, "user-1")
	if err != nil {
		t.Fatalf("ListOrdersByUser: %v", err)
	}
	if len(orders) != 0 {
		t.Fatalf("expected no orders, got %d", len(orders))
	}
	p, err := store.GetProfileByUserID(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetProfileByUserID: %v", err)
	}
	if !p.Balance.Equal(decimal.RequireFromString("50")) {
		t.Fatalf("expected balance 50, got %s", p.Balance)
	}
}

func TestPlaceOrderValidation(t *testing.T) {
	svc, _, serviceID := setup(t, "1000")
	ctx := context.Background()

	cases := []struct {
		name     string
		req      PlaceOrderRequest
		wantCode apperrors.ErrorCode
		wantMsg  string
	}{
		{
			name:     "missing fields",
			req:      PlaceOrderRequest{ServiceID: serviceID},
			wantCode: apperrors.CodeBadRequest,
		},
		{
			name:     "unknown service",
			req:      PlaceOrderRequest{ServiceID: "nope", TargetURL: "https://instagram.com/x", Quantity: 100},
			wantCode: apperrors.CodeNotFound,
		},
		{
			name:     "below minimum",
			req:      PlaceOrderRequest{ServiceID: serviceID, TargetURL: "https://instagram.com/x", Quantity: 5},
			wantCode: apperrors.CodeBadRequest,
			wantMsg:  "Minimum quantity is 10",
		},
		{
			name:     "above maximum",
			req:      PlaceOrderRequest{ServiceID: serviceID, TargetURL: "https://instagram.com/x", Quantity: 5000},
			wantCode: apperrors.CodeBadRequest,
			wantMsg:  "Maximum quantity is 1000",
		},
		{
			name:     "bad url",
			req:      PlaceOrderRequest{ServiceID: serviceID, TargetURL: "ftp://instagram.com/x", Quantity: 100},
			wantCode: apperrors.CodeBadRequest,
			wantMsg:  "Invalid target URL",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.PlaceOrder(ctx, "user-1", tc.req)
			serr := apperrors.GetServiceError(err)
			if serr == nil {
				t.Fatalf("expected service error, got %v", err)
			}
			if serr.Code != tc.wantCode {
				t.Fatalf("expected code %s, got %s", tc.wantCode, serr.Code)
			}
			if tc.wantMsg != "" && serr.Message != tc.wantMsg {
				t.Fatalf("expected message %q, got %q", tc.wantMsg, serr.Message)
			}
		})
	}
}

func TestPlaceOrderInactiveService(t *testing.T) {
	svc, store, serviceID := setup(t, "1000")
	ctx := context.Background()

	stored, err := store.GetService(ctx, serviceID)
	if err != nil {
		t.Fatalf("GetService: %v", err)
	}
	stored.Status = catalog.StatusInactive
	if _, err := store.UpdateService(ctx, stored); err != nil {
		t.Fatalf("UpdateService: %v", err)
	}

	_, err = svc.PlaceOrder(ctx, "user-1", PlaceOrderRequest{
		ServiceID: serviceID,
		TargetURL: "https://instagram.com/x",
		Quantity:  100,
	})
	serr := apperrors.GetServiceError(err)
	if serr == nil || serr.Code != apperrors.CodeNotFound {
		t.Fatalf("expected NOT_FOUND for inactive service, got %v", err)
	}
}

func TestCost(t *testing.T) {
	cases := []struct {
		quantity int
		price    string
		want     string
	}{
		{500, "150", "75"},
		{1000, "150", "150"},
		{10, "150", "1.5"},
		{333, "1.5", "0.5"},
		{125, "0.1", "0.01"},
	}
	for _, tc := range cases {
		got := Cost(tc.quantity, decimal.RequireFromString(tc.price))
		if !got.Equal(decimal.RequireFromString(tc.want)) {
			t.Fatalf("Cost(%d, %s) = %s, want %s", tc.quantity, tc.price, got, tc.want)
		}
	}
}

func TestDefaultURLValidator(t *testing.T) {
	v := DefaultURLValidator{}
	valid := []string{
		"https://instagram.com/someaccount",
		"http://www.youtube.com/watch?v=abc",
	}
	for _, u := range valid {
		if err := v.Validate(u); err != nil {
			t.Fatalf("expected %q to be valid: %v", u, err)
		}
	}
	invalid := []string{
		"",
		"not a url",
		"ftp://example.com/x",
		"https:///path-only",
		"https://localhost/x",
		"https://.example.com/",
	}
	for _, u := range invalid {
		if err := v.Validate(u); err == nil {
			t.Fatalf("expected %q to be rejected", u)
		}
	}
}

package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	catalogdomain "github.com/boostgrid/panel-service/internal/app/domain/catalog"
	"github.com/boostgrid/panel-service/internal/app/storage/memory"
)

func seedServices(t *testing.T, store *memory.Store) {
	t.Helper()
	ctx := context.Background()
	seeds := []catalogdomain.Service{
		{Platform: "tiktok", Category: "views", Name: "TikTok Views", PricePer1000: decimal.RequireFromString("20"), MinQuantity: 100, MaxQuantity: 100000},
		{Platform: "instagram", Category: "followers", Name: "Instagram Followers", PricePer1000: decimal.RequireFromString("150"), MinQuantity: 10, MaxQuantity: 1000},
		{Platform: "instagram", Category: "likes", Name: "Instagram Likes", PricePer1000: decimal.RequireFromString("50"), MinQuantity: 50, MaxQuantity: 5000},
		{Platform: "instagram", Category: "followers", Name: "Retired Package", PricePer1000: decimal.RequireFromString("90"), MinQuantity: 10, MaxQuantity: 100, Status: catalogdomain.StatusInactive},
	}
	for _, svc := range seeds {
		if _, err := store.CreateService(ctx, svc); err != nil {
			t.Fatalf("seed service: %v", err)
		}
	}
}

func TestListReturnsActiveSorted(t *testing.T) {
	store := memory.New()
	seedServices(t, store)
	svc := New(store, nil, nil)

	services, err := svc.List(context.Background(), ListFilter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(services) != 3 {
		t.Fatalf("expected 3 active services, got %d", len(services))
	}
	wantNames := []string{"Instagram Followers", "Instagram Likes", "TikTok Views"}
	for i, name := range wantNames {
		if services[i].Name != name {
			t.Fatalf("position %d: expected %q, got %q", i, name, services[i].Name)
		}
	}
}

func TestListFiltersByPlatformAndCategory(t *testing.T) {
	store := memory.New()
	seedServices(t, store)
	svc := New(store, nil, nil)

	services, err := svc.List(context.Background(), ListFilter{Platform: "instagram", Category: "likes"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(services) != 1 || services[0].Name != "Instagram Likes" {
		t.Fatalf("unexpected result: %+v", services)
	}
}

func TestListEmptyCatalogReturnsEmptySlice(t *testing.T) {
	svc := New(memory.New(), nil, nil)

	services, err := svc.List(context.Background(), ListFilter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if services == nil {
		t.Fatal("expected empty slice, got nil")
	}
	if len(services) != 0 {
		t.Fatalf("expected no services, got %d", len(services))
	}
}

type stubCache struct {
	entries map[string][]catalogdomain.Service
	getErr  error
	sets    int
}

func newStubCache() *stubCache {
	return &stubCache{entries: map[string][]catalogdomain.Service{}}
}

func (c *stubCache) Get(_ context.Context, key string) ([]catalogdomain.Service, bool, error) {
	if c.getErr != nil {
		return nil, false, c.getErr
	}
	services, ok := c.entries[key]
	return services, ok, nil
}

func (c *stubCache) Set(_ context.Context, key string, services []catalogdomain.Service) error {
	c.sets++
	c.entries[key] = services
	return nil
}

func (c *stubCache) Invalidate(context.Context) error {
	c.entries = map[string][]catalogdomain.Service{}
	return nil
}

func TestListUsesCache(t *testing.T) {
	store := memory.New()
	seedServices(t, store)
	cache := newStubCache()
	svc := New(store, cache, nil)
	ctx := context.Background()

	if _, err := svc.List(ctx, ListFilter{}); err != nil {
		t.Fatalf("first List: %v", err)
	}
	if cache.sets != 1 {
		t.Fatalf("expected 1 cache write, got %d", cache.sets)
	}

	// Second read must come from the cache, not the store.
	cached, err := svc.List(ctx, ListFilter{})
	if err != nil {
		t.Fatalf("second List: %v", err)
	}
	if len(cached) != 3 {
		t.Fatalf("expected 3 cached services, got %d", len(cached))
	}
	if cache.sets != 1 {
		t.Fatalf("cache hit should not write again, got %d writes", cache.sets)
	}
}

func TestListSurvivesCacheFailure(t *testing.T) {
	store := memory.New()
	seedServices(t, store)
	cache := newStubCache()
	cache.getErr = errors.New("redis unavailable")
	svc := New(store, cache, nil)

	services, err := svc.List(context.Background(), ListFilter{})
	if err != nil {
		t.Fatalf("List with failing cache: %v", err)
	}
	if len(services) != 3 {
		t.Fatalf("expected 3 services from store, got %d", len(services))
	}
}

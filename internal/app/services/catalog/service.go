// Package catalog serves the public service listing.
package catalog

import (
	"context"

	catalogdomain "github.com/boostgrid/panel-service/internal/app/domain/catalog"
	"github.com/boostgrid/panel-service/internal/app/storage"
	"github.com/boostgrid/panel-service/pkg/logger"
)

// Cache stores rendered service listings keyed by filter. Implementations
// must tolerate being unavailable; the service treats every cache error as
// a miss.
type Cache interface {
	Get(ctx context.Context, key string) ([]catalogdomain.Service, bool, error)
	Set(ctx context.Context, key string, services []catalogdomain.Service) error
	Invalidate(ctx context.Context) error
}

// Service lists the active catalog, optionally filtered by platform and
// category.
type Service struct {
	store storage.ServiceStore
	cache Cache
	log   *logger.Logger
}

// New creates a catalog Service. cache may be nil.
func New(store storage.ServiceStore, cache Cache, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("catalog")
	}
	return &Service{store: store, cache: cache, log: log}
}

// ListFilter narrows the listing. Empty fields match everything.
type ListFilter struct {
	Platform string
	Category string
}

// List returns active services ordered by platform then name.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]catalogdomain.Service, error) {
	key := cacheKey(filter)
	if s.cache != nil {
		cached, ok, err := s.cache.Get(ctx, key)
		if err != nil {
			s.log.WithError(err).Warn("catalog cache read failed")
		} else if ok {
			return cached, nil
		}
	}

	services, err := s.store.ListServices(ctx, storage.ServiceFilter{
		Platform:   filter.Platform,
		Category:   filter.Category,
		ActiveOnly: true,
	})
	if err != nil {
		return nil, err
	}
	if services == nil {
		services = []catalogdomain.Service{}
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, services); err != nil {
			s.log.WithError(err).Warn("catalog cache write failed")
		}
	}
	return services, nil
}

// InvalidateCache drops every cached listing. Called after admin catalog
// writes.
func (s *Service) InvalidateCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		s.log.WithError(err).Warn("catalog cache invalidation failed")
	}
}

func cacheKey(filter ListFilter) string {
	return "catalog:" + filter.Platform + ":" + filter.Category
}

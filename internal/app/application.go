// Package app wires the panel's services together.
package app

import (
	"github.com/boostgrid/panel-service/internal/app/services/admin"
	catalogsvc "github.com/boostgrid/panel-service/internal/app/services/catalog"
	orderssvc "github.com/boostgrid/panel-service/internal/app/services/orders"
	profilessvc "github.com/boostgrid/panel-service/internal/app/services/profiles"
	"github.com/boostgrid/panel-service/internal/app/services/provider"
	"github.com/boostgrid/panel-service/internal/app/storage"
	"github.com/boostgrid/panel-service/internal/app/storage/memory"
	"github.com/boostgrid/panel-service/pkg/logger"
)

// Stores encapsulates persistence dependencies. Nil stores default to the
// in-memory implementation.
type Stores struct {
	Services    storage.ServiceStore
	Profiles    storage.ProfileStore
	Orders      storage.OrderStore
	Invitations storage.InvitationStore
	Audit       storage.AuditStore
}

// Options carries the non-storage dependencies.
type Options struct {
	// CatalogCache is optional; when nil the catalog always reads the store.
	CatalogCache catalogsvc.Cache

	// Provider talks to the upstream SMM API.
	Provider *provider.Client

	// URLValidator overrides the default order target check.
	URLValidator orderssvc.URLValidator
}

// Application ties the domain services together.
type Application struct {
	log *logger.Logger

	Catalog  *catalogsvc.Service
	Profiles *profilessvc.Service
	Orders   *orderssvc.Service
	Provider *provider.Client
	Admin    *admin.Service

	// ProfileStore is exposed for the HTTP layer's admin-role check.
	ProfileStore storage.ProfileStore
}

// New builds a fully initialised application with the provided stores.
func New(stores Stores, opts Options, log *logger.Logger) *Application {
	if log == nil {
		log = logger.NewDefault("app")
	}

	mem := memory.New()
	if stores.Services == nil {
		stores.Services = mem
	}
	if stores.Profiles == nil {
		stores.Profiles = mem
	}
	if stores.Orders == nil {
		stores.Orders = mem
	}
	if stores.Invitations == nil {
		stores.Invitations = mem
	}
	if stores.Audit == nil {
		stores.Audit = mem
	}

	catalogService := catalogsvc.New(stores.Services, opts.CatalogCache, log)
	profilesService := profilessvc.New(stores.Profiles, stores.Orders, log)
	ordersService := orderssvc.New(stores.Services, stores.Profiles, stores.Orders, opts.URLValidator, log)
	adminService := admin.New(stores.Services, stores.Profiles, stores.Invitations, stores.Audit, catalogService, log)

	return &Application{
		log:          log,
		Catalog:      catalogService,
		Profiles:     profilesService,
		Orders:       ordersService,
		Provider:     opts.Provider,
		Admin:        adminService,
		ProfileStore: stores.Profiles,
	}
}

// Package storage defines the persistence interfaces for the panel service.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/boostgrid/panel-service/internal/app/domain/audit"
	"github.com/boostgrid/panel-service/internal/app/domain/catalog"
	"github.com/boostgrid/panel-service/internal/app/domain/invitation"
	"github.com/boostgrid/panel-service/internal/app/domain/order"
	"github.com/boostgrid/panel-service/internal/app/domain/profile"
)

var (
	// ErrNotFound reports an absent entity.
	ErrNotFound = errors.New("not found")
	// ErrInsufficientBalance reports a conditional debit that did not apply
	// because the profile balance was below the order cost.
	ErrInsufficientBalance = errors.New("insufficient balance")
)

// ServiceFilter narrows catalog listings.
type ServiceFilter struct {
	Platform   string
	Category   string
	ActiveOnly bool
}

// ServiceStore persists catalog services.
type ServiceStore interface {
	CreateService(ctx context.Context, svc catalog.Service) (catalog.Service, error)
	UpdateService(ctx context.Context, svc catalog.Service) (catalog.Service, error)
	GetService(ctx context.Context, id string) (catalog.Service, error)
	// ListServices returns matches ordered by platform then name.
	ListServices(ctx context.Context, filter ServiceFilter) ([]catalog.Service, error)
}

// ProfileStore persists customer profiles.
type ProfileStore interface {
	CreateProfile(ctx context.Context, p profile.Profile) (profile.Profile, error)
	UpdateProfile(ctx context.Context, p profile.Profile) (profile.Profile, error)
	GetProfileByUserID(ctx context.Context, userID string) (profile.Profile, error)
	ListProfiles(ctx context.Context) ([]profile.Profile, error)
	// GrantAdmin sets the admin flag and stamps admin_created_at.
	GrantAdmin(ctx context.Context, userID string, grantedAt time.Time) (profile.Profile, error)
}

// OrderStore persists orders and settles their cost against the owning
// profile.
type OrderStore interface {
	// CreateOrderAndDebit inserts the order and applies
	// balance -= total_cost, total_orders += 1 as one conditional
	// operation: the debit only applies while balance >= total_cost, and
	// the order is not persisted otherwise. Returns the stored order and
	// the debited profile, or ErrInsufficientBalance.
	CreateOrderAndDebit(ctx context.Context, o order.Order) (order.Order, profile.Profile, error)
	GetOrder(ctx context.Context, id string) (order.Order, error)
	ListOrdersByUser(ctx context.Context, userID string) ([]order.Order, error)
}

// InvitationStore persists admin invitations.
type InvitationStore interface {
	CreateInvitation(ctx context.Context, inv invitation.Invitation) (invitation.Invitation, error)
	GetInvitationByToken(ctx context.Context, token string) (invitation.Invitation, error)
	// ConsumeInvitation stamps used_at only while the token is unused and
	// unexpired at usedAt; ErrNotFound covers missing, expired and already
	// consumed tokens alike.
	ConsumeInvitation(ctx context.Context, token string, usedAt time.Time) (invitation.Invitation, error)
	ListInvitations(ctx context.Context) ([]invitation.Invitation, error)
}

// AuditStore persists the admin audit log.
type AuditStore interface {
	AppendAudit(ctx context.Context, entry audit.Entry) (audit.Entry, error)
	ListAudit(ctx context.Context, limit int) ([]audit.Entry, error)
}

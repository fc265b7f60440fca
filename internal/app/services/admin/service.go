// Package admin implements the administrative console backend: catalog
// management, user management, admin invitations, and the audit trail.
package admin

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	apperrors "github.com/boostgrid/panel-service/internal/errors"

	"github.com/boostgrid/panel-service/internal/app/domain/audit"
	"github.com/boostgrid/panel-service/internal/app/domain/catalog"
	"github.com/boostgrid/panel-service/internal/app/domain/invitation"
	"github.com/boostgrid/panel-service/internal/app/domain/profile"
	"github.com/boostgrid/panel-service/internal/app/storage"
	"github.com/boostgrid/panel-service/pkg/logger"
)

const invitationTTL = 7 * 24 * time.Hour

// invalidInvitation is deliberately uniform so callers cannot probe which
// precondition failed.
var invalidInvitation = "Invalid invitation"

// CatalogInvalidator drops cached catalog listings after a write.
type CatalogInvalidator interface {
	InvalidateCache(ctx context.Context)
}

// Actor identifies the admin performing an operation, for the audit trail.
type Actor struct {
	UserID    string
	IPAddress string
	UserAgent string
}

// Service is the admin console backend.
type Service struct {
	services    storage.ServiceStore
	profiles    storage.ProfileStore
	invitations storage.InvitationStore
	auditLog    storage.AuditStore
	catalog     CatalogInvalidator
	log         *logger.Logger
	now         func() time.Time
}

// New creates the admin Service. catalog may be nil.
func New(services storage.ServiceStore, profiles storage.ProfileStore, invitations storage.InvitationStore, auditLog storage.AuditStore, catalog CatalogInvalidator, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("admin")
	}
	return &Service{
		services:    services,
		profiles:    profiles,
		invitations: invitations,
		auditLog:    auditLog,
		catalog:     catalog,
		log:         log,
		now:         time.Now,
	}
}

// --- catalog management -----------------------------------------------------

// ServiceInput carries the editable fields of a catalog service.
type ServiceInput struct {
	Platform     string          `json:"platform"`
	Category     string          `json:"category"`
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	PricePer1000 decimal.Decimal `json:"price_per_1000"`
	MinQuantity  int             `json:"min_quantity"`
	MaxQuantity  int             `json:"max_quantity"`
	DeliveryTime string          `json:"delivery_time"`
	Status       catalog.Status  `json:"status"`
	Features     []string        `json:"features"`
}

func (in ServiceInput) validate() error {
	if in.Platform == "" || in.Category == "" || in.Name == "" {
		return apperrors.BadRequest("platform, category and name are required")
	}
	if in.MinQuantity <= 0 || in.MaxQuantity <= 0 {
		return apperrors.BadRequest("quantity bounds must be positive")
	}
	if in.MinQuantity > in.MaxQuantity {
		return apperrors.BadRequest("min_quantity must not exceed max_quantity")
	}
	if in.PricePer1000.IsNegative() {
		return apperrors.BadRequest("price_per_1000 must not be negative")
	}
	switch in.Status {
	case "", catalog.StatusActive, catalog.StatusInactive:
	default:
		return apperrors.BadRequest("status must be active or inactive")
	}
	return nil
}

// CreateService adds a catalog entry and records the action.
func (s *Service) CreateService(ctx context.Context, actor Actor, in ServiceInput) (catalog.Service, error) {
	if err := in.validate(); err != nil {
		return catalog.Service{}, err
	}

	created, err := s.services.CreateService(ctx, catalog.Service{
		Platform:     in.Platform,
		Category:     in.Category,
		Name:         in.Name,
		Description:  in.Description,
		PricePer1000: in.PricePer1000,
		MinQuantity:  in.MinQuantity,
		MaxQuantity:  in.MaxQuantity,
		DeliveryTime: in.DeliveryTime,
		Status:       in.Status,
		Features:     in.Features,
	})
	if err != nil {
		return catalog.Service{}, apperrors.Internal("failed to create service", err)
	}

	s.invalidateCatalog(ctx)
	s.record(ctx, actor, "service.create", "service", created.ID, map[string]interface{}{
		"name":     created.Name,
		"platform": created.Platform,
	})
	return created, nil
}

// UpdateService replaces the editable fields of a catalog entry.
func (s *Service) UpdateService(ctx context.Context, actor Actor, id string, in ServiceInput) (catalog.Service, error) {
	if err := in.validate(); err != nil {
		return catalog.Service{}, err
	}

	updated, err := s.services.UpdateService(ctx, catalog.Service{
		ID:           id,
		Platform:     in.Platform,
		Category:     in.Category,
		Name:         in.Name,
		Description:  in.Description,
		PricePer1000: in.PricePer1000,
		MinQuantity:  in.MinQuantity,
		MaxQuantity:  in.MaxQuantity,
		DeliveryTime: in.DeliveryTime,
		Status:       in.Status,
		Features:     in.Features,
	})
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return catalog.Service{}, apperrors.NotFound("Service not found")
		}
		return catalog.Service{}, apperrors.Internal("failed to update service", err)
	}

	s.invalidateCatalog(ctx)
	s.record(ctx, actor, "service.update", "service", updated.ID, map[string]interface{}{
		"name":   updated.Name,
		"status": string(updated.Status),
	})
	return updated, nil
}

// ListServices returns the full catalog including inactive entries.
func (s *Service) ListServices(ctx context.Context) ([]catalog.Service, error) {
	services, err := s.services.ListServices(ctx, storage.ServiceFilter{})
	if err != nil {
		return nil, apperrors.Internal("failed to list services", err)
	}
	if services == nil {
		services = []catalog.Service{}
	}
	return services, nil
}

// --- user management --------------------------------------------------------

// ListUsers returns every profile.
func (s *Service) ListUsers(ctx context.Context) ([]profile.Profile, error) {
	users, err := s.profiles.ListProfiles(ctx)
	if err != nil {
		return nil, apperrors.Internal("failed to list users", err)
	}
	if users == nil {
		users = []profile.Profile{}
	}
	return users, nil
}

// SetUserStatus switches a profile between active and suspended.
func (s *Service) SetUserStatus(ctx context.Context, actor Actor, userID string, status profile.Status) (profile.Profile, error) {
	if status != profile.StatusActive && status != profile.StatusSuspended {
		return profile.Profile{}, apperrors.BadRequest("status must be active or suspended")
	}

	p, err := s.profiles.GetProfileByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return profile.Profile{}, apperrors.NotFound("Profile not found")
		}
		return profile.Profile{}, apperrors.Internal("failed to load profile", err)
	}

	p.Status = status
	updated, err := s.profiles.UpdateProfile(ctx, p)
	if err != nil {
		return profile.Profile{}, apperrors.Internal("failed to update profile", err)
	}

	s.record(ctx, actor, "user.set_status", "profile", userID, map[string]interface{}{
		"status": string(status),
	})
	return updated, nil
}

// --- invitations ------------------------------------------------------------

// CreateInvitation issues a single-use admin invitation token valid for
// seven days.
func (s *Service) CreateInvitation(ctx context.Context, actor Actor, email string) (invitation.Invitation, error) {
	if email == "" {
		return invitation.Invitation{}, apperrors.BadRequest("email is required")
	}

	now := s.now().UTC()
	inv, err := s.invitations.CreateInvitation(ctx, invitation.Invitation{
		Token:     uuid.NewString(),
		Email:     email,
		CreatedBy: actor.UserID,
		ExpiresAt: now.Add(invitationTTL),
	})
	if err != nil {
		return invitation.Invitation{}, apperrors.Internal("failed to create invitation", err)
	}

	s.record(ctx, actor, "invitation.create", "invitation", inv.ID, map[string]interface{}{
		"email": email,
	})
	return inv, nil
}

// AcceptInvitation consumes a token and grants the admin flag to the caller.
// Every failure mode returns the same error so tokens cannot be enumerated.
func (s *Service) AcceptInvitation(ctx context.Context, caller Actor, token string) (profile.Profile, error) {
	if token == "" {
		return profile.Profile{}, apperrors.BadRequest(invalidInvitation)
	}

	now := s.now().UTC()
	inv, err := s.invitations.ConsumeInvitation(ctx, token, now)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return profile.Profile{}, apperrors.BadRequest(invalidInvitation)
		}
		return profile.Profile{}, apperrors.Internal("failed to consume invitation", err)
	}

	granted, err := s.profiles.GrantAdmin(ctx, caller.UserID, now)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return profile.Profile{}, apperrors.BadRequest(invalidInvitation)
		}
		return profile.Profile{}, apperrors.Internal("failed to grant admin", err)
	}

	s.record(ctx, caller, "invitation.accept", "invitation", inv.ID, map[string]interface{}{
		"email": inv.Email,
	})
	s.log.WithFields(map[string]interface{}{
		"user_id":    caller.UserID,
		"invitation": inv.ID,
	}).Info("admin invitation accepted")
	return granted, nil
}

// ListInvitations returns every invitation with its state evaluated now.
func (s *Service) ListInvitations(ctx context.Context) ([]InvitationView, error) {
	invitations, err := s.invitations.ListInvitations(ctx)
	if err != nil {
		return nil, apperrors.Internal("failed to list invitations", err)
	}

	now := s.now().UTC()
	views := make([]InvitationView, 0, len(invitations))
	for _, inv := range invitations {
		views = append(views, InvitationView{Invitation: inv, State: inv.StateAt(now)})
	}
	return views, nil
}

// InvitationView is an invitation with its time-derived state.
type InvitationView struct {
	invitation.Invitation
	State invitation.State `json:"state"`
}

// --- audit ------------------------------------------------------------------

// ListAuditLog returns the most recent audit entries, newest first.
func (s *Service) ListAuditLog(ctx context.Context, limit int) ([]audit.Entry, error) {
	entries, err := s.auditLog.ListAudit(ctx, limit)
	if err != nil {
		return nil, apperrors.Internal("failed to list audit log", err)
	}
	if entries == nil {
		entries = []audit.Entry{}
	}
	return entries, nil
}

func (s *Service) record(ctx context.Context, actor Actor, action, resourceType, resourceID string, details map[string]interface{}) {
	_, err := s.auditLog.AppendAudit(ctx, audit.Entry{
		AdminUserID:  actor.UserID,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Details:      details,
		IPAddress:    actor.IPAddress,
		UserAgent:    actor.UserAgent,
	})
	if err != nil {
		// Audit failures must not fail the operation itself.
		s.log.WithError(err).WithField("action", action).Warn("audit append failed")
	}
}

func (s *Service) invalidateCatalog(ctx context.Context) {
	if s.catalog != nil {
		s.catalog.InvalidateCache(ctx)
	}
}

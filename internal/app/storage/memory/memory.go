// Package memory provides an in-memory implementation of the storage
// interfaces. It is safe for concurrent use and is primarily intended for
// tests and local development.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/boostgrid/panel-service/internal/app/domain/audit"
	"github.com/boostgrid/panel-service/internal/app/domain/catalog"
	"github.com/boostgrid/panel-service/internal/app/domain/invitation"
	"github.com/boostgrid/panel-service/internal/app/domain/order"
	"github.com/boostgrid/panel-service/internal/app/domain/profile"
	"github.com/boostgrid/panel-service/internal/app/storage"
)

// Store is an in-memory persistence layer.
type Store struct {
	mu          sync.RWMutex
	nextID      int64
	services    map[string]catalog.Service
	profiles    map[string]profile.Profile // keyed by user id
	orders      map[string]order.Order
	invitations map[string]invitation.Invitation // keyed by token
	auditLog    []audit.Entry
}

var _ storage.ServiceStore = (*Store)(nil)
var _ storage.ProfileStore = (*Store)(nil)
var _ storage.OrderStore = (*Store)(nil)
var _ storage.InvitationStore = (*Store)(nil)
var _ storage.AuditStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		nextID:      1,
		services:    make(map[string]catalog.Service),
		profiles:    make(map[string]profile.Profile),
		orders:      make(map[string]order.Order),
		invitations: make(map[string]invitation.Invitation),
	}
}

func (s *Store) nextIDLocked() string {
	id := s.nextID
	s.nextID++
	return fmt.Sprintf("%d", id)
}

// ServiceStore implementation ------------------------------------------------

func (s *Store) CreateService(_ context.Context, svc catalog.Service) (catalog.Service, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if svc.ID == "" {
		svc.ID = s.nextIDLocked()
	} else if _, exists := s.services[svc.ID]; exists {
		return catalog.Service{}, fmt.Errorf("service %s already exists", svc.ID)
	}

	if svc.Status == "" {
		svc.Status = catalog.StatusActive
	}
	now := time.Now().UTC()
	svc.CreatedAt = now
	svc.UpdatedAt = now
	svc.Features = append([]string(nil), svc.Features...)

	s.services[svc.ID] = svc
	return cloneService(svc), nil
}

func (s *Store) UpdateService(_ context.Context, svc catalog.Service) (catalog.Service, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.services[svc.ID]
	if !ok {
		return catalog.Service{}, storage.ErrNotFound
	}

	svc.CreatedAt = original.CreatedAt
	svc.UpdatedAt = time.Now().UTC()
	svc.Features = append([]string(nil), svc.Features...)

	s.services[svc.ID] = svc
	return cloneService(svc), nil
}

func (s *Store) GetService(_ context.Context, id string) (catalog.Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	svc, ok := s.services[id]
	if !ok {
		return catalog.Service{}, storage.ErrNotFound
	}
	return cloneService(svc), nil
}

func (s *Store) ListServices(_ context.Context, filter storage.ServiceFilter) ([]catalog.Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]catalog.Service, 0, len(s.services))
	for _, svc := range s.services {
		if filter.ActiveOnly && !svc.Active() {
			continue
		}
		if filter.Platform != "" && !strings.EqualFold(svc.Platform, filter.Platform) {
			continue
		}
		if filter.Category != "" && !strings.EqualFold(svc.Category, filter.Category) {
			continue
		}
		result = append(result, cloneService(svc))
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Platform != result[j].Platform {
			return result[i].Platform < result[j].Platform
		}
		return result[i].Name < result[j].Name
	})
	return result, nil
}

// ProfileStore implementation ------------------------------------------------

func (s *Store) CreateProfile(_ context.Context, p profile.Profile) (profile.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.UserID == "" {
		return profile.Profile{}, fmt.Errorf("user_id required")
	}
	if _, exists := s.profiles[p.UserID]; exists {
		return profile.Profile{}, fmt.Errorf("profile for user %s already exists", p.UserID)
	}
	if p.ID == "" {
		p.ID = s.nextIDLocked()
	}
	if p.Status == "" {
		p.Status = profile.StatusActive
	}

	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	s.profiles[p.UserID] = p
	return p, nil
}

func (s *Store) UpdateProfile(_ context.Context, p profile.Profile) (profile.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.profiles[p.UserID]
	if !ok {
		return profile.Profile{}, storage.ErrNotFound
	}

	p.ID = original.ID
	p.CreatedAt = original.CreatedAt
	p.UpdatedAt = time.Now().UTC()

	s.profiles[p.UserID] = p
	return p, nil
}

func (s *Store) GetProfileByUserID(_ context.Context, userID string) (profile.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[userID]
	if !ok {
		return profile.Profile{}, storage.ErrNotFound
	}
	return p, nil
}

func (s *Store) ListProfiles(_ context.Context) ([]profile.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]profile.Profile, 0, len(s.profiles))
	for _, p := range s.profiles {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (s *Store) GrantAdmin(_ context.Context, userID string, grantedAt time.Time) (profile.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[userID]
	if !ok {
		return profile.Profile{}, storage.ErrNotFound
	}

	granted := grantedAt.UTC()
	p.IsAdmin = true
	p.AdminCreatedAt = &granted
	p.UpdatedAt = time.Now().UTC()

	s.profiles[userID] = p
	return p, nil
}

// OrderStore implementation --------------------------------------------------

func (s *Store) CreateOrderAndDebit(_ context.Context, o order.Order) (order.Order, profile.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[o.UserID]
	if !ok {
		return order.Order{}, profile.Profile{}, storage.ErrNotFound
	}
	if p.Balance.Cmp(o.TotalCost) < 0 {
		return order.Order{}, profile.Profile{}, storage.ErrInsufficientBalance
	}

	if o.ID == "" {
		o.ID = s.nextIDLocked()
	}
	if o.Status == "" {
		o.Status = order.StatusPending
	}
	now := time.Now().UTC()
	o.CreatedAt = now
	o.UpdatedAt = now

	p.Balance = p.Balance.Sub(o.TotalCost)
	p.TotalOrders++
	p.UpdatedAt = now

	s.orders[o.ID] = o
	s.profiles[o.UserID] = p
	return o, p, nil
}

func (s *Store) GetOrder(_ context.Context, id string) (order.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[id]
	if !ok {
		return order.Order{}, storage.ErrNotFound
	}
	return o, nil
}

func (s *Store) ListOrdersByUser(_ context.Context, userID string) ([]order.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []order.Order
	for _, o := range s.orders {
		if o.UserID == userID {
			result = append(result, o)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

// InvitationStore implementation ---------------------------------------------

func (s *Store) CreateInvitation(_ context.Context, inv invitation.Invitation) (invitation.Invitation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if inv.Token == "" {
		return invitation.Invitation{}, fmt.Errorf("token required")
	}
	if _, exists := s.invitations[inv.Token]; exists {
		return invitation.Invitation{}, fmt.Errorf("invitation token already exists")
	}
	if inv.ID == "" {
		inv.ID = s.nextIDLocked()
	}
	inv.CreatedAt = time.Now().UTC()

	s.invitations[inv.Token] = inv
	return inv, nil
}

func (s *Store) GetInvitationByToken(_ context.Context, token string) (invitation.Invitation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inv, ok := s.invitations[token]
	if !ok {
		return invitation.Invitation{}, storage.ErrNotFound
	}
	return inv, nil
}

func (s *Store) ConsumeInvitation(_ context.Context, token string, usedAt time.Time) (invitation.Invitation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inv, ok := s.invitations[token]
	if !ok || !inv.Acceptable(usedAt) {
		return invitation.Invitation{}, storage.ErrNotFound
	}

	used := usedAt.UTC()
	inv.UsedAt = &used
	s.invitations[token] = inv
	return inv, nil
}

func (s *Store) ListInvitations(_ context.Context) ([]invitation.Invitation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]invitation.Invitation, 0, len(s.invitations))
	for _, inv := range s.invitations {
		result = append(result, inv)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

// AuditStore implementation --------------------------------------------------

func (s *Store) AppendAudit(_ context.Context, entry audit.Entry) (audit.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = s.nextIDLocked()
	}
	entry.CreatedAt = time.Now().UTC()
	entry.Details = copyDetails(entry.Details)

	s.auditLog = append(s.auditLog, entry)
	return entry, nil
}

func (s *Store) ListAudit(_ context.Context, limit int) ([]audit.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}

	// Newest first.
	result := make([]audit.Entry, 0, limit)
	for i := len(s.auditLog) - 1; i >= 0 && len(result) < limit; i-- {
		result = append(result, s.auditLog[i])
	}
	return result, nil
}

func cloneService(svc catalog.Service) catalog.Service {
	svc.Features = append([]string(nil), svc.Features...)
	return svc
}

func copyDetails(in map[string]interface{}) map[string]interface{} {
	if in == nil {
		return nil
	}
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

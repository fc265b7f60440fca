// Package postgres implements the storage interfaces backed by PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/boostgrid/panel-service/internal/app/domain/audit"
	"github.com/boostgrid/panel-service/internal/app/domain/catalog"
	"github.com/boostgrid/panel-service/internal/app/domain/invitation"
	"github.com/boostgrid/panel-service/internal/app/domain/order"
	"github.com/boostgrid/panel-service/internal/app/domain/profile"
	"github.com/boostgrid/panel-service/internal/app/storage"
)

// Store implements the storage interfaces backed by PostgreSQL.
type Store struct {
	db *sql.DB
}

var _ storage.ServiceStore = (*Store)(nil)
var _ storage.ProfileStore = (*Store)(nil)
var _ storage.OrderStore = (*Store)(nil)
var _ storage.InvitationStore = (*Store)(nil)
var _ storage.AuditStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// --- ServiceStore -----------------------------------------------------------

func (s *Store) CreateService(ctx context.Context, svc catalog.Service) (catalog.Service, error) {
	if svc.ID == "" {
		svc.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	svc.CreatedAt = now
	svc.UpdatedAt = now
	if svc.Status == "" {
		svc.Status = catalog.StatusActive
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO services (id, platform, category, name, description, price_per_1000,
			min_quantity, max_quantity, delivery_time, status, features, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, svc.ID, svc.Platform, svc.Category, svc.Name, svc.Description, svc.PricePer1000.String(),
		svc.MinQuantity, svc.MaxQuantity, svc.DeliveryTime, string(svc.Status),
		pq.Array(svc.Features), svc.CreatedAt, svc.UpdatedAt)
	if err != nil {
		return catalog.Service{}, err
	}
	return svc, nil
}

func (s *Store) UpdateService(ctx context.Context, svc catalog.Service) (catalog.Service, error) {
	existing, err := s.GetService(ctx, svc.ID)
	if err != nil {
		return catalog.Service{}, err
	}

	svc.CreatedAt = existing.CreatedAt
	svc.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE services
		SET platform = $2, category = $3, name = $4, description = $5, price_per_1000 = $6,
			min_quantity = $7, max_quantity = $8, delivery_time = $9, status = $10,
			features = $11, updated_at = $12
		WHERE id = $1
	`, svc.ID, svc.Platform, svc.Category, svc.Name, svc.Description, svc.PricePer1000.String(),
		svc.MinQuantity, svc.MaxQuantity, svc.DeliveryTime, string(svc.Status),
		pq.Array(svc.Features), svc.UpdatedAt)
	if err != nil {
		return catalog.Service{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return catalog.Service{}, storage.ErrNotFound
	}
	return svc, nil
}

const serviceColumns = `id, platform, category, name, COALESCE(description, ''), price_per_1000,
	min_quantity, max_quantity, COALESCE(delivery_time, ''), status, features, created_at, updated_at`

func (s *Store) GetService(ctx context.Context, id string) (catalog.Service, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+serviceColumns+`
		FROM services
		WHERE id = $1
	`, id)

	svc, err := scanService(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return catalog.Service{}, storage.ErrNotFound
		}
		return catalog.Service{}, err
	}
	return svc, nil
}

func (s *Store) ListServices(ctx context.Context, filter storage.ServiceFilter) ([]catalog.Service, error) {
	query := `
		SELECT ` + serviceColumns + `
		FROM services
		WHERE ($1 = '' OR status = $1)
		  AND ($2 = '' OR platform = $2)
		  AND ($3 = '' OR category = $3)
		ORDER BY platform, name
	`
	status := ""
	if filter.ActiveOnly {
		status = string(catalog.StatusActive)
	}

	rows, err := s.db.QueryContext(ctx, query, status, filter.Platform, filter.Category)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []catalog.Service
	for rows.Next() {
		svc, err := scanService(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, svc)
	}
	return result, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanService(row rowScanner) (catalog.Service, error) {
	var (
		svc      catalog.Service
		price    string
		status   string
		features []string
	)
	if err := row.Scan(&svc.ID, &svc.Platform, &svc.Category, &svc.Name, &svc.Description,
		&price, &svc.MinQuantity, &svc.MaxQuantity, &svc.DeliveryTime, &status,
		pq.Array(&features), &svc.CreatedAt, &svc.UpdatedAt); err != nil {
		return catalog.Service{}, err
	}

	parsed, err := decimal.NewFromString(price)
	if err != nil {
		return catalog.Service{}, fmt.Errorf("parse price_per_1000 %q: %w", price, err)
	}
	svc.PricePer1000 = parsed
	svc.Status = catalog.Status(status)
	svc.Features = features
	return svc, nil
}

// --- ProfileStore -----------------------------------------------------------

const profileColumns = `id, user_id, COALESCE(username, ''), COALESCE(full_name, ''),
	COALESCE(email, ''), balance, total_orders, status, is_admin, admin_created_at,
	created_at, updated_at`

func (s *Store) CreateProfile(ctx context.Context, p profile.Profile) (profile.Profile, error) {
	if p.UserID == "" {
		return profile.Profile{}, errors.New("user_id required")
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Status == "" {
		p.Status = profile.StatusActive
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO profiles (id, user_id, username, full_name, email, balance, total_orders,
			status, is_admin, admin_created_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, p.ID, p.UserID, p.Username, p.FullName, p.Email, p.Balance.String(), p.TotalOrders,
		string(p.Status), p.IsAdmin, p.AdminCreatedAt, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return profile.Profile{}, err
	}
	return p, nil
}

func (s *Store) UpdateProfile(ctx context.Context, p profile.Profile) (profile.Profile, error) {
	existing, err := s.GetProfileByUserID(ctx, p.UserID)
	if err != nil {
		return profile.Profile{}, err
	}

	p.ID = existing.ID
	p.CreatedAt = existing.CreatedAt
	p.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE profiles
		SET username = $2, full_name = $3, email = $4, balance = $5, total_orders = $6,
			status = $7, is_admin = $8, admin_created_at = $9, updated_at = $10
		WHERE user_id = $1
	`, p.UserID, p.Username, p.FullName, p.Email, p.Balance.String(), p.TotalOrders,
		string(p.Status), p.IsAdmin, p.AdminCreatedAt, p.UpdatedAt)
	if err != nil {
		return profile.Profile{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return profile.Profile{}, storage.ErrNotFound
	}
	return p, nil
}

func (s *Store) GetProfileByUserID(ctx context.Context, userID string) (profile.Profile, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+profileColumns+`
		FROM profiles
		WHERE user_id = $1
	`, userID)

	p, err := scanProfile(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return profile.Profile{}, storage.ErrNotFound
		}
		return profile.Profile{}, err
	}
	return p, nil
}

func (s *Store) ListProfiles(ctx context.Context) ([]profile.Profile, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+profileColumns+`
		FROM profiles
		ORDER BY created_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []profile.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

func (s *Store) GrantAdmin(ctx context.Context, userID string, grantedAt time.Time) (profile.Profile, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE profiles
		SET is_admin = TRUE, admin_created_at = $2, updated_at = $3
		WHERE user_id = $1
	`, userID, grantedAt.UTC(), time.Now().UTC())
	if err != nil {
		return profile.Profile{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return profile.Profile{}, storage.ErrNotFound
	}
	return s.GetProfileByUserID(ctx, userID)
}

func scanProfile(row rowScanner) (profile.Profile, error) {
	var (
		p       profile.Profile
		balance string
		status  string
		granted sql.NullTime
	)
	if err := row.Scan(&p.ID, &p.UserID, &p.Username, &p.FullName, &p.Email, &balance,
		&p.TotalOrders, &status, &p.IsAdmin, &granted, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return profile.Profile{}, err
	}

	parsed, err := decimal.NewFromString(balance)
	if err != nil {
		return profile.Profile{}, fmt.Errorf("parse balance %q: %w", balance, err)
	}
	p.Balance = parsed
	p.Status = profile.Status(status)
	if granted.Valid {
		t := granted.Time.UTC()
		p.AdminCreatedAt = &t
	}
	return p, nil
}

// --- OrderStore -------------------------------------------------------------

// CreateOrderAndDebit persists the order and settles its cost in one
// transaction. The debit is conditional on the current balance so two
// concurrent orders cannot both spend the same funds.
func (s *Store) CreateOrderAndDebit(ctx context.Context, o order.Order) (_ order.Order, _ profile.Profile, txErr error) {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.Status == "" {
		o.Status = order.StatusPending
	}
	now := time.Now().UTC()
	o.CreatedAt = now
	o.UpdatedAt = now

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return order.Order{}, profile.Profile{}, err
	}
	defer func() {
		if txErr != nil {
			_ = tx.Rollback()
		}
	}()

	result, err := tx.ExecContext(ctx, `
		UPDATE profiles
		SET balance = balance - $2, total_orders = total_orders + 1, updated_at = $3
		WHERE user_id = $1 AND balance >= $2
	`, o.UserID, o.TotalCost.String(), now)
	if err != nil {
		return order.Order{}, profile.Profile{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		// Distinguish a missing profile from a short balance.
		var exists bool
		if err := tx.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM profiles WHERE user_id = $1)`, o.UserID,
		).Scan(&exists); err != nil {
			return order.Order{}, profile.Profile{}, err
		}
		if !exists {
			return order.Order{}, profile.Profile{}, storage.ErrNotFound
		}
		return order.Order{}, profile.Profile{}, storage.ErrInsufficientBalance
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO orders (id, user_id, service_id, target_url, quantity, total_cost,
			start_count, completed_count, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, o.ID, o.UserID, o.ServiceID, o.TargetURL, o.Quantity, o.TotalCost.String(),
		o.StartCount, o.CompletedCount, string(o.Status), o.CreatedAt, o.UpdatedAt); err != nil {
		return order.Order{}, profile.Profile{}, err
	}

	row := tx.QueryRowContext(ctx, `
		SELECT `+profileColumns+`
		FROM profiles
		WHERE user_id = $1
	`, o.UserID)
	p, err := scanProfile(row)
	if err != nil {
		return order.Order{}, profile.Profile{}, err
	}

	if err := tx.Commit(); err != nil {
		return order.Order{}, profile.Profile{}, err
	}
	return o, p, nil
}

const orderColumns = `id, user_id, service_id, target_url, quantity, total_cost,
	start_count, completed_count, status, created_at, updated_at`

func (s *Store) GetOrder(ctx context.Context, id string) (order.Order, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE id = $1
	`, id)

	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return order.Order{}, storage.ErrNotFound
		}
		return order.Order{}, err
	}
	return o, nil
}

func (s *Store) ListOrdersByUser(ctx context.Context, userID string) ([]order.Order, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []order.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, o)
	}
	return result, rows.Err()
}

func scanOrder(row rowScanner) (order.Order, error) {
	var (
		o      order.Order
		cost   string
		status string
	)
	if err := row.Scan(&o.ID, &o.UserID, &o.ServiceID, &o.TargetURL, &o.Quantity, &cost,
		&o.StartCount, &o.CompletedCount, &status, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return order.Order{}, err
	}

	parsed, err := decimal.NewFromString(cost)
	if err != nil {
		return order.Order{}, fmt.Errorf("parse total_cost %q: %w", cost, err)
	}
	o.TotalCost = parsed
	o.Status = order.Status(status)
	return o, nil
}

// --- InvitationStore --------------------------------------------------------

const invitationColumns = `id, token, email, COALESCE(created_by, ''), expires_at, used_at, created_at`

func (s *Store) CreateInvitation(ctx context.Context, inv invitation.Invitation) (invitation.Invitation, error) {
	if inv.Token == "" {
		return invitation.Invitation{}, errors.New("token required")
	}
	if inv.ID == "" {
		inv.ID = uuid.NewString()
	}
	inv.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO admin_invitations (id, token, email, created_by, expires_at, used_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, inv.ID, inv.Token, inv.Email, inv.CreatedBy, inv.ExpiresAt, inv.UsedAt, inv.CreatedAt)
	if err != nil {
		return invitation.Invitation{}, err
	}
	return inv, nil
}

func (s *Store) GetInvitationByToken(ctx context.Context, token string) (invitation.Invitation, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+invitationColumns+`
		FROM admin_invitations
		WHERE token = $1
	`, token)

	inv, err := scanInvitation(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return invitation.Invitation{}, storage.ErrNotFound
		}
		return invitation.Invitation{}, err
	}
	return inv, nil
}

// ConsumeInvitation stamps used_at in a single conditional update so a token
// can never be accepted twice, even concurrently.
func (s *Store) ConsumeInvitation(ctx context.Context, token string, usedAt time.Time) (invitation.Invitation, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE admin_invitations
		SET used_at = $2
		WHERE token = $1 AND used_at IS NULL AND expires_at > $2
	`, token, usedAt.UTC())
	if err != nil {
		return invitation.Invitation{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return invitation.Invitation{}, storage.ErrNotFound
	}
	return s.GetInvitationByToken(ctx, token)
}

func (s *Store) ListInvitations(ctx context.Context) ([]invitation.Invitation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+invitationColumns+`
		FROM admin_invitations
		ORDER BY created_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []invitation.Invitation
	for rows.Next() {
		inv, err := scanInvitation(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, inv)
	}
	return result, rows.Err()
}

func scanInvitation(row rowScanner) (invitation.Invitation, error) {
	var (
		inv  invitation.Invitation
		used sql.NullTime
	)
	if err := row.Scan(&inv.ID, &inv.Token, &inv.Email, &inv.CreatedBy,
		&inv.ExpiresAt, &used, &inv.CreatedAt); err != nil {
		return invitation.Invitation{}, err
	}
	if used.Valid {
		t := used.Time.UTC()
		inv.UsedAt = &t
	}
	return inv, nil
}

// --- AuditStore -------------------------------------------------------------

func (s *Store) AppendAudit(ctx context.Context, entry audit.Entry) (audit.Entry, error) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	entry.CreatedAt = time.Now().UTC()

	detailsJSON, err := json.Marshal(entry.Details)
	if err != nil {
		return audit.Entry{}, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO admin_audit_log (id, admin_user_id, action, resource_type, resource_id,
			details, ip_address, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, entry.ID, entry.AdminUserID, entry.Action, entry.ResourceType, entry.ResourceID,
		detailsJSON, entry.IPAddress, entry.UserAgent, entry.CreatedAt)
	if err != nil {
		return audit.Entry{}, err
	}
	return entry, nil
}

func (s *Store) ListAudit(ctx context.Context, limit int) ([]audit.Entry, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, admin_user_id, action, resource_type, COALESCE(resource_id, ''),
			details, COALESCE(ip_address, ''), COALESCE(user_agent, ''), created_at
		FROM admin_audit_log
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []audit.Entry
	for rows.Next() {
		var (
			entry      audit.Entry
			detailsRaw []byte
		)
		if err := rows.Scan(&entry.ID, &entry.AdminUserID, &entry.Action, &entry.ResourceType,
			&entry.ResourceID, &detailsRaw, &entry.IPAddress, &entry.UserAgent, &entry.CreatedAt); err != nil {
			return nil, err
		}
		if len(detailsRaw) > 0 {
			_ = json.Unmarshal(detailsRaw, &entry.Details)
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}

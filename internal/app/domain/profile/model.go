// Package profile defines the customer account entity.
package profile

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status marks whether an account may place orders.
type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
)

// Profile is a customer account record. Balance is debited by order
// placement; status and the admin flag are operator-controlled.
type Profile struct {
	ID             string          `json:"id"`
	UserID         string          `json:"user_id"`
	Username       string          `json:"username,omitempty"`
	FullName       string          `json:"full_name,omitempty"`
	Email          string          `json:"email,omitempty"`
	Balance        decimal.Decimal `json:"balance"`
	TotalOrders    int             `json:"total_orders"`
	Status         Status          `json:"status"`
	IsAdmin        bool            `json:"is_admin"`
	AdminCreatedAt *time.Time      `json:"admin_created_at,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Stats carries the aggregates derived from a customer's order history.
type Stats struct {
	TotalSpent      decimal.Decimal `json:"totalSpent"`
	CompletedOrders int             `json:"completedOrders"`
	PendingOrders   int             `json:"pendingOrders"`
}

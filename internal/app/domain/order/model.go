// Package order defines the customer order entity.
package order

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status tracks fulfillment progress. Orders start pending; a fulfillment
// process outside this service advances them.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusPartial    Status = "partial"
	StatusCancelled  Status = "cancelled"
)

// Order is a customer's request to deliver a quantity of a catalog service
// to a target URL. Created exactly once by order placement; progress
// counters are advanced only by fulfillment.
type Order struct {
	ID             string          `json:"id"`
	UserID         string          `json:"user_id"`
	ServiceID      string          `json:"service_id"`
	TargetURL      string          `json:"target_url"`
	Quantity       int             `json:"quantity"`
	TotalCost      decimal.Decimal `json:"total_cost"`
	StartCount     int             `json:"start_count"`
	CompletedCount int             `json:"completed_count"`
	Status         Status          `json:"status"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

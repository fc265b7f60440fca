// Package catalog defines the purchasable service catalog entities.
package catalog

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status marks whether a service can be ordered.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// Service is one purchasable unit of social-media engagement with pricing
// and quantity bounds. Operators create and edit services; customers only
// read them.
type Service struct {
	ID           string          `json:"id"`
	Platform     string          `json:"platform"`
	Category     string          `json:"category"`
	Name         string          `json:"name"`
	Description  string          `json:"description,omitempty"`
	PricePer1000 decimal.Decimal `json:"price_per_1000"`
	MinQuantity  int             `json:"min_quantity"`
	MaxQuantity  int             `json:"max_quantity"`
	DeliveryTime string          `json:"delivery_time,omitempty"`
	Status       Status          `json:"status"`
	Features     []string        `json:"features,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Active reports whether the service accepts orders.
func (s Service) Active() bool { return s.Status == StatusActive }

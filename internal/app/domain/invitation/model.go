// Package invitation defines the admin invitation entity.
package invitation

import "time"

// State is derived at read time from used_at and expires_at rather than
// stored transitions.
type State string

const (
	StateIssued   State = "issued"
	StateConsumed State = "consumed"
	StateExpired  State = "expired"
)

// Invitation grants the admin flag to the account that consumes its token.
// A token is consumed at most once.
type Invitation struct {
	ID        string     `json:"id"`
	Token     string     `json:"token"`
	Email     string     `json:"email"`
	CreatedBy string     `json:"created_by,omitempty"`
	ExpiresAt time.Time  `json:"expires_at"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// StateAt evaluates the invitation state at the given instant. Consumption
// wins over expiry so an accepted token never flips back to expired.
func (i Invitation) StateAt(now time.Time) State {
	if i.UsedAt != nil {
		return StateConsumed
	}
	if !now.Before(i.ExpiresAt) {
		return StateExpired
	}
	return StateIssued
}

// Acceptable reports whether the token can still be consumed at now.
func (i Invitation) Acceptable(now time.Time) bool {
	return i.StateAt(now) == StateIssued
}

// Package audit defines the admin audit log entity.
package audit

import "time"

// Entry records one administrative action for out-of-band review.
type Entry struct {
	ID           string                 `json:"id"`
	AdminUserID  string                 `json:"admin_user_id"`
	Action       string                 `json:"action"`
	ResourceType string                 `json:"resource_type"`
	ResourceID   string                 `json:"resource_id,omitempty"`
	Details      map[string]interface{} `json:"details,omitempty"`
	IPAddress    string                 `json:"ip_address,omitempty"`
	UserAgent    string                 `json:"user_agent,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
}

package models

import "time"

// AuditLog records one committed status transition.
type AuditLog struct {
	ID         string         `json:"id"`
	EntityType string         `json:"entity_type"` // transaction | settlement
	EntityID   string         `json:"entity_id"`
	Action     string         `json:"action"`
	Details    map[string]any `json:"details"`
	CreatedAt  time.Time      `json:"created_at"`
}

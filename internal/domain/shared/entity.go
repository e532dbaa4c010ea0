package shared

import (
	"time"
)

// Entity is the base interface for all locally mirrored entities.
// Identifiers are assigned by the server (or by checkout for pending orders)
// and are opaque strings unique within their table.
type Entity interface {
	GetID() string
}

// BaseEntity provides the identifier shared by every entity
type BaseEntity struct {
	ID string
}

// GetID returns the entity ID
func (e *BaseEntity) GetID() string {
	return e.ID
}

// AuditTimestamps holds server-assigned audit fields
type AuditTimestamps struct {
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SyncStamp records when a row was last written by a sync
type SyncStamp struct {
	SyncedAt time.Time
}

// Touch stamps the row with the given write time
func (s *SyncStamp) Touch(at time.Time) {
	s.SyncedAt = at
}

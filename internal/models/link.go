package models

import "time"

// Link tracks the connection state for one (user, integration) pair.
// At most one link exists per pair.
type Link struct {
	ID            string
	UserID        string
	IntegrationID string
	Status        LinkStatus
	LastSyncedAt  *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

package models

import "time"

// SyncResult reports the outcome of one sync run.
// A run that fetched zero records is a success with empty details.
type SyncResult struct {
	OK       bool           `json:"ok"`
	SyncedAt time.Time      `json:"synced_at"`
	Details  SyncDetails    `json:"details"`
	Counts   map[string]int `json:"counts_per_category,omitempty"`
}

// SyncDetails carries per-run counters. Skipped counts items the
// create-only duplicate policy found already persisted.
type SyncDetails struct {
	Fetched   int `json:"fetched"`
	Processed int `json:"processed"`
	Skipped   int `json:"skipped"`
}

// ConnectionStatus is the answer to a status query. Connected reflects
// effective usability: a link row without a stored credential reads as
// not connected.
type ConnectionStatus struct {
	Provider     string     `json:"provider"`
	Connected    bool       `json:"connected"`
	LastSyncedAt *time.Time `json:"last_synced_at,omitempty"`
}

package models

import "time"

// SyncStatus is the recorded outcome of one sync attempt.
type SyncStatus string

const (
	SyncStatusSuccess    SyncStatus = "success"
	SyncStatusFailed     SyncStatus = "failed"
	SyncStatusMaxRetries SyncStatus = "max_retries_reached"
)

// SyncLogEntry is one append-only record in the sync log. Entries are
// written once per attempt outcome and never mutated afterwards.
type SyncLogEntry struct {
	ID         int64      `json:"id"`
	ItemID     string     `json:"item_id"`
	Kind       OpKind     `json:"kind"`
	Collection string     `json:"collection"`
	Status     SyncStatus `json:"status"`
	Error      *string    `json:"error,omitempty"`
	RetryCount int        `json:"retry_count"`
	CreatedAt  time.Time  `json:"created_at"`
}

package models

import (
	"fmt"
	"strings"
	"time"
)

// OpKind is the remote operation a queued item performs.
type OpKind string

const (
	OpCreate OpKind = "create"
	OpUpdate OpKind = "update"
	OpDelete OpKind = "delete"
)

// Valid reports whether the kind is one of the known operations.
func (k OpKind) Valid() bool {
	switch k {
	case OpCreate, OpUpdate, OpDelete:
		return true
	}
	return false
}

// Priority orders pending items within a drain batch. Higher values win.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
	PriorityCritical
)

func (p Priority) Valid() bool {
	return p >= PriorityLow && p <= PriorityCritical
}

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	case PriorityCritical:
		return "critical"
	}
	return fmt.Sprintf("priority(%d)", int(p))
}

// ParsePriority converts a priority name as used in config and the admin API.
func ParsePriority(raw string) (Priority, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "low":
		return PriorityLow, nil
	case "normal", "":
		return PriorityNormal, nil
	case "high":
		return PriorityHigh, nil
	case "critical":
		return PriorityCritical, nil
	}
	return PriorityNormal, fmt.Errorf("unknown priority: %q", raw)
}

// Record is an opaque payload passed through to the remote store.
// The engine never interprets its contents beyond the "id" field
// required for update and delete operations.
type Record map[string]interface{}

// RecordID returns the target record identifier carried in the payload.
func (r Record) RecordID() (string, bool) {
	v, ok := r["id"]
	if !ok {
		return "", false
	}
	switch id := v.(type) {
	case string:
		return id, id != ""
	case fmt.Stringer:
		return id.String(), true
	default:
		return fmt.Sprintf("%v", id), true
	}
}

// SyncItem is one pending mutation awaiting replay against the remote store.
type SyncItem struct {
	ID         string    `json:"id"`
	Kind       OpKind    `json:"kind"`
	Collection string    `json:"collection"`
	Payload    Record    `json:"payload"`
	Resolution string    `json:"resolution,omitempty"`
	Priority   Priority  `json:"priority"`
	EnqueuedAt time.Time `json:"enqueued_at"`
	RetryCount int       `json:"retry_count"`
	MaxRetries int       `json:"max_retries"`
}

// Exhausted reports whether the item has used up its retry budget.
func (i *SyncItem) Exhausted() bool {
	return i.RetryCount >= i.MaxRetries
}

// QueueStatus is the queue summary exposed to application code.
// Failed counts items at or past their retry budget that the executor
// has not removed yet; Pending is everything else.
type QueueStatus struct {
	Total   int `json:"total"`
	Pending int `json:"pending"`
	Failed  int `json:"failed"`
}

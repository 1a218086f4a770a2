package models

import "time"

// SyncConfig holds the engine tunables. A copy is taken at startup and
// may later be hot-swapped through the service; items keep the
// MaxRetries they were enqueued with.
type SyncConfig struct {
	MaxRetries          int           `json:"max_retries"`
	RetryBaseDelay      time.Duration `json:"retry_base_delay"`
	MaxRetryDelay       time.Duration `json:"max_retry_delay"`
	BatchSize           int           `json:"batch_size"`
	SyncInterval        time.Duration `json:"sync_interval"`
	PeriodicSyncEnabled bool          `json:"periodic_sync_enabled"`
}

// DefaultSyncConfig returns the stock tunables.
func DefaultSyncConfig() SyncConfig {
	return SyncConfig{
		MaxRetries:          3,
		RetryBaseDelay:      5 * time.Second,
		BatchSize:           10,
		SyncInterval:        30 * time.Second,
		PeriodicSyncEnabled: true,
	}
}

// SyncConfigPatch carries partial overrides for UpdateConfig. Nil fields
// leave the current value untouched.
type SyncConfigPatch struct {
	MaxRetries          *int           `json:"max_retries,omitempty"`
	RetryBaseDelay      *time.Duration `json:"retry_base_delay,omitempty"`
	MaxRetryDelay       *time.Duration `json:"max_retry_delay,omitempty"`
	BatchSize           *int           `json:"batch_size,omitempty"`
	SyncInterval        *time.Duration `json:"sync_interval,omitempty"`
	PeriodicSyncEnabled *bool          `json:"periodic_sync_enabled,omitempty"`
}

// Apply returns a copy of cfg with the non-nil patch fields applied.
func (p SyncConfigPatch) Apply(cfg SyncConfig) SyncConfig {
	if p.MaxRetries != nil {
		cfg.MaxRetries = *p.MaxRetries
	}
	if p.RetryBaseDelay != nil {
		cfg.RetryBaseDelay = *p.RetryBaseDelay
	}
	if p.MaxRetryDelay != nil {
		cfg.MaxRetryDelay = *p.MaxRetryDelay
	}
	if p.BatchSize != nil {
		cfg.BatchSize = *p.BatchSize
	}
	if p.SyncInterval != nil {
		cfg.SyncInterval = *p.SyncInterval
	}
	if p.PeriodicSyncEnabled != nil {
		cfg.PeriodicSyncEnabled = *p.PeriodicSyncEnabled
	}
	return cfg
}

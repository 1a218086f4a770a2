package monitor

import (
	"context"
	"sync/atomic"
	"time"

	"driftq/internal/models"

	"github.com/rs/zerolog"
)

// Monitor decides when the executor should attempt a drain: on the
// offline-to-online transition, on a periodic tick while online, on a
// foreground signal, and implicitly after enqueues (the service asks the
// monitor for the current state). Going offline suppresses new drains
// but never cancels one in flight.
type Monitor struct {
	provider ConnectivityProvider
	cfg      func() models.SyncConfig
	trigger  func(reason string)
	logger   zerolog.Logger
	online   atomic.Bool
}

func NewMonitor(provider ConnectivityProvider, cfg func() models.SyncConfig, trigger func(reason string), logger zerolog.Logger) *Monitor {
	m := &Monitor{
		provider: provider,
		cfg:      cfg,
		trigger:  trigger,
		logger:   logger.With().Str("component", "monitor").Logger(),
	}
	m.online.Store(provider.IsOnline())
	return m
}

// Start subscribes to connectivity transitions and runs the periodic
// timer until ctx is done.
func (m *Monitor) Start(ctx context.Context) {
	m.provider.Subscribe(m.transition)

	go m.periodicLoop(ctx)
}

// IsOnline reports the last observed connectivity state.
func (m *Monitor) IsOnline() bool {
	return m.online.Load()
}

// Foreground signals that the owning process became visible again.
func (m *Monitor) Foreground() {
	if m.IsOnline() {
		m.trigger("foreground")
	}
}

func (m *Monitor) transition(online bool) {
	prev := m.online.Swap(online)
	if online == prev {
		return
	}

	if online {
		m.logger.Info().Msg("connectivity restored")
		m.trigger("online")
		return
	}
	m.logger.Warn().Msg("connectivity lost")
}

func (m *Monitor) periodicLoop(ctx context.Context) {
	for {
		// Interval is re-read each round so UpdateConfig takes effect
		// without a restart.
		interval := m.cfg().SyncInterval
		if interval <= 0 {
			interval = 30 * time.Second
		}

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			if m.cfg().PeriodicSyncEnabled && m.IsOnline() {
				m.trigger("interval")
			}
		}
	}
}

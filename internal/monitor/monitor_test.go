package monitor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"driftq/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type triggerRecorder struct {
	mu      sync.Mutex
	reasons []string
}

func (r *triggerRecorder) record(reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reasons = append(r.reasons, reason)
}

func (r *triggerRecorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.reasons...)
}

func testCfg(interval time.Duration, periodic bool) func() models.SyncConfig {
	return func() models.SyncConfig {
		return models.SyncConfig{SyncInterval: interval, PeriodicSyncEnabled: periodic}
	}
}

func TestMonitorTriggersOnOnlineTransition(t *testing.T) {
	provider := NewFlagProvider(false)
	rec := &triggerRecorder{}
	m := NewMonitor(provider, testCfg(time.Hour, true), rec.record, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.Start(ctx)

	assert.False(t, m.IsOnline())

	provider.SetOnline(true)
	assert.True(t, m.IsOnline())
	assert.Equal(t, []string{"online"}, rec.all())

	// Flipping online again is not a transition.
	provider.SetOnline(true)
	assert.Equal(t, []string{"online"}, rec.all())

	provider.SetOnline(false)
	assert.False(t, m.IsOnline())
	assert.Equal(t, []string{"online"}, rec.all(), "going offline must not trigger a drain")

	provider.SetOnline(true)
	assert.Equal(t, []string{"online", "online"}, rec.all())
}

func TestMonitorPeriodicTrigger(t *testing.T) {
	provider := NewFlagProvider(true)
	rec := &triggerRecorder{}
	m := NewMonitor(provider, testCfg(20*time.Millisecond, true), rec.record, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.Start(ctx)

	require.Eventually(t, func() bool {
		for _, r := range rec.all() {
			if r == "interval" {
				return true
			}
		}
		return false
	}, 2*time.Second, 5*time.Millisecond)
}

func TestMonitorPeriodicSuppressedOffline(t *testing.T) {
	provider := NewFlagProvider(false)
	rec := &triggerRecorder{}
	m := NewMonitor(provider, testCfg(10*time.Millisecond, true), rec.record, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.Start(ctx)

	time.Sleep(60 * time.Millisecond)
	assert.Empty(t, rec.all(), "no periodic triggers while offline")
}

func TestMonitorPeriodicDisabled(t *testing.T) {
	provider := NewFlagProvider(true)
	rec := &triggerRecorder{}
	m := NewMonitor(provider, testCfg(10*time.Millisecond, false), rec.record, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.Start(ctx)

	time.Sleep(60 * time.Millisecond)
	assert.Empty(t, rec.all())
}

func TestMonitorForeground(t *testing.T) {
	provider := NewFlagProvider(true)
	rec := &triggerRecorder{}
	m := NewMonitor(provider, testCfg(time.Hour, true), rec.record, zerolog.Nop())

	m.Foreground()
	assert.Equal(t, []string{"foreground"}, rec.all())

	m.transition(false)
	m.Foreground()
	assert.Equal(t, []string{"foreground"}, rec.all(), "foreground while offline is a no-op")
}

func TestFlagProviderNotifiesOnTransitionOnly(t *testing.T) {
	provider := NewFlagProvider(false)

	var calls []bool
	provider.Subscribe(func(online bool) { calls = append(calls, online) })

	provider.SetOnline(false)
	provider.SetOnline(true)
	provider.SetOnline(true)
	provider.SetOnline(false)

	assert.Equal(t, []bool{true, false}, calls)
}

func TestProbeProvider(t *testing.T) {
	var failing atomic.Bool
	failing.Store(true)

	probe := func(ctx context.Context) error {
		if failing.Load() {
			return errors.New("unreachable")
		}
		return nil
	}

	p := NewProbeProvider(probe, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Start(ctx)

	time.Sleep(30 * time.Millisecond)
	assert.False(t, p.IsOnline())

	failing.Store(false)
	require.Eventually(t, p.IsOnline, 2*time.Second, 5*time.Millisecond)
}

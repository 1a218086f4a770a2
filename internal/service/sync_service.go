package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"driftq/internal/database"
	"driftq/internal/events"
	"driftq/internal/metrics"
	"driftq/internal/models"
	"driftq/internal/monitor"
	"driftq/internal/queue"
	"driftq/internal/remote"
	"driftq/internal/worker"

	"github.com/rs/zerolog"
)

var (
	ErrInvalidPriority = errors.New("invalid priority")
	ErrInvalidKind     = errors.New("invalid operation kind")
	ErrEmptyCollection = errors.New("collection is required")
	ErrMissingRecordID = errors.New("payload must include the record id")
	ErrQueueClosed     = errors.New("sync service is closed")
)

// SyncService is the engine facade handed to application code. It owns
// the queue manager, the executor and the trigger monitor, and guards
// the hot-swappable tunables. One instance per process, constructed
// explicitly; there is no package-level singleton.
type SyncService struct {
	cfgMu sync.RWMutex
	cfg   models.SyncConfig

	store    *database.Store
	manager  *queue.Manager
	executor *worker.Executor
	monitor  *monitor.Monitor
	bus      *events.EventBus
	logger   zerolog.Logger
	closed   atomic.Bool
}

// New wires the engine together. The mirror is rebuilt from the store
// before the service is returned, so pending work from a previous run is
// visible immediately.
func New(ctx context.Context, cfg models.SyncConfig, store *database.Store, remoteStore remote.Store, provider monitor.ConnectivityProvider, bus *events.EventBus, logger zerolog.Logger) (*SyncService, error) {
	if bus == nil {
		bus = events.NewEventBus()
	}
	metrics.Register()

	s := &SyncService{
		cfg:    cfg,
		store:  store,
		bus:    bus,
		logger: logger.With().Str("component", "sync-service").Logger(),
	}

	s.manager = queue.NewManager(store, logger)
	s.executor = worker.NewExecutor(s.manager, remoteStore, store, bus, s.Config, s.isOnline, logger)
	s.monitor = monitor.NewMonitor(provider, s.Config, s.onTrigger, logger)

	restored, err := s.manager.Restore(ctx)
	if err != nil {
		return nil, fmt.Errorf("restore queue: %w", err)
	}
	metrics.SetQueueDepth(restored)

	return s, nil
}

// Start launches the trigger monitor and, when work survived a restart
// and the remote is reachable, kicks off an immediate drain.
func (s *SyncService) Start(ctx context.Context) {
	s.monitor.Start(ctx)

	if s.manager.Len() > 0 && s.isOnline() {
		s.logger.Info().Int("pending", s.manager.Len()).Msg("draining items restored from previous run")
		go s.executor.Drain(ctx)
	}
}

// QueueCreate enqueues a create mutation for later replay.
func (s *SyncService) QueueCreate(ctx context.Context, collection string, data models.Record, priority models.Priority) (*models.SyncItem, error) {
	return s.enqueue(ctx, models.OpCreate, collection, data, "", priority)
}

// QueueUpdate enqueues an update mutation. The payload must carry the
// target record's id.
func (s *SyncService) QueueUpdate(ctx context.Context, collection string, data models.Record, priority models.Priority) (*models.SyncItem, error) {
	if _, ok := data.RecordID(); !ok {
		return nil, ErrMissingRecordID
	}
	return s.enqueue(ctx, models.OpUpdate, collection, data, "", priority)
}

// QueueDelete enqueues a delete mutation for the given record id.
func (s *SyncService) QueueDelete(ctx context.Context, collection string, id string, priority models.Priority) (*models.SyncItem, error) {
	if id == "" {
		return nil, ErrMissingRecordID
	}
	return s.enqueue(ctx, models.OpDelete, collection, models.Record{"id": id}, "", priority)
}

// QueueWithResolution enqueues a mutation carrying a conflict-resolution
// tag. The tag is persisted with the item and handed through untouched;
// the engine never interprets it.
func (s *SyncService) QueueWithResolution(ctx context.Context, kind models.OpKind, collection string, data models.Record, resolution string, priority models.Priority) (*models.SyncItem, error) {
	if kind != models.OpCreate {
		if _, ok := data.RecordID(); !ok {
			return nil, ErrMissingRecordID
		}
	}
	return s.enqueue(ctx, kind, collection, data, resolution, priority)
}

func (s *SyncService) enqueue(ctx context.Context, kind models.OpKind, collection string, data models.Record, resolution string, priority models.Priority) (*models.SyncItem, error) {
	if s.closed.Load() {
		return nil, ErrQueueClosed
	}
	if collection == "" {
		return nil, ErrEmptyCollection
	}
	if !kind.Valid() {
		return nil, ErrInvalidKind
	}
	if !priority.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPriority, int(priority))
	}
	if data == nil {
		data = models.Record{}
	}

	item, err := s.manager.Enqueue(ctx, kind, collection, data, resolution, priority, s.Config().MaxRetries)
	if err != nil {
		return nil, err
	}

	metrics.IncEnqueued(collection)
	metrics.SetQueueDepth(s.manager.Len())
	_ = s.bus.PublishJSON(events.EventItemQueued, events.ItemEventPayload{
		ItemID:     item.ID,
		Kind:       string(item.Kind),
		Collection: item.Collection,
		Priority:   item.Priority.String(),
	})

	// Enqueue never blocks on network I/O; the drain runs detached.
	if s.isOnline() {
		go s.executor.Drain(context.WithoutCancel(ctx))
	}

	return item, nil
}

// Status summarizes the queue for application code.
func (s *SyncService) Status() models.QueueStatus {
	return s.manager.Status()
}

// ClearQueue drops every pending item from mirror and store. The sync
// log is untouched.
func (s *SyncService) ClearQueue(ctx context.Context) error {
	if err := s.manager.Clear(ctx); err != nil {
		return err
	}
	metrics.SetQueueDepth(0)
	s.logger.Info().Msg("sync queue cleared")
	return nil
}

// GetSyncLog returns the newest attempt outcomes, at most limit of them.
func (s *SyncService) GetSyncLog(ctx context.Context, limit int) ([]models.SyncLogEntry, error) {
	return s.store.QueryLog(ctx, limit)
}

// Config returns the current tunables.
func (s *SyncService) Config() models.SyncConfig {
	s.cfgMu.RLock()
	defer s.cfgMu.RUnlock()
	return s.cfg
}

// UpdateConfig hot-swaps tunables. Items already enqueued keep the
// MaxRetries they were created with.
func (s *SyncService) UpdateConfig(patch models.SyncConfigPatch) models.SyncConfig {
	s.cfgMu.Lock()
	s.cfg = patch.Apply(s.cfg)
	updated := s.cfg
	s.cfgMu.Unlock()

	s.logger.Info().
		Int("max_retries", updated.MaxRetries).
		Dur("retry_base_delay", updated.RetryBaseDelay).
		Int("batch_size", updated.BatchSize).
		Dur("sync_interval", updated.SyncInterval).
		Bool("periodic_sync", updated.PeriodicSyncEnabled).
		Msg("sync config updated")

	return updated
}

// Drain requests a drain cycle immediately, bypassing the triggers.
// Used by the admin API and tests.
func (s *SyncService) Drain(ctx context.Context) int {
	return s.executor.Drain(ctx)
}

// Foreground tells the monitor the process became visible again.
func (s *SyncService) Foreground() {
	s.monitor.Foreground()
}

// IsOnline reports the monitor's current view of connectivity.
func (s *SyncService) IsOnline() bool {
	return s.isOnline()
}

func (s *SyncService) isOnline() bool {
	return s.monitor.IsOnline()
}

// Close stops accepting new work. Items already queued stay persisted
// and are drained on the next run; drains in flight finish normally.
func (s *SyncService) Close() {
	if s.closed.CompareAndSwap(false, true) {
		s.logger.Info().Msg("sync service closed")
	}
}

func (s *SyncService) onTrigger(reason string) {
	s.logger.Debug().Str("reason", reason).Msg("drain requested")
	go s.executor.Drain(context.Background())
}

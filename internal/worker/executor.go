package worker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"driftq/internal/database"
	"driftq/internal/events"
	"driftq/internal/metrics"
	"driftq/internal/models"
	"driftq/internal/queue"
	"driftq/internal/remote"

	"github.com/rs/zerolog"
)

// Executor drives drain cycles: pull a priority-ordered batch, replay
// each item against the remote store concurrently, and resolve every
// outcome before the cycle counts as finished. Cycles never overlap.
type Executor struct {
	queue  *queue.Manager
	remote remote.Store
	store  *database.Store
	bus    *events.EventBus
	logger zerolog.Logger

	cfg    func() models.SyncConfig
	online func() bool

	draining atomic.Bool
}

func NewExecutor(q *queue.Manager, r remote.Store, store *database.Store, bus *events.EventBus, cfg func() models.SyncConfig, online func() bool, logger zerolog.Logger) *Executor {
	return &Executor{
		queue:  q,
		remote: r,
		store:  store,
		bus:    bus,
		cfg:    cfg,
		online: online,
		logger: logger.With().Str("component", "executor").Logger(),
	}
}

// Drain runs one cycle and returns the number of items attempted. It
// returns 0 without work when a cycle is already running, the monitor
// reports offline, or the queue is empty. Going offline mid-cycle does
// not cancel it; every batch item runs to completion.
func (e *Executor) Drain(ctx context.Context) int {
	if !e.draining.CompareAndSwap(false, true) {
		return 0
	}
	defer e.draining.Store(false)

	if !e.online() || e.queue.Len() == 0 {
		return 0
	}

	cfg := e.cfg()
	batch := e.queue.NextBatch(cfg.BatchSize)
	if len(batch) == 0 {
		return 0
	}

	e.logger.Debug().Int("batch", len(batch)).Msg("drain started")

	var wg sync.WaitGroup
	for _, item := range batch {
		wg.Add(1)
		go func(item *models.SyncItem) {
			defer wg.Done()
			e.processItem(ctx, item, cfg)
		}(item)
	}
	wg.Wait()

	metrics.IncDrain()
	metrics.SetQueueDepth(e.queue.Len())
	_ = e.bus.PublishJSON(events.EventQueueDrain, e.queue.Status())

	e.logger.Debug().Int("batch", len(batch)).Msg("drain finished")
	return len(batch)
}

func (e *Executor) processItem(ctx context.Context, item *models.SyncItem, cfg models.SyncConfig) {
	if err := e.execute(ctx, item); err != nil {
		e.handleFailure(ctx, item, cfg, err)
		return
	}
	e.handleSuccess(ctx, item)
}

// execute maps the item's kind to the matching remote operation.
func (e *Executor) execute(ctx context.Context, item *models.SyncItem) error {
	switch item.Kind {
	case models.OpCreate:
		return e.remote.Create(ctx, item.Collection, item.Payload)
	case models.OpUpdate:
		return e.remote.Update(ctx, item.Collection, item.Payload)
	case models.OpDelete:
		id, ok := item.Payload.RecordID()
		if !ok {
			return fmt.Errorf("delete item %s: payload has no id", item.ID)
		}
		return e.remote.Delete(ctx, item.Collection, id)
	default:
		return fmt.Errorf("unknown operation kind: %s", item.Kind)
	}
}

func (e *Executor) handleSuccess(ctx context.Context, item *models.SyncItem) {
	if err := e.queue.Dequeue(ctx, item.ID); err != nil {
		e.logger.Error().Err(err).Str("item_id", item.ID).Msg("dequeue after success failed")
	}
	e.appendLog(ctx, item, models.SyncStatusSuccess, nil)

	metrics.IncSynced(item.Collection)
	e.publishItemEvent(events.EventItemSynced, item, "")

	e.logger.Info().
		Str("item_id", item.ID).
		Str("collection", item.Collection).
		Str("kind", string(item.Kind)).
		Msg("item synced")
}

func (e *Executor) handleFailure(ctx context.Context, item *models.SyncItem, cfg models.SyncConfig, cause error) {
	errMsg := cause.Error()

	// The manager owns the retry count: it is incremented and persisted
	// under the mirror lock, and the executor works from the returned
	// snapshot from here on.
	updated, err := e.queue.FailAttempt(ctx, item.ID)
	if err != nil {
		e.logger.Error().Err(err).Str("item_id", item.ID).Msg("record failed attempt")
		if updated.ID == "" {
			return
		}
	}

	if updated.Exhausted() {
		// Terminal: the mutation is dropped. This is the engine's
		// deliberate data-loss boundary; the log entry and the dropped
		// event are the operator's only signal.
		if err := e.queue.Dequeue(ctx, updated.ID); err != nil {
			e.logger.Error().Err(err).Str("item_id", updated.ID).Msg("dequeue after terminal failure failed")
		}
		e.appendLog(ctx, &updated, models.SyncStatusMaxRetries, &errMsg)

		metrics.IncDropped(updated.Collection)
		e.publishItemEvent(events.EventItemDropped, &updated, errMsg)

		e.logger.Warn().
			Str("item_id", updated.ID).
			Str("collection", updated.Collection).
			Int("retry_count", updated.RetryCount).
			Str("error", errMsg).
			Msg("item dropped after max retries")
		return
	}

	e.appendLog(ctx, &updated, models.SyncStatusFailed, &errMsg)

	metrics.IncRetry(updated.Collection)
	e.publishItemEvent(events.EventItemRetry, &updated, errMsg)

	policy := BackoffPolicy{BaseDelay: cfg.RetryBaseDelay, MaxDelay: cfg.MaxRetryDelay, Factor: 2}
	delay := policy.Delay(updated.RetryCount)

	e.logger.Warn().
		Str("item_id", updated.ID).
		Int("retry_count", updated.RetryCount).
		Dur("backoff", delay).
		Str("error", errMsg).
		Msg("item failed, retry scheduled")

	e.scheduleRetry(delay)
}

// scheduleRetry re-triggers a drain after the backoff elapses. The timer
// holds no locks; an item whose siblings are still backing off does not
// block healthy items. Offline at fire time suppresses the drain; the
// next online transition or periodic tick picks the item up instead.
func (e *Executor) scheduleRetry(delay time.Duration) {
	time.AfterFunc(delay, func() {
		if e.online() {
			e.Drain(context.Background())
		}
	})
}

func (e *Executor) appendLog(ctx context.Context, item *models.SyncItem, status models.SyncStatus, errMsg *string) {
	entry := &models.SyncLogEntry{
		ItemID:     item.ID,
		Kind:       item.Kind,
		Collection: item.Collection,
		Status:     status,
		Error:      errMsg,
		RetryCount: item.RetryCount,
	}
	if err := e.store.AppendLog(ctx, entry); err != nil {
		e.logger.Error().Err(err).Str("item_id", item.ID).Msg("append sync log failed")
	}
}

func (e *Executor) publishItemEvent(eventType string, item *models.SyncItem, errMsg string) {
	_ = e.bus.PublishJSON(eventType, events.ItemEventPayload{
		ItemID:     item.ID,
		Kind:       string(item.Kind),
		Collection: item.Collection,
		Priority:   item.Priority.String(),
		RetryCount: item.RetryCount,
		Error:      errMsg,
	})
}

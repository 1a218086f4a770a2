package queue

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"driftq/internal/database"
	"driftq/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Manager owns the in-memory mirror of pending items and mediates every
// access to the durable store. The mirror and the store agree at all
// times: an item is in both or in neither.
type Manager struct {
	mu     sync.Mutex
	items  []*models.SyncItem
	store  *database.Store
	logger zerolog.Logger
}

func NewManager(store *database.Store, logger zerolog.Logger) *Manager {
	return &Manager{
		store:  store,
		logger: logger.With().Str("component", "queue").Logger(),
	}
}

// Restore rebuilds the mirror from the store. Called once at startup;
// surviving items keep their retry counts and are retried as if freshly
// enqueued.
func (m *Manager) Restore(ctx context.Context) (int, error) {
	items, err := m.store.GetAllItems(ctx)
	if err != nil {
		return 0, &PersistenceError{Op: "restore", Err: err}
	}

	m.mu.Lock()
	m.items = items
	m.mu.Unlock()

	if len(items) > 0 {
		m.logger.Info().Int("count", len(items)).Msg("restored pending items from store")
	}
	return len(items), nil
}

// Enqueue builds a new item, mirrors it and durably saves it. If the
// store write fails the mirror is rolled back and a PersistenceError is
// returned; no half-queued state survives.
func (m *Manager) Enqueue(ctx context.Context, kind models.OpKind, collection string, payload models.Record, resolution string, priority models.Priority, maxRetries int) (*models.SyncItem, error) {
	item := &models.SyncItem{
		ID:         uuid.NewString(),
		Kind:       kind,
		Collection: collection,
		Payload:    payload,
		Resolution: resolution,
		Priority:   priority,
		EnqueuedAt: time.Now(),
		RetryCount: 0,
		MaxRetries: maxRetries,
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.items = append(m.items, item)
	if err := m.store.PutItem(ctx, item); err != nil {
		m.items = m.items[:len(m.items)-1]
		return nil, &PersistenceError{Op: "enqueue", Err: err}
	}

	m.logger.Debug().
		Str("item_id", item.ID).
		Str("kind", string(item.Kind)).
		Str("collection", item.Collection).
		Str("priority", item.Priority.String()).
		Msg("item enqueued")

	return item, nil
}

// Dequeue removes the item from mirror and store. Removing an absent id
// is a no-op.
func (m *Manager) Dequeue(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, item := range m.items {
		if item.ID == id {
			m.items = append(m.items[:i], m.items[i+1:]...)
			break
		}
	}

	if err := m.store.DeleteItem(ctx, id); err != nil {
		return &PersistenceError{Op: "dequeue", Err: err}
	}
	return nil
}

// Persist re-saves an already-mirrored item.
func (m *Manager) Persist(ctx context.Context, item *models.SyncItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.PutItem(ctx, item); err != nil {
		return &PersistenceError{Op: "persist", Err: err}
	}
	return nil
}

// FailAttempt records a failed attempt: the item's retry count is
// bumped under the mirror lock and durably saved, so concurrent Status
// readers always see a consistent count. The returned snapshot is the
// caller's to use without further locking. A store-write failure keeps
// the in-memory increment (the attempt did happen) and is reported
// alongside the snapshot.
func (m *Manager) FailAttempt(ctx context.Context, id string) (models.SyncItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, item := range m.items {
		if item.ID == id {
			item.RetryCount++
			snapshot := *item
			if err := m.store.PutItem(ctx, item); err != nil {
				return snapshot, &PersistenceError{Op: "fail-attempt", Err: err}
			}
			return snapshot, nil
		}
	}
	return models.SyncItem{}, fmt.Errorf("fail attempt: unknown item %s", id)
}

// NextBatch returns up to n items ordered by priority descending, then
// enqueue time ascending. Items stay queued; callers dequeue explicitly
// on completion.
func (m *Manager) NextBatch(n int) []*models.SyncItem {
	m.mu.Lock()
	defer m.mu.Unlock()

	if n <= 0 || len(m.items) == 0 {
		return nil
	}

	sorted := make([]*models.SyncItem, len(m.items))
	copy(sorted, m.items)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Priority != sorted[j].Priority {
			return sorted[i].Priority > sorted[j].Priority
		}
		return sorted[i].EnqueuedAt.Before(sorted[j].EnqueuedAt)
	})

	if n > len(sorted) {
		n = len(sorted)
	}
	return sorted[:n]
}

// Status summarizes the mirror. Items at their retry budget count as
// failed until the executor removes them.
func (m *Manager) Status() models.QueueStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	status := models.QueueStatus{Total: len(m.items)}
	for _, item := range m.items {
		if item.Exhausted() {
			status.Failed++
		}
	}
	status.Pending = status.Total - status.Failed
	return status
}

// Len reports the number of mirrored items.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

// Clear empties mirror and store.
func (m *Manager) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.ClearItems(ctx); err != nil {
		return &PersistenceError{Op: "clear", Err: err}
	}
	m.items = nil
	return nil
}

package remote

import (
	"context"

	"driftq/internal/models"
)

// Store is the remote side the queue replays against. All three
// operations may fail transiently; the executor owns retries. Implementations
// are expected to be idempotent-safe: a replayed Create after a
// half-confirmed attempt must be acceptable (upsert semantics).
type Store interface {
	Create(ctx context.Context, collection string, record models.Record) error
	Update(ctx context.Context, collection string, record models.Record) error
	Delete(ctx context.Context, collection string, id string) error
}

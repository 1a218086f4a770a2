package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"driftq/internal/models"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

// Store is the durable side of the queue: pending sync items keyed by id
// plus the append-only sync log. It is mutated only through the queue
// manager and the executor.
type Store struct {
	db     *sql.DB
	logger *zerolog.Logger
}

func NewStore(path string, logger *zerolog.Logger) (*Store, error) {
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := createTables(db); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Info().Str("path", path).Msg("queue store initialized")
	return &Store{db: db, logger: logger}, nil
}

func createTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS sync_queue (
            id TEXT PRIMARY KEY,
            kind TEXT NOT NULL,
            collection TEXT NOT NULL,
            payload TEXT NOT NULL,
            resolution TEXT,
            priority INTEGER NOT NULL DEFAULT 1,
            enqueued_at DATETIME NOT NULL,
            retry_count INTEGER NOT NULL DEFAULT 0,
            max_retries INTEGER NOT NULL DEFAULT 3
        )`,
		`CREATE TABLE IF NOT EXISTS sync_log (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            item_id TEXT NOT NULL,
            kind TEXT NOT NULL,
            collection TEXT NOT NULL,
            status TEXT NOT NULL,
            error TEXT,
            retry_count INTEGER NOT NULL DEFAULT 0,
            created_at DATETIME NOT NULL
        )`,

		`CREATE INDEX IF NOT EXISTS idx_sync_queue_priority ON sync_queue(priority DESC, enqueued_at ASC)`,
		`CREATE INDEX IF NOT EXISTS idx_sync_log_item_id ON sync_log(item_id)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("error executing query %s: %w", query, err)
		}
	}
	return nil
}

// PutItem inserts the item or overwrites it in place. The same call
// covers first enqueue and retry-count persistence.
func (s *Store) PutItem(ctx context.Context, item *models.SyncItem) error {
	payload, err := json.Marshal(item.Payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	query := `INSERT OR REPLACE INTO sync_queue
              (id, kind, collection, payload, resolution, priority, enqueued_at, retry_count, max_retries)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = s.db.ExecContext(ctx, query,
		item.ID,
		string(item.Kind),
		item.Collection,
		string(payload),
		item.Resolution,
		int(item.Priority),
		item.EnqueuedAt,
		item.RetryCount,
		item.MaxRetries,
	)
	if err != nil {
		return fmt.Errorf("failed to put sync item: %w", err)
	}
	return nil
}

// DeleteItem removes the item. Deleting an absent id is a no-op.
func (s *Store) DeleteItem(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sync_queue WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete sync item: %w", err)
	}
	return nil
}

// GetAllItems loads every pending item, oldest first. Called once at
// startup to rebuild the in-memory mirror.
func (s *Store) GetAllItems(ctx context.Context) ([]*models.SyncItem, error) {
	query := `SELECT id, kind, collection, payload, resolution, priority, enqueued_at, retry_count, max_retries
              FROM sync_queue ORDER BY enqueued_at ASC`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get sync items: %w", err)
	}
	defer rows.Close()

	var items []*models.SyncItem
	for rows.Next() {
		var (
			item       models.SyncItem
			payload    string
			kind       string
			priority   int
			resolution sql.NullString
		)
		err := rows.Scan(&item.ID, &kind, &item.Collection, &payload, &resolution,
			&priority, &item.EnqueuedAt, &item.RetryCount, &item.MaxRetries)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sync item: %w", err)
		}
		if err := json.Unmarshal([]byte(payload), &item.Payload); err != nil {
			return nil, fmt.Errorf("decode payload for item %s: %w", item.ID, err)
		}
		item.Kind = models.OpKind(kind)
		item.Priority = models.Priority(priority)
		item.Resolution = resolution.String
		items = append(items, &item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read sync items: %w", err)
	}
	return items, nil
}

// ClearItems empties the pending queue. The sync log is kept.
func (s *Store) ClearItems(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sync_queue`); err != nil {
		return fmt.Errorf("failed to clear sync queue: %w", err)
	}
	return nil
}

// AppendLog writes one attempt outcome. The entry's id and timestamp are
// filled in on return.
func (s *Store) AppendLog(ctx context.Context, entry *models.SyncLogEntry) error {
	now := time.Now()
	query := `INSERT INTO sync_log (item_id, kind, collection, status, error, retry_count, created_at)
              VALUES (?, ?, ?, ?, ?, ?, ?)`
	result, err := s.db.ExecContext(ctx, query,
		entry.ItemID,
		string(entry.Kind),
		entry.Collection,
		string(entry.Status),
		entry.Error,
		entry.RetryCount,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to append sync log: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	entry.ID = id
	entry.CreatedAt = now

	return nil
}

// QueryLog returns the newest entries first, at most limit of them.
func (s *Store) QueryLog(ctx context.Context, limit int) ([]models.SyncLogEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT id, item_id, kind, collection, status, error, retry_count, created_at
              FROM sync_log ORDER BY id DESC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync log: %w", err)
	}
	defer rows.Close()

	var entries []models.SyncLogEntry
	for rows.Next() {
		var (
			entry  models.SyncLogEntry
			kind   string
			status string
		)
		err := rows.Scan(&entry.ID, &entry.ItemID, &kind, &entry.Collection,
			&status, &entry.Error, &entry.RetryCount, &entry.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sync log entry: %w", err)
		}
		entry.Kind = models.OpKind(kind)
		entry.Status = models.SyncStatus(status)
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read sync log: %w", err)
	}
	return entries, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"driftq/internal/database"
	"driftq/internal/models"
	"driftq/internal/queue"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// seed_queue enqueues mutations from a YAML file into the local queue
// store. Useful for backfills and for exercising a fresh deployment
// before the application side is wired up.

type seedFile struct {
	Mutations []seedMutation `yaml:"mutations"`
}

type seedMutation struct {
	Kind       string         `yaml:"kind"`
	Collection string         `yaml:"collection"`
	Priority   string         `yaml:"priority"`
	Resolution string         `yaml:"resolution"`
	Payload    map[string]any `yaml:"payload"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	var (
		seedPath   = flag.String("seed", "configs/seed.yaml", "path to seed yaml")
		dbPath     = flag.String("db", "./data/driftq.db", "path to sqlite queue store")
		maxRetries = flag.Int("max-retries", 3, "retry budget for seeded items")
	)
	flag.Parse()

	data, err := os.ReadFile(*seedPath)
	if err != nil {
		return fmt.Errorf("read seed: %w", err)
	}
	var seed seedFile
	if err = yaml.Unmarshal(data, &seed); err != nil {
		return fmt.Errorf("parse seed: %w", err)
	}
	if len(seed.Mutations) == 0 {
		return fmt.Errorf("no mutations in yaml")
	}

	store, err := database.NewStore(*dbPath, &logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	manager := queue.NewManager(store, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if _, err = manager.Restore(ctx); err != nil {
		return fmt.Errorf("restore queue: %w", err)
	}

	enqueued := 0
	for i, m := range seed.Mutations {
		kind := models.OpKind(m.Kind)
		if !kind.Valid() {
			return fmt.Errorf("mutation %d: invalid kind %q", i, m.Kind)
		}
		if m.Collection == "" {
			return fmt.Errorf("mutation %d: collection is required", i)
		}

		priority := models.PriorityNormal
		if m.Priority != "" {
			priority, err = models.ParsePriority(m.Priority)
			if err != nil {
				return fmt.Errorf("mutation %d: %w", i, err)
			}
		}

		if _, err = manager.Enqueue(ctx, kind, m.Collection, m.Payload, m.Resolution, priority, *maxRetries); err != nil {
			return fmt.Errorf("enqueue mutation %d: %w", i, err)
		}
		enqueued++
	}

	fmt.Printf("done: enqueued=%d total=%d\n", enqueued, manager.Len())
	return nil
}

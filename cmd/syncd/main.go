package main

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"driftq/internal/api"
	"driftq/internal/config"
	"driftq/internal/database"
	"driftq/internal/events"
	"driftq/internal/export"
	"driftq/internal/logging"
	"driftq/internal/monitor"
	"driftq/internal/remote"
	"driftq/internal/service"

	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, loadErr := loadConfigAndLogger()
	if loadErr != nil {
		return loadErr
	}
	if closer != nil {
		defer (func(c io.Closer) { _ = c.Close() })(closer)
	}

	if err := prepareDirectories(cfg, &logger); err != nil {
		return err
	}

	store, err := database.NewStore(cfg.Database.Path, &logger)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to open queue store")
		return err
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient := remote.NewRedisClient(cfg.Remote.Redis)
	defer func() { _ = remote.Close(redisClient) }()
	if err := remote.Ping(ctx, redisClient); err != nil {
		logger.Warn().Err(err).Msg("Remote store unavailable at startup; queueing offline")
	}
	remoteStore := remote.NewRedisStore(redisClient, cfg.Remote.KeyPrefix, cfg.Remote.RateLimit)

	provider := monitor.NewProbeProvider(func(ctx context.Context) error {
		return remote.Ping(ctx, redisClient)
	}, cfg.Monitoring.ProbeIntervalDuration())
	go provider.Start(ctx)

	bus := events.NewEventBus()
	subscribeSyncEvents(bus, &logger)

	syncCfg, err := cfg.Sync.Runtime()
	if err != nil {
		logger.Error().Err(err).Msg("Invalid sync configuration")
		return err
	}

	svc, err := service.New(ctx, syncCfg, store, remoteStore, provider, bus, logger)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to initialize sync service")
		return err
	}
	svc.Start(ctx)
	defer svc.Close()

	if cfg.API.Enabled {
		exporter := export.NewExporter(cfg.Exports.Path, logger)
		apiServer := api.NewHTTPServer(cfg.API, svc, exporter, logger)
		go func() {
			if err := apiServer.Start(); err != nil {
				logger.Error().Err(err).Msg("API server error")
			}
		}()
		defer func() {
			_ = apiServer.Shutdown(context.Background())
		}()
	}

	if cfg.Monitoring.PrometheusEnabled {
		metricsServer := api.NewMetricsServer(cfg.Monitoring.PrometheusPort, logger)
		go func() {
			if err := metricsServer.Start(); err != nil {
				logger.Error().Err(err).Msg("Metrics server error")
			}
		}()
		defer func() {
			_ = metricsServer.Shutdown(context.Background())
		}()
	}

	if cfg.Backup.Enabled {
		backupService := database.NewBackupService(cfg.Database.Path, cfg.Backup, &logger)
		go backupService.Start(ctx)
	}

	logger.Info().Msg("Sync engine started")
	<-ctx.Done()
	logger.Info().Msg("Shutdown complete.")
	return nil
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, err
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, err
	}
	logger := baseLogger.With().Str("component", "syncd").Logger()

	return cfg, logger, closer, nil
}

func prepareDirectories(cfg *config.Config, logger *zerolog.Logger) error {
	if cfg == nil {
		return os.ErrInvalid
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		logger.Error().Err(err).Msg("Failed to create database directory")
		return err
	}
	if err := os.MkdirAll(cfg.Exports.Path, 0o755); err != nil {
		logger.Error().Err(err).Msg("Failed to create export directory")
		return err
	}
	return nil
}

// subscribeSyncEvents wires operator-facing logging for queue events.
// Dropped events are the only signal that a mutation was abandoned, so
// they are logged at warn level with the full item snapshot.
func subscribeSyncEvents(bus *events.EventBus, logger *zerolog.Logger) {
	decode := func(ev *events.Event) (events.ItemEventPayload, error) {
		var payload events.ItemEventPayload
		if err := json.Unmarshal(ev.Payload, &payload); err != nil {
			return payload, err
		}
		return payload, nil
	}

	bus.Subscribe(events.EventItemDropped, func(ev *events.Event) error {
		payload, err := decode(ev)
		if err != nil {
			logger.Error().Err(err).Str("event", ev.Type).Msg("event bus: decode payload")
			return nil
		}
		logger.Warn().
			Str("item_id", payload.ItemID).
			Str("kind", payload.Kind).
			Str("collection", payload.Collection).
			Int("retry_count", payload.RetryCount).
			Str("error", payload.Error).
			Msg("Sync item dropped after exhausting retries")
		return nil
	})

	bus.Subscribe(events.EventItemRetry, func(ev *events.Event) error {
		payload, err := decode(ev)
		if err != nil {
			logger.Error().Err(err).Str("event", ev.Type).Msg("event bus: decode payload")
			return nil
		}
		logger.Debug().
			Str("item_id", payload.ItemID).
			Str("collection", payload.Collection).
			Int("retry_count", payload.RetryCount).
			Msg("Sync item scheduled for retry")
		return nil
	})
}

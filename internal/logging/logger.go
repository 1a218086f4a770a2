package logging

// Package logging builds the process-wide zerolog root logger from
// configuration. Packages derive their own loggers from it via
// With().Str("component", ...).

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"driftq/internal/config"

	"github.com/rs/zerolog"
)

// New builds the root logger. Empty config fields fall back to JSON
// output on stdout at info level. The returned closer is non-nil only
// for file output and must be closed on shutdown.
func New(cfg config.LoggingConfig, app config.AppConfig) (*zerolog.Logger, io.Closer, error) {
	writer, closer, err := newWriter(cfg)
	if err != nil {
		return nil, nil, err
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano

	root := zerolog.New(writer).
		Level(levelOrInfo(cfg.Level)).
		With().
		Timestamp().
		Str("app", app.Name).
		Str("env", app.Environment).
		Str("version", app.Version).
		Logger()

	return &root, closer, nil
}

// levelOrInfo parses the configured level, treating anything
// unparseable (and the empty string) as info rather than failing
// startup over a typo.
func levelOrInfo(raw string) zerolog.Level {
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(raw)))
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return level
}

func newWriter(cfg config.LoggingConfig) (io.Writer, io.Closer, error) {
	var out io.Writer = os.Stdout
	var closer io.Closer

	switch strings.ToLower(strings.TrimSpace(cfg.Output)) {
	case "stderr":
		out = os.Stderr
	case "file":
		if cfg.FilePath == "" {
			return nil, nil, fmt.Errorf("logging.output=file requires logging.file_path")
		}
		f, err := os.OpenFile(cfg.FilePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		out = f
		closer = f
	}

	if strings.EqualFold(strings.TrimSpace(cfg.Format), "console") {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	return out, closer, nil
}

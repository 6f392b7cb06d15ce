package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/orderdesk/backend/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// Init configures the global zerolog logger. Development gets a console
// writer on stderr, other environments JSON on stdout. When cfg.File is set
// logs are also written to a rotating file. Extra writers are appended.
func Init(cfg config.LogConfig, environment string, writers ...io.Writer) error {
	level := zerolog.InfoLevel
	if cfg.Level != "" {
		parsed, err := zerolog.ParseLevel(cfg.Level)
		if err != nil {
			return fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
		level = parsed
	}

	var logWriters []io.Writer
	if environment == "development" {
		logWriters = append(logWriters, zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly})
	} else {
		logWriters = append(logWriters, os.Stdout)
	}

	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o750); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
		logWriters = append(logWriters, &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
		})
	}

	logWriters = append(logWriters, writers...)

	zerolog.SetGlobalLevel(level)
	log.Logger = zerolog.New(io.MultiWriter(logWriters...)).
		With().Timestamp().Logger()

	return nil
}

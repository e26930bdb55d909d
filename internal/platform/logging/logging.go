// Package logging builds the process-wide zerolog logger.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/medivision/medivision/internal/config"
)

// New returns a console logger in development and JSON on stdout otherwise.
// When LOG_FILE is set, JSON records are also written to a rotated file.
func New(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || cfg.LogLevel == "" {
		level = zerolog.InfoLevel
	}

	var stdout io.Writer = os.Stdout
	if cfg.IsDev() {
		stdout = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}

	out := stdout
	if cfg.LogFile != "" {
		out = zerolog.MultiLevelWriter(stdout, FileWriter(cfg))
	}

	return zerolog.New(out).Level(level).With().Timestamp().Str("service", "medivision").Logger()
}

// FileWriter returns the rotating writer behind LOG_FILE.
func FileWriter(cfg *config.Config) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   cfg.LogFile,
		MaxSize:    cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAge:     cfg.LogMaxAgeDays,
		Compress:   true,
	}
}

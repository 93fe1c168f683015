// Package logger builds the process-wide zerolog logger.
package logger

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// FileName is the name of the rotated log file inside Config.Path.
const FileName = "movie-shelf.log"

// Config holds logger configuration.
type Config struct {
	Level      string
	Format     string // "console" or "json"
	Path       string // directory for rotated log files, empty disables them
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	// Out replaces stdout, mainly for tests.
	Out io.Writer
}

// Logger owns the root zerolog logger and the file rotator behind it.
type Logger struct {
	zerolog.Logger
	rotator *lumberjack.Logger
}

// New creates the root logger. A log directory that cannot be created is
// reported on the console and file output is skipped.
func New(cfg Config) *Logger {
	out := cfg.Out
	if out == nil {
		out = os.Stdout
	}

	var console io.Writer = out
	if !strings.EqualFold(cfg.Format, "json") {
		console = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339, NoColor: cfg.Out != nil}
	}

	output := console
	var rotator *lumberjack.Logger
	var dirErr error
	if cfg.Path != "" {
		if dirErr = os.MkdirAll(cfg.Path, 0o755); dirErr == nil {
			rotator = &lumberjack.Logger{
				Filename:   filepath.Join(cfg.Path, FileName),
				MaxSize:    positiveOr(cfg.MaxSizeMB, 10),
				MaxBackups: positiveOr(cfg.MaxBackups, 5),
				MaxAge:     positiveOr(cfg.MaxAgeDays, 30),
				Compress:   true,
				LocalTime:  true,
			}
			output = io.MultiWriter(console, rotator)
		}
	}

	zl := zerolog.New(output).
		Level(ParseLevel(cfg.Level)).
		With().
		Timestamp().
		Logger()
	if dirErr != nil {
		zl.Warn().Err(dirErr).Str("path", cfg.Path).Msg("log directory unavailable, file logging disabled")
	}

	return &Logger{Logger: zl, rotator: rotator}
}

// Component returns a child logger tagged with the component name.
func (l *Logger) Component(name string) zerolog.Logger {
	return l.Logger.With().Str("component", name).Logger()
}

// Close flushes and closes the log file if one is open.
func (l *Logger) Close() error {
	if l.rotator != nil {
		return l.rotator.Close()
	}
	return nil
}

// ParseLevel maps a level name to a zerolog level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "warning":
		return zerolog.WarnLevel
	case "":
		return zerolog.InfoLevel
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

func positiveOr(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

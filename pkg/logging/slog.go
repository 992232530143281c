// Package logging configures structured logging shared by the lockstep
// server and client processes.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Config is slog-compatible logging configuration loaded from YAML.
type Config struct {
	Level  string   `yaml:"level"`  // debug, info, warn, error
	Format string   `yaml:"format"` // json, text
	Output string   `yaml:"output"` // stdout, stderr, file
	File   *LogFile `yaml:"file,omitempty"`
}

// LogFile configures rotating file output.
type LogFile struct {
	Directory string `yaml:"directory"`
	Filename  string `yaml:"filename"`
	MaxSizeMB int    `yaml:"max_size_mb"`
	MaxFiles  int    `yaml:"max_files"`
	MaxAgeDay int    `yaml:"max_age_days"`
	Compress  bool   `yaml:"compress"`
}

// NewLogger creates a configured slog.Logger scoped to a service name.
func NewLogger(serviceName string, cfg Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}
	writer := createWriter(cfg)

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		handler = slog.NewJSONHandler(writer, opts)
	} else {
		handler = slog.NewTextHandler(writer, opts)
	}

	return slog.New(handler).With("service", serviceName)
}

// NewLoggerBasic creates a logger from plain strings, for CLI flag wiring.
func NewLoggerBasic(serviceName, level, format, output string) *slog.Logger {
	return NewLogger(serviceName, Config{Level: level, Format: format, Output: output})
}

// ContextLogger enriches logger with lockstep identifiers carried on ctx.
func ContextLogger(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if clientID := ctx.Value(ctxKeyClientID); clientID != nil {
		logger = logger.With("client_id", clientID)
	}
	if turn := ctx.Value(ctxKeyTurn); turn != nil {
		logger = logger.With("turn", turn)
	}
	return logger
}

type ctxKey int

const (
	ctxKeyClientID ctxKey = iota
	ctxKeyTurn
)

// WithClientID attaches a client id to ctx for later ContextLogger calls.
func WithClientID(ctx context.Context, clientID string) context.Context {
	return context.WithValue(ctx, ctxKeyClientID, clientID)
}

// WithTurn attaches a turn index to ctx for later ContextLogger calls.
func WithTurn(ctx context.Context, turn int) context.Context {
	return context.WithValue(ctx, ctxKeyTurn, turn)
}

func parseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func createWriter(cfg Config) io.Writer {
	switch strings.ToLower(cfg.Output) {
	case "stderr":
		return os.Stderr
	case "file":
		if cfg.File == nil {
			fmt.Fprintln(os.Stderr, "logging: file output requested without file config, falling back to stdout")
			return os.Stdout
		}
		return fileWriter(cfg.File)
	default:
		return os.Stdout
	}
}

func fileWriter(cfg *LogFile) io.Writer {
	if err := os.MkdirAll(cfg.Directory, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "logging: failed to create log directory: %v, falling back to stdout\n", err)
		return os.Stdout
	}
	return &lumberjack.Logger{
		Filename:   filepath.Join(cfg.Directory, cfg.Filename),
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxFiles,
		MaxAge:     cfg.MaxAgeDay,
		Compress:   cfg.Compress,
	}
}

// GetEnvOrDefault reads an environment variable, or returns a default.
func GetEnvOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// GetEnvIntOrDefault reads an integer environment variable, or a default.
func GetEnvIntOrDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

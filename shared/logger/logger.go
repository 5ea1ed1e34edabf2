package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// Config selects the level, encoding and destination of log records
type Config struct {
	Level        string // debug, info, warn, error
	Format       string // json or console
	Output       string // stdout, stderr or a file path
	EnableSource bool
	TimeFormat   string // console only
	NoColor      bool

	writer io.Writer // tests write here instead of Output
}

// Logger is a slog.Logger that may own its log file
type Logger struct {
	*slog.Logger
	closer io.Closer
}

// New builds a logger; file outputs are appended to and never colored
func New(config *Config) (*Logger, error) {
	out, closer, err := openOutput(config)
	if err != nil {
		return nil, err
	}
	return &Logger{Logger: slog.New(newHandler(config, out, closer != nil)), closer: closer}, nil
}

func newHandler(config *Config, out io.Writer, toFile bool) slog.Handler {
	level := parseLevel(config.Level)

	if config.Format != "" && config.Format != "console" {
		return slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level, AddSource: config.EnableSource})
	}

	timeFormat := config.TimeFormat
	if timeFormat == "" {
		timeFormat = time.RFC3339
	}
	return tint.NewHandler(out, &tint.Options{
		Level:      level,
		AddSource:  config.EnableSource,
		TimeFormat: timeFormat,
		NoColor:    config.NoColor || toFile,
	})
}

// NewDiscard returns a logger that drops every record.
func NewDiscard() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

// Close releases the log file when Output points at one.
func (l *Logger) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

// Component tags every record with the emitting subsystem
func (l *Logger) Component(name string) *slog.Logger {
	return l.Logger.With(slog.String("component", name))
}

// With returns a logger that shares the file but not the duty to close it
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

func openOutput(config *Config) (io.Writer, io.Closer, error) {
	if config.writer != nil {
		return config.writer, nil, nil
	}

	switch config.Output {
	case "", "stdout":
		return os.Stdout, nil, nil
	case "stderr":
		return os.Stderr, nil, nil
	}

	if err := os.MkdirAll(filepath.Dir(config.Output), 0o755); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(config.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return f, f, nil
}

// parseLevel is case-insensitive; unknown names mean info
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

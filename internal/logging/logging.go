// Package logging provides structured logging capabilities using slog.
package logging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// global logger instances, initialized in Init()
var (
	structuredLogger    *slog.Logger
	humanReadableLogger *slog.Logger
	loggerMu            sync.RWMutex
)

var currentStructuredOutputCloser io.Closer
var currentHumanReadableOutputCloser io.Closer

var currentLogLevel = new(slog.LevelVar)
var initOnce sync.Once
var initialized bool

const (
	LevelTrace = slog.Level(-8)
	LevelFatal = slog.Level(12)
)

var levelNames = map[slog.Leveler]string{
	LevelTrace: "TRACE",
	LevelFatal: "FATAL",
}

// defaultReplaceAttr formats time, customizes level names, and truncates
// floats to 2 decimal places so per-chunk diagnostics stay readable.
func defaultReplaceAttr(groups []string, a slog.Attr) slog.Attr {
	if a.Key == slog.TimeKey && a.Value.Kind() == slog.KindTime {
		a.Value = slog.StringValue(a.Value.Time().Format("2006-01-02T15:04:05Z07:00"))
	}
	if a.Key == slog.LevelKey {
		if level, ok := a.Value.Any().(slog.Level); ok {
			label, exists := levelNames[level]
			if !exists {
				label = level.String()
			}
			a.Value = slog.StringValue(label)
		} else {
			a.Value = slog.StringValue(fmt.Sprintf("%v", a.Value.Any()))
		}
	}
	if a.Value.Kind() == slog.KindFloat64 {
		truncated := math.Trunc(a.Value.Float64()*100) / 100.0
		a.Value = slog.Float64Value(truncated)
	}
	return a
}

// Config configures the package-level loggers. The zero value is a
// reasonable default (console only, info level).
type Config struct {
	FileEnabled bool
	FilePath    string
	MaxSizeMB   int
	MaxBackups  int
	MaxAgeDays  int
	Compress    bool
	Level       slog.Level
}

// Init initializes the global loggers. Safe to call multiple times; only
// the first call takes effect.
func Init(cfg Config) {
	initOnce.Do(func() {
		if cfg.Level == 0 {
			cfg.Level = slog.LevelInfo
		}
		currentLogLevel.Set(cfg.Level)

		var structuredOut io.Writer = os.Stderr
		if cfg.FileEnabled && cfg.FilePath != "" {
			if dir := filepath.Dir(cfg.FilePath); dir != "." {
				_ = os.MkdirAll(dir, 0o755) //nolint:gosec // log directory, not sensitive
			}
			lj := &lumberjack.Logger{
				Filename:   cfg.FilePath,
				MaxSize:    orDefault(cfg.MaxSizeMB, 100),
				MaxBackups: orDefault(cfg.MaxBackups, 3),
				MaxAge:     orDefault(cfg.MaxAgeDays, 28),
				Compress:   cfg.Compress,
			}
			structuredOut = lj
			currentStructuredOutputCloser = lj
		}

		structuredHandler := slog.NewJSONHandler(structuredOut, &slog.HandlerOptions{
			Level:       currentLogLevel,
			ReplaceAttr: defaultReplaceAttr,
		})
		humanReadableHandler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level:       currentLogLevel,
			ReplaceAttr: defaultReplaceAttr,
		})

		loggerMu.Lock()
		structuredLogger = slog.New(structuredHandler)
		humanReadableLogger = slog.New(humanReadableHandler)
		loggerMu.Unlock()

		slog.SetDefault(structuredLogger)
		initialized = true
	})
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// IsInitialized returns true if the logging system has been initialized.
func IsInitialized() bool {
	return initialized
}

// SetLevel changes the logging level for all initialized loggers.
func SetLevel(level slog.Level) {
	currentLogLevel.Set(level)
}

// SetOutput redirects logger output, closing any previous closable writers.
func SetOutput(structuredOutput, humanReadableOutput io.Writer) error {
	if structuredOutput == nil {
		return errors.New("structuredOutput writer cannot be nil")
	}
	if humanReadableOutput == nil {
		return errors.New("humanReadableOutput writer cannot be nil")
	}

	var closeErrors []error
	if currentStructuredOutputCloser != nil {
		if err := currentStructuredOutputCloser.Close(); err != nil {
			closeErrors = append(closeErrors, fmt.Errorf("close previous structured output: %w", err))
		}
		currentStructuredOutputCloser = nil
	}
	if currentHumanReadableOutputCloser != nil {
		if err := currentHumanReadableOutputCloser.Close(); err != nil {
			closeErrors = append(closeErrors, fmt.Errorf("close previous human-readable output: %w", err))
		}
		currentHumanReadableOutputCloser = nil
	}

	structuredHandler := slog.NewJSONHandler(structuredOutput, &slog.HandlerOptions{
		Level:       currentLogLevel,
		ReplaceAttr: defaultReplaceAttr,
	})
	humanReadableHandler := slog.NewTextHandler(humanReadableOutput, &slog.HandlerOptions{
		Level:       currentLogLevel,
		ReplaceAttr: defaultReplaceAttr,
	})

	loggerMu.Lock()
	structuredLogger = slog.New(structuredHandler)
	humanReadableLogger = slog.New(humanReadableHandler)
	loggerMu.Unlock()

	if c, ok := structuredOutput.(io.Closer); ok {
		currentStructuredOutputCloser = c
	}
	if c, ok := humanReadableOutput.(io.Closer); ok {
		currentHumanReadableOutputCloser = c
	}

	slog.SetDefault(structuredLogger)

	if len(closeErrors) > 0 {
		return errors.Join(closeErrors...)
	}
	return nil
}

// Structured returns the globally configured structured (JSON) logger, or
// nil if Init has not been called.
func Structured() *slog.Logger {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return structuredLogger
}

// HumanReadable returns the globally configured human-readable logger, or
// nil if Init has not been called.
func HumanReadable() *slog.Logger {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return humanReadableLogger
}

// ForService returns a logger scoped with a "service" attribute, falling
// back to slog.Default() if Init has not been called — every stage and
// component calls this rather than reaching for a package-global logger.
func ForService(serviceName string) *slog.Logger {
	loggerMu.RLock()
	logger := structuredLogger
	loggerMu.RUnlock()

	if logger == nil {
		return slog.Default().With("service", serviceName)
	}
	return logger.With("service", serviceName)
}

// Fatal logs at the custom Fatal level using the default logger and exits.
func Fatal(msg string, args ...any) {
	slog.Log(context.TODO(), LevelFatal, msg, args...)
	os.Exit(1)
}

// Trace logs at the custom Trace level using the default logger.
func Trace(msg string, args ...any) {
	slog.Log(context.TODO(), LevelTrace, msg, args...)
}

// Package logging provides the structured logger every watchd component
// (watcher, catchup, reconcile, mempool, projection-store, ledger-store)
// pulls a namespaced sub-logger from via Component, so a single process's log stream can be
// filtered by which part of the projection pipeline emitted a line.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// Level represents a log level.
type Level = log.Level

// Log levels, reachable through ParseLevel from the watchd.yaml
// logging.level string; never referenced directly outside this package.
const (
	debugLevel = log.DebugLevel
	infoLevel  = log.InfoLevel
	warnLevel  = log.WarnLevel
	errorLevel = log.ErrorLevel
	fatalLevel = log.FatalLevel
)

// Logger wraps charmbracelet/log, remembering the options a component
// sub-logger needs to inherit (output, time format) since charmbracelet/log
// itself has no accessor for its own Options.
type Logger struct {
	*log.Logger
	output     io.Writer
	timeFormat string
}

// Config holds logger configuration.
type Config struct {
	Level      string
	TimeFormat string
	Prefix     string
	Output     io.Writer
}

// DefaultConfig returns a default logging configuration.
func DefaultConfig() *Config {
	return &Config{
		Level:      "info",
		TimeFormat: time.TimeOnly,
		Prefix:     "",
		Output:     os.Stderr,
	}
}

// New creates a new logger with the given configuration.
func New(cfg *Config) *Logger {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	timeFormat := cfg.TimeFormat
	if timeFormat == "" {
		timeFormat = time.TimeOnly
	}

	logger := log.NewWithOptions(output, log.Options{
		ReportCaller:    false,
		ReportTimestamp: true,
		TimeFormat:      timeFormat,
		Prefix:          cfg.Prefix,
	})
	logger.SetLevel(ParseLevel(cfg.Level))

	return &Logger{Logger: logger, output: output, timeFormat: timeFormat}
}

// Default returns the process-wide fallback logger, used wherever a Store
// or Watcher is constructed with a nil *Logger. It starts at info level
// writing to stderr, and reflects whatever SetDefault last installed.
func Default() *Logger {
	return defaultLogger
}

// ParseLevel parses watchd.yaml's logging.level string into a log.Level,
// defaulting to info on anything unrecognised rather than failing startup
// over a typo'd config value.
func ParseLevel(level string) Level {
	switch strings.ToLower(level) {
	case "debug":
		return debugLevel
	case "info":
		return infoLevel
	case "warn", "warning":
		return warnLevel
	case "error":
		return errorLevel
	case "fatal":
		return fatalLevel
	default:
		return infoLevel
	}
}

// Component returns a sub-logger prefixed with name (e.g. "catchup",
// "mempool", "reconcile", "projection-store"), inheriting this logger's output and
// level so every component's lines end up interleaved on the same stream.
func (l *Logger) Component(name string) *Logger {
	newLogger := log.NewWithOptions(l.output, log.Options{
		ReportTimestamp: true,
		TimeFormat:      l.timeFormat,
		Prefix:          name,
	})
	newLogger.SetLevel(l.GetLevel())
	return &Logger{Logger: newLogger, output: l.output, timeFormat: l.timeFormat}
}

// defaultLogger backs SetDefault/Default's process-wide fallback, swapped
// out once main parses watchd.yaml so every Store/Watcher built with a nil
// logger before that point still logs somewhere sane.
var defaultLogger = New(DefaultConfig())

// SetDefault replaces the fallback logger returned by Default.
func SetDefault(l *Logger) {
	defaultLogger = l
}

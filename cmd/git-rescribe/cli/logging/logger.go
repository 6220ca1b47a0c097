// Package logging provides structured logging for git-rescribe using slog.
//
// Usage:
//
//	if err := logging.Init(runID); err != nil {
//	    // handle error
//	}
//	defer logging.Close()
//
//	ctx = logging.WithComponent(ctx, "executor")
//	logging.Info(ctx, "commit created",
//	    slog.String("original", original),
//	    slog.String("new", newHash),
//	)
package logging

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/szhu/git-rescribe/cmd/git-rescribe/cli/paths"
)

// LogLevelEnvVar is the environment variable that controls log level.
const LogLevelEnvVar = "RESCRIBE_LOG_LEVEL"

var runIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

var (
	// logger is the package-level logger instance
	logger *slog.Logger

	// logFile holds the current log file handle for cleanup
	logFile *os.File

	// logBufWriter wraps logFile with buffered I/O
	logBufWriter *bufio.Writer

	// currentRunID is included in every record written after Init
	currentRunID string

	// mu protects logger, logFile, logBufWriter, and currentRunID
	mu sync.RWMutex

	// logLevelGetter is an optional callback to get log level from settings.
	logLevelGetter func() string
)

// SetLogLevelGetter sets a callback function to get the log level from settings.
// The callback is only used if RESCRIBE_LOG_LEVEL is not set.
func SetLogLevelGetter(getter func() string) {
	mu.Lock()
	defer mu.Unlock()
	logLevelGetter = getter
}

// NewRunID returns a run identifier derived from the given time.
func NewRunID(now time.Time) string {
	return now.UTC().Format("20060102-150405")
}

// Init initializes the logger for a run, writing JSON logs to
// <git-dir>/rescribe/logs/<run-id>.log.
//
// If the log file cannot be created, falls back to stderr.
func Init(runID string) error {
	if !runIDPattern.MatchString(runID) {
		return fmt.Errorf("invalid run ID for logging: %q", runID)
	}

	mu.Lock()
	defer mu.Unlock()

	closeLocked()

	levelStr := os.Getenv(LogLevelEnvVar)
	if levelStr == "" && logLevelGetter != nil {
		levelStr = logLevelGetter()
	}
	level := parseLogLevel(levelStr)

	if levelStr != "" && !isValidLogLevel(levelStr) {
		fmt.Fprintf(os.Stderr, "[rescribe] Warning: invalid log level %q, defaulting to INFO\n", levelStr)
	}

	currentRunID = runID

	logsPath, err := paths.LogsDir()
	if err != nil {
		logger = createLogger(os.Stderr, level)
		return nil
	}
	if err := os.MkdirAll(logsPath, 0o750); err != nil {
		logger = createLogger(os.Stderr, level)
		return nil
	}

	logFilePath := filepath.Join(logsPath, runID+".log")
	f, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600) //nolint:gosec // runID validated above
	if err != nil {
		logger = createLogger(os.Stderr, level)
		return nil
	}

	logFile = f
	logBufWriter = bufio.NewWriterSize(f, 8192)
	logger = createLogger(logBufWriter, level)

	return nil
}

// Close flushes and closes the log file if one is open.
// Safe to call multiple times.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	closeLocked()
	currentRunID = ""
}

func closeLocked() {
	if logBufWriter != nil {
		_ = logBufWriter.Flush()
		logBufWriter = nil
	}
	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}
}

// SetOutput replaces the logger with one writing JSON to w. Used by tests.
func SetOutput(w io.Writer, level slog.Level) {
	mu.Lock()
	defer mu.Unlock()
	closeLocked()
	logger = createLogger(w, level)
}

// resetLogger resets the logger to nil (for testing).
func resetLogger() {
	mu.Lock()
	defer mu.Unlock()
	closeLocked()
	logger = nil
	currentRunID = ""
}

// getLogger returns the current logger, or slog.Default() if not initialized.
func getLogger() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()

	if logger == nil {
		return slog.Default()
	}
	return logger
}

func getRunID() string {
	mu.RLock()
	defer mu.RUnlock()
	return currentRunID
}

func createLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

// parseLogLevel parses a log level string to slog.Level.
// Returns slog.LevelInfo for empty or invalid values.
func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func isValidLogLevel(s string) bool {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG", "INFO", "WARN", "WARNING", "ERROR", "":
		return true
	default:
		return false
	}
}

// Debug logs at DEBUG level with context values automatically extracted.
func Debug(ctx context.Context, msg string, attrs ...any) {
	log(ctx, slog.LevelDebug, msg, attrs...)
}

// Info logs at INFO level with context values automatically extracted.
func Info(ctx context.Context, msg string, attrs ...any) {
	log(ctx, slog.LevelInfo, msg, attrs...)
}

// Warn logs at WARN level with context values automatically extracted.
func Warn(ctx context.Context, msg string, attrs ...any) {
	log(ctx, slog.LevelWarn, msg, attrs...)
}

// Error logs at ERROR level with context values automatically extracted.
func Error(ctx context.Context, msg string, attrs ...any) {
	log(ctx, slog.LevelError, msg, attrs...)
}

// LogDuration logs a message with duration_ms calculated from the start time.
// Designed for use with defer:
//
//	defer logging.LogDuration(ctx, slog.LevelInfo, "plan executed", time.Now())
func LogDuration(ctx context.Context, level slog.Level, msg string, start time.Time, attrs ...any) {
	allAttrs := make([]any, 0, len(attrs)+1)
	allAttrs = append(allAttrs, slog.Int64("duration_ms", time.Since(start).Milliseconds()))
	allAttrs = append(allAttrs, attrs...)
	log(ctx, level, msg, allAttrs...)
}

func log(ctx context.Context, level slog.Level, msg string, attrs ...any) {
	l := getLogger()

	var allAttrs []any

	globalRunID := getRunID()
	if globalRunID != "" {
		allAttrs = append(allAttrs, slog.String("run_id", globalRunID))
	}
	for _, a := range attrsFromContext(ctx, globalRunID) {
		allAttrs = append(allAttrs, a)
	}
	allAttrs = append(allAttrs, attrs...)

	l.Log(context.Background(), level, msg, allAttrs...)
}

// attrsFromContext extracts logging attributes from a context.
// The run ID from context is skipped when one was set by Init.
func attrsFromContext(ctx context.Context, globalRunID string) []slog.Attr {
	if ctx == nil {
		return nil
	}

	var attrs []slog.Attr
	if globalRunID == "" {
		if s := RunIDFromContext(ctx); s != "" {
			attrs = append(attrs, slog.String("run_id", s))
		}
	}
	if s := ComponentFromContext(ctx); s != "" {
		attrs = append(attrs, slog.String("component", s))
	}
	if s := BranchFromContext(ctx); s != "" {
		attrs = append(attrs, slog.String("branch", s))
	}
	return attrs
}

// Package logger is the process-side structured logging facade, a thin
// layer over log/slog with leveled package-level helpers.
//
// The guest side never imports this package: guest log records cross the
// sandbox boundary as serialized frames and are forwarded here by the host
// when it services the log port.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Config holds logger configuration.
type Config struct {
	Level  string // DEBUG, INFO, WARN, ERROR
	Format string // text or json
	Output string // stdout, stderr, or a file path
}

var (
	mu       sync.RWMutex
	level    = new(slog.LevelVar)
	output   io.Writer = os.Stderr
	format             = "text"
	useColor           = isTerminal(os.Stderr.Fd())
	slogger            = newLogger()
)

func newLogger() *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	if format == "json" {
		h = slog.NewJSONHandler(output, opts)
	} else {
		h = newTextHandler(output, opts, useColor)
	}
	return slog.New(h)
}

func reconfigure() {
	slogger = newLogger()
}

// Init applies a configuration. Unset fields keep their current values.
func Init(cfg Config) error {
	mu.Lock()
	defer mu.Unlock()

	switch strings.ToLower(cfg.Output) {
	case "":
	case "stdout":
		output = os.Stdout
		useColor = isTerminal(os.Stdout.Fd())
	case "stderr":
		output = os.Stderr
		useColor = isTerminal(os.Stderr.Fd())
	default:
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log file %q: %w", cfg.Output, err)
		}
		output = f
		useColor = false
	}

	if cfg.Level != "" {
		level.Set(parseLevel(cfg.Level))
	}
	if cfg.Format != "" {
		f := strings.ToLower(cfg.Format)
		if f == "text" || f == "json" {
			format = f
		}
	}
	reconfigure()
	return nil
}

// InitWithWriter points the logger at an arbitrary writer. Used by tests.
func InitWithWriter(w io.Writer, levelName, formatName string) {
	mu.Lock()
	defer mu.Unlock()
	output = w
	useColor = false
	if levelName != "" {
		level.Set(parseLevel(levelName))
	}
	if formatName != "" {
		format = strings.ToLower(formatName)
	}
	reconfigure()
}

// SetLevel changes the minimum level at runtime. Invalid names are
// ignored.
func SetLevel(name string) {
	switch strings.ToUpper(name) {
	case "DEBUG", "INFO", "WARN", "ERROR":
		level.Set(parseLevel(name))
	}
}

func parseLevel(name string) slog.Level {
	switch strings.ToUpper(name) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func current() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return slogger
}

// Debug logs at debug level with key/value pairs.
func Debug(msg string, args ...any) { current().Debug(msg, args...) }

// Info logs at info level with key/value pairs.
func Info(msg string, args ...any) { current().Info(msg, args...) }

// Warn logs at warn level with key/value pairs.
func Warn(msg string, args ...any) { current().Warn(msg, args...) }

// Error logs at error level with key/value pairs.
func Error(msg string, args ...any) { current().Error(msg, args...) }

// Package debug configures process logging and provides category-gated
// debug output for mcplab.
//
// Two controls are independent of each other:
//   - Categories select which subsystems emit debug lines (MCPLAB_DEBUG or
//     logging.debug in the config file).
//   - The level selects how verbose the default logger is (MCPLAB_LOG_LEVEL or
//     logging.level).
//
// Usage:
//
//	debug.Log("oauth", "discovery attempt", "url", wellKnown)
//	if debug.Enabled("mcp") { /* expensive formatting */ }
//
// Categories: mcp, oauth, storage, http, config, all.
package debug

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

// LevelTrace is below slog.LevelDebug. Response bodies are only logged at
// this level.
const LevelTrace = slog.LevelDebug - 4

// Known categories, accepted by the config validator.
var KnownCategories = []string{"mcp", "oauth", "storage", "http", "config", "all"}

var categories atomic.Pointer[map[string]bool]

func init() {
	setCategories(parseCategories(os.Getenv("MCPLAB_DEBUG")))
}

// Options controls the process logger.
type Options struct {
	Categories string
	Level      string
	Format     string // "text" or "json"
	Output     io.Writer
}

// Setup installs the default slog logger and the enabled categories.
// MCPLAB_DEBUG and MCPLAB_LOG_LEVEL take precedence over opts.
func Setup(opts Options) *slog.Logger {
	cats := os.Getenv("MCPLAB_DEBUG")
	if cats == "" {
		cats = opts.Categories
	}
	setCategories(parseCategories(cats))

	level := os.Getenv("MCPLAB_LOG_LEVEL")
	if level == "" {
		level = opts.Level
	}

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	logger := slog.New(newHandler(out, opts.Format, ParseLevel(level)))
	slog.SetDefault(logger)
	return logger
}

func newHandler(w io.Writer, format string, level slog.Level) slog.Handler {
	ho := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(format, "json") {
		return slog.NewJSONHandler(w, ho)
	}
	return slog.NewTextHandler(w, ho)
}

// Enabled reports whether debug output is active for the given category.
func Enabled(category string) bool {
	m := categories.Load()
	if m == nil {
		return false
	}
	return (*m)["all"] || (*m)[category]
}

// Log emits a debug message for the given category.
func Log(category string, msg string, args ...any) {
	if !Enabled(category) {
		return
	}
	slog.Debug(msg, append([]any{"debug", category}, args...)...)
}

// Trace emits a trace-level message for the given category.
func Trace(category string, msg string, args ...any) {
	if !TraceEnabled(category) {
		return
	}
	slog.Log(context.Background(), LevelTrace, msg, append([]any{"debug", category}, args...)...)
}

// TraceEnabled reports whether TRACE output is active for the category.
func TraceEnabled(category string) bool {
	return Enabled(category) && slog.Default().Enabled(context.Background(), LevelTrace)
}

// ParseLevel converts a level string to a slog.Level. Unknown values map to INFO.
func ParseLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRACE":
		return LevelTrace
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

// Truncate shortens s to maxLen bytes, appending "..." when cut.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

func setCategories(m map[string]bool) {
	categories.Store(&m)
}

func parseCategories(s string) map[string]bool {
	m := make(map[string]bool)
	for _, cat := range strings.Split(s, ",") {
		cat = strings.TrimSpace(strings.ToLower(cat))
		if cat != "" {
			m[cat] = true
		}
	}
	return m
}

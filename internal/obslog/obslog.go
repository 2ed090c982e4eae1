// Package obslog builds the runtime's structured logger: a log/slog
// handler wrapping JSON or text output with secret redaction applied to
// every attribute value (spec §7's "must be masked everywhere" rule).
// Grounded on the teacher's internal/observability.Logger redaction
// patterns, reimplemented as a slog.Handler decorator so the rest of the
// tree can keep using a plain *slog.Logger rather than a bespoke wrapper
// type.
package obslog

import (
	"context"
	"log/slog"
	"os"
	"regexp"
	"strings"
)

// redactPatterns catches common secret shapes in log attribute values.
// Mirrors haasonsaas-nexus/internal/observability.DefaultRedactPatterns,
// trimmed to the providers this repo actually talks to.
var redactPatterns = []*regexp.Regexp{
	regexp.MustCompile(`sk-ant-[a-zA-Z0-9_-]{20,}`),
	regexp.MustCompile(`sk-[a-zA-Z0-9]{20,}`),
	regexp.MustCompile(`(?i)(bearer)\s+[a-zA-Z0-9_\-.]{16,}`),
	regexp.MustCompile(`eyJ[a-zA-Z0-9_-]*\.eyJ[a-zA-Z0-9_-]*\.[a-zA-Z0-9_-]*`),
}

// sensitiveKeys are attribute keys whose value is always masked, since
// the value's shape alone might not match a redaction pattern (e.g. a
// four-character key's MaskAPIKey output is already safe, but the key
// used before masking is not).
var sensitiveKeys = map[string]bool{
	"api_key": true, "apikey": true, "token": true, "secret": true,
	"password": true, "passwd": true, "authorization": true,
}

// Config configures the runtime logger.
type Config struct {
	// Level: "debug", "info", "warn", "error". Defaults to "info".
	Level string
	// Format: "json" or "text". Defaults to "json".
	Format string
	// AddSource includes file:line in each record.
	AddSource bool
}

// New builds a *slog.Logger writing to os.Stderr with redaction applied.
func New(cfg Config) *slog.Logger {
	level := parseLevel(cfg.Level)
	opts := &slog.HandlerOptions{Level: level, AddSource: cfg.AddSource}

	var base slog.Handler
	if strings.ToLower(cfg.Format) == "text" {
		base = slog.NewTextHandler(os.Stderr, opts)
	} else {
		base = slog.NewJSONHandler(os.Stderr, opts)
	}
	return slog.New(&redactingHandler{next: base})
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
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

// redactingHandler wraps a slog.Handler, rewriting every attribute's
// string value (recursively through groups) before the record reaches
// the underlying handler.
type redactingHandler struct {
	next slog.Handler
}

func (h *redactingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *redactingHandler) Handle(ctx context.Context, record slog.Record) error {
	newRecord := slog.NewRecord(record.Time, record.Level, redact(record.Message), record.PC)
	record.Attrs(func(a slog.Attr) bool {
		newRecord.AddAttrs(redactAttr(a))
		return true
	})
	return h.next.Handle(ctx, newRecord)
}

func (h *redactingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	redacted := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		redacted[i] = redactAttr(a)
	}
	return &redactingHandler{next: h.next.WithAttrs(redacted)}
}

func (h *redactingHandler) WithGroup(name string) slog.Handler {
	return &redactingHandler{next: h.next.WithGroup(name)}
}

func redactAttr(a slog.Attr) slog.Attr {
	if sensitiveKeys[strings.ToLower(a.Key)] {
		return slog.String(a.Key, "[REDACTED]")
	}
	if a.Value.Kind() == slog.KindString {
		return slog.String(a.Key, redact(a.Value.String()))
	}
	return a
}

func redact(s string) string {
	for _, re := range redactPatterns {
		s = re.ReplaceAllString(s, "[REDACTED]")
	}
	return s
}

package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// NewCLI constructs a logger that emits terse human-readable records for
// terminal use.
func NewCLI(w io.Writer, level slog.Leveler) *slog.Logger {
	if w == nil {
		panic("logging: writer must not be nil")
	}
	if level == nil {
		level = slog.LevelInfo
	}
	return slog.New(&cliHandler{writer: w, level: level, mu: &sync.Mutex{}})
}

// NewJSON constructs a logger that emits structured JSON records.
func NewJSON(w io.Writer, level slog.Leveler) *slog.Logger {
	if w == nil {
		panic("logging: writer must not be nil")
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

// Ensure returns the provided logger or the process default if nil.
func Ensure(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.Default()
}

// cliHandler renders records as "LEVEL timestamp | message k=v ...". Attrs
// attached via With are rendered once and reused for every record.
type cliHandler struct {
	writer   io.Writer
	level    slog.Leveler
	mu       *sync.Mutex
	prefix   string // rendered WithAttrs attrs
	groupKey string // dotted group path for nested attrs
}

func (h *cliHandler) Enabled(_ context.Context, level slog.Level) bool {
	min := slog.LevelInfo
	if h.level != nil {
		min = h.level.Level()
	}
	return level >= min
}

func (h *cliHandler) Handle(_ context.Context, record slog.Record) error {
	timestamp := record.Time
	if timestamp.IsZero() {
		timestamp = time.Now()
	}

	var b strings.Builder
	b.WriteString(strings.ToUpper(record.Level.String()))
	b.WriteByte(' ')
	b.WriteString(timestamp.UTC().Format(time.RFC3339))
	b.WriteString(" | ")
	b.WriteString(record.Message)
	b.WriteString(h.prefix)
	record.Attrs(func(attr slog.Attr) bool {
		appendAttr(&b, h.groupKey, attr)
		return true
	})
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.writer, b.String())
	return err
}

func (h *cliHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	var b strings.Builder
	b.WriteString(h.prefix)
	for _, attr := range attrs {
		appendAttr(&b, h.groupKey, attr)
	}
	clone := *h
	clone.prefix = b.String()
	return &clone
}

func (h *cliHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	if h.groupKey != "" {
		clone.groupKey = h.groupKey + "." + name
	} else {
		clone.groupKey = name
	}
	return &clone
}

func appendAttr(b *strings.Builder, groupKey string, attr slog.Attr) {
	value := attr.Value.Resolve()
	if value.Kind() == slog.KindGroup {
		nested := attr.Key
		if groupKey != "" {
			nested = groupKey + "." + attr.Key
		}
		for _, member := range value.Group() {
			appendAttr(b, nested, member)
		}
		return
	}

	key := attr.Key
	if groupKey != "" {
		key = groupKey + "." + key
	}
	b.WriteByte(' ')
	b.WriteString(key)
	b.WriteByte('=')
	b.WriteString(formatValue(value))
}

func formatValue(value slog.Value) string {
	switch value.Kind() {
	case slog.KindTime:
		return value.Time().UTC().Format(time.RFC3339)
	case slog.KindAny:
		if err, ok := value.Any().(error); ok && err != nil {
			return err.Error()
		}
		return fmt.Sprint(value.Any())
	default:
		return value.String()
	}
}

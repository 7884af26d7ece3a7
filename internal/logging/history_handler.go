package logging

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

// HistoryHandler is a slog.Handler that records into a History.
type HistoryHandler struct {
	history func() *History
	level   slog.Leveler
	module  string
	preset  map[string]any // attrs from WithAttrs, already flattened
	groups  []string
}

// NewHistoryHandler creates a handler writing to the History returned by
// history at the time of each record. Records are dropped while it returns nil.
func NewHistoryHandler(history func() *History, level slog.Leveler) *HistoryHandler {
	return &HistoryHandler{history: history, level: level, module: "app"}
}

// Enabled implements slog.Handler.
func (h *HistoryHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle implements slog.Handler.
func (h *HistoryHandler) Handle(_ context.Context, r slog.Record) error {
	hist := h.history()
	if hist == nil {
		return nil
	}

	attrs := make(map[string]any, len(h.preset)+r.NumAttrs())
	for k, v := range h.preset {
		attrs[k] = v
	}
	r.Attrs(func(a slog.Attr) bool {
		flattenAttr(attrs, h.groups, a)
		return true
	})

	entry := Entry{
		Timestamp: r.Time,
		Level:     levelToString(r.Level),
		Module:    h.module,
		Message:   r.Message,
	}
	if len(attrs) > 0 {
		entry.Attributes = attrs
	}
	hist.Add(entry)
	return nil
}

// flattenAttr extracts a slog.Attr into a flat map with dot-notation keys for groups.
func flattenAttr(attrs map[string]any, groups []string, a slog.Attr) {
	key := a.Key
	if len(groups) > 0 {
		key = strings.Join(groups, ".") + "." + key
	}

	switch a.Value.Kind() {
	case slog.KindGroup:
		nested := append(append([]string(nil), groups...), a.Key)
		for _, ga := range a.Value.Group() {
			flattenAttr(attrs, nested, ga)
		}
	case slog.KindTime:
		attrs[key] = a.Value.Time().Format(time.RFC3339Nano)
	case slog.KindDuration:
		attrs[key] = a.Value.Duration().String()
	case slog.KindAny:
		if err, ok := a.Value.Any().(error); ok {
			attrs[key] = err.Error()
		} else {
			attrs[key] = a.Value.Any()
		}
	default:
		attrs[key] = a.Value.Any()
	}
}

// WithAttrs implements slog.Handler.
func (h *HistoryHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.preset = make(map[string]any, len(h.preset)+len(attrs))
	for k, v := range h.preset {
		next.preset[k] = v
	}
	for _, a := range attrs {
		if a.Key == "module" && len(h.groups) == 0 {
			next.module = a.Value.String()
			continue
		}
		flattenAttr(next.preset, h.groups, a)
	}
	return &next
}

// WithGroup implements slog.Handler.
func (h *HistoryHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.groups = make([]string, len(h.groups)+1)
	copy(next.groups, h.groups)
	next.groups[len(h.groups)] = name
	return &next
}

func levelToString(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "error"
	case level >= slog.LevelWarn:
		return "warn"
	case level >= slog.LevelInfo:
		return "info"
	default:
		return "debug"
	}
}

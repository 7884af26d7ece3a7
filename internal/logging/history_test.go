package logging

import (
	"log/slog"
	"strconv"
	"testing"
	"time"
)

func TestHistoryWrapsOldestFirst(t *testing.T) {
	h := NewHistory(3)
	for i := range 5 {
		h.Add(Entry{Timestamp: time.Unix(int64(i), 0), Module: "query", Message: strconv.Itoa(i)})
	}

	if h.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", h.Len())
	}
	got := h.Recent(0, "")
	want := []string{"2", "3", "4"}
	for i, e := range got {
		if e.Message != want[i] {
			t.Errorf("Recent()[%d] = %q, want %q", i, e.Message, want[i])
		}
	}
}

func TestHistoryRecentFilters(t *testing.T) {
	h := NewHistory(10)
	modules := []string{"query", "minecraft", "query", "minecraft", "minecraft"}
	for i, m := range modules {
		h.Add(Entry{Module: m, Message: strconv.Itoa(i)})
	}

	tests := []struct {
		name   string
		limit  int
		module string
		want   []string
	}{
		{"all", 0, "", []string{"0", "1", "2", "3", "4"}},
		{"limit", 2, "", []string{"3", "4"}},
		{"module", 0, "query", []string{"0", "2"}},
		{"module and limit", 2, "minecraft", []string{"3", "4"}},
		{"unknown module", 0, "api", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := h.Recent(tt.limit, tt.module)
			if len(got) != len(tt.want) {
				t.Fatalf("Recent(%d, %q) = %d entries, want %d", tt.limit, tt.module, len(got), len(tt.want))
			}
			for i := range got {
				if got[i].Message != tt.want[i] {
					t.Errorf("Recent(%d, %q)[%d] = %q, want %q", tt.limit, tt.module, i, got[i].Message, tt.want[i])
				}
			}
		})
	}
}

func TestHistoryHandlerGroupsAndNilHistory(t *testing.T) {
	var current *History
	handler := NewHistoryHandler(func() *History { return current }, slog.LevelInfo)
	logger := slog.New(handler).With("module", "api").WithGroup("req")

	// Dropped: no history yet.
	logger.Info("before", "path", "/api/status")

	current = NewHistory(4)
	logger.Info("after", "path", "/api/status", slog.Group("auth", "user", "admin"))

	got := current.Recent(0, "")
	if len(got) != 1 {
		t.Fatalf("Recent() = %d entries, want 1", len(got))
	}
	if got[0].Module != "api" {
		t.Errorf("Module = %q, want api", got[0].Module)
	}
	if got[0].Attributes["req.path"] != "/api/status" {
		t.Errorf("req.path = %v", got[0].Attributes["req.path"])
	}
	if got[0].Attributes["req.auth.user"] != "admin" {
		t.Errorf("req.auth.user = %v", got[0].Attributes["req.auth.user"])
	}
}

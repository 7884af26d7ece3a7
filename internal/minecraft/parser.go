// Package minecraft parses game server console output.
package minecraft

import (
	"strings"

	"github.com/dlclark/regexp2"
)

// Line is one parsed console line.
type Line struct {
	Raw     string
	Time    string // HH:MM:SS, empty for unprefixed lines
	Thread  string
	Level   string // upper-case as printed, e.g. INFO, WARN
	Content string // text after the prefix; the whole line when unprefixed

	// Player is set for chat lines ("<name> message"); Content is then the message.
	Player   string
	IsPlayer bool
}

var (
	// [12:00:00] [Server thread/INFO]: ...
	// [12:00:00] [Server thread/INFO] [minecraft/DedicatedServer]: ...
	// [12:00:00 INFO]: ...
	prefixPattern = regexp2.MustCompile(
		`^\[(?<time>\d{2}:\d{2}:\d{2})(?: (?<plevel>[A-Z]+))?\]`+
			`(?: \[(?<thread>[^\]]*)/(?<tlevel>[A-Z]+)\])?`+
			`(?: \[[^\]]*\])*: (?<content>.*)$`,
		regexp2.RE2)

	chatPattern = regexp2.MustCompile(`^<(?<player>[A-Za-z0-9_]{1,16})> (?<message>.*)$`, regexp2.RE2)
)

// ParseLine splits a raw console line into its prefix fields and content.
// Lines without a recognised prefix are returned verbatim as Content.
func ParseLine(raw string) Line {
	raw = strings.TrimRight(raw, "\r")
	line := Line{Raw: raw, Content: raw}

	m, err := prefixPattern.FindStringMatch(raw)
	if err != nil || m == nil {
		return line
	}

	line.Time = group(m, "time")
	line.Thread = group(m, "thread")
	line.Level = group(m, "tlevel")
	if line.Level == "" {
		line.Level = group(m, "plevel")
	}
	line.Content = group(m, "content")

	// Only the main server thread prints player chat.
	if line.Thread != "" && line.Thread != "Server thread" && line.Thread != "Async Chat Thread - #0" {
		return line
	}
	if cm, err := chatPattern.FindStringMatch(line.Content); err == nil && cm != nil {
		line.Player = group(cm, "player")
		line.Content = group(cm, "message")
		line.IsPlayer = true
	}
	return line
}

func group(m *regexp2.Match, name string) string {
	g := m.GroupByName(name)
	if g == nil || len(g.Captures) == 0 {
		return ""
	}
	return g.String()
}

// LogLevel maps a raw console line to a process log level and message.
// It satisfies process.LogParser.
func LogLevel(raw string) (level, msg string) {
	line := ParseLine(raw)
	switch line.Level {
	case "FATAL", "ERROR":
		level = "error"
	case "WARN", "WARNING":
		level = "warning"
	case "DEBUG", "TRACE":
		level = "debug"
	default:
		level = "info"
	}
	if line.IsPlayer {
		return level, "<" + line.Player + "> " + line.Content
	}
	return level, line.Content
}

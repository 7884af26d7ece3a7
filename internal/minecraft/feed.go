package minecraft

import "github.com/Passion-Never-Dissipate/candy-tools/internal/logging"

// LineConsumer receives server-produced line content in arrival order.
type LineConsumer interface {
	OnLine(content string)
}

// Feed adapts raw process output to a LineConsumer. Player chat is dropped so
// a player cannot forge a command reply.
type Feed struct {
	consumer LineConsumer
	logger   logging.Logger
}

// NewFeed creates a Feed delivering to consumer.
func NewFeed(consumer LineConsumer, logger logging.Logger) *Feed {
	return &Feed{consumer: consumer, logger: logger}
}

// HandleLine implements process.OutputHandler.
func (f *Feed) HandleLine(source, raw string) {
	line := ParseLine(raw)
	if line.IsPlayer {
		f.logger.Debug("Skipping player chat", "player", line.Player, "source", source)
		return
	}
	f.consumer.OnLine(line.Content)
}

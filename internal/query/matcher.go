package query

import "github.com/Passion-Never-Dissipate/candy-tools/internal/metrics"

// OnLine offers one output line to every live waiter. It must be called by
// a single consumer in arrival order; calls must not overlap.
//
// The waiter set is snapshotted under the registry lock and evaluated outside
// it. Every waiter whose pattern matches resolves with this line, in
// registration order. Waiters registered after the snapshot never see it.
func (s *Service) OnLine(line string) {
	metrics.IncLines()

	for _, w := range s.registry.Snapshot() {
		m, ok, err := w.pattern.Match(line)
		if err != nil {
			s.logger.Warn("Pattern evaluation aborted", "query_id", w.id, "pattern", w.pattern.String(), "error", err)
			continue
		}
		if !ok {
			continue
		}
		if s.registry.Resolve(w, m, OutcomeMatched) {
			if w.command != "" {
				s.logger.Debug("Query matched", "query_id", w.id, "command", w.command)
			} else {
				s.logger.Debug("Listen query matched", "query_id", w.id, "pattern", w.pattern.String())
			}
		}
	}
}

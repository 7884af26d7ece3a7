package query

import (
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Outcome is the resolution state of a Waiter.
type Outcome int32

// Waiter outcomes.
const (
	OutcomePending Outcome = iota
	OutcomeMatched
	OutcomeTimeout
	OutcomeCancelled
)

func (o Outcome) String() string {
	switch o {
	case OutcomeMatched:
		return "matched"
	case OutcomeTimeout:
		return "timeout"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return "pending"
	}
}

// Waiter is a single pending pattern-match request.
type Waiter struct {
	id       string
	seq      uint64
	epoch    uint64
	pattern  *Pattern
	command  string
	created  time.Time
	deadline time.Time

	// timer is guarded by the owning Registry's mutex.
	timer *time.Timer

	outcome atomic.Int32
	match   *Match
	done    chan struct{}
}

func newWaiter(p *Pattern, command string, timeout time.Duration) *Waiter {
	now := time.Now()
	return &Waiter{
		id:       newQueryID(),
		pattern:  p,
		command:  command,
		created:  now,
		deadline: now.Add(timeout),
		done:     make(chan struct{}),
	}
}

func newQueryID() string {
	return "q_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// ID returns the opaque waiter id.
func (w *Waiter) ID() string { return w.id }

// Epoch returns the lifecycle epoch that created the waiter.
func (w *Waiter) Epoch() uint64 { return w.epoch }

// Pattern returns the compiled pattern.
func (w *Waiter) Pattern() *Pattern { return w.pattern }

// Command returns the command sent before waiting; empty for listeners.
func (w *Waiter) Command() string { return w.command }

// CreatedAt returns the registration time.
func (w *Waiter) CreatedAt() time.Time { return w.created }

// Deadline returns the absolute deadline.
func (w *Waiter) Deadline() time.Time { return w.deadline }

// Done is closed once the waiter is resolved.
func (w *Waiter) Done() <-chan struct{} { return w.done }

// Result returns the match and outcome. Before Done is closed it reports OutcomePending.
func (w *Waiter) Result() (*Match, Outcome) {
	select {
	case <-w.done:
		return w.match, Outcome(w.outcome.Load())
	default:
		return nil, OutcomePending
	}
}

// finish writes the result slot. Only the first call succeeds.
func (w *Waiter) finish(m *Match, outcome Outcome) bool {
	if !w.outcome.CompareAndSwap(int32(OutcomePending), int32(outcome)) {
		return false
	}
	w.match = m
	close(w.done)
	return true
}

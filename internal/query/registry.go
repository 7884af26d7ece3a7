package query

import (
	"slices"
	"sync"
	"time"

	"github.com/Passion-Never-Dissipate/candy-tools/internal/metrics"
)

// Registry is the set of live waiters for the current epoch.
//
// Structural changes happen under mu. Completion signals are delivered after
// mu is released, so a waking caller never contends with the line consumer.
type Registry struct {
	mu      sync.Mutex
	epoch   uint64
	running bool
	seq     uint64
	waiters map[string]*Waiter

	// onResolve runs outside mu for every waiter this registry resolves.
	onResolve func(*Waiter)
}

// NewRegistry creates a stopped registry at epoch 0. A Guard starts it.
func NewRegistry() *Registry {
	return &Registry{waiters: make(map[string]*Waiter)}
}

// Register creates a waiter for p, stamps it with the current epoch and arms
// its deadline timer. It fails with ErrStopped while the bridge is not running.
func (r *Registry) Register(p *Pattern, command string, timeout time.Duration) (*Waiter, error) {
	w := newWaiter(p, command, timeout)

	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil, ErrStopped
	}
	r.seq++
	w.seq = r.seq
	w.epoch = r.epoch
	r.waiters[w.id] = w
	w.timer = time.AfterFunc(time.Until(w.deadline), func() {
		r.Resolve(w, nil, OutcomeTimeout)
	})
	pending := len(r.waiters)
	r.mu.Unlock()

	metrics.SetPending(pending)
	return w, nil
}

// Resolve removes w and writes its result. It reports false when w is no
// longer registered (already resolved, or dropped by a lifecycle transition),
// which makes every later attempt a no-op.
func (r *Registry) Resolve(w *Waiter, m *Match, outcome Outcome) bool {
	r.mu.Lock()
	if cur, ok := r.waiters[w.id]; !ok || cur != w {
		r.mu.Unlock()
		return false
	}
	delete(r.waiters, w.id)
	w.timer.Stop()
	pending := len(r.waiters)
	r.mu.Unlock()

	metrics.SetPending(pending)
	if !w.finish(m, outcome) {
		return false
	}
	r.notify(w)
	return true
}

// Snapshot returns the live waiters in registration order.
func (r *Registry) Snapshot() []*Waiter {
	r.mu.Lock()
	out := make([]*Waiter, 0, len(r.waiters))
	for _, w := range r.waiters {
		out = append(out, w)
	}
	r.mu.Unlock()

	slices.SortFunc(out, func(a, b *Waiter) int {
		switch {
		case a.seq < b.seq:
			return -1
		case a.seq > b.seq:
			return 1
		default:
			return 0
		}
	})
	return out
}

// Len returns the number of live waiters.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.waiters)
}

// Epoch returns the current epoch.
func (r *Registry) Epoch() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.epoch
}

// Running reports whether new waiters are accepted.
func (r *Registry) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// advance drops every waiter of the outgoing epoch and resolves them as
// cancelled. With start set the epoch is bumped and the registry accepts
// waiters again; otherwise it stops accepting them.
func (r *Registry) advance(start bool) (uint64, int) {
	r.mu.Lock()
	stale := make([]*Waiter, 0, len(r.waiters))
	for _, w := range r.waiters {
		w.timer.Stop()
		stale = append(stale, w)
	}
	r.waiters = make(map[string]*Waiter)
	if start {
		r.epoch++
	}
	r.running = start
	epoch := r.epoch
	r.mu.Unlock()

	metrics.SetPending(0)
	cancelled := 0
	for _, w := range stale {
		if w.finish(nil, OutcomeCancelled) {
			cancelled++
			r.notify(w)
		}
	}
	return epoch, cancelled
}

func (r *Registry) notify(w *Waiter) {
	if r.onResolve != nil {
		r.onResolve(w)
	}
}

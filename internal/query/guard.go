package query

import (
	"log/slog"
	"sync"
	"time"

	"github.com/Passion-Never-Dissipate/candy-tools/internal/events"
	"github.com/Passion-Never-Dissipate/candy-tools/internal/metrics"
)

// Transition describes one lifecycle change.
type Transition struct {
	Epoch     uint64
	Running   bool
	Reason    string
	Cancelled int
}

// GuardOptions configures a Guard.
type GuardOptions struct {
	// Publisher receives an EpochChangedEvent per transition (optional).
	Publisher Publisher

	// Logger for lifecycle operations. If nil, uses slog.Default().
	Logger *slog.Logger
}

// Guard owns the lifecycle of a Registry. Every start or reload bumps the
// epoch; start, reload and stop all resolve pending waiters as cancelled
// before anything else happens, so no caller stays blocked across a transition.
type Guard struct {
	registry  *Registry
	publisher Publisher
	logger    *slog.Logger

	mu    sync.Mutex
	hooks []func(Transition)
}

// NewGuard creates a guard for registry.
func NewGuard(registry *Registry, opts GuardOptions) *Guard {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{
		registry:  registry,
		publisher: opts.Publisher,
		logger:    logger,
	}
}

// OnTransition registers a hook run synchronously after every transition,
// e.g. to drop state cached for the previous epoch.
func (g *Guard) OnTransition(hook func(Transition)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.hooks = append(g.hooks, hook)
}

// Start begins a new epoch.
func (g *Guard) Start(reason string) Transition {
	return g.transition(true, reason)
}

// Reload is a start while already running.
func (g *Guard) Reload(reason string) Transition {
	return g.transition(true, reason)
}

// Stop cancels every pending waiter and rejects new ones until the next Start.
func (g *Guard) Stop(reason string) Transition {
	return g.transition(false, reason)
}

// Epoch returns the current epoch.
func (g *Guard) Epoch() uint64 {
	return g.registry.Epoch()
}

// Running reports whether the bridge accepts waits.
func (g *Guard) Running() bool {
	return g.registry.Running()
}

func (g *Guard) transition(start bool, reason string) Transition {
	g.mu.Lock()
	defer g.mu.Unlock()

	epoch, cancelled := g.registry.advance(start)
	t := Transition{Epoch: epoch, Running: start, Reason: reason, Cancelled: cancelled}

	metrics.SetEpoch(epoch)
	g.logger.Info("Query bridge transition", "epoch", epoch, "running", start, "reason", reason, "cancelled", cancelled)

	for _, hook := range g.hooks {
		hook(t)
	}

	if g.publisher != nil {
		g.publisher.Publish(events.EpochChangedEvent{
			Epoch:     epoch,
			Running:   start,
			Reason:    reason,
			Cancelled: cancelled,
			Timestamp: time.Now().Format(time.RFC3339),
		})
	}
	return t
}

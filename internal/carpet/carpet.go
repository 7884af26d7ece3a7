// Package carpet tracks whether the server runs the Carpet mod, which the
// Scarpet-based region queries depend on.
package carpet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/Passion-Never-Dissipate/candy-tools/internal/events"
	"github.com/Passion-Never-Dissipate/candy-tools/internal/query"
)

const (
	// ProbeCommand makes Carpet's script engine log a marker line. Without
	// Carpet the server answers with an unknown-command error instead.
	ProbeCommand = "script run logger('[candy_tools] carpet mod has been loaded on the server'); dummy = '[candy_tools] get carpet status done'"
	// ProbePattern matches the marker line.
	ProbePattern = `^\[candy_tools] carpet mod has been loaded on the server$`

	// FabricPattern and ModPattern match start-up lines printed by the Fabric loader.
	FabricPattern = `^Loading Minecraft .+ with Fabric Loader .+$`
	ModPattern    = `^\s*-\s+carpet\s+\d+\.\d+`

	DefaultProbeTimeout  = 5 * time.Second
	DefaultDetectTimeout = 10 * time.Second
)

// Status sources.
const (
	SourceProbe   = "probe"
	SourceStartup = "startup"
)

// Waiter is the subset of query.Service used for detection.
type Waiter interface {
	Wait(ctx context.Context, req query.Request) (*query.Match, error)
	Submit(req query.Request) (*query.Waiter, error)
	Await(ctx context.Context, w *query.Waiter) (*query.Match, error)
}

// Publisher receives carpet status events.
type Publisher interface {
	Publish(ev events.Event)
}

// Options configures a Capability.
type Options struct {
	Waiter        Waiter
	Publisher     Publisher // optional
	Logger        *slog.Logger
	ProbeTimeout  time.Duration
	DetectTimeout time.Duration
}

// Capability caches the Carpet detection result for the current server run.
//
// A definite answer (marker seen, or probe timed out) is cached until Reset.
// Probes that fail for other reasons (bridge stopped, transport failure,
// caller cancelled) report absent without caching.
type Capability struct {
	waiter        Waiter
	publisher     Publisher
	logger        *slog.Logger
	probeTimeout  time.Duration
	detectTimeout time.Duration

	group singleflight.Group

	mu      sync.RWMutex
	known   bool
	present bool
	gen     uint64 // bumped by Reset; stale results are discarded
}

// New creates a Capability with nothing cached.
func New(opts Options) *Capability {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	probeTimeout := opts.ProbeTimeout
	if probeTimeout <= 0 {
		probeTimeout = DefaultProbeTimeout
	}
	detectTimeout := opts.DetectTimeout
	if detectTimeout <= 0 {
		detectTimeout = DefaultDetectTimeout
	}
	return &Capability{
		waiter:        opts.Waiter,
		publisher:     opts.Publisher,
		logger:        logger,
		probeTimeout:  probeTimeout,
		detectTimeout: detectTimeout,
	}
}

// Known returns the cached result, if any.
func (c *Capability) Known() (present, known bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.present, c.known
}

// Query returns the cached result or probes the server. Concurrent callers
// share a single probe.
func (c *Capability) Query(ctx context.Context) bool {
	if present, known := c.Known(); known {
		return present
	}

	// Keyed by generation: a probe started before Reset must not answer for the new one.
	gen := c.generation()
	ch := c.group.DoChan(fmt.Sprintf("probe-%d", gen), func() (any, error) {
		return c.probe(context.WithoutCancel(ctx), gen), nil
	})
	select {
	case res := <-ch:
		return res.Val.(bool)
	case <-ctx.Done():
		return false
	}
}

// Reprobe drops the cached result and probes again.
func (c *Capability) Reprobe(ctx context.Context) bool {
	c.Reset()
	return c.Query(ctx)
}

// Reset drops the cached result. Called on every lifecycle transition.
func (c *Capability) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.known = false
	c.present = false
	c.gen++
}

func (c *Capability) generation() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gen
}

func (c *Capability) probe(ctx context.Context, gen uint64) bool {
	_, err := c.waiter.Wait(ctx, query.Request{
		Command: ProbeCommand,
		Pattern: ProbePattern,
		Timeout: c.probeTimeout,
	})
	switch {
	case err == nil:
		c.store(gen, true, SourceProbe)
		return true
	case errors.Is(err, query.ErrTimeout):
		c.store(gen, false, SourceProbe)
		return false
	default:
		c.logger.Warn("Carpet probe failed", "error", err)
		return false
	}
}

// StartDetection registers listeners for the Fabric loader banner and the
// Carpet mod entry before returning, then waits for both in the background.
// Carpet counts as present only if both lines arrive within the detect
// timeout. The channel yields the result once.
func (c *Capability) StartDetection(ctx context.Context) <-chan bool {
	result := make(chan bool, 1)
	gen := c.generation()

	fabric, err := c.waiter.Submit(query.Request{Pattern: FabricPattern, Timeout: c.detectTimeout})
	if err != nil {
		c.logger.Warn("Carpet detection not started", "error", err)
		result <- false
		return result
	}
	mod, err := c.waiter.Submit(query.Request{Pattern: ModPattern, Timeout: c.detectTimeout})
	if err != nil {
		c.logger.Warn("Carpet detection not started", "error", err)
		// Release the first listener now rather than at its deadline.
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, _ = c.waiter.Await(cctx, fabric)
		result <- false
		return result
	}

	go func() {
		var g errgroup.Group
		var hasFabric, hasMod bool
		g.Go(func() error {
			_, err := c.waiter.Await(ctx, fabric)
			hasFabric = err == nil
			return nil
		})
		g.Go(func() error {
			_, err := c.waiter.Await(ctx, mod)
			hasMod = err == nil
			return nil
		})
		_ = g.Wait()

		present := hasFabric && hasMod
		c.logger.Info("Start-up carpet detection finished", "fabric", hasFabric, "carpet", hasMod)
		if ctx.Err() == nil {
			c.store(gen, present, SourceStartup)
		}
		result <- present
	}()
	return result
}

// DetectOnStart runs StartDetection and waits for its result.
func (c *Capability) DetectOnStart(ctx context.Context) bool {
	return <-c.StartDetection(ctx)
}

func (c *Capability) store(gen uint64, present bool, source string) {
	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		c.logger.Debug("Discarding carpet status from previous epoch", "source", source)
		return
	}
	c.known = true
	c.present = present
	c.mu.Unlock()

	c.logger.Info("Carpet status", "present", present, "source", source)
	if c.publisher != nil {
		c.publisher.Publish(events.CarpetStatusEvent{
			Present:   present,
			Source:    source,
			Timestamp: time.Now().Format(time.RFC3339),
		})
	}
}

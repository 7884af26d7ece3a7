package region

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Passion-Never-Dissipate/candy-tools/internal/metrics"
	"github.com/Passion-Never-Dissipate/candy-tools/internal/query"
)

const (
	// DefaultTimeout applies when a region query carries no timeout.
	DefaultTimeout = 10 * time.Second
	// DefaultConcurrency bounds in-flight sub-commands per phase.
	DefaultConcurrency = 4
)

// errBudget marks a sub-wait that could not finish inside the overall deadline.
var errBudget = errors.New("region query budget exhausted")

// Waiter is the subset of query.Service the aggregator needs.
type Waiter interface {
	Wait(ctx context.Context, req query.Request) (*query.Match, error)
}

// Capability reports the cached Carpet status. *carpet.Capability satisfies it.
type Capability interface {
	Known() (present, known bool)
}

// Options configures an Aggregator.
type Options struct {
	Waiter      Waiter
	Capability  Capability // optional
	Logger      *slog.Logger
	Concurrency int

	// DefaultTimeout replaces non-positive call timeouts. If zero, DefaultTimeout is used.
	DefaultTimeout time.Duration
}

// Aggregator resolves region queries with one overall deadline.
type Aggregator struct {
	waiter      Waiter
	capability  Capability
	logger      *slog.Logger
	concurrency int
	timeout     time.Duration
}

// NewAggregator creates an Aggregator.
func NewAggregator(opts Options) *Aggregator {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	timeout := opts.DefaultTimeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Aggregator{
		waiter:      opts.Waiter,
		capability:  opts.Capability,
		logger:      logger,
		concurrency: concurrency,
		timeout:     timeout,
	}
}

// PlayersNBTInRegions maps every player inside spec to its attribute value.
//
// Results:
//   - (m, true, nil): players found
//   - (empty map, true, nil): enumeration finished and found nobody
//   - (nil, false, nil): absent; the overall deadline passed in either phase,
//     a sub-command failed, or Carpet is known to be missing
//   - (nil, false, err): spec or attribute is invalid
//
// Partial results are never returned.
func (a *Aggregator) PlayersNBTInRegions(ctx context.Context, spec Spec, attribute string, timeout time.Duration) (map[string]string, bool, error) {
	if err := spec.Validate(); err != nil {
		metrics.IncRegionQuery("invalid")
		return nil, false, err
	}
	if err := ValidateAttribute(attribute); err != nil {
		metrics.IncRegionQuery("invalid")
		return nil, false, err
	}
	if timeout <= 0 {
		timeout = a.timeout
	}

	if a.capability != nil {
		if present, known := a.capability.Known(); known && !present {
			a.logger.Warn("Region query needs carpet mod, which is not loaded")
			metrics.IncRegionQuery("absent")
			return nil, false, nil
		}
	}

	deadline := time.Now().Add(timeout)
	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	names, err := a.enumerate(ctx, spec, deadline)
	if err != nil {
		a.logger.Warn("Region enumeration incomplete", "error", err, "timeout", timeout)
		metrics.IncRegionQuery("absent")
		return nil, false, nil
	}
	if len(names) == 0 {
		a.logger.Debug("No players in regions", "dimensions", len(spec))
		metrics.IncRegionQuery("empty")
		return map[string]string{}, true, nil
	}

	values, err := a.attributes(ctx, names, attribute, deadline)
	if err != nil {
		a.logger.Warn("Region attribute phase incomplete", "error", err, "players", len(names), "timeout", timeout)
		metrics.IncRegionQuery("absent")
		return nil, false, nil
	}

	a.logger.Debug("Region query complete", "players", len(values), "attribute", attribute)
	if len(values) == 0 {
		metrics.IncRegionQuery("empty")
	} else {
		metrics.IncRegionQuery("found")
	}
	return values, true, nil
}

// enumerate returns the deduplicated, sorted player names found in spec.
func (a *Aggregator) enumerate(ctx context.Context, spec Spec, deadline time.Time) ([]string, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)

	var mu sync.Mutex
	seen := make(map[string]struct{})

	for _, dim := range spec.Dimensions() {
		for _, box := range spec[dim] {
			g.Go(func() error {
				token := newToken()
				m, err := a.subWait(gctx, deadline, enumerateCommand(token, dim, box), enumeratePattern(token))
				if err != nil {
					return fmt.Errorf("enumerate %s: %w", dim, err)
				}

				list, _ := m.Named("names")
				names, invalid := parseNames(list)
				if len(invalid) > 0 {
					a.logger.Warn("Ignoring invalid player names", "dimension", dim, "names", invalid)
				}

				mu.Lock()
				for _, name := range names {
					seen[name] = struct{}{}
				}
				mu.Unlock()
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// attributes queries attribute for each player. Players that left between
// phases are omitted.
func (a *Aggregator) attributes(ctx context.Context, names []string, attribute string, deadline time.Time) (map[string]string, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)

	var mu sync.Mutex
	values := make(map[string]string, len(names))

	for _, name := range names {
		g.Go(func() error {
			token := newToken()
			m, err := a.subWait(gctx, deadline, attributeCommand(token, name, attribute), attributePattern(token))
			if err != nil {
				return fmt.Errorf("attribute of %s: %w", name, err)
			}
			if _, missing := m.Named("missing"); missing {
				a.logger.Debug("Player left before attribute query", "player", name)
				return nil
			}

			value, _ := m.Named("value")
			mu.Lock()
			values[name] = value
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return values, nil
}

// subWait runs one command with whatever is left of the overall budget.
func (a *Aggregator) subWait(ctx context.Context, deadline time.Time, command, pattern string) (*query.Match, error) {
	remaining := time.Until(deadline)
	if remaining <= 0 {
		return nil, errBudget
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m, err := a.waiter.Wait(ctx, query.Request{Command: command, Pattern: pattern, Timeout: remaining})
	if errors.Is(err, query.ErrTimeout) {
		return nil, errBudget
	}
	return m, err
}

package query

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Passion-Never-Dissipate/candy-tools/internal/events"
	"github.com/Passion-Never-Dissipate/candy-tools/internal/metrics"
)

// DefaultTimeout applies when a request carries no timeout.
const DefaultTimeout = 5 * time.Second

// CommandSink forwards a console command to the server. Replies arrive later as output lines.
type CommandSink interface {
	Execute(command string) error
}

// SinkFunc adapts a function to CommandSink.
type SinkFunc func(command string) error

// Execute calls f(command).
func (f SinkFunc) Execute(command string) error { return f(command) }

// Publisher receives bridge events. *events.Bus satisfies it.
type Publisher interface {
	Publish(ev events.Event)
}

// ServiceOptions configures a Service.
type ServiceOptions struct {
	// Sink receives commands. Required for execute calls; listen calls work without it.
	Sink CommandSink

	// Publisher receives a QueryResolvedEvent per resolved waiter (optional).
	Publisher Publisher

	// Logger for query operations. If nil, uses slog.Default().
	Logger *slog.Logger

	// MatchTimeout bounds a single pattern evaluation against one line (0 = unbounded).
	MatchTimeout time.Duration

	// DefaultTimeout replaces non-positive request timeouts. If zero, DefaultTimeout is used.
	DefaultTimeout time.Duration
}

// Request describes one wait.
type Request struct {
	// Command is sent before blocking. Empty means listen only.
	Command string
	Pattern string
	Timeout time.Duration
}

// Service is the public wait entry point.
type Service struct {
	registry       *Registry
	sink           CommandSink
	publisher      Publisher
	logger         *slog.Logger
	matchTimeout   time.Duration
	defaultTimeout time.Duration
}

// NewService creates a Service with its own Registry. The registry starts
// stopped; start it through a Guard.
func NewService(opts ServiceOptions) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	defaultTimeout := opts.DefaultTimeout
	if defaultTimeout <= 0 {
		defaultTimeout = DefaultTimeout
	}

	s := &Service{
		registry:       NewRegistry(),
		sink:           opts.Sink,
		publisher:      opts.Publisher,
		logger:         logger,
		matchTimeout:   opts.MatchTimeout,
		defaultTimeout: defaultTimeout,
	}
	s.registry.onResolve = s.observe
	return s
}

// Registry returns the waiter registry backing the service.
func (s *Service) Registry() *Registry {
	return s.registry
}

// Pending returns the number of waits currently blocked.
func (s *Service) Pending() int {
	return s.registry.Len()
}

// Wait registers a waiter for req.Pattern, sends req.Command if set and
// blocks until a matching line arrives, the deadline passes, ctx is done or
// the bridge transitions. Errors: ErrInvalidPattern, ErrStopped,
// ErrTransport, ErrTimeout, ErrCancelled.
func (s *Service) Wait(ctx context.Context, req Request) (*Match, error) {
	w, err := s.Submit(req)
	if err != nil {
		return nil, err
	}
	return s.Await(ctx, w)
}

// Submit registers a waiter and sends req.Command without blocking. The
// waiter sees every line delivered after Submit returns. Use Await to
// collect the result.
func (s *Service) Submit(req Request) (*Waiter, error) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = s.defaultTimeout
	}

	p, err := CompilePattern(req.Pattern, s.matchTimeout)
	if err != nil {
		metrics.IncInvalidPattern()
		s.logger.Error("Invalid regex pattern", "pattern", req.Pattern, "error", err)
		return nil, err
	}

	w, err := s.registry.Register(p, req.Command, timeout)
	if err != nil {
		s.logger.Warn("Query rejected", "pattern", req.Pattern, "error", err)
		return nil, err
	}

	if req.Command == "" {
		s.logger.Debug("Listening for pattern", "query_id", w.id, "pattern", req.Pattern, "timeout", timeout)
		return w, nil
	}

	if err := s.send(req.Command); err != nil {
		s.registry.Resolve(w, nil, OutcomeCancelled)
		s.logger.Error("Failed to send command", "query_id", w.id, "command", req.Command, "error", err)
		return nil, err
	}
	return w, nil
}

// Await blocks until w resolves or ctx is done. A done ctx resolves w as cancelled.
func (s *Service) Await(ctx context.Context, w *Waiter) (*Match, error) {
	select {
	case <-w.Done():
	case <-ctx.Done():
		s.registry.Resolve(w, nil, OutcomeCancelled)
		<-w.Done()
	}

	m, outcome := w.Result()
	switch outcome {
	case OutcomeMatched:
		return m, nil
	case OutcomeTimeout:
		return nil, ErrTimeout
	default:
		return nil, ErrCancelled
	}
}

func (s *Service) send(command string) error {
	if s.sink == nil {
		return fmt.Errorf("%w: no command sink configured", ErrTransport)
	}
	if err := s.sink.Execute(command); err != nil {
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
	return nil
}

// ExecuteAndWaitStr sends command and returns the first matching line.
// An empty command only listens.
func (s *Service) ExecuteAndWaitStr(ctx context.Context, command, pattern string, timeout time.Duration) (string, bool) {
	m, err := s.Wait(ctx, Request{Command: command, Pattern: pattern, Timeout: timeout})
	if err != nil {
		return "", false
	}
	return m.Line, true
}

// ExecuteAndWaitMatch sends command and returns the structured match.
func (s *Service) ExecuteAndWaitMatch(ctx context.Context, command, pattern string, timeout time.Duration) (*Match, bool) {
	m, err := s.Wait(ctx, Request{Command: command, Pattern: pattern, Timeout: timeout})
	if err != nil {
		return nil, false
	}
	return m, true
}

// ListenAndWaitStr waits for an organically occurring line.
func (s *Service) ListenAndWaitStr(ctx context.Context, pattern string, timeout time.Duration) (string, bool) {
	return s.ExecuteAndWaitStr(ctx, "", pattern, timeout)
}

// ListenAndWaitMatch waits for an organically occurring line and returns the structured match.
func (s *Service) ListenAndWaitMatch(ctx context.Context, pattern string, timeout time.Duration) (*Match, bool) {
	return s.ExecuteAndWaitMatch(ctx, "", pattern, timeout)
}

// observe records metrics and publishes the resolution.
func (s *Service) observe(w *Waiter) {
	_, outcome := w.Result()
	waited := time.Since(w.created)
	metrics.ObserveResolved(outcome.String(), waited.Seconds())

	switch outcome {
	case OutcomeTimeout:
		if w.command != "" {
			s.logger.Debug("Command timeout", "query_id", w.id, "command", w.command)
		} else {
			s.logger.Debug("Listen timeout", "query_id", w.id, "pattern", w.pattern.String())
		}
	case OutcomeCancelled:
		s.logger.Debug("Query cancelled", "query_id", w.id, "epoch", w.epoch)
	}

	if s.publisher != nil {
		s.publisher.Publish(events.QueryResolvedEvent{
			QueryID:    w.id,
			Command:    w.command,
			Pattern:    w.pattern.String(),
			Outcome:    outcome.String(),
			Epoch:      w.epoch,
			WaitedSecs: waited.Seconds(),
			Timestamp:  time.Now().Format(time.RFC3339),
		})
	}
}

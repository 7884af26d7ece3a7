package query

import (
	"io"
	"log/slog"
	"sync"
	"testing"

	"go.uber.org/goleak"

	"github.com/Passion-Never-Dissipate/candy-tools/internal/events"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeSink records commands and optionally answers them.
type fakeSink struct {
	mu       sync.Mutex
	commands []string
	err      error
	reply    func(command string)
}

func (f *fakeSink) Execute(command string) error {
	f.mu.Lock()
	f.commands = append(f.commands, command)
	err, reply := f.err, f.reply
	f.mu.Unlock()

	if err != nil {
		return err
	}
	if reply != nil {
		reply(command)
	}
	return nil
}

func (f *fakeSink) sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.commands...)
}

// fakePublisher captures published events.
type fakePublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (f *fakePublisher) Publish(ev events.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
}

func (f *fakePublisher) all() []events.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]events.Event(nil), f.events...)
}

// newTestService returns a started service; the bridge is stopped on cleanup.
func newTestService(t *testing.T, sink CommandSink) (*Service, *Guard) {
	t.Helper()
	svc := NewService(ServiceOptions{Sink: sink, Logger: testLogger()})
	guard := NewGuard(svc.Registry(), GuardOptions{Logger: testLogger()})
	guard.Start("test")
	t.Cleanup(func() { guard.Stop("test cleanup") })
	return svc, guard
}

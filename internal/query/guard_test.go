package query

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Passion-Never-Dissipate/candy-tools/internal/events"
)

func TestGuard_EpochSequence(t *testing.T) {
	svc := NewService(ServiceOptions{Logger: testLogger()})
	guard := NewGuard(svc.Registry(), GuardOptions{Logger: testLogger()})

	require.False(t, guard.Running())
	require.Equal(t, uint64(0), guard.Epoch())

	steps := []struct {
		name    string
		apply   func(string) Transition
		epoch   uint64
		running bool
	}{
		{"start", guard.Start, 1, true},
		{"reload", guard.Reload, 2, true},
		{"stop", guard.Stop, 2, false},
		{"stop again", guard.Stop, 2, false},
		{"restart", guard.Start, 3, true},
	}
	for _, step := range steps {
		tr := step.apply(step.name)
		require.Equal(t, step.epoch, tr.Epoch, step.name)
		require.Equal(t, step.running, tr.Running, step.name)
		require.Equal(t, step.name, tr.Reason)
		require.Equal(t, step.epoch, guard.Epoch(), step.name)
		require.Equal(t, step.running, guard.Running(), step.name)
	}
	guard.Stop("done")
}

func TestGuard_TransitionCancelsPendingAndRunsHooks(t *testing.T) {
	pub := &fakePublisher{}
	svc := NewService(ServiceOptions{Logger: testLogger()})
	guard := NewGuard(svc.Registry(), GuardOptions{Publisher: pub, Logger: testLogger()})

	var seen []Transition
	guard.OnTransition(func(tr Transition) { seen = append(seen, tr) })

	guard.Start("boot")
	for range 2 {
		_, err := svc.Registry().Register(mustPattern(t, "x"), "", time.Minute)
		require.NoError(t, err)
	}
	guard.Reload("config changed")
	guard.Stop("shutdown")

	require.Len(t, seen, 3)
	require.Equal(t, Transition{Epoch: 1, Running: true, Reason: "boot"}, seen[0])
	require.Equal(t, Transition{Epoch: 2, Running: true, Reason: "config changed", Cancelled: 2}, seen[1])
	require.Equal(t, Transition{Epoch: 2, Running: false, Reason: "shutdown"}, seen[2])

	var epochEvents []events.EpochChangedEvent
	for _, ev := range pub.all() {
		if e, ok := ev.(events.EpochChangedEvent); ok {
			epochEvents = append(epochEvents, e)
		}
	}
	require.Len(t, epochEvents, 3)
	require.Equal(t, 2, epochEvents[1].Cancelled)
	require.False(t, epochEvents[2].Running)
}

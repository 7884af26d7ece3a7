package events

import (
	"sync"
	"testing"
	"time"
)

func TestBus_PublishSubscribe(t *testing.T) {
	bus := New()
	received := make(chan EpochChangedEvent, 1)

	unsub := bus.Subscribe(func(e EpochChangedEvent) {
		received <- e
	})
	defer unsub()

	bus.Publish(EpochChangedEvent{Epoch: 4, Running: true, Reason: "server started"})

	select {
	case got := <-received:
		if got.Epoch != 4 || got.Reason != "server started" {
			t.Errorf("got %+v, want epoch 4 with reason", got)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := New()
	received := make(chan QueryResolvedEvent, 1)

	unsub := bus.Subscribe(func(e QueryResolvedEvent) {
		received <- e
	})

	bus.Publish(QueryResolvedEvent{QueryID: "q_1"})
	<-received

	unsub()

	bus.Publish(QueryResolvedEvent{QueryID: "q_2"})
	select {
	case <-received:
		t.Fatal("Should not have received event after unsubscribe")
	case <-time.After(10 * time.Millisecond):
	}
}

func TestBus_TypeSafety(t *testing.T) {
	bus := New()

	carpet := make(chan bool, 1)
	server := make(chan bool, 1)

	unsub1 := bus.Subscribe(func(_ CarpetStatusEvent) { carpet <- true })
	defer unsub1()
	unsub2 := bus.Subscribe(func(_ ServerStateChangedEvent) { server <- true })
	defer unsub2()

	bus.Publish(CarpetStatusEvent{Present: true})
	<-carpet

	select {
	case <-server:
		t.Fatal("server subscriber should NOT have received CarpetStatusEvent")
	case <-time.After(10 * time.Millisecond):
	}
}

func TestBus_UnknownHandler(t *testing.T) {
	bus := New()
	unsub := bus.Subscribe(func(string) {})
	if unsub == nil {
		t.Fatal("expected a no-op unsubscribe function")
	}
	unsub()
}

func TestSubscribeToChannel_DropsWhenFull(t *testing.T) {
	bus := New()
	ch := make(chan any, 1)
	unsub := SubscribeToChannel[QueryResolvedEvent](bus, ch)
	defer unsub()

	for i := range 5 {
		bus.Publish(QueryResolvedEvent{Epoch: uint64(i)})
	}

	select {
	case ev := <-ch:
		if _, ok := ev.(QueryResolvedEvent); !ok {
			t.Errorf("got %T, want QueryResolvedEvent", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestBus_ThreadSafety(_ *testing.T) {
	bus := New()
	var wg sync.WaitGroup
	numGoroutines := 10
	eventsPerGoroutine := 100
	expected := numGoroutines * eventsPerGoroutine

	receivedCh := make(chan bool, expected)
	unsub := bus.Subscribe(func(_ QueryResolvedEvent) {
		receivedCh <- true
	})
	defer unsub()

	for range numGoroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range eventsPerGoroutine {
				bus.Publish(QueryResolvedEvent{Outcome: "matched"})
			}
		}()
	}
	wg.Wait()

	for range expected {
		<-receivedCh
	}
}

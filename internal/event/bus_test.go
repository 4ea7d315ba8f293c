package event

import (
	"sync"
	"testing"
	"time"
)

func TestBus_SubscribePublish(t *testing.T) {
	bus := NewBus()

	var received []Event
	bus.Subscribe("task.completed", func(e Event) {
		received = append(received, e)
	})

	bus.Publish(NewTaskCompletedEvent("plan-1", "task-a", "w-1", time.Second))
	bus.Publish(NewTaskFailedEvent("plan-1", "task-b", 2, "boom"))

	if len(received) != 1 {
		t.Fatalf("received %d events, want 1", len(received))
	}
	ce, ok := received[0].(TaskCompletedEvent)
	if !ok {
		t.Fatalf("received event of type %T, want TaskCompletedEvent", received[0])
	}
	if ce.TaskID != "task-a" || ce.WorkerID != "w-1" {
		t.Errorf("event = %+v", ce)
	}
}

func TestBus_SubscribeAll(t *testing.T) {
	bus := NewBus()

	var count int
	bus.SubscribeAll(func(Event) { count++ })

	bus.Publish(NewPlanCreatedEvent("p-1", 3, "balanced"))
	bus.Publish(NewPlanCompletedEvent("p-1", 3, 0, time.Second))
	bus.Publish(NewResourceWarningEvent("memory", 0.92, 2))

	if count != 3 {
		t.Errorf("wildcard handler called %d times, want 3", count)
	}
}

func TestBus_SpecificHandlersBeforeWildcard(t *testing.T) {
	bus := NewBus()

	var order []string
	bus.SubscribeAll(func(Event) { order = append(order, "wildcard") })
	bus.Subscribe("plan.created", func(Event) { order = append(order, "specific") })

	bus.Publish(NewPlanCreatedEvent("p-1", 1, "balanced"))

	if len(order) != 2 || order[0] != "specific" || order[1] != "wildcard" {
		t.Errorf("dispatch order = %v, want [specific wildcard]", order)
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus()

	var count int
	id := bus.Subscribe("plan.created", func(Event) { count++ })

	bus.Publish(NewPlanCreatedEvent("p-1", 1, "balanced"))
	if !bus.Unsubscribe(id) {
		t.Fatal("Unsubscribe returned false for known id")
	}
	bus.Publish(NewPlanCreatedEvent("p-2", 1, "balanced"))

	if count != 1 {
		t.Errorf("handler called %d times, want 1", count)
	}
	if bus.Unsubscribe(id) {
		t.Error("Unsubscribe returned true for removed id")
	}
	if bus.Unsubscribe("nonexistent") {
		t.Error("Unsubscribe returned true for unknown id")
	}
}

func TestBus_PanickingHandlerDoesNotBlockOthers(t *testing.T) {
	bus := NewBus()

	var called bool
	bus.Subscribe("plan.failed", func(Event) { panic("handler bug") })
	bus.Subscribe("plan.failed", func(Event) { called = true })

	bus.Publish(NewPlanFailedEvent("p-1", "boom"))

	if !called {
		t.Error("second handler was not called after first panicked")
	}
}

func TestBus_ConcurrentPublish(t *testing.T) {
	bus := NewBus()

	var mu sync.Mutex
	count := 0
	bus.Subscribe("task.completed", func(Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bus.Publish(NewTaskCompletedEvent("p", "t", "w", 0))
		}()
	}
	wg.Wait()

	if count != 50 {
		t.Errorf("handler called %d times, want 50", count)
	}
}

func TestBus_ClearAndCount(t *testing.T) {
	bus := NewBus()
	bus.Subscribe("a", func(Event) {})
	bus.Subscribe("b", func(Event) {})
	bus.SubscribeAll(func(Event) {})

	if got := bus.SubscriptionCount(); got != 3 {
		t.Errorf("SubscriptionCount() = %d, want 3", got)
	}

	bus.Clear()
	if got := bus.SubscriptionCount(); got != 0 {
		t.Errorf("SubscriptionCount() after Clear = %d, want 0", got)
	}
}

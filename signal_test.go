package insteon

import "testing"

func TestSignalEmitInOrder(t *testing.T) {
	var sig Signal
	var order []int
	sig.Connect(func(StateChange) { order = append(order, 1) })
	sig.Connect(func(StateChange) { order = append(order, 2) })
	sig.Emit(StateChange{})
	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Fatalf("subscribers ran out of order: %v", order)
	}
}

func TestSignalSubscriberPanicDoesNotBlockOthers(t *testing.T) {
	var secondRan bool
	var sig Signal
	sig.Connect(func(StateChange) { panic("boom") })
	sig.Connect(func(StateChange) { secondRan = true })
	sig.Emit(StateChange{})
	if !secondRan {
		t.Fatal("a panicking subscriber should not prevent later subscribers from running")
	}
}

func TestSignalDisconnect(t *testing.T) {
	var called bool
	var sig Signal
	id := sig.Connect(func(StateChange) { called = true })
	sig.Disconnect(id)
	sig.Emit(StateChange{})
	if called {
		t.Fatal("disconnected subscriber should not be invoked")
	}
}

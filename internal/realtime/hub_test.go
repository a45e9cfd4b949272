package realtime

import "testing"

func TestHub_ReconnectReplacesRiderConnection(t *testing.T) {
	h := NewHub()

	first := newClient(h, nil, classRider)
	first.riderID = "rider-1"
	h.registerRider("rider-1", first)

	second := newClient(h, nil, classRider)
	second.riderID = "rider-1"
	h.registerRider("rider-1", second)

	if !h.RiderConnected("rider-1") {
		t.Fatal("rider must stay connected across a reconnect")
	}

	// The old socket's teardown runs after the replacement; it must not
	// evict the new connection.
	h.unregister(first)
	if !h.RiderConnected("rider-1") {
		t.Error("stale teardown must not remove the current connection")
	}

	// A broadcast may still hold the replaced connection through a presence
	// entry; writing to it degrades, never panics.
	if err := first.SendJSON(Message{Type: KindPong}); err != ErrNotConnected {
		t.Errorf("expected ErrNotConnected on the replaced connection, got %v", err)
	}

	h.unregister(second)
	if h.RiderConnected("rider-1") {
		t.Error("expected rider disconnected")
	}
}

func TestHub_SendToRiderWhenNotConnected(t *testing.T) {
	h := NewHub()

	if err := h.SendToRider("rider-ghost", Message{Type: KindPong}); err != ErrNotConnected {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}

func TestHub_ShutdownDegradesLateSends(t *testing.T) {
	h := NewHub()

	c := newClient(h, nil, classRider)
	c.riderID = "rider-1"
	h.registerRider("rider-1", c)

	h.Shutdown()

	// A scheduler callback may still fire after shutdown started.
	if err := h.SendToRider("rider-1", Message{Type: KindBookingTaken}); err != ErrNotConnected {
		t.Fatalf("expected ErrNotConnected after shutdown, got %v", err)
	}
}

func TestHub_WatcherRegistriesAreIndependent(t *testing.T) {
	h := NewHub()

	w1 := newClient(h, nil, classWatcher)
	w1.riderID = "rider-1"
	w2 := newClient(h, nil, classWatcher)
	w2.riderID = "rider-1"
	h.registerWatcher("rider-1", w1)
	h.registerWatcher("rider-1", w2)

	tw := newClient(h, nil, classTripWatcher)
	tw.token = "token-1"
	h.registerTripWatcher("token-1", tw)

	h.NotifyWatchers("rider-1", Message{Type: KindOrderUpdate})
	h.NotifyTrip("token-1", Message{Type: KindTripLocationUpdate})

	if len(w1.send) != 1 || len(w2.send) != 1 {
		t.Errorf("both watchers must receive the message, got %d and %d", len(w1.send), len(w2.send))
	}
	if len(tw.send) != 1 {
		t.Errorf("trip watcher must receive the message, got %d", len(tw.send))
	}

	h.unregister(w1)
	h.NotifyWatchers("rider-1", Message{Type: KindOrderUpdate})
	if len(w1.send) != 1 {
		t.Error("unregistered watcher must not receive further messages")
	}
	if len(w2.send) != 2 {
		t.Errorf("remaining watcher must keep receiving, got %d", len(w2.send))
	}
}

package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
)

// stubEvents records routed frames for assertions.
type stubEvents struct {
	locations []LocationUpdatePayload
	accepts   []string
	declines  []DeclinePayload
	acceptErr error
}

func (s *stubEvents) RiderConnected(ctx context.Context, riderID string, c *Client) error { return nil }
func (s *stubEvents) RiderDisconnected(riderID string)                                    {}
func (s *stubEvents) RiderLocation(ctx context.Context, riderID string, lat, lng float64) {
	s.locations = append(s.locations, LocationUpdatePayload{Lat: lat, Lng: lng})
}
func (s *stubEvents) RiderStatus(ctx context.Context, riderID string, status string) error {
	return nil
}
func (s *stubEvents) RiderOrderUpdate(ctx context.Context, riderID, bookingID, step string) error {
	return nil
}
func (s *stubEvents) RiderAccept(ctx context.Context, riderID, bookingID string, lat, lng float64, hasLocation bool) error {
	s.accepts = append(s.accepts, bookingID)
	return s.acceptErr
}
func (s *stubEvents) RiderDecline(ctx context.Context, riderID, bookingID, reason string) error {
	s.declines = append(s.declines, DeclinePayload{BookingID: bookingID, Reason: reason})
	return nil
}

// nextFrame pops one queued outbound frame, or fails the test.
func nextFrame(t *testing.T, c *Client) Message {
	t.Helper()
	select {
	case data := <-c.send:
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("bad outbound frame: %v", err)
		}
		return msg
	default:
		t.Fatal("expected an outbound frame")
		return Message{}
	}
}

func noFrame(t *testing.T, c *Client) {
	t.Helper()
	select {
	case data := <-c.send:
		t.Fatalf("unexpected outbound frame: %s", data)
	default:
	}
}

func TestHandleMessage_UnknownKindGetsErrorFrame(t *testing.T) {
	c := newClient(NewHub(), nil, classRider)
	c.riderID = "rider-1"
	events := &stubEvents{}

	c.handleMessage([]byte(`{"type":"teleport"}`), events)

	msg := nextFrame(t, c)
	if msg.Type != KindError {
		t.Fatalf("expected error frame, got %s", msg.Type)
	}
}

func TestHandleMessage_MalformedJSONGetsErrorFrame(t *testing.T) {
	c := newClient(NewHub(), nil, classRider)
	events := &stubEvents{}

	c.handleMessage([]byte(`{not json`), events)

	msg := nextFrame(t, c)
	if msg.Type != KindError {
		t.Fatalf("expected error frame, got %s", msg.Type)
	}
}

func TestHandleMessage_PingGetsPong(t *testing.T) {
	c := newClient(NewHub(), nil, classRider)
	events := &stubEvents{}

	c.handleMessage([]byte(`{"type":"ping"}`), events)

	msg := nextFrame(t, c)
	if msg.Type != KindPong {
		t.Fatalf("expected pong, got %s", msg.Type)
	}
}

func TestHandleMessage_RoutesLocationUpdate(t *testing.T) {
	c := newClient(NewHub(), nil, classRider)
	c.riderID = "rider-1"
	events := &stubEvents{}

	c.handleMessage([]byte(`{"type":"location_update","data":{"lat":12.9,"lng":77.58}}`), events)

	if len(events.locations) != 1 {
		t.Fatalf("expected 1 routed heartbeat, got %d", len(events.locations))
	}
	if events.locations[0].Lat != 12.9 || events.locations[0].Lng != 77.58 {
		t.Errorf("coordinates mangled: %+v", events.locations[0])
	}
	noFrame(t, c)
}

func TestHandleMessage_AcceptErrorReportedToRider(t *testing.T) {
	c := newClient(NewHub(), nil, classRider)
	c.riderID = "rider-1"
	events := &stubEvents{acceptErr: errors.New("booking already taken")}

	c.handleMessage([]byte(`{"type":"accept","data":{"booking_id":"booking-1"}}`), events)

	if len(events.accepts) != 1 {
		t.Fatalf("expected accept routed, got %d", len(events.accepts))
	}
	msg := nextFrame(t, c)
	if msg.Type != KindError {
		t.Fatalf("expected error frame for a lost race, got %s", msg.Type)
	}
}

func TestClient_SendAfterCloseReturnsNotConnected(t *testing.T) {
	c := newClient(NewHub(), nil, classRider)
	c.close()

	if err := c.Send(Message{Type: KindPong}); err != ErrNotConnected {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
	if err := c.SendJSON(map[string]string{"k": "v"}); err != ErrNotConnected {
		t.Fatalf("expected ErrNotConnected from SendJSON, got %v", err)
	}
	// close is idempotent.
	c.close()
}

func TestClient_ConcurrentSendAndCloseDoesNotPanic(t *testing.T) {
	c := newClient(NewHub(), nil, classRider)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = c.Send(Message{Type: KindPong})
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.close()
	}()
	wg.Wait()

	if err := c.Send(Message{Type: KindPong}); err != ErrNotConnected {
		t.Fatalf("expected ErrNotConnected after close, got %v", err)
	}
}

func TestHandleMessage_MissingPayloadGetsErrorFrame(t *testing.T) {
	c := newClient(NewHub(), nil, classRider)
	events := &stubEvents{}

	c.handleMessage([]byte(`{"type":"decline"}`), events)

	if len(events.declines) != 0 {
		t.Fatal("payload-less decline must not be routed")
	}
	msg := nextFrame(t, c)
	if msg.Type != KindError {
		t.Fatalf("expected error frame, got %s", msg.Type)
	}
}

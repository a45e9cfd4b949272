package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBufferSize = 256
)

// ErrNotConnected is returned when a rider has no open connection.
var ErrNotConnected = errors.New("rider not connected")

type clientClass int

const (
	classRider clientClass = iota
	classWatcher
	classTripWatcher
)

// Client is one socket connection of any class.
type Client struct {
	hub  *Hub
	conn *websocket.Conn

	// mu guards closed. The send channel is never closed: senders race
	// freely with teardown, so close signals writePump through done
	// instead, and a Send after close just returns ErrNotConnected.
	mu     sync.Mutex
	closed bool
	send   chan []byte
	done   chan struct{}

	class   clientClass
	riderID string // rider connections and customer watchers
	token   string // trip watchers
}

func newClient(hub *Hub, conn *websocket.Conn, class clientClass) *Client {
	return &Client{
		hub:   hub,
		conn:  conn,
		send:  make(chan []byte, sendBufferSize),
		done:  make(chan struct{}),
		class: class,
	}
}

// Send queues a message for delivery. Slow consumers are disconnected
// rather than allowed to block the sender.
func (c *Client) Send(msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return c.enqueue(data)
}

// SendJSON satisfies the presence index's connection handle interface.
func (c *Client) SendJSON(v any) error {
	if msg, ok := v.(Message); ok {
		return c.Send(msg)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.enqueue(data)
}

func (c *Client) enqueue(data []byte) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrNotConnected
	}
	select {
	case c.send <- data:
		c.mu.Unlock()
		return nil
	default:
		c.mu.Unlock()
		c.close()
		return ErrNotConnected
	}
}

// close marks the client dead and wakes writePump. Idempotent, and safe
// against concurrent Sends from broadcasts, replaced connections, and hub
// shutdown.
func (c *Client) close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()
	close(c.done)
}

// readPump reads inbound frames until the connection drops. events is nil
// for watcher classes, whose sockets are read-only from the server's view.
func (c *Client) readPump(events RiderEvents) {
	defer func() {
		c.hub.unregister(c)
		if c.class == classRider && events != nil {
			events.RiderDisconnected(c.riderID)
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("websocket read error: %v", err)
			}
			return
		}

		if c.class != classRider || events == nil {
			continue
		}
		c.handleMessage(raw, events)
	}
}

// handleMessage validates and routes one inbound rider frame. A bad frame
// produces an error reply, never a dropped connection.
func (c *Client) handleMessage(raw []byte, events RiderEvents) {
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		_ = c.Send(ErrorMessage("malformed message"))
		return
	}

	ctx := context.Background()

	switch msg.Type {
	case KindPing:
		_ = c.Send(Message{Type: KindPong})

	case KindLocationUpdate:
		var p LocationUpdatePayload
		if err := decodePayload(msg, &p); err != nil {
			_ = c.Send(ErrorMessage(err.Error()))
			return
		}
		events.RiderLocation(ctx, c.riderID, p.Lat, p.Lng)

	case KindStatusUpdate:
		var p StatusUpdatePayload
		if err := decodePayload(msg, &p); err != nil {
			_ = c.Send(ErrorMessage(err.Error()))
			return
		}
		if err := events.RiderStatus(ctx, c.riderID, p.Status); err != nil {
			_ = c.Send(ErrorMessage(err.Error()))
		}

	case KindOrderUpdate:
		var p OrderUpdatePayload
		if err := decodePayload(msg, &p); err != nil {
			_ = c.Send(ErrorMessage(err.Error()))
			return
		}
		if err := events.RiderOrderUpdate(ctx, c.riderID, p.BookingID, p.Step); err != nil {
			_ = c.Send(ErrorMessage(err.Error()))
		}

	case KindAccept:
		var p AcceptPayload
		if err := decodePayload(msg, &p); err != nil {
			_ = c.Send(ErrorMessage(err.Error()))
			return
		}
		var lat, lng float64
		hasLocation := p.Lat != nil && p.Lng != nil
		if hasLocation {
			lat, lng = *p.Lat, *p.Lng
		}
		if err := events.RiderAccept(ctx, c.riderID, p.BookingID, lat, lng, hasLocation); err != nil {
			_ = c.Send(ErrorMessage(err.Error()))
		}

	case KindDecline:
		var p DeclinePayload
		if err := decodePayload(msg, &p); err != nil {
			_ = c.Send(ErrorMessage(err.Error()))
			return
		}
		if err := events.RiderDecline(ctx, c.riderID, p.BookingID, p.Reason); err != nil {
			_ = c.Send(ErrorMessage(err.Error()))
		}

	default:
		_ = c.Send(ErrorMessage("unknown message type: " + msg.Type))
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case data := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

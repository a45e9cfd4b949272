package realtime

import (
	"context"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// RiderEvents receives validated inbound traffic from rider connections.
// Implemented by the service layer; the hub never reaches into business
// logic directly.
type RiderEvents interface {
	// RiderConnected is called after the socket is registered. The client
	// doubles as the presence index's connection handle.
	RiderConnected(ctx context.Context, riderID string, c *Client) error
	// RiderDisconnected is called exactly once when the socket drops.
	RiderDisconnected(riderID string)
	// RiderLocation routes a heartbeat. Best effort, no error to report
	// back over the wire.
	RiderLocation(ctx context.Context, riderID string, lat, lng float64)
	RiderStatus(ctx context.Context, riderID string, status string) error
	RiderOrderUpdate(ctx context.Context, riderID, bookingID, step string) error
	// RiderAccept routes an acceptance. hasLocation marks the optional
	// rider coordinates as present.
	RiderAccept(ctx context.Context, riderID, bookingID string, lat, lng float64, hasLocation bool) error
	RiderDecline(ctx context.Context, riderID, bookingID, reason string) error
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler upgrades HTTP requests into socket connections of the three
// classes.
type Handler struct {
	hub    *Hub
	events RiderEvents
}

// NewHandler creates a realtime handler over the given hub.
func NewHandler(hub *Hub, events RiderEvents) *Handler {
	return &Handler{hub: hub, events: events}
}

// HandleRider handles GET /ws/rider?rider_id=...
func (h *Handler) HandleRider(c *gin.Context) {
	riderID := c.Query("rider_id")
	if riderID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "rider_id is required"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("websocket upgrade failed: %v", err)
		return
	}

	client := newClient(h.hub, conn, classRider)
	client.riderID = riderID
	h.hub.registerRider(riderID, client)

	if err := h.events.RiderConnected(c.Request.Context(), riderID, client); err != nil {
		_ = client.Send(ErrorMessage(err.Error()))
		client.close()
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump(h.events)
}

// HandleCustomer handles GET /ws/customer?rider_id=... — a customer device
// watching its assigned rider. Multiple devices per rider are allowed.
func (h *Handler) HandleCustomer(c *gin.Context) {
	riderID := c.Query("rider_id")
	if riderID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "rider_id is required"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("websocket upgrade failed: %v", err)
		return
	}

	client := newClient(h.hub, conn, classWatcher)
	client.riderID = riderID
	h.hub.registerWatcher(riderID, client)

	go client.writePump()
	go client.readPump(nil)
}

// HandleTrip handles GET /ws/trip?token=... — anonymous read-only tracking
// of one booking by its unguessable share token.
func (h *Handler) HandleTrip(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "token is required"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("websocket upgrade failed: %v", err)
		return
	}

	client := newClient(h.hub, conn, classTripWatcher)
	client.token = token
	h.hub.registerTripWatcher(token, client)

	go client.writePump()
	go client.readPump(nil)
}

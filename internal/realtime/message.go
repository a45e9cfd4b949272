package realtime

import (
	"encoding/json"
	"fmt"
)

// Message kinds form a closed union per connection class. Unknown kinds are
// rejected with an error frame; the connection stays open.
const (
	// Inbound, rider socket.
	KindLocationUpdate = "location_update"
	KindStatusUpdate   = "status_update"
	KindOrderUpdate    = "order_update"
	KindPing           = "ping"
	KindAccept         = "accept"
	KindDecline        = "decline"

	// Outbound, rider socket.
	KindNewBooking     = "new_booking"
	KindBookingTaken   = "booking_taken"
	KindTipAdded       = "tip_added"
	KindReviewReceived = "review_received"
	KindPong           = "pong"
	KindError          = "error"

	// Outbound, trip-watcher socket.
	KindTripLocationUpdate = "trip_location_update"
)

// Message is the wire envelope for every frame in both directions.
type Message struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// NewMessage builds an outbound message. An unmarshalable payload degrades
// to an empty object; all payloads here are plain structs and maps.
func NewMessage(kind string, payload any) Message {
	data, err := json.Marshal(payload)
	if err != nil {
		data = []byte(`{}`)
	}
	return Message{Type: kind, Data: data}
}

// ErrorMessage builds the error frame sent for bad inbound frames.
func ErrorMessage(detail string) Message {
	return NewMessage(KindError, map[string]string{"error": detail})
}

// LocationUpdatePayload is the body of an inbound location heartbeat.
type LocationUpdatePayload struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// StatusUpdatePayload toggles the rider's availability.
type StatusUpdatePayload struct {
	Status string `json:"status"`
}

// OrderUpdatePayload reports delivery progress on the rider's active booking.
type OrderUpdatePayload struct {
	BookingID string `json:"booking_id"`
	Step      string `json:"step"`
}

// AcceptPayload is an inbound acceptance of an offered booking. The
// coordinates are optional; pointers distinguish absent from (0,0).
type AcceptPayload struct {
	BookingID string   `json:"booking_id"`
	Lat       *float64 `json:"lat,omitempty"`
	Lng       *float64 `json:"lng,omitempty"`
}

// DeclinePayload is an inbound decline of an offered booking.
type DeclinePayload struct {
	BookingID string `json:"booking_id"`
	Reason    string `json:"reason,omitempty"`
}

// decodePayload unmarshals a message body into the kind's payload struct.
func decodePayload(msg Message, v any) error {
	if len(msg.Data) == 0 {
		return fmt.Errorf("%s: missing data", msg.Type)
	}
	if err := json.Unmarshal(msg.Data, v); err != nil {
		return fmt.Errorf("%s: %w", msg.Type, err)
	}
	return nil
}

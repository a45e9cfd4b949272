package domain

import "time"

// BookingStatus represents the lifecycle status of a booking.
type BookingStatus string

const (
	BookingStatusPending    BookingStatus = "PENDING"
	BookingStatusAccepted   BookingStatus = "ACCEPTED"
	BookingStatusInProgress BookingStatus = "IN_PROGRESS"
	BookingStatusCompleted  BookingStatus = "COMPLETED"
	BookingStatusCancelled  BookingStatus = "CANCELLED"
)

// IsTerminal reports whether the status admits no further transitions.
func (s BookingStatus) IsTerminal() bool {
	return s == BookingStatusCompleted || s == BookingStatusCancelled
}

// IsActive reports whether a rider holding a booking in this status is
// considered busy for assignment purposes.
func (s BookingStatus) IsActive() bool {
	return s == BookingStatusAccepted || s == BookingStatusInProgress
}

// VehicleClass represents the vehicle category required for a booking.
type VehicleClass string

const (
	VehicleTwoWheeler   VehicleClass = "TWO_WHEELER"
	VehicleThreeWheeler VehicleClass = "THREE_WHEELER"
	VehicleTruck        VehicleClass = "TRUCK"
)

// Valid reports whether the vehicle class is one of the known values.
func (v VehicleClass) Valid() bool {
	switch v {
	case VehicleTwoWheeler, VehicleThreeWheeler, VehicleTruck:
		return true
	}
	return false
}

// DropPoint is one delivery stop on a booking's itinerary.
type DropPoint struct {
	Address       string  `json:"address"`
	Lat           float64 `json:"lat"`
	Lng           float64 `json:"lng"`
	ReceiverName  string  `json:"receiver_name"`
	ReceiverPhone string  `json:"receiver_phone"`
}

// Booking represents one delivery request, pickup to one-or-more drop points.
type Booking struct {
	ID         string
	CustomerID string
	// RiderID is empty until a rider wins the assignment race. It is set at
	// most once; the only path that clears it again is the post-assignment
	// rollback in the dispatch service.
	RiderID    string
	ShareToken string

	PickupAddress string
	PickupLat     float64
	PickupLng     float64
	Drops         []DropPoint
	VehicleClass  VehicleClass

	Status BookingStatus

	// Dispatch metadata.
	DeclinedBy     []string
	DeclineReasons map[string]string
	BroadcastedAt  time.Time
	BroadcastCount int

	// Economics. QuickFee is a customer-set incentive on top of the base
	// price, bounded 0-100.
	Price    float64
	QuickFee float64

	TipAmount     float64
	ReviewRating  int
	ReviewComment string

	CreatedAt    time.Time
	AcceptedAt   time.Time
	CompletedAt  time.Time
	CancelledAt  time.Time
	CancelledBy  string
	CancelReason string
}

// TotalEarnings is what the assigned rider earns for the booking.
func (b *Booking) TotalEarnings() float64 {
	return b.Price + b.QuickFee
}

// DeclinedByRider reports whether the given rider has declined this booking.
func (b *Booking) DeclinedByRider(riderID string) bool {
	for _, id := range b.DeclinedBy {
		if id == riderID {
			return true
		}
	}
	return false
}

// FirstDrop returns the first drop point. Bookings always carry at least one.
func (b *Booking) FirstDrop() DropPoint {
	if len(b.Drops) == 0 {
		return DropPoint{}
	}
	return b.Drops[0]
}

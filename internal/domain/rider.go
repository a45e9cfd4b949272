package domain

// RiderStatus represents the availability of a rider.
type RiderStatus string

const (
	RiderStatusOnline  RiderStatus = "ONLINE"
	RiderStatusOffline RiderStatus = "OFFLINE"
)

// Rider represents an independent courier.
type Rider struct {
	ID           string
	Name         string
	Phone        string
	VehicleClass VehicleClass
	Status       RiderStatus
	// DeviceToken is the push-notification token used when the rider has no
	// open realtime connection.
	DeviceToken string
	// Preferred area: a fixed point the rider wants to be matched towards
	// instead of their live location. When enabled, eligibility distance is
	// measured from this point to a booking's first drop, not to pickup.
	PreferredAreaEnabled bool
	PreferredLat         float64
	PreferredLng         float64
}

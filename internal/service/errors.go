package service

import "errors"

var (
	// ErrBookingTaken is returned when an accept loses the assignment race.
	// Expected under contention; surfaced as a conflict, never retried.
	ErrBookingTaken = errors.New("booking already taken")

	// ErrRiderBusy is returned when a rider holding an active booking tries
	// to accept another.
	ErrRiderBusy = errors.New("rider already has an active booking")

	// ErrBookingNotActive is returned when progressing or completing a
	// booking that is not in an active state for this rider.
	ErrBookingNotActive = errors.New("booking not active for this rider")

	// ErrBookingNotCancellable is returned when cancelling a terminal booking.
	ErrBookingNotCancellable = errors.New("booking cannot be cancelled in current state")

	// ErrAlreadyTipped is returned when a tip is added twice.
	ErrAlreadyTipped = errors.New("booking already tipped")

	// ErrAlreadyReviewed is returned when a review is added twice.
	ErrAlreadyReviewed = errors.New("booking already reviewed")

	// ErrInvalidCustomerID is returned when customer ID is empty.
	ErrInvalidCustomerID = errors.New("invalid customer id")

	// ErrInvalidBookingID is returned when booking ID is empty.
	ErrInvalidBookingID = errors.New("invalid booking id")

	// ErrInvalidRiderID is returned when rider ID is empty.
	ErrInvalidRiderID = errors.New("invalid rider id")

	// ErrInvalidPickupLocation is returned when pickup coordinates are invalid.
	ErrInvalidPickupLocation = errors.New("invalid pickup location")

	// ErrInvalidDropLocation is returned when a drop point is invalid.
	ErrInvalidDropLocation = errors.New("invalid drop location")

	// ErrInvalidDropCount is returned when a booking has no drops or more
	// than four.
	ErrInvalidDropCount = errors.New("booking must have between 1 and 4 drop points")

	// ErrInvalidVehicleClass is returned for unknown vehicle classes.
	ErrInvalidVehicleClass = errors.New("invalid vehicle class")

	// ErrInvalidQuickFee is returned when the incentive is outside 0-100.
	ErrInvalidQuickFee = errors.New("quick fee must be between 0 and 100")

	// ErrInvalidPrice is returned for a negative base price.
	ErrInvalidPrice = errors.New("invalid price")

	// ErrInvalidLocation is returned when heartbeat coordinates are invalid.
	ErrInvalidLocation = errors.New("invalid location")

	// ErrInvalidTipAmount is returned for a non-positive tip.
	ErrInvalidTipAmount = errors.New("invalid tip amount")

	// ErrInvalidRating is returned for a rating outside 1-5.
	ErrInvalidRating = errors.New("rating must be between 1 and 5")

	// ErrInvalidPhone is returned when a rider phone is empty.
	ErrInvalidPhone = errors.New("invalid phone")

	// ErrInvalidStatus is returned for unknown rider statuses.
	ErrInvalidStatus = errors.New("invalid rider status")
)

func isValidLatitude(lat float64) bool {
	return lat >= -90 && lat <= 90
}

func isValidLongitude(lng float64) bool {
	return lng >= -180 && lng <= 180
}

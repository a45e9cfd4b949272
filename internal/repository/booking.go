package repository

import (
	"context"
	"time"

	"courier/internal/domain"
)

// BookingRepository defines the persistence operations for bookings.
//
// Every guarded transition must be implementable as a single conditional
// update so the at-most-one-acceptance invariant is enforced by the store,
// not by callers holding locks.
type BookingRepository interface {
	// Create persists a new pending booking.
	Create(ctx context.Context, booking *domain.Booking) error

	// GetByID retrieves a booking by ID.
	GetByID(ctx context.Context, id string) (*domain.Booking, error)

	// GetByShareToken retrieves a booking by its anonymous tracking token.
	GetByShareToken(ctx context.Context, token string) (*domain.Booking, error)

	// TryAssign atomically assigns a rider to a booking that is still
	// PENDING and unassigned. Returns ErrConflict when the booking has
	// already been taken or cancelled; the offer was stale.
	TryAssign(ctx context.Context, id, riderID string) (*domain.Booking, error)

	// RecordDecline appends the rider to declined_by (set semantics),
	// stores the optional reason, and bumps the broadcast counter.
	RecordDecline(ctx context.Context, id, riderID, reason string) (*domain.Booking, error)

	// CancelIfPending cancels the booking only if it is still PENDING and
	// unassigned at write time. Returns false when the guard fails; a
	// concurrent acceptance won.
	CancelIfPending(ctx context.Context, id, actor, reason string) (bool, error)

	// Unassign resets an assigned booking to PENDING. Rollback path used
	// only when post-assignment validation of the rider fails.
	Unassign(ctx context.Context, id string) (*domain.Booking, error)

	// SetInProgress moves an ACCEPTED booking to IN_PROGRESS for its
	// assigned rider.
	SetInProgress(ctx context.Context, id, riderID string) (*domain.Booking, error)

	// Complete marks an ACCEPTED or IN_PROGRESS booking COMPLETED.
	Complete(ctx context.Context, id, riderID string) (*domain.Booking, error)

	// Cancel cancels a booking from any non-terminal state. Explicit
	// customer/rider cancel path.
	Cancel(ctx context.Context, id, actor, reason string) (*domain.Booking, error)

	// MarkBroadcast records a broadcast generation: sets broadcasted_at and
	// increments broadcast_count.
	MarkBroadcast(ctx context.Context, id string) error

	// FindAvailableFor returns PENDING, unassigned bookings of the given
	// class created within the freshness window and not declined by the
	// rider. Pull-side complement to push broadcast.
	FindAvailableFor(ctx context.Context, riderID string, class domain.VehicleClass, window time.Duration) ([]*domain.Booking, error)

	// FindPendingByClass returns the fresh PENDING pool for a vehicle
	// class; distance filtering happens in the caller with live coords.
	FindPendingByClass(ctx context.Context, class domain.VehicleClass, window time.Duration) ([]*domain.Booking, error)

	// ActiveBookingFor returns the ACCEPTED/IN_PROGRESS booking held by a
	// rider, or ErrNotFound. A rider holds at most one.
	ActiveBookingFor(ctx context.Context, riderID string) (*domain.Booking, error)

	// AddTip records a tip on a completed booking. ErrConflict when the
	// booking is not completed or already tipped.
	AddTip(ctx context.Context, id string, amount float64) (*domain.Booking, error)

	// AddReview records a review on a completed booking. ErrConflict on
	// double review.
	AddReview(ctx context.Context, id string, rating int, comment string) (*domain.Booking, error)
}

package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/lib/pq"

	"courier/internal/domain"
	"courier/internal/repository"
)

// BookingRepository is a PostgreSQL implementation of repository.BookingRepository.
//
// All guarded transitions are single conditional UPDATE statements; the WHERE
// clause carries the precondition and a zero-row result means the caller lost
// the race. No row locks are taken beyond what the UPDATE itself provides.
type BookingRepository struct {
	q Querier
}

// NewBookingRepository creates a new PostgreSQL booking repository.
func NewBookingRepository(db *sql.DB) *BookingRepository {
	return &BookingRepository{q: db}
}

// NewBookingRepositoryWithTx creates a booking repository using a transaction.
func NewBookingRepositoryWithTx(tx *sql.Tx) *BookingRepository {
	return &BookingRepository{q: tx}
}

const bookingColumns = `
	id, customer_id, rider_id, share_token,
	pickup_address, pickup_lat, pickup_lng, drops, vehicle_class,
	status, declined_by, decline_reasons, broadcasted_at, broadcast_count,
	price, quick_fee, tip_amount, review_rating, review_comment,
	created_at, accepted_at, completed_at, cancelled_at, cancelled_by, cancel_reason`

// Create persists a new pending booking.
func (r *BookingRepository) Create(ctx context.Context, b *domain.Booking) error {
	drops, err := json.Marshal(b.Drops)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO bookings (id, customer_id, share_token, pickup_address, pickup_lat, pickup_lng, drops, vehicle_class, status, declined_by, decline_reasons, broadcast_count, price, quick_fee, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, '{}', '{}', 0, $10, $11, $12)
	`

	_, err = r.q.ExecContext(ctx, query,
		b.ID,
		b.CustomerID,
		b.ShareToken,
		b.PickupAddress,
		b.PickupLat,
		b.PickupLng,
		drops,
		b.VehicleClass,
		b.Status,
		b.Price,
		b.QuickFee,
		b.CreatedAt,
	)

	return err
}

// GetByID retrieves a booking by ID.
func (r *BookingRepository) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`
	return r.scanOne(r.q.QueryRowContext(ctx, query, id))
}

// GetByShareToken retrieves a booking by its anonymous tracking token.
func (r *BookingRepository) GetByShareToken(ctx context.Context, token string) (*domain.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE share_token = $1`
	return r.scanOne(r.q.QueryRowContext(ctx, query, token))
}

// TryAssign atomically assigns a rider to a still-pending booking.
// The WHERE clause is the sole race-resolution point for acceptance.
func (r *BookingRepository) TryAssign(ctx context.Context, id, riderID string) (*domain.Booking, error) {
	query := `
		UPDATE bookings
		SET status = $3, rider_id = $2, accepted_at = $4
		WHERE id = $1 AND status = $5 AND rider_id IS NULL
		RETURNING ` + bookingColumns

	b, err := r.scanOne(r.q.QueryRowContext(ctx, query, id, riderID, domain.BookingStatusAccepted, time.Now(), domain.BookingStatusPending))
	if errors.Is(err, repository.ErrNotFound) {
		// Distinguish a missing booking from a lost race.
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, repository.ErrConflict
	}
	return b, err
}

// RecordDecline appends the rider to declined_by with set semantics, stores
// the optional reason, and bumps the broadcast counter.
func (r *BookingRepository) RecordDecline(ctx context.Context, id, riderID, reason string) (*domain.Booking, error) {
	query := `
		UPDATE bookings
		SET declined_by = CASE WHEN $2 = ANY(declined_by) THEN declined_by ELSE array_append(declined_by, $2) END,
		    decline_reasons = CASE WHEN $3 = '' THEN decline_reasons ELSE jsonb_set(decline_reasons, ARRAY[$2]::text[], to_jsonb($3::text)) END,
		    broadcast_count = broadcast_count + 1
		WHERE id = $1
		RETURNING ` + bookingColumns

	return r.scanOne(r.q.QueryRowContext(ctx, query, id, riderID, reason))
}

// CancelIfPending cancels the booking only if it is still pending and
// unassigned at write time. Shared guard for the timeout and the
// decline-threshold policies.
func (r *BookingRepository) CancelIfPending(ctx context.Context, id, actor, reason string) (bool, error) {
	query := `
		UPDATE bookings
		SET status = $4, cancelled_at = $5, cancelled_by = $2, cancel_reason = $3
		WHERE id = $1 AND status = $6 AND rider_id IS NULL
	`

	result, err := r.q.ExecContext(ctx, query, id, actor, reason, domain.BookingStatusCancelled, time.Now(), domain.BookingStatusPending)
	if err != nil {
		return false, err
	}

	return rowsTouched(result)
}

// Unassign resets an accepted booking to pending. Rollback path only.
func (r *BookingRepository) Unassign(ctx context.Context, id string) (*domain.Booking, error) {
	query := `
		UPDATE bookings
		SET status = $2, rider_id = NULL, accepted_at = NULL
		WHERE id = $1 AND status = $3
		RETURNING ` + bookingColumns

	b, err := r.scanOne(r.q.QueryRowContext(ctx, query, id, domain.BookingStatusPending, domain.BookingStatusAccepted))
	if errors.Is(err, repository.ErrNotFound) {
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, repository.ErrConflict
	}
	return b, err
}

// SetInProgress moves an accepted booking to in-progress for its assigned rider.
func (r *BookingRepository) SetInProgress(ctx context.Context, id, riderID string) (*domain.Booking, error) {
	query := `
		UPDATE bookings
		SET status = $3
		WHERE id = $1 AND rider_id = $2 AND status = $4
		RETURNING ` + bookingColumns

	b, err := r.scanOne(r.q.QueryRowContext(ctx, query, id, riderID, domain.BookingStatusInProgress, domain.BookingStatusAccepted))
	if errors.Is(err, repository.ErrNotFound) {
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, repository.ErrConflict
	}
	return b, err
}

// Complete marks an accepted or in-progress booking completed.
func (r *BookingRepository) Complete(ctx context.Context, id, riderID string) (*domain.Booking, error) {
	query := `
		UPDATE bookings
		SET status = $3, completed_at = $4
		WHERE id = $1 AND rider_id = $2 AND status IN ($5, $6)
		RETURNING ` + bookingColumns

	b, err := r.scanOne(r.q.QueryRowContext(ctx, query, id, riderID, domain.BookingStatusCompleted, time.Now(), domain.BookingStatusAccepted, domain.BookingStatusInProgress))
	if errors.Is(err, repository.ErrNotFound) {
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, repository.ErrConflict
	}
	return b, err
}

// Cancel cancels a booking from any non-terminal state.
func (r *BookingRepository) Cancel(ctx context.Context, id, actor, reason string) (*domain.Booking, error) {
	query := `
		UPDATE bookings
		SET status = $4, cancelled_at = $5, cancelled_by = $2, cancel_reason = $3
		WHERE id = $1 AND status NOT IN ($6, $7)
		RETURNING ` + bookingColumns

	b, err := r.scanOne(r.q.QueryRowContext(ctx, query, id, actor, reason, domain.BookingStatusCancelled, time.Now(), domain.BookingStatusCompleted, domain.BookingStatusCancelled))
	if errors.Is(err, repository.ErrNotFound) {
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, repository.ErrConflict
	}
	return b, err
}

// MarkBroadcast records the start of a broadcast generation.
func (r *BookingRepository) MarkBroadcast(ctx context.Context, id string) error {
	query := `UPDATE bookings SET broadcasted_at = $2 WHERE id = $1`
	return execExpectingRow(ctx, r.q, query, id, time.Now())
}

// FindAvailableFor returns fresh pending bookings visible to a polling rider.
func (r *BookingRepository) FindAvailableFor(ctx context.Context, riderID string, class domain.VehicleClass, window time.Duration) ([]*domain.Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE status = $1 AND rider_id IS NULL AND vehicle_class = $2
		  AND NOT ($3 = ANY(declined_by))
		  AND created_at > $4
		ORDER BY created_at DESC
	`

	rows, err := r.q.QueryContext(ctx, query, domain.BookingStatusPending, class, riderID, time.Now().Add(-window))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return r.scanAll(rows)
}

// FindPendingByClass returns the fresh pending pool for a vehicle class.
func (r *BookingRepository) FindPendingByClass(ctx context.Context, class domain.VehicleClass, window time.Duration) ([]*domain.Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE status = $1 AND rider_id IS NULL AND vehicle_class = $2
		  AND created_at > $3
		ORDER BY created_at DESC
	`

	rows, err := r.q.QueryContext(ctx, query, domain.BookingStatusPending, class, time.Now().Add(-window))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return r.scanAll(rows)
}

// ActiveBookingFor returns the active booking held by a rider, if any.
func (r *BookingRepository) ActiveBookingFor(ctx context.Context, riderID string) (*domain.Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE rider_id = $1 AND status IN ($2, $3)
		LIMIT 1
	`

	return r.scanOne(r.q.QueryRowContext(ctx, query, riderID, domain.BookingStatusAccepted, domain.BookingStatusInProgress))
}

// AddTip records a tip on a completed, not-yet-tipped booking.
func (r *BookingRepository) AddTip(ctx context.Context, id string, amount float64) (*domain.Booking, error) {
	query := `
		UPDATE bookings
		SET tip_amount = $2
		WHERE id = $1 AND status = $3 AND tip_amount = 0
		RETURNING ` + bookingColumns

	b, err := r.scanOne(r.q.QueryRowContext(ctx, query, id, amount, domain.BookingStatusCompleted))
	if errors.Is(err, repository.ErrNotFound) {
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, repository.ErrConflict
	}
	return b, err
}

// AddReview records a review on a completed, not-yet-reviewed booking.
func (r *BookingRepository) AddReview(ctx context.Context, id string, rating int, comment string) (*domain.Booking, error) {
	query := `
		UPDATE bookings
		SET review_rating = $2, review_comment = $3
		WHERE id = $1 AND status = $4 AND review_rating = 0
		RETURNING ` + bookingColumns

	b, err := r.scanOne(r.q.QueryRowContext(ctx, query, id, rating, comment, domain.BookingStatusCompleted))
	if errors.Is(err, repository.ErrNotFound) {
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, repository.ErrConflict
	}
	return b, err
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func (r *BookingRepository) scanOne(row rowScanner) (*domain.Booking, error) {
	var b domain.Booking
	var riderID sql.NullString
	var drops, declineReasons []byte
	var broadcastedAt, acceptedAt, completedAt, cancelledAt sql.NullTime
	var cancelledBy, cancelReason, reviewComment sql.NullString

	err := row.Scan(
		&b.ID,
		&b.CustomerID,
		&riderID,
		&b.ShareToken,
		&b.PickupAddress,
		&b.PickupLat,
		&b.PickupLng,
		&drops,
		&b.VehicleClass,
		&b.Status,
		pq.Array(&b.DeclinedBy),
		&declineReasons,
		&broadcastedAt,
		&b.BroadcastCount,
		&b.Price,
		&b.QuickFee,
		&b.TipAmount,
		&b.ReviewRating,
		&reviewComment,
		&b.CreatedAt,
		&acceptedAt,
		&completedAt,
		&cancelledAt,
		&cancelledBy,
		&cancelReason,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	if err := json.Unmarshal(drops, &b.Drops); err != nil {
		return nil, err
	}
	if len(declineReasons) > 0 {
		if err := json.Unmarshal(declineReasons, &b.DeclineReasons); err != nil {
			return nil, err
		}
	}

	if riderID.Valid {
		b.RiderID = riderID.String
	}
	if reviewComment.Valid {
		b.ReviewComment = reviewComment.String
	}
	if broadcastedAt.Valid {
		b.BroadcastedAt = broadcastedAt.Time
	}
	if acceptedAt.Valid {
		b.AcceptedAt = acceptedAt.Time
	}
	if completedAt.Valid {
		b.CompletedAt = completedAt.Time
	}
	if cancelledAt.Valid {
		b.CancelledAt = cancelledAt.Time
	}
	if cancelledBy.Valid {
		b.CancelledBy = cancelledBy.String
	}
	if cancelReason.Valid {
		b.CancelReason = cancelReason.String
	}

	return &b, nil
}

func (r *BookingRepository) scanAll(rows *sql.Rows) ([]*domain.Booking, error) {
	var bookings []*domain.Booking
	for rows.Next() {
		b, err := r.scanOne(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

package service

import (
	"context"
	"errors"
	"log"

	"github.com/google/uuid"

	"courier/internal/domain"
	"courier/internal/realtime"
	"courier/internal/repository"
)

// CreateBookingInput carries the customer-facing booking request.
type CreateBookingInput struct {
	CustomerID    string
	PickupAddress string
	PickupLat     float64
	PickupLng     float64
	Drops         []domain.DropPoint
	VehicleClass  domain.VehicleClass
	Price         float64
	QuickFee      float64
}

// BookingService owns the customer side of the booking lifecycle: creation,
// lookup, cancellation, tips, and reviews. Dispatch decisions live in
// DispatchService; this service hands freshly created bookings over to it.
type BookingService struct {
	bookingRepo repository.BookingRepository
	dispatch    *DispatchService
	registry    ConnectionRegistry
}

// NewBookingService creates a new BookingService.
func NewBookingService(bookingRepo repository.BookingRepository, dispatch *DispatchService, registry ConnectionRegistry) *BookingService {
	return &BookingService{
		bookingRepo: bookingRepo,
		dispatch:    dispatch,
		registry:    registry,
	}
}

// CreateBooking validates and persists a new booking, then triggers the
// first broadcast and arms the auto-cancel timer. The first broadcast runs
// synchronously so a connected nearby rider sees the offer before the
// create call returns.
func (s *BookingService) CreateBooking(ctx context.Context, input CreateBookingInput) (*domain.Booking, error) {
	if input.CustomerID == "" {
		return nil, ErrInvalidCustomerID
	}
	if !isValidLatitude(input.PickupLat) || !isValidLongitude(input.PickupLng) {
		return nil, ErrInvalidPickupLocation
	}
	if len(input.Drops) < 1 || len(input.Drops) > 4 {
		return nil, ErrInvalidDropCount
	}
	for _, d := range input.Drops {
		if !isValidLatitude(d.Lat) || !isValidLongitude(d.Lng) {
			return nil, ErrInvalidDropLocation
		}
	}
	if !input.VehicleClass.Valid() {
		return nil, ErrInvalidVehicleClass
	}
	if input.Price < 0 {
		return nil, ErrInvalidPrice
	}
	if input.QuickFee < 0 || input.QuickFee > 100 {
		return nil, ErrInvalidQuickFee
	}

	booking := &domain.Booking{
		ID:            uuid.New().String(),
		CustomerID:    input.CustomerID,
		ShareToken:    uuid.New().String(),
		PickupAddress: input.PickupAddress,
		PickupLat:     input.PickupLat,
		PickupLng:     input.PickupLng,
		Drops:         input.Drops,
		VehicleClass:  input.VehicleClass,
		Status:        domain.BookingStatusPending,
		Price:         input.Price,
		QuickFee:      input.QuickFee,
	}

	if err := s.bookingRepo.Create(ctx, booking); err != nil {
		return nil, err
	}

	if err := s.dispatch.Broadcast(ctx, booking.ID); err != nil {
		log.Printf("initial broadcast %s: %v", booking.ID, err)
	}
	s.dispatch.ScheduleAutoCancel(booking.ID)

	return booking, nil
}

// GetBooking retrieves a booking by ID.
func (s *BookingService) GetBooking(ctx context.Context, id string) (*domain.Booking, error) {
	if id == "" {
		return nil, ErrInvalidBookingID
	}
	return s.bookingRepo.GetByID(ctx, id)
}

// GetByShareToken retrieves a booking by its anonymous tracking token.
func (s *BookingService) GetByShareToken(ctx context.Context, token string) (*domain.Booking, error) {
	if token == "" {
		return nil, ErrInvalidBookingID
	}
	return s.bookingRepo.GetByShareToken(ctx, token)
}

// CancelBooking is the explicit cancellation path. actor records who asked,
// defaulting to the customer.
func (s *BookingService) CancelBooking(ctx context.Context, id, actor, reason string) (*domain.Booking, error) {
	if actor == "" {
		actor = "customer"
	}
	return s.dispatch.Cancel(ctx, id, actor, reason)
}

// AddTip records a post-completion tip and tells the rider.
func (s *BookingService) AddTip(ctx context.Context, id string, amount float64) (*domain.Booking, error) {
	if id == "" {
		return nil, ErrInvalidBookingID
	}
	if amount <= 0 {
		return nil, ErrInvalidTipAmount
	}

	b, err := s.bookingRepo.AddTip(ctx, id, amount)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrAlreadyTipped
		}
		return nil, err
	}

	if b.RiderID != "" {
		_ = s.registry.SendToRider(b.RiderID, realtime.NewMessage(realtime.KindTipAdded, map[string]any{
			"booking_id": b.ID,
			"amount":     amount,
		}))
	}

	return b, nil
}

// AddReview records a post-completion review and tells the rider.
func (s *BookingService) AddReview(ctx context.Context, id string, rating int, comment string) (*domain.Booking, error) {
	if id == "" {
		return nil, ErrInvalidBookingID
	}
	if rating < 1 || rating > 5 {
		return nil, ErrInvalidRating
	}

	b, err := s.bookingRepo.AddReview(ctx, id, rating, comment)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrAlreadyReviewed
		}
		return nil, err
	}

	if b.RiderID != "" {
		_ = s.registry.SendToRider(b.RiderID, realtime.NewMessage(realtime.KindReviewReceived, map[string]any{
			"booking_id": b.ID,
			"rating":     rating,
			"comment":    comment,
		}))
	}

	return b, nil
}

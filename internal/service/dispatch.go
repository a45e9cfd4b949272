package service

import (
	"context"
	"errors"
	"log"
	"sort"
	"sync"
	"time"

	"courier/internal/config"
	"courier/internal/domain"
	"courier/internal/geo"
	"courier/internal/observability"
	"courier/internal/presence"
	"courier/internal/realtime"
	"courier/internal/redis"
	"courier/internal/repository"
)

// ConnectionRegistry is the fan-out surface the dispatch engine needs from
// the realtime hub. Injected so the engine is testable with a fake.
type ConnectionRegistry interface {
	RiderConnected(riderID string) bool
	SendToRider(riderID string, msg realtime.Message) error
	BroadcastToRiders(msg realtime.Message, exceptRiderID string)
	NotifyWatchers(riderID string, msg realtime.Message)
	NotifyTrip(token string, msg realtime.Message)
}

// Offer is the ephemeral payload pushed to candidate riders. Never persisted.
type Offer struct {
	BookingID       string             `json:"booking_id"`
	PickupAddress   string             `json:"pickup_address"`
	PickupLat       float64            `json:"pickup_lat"`
	PickupLng       float64            `json:"pickup_lng"`
	Drops           []domain.DropPoint `json:"drops"`
	VehicleClass    string             `json:"vehicle_class"`
	Price           float64            `json:"price"`
	QuickFee        float64            `json:"quick_fee"`
	TotalEarnings   float64            `json:"total_earnings"`
	RiderToPickupKm float64            `json:"rider_to_pickup_km"`
	PickupToDropKm  float64            `json:"pickup_to_drop_km"`
}

// AcceptResult is the hydrated outcome of a successful assignment.
type AcceptResult struct {
	Booking  *domain.Booking
	Rider    *domain.Rider
	Customer *domain.Customer
	Fees     domain.FeeBreakdown
	// RiderToPickupKm is only set when the accept carried coordinates.
	RiderToPickupKm float64
}

// NextJob is one entry of the post-completion suggestion list.
type NextJob struct {
	Booking    *domain.Booking
	DistanceKm float64
}

// DispatchService decides which riders see a booking, races their accepts,
// and runs the decline and timeout policies.
type DispatchService struct {
	bookingRepo  repository.BookingRepository
	riderRepo    repository.RiderRepository
	customerRepo repository.CustomerRepository
	presence     *presence.Index
	registry     ConnectionRegistry
	push         PushSender
	fees         FeeCalculator
	scheduler    *Scheduler
	lockStore    redis.LockStoreInterface
	cfg          config.DispatchConfig

	// offered tracks which riders have already seen each booking, per
	// broadcast generation, for the ReofferSeen policy. Entries are dropped
	// on any terminal transition.
	mu      sync.Mutex
	offered map[string]map[string]bool
}

// NewDispatchService creates a new DispatchService.
func NewDispatchService(
	bookingRepo repository.BookingRepository,
	riderRepo repository.RiderRepository,
	customerRepo repository.CustomerRepository,
	presenceIndex *presence.Index,
	registry ConnectionRegistry,
	push PushSender,
	fees FeeCalculator,
	scheduler *Scheduler,
	lockStore redis.LockStoreInterface,
	cfg config.DispatchConfig,
) *DispatchService {
	return &DispatchService{
		bookingRepo:  bookingRepo,
		riderRepo:    riderRepo,
		customerRepo: customerRepo,
		presence:     presenceIndex,
		registry:     registry,
		push:         push,
		fees:         fees,
		scheduler:    scheduler,
		lockStore:    lockStore,
		cfg:          cfg,
		offered:      make(map[string]map[string]bool),
	}
}

// Broadcast computes the eligible rider set for a booking and delivers
// offers: realtime frames for connected riders, batched push notifications
// for the rest. Safe to call repeatedly; a non-pending or stale booking is
// a no-op.
func (s *DispatchService) Broadcast(ctx context.Context, bookingID string) error {
	b, err := s.bookingRepo.GetByID(ctx, bookingID)
	if err != nil {
		return err
	}

	if b.Status != domain.BookingStatusPending || b.RiderID != "" {
		return nil
	}
	// Re-broadcasts stop once the booking is stale; the timeout policy
	// will pick it up.
	if b.BroadcastCount > 0 && time.Since(b.CreatedAt) >= s.cfg.FreshnessWindow {
		return nil
	}

	exclude := make(map[string]bool, len(b.DeclinedBy))
	for _, id := range b.DeclinedBy {
		exclude[id] = true
	}
	if !s.cfg.ReofferSeen {
		s.mu.Lock()
		for id := range s.offered[bookingID] {
			exclude[id] = true
		}
		s.mu.Unlock()
	}

	drop := b.FirstDrop()
	eligible := s.presence.QueryEligible(
		b.VehicleClass,
		presence.Point{Lat: b.PickupLat, Lng: b.PickupLng},
		presence.Point{Lat: drop.Lat, Lng: drop.Lng},
		s.cfg.MaxDistanceKm,
		exclude,
	)

	var offline []string
	for _, e := range eligible {
		s.markOffered(bookingID, e.RiderID)
		if e.Conn == nil {
			offline = append(offline, e.RiderID)
			continue
		}
		offer := s.buildOffer(b, e.Lat, e.Lng)
		if err := e.Conn.SendJSON(realtime.NewMessage(realtime.KindNewBooking, offer)); err != nil {
			log.Printf("offer to rider %s failed: %v", e.RiderID, err)
			continue
		}
		observability.OffersPushed.Inc()
	}

	if len(offline) > 0 {
		s.pushOffers(ctx, b, offline)
	}

	if err := s.bookingRepo.MarkBroadcast(ctx, bookingID); err != nil {
		log.Printf("mark broadcast %s: %v", bookingID, err)
	}

	return nil
}

// pushOffers delivers the offer to riders reachable only by device token.
func (s *DispatchService) pushOffers(ctx context.Context, b *domain.Booking, riderIDs []string) {
	var tokens []string
	for _, id := range riderIDs {
		rider, err := s.riderRepo.GetByID(ctx, id)
		if err != nil || rider.DeviceToken == "" {
			continue
		}
		tokens = append(tokens, rider.DeviceToken)
	}
	if len(tokens) == 0 {
		return
	}

	payload := map[string]any{
		"type":       realtime.KindNewBooking,
		"booking_id": b.ID,
		"pickup":     b.PickupAddress,
	}
	for _, receipt := range s.push.SendBatch(ctx, tokens, payload) {
		if receipt.Error != "" {
			log.Printf("push delivery failed for token %s: %s", receipt.Token, receipt.Error)
			continue
		}
		observability.PushFallbacks.Inc()
	}
}

// ScheduleAutoCancel arms the deferred timeout check for a booking. The
// callback re-checks the pending precondition; a booking accepted in the
// meantime survives.
func (s *DispatchService) ScheduleAutoCancel(bookingID string) {
	s.scheduler.Schedule(bookingID, s.cfg.AutoCancelDelay, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		ok, err := s.bookingRepo.CancelIfPending(ctx, bookingID, "system", "no driver available")
		if err != nil {
			log.Printf("auto-cancel %s: %v", bookingID, err)
			return
		}
		if !ok {
			return
		}
		observability.AutoCancels.Inc()
		s.clearOffered(bookingID)
		s.notifyBookingClosed(ctx, bookingID, "cancelled")
	})
}

// Accept races a rider's acceptance against the booking store. The
// conditional update inside TryAssign is the sole race-resolution point.
// hasLocation marks the optional rider coordinates as present.
func (s *DispatchService) Accept(ctx context.Context, bookingID, riderID string, lat, lng float64, hasLocation bool) (*AcceptResult, error) {
	if bookingID == "" {
		return nil, ErrInvalidBookingID
	}
	if riderID == "" {
		return nil, ErrInvalidRiderID
	}

	if s.lockStore != nil {
		locked, err := s.lockStore.AcquireRiderLock(ctx, riderID, s.cfg.RiderLockTTL)
		if err != nil {
			return nil, err
		}
		if !locked {
			return nil, ErrRiderBusy
		}
		defer func() {
			_ = s.lockStore.ReleaseRiderLock(ctx, riderID)
		}()
	}

	// A rider holds at most one active booking.
	if _, err := s.bookingRepo.ActiveBookingFor(ctx, riderID); err == nil {
		return nil, ErrRiderBusy
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	b, err := s.bookingRepo.TryAssign(ctx, bookingID, riderID)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			observability.AcceptConflicts.Inc()
			return nil, ErrBookingTaken
		}
		return nil, err
	}

	s.scheduler.CancelAll(bookingID)
	s.clearOffered(bookingID)
	observability.Accepts.Inc()

	// UX optimization only: stop showing a taken offer. Correctness never
	// depends on this fan-out reaching anyone.
	s.registry.BroadcastToRiders(realtime.NewMessage(realtime.KindBookingTaken, map[string]string{
		"booking_id": bookingID,
	}), riderID)

	// Post-assignment validation: the rider record must still exist. On
	// failure the booking goes back to the pool.
	rider, err := s.riderRepo.GetByID(ctx, riderID)
	if err != nil {
		if _, unassignErr := s.bookingRepo.Unassign(ctx, bookingID); unassignErr != nil {
			log.Printf("unassign %s after failed rider lookup: %v", bookingID, unassignErr)
		}
		return nil, err
	}

	customer, err := s.customerRepo.GetByID(ctx, b.CustomerID)
	if err != nil {
		log.Printf("customer lookup %s: %v", b.CustomerID, err)
		customer = &domain.Customer{ID: b.CustomerID}
	}

	assigned := realtime.NewMessage(realtime.KindOrderUpdate, map[string]any{
		"booking_id": bookingID,
		"step":       "accepted",
		"rider_id":   riderID,
		"rider_name": rider.Name,
	})
	s.registry.NotifyWatchers(riderID, assigned)
	s.registry.NotifyTrip(b.ShareToken, assigned)

	result := &AcceptResult{
		Booking:  b,
		Rider:    rider,
		Customer: customer,
		Fees:     s.fees.Calc(b.TotalEarnings(), b.VehicleClass),
	}
	if hasLocation {
		result.RiderToPickupKm = geo.DistanceKm(lat, lng, b.PickupLat, b.PickupLng)
	}

	return result, nil
}

// Decline records a rider's rejection, then either cancels the booking
// (threshold reached) or schedules a delayed re-broadcast. Returns the
// distinct decline count.
func (s *DispatchService) Decline(ctx context.Context, bookingID, riderID, reason string) (int, error) {
	if bookingID == "" {
		return 0, ErrInvalidBookingID
	}
	if riderID == "" {
		return 0, ErrInvalidRiderID
	}

	b, err := s.bookingRepo.RecordDecline(ctx, bookingID, riderID, reason)
	if err != nil {
		return 0, err
	}
	observability.Declines.Inc()

	count := len(b.DeclinedBy)
	if count >= s.cfg.DeclineThreshold && b.Status == domain.BookingStatusPending && b.RiderID == "" {
		// Guarded, never unconditional: a concurrent acceptance wins.
		ok, err := s.bookingRepo.CancelIfPending(ctx, bookingID, "system", "no driver available - multiple declines")
		if err != nil {
			return count, err
		}
		if ok {
			observability.ThresholdCancels.Inc()
			s.scheduler.CancelAll(bookingID)
			s.clearOffered(bookingID)
			s.notifyBookingClosed(ctx, bookingID, "cancelled")
		}
		return count, nil
	}

	// Let the declining rider's card disappear before the booking can
	// reappear for others.
	s.scheduler.Schedule(bookingID, s.cfg.RebroadcastDelay, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.Broadcast(ctx, bookingID); err != nil {
			log.Printf("re-broadcast %s: %v", bookingID, err)
		}
	})

	return count, nil
}

// StartTrip moves an accepted booking to in-progress.
func (s *DispatchService) StartTrip(ctx context.Context, bookingID, riderID string) (*domain.Booking, error) {
	if bookingID == "" {
		return nil, ErrInvalidBookingID
	}
	if riderID == "" {
		return nil, ErrInvalidRiderID
	}

	b, err := s.bookingRepo.SetInProgress(ctx, bookingID, riderID)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrBookingNotActive
		}
		return nil, err
	}

	progress := realtime.NewMessage(realtime.KindOrderUpdate, map[string]any{
		"booking_id": bookingID,
		"step":       "in_progress",
	})
	s.registry.NotifyWatchers(riderID, progress)
	s.registry.NotifyTrip(b.ShareToken, progress)

	return b, nil
}

// Complete marks a booking finished. When the rider's location is supplied
// it also returns a distance-ranked list of other pending bookings nearby,
// a suggestion list, never an assignment.
func (s *DispatchService) Complete(ctx context.Context, bookingID, riderID string, lat, lng float64, hasLocation bool) (*domain.Booking, []NextJob, error) {
	if bookingID == "" {
		return nil, nil, ErrInvalidBookingID
	}
	if riderID == "" {
		return nil, nil, ErrInvalidRiderID
	}

	b, err := s.bookingRepo.Complete(ctx, bookingID, riderID)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, nil, ErrBookingNotActive
		}
		return nil, nil, err
	}

	done := realtime.NewMessage(realtime.KindOrderUpdate, map[string]any{
		"booking_id": bookingID,
		"step":       "completed",
	})
	s.registry.NotifyWatchers(riderID, done)
	s.registry.NotifyTrip(b.ShareToken, done)

	if !hasLocation {
		return b, nil, nil
	}

	next, err := s.nextJobs(ctx, b.VehicleClass, lat, lng)
	if err != nil {
		log.Printf("next-job suggestions after %s: %v", bookingID, err)
		return b, nil, nil
	}
	return b, next, nil
}

// Cancel is the explicit cancellation path, valid from any non-terminal
// state.
func (s *DispatchService) Cancel(ctx context.Context, bookingID, actor, reason string) (*domain.Booking, error) {
	if bookingID == "" {
		return nil, ErrInvalidBookingID
	}

	b, err := s.bookingRepo.Cancel(ctx, bookingID, actor, reason)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrBookingNotCancellable
		}
		return nil, err
	}

	s.scheduler.CancelAll(bookingID)
	s.clearOffered(bookingID)

	if b.RiderID != "" {
		_ = s.registry.SendToRider(b.RiderID, realtime.NewMessage(realtime.KindOrderUpdate, map[string]any{
			"booking_id": bookingID,
			"step":       "cancelled",
			"reason":     reason,
		}))
		s.notifyBookingClosed(ctx, bookingID, "cancelled")
	}

	return b, nil
}

// Available is the pull-side listing: the same filtered view a push
// broadcast would have delivered, for riders that poll.
func (s *DispatchService) Available(ctx context.Context, riderID string, lat, lng float64) ([]NextJob, error) {
	if riderID == "" {
		return nil, ErrInvalidRiderID
	}
	if !isValidLatitude(lat) || !isValidLongitude(lng) {
		return nil, ErrInvalidLocation
	}

	rider, err := s.riderRepo.GetByID(ctx, riderID)
	if err != nil {
		return nil, err
	}

	bookings, err := s.bookingRepo.FindAvailableFor(ctx, riderID, rider.VehicleClass, s.cfg.FreshnessWindow)
	if err != nil {
		return nil, err
	}

	return rankByDistance(bookings, lat, lng, s.cfg.MaxDistanceKm), nil
}

// nextJobs builds the post-completion suggestion list.
func (s *DispatchService) nextJobs(ctx context.Context, class domain.VehicleClass, lat, lng float64) ([]NextJob, error) {
	bookings, err := s.bookingRepo.FindPendingByClass(ctx, class, s.cfg.FreshnessWindow)
	if err != nil {
		return nil, err
	}
	return rankByDistance(bookings, lat, lng, s.cfg.MaxDistanceKm), nil
}

func rankByDistance(bookings []*domain.Booking, lat, lng, maxKm float64) []NextJob {
	jobs := make([]NextJob, 0, len(bookings))
	for _, b := range bookings {
		d := geo.DistanceKm(lat, lng, b.PickupLat, b.PickupLng)
		if d > maxKm {
			continue
		}
		jobs = append(jobs, NextJob{Booking: b, DistanceKm: d})
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].DistanceKm < jobs[j].DistanceKm })
	return jobs
}

func (s *DispatchService) buildOffer(b *domain.Booking, riderLat, riderLng float64) Offer {
	drop := b.FirstDrop()
	return Offer{
		BookingID:       b.ID,
		PickupAddress:   b.PickupAddress,
		PickupLat:       b.PickupLat,
		PickupLng:       b.PickupLng,
		Drops:           b.Drops,
		VehicleClass:    string(b.VehicleClass),
		Price:           b.Price,
		QuickFee:        b.QuickFee,
		TotalEarnings:   b.TotalEarnings(),
		RiderToPickupKm: geo.DistanceKm(riderLat, riderLng, b.PickupLat, b.PickupLng),
		PickupToDropKm:  geo.DistanceKm(b.PickupLat, b.PickupLng, drop.Lat, drop.Lng),
	}
}

// notifyBookingClosed tells trip watchers the booking reached a terminal
// state. Best effort.
func (s *DispatchService) notifyBookingClosed(ctx context.Context, bookingID, step string) {
	b, err := s.bookingRepo.GetByID(ctx, bookingID)
	if err != nil {
		return
	}
	s.registry.NotifyTrip(b.ShareToken, realtime.NewMessage(realtime.KindOrderUpdate, map[string]any{
		"booking_id": bookingID,
		"step":       step,
		"reason":     b.CancelReason,
	}))
}

func (s *DispatchService) markOffered(bookingID, riderID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.offered[bookingID] == nil {
		s.offered[bookingID] = make(map[string]bool)
	}
	s.offered[bookingID][riderID] = true
}

func (s *DispatchService) clearOffered(bookingID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.offered, bookingID)
}

package service

import (
	"context"
	"errors"
	"log"
	"time"

	"courier/internal/domain"
	"courier/internal/observability"
	"courier/internal/presence"
	"courier/internal/realtime"
	"courier/internal/redis"
	"courier/internal/repository"
)

// RealtimeGateway adapts inbound socket traffic onto the service layer. It
// is the single implementation of the realtime event interface: connection
// lifecycle feeds the presence index, heartbeats fan out to watchers and
// trip watchers, and accept/decline route into dispatch.
type RealtimeGateway struct {
	riderRepo   repository.RiderRepository
	bookingRepo repository.BookingRepository
	riders      *RiderService
	dispatch    *DispatchService
	registry    ConnectionRegistry
	presence    *presence.Index
	locations   redis.LocationStoreInterface
}

// NewRealtimeGateway creates the gateway.
func NewRealtimeGateway(
	riderRepo repository.RiderRepository,
	bookingRepo repository.BookingRepository,
	riders *RiderService,
	dispatch *DispatchService,
	registry ConnectionRegistry,
	presenceIndex *presence.Index,
	locations redis.LocationStoreInterface,
) *RealtimeGateway {
	return &RealtimeGateway{
		riderRepo:   riderRepo,
		bookingRepo: bookingRepo,
		riders:      riders,
		dispatch:    dispatch,
		registry:    registry,
		presence:    presenceIndex,
		locations:   locations,
	}
}

var _ realtime.RiderEvents = (*RealtimeGateway)(nil)

// RiderConnected validates the rider, marks them online, and seeds the
// presence entry with the connection handle. Location arrives with the
// first heartbeat.
func (g *RealtimeGateway) RiderConnected(ctx context.Context, riderID string, c *realtime.Client) error {
	rider, err := g.riderRepo.GetByID(ctx, riderID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidRiderID
		}
		return err
	}

	if err := g.riderRepo.UpdateStatus(ctx, riderID, domain.RiderStatusOnline); err != nil {
		log.Printf("mark rider %s online: %v", riderID, err)
	}

	entry := presence.Entry{
		RiderID:      riderID,
		VehicleClass: rider.VehicleClass,
		Conn:         c,
	}
	if rider.PreferredAreaEnabled {
		entry.Preferred = &presence.Point{Lat: rider.PreferredLat, Lng: rider.PreferredLng}
	}
	if prev, ok := g.presence.Get(riderID); ok {
		// Keep the last-known coordinates across a reconnect.
		entry.Lat = prev.Lat
		entry.Lng = prev.Lng
	}
	g.presence.Upsert(entry)
	observability.RidersOnline.Set(float64(g.presence.Size()))

	return nil
}

// RiderDisconnected tears down a dropped rider: the presence entry, the
// persisted status, and the geo mirror. Storage writes are best effort.
func (g *RealtimeGateway) RiderDisconnected(riderID string) {
	// A reconnect replaces the entry before the old socket's teardown runs;
	// only tear down when no current connection exists.
	if g.registry.RiderConnected(riderID) {
		return
	}
	g.presence.Remove(riderID)
	observability.RidersOnline.Set(float64(g.presence.Size()))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := g.riderRepo.UpdateStatus(ctx, riderID, domain.RiderStatusOffline); err != nil {
		log.Printf("mark rider %s offline: %v", riderID, err)
	}
	if g.locations != nil {
		if err := g.locations.RemoveLocation(ctx, riderID); err != nil {
			log.Printf("remove location mirror for rider %s: %v", riderID, err)
		}
	}
}

// RiderLocation routes a socket heartbeat: presence refresh, geo mirror,
// and fan-out to customer watchers and trip watchers of the rider's active
// booking.
func (g *RealtimeGateway) RiderLocation(ctx context.Context, riderID string, lat, lng float64) {
	if !isValidLatitude(lat) || !isValidLongitude(lng) {
		return
	}

	g.presence.UpdateLocation(riderID, lat, lng)

	if g.locations != nil {
		if err := g.locations.UpdateLocation(ctx, riderID, lat, lng); err != nil {
			log.Printf("location mirror for rider %s: %v", riderID, err)
		}
	}

	update := realtime.NewMessage(realtime.KindLocationUpdate, map[string]any{
		"rider_id": riderID,
		"lat":      lat,
		"lng":      lng,
	})
	g.registry.NotifyWatchers(riderID, update)

	if b, err := g.bookingRepo.ActiveBookingFor(ctx, riderID); err == nil {
		g.registry.NotifyTrip(b.ShareToken, realtime.NewMessage(realtime.KindTripLocationUpdate, map[string]any{
			"booking_id": b.ID,
			"lat":        lat,
			"lng":        lng,
		}))
	}
}

// RiderStatus routes an inbound availability toggle.
func (g *RealtimeGateway) RiderStatus(ctx context.Context, riderID string, status string) error {
	return g.riders.SetStatus(ctx, riderID, domain.RiderStatus(status))
}

// RiderOrderUpdate routes delivery-progress frames to the customer side.
// Steps here are informational waypoints; state transitions go through the
// REST lifecycle endpoints.
func (g *RealtimeGateway) RiderOrderUpdate(ctx context.Context, riderID, bookingID, step string) error {
	if bookingID == "" {
		return ErrInvalidBookingID
	}

	b, err := g.bookingRepo.GetByID(ctx, bookingID)
	if err != nil {
		return err
	}
	if b.RiderID != riderID || !b.Status.IsActive() {
		return ErrBookingNotActive
	}

	update := realtime.NewMessage(realtime.KindOrderUpdate, map[string]any{
		"booking_id": bookingID,
		"step":       step,
	})
	g.registry.NotifyWatchers(riderID, update)
	g.registry.NotifyTrip(b.ShareToken, update)
	return nil
}

// RiderAccept routes an inbound acceptance into the dispatch race.
func (g *RealtimeGateway) RiderAccept(ctx context.Context, riderID, bookingID string, lat, lng float64, hasLocation bool) error {
	result, err := g.dispatch.Accept(ctx, bookingID, riderID, lat, lng, hasLocation)
	if err != nil {
		return err
	}

	// Confirm to the accepting rider with the full hydrated assignment.
	_ = g.registry.SendToRider(riderID, realtime.NewMessage(realtime.KindOrderUpdate, map[string]any{
		"booking_id":     bookingID,
		"step":           "assigned",
		"pickup_address": result.Booking.PickupAddress,
		"drops":          result.Booking.Drops,
		"customer_name":  result.Customer.Name,
		"total_earnings": result.Booking.TotalEarnings(),
		"rider_earnings": result.Fees.RiderEarnings,
	}))
	return nil
}

// RiderDecline routes an inbound decline.
func (g *RealtimeGateway) RiderDecline(ctx context.Context, riderID, bookingID, reason string) error {
	_, err := g.dispatch.Decline(ctx, bookingID, riderID, reason)
	return err
}

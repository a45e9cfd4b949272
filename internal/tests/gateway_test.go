package tests

import (
	"context"
	"errors"
	"testing"

	"courier/internal/domain"
	"courier/internal/presence"
	"courier/internal/realtime"
	"courier/internal/service"
)

func newGatewayFixture() (*dispatchFixture, *MockLocationStore, *service.RealtimeGateway) {
	f := newDispatchFixture(testDispatchConfig())
	locations := NewMockLocationStore()
	riders := service.NewRiderService(f.riderRepo, f.presence, locations)
	gateway := service.NewRealtimeGateway(f.riderRepo, f.bookingRepo, riders, f.dispatch, f.registry, f.presence, locations)
	return f, locations, gateway
}

func TestGateway_HeartbeatFansOutToWatchersAndTrip(t *testing.T) {
	f, locations, gateway := newGatewayFixture()
	ctx := context.Background()

	f.riderRepo.AddRider(&domain.Rider{ID: "rider-1", VehicleClass: domain.VehicleTruck})

	active := pendingBooking("booking-1", domain.VehicleTruck)
	active.Status = domain.BookingStatusInProgress
	active.RiderID = "rider-1"
	f.bookingRepo.AddBooking(active)

	gateway.RiderLocation(ctx, "rider-1", 12.91, 77.59)

	if !locations.HasLocation("rider-1") {
		t.Error("expected heartbeat mirrored to the geo store")
	}

	watcherMsgs := f.registry.WatcherMessages["rider-1"]
	if len(watcherMsgs) != 1 || watcherMsgs[0].Type != realtime.KindLocationUpdate {
		t.Fatalf("expected one location_update to watchers, got %v", watcherMsgs)
	}

	tripMsgs := f.registry.TripMessages["token-booking-1"]
	if len(tripMsgs) != 1 || tripMsgs[0].Type != realtime.KindTripLocationUpdate {
		t.Fatalf("expected one trip_location_update, got %v", tripMsgs)
	}
}

func TestGateway_HeartbeatIgnoresInvalidCoordinates(t *testing.T) {
	f, locations, gateway := newGatewayFixture()
	ctx := context.Background()

	gateway.RiderLocation(ctx, "rider-1", 95, 77.59)

	if locations.HasLocation("rider-1") {
		t.Error("invalid coordinates must not reach the geo store")
	}
	if len(f.registry.WatcherMessages["rider-1"]) != 0 {
		t.Error("invalid coordinates must not fan out")
	}
}

func TestGateway_DisconnectTearsDownRiderState(t *testing.T) {
	f, locations, gateway := newGatewayFixture()
	ctx := context.Background()

	f.riderRepo.AddRider(&domain.Rider{ID: "rider-1", VehicleClass: domain.VehicleTruck, Status: domain.RiderStatusOnline})
	f.presence.Upsert(presence.Entry{RiderID: "rider-1", VehicleClass: domain.VehicleTruck, Lat: 12.91, Lng: 77.59})
	_ = locations.UpdateLocation(ctx, "rider-1", 12.91, 77.59)

	gateway.RiderDisconnected("rider-1")

	if _, ok := f.presence.Get("rider-1"); ok {
		t.Error("presence entry must be dropped on disconnect")
	}
	if got := f.riderRepo.GetRider("rider-1").Status; got != domain.RiderStatusOffline {
		t.Errorf("expected rider marked OFFLINE, got %s", got)
	}
	if locations.HasLocation("rider-1") {
		t.Error("geo mirror entry must be removed on disconnect")
	}
}

func TestGateway_DisconnectSkipsTeardownAfterReconnect(t *testing.T) {
	f, locations, gateway := newGatewayFixture()
	ctx := context.Background()

	f.riderRepo.AddRider(&domain.Rider{ID: "rider-1", VehicleClass: domain.VehicleTruck, Status: domain.RiderStatusOnline})
	f.presence.Upsert(presence.Entry{RiderID: "rider-1", VehicleClass: domain.VehicleTruck, Lat: 12.91, Lng: 77.59})
	_ = locations.UpdateLocation(ctx, "rider-1", 12.91, 77.59)

	// The replacement connection registered before the old socket's
	// teardown ran.
	f.registry.SetConnected("rider-1", true)

	gateway.RiderDisconnected("rider-1")

	if _, ok := f.presence.Get("rider-1"); !ok {
		t.Error("presence entry must survive a reconnect")
	}
	if got := f.riderRepo.GetRider("rider-1").Status; got != domain.RiderStatusOnline {
		t.Errorf("expected rider to stay ONLINE, got %s", got)
	}
	if !locations.HasLocation("rider-1") {
		t.Error("geo mirror entry must survive a reconnect")
	}
}

func TestGateway_OrderUpdateRequiresActiveAssignment(t *testing.T) {
	f, _, gateway := newGatewayFixture()
	ctx := context.Background()

	b := pendingBooking("booking-1", domain.VehicleTruck)
	b.Status = domain.BookingStatusAccepted
	b.RiderID = "rider-1"
	f.bookingRepo.AddBooking(b)

	if err := gateway.RiderOrderUpdate(ctx, "rider-2", "booking-1", "picked_up"); !errors.Is(err, service.ErrBookingNotActive) {
		t.Fatalf("expected ErrBookingNotActive for a stranger, got %v", err)
	}

	if err := gateway.RiderOrderUpdate(ctx, "rider-1", "booking-1", "picked_up"); err != nil {
		t.Fatalf("order update failed: %v", err)
	}

	if f.registry.TripMessageCount("token-booking-1") != 1 {
		t.Error("expected trip watchers to receive the progress step")
	}
}

func TestGateway_StatusUpdateValidated(t *testing.T) {
	f, _, gateway := newGatewayFixture()
	ctx := context.Background()

	f.riderRepo.AddRider(&domain.Rider{ID: "rider-1", Status: domain.RiderStatusOnline})

	if err := gateway.RiderStatus(ctx, "rider-1", "NAPPING"); !errors.Is(err, service.ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}

	if err := gateway.RiderStatus(ctx, "rider-1", "OFFLINE"); err != nil {
		t.Fatalf("offline failed: %v", err)
	}
	if got := f.riderRepo.GetRider("rider-1").Status; got != domain.RiderStatusOffline {
		t.Errorf("expected OFFLINE, got %s", got)
	}
}

func TestGateway_DeclineRoutesToDispatch(t *testing.T) {
	f, _, gateway := newGatewayFixture()
	ctx := context.Background()

	f.bookingRepo.AddBooking(pendingBooking("booking-1", domain.VehicleTruck))

	if err := gateway.RiderDecline(ctx, "rider-1", "booking-1", "too far"); err != nil {
		t.Fatalf("decline failed: %v", err)
	}

	b := f.bookingRepo.GetBooking("booking-1")
	if len(b.DeclinedBy) != 1 || b.DeclinedBy[0] != "rider-1" {
		t.Errorf("expected rider-1 recorded as decliner, got %v", b.DeclinedBy)
	}
}

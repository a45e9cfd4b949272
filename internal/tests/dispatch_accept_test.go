package tests

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"courier/internal/config"
	"courier/internal/domain"
	"courier/internal/presence"
	"courier/internal/service"
)

func testDispatchConfig() config.DispatchConfig {
	return config.DispatchConfig{
		MaxDistanceKm:    5.0,
		FreshnessWindow:  5 * time.Minute,
		AutoCancelDelay:  time.Hour,
		RebroadcastDelay: time.Hour,
		DeclineThreshold: 5,
		ReofferSeen:      true,
		RiderLockTTL:     time.Second,
	}
}

type dispatchFixture struct {
	bookingRepo  *MockBookingRepository
	riderRepo    *MockRiderRepository
	customerRepo *MockCustomerRepository
	presence     *presence.Index
	registry     *FakeRegistry
	push         *FakePushSender
	locks        *MockLockStore
	scheduler    *service.Scheduler
	dispatch     *service.DispatchService
}

func newDispatchFixture(cfg config.DispatchConfig) *dispatchFixture {
	f := &dispatchFixture{
		bookingRepo:  NewMockBookingRepository(),
		riderRepo:    NewMockRiderRepository(),
		customerRepo: NewMockCustomerRepository(),
		presence:     presence.NewIndex(),
		registry:     NewFakeRegistry(),
		push:         &FakePushSender{},
		locks:        NewMockLockStore(),
		scheduler:    service.NewScheduler(),
	}
	f.dispatch = service.NewDispatchService(
		f.bookingRepo, f.riderRepo, f.customerRepo,
		f.presence, f.registry, f.push,
		service.NewFeeService(), f.scheduler, f.locks, cfg,
	)
	return f
}

func pendingBooking(id string, class domain.VehicleClass) *domain.Booking {
	return &domain.Booking{
		ID:            id,
		CustomerID:    "customer-1",
		ShareToken:    "token-" + id,
		PickupAddress: "12 MG Road",
		PickupLat:     12.90,
		PickupLng:     77.58,
		Drops: []domain.DropPoint{
			{Address: "4 Church Street", Lat: 12.92, Lng: 77.60},
		},
		VehicleClass: class,
		Status:       domain.BookingStatusPending,
		Price:        250,
		QuickFee:     30,
		CreatedAt:    time.Now(),
	}
}

func TestAccept_SingleWinnerUnderContention(t *testing.T) {
	ctx := context.Background()
	f := newDispatchFixture(testDispatchConfig())

	f.bookingRepo.AddBooking(pendingBooking("booking-1", domain.VehicleTruck))
	f.customerRepo.AddCustomer(&domain.Customer{ID: "customer-1", Name: "Asha"})

	const riders = 10
	for i := 0; i < riders; i++ {
		f.riderRepo.AddRider(&domain.Rider{
			ID:           fmt.Sprintf("rider-%d", i),
			Name:         fmt.Sprintf("Rider %d", i),
			VehicleClass: domain.VehicleTruck,
			Status:       domain.RiderStatusOnline,
		})
	}

	var wg sync.WaitGroup
	results := make(chan error, riders)
	for i := 0; i < riders; i++ {
		wg.Add(1)
		go func(riderID string) {
			defer wg.Done()
			_, err := f.dispatch.Accept(ctx, "booking-1", riderID, 0, 0, false)
			results <- err
		}(fmt.Sprintf("rider-%d", i))
	}
	wg.Wait()
	close(results)

	var wins, conflicts int
	for err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, service.ErrBookingTaken):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if wins != 1 {
		t.Errorf("expected exactly 1 winner, got %d", wins)
	}
	if conflicts != riders-1 {
		t.Errorf("expected %d conflicts, got %d", riders-1, conflicts)
	}

	b := f.bookingRepo.GetBooking("booking-1")
	if b.Status != domain.BookingStatusAccepted {
		t.Errorf("expected ACCEPTED, got %s", b.Status)
	}
	if b.RiderID == "" {
		t.Error("expected a rider to be assigned")
	}
	if f.registry.BroadcastCount() != 1 {
		t.Errorf("expected 1 booking_taken broadcast, got %d", f.registry.BroadcastCount())
	}
}

func TestAccept_RiderBusyRejected(t *testing.T) {
	ctx := context.Background()
	f := newDispatchFixture(testDispatchConfig())

	f.riderRepo.AddRider(&domain.Rider{ID: "rider-1", VehicleClass: domain.VehicleTruck})

	active := pendingBooking("booking-active", domain.VehicleTruck)
	active.Status = domain.BookingStatusAccepted
	active.RiderID = "rider-1"
	f.bookingRepo.AddBooking(active)
	f.bookingRepo.AddBooking(pendingBooking("booking-2", domain.VehicleTruck))

	_, err := f.dispatch.Accept(ctx, "booking-2", "rider-1", 0, 0, false)
	if !errors.Is(err, service.ErrRiderBusy) {
		t.Fatalf("expected ErrRiderBusy, got %v", err)
	}

	b := f.bookingRepo.GetBooking("booking-2")
	if b.Status != domain.BookingStatusPending || b.RiderID != "" {
		t.Errorf("busy rider must not take the booking: status=%s rider=%q", b.Status, b.RiderID)
	}
}

func TestAccept_LockContentionRejected(t *testing.T) {
	ctx := context.Background()
	f := newDispatchFixture(testDispatchConfig())

	f.riderRepo.AddRider(&domain.Rider{ID: "rider-1", VehicleClass: domain.VehicleTruck})
	f.bookingRepo.AddBooking(pendingBooking("booking-1", domain.VehicleTruck))

	f.locks.ForceAcquireFailure = true
	_, err := f.dispatch.Accept(ctx, "booking-1", "rider-1", 0, 0, false)
	if !errors.Is(err, service.ErrRiderBusy) {
		t.Fatalf("expected ErrRiderBusy on lock contention, got %v", err)
	}
}

func TestAccept_RollbackWhenRiderLookupFails(t *testing.T) {
	ctx := context.Background()
	f := newDispatchFixture(testDispatchConfig())

	f.bookingRepo.AddBooking(pendingBooking("booking-1", domain.VehicleTruck))
	// rider-1 never registered: assignment must roll back.

	_, err := f.dispatch.Accept(ctx, "booking-1", "rider-1", 0, 0, false)
	if err == nil {
		t.Fatal("expected an error for an unknown rider")
	}

	b := f.bookingRepo.GetBooking("booking-1")
	if b.Status != domain.BookingStatusPending || b.RiderID != "" {
		t.Errorf("expected booking back in the pool: status=%s rider=%q", b.Status, b.RiderID)
	}
}

func TestAccept_HydratesFeesAndCustomer(t *testing.T) {
	ctx := context.Background()
	f := newDispatchFixture(testDispatchConfig())

	f.bookingRepo.AddBooking(pendingBooking("booking-1", domain.VehicleTruck))
	f.riderRepo.AddRider(&domain.Rider{ID: "rider-1", Name: "Manoj", VehicleClass: domain.VehicleTruck})
	f.customerRepo.AddCustomer(&domain.Customer{ID: "customer-1", Name: "Asha", Phone: "9000000001"})

	result, err := f.dispatch.Accept(ctx, "booking-1", "rider-1", 12.91, 77.58, true)
	if err != nil {
		t.Fatalf("accept failed: %v", err)
	}

	// Price 250 + quick fee 30 at the 20% truck rate.
	total := 280.0
	wantPlatform := total * 0.20
	wantGST := wantPlatform * 0.18
	if result.Fees.PlatformFee != wantPlatform {
		t.Errorf("platform fee: got %.2f want %.2f", result.Fees.PlatformFee, wantPlatform)
	}
	if result.Fees.GST != wantGST {
		t.Errorf("gst: got %.2f want %.2f", result.Fees.GST, wantGST)
	}
	if got := result.Fees.RiderEarnings; got != total-wantPlatform-wantGST {
		t.Errorf("rider earnings: got %.2f", got)
	}
	if result.Customer.Name != "Asha" {
		t.Errorf("expected hydrated customer, got %q", result.Customer.Name)
	}
	if result.RiderToPickupKm <= 0 || result.RiderToPickupKm > 2 {
		t.Errorf("rider-to-pickup distance out of range: %.3f", result.RiderToPickupKm)
	}

	// Watchers of the winning rider and trip watchers learn about the
	// assignment.
	if len(f.registry.WatcherMessages["rider-1"]) == 0 {
		t.Error("expected watcher notification")
	}
	if f.registry.TripMessageCount("token-booking-1") == 0 {
		t.Error("expected trip watcher notification")
	}
}

func TestAccept_LocationPresenceIsExplicit(t *testing.T) {
	ctx := context.Background()
	f := newDispatchFixture(testDispatchConfig())

	f.riderRepo.AddRider(&domain.Rider{ID: "rider-1", VehicleClass: domain.VehicleTruck})
	f.riderRepo.AddRider(&domain.Rider{ID: "rider-2", VehicleClass: domain.VehicleTruck})
	f.bookingRepo.AddBooking(pendingBooking("booking-1", domain.VehicleTruck))
	f.bookingRepo.AddBooking(pendingBooking("booking-2", domain.VehicleTruck))

	// No coordinates supplied: no distance, whatever the zero values say.
	result, err := f.dispatch.Accept(ctx, "booking-1", "rider-1", 0, 0, false)
	if err != nil {
		t.Fatalf("accept failed: %v", err)
	}
	if result.RiderToPickupKm != 0 {
		t.Errorf("expected no distance without coordinates, got %.3f", result.RiderToPickupKm)
	}

	// A rider genuinely at (0,0) still gets a measured distance.
	result, err = f.dispatch.Accept(ctx, "booking-2", "rider-2", 0, 0, true)
	if err != nil {
		t.Fatalf("accept failed: %v", err)
	}
	if result.RiderToPickupKm <= 0 {
		t.Errorf("expected measured distance from the origin, got %.3f", result.RiderToPickupKm)
	}
}

package tests

import (
	"context"
	"fmt"
	"testing"
	"time"

	"courier/internal/domain"
	"courier/internal/presence"
)

func TestDecline_DistinctAndDeduplicated(t *testing.T) {
	ctx := context.Background()
	f := newDispatchFixture(testDispatchConfig())

	f.bookingRepo.AddBooking(pendingBooking("booking-1", domain.VehicleTwoWheeler))

	count, err := f.dispatch.Decline(ctx, "booking-1", "rider-1", "too far")
	if err != nil {
		t.Fatalf("decline failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 decline, got %d", count)
	}

	// Same rider again: set semantics, count must not grow.
	count, err = f.dispatch.Decline(ctx, "booking-1", "rider-1", "still too far")
	if err != nil {
		t.Fatalf("repeat decline failed: %v", err)
	}
	if count != 1 {
		t.Errorf("duplicate decline must not count twice, got %d", count)
	}

	count, _ = f.dispatch.Decline(ctx, "booking-1", "rider-2", "")
	if count != 2 {
		t.Errorf("expected 2 distinct declines, got %d", count)
	}

	b := f.bookingRepo.GetBooking("booking-1")
	if b.DeclineReasons["rider-1"] == "" {
		t.Error("expected a stored decline reason for rider-1")
	}
	if b.Status != domain.BookingStatusPending {
		t.Errorf("two declines must not cancel, got %s", b.Status)
	}
}

func TestDecline_ThresholdCancelsAtFiveNotFour(t *testing.T) {
	ctx := context.Background()
	f := newDispatchFixture(testDispatchConfig())

	f.bookingRepo.AddBooking(pendingBooking("booking-1", domain.VehicleTwoWheeler))

	for i := 1; i <= 4; i++ {
		if _, err := f.dispatch.Decline(ctx, "booking-1", fmt.Sprintf("rider-%d", i), ""); err != nil {
			t.Fatalf("decline %d failed: %v", i, err)
		}
	}

	b := f.bookingRepo.GetBooking("booking-1")
	if b.Status != domain.BookingStatusPending {
		t.Fatalf("four declines must keep the booking live, got %s", b.Status)
	}

	count, err := f.dispatch.Decline(ctx, "booking-1", "rider-5", "")
	if err != nil {
		t.Fatalf("fifth decline failed: %v", err)
	}
	if count != 5 {
		t.Errorf("expected 5 distinct declines, got %d", count)
	}

	b = f.bookingRepo.GetBooking("booking-1")
	if b.Status != domain.BookingStatusCancelled {
		t.Fatalf("fifth distinct decline must cancel, got %s", b.Status)
	}
	if b.CancelReason != "no driver available - multiple declines" {
		t.Errorf("unexpected cancel reason: %q", b.CancelReason)
	}
	if b.CancelledBy != "system" {
		t.Errorf("expected system cancellation, got %q", b.CancelledBy)
	}
}

func TestDecline_ThresholdYieldsToConcurrentAcceptance(t *testing.T) {
	ctx := context.Background()
	f := newDispatchFixture(testDispatchConfig())

	b := pendingBooking("booking-1", domain.VehicleTwoWheeler)
	b.DeclinedBy = []string{"rider-1", "rider-2", "rider-3", "rider-4"}
	// Assigned between the decline read and the cancel attempt.
	b.Status = domain.BookingStatusAccepted
	b.RiderID = "rider-9"
	f.bookingRepo.AddBooking(b)

	if _, err := f.dispatch.Decline(ctx, "booking-1", "rider-5", ""); err != nil {
		t.Fatalf("decline failed: %v", err)
	}

	got := f.bookingRepo.GetBooking("booking-1")
	if got.Status != domain.BookingStatusAccepted {
		t.Errorf("accepted booking must survive the decline threshold, got %s", got.Status)
	}
}

func TestDecline_RebroadcastExcludesDecliner(t *testing.T) {
	ctx := context.Background()
	cfg := testDispatchConfig()
	cfg.RebroadcastDelay = 10 * time.Millisecond
	f := newDispatchFixture(cfg)

	f.bookingRepo.AddBooking(pendingBooking("booking-1", domain.VehicleTruck))

	declinerConn := NewFakeConn()
	otherConn := NewFakeConn()
	f.presence.Upsert(presence.Entry{
		RiderID: "rider-decliner", VehicleClass: domain.VehicleTruck,
		Lat: 12.905, Lng: 77.58, Conn: declinerConn,
	})
	f.presence.Upsert(presence.Entry{
		RiderID: "rider-other", VehicleClass: domain.VehicleTruck,
		Lat: 12.905, Lng: 77.58, Conn: otherConn,
	})

	if _, err := f.dispatch.Decline(ctx, "booking-1", "rider-decliner", ""); err != nil {
		t.Fatalf("decline failed: %v", err)
	}

	// The re-broadcast is delayed, not immediate.
	if otherConn.SentCount() != 0 {
		t.Fatal("re-broadcast must wait for the delay")
	}

	time.Sleep(100 * time.Millisecond)

	if otherConn.SentCount() != 1 {
		t.Errorf("expected 1 re-broadcast offer, got %d", otherConn.SentCount())
	}
	if declinerConn.SentCount() != 0 {
		t.Errorf("decliner must not be re-offered, got %d", declinerConn.SentCount())
	}
}

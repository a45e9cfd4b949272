package tests

import (
	"context"
	"errors"
	"testing"

	"courier/internal/service"
)

func TestNearbyRiders_ReadsGeoMirror(t *testing.T) {
	f := newDispatchFixture(testDispatchConfig())
	locations := NewMockLocationStore()
	riders := service.NewRiderService(f.riderRepo, f.presence, locations)
	ctx := context.Background()

	_ = locations.UpdateLocation(ctx, "rider-1", 12.91, 77.59)
	_ = locations.UpdateLocation(ctx, "rider-2", 12.95, 77.60)

	locs, err := riders.NearbyRiders(ctx, 12.90, 77.58, 0)
	if err != nil {
		t.Fatalf("nearby query failed: %v", err)
	}
	if len(locs) != 2 {
		t.Fatalf("expected both mirrored positions, got %d", len(locs))
	}
}

func TestNearbyRiders_RejectsInvalidCenter(t *testing.T) {
	f := newDispatchFixture(testDispatchConfig())
	riders := service.NewRiderService(f.riderRepo, f.presence, NewMockLocationStore())

	if _, err := riders.NearbyRiders(context.Background(), 95, 77.58, 5); !errors.Is(err, service.ErrInvalidLocation) {
		t.Fatalf("expected ErrInvalidLocation, got %v", err)
	}
}

package presence

import (
	"sync"
	"testing"

	"courier/internal/domain"
)

func TestQueryEligible_FiltersByClassAndDistance(t *testing.T) {
	ix := NewIndex()
	pickup := Point{Lat: 12.90, Lng: 77.58}

	ix.Upsert(Entry{RiderID: "near-truck", VehicleClass: domain.VehicleTruck, Lat: 12.918, Lng: 77.58})  // ~2 km
	ix.Upsert(Entry{RiderID: "far-truck", VehicleClass: domain.VehicleTruck, Lat: 12.954, Lng: 77.58})   // ~6 km
	ix.Upsert(Entry{RiderID: "near-bike", VehicleClass: domain.VehicleTwoWheeler, Lat: 12.905, Lng: 77.58})

	got := ix.QueryEligible(domain.VehicleTruck, pickup, Point{}, 5.0, nil)
	if len(got) != 1 {
		t.Fatalf("expected 1 eligible rider, got %d", len(got))
	}
	if got[0].RiderID != "near-truck" {
		t.Errorf("expected near-truck, got %s", got[0].RiderID)
	}
}

func TestQueryEligible_InclusiveBoundary(t *testing.T) {
	ix := NewIndex()
	pickup := Point{Lat: 0, Lng: 0}

	// 1 degree of latitude is ~111.19 km, so these sit at ~5.00 km and
	// ~5.01 km from the origin.
	ix.Upsert(Entry{RiderID: "at-5.00", VehicleClass: domain.VehicleTruck, Lat: 5.00 / 111.19, Lng: 0})
	ix.Upsert(Entry{RiderID: "at-5.01", VehicleClass: domain.VehicleTruck, Lat: 5.01 / 111.19, Lng: 0})

	got := ix.QueryEligible(domain.VehicleTruck, pickup, Point{}, 5.0, nil)
	if len(got) != 1 {
		t.Fatalf("expected exactly the boundary rider, got %d entries", len(got))
	}
	if got[0].RiderID != "at-5.00" {
		t.Errorf("expected at-5.00, got %s", got[0].RiderID)
	}
}

func TestQueryEligible_ExcludesDecliners(t *testing.T) {
	ix := NewIndex()
	pickup := Point{Lat: 12.90, Lng: 77.58}

	ix.Upsert(Entry{RiderID: "r1", VehicleClass: domain.VehicleTruck, Lat: 12.90, Lng: 77.58})
	ix.Upsert(Entry{RiderID: "r2", VehicleClass: domain.VehicleTruck, Lat: 12.90, Lng: 77.58})

	got := ix.QueryEligible(domain.VehicleTruck, pickup, Point{}, 5.0, map[string]bool{"r1": true})
	if len(got) != 1 || got[0].RiderID != "r2" {
		t.Fatalf("expected only r2, got %+v", got)
	}
}

func TestQueryEligible_PreferredAreaMatchesAgainstDrop(t *testing.T) {
	ix := NewIndex()
	pickup := Point{Lat: 12.90, Lng: 77.58}
	drop := Point{Lat: 13.20, Lng: 77.70}

	// Live location is far from pickup, but the preferred area sits next to
	// the drop point, so the rider is still eligible.
	ix.Upsert(Entry{
		RiderID:      "homeward",
		VehicleClass: domain.VehicleTruck,
		Lat:          12.50, Lng: 77.00,
		Preferred: &Point{Lat: 13.21, Lng: 77.70},
	})

	got := ix.QueryEligible(domain.VehicleTruck, pickup, drop, 5.0, nil)
	if len(got) != 1 || got[0].RiderID != "homeward" {
		t.Fatalf("expected preferred-area rider to be eligible, got %+v", got)
	}

	// Moving the drop away makes them ineligible even though nothing else
	// changed.
	got = ix.QueryEligible(domain.VehicleTruck, pickup, Point{Lat: 12.90, Lng: 77.58}, 5.0, nil)
	if len(got) != 0 {
		t.Fatalf("expected no eligible riders, got %+v", got)
	}
}

func TestUpsertRemove(t *testing.T) {
	ix := NewIndex()
	ix.Upsert(Entry{RiderID: "r1", VehicleClass: domain.VehicleTwoWheeler, Lat: 1, Lng: 1})

	if _, ok := ix.Get("r1"); !ok {
		t.Fatal("expected r1 present")
	}

	ix.Remove("r1")
	if _, ok := ix.Get("r1"); ok {
		t.Fatal("expected r1 removed")
	}
}

func TestConcurrentHeartbeatsDoNotRace(t *testing.T) {
	ix := NewIndex()
	ix.Upsert(Entry{RiderID: "r1", VehicleClass: domain.VehicleTruck, Lat: 0, Lng: 0})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			ix.UpdateLocation("r1", float64(n)*0.001, 0)
		}(i)
		go func() {
			defer wg.Done()
			ix.QueryEligible(domain.VehicleTruck, Point{}, Point{}, 100, nil)
		}()
	}
	wg.Wait()

	if _, ok := ix.Get("r1"); !ok {
		t.Fatal("entry lost under concurrent access")
	}
}

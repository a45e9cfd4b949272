// Package presence tracks which riders are currently reachable and where.
//
// The index is the single hot shared structure touched by every location
// heartbeat and every broadcast scan. Reads return copies so an in-flight
// eligibility scan never observes a torn entry.
package presence

import (
	"sync"
	"time"

	"courier/internal/domain"
	"courier/internal/geo"
)

// ConnSender is the live connection handle attached to a presence entry.
// It is satisfied by a realtime client; nil means the rider is reachable
// only via push notification.
type ConnSender interface {
	SendJSON(v any) error
}

// Point is a plain coordinate pair.
type Point struct {
	Lat float64
	Lng float64
}

// Entry is the last-known live state of one online rider.
type Entry struct {
	RiderID      string
	VehicleClass domain.VehicleClass
	Lat          float64
	Lng          float64
	UpdatedAt    time.Time
	Conn         ConnSender
	// Preferred, when non-nil, replaces the live location for eligibility:
	// distance is measured from this point to the booking's first drop
	// instead of from the live location to pickup.
	Preferred *Point
}

// Index is an in-memory map of online riders. Rebuildable from the riders
// table plus the heartbeat stream; losing it loses offers, not bookings.
type Index struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewIndex creates an empty presence index.
func NewIndex() *Index {
	return &Index{entries: make(map[string]Entry)}
}

// Upsert replaces the last-known state for a rider. Idempotent.
func (ix *Index) Upsert(e Entry) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if e.UpdatedAt.IsZero() {
		e.UpdatedAt = time.Now()
	}
	ix.entries[e.RiderID] = e
}

// UpdateLocation refreshes only the coordinates of an existing entry,
// keeping the connection handle and preferred area intact.
func (ix *Index) UpdateLocation(riderID string, lat, lng float64) bool {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	e, ok := ix.entries[riderID]
	if !ok {
		return false
	}
	e.Lat = lat
	e.Lng = lng
	e.UpdatedAt = time.Now()
	ix.entries[riderID] = e
	return true
}

// Remove drops the live presence entry on disconnect. The persisted rider
// record is untouched.
func (ix *Index) Remove(riderID string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	delete(ix.entries, riderID)
}

// Get returns a copy of the entry for a rider, if present.
func (ix *Index) Get(riderID string) (Entry, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	e, ok := ix.entries[riderID]
	return e, ok
}

// Size returns the number of online riders.
func (ix *Index) Size() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.entries)
}

// QueryEligible returns all riders whose vehicle class matches, whose
// distance to the relevant target is within maxKm (inclusive), and whose id
// is not excluded.
//
// The target switches per entry: riders with a preferred area are measured
// from that fixed point to the booking's first drop; everyone else is
// measured from their live location to pickup.
func (ix *Index) QueryEligible(class domain.VehicleClass, pickup, drop Point, maxKm float64, exclude map[string]bool) []Entry {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	var out []Entry
	for id, e := range ix.entries {
		if e.VehicleClass != class {
			continue
		}
		if exclude[id] {
			continue
		}
		var dist float64
		if e.Preferred != nil {
			dist = geo.DistanceKm(e.Preferred.Lat, e.Preferred.Lng, drop.Lat, drop.Lng)
		} else {
			dist = geo.DistanceKm(e.Lat, e.Lng, pickup.Lat, pickup.Lng)
		}
		if dist <= maxKm {
			out = append(out, e)
		}
	}
	return out
}

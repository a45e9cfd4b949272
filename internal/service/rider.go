package service

import (
	"context"
	"errors"
	"log"

	"github.com/google/uuid"

	"courier/internal/domain"
	"courier/internal/presence"
	"courier/internal/redis"
	"courier/internal/repository"
)

// RiderService owns the rider-facing REST operations: registration, device
// tokens, the HTTP heartbeat path, and the preferred-area toggle. The
// realtime heartbeat path lives in RealtimeGateway; both converge on the
// same presence index.
type RiderService struct {
	riderRepo repository.RiderRepository
	presence  *presence.Index
	locations redis.LocationStoreInterface
}

// NewRiderService creates a new RiderService.
func NewRiderService(riderRepo repository.RiderRepository, presenceIndex *presence.Index, locations redis.LocationStoreInterface) *RiderService {
	return &RiderService{
		riderRepo: riderRepo,
		presence:  presenceIndex,
		locations: locations,
	}
}

// Register creates a new rider. Phone numbers are unique; a duplicate
// registration returns the existing record.
func (s *RiderService) Register(ctx context.Context, name, phone string, class domain.VehicleClass, deviceToken string) (*domain.Rider, error) {
	if phone == "" {
		return nil, ErrInvalidPhone
	}
	if !class.Valid() {
		return nil, ErrInvalidVehicleClass
	}

	existing, err := s.riderRepo.GetByPhone(ctx, phone)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	rider := &domain.Rider{
		ID:           uuid.New().String(),
		Name:         name,
		Phone:        phone,
		VehicleClass: class,
		Status:       domain.RiderStatusOffline,
		DeviceToken:  deviceToken,
	}
	if err := s.riderRepo.Create(ctx, rider); err != nil {
		return nil, err
	}
	return rider, nil
}

// GetRider retrieves a rider by ID.
func (s *RiderService) GetRider(ctx context.Context, id string) (*domain.Rider, error) {
	if id == "" {
		return nil, ErrInvalidRiderID
	}
	return s.riderRepo.GetByID(ctx, id)
}

// Heartbeat is the REST fallback for riders whose socket is down. It
// refreshes the presence entry when one exists and mirrors the location to
// the geo store either way.
func (s *RiderService) Heartbeat(ctx context.Context, riderID string, lat, lng float64) error {
	if riderID == "" {
		return ErrInvalidRiderID
	}
	if !isValidLatitude(lat) || !isValidLongitude(lng) {
		return ErrInvalidLocation
	}

	if !s.presence.UpdateLocation(riderID, lat, lng) {
		rider, err := s.riderRepo.GetByID(ctx, riderID)
		if err != nil {
			return err
		}
		entry := presence.Entry{
			RiderID:      riderID,
			VehicleClass: rider.VehicleClass,
			Lat:          lat,
			Lng:          lng,
		}
		if rider.PreferredAreaEnabled {
			entry.Preferred = &presence.Point{Lat: rider.PreferredLat, Lng: rider.PreferredLng}
		}
		s.presence.Upsert(entry)
	}

	if s.locations != nil {
		if err := s.locations.UpdateLocation(ctx, riderID, lat, lng); err != nil {
			log.Printf("location mirror for rider %s: %v", riderID, err)
		}
	}
	return nil
}

// defaultNearbyRadiusKm is used when a nearby query omits the radius.
const defaultNearbyRadiusKm = 5.0

// NearbyRiders reads the durable geo mirror: the last mirrored position of
// every rider within radiusKm of a point. An audit view over the mirror;
// dispatch eligibility reads the in-memory index.
func (s *RiderService) NearbyRiders(ctx context.Context, lat, lng, radiusKm float64) ([]redis.RiderLocation, error) {
	if !isValidLatitude(lat) || !isValidLongitude(lng) {
		return nil, ErrInvalidLocation
	}
	if s.locations == nil {
		return nil, nil
	}
	if radiusKm <= 0 {
		radiusKm = defaultNearbyRadiusKm
	}
	return s.locations.FindNearbyRiders(ctx, lat, lng, radiusKm)
}

// UpdateDeviceToken stores the rider's push token.
func (s *RiderService) UpdateDeviceToken(ctx context.Context, riderID, token string) error {
	if riderID == "" {
		return ErrInvalidRiderID
	}
	return s.riderRepo.UpdateDeviceToken(ctx, riderID, token)
}

// SetPreferredArea sets or clears the preferred-area override and reflects
// it into the live presence entry if the rider is online.
func (s *RiderService) SetPreferredArea(ctx context.Context, riderID string, enabled bool, lat, lng float64) error {
	if riderID == "" {
		return ErrInvalidRiderID
	}
	if enabled && (!isValidLatitude(lat) || !isValidLongitude(lng)) {
		return ErrInvalidLocation
	}

	if err := s.riderRepo.UpdatePreferredArea(ctx, riderID, enabled, lat, lng); err != nil {
		return err
	}

	if e, ok := s.presence.Get(riderID); ok {
		if enabled {
			e.Preferred = &presence.Point{Lat: lat, Lng: lng}
		} else {
			e.Preferred = nil
		}
		s.presence.Upsert(e)
	}
	return nil
}

// SetStatus flips the rider's persisted availability. Going offline also
// removes the live presence entry so no further offers are delivered.
func (s *RiderService) SetStatus(ctx context.Context, riderID string, status domain.RiderStatus) error {
	if riderID == "" {
		return ErrInvalidRiderID
	}
	if status != domain.RiderStatusOnline && status != domain.RiderStatusOffline {
		return ErrInvalidStatus
	}

	if err := s.riderRepo.UpdateStatus(ctx, riderID, status); err != nil {
		return err
	}

	if status == domain.RiderStatusOffline {
		s.presence.Remove(riderID)
		if s.locations != nil {
			if err := s.locations.RemoveLocation(ctx, riderID); err != nil {
				log.Printf("location mirror removal for rider %s: %v", riderID, err)
			}
		}
	}
	return nil
}

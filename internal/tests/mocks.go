package tests

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"courier/internal/domain"
	"courier/internal/realtime"
	"courier/internal/redis"
	"courier/internal/repository"
	"courier/internal/service"
)

// ──────────────────────────────────────────────
// MOCK BOOKING REPOSITORY
// ──────────────────────────────────────────────

// MockBookingRepository is an in-memory implementation of BookingRepository.
// Guarded transitions hold the mutex across check-and-set, which gives the
// same atomicity the conditional UPDATEs give in Postgres.
type MockBookingRepository struct {
	mu       sync.Mutex
	bookings map[string]*domain.Booking

	// Counters for verification
	TryAssignCallCount     int32
	RecordDeclineCallCount int32
	MarkBroadcastCallCount int32

	// Error injection
	CreateError    error
	TryAssignError error
}

// NewMockBookingRepository creates a new mock booking repository.
func NewMockBookingRepository() *MockBookingRepository {
	return &MockBookingRepository{
		bookings: make(map[string]*domain.Booking),
	}
}

// AddBooking seeds a booking into the mock repository.
func (m *MockBookingRepository) AddBooking(b *domain.Booking) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now()
	}
	m.bookings[b.ID] = b
}

func (m *MockBookingRepository) copyOf(b *domain.Booking) *domain.Booking {
	cp := *b
	cp.Drops = append([]domain.DropPoint(nil), b.Drops...)
	cp.DeclinedBy = append([]string(nil), b.DeclinedBy...)
	if b.DeclineReasons != nil {
		cp.DeclineReasons = make(map[string]string, len(b.DeclineReasons))
		for k, v := range b.DeclineReasons {
			cp.DeclineReasons[k] = v
		}
	}
	return &cp
}

func (m *MockBookingRepository) Create(ctx context.Context, booking *domain.Booking) error {
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if booking.CreatedAt.IsZero() {
		booking.CreatedAt = time.Now()
	}
	m.bookings[booking.ID] = m.copyOf(booking)
	return nil
}

func (m *MockBookingRepository) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return m.copyOf(b), nil
}

func (m *MockBookingRepository) GetByShareToken(ctx context.Context, token string) (*domain.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.bookings {
		if b.ShareToken == token {
			return m.copyOf(b), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *MockBookingRepository) TryAssign(ctx context.Context, id, riderID string) (*domain.Booking, error) {
	atomic.AddInt32(&m.TryAssignCallCount, 1)
	if m.TryAssignError != nil {
		return nil, m.TryAssignError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if b.Status != domain.BookingStatusPending || b.RiderID != "" {
		return nil, repository.ErrConflict
	}
	b.RiderID = riderID
	b.Status = domain.BookingStatusAccepted
	b.AcceptedAt = time.Now()
	return m.copyOf(b), nil
}

func (m *MockBookingRepository) RecordDecline(ctx context.Context, id, riderID, reason string) (*domain.Booking, error) {
	atomic.AddInt32(&m.RecordDeclineCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if !b.DeclinedByRider(riderID) {
		b.DeclinedBy = append(b.DeclinedBy, riderID)
	}
	if reason != "" {
		if b.DeclineReasons == nil {
			b.DeclineReasons = make(map[string]string)
		}
		b.DeclineReasons[riderID] = reason
	}
	b.BroadcastCount++
	return m.copyOf(b), nil
}

func (m *MockBookingRepository) CancelIfPending(ctx context.Context, id, actor, reason string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return false, repository.ErrNotFound
	}
	if b.Status != domain.BookingStatusPending || b.RiderID != "" {
		return false, nil
	}
	b.Status = domain.BookingStatusCancelled
	b.CancelledAt = time.Now()
	b.CancelledBy = actor
	b.CancelReason = reason
	return true, nil
}

func (m *MockBookingRepository) Unassign(ctx context.Context, id string) (*domain.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if b.Status != domain.BookingStatusAccepted {
		return nil, repository.ErrConflict
	}
	b.RiderID = ""
	b.Status = domain.BookingStatusPending
	b.AcceptedAt = time.Time{}
	return m.copyOf(b), nil
}

func (m *MockBookingRepository) SetInProgress(ctx context.Context, id, riderID string) (*domain.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if b.Status != domain.BookingStatusAccepted || b.RiderID != riderID {
		return nil, repository.ErrConflict
	}
	b.Status = domain.BookingStatusInProgress
	return m.copyOf(b), nil
}

func (m *MockBookingRepository) Complete(ctx context.Context, id, riderID string) (*domain.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if !b.Status.IsActive() || b.RiderID != riderID {
		return nil, repository.ErrConflict
	}
	b.Status = domain.BookingStatusCompleted
	b.CompletedAt = time.Now()
	return m.copyOf(b), nil
}

func (m *MockBookingRepository) Cancel(ctx context.Context, id, actor, reason string) (*domain.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if b.Status.IsTerminal() {
		return nil, repository.ErrConflict
	}
	b.Status = domain.BookingStatusCancelled
	b.CancelledAt = time.Now()
	b.CancelledBy = actor
	b.CancelReason = reason
	return m.copyOf(b), nil
}

func (m *MockBookingRepository) MarkBroadcast(ctx context.Context, id string) error {
	atomic.AddInt32(&m.MarkBroadcastCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return repository.ErrNotFound
	}
	b.BroadcastedAt = time.Now()
	return nil
}

func (m *MockBookingRepository) FindAvailableFor(ctx context.Context, riderID string, class domain.VehicleClass, window time.Duration) ([]*domain.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := time.Now().Add(-window)
	var out []*domain.Booking
	for _, b := range m.bookings {
		if b.Status != domain.BookingStatusPending || b.RiderID != "" {
			continue
		}
		if b.VehicleClass != class || b.CreatedAt.Before(cutoff) {
			continue
		}
		if b.DeclinedByRider(riderID) {
			continue
		}
		out = append(out, m.copyOf(b))
	}
	return out, nil
}

func (m *MockBookingRepository) FindPendingByClass(ctx context.Context, class domain.VehicleClass, window time.Duration) ([]*domain.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := time.Now().Add(-window)
	var out []*domain.Booking
	for _, b := range m.bookings {
		if b.Status != domain.BookingStatusPending || b.RiderID != "" {
			continue
		}
		if b.VehicleClass != class || b.CreatedAt.Before(cutoff) {
			continue
		}
		out = append(out, m.copyOf(b))
	}
	return out, nil
}

func (m *MockBookingRepository) ActiveBookingFor(ctx context.Context, riderID string) (*domain.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.bookings {
		if b.RiderID == riderID && b.Status.IsActive() {
			return m.copyOf(b), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *MockBookingRepository) AddTip(ctx context.Context, id string, amount float64) (*domain.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if b.Status != domain.BookingStatusCompleted || b.TipAmount != 0 {
		return nil, repository.ErrConflict
	}
	b.TipAmount = amount
	return m.copyOf(b), nil
}

func (m *MockBookingRepository) AddReview(ctx context.Context, id string, rating int, comment string) (*domain.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if b.Status != domain.BookingStatusCompleted || b.ReviewRating != 0 {
		return nil, repository.ErrConflict
	}
	b.ReviewRating = rating
	b.ReviewComment = comment
	return m.copyOf(b), nil
}

// GetBooking returns the live booking for assertions.
func (m *MockBookingRepository) GetBooking(id string) *domain.Booking {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bookings[id]
}

// ──────────────────────────────────────────────
// MOCK RIDER REPOSITORY
// ──────────────────────────────────────────────

// MockRiderRepository is an in-memory implementation of RiderRepository.
type MockRiderRepository struct {
	mu     sync.RWMutex
	riders map[string]*domain.Rider

	// Counters for verification
	CreateCallCount       int32
	UpdateStatusCallCount int32

	// Error injection
	GetByIDError error
}

// NewMockRiderRepository creates a new mock rider repository.
func NewMockRiderRepository() *MockRiderRepository {
	return &MockRiderRepository{
		riders: make(map[string]*domain.Rider),
	}
}

// AddRider seeds a rider into the mock repository.
func (m *MockRiderRepository) AddRider(rider *domain.Rider) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.riders[rider.ID] = rider
}

func (m *MockRiderRepository) Create(ctx context.Context, rider *domain.Rider) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.riders[rider.ID] = rider
	return nil
}

func (m *MockRiderRepository) GetByID(ctx context.Context, id string) (*domain.Rider, error) {
	if m.GetByIDError != nil {
		return nil, m.GetByIDError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	rider, ok := m.riders[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *rider
	return &cp, nil
}

func (m *MockRiderRepository) GetByPhone(ctx context.Context, phone string) (*domain.Rider, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.riders {
		if r.Phone == phone {
			cp := *r
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *MockRiderRepository) GetAll(ctx context.Context) ([]*domain.Rider, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*domain.Rider, 0, len(m.riders))
	for _, r := range m.riders {
		cp := *r
		result = append(result, &cp)
	}
	return result, nil
}

func (m *MockRiderRepository) UpdateStatus(ctx context.Context, id string, status domain.RiderStatus) error {
	atomic.AddInt32(&m.UpdateStatusCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	rider, ok := m.riders[id]
	if !ok {
		return repository.ErrNotFound
	}
	rider.Status = status
	return nil
}

func (m *MockRiderRepository) UpdateDeviceToken(ctx context.Context, id, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rider, ok := m.riders[id]
	if !ok {
		return repository.ErrNotFound
	}
	rider.DeviceToken = token
	return nil
}

func (m *MockRiderRepository) UpdatePreferredArea(ctx context.Context, id string, enabled bool, lat, lng float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rider, ok := m.riders[id]
	if !ok {
		return repository.ErrNotFound
	}
	rider.PreferredAreaEnabled = enabled
	rider.PreferredLat = lat
	rider.PreferredLng = lng
	return nil
}

// GetRider returns the live rider for assertions.
func (m *MockRiderRepository) GetRider(id string) *domain.Rider {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.riders[id]
}

// ──────────────────────────────────────────────
// MOCK CUSTOMER REPOSITORY
// ──────────────────────────────────────────────

// MockCustomerRepository is an in-memory implementation of CustomerRepository.
type MockCustomerRepository struct {
	mu        sync.RWMutex
	customers map[string]*domain.Customer
}

// NewMockCustomerRepository creates a new mock customer repository.
func NewMockCustomerRepository() *MockCustomerRepository {
	return &MockCustomerRepository{
		customers: make(map[string]*domain.Customer),
	}
}

// AddCustomer seeds a customer.
func (m *MockCustomerRepository) AddCustomer(c *domain.Customer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.customers[c.ID] = c
}

func (m *MockCustomerRepository) GetByID(ctx context.Context, id string) (*domain.Customer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.customers[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *MockCustomerRepository) Create(ctx context.Context, customer *domain.Customer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.customers[customer.ID] = customer
	return nil
}

// ──────────────────────────────────────────────
// FAKE CONNECTION REGISTRY
// ──────────────────────────────────────────────

// FakeRegistry records fan-out calls instead of delivering them.
type FakeRegistry struct {
	mu        sync.Mutex
	connected map[string]bool

	RiderMessages   map[string][]realtime.Message
	Broadcasts      []realtime.Message
	WatcherMessages map[string][]realtime.Message
	TripMessages    map[string][]realtime.Message
}

// NewFakeRegistry creates an empty fake registry.
func NewFakeRegistry() *FakeRegistry {
	return &FakeRegistry{
		connected:       make(map[string]bool),
		RiderMessages:   make(map[string][]realtime.Message),
		WatcherMessages: make(map[string][]realtime.Message),
		TripMessages:    make(map[string][]realtime.Message),
	}
}

// SetConnected marks a rider as having an open connection.
func (f *FakeRegistry) SetConnected(riderID string, connected bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected[riderID] = connected
}

func (f *FakeRegistry) RiderConnected(riderID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected[riderID]
}

func (f *FakeRegistry) SendToRider(riderID string, msg realtime.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.connected[riderID] {
		return realtime.ErrNotConnected
	}
	f.RiderMessages[riderID] = append(f.RiderMessages[riderID], msg)
	return nil
}

func (f *FakeRegistry) BroadcastToRiders(msg realtime.Message, exceptRiderID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Broadcasts = append(f.Broadcasts, msg)
}

func (f *FakeRegistry) NotifyWatchers(riderID string, msg realtime.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.WatcherMessages[riderID] = append(f.WatcherMessages[riderID], msg)
}

func (f *FakeRegistry) NotifyTrip(token string, msg realtime.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.TripMessages[token] = append(f.TripMessages[token], msg)
}

// BroadcastCount returns the number of untargeted broadcasts.
func (f *FakeRegistry) BroadcastCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Broadcasts)
}

// TripMessageCount returns the fan-out count for a share token.
func (f *FakeRegistry) TripMessageCount(token string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.TripMessages[token])
}

var _ service.ConnectionRegistry = (*FakeRegistry)(nil)

// ──────────────────────────────────────────────
// FAKE CONNECTION HANDLE
// ──────────────────────────────────────────────

// FakeConn is a presence connection handle that records offers.
type FakeConn struct {
	mu       sync.Mutex
	payloads []any

	// Error injection
	SendError error
}

// NewFakeConn creates a FakeConn.
func NewFakeConn() *FakeConn {
	return &FakeConn{}
}

func (c *FakeConn) SendJSON(v any) error {
	if c.SendError != nil {
		return c.SendError
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.payloads = append(c.payloads, v)
	return nil
}

// SentCount returns how many payloads were delivered.
func (c *FakeConn) SentCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.payloads)
}

// Payloads returns a copy of the delivered payloads.
func (c *FakeConn) Payloads() []any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]any(nil), c.payloads...)
}

// ──────────────────────────────────────────────
// FAKE PUSH SENDER
// ──────────────────────────────────────────────

// FakePushSender records push batches instead of delivering them.
type FakePushSender struct {
	mu      sync.Mutex
	Batches [][]string
}

func (f *FakePushSender) SendBatch(ctx context.Context, tokens []string, payload map[string]any) []service.PushReceipt {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Batches = append(f.Batches, append([]string(nil), tokens...))
	receipts := make([]service.PushReceipt, 0, len(tokens))
	for _, t := range tokens {
		receipts = append(receipts, service.PushReceipt{Token: t, Delivered: true})
	}
	return receipts
}

// SentTokens flattens all batches.
func (f *FakePushSender) SentTokens() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, batch := range f.Batches {
		out = append(out, batch...)
	}
	return out
}

var _ service.PushSender = (*FakePushSender)(nil)

// ──────────────────────────────────────────────
// MOCK LOCK STORE
// ──────────────────────────────────────────────

// MockLockStore is an in-memory implementation of LockStoreInterface.
type MockLockStore struct {
	mu    sync.Mutex
	locks map[string]time.Time

	// Counters
	AcquireCallCount int32
	ReleaseCallCount int32

	// Force lock failure
	ForceAcquireFailure bool
}

// NewMockLockStore creates a new mock lock store.
func NewMockLockStore() *MockLockStore {
	return &MockLockStore{
		locks: make(map[string]time.Time),
	}
}

func (m *MockLockStore) AcquireRiderLock(ctx context.Context, riderID string, ttl time.Duration) (bool, error) {
	atomic.AddInt32(&m.AcquireCallCount, 1)
	if m.ForceAcquireFailure {
		return false, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	key := "lock:rider:" + riderID
	if expiry, exists := m.locks[key]; exists && time.Now().Before(expiry) {
		return false, nil
	}
	m.locks[key] = time.Now().Add(ttl)
	return true, nil
}

func (m *MockLockStore) ReleaseRiderLock(ctx context.Context, riderID string) error {
	atomic.AddInt32(&m.ReleaseCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locks, "lock:rider:"+riderID)
	return nil
}

var _ redis.LockStoreInterface = (*MockLockStore)(nil)

// ──────────────────────────────────────────────
// MOCK LOCATION STORE
// ──────────────────────────────────────────────

// MockLocationStore is an in-memory implementation of LocationStoreInterface.
type MockLocationStore struct {
	mu        sync.RWMutex
	locations map[string]redis.RiderLocation

	// Counters
	UpdateLocationCallCount int32
}

// NewMockLocationStore creates a new mock location store.
func NewMockLocationStore() *MockLocationStore {
	return &MockLocationStore{
		locations: make(map[string]redis.RiderLocation),
	}
}

func (m *MockLocationStore) UpdateLocation(ctx context.Context, riderID string, lat, lng float64) error {
	atomic.AddInt32(&m.UpdateLocationCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locations[riderID] = redis.RiderLocation{RiderID: riderID, Lat: lat, Lng: lng}
	return nil
}

func (m *MockLocationStore) FindNearbyRiders(ctx context.Context, lat, lng, radiusKm float64) ([]redis.RiderLocation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	// The mock does no geo filtering.
	result := make([]redis.RiderLocation, 0, len(m.locations))
	for _, loc := range m.locations {
		result = append(result, loc)
	}
	return result, nil
}

func (m *MockLocationStore) RemoveLocation(ctx context.Context, riderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locations, riderID)
	return nil
}

// HasLocation reports whether a rider's location is mirrored.
func (m *MockLocationStore) HasLocation(riderID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.locations[riderID]
	return ok
}

var _ redis.LocationStoreInterface = (*MockLocationStore)(nil)

// ──────────────────────────────────────────────
// HELPER ERRORS
// ──────────────────────────────────────────────

var (
	ErrMockDBConstraint = errors.New("mock: unique constraint violation")
	ErrMockTimeout      = errors.New("mock: operation timeout")
)

package repository

import (
	"context"

	"courier/internal/domain"
)

// RiderRepository defines the persistence operations for riders.
type RiderRepository interface {
	// Create persists a new rider.
	Create(ctx context.Context, rider *domain.Rider) error

	// GetByID retrieves a rider by ID.
	GetByID(ctx context.Context, id string) (*domain.Rider, error)

	// GetByPhone retrieves a rider by phone number.
	GetByPhone(ctx context.Context, phone string) (*domain.Rider, error)

	// GetAll retrieves all riders.
	GetAll(ctx context.Context) ([]*domain.Rider, error)

	// UpdateStatus sets a rider online or offline.
	UpdateStatus(ctx context.Context, id string, status domain.RiderStatus) error

	// UpdateDeviceToken stores the push-notification token.
	UpdateDeviceToken(ctx context.Context, id, token string) error

	// UpdatePreferredArea sets or clears the preferred-area override.
	UpdatePreferredArea(ctx context.Context, id string, enabled bool, lat, lng float64) error
}

// CustomerRepository defines read access to customer records for display
// hydration. Customer CRUD lives outside this service.
type CustomerRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Customer, error)
	Create(ctx context.Context, customer *domain.Customer) error
}

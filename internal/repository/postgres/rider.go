package postgres

import (
	"context"
	"database/sql"
	"errors"

	"courier/internal/domain"
	"courier/internal/repository"
)

// RiderRepository is a PostgreSQL implementation of repository.RiderRepository.
type RiderRepository struct {
	q Querier
}

// NewRiderRepository creates a new PostgreSQL rider repository.
func NewRiderRepository(db *sql.DB) *RiderRepository {
	return &RiderRepository{q: db}
}

// Create persists a new rider.
func (r *RiderRepository) Create(ctx context.Context, rider *domain.Rider) error {
	query := `
		INSERT INTO riders (id, name, phone, vehicle_class, status, device_token, preferred_area_enabled, preferred_lat, preferred_lng)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	status := rider.Status
	if status == "" {
		status = domain.RiderStatusOffline
	}

	_, err := r.q.ExecContext(ctx, query,
		rider.ID,
		rider.Name,
		rider.Phone,
		rider.VehicleClass,
		status,
		rider.DeviceToken,
		rider.PreferredAreaEnabled,
		rider.PreferredLat,
		rider.PreferredLng,
	)

	return err
}

// GetByID retrieves a rider by ID.
func (r *RiderRepository) GetByID(ctx context.Context, id string) (*domain.Rider, error) {
	query := `
		SELECT id, name, phone, vehicle_class, status, device_token, preferred_area_enabled, preferred_lat, preferred_lng
		FROM riders WHERE id = $1
	`

	return r.scanOne(r.q.QueryRowContext(ctx, query, id))
}

// GetByPhone retrieves a rider by phone number.
func (r *RiderRepository) GetByPhone(ctx context.Context, phone string) (*domain.Rider, error) {
	query := `
		SELECT id, name, phone, vehicle_class, status, device_token, preferred_area_enabled, preferred_lat, preferred_lng
		FROM riders WHERE phone = $1
	`

	return r.scanOne(r.q.QueryRowContext(ctx, query, phone))
}

// GetAll retrieves all riders.
func (r *RiderRepository) GetAll(ctx context.Context) ([]*domain.Rider, error) {
	query := `
		SELECT id, name, phone, vehicle_class, status, device_token, preferred_area_enabled, preferred_lat, preferred_lng
		FROM riders ORDER BY name
	`

	rows, err := r.q.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var riders []*domain.Rider
	for rows.Next() {
		rider, err := r.scanOne(rows)
		if err != nil {
			return nil, err
		}
		riders = append(riders, rider)
	}
	return riders, rows.Err()
}

// UpdateStatus sets a rider online or offline.
func (r *RiderRepository) UpdateStatus(ctx context.Context, id string, status domain.RiderStatus) error {
	query := `UPDATE riders SET status = $2 WHERE id = $1`
	return execExpectingRow(ctx, r.q, query, id, status)
}

// UpdateDeviceToken stores the push-notification token.
func (r *RiderRepository) UpdateDeviceToken(ctx context.Context, id, token string) error {
	query := `UPDATE riders SET device_token = $2 WHERE id = $1`
	return execExpectingRow(ctx, r.q, query, id, token)
}

// UpdatePreferredArea sets or clears the preferred-area override.
func (r *RiderRepository) UpdatePreferredArea(ctx context.Context, id string, enabled bool, lat, lng float64) error {
	query := `UPDATE riders SET preferred_area_enabled = $2, preferred_lat = $3, preferred_lng = $4 WHERE id = $1`
	return execExpectingRow(ctx, r.q, query, id, enabled, lat, lng)
}

func (r *RiderRepository) scanOne(row rowScanner) (*domain.Rider, error) {
	var rider domain.Rider
	var deviceToken sql.NullString

	err := row.Scan(
		&rider.ID,
		&rider.Name,
		&rider.Phone,
		&rider.VehicleClass,
		&rider.Status,
		&deviceToken,
		&rider.PreferredAreaEnabled,
		&rider.PreferredLat,
		&rider.PreferredLng,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	if deviceToken.Valid {
		rider.DeviceToken = deviceToken.String
	}

	return &rider, nil
}

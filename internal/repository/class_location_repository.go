package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-sync-agent/internal/models"
)

// ClassLocationRepository reads the geofence reference data owned by the
// school configuration. The agent never writes it.
type ClassLocationRepository struct {
	db *sqlx.DB
}

// NewClassLocationRepository constructs the repository.
func NewClassLocationRepository(db *sqlx.DB) *ClassLocationRepository {
	return &ClassLocationRepository{db: db}
}

// FindByGroup returns the location assigned to a group, or nil when the
// group has none.
func (r *ClassLocationRepository) FindByGroup(ctx context.Context, groupID string) (*models.ClassLocation, error) {
	const query = `
		SELECT cl.id, cl.name, cl.latitude, cl.longitude, cl.radius_meters
		FROM class_locations cl
		JOIN groups g ON g.location_id = cl.id
		WHERE g.id = $1`

	var loc models.ClassLocation
	err := r.db.GetContext(ctx, &loc, query, groupID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find location for group %s: %w", groupID, err)
	}
	return &loc, nil
}

// FindByID returns a location by its own id, or nil when absent.
func (r *ClassLocationRepository) FindByID(ctx context.Context, id string) (*models.ClassLocation, error) {
	const query = `
		SELECT id, name, latitude, longitude, radius_meters
		FROM class_locations
		WHERE id = $1`

	var loc models.ClassLocation
	err := r.db.GetContext(ctx, &loc, query, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find location %s: %w", id, err)
	}
	return &loc, nil
}

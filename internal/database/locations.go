package database

import (
	"context"
	"fmt"

	"rentacar/internal/domain"
	"rentacar/internal/models"
)

func (db *DB) GetLocations(ctx context.Context) ([]*models.Location, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, name, address, city FROM locations ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to get locations: %w", err)
	}
	defer rows.Close()

	locations := []*models.Location{}
	for rows.Next() {
		var l models.Location
		if err := rows.Scan(&l.ID, &l.Name, &l.Address, &l.City); err != nil {
			return nil, fmt.Errorf("failed to scan location: %w", err)
		}
		locations = append(locations, &l)
	}
	return locations, rows.Err()
}

func (db *DB) CreateLocation(ctx context.Context, loc *models.Location) error {
	result, err := db.ExecContext(ctx, `INSERT INTO locations (name, address, city) VALUES (?, ?, ?)`,
		loc.Name, loc.Address, loc.City)
	if err != nil {
		return fmt.Errorf("failed to create location: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	loc.ID = id
	return nil
}

func (db *DB) UpdateLocation(ctx context.Context, loc *models.Location) error {
	result, err := db.ExecContext(ctx, `UPDATE locations SET name = ?, address = ?, city = ? WHERE id = ?`,
		loc.Name, loc.Address, loc.City, loc.ID)
	if err != nil {
		return fmt.Errorf("failed to update location: %w", err)
	}
	if rowsAffected(result) == 0 {
		return domain.NotFound("location %d not found", loc.ID)
	}
	return nil
}

func (db *DB) DeleteLocation(ctx context.Context, id int64) error {
	result, err := db.ExecContext(ctx, `DELETE FROM locations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete location: %w", err)
	}
	if rowsAffected(result) == 0 {
		return domain.NotFound("location %d not found", id)
	}
	return nil
}

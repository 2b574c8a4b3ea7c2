package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"rentacar/internal/models"
)

func (db *DB) GetSettings(ctx context.Context) (*models.Settings, error) {
	var s models.Settings
	err := db.QueryRowContext(ctx, `SELECT site_name, site_description, contact_email, contact_phone,
	                                       contact_address, driver_fee_per_day, updated_at
	                                FROM settings WHERE id = 1`).Scan(
		&s.SiteName, &s.SiteDescription, &s.ContactEmail, &s.ContactPhone,
		&s.ContactAddress, &s.DriverFeePerDay, &s.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return &models.Settings{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}
	return &s, nil
}

func (db *DB) UpdateSettings(ctx context.Context, s *models.Settings) error {
	query := `INSERT INTO settings (
				id, site_name, site_description, contact_email, contact_phone,
				contact_address, driver_fee_per_day, updated_at
			) VALUES (1, ?, ?, ?, ?, ?, ?, ?)
              ON CONFLICT(id) DO UPDATE SET
                site_name = excluded.site_name,
                site_description = excluded.site_description,
                contact_email = excluded.contact_email,
                contact_phone = excluded.contact_phone,
                contact_address = excluded.contact_address,
                driver_fee_per_day = excluded.driver_fee_per_day,
                updated_at = excluded.updated_at`
	now := time.Now().UTC()
	_, err := db.ExecContext(ctx, query,
		s.SiteName, s.SiteDescription, s.ContactEmail, s.ContactPhone,
		s.ContactAddress, s.DriverFeePerDay, now,
	)
	if err != nil {
		return fmt.Errorf("failed to update settings: %w", err)
	}
	s.UpdatedAt = now
	return nil
}

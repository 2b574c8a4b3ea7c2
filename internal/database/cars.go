package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"rentacar/internal/domain"
	"rentacar/internal/models"
)

const carColumns = `id, name, brand, type, year, transmission, fuel, seats,
	price_per_day, price_per_week, price_per_month, rating, reviews,
	available, featured, images, features, description, location,
	created_at, updated_at`

func scanCar(row rowScanner) (*models.Car, error) {
	var (
		c                models.Car
		images, features string
	)
	err := row.Scan(
		&c.ID, &c.Name, &c.Brand, &c.Type, &c.Year, &c.Transmission, &c.Fuel, &c.Seats,
		&c.PricePerDay, &c.PricePerWeek, &c.PricePerMonth, &c.Rating, &c.Reviews,
		&c.Available, &c.Featured, &images, &features, &c.Description, &c.Location,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if c.Images, err = decodeList(images); err != nil {
		return nil, fmt.Errorf("failed to decode images of car %d: %w", c.ID, err)
	}
	if c.Features, err = decodeList(features); err != nil {
		return nil, fmt.Errorf("failed to decode features of car %d: %w", c.ID, err)
	}
	return &c, nil
}

func encodeList(list []string) string {
	if list == nil {
		list = []string{}
	}
	raw, _ := json.Marshal(list)
	return string(raw)
}

func decodeList(raw string) ([]string, error) {
	list := []string{}
	if raw == "" {
		return list, nil
	}
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (db *DB) queryCars(ctx context.Context, query string, args ...any) ([]*models.Car, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cars := []*models.Car{}
	for rows.Next() {
		c, err := scanCar(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan car: %w", err)
		}
		cars = append(cars, c)
	}
	return cars, rows.Err()
}

func (db *DB) GetAllCars(ctx context.Context) ([]*models.Car, error) {
	cars, err := db.queryCars(ctx, `SELECT `+carColumns+` FROM cars ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to get cars: %w", err)
	}
	return cars, nil
}

func (db *DB) GetCarByID(ctx context.Context, id int64) (*models.Car, error) {
	c, err := scanCar(db.QueryRowContext(ctx, `SELECT `+carColumns+` FROM cars WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFound("car %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get car: %w", err)
	}
	return c, nil
}

// GetFeaturedCars returns featured cars that can currently be booked.
func (db *DB) GetFeaturedCars(ctx context.Context, limit int) ([]*models.Car, error) {
	if limit <= 0 {
		limit = models.DefaultFeaturedLimit
	}
	cars, err := db.queryCars(ctx,
		`SELECT `+carColumns+` FROM cars WHERE featured = 1 AND available = 1 ORDER BY id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get featured cars: %w", err)
	}
	return cars, nil
}

func (db *DB) CreateCar(ctx context.Context, car *models.Car) error {
	query := `INSERT INTO cars (
				name, brand, type, year, transmission, fuel, seats,
				price_per_day, price_per_week, price_per_month, rating, reviews,
				available, featured, images, features, description, location,
				created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now().UTC()
	result, err := db.ExecContext(ctx, query,
		car.Name, car.Brand, car.Type, car.Year, car.Transmission, car.Fuel, car.Seats,
		car.PricePerDay, car.PricePerWeek, car.PricePerMonth, car.Rating, car.Reviews,
		car.Available, car.Featured, encodeList(car.Images), encodeList(car.Features),
		car.Description, car.Location, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to create car: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	car.ID = id
	car.CreatedAt = now
	car.UpdatedAt = now
	return nil
}

func (db *DB) UpdateCar(ctx context.Context, car *models.Car) error {
	query := `UPDATE cars SET
				name = ?, brand = ?, type = ?, year = ?, transmission = ?, fuel = ?, seats = ?,
				price_per_day = ?, price_per_week = ?, price_per_month = ?, rating = ?, reviews = ?,
				available = ?, featured = ?, images = ?, features = ?, description = ?, location = ?,
				updated_at = ?
			  WHERE id = ?`
	now := time.Now().UTC()
	result, err := db.ExecContext(ctx, query,
		car.Name, car.Brand, car.Type, car.Year, car.Transmission, car.Fuel, car.Seats,
		car.PricePerDay, car.PricePerWeek, car.PricePerMonth, car.Rating, car.Reviews,
		car.Available, car.Featured, encodeList(car.Images), encodeList(car.Features),
		car.Description, car.Location, now, car.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update car: %w", err)
	}
	if rowsAffected(result) == 0 {
		return domain.NotFound("car %d not found", car.ID)
	}
	car.UpdatedAt = now
	return nil
}

// AddCarImage appends url to the car's image list atomically.
func (db *DB) AddCarImage(ctx context.Context, id int64, url string) (*models.Car, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var raw string
	err = tx.QueryRowContext(ctx, `SELECT images FROM cars WHERE id = ?`, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFound("car %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read car images: %w", err)
	}
	images, err := decodeList(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode images of car %d: %w", id, err)
	}
	images = append(images, url)

	_, err = tx.ExecContext(ctx, `UPDATE cars SET images = ?, updated_at = ? WHERE id = ?`,
		encodeList(images), time.Now().UTC(), id)
	if err != nil {
		return nil, fmt.Errorf("failed to update car images: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit car images: %w", err)
	}
	return db.GetCarByID(ctx, id)
}

func (db *DB) DeleteCar(ctx context.Context, id int64) error {
	result, err := db.ExecContext(ctx, `DELETE FROM cars WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete car: %w", err)
	}
	if rowsAffected(result) == 0 {
		return domain.NotFound("car %d not found", id)
	}
	return nil
}

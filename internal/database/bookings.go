package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"rentacar/internal/domain"
	"rentacar/internal/models"
)

const bookingSelect = `SELECT b.id, b.user_id, b.car_id, b.start_date, b.end_date, b.days,
	b.with_driver, b.subtotal, b.driver_fee, b.total_price, b.status, b.payment_status,
	b.notes, b.created_at, b.updated_at,
	c.id, c.name, c.brand, c.images, c.price_per_day,
	u.id, u.name, u.email, u.phone
	FROM bookings b
	LEFT JOIN cars c ON c.id = b.car_id
	LEFT JOIN users u ON u.id = b.user_id`

func scanBooking(row rowScanner, withUser bool) (*models.Booking, error) {
	var (
		b          models.Booking
		start, end string
		carID      sql.NullInt64
		carName    sql.NullString
		carBrand   sql.NullString
		carImages  sql.NullString
		carPrice   sql.NullInt64
		userID     sql.NullInt64
		userName   sql.NullString
		userEmail  sql.NullString
		userPhone  sql.NullString
	)
	err := row.Scan(
		&b.ID, &b.UserID, &b.CarID, &start, &end, &b.Days,
		&b.WithDriver, &b.Subtotal, &b.DriverFee, &b.TotalPrice, &b.Status, &b.PaymentStatus,
		&b.Notes, &b.CreatedAt, &b.UpdatedAt,
		&carID, &carName, &carBrand, &carImages, &carPrice,
		&userID, &userName, &userEmail, &userPhone,
	)
	if err != nil {
		return nil, err
	}

	if b.StartDate, err = time.Parse(models.DateLayout, start); err != nil {
		return nil, fmt.Errorf("failed to parse booking start date %s: %w", start, err)
	}
	if b.EndDate, err = time.Parse(models.DateLayout, end); err != nil {
		return nil, fmt.Errorf("failed to parse booking end date %s: %w", end, err)
	}

	if carID.Valid {
		images, err := decodeList(carImages.String)
		if err != nil {
			return nil, fmt.Errorf("failed to decode images of car %d: %w", carID.Int64, err)
		}
		b.Car = &models.CarSummary{
			ID:          carID.Int64,
			Name:        carName.String,
			Brand:       carBrand.String,
			Images:      images,
			PricePerDay: carPrice.Int64,
		}
	}
	if withUser && userID.Valid {
		b.User = &models.UserSummary{
			ID:    userID.Int64,
			Name:  userName.String,
			Email: userEmail.String,
			Phone: userPhone.String,
		}
	}
	return &b, nil
}

func (db *DB) queryBookings(ctx context.Context, withUser bool, query string, args ...any) ([]*models.Booking, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bookings := []*models.Booking{}
	for rows.Next() {
		b, err := scanBooking(rows, withUser)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

func (db *DB) GetAllBookings(ctx context.Context) ([]*models.Booking, error) {
	bookings, err := db.queryBookings(ctx, true, bookingSelect+` ORDER BY b.created_at DESC, b.id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to get bookings: %w", err)
	}
	return bookings, nil
}

func (db *DB) GetBookingsByUserID(ctx context.Context, userID int64) ([]*models.Booking, error) {
	bookings, err := db.queryBookings(ctx, false,
		bookingSelect+` WHERE b.user_id = ? ORDER BY b.created_at DESC, b.id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user bookings: %w", err)
	}
	return bookings, nil
}

func (db *DB) GetBookingByID(ctx context.Context, id int64) (*models.Booking, error) {
	b, err := scanBooking(db.QueryRowContext(ctx, bookingSelect+` WHERE b.id = ?`, id), true)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFound("booking %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return b, nil
}

func (db *DB) CreateBooking(ctx context.Context, booking *models.Booking) error {
	query := `INSERT INTO bookings (
				user_id, car_id, start_date, end_date, days, with_driver,
				subtotal, driver_fee, total_price, status, payment_status, notes,
				created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now().UTC()
	if booking.Status == "" {
		booking.Status = models.StatusPending
	}
	if booking.PaymentStatus == "" {
		booking.PaymentStatus = models.PaymentUnpaid
	}
	result, err := db.ExecContext(ctx, query,
		booking.UserID,
		booking.CarID,
		booking.StartDate.Format(models.DateLayout),
		booking.EndDate.Format(models.DateLayout),
		booking.Days,
		booking.WithDriver,
		booking.Subtotal,
		booking.DriverFee,
		booking.TotalPrice,
		booking.Status,
		booking.PaymentStatus,
		booking.Notes,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	booking.ID = id
	booking.CreatedAt = now
	booking.UpdatedAt = now
	return nil
}

// UpdateBookingStatus is a compare-and-set on the current status.
func (db *DB) UpdateBookingStatus(ctx context.Context, id int64, from, to models.BookingStatus) (*models.Booking, error) {
	query := `UPDATE bookings SET status = ?, updated_at = ? WHERE id = ? AND status = ?`
	result, err := db.ExecContext(ctx, query, to, time.Now().UTC(), id, from)
	if err != nil {
		return nil, fmt.Errorf("failed to update booking status: %w", err)
	}
	if rowsAffected(result) == 0 {
		if _, err := db.GetBookingByID(ctx, id); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("booking %d is no longer %s: %w", id, from, domain.ErrConcurrentModification)
	}
	return db.GetBookingByID(ctx, id)
}

func (db *DB) UpdatePaymentStatus(ctx context.Context, id int64, status models.PaymentStatus) (*models.Booking, error) {
	result, err := db.ExecContext(ctx, `UPDATE bookings SET payment_status = ?, updated_at = ? WHERE id = ?`,
		status, time.Now().UTC(), id)
	if err != nil {
		return nil, fmt.Errorf("failed to update payment status: %w", err)
	}
	if rowsAffected(result) == 0 {
		return nil, domain.NotFound("booking %d not found", id)
	}
	return db.GetBookingByID(ctx, id)
}

func (db *DB) DeleteBooking(ctx context.Context, id int64) error {
	result, err := db.ExecContext(ctx, `DELETE FROM bookings WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete booking: %w", err)
	}
	if rowsAffected(result) == 0 {
		return domain.NotFound("booking %d not found", id)
	}
	return nil
}

func (db *DB) GetBookingStats(ctx context.Context) (*models.BookingStats, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT status, COUNT(*), COALESCE(SUM(total_price), 0) FROM bookings GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to get booking stats: %w", err)
	}
	defer rows.Close()

	stats := &models.BookingStats{}
	for rows.Next() {
		var (
			status models.BookingStatus
			count  int
			sum    int64
		)
		if err := rows.Scan(&status, &count, &sum); err != nil {
			return nil, fmt.Errorf("failed to scan booking stats: %w", err)
		}
		stats.Total += count
		switch status {
		case models.StatusPending:
			stats.Pending += count
		case models.StatusConfirmed:
			stats.Confirmed += count
		case models.StatusCompleted:
			stats.Completed += count
		case models.StatusCancelled:
			stats.Cancelled += count
		}
		if status != models.StatusCancelled {
			stats.Revenue += sum
		}
	}
	return stats, rows.Err()
}

package models

import "time"

// DateLayout is the calendar date format used for booking ranges.
const DateLayout = "2006-01-02"

type Booking struct {
	ID            int64         `json:"id"`
	UserID        int64         `json:"user_id"`
	CarID         int64         `json:"car_id"`
	StartDate     time.Time     `json:"start_date"`
	EndDate       time.Time     `json:"end_date"`
	Days          int64         `json:"days"`
	WithDriver    bool          `json:"with_driver"`
	Subtotal      int64         `json:"subtotal"`
	DriverFee     int64         `json:"driver_fee"`
	TotalPrice    int64         `json:"total_price"`
	Status        BookingStatus `json:"status"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	Notes         string        `json:"notes,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`

	Car  *CarSummary  `json:"car,omitempty"`
	User *UserSummary `json:"user,omitempty"`
}

// BookingStats aggregates bookings per status. Revenue excludes cancelled bookings.
type BookingStats struct {
	Total     int   `json:"total"`
	Pending   int   `json:"pending"`
	Confirmed int   `json:"confirmed"`
	Completed int   `json:"completed"`
	Cancelled int   `json:"cancelled"`
	Revenue   int64 `json:"revenue"`
}

// Add folds one booking into the aggregate.
func (s *BookingStats) Add(status BookingStatus, total int64) {
	s.Total++
	switch status {
	case StatusPending:
		s.Pending++
	case StatusConfirmed:
		s.Confirmed++
	case StatusCompleted:
		s.Completed++
	case StatusCancelled:
		s.Cancelled++
	}
	if status != StatusCancelled {
		s.Revenue += total
	}
}

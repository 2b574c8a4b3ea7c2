package models

import "fmt"

type BookingStatus string

const (
	StatusPending   BookingStatus = "pending"
	StatusConfirmed BookingStatus = "confirmed"
	StatusCompleted BookingStatus = "completed"
	StatusCancelled BookingStatus = "cancelled"
)

type PaymentStatus string

const (
	PaymentUnpaid PaymentStatus = "unpaid"
	PaymentPaid   PaymentStatus = "paid"
)

// BookingStatuses lists every status in lifecycle order.
var BookingStatuses = []BookingStatus{StatusPending, StatusConfirmed, StatusCompleted, StatusCancelled}

// bookingTransitions is the complete lifecycle table. Every status must have
// a row, terminal statuses have an empty one.
var bookingTransitions = map[BookingStatus][]BookingStatus{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusCompleted, StatusCancelled},
	StatusCompleted: {},
	StatusCancelled: {},
}

func init() {
	if err := checkTransitionTable(bookingTransitions); err != nil {
		panic(err)
	}
}

func checkTransitionTable(table map[BookingStatus][]BookingStatus) error {
	if len(table) != len(BookingStatuses) {
		return fmt.Errorf("booking transition table has %d rows, want %d", len(table), len(BookingStatuses))
	}
	for _, from := range BookingStatuses {
		targets, ok := table[from]
		if !ok {
			return fmt.Errorf("booking transition table misses status %q", from)
		}
		for _, to := range targets {
			if !to.Valid() {
				return fmt.Errorf("booking transition %q -> %q targets unknown status", from, to)
			}
			if to == from {
				return fmt.Errorf("booking transition %q -> %q is a self loop", from, to)
			}
		}
	}
	return nil
}

func ParseBookingStatus(s string) (BookingStatus, bool) {
	st := BookingStatus(s)
	return st, st.Valid()
}

func (s BookingStatus) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// CanTransition reports whether the lifecycle allows moving from s to next.
func (s BookingStatus) CanTransition(next BookingStatus) bool {
	for _, to := range bookingTransitions[s] {
		if to == next {
			return true
		}
	}
	return false
}

func (s BookingStatus) Terminal() bool {
	return len(bookingTransitions[s]) == 0
}

// Active reports whether the booking still holds the car.
func (s BookingStatus) Active() bool {
	return s == StatusPending || s == StatusConfirmed
}

func ParsePaymentStatus(s string) (PaymentStatus, bool) {
	switch p := PaymentStatus(s); p {
	case PaymentUnpaid, PaymentPaid:
		return p, true
	}
	return "", false
}

package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBookingStatus_Transitions(t *testing.T) {
	allowed := map[[2]BookingStatus]bool{
		{StatusPending, StatusConfirmed}:   true,
		{StatusPending, StatusCancelled}:   true,
		{StatusConfirmed, StatusCompleted}: true,
		{StatusConfirmed, StatusCancelled}: true,
	}

	for _, from := range BookingStatuses {
		for _, to := range BookingStatuses {
			want := allowed[[2]BookingStatus{from, to}]
			assert.Equal(t, want, from.CanTransition(to), "%s -> %s", from, to)
		}
	}

	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusCancelled.Terminal())
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusPending.CanTransition(StatusCompleted))
}

func TestCheckTransitionTable(t *testing.T) {
	require.NoError(t, checkTransitionTable(bookingTransitions))

	missing := map[BookingStatus][]BookingStatus{
		StatusPending:   {StatusConfirmed},
		StatusConfirmed: {},
		StatusCompleted: {},
	}
	assert.Error(t, checkTransitionTable(missing))

	unknown := map[BookingStatus][]BookingStatus{
		StatusPending:   {"archived"},
		StatusConfirmed: {},
		StatusCompleted: {},
		StatusCancelled: {},
	}
	assert.Error(t, checkTransitionTable(unknown))

	loop := map[BookingStatus][]BookingStatus{
		StatusPending:   {StatusPending},
		StatusConfirmed: {},
		StatusCompleted: {},
		StatusCancelled: {},
	}
	assert.Error(t, checkTransitionTable(loop))
}

func TestParseStatuses(t *testing.T) {
	s, ok := ParseBookingStatus("confirmed")
	assert.True(t, ok)
	assert.Equal(t, StatusConfirmed, s)

	_, ok = ParseBookingStatus("changed")
	assert.False(t, ok)

	p, ok := ParsePaymentStatus("paid")
	assert.True(t, ok)
	assert.Equal(t, PaymentPaid, p)

	_, ok = ParsePaymentStatus("refunded")
	assert.False(t, ok)
}

func TestBookingStats_Add(t *testing.T) {
	var s BookingStats
	s.Add(StatusPending, 100)
	s.Add(StatusConfirmed, 200)
	s.Add(StatusCompleted, 300)
	s.Add(StatusCancelled, 1000)

	assert.Equal(t, BookingStats{Total: 4, Pending: 1, Confirmed: 1, Completed: 1, Cancelled: 1, Revenue: 600}, s)
}

func TestCar_NormalizeValidate(t *testing.T) {
	c := &Car{
		Name:         "  Avanza ",
		Brand:        "Toyota",
		Type:         "mpv",
		Transmission: "manual",
		Fuel:         "BENSIN",
		Seats:        7,
		PricePerDay:  350000,
		Rating:       4.5,
		Features:     []string{"AC", " AC", "GPS", ""},
	}
	c.Normalize()

	assert.Equal(t, "Avanza", c.Name)
	assert.Equal(t, CarTypeMPV, c.Type)
	assert.Equal(t, TransmissionManual, c.Transmission)
	assert.Equal(t, FuelBensin, c.Fuel)
	assert.Equal(t, []string{"AC", "GPS"}, c.Features)
	assert.NotNil(t, c.Images)
	require.NoError(t, c.Validate())

	bad := &Car{Type: "truck", Rating: 7}
	err := bad.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name is required")
	assert.Contains(t, err.Error(), `unknown car type "truck"`)
	assert.Contains(t, err.Error(), "rating must be between 0 and 5")
}

func TestUser_Redacted(t *testing.T) {
	u := &User{ID: 1, Email: "a@b.c", Password: "hash", Role: RoleAdmin}
	r := u.Redacted()

	assert.Empty(t, r.Password)
	assert.Equal(t, "hash", u.Password)
	assert.True(t, r.IsAdmin())

	var nilUser *User
	assert.Nil(t, nilUser.Redacted())
	assert.False(t, nilUser.IsAdmin())
}

func TestSession_Leaks(t *testing.T) {
	assert.False(t, (&Session{User: &User{ID: 1}}).Leaks())
	assert.True(t, (&Session{User: &User{ID: 1, Password: "x"}}).Leaks())

	var s *Session
	assert.False(t, s.Leaks())
}

func TestSettings_DriverRate(t *testing.T) {
	var s *Settings
	assert.Equal(t, DefaultDriverFeePerDay, s.DriverRate(DefaultDriverFeePerDay))
	assert.Equal(t, int64(200000), (&Settings{DriverFeePerDay: 200000}).DriverRate(DefaultDriverFeePerDay))
	assert.Equal(t, int64(10), (&Settings{}).DriverRate(10))
}

func TestBookingEventFor(t *testing.T) {
	assert.Equal(t, EventBookingConfirmed, BookingEventFor(StatusConfirmed))
	assert.Equal(t, EventBookingCancelled, BookingEventFor(StatusCancelled))
}

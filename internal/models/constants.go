package models

const (
	// DefaultDriverFeePerDay daily driver rate used while settings carry none
	DefaultDriverFeePerDay int64 = 150000

	// DefaultFeaturedLimit number of cars on the featured strip
	DefaultFeaturedLimit = 6

	// DefaultSessionTTL lifetime of a persisted session in seconds
	DefaultSessionTTL = 7 * 24 * 60 * 60

	// LoginAttempts failed logins tolerated per email within LoginWindow
	LoginAttempts = 5

	// LoginWindow throttling window in seconds
	LoginWindow = 15 * 60

	// NotifyQueueSize buffered booking events awaiting the notifier
	NotifyQueueSize = 256

	// CatalogCacheTTL lifetime of the in-memory car list in seconds
	CatalogCacheTTL = 5 * 60

	// AvatarBaseURL generates placeholder avatars keyed by email
	AvatarBaseURL = "https://i.pravatar.cc/100?u="
)

const (
	EventBookingCreated   = "booking_created"
	EventBookingConfirmed = "booking_confirmed"
	EventBookingCompleted = "booking_completed"
	EventBookingCancelled = "booking_cancelled"
	EventBookingPaid      = "booking_paid"
	EventBookingDeleted   = "booking_deleted"
)

// BookingEventFor maps a lifecycle status to its event name.
func BookingEventFor(s BookingStatus) string {
	return "booking_" + string(s)
}

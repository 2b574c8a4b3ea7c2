package models

import "time"

// Session is the persisted record of one signed-in client context.
// The embedded user must always be redacted.
type Session struct {
	ID        string    `json:"id"`
	User      *User     `json:"user"`
	CreatedAt time.Time `json:"created_at"`
}

// Leaks reports whether the stored identity still carries a credential.
func (s *Session) Leaks() bool {
	return s != nil && s.User != nil && s.User.Password != ""
}

type Favorite struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	CarID     int64     `json:"car_id"`
	CreatedAt time.Time `json:"created_at"`
	Car       *Car      `json:"car,omitempty"`
}

type Location struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address"`
	City    string `json:"city"`
}

// Settings is the single site-wide configuration row.
type Settings struct {
	SiteName        string    `json:"site_name"`
	SiteDescription string    `json:"site_description"`
	ContactEmail    string    `json:"contact_email"`
	ContactPhone    string    `json:"contact_phone"`
	ContactAddress  string    `json:"contact_address"`
	DriverFeePerDay int64     `json:"driver_fee_per_day"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// DriverRate returns the configured driver rate or fallback when unset.
func (s *Settings) DriverRate(fallback int64) int64 {
	if s == nil || s.DriverFeePerDay <= 0 {
		return fallback
	}
	return s.DriverFeePerDay
}

package domain

import (
	"context"
	"errors"
	"io"
	"time"

	"rentacar/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// ErrConcurrentModification is returned by compare-and-set updates whose
// precondition no longer holds.
var ErrConcurrentModification = errors.New("concurrent modification")

type UserRepository interface {
	GetAllUsers(ctx context.Context) ([]*models.User, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	// GetUserByEmail returns (nil, nil) when no user has the address.
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	CreateUser(ctx context.Context, user *models.User) error
	UpdateUser(ctx context.Context, id int64, patch models.UserPatch) (*models.User, error)
	DeleteUser(ctx context.Context, id int64) error
}

type CarRepository interface {
	GetAllCars(ctx context.Context) ([]*models.Car, error)
	GetCarByID(ctx context.Context, id int64) (*models.Car, error)
	GetFeaturedCars(ctx context.Context, limit int) ([]*models.Car, error)
	CreateCar(ctx context.Context, car *models.Car) error
	UpdateCar(ctx context.Context, car *models.Car) error
	AddCarImage(ctx context.Context, id int64, url string) (*models.Car, error)
	DeleteCar(ctx context.Context, id int64) error
}

type BookingRepository interface {
	// GetAllBookings joins car and user summaries, newest first.
	GetAllBookings(ctx context.Context) ([]*models.Booking, error)
	// GetBookingsByUserID joins car summaries, newest first.
	GetBookingsByUserID(ctx context.Context, userID int64) ([]*models.Booking, error)
	GetBookingByID(ctx context.Context, id int64) (*models.Booking, error)
	CreateBooking(ctx context.Context, booking *models.Booking) error
	// UpdateBookingStatus moves a booking from one status to another and
	// fails with ErrConcurrentModification when it is no longer in from.
	UpdateBookingStatus(ctx context.Context, id int64, from, to models.BookingStatus) (*models.Booking, error)
	UpdatePaymentStatus(ctx context.Context, id int64, status models.PaymentStatus) (*models.Booking, error)
	DeleteBooking(ctx context.Context, id int64) error
	GetBookingStats(ctx context.Context) (*models.BookingStats, error)
}

type LocationRepository interface {
	GetLocations(ctx context.Context) ([]*models.Location, error)
	CreateLocation(ctx context.Context, loc *models.Location) error
	UpdateLocation(ctx context.Context, loc *models.Location) error
	DeleteLocation(ctx context.Context, id int64) error
}

type SettingsRepository interface {
	// GetSettings returns an empty row when none has been saved yet.
	GetSettings(ctx context.Context) (*models.Settings, error)
	UpdateSettings(ctx context.Context, settings *models.Settings) error
}

type FavoriteRepository interface {
	GetFavoritesByUserID(ctx context.Context, userID int64) ([]*models.Favorite, error)
	// ToggleFavorite flips membership and reports whether the car is now a favorite.
	ToggleFavorite(ctx context.Context, userID, carID int64) (bool, error)
	IsFavorite(ctx context.Context, userID, carID int64) (bool, error)
}

// Store is the full persistence collaborator.
type Store interface {
	UserRepository
	CarRepository
	BookingRepository
	LocationRepository
	SettingsRepository
	FavoriteRepository
	Ping(ctx context.Context) error
}

type SessionRepository interface {
	// GetSession returns (nil, nil) when the session does not exist.
	GetSession(ctx context.Context, id string) (*models.Session, error)
	SetSession(ctx context.Context, session *models.Session) error
	ClearSession(ctx context.Context, id string) error
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	ResetRateLimit(ctx context.Context, key string) error
}

type ImageStore interface {
	UploadImage(ctx context.Context, ownerID int64, filename string, r io.Reader) (string, error)
	// DeleteImage removes the object behind a URL returned by UploadImage.
	DeleteImage(ctx context.Context, url string) error
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

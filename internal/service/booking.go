package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"rentacar/internal/domain"
	"rentacar/internal/events"
	"rentacar/internal/metrics"
	"rentacar/internal/models"
	"rentacar/internal/pricing"

	"github.com/rs/zerolog"
)

// BookingRequest is the booking form of one identity.
type BookingRequest struct {
	CarID      int64     `json:"car_id"`
	StartDate  time.Time `json:"start_date"`
	EndDate    time.Time `json:"end_date"`
	WithDriver bool      `json:"with_driver"`
	Notes      string    `json:"notes"`
}

// BookingManager owns the booking cache of one client context.
type BookingManager struct {
	bookings         domain.BookingRepository
	cars             domain.CarRepository
	settings         domain.SettingsRepository
	session          *SessionManager
	eventBus         domain.EventPublisher
	defaultDriverFee int64
	logger           *zerolog.Logger

	mu    sync.RWMutex
	items []*models.Booking
	gen   uint64
}

func NewBookingManager(
	store domain.Store,
	session *SessionManager,
	eventBus domain.EventPublisher,
	defaultDriverFee int64,
	logger *zerolog.Logger,
) *BookingManager {
	if defaultDriverFee <= 0 {
		defaultDriverFee = models.DefaultDriverFeePerDay
	}
	m := &BookingManager{
		bookings:         store,
		cars:             store,
		settings:         store,
		session:          session,
		eventBus:         eventBus,
		defaultDriverFee: defaultDriverFee,
		logger:           logger,
	}
	session.OnLogout(m.Reset)
	return m
}

func (m *BookingManager) generation() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.gen
}

// Reset drops the cache. Calls still in flight resolve as no-ops.
func (m *BookingManager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = nil
	m.gen++
}

// Bookings returns the cached bookings of the identity, newest first.
func (m *BookingManager) Bookings() []*models.Booking {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return cloneBookings(m.items)
}

func cloneBookings(list []*models.Booking) []*models.Booking {
	out := make([]*models.Booking, len(list))
	for i, b := range list {
		c := *b
		out[i] = &c
	}
	return out
}

// Load fills the cache with the bookings of the signed-in identity.
func (m *BookingManager) Load(ctx context.Context) error {
	user := m.session.User()
	if user == nil {
		return domain.ErrUnauthenticated
	}
	gen := m.generation()

	list, err := m.bookings.GetBookingsByUserID(ctx, user.ID)
	if err != nil {
		return domain.Persistence(err, "could not load bookings")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gen == gen {
		m.items = list
	}
	return nil
}

// Quote prices a request against the current driver rate without saving it.
func (m *BookingManager) Quote(ctx context.Context, carID int64, start, end time.Time, withDriver bool) (*models.Car, pricing.Quote, error) {
	car, err := m.cars.GetCarByID(ctx, carID)
	if err != nil {
		return nil, pricing.Quote{}, domain.Persistence(err, "could not load car")
	}
	rate, err := m.driverRate(ctx)
	if err != nil {
		return nil, pricing.Quote{}, err
	}
	days := pricing.Days(start, end)
	if days > pricing.MaxDays {
		return nil, pricing.Quote{}, domain.Validation("rentals are limited to %d days", pricing.MaxDays)
	}
	quote := pricing.Calculate(start, end, car.PricePerDay, withDriver, rate)
	if days > 0 && !quote.Valid() {
		return nil, pricing.Quote{}, domain.Validation("price for %d days is out of range", days)
	}
	return car, quote, nil
}

func (m *BookingManager) driverRate(ctx context.Context) (int64, error) {
	settings, err := m.settings.GetSettings(ctx)
	if err != nil {
		return 0, domain.Persistence(err, "could not load pricing settings")
	}
	return settings.DriverRate(m.defaultDriverFee), nil
}

func (m *BookingManager) Create(ctx context.Context, req BookingRequest) (*models.Booking, error) {
	user, err := m.session.Verify(ctx)
	if err != nil {
		return nil, err
	}
	gen := m.generation()

	car, quote, err := m.Quote(ctx, req.CarID, req.StartDate, req.EndDate, req.WithDriver)
	if err != nil {
		return nil, err
	}
	if !car.Available {
		return nil, domain.Validation("%s %s is not available for booking", car.Brand, car.Name)
	}
	if !quote.Valid() {
		return nil, domain.Validation("return date must be after pick-up date")
	}

	booking := &models.Booking{
		UserID:        user.ID,
		CarID:         car.ID,
		StartDate:     req.StartDate,
		EndDate:       req.EndDate,
		Days:          quote.Days,
		WithDriver:    req.WithDriver,
		Subtotal:      quote.Subtotal,
		DriverFee:     quote.DriverFee,
		TotalPrice:    quote.Total,
		Status:        models.StatusPending,
		PaymentStatus: models.PaymentUnpaid,
		Notes:         strings.TrimSpace(req.Notes),
	}
	if err := m.bookings.CreateBooking(ctx, booking); err != nil {
		return nil, domain.Persistence(err, "could not save booking")
	}
	summary := car.Summary()
	booking.Car = &summary

	m.mu.Lock()
	if m.gen == gen {
		c := *booking
		m.items = append([]*models.Booking{&c}, m.items...)
	}
	m.mu.Unlock()

	metrics.IncBooking(string(booking.Status))
	m.publish(models.EventBookingCreated, booking, "user", user.ID)
	m.logger.Info().Int64("booking_id", booking.ID).Int64("user_id", user.ID).Int64("car_id", car.ID).
		Int64("total", booking.TotalPrice).Msg("booking created")
	return booking, nil
}

// UpdateStatus moves a booking along its lifecycle. Administrators may make
// any legal move, owners may only cancel a pending booking.
func (m *BookingManager) UpdateStatus(ctx context.Context, bookingID int64, next models.BookingStatus) (*models.Booking, error) {
	if !next.Valid() {
		return nil, domain.Validation("unknown booking status %q", next)
	}
	actor, err := m.session.Verify(ctx)
	if err != nil {
		return nil, err
	}
	gen := m.generation()

	current, err := m.bookings.GetBookingByID(ctx, bookingID)
	if err != nil {
		return nil, domain.Persistence(err, "could not load booking")
	}
	if !actor.IsAdmin() && current.UserID != actor.ID {
		return nil, domain.Forbidden("booking %d belongs to another user", bookingID)
	}
	if !current.Status.CanTransition(next) {
		return nil, domain.InvalidTransition("booking cannot move from %s to %s", current.Status, next)
	}
	if !actor.IsAdmin() && (current.Status != models.StatusPending || next != models.StatusCancelled) {
		return nil, domain.Forbidden("only pending bookings can be cancelled")
	}

	updated, err := m.bookings.UpdateBookingStatus(ctx, bookingID, current.Status, next)
	if errors.Is(err, domain.ErrConcurrentModification) {
		return nil, domain.InvalidTransition("booking %d changed meanwhile, reload and retry", bookingID)
	}
	if err != nil {
		return nil, domain.Persistence(err, "could not update booking")
	}

	m.replace(gen, updated)
	metrics.IncBooking(string(next))
	m.publish(models.BookingEventFor(next), updated, actorRole(actor), actor.ID)
	m.logger.Info().Int64("booking_id", bookingID).Str("from", string(current.Status)).Str("to", string(next)).
		Int64("actor_id", actor.ID).Msg("booking status changed")
	return updated, nil
}

func (m *BookingManager) Cancel(ctx context.Context, bookingID int64) (*models.Booking, error) {
	return m.UpdateStatus(ctx, bookingID, models.StatusCancelled)
}

// UpdatePaymentStatus records payment bookkeeping. No money moves.
func (m *BookingManager) UpdatePaymentStatus(ctx context.Context, bookingID int64, status models.PaymentStatus) (*models.Booking, error) {
	if _, ok := models.ParsePaymentStatus(string(status)); !ok {
		return nil, domain.Validation("unknown payment status %q", status)
	}
	admin, err := m.session.RequireAdmin(ctx)
	if err != nil {
		return nil, err
	}
	gen := m.generation()

	updated, err := m.bookings.UpdatePaymentStatus(ctx, bookingID, status)
	if err != nil {
		return nil, domain.Persistence(err, "could not update payment status")
	}

	m.replace(gen, updated)
	if status == models.PaymentPaid {
		m.publish(models.EventBookingPaid, updated, actorRole(admin), admin.ID)
	}
	return updated, nil
}

func (m *BookingManager) ListForUser(ctx context.Context, userID int64) ([]*models.Booking, error) {
	actor, err := m.session.Verify(ctx)
	if err != nil {
		return nil, err
	}
	if actor.ID != userID && !actor.IsAdmin() {
		return nil, domain.Forbidden("bookings of another user")
	}
	gen := m.generation()

	list, err := m.bookings.GetBookingsByUserID(ctx, userID)
	if err != nil {
		return nil, domain.Persistence(err, "could not load bookings")
	}

	if actor.ID == userID {
		m.mu.Lock()
		if m.gen == gen {
			m.items = list
		}
		m.mu.Unlock()
		return cloneBookings(list), nil
	}
	return list, nil
}

func (m *BookingManager) ListAll(ctx context.Context) ([]*models.Booking, error) {
	if _, err := m.session.RequireAdmin(ctx); err != nil {
		return nil, err
	}
	list, err := m.bookings.GetAllBookings(ctx)
	if err != nil {
		return nil, domain.Persistence(err, "could not load bookings")
	}
	return list, nil
}

func (m *BookingManager) Stats(ctx context.Context) (*models.BookingStats, error) {
	if _, err := m.session.RequireAdmin(ctx); err != nil {
		return nil, err
	}
	stats, err := m.bookings.GetBookingStats(ctx)
	if err != nil {
		return nil, domain.Persistence(err, "could not load statistics")
	}
	return stats, nil
}

func (m *BookingManager) Delete(ctx context.Context, bookingID int64) error {
	admin, err := m.session.RequireAdmin(ctx)
	if err != nil {
		return err
	}
	gen := m.generation()

	booking, err := m.bookings.GetBookingByID(ctx, bookingID)
	if err != nil {
		return domain.Persistence(err, "could not load booking")
	}
	if err := m.bookings.DeleteBooking(ctx, bookingID); err != nil {
		return domain.Persistence(err, "could not delete booking")
	}

	m.mu.Lock()
	if m.gen == gen {
		kept := make([]*models.Booking, 0, len(m.items))
		for _, b := range m.items {
			if b.ID != bookingID {
				kept = append(kept, b)
			}
		}
		m.items = kept
	}
	m.mu.Unlock()

	m.publish(models.EventBookingDeleted, booking, actorRole(admin), admin.ID)
	return nil
}

// replace swaps a cached booking for its updated row.
func (m *BookingManager) replace(gen uint64, updated *models.Booking) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gen != gen {
		return
	}
	for i, b := range m.items {
		if b.ID == updated.ID {
			c := *updated
			m.items[i] = &c
			return
		}
	}
}

func (m *BookingManager) publish(eventType string, booking *models.Booking, changedBy string, changedByID int64) {
	if m.eventBus == nil {
		return
	}
	payload := events.NewBookingPayload(booking, changedBy, changedByID)
	if err := m.eventBus.PublishJSON(eventType, payload); err != nil {
		m.logger.Error().Err(err).Str("event_type", eventType).Int64("booking_id", booking.ID).Msg("publish event error")
	}
}

func actorRole(u *models.User) string {
	if u.IsAdmin() {
		return "admin"
	}
	return "user"
}

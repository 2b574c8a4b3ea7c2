package events

import (
	"encoding/json"
	"sync"
	"time"

	"rentacar/internal/models"
)

// BookingEventPayload is the booking snapshot handed to event consumers.
type BookingEventPayload struct {
	BookingID     int64     `json:"booking_id"`
	UserID        int64     `json:"user_id"`
	UserName      string    `json:"user_name,omitempty"`
	CarID         int64     `json:"car_id"`
	CarName       string    `json:"car_name,omitempty"`
	Status        string    `json:"status"`
	PaymentStatus string    `json:"payment_status"`
	StartDate     time.Time `json:"start_date"`
	EndDate       time.Time `json:"end_date"`
	WithDriver    bool      `json:"with_driver"`
	TotalPrice    int64     `json:"total_price"`
	Notes         string    `json:"notes,omitempty"`
	ChangedBy     string    `json:"changed_by,omitempty"`
	ChangedByID   int64     `json:"changed_by_id,omitempty"`
}

// NewBookingPayload snapshots b as changed by the given actor.
func NewBookingPayload(b *models.Booking, changedBy string, changedByID int64) BookingEventPayload {
	p := BookingEventPayload{
		BookingID:     b.ID,
		UserID:        b.UserID,
		CarID:         b.CarID,
		Status:        string(b.Status),
		PaymentStatus: string(b.PaymentStatus),
		StartDate:     b.StartDate,
		EndDate:       b.EndDate,
		WithDriver:    b.WithDriver,
		TotalPrice:    b.TotalPrice,
		Notes:         b.Notes,
		ChangedBy:     changedBy,
		ChangedByID:   changedByID,
	}
	if b.Car != nil {
		p.CarName = b.Car.Brand + " " + b.Car.Name
	}
	if b.User != nil {
		p.UserName = b.User.Name
	}
	return p
}

// Event represents a lightweight domain event.
type Event struct {
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// Decode unmarshals the payload into v.
func (e *Event) Decode(v interface{}) error {
	return json.Unmarshal(e.Payload, v)
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
}

// NewEventBus constructs an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// SubscribeAll registers a handler for every listed event type.
func (b *EventBus) SubscribeAll(eventTypes []string, handler EventHandler) {
	for _, t := range eventTypes {
		b.Subscribe(t, handler)
	}
}

// Publish notifies subscribers of the event type.
func (b *EventBus) Publish(event *Event) {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		// Handlers run synchronously; caller decides concurrency model.
		_ = handler(event)
	}
}

// PublishJSON serializes the payload and publishes an event.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	b.Publish(&Event{Type: eventType, Payload: raw, CreatedAt: time.Now()})
	return nil
}

// NewJSONEvent builds an Event with JSON payload for manual publishing.
func NewJSONEvent(eventType string, payload interface{}) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}

	return Event{Type: eventType, Payload: raw, CreatedAt: time.Now()}, nil
}

// BookingEvents lists every booking event type the bus carries.
var BookingEvents = []string{
	models.EventBookingCreated,
	models.EventBookingConfirmed,
	models.EventBookingCompleted,
	models.EventBookingCancelled,
	models.EventBookingPaid,
	models.EventBookingDeleted,
}

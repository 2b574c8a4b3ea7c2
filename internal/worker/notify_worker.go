package worker

import (
	"context"
	"time"

	"rentacar/internal/events"
	"rentacar/internal/metrics"
	"rentacar/internal/models"

	"github.com/rs/zerolog"
)

// Notifier delivers one booking event.
type Notifier interface {
	Notify(ctx context.Context, eventType string, p events.BookingEventPayload) error
}

// NotifyWorker takes booking events off the bus and delivers them in the
// background so publishers never wait on the network.
type NotifyWorker struct {
	notifier    Notifier
	retryPolicy RetryPolicy
	queue       chan *events.Event
	logger      *zerolog.Logger
	sleep       func(ctx context.Context, d time.Duration) bool
}

// NewNotifyWorker builds a worker. Zero retry fields fall back to
// DefaultNotifyRetry.
func NewNotifyWorker(notifier Notifier, retry RetryPolicy, logger *zerolog.Logger) *NotifyWorker {
	l := logger.With().Str("component", "notify_worker").Logger()

	return &NotifyWorker{
		notifier:    notifier,
		retryPolicy: retry.withDefaults(),
		queue:       make(chan *events.Event, models.NotifyQueueSize),
		logger:      &l,
		sleep:       sleepCtx,
	}
}

// Subscribe registers the worker for every booking event.
func (w *NotifyWorker) Subscribe(bus *events.EventBus) {
	bus.SubscribeAll(events.BookingEvents, w.Enqueue)
}

// Enqueue never blocks; events are dropped while the queue is full.
func (w *NotifyWorker) Enqueue(event *events.Event) error {
	select {
	case w.queue <- event:
	default:
		metrics.IncNotification("dropped")
		w.logger.Warn().Str("event", event.Type).Msg("notification queue full, event dropped")
	}
	return nil
}

// Start drains the queue until ctx is done.
func (w *NotifyWorker) Start(ctx context.Context) {
	w.logger.Info().Msg("started")
	defer w.logger.Info().Msg("stopped")

	for {
		select {
		case <-ctx.Done():
			return
		case event := <-w.queue:
			w.process(ctx, event)
		}
	}
}

func (w *NotifyWorker) process(ctx context.Context, event *events.Event) {
	var payload events.BookingEventPayload
	if err := event.Decode(&payload); err != nil {
		metrics.IncNotification("failed")
		w.logger.Error().Err(err).Str("event", event.Type).Msg("undecodable booking event")
		return
	}

	for attempt := 1; ; attempt++ {
		err := w.notifier.Notify(ctx, event.Type, payload)
		if err == nil {
			metrics.IncNotification("sent")
			return
		}
		if attempt >= w.retryPolicy.MaxRetries {
			metrics.IncNotification("failed")
			w.logger.Error().Err(err).Str("event", event.Type).Int64("booking_id", payload.BookingID).
				Int("attempts", attempt).Msg("notification abandoned")
			return
		}

		delay := w.retryPolicy.DelayFor(attempt, err)
		w.logger.Warn().Err(err).Str("event", event.Type).Int("attempt", attempt).Dur("retry_in", delay).Msg("notification failed")
		if !w.sleep(ctx, delay) {
			return
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

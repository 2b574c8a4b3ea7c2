package worker

import (
	"errors"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// RetryPolicy is the backoff applied to a failed admin notification.
// Zero fields take the DefaultNotifyRetry value.
type RetryPolicy struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// DefaultNotifyRetry keeps retrying for about two minutes, well inside the
// window in which a booking alert is still useful to an admin.
var DefaultNotifyRetry = RetryPolicy{
	MaxRetries:    5,
	InitialDelay:  2 * time.Second,
	MaxDelay:      time.Minute,
	BackoffFactor: 2,
}

func (r RetryPolicy) withDefaults() RetryPolicy {
	if r.MaxRetries <= 0 {
		r.MaxRetries = DefaultNotifyRetry.MaxRetries
	}
	if r.InitialDelay <= 0 {
		r.InitialDelay = DefaultNotifyRetry.InitialDelay
	}
	if r.MaxDelay <= 0 {
		r.MaxDelay = DefaultNotifyRetry.MaxDelay
	}
	if r.BackoffFactor < 1 {
		r.BackoffFactor = DefaultNotifyRetry.BackoffFactor
	}
	return r
}

// NextDelay is the wait after the given failed attempt (1-based), growing by
// BackoffFactor per attempt and capped at MaxDelay.
func (r RetryPolicy) NextDelay(attempt int) time.Duration {
	r = r.withDefaults()
	d := r.InitialDelay
	for i := 1; i < attempt && d < r.MaxDelay; i++ {
		d = time.Duration(float64(d) * r.BackoffFactor)
	}
	return min(d, r.MaxDelay)
}

// DelayFor is NextDelay unless Telegram flood control asked for a longer
// pause through retry_after, which is honored even above MaxDelay.
func (r RetryPolicy) DelayFor(attempt int, err error) time.Duration {
	d := r.NextDelay(attempt)
	var tgErr *tgbotapi.Error
	if errors.As(err, &tgErr) && tgErr.RetryAfter > 0 {
		d = max(d, time.Duration(tgErr.RetryAfter)*time.Second)
	}
	return d
}

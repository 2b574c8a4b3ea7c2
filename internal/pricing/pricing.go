// Package pricing computes booking quotes in whole rupiah.
package pricing

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"rentacar/internal/models"
)

// Quote is the derived price of a booking. Total is always Subtotal+DriverFee.
type Quote struct {
	Days      int64 `json:"days"`
	Subtotal  int64 `json:"subtotal"`
	DriverFee int64 `json:"driver_fee"`
	Total     int64 `json:"total"`
}

// Valid reports whether the quote covers at least one day.
func (q Quote) Valid() bool {
	return q.Days > 0
}

// MaxDays is the longest rental that can be quoted.
const MaxDays int64 = 365

const secondsPerDay = 24 * 60 * 60

// Days returns the number of started days between start and end, zero when
// end is not after start. The difference is taken on Unix seconds so it does
// not saturate like time.Duration over long ranges.
func Days(start, end time.Time) int64 {
	secs := end.Unix() - start.Unix()
	nanos := end.Nanosecond() - start.Nanosecond()
	if nanos < 0 {
		secs--
		nanos += int(time.Second)
	}
	if secs < 0 || (secs == 0 && nanos == 0) {
		return 0
	}
	n := secs / secondsPerDay
	if secs%secondsPerDay != 0 || nanos != 0 {
		n++
	}
	return n
}

// Calculate prices a rental. Negative rates count as zero. Rentals over
// MaxDays and totals that overflow int64 yield the zero Quote.
func Calculate(start, end time.Time, pricePerDay int64, withDriver bool, driverRate int64) Quote {
	days := Days(start, end)
	if days <= 0 || days > MaxDays {
		return Quote{}
	}
	pricePerDay = max(pricePerDay, 0)
	driverRate = max(driverRate, 0)

	subtotal, ok := mul(days, pricePerDay)
	if !ok {
		return Quote{}
	}
	q := Quote{Days: days, Subtotal: subtotal}
	if withDriver {
		if q.DriverFee, ok = mul(days, driverRate); !ok {
			return Quote{}
		}
	}
	if q.Subtotal > math.MaxInt64-q.DriverFee {
		return Quote{}
	}
	q.Total = q.Subtotal + q.DriverFee
	return q
}

// mul multiplies non-negative a and b, reporting false on overflow.
func mul(a, b int64) (int64, bool) {
	if a != 0 && b > math.MaxInt64/a {
		return 0, false
	}
	return a * b, true
}

// ParseDate parses a YYYY-MM-DD calendar date as UTC midnight.
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(models.DateLayout, strings.TrimSpace(s), time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return t, nil
}

// FormatRupiah renders n with dot thousand separators, e.g. "Rp 1.950.000".
func FormatRupiah(n int64) string {
	sign := ""
	if n < 0 {
		sign = "-"
		n = -n
	}
	digits := strconv.FormatInt(n, 10)
	var b strings.Builder
	for i, d := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(d)
	}
	return sign + "Rp " + b.String()
}

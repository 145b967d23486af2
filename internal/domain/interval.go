package domain

import (
	"fmt"
	"time"
)

// DefaultAccessTokenTTL is applied when a grant is enabled without an explicit TTL
const DefaultAccessTokenTTL = time.Hour

// DateInterval is a relative lifetime that resolves to an absolute expiry instant
type DateInterval struct {
	Duration time.Duration
}

// NewDateInterval wraps a duration
func NewDateInterval(d time.Duration) DateInterval {
	return DateInterval{Duration: d}
}

// ParseDateInterval accepts Go duration strings such as "15m" or "1h"
func ParseDateInterval(s string) (DateInterval, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return DateInterval{}, fmt.Errorf("invalid interval %q: %w", s, err)
	}
	if d < 0 {
		return DateInterval{}, fmt.Errorf("invalid interval %q: must not be negative", s)
	}
	return DateInterval{Duration: d}, nil
}

// IsZero reports whether the interval was left unset
func (i DateInterval) IsZero() bool {
	return i.Duration == 0
}

// End returns now + interval
func (i DateInterval) End() time.Time {
	return i.EndFrom(time.Now())
}

// EndFrom returns from + interval
func (i DateInterval) EndFrom(from time.Time) time.Time {
	return from.Add(i.Duration)
}

// Seconds returns the interval length in whole seconds
func (i DateInterval) Seconds() int64 {
	return int64(i.Duration / time.Second)
}

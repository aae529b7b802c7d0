package domain

import (
	"errors"
	"time"
)

// TimeInterval is a half-open time range [Start, End).
type TimeInterval struct {
	Start time.Time
	End   time.Time
}

func NewTimeInterval(start, end time.Time) (TimeInterval, error) {
	if !start.Before(end) {
		return TimeInterval{}, errors.New("interval start must be before end")
	}
	return TimeInterval{Start: start, End: end}, nil
}

func (i TimeInterval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

// Overlaps reports whether the two half-open intervals share any instant.
// Touching endpoints do not overlap.
func (i TimeInterval) Overlaps(o TimeInterval) bool {
	return i.Start.Before(o.End) && o.Start.Before(i.End)
}

func (i TimeInterval) UTC() TimeInterval {
	return TimeInterval{Start: i.Start.UTC(), End: i.End.UTC()}
}

func (i TimeInterval) IsZero() bool {
	return i.Start.IsZero() && i.End.IsZero()
}

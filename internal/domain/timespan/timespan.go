// Package timespan provides the half-open interval arithmetic every
// schedule conflict check routes through.
package timespan

import (
	"fmt"
	"time"

	apperrors "github.com/attenda/scheduling/pkg/errors"
)

// Span is a half-open time interval [Start, End). The end is exclusive,
// so back-to-back spans do not overlap.
type Span struct {
	Start time.Time
	End   time.Time
}

// New validates and builds a span. Fails when start >= end.
func New(start, end time.Time) (Span, error) {
	if err := Validate(start, end); err != nil {
		return Span{}, err
	}
	return Span{Start: start, End: end}, nil
}

// Validate fails with an invalid-interval error when start >= end.
func Validate(start, end time.Time) error {
	if !start.Before(end) {
		return apperrors.NewInvalidIntervalError(
			fmt.Sprintf("interval start %s must be before end %s", start.Format(time.RFC3339), end.Format(time.RFC3339)),
		)
	}
	return nil
}

// Overlaps reports whether two half-open intervals intersect:
// a.Start < b.End && b.Start < a.End. Touching endpoints do not overlap.
func (s Span) Overlaps(other Span) bool {
	return s.Start.Before(other.End) && other.Start.Before(s.End)
}

// Contains reports whether t falls inside the span.
func (s Span) Contains(t time.Time) bool {
	return !t.Before(s.Start) && t.Before(s.End)
}

// Duration returns the length of the span.
func (s Span) Duration() time.Duration {
	return s.End.Sub(s.Start)
}

// Day returns the UTC calendar-day window [midnight, midnight+24h)
// containing t.
func Day(t time.Time) Span {
	start := t.UTC().Truncate(24 * time.Hour)
	return Span{Start: start, End: start.Add(24 * time.Hour)}
}

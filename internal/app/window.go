package app

import (
	"fmt"
	"time"
)

// dateLayout is the calendar date form accepted from callers.
const dateLayout = "2006-01-02"

// Window is a half-open timestamp range [Start, End). It is built from two
// inclusive calendar dates: the end date's full day is part of the window.
type Window struct {
	Start time.Time
	End   time.Time
}

// ParseWindow converts two inclusive calendar dates into a Window.
func ParseWindow(start, end string) (*Window, error) {
	s, err := time.ParseInLocation(dateLayout, start, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("%w: start %q: %v", ErrInvalidWindow, start, err)
	}
	e, err := time.ParseInLocation(dateLayout, end, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("%w: end %q: %v", ErrInvalidWindow, end, err)
	}
	if e.Before(s) {
		return nil, fmt.Errorf("%w: end %s before start %s", ErrInvalidWindow, end, start)
	}
	return &Window{Start: s, End: e.AddDate(0, 0, 1)}, nil
}

// validate rejects malformed windows built directly rather than parsed.
func (w *Window) validate() error {
	if w == nil {
		return nil
	}
	if w.End.Before(w.Start) || w.End.Equal(w.Start) {
		return fmt.Errorf("%w: end not after start", ErrInvalidWindow)
	}
	return nil
}

// bounds returns the fetch bounds for the window: an exclusive lower bound
// (one second before Start) and an exclusive upper bound.
func (w *Window) bounds() (sinceExclusive, untilExclusive int64) {
	return w.Start.Unix() - 1, w.End.Unix()
}

// Package daterange resolves the [start, end) window requested from the
// upstream calendar API.
package daterange

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"schoolcal/internal/model"
)

const isoDateLayout = "2006-01-02"

var (
	// ErrInvalidDateFormat is returned when a caller-supplied bound cannot be parsed.
	ErrInvalidDateFormat = errors.New("invalid date format")
	// ErrInvalidRange is returned when the resolved end is not after the start.
	ErrInvalidRange = errors.New("invalid date range")
)

var isoDatePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// FormatError describes a bound that could not be parsed.
type FormatError struct {
	Param  string // "start" or "end"
	Value  string
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("invalid %s date %q: %s (expected YYYY-MM-DD)", e.Param, e.Value, e.Reason)
}

func (e *FormatError) Unwrap() error { return ErrInvalidDateFormat }

// RangeError describes a window whose end is not after its start.
type RangeError struct {
	Start time.Time
	End   time.Time
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("invalid date range: end %s must be after start %s",
		e.End.Format(isoDateLayout), e.Start.Format(isoDateLayout))
}

func (e *RangeError) Unwrap() error { return ErrInvalidRange }

// Default returns the rolling window anchored at now: the first day of the
// previous month up to the first day of the month eleven months ahead. The
// window only moves when the month changes.
func Default(now time.Time) model.DateWindow {
	now = now.UTC()
	y, m, _ := now.Date()
	return model.DateWindow{
		Start: time.Date(y, m-1, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(y, m+11, 1, 0, 0, 0, 0, time.UTC),
	}
}

// Resolve builds a DateWindow from optional start/end strings. Empty strings
// fall back to Default(now). Errors unwrap to ErrInvalidDateFormat or
// ErrInvalidRange.
func Resolve(now time.Time, start, end string) (model.DateWindow, error) {
	w := Default(now)

	if s := strings.TrimSpace(start); s != "" {
		t, err := parseBound("start", s)
		if err != nil {
			return model.DateWindow{}, err
		}
		w.Start = t
	}
	if s := strings.TrimSpace(end); s != "" {
		t, err := parseBound("end", s)
		if err != nil {
			return model.DateWindow{}, err
		}
		w.End = t
	}

	if !w.End.After(w.Start) {
		return model.DateWindow{}, &RangeError{Start: w.Start, End: w.End}
	}
	return w, nil
}

// parseBound accepts strict YYYY-MM-DD (UTC midnight) or anything the
// general-purpose date parser understands, interpreted in UTC. Any time of
// day is dropped so bounds always fall on UTC midnight.
func parseBound(param, s string) (time.Time, error) {
	if isoDatePattern.MatchString(s) {
		t, err := time.ParseInLocation(isoDateLayout, s, time.UTC)
		if err != nil {
			return time.Time{}, &FormatError{Param: param, Value: s, Reason: "not a calendar date"}
		}
		return t, nil
	}

	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return time.Time{}, &FormatError{Param: param, Value: s, Reason: "unrecognized date"}
	}
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
}

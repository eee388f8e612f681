package model

import (
	"time"

	"cloud.google.com/go/civil"
)

// DateWindow is the [Start, End) range requested from upstream. Both bounds
// are UTC and End is strictly after Start.
type DateWindow struct {
	Start time.Time
	End   time.Time
}

// RawEvent is a single upstream record as decoded from JSON. Every field is
// optional; see the accessor helpers in internal/normalize.
type RawEvent map[string]any

// Timing is either AllDay or Timed. The set of implementations is closed.
type Timing interface {
	isTiming()
}

// AllDay spans whole calendar dates. End is nil when upstream gave no end.
type AllDay struct {
	Start civil.Date
	End   *civil.Date
}

// Timed is a floating (zone-less) local date-time range.
type Timed struct {
	Start civil.DateTime
	End   civil.DateTime
}

func (AllDay) isTiming() {}
func (Timed) isTiming() {}

// Event is the canonical form handed to the ICS serializer. Empty optional
// strings mean "absent".
type Event struct {
	UID    string
	Timing Timing

	Summary     string
	Description string
	URL         string
}

package ics

import (
	"errors"
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
)

// ParsedEvent is one VEVENT as read back by the reference iCalendar parser.
// Timed values are parsed in time.Local because the document carries
// floating times; compare them by wall clock, not by instant.
type ParsedEvent struct {
	UID         string
	Summary     string
	Description string
	URL         string

	AllDay bool
	Start  time.Time
	End    time.Time
	HasEnd bool
}

// Parse reads a rendered document back with github.com/arran4/golang-ical.
// It fails if the document does not parse or if any VEVENT lacks UID,
// DTSTAMP or a readable DTSTART.
func Parse(doc string) ([]ParsedEvent, error) {
	if doc == "" {
		return nil, errors.New("empty ICS document")
	}

	cal, err := ical.ParseCalendar(strings.NewReader(doc))
	if err != nil {
		return nil, fmt.Errorf("ics: parse: %w", err)
	}

	events := make([]ParsedEvent, 0)
	for i, ve := range cal.Events() {
		ev, perr := parseVEvent(ve)
		if perr != nil {
			return nil, fmt.Errorf("ics: vevent %d: %w", i, perr)
		}
		events = append(events, ev)
	}
	return events, nil
}

func parseVEvent(ve *ical.VEvent) (ParsedEvent, error) {
	var out ParsedEvent

	uidProp := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uidProp == nil || uidProp.Value == "" {
		return out, errors.New("missing UID")
	}
	out.UID = ical.FromText(uidProp.Value)

	stamp := ve.GetProperty(ical.ComponentPropertyDtstamp)
	if stamp == nil {
		return out, errors.New("missing DTSTAMP")
	}
	if !strings.HasSuffix(stamp.Value, "Z") {
		return out, fmt.Errorf("DTSTAMP %q is not UTC", stamp.Value)
	}
	if _, err := parseICSTime(stamp.Value); err != nil {
		return out, fmt.Errorf("DTSTAMP: %w", err)
	}

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Summary = ical.FromText(p.Value)
	}
	if p := ve.GetProperty(ical.ComponentPropertyDescription); p != nil {
		out.Description = ical.FromText(p.Value)
	}
	if p := ve.GetProperty(ical.ComponentProperty("URL")); p != nil {
		out.URL = ical.FromText(p.Value)
	}

	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil {
		return out, errors.New("missing DTSTART")
	}
	out.AllDay = isDateValue(dtStart)

	var err error
	if out.AllDay {
		out.Start, err = parseICSTime(dtStart.Value)
	} else {
		out.Start, err = ve.GetStartAt()
	}
	if err != nil {
		return out, fmt.Errorf("DTSTART: %w", err)
	}

	if dtEnd := ve.GetProperty(ical.ComponentPropertyDtEnd); dtEnd != nil {
		if out.AllDay {
			out.End, err = parseICSTime(dtEnd.Value)
		} else {
			out.End, err = ve.GetEndAt()
		}
		if err != nil {
			return out, fmt.Errorf("DTEND: %w", err)
		}
		out.HasEnd = true
	}

	return out, nil
}

// isDateValue reports whether a DTSTART/DTEND property holds a DATE value.
func isDateValue(p *ical.IANAProperty) bool {
	if vs, ok := p.ICalParameters["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		return true
	}
	return !strings.Contains(p.Value, "T")
}

// parseICSTime parses a basic DATE, floating DATE-TIME or UTC DATE-TIME value.
func parseICSTime(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, errors.New("empty time value")
	}

	// UTC form, e.g., 20250101T090000Z
	if strings.HasSuffix(v, "Z") {
		return time.Parse("20060102T150405Z", v)
	}

	// Floating date-time, e.g., 20250101T090000
	if strings.Contains(v, "T") {
		return time.ParseInLocation("20060102T150405", v, time.Local)
	}

	// Date-only (all-day), e.g., 20250101
	return time.ParseInLocation("20060102", v, time.Local)
}

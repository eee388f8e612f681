// Package ics renders canonical events as an RFC 5545 iCalendar document.
package ics

import (
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"

	"schoolcal/internal/model"
)

// DefaultProdID identifies this generator in the PRODID property.
const DefaultProdID = "-//schoolcal//School Calendar Feed//EN"

// ContentType is the media type of rendered documents.
const ContentType = "text/calendar; charset=utf-8"

const dtstampLayout = "20060102T150405Z"

// Serializer renders documents. The zero value uses DefaultProdID and emits
// no calendar name.
type Serializer struct {
	ProdID string
	// CalendarName, if set, is emitted as X-WR-CALNAME.
	CalendarName string
}

// Render returns the complete document for events, in the given order.
// now is the generation instant used as DTSTAMP for every VEVENT.
func (s Serializer) Render(events []model.Event, now time.Time) string {
	prodID := s.ProdID
	if prodID == "" {
		prodID = DefaultProdID
	}
	stamp := now.UTC().Format(dtstampLayout)

	var b strings.Builder
	w := lineWriter{b: &b}

	w.raw("BEGIN:VCALENDAR")
	w.raw("VERSION:2.0")
	w.prop("PRODID", prodID)
	w.raw("CALSCALE:GREGORIAN")
	w.raw("METHOD:PUBLISH")
	if s.CalendarName != "" {
		w.text("X-WR-CALNAME", s.CalendarName)
	}

	for _, ev := range events {
		w.raw("BEGIN:VEVENT")
		w.text("UID", ev.UID)
		w.prop("DTSTAMP", stamp)
		writeTiming(w, ev.Timing)
		if ev.Summary != "" {
			w.text("SUMMARY", ev.Summary)
		}
		if ev.Description != "" {
			w.text("DESCRIPTION", ev.Description)
		}
		if ev.URL != "" {
			w.text("URL", ev.URL)
		}
		w.raw("END:VEVENT")
	}

	w.raw("END:VCALENDAR")
	return b.String()
}

func writeTiming(w lineWriter, t model.Timing) {
	switch t := t.(type) {
	case model.AllDay:
		w.prop("DTSTART;VALUE=DATE", formatDate(t.Start))
		if t.End != nil {
			w.prop("DTEND;VALUE=DATE", formatDate(*t.End))
		}
	case model.Timed:
		w.prop("DTSTART", formatDateTime(t.Start))
		w.prop("DTEND", formatDateTime(t.End))
	default:
		panic(fmt.Sprintf("ics: unknown timing %T", t))
	}
}

func formatDate(d civil.Date) string {
	return fmt.Sprintf("%04d%02d%02d", d.Year, int(d.Month), d.Day)
}

// formatDateTime renders floating local time: no zone, no Z suffix.
func formatDateTime(dt civil.DateTime) string {
	return fmt.Sprintf("%sT%02d%02d%02d", formatDate(dt.Date), dt.Time.Hour, dt.Time.Minute, dt.Time.Second)
}

// lineWriter emits folded CRLF-terminated content lines.
type lineWriter struct {
	b *strings.Builder
}

func (w lineWriter) raw(line string) {
	for _, l := range FoldLine(line) {
		w.b.WriteString(l)
		w.b.WriteString(crlf)
	}
}

func (w lineWriter) prop(name, value string) {
	w.raw(name + ":" + value)
}

func (w lineWriter) text(name, value string) {
	w.prop(name, EscapeText(value))
}

package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/araddon/dateparse"
)

var (
	embeddedTimePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}`)
	datePrefixPattern   = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`)

	clock12Pattern = regexp.MustCompile(`(?i)^(\d{1,2})(?::(\d{2}))?\s*(am|pm)$`)
	clock24Pattern = regexp.MustCompile(`^(\d{1,2}):(\d{2})$`)
)

// ParseClock parses a time-of-day such as "3pm", "3:30 PM", "12am" or
// "15:04". Any other shape reports ok == false.
func ParseClock(s string) (civil.Time, bool) {
	s = strings.TrimSpace(s)

	if m := clock12Pattern.FindStringSubmatch(s); m != nil {
		hour, _ := strconv.Atoi(m[1])
		minute := 0
		if m[2] != "" {
			minute, _ = strconv.Atoi(m[2])
		}
		if hour < 1 || hour > 12 || minute > 59 {
			return civil.Time{}, false
		}
		hour %= 12
		if strings.EqualFold(m[3], "pm") {
			hour += 12
		}
		return civil.Time{Hour: hour, Minute: minute}, true
	}

	if m := clock24Pattern.FindStringSubmatch(s); m != nil {
		hour, _ := strconv.Atoi(m[1])
		minute, _ := strconv.Atoi(m[2])
		if hour > 23 || minute > 59 {
			return civil.Time{}, false
		}
		return civil.Time{Hour: hour, Minute: minute}, true
	}

	return civil.Time{}, false
}

// parseEmbedded parses the leading YYYY-MM-DDTHH:MM:SS of s as a wall clock.
// Fractions and any offset or Z suffix are ignored.
func parseEmbedded(s string) (civil.DateTime, bool) {
	if !embeddedTimePattern.MatchString(s) {
		return civil.DateTime{}, false
	}
	dt, err := civil.ParseDateTime(s[:19])
	if err != nil {
		return civil.DateTime{}, false
	}
	return dt, true
}

// parseDate extracts the calendar date portion of s. ISO prefixes are read
// directly; anything else goes through the general date parser.
func parseDate(s string) (civil.Date, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return civil.Date{}, false
	}
	if datePrefixPattern.MatchString(s) {
		d, err := civil.ParseDate(s[:10])
		if err != nil {
			return civil.Date{}, false
		}
		return d, true
	}
	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return civil.Date{}, false
	}
	return civil.DateOf(t), true
}

// combine resolves a date source and an optional clock text into a single
// wall-clock value. An embedded time in dateSrc wins over clockSrc; an
// absent or unparseable clock means midnight.
func combine(dateSrc, clockSrc string) (civil.DateTime, bool) {
	dateSrc = strings.TrimSpace(dateSrc)
	if dt, ok := parseEmbedded(dateSrc); ok {
		return dt, true
	}
	d, ok := parseDate(dateSrc)
	if !ok {
		return civil.DateTime{}, false
	}
	clock, ok := ParseClock(clockSrc)
	if !ok {
		clock = civil.Time{}
	}
	return civil.DateTime{Date: d, Time: clock}, true
}

// addDuration shifts a wall-clock value, rolling over dates as needed.
func addDuration(dt civil.DateTime, d time.Duration) civil.DateTime {
	return civil.DateTimeOf(dt.In(time.UTC).Add(d))
}

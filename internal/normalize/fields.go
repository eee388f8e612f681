package normalize

import (
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"schoolcal/internal/model"
)

// Upstream field names.
const (
	fieldID         = "id"
	fieldTitle      = "title"
	fieldDesc       = "desc"
	fieldDate       = "date"
	fieldTime       = "time"
	fieldStart      = "start"
	fieldEnd        = "end"
	fieldAllDay     = "allDay"
	fieldURL        = "url"
	fieldRecurrence = "recurrence"
)

// text returns the field as a string, or "" when absent, null or of a type
// that has no sensible text form. Numbers are rendered without exponent so
// numeric ids stay stable.
func text(raw model.RawEvent, key string) string {
	v, ok := raw[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

// trimmed is text with surrounding whitespace removed.
func trimmed(raw model.RawEvent, key string) string {
	return strings.TrimSpace(text(raw, key))
}

// flag reports whether the field holds a truthy value: true, a non-zero
// number, or a string strconv.ParseBool accepts as true.
func flag(raw model.RawEvent, key string) bool {
	v, ok := raw[key]
	if !ok || v == nil {
		return false
	}
	switch t := v.(type) {
	case bool:
		return t
	case float64:
		return t != 0
	case json.Number:
		f, err := t.Float64()
		return err == nil && f != 0
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(t))
		return err == nil && b
	default:
		return false
	}
}

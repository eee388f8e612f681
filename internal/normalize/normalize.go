// Package normalize maps loosely-typed upstream calendar records onto
// model.Event values.
package normalize

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	appLog "schoolcal/internal/log"
	"schoolcal/internal/model"
)

// DefaultUIDDomain is appended to upstream ids when no domain is configured.
const DefaultUIDDomain = "schoolcal.local"

const (
	allDayText       = "all day"
	defaultTimedSpan = time.Hour
)

// Normalizer converts RawEvent records. The zero value is usable.
type Normalizer struct {
	// UIDDomain is the suffix after '@' in generated UIDs.
	UIDDomain string
}

// Normalize maps one raw record. ok is false when no start could be derived;
// such records are meant to be skipped, not reported.
func (n Normalizer) Normalize(raw model.RawEvent) (model.Event, bool) {
	timing, ok := n.timing(raw)
	if !ok {
		return model.Event{}, false
	}

	return model.Event{
		UID:         n.uid(raw),
		Timing:      timing,
		Summary:     nonBlank(text(raw, fieldTitle)),
		Description: description(raw),
		URL:         nonBlank(text(raw, fieldURL)),
	}, true
}

// NormalizeAll maps raws in order and returns the events that could be
// normalized together with the number of dropped records.
func (n Normalizer) NormalizeAll(raws []model.RawEvent) ([]model.Event, int) {
	events := make([]model.Event, 0, len(raws))
	dropped := 0
	for _, raw := range raws {
		ev, ok := n.Normalize(raw)
		if !ok {
			dropped++
			appLog.Debug("event dropped: no usable start", "id", text(raw, fieldID))
			continue
		}
		events = append(events, ev)
	}
	return events, dropped
}

func (n Normalizer) timing(raw model.RawEvent) (model.Timing, bool) {
	dateSrc := trimmed(raw, fieldStart)
	if dateSrc == "" {
		dateSrc = trimmed(raw, fieldDate)
	}
	clockSrc := trimmed(raw, fieldTime)
	endSrc := trimmed(raw, fieldEnd)

	if flag(raw, fieldAllDay) || strings.EqualFold(clockSrc, allDayText) {
		start, ok := parseDate(dateSrc)
		if !ok {
			return nil, false
		}
		t := model.AllDay{Start: start}
		if end, ok := parseDate(endSrc); ok {
			t.End = &end
		}
		return t, true
	}

	start, ok := combine(dateSrc, clockSrc)
	if !ok {
		return nil, false
	}
	end, ok := combine(endSrc, "")
	if ok && !end.After(start) {
		appLog.Debug("event end not after start, using default span",
			"id", text(raw, fieldID), "start", start.String(), "end", end.String())
	}
	if !ok || !end.After(start) {
		end = addDuration(start, defaultTimedSpan)
	}
	return model.Timed{Start: start, End: end}, true
}

func (n Normalizer) uid(raw model.RawEvent) string {
	domain := n.UIDDomain
	if domain == "" {
		domain = DefaultUIDDomain
	}
	id := trimmed(raw, fieldID)
	if id == "" {
		// No upstream id: hash the fields that identify the occurrence.
		sum := sha256.Sum256([]byte(text(raw, fieldTitle) + "|" + text(raw, fieldStart) + "|" + text(raw, fieldDate) + "|" + text(raw, fieldTime)))
		id = "evt-" + hex.EncodeToString(sum[:8])
	}
	return id + "@" + domain
}

// description joins desc and recurrence with a line break, skipping blanks.
func description(raw model.RawEvent) string {
	parts := make([]string, 0, 2)
	for _, key := range []string{fieldDesc, fieldRecurrence} {
		if v := nonBlank(text(raw, key)); v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, "\n")
}

func nonBlank(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}
	return s
}

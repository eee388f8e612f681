package feed

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schoolcal/internal/daterange"
	"schoolcal/internal/ics"
	"schoolcal/internal/model"
	"schoolcal/internal/normalize"
	"schoolcal/internal/upstream"
)

type stubSource struct {
	events []model.RawEvent
	err    error
	calls  []model.DateWindow
}

func (s *stubSource) Fetch(_ context.Context, w model.DateWindow) ([]model.RawEvent, error) {
	s.calls = append(s.calls, w)
	return s.events, s.err
}

var fixedNow = time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

func newService(src Source) *Service {
	return New(src, normalize.Normalizer{UIDDomain: "example.edu"}, ics.Serializer{}).
		WithClock(func() time.Time { return fixedNow })
}

func TestBuild_EndToEnd(t *testing.T) {
	src := &stubSource{events: []model.RawEvent{
		{"id": float64(1), "title": "Assembly", "start": "2025-12-01T14:00:00"},
		{"id": float64(2), "title": "No date"},
		{"id": float64(3), "title": "Break", "allDay": true, "start": "2025-12-22", "time": "10:00am"},
	}}

	res, err := newService(src).Build(context.Background(), "", "")
	require.NoError(t, err)

	require.Len(t, src.calls, 1)
	assert.Equal(t, daterange.Default(fixedNow), src.calls[0])
	assert.Equal(t, src.calls[0], res.Window)
	assert.Equal(t, 2, res.EventCount)
	assert.Equal(t, 1, res.Dropped)

	doc := res.Document
	assert.Contains(t, doc, "UID:1@example.edu\r\n")
	assert.NotContains(t, doc, "UID:2@example.edu")
	assert.Contains(t, doc, "DTSTART:20251201T140000\r\nDTEND:20251201T150000\r\n")
	assert.Contains(t, doc, "DTSTART;VALUE=DATE:20251222\r\n")
	assert.Equal(t, 2, strings.Count(doc, "DTSTAMP:20250615T100000Z\r\n"))

	parsed, err := ics.Parse(doc)
	require.NoError(t, err)
	assert.Len(t, parsed, 2)
}

func TestBuild_RangeErrorSkipsFetch(t *testing.T) {
	src := &stubSource{}
	_, err := newService(src).Build(context.Background(), "2025-02-01", "2025-01-01")
	assert.True(t, errors.Is(err, daterange.ErrInvalidRange))
	assert.Empty(t, src.calls)

	_, err = newService(src).Build(context.Background(), "garbage", "")
	assert.True(t, errors.Is(err, daterange.ErrInvalidDateFormat))
	assert.Empty(t, src.calls)
}

func TestBuild_UpstreamErrorPassesThrough(t *testing.T) {
	src := &stubSource{err: &upstream.StatusError{StatusCode: 500}}
	_, err := newService(src).Build(context.Background(), "2025-01-01", "2025-02-01")

	var se *upstream.StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, 500, se.StatusCode)
	assert.True(t, errors.Is(err, upstream.ErrFetchFailed))
}

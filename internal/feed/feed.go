// Package feed runs the per-request pipeline: resolve the date window, fetch
// upstream records, normalize them and render the iCalendar document.
package feed

import (
	"context"
	"time"

	"schoolcal/internal/daterange"
	"schoolcal/internal/ics"
	appLog "schoolcal/internal/log"
	"schoolcal/internal/model"
	"schoolcal/internal/normalize"
)

// Source supplies raw upstream records for a window.
type Source interface {
	Fetch(ctx context.Context, w model.DateWindow) ([]model.RawEvent, error)
}

// Result is one rendered feed.
type Result struct {
	Document    string
	Window      model.DateWindow
	GeneratedAt time.Time
	EventCount  int
	Dropped     int
}

// Service is safe for concurrent use; it holds no mutable state.
type Service struct {
	source     Source
	normalizer normalize.Normalizer
	serializer ics.Serializer
	now        func() time.Time
}

func New(source Source, n normalize.Normalizer, s ics.Serializer) *Service {
	return &Service{
		source:     source,
		normalizer: n,
		serializer: s,
		now:        time.Now,
	}
}

// WithClock replaces the time source used for default windows and DTSTAMP.
func (s *Service) WithClock(now func() time.Time) *Service {
	cp := *s
	cp.now = now
	return &cp
}

// Build produces the document for the optional start/end bounds. Errors
// come from daterange (bad input) or upstream (fetch failure) unchanged.
func (s *Service) Build(ctx context.Context, start, end string) (Result, error) {
	now := s.now()

	window, err := daterange.Resolve(now, start, end)
	if err != nil {
		return Result{}, err
	}

	raws, err := s.source.Fetch(ctx, window)
	if err != nil {
		return Result{}, err
	}

	events, dropped := s.normalizer.NormalizeAll(raws)
	if dropped > 0 {
		appLog.Info("feed: dropped events without usable start", "dropped_count", dropped, "raw_count", len(raws))
	}

	return Result{
		Document:    s.serializer.Render(events, now),
		Window:      window,
		GeneratedAt: now,
		EventCount:  len(events),
		Dropped:     dropped,
	}, nil
}

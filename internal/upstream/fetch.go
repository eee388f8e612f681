// Package upstream fetches raw event records from the school's calendar API.
package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	appLog "schoolcal/internal/log"
	"schoolcal/internal/model"
)

// ErrFetchFailed is the sentinel every fetch error unwraps to.
var ErrFetchFailed = errors.New("upstream fetch failed")

// windowLayout is how window bounds are sent upstream.
const windowLayout = "2006-01-02T00:00:00"

// StatusError reports a non-200 upstream response.
type StatusError struct {
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream returned status %d", e.StatusCode)
}

func (e *StatusError) Unwrap() error { return ErrFetchFailed }

// Config describes the upstream endpoint and its query parameter names.
type Config struct {
	// URL is the events endpoint. Query parameters already present are kept.
	URL string
	// Params identify the calendar and view, e.g. {"calendarId": "42"}.
	Params map[string]string

	StartParam     string
	EndParam       string
	CacheBustParam string

	// Timeout bounds one request. Zero leaves it to the caller's context.
	Timeout time.Duration
}

// Fetcher performs one GET per call. It keeps no state between calls.
type Fetcher struct {
	client   *http.Client
	cfg      Config
	newToken func() string
}

// NewFetcher creates a Fetcher; empty parameter names default to "start",
// "end" and "_".
func NewFetcher(cfg Config) *Fetcher {
	if cfg.StartParam == "" {
		cfg.StartParam = "start"
	}
	if cfg.EndParam == "" {
		cfg.EndParam = "end"
	}
	if cfg.CacheBustParam == "" {
		cfg.CacheBustParam = "_"
	}
	return &Fetcher{
		client:   &http.Client{Timeout: cfg.Timeout},
		cfg:      cfg,
		newToken: uuid.NewString,
	}
}

// Fetch requests the events inside w. Every error unwraps to ErrFetchFailed;
// non-200 responses are reported as *StatusError.
func (f *Fetcher) Fetch(ctx context.Context, w model.DateWindow) ([]model.RawEvent, error) {
	reqURL, err := f.requestURL(w)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	req.Header.Set("Accept", "application/json")

	appLog.Info("upstream fetch start", "url", redactURL(reqURL),
		"start", w.Start.UTC().Format(windowLayout), "end", w.End.UTC().Format(windowLayout))

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &StatusError{StatusCode: resp.StatusCode, Status: resp.Status}
	}

	events, err := decodeEvents(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}

	appLog.Info("upstream fetch success", "url", redactURL(reqURL), "status", resp.StatusCode, "event_count", len(events))
	return events, nil
}

func (f *Fetcher) requestURL(w model.DateWindow) (string, error) {
	u, err := url.Parse(f.cfg.URL)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("upstream URL %q is not absolute", f.cfg.URL)
	}

	q := u.Query()
	for k, v := range f.cfg.Params {
		q.Set(k, v)
	}
	q.Set(f.cfg.StartParam, w.Start.UTC().Format(windowLayout))
	q.Set(f.cfg.EndParam, w.End.UTC().Format(windowLayout))
	q.Set(f.cfg.CacheBustParam, f.newToken())
	u.RawQuery = q.Encode()

	return u.String(), nil
}

// decodeEvents reads a JSON array. Elements that are not objects become
// empty records, which the normalizer later drops. Numbers are kept as
// json.Number so large ids survive unrounded.
func decodeEvents(r io.Reader) ([]model.RawEvent, error) {
	var items []any
	dec := json.NewDecoder(r)
	dec.UseNumber()
	if err := dec.Decode(&items); err != nil {
		return nil, fmt.Errorf("decode events: %w", err)
	}

	events := make([]model.RawEvent, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			events = append(events, model.RawEvent{})
			continue
		}
		events = append(events, model.RawEvent(obj))
	}
	return events, nil
}

// redactURL hides the query string of an upstream URL for logging purposes.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "upstream://...(redacted)"
	}
	return u.Scheme + "://" + u.Host + u.Path
}

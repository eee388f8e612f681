package web

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schoolcal/internal/config"
	"schoolcal/internal/feed"
	"schoolcal/internal/ics"
	"schoolcal/internal/normalize"
	"schoolcal/internal/upstream"
)

var fixedNow = time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

// newStack wires the real pipeline against a fake upstream.
func newStack(t *testing.T, cfg *config.Config, upstreamHandler http.HandlerFunc) *httptest.Server {
	t.Helper()
	up := httptest.NewServer(upstreamHandler)
	t.Cleanup(up.Close)

	fetcher := upstream.NewFetcher(upstream.Config{URL: up.URL + "/events"})
	svc := feed.New(fetcher, normalize.Normalizer{UIDDomain: "example.edu"}, ics.Serializer{}).
		WithClock(func() time.Time { return fixedNow })

	srv := httptest.NewServer(NewServer(cfg, svc).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Normalize()
	return cfg
}

func get(t *testing.T, url string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func TestFeed_Success(t *testing.T) {
	var gotQuery string
	srv := newStack(t, testConfig(), func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		_, _ = w.Write([]byte(`[
			{"id": 1, "title": "Assembly", "start": "2025-12-01T14:00:00"},
			{"id": 2, "title": "Orphan"},
			{"id": 3, "title": "Break", "allDay": true, "date": "2025-12-22", "time": "10:00am"}
		]`))
	})

	resp, body := get(t, srv.URL+"/calendar.ics?start=2025-09-01&end=2026-07-01")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/calendar; charset=utf-8", resp.Header.Get("Content-Type"))
	assert.Equal(t, "no-cache", resp.Header.Get("Cache-Control"))

	assert.Contains(t, gotQuery, "start=2025-09-01T00%3A00%3A00")
	assert.Contains(t, gotQuery, "end=2026-07-01T00%3A00%3A00")

	assert.Contains(t, body, "UID:1@example.edu\r\n")
	assert.Contains(t, body, "DTSTART:20251201T140000\r\nDTEND:20251201T150000\r\n")
	assert.Contains(t, body, "DTSTART;VALUE=DATE:20251222\r\n")
	assert.NotContains(t, body, "Orphan")

	parsed, err := ics.Parse(body)
	require.NoError(t, err)
	assert.Len(t, parsed, 2)
}

func TestFeed_Head(t *testing.T) {
	srv := newStack(t, testConfig(), func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	})
	resp, err := http.Head(srv.URL + "/calendar.ics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEqual(t, "0", resp.Header.Get("Content-Length"))
}

func TestFeed_BadRequest(t *testing.T) {
	calls := 0
	srv := newStack(t, testConfig(), func(w http.ResponseWriter, r *http.Request) {
		calls++
		_, _ = w.Write([]byte(`[]`))
	})

	cases := map[string]string{
		"?start=not-a-date":                "not-a-date",
		"?start=2025-02-01&end=2025-01-01": "invalid date range",
		"?start=2025-01-01&end=2025-01-01": "invalid date range",
		"?end=2024-01-01":                  "invalid date range",
	}
	for query, want := range cases {
		t.Run(query, func(t *testing.T) {
			resp, body := get(t, srv.URL+"/calendar.ics"+query)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), "text/plain"))
			assert.Contains(t, body, want)
			assert.Equal(t, 1, strings.Count(body, "\n"), "single-line message")
		})
	}
	assert.Zero(t, calls, "upstream must not be called for invalid input")
}

func TestFeed_UpstreamStatus(t *testing.T) {
	srv := newStack(t, testConfig(), func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	})

	resp, body := get(t, srv.URL+"/calendar.ics")
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Contains(t, body, "503")
}

func TestFeed_UpstreamGarbage(t *testing.T) {
	srv := newStack(t, testConfig(), func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>`))
	})

	resp, body := get(t, srv.URL+"/calendar.ics")
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Contains(t, body, "upstream calendar request failed")
}

func TestFeed_MethodNotAllowed(t *testing.T) {
	srv := newStack(t, testConfig(), func(w http.ResponseWriter, r *http.Request) {})
	resp, err := http.Post(srv.URL+"/calendar.ics", "text/plain", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	assert.Equal(t, "GET, HEAD", resp.Header.Get("Allow"))
}

func TestBasicAuth(t *testing.T) {
	cfg := testConfig()
	cfg.BasicAuth = &config.BasicAuthConfig{Username: "office", Password: "s3cret"}
	srv := newStack(t, cfg, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	})

	resp, _ := get(t, srv.URL+"/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = get(t, srv.URL+"/calendar.ics")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("WWW-Authenticate"))

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/calendar.ics", nil)
	require.NoError(t, err)
	req.SetBasicAuth("office", "s3cret")
	authed, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	authed.Body.Close()
	assert.Equal(t, http.StatusOK, authed.StatusCode)
}

func TestErrorResponse_Unknown(t *testing.T) {
	status, msg := errorResponse(fmt.Errorf("wrapped: %w", context.Canceled))
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "internal error", msg)
}

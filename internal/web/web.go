package web

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"schoolcal/internal/config"
	"schoolcal/internal/daterange"
	"schoolcal/internal/feed"
	"schoolcal/internal/ics"
	appLog "schoolcal/internal/log"
	"schoolcal/internal/upstream"
)

// FeedBuilder produces a rendered feed for optional start/end bounds.
type FeedBuilder interface {
	Build(ctx context.Context, start, end string) (feed.Result, error)
}

// Server serves /health and the iCalendar feed.
type Server struct {
	cfg  *config.Config
	feed FeedBuilder
	mux  *http.ServeMux
}

// NewServer constructs a new Server.
func NewServer(cfg *config.Config, fb FeedBuilder) *Server {
	s := &Server{
		cfg:  cfg,
		feed: fb,
		mux:  http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		h = s.basicAuthMiddleware(h)
	}
	return accessLog(h)
}

// ListenAndServe serves until ctx is canceled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen, "feed_path", s.cfg.FeedPath)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc(s.cfg.FeedPath, s.handleFeed)
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="schoolcal", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleFeed serves the iCalendar document.
//
// GET /calendar.ics?start=YYYY-MM-DD&end=YYYY-MM-DD
//   - start, end: optional window bounds; defaults roll monthly.
func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		writeText(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	q := r.URL.Query()
	res, err := s.feed.Build(r.Context(), q.Get("start"), q.Get("end"))
	if err != nil {
		status, msg := errorResponse(err)
		if status >= http.StatusInternalServerError {
			appLog.Error("feed request failed", err, "status", status)
		} else {
			appLog.Info("feed request rejected", "status", status, "reason", msg)
		}
		writeText(w, status, msg)
		return
	}

	appLog.Info("feed served",
		"range_start", res.Window.Start.Format(time.RFC3339),
		"range_end", res.Window.End.Format(time.RFC3339),
		"event_count", res.EventCount,
		"dropped_count", res.Dropped,
	)

	w.Header().Set("Content-Type", ics.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(res.Document)))
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	_, _ = w.Write([]byte(res.Document))
}

// errorResponse maps pipeline errors onto a status code and a single-line
// client message.
func errorResponse(err error) (int, string) {
	var se *upstream.StatusError
	switch {
	case errors.Is(err, daterange.ErrInvalidDateFormat), errors.Is(err, daterange.ErrInvalidRange):
		return http.StatusBadRequest, err.Error()
	case errors.As(err, &se):
		return http.StatusBadGateway, "upstream calendar returned status " + strconv.Itoa(se.StatusCode)
	case errors.Is(err, upstream.ErrFetchFailed):
		return http.StatusBadGateway, "upstream calendar request failed"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func writeText(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(singleLine(msg) + "\n"))
}

func singleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// statusRecorder captures the status code for access logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		appLog.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"elapsed", time.Since(started).String(),
		)
	})
}

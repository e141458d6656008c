// Package health serves the liveness endpoints used by the hosting platform.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/m3rciful/smpbot/core/logger"
)

const shutdownTimeout = 5 * time.Second

// Schedule exposes the upcoming fire time.
type Schedule interface {
	NextRun() time.Time
	Label() string
}

// Options configure a Server.
type Options struct {
	Addr     string
	Location *time.Location
	Schedule Schedule
	Message  string
	Now      func() time.Time
}

// Status is the body of GET /.
type Status struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
	Timezone  string `json:"timezone"`
	Schedule  string `json:"schedule"`
	NextRun   string `json:"next_run"`
}

// Server answers GET / with a JSON status and GET /health with "OK".
type Server struct {
	opts Options
	mux  *http.ServeMux
	srv  *http.Server
}

// New builds a server; it does not listen until Run.
func New(opts Options) *Server {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Message == "" {
		opts.Message = "SMP weekly report bot is running"
	}
	s := &Server{opts: opts, mux: http.NewServeMux()}
	s.mux.HandleFunc("GET /{$}", s.handleStatus)
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.srv = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	return logRequests(s.mux)
}

// Mount serves h under path on the same listener, e.g. the Telegram webhook.
func (s *Server) Mount(path string, h http.Handler) {
	s.mux.Handle(path, h)
	logger.HTTP.Info("mounted",
		slog.String("event", "http.mount"),
		slog.String("path", path),
	)
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	body := Status{
		Status:    "OK",
		Message:   s.opts.Message,
		Timestamp: s.opts.Now().In(s.opts.Location).Format(time.RFC3339),
		Timezone:  s.opts.Location.String(),
	}
	if s.opts.Schedule != nil {
		body.Schedule = s.opts.Schedule.Label()
		if next := s.opts.Schedule.NextRun(); !next.IsZero() {
			body.NextRun = next.In(s.opts.Location).Format(time.RFC3339)
		}
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.HTTP.Warn("encode status failed",
			slog.String("event", "http.encode"),
			slog.String("err", err.Error()),
		)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// Run listens on the configured address until ctx is done, then shuts
// down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("health: listen %s: %w", s.opts.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	logger.HTTP.Info("listening",
		slog.String("event", "http.listen"),
		slog.String("listen", ln.Addr().String()),
	)

	errCh := make(chan error, 1)
	go func() { errCh <- s.srv.Serve(ln) }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("health: serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("health: shutdown: %w", err)
	}
	<-errCh
	logger.HTTP.Info("stopped", slog.String("event", "http.stop"))
	return nil
}

type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.HTTP.LogAttrs(r.Context(), slog.LevelDebug, "",
			slog.String("event", "http.request"),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("http_code", rec.code),
			slog.Duration("duration", logger.Took(start)),
		)
	})
}

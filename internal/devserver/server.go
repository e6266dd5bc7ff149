// Package devserver serves the output root during development and pushes
// live reload notifications to connected browsers.
package devserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"path"
	"sync"
	"time"

	ferrors "git.home.luguber.info/inful/assetpipe/internal/foundation/errors"
	"git.home.luguber.info/inful/assetpipe/internal/logfields"
	"git.home.luguber.info/inful/assetpipe/internal/metrics"
)

// Reserved endpoints.
const (
	EventsPath = "/__assetpipe/livereload"
	ScriptPath = "/__assetpipe/livereload.js"
	StatusPath = "/__assetpipe/status"
)

// Options configures a Server.
type Options struct {
	// Root is the directory served at "/".
	Root string
	// Addr is the listen address, host:port.
	Addr       string
	LiveReload bool
	// Metrics, when set, is mounted at MetricsPath.
	Metrics     http.Handler
	MetricsPath string
	Recorder    metrics.Recorder
	Logger      *slog.Logger
}

// Status is the JSON document served at StatusPath.
type Status struct {
	HasGoodBuild bool      `json:"has_good_build"`
	LastError    string    `json:"last_error,omitempty"`
	LastChange   time.Time `json:"last_change,omitzero"`
	Clients      int       `json:"clients"`
}

// Server is the development HTTP server.
type Server struct {
	opts   Options
	hub    *Hub
	logger *slog.Logger

	mu     sync.Mutex
	status Status
	srv    *http.Server
	ln     net.Listener
}

// New creates a server; call Start to begin listening.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{opts: opts, hub: NewHub(opts.Recorder), logger: logger}
}

// Handler returns the routing handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	files := http.Handler(noCache(http.FileServer(http.Dir(s.opts.Root))))
	if s.opts.LiveReload {
		mux.Handle(EventsPath, s.hub)
		mux.HandleFunc(ScriptPath, func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
			if _, err := w.Write([]byte(clientScript)); err != nil {
				s.logger.Error("failed to write livereload script", logfields.Error(err))
			}
		})
		files = injectScript(files)
	}
	mux.HandleFunc(StatusPath, s.handleStatus)
	if s.opts.Metrics != nil && s.opts.MetricsPath != "" {
		mux.Handle(s.opts.MetricsPath, s.opts.Metrics)
	}
	mux.Handle("/", files)
	return mux
}

func noCache(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-cache")
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	st := s.Status()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(st); err != nil {
		s.logger.Error("failed to write status", logfields.Error(err))
	}
}

// Start binds the listen address and serves in the background.
func (s *Server) Start(_ context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryServer, "listen").WithContext("addr", s.opts.Addr).Build()
	}
	// SSE connections are long lived, so no read or write timeouts.
	srv := &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second, IdleTimeout: 120 * time.Second}
	s.mu.Lock()
	s.srv, s.ln = srv, ln
	s.mu.Unlock()
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Dev server error", logfields.Error(err))
		}
	}()
	s.logger.Info("Dev server listening", logfields.Addr(s.Addr()), slog.String("url", s.URL()))
	return nil
}

// Addr is the bound address, or the configured one before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln != nil {
		return s.ln.Addr().String()
	}
	return s.opts.Addr
}

// URL is the browsable root URL.
func (s *Server) URL() string { return fmt.Sprintf("http://%s/", s.Addr()) }

// Shutdown disconnects live reload clients and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Shutdown()
	s.mu.Lock()
	srv := s.srv
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	if err := srv.Shutdown(ctx); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryServer, "dev server shutdown").Build()
	}
	s.logger.Info("Dev server stopped")
	return nil
}

// Notify tells browsers that the output-root relative paths changed. A change
// made only of stylesheets is injected; anything else reloads the page.
func (s *Server) Notify(paths []string) {
	if len(paths) == 0 {
		return
	}
	s.mu.Lock()
	s.status.LastChange = time.Now()
	s.mu.Unlock()
	if !s.opts.LiveReload {
		return
	}
	for _, p := range paths {
		if path.Ext(p) != ".css" {
			s.hub.Broadcast(Message{Type: KindReload})
			return
		}
	}
	s.hub.Broadcast(Message{Type: KindInject, Paths: paths})
}

// NotifyError records a failed rerun and shows it in the browser console.
// Served files are left as they are.
func (s *Server) NotifyError(err error) {
	if err == nil {
		return
	}
	s.mu.Lock()
	s.status.LastError = err.Error()
	s.mu.Unlock()
	if s.opts.LiveReload {
		s.hub.Broadcast(Message{Type: KindError, Message: err.Error()})
	}
}

// NotifyRecovered clears the last error once every rerun succeeds again.
func (s *Server) NotifyRecovered() {
	s.mu.Lock()
	s.status.LastError = ""
	s.status.HasGoodBuild = true
	s.mu.Unlock()
}

// BuildComplete records the outcome of a full sequence.
func (s *Server) BuildComplete(err error) {
	if err != nil {
		s.NotifyError(err)
		return
	}
	s.mu.Lock()
	s.status.HasGoodBuild = true
	s.status.LastError = ""
	s.mu.Unlock()
}

// Status returns a snapshot of the build status.
func (s *Server) Status() Status {
	s.mu.Lock()
	st := s.status
	s.mu.Unlock()
	st.Clients = s.hub.Clients()
	return st
}

// Package plot serves the dashboard page and streams chart operations and
// state snapshots to it over a websocket.
package plot

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/raykavin/signalsense/pkg/dashboard"
	"github.com/raykavin/signalsense/pkg/logger"
)

// Static assets embedded in the binary
var (
	//go:embed assets
	staticFiles embed.FS
)

// Server is the HTTP face of a Dashboard.
type Server struct {
	port           int
	debug          bool
	title          string
	requestTimeout time.Duration
	board          *dashboard.Dashboard
	hub            *Hub
	factory        *RemoteFactory
	gatherer       prometheus.Gatherer
	indexHTML      *template.Template
	scriptContent  string
	started        time.Time
	log            logger.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithPort sets the HTTP server port
func WithPort(port int) Option {
	return func(s *Server) {
		s.port = port
	}
}

// WithDebug serves the page script unminified
func WithDebug() Option {
	return func(s *Server) {
		s.debug = true
	}
}

// WithTitle sets the page title
func WithTitle(title string) Option {
	return func(s *Server) {
		s.title = title
	}
}

// WithGatherer exposes the collectors of g on /metrics
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// WithRequestTimeout bounds the upstream work of one API call
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.requestTimeout = d
		}
	}
}

// NewServer wires board, hub and factory together: state changes and chart
// operations are pushed to the hub, and new pages are greeted with the
// current snapshot followed by a replay of the live chart.
func NewServer(board *dashboard.Dashboard, hub *Hub, factory *RemoteFactory, log logger.Logger, options ...Option) (*Server, error) {
	s := &Server{
		port:           8080,
		title:          "SignalSense",
		requestTimeout: 30 * time.Second,
		board:          board,
		hub:            hub,
		factory:        factory,
		gatherer:       prometheus.DefaultGatherer,
		started:        time.Now(),
		log:            log,
	}

	for _, option := range options {
		option(s)
	}

	var err error
	s.indexHTML, err = template.ParseFS(staticFiles, "assets/index.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse dashboard template: %w", err)
	}

	script, err := staticFiles.ReadFile("assets/dashboard.js")
	if err != nil {
		return nil, fmt.Errorf("failed to read dashboard.js: %w", err)
	}

	result := api.Transform(string(script), api.TransformOptions{
		Loader:            api.LoaderJS,
		Target:            api.ES2017,
		MinifySyntax:      !s.debug,
		MinifyIdentifiers: !s.debug,
		MinifyWhitespace:  !s.debug,
	})
	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("dashboard script failed with: %v", result.Errors)
	}
	s.scriptContent = string(result.Code)

	hub.Greet(func() []Message {
		return append([]Message{{Type: TypeState, Payload: board.Snapshot()}}, factory.Replay()...)
	})
	board.Views.Subscribe(func(view dashboard.View) {
		hub.Broadcast(Message{Type: TypeState, Payload: view})
	})

	return s, nil
}

// Port returns the configured port.
func (s *Server) Port() int {
	return s.port
}

// Handler routes every dashboard endpoint.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("GET /assets/", http.FileServer(http.FS(staticFiles)))
	mux.HandleFunc("GET /assets/dashboard.js", s.handleScript)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /metrics", s.handleMetrics)
	mux.HandleFunc("GET /ws", s.hub.HandleWebSocket)

	mux.HandleFunc("GET /api/state", s.handleState)
	mux.HandleFunc("POST /api/signal", s.handleSignal)
	mux.HandleFunc("POST /api/range", s.handleRange)
	mux.HandleFunc("POST /api/toggles", s.handleToggles)
	mux.HandleFunc("POST /api/theme", s.handleTheme)
	mux.HandleFunc("POST /api/reset", s.handleReset)
	mux.HandleFunc("GET /api/history", s.handleHistory)
	mux.HandleFunc("DELETE /api/history", s.handleClearHistory)
	mux.HandleFunc("GET /api/history.csv", s.handleHistoryCSV)
	mux.HandleFunc("GET /api/summary", s.handleSummary)

	mux.HandleFunc("GET /{$}", s.handleIndex)

	return mux
}

// Start serves until ctx is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Infof("dashboard available at http://localhost:%d", s.port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.hub.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown dashboard server: %w", err)
	}
	return nil
}

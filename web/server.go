// Package web serves the live transcript page and its push channel.
package web

import (
	"context"
	"embed"
	"io/fs"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"hotscribe/dispatch"
	"hotscribe/sink"
)

//go:embed static
var staticFiles embed.FS

type Server struct {
	http    *http.Server
	log     zerolog.Logger
	d       *dispatch.Dispatcher
	state   func() string
	version string
	started time.Time

	mu    sync.Mutex
	conns map[*sink.WebSocket]struct{}
}

// NewServer builds the router. state reports the controller state for
// /health.
func NewServer(addr string, d *dispatch.Dispatcher, state func() string, version string, log zerolog.Logger) *Server {
	s := &Server{
		log:     log,
		d:       d,
		state:   state,
		version: version,
		started: time.Now(),
		conns:   make(map[*sink.WebSocket]struct{}),
	}

	r := chi.NewRouter()
	r.Use(Recoverer)
	r.Use(Logger(log))

	static, _ := fs.Sub(staticFiles, "static")
	r.Handle("/", http.FileServer(http.FS(static)))
	r.Get("/ws", s.handleWS)
	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	s.http = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) Handler() http.Handler { return s.http.Handler }

// Listen binds the address so a port conflict is reported before Serve
// runs in the background.
func (s *Server) Listen() (net.Listener, error) {
	return net.Listen("tcp", s.http.Addr)
}

func (s *Server) Serve(ln net.Listener) error {
	s.log.Info().Str("addr", ln.Addr().String()).Msg("http server starting")
	err := s.http.Serve(ln)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown stops accepting requests and closes every push connection.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("http server shutting down")
	err := s.http.Shutdown(ctx)

	s.mu.Lock()
	conns := s.conns
	s.conns = make(map[*sink.WebSocket]struct{})
	s.mu.Unlock()
	for c := range conns {
		c.Close()
	}
	return err
}

func (s *Server) track(c *sink.WebSocket) {
	s.mu.Lock()
	s.conns[c] = struct{}{}
	s.mu.Unlock()
}

func (s *Server) untrack(c *sink.WebSocket) {
	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
}

// Package server hosts browser sessions of the builder-web state pipeline.
//
// Each browser gets its own store, keyed by a session cookie. Views read
// snapshots over HTTP or a websocket and trigger work by naming an action.
package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/narvanalabs/builder-web/pkg/logger"
	"github.com/narvanalabs/builder-web/web/health"
)

// Server is the view host HTTP server.
type Server struct {
	router   chi.Router
	sessions *Manager
	health   *health.Checker
	upgrader websocket.Upgrader
	logger   *logger.Logger
}

// New creates a server around sessions. checker may be nil.
func New(sessions *Manager, checker *health.Checker, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	if checker == nil {
		checker = health.NewChecker(health.Version)
	}

	s := &Server{
		sessions: sessions,
		health:   checker,
		logger:   &logger.Logger{Logger: log},
		upgrader: websocket.Upgrader{
			HandshakeTimeout: writeWait,
			ReadBufferSize:   1024,
			WriteBufferSize:  4096,
		},
	}
	s.setupRouter()
	return s
}

func (s *Server) setupRouter() {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger(s.logger.Logger))
	r.Use(recovery(s.logger.Logger))

	r.Get("/health", s.health.Handler())

	r.Get("/state", s.handleState)
	r.Get("/state/ws", s.handleStateStream)

	r.Route("/actions", func(r chi.Router) {
		r.Get("/", s.handleListActions)
		r.Delete("/"+LogFollowAction, s.handleStopFollow)
		r.Post("/{name}", s.handleDispatch)
	})

	r.Post("/sign-in", s.handleSignIn)
	r.Post("/sign-out", s.handleSignOut)

	s.router = r
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

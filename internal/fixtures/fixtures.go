// Package fixtures is an in-memory stand-in for the Builder API.
//
// It serves the HTTP contracts the client depends on so the pipeline can be
// developed and tested without a depot. Origin membership is a plain set of
// user names, sessions are HS256 tokens issued by /authenticate/{name}, and
// every scheduled build prints a fixed log that grows a page per poll.
package fixtures

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// Defaults for Option-less construction.
const (
	DefaultTokenExpiry = 24 * time.Hour
	DefaultPageSize    = 3
)

// Server is the fixture Builder API.
type Server struct {
	depot  *depot
	tokens *tokens
	logger *slog.Logger
	router chi.Router
}

// Option configures a Server.
type Option func(*config)

type config struct {
	secret   []byte
	expiry   time.Duration
	pageSize int
	now      func() time.Time
	logger   *slog.Logger
}

// WithSecret sets the key session tokens are signed with.
func WithSecret(secret string) Option {
	return func(c *config) {
		c.secret = []byte(secret)
	}
}

// WithTokenExpiry sets how long issued sessions stay valid.
func WithTokenExpiry(d time.Duration) Option {
	return func(c *config) {
		c.expiry = d
	}
}

// WithPageSize sets the size of package listing pages and of each log
// increment.
func WithPageSize(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// WithNow sets the time source.
func WithNow(now func() time.Time) Option {
	return func(c *config) {
		c.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// New creates an empty fixture.
func New(opts ...Option) *Server {
	cfg := config{
		secret:   []byte("builder-web-fixtures"),
		expiry:   DefaultTokenExpiry,
		pageSize: DefaultPageSize,
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	s := &Server{
		depot:  newDepot(cfg.now, cfg.pageSize),
		tokens: &tokens{secret: cfg.secret, expiry: cfg.expiry, now: cfg.now},
		logger: cfg.logger,
	}
	s.setupRouter()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// AddMember makes user a member of an existing origin.
func (s *Server) AddMember(origin, user string) error {
	return s.depot.addMember(origin, user)
}

func (s *Server) setupRouter() {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)

	r.Get("/status", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Get("/authenticate/{name}", s.authenticate)

	r.Group(func(r chi.Router) {
		r.Use(s.requireSession)
		r.Get("/profile", s.profile)
		r.Get("/user/origins", s.myOrigins)
	})

	r.Route("/depot", func(r chi.Router) {
		r.Use(s.optionalSession)

		r.Route("/origins", func(r chi.Router) {
			r.With(s.requireSession).Post("/", s.createOrigin)
			r.Get("/{origin}", s.getOrigin)
			r.With(s.requireSession).Put("/{origin}", s.updateOrigin)
			r.Get("/{origin}/keys", s.listPublicKeys)
			r.With(s.requireSession).Post("/{origin}/{kind}/{revision}", s.uploadKey)
			r.Get("/{origin}/{kind}/{revision}", s.downloadKey)
		})

		r.Route("/channels/{origin}/{channel}", func(r chi.Router) {
			r.With(s.requireSession).Post("/", s.createChannel)
			r.Get("/pkgs", s.listChannelPackages)
			r.With(s.requireSession).Put("/pkgs/{name}/{version}/{release}/promote", s.promote)
			r.With(s.requireSession).Put("/pkgs/{name}/{version}/{release}/demote", s.demote)
		})

		r.Route("/pkgs", func(r chi.Router) {
			r.With(s.requireSession).Post("/schedule/{origin}/{name}", s.schedule)
			r.Get("/schedule/{group}", s.getGroup)

			r.Get("/{origin}", s.listPackages)
			r.Get("/{origin}/{name}", s.listPackages)
			r.Get("/{origin}/{name}/latest", s.getPackage)
			r.Get("/{origin}/{name}/{version}", s.listPackages)
			r.Get("/{origin}/{name}/{version}/latest", s.getPackage)
			r.Get("/{origin}/{name}/{version}/{release}", s.getPackage)
			r.With(s.requireSession).Post("/{origin}/{name}/{version}/{release}", s.uploadPackage)
			r.Get("/{origin}/{name}/{version}/{release}/download", s.downloadPackage)
			r.Get("/{origin}/{name}/{version}/{release}/channels", s.packageChannels)
			r.With(s.requireSession).Patch("/{origin}/{name}/{version}/{release}/{visibility}", s.setVisibility)
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(s.optionalSession)
		r.Get("/projects/{origin}", s.listProjects)
		r.Get("/projects/{origin}/{name}", s.getProject)
		r.Get("/projects/{origin}/{name}/jobs", s.listJobs)
		r.Get("/jobs/{id}", s.getJob)
		r.Get("/jobs/{id}/log", s.jobLog)
	})

	s.router = r
}

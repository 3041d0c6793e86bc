package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/narvanalabs/builder-web/internal/action"
	"github.com/narvanalabs/builder-web/internal/clock"
	"github.com/narvanalabs/builder-web/internal/reducer"
	"github.com/narvanalabs/builder-web/internal/store"
	"github.com/narvanalabs/builder-web/pkg/logger"
	"github.com/narvanalabs/builder-web/web/health"
)

// SessionCookie names the cookie that binds a browser to its store.
const SessionCookie = "bldrWebSession"

// ErrClosed is returned once the session manager has shut down.
var ErrClosed = errors.New("session manager closed")

// Session is one browser's store together with the context its timers run
// under. The context outlives any single request.
//
// Work started on behalf of a signed-in user runs under an auth context,
// a child of the session context that is replaced whenever the user signs
// in or out. Replacing it cancels the previous user's pending timers.
type Session struct {
	ID      string
	Store   *store.Store
	Effects *action.Effects

	broker      *Broker
	ctx         context.Context
	cancel      context.CancelFunc
	unsubscribe func()

	mu           sync.Mutex
	authCtx      context.Context
	authCancel   context.CancelFunc
	followCancel context.CancelFunc
	lastSeen     time.Time
}

// Context is cancelled when the session is closed.
func (s *Session) Context() context.Context {
	return s.ctx
}

// Token returns the Builder API token of the signed-in user, if any.
func (s *Session) Token() string {
	return s.Store.GetState().Session.Token
}

// authContext returns the context of the current sign-in epoch.
func (s *Session) authContext() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authCtx
}

// resetAuth cancels the current sign-in epoch, including any log follow, and
// returns the context of a new one.
func (s *Session) resetAuth() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.followCancel != nil {
		s.followCancel()
		s.followCancel = nil
	}
	if s.authCancel != nil {
		s.authCancel()
	}
	s.authCtx, s.authCancel = context.WithCancel(s.ctx)
	return s.authCtx
}

// startFollow cancels any running log follow and returns the context for a
// new one.
func (s *Session) startFollow() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.followCancel != nil {
		s.followCancel()
	}
	ctx, cancel := context.WithCancel(s.authCtx)
	s.followCancel = cancel
	return ctx
}

// stopFollow cancels the running log follow and reports whether there was one.
func (s *Session) stopFollow() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.followCancel == nil {
		return false
	}
	s.followCancel()
	s.followCancel = nil
	return true
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

func (s *Session) close() {
	s.stopFollow()
	s.cancel()
	s.unsubscribe()
	s.broker.Close()
}

// Manager owns the per-browser sessions.
type Manager struct {
	api         action.BuilderAPI
	effectOpts  []action.EffectsOption
	clock       clock.Clock
	logger      *slog.Logger
	idleTimeout time.Duration
	buffer      int

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	sessions map[string]*Session
	closed   bool
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithIdleTimeout drops sessions idle for longer than d. Zero disables it.
func WithIdleTimeout(d time.Duration) ManagerOption {
	return func(m *Manager) {
		m.idleTimeout = d
	}
}

// WithClock sets the clock for session timers and idle tracking.
func WithClock(c clock.Clock) ManagerOption {
	return func(m *Manager) {
		m.clock = c
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = l
	}
}

// WithEffectsOptions adds options applied to every session's effects.
func WithEffectsOptions(opts ...action.EffectsOption) ManagerOption {
	return func(m *Manager) {
		m.effectOpts = append(m.effectOpts, opts...)
	}
}

// WithSubscriberBuffer sets the per-websocket snapshot queue length.
func WithSubscriberBuffer(n int) ManagerOption {
	return func(m *Manager) {
		m.buffer = n
	}
}

// NewManager creates a session manager whose stores talk to api.
func NewManager(api action.BuilderAPI, opts ...ManagerOption) *Manager {
	m := &Manager{
		api:      api,
		clock:    clock.Real(),
		logger:   slog.Default(),
		buffer:   DefaultSubscriberBuffer,
		sessions: make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.ctx, m.cancel = context.WithCancel(context.Background())
	return m
}

// Session returns the caller's session, creating one and setting its cookie
// when the request carries no known session id. A new session restores the
// signed-in user from the session token cookie.
func (m *Manager) Session(w http.ResponseWriter, r *http.Request) (*Session, error) {
	now := m.clock.Now()
	if c, err := r.Cookie(SessionCookie); err == nil {
		m.mu.Lock()
		s, ok := m.sessions[c.Value]
		m.mu.Unlock()
		if ok {
			s.touch(now)
			return s, nil
		}
	}

	s, err := m.create(now)
	if err != nil {
		return nil, err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    s.ID,
		Path:     "/",
		Secure:   isHTTPS(r),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	if err := s.Store.Dispatch(s.authContext(), s.Effects.RestoreSession(newHTTPJar(w, r))); err != nil {
		m.logger.Warn("restoring session failed", "session_id", s.ID, "error", err)
	}
	return s, nil
}

func (m *Manager) create(now time.Time) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrClosed
	}

	id := uuid.NewString()
	ctx, cancel := context.WithCancel(logger.ContextWithSessionID(m.ctx, id))
	log := (&logger.Logger{Logger: m.logger}).WithContext(ctx).Logger

	opts := append([]action.EffectsOption{action.WithClock(m.clock), action.WithLogger(log)}, m.effectOpts...)
	s := &Session{
		ID:       id,
		Store:    store.New(reducer.Root, nil, store.WithLogger(log)),
		Effects:  action.NewEffects(m.api, opts...),
		broker:   NewBroker(m.buffer, log),
		ctx:      ctx,
		cancel:   cancel,
		lastSeen: now,
	}
	s.unsubscribe = s.Store.Subscribe(s.broker.Publish)
	s.resetAuth()

	m.sessions[id] = s
	log.Debug("session created")
	return s, nil
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Sweep closes sessions idle since before now minus the idle timeout and
// returns how many it closed. Sessions with an open state stream are kept.
func (m *Manager) Sweep(now time.Time) int {
	if m.idleTimeout <= 0 {
		return 0
	}
	cutoff := now.Add(-m.idleTimeout)

	m.mu.Lock()
	var stale []*Session
	for id, s := range m.sessions {
		if s.broker.SubscriberCount() == 0 && s.idleSince().Before(cutoff) {
			stale = append(stale, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range stale {
		s.close()
		m.logger.Debug("session expired", "session_id", s.ID)
	}
	return len(stale)
}

// Run sweeps idle sessions until ctx is done.
func (m *Manager) Run(ctx context.Context) {
	if m.idleTimeout <= 0 {
		return
	}
	interval := m.idleTimeout / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.Sweep(m.clock.Now()); n > 0 {
				m.logger.Info("expired idle sessions", "count", n)
			}
		}
	}
}

// Shutdown closes every session and cancels their pending timers.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	sessions := make([]*Session, 0, len(m.sessions))
	for id, s := range m.sessions {
		sessions = append(sessions, s)
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	m.cancel()
	for _, s := range sessions {
		s.close()
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("closing sessions: %w", err)
	}
	return nil
}

// Check reports the manager's health.
func (m *Manager) Check(context.Context) health.ComponentStatus {
	m.mu.Lock()
	closed, n := m.closed, len(m.sessions)
	m.mu.Unlock()

	if closed {
		return health.ComponentStatus{Status: health.StatusUnhealthy, Message: "shut down"}
	}
	return health.ComponentStatus{Status: health.StatusHealthy, Message: fmt.Sprintf("%d active", n)}
}

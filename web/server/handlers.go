package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/narvanalabs/builder-web/internal/action"
	"github.com/narvanalabs/builder-web/pkg/logger"
)

const (
	maxBodyBytes = 1 << 20

	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// session resolves the caller's session or writes an error.
func (s *Server) session(w http.ResponseWriter, r *http.Request) (*Session, bool) {
	sess, err := s.sessions.Session(w, r)
	if err != nil {
		writeError(w, r, newError(CodeUnavailable, err.Error()))
		return nil, false
	}
	return sess, true
}

// requestLog returns the server logger carrying the request and session ids.
func (s *Server) requestLog(r *http.Request, sess *Session) *logger.Logger {
	return s.logger.WithContext(logger.ContextWithSessionID(r.Context(), sess.ID))
}

// readArgs decodes an optional JSON object body.
func readArgs(w http.ResponseWriter, r *http.Request) (map[string]any, *Error) {
	args := make(map[string]any)
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&args); err != nil && !errors.Is(err, io.EOF) {
		return nil, newError(CodeValidationError, "request body must be a JSON object")
	}
	if args == nil {
		args = make(map[string]any)
	}
	return args, nil
}

// dispatch runs d in the session and writes the resulting state.
func (s *Server) dispatch(ctx context.Context, w http.ResponseWriter, r *http.Request, sess *Session, d action.Dispatchable) {
	if err := sess.Store.Dispatch(ctx, d); err != nil {
		if ctx.Err() != nil {
			writeError(w, r, newError(CodeUnavailable, "session closed"))
			return
		}
		s.requestLog(r, sess).WithError(err).Error("dispatch failed")
		writeError(w, r, newError(CodeInternalError, "dispatch failed"))
		return
	}
	writeJSON(w, http.StatusOK, sess.Store.GetState())
}

// handleState handles GET /state.
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.Store.GetState())
}

// handleListActions handles GET /actions.
func (s *Server) handleListActions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"actions": ActionNames()})
}

// handleDispatch handles POST /actions/{name}.
func (s *Server) handleDispatch(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	def, ok := actions[name]
	if !ok {
		writeError(w, r, newError(CodeNotFound, "unknown action "+name))
		return
	}

	args, apiErr := readArgs(w, r)
	if apiErr != nil {
		writeError(w, r, apiErr)
		return
	}

	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	d, apiErr := def.build(sess.Effects, args, sess.Token())
	if apiErr != nil {
		writeError(w, r, apiErr)
		return
	}

	ctx := sess.authContext()
	if def.follow {
		ctx = sess.startFollow()
	}
	s.dispatch(ctx, w, r, sess, d)
}

// handleStopFollow handles DELETE /actions/log-follow.
func (s *Server) handleStopFollow(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	if sess.stopFollow() {
		s.requestLog(r, sess).Debug("log follow stopped")
	}
	s.dispatch(sess.authContext(), w, r, sess, action.NewStreamBuildLog(false))
}

type signInArgs struct {
	Name string `mapstructure:"name"`
}

// handleSignIn handles POST /sign-in.
func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	raw, apiErr := readArgs(w, r)
	if apiErr != nil {
		writeError(w, r, apiErr)
		return
	}
	var args signInArgs
	if err := decodeArgs(raw, &args); err != nil {
		writeError(w, r, newError(CodeValidationError, err.Error()))
		return
	}
	var fe fieldErrors
	fe.require("name", args.Name)
	if apiErr := fe.err(); apiErr != nil {
		writeError(w, r, apiErr)
		return
	}

	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	s.dispatch(sess.resetAuth(), w, r, sess, sess.Effects.SignIn(args.Name, newHTTPJar(w, r)))
}

type signOutArgs struct {
	RedirectToSignIn bool   `mapstructure:"redirect_to_sign_in"`
	PathAfterSignIn  string `mapstructure:"path_after_sign_in"`
}

// handleSignOut handles POST /sign-out.
func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	raw, apiErr := readArgs(w, r)
	if apiErr != nil {
		writeError(w, r, apiErr)
		return
	}
	var args signOutArgs
	if err := decodeArgs(raw, &args); err != nil {
		writeError(w, r, newError(CodeValidationError, err.Error()))
		return
	}

	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	s.dispatch(sess.resetAuth(), w, r, sess, sess.Effects.SignOut(newHTTPJar(w, r), args.RedirectToSignIn, args.PathAfterSignIn))
}

// handleStateStream handles GET /state/ws. The current snapshot is sent
// first, then every committed snapshot until either side goes away.
func (s *Server) handleStateStream(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	sub := sess.broker.Subscribe()
	if sub == nil {
		writeError(w, r, newError(CodeUnavailable, "session closed"))
		return
	}
	defer sess.broker.Unsubscribe(sub)

	// The upgrade writes its own response, so cookies set while resolving the
	// session are passed along explicitly.
	var header http.Header
	if cookies := w.Header().Values("Set-Cookie"); len(cookies) > 0 {
		header = http.Header{"Set-Cookie": cookies}
	}
	conn, err := s.upgrader.Upgrade(w, r, header)
	if err != nil {
		s.requestLog(r, sess).WithError(err).Warn("failed to upgrade websocket")
		return
	}
	defer conn.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			sess.touch(s.sessions.clock.Now())
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	send := func(v any) error {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteJSON(v)
	}
	if err := send(sess.Store.GetState()); err != nil {
		return
	}

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case snap, ok := <-sub.Ch:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "session closed"),
					time.Now().Add(writeWait))
				return
			}
			if err := send(snap); err != nil {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

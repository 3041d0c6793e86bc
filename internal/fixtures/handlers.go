package fixtures

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/narvanalabs/builder-web/internal/state"
)

type ctxKey struct{}

// requireSession rejects requests without a valid bearer token.
func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := s.tokens.validate(bearerToken(r.Header.Get("Authorization")))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, user)))
	})
}

// optionalSession records the caller when a valid token is present.
func (s *Server) optionalSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if user, err := s.tokens.validate(bearerToken(r.Header.Get("Authorization"))); err == nil {
			r = r.WithContext(context.WithValue(r.Context(), ctxKey{}, user))
		}
		next.ServeHTTP(w, r)
	})
}

func userFrom(r *http.Request) string {
	user, _ := r.Context().Value(ctxKey{}).(string)
	return user
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// fail maps a depot error to its status code.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, ErrNotMember), errors.Is(err, ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, ErrBadRequest):
		status = http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		status = http.StatusUnauthorized
	}
	s.logger.Debug("fixture request failed", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	writeError(w, status, err.Error())
}

func identFrom(r *http.Request) state.PackageIdent {
	return state.PackageIdent{
		Origin:  chi.URLParam(r, "origin"),
		Name:    chi.URLParam(r, "name"),
		Version: chi.URLParam(r, "version"),
		Release: chi.URLParam(r, "release"),
	}
}

func rangeFrom(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("range"))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func (s *Server) authenticate(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	profile := s.depot.user(name)
	token, err := s.tokens.issue(name)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"id":    token,
		"name":  profile.Name,
		"email": profile.Email,
	})
}

func (s *Server) profile(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.depot.user(userFrom(r)))
}

func (s *Server) myOrigins(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.depot.myOrigins(userFrom(r)))
}

type originBody struct {
	Name                     string                  `json:"name"`
	DefaultPackageVisibility state.PackageVisibility `json:"default_package_visibility"`
}

func (s *Server) createOrigin(w http.ResponseWriter, r *http.Request) {
	var body originBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	o, err := s.depot.createOrigin(userFrom(r), body.Name, body.DefaultPackageVisibility)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, o)
}

func (s *Server) getOrigin(w http.ResponseWriter, r *http.Request) {
	o, err := s.depot.getOrigin(chi.URLParam(r, "origin"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (s *Server) updateOrigin(w http.ResponseWriter, r *http.Request) {
	var body originBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.depot.updateOrigin(userFrom(r), chi.URLParam(r, "origin"), body.DefaultPackageVisibility); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listPublicKeys(w http.ResponseWriter, r *http.Request) {
	keys, err := s.depot.publicKeys(chi.URLParam(r, "origin"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, keys)
}

func keyKind(r *http.Request) (string, bool) {
	kind := chi.URLParam(r, "kind")
	return kind, kind == "keys" || kind == "secret_keys"
}

func (s *Server) uploadKey(w http.ResponseWriter, r *http.Request) {
	kind, ok := keyKind(r)
	if !ok {
		writeError(w, http.StatusNotFound, "Not Found")
		return
	}
	key, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid key body")
		return
	}
	origin, revision := chi.URLParam(r, "origin"), chi.URLParam(r, "revision")
	if err := s.depot.putKey(userFrom(r), kind, origin, revision, string(key)); err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusCreated)
	io.WriteString(w, "/origins/"+origin+"/"+kind+"/"+revision)
}

func (s *Server) downloadKey(w http.ResponseWriter, r *http.Request) {
	kind, ok := keyKind(r)
	if !ok {
		writeError(w, http.StatusNotFound, "Not Found")
		return
	}
	origin, revision := chi.URLParam(r, "origin"), chi.URLParam(r, "revision")
	if kind == "secret_keys" && userFrom(r) == "" {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	key, err := s.depot.getKey(userFrom(r), kind, origin, revision)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	w.Header().Set("X-Filename", origin+"-"+revision+".pub")
	io.WriteString(w, key)
}

func (s *Server) createChannel(w http.ResponseWriter, r *http.Request) {
	origin, channel := chi.URLParam(r, "origin"), chi.URLParam(r, "channel")
	created, err := s.depot.createChannel(userFrom(r), origin, channel)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{
		"name":       channel,
		"origin":     origin,
		"created_at": created.UTC().Format("2006-01-02T15:04:05Z"),
	})
}

func (s *Server) listChannelPackages(w http.ResponseWriter, r *http.Request) {
	page, err := s.depot.listChannelPackages(userFrom(r), chi.URLParam(r, "origin"), chi.URLParam(r, "channel"), rangeFrom(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) promote(w http.ResponseWriter, r *http.Request) {
	s.move(w, r, true)
}

func (s *Server) demote(w http.ResponseWriter, r *http.Request) {
	s.move(w, r, false)
}

func (s *Server) move(w http.ResponseWriter, r *http.Request, promote bool) {
	if err := s.depot.move(userFrom(r), chi.URLParam(r, "channel"), identFrom(r), promote); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) uploadPackage(w http.ResponseWriter, r *http.Request) {
	ident := identFrom(r)
	checksum := r.URL.Query().Get("checksum")
	if checksum == "" {
		writeError(w, http.StatusBadRequest, "checksum is required")
		return
	}
	artifact, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid package body")
		return
	}
	if err := s.depot.upload(userFrom(r), ident, checksum, artifact); err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusCreated)
	io.WriteString(w, "/pkgs/"+ident.String()+"/download")
}

func (s *Server) downloadPackage(w http.ResponseWriter, r *http.Request) {
	ident := identFrom(r)
	rel, err := s.depot.download(userFrom(r), ident)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("X-Filename", ident.Origin+"-"+ident.Name+"-"+ident.Version+"-"+ident.Release+"-x86_64-linux.hart")
	w.Write(rel.artifact)
}

func (s *Server) getPackage(w http.ResponseWriter, r *http.Request) {
	pkg, err := s.depot.latest(userFrom(r), identFrom(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pkg)
}

func (s *Server) listPackages(w http.ResponseWriter, r *http.Request) {
	page, err := s.depot.listPackages(userFrom(r), identFrom(r), rangeFrom(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) packageChannels(w http.ResponseWriter, r *http.Request) {
	channels, err := s.depot.packageChannels(userFrom(r), identFrom(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, channels)
}

func (s *Server) setVisibility(w http.ResponseWriter, r *http.Request) {
	vis := state.PackageVisibility(chi.URLParam(r, "visibility"))
	if err := s.depot.setVisibility(userFrom(r), identFrom(r), vis); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) schedule(w http.ResponseWriter, r *http.Request) {
	group, err := s.depot.schedule(userFrom(r), chi.URLParam(r, "origin"), chi.URLParam(r, "name"), r.URL.Query().Get("target"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, group)
}

func (s *Server) getGroup(w http.ResponseWriter, r *http.Request) {
	group, err := s.depot.group(chi.URLParam(r, "group"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, group)
}

func (s *Server) listProjects(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.depot.originProjects(chi.URLParam(r, "origin")))
}

func (s *Server) getProject(w http.ResponseWriter, r *http.Request) {
	p, err := s.depot.project(chi.URLParam(r, "origin"), chi.URLParam(r, "name"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) listJobs(w http.ResponseWriter, r *http.Request) {
	builds := s.depot.projectBuilds(chi.URLParam(r, "origin"), chi.URLParam(r, "name"))
	end := len(builds) - 1
	if end < 0 {
		end = 0
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"range_start": 0,
		"range_end":   end,
		"total_count": len(builds),
		"data":        builds,
	})
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	b, err := s.depot.build(chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) jobLog(w http.ResponseWriter, r *http.Request) {
	start := 0
	if v := r.URL.Query().Get("start"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "start must be numeric")
			return
		}
		start = n
	}
	page, err := s.depot.logPage(userFrom(r), chi.URLParam(r, "id"), start)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

package server

import (
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/narvanalabs/builder-web/internal/cookie"
)

// httpJar reads cookies from a request and writes them to its response.
// Writes are visible to later reads within the same request.
type httpJar struct {
	r      *http.Request
	w      http.ResponseWriter
	domain string
	secure bool

	mu      sync.Mutex
	overlay map[string]*string
}

var _ cookie.Jar = (*httpJar)(nil)

func newHTTPJar(w http.ResponseWriter, r *http.Request) *httpJar {
	return &httpJar{
		r:       r,
		w:       w,
		domain:  cookieDomain(r.Host),
		secure:  isHTTPS(r),
		overlay: make(map[string]*string),
	}
}

// cookieDomain returns the Domain attribute for host, or "" for a host-only
// cookie when the parent domain equals the host itself.
func cookieDomain(host string) string {
	hostname := host
	if h, _, err := net.SplitHostPort(host); err == nil {
		hostname = h
	}
	hostname = strings.Trim(hostname, "[]")

	d := cookie.Domain(host)
	if d == hostname {
		return ""
	}
	return d
}

func isHTTPS(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}

func (j *httpJar) Get(name string) (string, bool) {
	j.mu.Lock()
	v, ok := j.overlay[name]
	j.mu.Unlock()
	if ok {
		if v == nil {
			return "", false
		}
		return *v, true
	}

	c, err := j.r.Cookie(name)
	if err != nil {
		return "", false
	}
	value, err := url.QueryUnescape(c.Value)
	if err != nil {
		return c.Value, true
	}
	return value, true
}

func (j *httpJar) Set(name, value string) {
	j.mu.Lock()
	j.overlay[name] = &value
	j.mu.Unlock()

	http.SetCookie(j.w, j.cookie(name, url.QueryEscape(value), 0))
}

func (j *httpJar) Remove(name string) {
	j.mu.Lock()
	j.overlay[name] = nil
	j.mu.Unlock()

	http.SetCookie(j.w, j.cookie(name, "", -1))
}

func (j *httpJar) cookie(name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   j.domain,
		MaxAge:   maxAge,
		Secure:   j.secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

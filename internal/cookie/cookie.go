// Package cookie persists the client session across page loads.
package cookie

import (
	"net"
	"strconv"
	"strings"
	"sync"
)

// Cookie names written by the session actions.
const (
	SessionToken = "bldrSessionToken"
	RedirectPath = "redirectPath"
)

// Jar stores named cookie values for the current client.
type Jar interface {
	Get(name string) (string, bool)
	Set(name, value string)
	Remove(name string)
}

// Domain returns the cookie domain for host: the host with its first label
// stripped. IP addresses, hosts whose last label is numeric, and single-label
// hosts such as "localhost" are returned unchanged. A port is ignored.
//
//	builder.habitat.sh             -> habitat.sh
//	builder.acceptance.habitat.foo -> acceptance.habitat.foo
//	1.2.3.4                        -> 1.2.3.4
//	localhost                      -> localhost
func Domain(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.Trim(host, "[]")
	host = strings.TrimSuffix(host, ".")

	if net.ParseIP(host) != nil {
		return host
	}

	labels := strings.Split(host, ".")
	if len(labels) < 2 {
		return host
	}
	if _, err := strconv.Atoi(labels[len(labels)-1]); err == nil {
		return host
	}
	return strings.Join(labels[1:], ".")
}

// MemoryJar is an in-process Jar.
type MemoryJar struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryJar returns an empty MemoryJar.
func NewMemoryJar() *MemoryJar {
	return &MemoryJar{values: make(map[string]string)}
}

func (j *MemoryJar) Get(name string) (string, bool) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	v, ok := j.values[name]
	return v, ok
}

func (j *MemoryJar) Set(name, value string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.values[name] = value
}

func (j *MemoryJar) Remove(name string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	delete(j.values, name)
}

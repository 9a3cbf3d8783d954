package metrics

import (
	"errors"
	"net"
	"net/http"
	hpprof "net/http/pprof"
	"strings"
)

const pprofPrefix = "/debug/pprof/"

// WithPprof mounts the runtime profiler on the metrics listener. A
// non-loopback listener requires a token.
func WithPprof(enabled bool, token string) Option {
	return func(m *Manager) {
		m.pprof = enabled
		m.pprofToken = strings.TrimSpace(token)
	}
}

var errPprofExposed = errors.New("metrics: pprof on a non-loopback address needs a token")

func (m *Manager) mountPprof(mux *http.ServeMux, addr string) error {
	if !m.pprof {
		return nil
	}
	if m.pprofToken == "" && !isLoopbackAddr(addr) {
		return errPprofExposed
	}
	wrap := func(h http.HandlerFunc) http.HandlerFunc { return withAuth(m.pprofToken, h) }
	mux.HandleFunc(pprofPrefix, wrap(hpprof.Index))
	mux.HandleFunc(pprofPrefix+"cmdline", wrap(hpprof.Cmdline))
	mux.HandleFunc(pprofPrefix+"profile", wrap(hpprof.Profile))
	mux.HandleFunc(pprofPrefix+"symbol", wrap(hpprof.Symbol))
	mux.HandleFunc(pprofPrefix+"trace", wrap(hpprof.Trace))
	return nil
}

// withAuth accepts "Authorization: Bearer <token>" or "?token=<token>".
func withAuth(token string, h http.HandlerFunc) http.HandlerFunc {
	if token == "" {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("token"); got != "" {
			if got == token {
				h(w, r)
				return
			}
			unauthorized(w)
			return
		}
		const p = "Bearer "
		if ah := r.Header.Get("Authorization"); strings.HasPrefix(ah, p) && strings.TrimSpace(strings.TrimPrefix(ah, p)) == token {
			h(w, r)
			return
		}
		unauthorized(w)
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	http.Error(w, "unauthorized", http.StatusUnauthorized)
}

func isLoopbackAddr(addr string) bool {
	h, _, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	h = strings.TrimSpace(h)
	if h == "" {
		// all interfaces
		return false
	}
	if strings.EqualFold(h, "localhost") {
		return true
	}
	ip := net.ParseIP(h)
	return ip != nil && ip.IsLoopback()
}

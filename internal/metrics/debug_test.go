package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWithAuth(t *testing.T) {
	t.Parallel()

	ok := func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }
	h := withAuth("s3cret", ok)

	tests := []struct {
		name   string
		target string
		header string
		want   int
	}{
		{"no credentials", "/debug/pprof/", "", http.StatusUnauthorized},
		{"query token", "/debug/pprof/?token=s3cret", "", http.StatusOK},
		{"wrong query token", "/debug/pprof/?token=nope", "Bearer s3cret", http.StatusUnauthorized},
		{"bearer", "/debug/pprof/", "Bearer s3cret", http.StatusOK},
		{"wrong bearer", "/debug/pprof/", "Bearer nope", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, tt.target, nil)
		if tt.header != "" {
			req.Header.Set("Authorization", tt.header)
		}
		rec := httptest.NewRecorder()
		h(rec, req)
		if rec.Code != tt.want {
			t.Fatalf("%s: code=%d want %d", tt.name, rec.Code, tt.want)
		}
	}
}

func TestIsLoopbackAddr(t *testing.T) {
	t.Parallel()

	for addr, want := range map[string]bool{
		"127.0.0.1:9100": true,
		"localhost:9100": true,
		"[::1]:9100":     true,
		":9100":          false,
		"0.0.0.0:9100":   false,
		"10.0.0.4:9100":  false,
		"garbage":        false,
	} {
		if got := isLoopbackAddr(addr); got != want {
			t.Fatalf("isLoopbackAddr(%q)=%v want %v", addr, got, want)
		}
	}
}

func TestServeRefusesExposedPprof(t *testing.T) {
	t.Parallel()

	m := NewManager(WithPprof(true, ""))
	err := m.Serve(context.Background(), ":0")
	if !errors.Is(err, errPprofExposed) {
		t.Fatalf("err=%v", err)
	}
}

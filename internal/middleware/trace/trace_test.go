package trace

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"usaha/internal/log"
)

func TestMiddleware_AssignsRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(log.Config{Output: &buf, Format: "json"})
	m := NewMiddleware(func(*http.Request) string { return "10.0.0.1" }, logger)

	var seen string
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
		log.FromContext(r.Context()).Info("inside handler")
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/businesses", nil))

	if !strings.HasPrefix(seen, "req_") || len(seen) != 20 {
		t.Fatalf("request id = %q, want req_ plus 16 chars", seen)
	}
	if got := rec.Header().Get(RequestIDHeader); got != seen {
		t.Errorf("%s header = %q, want %q", RequestIDHeader, got, seen)
	}
	out := buf.String()
	if strings.Count(out, seen) < 2 {
		t.Errorf("request id missing from log output:\n%s", out)
	}
	if !strings.Contains(out, `"status_code":418`) {
		t.Errorf("completion log lacks status:\n%s", out)
	}
	if m.GetMetrics().TotalRequests != 1 {
		t.Errorf("TotalRequests = %d, want 1", m.GetMetrics().TotalRequests)
	}
}

func TestMiddleware_IncomingRequestID(t *testing.T) {
	m := NewMiddleware(nil, nil)
	tests := []struct {
		name   string
		header string
		keep   bool
	}{
		{"printable id kept", "abc-123", true},
		{"spaces rejected", "abc 123", false},
		{"too long rejected", strings.Repeat("x", 65), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen string
			h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = GetRequestID(r.Context())
			}))
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set(RequestIDHeader, tt.header)
			h.ServeHTTP(httptest.NewRecorder(), req)
			if (seen == tt.header) != tt.keep {
				t.Errorf("request id = %q, keep = %v", seen, tt.keep)
			}
		})
	}
}

package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/automationdb/internal/backend"
	"github.com/JonMunkholm/automationdb/internal/config"
	"github.com/JonMunkholm/automationdb/internal/core"
	"github.com/JonMunkholm/automationdb/internal/logging"
)

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{RequestTimeout: 5 * time.Second},
		Import: config.ImportConfig{
			MaxFileSize:   1 << 20,
			MaxConcurrent: 1,
			MaxWaitTime:   time.Second,
			Timeout:       time.Minute,
			SessionTTL:    time.Minute,
		},
		Security: config.SecurityConfig{EnableCSP: true},
	}
}

func newTestServer(t *testing.T, cfg *config.Config, records ...core.Record) (*Server, *fakeBackend) {
	t.Helper()
	if cfg == nil {
		cfg = testConfig()
	}
	fb := newFakeBackend(records...)
	svc := core.NewService(fb, nil, logging.Discard(), core.Options{
		MaxConcurrentRuns: cfg.Import.MaxConcurrent,
		MaxWaitTime:       cfg.Import.MaxWaitTime,
		SyncTimeout:       cfg.Import.Timeout,
		SessionTTL:        cfg.Import.SessionTTL,
		RejectDuplicates:  cfg.Import.RejectDuplicates,
	})
	checks := map[string]HealthCheck{"backend": fb.Ping}
	s := NewServer(svc, cfg, checks)
	t.Cleanup(func() { s.Shutdown(context.Background()) })
	return s, fb
}

func do(t *testing.T, s *Server, method, target string, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, nil)

	rec := do(t, s, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q, want nosniff", got)
	}
	if got := rec.Header().Get("Content-Security-Policy"); got == "" {
		t.Error("Content-Security-Policy missing with CSP enabled")
	}
}

func TestReady(t *testing.T) {
	s, fb := newTestServer(t, nil)

	rec := do(t, s, http.MethodGet, "/readyz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	fb.pingErr = errors.New("connection refused")
	rec = do(t, s, http.MethodGet, "/readyz", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	resp := decodeBody[healthResponse](t, rec)
	if resp.Checks["backend"] != "connection refused" {
		t.Errorf("checks[backend] = %q, want connection refused", resp.Checks["backend"])
	}
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Rate = config.RateLimitConfig{Enabled: true, RequestsPerMinute: 2, SyncLimit: 1}
	s, _ := newTestServer(t, cfg)

	for i := 0; i < 2; i++ {
		if rec := do(t, s, http.MethodGet, "/healthz", ""); rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d, want 200", i, rec.Code)
		}
	}
	rec := do(t, s, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "60" {
		t.Errorf("Retry-After = %q, want 60", rec.Header().Get("Retry-After"))
	}
}

func TestRateLimiterStop(t *testing.T) {
	rl := newRateLimiter(1, time.Hour)

	stopped := make(chan struct{})
	go func() {
		rl.stop()
		rl.stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("stop() did not return; cleanup goroutine still running")
	}
	select {
	case <-rl.stopped:
	default:
		t.Error("cleanup goroutine has not exited")
	}
}

func TestShutdownStopsRateLimiters(t *testing.T) {
	cfg := testConfig()
	cfg.Rate = config.RateLimitConfig{Enabled: true, RequestsPerMinute: 2, SyncLimit: 1}
	s, _ := newTestServer(t, cfg)

	if len(s.limiters) != 2 {
		t.Fatalf("limiters = %d, want 2 (global and sync)", len(s.limiters))
	}
	if err := s.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	for i, rl := range s.limiters {
		select {
		case <-rl.stopped:
		default:
			t.Errorf("limiter %d still running after Shutdown", i)
		}
	}
}

func TestRateLimiterWindow(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := &rateLimiter{visitors: map[string]*visitor{}, rate: 1, window: time.Minute, now: func() time.Time { return now }}

	if !rl.allow("a") {
		t.Fatal("first request denied")
	}
	if rl.allow("a") {
		t.Fatal("second request allowed within window")
	}
	if !rl.allow("b") {
		t.Fatal("other client denied")
	}
	now = now.Add(61 * time.Second)
	if !rl.allow("a") {
		t.Fatal("request denied after window reset")
	}
}

func TestAPIKeyRequired(t *testing.T) {
	cfg := testConfig()
	cfg.Security.RequireAPIKey = true
	cfg.Security.APIKeys = []string{"secret"}
	s, _ := newTestServer(t, cfg)

	if rec := do(t, s, http.MethodGet, "/api/automations", ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("no key status = %d, want 401", rec.Code)
	}
	if rec := do(t, s, http.MethodGet, "/api/automations", "", "X-API-Key", "secret"); rec.Code != http.StatusOK {
		t.Errorf("with key status = %d, want 200", rec.Code)
	}
	// Probes stay open.
	if rec := do(t, s, http.MethodGet, "/healthz", ""); rec.Code != http.StatusOK {
		t.Errorf("healthz status = %d, want 200", rec.Code)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"session", core.ErrSessionNotFound, http.StatusNotFound},
		{"executed", core.ErrSessionExecuted, http.StatusConflict},
		{"ack", core.ErrUnacknowledgedErrors, http.StatusPreconditionFailed},
		{"confirm", core.ErrConfirmationRequired, http.StatusPreconditionFailed},
		{"invalid record", core.ErrInvalidRecord, http.StatusBadRequest},
		{"busy", core.ErrTooManyRuns, http.StatusServiceUnavailable},
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout},
		{"backend 404", notFound("AIR-1"), http.StatusNotFound},
		{"backend 500", &backend.APIError{Status: 500}, http.StatusBadGateway},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := statusFor(tt.err); got != tt.want {
				t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestRespondErrorHTMX(t *testing.T) {
	s, _ := newTestServer(t, nil)

	rec := do(t, s, http.MethodGet, "/api/sync/no-such-session", "", "HX-Request", "true")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q, want text/html", ct)
	}
	if !strings.Contains(rec.Body.String(), "SYNC001") {
		t.Errorf("body = %q, want SYNC001 code", rec.Body.String())
	}
}

package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestAuthMiddleware_DisabledWhenNoKey(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, &fakeBot{answer: "x"}, nil)

	rec := doBot(s, `{"query": "q"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("auth must be disabled without an API key, got %d", rec.Code)
	}
}

func TestAuthMiddleware_RejectsMissingToken(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, &fakeBot{answer: "x"}, func(cfg *Config) {
		cfg.APIKey = "sekrit"
	})

	rec := doBot(s, `{"query": "q"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("want 401, got %d", rec.Code)
	}
	if got := rec.Header().Get("WWW-Authenticate"); !strings.Contains(got, "Bearer") {
		t.Errorf("want a Bearer challenge, got %q", got)
	}
}

func TestAuthMiddleware_RejectsWrongToken(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, &fakeBot{answer: "x"}, func(cfg *Config) {
		cfg.APIKey = "sekrit"
	})

	req := httptest.NewRequest(http.MethodPost, "/api/bot", strings.NewReader(`{"query": "q"}`))
	req.Header.Set("Authorization", "Bearer wrong")
	rec := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("want 401, got %d", rec.Code)
	}
}

func TestAuthMiddleware_AcceptsValidToken(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, &fakeBot{answer: "x"}, func(cfg *Config) {
		cfg.APIKey = "sekrit"
	})

	req := httptest.NewRequest(http.MethodPost, "/api/bot", strings.NewReader(`{"query": "q"}`))
	req.Header.Set("Authorization", "Bearer sekrit")
	rec := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestAuthMiddleware_HealthStaysOpen(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, &fakeBot{}, func(cfg *Config) {
		cfg.APIKey = "sekrit"
	})

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("health must not require auth, got %d", rec.Code)
	}
}

func Test_BearerToken_Parsing(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		header string
		want   string
	}{
		{"absent", "", ""},
		{"well formed", "Bearer abc123", "abc123"},
		{"case insensitive scheme", "bearer abc123", "abc123"},
		{"wrong scheme", "Basic abc123", ""},
		{"no token", "Bearer", ""},
		{"surrounding whitespace", "Bearer  abc123 ", "abc123"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				r.Header.Set("Authorization", tc.header)
			}
			if got := bearerToken(r); got != tc.want {
				t.Errorf("bearerToken(%q) = %q, want %q", tc.header, got, tc.want)
			}
		})
	}
}

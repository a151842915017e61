package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/alumni-connect/gallery-service/internal/config"
	"github.com/alumni-connect/gallery-service/internal/utils/jwt"
	"github.com/go-redis/redis/v8"
)

var testAuth = config.Auth{JWTSecret: "secret", AdminRoles: []string{"Admin"}}

func adminOnly() http.Handler {
	return Authenticate(testAuth)(RequireAdmin(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
}

func bearer(t *testing.T, role string) string {
	t.Helper()
	token, err := jwt.CreateToken("user-1", role, testAuth.JWTSecret)
	if err != nil {
		t.Fatalf("Failed to create token: %v", err)
	}
	return "Bearer " + token
}

func TestRequireAdmin(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"anonymous", "", http.StatusUnauthorized},
		{"bad format", "Token abc", http.StatusUnauthorized},
		{"invalid token", "Bearer abc", http.StatusUnauthorized},
		{"alumni role", bearer(t, "Alumni"), http.StatusForbidden},
		{"admin role", bearer(t, "Admin"), http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodDelete, "/gallery/unvalidated", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()

			adminOnly().ServeHTTP(rr, req)

			if rr.Code != tt.want {
				t.Fatalf("Expected %d, got %d", tt.want, rr.Code)
			}
		})
	}
}

func TestAuthenticate_OpenWithoutSecret(t *testing.T) {
	var admin bool
	h := Authenticate(config.Auth{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		admin = IsAdmin(r.Context())
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if !admin {
		t.Fatal("Expected every caller to be admin when no secret is configured")
	}
}

func TestIsAdmin_Anonymous(t *testing.T) {
	if IsAdmin(context.Background()) {
		t.Fatal("Expected anonymous context not to be admin")
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	defer mr.Close()
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer redisClient.Close()

	rlc := NewRateLimitConfig(redisClient, config.RateLimit{UploadPerMinute: 2})
	h := rlc.RateLimitedHandler(ActionUpload, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})

	send := func(addr string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/gallery/uploadSingle", nil)
		req.RemoteAddr = addr
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr
	}

	for i := 0; i < 2; i++ {
		if rr := send("192.0.2.1:4000"); rr.Code != http.StatusCreated {
			t.Fatalf("Upload %d: expected 201, got %d", i+1, rr.Code)
		}
	}

	rr := send("192.0.2.1:4001")
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("Expected 429, got %d", rr.Code)
	}
	if rr.Header().Get("X-RateLimit-Limit") != "2" {
		t.Fatalf("Unexpected limit header %q", rr.Header().Get("X-RateLimit-Limit"))
	}

	if rr := send("192.0.2.2:4000"); rr.Code != http.StatusCreated {
		t.Fatalf("Expected another client to pass, got %d", rr.Code)
	}
}

func TestRateLimitMiddleware_ForwardedFor(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	defer mr.Close()
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer redisClient.Close()

	send := func(h http.Handler, forwarded string) int {
		req := httptest.NewRequest(http.MethodPost, "/gallery/uploadSingle", nil)
		req.RemoteAddr = "192.0.2.1:4000"
		req.Header.Set("X-Forwarded-For", forwarded)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr.Code
	}
	created := func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}

	// rotating the header must not buy fresh buckets
	direct := NewRateLimitConfig(redisClient, config.RateLimit{UploadPerMinute: 1}).RateLimitedHandler(ActionUpload, created)
	if code := send(direct, "203.0.113.1"); code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d", code)
	}
	if code := send(direct, "203.0.113.2"); code != http.StatusTooManyRequests {
		t.Fatalf("Expected spoofed header to be ignored, got %d", code)
	}

	mr.FlushAll()

	proxied := NewRateLimitConfig(redisClient, config.RateLimit{UploadPerMinute: 1, TrustForwardedFor: true}).RateLimitedHandler(ActionUpload, created)
	if code := send(proxied, "203.0.113.1, 10.0.0.1"); code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d", code)
	}
	if code := send(proxied, "203.0.113.2"); code != http.StatusCreated {
		t.Fatalf("Expected a different forwarded client to pass, got %d", code)
	}
	if code := send(proxied, "203.0.113.1"); code != http.StatusTooManyRequests {
		t.Fatalf("Expected 429 for the first forwarded client, got %d", code)
	}
}

func TestRateLimitMiddleware_DisabledWithoutRedis(t *testing.T) {
	rlc := NewRateLimitConfig(nil, config.RateLimit{UploadPerMinute: 1})
	h := rlc.RateLimitedHandler(ActionUpload, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})

	for i := 0; i < 3; i++ {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/", nil))
		if rr.Code != http.StatusCreated {
			t.Fatalf("Expected 201, got %d", rr.Code)
		}
	}
}

package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/zhouzirui/snailgpt/backend/internal/logging"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimiterPerClient(t *testing.T) {
	limiter := NewRateLimiter(1, 2)
	now := time.Unix(1000, 0)
	limiter.now = func() time.Time { return now }

	if !limiter.Allow("a") || !limiter.Allow("a") {
		t.Fatal("burst requests should pass")
	}
	if limiter.Allow("a") {
		t.Fatal("third immediate request should be limited")
	}
	if !limiter.Allow("b") {
		t.Fatal("other clients have their own bucket")
	}

	now = now.Add(time.Second)
	if !limiter.Allow("a") {
		t.Fatal("bucket should refill after a second")
	}
}

func TestRateLimiterSweepsIdleClients(t *testing.T) {
	limiter := NewRateLimiter(1, 1)
	now := time.Unix(1000, 0)
	limiter.now = func() time.Time { return now }

	limiter.Allow("a")
	now = now.Add(2 * limiterIdleTTL)
	limiter.Allow("b")

	if _, ok := limiter.clients["a"]; ok {
		t.Fatal("idle client should have been swept")
	}
}

func TestRateLimiterMiddleware(t *testing.T) {
	handler := NewRateLimiter(0.001, 1).Middleware(okHandler())

	for i, want := range []int{http.StatusOK, http.StatusTooManyRequests} {
		req := httptest.NewRequest(http.MethodPost, "/chat", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		if resp.Code != want {
			t.Fatalf("request %d: expected %d, got %d", i, want, resp.Code)
		}
	}
}

func TestRateLimiterDisabled(t *testing.T) {
	limiter := NewRateLimiter(0, 1)
	for i := 0; i < 10; i++ {
		if !limiter.Allow("a") {
			t.Fatal("disabled limiter must allow everything")
		}
	}
}

func TestRecovererRespondsJSON(t *testing.T) {
	handler := Recoverer(logging.Discard())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("disk on fire")
	}))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/", nil))

	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("expected JSON body: %v", err)
	}
	if body["error"] != "Internal Server Error" || body["message"] != "disk on fire" {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestCORSPreflight(t *testing.T) {
	resp := httptest.NewRecorder()
	CORS(okHandler()).ServeHTTP(resp, httptest.NewRequest(http.MethodOptions, "/chat", nil))

	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.Code)
	}
	if resp.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatal("missing CORS header")
	}
}

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Samudera-Biru-Indonesia/Project2-SMT/auth"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestBearerMiddleware(t *testing.T) {
	jwtManager := auth.NewJWTManager("test-secret", time.Hour)
	token, err := jwtManager.GenerateToken("EMP001", "EMP001", "SGI045")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	var gotClaims *auth.Claims
	protected := BearerMiddleware(jwtManager)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotClaims, _ = GetClaimsFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name       string
		authHeader string
		wantStatus int
	}{
		{"valid token", "Bearer " + token, http.StatusOK},
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"garbage token", "Bearer not.a.jwt", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotClaims = nil
			req := httptest.NewRequest(http.MethodPost, "/api/upload-photos", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			rec := httptest.NewRecorder()
			protected.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusOK {
				if gotClaims == nil || gotClaims.EmpCode != "EMP001" {
					t.Errorf("claims = %+v, want EMP001 injected", gotClaims)
				}
			}
		})
	}
}

func TestRateLimiterBlocksAfterBurst(t *testing.T) {
	limited := NewRateLimiter(3, time.Minute).Middleware()(okHandler())

	send := func() int {
		req := httptest.NewRequest(http.MethodPost, "/api/login", nil)
		req.RemoteAddr = "10.0.0.1:5000"
		rec := httptest.NewRecorder()
		limited.ServeHTTP(rec, req)
		return rec.Code
	}

	for i := 0; i < 3; i++ {
		if got := send(); got != http.StatusOK {
			t.Fatalf("request %d status = %d, want 200 inside the burst", i+1, got)
		}
	}
	if got := send(); got != http.StatusTooManyRequests {
		t.Errorf("status = %d after the burst, want 429", got)
	}
}

func TestRateLimiterIsPerClient(t *testing.T) {
	limited := NewRateLimiter(1, time.Minute).Middleware()(okHandler())

	send := func(addr string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/login", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		limited.ServeHTTP(rec, req)
		return rec.Code
	}

	if got := send("10.0.0.1:5000"); got != http.StatusOK {
		t.Fatalf("first client status = %d, want 200", got)
	}
	if got := send("10.0.0.1:5000"); got != http.StatusTooManyRequests {
		t.Errorf("first client second request = %d, want 429", got)
	}
	if got := send("10.0.0.2:5000"); got != http.StatusOK {
		t.Errorf("second client status = %d, want 200 from its own bucket", got)
	}
}

func TestCORSPreflightShortCircuits(t *testing.T) {
	called := false
	handler := CORSMiddleware(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodOptions, "/api/login", nil)
	req.Header.Set("Origin", "https://gate.example.com")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("preflight status = %d, want 200", rec.Code)
	}
	if called {
		t.Error("preflight reached the inner handler")
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Allow-Origin = %q, want *", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Headers"); got == "" {
		t.Error("Allow-Headers not set")
	}
}

func TestCORSAllowedOriginList(t *testing.T) {
	handler := CORSMiddleware([]string{"https://gate.example.com"})(okHandler())

	send := func(origin string) string {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set("Origin", origin)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Header().Get("Access-Control-Allow-Origin")
	}

	if got := send("https://gate.example.com"); got != "https://gate.example.com" {
		t.Errorf("allowed origin echo = %q", got)
	}
	if got := send("https://evil.example.com"); got != "" {
		t.Errorf("Allow-Origin = %q for an unlisted origin, want unset", got)
	}
}

package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Samudera-Biru-Indonesia/Project2-SMT/client/api"
	"github.com/Samudera-Biru-Indonesia/Project2-SMT/client/environment"
	"github.com/Samudera-Biru-Indonesia/Project2-SMT/client/store"
	"github.com/Samudera-Biru-Indonesia/Project2-SMT/models"
)

var testLocation = &models.UserLocation{Latitude: -7.1566, Longitude: 112.6551, Accuracy: 40}

// okLoginHandler answers the login and token endpoints the way a healthy
// proxy does: empty object for login, a token for get-jwt.
func okLoginHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/login", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	})
	mux.HandleFunc("/api/get-jwt", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(models.TokenResponse{Token: "tok-abc"})
	})
	return mux
}

type fixture struct {
	mgr *Manager
	st  *store.Store
	env *environment.Selector
	now *time.Time
}

func newFixture(t *testing.T, handler http.Handler) *fixture {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	st, err := store.Open(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	env := environment.NewSelector(st)
	mgr := NewManager(api.NewClient(srv.URL, env, srv.Client()), st, env)
	t.Cleanup(mgr.Logout)

	now := time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)
	mgr.now = func() time.Time { return now }

	return &fixture{mgr: mgr, st: st, env: env, now: &now}
}

func (f *fixture) advance(d time.Duration) {
	*f.now = f.now.Add(d)
}

func TestLoginSuccess(t *testing.T) {
	f := newFixture(t, okLoginHandler())

	res := f.mgr.Login(context.Background(), "emp001", "sgi045", testLocation)
	if !res.Success {
		t.Fatalf("login failed: %s", res.Message)
	}
	if res.User.EmpCode != "EMP001" || res.User.Site != "SGI045" {
		t.Errorf("user = %s @ %s, want uppercased EMP001 @ SGI045", res.User.EmpCode, res.User.Site)
	}
	if res.User.Role != "driver" {
		t.Errorf("role = %q, want driver", res.User.Role)
	}
	if res.User.BearerToken != "tok-abc" {
		t.Errorf("bearer token = %q, want tok-abc", res.User.BearerToken)
	}

	wantExpiry := f.now.Add(SessionDuration)
	if !res.User.SessionExpiryTime.Equal(wantExpiry) {
		t.Errorf("expiry = %v, want %v", res.User.SessionExpiryTime, wantExpiry)
	}

	if !f.mgr.IsAuthenticated() {
		t.Error("IsAuthenticated = false after login")
	}

	raw := f.st.Get(store.KeyAuthUser)
	if raw == "" {
		t.Fatal("session not persisted")
	}
	var stored AuthUser
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		t.Fatalf("persisted session unreadable: %v", err)
	}
	if stored.EmpCode != "EMP001" {
		t.Errorf("persisted empCode = %q, want EMP001", stored.EmpCode)
	}
}

func TestLoginValidation(t *testing.T) {
	f := newFixture(t, okLoginHandler())

	tests := []struct {
		name        string
		empCode     string
		site        string
		loc         *models.UserLocation
		wantMessage string
	}{
		{"missing employee code", "", "SGI045", testLocation, "Employee code is required"},
		{"missing site", "EMP001", "  ", testLocation, "Site code is required"},
		{"missing location", "EMP001", "SGI045", nil, "Location coordinates are required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := f.mgr.Login(context.Background(), tt.empCode, tt.site, tt.loc)
			if res.Success {
				t.Fatal("login succeeded, want validation failure")
			}
			if res.Message != tt.wantMessage {
				t.Errorf("message = %q, want %q", res.Message, tt.wantMessage)
			}
		})
	}
}

func TestLoginForcesLiveEnvironment(t *testing.T) {
	f := newFixture(t, okLoginHandler())

	f.env.SetEnvironment("pilot")
	f.mgr.Login(context.Background(), "EMP001", "SGI045", testLocation)

	if got := f.env.Current().Name; got != "live" {
		t.Errorf("environment after login = %q, want live", got)
	}
}

func TestLoginTooFarExtractsDistance(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"message":"Employee location is too far from site: 12.3 km away"}`))
	})
	f := newFixture(t, handler)

	res := f.mgr.Login(context.Background(), "EMP001", "SGI045", testLocation)
	if res.Success {
		t.Fatal("login succeeded, want geofence rejection")
	}
	if !strings.Contains(res.Message, "12.3 km") {
		t.Errorf("message = %q, want the extracted distance in it", res.Message)
	}
	if !strings.Contains(res.Message, "Lokasi") {
		t.Errorf("message = %q, want Indonesian phrasing", res.Message)
	}
}

func TestLoginLocationMismatchWithoutDistance(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"message":"invalid location for site"}`))
	})
	f := newFixture(t, handler)

	res := f.mgr.Login(context.Background(), "EMP001", "SGI045", testLocation)
	if res.Message != "Lokasi tidak sesuai dengan site yang dipilih. Pastikan Anda berada di area yang sesuai dengan site." {
		t.Errorf("message = %q, want the generic location mismatch text", res.Message)
	}
}

func TestLoginErrorMessages(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantPart string
	}{
		{"unauthorized", 401, `{}`, "Kode karyawan atau site tidak valid"},
		{"forbidden", 403, `{}`, "Akses ditolak"},
		{"server error", 500, `{}`, "kesalahan pada server"},
		{"bad request non-location", 400, `{"detail":"x"}`, "Data yang dikirim tidak valid"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})
			f := newFixture(t, handler)

			res := f.mgr.Login(context.Background(), "EMP001", "SGI045", testLocation)
			if res.Success {
				t.Fatal("login succeeded, want failure")
			}
			if !strings.Contains(res.Message, tt.wantPart) {
				t.Errorf("message = %q, want it to contain %q", res.Message, tt.wantPart)
			}
		})
	}
}

func TestLoginRejectedBody(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"error","message":"Employee not registered"}`))
	})
	f := newFixture(t, handler)

	res := f.mgr.Login(context.Background(), "EMP001", "SGI045", testLocation)
	if res.Success {
		t.Fatal("login succeeded on a rejected body")
	}
	if res.Message != "Employee not registered" {
		t.Errorf("message = %q, want the upstream message", res.Message)
	}
}

func TestClassifyLoginResponse(t *testing.T) {
	tests := []struct {
		name string
		body string
		want bool
	}{
		{"empty object", `{}`, true},
		{"success flag", `{"success":true}`, true},
		{"capitalized success flag", `{"Success":true}`, true},
		{"status success", `{"status":"success"}`, true},
		{"capitalized status", `{"Status":"Success"}`, true},
		{"success false", `{"success":false}`, false},
		{"status error", `{"status":"error"}`, false},
		{"unrelated fields", `{"message":"hi"}`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body map[string]interface{}
			if err := json.Unmarshal([]byte(tt.body), &body); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if got := classifyLoginResponse(body); got != tt.want {
				t.Errorf("classifyLoginResponse(%s) = %v, want %v", tt.body, got, tt.want)
			}
		})
	}
}

func TestDetermineRole(t *testing.T) {
	tests := []struct {
		empCode string
		want    string
	}{
		{"SUP001", "supervisor"},
		{"GRSUP12", "supervisor"},
		{"MGR044", "supervisor"},
		{"ADM002", "admin"},
		{"EMP001", "driver"},
		{"12345", "driver"},
	}

	for _, tt := range tests {
		if got := determineRole(tt.empCode); got != tt.want {
			t.Errorf("determineRole(%q) = %q, want %q", tt.empCode, got, tt.want)
		}
	}
}

func TestUpdateLastActivity(t *testing.T) {
	f := newFixture(t, okLoginHandler())
	f.mgr.Login(context.Background(), "EMP001", "SGI045", testLocation)
	loginExpiry := f.mgr.SessionInfo().ExpiresAt

	// plenty of session left: activity bumps the timestamp but not the expiry
	f.advance(2 * time.Hour)
	f.mgr.UpdateLastActivity()
	info := f.mgr.SessionInfo()
	if !info.ExpiresAt.Equal(loginExpiry) {
		t.Errorf("expiry moved to %v with >1h remaining, want unchanged %v", info.ExpiresAt, loginExpiry)
	}
	if !info.LastActivity.Equal(*f.now) {
		t.Errorf("lastActivity = %v, want %v", info.LastActivity, *f.now)
	}

	// within the throttle window: nothing happens
	f.advance(time.Minute)
	beforeThrottled := f.mgr.SessionInfo().LastActivity
	f.mgr.UpdateLastActivity()
	if got := f.mgr.SessionInfo().LastActivity; !got.Equal(beforeThrottled) {
		t.Errorf("lastActivity moved inside the throttle window")
	}

	// under an hour remaining: activity extends the session
	f.advance(5*time.Hour + 45*time.Minute) // 7h46m after login, ~44m left
	f.mgr.UpdateLastActivity()
	info = f.mgr.SessionInfo()
	wantExpiry := f.now.Add(SessionDuration)
	if !info.ExpiresAt.Equal(wantExpiry) {
		t.Errorf("expiry = %v after low-remaining activity, want %v", info.ExpiresAt, wantExpiry)
	}
}

func TestExtendSession(t *testing.T) {
	f := newFixture(t, okLoginHandler())
	f.mgr.Login(context.Background(), "EMP001", "SGI045", testLocation)

	f.advance(3 * time.Hour)
	if !f.mgr.ExtendSession() {
		t.Fatal("ExtendSession = false with a live session")
	}

	want := f.now.Add(SessionDuration)
	if got := f.mgr.SessionInfo().ExpiresAt; !got.Equal(want) {
		t.Errorf("expiry = %v, want %v", got, want)
	}
}

func TestSessionExpires(t *testing.T) {
	f := newFixture(t, okLoginHandler())
	f.mgr.Login(context.Background(), "EMP001", "SGI045", testLocation)

	f.advance(SessionDuration + time.Second)
	if f.mgr.IsAuthenticated() {
		t.Error("IsAuthenticated = true past expiry")
	}

	// the monitor pass cleans up fully
	f.mgr.checkSessionValidity()
	if f.mgr.CurrentUser() != nil {
		t.Error("CurrentUser != nil after expiry sweep")
	}
	if got := f.st.Get(store.KeyAuthUser); got != "" {
		t.Errorf("persisted session = %q after expiry sweep, want cleared", got)
	}
}

func TestExpiredBearerTokenLogsOut(t *testing.T) {
	// a bearer token that expired an hour before the fixture clock
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Date(2025, 6, 2, 7, 0, 0, 0, time.UTC).Unix(),
	}).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/login", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	})
	mux.HandleFunc("/api/get-jwt", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(models.TokenResponse{Token: token})
	})

	f := newFixture(t, mux)
	f.mgr.Login(context.Background(), "EMP001", "SGI045", testLocation)

	// the session itself is nowhere near expiry
	if !f.mgr.IsAuthenticated() {
		t.Fatal("IsAuthenticated = false right after login")
	}

	var sawLogout bool
	f.mgr.OnChange(func(u *AuthUser) {
		if u == nil {
			sawLogout = true
		}
	})

	// the token monitor pass logs out on the embedded expiry alone
	f.mgr.checkTokenValidity()
	if f.mgr.CurrentUser() != nil {
		t.Error("CurrentUser != nil after token sweep")
	}
	if got := f.st.Get(store.KeyAuthUser); got != "" {
		t.Errorf("persisted session = %q after token sweep, want cleared", got)
	}
	if !sawLogout {
		t.Error("listener not notified of the logout")
	}
}

func TestLogoutClearsEverything(t *testing.T) {
	f := newFixture(t, okLoginHandler())
	f.mgr.Login(context.Background(), "EMP001", "SGI045", testLocation)
	f.env.SetEnvironment("test")
	_ = f.st.Set(store.KeyTruckBarcode, "SGI045-00149601")

	var sawLogout bool
	f.mgr.OnChange(func(u *AuthUser) {
		if u == nil {
			sawLogout = true
		}
	})

	f.mgr.Logout()

	if f.mgr.IsAuthenticated() {
		t.Error("IsAuthenticated = true after logout")
	}
	if got := f.st.Get(store.KeyAuthUser); got != "" {
		t.Errorf("auth record = %q after logout, want cleared", got)
	}
	if got := f.st.Get(store.KeyTruckBarcode); got != "" {
		t.Errorf("trip state = %q after logout, want cleared", got)
	}
	if got := f.env.Current().Name; got != "live" {
		t.Errorf("environment = %q after logout, want live", got)
	}
	if !sawLogout {
		t.Error("listener not notified of logout")
	}
}

func TestForceLogin(t *testing.T) {
	f := newFixture(t, okLoginHandler())

	user := f.mgr.ForceLogin("sgi045")
	if user.Role != "supervisor" {
		t.Errorf("role = %q, want supervisor", user.Role)
	}
	if user.Site != "SGI045" {
		t.Errorf("site = %q, want SGI045", user.Site)
	}
	if !f.mgr.IsAuthenticated() {
		t.Error("IsAuthenticated = false after force login")
	}
}

func TestRestorePersistedSession(t *testing.T) {
	srv := httptest.NewServer(okLoginHandler())
	defer srv.Close()

	st, err := store.Open(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	defer st.Close()
	env := environment.NewSelector(st)

	user := AuthUser{
		Username:          "EMP001",
		EmpCode:           "EMP001",
		Site:              "SGI045",
		Role:              "driver",
		LoginTime:         time.Now().Add(-time.Hour),
		LastActivityTime:  time.Now().Add(-time.Minute),
		SessionExpiryTime: time.Now().Add(time.Hour),
	}
	data, _ := json.Marshal(user)
	if err := st.Set(store.KeyAuthUser, string(data)); err != nil {
		t.Fatalf("Set: %v", err)
	}

	mgr := NewManager(api.NewClient(srv.URL, env, srv.Client()), st, env)
	defer mgr.Logout()

	if !mgr.IsAuthenticated() {
		t.Error("IsAuthenticated = false after restore")
	}
	if got := mgr.CurrentUser(); got == nil || got.EmpCode != "EMP001" {
		t.Errorf("CurrentUser = %+v, want restored EMP001", got)
	}
}

func TestRestoreDiscardsExpiredSession(t *testing.T) {
	srv := httptest.NewServer(okLoginHandler())
	defer srv.Close()

	st, err := store.Open(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	defer st.Close()
	env := environment.NewSelector(st)

	user := AuthUser{
		EmpCode:           "EMP001",
		Site:              "SGI045",
		SessionExpiryTime: time.Now().Add(-time.Minute),
	}
	data, _ := json.Marshal(user)
	if err := st.Set(store.KeyAuthUser, string(data)); err != nil {
		t.Fatalf("Set: %v", err)
	}

	mgr := NewManager(api.NewClient(srv.URL, env, srv.Client()), st, env)

	if mgr.IsAuthenticated() {
		t.Error("IsAuthenticated = true for an expired restore")
	}
	if got := st.Get(store.KeyAuthUser); got != "" {
		t.Errorf("expired session still persisted: %q", got)
	}
}

func TestExtractDistance(t *testing.T) {
	tests := []struct {
		msg  string
		want string
		ok   bool
	}{
		{"too far: 12.3 km away", "12.3 km", true},
		{"jarak 850 meter dari site", "850 meter", true},
		{"distance 1,5 KM exceeds limit", "1,5 km", true},
		{"location mismatch", "", false},
	}

	for _, tt := range tests {
		got, ok := extractDistance(tt.msg)
		if ok != tt.ok || got != tt.want {
			t.Errorf("extractDistance(%q) = (%q, %v), want (%q, %v)", tt.msg, got, ok, tt.want, tt.ok)
		}
	}
}

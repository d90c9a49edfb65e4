// Package session owns the authenticated-user record: login against the ERP,
// expiry and activity-based renewal, the upload bearer token, and the
// background monitors that force a logout once either expiry passes.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/Samudera-Biru-Indonesia/Project2-SMT/auth"
	"github.com/Samudera-Biru-Indonesia/Project2-SMT/client/api"
	"github.com/Samudera-Biru-Indonesia/Project2-SMT/client/environment"
	"github.com/Samudera-Biru-Indonesia/Project2-SMT/client/store"
	"github.com/Samudera-Biru-Indonesia/Project2-SMT/models"
)

// Session timing. The duration matches a gate shift plus handover slack.
const (
	SessionDuration      = 8*time.Hour + 30*time.Minute
	sessionCheckInterval = 1 * time.Minute
	tokenCheckInterval   = 5 * time.Minute
	activityThrottle     = 5 * time.Minute
	extendThreshold      = 1 * time.Hour
)

// AuthUser is the persisted session record. JSON field names are part of the
// smt_auth_user storage contract.
type AuthUser struct {
	Username          string               `json:"username"`
	EmpCode           string               `json:"empCode"`
	Site              string               `json:"site"`
	Role              string               `json:"role"`
	LoginTime         time.Time            `json:"loginTime"`
	LastActivityTime  time.Time            `json:"lastActivityTime"`
	SessionExpiryTime time.Time            `json:"sessionExpiryTime"`
	Location          *models.UserLocation `json:"location,omitempty"`
	BearerToken       string               `json:"bearerToken,omitempty"`
}

// LoginResult is what the login screen renders.
type LoginResult struct {
	Success bool
	Message string
	User    *AuthUser
}

// Info is the derived read-only session view.
type Info struct {
	IsValid          bool
	ExpiresAt        time.Time
	MinutesRemaining int
	LastActivity     time.Time
}

// Manager coordinates the session lifecycle. All methods are safe for
// concurrent use; the monitors run on their own goroutine until logout.
type Manager struct {
	mu        sync.Mutex
	api       *api.Client
	st        *store.Store
	env       *environment.Selector
	current   *AuthUser
	listeners map[int]func(*AuthUser)
	nextID    int

	lastActivityApplied time.Time
	stopMonitors        chan struct{}

	now func() time.Time
}

// NewManager restores any persisted session (discarding it when expired) and
// starts the monitors if a session survives.
func NewManager(apiClient *api.Client, st *store.Store, env *environment.Selector) *Manager {
	m := &Manager{
		api:       apiClient,
		st:        st,
		env:       env,
		listeners: make(map[int]func(*AuthUser)),
		now:       time.Now,
	}
	m.restoreFromStorage()
	return m
}

func (m *Manager) restoreFromStorage() {
	raw := m.st.Get(store.KeyAuthUser)
	if raw == "" {
		return
	}

	var user AuthUser
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		log.Printf("⚠️  Stored session unreadable, discarding: %v", err)
		_ = m.st.Remove(store.KeyAuthUser)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.now().Before(user.SessionExpiryTime) {
		log.Println("Stored session has expired, discarding")
		m.logoutLocked()
		return
	}

	// Restore without re-saving so a restart never moves the expiry.
	m.current = &user
	m.startMonitorsLocked()
	log.Printf("Session restored for %s, expires at %s", user.EmpCode, user.SessionExpiryTime.Format(time.RFC3339))
}

// Login validates inputs, authenticates against the ERP through the proxy and,
// on success, persists the session and requests an upload bearer token.
// The environment is forced back to live first: every login starts on
// production regardless of what a previous session selected.
func (m *Manager) Login(ctx context.Context, empCode, site string, loc *models.UserLocation) LoginResult {
	m.env.ResetToLive()

	empCode = strings.ToUpper(strings.TrimSpace(empCode))
	site = strings.ToUpper(strings.TrimSpace(site))

	if empCode == "" {
		return LoginResult{Message: "Employee code is required"}
	}
	if site == "" {
		return LoginResult{Message: "Site code is required"}
	}
	if loc == nil {
		return LoginResult{Message: "Location coordinates are required"}
	}

	raw, err := m.api.Login(ctx, models.LoginRequest{
		LogonSite:    site,
		LogonEMP:     empCode,
		CurLatitude:  loc.Latitude,
		CurLongitude: loc.Longitude,
	})
	if err != nil {
		return LoginResult{Message: loginErrorMessage(err)}
	}

	if !classifyLoginResponse(raw) {
		return LoginResult{Message: rejectionMessage(raw)}
	}

	now := m.now()
	user := &AuthUser{
		Username:          empCode,
		EmpCode:           empCode,
		Site:              site,
		Role:              determineRole(empCode),
		LoginTime:         now,
		LastActivityTime:  now,
		SessionExpiryTime: now.Add(SessionDuration),
		Location:          loc,
	}

	// The upload token gates photo upload only; the session itself does not
	// depend on it. The token monitor simply has nothing to watch until a
	// later fetch succeeds.
	if token, err := m.api.GetJWT(ctx, models.TokenRequest{
		Username: user.Username,
		EmpCode:  user.EmpCode,
		Site:     user.Site,
	}); err != nil {
		log.Printf("⚠️  Upload token request failed: %v", err)
	} else {
		user.BearerToken = token
	}

	m.mu.Lock()
	m.current = user
	m.persistLocked()
	m.startMonitorsLocked()
	m.mu.Unlock()

	m.notify(user)
	log.Printf("✅ Login successful: %s @ %s (role %s)", empCode, site, user.Role)
	return LoginResult{Success: true, Message: "Login successful!", User: user}
}

// ForceLogin builds a privileged session without credential or location
// verification. This is an operational escape hatch behind a pre-shared
// secret route, not a security boundary.
func (m *Manager) ForceLogin(site string) *AuthUser {
	m.env.ResetToLive()

	now := m.now()
	user := &AuthUser{
		Username:          "OPERATOR",
		EmpCode:           "OPERATOR",
		Site:              strings.ToUpper(strings.TrimSpace(site)),
		Role:              "supervisor",
		LoginTime:         now,
		LastActivityTime:  now,
		SessionExpiryTime: now.Add(SessionDuration),
	}

	m.mu.Lock()
	m.current = user
	m.persistLocked()
	m.startMonitorsLocked()
	m.mu.Unlock()

	m.notify(user)
	log.Printf("⚠️  Force login: site %s", user.Site)
	return user
}

// Logout clears all local state, stops the monitors and resets the
// environment selection to live.
func (m *Manager) Logout() {
	m.mu.Lock()
	m.logoutLocked()
	m.mu.Unlock()

	m.notify(nil)
	log.Println("User logged out")
}

func (m *Manager) logoutLocked() {
	m.current = nil
	m.stopMonitorsLocked()
	_ = m.st.Clear()
	m.env.ResetToLive()
}

// IsAuthenticated reports whether a session exists and has not expired.
func (m *Manager) IsAuthenticated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current != nil && m.now().Before(m.current.SessionExpiryTime)
}

// CurrentUser returns a copy of the session record, or nil.
func (m *Manager) CurrentUser() *AuthUser {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return nil
	}
	u := *m.current
	return &u
}

// SessionInfo returns the derived read-only view.
func (m *Manager) SessionInfo() Info {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return Info{}
	}

	now := m.now()
	remaining := m.current.SessionExpiryTime.Sub(now)
	minutes := int((remaining + time.Minute - 1) / time.Minute)
	if minutes < 0 {
		minutes = 0
	}

	return Info{
		IsValid:          now.Before(m.current.SessionExpiryTime),
		ExpiresAt:        m.current.SessionExpiryTime,
		MinutesRemaining: minutes,
		LastActivity:     m.current.LastActivityTime,
	}
}

// UpdateLastActivity records user activity, throttled to once per five
// minutes. The expiry is extended only when under an hour remains: the
// session must not lapse mid-task, but light continuous use must not keep it
// alive forever either.
func (m *Manager) UpdateLastActivity() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return
	}

	now := m.now()
	if !m.lastActivityApplied.IsZero() && now.Sub(m.lastActivityApplied) < activityThrottle {
		return
	}
	m.lastActivityApplied = now

	m.current.LastActivityTime = now
	if m.current.SessionExpiryTime.Sub(now) <= extendThreshold {
		m.current.SessionExpiryTime = now.Add(SessionDuration)
		log.Printf("Session extended until %s", m.current.SessionExpiryTime.Format(time.RFC3339))
	}
	m.persistLocked()
}

// ExtendSession resets the expiry to a full duration from now.
func (m *Manager) ExtendSession() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return false
	}

	now := m.now()
	m.current.LastActivityTime = now
	m.current.SessionExpiryTime = now.Add(SessionDuration)
	m.persistLocked()
	return true
}

// BearerToken returns the upload token, or "" when none was issued.
func (m *Manager) BearerToken() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return ""
	}
	return m.current.BearerToken
}

// OnChange registers a session-change listener (nil user means logged out)
// and returns its cancel function.
func (m *Manager) OnChange(fn func(*AuthUser)) (cancel func()) {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}

func (m *Manager) notify(user *AuthUser) {
	m.mu.Lock()
	fns := make([]func(*AuthUser), 0, len(m.listeners))
	for _, fn := range m.listeners {
		fns = append(fns, fn)
	}
	m.mu.Unlock()

	for _, fn := range fns {
		fn(user)
	}
}

func (m *Manager) persistLocked() {
	data, err := json.Marshal(m.current)
	if err != nil {
		log.Printf("⚠️  Failed to encode session: %v", err)
		return
	}
	if err := m.st.Set(store.KeyAuthUser, string(data)); err != nil {
		log.Printf("⚠️  Failed to persist session: %v", err)
	}
}

// --- background monitors ---

func (m *Manager) startMonitorsLocked() {
	if m.stopMonitors != nil {
		return
	}
	stop := make(chan struct{})
	m.stopMonitors = stop

	go func() {
		sessionTicker := time.NewTicker(sessionCheckInterval)
		tokenTicker := time.NewTicker(tokenCheckInterval)
		defer sessionTicker.Stop()
		defer tokenTicker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-sessionTicker.C:
				m.checkSessionValidity()
			case <-tokenTicker.C:
				m.checkTokenValidity()
			}
		}
	}()
}

func (m *Manager) stopMonitorsLocked() {
	if m.stopMonitors != nil {
		close(m.stopMonitors)
		m.stopMonitors = nil
	}
}

// checkSessionValidity logs the user out once the session expiry has passed.
func (m *Manager) checkSessionValidity() {
	m.mu.Lock()
	expired := m.current != nil && !m.now().Before(m.current.SessionExpiryTime)
	if expired {
		log.Println("Session expired, logging out")
		m.logoutLocked()
	}
	m.mu.Unlock()

	if expired {
		m.notify(nil)
	}
}

// checkTokenValidity logs the user out once the bearer token's embedded
// expiry has passed, independent of the session's own expiry.
func (m *Manager) checkTokenValidity() {
	m.mu.Lock()
	expired := false
	if m.current != nil && m.current.BearerToken != "" {
		expiresAt, err := auth.TokenExpiresAt(m.current.BearerToken)
		if err == nil && !m.now().Before(expiresAt) {
			expired = true
		}
	}
	if expired {
		log.Println("Upload token expired, logging out")
		m.logoutLocked()
	}
	m.mu.Unlock()

	if expired {
		m.notify(nil)
	}
}

// --- login response interpretation ---

// classifyLoginResponse is the single place the ERP's ambiguous success
// contract is interpreted: an empty object means success, as do the various
// explicit flags seen across API revisions. Anything else is a failure.
func classifyLoginResponse(body map[string]interface{}) bool {
	if body == nil {
		return false
	}
	if len(body) == 0 {
		return true
	}
	for _, key := range []string{"success", "Success"} {
		if v, ok := body[key].(bool); ok && v {
			return true
		}
	}
	for _, key := range []string{"status", "Status"} {
		if v, ok := body[key].(string); ok && strings.EqualFold(v, "success") {
			return true
		}
	}
	return false
}

// rejectionMessage pulls the upstream message out of a 2xx failure body.
func rejectionMessage(body map[string]interface{}) string {
	for _, key := range []string{"message", "Message", "error"} {
		if v, ok := body[key].(string); ok && v != "" {
			return v
		}
	}
	return "Login failed. Please check your credentials."
}

var locationKeywords = []string{
	"location", "coordinate", "site", "tidak sesuai", "invalid location",
	"position", "latitude", "longitude", "lokasi", "cabang", "jauh",
}

// distancePattern matches the distance figure inside the ERP's free-text
// geofence rejection, e.g. "... terlalu jauh (12.3 km) ...". Fragile by
// nature; a failed match falls back to generic phrasing.
var distancePattern = regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s*(km|kilometer|m|meter)\b`)

func containsLocationKeyword(s string) bool {
	lower := strings.ToLower(s)
	for _, kw := range locationKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// extractDistance returns the "12.3 km" fragment from an upstream message.
func extractDistance(msg string) (string, bool) {
	match := distancePattern.FindStringSubmatch(msg)
	if match == nil {
		return "", false
	}
	return match[1] + " " + strings.ToLower(match[2]), true
}

// loginErrorMessage maps a transport/HTTP failure to the user-facing message.
// Nothing here triggers a retry; recovery is always user-initiated.
func loginErrorMessage(err error) string {
	if api.IsTransport(err) {
		return "Tidak dapat terhubung ke server. Periksa koneksi internet Anda."
	}

	status := api.StatusOf(err)
	body := upstreamBody(err)

	switch {
	case status == 422:
		return locationMismatchMessage(body)
	case status == 400:
		if containsLocationKeyword(body) {
			return locationMismatchMessage(body)
		}
		if msg := upstreamMessage(body); msg != "" {
			return msg
		}
		return "Data yang dikirim tidak valid. Periksa kembali informasi Anda."
	case status == 401:
		return "Kode karyawan atau site tidak valid. Periksa kembali data Anda."
	case status == 403:
		return "Akses ditolak. Anda tidak memiliki izin untuk menggunakan aplikasi ini."
	case status >= 500:
		return "Terjadi kesalahan pada server. Silakan coba lagi nanti."
	}
	return "Login gagal. Silakan coba lagi."
}

// locationMismatchMessage surfaces the geofence distance when the upstream
// message carries one.
func locationMismatchMessage(body string) string {
	if dist, ok := extractDistance(body); ok {
		return "Lokasi Anda terlalu jauh dari site yang dipilih (" + dist + "). Pastikan Anda berada di area yang sesuai."
	}
	return "Lokasi tidak sesuai dengan site yang dipilih. Pastikan Anda berada di area yang sesuai dengan site."
}

func upstreamBody(err error) string {
	if se, ok := asStatusError(err); ok {
		return string(se.Body)
	}
	return ""
}

func upstreamMessage(body string) string {
	var parsed map[string]interface{}
	if json.Unmarshal([]byte(body), &parsed) != nil {
		return ""
	}
	for _, key := range []string{"message", "Message"} {
		if v, ok := parsed[key].(string); ok && v != "" {
			if containsLocationKeyword(v) {
				return locationMismatchMessage(v)
			}
			return v
		}
	}
	return ""
}

func asStatusError(err error) (*api.StatusError, bool) {
	var se *api.StatusError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// determineRole derives a coarse role from the employee code prefix rules.
func determineRole(empCode string) string {
	switch {
	case strings.Contains(empCode, "SUP") || strings.Contains(empCode, "MGR"):
		return "supervisor"
	case strings.Contains(empCode, "ADM"):
		return "admin"
	default:
		return "driver"
	}
}

// Package environment holds the fixed set of backend targets and the active
// selection. Selection is deliberately reset to live on construction and on
// logout so a stale non-production target can never silently persist across
// sessions.
package environment

import (
	"sync"

	"github.com/Samudera-Biru-Indonesia/Project2-SMT/client/store"
)

// Environment is one named backend target. BaseURL and APIKey describe the
// upstream the proxy will hit for this selector; the client itself only ever
// sends Name.
type Environment struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
	BaseURL     string `json:"baseUrl"`
	APIKey      string `json:"apiKey"`
}

const DefaultName = "live"

var environments = map[string]Environment{
	"test": {
		Name:        "test",
		DisplayName: "Test",
		BaseURL:     "https://epictestapp.samator.com/KineticTest2/api/v2/efx/SGI/SMTTruckCheckApp",
	},
	"pilot": {
		Name:        "pilot",
		DisplayName: "Pilot",
		BaseURL:     "https://epicprodapp.samator.com/KineticPilot/api/v2/efx/SGI/SMTTruckCheckApp",
	},
	"live": {
		Name:        "live",
		DisplayName: "Live",
		BaseURL:     "https://epicprodapp.samator.com/Kinetic/api/v2/efx/SGI/SMTTruckCheckApp",
	},
}

// Selector owns the current environment choice and notifies listeners when it
// changes. The choice is persisted under the selectedEnvironment key.
type Selector struct {
	mu        sync.Mutex
	st        *store.Store
	current   Environment
	listeners map[int]func(Environment)
	nextID    int
}

// NewSelector builds a selector forced to live, ignoring whatever selection
// the store holds from a previous session.
func NewSelector(st *store.Store) *Selector {
	s := &Selector{
		st:        st,
		current:   environments[DefaultName],
		listeners: make(map[int]func(Environment)),
	}
	_ = st.Set(store.KeyEnvironment, DefaultName)
	return s
}

// SetEnvironment switches to the named environment and persists the choice.
// Unknown names are ignored.
func (s *Selector) SetEnvironment(name string) {
	env, ok := environments[name]
	if !ok {
		return
	}

	s.mu.Lock()
	if s.current.Name == env.Name {
		s.mu.Unlock()
		return
	}
	s.current = env
	fns := make([]func(Environment), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	_ = s.st.Set(store.KeyEnvironment, name)
	for _, fn := range fns {
		fn(env)
	}
}

// ResetToLive forces the selection back to the production target.
func (s *Selector) ResetToLive() {
	s.SetEnvironment(DefaultName)
}

// Current returns the active environment.
func (s *Selector) Current() Environment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Environments returns the selectable targets.
func (s *Selector) Environments() []Environment {
	return []Environment{environments["test"], environments["pilot"], environments["live"]}
}

// Subscribe registers a change listener and returns its cancel function.
func (s *Selector) Subscribe(fn func(Environment)) (cancel func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

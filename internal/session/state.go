package session

import (
	"sync"

	"github.com/claimmatrix/claimmatrix/internal/apiclient"
)

// Snapshot is an immutable view of the session state handed to observers.
type Snapshot struct {
	Token      string
	Identity   *apiclient.User
	Loading    bool
	LastError  string
	Generation uint64
}

// IsAuthenticated requires both a token and an identity; a token alone is
// not sufficient to authorize UI.
func (s Snapshot) IsAuthenticated() bool {
	return s.Token != "" && s.Identity != nil
}

// State is the in-memory, observable projection of the credential store.
// All mutation goes through the setters; SetToken/SetIdentity/Clear keep
// the durable store in lockstep so there is no separate synchronization
// step. The generation counter advances whenever the session a token
// represents is replaced or destroyed, letting late responses detect that
// they belong to a superseded session.
type State struct {
	mu        sync.RWMutex
	store     Store
	token     string
	identity  *apiclient.User
	loading   bool
	lastError string
	gen       uint64

	subMu   sync.Mutex
	subs    map[int]func(Snapshot)
	nextSub int
}

// NewState creates an empty state bound to the given store.
func NewState(store Store) *State {
	return &State{
		store: store,
		subs:  make(map[int]func(Snapshot)),
	}
}

// Token implements the token source consumed by the bearer middleware.
func (s *State) Token() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, s.token != ""
}

// Identity returns the current identity, if any.
func (s *State) Identity() (*apiclient.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity, s.identity != nil
}

// IsAuthenticated reports whether both token and identity are present.
func (s *State) IsAuthenticated() bool {
	return s.Snapshot().IsAuthenticated()
}

// DisplayName returns the identity's name, or "" when anonymous.
func (s *State) DisplayName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.identity == nil {
		return ""
	}
	return s.identity.Name
}

// Generation returns the current session generation.
func (s *State) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gen
}

// Snapshot returns a copy of the current state.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *State) snapshotLocked() Snapshot {
	var identity *apiclient.User
	if s.identity != nil {
		u := *s.identity
		identity = &u
	}
	return Snapshot{
		Token:      s.token,
		Identity:   identity,
		Loading:    s.loading,
		LastError:  s.lastError,
		Generation: s.gen,
	}
}

// SetToken stores a new bearer token and persists it, starting a new
// session generation.
func (s *State) SetToken(token string) {
	s.mu.Lock()
	s.token = token
	s.gen++
	s.store.SetToken(token)
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.publish(snap)
}

// SetIdentity stores the identity and persists it alongside the token.
func (s *State) SetIdentity(user *apiclient.User) {
	s.mu.Lock()
	s.identity = user
	if user != nil && s.token != "" {
		s.store.SetIdentity(user)
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.publish(snap)
}

// SetLoading toggles the in-flight indicator.
func (s *State) SetLoading(loading bool) {
	s.mu.Lock()
	s.loading = loading
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.publish(snap)
}

// SetError records the last user-facing error message; "" clears it.
func (s *State) SetError(message string) {
	s.mu.Lock()
	s.lastError = message
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.publish(snap)
}

// Clear resets every field and purges the store, making logout a single
// operation from the caller's point of view. Idempotent.
func (s *State) Clear() {
	s.mu.Lock()
	s.token = ""
	s.identity = nil
	s.loading = false
	s.lastError = ""
	s.gen++
	s.store.Clear()
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.publish(snap)
}

// Subscribe registers an observer called with a snapshot after every
// mutation. The returned function cancels the subscription.
func (s *State) Subscribe(fn func(Snapshot)) func() {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

func (s *State) publish(snap Snapshot) {
	s.subMu.Lock()
	fns := make([]func(Snapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}

package session

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"
	"github.com/zalando/go-keyring"

	"github.com/claimmatrix/claimmatrix/internal/apiclient"
)

const keyringService = "claimmatrix-cli"

// Store is durable credential persistence: the bearer token and the cached
// identity, surviving process restarts. Every operation is total — a
// missing entry is the absent state, not an error. Implementations must
// never persist an identity without a token.
type Store interface {
	Token() (string, bool)
	SetToken(token string)
	Identity() (*apiclient.User, bool)
	SetIdentity(user *apiclient.User)
	Clear()
}

// KeyringStore persists credentials in the OS keychain/credential manager,
// two entries per profile. Keyring failures degrade to the absent state on
// read and are logged on write; callers never see them.
type KeyringStore struct {
	profile string
	logger  zerolog.Logger
}

// NewKeyringStore creates a keyring-backed store. profile scopes the
// entries so independent environments keep independent sessions.
func NewKeyringStore(profile string, logger zerolog.Logger) *KeyringStore {
	return &KeyringStore{profile: profile, logger: logger}
}

func (s *KeyringStore) tokenKey() string    { return "token-" + s.profile }
func (s *KeyringStore) identityKey() string { return "identity-" + s.profile }

// Token returns the persisted bearer token, if any.
func (s *KeyringStore) Token() (string, bool) {
	token, err := keyring.Get(keyringService, s.tokenKey())
	if err != nil || token == "" {
		return "", false
	}
	return token, true
}

// SetToken persists the bearer token.
func (s *KeyringStore) SetToken(token string) {
	if err := keyring.Set(keyringService, s.tokenKey(), token); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to persist token to keyring")
	}
}

// Identity returns the cached identity, if any.
func (s *KeyringStore) Identity() (*apiclient.User, bool) {
	raw, err := keyring.Get(keyringService, s.identityKey())
	if err != nil || raw == "" {
		return nil, false
	}
	var user apiclient.User
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		s.logger.Warn().Err(err).Msg("Discarding unreadable cached identity")
		return nil, false
	}
	return &user, true
}

// SetIdentity caches the identity. An identity is never written without a
// token already present.
func (s *KeyringStore) SetIdentity(user *apiclient.User) {
	if user == nil {
		return
	}
	if _, ok := s.Token(); !ok {
		s.logger.Warn().Msg("Refusing to cache identity without a token")
		return
	}
	raw, err := json.Marshal(user)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to encode identity")
		return
	}
	if err := keyring.Set(keyringService, s.identityKey(), string(raw)); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to persist identity to keyring")
	}
}

// Clear removes both entries. Already-absent entries are not an error.
func (s *KeyringStore) Clear() {
	for _, key := range []string{s.identityKey(), s.tokenKey()} {
		if err := keyring.Delete(keyringService, key); err != nil && err != keyring.ErrNotFound {
			s.logger.Warn().Err(err).Str("key", key).Msg("Failed to remove keyring entry")
		}
	}
}

// MemoryStore is an in-memory Store for tests and ephemeral sessions.
type MemoryStore struct {
	mu       sync.Mutex
	token    string
	identity *apiclient.User
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Token() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, s.token != ""
}

func (s *MemoryStore) SetToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

func (s *MemoryStore) Identity() (*apiclient.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.identity == nil {
		return nil, false
	}
	user := *s.identity
	return &user, true
}

func (s *MemoryStore) SetIdentity(user *apiclient.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if user == nil || s.token == "" {
		return
	}
	u := *user
	s.identity = &u
}

func (s *MemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.identity = nil
}

package auth

import (
	"sync"
	"time"
)

// Credentials is the access/refresh pair of a signed-in session.
// AccessTokenExpiry is always computed locally when a token is stored.
type Credentials struct {
	AccessToken       string    `json:"accessToken"`
	RefreshToken      string    `json:"refreshToken"`
	AccessTokenExpiry time.Time `json:"accessTokenExpiry"`
}

// CredentialStore holds the credential pair of the active session.
// Init and Teardown belong to the session lifecycle; only the Renewer
// replaces the access token in between.
type CredentialStore struct {
	mu     sync.RWMutex
	creds  Credentials
	active bool
	now    func() time.Time
}

func NewCredentialStore(now func() time.Time) *CredentialStore {
	if now == nil {
		now = time.Now
	}
	return &CredentialStore{now: now}
}

// Init stores a freshly issued pair valid for lifetime from now.
func (s *CredentialStore) Init(accessToken, refreshToken string, lifetime time.Duration) Credentials {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.creds = Credentials{
		AccessToken:       accessToken,
		RefreshToken:      refreshToken,
		AccessTokenExpiry: s.now().Add(lifetime),
	}
	s.active = true
	return s.creds
}

// Teardown destroys the pair. It reports whether a session was active.
func (s *CredentialStore) Teardown() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	wasActive := s.active
	s.creds = Credentials{}
	s.active = false
	return wasActive
}

func (s *CredentialStore) Snapshot() (Credentials, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.creds, s.active
}

func (s *CredentialStore) Active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// Valid returns the access token while now < expiry.
func (s *CredentialStore) Valid() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.active || s.creds.AccessToken == "" {
		return "", false
	}
	if !s.now().Before(s.creds.AccessTokenExpiry) {
		return "", false
	}
	return s.creds.AccessToken, true
}

func (s *CredentialStore) refreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.creds.RefreshToken
}

// renewed replaces the access token. A rotated refresh token replaces the
// old one. It is a no-op once the session has been torn down.
func (s *CredentialStore) renewed(accessToken, refreshToken string, lifetime time.Duration) (Credentials, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active {
		return Credentials{}, false
	}
	s.creds.AccessToken = accessToken
	if refreshToken != "" {
		s.creds.RefreshToken = refreshToken
	}
	s.creds.AccessTokenExpiry = s.now().Add(lifetime)
	return s.creds, true
}

// restore reinstates a pair this client persisted earlier.
func (s *CredentialStore) restore(creds Credentials) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds = creds
	s.active = true
}

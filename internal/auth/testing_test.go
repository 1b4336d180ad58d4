package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/CDeX-Labs/CDeX-Web-Client/internal/notify"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func mintToken(t *testing.T, userID, email string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   userID,
		"email": email,
		"role":  1,
		"iat":   time.Now().Unix(),
		"exp":   time.Now().Add(24 * time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// authServer fakes /auth/signIn and /auth/refresh.
type authServer struct {
	*httptest.Server
	refreshCalls atomic.Int32
	signInCalls  atomic.Int32

	mu            sync.Mutex
	refreshStatus int
	refreshDelay  time.Duration
	nextAccess    string
}

func newAuthServer(t *testing.T) *authServer {
	t.Helper()
	a := &authServer{refreshStatus: http.StatusOK}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		a.refreshCalls.Add(1)

		var req refreshRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		a.mu.Lock()
		status, delay, next := a.refreshStatus, a.refreshDelay, a.nextAccess
		a.mu.Unlock()

		if delay > 0 {
			time.Sleep(delay)
		}
		if status != http.StatusOK {
			w.WriteHeader(status)
			_ = json.NewEncoder(w).Encode(map[string]int{"status": status})
			return
		}
		_ = json.NewEncoder(w).Encode(refreshResponse{AccessToken: next})
	})
	mux.HandleFunc("POST /api/v1/auth/signIn", func(w http.ResponseWriter, r *http.Request) {
		a.signInCalls.Add(1)

		var id Identity
		if err := json.NewDecoder(r.Body).Decode(&id); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(signInResponse{
			AccessToken:  mintToken(t, "user-"+id.ID, id.Email),
			RefreshToken: "refresh-" + id.ID,
		})
	})

	a.Server = httptest.NewServer(mux)
	t.Cleanup(a.Close)
	return a
}

func (a *authServer) setRefresh(status int, delay time.Duration, next string) {
	a.mu.Lock()
	a.refreshStatus, a.refreshDelay, a.nextAccess = status, delay, next
	a.mu.Unlock()
}

// memoryPersister is an in-memory Persister.
type memoryPersister struct {
	mu     sync.Mutex
	creds  Credentials
	stored bool
}

func (m *memoryPersister) Save(_ context.Context, c Credentials) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds, m.stored = c, true
	return nil
}

func (m *memoryPersister) Load(context.Context) (Credentials, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.creds, m.stored, nil
}

func (m *memoryPersister) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds, m.stored = Credentials{}, false
	return nil
}

func newTestSession(t *testing.T, srv *authServer, clock *fakeClock, persister Persister) (*Session, *notify.Recorder) {
	t.Helper()
	rec := &notify.Recorder{}
	s := NewSession(SessionOptions{
		BaseURL:             srv.URL + "/api/v1",
		AccessTokenLifetime: 24 * time.Hour,
		BridgeTokenLifetime: 24 * time.Hour,
		Notifier:            rec,
		Navigator:           rec,
		Persister:           persister,
		Logger:              zerolog.Nop(),
		Now:                 clock.Now,
	})
	return s, rec
}

package auth

import (
	"context"
	"testing"
	"time"

	"github.com/CDeX-Labs/CDeX-Web-Client/internal/notify"
	"github.com/stretchr/testify/require"
)

func TestSignIn(t *testing.T) {
	srv := newAuthServer(t)
	clock := newFakeClock()
	persister := &memoryPersister{}
	s, _ := newTestSession(t, srv, clock, persister)

	err := s.SignIn(context.Background(), Identity{
		Provider:            "github",
		ID:                  "42",
		Email:               "ada@example.com",
		Name:                "Ada",
		ProviderAccessToken: "gho_x",
	})
	require.NoError(t, err)

	require.True(t, s.SignedIn())
	require.Equal(t, "user-42", s.UserID())
	require.Equal(t, "ada@example.com", s.Email())

	creds, ok := s.Credentials()
	require.True(t, ok)
	require.Equal(t, "refresh-42", creds.RefreshToken)
	require.Equal(t, clock.Now().Add(24*time.Hour), creds.AccessTokenExpiry)

	saved, stored, err := persister.Load(context.Background())
	require.NoError(t, err)
	require.True(t, stored)
	require.Equal(t, creds, saved)
}

func TestSignInRequiresIdentity(t *testing.T) {
	srv := newAuthServer(t)
	s, _ := newTestSession(t, srv, newFakeClock(), nil)

	require.Error(t, s.SignIn(context.Background(), Identity{Email: "x@example.com"}))
	require.Equal(t, int32(0), srv.signInCalls.Load())
}

func TestRestore(t *testing.T) {
	srv := newAuthServer(t)
	clock := newFakeClock()
	persister := &memoryPersister{}
	token := mintToken(t, "u7", "u7@example.com")
	require.NoError(t, persister.Save(context.Background(), Credentials{
		AccessToken:       token,
		RefreshToken:      "refresh-7",
		AccessTokenExpiry: clock.Now().Add(time.Hour),
	}))

	s, _ := newTestSession(t, srv, clock, persister)
	ok, err := s.Restore(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "u7", s.UserID())

	got, err := s.ValidAccessToken(context.Background())
	require.NoError(t, err)
	require.Equal(t, token, got)
}

func TestRestoreWithoutPersistedSession(t *testing.T) {
	srv := newAuthServer(t)
	s, _ := newTestSession(t, srv, newFakeClock(), &memoryPersister{})

	ok, err := s.Restore(context.Background())
	require.NoError(t, err)
	require.False(t, ok)
	require.False(t, s.SignedIn())
}

func TestUnauthorizedTearsDownOnce(t *testing.T) {
	srv := newAuthServer(t)
	s, rec := newTestSession(t, srv, newFakeClock(), nil)
	require.NoError(t, s.AdoptBridgeTokens(context.Background(), "access-1", "refresh-1"))

	s.Unauthorized(context.Background())
	s.Unauthorized(context.Background())

	require.False(t, s.SignedIn())
	require.Equal(t, 1, rec.Count(notify.KindUnauthorized))
	require.Equal(t, 1, rec.Redirects())
	require.Empty(t, s.UserID())
}

func TestSignOut(t *testing.T) {
	srv := newAuthServer(t)
	persister := &memoryPersister{}
	s, rec := newTestSession(t, srv, newFakeClock(), persister)
	require.NoError(t, s.SignIn(context.Background(), Identity{Provider: "google", ID: "1"}))

	s.SignOut(context.Background())

	require.False(t, s.SignedIn())
	require.Empty(t, rec.Notifications())
	require.Equal(t, 1, rec.Redirects())
	_, stored, _ := persister.Load(context.Background())
	require.False(t, stored)
}

func TestValidityCheckRenewsInBackground(t *testing.T) {
	srv := newAuthServer(t)
	srv.setRefresh(200, 0, "access-2")
	clock := newFakeClock()
	s, _ := newTestSession(t, srv, clock, nil)
	require.NoError(t, s.AdoptBridgeTokens(context.Background(), "access-1", "refresh-1"))
	clock.Advance(48 * time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.StartValidityCheck(ctx, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		creds, _ := s.Credentials()
		return creds.AccessToken == "access-2"
	}, 2*time.Second, 10*time.Millisecond)
	require.Equal(t, int32(1), srv.refreshCalls.Load())
}

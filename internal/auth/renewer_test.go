package auth

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/CDeX-Labs/CDeX-Web-Client/internal/api"
	"github.com/CDeX-Labs/CDeX-Web-Client/internal/notify"
	"github.com/stretchr/testify/require"
)

func TestValidAccessTokenBeforeExpiry(t *testing.T) {
	srv := newAuthServer(t)
	clock := newFakeClock()
	s, _ := newTestSession(t, srv, clock, nil)

	require.NoError(t, s.AdoptBridgeTokens(context.Background(), "access-1", "refresh-1"))
	clock.Advance(23 * time.Hour)

	token, err := s.ValidAccessToken(context.Background())
	require.NoError(t, err)
	require.Equal(t, "access-1", token)
	require.Equal(t, int32(0), srv.refreshCalls.Load())
}

func TestValidAccessTokenRenewsAtExpiry(t *testing.T) {
	srv := newAuthServer(t)
	srv.setRefresh(http.StatusOK, 0, "access-2")
	clock := newFakeClock()
	s, _ := newTestSession(t, srv, clock, nil)

	require.NoError(t, s.AdoptBridgeTokens(context.Background(), "access-1", "refresh-1"))
	clock.Advance(24 * time.Hour)

	token, err := s.ValidAccessToken(context.Background())
	require.NoError(t, err)
	require.Equal(t, "access-2", token)
	require.Equal(t, int32(1), srv.refreshCalls.Load())

	creds, ok := s.Credentials()
	require.True(t, ok)
	require.Equal(t, clock.Now().Add(24*time.Hour), creds.AccessTokenExpiry)
	require.Equal(t, "refresh-1", creds.RefreshToken)
}

func TestConcurrentCallersShareOneRenewal(t *testing.T) {
	srv := newAuthServer(t)
	srv.setRefresh(http.StatusOK, 50*time.Millisecond, "access-2")
	clock := newFakeClock()
	s, _ := newTestSession(t, srv, clock, nil)

	require.NoError(t, s.AdoptBridgeTokens(context.Background(), "access-1", "refresh-1"))
	clock.Advance(25 * time.Hour)

	const callers = 32
	var wg sync.WaitGroup
	tokens := make([]string, callers)
	errs := make([]error, callers)

	start := make(chan struct{})
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			tokens[i], errs[i] = s.ValidAccessToken(context.Background())
		}(i)
	}
	close(start)
	wg.Wait()

	require.Equal(t, int32(1), srv.refreshCalls.Load())
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		require.Equal(t, "access-2", tokens[i])
	}
}

func TestRenewalFailureSignsOut(t *testing.T) {
	srv := newAuthServer(t)
	srv.setRefresh(http.StatusUnauthorized, 0, "")
	clock := newFakeClock()
	persister := &memoryPersister{}
	s, rec := newTestSession(t, srv, clock, persister)

	require.NoError(t, s.AdoptBridgeTokens(context.Background(), "access-1", "refresh-1"))
	clock.Advance(24 * time.Hour)

	token, err := s.ValidAccessToken(context.Background())
	require.Empty(t, token)
	require.ErrorIs(t, err, api.ErrRenewalFailed)
	require.ErrorIs(t, err, api.ErrUnauthorized)

	require.False(t, s.SignedIn())
	require.Equal(t, 1, rec.Count(notify.KindSessionExpired))
	require.Len(t, rec.Notifications(), 1)
	require.Equal(t, 1, rec.Redirects())

	_, stored, _ := persister.Load(context.Background())
	require.False(t, stored)

	_, err = s.ValidAccessToken(context.Background())
	require.ErrorIs(t, err, ErrNotSignedIn)
	require.Equal(t, int32(1), srv.refreshCalls.Load())
}

func TestConcurrentRenewalFailureNotifiesOnce(t *testing.T) {
	srv := newAuthServer(t)
	srv.setRefresh(http.StatusUnauthorized, 30*time.Millisecond, "")
	clock := newFakeClock()
	s, rec := newTestSession(t, srv, clock, nil)

	require.NoError(t, s.AdoptBridgeTokens(context.Background(), "access-1", "refresh-1"))
	clock.Advance(24 * time.Hour)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.ValidAccessToken(context.Background())
			require.ErrorIs(t, err, api.ErrUnauthorized)
		}()
	}
	wg.Wait()

	require.Equal(t, 1, rec.Count(notify.KindSessionExpired))
	require.Equal(t, 1, rec.Redirects())
}

func TestZeroBridgeLifetimeRenewsBeforeFirstUse(t *testing.T) {
	srv := newAuthServer(t)
	srv.setRefresh(http.StatusOK, 0, "access-fresh")
	clock := newFakeClock()

	s := NewSession(SessionOptions{
		BaseURL:             srv.URL + "/api/v1",
		BridgeTokenLifetime: 0,
		Now:                 clock.Now,
	})
	require.NoError(t, s.AdoptBridgeTokens(context.Background(), "access-bridge", "refresh-1"))

	token, err := s.ValidAccessToken(context.Background())
	require.NoError(t, err)
	require.Equal(t, "access-fresh", token)
	require.Equal(t, int32(1), srv.refreshCalls.Load())
}

func TestForcedRenew(t *testing.T) {
	srv := newAuthServer(t)
	srv.setRefresh(http.StatusOK, 0, "access-2")
	clock := newFakeClock()
	s, _ := newTestSession(t, srv, clock, nil)

	require.NoError(t, s.AdoptBridgeTokens(context.Background(), "access-1", "refresh-1"))

	token, err := s.Renew(context.Background())
	require.NoError(t, err)
	require.Equal(t, "access-2", token)
	require.Equal(t, int32(1), srv.refreshCalls.Load())
}

package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/CDeX-Labs/CDeX-Web-Client/internal/api"
	"github.com/CDeX-Labs/CDeX-Web-Client/internal/metrics"
	"github.com/rs/zerolog"
)

var (
	ErrNotSignedIn     = api.ErrNotSignedIn
	errNoRefreshToken  = errors.New("no refresh token available")
	errEmptyAccessResp = errors.New("renewal response carried no access token")
)

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type refreshResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
	Status       int    `json:"status,omitempty"`
}

// renewal is a refresh exchange shared by every caller that arrives while
// it is in flight.
type renewal struct {
	done  chan struct{}
	token string
	err   error
}

// Renewer exchanges the refresh token for a new access token.
type Renewer struct {
	store      *CredentialStore
	httpClient *http.Client
	url        string
	lifetime   time.Duration
	metrics    *metrics.Metrics
	logger     zerolog.Logger

	onRenewed func(ctx context.Context, creds Credentials)
	onFailure func(ctx context.Context, err error)

	mu       sync.Mutex
	inflight *renewal
}

func newRenewer(store *CredentialStore, httpClient *http.Client, baseURL string, lifetime time.Duration, m *metrics.Metrics, logger zerolog.Logger) *Renewer {
	r := &Renewer{
		store:      store,
		httpClient: httpClient,
		url:        baseURL + "/auth/refresh",
		lifetime:   lifetime,
		metrics:    m,
		logger:     logger.With().Str("component", "renewer").Logger(),
	}
	return r
}

// ValidAccessToken returns the current access token, renewing it first when
// it has expired.
func (r *Renewer) ValidAccessToken(ctx context.Context) (string, error) {
	if token, ok := r.store.Valid(); ok {
		return token, nil
	}
	if !r.store.Active() {
		return "", ErrNotSignedIn
	}
	return r.renew(ctx, false)
}

// Renew performs at most one refresh exchange at a time. Callers arriving
// while one is in flight wait for its result.
func (r *Renewer) Renew(ctx context.Context) (string, error) {
	return r.renew(ctx, true)
}

func (r *Renewer) renew(ctx context.Context, force bool) (string, error) {
	r.mu.Lock()
	if call := r.inflight; call != nil {
		r.mu.Unlock()
		select {
		case <-call.done:
			return call.token, call.err
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	// A renewal may have completed between the caller's expiry check and here.
	if !force {
		if token, ok := r.store.Valid(); ok {
			r.mu.Unlock()
			return token, nil
		}
	}

	call := &renewal{done: make(chan struct{})}
	r.inflight = call
	r.mu.Unlock()

	// The exchange outlives a canceled leader so waiting callers still get a result.
	call.token, call.err = r.exchange(context.WithoutCancel(ctx))

	r.mu.Lock()
	r.inflight = nil
	r.mu.Unlock()
	close(call.done)

	return call.token, call.err
}

func (r *Renewer) exchange(ctx context.Context) (string, error) {
	if !r.store.Active() {
		return "", ErrNotSignedIn
	}
	refreshToken := r.store.refreshToken()
	if refreshToken == "" {
		return "", r.fail(ctx, errNoRefreshToken)
	}

	r.logger.Debug().Msg("Renewing access token")

	var resp refreshResponse
	if err := postJSON(ctx, r.httpClient, r.url, refreshRequest{RefreshToken: refreshToken}, &resp); err != nil {
		return "", r.fail(ctx, err)
	}
	if resp.Status == http.StatusUnauthorized {
		return "", r.fail(ctx, &statusError{Status: resp.Status})
	}
	if resp.AccessToken == "" {
		return "", r.fail(ctx, errEmptyAccessResp)
	}

	creds, ok := r.store.renewed(resp.AccessToken, resp.RefreshToken, r.lifetime)
	if !ok {
		// Signed out while the exchange was in flight.
		return "", ErrNotSignedIn
	}

	r.metrics.IncRenewal("ok")
	r.logger.Info().Time("expiresAt", creds.AccessTokenExpiry).Msg("Access token renewed")

	if r.onRenewed != nil {
		r.onRenewed(ctx, creds)
	}
	return creds.AccessToken, nil
}

func (r *Renewer) fail(ctx context.Context, cause error) error {
	r.metrics.IncRenewal("failed")
	r.logger.Warn().Err(cause).Msg("Access token renewal failed")

	err := fmt.Errorf("%w: %w", api.ErrRenewalFailed, cause)
	if r.onFailure != nil {
		r.onFailure(ctx, err)
	}
	return err
}

package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/CDeX-Labs/CDeX-Web-Client/internal/metrics"
	"github.com/CDeX-Labs/CDeX-Web-Client/internal/notify"
	"github.com/rs/zerolog"
)

// Identity is what the identity-provider bridge hands over after its own
// handshake completed.
type Identity struct {
	Provider            string `json:"provider"`
	ID                  string `json:"id"`
	Email               string `json:"email"`
	Name                string `json:"name"`
	Image               string `json:"image"`
	ProviderAccessToken string `json:"providerAccessToken"`
}

type signInResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Persister keeps the credential pair across process restarts.
type Persister interface {
	Save(ctx context.Context, creds Credentials) error
	Load(ctx context.Context) (Credentials, bool, error)
	Clear(ctx context.Context) error
}

type SessionOptions struct {
	BaseURL    string
	HTTPClient *http.Client

	// AccessTokenLifetime applies to tokens from sign-in and renewal.
	AccessTokenLifetime time.Duration
	// BridgeTokenLifetime applies to tokens adopted from the identity
	// bridge, whose real expiry is unknown. Zero forces a renewal before
	// the first use.
	BridgeTokenLifetime time.Duration

	Notifier  notify.Notifier
	Navigator notify.Navigator
	Persister Persister
	Metrics   *metrics.Metrics
	Logger    zerolog.Logger
	Now       func() time.Time
}

// Session owns the credential lifecycle: sign-in initializes the store,
// sign-out and authorization failures tear it down.
type Session struct {
	baseURL             string
	httpClient          *http.Client
	accessTokenLifetime time.Duration
	bridgeTokenLifetime time.Duration

	store   *CredentialStore
	renewer *Renewer

	notifier  notify.Notifier
	navigator notify.Navigator
	persister Persister
	metrics   *metrics.Metrics
	logger    zerolog.Logger

	mu     sync.RWMutex
	claims *Claims
}

func NewSession(opts SessionOptions) *Session {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	lifetime := opts.AccessTokenLifetime
	if lifetime <= 0 {
		lifetime = 24 * time.Hour
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = notify.NotifierFunc(func(notify.Notification) {})
	}
	navigator := opts.Navigator
	if navigator == nil {
		navigator = notify.NavigatorFunc(func() {})
	}

	baseURL := strings.TrimSuffix(opts.BaseURL, "/")
	logger := opts.Logger.With().Str("component", "session").Logger()
	store := NewCredentialStore(opts.Now)

	s := &Session{
		baseURL:             baseURL,
		httpClient:          httpClient,
		accessTokenLifetime: lifetime,
		bridgeTokenLifetime: opts.BridgeTokenLifetime,
		store:               store,
		notifier:            notifier,
		navigator:           navigator,
		persister:           opts.Persister,
		metrics:             opts.Metrics,
		logger:              logger,
	}

	s.renewer = newRenewer(store, httpClient, baseURL, lifetime, opts.Metrics, opts.Logger)
	s.renewer.onRenewed = func(ctx context.Context, creds Credentials) {
		s.adoptClaims(creds.AccessToken)
		s.persist(ctx, creds)
	}
	s.renewer.onFailure = func(ctx context.Context, err error) {
		s.terminate(ctx, "renewal_failed", notify.Notification{
			Kind:    notify.KindSessionExpired,
			Message: "Your session has expired, please sign in again",
		})
	}

	return s
}

// SignIn exchanges the bridge identity for an API credential pair.
func (s *Session) SignIn(ctx context.Context, identity Identity) error {
	if identity.Provider == "" || identity.ID == "" {
		return fmt.Errorf("sign in: provider and id are required")
	}

	var resp signInResponse
	if err := postJSON(ctx, s.httpClient, s.baseURL+"/auth/signIn", identity, &resp); err != nil {
		return fmt.Errorf("sign in: %w", err)
	}
	if resp.AccessToken == "" || resp.RefreshToken == "" {
		return fmt.Errorf("sign in: response missing tokens")
	}

	creds := s.store.Init(resp.AccessToken, resp.RefreshToken, s.accessTokenLifetime)
	s.adoptClaims(creds.AccessToken)
	s.persist(ctx, creds)

	s.logger.Info().
		Str("provider", identity.Provider).
		Str("userId", s.UserID()).
		Msg("Signed in")
	return nil
}

// AdoptBridgeTokens starts a session from tokens the identity bridge already
// obtained. Their expiry is assumed to be BridgeTokenLifetime from now.
func (s *Session) AdoptBridgeTokens(ctx context.Context, accessToken, refreshToken string) error {
	if accessToken == "" || refreshToken == "" {
		return fmt.Errorf("adopt bridge tokens: both tokens are required")
	}

	creds := s.store.Init(accessToken, refreshToken, s.bridgeTokenLifetime)
	s.adoptClaims(creds.AccessToken)
	s.persist(ctx, creds)

	s.logger.Info().
		Str("userId", s.UserID()).
		Dur("assumedLifetime", s.bridgeTokenLifetime).
		Msg("Adopted bridge tokens")
	return nil
}

// Restore reinstates a persisted session. It reports whether one was found.
func (s *Session) Restore(ctx context.Context) (bool, error) {
	if s.persister == nil {
		return false, nil
	}

	creds, ok, err := s.persister.Load(ctx)
	if err != nil {
		return false, fmt.Errorf("restore session: %w", err)
	}
	if !ok || creds.RefreshToken == "" {
		return false, nil
	}

	s.store.restore(creds)
	s.adoptClaims(creds.AccessToken)

	s.logger.Info().
		Str("userId", s.UserID()).
		Time("expiresAt", creds.AccessTokenExpiry).
		Msg("Session restored")
	return true, nil
}

// SignOut ends the session at the user's request.
func (s *Session) SignOut(ctx context.Context) {
	if !s.teardown(ctx) {
		return
	}
	s.metrics.IncSignOut("user")
	s.logger.Info().Msg("Signed out")
	s.navigator.RedirectToSignIn()
}

// ValidAccessToken returns a usable access token, renewing it if expired.
func (s *Session) ValidAccessToken(ctx context.Context) (string, error) {
	return s.renewer.ValidAccessToken(ctx)
}

// Renew forces a refresh exchange.
func (s *Session) Renew(ctx context.Context) (string, error) {
	return s.renewer.Renew(ctx)
}

// Unauthorized handles a 401 from the API.
func (s *Session) Unauthorized(ctx context.Context) {
	s.terminate(ctx, "unauthorized", notify.Notification{
		Kind:    notify.KindUnauthorized,
		Message: "You are not authorized, please sign in again",
	})
}

// StartValidityCheck renews the access token in the background whenever it
// has expired, until ctx is done or the session ends.
func (s *Session) StartValidityCheck(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if !s.store.Active() {
					s.logger.Debug().Msg("Validity check stopped, no active session")
					return
				}
				if _, err := s.ValidAccessToken(ctx); err != nil && !errors.Is(err, context.Canceled) {
					s.logger.Warn().Err(err).Msg("Validity check failed")
				}
			}
		}
	}()
}

func (s *Session) SignedIn() bool {
	return s.store.Active()
}

func (s *Session) Credentials() (Credentials, bool) {
	return s.store.Snapshot()
}

func (s *Session) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.claims == nil {
		return ""
	}
	return s.claims.GetUserID()
}

func (s *Session) Email() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.claims == nil {
		return ""
	}
	return s.claims.GetEmail()
}

func (s *Session) terminate(ctx context.Context, reason string, note notify.Notification) {
	if !s.teardown(ctx) {
		return
	}
	s.metrics.IncSignOut(reason)
	s.logger.Warn().Str("reason", reason).Msg("Session terminated")
	s.notifier.Notify(note)
	s.navigator.RedirectToSignIn()
}

func (s *Session) teardown(ctx context.Context) bool {
	if !s.store.Teardown() {
		return false
	}

	s.mu.Lock()
	s.claims = nil
	s.mu.Unlock()

	if s.persister != nil {
		if err := s.persister.Clear(context.WithoutCancel(ctx)); err != nil {
			s.logger.Error().Err(err).Msg("Failed to clear persisted session")
		}
	}
	return true
}

func (s *Session) adoptClaims(accessToken string) {
	claims, err := ParseClaims(accessToken)
	if err != nil {
		s.logger.Debug().Err(err).Msg("Access token carries no readable claims")
		return
	}

	s.mu.Lock()
	s.claims = claims
	s.mu.Unlock()
}

func (s *Session) persist(ctx context.Context, creds Credentials) {
	if s.persister == nil {
		return
	}
	if err := s.persister.Save(ctx, creds); err != nil {
		s.logger.Error().Err(err).Msg("Failed to persist session")
	}
}

package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/CDeX-Labs/CDeX-Web-Client/internal/auth"
)

const sessionKeyFmt = "session:%s"

// SessionPersister keeps the credential pair across restarts under a
// per-profile key.
type SessionPersister struct {
	client *Client
	key    string
}

func NewSessionPersister(client *Client, profile string) *SessionPersister {
	if profile == "" {
		profile = "default"
	}
	return &SessionPersister{client: client, key: fmt.Sprintf(sessionKeyFmt, profile)}
}

func (p *SessionPersister) Save(ctx context.Context, creds auth.Credentials) error {
	data, err := json.Marshal(creds)
	if err != nil {
		return err
	}
	// The refresh token outlives the access token, so no expiry is set.
	if err := p.client.set(ctx, p.key, data, 0); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (p *SessionPersister) Load(ctx context.Context) (auth.Credentials, bool, error) {
	data, ok, err := p.client.get(ctx, p.key)
	if err != nil {
		return auth.Credentials{}, false, fmt.Errorf("failed to load session: %w", err)
	}
	if !ok {
		return auth.Credentials{}, false, nil
	}

	var creds auth.Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		p.client.logger.Warn().Err(err).Str("key", p.key).Msg("Discarding unreadable session")
		return auth.Credentials{}, false, nil
	}
	return creds, true, nil
}

func (p *SessionPersister) Clear(ctx context.Context) error {
	if err := p.client.del(ctx, p.key); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

package redis

import (
	"context"
	"time"
)

// DetailCache shares invitation detail lookups between client processes.
type DetailCache struct {
	client *Client
}

func NewDetailCache(client *Client) *DetailCache {
	return &DetailCache{client: client}
}

func (c *DetailCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return c.client.get(ctx, "detail:"+key)
}

func (c *DetailCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.client.set(ctx, "detail:"+key, value, ttl)
}

package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cooldown rate-limits an action per subject with a SET NX + TTL marker.
type Cooldown struct {
	client *redis.Client
	prefix string
	window time.Duration
}

func NewCooldown(client *redis.Client, prefix string, window time.Duration) *Cooldown {
	return &Cooldown{client: client, prefix: prefix, window: window}
}

// Try claims the cooldown slot for the subject. Returns false while a
// previous claim is still within the window. A nil client (degraded mode)
// always allows.
func (c *Cooldown) Try(ctx context.Context, subject string) (bool, error) {
	if c.client == nil {
		return true, nil
	}
	return c.client.SetNX(ctx, c.prefix+":"+subject, 1, c.window).Result()
}

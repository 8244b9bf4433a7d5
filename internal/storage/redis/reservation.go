package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// CredentialReserver serializes group-slot claims on the shared credential
// pool. The probe-then-join window would otherwise let concurrent setups
// race past a credential's capacity, so the claim is an atomic INCR
// compared against the limit, released with DECR when the join fails.
type CredentialReserver struct {
	client *redis.Client
	limit  int64
}

func NewCredentialReserver(client *redis.Client, limit int64) *CredentialReserver {
	return &CredentialReserver{client: client, limit: limit}
}

func (r *CredentialReserver) key(botUserID int64) string {
	return fmt.Sprintf("roblox:credential:%d:groups", botUserID)
}

// Reserve claims one group slot for the credential. seed is the observed
// group count from the upstream probe, used to initialize the counter the
// first time a credential is seen. Returns false when the credential is at
// capacity.
func (r *CredentialReserver) Reserve(ctx context.Context, botUserID int64, seed int64) (bool, error) {
	if r.client == nil {
		// Degraded single-instance mode: the probe count alone decides.
		return seed < r.limit, nil
	}

	key := r.key(botUserID)
	if err := r.client.SetNX(ctx, key, seed, 0).Err(); err != nil {
		return false, err
	}

	count, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return false, err
	}
	if count > r.limit {
		r.client.Decr(ctx, key)
		return false, nil
	}
	return true, nil
}

// Release returns a previously reserved slot after a failed join.
func (r *CredentialReserver) Release(ctx context.Context, botUserID int64) error {
	if r.client == nil {
		return nil
	}
	return r.client.Decr(ctx, r.key(botUserID)).Err()
}

package verification

import (
	"context"
	"errors"
	"time"
)

// ErrCodeInvalid covers unknown, expired and already-used codes alike.
// Callers never learn which; the distinction is not leaked.
var ErrCodeInvalid = errors.New("verification code is invalid or no longer exists")

type Repository interface {
	Create(ctx context.Context, code *Code) error
	// Redeem flips used=false to used=true in a single conditional atomic
	// update. Two concurrent redemptions of the same code succeed exactly
	// once; the loser gets ErrCodeInvalid.
	Redeem(ctx context.Context, code string, now time.Time) (*Code, error)
	// ActiveForUser returns the user's unused, unexpired code, if any.
	ActiveForUser(ctx context.Context, discordID string, now time.Time) (*Code, error)
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

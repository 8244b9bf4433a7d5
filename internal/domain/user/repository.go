package user

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrKeyNotFound        = errors.New("api key not found")
	ErrAlreadyBlacklisted = errors.New("user is already blacklisted")
	ErrNotBlacklisted     = errors.New("user is not blacklisted")
)

type Repository interface {
	FindByDiscordID(ctx context.Context, discordID string) (*User, error)
	// Upsert creates the record on first login and refreshes profile
	// fields plus LastLogin afterwards.
	Upsert(ctx context.Context, u *User) error

	// AddKey appends a key record to the user's embedded list.
	AddKey(ctx context.Context, discordID string, rec *APIKeyRecord) error
	// FindByKey resolves a raw key value to its owner and record,
	// considering only active keys. Returns ErrKeyNotFound on miss.
	FindByKey(ctx context.Context, key string) (*User, *APIKeyRecord, error)
	// KeyExists reports whether any user-embedded or legacy record holds
	// the raw key value, active or not.
	KeyExists(ctx context.Context, key string) (bool, error)
	// RecordKeyUsage atomically increments usageCount and stamps lastUsed.
	RecordKeyUsage(ctx context.Context, keyID uuid.UUID) error
	DeleteKey(ctx context.Context, discordID string, keyID uuid.UUID) error
	// RevokeAllKeys flips every key to inactive and returns the names of
	// the keys that were active immediately before the call.
	RevokeAllKeys(ctx context.Context, discordID string) ([]string, error)

	// SetBlacklisted toggles the flag. Fails with ErrAlreadyBlacklisted /
	// ErrNotBlacklisted when the flag is already in the requested state.
	SetBlacklisted(ctx context.Context, discordID string, blacklisted bool) error

	SetRobloxCookie(ctx context.Context, discordID string, cookie *RobloxCookie) error

	FindLegacyKey(ctx context.Context, key string) (*LegacyKey, error)
	CreateLegacyKey(ctx context.Context, rec *LegacyKey) error
	RecordLegacyKeyUsage(ctx context.Context, keyID uuid.UUID) error
}

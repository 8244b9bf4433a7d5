package user

import (
	"time"

	"github.com/google/uuid"
)

// User is a Discord-linked account record. Created on first OAuth login or
// on the first Discord interaction that needs one.
type User struct {
	DiscordID     string
	Username      string
	Discriminator string
	Avatar        string
	Email         string
	APIKeys       []APIKeyRecord
	IsBlacklisted bool
	BlacklistedAt *time.Time
	RobloxCookie  *RobloxCookie
	CreatedAt     time.Time
	LastLogin     time.Time
}

// APIKeyRecord is a bearer secret embedded in its owner's record.
// Possession of Key implies the holder's identity for API access.
type APIKeyRecord struct {
	ID         uuid.UUID
	Key        string
	Name       string
	CreatedAt  time.Time
	LastUsed   *time.Time
	UsageCount int64
	// IsActive is nil on records written before the flag existed. An
	// absent flag is treated as active; only an explicit false disables
	// the key.
	IsActive *bool
}

// Active reports whether the key may authorize requests.
func (k *APIKeyRecord) Active() bool {
	return k.IsActive == nil || *k.IsActive
}

// LegacyKey is a standalone record from the pre-migration apikeys
// collection. Checked before user-embedded keys during validation.
type LegacyKey struct {
	ID         uuid.UUID
	Key        string
	Name       string
	IsActive   bool
	CreatedAt  time.Time
	LastUsed   *time.Time
	UsageCount int64
}

// RobloxCookie is an optional per-user Roblox session credential managed
// from the dashboard.
type RobloxCookie struct {
	Value           string
	UpdatedAt       time.Time
	LastRegenerated time.Time
}

const KeyByteLength = 32

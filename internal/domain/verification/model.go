package verification

import "time"

// Code is a single-use, time-limited token linking a Discord identity to
// role assignment. It transitions used=false to used=true exactly once.
type Code struct {
	Code      string
	DiscordID string
	Username  string
	CreatedAt time.Time
	ExpiresAt time.Time
	Used      bool
	UsedAt    *time.Time
}

// TTL is the validity window from issuance.
const TTL = 30 * time.Minute

package dto

import "time"

type MeResponse struct {
	DiscordID     string `json:"discord_id"`
	Username      string `json:"username"`
	Avatar        string `json:"avatar,omitempty"`
	IsBlacklisted bool   `json:"is_blacklisted"`
	// Ephemeral is true when the database is unreachable and the session
	// is running without a persisted record.
	Ephemeral bool             `json:"ephemeral"`
	APIKeys   []APIKeyResponse `json:"api_keys,omitempty"`
}

type VerificationCodeResponse struct {
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expires_at"`
}

type UpdateCookieRequest struct {
	Cookie string `json:"cookie" binding:"required"`
}

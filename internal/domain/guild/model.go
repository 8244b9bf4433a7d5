package guild

import "time"

// Verification tracks a guild owner's Roblox-ownership challenge. States:
// issued (VerificationText set) -> awaiting check (Roblox user recorded) ->
// verified.
type Verification struct {
	UserID           string
	VerificationText string
	RobloxUserID     int64
	RobloxUsername   string
	Verified         bool
	AwaitingCheck    bool
	Timestamp        time.Time
}

// Setup records the one-time group auto-join result for a guild. Its
// presence blocks re-setup.
type Setup struct {
	GroupID     int64
	BotUserID   int64
	BotUsername string
	Cookie      string
	CreatedAt   time.Time
}

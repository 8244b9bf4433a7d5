// Package identity models who a dashboard request is acting as. When the
// database is reachable the identity carries the persisted user record;
// when it is not, logins still work with an ephemeral identity so the
// dashboard can render and report features as unavailable.
package identity

import "github.com/fugitivebreach/arrow-api/internal/domain/user"

type Kind int

const (
	KindPersisted Kind = iota
	KindEphemeral
)

type Identity struct {
	kind      Kind
	user      *user.User
	discordID string
	username  string
}

func Persisted(u *user.User) Identity {
	return Identity{kind: KindPersisted, user: u, discordID: u.DiscordID, username: u.Username}
}

func Ephemeral(discordID, username string) Identity {
	return Identity{kind: KindEphemeral, discordID: discordID, username: username}
}

func (i Identity) Kind() Kind        { return i.kind }
func (i Identity) DiscordID() string { return i.discordID }
func (i Identity) Username() string  { return i.username }

// User returns the persisted record, or nil for ephemeral identities.
// Consumers branch on Kind rather than probing for nil.
func (i Identity) User() *user.User { return i.user }

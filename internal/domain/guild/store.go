package guild

import (
	"context"
	"errors"
)

var (
	ErrVerificationNotFound = errors.New("no verification session for guild")
	ErrSetupExists          = errors.New("guild is already set up")
	ErrSetupNotFound        = errors.New("no setup record for guild")
)

// Store holds per-guild verification and setup state. Single-instance
// deployments may use the in-process implementation; multi-instance
// deployments need a shared store with atomic conditional writes, which is
// why Setup creation is a conditional insert rather than get-then-put.
type Store interface {
	GetVerification(ctx context.Context, guildID string) (*Verification, error)
	// PutVerification overwrites any existing record for the guild. One
	// active flow per guild; only the server owner may initiate.
	PutVerification(ctx context.Context, guildID string, v *Verification) error
	DeleteVerification(ctx context.Context, guildID string) error

	GetSetup(ctx context.Context, guildID string) (*Setup, error)
	// CreateSetup fails with ErrSetupExists if the guild already has a
	// record, without mutating it.
	CreateSetup(ctx context.Context, guildID string, s *Setup) error
}

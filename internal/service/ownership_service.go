package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fugitivebreach/arrow-api/internal/domain/guild"
	"github.com/fugitivebreach/arrow-api/internal/ierr"
	"github.com/fugitivebreach/arrow-api/internal/roblox"
)

var (
	// ErrSessionExpired means there is no live verification flow for the
	// guild and user.
	ErrSessionExpired = errors.New("verification session expired or not found")
	// ErrDescriptionMismatch means the profile description does not
	// contain the challenge text.
	ErrDescriptionMismatch = errors.New("profile description does not contain the verification text")
)

// UserResolver is the slice of the Roblox client the ownership flow needs.
type UserResolver interface {
	UserByUsername(ctx context.Context, username string) (*roblox.UserProfile, error)
	UserProfile(ctx context.Context, userID int64) (*roblox.UserProfile, error)
}

// OwnershipService drives the per-guild Roblox ownership challenge:
// Issued -> AwaitingCheck -> Verified.
type OwnershipService struct {
	store    guild.Store
	resolver UserResolver
	logger   *zap.Logger
}

func NewOwnershipService(store guild.Store, resolver UserResolver, logger *zap.Logger) *OwnershipService {
	return &OwnershipService{
		store:    store,
		resolver: resolver,
		logger:   logger.Named("OwnershipService"),
	}
}

// Start issues a fresh challenge, overwriting any previous flow for the
// guild. Only the server owner initiates, so a single active flow per
// guild is enough.
func (s *OwnershipService) Start(ctx context.Context, guildID, userID string) (string, error) {
	words, err := randomWords(challengeWords, challengeWordCount)
	if err != nil {
		return "", fmt.Errorf("%w: picking challenge words: %v", ierr.ErrInternalServer, err)
	}
	text := strings.Join(words, " ")

	v := &guild.Verification{
		UserID:           userID,
		VerificationText: text,
		Timestamp:        time.Now().UTC(),
	}
	if err := s.store.PutVerification(ctx, guildID, v); err != nil {
		return "", err
	}

	s.logger.Info("Ownership verification started",
		zap.String("guild_id", guildID), zap.String("user_id", userID))
	return text, nil
}

// SubmitUsername resolves the claimed Roblox account and moves the flow to
// AwaitingCheck.
func (s *OwnershipService) SubmitUsername(ctx context.Context, guildID, userID, robloxUsername string) (*roblox.UserProfile, error) {
	v, err := s.session(ctx, guildID, userID)
	if err != nil {
		return nil, err
	}

	profile, err := s.resolver.UserByUsername(ctx, robloxUsername)
	if err != nil {
		return nil, err
	}

	v.RobloxUserID = profile.ID
	v.RobloxUsername = profile.Name
	v.AwaitingCheck = true
	if err := s.store.PutVerification(ctx, guildID, v); err != nil {
		return nil, err
	}

	s.logger.Info("Ownership verification awaiting description check",
		zap.String("guild_id", guildID), zap.Int64("roblox_user_id", profile.ID))
	return profile, nil
}

// Check fetches the claimed profile and requires its description to contain
// the exact challenge text as a case-sensitive substring. Idempotent once
// verified.
func (s *OwnershipService) Check(ctx context.Context, guildID, userID string) (*guild.Verification, error) {
	v, err := s.session(ctx, guildID, userID)
	if err != nil {
		return nil, err
	}
	if v.Verified {
		return v, nil
	}
	if !v.AwaitingCheck {
		return nil, ErrSessionExpired
	}

	profile, err := s.resolver.UserProfile(ctx, v.RobloxUserID)
	if err != nil {
		return nil, err
	}

	if !strings.Contains(profile.Description, v.VerificationText) {
		return nil, ErrDescriptionMismatch
	}

	v.Verified = true
	v.AwaitingCheck = false
	if err := s.store.PutVerification(ctx, guildID, v); err != nil {
		return nil, err
	}

	s.logger.Info("Ownership verified",
		zap.String("guild_id", guildID), zap.Int64("roblox_user_id", v.RobloxUserID))
	return v, nil
}

func (s *OwnershipService) session(ctx context.Context, guildID, userID string) (*guild.Verification, error) {
	v, err := s.store.GetVerification(ctx, guildID)
	if err != nil {
		if errors.Is(err, guild.ErrVerificationNotFound) {
			return nil, ErrSessionExpired
		}
		return nil, err
	}
	if v.UserID != userID {
		return nil, ErrSessionExpired
	}
	return v, nil
}

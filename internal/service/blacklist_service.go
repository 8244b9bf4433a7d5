package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/fugitivebreach/arrow-api/internal/domain/user"
)

type BlacklistService struct {
	repo   user.Repository
	keys   *KeyService
	logger *zap.Logger
}

func NewBlacklistService(repo user.Repository, keys *KeyService, logger *zap.Logger) *BlacklistService {
	return &BlacklistService{
		repo:   repo,
		keys:   keys,
		logger: logger.Named("BlacklistService"),
	}
}

// Blacklist flags the user and revokes every key they own. The returned
// names are exactly the keys that were active immediately before the call,
// for operator-facing confirmation.
func (s *BlacklistService) Blacklist(ctx context.Context, discordID string) ([]string, error) {
	if err := s.repo.SetBlacklisted(ctx, discordID, true); err != nil {
		return nil, err
	}

	disabled, err := s.keys.RevokeAll(ctx, discordID)
	if err != nil {
		// The flag is already set; a failed revocation still leaves the
		// user locked out because validation checks the flag directly.
		s.logger.Error("Blacklisted user but key revocation failed",
			zap.String("discord_id", discordID), zap.Error(err))
		return nil, err
	}

	s.logger.Info("User blacklisted",
		zap.String("discord_id", discordID),
		zap.Strings("disabled_keys", disabled))
	return disabled, nil
}

// Unblacklist clears the flag. Previously revoked keys stay revoked;
// re-activation is a separate, deliberate action.
func (s *BlacklistService) Unblacklist(ctx context.Context, discordID string) error {
	if err := s.repo.SetBlacklisted(ctx, discordID, false); err != nil {
		return err
	}
	s.logger.Info("User removed from blacklist", zap.String("discord_id", discordID))
	return nil
}

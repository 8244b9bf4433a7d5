package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fugitivebreach/arrow-api/internal/domain/verification"
	"github.com/fugitivebreach/arrow-api/internal/ierr"
)

// LinkingService drives the account-linking state machine: NoCode ->
// CodeIssued -> Redeemed.
type LinkingService struct {
	repo   verification.Repository
	logger *zap.Logger
}

func NewLinkingService(repo verification.Repository, logger *zap.Logger) *LinkingService {
	return &LinkingService{
		repo:   repo,
		logger: logger.Named("LinkingService"),
	}
}

// IssueCode creates a formatted single-use code with a fixed 30-minute TTL.
func (s *LinkingService) IssueCode(ctx context.Context, discordID, username string) (*verification.Code, error) {
	code, err := randomLinkCode()
	if err != nil {
		return nil, fmt.Errorf("%w: generating linking code: %v", ierr.ErrInternalServer, err)
	}

	now := time.Now().UTC()
	rec := &verification.Code{
		Code:      code,
		DiscordID: discordID,
		Username:  username,
		CreatedAt: now,
		ExpiresAt: now.Add(verification.TTL),
	}
	if err := s.repo.Create(ctx, rec); err != nil {
		return nil, err
	}

	s.logger.Info("Verification code issued", zap.String("discord_id", discordID))
	return rec, nil
}

// Redeem consumes the code and returns the linked Discord identity. Role
// assignment is the caller's side effect; a downstream failure does not
// roll back the consumed code.
func (s *LinkingService) Redeem(ctx context.Context, code string) (*verification.Code, error) {
	rec, err := s.repo.Redeem(ctx, code, time.Now().UTC())
	if err != nil {
		if errors.Is(err, verification.ErrCodeInvalid) {
			return nil, err
		}
		s.logger.Error("Code redemption hit storage error", zap.Error(err))
		return nil, err
	}

	s.logger.Info("Verification code redeemed", zap.String("discord_id", rec.DiscordID))
	return rec, nil
}

// ActiveCode returns the user's current unexpired, unused code, if any.
func (s *LinkingService) ActiveCode(ctx context.Context, discordID string) (*verification.Code, error) {
	return s.repo.ActiveForUser(ctx, discordID, time.Now().UTC())
}

// PurgeExpired removes codes past their TTL. Run periodically.
func (s *LinkingService) PurgeExpired(ctx context.Context) (int64, error) {
	purged, err := s.repo.PurgeExpired(ctx, time.Now().UTC())
	if err != nil {
		return 0, err
	}
	if purged > 0 {
		s.logger.Info("Purged expired verification codes", zap.Int64("count", purged))
	}
	return purged, nil
}

package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/fugitivebreach/arrow-api/internal/domain/guild"
	"github.com/fugitivebreach/arrow-api/internal/roblox"
)

var (
	// ErrBotsFull means no credential in the pool is both valid and under
	// its group capacity.
	ErrBotsFull = errors.New("no bot credential has group capacity left")
	// ErrNotVerified means the caller has no Verified ownership record
	// for the guild.
	ErrNotVerified = errors.New("guild owner has not completed ownership verification")
)

// GroupCapacity is the per-credential soft limit on joined groups.
const GroupCapacity = 100

// GroupJoiner is the slice of the Roblox client the setup flow needs.
type GroupJoiner interface {
	AuthenticatedUser(ctx context.Context, cookie string) (*roblox.AuthenticatedUser, error)
	GroupCount(ctx context.Context, cookie string, userID int64) (int, error)
	JoinGroup(ctx context.Context, cookie string, groupID int64) error
}

// Reserver claims group slots on the shared credential pool atomically.
type Reserver interface {
	Reserve(ctx context.Context, botUserID int64, seed int64) (bool, error)
	Release(ctx context.Context, botUserID int64) error
}

// SetupService performs the one-time group auto-join for a guild.
type SetupService struct {
	store    guild.Store
	joiner   GroupJoiner
	reserver Reserver
	cookies  []string
	logger   *zap.Logger
}

func NewSetupService(store guild.Store, joiner GroupJoiner, reserver Reserver, cookies []string, logger *zap.Logger) *SetupService {
	return &SetupService{
		store:    store,
		joiner:   joiner,
		reserver: reserver,
		cookies:  cookies,
		logger:   logger.Named("SetupService"),
	}
}

// Setup joins the target group with a credential from the pool and persists
// the result. Preconditions: the caller owns the guild (enforced by the
// bot layer) and holds a Verified ownership record. Nothing is persisted on
// failure, so the guild may retry.
func (s *SetupService) Setup(ctx context.Context, guildID, userID string, groupID int64) (*guild.Setup, error) {
	v, err := s.store.GetVerification(ctx, guildID)
	if err != nil {
		if errors.Is(err, guild.ErrVerificationNotFound) {
			return nil, ErrNotVerified
		}
		return nil, err
	}
	if !v.Verified || v.UserID != userID {
		return nil, ErrNotVerified
	}

	if _, err := s.store.GetSetup(ctx, guildID); err == nil {
		return nil, guild.ErrSetupExists
	} else if !errors.Is(err, guild.ErrSetupNotFound) {
		return nil, err
	}

	cookie, bot, err := s.selectCredential(ctx)
	if err != nil {
		return nil, err
	}

	joinErr := s.joiner.JoinGroup(ctx, cookie, groupID)
	if joinErr != nil && !errors.Is(joinErr, roblox.ErrAlreadyMember) {
		if relErr := s.reserver.Release(ctx, bot.ID); relErr != nil {
			s.logger.Warn("Failed to release credential reservation",
				zap.Int64("bot_user_id", bot.ID), zap.Error(relErr))
		}
		s.logger.Warn("Group join failed",
			zap.String("guild_id", guildID),
			zap.Int64("group_id", groupID),
			zap.Error(joinErr))
		return nil, joinErr
	}

	rec := &guild.Setup{
		GroupID:     groupID,
		BotUserID:   bot.ID,
		BotUsername: bot.Name,
		Cookie:      cookie,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.store.CreateSetup(ctx, guildID, rec); err != nil {
		// Lost a race with a concurrent setup; give the slot back.
		if relErr := s.reserver.Release(ctx, bot.ID); relErr != nil {
			s.logger.Warn("Failed to release credential reservation",
				zap.Int64("bot_user_id", bot.ID), zap.Error(relErr))
		}
		return nil, err
	}

	s.logger.Info("Guild setup complete",
		zap.String("guild_id", guildID),
		zap.Int64("group_id", groupID),
		zap.String("bot_username", bot.Name))
	return rec, nil
}

// selectCredential probes the pool in order and returns the first
// credential that is valid and has a reservable group slot.
func (s *SetupService) selectCredential(ctx context.Context) (string, *roblox.AuthenticatedUser, error) {
	for _, cookie := range s.cookies {
		bot, err := s.joiner.AuthenticatedUser(ctx, cookie)
		if err != nil {
			s.logger.Debug("Skipping invalid credential", zap.Error(err))
			continue
		}

		count, err := s.joiner.GroupCount(ctx, cookie, bot.ID)
		if err != nil {
			s.logger.Debug("Skipping credential, group count probe failed",
				zap.Int64("bot_user_id", bot.ID), zap.Error(err))
			continue
		}

		ok, err := s.reserver.Reserve(ctx, bot.ID, int64(count))
		if err != nil {
			return "", nil, err
		}
		if !ok {
			s.logger.Debug("Skipping credential at group capacity",
				zap.Int64("bot_user_id", bot.ID), zap.Int("groups", count))
			continue
		}
		return cookie, bot, nil
	}
	return "", nil, ErrBotsFull
}

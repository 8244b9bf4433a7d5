package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/fugitivebreach/arrow-api/internal/domain/guild"
)

// GuildStore is the shared-store implementation of guild.Store for
// multi-instance deployments. Setup creation relies on the primary key for
// its at-most-once guarantee.
type GuildStore struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewGuildStore(db *pgxpool.Pool, logger *zap.Logger) *GuildStore {
	return &GuildStore{
		db:     db,
		logger: logger.Named("GuildStore"),
	}
}

var _ guild.Store = (*GuildStore)(nil)

func (s *GuildStore) GetVerification(ctx context.Context, guildID string) (*guild.Verification, error) {
	query := `
		SELECT user_id, verification_text, roblox_user_id, roblox_username, verified, awaiting_check, ts
		FROM server_verifications
		WHERE guild_id = $1
	`
	row := s.db.QueryRow(ctx, query, guildID)

	var v guild.Verification
	err := row.Scan(&v.UserID, &v.VerificationText, &v.RobloxUserID, &v.RobloxUsername, &v.Verified, &v.AwaitingCheck, &v.Timestamp)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, guild.ErrVerificationNotFound
		}
		s.logger.Error("Failed to find server verification", zap.String("guild_id", guildID), zap.Error(err))
		return nil, storageErr("finding server verification", err)
	}
	return &v, nil
}

func (s *GuildStore) PutVerification(ctx context.Context, guildID string, v *guild.Verification) error {
	query := `
		INSERT INTO server_verifications (guild_id, user_id, verification_text, roblox_user_id, roblox_username, verified, awaiting_check, ts)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (guild_id) DO UPDATE SET
			user_id = EXCLUDED.user_id,
			verification_text = EXCLUDED.verification_text,
			roblox_user_id = EXCLUDED.roblox_user_id,
			roblox_username = EXCLUDED.roblox_username,
			verified = EXCLUDED.verified,
			awaiting_check = EXCLUDED.awaiting_check,
			ts = EXCLUDED.ts
	`
	_, err := s.db.Exec(ctx, query, guildID, v.UserID, v.VerificationText, v.RobloxUserID, v.RobloxUsername, v.Verified, v.AwaitingCheck, v.Timestamp)
	if err != nil {
		s.logger.Error("Failed to store server verification", zap.String("guild_id", guildID), zap.Error(err))
		return storageErr("storing server verification", err)
	}
	return nil
}

func (s *GuildStore) DeleteVerification(ctx context.Context, guildID string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM server_verifications WHERE guild_id = $1`, guildID)
	if err != nil {
		return storageErr("deleting server verification", err)
	}
	return nil
}

func (s *GuildStore) GetSetup(ctx context.Context, guildID string) (*guild.Setup, error) {
	query := `
		SELECT group_id, bot_user_id, bot_username, cookie, created_at
		FROM server_setups
		WHERE guild_id = $1
	`
	row := s.db.QueryRow(ctx, query, guildID)

	var rec guild.Setup
	err := row.Scan(&rec.GroupID, &rec.BotUserID, &rec.BotUsername, &rec.Cookie, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, guild.ErrSetupNotFound
		}
		s.logger.Error("Failed to find server setup", zap.String("guild_id", guildID), zap.Error(err))
		return nil, storageErr("finding server setup", err)
	}
	return &rec, nil
}

func (s *GuildStore) CreateSetup(ctx context.Context, guildID string, rec *guild.Setup) error {
	// Conditional insert: an existing record stays untouched and the
	// caller gets ErrSetupExists.
	query := `
		INSERT INTO server_setups (guild_id, group_id, bot_user_id, bot_username, cookie)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (guild_id) DO NOTHING
	`
	cmdTag, err := s.db.Exec(ctx, query, guildID, rec.GroupID, rec.BotUserID, rec.BotUsername, rec.Cookie)
	if err != nil {
		s.logger.Error("Failed to create server setup", zap.String("guild_id", guildID), zap.Error(err))
		return storageErr("creating server setup", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return guild.ErrSetupExists
	}
	return nil
}

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/fugitivebreach/arrow-api/internal/domain/user"
	"github.com/fugitivebreach/arrow-api/internal/ierr"
)

type UserRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewUserRepository(db *pgxpool.Pool, logger *zap.Logger) *UserRepository {
	return &UserRepository{
		db:     db,
		logger: logger.Named("UserRepository"),
	}
}

var _ user.Repository = (*UserRepository)(nil)

func (r *UserRepository) FindByDiscordID(ctx context.Context, discordID string) (*user.User, error) {
	query := `
		SELECT discord_id, username, discriminator, avatar, email,
		       is_blacklisted, blacklisted_at,
		       roblox_cookie_value, roblox_cookie_updated_at, roblox_cookie_last_regenerated,
		       created_at, last_login
		FROM users
		WHERE discord_id = $1
	`
	row := r.db.QueryRow(ctx, query, discordID)

	var u user.User
	var blacklistedAt sql.NullTime
	var cookieValue sql.NullString
	var cookieUpdated, cookieRegenerated sql.NullTime

	err := row.Scan(
		&u.DiscordID,
		&u.Username,
		&u.Discriminator,
		&u.Avatar,
		&u.Email,
		&u.IsBlacklisted,
		&blacklistedAt,
		&cookieValue,
		&cookieUpdated,
		&cookieRegenerated,
		&u.CreatedAt,
		&u.LastLogin,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, user.ErrUserNotFound
		}
		r.logger.Error("Failed to find user", zap.String("discord_id", discordID), zap.Error(err))
		return nil, storageErr("finding user", err)
	}

	if blacklistedAt.Valid {
		u.BlacklistedAt = &blacklistedAt.Time
	}
	if cookieValue.Valid {
		u.RobloxCookie = &user.RobloxCookie{
			Value:           cookieValue.String,
			UpdatedAt:       cookieUpdated.Time,
			LastRegenerated: cookieRegenerated.Time,
		}
	}

	if err := r.loadKeys(ctx, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) loadKeys(ctx context.Context, u *user.User) error {
	query := `
		SELECT id, key, name, created_at, last_used, usage_count, is_active
		FROM api_keys
		WHERE user_discord_id = $1
		ORDER BY created_at
	`
	rows, err := r.db.Query(ctx, query, u.DiscordID)
	if err != nil {
		r.logger.Error("Failed to load api keys", zap.String("discord_id", u.DiscordID), zap.Error(err))
		return storageErr("loading api keys", err)
	}
	defer rows.Close()

	for rows.Next() {
		var rec user.APIKeyRecord
		var lastUsed sql.NullTime
		var isActive sql.NullBool
		if err := rows.Scan(&rec.ID, &rec.Key, &rec.Name, &rec.CreatedAt, &lastUsed, &rec.UsageCount, &isActive); err != nil {
			return storageErr("scanning api key", err)
		}
		if lastUsed.Valid {
			rec.LastUsed = &lastUsed.Time
		}
		if isActive.Valid {
			rec.IsActive = &isActive.Bool
		}
		u.APIKeys = append(u.APIKeys, rec)
	}
	return rows.Err()
}

func (r *UserRepository) Upsert(ctx context.Context, u *user.User) error {
	query := `
		INSERT INTO users (discord_id, username, discriminator, avatar, email)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (discord_id) DO UPDATE SET
			username = EXCLUDED.username,
			discriminator = EXCLUDED.discriminator,
			avatar = EXCLUDED.avatar,
			email = EXCLUDED.email,
			last_login = now()
	`
	_, err := r.db.Exec(ctx, query, u.DiscordID, u.Username, u.Discriminator, u.Avatar, u.Email)
	if err != nil {
		r.logger.Error("Failed to upsert user", zap.String("discord_id", u.DiscordID), zap.Error(err))
		return storageErr("upserting user", err)
	}
	return nil
}

func (r *UserRepository) AddKey(ctx context.Context, discordID string, rec *user.APIKeyRecord) error {
	query := `
		INSERT INTO api_keys (id, user_discord_id, key, name, created_at, usage_count, is_active)
		VALUES ($1, $2, $3, $4, $5, 0, TRUE)
	`
	_, err := r.db.Exec(ctx, query, rec.ID, discordID, rec.Key, rec.Name, rec.CreatedAt)
	if err != nil {
		r.logger.Error("Failed to insert api key", zap.String("discord_id", discordID), zap.Error(err))
		return storageErr("inserting api key", err)
	}
	return nil
}

func (r *UserRepository) FindByKey(ctx context.Context, key string) (*user.User, *user.APIKeyRecord, error) {
	// A key with is_active NULL predates the flag and counts as active.
	query := `
		SELECT id, user_discord_id, name, created_at, last_used, usage_count, is_active
		FROM api_keys
		WHERE key = $1 AND is_active IS DISTINCT FROM FALSE
	`
	row := r.db.QueryRow(ctx, query, key)

	var rec user.APIKeyRecord
	var ownerID string
	var lastUsed sql.NullTime
	var isActive sql.NullBool
	err := row.Scan(&rec.ID, &ownerID, &rec.Name, &rec.CreatedAt, &lastUsed, &rec.UsageCount, &isActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, user.ErrKeyNotFound
		}
		r.logger.Error("Failed to find api key", zap.Error(err))
		return nil, nil, storageErr("finding api key", err)
	}
	rec.Key = key
	if lastUsed.Valid {
		rec.LastUsed = &lastUsed.Time
	}
	if isActive.Valid {
		rec.IsActive = &isActive.Bool
	}

	owner, err := r.FindByDiscordID(ctx, ownerID)
	if err != nil {
		return nil, nil, err
	}
	return owner, &rec, nil
}

func (r *UserRepository) KeyExists(ctx context.Context, key string) (bool, error) {
	query := `
		SELECT EXISTS (SELECT 1 FROM api_keys WHERE key = $1)
		    OR EXISTS (SELECT 1 FROM legacy_api_keys WHERE key = $1)
	`
	var exists bool
	if err := r.db.QueryRow(ctx, query, key).Scan(&exists); err != nil {
		r.logger.Error("Failed to check api key existence", zap.Error(err))
		return false, storageErr("checking api key existence", err)
	}
	return exists, nil
}

func (r *UserRepository) RecordKeyUsage(ctx context.Context, keyID uuid.UUID) error {
	query := `UPDATE api_keys SET usage_count = usage_count + 1, last_used = $1 WHERE id = $2`
	cmdTag, err := r.db.Exec(ctx, query, time.Now().UTC(), keyID)
	if err != nil {
		r.logger.Error("Failed to record api key usage", zap.String("key_id", keyID.String()), zap.Error(err))
		return storageErr("recording api key usage", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return user.ErrKeyNotFound
	}
	return nil
}

func (r *UserRepository) DeleteKey(ctx context.Context, discordID string, keyID uuid.UUID) error {
	query := `DELETE FROM api_keys WHERE user_discord_id = $1 AND id = $2`
	cmdTag, err := r.db.Exec(ctx, query, discordID, keyID)
	if err != nil {
		r.logger.Error("Failed to delete api key", zap.String("key_id", keyID.String()), zap.Error(err))
		return storageErr("deleting api key", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return user.ErrKeyNotFound
	}
	return nil
}

func (r *UserRepository) RevokeAllKeys(ctx context.Context, discordID string) ([]string, error) {
	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE discord_id = $1)`, discordID).Scan(&exists); err != nil {
		return nil, storageErr("checking user existence", err)
	}
	if !exists {
		return nil, user.ErrUserNotFound
	}

	// Only keys active immediately before the call are reported back.
	query := `
		UPDATE api_keys
		SET is_active = FALSE
		WHERE user_discord_id = $1 AND is_active IS DISTINCT FROM FALSE
		RETURNING name
	`
	rows, err := r.db.Query(ctx, query, discordID)
	if err != nil {
		r.logger.Error("Failed to revoke api keys", zap.String("discord_id", discordID), zap.Error(err))
		return nil, storageErr("revoking api keys", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, storageErr("scanning revoked key name", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (r *UserRepository) SetBlacklisted(ctx context.Context, discordID string, blacklisted bool) error {
	var query string
	if blacklisted {
		query = `
			UPDATE users SET is_blacklisted = TRUE, blacklisted_at = now()
			WHERE discord_id = $1 AND is_blacklisted = FALSE
		`
	} else {
		query = `
			UPDATE users SET is_blacklisted = FALSE, blacklisted_at = NULL
			WHERE discord_id = $1 AND is_blacklisted = TRUE
		`
	}

	cmdTag, err := r.db.Exec(ctx, query, discordID)
	if err != nil {
		r.logger.Error("Failed to update blacklist flag", zap.String("discord_id", discordID), zap.Error(err))
		return storageErr("updating blacklist flag", err)
	}
	if cmdTag.RowsAffected() > 0 {
		return nil
	}

	// No row changed: either the user is missing or the flag was already
	// in the requested state.
	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE discord_id = $1)`, discordID).Scan(&exists); err != nil {
		return storageErr("checking user existence", err)
	}
	if !exists {
		return user.ErrUserNotFound
	}
	if blacklisted {
		return user.ErrAlreadyBlacklisted
	}
	return user.ErrNotBlacklisted
}

func (r *UserRepository) SetRobloxCookie(ctx context.Context, discordID string, cookie *user.RobloxCookie) error {
	query := `
		UPDATE users
		SET roblox_cookie_value = $2,
		    roblox_cookie_updated_at = $3,
		    roblox_cookie_last_regenerated = $4
		WHERE discord_id = $1
	`
	cmdTag, err := r.db.Exec(ctx, query, discordID, cookie.Value, cookie.UpdatedAt, cookie.LastRegenerated)
	if err != nil {
		r.logger.Error("Failed to update roblox cookie", zap.String("discord_id", discordID), zap.Error(err))
		return storageErr("updating roblox cookie", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return user.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) FindLegacyKey(ctx context.Context, key string) (*user.LegacyKey, error) {
	query := `
		SELECT id, key, name, is_active, created_at, last_used, usage_count
		FROM legacy_api_keys
		WHERE key = $1 AND is_active = TRUE
	`
	row := r.db.QueryRow(ctx, query, key)

	var rec user.LegacyKey
	var lastUsed sql.NullTime
	err := row.Scan(&rec.ID, &rec.Key, &rec.Name, &rec.IsActive, &rec.CreatedAt, &lastUsed, &rec.UsageCount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, user.ErrKeyNotFound
		}
		r.logger.Error("Failed to find legacy api key", zap.Error(err))
		return nil, storageErr("finding legacy api key", err)
	}
	if lastUsed.Valid {
		rec.LastUsed = &lastUsed.Time
	}
	return &rec, nil
}

func (r *UserRepository) CreateLegacyKey(ctx context.Context, rec *user.LegacyKey) error {
	query := `
		INSERT INTO legacy_api_keys (id, key, name, is_active, created_at, usage_count)
		VALUES ($1, $2, $3, $4, $5, 0)
	`
	_, err := r.db.Exec(ctx, query, rec.ID, rec.Key, rec.Name, rec.IsActive, rec.CreatedAt)
	if err != nil {
		r.logger.Error("Failed to insert legacy api key", zap.Error(err))
		return storageErr("inserting legacy api key", err)
	}
	return nil
}

func (r *UserRepository) RecordLegacyKeyUsage(ctx context.Context, keyID uuid.UUID) error {
	query := `UPDATE legacy_api_keys SET usage_count = usage_count + 1, last_used = $1 WHERE id = $2`
	cmdTag, err := r.db.Exec(ctx, query, time.Now().UTC(), keyID)
	if err != nil {
		return storageErr("recording legacy key usage", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return user.ErrKeyNotFound
	}
	return nil
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ierr.ErrStorageUnavailable, op, err)
}

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/fugitivebreach/arrow-api/internal/domain/verification"
)

type VerificationRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewVerificationRepository(db *pgxpool.Pool, logger *zap.Logger) *VerificationRepository {
	return &VerificationRepository{
		db:     db,
		logger: logger.Named("VerificationRepository"),
	}
}

var _ verification.Repository = (*VerificationRepository)(nil)

func (r *VerificationRepository) Create(ctx context.Context, code *verification.Code) error {
	query := `
		INSERT INTO verification_codes (code, discord_id, username, created_at, expires_at, used)
		VALUES ($1, $2, $3, $4, $5, FALSE)
	`
	_, err := r.db.Exec(ctx, query, code.Code, code.DiscordID, code.Username, code.CreatedAt, code.ExpiresAt)
	if err != nil {
		r.logger.Error("Failed to insert verification code", zap.Error(err))
		return storageErr("inserting verification code", err)
	}
	return nil
}

// Redeem is a single conditional update: the WHERE clause rejects used and
// expired codes, so two concurrent redemptions cannot both win.
func (r *VerificationRepository) Redeem(ctx context.Context, code string, now time.Time) (*verification.Code, error) {
	query := `
		UPDATE verification_codes
		SET used = TRUE, used_at = $2
		WHERE code = $1 AND used = FALSE AND expires_at > $2
		RETURNING code, discord_id, username, created_at, expires_at, used, used_at
	`
	row := r.db.QueryRow(ctx, query, code, now)

	var rec verification.Code
	var usedAt sql.NullTime
	err := row.Scan(&rec.Code, &rec.DiscordID, &rec.Username, &rec.CreatedAt, &rec.ExpiresAt, &rec.Used, &usedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, verification.ErrCodeInvalid
		}
		r.logger.Error("Failed to redeem verification code", zap.Error(err))
		return nil, storageErr("redeeming verification code", err)
	}
	if usedAt.Valid {
		rec.UsedAt = &usedAt.Time
	}
	return &rec, nil
}

func (r *VerificationRepository) ActiveForUser(ctx context.Context, discordID string, now time.Time) (*verification.Code, error) {
	query := `
		SELECT code, discord_id, username, created_at, expires_at, used, used_at
		FROM verification_codes
		WHERE discord_id = $1 AND used = FALSE AND expires_at > $2
		ORDER BY created_at DESC
		LIMIT 1
	`
	row := r.db.QueryRow(ctx, query, discordID, now)

	var rec verification.Code
	var usedAt sql.NullTime
	err := row.Scan(&rec.Code, &rec.DiscordID, &rec.Username, &rec.CreatedAt, &rec.ExpiresAt, &rec.Used, &usedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, verification.ErrCodeInvalid
		}
		return nil, storageErr("finding active verification code", err)
	}
	if usedAt.Valid {
		rec.UsedAt = &usedAt.Time
	}
	return &rec, nil
}

func (r *VerificationRepository) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	cmdTag, err := r.db.Exec(ctx, `DELETE FROM verification_codes WHERE expires_at < $1`, now)
	if err != nil {
		r.logger.Error("Failed to purge expired verification codes", zap.Error(err))
		return 0, storageErr("purging expired verification codes", err)
	}
	return cmdTag.RowsAffected(), nil
}

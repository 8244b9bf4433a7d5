package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fugitivebreach/arrow-api/internal/domain/user"
	"github.com/fugitivebreach/arrow-api/internal/ierr"
)

// keyGenerationAttempts bounds the uniqueness-check retry loop. The key
// space makes a collision essentially theoretical, but the store is still
// consulted before a key is accepted.
const keyGenerationAttempts = 5

// KeyIdentity is the outcome of a successful validation: who the key
// belongs to and which record matched. Legacy standalone keys have no
// owner record.
type KeyIdentity struct {
	Owner   *user.User
	Record  *user.APIKeyRecord
	KeyName string
	Legacy  bool
}

type KeyService struct {
	repo   user.Repository
	logger *zap.Logger
}

func NewKeyService(repo user.Repository, logger *zap.Logger) *KeyService {
	return &KeyService{
		repo:   repo,
		logger: logger.Named("KeyService"),
	}
}

// Generate mints a new bearer key for the user, creating the user record
// on first contact. The raw key is returned exactly once.
func (s *KeyService) Generate(ctx context.Context, discordID, username, name string) (string, *user.APIKeyRecord, error) {
	if name == "" {
		name = "Unnamed Key"
	}

	if _, err := s.repo.FindByDiscordID(ctx, discordID); err != nil {
		if !errors.Is(err, user.ErrUserNotFound) {
			return "", nil, err
		}
		if err := s.repo.Upsert(ctx, &user.User{DiscordID: discordID, Username: username}); err != nil {
			return "", nil, err
		}
	}

	key, err := s.uniqueKey(ctx)
	if err != nil {
		return "", nil, err
	}

	active := true
	rec := &user.APIKeyRecord{
		ID:        uuid.New(),
		Key:       key,
		Name:      name,
		CreatedAt: time.Now().UTC(),
		IsActive:  &active,
	}
	if err := s.repo.AddKey(ctx, discordID, rec); err != nil {
		return "", nil, err
	}

	s.logger.Info("API key generated",
		zap.String("discord_id", discordID),
		zap.String("key_id", rec.ID.String()),
		zap.String("name", name))
	return key, rec, nil
}

func (s *KeyService) uniqueKey(ctx context.Context) (string, error) {
	for attempt := 0; attempt < keyGenerationAttempts; attempt++ {
		key, err := randomToken(user.KeyByteLength)
		if err != nil {
			return "", fmt.Errorf("%w: generating key: %v", ierr.ErrInternalServer, err)
		}
		exists, err := s.repo.KeyExists(ctx, key)
		if err != nil {
			return "", err
		}
		if !exists {
			return key, nil
		}
		s.logger.Warn("Generated key collided with an existing record, retrying")
	}
	return "", fmt.Errorf("%w: could not generate a unique api key", ierr.ErrInternalServer)
}

// Validate resolves a raw key to its identity and records the usage. Every
// invalid case — unknown key, explicitly inactive key, blacklisted owner —
// collapses to user.ErrKeyNotFound so callers cannot distinguish them.
func (s *KeyService) Validate(ctx context.Context, key string) (*KeyIdentity, error) {
	if key == "" {
		return nil, user.ErrKeyNotFound
	}

	// The pre-migration standalone collection is consulted first.
	if legacy, err := s.repo.FindLegacyKey(ctx, key); err == nil {
		if err := s.repo.RecordLegacyKeyUsage(ctx, legacy.ID); err != nil {
			s.logger.Warn("Failed to record legacy key usage", zap.Error(err))
		}
		return &KeyIdentity{KeyName: legacy.Name, Legacy: true}, nil
	} else if !errors.Is(err, user.ErrKeyNotFound) {
		return nil, err
	}

	owner, rec, err := s.repo.FindByKey(ctx, key)
	if err != nil {
		return nil, err
	}

	// Blacklist gating is part of validation, not only the HTTP layer:
	// a blacklisted owner's key fails even if its active flag was never
	// cleared.
	if owner.IsBlacklisted {
		s.logger.Warn("Rejected key of blacklisted user", zap.String("discord_id", owner.DiscordID))
		return nil, user.ErrKeyNotFound
	}

	if err := s.repo.RecordKeyUsage(ctx, rec.ID); err != nil {
		return nil, err
	}
	rec.UsageCount++
	now := time.Now().UTC()
	rec.LastUsed = &now

	return &KeyIdentity{Owner: owner, Record: rec, KeyName: rec.Name}, nil
}

// RevokeAll disables every key the user owns and reports which were active.
func (s *KeyService) RevokeAll(ctx context.Context, discordID string) ([]string, error) {
	names, err := s.repo.RevokeAllKeys(ctx, discordID)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Revoked all API keys",
		zap.String("discord_id", discordID),
		zap.Int("count", len(names)))
	return names, nil
}

func (s *KeyService) Delete(ctx context.Context, discordID string, keyID uuid.UUID) error {
	if err := s.repo.DeleteKey(ctx, discordID, keyID); err != nil {
		return err
	}
	s.logger.Info("Deleted API key",
		zap.String("discord_id", discordID),
		zap.String("key_id", keyID.String()))
	return nil
}

// ListKeys returns the user's key records, raw key values included; the
// dashboard masks them client-side where appropriate.
func (s *KeyService) ListKeys(ctx context.Context, discordID string) ([]user.APIKeyRecord, error) {
	u, err := s.repo.FindByDiscordID(ctx, discordID)
	if err != nil {
		return nil, err
	}
	return u.APIKeys, nil
}

package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fugitivebreach/arrow-api/internal/domain/user"
	"github.com/fugitivebreach/arrow-api/internal/storage/memstorage"
)

func newKeyService(t *testing.T) (*KeyService, *memstorage.UserRepository) {
	t.Helper()
	repo := memstorage.NewUserRepository()
	return NewKeyService(repo, zap.NewNop()), repo
}

func TestGenerateAndValidate(t *testing.T) {
	svc, _ := newKeyService(t)
	ctx := context.Background()

	k1, rec1, err := svc.Generate(ctx, "100", "alice", "First Key")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	k2, _, err := svc.Generate(ctx, "200", "bob", "Second Key")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if k1 == k2 {
		t.Fatal("two generated keys collided")
	}

	ident, err := svc.Validate(ctx, k1)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if ident.Owner.DiscordID != "100" {
		t.Errorf("key resolved to owner %q, want %q", ident.Owner.DiscordID, "100")
	}
	if ident.Record.ID != rec1.ID {
		t.Errorf("key resolved to record %s, want %s", ident.Record.ID, rec1.ID)
	}
	if ident.Record.UsageCount != 1 {
		t.Errorf("usage count = %d after first validation, want 1", ident.Record.UsageCount)
	}

	ident2, err := svc.Validate(ctx, k2)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if ident2.Owner.DiscordID == "100" {
		t.Error("validating k2 returned k1's owner")
	}
}

func TestValidateUnknownKey(t *testing.T) {
	svc, _ := newKeyService(t)
	ctx := context.Background()

	for _, key := range []string{"", "deadbeef", "not-a-key"} {
		if _, err := svc.Validate(ctx, key); !errors.Is(err, user.ErrKeyNotFound) {
			t.Errorf("Validate(%q) = %v, want ErrKeyNotFound", key, err)
		}
	}
}

func TestValidateAfterRevokeAll(t *testing.T) {
	svc, _ := newKeyService(t)
	ctx := context.Background()

	keys := make([]string, 3)
	for i := range keys {
		k, _, err := svc.Generate(ctx, "100", "alice", "Key")
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		keys[i] = k
	}

	names, err := svc.RevokeAll(ctx, "100")
	if err != nil {
		t.Fatalf("RevokeAll: %v", err)
	}
	if len(names) != 3 {
		t.Errorf("RevokeAll returned %d names, want 3", len(names))
	}

	for _, k := range keys {
		if _, err := svc.Validate(ctx, k); !errors.Is(err, user.ErrKeyNotFound) {
			t.Errorf("Validate after RevokeAll = %v, want ErrKeyNotFound", err)
		}
	}
}

func TestDeleteKey(t *testing.T) {
	svc, _ := newKeyService(t)
	ctx := context.Background()

	k, rec, err := svc.Generate(ctx, "100", "alice", "Doomed")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if err := svc.Delete(ctx, "100", rec.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := svc.Validate(ctx, k); !errors.Is(err, user.ErrKeyNotFound) {
		t.Errorf("Validate after Delete = %v, want ErrKeyNotFound", err)
	}
	if err := svc.Delete(ctx, "100", uuid.New()); !errors.Is(err, user.ErrKeyNotFound) {
		t.Errorf("Delete unknown key = %v, want ErrKeyNotFound", err)
	}
}

func TestValidateLegacyKeyFirst(t *testing.T) {
	svc, repo := newKeyService(t)
	ctx := context.Background()

	legacy := &user.LegacyKey{
		ID:        uuid.New(),
		Key:       "legacy-standalone-key",
		Name:      "Migration Key",
		IsActive:  true,
		CreatedAt: time.Now().UTC(),
	}
	if err := repo.CreateLegacyKey(ctx, legacy); err != nil {
		t.Fatalf("CreateLegacyKey: %v", err)
	}

	ident, err := svc.Validate(ctx, legacy.Key)
	if err != nil {
		t.Fatalf("Validate legacy key: %v", err)
	}
	if !ident.Legacy {
		t.Error("legacy key not flagged as legacy")
	}
	if ident.Owner != nil {
		t.Error("legacy key resolved to an owner")
	}
	if ident.KeyName != "Migration Key" {
		t.Errorf("legacy key name = %q, want %q", ident.KeyName, "Migration Key")
	}
}

func TestValidateInactiveLegacyKey(t *testing.T) {
	svc, repo := newKeyService(t)
	ctx := context.Background()

	legacy := &user.LegacyKey{
		ID:       uuid.New(),
		Key:      "disabled-legacy-key",
		Name:     "Disabled",
		IsActive: false,
	}
	if err := repo.CreateLegacyKey(ctx, legacy); err != nil {
		t.Fatalf("CreateLegacyKey: %v", err)
	}

	if _, err := svc.Validate(ctx, legacy.Key); !errors.Is(err, user.ErrKeyNotFound) {
		t.Errorf("Validate inactive legacy key = %v, want ErrKeyNotFound", err)
	}
}

func TestNilActiveFlagTreatedActive(t *testing.T) {
	svc, repo := newKeyService(t)
	ctx := context.Background()

	if err := repo.Upsert(ctx, &user.User{DiscordID: "100", Username: "alice"}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	// Pre-flag records have no IsActive at all.
	rec := &user.APIKeyRecord{
		ID:        uuid.New(),
		Key:       "pre-flag-key",
		Name:      "Old Key",
		CreatedAt: time.Now().UTC(),
	}
	if err := repo.AddKey(ctx, "100", rec); err != nil {
		t.Fatalf("AddKey: %v", err)
	}

	ident, err := svc.Validate(ctx, "pre-flag-key")
	if err != nil {
		t.Fatalf("Validate pre-flag key: %v", err)
	}
	if ident.Owner.DiscordID != "100" {
		t.Errorf("owner = %q, want %q", ident.Owner.DiscordID, "100")
	}
}

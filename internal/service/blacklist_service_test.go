package service

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fugitivebreach/arrow-api/internal/domain/user"
	"github.com/fugitivebreach/arrow-api/internal/storage/memstorage"
)

func newBlacklistService(t *testing.T) (*BlacklistService, *KeyService, *memstorage.UserRepository) {
	t.Helper()
	repo := memstorage.NewUserRepository()
	keys := NewKeyService(repo, zap.NewNop())
	return NewBlacklistService(repo, keys, zap.NewNop()), keys, repo
}

func TestBlacklistReturnsActiveKeyNames(t *testing.T) {
	svc, keys, repo := newBlacklistService(t)
	ctx := context.Background()

	if _, _, err := keys.Generate(ctx, "100", "alice", "Active One"); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if _, _, err := keys.Generate(ctx, "100", "alice", "Active Two"); err != nil {
		t.Fatalf("Generate: %v", err)
	}

	inactive := false
	dead := &user.APIKeyRecord{
		ID:       uuid.New(),
		Key:      "already-dead",
		Name:     "Already Disabled",
		IsActive: &inactive,
	}
	if err := repo.AddKey(ctx, "100", dead); err != nil {
		t.Fatalf("AddKey: %v", err)
	}

	disabled, err := svc.Blacklist(ctx, "100")
	if err != nil {
		t.Fatalf("Blacklist: %v", err)
	}

	sort.Strings(disabled)
	want := []string{"Active One", "Active Two"}
	if len(disabled) != len(want) {
		t.Fatalf("disabled = %v, want %v", disabled, want)
	}
	for i := range want {
		if disabled[i] != want[i] {
			t.Fatalf("disabled = %v, want %v", disabled, want)
		}
	}
}

func TestBlacklistAlreadyBlacklisted(t *testing.T) {
	svc, keys, _ := newBlacklistService(t)
	ctx := context.Background()

	if _, _, err := keys.Generate(ctx, "100", "alice", "Key"); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if _, err := svc.Blacklist(ctx, "100"); err != nil {
		t.Fatalf("Blacklist: %v", err)
	}
	if _, err := svc.Blacklist(ctx, "100"); !errors.Is(err, user.ErrAlreadyBlacklisted) {
		t.Errorf("second Blacklist = %v, want ErrAlreadyBlacklisted", err)
	}
}

func TestBlacklistUnknownUser(t *testing.T) {
	svc, _, _ := newBlacklistService(t)

	if _, err := svc.Blacklist(context.Background(), "does-not-exist"); !errors.Is(err, user.ErrUserNotFound) {
		t.Errorf("Blacklist unknown user = %v, want ErrUserNotFound", err)
	}
}

func TestBlacklistScenario(t *testing.T) {
	// Generate "Bot Key" -> validate returns the owner with usageCount 1
	// -> blacklist -> validation fails.
	svc, keys, _ := newBlacklistService(t)
	ctx := context.Background()

	key, _, err := keys.Generate(ctx, "555", "carol", "Bot Key")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	ident, err := keys.Validate(ctx, key)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if ident.Owner.DiscordID != "555" || ident.Record.UsageCount != 1 {
		t.Fatalf("got owner %q usageCount %d, want owner 555 usageCount 1",
			ident.Owner.DiscordID, ident.Record.UsageCount)
	}

	if _, err := svc.Blacklist(ctx, "555"); err != nil {
		t.Fatalf("Blacklist: %v", err)
	}

	if _, err := keys.Validate(ctx, key); !errors.Is(err, user.ErrKeyNotFound) {
		t.Errorf("Validate after blacklist = %v, want ErrKeyNotFound", err)
	}
}

func TestUnblacklistDoesNotReactivateKeys(t *testing.T) {
	svc, keys, _ := newBlacklistService(t)
	ctx := context.Background()

	key, _, err := keys.Generate(ctx, "100", "alice", "Key")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if _, err := svc.Blacklist(ctx, "100"); err != nil {
		t.Fatalf("Blacklist: %v", err)
	}
	if err := svc.Unblacklist(ctx, "100"); err != nil {
		t.Fatalf("Unblacklist: %v", err)
	}

	// The flag is cleared but revoked keys stay revoked.
	if _, err := keys.Validate(ctx, key); !errors.Is(err, user.ErrKeyNotFound) {
		t.Errorf("Validate after unblacklist = %v, want ErrKeyNotFound", err)
	}

	if err := svc.Unblacklist(ctx, "100"); !errors.Is(err, user.ErrNotBlacklisted) {
		t.Errorf("second Unblacklist = %v, want ErrNotBlacklisted", err)
	}
}

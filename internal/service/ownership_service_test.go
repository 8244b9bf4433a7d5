package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/fugitivebreach/arrow-api/internal/roblox"
	"github.com/fugitivebreach/arrow-api/internal/storage/memstorage"
)

type fakeResolver struct {
	users        map[string]*roblox.UserProfile
	descriptions map[int64]string
}

func (f *fakeResolver) UserByUsername(ctx context.Context, username string) (*roblox.UserProfile, error) {
	p, ok := f.users[username]
	if !ok {
		return nil, roblox.ErrUserNotFound
	}
	return p, nil
}

func (f *fakeResolver) UserProfile(ctx context.Context, userID int64) (*roblox.UserProfile, error) {
	return &roblox.UserProfile{ID: userID, Description: f.descriptions[userID]}, nil
}

func newOwnershipService(t *testing.T) (*OwnershipService, *fakeResolver, *memstorage.GuildStore) {
	t.Helper()
	store := memstorage.NewGuildStore()
	resolver := &fakeResolver{
		users:        map[string]*roblox.UserProfile{"builderman": {ID: 42, Name: "builderman"}},
		descriptions: map[int64]string{},
	}
	return NewOwnershipService(store, resolver, zap.NewNop()), resolver, store
}

func TestStartProducesThreeDistinctWords(t *testing.T) {
	svc, _, _ := newOwnershipService(t)

	for run := 0; run < 20; run++ {
		text, err := svc.Start(context.Background(), "guild1", "owner1")
		if err != nil {
			t.Fatalf("Start: %v", err)
		}

		words := strings.Fields(text)
		if len(words) != challengeWordCount {
			t.Fatalf("challenge %q has %d words, want %d", text, len(words), challengeWordCount)
		}
		seen := map[string]bool{}
		for _, w := range words {
			if seen[w] {
				t.Fatalf("challenge %q repeats word %q", text, w)
			}
			seen[w] = true

			inPool := false
			for _, candidate := range challengeWords {
				if candidate == w {
					inPool = true
					break
				}
			}
			if !inPool {
				t.Fatalf("challenge word %q is not in the fixed pool", w)
			}
		}
	}
}

func TestCheckRequiresExactSubstring(t *testing.T) {
	svc, resolver, _ := newOwnershipService(t)
	ctx := context.Background()

	text, err := svc.Start(ctx, "guild1", "owner1")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := svc.SubmitUsername(ctx, "guild1", "owner1", "builderman"); err != nil {
		t.Fatalf("SubmitUsername: %v", err)
	}

	// Case differences must not match.
	resolver.descriptions[42] = strings.ToUpper(text)
	if _, err := svc.Check(ctx, "guild1", "owner1"); !errors.Is(err, ErrDescriptionMismatch) {
		t.Errorf("Check with wrong case = %v, want ErrDescriptionMismatch", err)
	}

	resolver.descriptions[42] = "my profile! " + text + " thanks"
	v, err := svc.Check(ctx, "guild1", "owner1")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !v.Verified {
		t.Error("verification not marked Verified after matching description")
	}
}

func TestCheckIdempotentOnceVerified(t *testing.T) {
	svc, resolver, _ := newOwnershipService(t)
	ctx := context.Background()

	text, err := svc.Start(ctx, "guild1", "owner1")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := svc.SubmitUsername(ctx, "guild1", "owner1", "builderman"); err != nil {
		t.Fatalf("SubmitUsername: %v", err)
	}
	resolver.descriptions[42] = text
	if _, err := svc.Check(ctx, "guild1", "owner1"); err != nil {
		t.Fatalf("Check: %v", err)
	}

	// Removing the text afterwards must not un-verify.
	resolver.descriptions[42] = ""
	v, err := svc.Check(ctx, "guild1", "owner1")
	if err != nil {
		t.Fatalf("repeat Check: %v", err)
	}
	if !v.Verified {
		t.Error("repeat Check lost the Verified state")
	}
}

func TestCheckSessionExpired(t *testing.T) {
	svc, _, _ := newOwnershipService(t)
	ctx := context.Background()

	if _, err := svc.Check(ctx, "guild1", "owner1"); !errors.Is(err, ErrSessionExpired) {
		t.Errorf("Check without Start = %v, want ErrSessionExpired", err)
	}

	if _, err := svc.Start(ctx, "guild1", "owner1"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	// A different user cannot take over the flow.
	if _, err := svc.Check(ctx, "guild1", "intruder"); !errors.Is(err, ErrSessionExpired) {
		t.Errorf("Check by other user = %v, want ErrSessionExpired", err)
	}
	// Check before a username was submitted has nothing to verify.
	if _, err := svc.Check(ctx, "guild1", "owner1"); !errors.Is(err, ErrSessionExpired) {
		t.Errorf("Check before SubmitUsername = %v, want ErrSessionExpired", err)
	}
}

func TestSubmitUnknownUsername(t *testing.T) {
	svc, _, _ := newOwnershipService(t)
	ctx := context.Background()

	if _, err := svc.Start(ctx, "guild1", "owner1"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := svc.SubmitUsername(ctx, "guild1", "owner1", "nosuchuser"); !errors.Is(err, roblox.ErrUserNotFound) {
		t.Errorf("SubmitUsername unknown = %v, want roblox.ErrUserNotFound", err)
	}
}

func TestStartOverwritesPreviousFlow(t *testing.T) {
	svc, resolver, _ := newOwnershipService(t)
	ctx := context.Background()

	first, err := svc.Start(ctx, "guild1", "owner1")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	second, err := svc.Start(ctx, "guild1", "owner1")
	if err != nil {
		t.Fatalf("second Start: %v", err)
	}

	if _, err := svc.SubmitUsername(ctx, "guild1", "owner1", "builderman"); err != nil {
		t.Fatalf("SubmitUsername: %v", err)
	}
	resolver.descriptions[42] = first
	if first != second {
		if _, err := svc.Check(ctx, "guild1", "owner1"); !errors.Is(err, ErrDescriptionMismatch) {
			t.Errorf("Check against stale challenge = %v, want ErrDescriptionMismatch", err)
		}
	}
	resolver.descriptions[42] = second
	if _, err := svc.Check(ctx, "guild1", "owner1"); err != nil {
		t.Errorf("Check against current challenge: %v", err)
	}
}

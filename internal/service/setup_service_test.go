package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/fugitivebreach/arrow-api/internal/domain/guild"
	"github.com/fugitivebreach/arrow-api/internal/roblox"
	"github.com/fugitivebreach/arrow-api/internal/storage/memstorage"
)

type fakeJoiner struct {
	accounts    map[string]*roblox.AuthenticatedUser
	groupCounts map[int64]int
	joinErr     error
	joins       int
}

func (f *fakeJoiner) AuthenticatedUser(ctx context.Context, cookie string) (*roblox.AuthenticatedUser, error) {
	acct, ok := f.accounts[cookie]
	if !ok {
		return nil, roblox.ErrInvalidCredential
	}
	return acct, nil
}

func (f *fakeJoiner) GroupCount(ctx context.Context, cookie string, userID int64) (int, error) {
	return f.groupCounts[userID], nil
}

func (f *fakeJoiner) JoinGroup(ctx context.Context, cookie string, groupID int64) error {
	f.joins++
	return f.joinErr
}

type fakeReserver struct {
	limit    int64
	reserved map[int64]int64
	releases int
}

func (f *fakeReserver) Reserve(ctx context.Context, botUserID, seed int64) (bool, error) {
	if f.reserved == nil {
		f.reserved = map[int64]int64{}
	}
	if _, ok := f.reserved[botUserID]; !ok {
		f.reserved[botUserID] = seed
	}
	f.reserved[botUserID]++
	if f.reserved[botUserID] > f.limit {
		f.reserved[botUserID]--
		return false, nil
	}
	return true, nil
}

func (f *fakeReserver) Release(ctx context.Context, botUserID int64) error {
	f.releases++
	f.reserved[botUserID]--
	return nil
}

func newSetupService(t *testing.T, joiner *fakeJoiner, reserver *fakeReserver, cookies []string) (*SetupService, *memstorage.GuildStore) {
	t.Helper()
	store := memstorage.NewGuildStore()
	return NewSetupService(store, joiner, reserver, cookies, zap.NewNop()), store
}

func verifyGuild(t *testing.T, store *memstorage.GuildStore, guildID, userID string) {
	t.Helper()
	err := store.PutVerification(context.Background(), guildID, &guild.Verification{
		UserID:    userID,
		Verified:  true,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("PutVerification: %v", err)
	}
}

func TestSetupRequiresVerification(t *testing.T) {
	joiner := &fakeJoiner{accounts: map[string]*roblox.AuthenticatedUser{"c1": {ID: 1, Name: "bot1"}}}
	svc, store := newSetupService(t, joiner, &fakeReserver{limit: GroupCapacity}, []string{"c1"})
	ctx := context.Background()

	if _, err := svc.Setup(ctx, "guild1", "owner1", 999); !errors.Is(err, ErrNotVerified) {
		t.Errorf("Setup without verification = %v, want ErrNotVerified", err)
	}

	// A record verified by someone else does not count.
	verifyGuild(t, store, "guild1", "someone-else")
	if _, err := svc.Setup(ctx, "guild1", "owner1", 999); !errors.Is(err, ErrNotVerified) {
		t.Errorf("Setup with foreign verification = %v, want ErrNotVerified", err)
	}
}

func TestSetupSuccess(t *testing.T) {
	joiner := &fakeJoiner{
		accounts:    map[string]*roblox.AuthenticatedUser{"c1": {ID: 1, Name: "bot1"}},
		groupCounts: map[int64]int{1: 10},
	}
	svc, store := newSetupService(t, joiner, &fakeReserver{limit: GroupCapacity}, []string{"c1"})
	ctx := context.Background()
	verifyGuild(t, store, "guild1", "owner1")

	rec, err := svc.Setup(ctx, "guild1", "owner1", 999)
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if rec.GroupID != 999 || rec.BotUserID != 1 || rec.BotUsername != "bot1" || rec.Cookie != "c1" {
		t.Errorf("setup record = %+v", rec)
	}

	stored, err := store.GetSetup(ctx, "guild1")
	if err != nil {
		t.Fatalf("GetSetup: %v", err)
	}
	if stored.GroupID != 999 {
		t.Errorf("stored GroupID = %d, want 999", stored.GroupID)
	}
}

func TestSetupAlreadySetUp(t *testing.T) {
	joiner := &fakeJoiner{
		accounts:    map[string]*roblox.AuthenticatedUser{"c1": {ID: 1, Name: "bot1"}},
		groupCounts: map[int64]int{1: 10},
	}
	svc, store := newSetupService(t, joiner, &fakeReserver{limit: GroupCapacity}, []string{"c1"})
	ctx := context.Background()
	verifyGuild(t, store, "guild1", "owner1")

	existing := &guild.Setup{GroupID: 111, BotUserID: 1, BotUsername: "bot1", Cookie: "c1"}
	if err := store.CreateSetup(ctx, "guild1", existing); err != nil {
		t.Fatalf("CreateSetup: %v", err)
	}

	if _, err := svc.Setup(ctx, "guild1", "owner1", 999); !errors.Is(err, guild.ErrSetupExists) {
		t.Fatalf("Setup on configured guild = %v, want ErrSetupExists", err)
	}

	// The existing record must be untouched.
	stored, err := store.GetSetup(ctx, "guild1")
	if err != nil {
		t.Fatalf("GetSetup: %v", err)
	}
	if stored.GroupID != 111 {
		t.Errorf("existing setup mutated: GroupID = %d, want 111", stored.GroupID)
	}
	if joiner.joins != 0 {
		t.Errorf("join attempted %d times on an already-configured guild", joiner.joins)
	}
}

func TestSetupBotsFull(t *testing.T) {
	joiner := &fakeJoiner{
		accounts: map[string]*roblox.AuthenticatedUser{
			"c1": {ID: 1, Name: "bot1"},
			"c2": {ID: 2, Name: "bot2"},
		},
		groupCounts: map[int64]int{1: GroupCapacity, 2: GroupCapacity},
	}
	svc, store := newSetupService(t, joiner, &fakeReserver{limit: GroupCapacity}, []string{"c1", "c2", "invalid"})
	ctx := context.Background()
	verifyGuild(t, store, "guild1", "owner1")

	if _, err := svc.Setup(ctx, "guild1", "owner1", 999); !errors.Is(err, ErrBotsFull) {
		t.Errorf("Setup with saturated pool = %v, want ErrBotsFull", err)
	}
}

func TestSetupAlreadyMemberIsSuccess(t *testing.T) {
	joiner := &fakeJoiner{
		accounts:    map[string]*roblox.AuthenticatedUser{"c1": {ID: 1, Name: "bot1"}},
		groupCounts: map[int64]int{1: 10},
		joinErr:     roblox.ErrAlreadyMember,
	}
	svc, store := newSetupService(t, joiner, &fakeReserver{limit: GroupCapacity}, []string{"c1"})
	ctx := context.Background()
	verifyGuild(t, store, "guild1", "owner1")

	rec, err := svc.Setup(ctx, "guild1", "owner1", 999)
	if err != nil {
		t.Fatalf("Setup with already-member join = %v, want success", err)
	}
	if rec.GroupID != 999 {
		t.Errorf("record GroupID = %d, want 999", rec.GroupID)
	}
}

func TestSetupJoinFailureReleasesReservation(t *testing.T) {
	joiner := &fakeJoiner{
		accounts:    map[string]*roblox.AuthenticatedUser{"c1": {ID: 1, Name: "bot1"}},
		groupCounts: map[int64]int{1: 10},
		joinErr:     roblox.ErrGroupFull,
	}
	reserver := &fakeReserver{limit: GroupCapacity}
	svc, store := newSetupService(t, joiner, reserver, []string{"c1"})
	ctx := context.Background()
	verifyGuild(t, store, "guild1", "owner1")

	if _, err := svc.Setup(ctx, "guild1", "owner1", 999); !errors.Is(err, roblox.ErrGroupFull) {
		t.Fatalf("Setup with failing join = %v, want ErrGroupFull", err)
	}
	if reserver.releases != 1 {
		t.Errorf("reservation released %d times after failed join, want 1", reserver.releases)
	}
	if _, err := store.GetSetup(ctx, "guild1"); !errors.Is(err, guild.ErrSetupNotFound) {
		t.Error("failed setup left a persisted record")
	}
}

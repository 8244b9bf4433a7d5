package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/fugitivebreach/arrow-api/internal/domain/verification"
	"github.com/fugitivebreach/arrow-api/internal/storage/memstorage"
)

func newLinkingService(t *testing.T) (*LinkingService, *memstorage.VerificationRepository) {
	t.Helper()
	repo := memstorage.NewVerificationRepository()
	return NewLinkingService(repo, zap.NewNop()), repo
}

func TestIssueCodeFormat(t *testing.T) {
	svc, _ := newLinkingService(t)

	rec, err := svc.IssueCode(context.Background(), "100", "alice")
	if err != nil {
		t.Fatalf("IssueCode: %v", err)
	}

	groups := strings.Split(rec.Code, "-")
	wantLengths := []int{6, 5, 9, 6, 6, 5, 6}
	if len(groups) != len(wantLengths) {
		t.Fatalf("code %q has %d groups, want %d", rec.Code, len(groups), len(wantLengths))
	}
	for i, g := range groups {
		if len(g) != wantLengths[i] {
			t.Errorf("group %d of %q has length %d, want %d", i, rec.Code, len(g), wantLengths[i])
		}
		for _, r := range g {
			if !strings.ContainsRune(codeAlphabet, r) {
				t.Errorf("code %q contains %q outside the alphabet", rec.Code, r)
			}
		}
	}

	if got := rec.ExpiresAt.Sub(rec.CreatedAt); got != verification.TTL {
		t.Errorf("code TTL = %v, want %v", got, verification.TTL)
	}
}

func TestRedeemExactlyOnce(t *testing.T) {
	svc, _ := newLinkingService(t)
	ctx := context.Background()

	rec, err := svc.IssueCode(ctx, "555", "carol")
	if err != nil {
		t.Fatalf("IssueCode: %v", err)
	}

	redeemed, err := svc.Redeem(ctx, rec.Code)
	if err != nil {
		t.Fatalf("Redeem: %v", err)
	}
	if redeemed.DiscordID != "555" {
		t.Errorf("redeemed DiscordID = %q, want %q", redeemed.DiscordID, "555")
	}
	if !redeemed.Used {
		t.Error("redeemed code not marked used")
	}

	if _, err := svc.Redeem(ctx, rec.Code); !errors.Is(err, verification.ErrCodeInvalid) {
		t.Errorf("second Redeem = %v, want ErrCodeInvalid", err)
	}
}

func TestRedeemConcurrent(t *testing.T) {
	svc, _ := newLinkingService(t)
	ctx := context.Background()

	rec, err := svc.IssueCode(ctx, "100", "alice")
	if err != nil {
		t.Fatalf("IssueCode: %v", err)
	}

	const attempts = 16
	var wg sync.WaitGroup
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Redeem(ctx, rec.Code)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	successes := 0
	for err := range results {
		if err == nil {
			successes++
		} else if !errors.Is(err, verification.ErrCodeInvalid) {
			t.Errorf("concurrent Redeem = %v, want nil or ErrCodeInvalid", err)
		}
	}
	if successes != 1 {
		t.Errorf("%d concurrent redemptions succeeded, want exactly 1", successes)
	}
}

func TestRedeemExpiredCode(t *testing.T) {
	svc, repo := newLinkingService(t)
	ctx := context.Background()

	expired := &verification.Code{
		Code:      "AAAAAA-BBBBB-CCCCCCCCC-DDDDDD-EEEEEE-FFFFF-GGGGGG",
		DiscordID: "100",
		CreatedAt: time.Now().UTC().Add(-verification.TTL - time.Minute),
		ExpiresAt: time.Now().UTC().Add(-time.Minute),
	}
	if err := repo.Create(ctx, expired); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := svc.Redeem(ctx, expired.Code); !errors.Is(err, verification.ErrCodeInvalid) {
		t.Errorf("Redeem expired code = %v, want ErrCodeInvalid", err)
	}
}

func TestRedeemUnknownCode(t *testing.T) {
	svc, _ := newLinkingService(t)

	if _, err := svc.Redeem(context.Background(), "nope"); !errors.Is(err, verification.ErrCodeInvalid) {
		t.Errorf("Redeem unknown code = %v, want ErrCodeInvalid", err)
	}
}

func TestPurgeExpired(t *testing.T) {
	svc, repo := newLinkingService(t)
	ctx := context.Background()

	if _, err := svc.IssueCode(ctx, "100", "alice"); err != nil {
		t.Fatalf("IssueCode: %v", err)
	}
	expired := &verification.Code{
		Code:      "expired-code",
		DiscordID: "200",
		ExpiresAt: time.Now().UTC().Add(-time.Minute),
	}
	if err := repo.Create(ctx, expired); err != nil {
		t.Fatalf("Create: %v", err)
	}

	purged, err := svc.PurgeExpired(ctx)
	if err != nil {
		t.Fatalf("PurgeExpired: %v", err)
	}
	if purged != 1 {
		t.Errorf("purged %d codes, want 1", purged)
	}
}

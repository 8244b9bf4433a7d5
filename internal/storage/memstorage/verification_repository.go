package memstorage

import (
	"context"
	"sync"
	"time"

	"github.com/fugitivebreach/arrow-api/internal/domain/verification"
)

type VerificationRepository struct {
	mu    sync.Mutex
	codes map[string]*verification.Code
}

func NewVerificationRepository() *VerificationRepository {
	return &VerificationRepository{codes: make(map[string]*verification.Code)}
}

var _ verification.Repository = (*VerificationRepository)(nil)

func (r *VerificationRepository) Create(ctx context.Context, code *verification.Code) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *code
	r.codes[code.Code] = &stored
	return nil
}

// Redeem holds the mutex across check-and-flip, giving the same
// exactly-once guarantee the SQL conditional update provides.
func (r *VerificationRepository) Redeem(ctx context.Context, code string, now time.Time) (*verification.Code, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.codes[code]
	if !ok || rec.Used || !rec.ExpiresAt.After(now) {
		return nil, verification.ErrCodeInvalid
	}

	rec.Used = true
	usedAt := now
	rec.UsedAt = &usedAt

	out := *rec
	return &out, nil
}

func (r *VerificationRepository) ActiveForUser(ctx context.Context, discordID string, now time.Time) (*verification.Code, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, rec := range r.codes {
		if rec.DiscordID == discordID && !rec.Used && rec.ExpiresAt.After(now) {
			out := *rec
			return &out, nil
		}
	}
	return nil, verification.ErrCodeInvalid
}

func (r *VerificationRepository) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var purged int64
	for key, rec := range r.codes {
		if !rec.ExpiresAt.After(now) {
			delete(r.codes, key)
			purged++
		}
	}
	return purged, nil
}

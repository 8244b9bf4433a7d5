package memstorage

import (
	"context"
	"sync"
	"time"

	"github.com/fugitivebreach/arrow-api/internal/domain/guild"
)

// GuildStore keeps per-guild verification and setup state in-process. This
// is explicitly single-instance state; multi-instance deployments use the
// Postgres store instead.
type GuildStore struct {
	mu            sync.Mutex
	verifications map[string]*guild.Verification
	setups        map[string]*guild.Setup
}

func NewGuildStore() *GuildStore {
	return &GuildStore{
		verifications: make(map[string]*guild.Verification),
		setups:        make(map[string]*guild.Setup),
	}
}

var _ guild.Store = (*GuildStore)(nil)

func (s *GuildStore) GetVerification(ctx context.Context, guildID string) (*guild.Verification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.verifications[guildID]
	if !ok {
		return nil, guild.ErrVerificationNotFound
	}
	out := *v
	return &out, nil
}

func (s *GuildStore) PutVerification(ctx context.Context, guildID string, v *guild.Verification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *v
	s.verifications[guildID] = &stored
	return nil
}

func (s *GuildStore) DeleteVerification(ctx context.Context, guildID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.verifications, guildID)
	return nil
}

func (s *GuildStore) GetSetup(ctx context.Context, guildID string) (*guild.Setup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.setups[guildID]
	if !ok {
		return nil, guild.ErrSetupNotFound
	}
	out := *rec
	return &out, nil
}

func (s *GuildStore) CreateSetup(ctx context.Context, guildID string, rec *guild.Setup) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.setups[guildID]; ok {
		return guild.ErrSetupExists
	}
	stored := *rec
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}
	s.setups[guildID] = &stored
	return nil
}

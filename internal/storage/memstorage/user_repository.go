package memstorage

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fugitivebreach/arrow-api/internal/domain/user"
)

// UserRepository is the in-process fallback store. It implements the same
// atomicity contract as the Postgres repository under a single mutex, so it
// is safe within one process only.
type UserRepository struct {
	mu     sync.RWMutex
	users  map[string]*user.User
	legacy map[string]*user.LegacyKey
}

func NewUserRepository() *UserRepository {
	return &UserRepository{
		users:  make(map[string]*user.User),
		legacy: make(map[string]*user.LegacyKey),
	}
}

var _ user.Repository = (*UserRepository)(nil)

func (r *UserRepository) FindByDiscordID(ctx context.Context, discordID string) (*user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[discordID]
	if !ok {
		return nil, user.ErrUserNotFound
	}
	return copyUser(u), nil
}

func (r *UserRepository) Upsert(ctx context.Context, u *user.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.users[u.DiscordID]
	if !ok {
		stored := copyUser(u)
		if stored.CreatedAt.IsZero() {
			stored.CreatedAt = time.Now().UTC()
		}
		stored.LastLogin = time.Now().UTC()
		r.users[u.DiscordID] = stored
		return nil
	}

	existing.Username = u.Username
	existing.Discriminator = u.Discriminator
	existing.Avatar = u.Avatar
	existing.Email = u.Email
	existing.LastLogin = time.Now().UTC()
	return nil
}

func (r *UserRepository) AddKey(ctx context.Context, discordID string, rec *user.APIKeyRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[discordID]
	if !ok {
		return user.ErrUserNotFound
	}
	u.APIKeys = append(u.APIKeys, *rec)
	return nil
}

func (r *UserRepository) FindByKey(ctx context.Context, key string) (*user.User, *user.APIKeyRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		for i := range u.APIKeys {
			rec := &u.APIKeys[i]
			if rec.Key == key && rec.Active() {
				recCopy := *rec
				return copyUser(u), &recCopy, nil
			}
		}
	}
	return nil, nil, user.ErrKeyNotFound
}

func (r *UserRepository) KeyExists(ctx context.Context, key string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.legacy[key]; ok {
		return true, nil
	}
	for _, u := range r.users {
		for i := range u.APIKeys {
			if u.APIKeys[i].Key == key {
				return true, nil
			}
		}
	}
	return false, nil
}

func (r *UserRepository) RecordKeyUsage(ctx context.Context, keyID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		for i := range u.APIKeys {
			if u.APIKeys[i].ID == keyID {
				now := time.Now().UTC()
				u.APIKeys[i].UsageCount++
				u.APIKeys[i].LastUsed = &now
				return nil
			}
		}
	}
	return user.ErrKeyNotFound
}

func (r *UserRepository) DeleteKey(ctx context.Context, discordID string, keyID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[discordID]
	if !ok {
		return user.ErrUserNotFound
	}
	for i := range u.APIKeys {
		if u.APIKeys[i].ID == keyID {
			u.APIKeys = append(u.APIKeys[:i], u.APIKeys[i+1:]...)
			return nil
		}
	}
	return user.ErrKeyNotFound
}

func (r *UserRepository) RevokeAllKeys(ctx context.Context, discordID string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[discordID]
	if !ok {
		return nil, user.ErrUserNotFound
	}

	var disabled []string
	inactive := false
	for i := range u.APIKeys {
		if u.APIKeys[i].Active() {
			disabled = append(disabled, u.APIKeys[i].Name)
		}
		u.APIKeys[i].IsActive = &inactive
	}
	return disabled, nil
}

func (r *UserRepository) SetBlacklisted(ctx context.Context, discordID string, blacklisted bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[discordID]
	if !ok {
		return user.ErrUserNotFound
	}
	if blacklisted {
		if u.IsBlacklisted {
			return user.ErrAlreadyBlacklisted
		}
		now := time.Now().UTC()
		u.IsBlacklisted = true
		u.BlacklistedAt = &now
		return nil
	}
	if !u.IsBlacklisted {
		return user.ErrNotBlacklisted
	}
	u.IsBlacklisted = false
	u.BlacklistedAt = nil
	return nil
}

func (r *UserRepository) SetRobloxCookie(ctx context.Context, discordID string, cookie *user.RobloxCookie) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[discordID]
	if !ok {
		return user.ErrUserNotFound
	}
	cookieCopy := *cookie
	u.RobloxCookie = &cookieCopy
	return nil
}

func (r *UserRepository) FindLegacyKey(ctx context.Context, key string) (*user.LegacyKey, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.legacy[key]
	if !ok || !rec.IsActive {
		return nil, user.ErrKeyNotFound
	}
	recCopy := *rec
	return &recCopy, nil
}

func (r *UserRepository) CreateLegacyKey(ctx context.Context, rec *user.LegacyKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	recCopy := *rec
	r.legacy[rec.Key] = &recCopy
	return nil
}

func (r *UserRepository) RecordLegacyKeyUsage(ctx context.Context, keyID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, rec := range r.legacy {
		if rec.ID == keyID {
			now := time.Now().UTC()
			rec.UsageCount++
			rec.LastUsed = &now
			return nil
		}
	}
	return user.ErrKeyNotFound
}

func copyUser(u *user.User) *user.User {
	out := *u
	out.APIKeys = make([]user.APIKeyRecord, len(u.APIKeys))
	copy(out.APIKeys, u.APIKeys)
	if u.BlacklistedAt != nil {
		ts := *u.BlacklistedAt
		out.BlacklistedAt = &ts
	}
	if u.RobloxCookie != nil {
		cookie := *u.RobloxCookie
		out.RobloxCookie = &cookie
	}
	return &out
}

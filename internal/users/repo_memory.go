package users

import (
	"context"
	"sync"
	"time"
)

// MemoryRepo keeps owners in process memory for dev and tests.
type MemoryRepo struct {
	mu    sync.RWMutex
	users map[string]User
	Now   func() time.Time
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{users: make(map[string]User)}
}

func (r *MemoryRepo) now() time.Time {
	if r.Now != nil {
		return r.Now().UTC()
	}
	return time.Now().UTC()
}

// Upsert inserts or refreshes an owner. Empty profile parts keep their stored value.
func (r *MemoryRepo) Upsert(ctx context.Context, user User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	existing, ok := r.users[user.ID]
	if !ok {
		user.CreatedAt = now
		user.UpdatedAt = now
		r.users[user.ID] = user
		return nil
	}
	existing.Email = user.Email
	existing.FullName = keep(user.FullName, existing.FullName)
	existing.GivenName = keep(user.GivenName, existing.GivenName)
	existing.FamilyName = keep(user.FamilyName, existing.FamilyName)
	existing.PictureURL = keep(user.PictureURL, existing.PictureURL)
	existing.UpdatedAt = now
	r.users[user.ID] = existing
	return nil
}

func (r *MemoryRepo) GetByID(ctx context.Context, userID string) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.users[userID]
	if !ok {
		return User{}, ErrNotFound
	}
	return user, nil
}

func keep(next, current string) string {
	if next != "" {
		return next
	}
	return current
}

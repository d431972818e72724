package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/soficodes/bloghub/internal/domain/identity"
)

// UsersRepo is the DB-less backend used by tests and local dev. Same
// method set as the postgres repo.
type UsersRepo struct {
	mu    sync.RWMutex
	items map[string]identity.Identity
}

func NewUsersRepo() *UsersRepo {
	return &UsersRepo{
		items: make(map[string]identity.Identity),
	}
}

func (r *UsersRepo) GetByEmail(ctx context.Context, email string) (identity.Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.items {
		if u.Email == email {
			return u, nil
		}
	}

	return identity.Identity{}, identity.ErrNotFound
}

func (r *UsersRepo) GetByID(ctx context.Context, id string) (identity.Identity, error) {
	r.mu.RLock()
	u, ok := r.items[id]
	r.mu.RUnlock()

	if !ok {
		return identity.Identity{}, identity.ErrNotFound
	}

	return u, nil
}

func (r *UsersRepo) Create(ctx context.Context, email, passwordHash, name string, role identity.Role) (identity.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.items {
		if u.Email == email {
			return identity.Identity{}, identity.ErrEmailTaken
		}
	}

	now := time.Now().UTC()

	u := identity.Identity{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: passwordHash,
		Name:         name,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	r.items[u.ID] = u

	return u, nil
}

func (r *UsersRepo) List(ctx context.Context, limit, offset int) ([]identity.Identity, int, error) {
	r.mu.RLock()

	all := make([]identity.Identity, 0, len(r.items))
	for _, u := range r.items {
		all = append(all, u)
	}

	r.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID < all[j].ID
		}
		return all[i].CreatedAt.Before(all[j].CreatedAt)
	})

	total := len(all)

	if offset < 0 {
		offset = 0
	}

	if offset >= len(all) {
		return []identity.Identity{}, total, nil
	}

	all = all[offset:]

	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}

	return all, total, nil
}

func (r *UsersRepo) UpdateName(ctx context.Context, id, name string) (identity.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.items[id]

	if !ok {
		return identity.Identity{}, identity.ErrNotFound
	}

	u.Name = name
	u.UpdatedAt = time.Now().UTC()
	r.items[id] = u

	return u, nil
}

func (r *UsersRepo) UpdateRole(ctx context.Context, id string, role identity.Role) (identity.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.items[id]

	if !ok {
		return identity.Identity{}, identity.ErrNotFound
	}

	u.Role = role
	u.UpdatedAt = time.Now().UTC()
	r.items[id] = u

	return u, nil
}

func (r *UsersRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[id]; !ok {
		return identity.ErrNotFound
	}

	delete(r.items, id)

	return nil
}

func (r *UsersRepo) Count(ctx context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.items), nil
}

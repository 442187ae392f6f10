package memory

import (
	"context"
	"sync"

	"gatherly/internal/domain/user"
)

// UserRepository stores users in memory. The conversational core never
// creates users itself; entries arrive via fixtures or upstream sync.
type UserRepository struct {
	mu    sync.RWMutex
	items map[user.ID]*user.User
}

func NewUserRepository() *UserRepository {
	return &UserRepository{items: make(map[user.ID]*user.User)}
}

func (r *UserRepository) ByID(ctx context.Context, id user.ID) (*user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if u, ok := r.items[id]; ok {
		copyUser := *u
		return &copyUser, nil
	}
	return nil, user.ErrNotFound
}

func (r *UserRepository) Save(ctx context.Context, u *user.User) error {
	if u == nil || u.ID == "" {
		return user.ErrIDRequired
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	copyUser := *u
	r.items[u.ID] = &copyUser
	return nil
}

var _ user.Repository = (*UserRepository)(nil)

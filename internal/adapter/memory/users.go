package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/24981a0558-joel/manna-contribution/internal/domain"
)

// Users is an in-memory domain.UserRepository.
type Users struct {
	mu    sync.Mutex
	users map[string]domain.AuthorizedUser
	// Err, when set, fails every call.
	Err error
}

// NewUsers creates an access list seeded with the given users.
func NewUsers(seed ...domain.AuthorizedUser) *Users {
	u := &Users{users: make(map[string]domain.AuthorizedUser)}
	for _, s := range seed {
		if s.Key == "" {
			s.Key = domain.EmailKey(s.Email)
		}
		u.users[s.Key] = s
	}
	return u
}

func (u *Users) Get(ctx context.Context, key string) (*domain.AuthorizedUser, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.Err != nil {
		return nil, u.Err
	}
	user, ok := u.users[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &user, nil
}

func (u *Users) List(ctx context.Context) ([]domain.AuthorizedUser, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.Err != nil {
		return nil, u.Err
	}
	out := make([]domain.AuthorizedUser, 0, len(u.users))
	for _, user := range u.users {
		out = append(out, user)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

func (u *Users) Upsert(ctx context.Context, user *domain.AuthorizedUser) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.Err != nil {
		return u.Err
	}
	u.users[user.Key] = *user
	return nil
}

func (u *Users) Delete(ctx context.Context, key string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.Err != nil {
		return u.Err
	}
	delete(u.users, key)
	return nil
}

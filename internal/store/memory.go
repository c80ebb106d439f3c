// internal/store/memory.go
//
// In-memory implementation of Store.
// Used in tests and when durability is not required; state is lost when
// the process restarts. Concurrency-safe via RWMutex.

package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// defaultRating mirrors the column default in sql/001_init.sql.
const defaultRating = 1200

// memory is a map-based Store implementation keyed by user ID.
type memory struct {
	mu    sync.RWMutex
	users map[string]*User
}

// NewMemoryStore constructs an empty in-memory Store.
func NewMemoryStore() Store {
	return &memory{users: make(map[string]*User)}
}

func (m *memory) CreateUser(ctx context.Context, username, passwordHash string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Username, username) {
			return nil, ErrUsernameTaken
		}
	}
	u := &User{
		ID:           uuid.New().String(),
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
		Rating:       defaultRating,
	}
	m.users[u.ID] = u
	cp := *u
	return &cp, nil
}

func (m *memory) FindByUsername(ctx context.Context, username string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Username, username) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memory) FindByID(ctx context.Context, id string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if u, ok := m.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, ErrNotFound
}

func (m *memory) RatingAndName(ctx context.Context, userID string) (int, string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[userID]
	if !ok {
		return 0, "", ErrNotFound
	}
	return u.Rating, u.Username, nil
}

func (m *memory) ApplyRatingUpdate(ctx context.Context, userID string, newRating int, won bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return ErrNotFound
	}
	u.Rating = newRating
	u.GamesPlayed++
	if won {
		u.GamesWon++
	}
	return nil
}

func (m *memory) Leaderboard(ctx context.Context, limit int) ([]*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*User, 0, len(m.users))
	for _, u := range m.users {
		cp := *u
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Rating > out[j].Rating })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

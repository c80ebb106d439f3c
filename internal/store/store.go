// internal/store/store.go
//
// User store contract: accounts, credentials, and the persisted rating
// record (rating, games played, games won). Implementations may be backed
// by memory (tests) or SQLite (production).

package store

import (
	"context"
	"errors"
	"time"
)

// Store errors recognized by callers.
var (
	ErrNotFound      = errors.New("not found")
	ErrUsernameTaken = errors.New("username taken")
)

// User is one account row.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	Rating       int       `json:"rating"`
	GamesPlayed  int       `json:"gamesPlayed"`
	GamesWon     int       `json:"gamesWon"`
}

// Store defines the persistence interface for user accounts and ratings.
type Store interface {
	// CreateUser inserts a new account with the given pre-hashed password.
	// Returns ErrUsernameTaken on a (case-insensitive) username collision.
	CreateUser(ctx context.Context, username, passwordHash string) (*User, error)

	// FindByUsername / FindByID load an account or return ErrNotFound.
	FindByUsername(ctx context.Context, username string) (*User, error)
	FindByID(ctx context.Context, id string) (*User, error)

	// RatingAndName is the read half of the rating-engine contract.
	RatingAndName(ctx context.Context, userID string) (rating int, displayName string, err error)

	// ApplyRatingUpdate writes a new rating and bumps games-played
	// (and games-won when won is true).
	ApplyRatingUpdate(ctx context.Context, userID string, newRating int, won bool) error

	// Leaderboard returns the top accounts ordered by rating descending.
	Leaderboard(ctx context.Context, limit int) ([]*User, error)
}

// internal/store/sqlite.go
//
// SQLite-backed implementation of Store over database/sql.
// Schema lives in sql/001_init.sql; the handle is opened and migrated by
// the main package (db.go). Timestamps are stored as RFC3339 text.

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// sqlStore wraps a migrated *sql.DB.
type sqlStore struct {
	db *sql.DB
}

// NewSQLStore constructs a Store over an already-opened database handle.
func NewSQLStore(db *sql.DB) Store {
	return &sqlStore{db: db}
}

func (s *sqlStore) CreateUser(ctx context.Context, username, passwordHash string) (*User, error) {
	var exists int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM users WHERE lower(username)=lower(?)`, username).Scan(&exists)
	if err == nil {
		return nil, ErrUsernameTaken
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("check username: %w", err)
	}

	u := &User{
		ID:        uuid.New().String(),
		Username:  username,
		CreatedAt: time.Now().UTC(),
		Rating:    defaultRating,
	}
	u.PasswordHash = passwordHash
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, username, password_hash, created_at, rating) VALUES (?,?,?,?,?)`,
		u.ID, u.Username, u.PasswordHash, u.CreatedAt.Format(time.RFC3339), u.Rating); err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

func (s *sqlStore) FindByUsername(ctx context.Context, username string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, created_at, rating, games_played, games_won
		 FROM users WHERE lower(username)=lower(?)`, username)
	return scanUser(row)
}

func (s *sqlStore) FindByID(ctx context.Context, id string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, created_at, rating, games_played, games_won
		 FROM users WHERE id=?`, id)
	return scanUser(row)
}

func (s *sqlStore) RatingAndName(ctx context.Context, userID string) (int, string, error) {
	var r int
	var name string
	err := s.db.QueryRowContext(ctx,
		`SELECT rating, username FROM users WHERE id=?`, userID).Scan(&r, &name)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, "", ErrNotFound
	}
	if err != nil {
		return 0, "", err
	}
	return r, name, nil
}

func (s *sqlStore) ApplyRatingUpdate(ctx context.Context, userID string, newRating int, won bool) error {
	wonDelta := 0
	if won {
		wonDelta = 1
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET rating=?, games_played=games_played+1, games_won=games_won+? WHERE id=?`,
		newRating, wonDelta, userID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *sqlStore) Leaderboard(ctx context.Context, limit int) ([]*User, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, username, password_hash, created_at, rating, games_played, games_won
		 FROM users
		 WHERE games_played > 0
		 ORDER BY rating DESC, games_won DESC, created_at ASC
		 LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]*User, 0, limit)
	for rows.Next() {
		u, err := scanUserRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// scanUser / scanUserRows convert a row into a User.
func scanUser(row *sql.Row) (*User, error) {
	var u User
	var created string
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &created,
		&u.Rating, &u.GamesPlayed, &u.GamesWon); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	u.CreatedAt, _ = time.Parse(time.RFC3339, created)
	return &u, nil
}

func scanUserRows(rows *sql.Rows) (*User, error) {
	var u User
	var created string
	if err := rows.Scan(&u.ID, &u.Username, &u.PasswordHash, &created,
		&u.Rating, &u.GamesPlayed, &u.GamesWon); err != nil {
		return nil, err
	}
	u.CreatedAt, _ = time.Parse(time.RFC3339, created)
	return &u, nil
}

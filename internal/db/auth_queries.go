package db

import (
	"context"
	"fmt"
	"time"
)

func (p *Pool) CreateUser(ctx context.Context, username, passwordHash string) (User, error) {
	const q = `
INSERT INTO dedup.users (username, password_hash)
VALUES ($1, $2)
RETURNING user_id, user_uuid, username, password_hash, created_at
`
	var user User
	err := p.QueryRow(ctx, q, username, passwordHash).Scan(
		&user.UserID,
		&user.UserUUID,
		&user.Username,
		&user.PasswordHash,
		&user.CreatedAt,
	)
	if err != nil {
		return User{}, fmt.Errorf("insert user: %w", err)
	}
	return user, nil
}

func (p *Pool) GetUserByUsername(ctx context.Context, username string) (User, error) {
	const q = `
SELECT user_id, user_uuid, username, password_hash, created_at
FROM dedup.users
WHERE username = $1
`
	var user User
	err := p.QueryRow(ctx, q, username).Scan(
		&user.UserID,
		&user.UserUUID,
		&user.Username,
		&user.PasswordHash,
		&user.CreatedAt,
	)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (p *Pool) CountUsers(ctx context.Context) (int64, error) {
	const q = `SELECT COUNT(*) FROM dedup.users`

	var count int64
	if err := p.QueryRow(ctx, q).Scan(&count); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return count, nil
}

func (p *Pool) CreateSession(ctx context.Context, userID int64, tokenHash string, expiresAt time.Time) error {
	const q = `
INSERT INTO dedup.sessions (token_hash, user_id, expires_at)
VALUES ($1, $2, $3)
`
	if _, err := p.Exec(ctx, q, tokenHash, userID, expiresAt); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// GetSessionUser resolves a session token hash to its user, ignoring
// expired sessions.
func (p *Pool) GetSessionUser(ctx context.Context, tokenHash string, now time.Time) (User, error) {
	const q = `
SELECT u.user_id, u.user_uuid, u.username, u.password_hash, u.created_at
FROM dedup.sessions s
JOIN dedup.users u ON u.user_id = s.user_id
WHERE s.token_hash = $1 AND s.expires_at > $2
`
	var user User
	err := p.QueryRow(ctx, q, tokenHash, now).Scan(
		&user.UserID,
		&user.UserUUID,
		&user.Username,
		&user.PasswordHash,
		&user.CreatedAt,
	)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (p *Pool) DeleteSession(ctx context.Context, tokenHash string) error {
	const q = `DELETE FROM dedup.sessions WHERE token_hash = $1`

	if _, err := p.Exec(ctx, q, tokenHash); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (p *Pool) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	const q = `DELETE FROM dedup.sessions WHERE expires_at <= $1`

	tag, err := p.Exec(ctx, q, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}

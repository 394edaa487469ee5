package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"tasktracker/internal/models"
)

type SessionRepository struct {
	db *sql.DB
}

func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create inserts s and fills in its ID.
func (r *SessionRepository) Create(ctx context.Context, s *models.Session) error {
	s.AccessExpiresAt = dbTime(s.AccessExpiresAt)
	s.RefreshExpiresAt = dbTime(s.RefreshExpiresAt)
	s.CreatedAt = dbTime(s.CreatedAt)
	s.UpdatedAt = dbTime(s.UpdatedAt)

	err := r.db.QueryRowContext(ctx,
		`INSERT INTO sessions (user_id, access_token, refresh_token, access_expires_at, refresh_expires_at, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id`,
		s.UserID, s.AccessToken, s.RefreshToken,
		s.AccessExpiresAt, s.RefreshExpiresAt, s.CreatedAt, s.UpdatedAt,
	).Scan(&s.ID)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

const selectSession = `SELECT id, user_id, access_token, refresh_token, access_expires_at, refresh_expires_at, created_at, updated_at
FROM sessions`

// FindByAccessToken looks up the session holding accessDigest for userID.
func (r *SessionRepository) FindByAccessToken(ctx context.Context, accessDigest string, userID int64) (*models.Session, error) {
	return r.scanOne(r.db.QueryRowContext(ctx,
		selectSession+` WHERE access_token = $1 AND user_id = $2`, accessDigest, userID))
}

// FindByRefreshToken looks up the session holding refreshDigest for userID.
func (r *SessionRepository) FindByRefreshToken(ctx context.Context, refreshDigest string, userID int64) (*models.Session, error) {
	return r.scanOne(r.db.QueryRowContext(ctx,
		selectSession+` WHERE refresh_token = $1 AND user_id = $2`, refreshDigest, userID))
}

func (r *SessionRepository) scanOne(row *sql.Row) (*models.Session, error) {
	var s models.Session
	err := row.Scan(&s.ID, &s.UserID, &s.AccessToken, &s.RefreshToken,
		&s.AccessExpiresAt, &s.RefreshExpiresAt, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select session: %w", err)
	}
	return &s, nil
}

// Rotate overwrites the token pair and expiries of an existing session row.
func (r *SessionRepository) Rotate(ctx context.Context, s *models.Session) error {
	s.AccessExpiresAt = dbTime(s.AccessExpiresAt)
	s.RefreshExpiresAt = dbTime(s.RefreshExpiresAt)
	s.UpdatedAt = dbTime(s.UpdatedAt)

	res, err := r.db.ExecContext(ctx,
		`UPDATE sessions
SET access_token = $1,
    refresh_token = $2,
    access_expires_at = $3,
    refresh_expires_at = $4,
    updated_at = $5
WHERE id = $6`,
		s.AccessToken, s.RefreshToken, s.AccessExpiresAt, s.RefreshExpiresAt, s.UpdatedAt, s.ID,
	)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteExpired removes sessions whose refresh token can no longer be used.
func (r *SessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE refresh_expires_at < $1`, dbTime(now))
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return res.RowsAffected()
}

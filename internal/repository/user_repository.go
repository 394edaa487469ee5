package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"tasktracker/internal/models"
)

var (
	ErrNotFound          = errors.New("record not found")
	ErrDuplicateUsername = errors.New("duplicate username")
	ErrDuplicateEmail    = errors.New("duplicate email")
)

// dbTime normalises timestamps before they are written so both drivers
// store and compare the same representation.
func dbTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

type UserRepository struct {
	db      *sql.DB
	dialect Dialect
}

func NewUserRepository(db *sql.DB, d Dialect) *UserRepository {
	return &UserRepository{db: db, dialect: d}
}

// Create inserts u and fills in its ID.
func (r *UserRepository) Create(ctx context.Context, u *models.User) error {
	u.CreatedAt = dbTime(u.CreatedAt)
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO users (username, email, password_hash, full_name, created_at)
VALUES ($1, $2, $3, $4, $5)
RETURNING id`,
		u.Username, u.Email, u.PasswordHash, u.FullName, u.CreatedAt,
	).Scan(&u.ID)
	if err != nil {
		if constraint, ok := r.dialect.uniqueViolation(err); ok {
			if strings.Contains(constraint, "email") {
				return ErrDuplicateEmail
			}
			return ErrDuplicateUsername
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

const selectUser = `SELECT id, username, email, password_hash, full_name, created_at FROM users`

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	return r.scanOne(r.db.QueryRowContext(ctx, selectUser+` WHERE id = $1`, id))
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.scanOne(r.db.QueryRowContext(ctx, selectUser+` WHERE username = $1`, username))
}

func (r *UserRepository) scanOne(row *sql.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.FullName, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select user: %w", err)
	}
	return &u, nil
}

func (r *UserRepository) UsernameExists(ctx context.Context, username string) (bool, error) {
	return exists(ctx, r.db, `SELECT 1 FROM users WHERE username = $1`, username)
}

func (r *UserRepository) Exists(ctx context.Context, id int64) (bool, error) {
	return exists(ctx, r.db, `SELECT 1 FROM users WHERE id = $1`, id)
}

// ListSummaries returns every user, for assignment pickers.
func (r *UserRepository) ListSummaries(ctx context.Context) ([]models.UserSummary, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, username, email, full_name FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("select users: %w", err)
	}
	defer rows.Close()

	users := []models.UserSummary{}
	for rows.Next() {
		var (
			u        models.UserSummary
			fullName sql.NullString
		)
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &fullName); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		if fullName.Valid {
			u.FullName = &fullName.String
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func exists(ctx context.Context, db *sql.DB, query string, args ...any) (bool, error) {
	var one int
	err := db.QueryRowContext(ctx, query, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

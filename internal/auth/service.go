// Package auth issues session-backed token pairs and resolves bearer tokens
// to users. A token is only usable while its signature is valid and the
// session row holding it is still live.
package auth

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"tasktracker/internal/apperrors"
	"tasktracker/internal/metrics"
	"tasktracker/internal/models"
	"tasktracker/internal/repository"
	"tasktracker/pkg/crypto"
	"tasktracker/pkg/logger"
)

type UserStore interface {
	Create(ctx context.Context, u *models.User) error
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
}

type SessionStore interface {
	Create(ctx context.Context, s *models.Session) error
	FindByAccessToken(ctx context.Context, accessDigest string, userID int64) (*models.Session, error)
	FindByRefreshToken(ctx context.Context, refreshDigest string, userID int64) (*models.Session, error)
	Rotate(ctx context.Context, s *models.Session) error
}

type SignupInput struct {
	Username string
	Password string
	Email    string
	FullName *string
}

// Result is returned by signup and login.
type Result struct {
	TokenPair
	User *models.User
}

type Service struct {
	users    UserStore
	sessions SessionStore
	tokens   *TokenManager
	metrics  *metrics.Registry
	now      func() time.Time
}

type Option func(*Service)

func WithMetrics(r *metrics.Registry) Option {
	return func(s *Service) { s.metrics = r }
}

// WithClock replaces the clock used for session expiry checks.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(users UserStore, sessions SessionStore, tokens *TokenManager, opts ...Option) *Service {
	s := &Service{
		users:    users,
		sessions: sessions,
		tokens:   tokens,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Signup creates the user and opens its first session.
func (s *Service) Signup(ctx context.Context, in SignupInput) (*Result, error) {
	hash, err := crypto.HashPassword(in.Password)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	user := &models.User{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		CreatedAt:    s.now(),
	}
	if in.FullName != nil {
		user.FullName = sql.NullString{String: *in.FullName, Valid: true}
	}

	if err := s.users.Create(ctx, user); err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicateUsername):
			logger.SecurityLogger.Warn("Duplicate username", zap.String("username", in.Username))
			return nil, apperrors.ErrUsernameTaken
		case errors.Is(err, repository.ErrDuplicateEmail):
			logger.SecurityLogger.Warn("Duplicate email", zap.String("username", in.Username))
			return nil, apperrors.ErrEmailTaken
		}
		return nil, apperrors.Internal(err)
	}

	pair, err := s.openSession(ctx, user)
	if err != nil {
		return nil, err
	}
	logger.AuditLogger.Info("User signed up", zap.Int64("user_id", user.ID))
	return &Result{TokenPair: pair, User: user}, nil
}

// Login checks credentials and opens a new session. Unknown usernames and
// wrong passwords are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, username, password string) (*Result, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if errors.Is(err, repository.ErrNotFound) {
		s.reject("unknown_user", zap.String("username", username))
		return nil, apperrors.ErrInvalidCredentials
	}
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	ok, err := crypto.ComparePassword(user.PasswordHash, password)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if !ok {
		s.reject("wrong_password", zap.Int64("user_id", user.ID))
		return nil, apperrors.ErrInvalidCredentials
	}

	pair, err := s.openSession(ctx, user)
	if err != nil {
		return nil, err
	}
	logger.AuditLogger.Info("User logged in", zap.Int64("user_id", user.ID))
	return &Result{TokenPair: pair, User: user}, nil
}

func (s *Service) openSession(ctx context.Context, user *models.User) (TokenPair, error) {
	pair, err := s.tokens.Issue(user.ID, user.Username)
	if err != nil {
		return TokenPair{}, apperrors.Internal(err)
	}
	now := s.now()
	session := &models.Session{
		UserID:           user.ID,
		AccessToken:      crypto.TokenDigest(pair.AccessToken),
		RefreshToken:     crypto.TokenDigest(pair.RefreshToken),
		AccessExpiresAt:  pair.AccessExpiresAt,
		RefreshExpiresAt: pair.RefreshExpiresAt,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return TokenPair{}, apperrors.Internal(err)
	}
	return pair, nil
}

// Refresh trades a live refresh token for a new pair. The session row is
// overwritten in place, so the previous pair stops working immediately.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	if refreshToken == "" {
		s.reject("no_refresh_token")
		return TokenPair{}, apperrors.ErrNoRefreshToken
	}

	claims, err := s.tokens.Parse(refreshToken)
	if err != nil {
		s.reject("malformed_refresh_token")
		return TokenPair{}, apperrors.ErrRefreshTokenMalformed
	}

	session, err := s.sessions.FindByRefreshToken(ctx, crypto.TokenDigest(refreshToken), claims.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		s.reject("refresh_session_missing", zap.Int64("user_id", claims.UserID))
		return TokenPair{}, apperrors.ErrRefreshSessionInvalid
	}
	if err != nil {
		return TokenPair{}, apperrors.Internal(err)
	}
	if !s.now().Before(session.RefreshExpiresAt) {
		s.reject("refresh_session_expired", zap.Int64("user_id", claims.UserID))
		return TokenPair{}, apperrors.ErrRefreshSessionInvalid
	}

	user, err := s.users.GetByID(ctx, session.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		s.reject("refresh_user_missing", zap.Int64("user_id", session.UserID))
		return TokenPair{}, apperrors.ErrRefreshUserNotFound
	}
	if err != nil {
		return TokenPair{}, apperrors.Internal(err)
	}

	pair, err := s.tokens.Issue(user.ID, user.Username)
	if err != nil {
		return TokenPair{}, apperrors.Internal(err)
	}
	session.AccessToken = crypto.TokenDigest(pair.AccessToken)
	session.RefreshToken = crypto.TokenDigest(pair.RefreshToken)
	session.AccessExpiresAt = pair.AccessExpiresAt
	session.RefreshExpiresAt = pair.RefreshExpiresAt
	session.UpdatedAt = s.now()
	if err := s.sessions.Rotate(ctx, session); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return TokenPair{}, apperrors.ErrRefreshSessionInvalid
		}
		return TokenPair{}, apperrors.Internal(err)
	}

	logger.AuditLogger.Info("Session refreshed", zap.Int64("user_id", user.ID), zap.Int64("session_id", session.ID))
	return pair, nil
}

// Authenticate resolves an access token to its user.
func (s *Service) Authenticate(ctx context.Context, accessToken string) (*models.User, error) {
	if accessToken == "" {
		s.reject("no_token")
		return nil, apperrors.ErrNoToken
	}

	claims, err := s.tokens.Parse(accessToken)
	if err != nil {
		s.reject("invalid_token")
		return nil, apperrors.ErrInvalidToken
	}

	session, err := s.sessions.FindByAccessToken(ctx, crypto.TokenDigest(accessToken), claims.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		s.reject("session_missing", zap.Int64("user_id", claims.UserID))
		return nil, apperrors.ErrInvalidToken
	}
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if !s.now().Before(session.AccessExpiresAt) {
		s.reject("session_expired", zap.Int64("user_id", claims.UserID))
		return nil, apperrors.ErrInvalidToken
	}

	user, err := s.users.GetByID(ctx, session.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		s.reject("user_missing", zap.Int64("user_id", session.UserID))
		return nil, apperrors.ErrInvalidToken
	}
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return user, nil
}

func (s *Service) reject(reason string, fields ...zap.Field) {
	logger.SecurityLogger.Warn("Authentication rejected", append(fields, zap.String("reason", reason))...)
	if s.metrics != nil {
		s.metrics.AuthFailures.WithLabelValues(reason).Inc()
	}
}

package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

var ErrMalformedToken = errors.New("malformed token")

// Claims is the payload of both the access and the refresh token.
type Claims struct {
	UserID   int64  `json:"userId"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// TokenPair is one issuance. Expiry times are absolute and match the exp
// claim of each token.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// TokenManager signs and verifies HS256 tokens with a single secret.
type TokenManager struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func NewTokenManager(secret string, accessTTL, refreshTTL time.Duration) *TokenManager {
	return &TokenManager{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

// Issue signs a fresh access/refresh pair for the user.
func (m *TokenManager) Issue(userID int64, username string) (TokenPair, error) {
	now := m.now().Truncate(time.Second)
	pair := TokenPair{
		AccessExpiresAt:  now.Add(m.accessTTL),
		RefreshExpiresAt: now.Add(m.refreshTTL),
	}

	var err error
	if pair.AccessToken, err = m.sign(userID, username, now, pair.AccessExpiresAt); err != nil {
		return TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}
	if pair.RefreshToken, err = m.sign(userID, username, now, pair.RefreshExpiresAt); err != nil {
		return TokenPair{}, fmt.Errorf("sign refresh token: %w", err)
	}
	return pair, nil
}

func (m *TokenManager) sign(userID int64, username string, issuedAt, expiresAt time.Time) (string, error) {
	claims := Claims{
		UserID:   userID,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

// Parse verifies the signature and expiry of token and returns its claims.
// Any failure yields ErrMalformedToken.
func (m *TokenManager) Parse(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, ErrMalformedToken
	}
	if claims.UserID <= 0 || claims.ExpiresAt == nil {
		return nil, ErrMalformedToken
	}
	return claims, nil
}

package middleware

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"

	"tasktracker/internal/apperrors"
	"tasktracker/internal/models"
)

// userKey is the fiber local holding the authenticated *models.User.
const userKey = "user"

type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*models.User, error)
}

// BearerToken returns the token of an "Authorization: Bearer <token>"
// header, or "" when the header is missing or uses another scheme.
func BearerToken(c *fiber.Ctx) string {
	header := c.Get(fiber.HeaderAuthorization)
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return ""
	}
	return strings.TrimSpace(token)
}

// UseToken rejects requests without a live access token and stores the
// resolved user for the handler.
func UseToken(auth Authenticator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, err := auth.Authenticate(c.UserContext(), BearerToken(c))
		if err != nil {
			return err
		}
		c.Locals(userKey, user)
		return c.Next()
	}
}

// CurrentUser returns the user stored by UseToken.
func CurrentUser(c *fiber.Ctx) (*models.User, error) {
	user, ok := c.Locals(userKey).(*models.User)
	if !ok || user == nil {
		return nil, apperrors.ErrAuthRequired
	}
	return user, nil
}

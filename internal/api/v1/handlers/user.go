package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"tasktracker/internal/middleware"
)

type meResponse struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	FullName  *string   `json:"fullName"`
	CreatedAt time.Time `json:"createdAt"`
}

// Me returns the profile of the authenticated user.
func (h *Handler) Me(c *fiber.Ctx) error {
	user, err := middleware.CurrentUser(c)
	if err != nil {
		return err
	}

	res := meResponse{
		ID:        user.ID,
		Username:  user.Username,
		Email:     user.Email,
		CreatedAt: user.CreatedAt,
	}
	if user.FullName.Valid {
		res.FullName = &user.FullName.String
	}
	return c.JSON(res)
}

package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"tasktracker/internal/auth"
	"tasktracker/internal/middleware"
)

type userRef struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

type authResponse struct {
	AccessToken  string  `json:"accessToken"`
	RefreshToken string  `json:"refreshToken"`
	User         userRef `json:"user"`
}

type tokenResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

func newAuthResponse(res *auth.Result) authResponse {
	return authResponse{
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
		User:         userRef{ID: res.User.ID, Username: res.User.Username},
	}
}

func (h *Handler) Signup(c *fiber.Ctx) error {
	type SignupRequest struct {
		Username string  `json:"username" validate:"required,max=255"`
		Password string  `json:"password" validate:"required"`
		Email    string  `json:"email" validate:"required,email,max=255"`
		FullName *string `json:"fullName" validate:"omitempty,max=255"`
	}

	var req SignupRequest
	if err := h.parse(c, &req); err != nil {
		return err
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	if err := h.check(c, &req); err != nil {
		return err
	}

	res, err := h.auth.Signup(c.UserContext(), auth.SignupInput{
		Username: req.Username,
		Password: req.Password,
		Email:    req.Email,
		FullName: req.FullName,
	})
	if err != nil {
		return err
	}
	return c.JSON(newAuthResponse(res))
}

func (h *Handler) Login(c *fiber.Ctx) error {
	type LoginRequest struct {
		Username string `json:"username" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	var req LoginRequest
	if err := h.parse(c, &req); err != nil {
		return err
	}
	req.Username = strings.TrimSpace(req.Username)
	if err := h.check(c, &req); err != nil {
		return err
	}

	res, err := h.auth.Login(c.UserContext(), req.Username, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(newAuthResponse(res))
}

// Refresh reads the refresh token from the Authorization header.
func (h *Handler) Refresh(c *fiber.Ctx) error {
	pair, err := h.auth.Refresh(c.UserContext(), middleware.BearerToken(c))
	if err != nil {
		return err
	}
	return c.JSON(tokenResponse{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken})
}

package websocket

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"tasktracker/internal/models"
	"tasktracker/pkg/logger"
)

// Socket is the part of a websocket connection the handler uses.
type Socket interface {
	Conn
	ReadMessage() (messageType int, data []byte, err error)
}

type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*models.User, error)
}

type inbound struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

type authReply struct {
	Type   string `json:"type"`
	Status string `json:"status"`
	UserID int64  `json:"userId,omitempty"`
}

type pong struct {
	Type string `json:"type"`
}

// Handler runs the subscriber protocol: the first useful message must be
// {"type":"auth","token":...}; after that the client only receives events
// and may send {"type":"ping"}.
type Handler struct {
	hub         *Hub
	auth        Authenticator
	authTimeout time.Duration
}

func NewHandler(hub *Hub, auth Authenticator) *Handler {
	return &Handler{hub: hub, auth: auth, authTimeout: 5 * time.Second}
}

// RequireUpgrade rejects plain HTTP requests to the websocket route.
func RequireUpgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// Endpoint adapts Serve to a fiber route.
func (h *Handler) Endpoint() fiber.Handler {
	return websocket.New(func(c *websocket.Conn) {
		h.Serve(c)
	})
}

// Serve runs until the peer disconnects or fails to authenticate.
func (h *Handler) Serve(conn Socket) {
	client := NewClient(conn)
	// The connection goes back to a pool when Serve returns, so the client
	// must be closed before that.
	defer func() {
		h.hub.Unregister(client)
		_ = client.close()
	}()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		var msg inbound
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}

		switch msg.Type {
		case "auth":
			if !h.authenticate(client, msg.Token) {
				return
			}
		case "ping":
			if client.userID == 0 {
				continue
			}
			if err := client.WriteJSON(pong{Type: "pong"}); err != nil {
				return
			}
		}
	}
}

func (h *Handler) authenticate(client *Client, token string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), h.authTimeout)
	defer cancel()

	user, err := h.auth.Authenticate(ctx, token)
	if err != nil {
		logger.SecurityLogger.Warn("Websocket authentication failed", zap.Error(err))
		_ = client.WriteJSON(authReply{Type: "auth", Status: "failed"})
		return false
	}

	if err := client.WriteJSON(authReply{Type: "auth", Status: "authenticated", UserID: user.ID}); err != nil {
		return false
	}
	h.hub.Register(user.ID, client)
	logger.SystemLogger.Info("Websocket subscriber authenticated", zap.Int64("user_id", user.ID))
	return true
}

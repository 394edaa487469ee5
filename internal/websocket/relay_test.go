package websocket

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tasktracker/internal/testutil"
)

// Two hubs sharing one Redis behave like two processes: an event broadcast
// on one reaches a subscriber connected to the other.
func TestRedisRelayAcrossHubs(t *testing.T) {
	client := testutil.NewRedis(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	publisher := NewHub(WithRelay(NewRedisRelay(client, "test-events")))
	receiver := NewHub(WithRelay(NewRedisRelay(client, "test-events")))

	for _, h := range []*Hub{publisher, receiver} {
		go func(h *Hub) { _ = h.Run(ctx) }(h)
	}

	s := register(t, receiver, 1)

	// Subscriptions are established asynchronously; keep publishing until
	// one lands.
	require.Eventually(t, func() bool {
		publisher.Broadcast(ctx, event(1, nil))
		select {
		case <-s.wrote:
			return true
		case <-time.After(100 * time.Millisecond):
			return false
		}
	}, 5*time.Second, 50*time.Millisecond)

	msg := s.messages(t)[0]
	assert.Equal(t, "TASK_CREATED", msg["type"])
}

// With no hub subscribed anywhere, a publish reaches nobody, so the
// broadcasting hub delivers to its own clients instead.
func TestBroadcastDeliversLocallyWithoutSubscribers(t *testing.T) {
	client := testutil.NewRedis(t)
	relay := NewRedisRelay(client, "idle-events")

	err := relay.Publish(context.Background(), event(1, nil))
	assert.ErrorIs(t, err, ErrNoSubscribers)

	h := NewHub(WithRelay(relay))
	s := register(t, h, 1)
	h.Broadcast(context.Background(), event(1, nil))
	require.Len(t, s.messages(t), 1)
	assert.Equal(t, "TASK_CREATED", s.messages(t)[0]["type"])
}

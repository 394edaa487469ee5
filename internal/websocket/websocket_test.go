package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tasktracker/internal/apperrors"
	"tasktracker/internal/metrics"
	"tasktracker/internal/models"
)

// fakeSocket feeds queued frames to ReadMessage and records writes.
type fakeSocket struct {
	in chan []byte

	mu       sync.Mutex
	written  [][]byte
	closed   bool
	failNext bool
	wrote    chan struct{}
}

func newFakeSocket() *fakeSocket {
	return &fakeSocket{in: make(chan []byte, 8), wrote: make(chan struct{}, 64)}
}

func (s *fakeSocket) ReadMessage() (int, []byte, error) {
	data, ok := <-s.in
	if !ok {
		return 0, nil, io.EOF
	}
	return websocket.TextMessage, data, nil
}

func (s *fakeSocket) WriteMessage(_ int, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.failNext {
		return errors.New("broken pipe")
	}
	s.written = append(s.written, append([]byte(nil), data...))
	s.wrote <- struct{}{}
	return nil
}

func (s *fakeSocket) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.in)
	}
	return nil
}

func (s *fakeSocket) send(t *testing.T, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	s.in <- data
}

func (s *fakeSocket) messages(t *testing.T) []map[string]any {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]map[string]any, 0, len(s.written))
	for _, w := range s.written {
		var m map[string]any
		require.NoError(t, json.Unmarshal(w, &m))
		out = append(out, m)
	}
	return out
}

func (s *fakeSocket) waitWrite(t *testing.T) {
	t.Helper()
	select {
	case <-s.wrote:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a write")
	}
}

type tokenAuth map[string]int64

func (a tokenAuth) Authenticate(_ context.Context, token string) (*models.User, error) {
	id, ok := a[token]
	if !ok {
		return nil, apperrors.ErrInvalidToken
	}
	return &models.User{ID: id}, nil
}

func event(creator int64, assignee *int64) models.TaskEvent {
	return models.TaskEvent{
		Type:   models.TaskCreated,
		TaskID: 10,
		Task:   &models.TaskView{ID: 10, CreatorID: creator, AssigneeID: assignee},
		UserID: creator,
	}
}

func register(t *testing.T, h *Hub, userID int64) *fakeSocket {
	t.Helper()
	s := newFakeSocket()
	h.Register(userID, NewClient(s))
	return s
}

func TestHubDeliversOnlyToEntitledUsers(t *testing.T) {
	reg := metrics.NewRegistry()
	h := NewHub(WithMetrics(reg))
	creator := register(t, h, 1)
	assignee := register(t, h, 2)
	stranger := register(t, h, 3)

	two := int64(2)
	n := h.Deliver(event(1, &two))
	assert.Equal(t, 2, n)

	require.Len(t, creator.messages(t), 1)
	require.Len(t, assignee.messages(t), 1)
	assert.Empty(t, stranger.messages(t))

	msg := assignee.messages(t)[0]
	assert.Equal(t, "TASK_CREATED", msg["type"])
	data := msg["data"].(map[string]any)
	assert.Equal(t, "TASK_CREATED", data["type"])
	assert.EqualValues(t, 10, data["taskId"])
	assert.EqualValues(t, 1, data["userId"])
	assert.NotNil(t, data["task"])
	assert.NotNil(t, data["timestamp"])

	assert.Equal(t, 3.0, testutil.ToFloat64(reg.WSConnections))
	assert.Equal(t, 2.0, testutil.ToFloat64(reg.Deliveries.WithLabelValues("delivered")))
}

func TestHubEvictsFailedClients(t *testing.T) {
	h := NewHub()
	broken := register(t, h, 1)
	broken.failNext = true

	assert.Equal(t, 0, h.Deliver(event(1, nil)))
	assert.Equal(t, 0, h.Count())
	assert.True(t, broken.closed)
}

func TestHubRegisterReplacesAndUnregisterIsScoped(t *testing.T) {
	h := NewHub()
	first := NewClient(newFakeSocket())
	second := NewClient(newFakeSocket())

	h.Register(1, first)
	h.Register(1, second)
	assert.Equal(t, 1, h.Count())

	// The stale connection closing must not drop the live one.
	h.Unregister(first)
	assert.Equal(t, 1, h.Count())

	h.Unregister(second)
	assert.Equal(t, 0, h.Count())

	// Re-authenticating as another user moves the client.
	h.Register(1, first)
	h.Register(2, first)
	assert.Equal(t, 1, h.Count())
	assert.Equal(t, 0, h.Deliver(event(1, nil)))
}

func TestHubConcurrentUse(t *testing.T) {
	h := NewHub()
	var wg sync.WaitGroup
	for i := int64(1); i <= 20; i++ {
		wg.Add(2)
		go func(id int64) {
			defer wg.Done()
			c := NewClient(newFakeSocket())
			h.Register(id, c)
			h.Unregister(c)
		}(i)
		go func(id int64) {
			defer wg.Done()
			h.Deliver(event(id, nil))
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 0, h.Count())
}

type failingRelay struct{ published int }

func (r *failingRelay) Publish(context.Context, models.TaskEvent) error {
	r.published++
	return errors.New("redis down")
}

func (r *failingRelay) Subscribe(ctx context.Context, _ func(models.TaskEvent)) error {
	<-ctx.Done()
	return nil
}

func TestBroadcastFallsBackToLocalDelivery(t *testing.T) {
	relay := &failingRelay{}
	h := NewHub(WithRelay(relay))
	s := register(t, h, 1)

	h.Broadcast(context.Background(), event(1, nil))
	assert.Equal(t, 1, relay.published)
	assert.Len(t, s.messages(t), 1)
}

func TestHandlerAuthenticatesAndReceivesEvents(t *testing.T) {
	h := NewHub()
	handler := NewHandler(h, tokenAuth{"good": 2})
	s := newFakeSocket()

	done := make(chan struct{})
	go func() {
		handler.Serve(s)
		close(done)
	}()

	s.send(t, map[string]string{"type": "ping"})
	s.send(t, map[string]string{"type": "auth", "token": "good"})
	s.waitWrite(t)
	require.Eventually(t, func() bool { return h.Count() == 1 }, time.Second, 10*time.Millisecond)

	msgs := s.messages(t)
	require.Len(t, msgs, 1, "ping before auth must be ignored")
	assert.Equal(t, "auth", msgs[0]["type"])
	assert.Equal(t, "authenticated", msgs[0]["status"])
	assert.EqualValues(t, 2, msgs[0]["userId"])

	s.send(t, map[string]string{"type": "ping"})
	s.waitWrite(t)
	assert.Equal(t, "pong", s.messages(t)[1]["type"])

	two := int64(2)
	h.Broadcast(context.Background(), event(1, &two))
	s.waitWrite(t)
	assert.Equal(t, "TASK_CREATED", s.messages(t)[2]["type"])

	_ = s.Close()
	<-done
	assert.Equal(t, 0, h.Count())
}

func TestHandlerClosesOnFailedAuth(t *testing.T) {
	h := NewHub()
	handler := NewHandler(h, tokenAuth{})
	s := newFakeSocket()

	done := make(chan struct{})
	go func() {
		handler.Serve(s)
		close(done)
	}()

	s.in <- []byte("not json")
	s.send(t, map[string]string{"type": "auth", "token": "bad"})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not close after failed auth")
	}

	msgs := s.messages(t)
	require.Len(t, msgs, 1)
	assert.Equal(t, "failed", msgs[0]["status"])
	_, hasUser := msgs[0]["userId"]
	assert.False(t, hasUser)
	assert.True(t, s.closed)
	assert.Equal(t, 0, h.Count())
}

// flakyRelay fails its first subscriptions and then holds until cancelled.
type flakyRelay struct {
	failures  int32
	subscribe atomic.Int32
}

func (r *flakyRelay) Publish(context.Context, models.TaskEvent) error { return nil }

func (r *flakyRelay) Subscribe(ctx context.Context, _ func(models.TaskEvent)) error {
	if r.subscribe.Add(1) <= r.failures {
		return errors.New("connection reset")
	}
	<-ctx.Done()
	return nil
}

func TestRunResubscribesAfterFailure(t *testing.T) {
	relay := &flakyRelay{failures: 2}
	h := NewHub(WithRelay(relay))
	h.retryDelay = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Run(ctx) }()

	require.Eventually(t, func() bool { return relay.subscribe.Load() == 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

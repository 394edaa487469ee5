package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryCounters(t *testing.T) {
	r := NewRegistry()

	r.AuthFailures.WithLabelValues("invalid_token").Inc()
	r.AuthFailures.WithLabelValues("invalid_token").Inc()
	r.SessionsPurged.Add(3)
	r.WSConnections.Inc()

	assert.Equal(t, 2.0, testutil.ToFloat64(r.AuthFailures.WithLabelValues("invalid_token")))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.SessionsPurged))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.WSConnections))
}

func TestRegistryHandler(t *testing.T) {
	r := NewRegistry()
	r.EventsTotal.WithLabelValues("TASK_CREATED").Inc()

	app := fiber.New()
	app.Get("/metrics", r.Handler())

	resp, err := app.Test(httptest.NewRequest("GET", "/metrics", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `tasktracker_task_events_total{type="TASK_CREATED"} 1`)
}

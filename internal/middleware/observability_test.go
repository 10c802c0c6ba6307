package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/artemis-ci-api/internal/observability"
)

func TestObservabilityCountsAPIRequests(t *testing.T) {
	app := fiber.New()
	Register(app, Config{})
	app.Get("/api/v2/ping/:id", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNotFound)
	})

	before := testutil.ToFloat64(observability.APIErrors().WithLabelValues(http.MethodGet, "/api/v2/ping/:id", "404"))

	req := httptest.NewRequest(http.MethodGet, "/api/v2/ping/1", nil)
	req.Header.Set("X-Correlation-ID", "corr-1")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	require.Equal(t, "corr-1", resp.Header.Get("X-Correlation-ID"))

	after := testutil.ToFloat64(observability.APIErrors().WithLabelValues(http.MethodGet, "/api/v2/ping/:id", "404"))
	require.Equal(t, before+1, after)
}

func TestCorrelationIDGeneratedWhenMissing(t *testing.T) {
	app := fiber.New()
	app.Use(CorrelationID())
	app.Get("/", func(c *fiber.Ctx) error {
		require.Equal(t, GetCorrelationID(c), CorrelationIDFromContext(c.UserContext()))
		return c.SendStatus(fiber.StatusOK)
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	require.NotEmpty(t, resp.Header.Get("X-Correlation-ID"))
}

func TestLatencyBucket(t *testing.T) {
	require.Equal(t, "<=25ms", latencyBucket(10*time.Millisecond))
	require.Equal(t, "<=500ms", latencyBucket(300*time.Millisecond))
	require.Equal(t, ">2s", latencyBucket(3*time.Second))
}

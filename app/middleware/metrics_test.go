package middleware

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRecordsStatusLabel(t *testing.T) {
	app := fiber.New()
	app.Use(Metrics())
	app.Get("/teapot", func(c fiber.Ctx) error {
		return c.SendStatus(fiber.StatusTeapot)
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/teapot", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusTeapot, resp.StatusCode)

	count := testutil.ToFloat64(httpRequestsTotal.With(prometheus.Labels{
		"method": "GET",
		"route":  "/teapot",
		"status": "418",
	}))
	assert.Equal(t, float64(1), count)
}

func TestMetricsUsesRouteTemplate(t *testing.T) {
	app := fiber.New()
	app.Use(Metrics())
	app.Get("/films/:uuid", func(c fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	_, err := app.Test(httptest.NewRequest("GET", "/films/abc", nil))
	require.NoError(t, err)
	_, err = app.Test(httptest.NewRequest("GET", "/films/def", nil))
	require.NoError(t, err)

	// Both requests land on one label set
	count := testutil.ToFloat64(httpRequestsTotal.With(prometheus.Labels{
		"method": "GET",
		"route":  "/films/:uuid",
		"status": "200",
	}))
	assert.Equal(t, float64(2), count)
}

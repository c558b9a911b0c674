package middleware

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestID(t *testing.T) {
	t.Run("generates request ID when not present", func(t *testing.T) {
		app := fiber.New()

		var local string
		app.Use(RequestID())
		app.Get("/test", func(c *fiber.Ctx) error {
			local = GetRequestID(c)
			return c.SendStatus(200)
		})

		resp, err := app.Test(httptest.NewRequest("GET", "/test", nil))
		require.NoError(t, err)

		requestID := resp.Header.Get("X-Request-ID")
		assert.Len(t, requestID, 36)
		assert.Equal(t, requestID, local)
	})

	t.Run("preserves existing request ID from header", func(t *testing.T) {
		app := fiber.New()

		app.Use(RequestID())
		app.Get("/test", func(c *fiber.Ctx) error {
			return c.SendStatus(200)
		})

		req := httptest.NewRequest("GET", "/test", nil)
		req.Header.Set("X-Request-ID", "existing-request-id-12345")

		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, "existing-request-id-12345", resp.Header.Get("X-Request-ID"))
	})
}

func TestRequestIDWithConfig(t *testing.T) {
	t.Run("uses custom header and generator", func(t *testing.T) {
		app := fiber.New()

		callCount := 0
		app.Use(RequestID(RequestIDConfig{
			Header: "X-Custom-Request-ID",
			Generator: func() string {
				callCount++
				return "custom-generated-id"
			},
		}))
		app.Get("/test", func(c *fiber.Ctx) error {
			return c.SendStatus(200)
		})

		resp, err := app.Test(httptest.NewRequest("GET", "/test", nil))
		require.NoError(t, err)

		assert.Equal(t, "custom-generated-id", resp.Header.Get("X-Custom-Request-ID"))
		assert.Equal(t, 1, callCount)
	})

	t.Run("does not call generator when ID exists", func(t *testing.T) {
		app := fiber.New()

		callCount := 0
		app.Use(RequestID(RequestIDConfig{
			Header: "X-Request-ID",
			Generator: func() string {
				callCount++
				return "generated-id"
			},
		}))
		app.Get("/test", func(c *fiber.Ctx) error {
			return c.SendStatus(200)
		})

		req := httptest.NewRequest("GET", "/test", nil)
		req.Header.Set("X-Request-ID", "existing-id")
		_, err := app.Test(req)
		require.NoError(t, err)

		assert.Equal(t, 0, callCount)
	})
}

func TestGetRequestIDWithoutMiddleware(t *testing.T) {
	app := fiber.New()

	var local string
	app.Get("/test", func(c *fiber.Ctx) error {
		local = GetRequestID(c)
		return c.SendStatus(200)
	})

	_, err := app.Test(httptest.NewRequest("GET", "/test", nil))
	require.NoError(t, err)
	assert.Empty(t, local)
}

package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okPing(context.Context) error { return nil }

func downPing(context.Context) error { return errors.New("connection refused") }

func TestNewHealthHandler(t *testing.T) {
	t.Run("creates handler with correct initialization", func(t *testing.T) {
		handler := NewHealthHandler(nil, "1.2.3")

		require.NotNil(t, handler)
		assert.Equal(t, "1.2.3", handler.version)
		assert.NotNil(t, handler.checks)
		assert.False(t, handler.startTime.IsZero())
	})

	t.Run("start time is set to creation time", func(t *testing.T) {
		before := time.Now()
		handler := NewHealthHandler(nil, "1.0.0")
		after := time.Now()

		assert.True(t, handler.startTime.After(before) || handler.startTime.Equal(before))
		assert.True(t, handler.startTime.Before(after) || handler.startTime.Equal(after))
	})
}

func TestHealthHandler_Health(t *testing.T) {
	t.Run("healthy when every check passes", func(t *testing.T) {
		app := fiber.New()
		handler := NewHealthHandler(map[string]Pinger{
			"clickhouse": PingFunc(okPing),
		}, "1.0.0")
		app.Get("/health", handler.Health)

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var status HealthStatus
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
		assert.Equal(t, "healthy", status.Status)
		assert.Equal(t, "healthy", status.Checks["clickhouse"])
	})

	t.Run("degraded but still 200 when storage is down", func(t *testing.T) {
		app := fiber.New()
		handler := NewHealthHandler(map[string]Pinger{
			"clickhouse": PingFunc(okPing),
			"redis":      PingFunc(downPing),
		}, "1.0.0")
		app.Get("/health", handler.Health)

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var status HealthStatus
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
		assert.Equal(t, "degraded", status.Status)
		assert.Contains(t, status.Checks["redis"], "connection refused")
	})
}

func TestHealthHandler_Readiness(t *testing.T) {
	t.Run("ready without checks", func(t *testing.T) {
		app := fiber.New()
		handler := NewHealthHandler(nil, "1.0.0")
		app.Get("/ready", handler.Readiness)

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/ready", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("not ready names the failing dependency", func(t *testing.T) {
		app := fiber.New()
		handler := NewHealthHandler(map[string]Pinger{
			"postgres": PingFunc(downPing),
		}, "1.0.0")
		app.Get("/ready", handler.Readiness)

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/ready", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

		var result map[string]string
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
		assert.Equal(t, "postgres unavailable", result["reason"])
	})
}

func TestHealthHandler_Liveness(t *testing.T) {
	t.Run("returns alive status", func(t *testing.T) {
		app := fiber.New()
		handler := NewHealthHandler(nil, "1.0.0")

		app.Get("/livez", handler.Liveness)

		req := httptest.NewRequest(http.MethodGet, "/livez", nil)
		resp, err := app.Test(req)
		require.NoError(t, err)

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var result map[string]string
		err = json.NewDecoder(resp.Body).Decode(&result)
		require.NoError(t, err)
		assert.Equal(t, "alive", result["status"])
	})
}

func TestHealthHandler_Version(t *testing.T) {
	t.Run("returns version and uptime", func(t *testing.T) {
		app := fiber.New()
		handler := NewHealthHandler(nil, "2.1.0")

		app.Get("/version", handler.Version)

		req := httptest.NewRequest(http.MethodGet, "/version", nil)
		resp, err := app.Test(req)
		require.NoError(t, err)

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var result map[string]interface{}
		err = json.NewDecoder(resp.Body).Decode(&result)
		require.NoError(t, err)

		assert.Equal(t, "2.1.0", result["version"])
		assert.NotEmpty(t, result["uptime"])
	})
}

func TestHealthHandler_RegisterRoutes(t *testing.T) {
	t.Run("registers all health routes", func(t *testing.T) {
		app := fiber.New()
		handler := NewHealthHandler(nil, "1.0.0")

		handler.RegisterRoutes(app)

		routes := app.GetRoutes()
		routePaths := make(map[string]bool)
		for _, route := range routes {
			if route.Method == "GET" {
				routePaths[route.Path] = true
			}
		}

		expectedRoutes := []string{
			"/health",
			"/healthz",
			"/livez",
			"/live",
			"/readyz",
			"/ready",
			"/version",
		}

		for _, path := range expectedRoutes {
			assert.True(t, routePaths[path], "Route %s should be registered", path)
		}
	})
}

func TestNotFound(t *testing.T) {
	app := fiber.New()
	app.Use(NotFound)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/nope", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	var body ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "Not Found", body.Error)
	assert.Equal(t, "Route GET /nope not found", body.Message)
}

package middleware

import (
	"bytes"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestRequestID(t *testing.T) {
	app := fiber.New()
	app.Use(RequestID())

	var seen string
	app.Get("/test", func(c fiber.Ctx) error {
		seen = GetRequestID(c)
		return c.SendString("OK")
	})

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/test", nil))
	require.NoError(t, err)
	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, resp.Header.Get("X-Request-ID"))

	req := httptest.NewRequest(fiber.MethodGet, "/test", nil)
	req.Header.Set("X-Request-ID", "given-id")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, "given-id", resp.Header.Get("X-Request-ID"))

	// un ID troppo lungo viene sostituito
	req = httptest.NewRequest(fiber.MethodGet, "/test", nil)
	req.Header.Set("X-Request-ID", strings.Repeat("x", 200))
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Len(t, resp.Header.Get("X-Request-ID"), 36)
}

func TestLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	app := fiber.New()
	app.Use(RequestID())
	app.Use(Logging(LoggingConfig{
		Logger:        &logger,
		SkipPaths:     []string{"/health"},
		SlowThreshold: 20 * time.Millisecond,
	}))
	app.Get("/health", func(c fiber.Ctx) error { return c.SendString("OK") })
	app.Post("/ask", func(c fiber.Ctx) error {
		SetAgent(c, "nutrition")
		return c.SendString("OK")
	})
	app.Post("/slow", func(c fiber.Ctx) error {
		time.Sleep(40 * time.Millisecond)
		return fiber.NewError(fiber.StatusBadRequest, "bad")
	})

	_, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/health", nil))
	require.NoError(t, err)
	assert.Empty(t, buf.String())

	_, err = app.Test(httptest.NewRequest(fiber.MethodPost, "/ask", strings.NewReader(`{"prompt":"секрет"}`)))
	require.NoError(t, err)
	line := buf.String()
	assert.Contains(t, line, `"agent":"nutrition"`)
	assert.Contains(t, line, `"status":200`)
	assert.Contains(t, line, `"level":"info"`)
	assert.NotContains(t, line, "секрет")

	buf.Reset()
	_, err = app.Test(httptest.NewRequest(fiber.MethodPost, "/slow", nil))
	require.NoError(t, err)
	line = buf.String()
	assert.Contains(t, line, `"status":400`)
	assert.Contains(t, line, `"level":"warn"`)
	assert.Contains(t, line, "slow request")
}

func TestRecovery(t *testing.T) {
	app := fiber.New()
	app.Use(RequestID())
	app.Use(Recovery())

	app.Get("/panic", func(c fiber.Ctx) error {
		panic("test panic")
	})

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/panic", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
}

func TestAPIKey(t *testing.T) {
	tests := []struct {
		name       string
		configured string
		header     string
		wantStatus int
	}{
		{"valid key", "secret", "secret", fiber.StatusOK},
		{"wrong key", "secret", "nope", fiber.StatusForbidden},
		{"missing key", "secret", "", fiber.StatusForbidden},
		{"check disabled", "", "", fiber.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			app.Use(APIKey(APIKeyConfig{Key: tt.configured}))

			reached := false
			app.Post("/ask", func(c fiber.Ctx) error {
				reached = true
				return c.SendString("OK")
			})

			req := httptest.NewRequest(fiber.MethodPost, "/ask", nil)
			if tt.header != "" {
				req.Header.Set(APIKeyHeader, tt.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.Equal(t, tt.wantStatus == fiber.StatusOK, reached)
		})
	}
}

func TestAPIKey_RateLimit(t *testing.T) {
	app := fiber.New()
	app.Use(APIKey(APIKeyConfig{Key: "secret", RateLimit: 2}))
	app.Get("/", func(c fiber.Ctx) error { return c.SendString("OK") })

	statuses := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(fiber.MethodGet, "/", nil)
		req.Header.Set(APIKeyHeader, "secret")
		resp, err := app.Test(req)
		require.NoError(t, err)
		statuses = append(statuses, resp.StatusCode)
	}

	assert.Equal(t, []int{fiber.StatusOK, fiber.StatusOK, fiber.StatusTooManyRequests}, statuses)
}

func TestAPIKey_RateLimitPerUser(t *testing.T) {
	app := fiber.New()
	app.Use(APIKey(APIKeyConfig{Key: "secret", RateLimit: 1}))
	app.Get("/", func(c fiber.Ctx) error { return c.SendString("OK") })

	send := func(user string) int {
		req := httptest.NewRequest(fiber.MethodGet, "/", nil)
		req.Header.Set(APIKeyHeader, "secret")
		if user != "" {
			req.Header.Set(RequestUserHeader, user)
		}
		resp, err := app.Test(req)
		require.NoError(t, err)
		return resp.StatusCode
	}

	// stessa chiave condivisa, budget separati per utente
	assert.Equal(t, fiber.StatusOK, send("1"))
	assert.Equal(t, fiber.StatusOK, send("2"))
	assert.Equal(t, fiber.StatusTooManyRequests, send("1"))

	// senza utente si ricade sull'IP
	assert.Equal(t, fiber.StatusOK, send(""))
	assert.Equal(t, fiber.StatusTooManyRequests, send(""))
}

func TestClientRateLimiter_CleanupOnUse(t *testing.T) {
	rl := newClientRateLimiter(60)
	rl.allow("user:1")
	require.Len(t, rl.limiters, 1)

	// il limiter di user:1 è di nuovo pieno dopo un'attesa simulata
	rl.limiters["user:1"] = rate.NewLimiter(rl.limit, rl.burst)
	rl.lastCleanup = time.Now().Add(-2 * cleanupInterval)

	rl.allow("user:2")
	assert.NotContains(t, rl.limiters, "user:1")
	assert.Contains(t, rl.limiters, "user:2")
	assert.WithinDuration(t, time.Now(), rl.lastCleanup, time.Second)
}

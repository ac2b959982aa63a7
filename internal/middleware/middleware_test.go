package middleware

import (
	"SentraKTP/internal/entity"
	jwtPkg "SentraKTP/pkg/jwt"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestTokenMiddleware(t *testing.T) {
	t.Setenv(AccessTokenSecret, "test-secret")
	m := New(quietLogger())

	app := fiber.New()
	app.Use(m.NewRequestIDMiddleware())
	app.Get("/", m.NewTokenMiddleware, func(c *fiber.Ctx) error {
		client, err := jwtPkg.GetClientLoginData(c)
		if err != nil {
			return err
		}
		return c.SendString(client.ID + "/" + client.Name)
	})

	valid, _, err := jwtPkg.Sign(map[string]interface{}{"id": "kiosk-1", "name": "Front Desk"}, time.Minute)
	require.NoError(t, err)
	missingName, _, err := jwtPkg.Sign(map[string]interface{}{"id": "kiosk-1"}, time.Minute)
	require.NoError(t, err)
	expired, _, err := jwtPkg.Sign(map[string]interface{}{"id": "kiosk-1", "name": "Front Desk"}, -time.Minute)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"valid", "Bearer " + valid, fiber.StatusOK},
		{"missing header", "", fiber.StatusUnauthorized},
		{"wrong scheme", "Basic " + valid, fiber.StatusUnauthorized},
		{"missing claim", "Bearer " + missingName, fiber.StatusUnauthorized},
		{"expired", "Bearer " + expired, fiber.StatusUnauthorized},
		{"garbage", "Bearer abc.def.ghi", fiber.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}

			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)

			if tt.status == fiber.StatusOK {
				body, _ := io.ReadAll(resp.Body)
				assert.Equal(t, "kiosk-1/Front Desk", string(body))
			}
		})
	}
}

func TestGetClientLoginData_Missing(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		_, err := jwtPkg.GetClientLoginData(c)
		assert.ErrorIs(t, err, fiber.ErrUnauthorized)
		c.Locals(jwtPkg.ClientLocalsKey, entity.ClientLoginData{ID: "x", Name: "y"})
		_, err = jwtPkg.GetClientLoginData(c)
		assert.NoError(t, err)
		return nil
	})

	_, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
}

func TestRateLimiter(t *testing.T) {
	m := New(quietLogger(), WithRateLimit(1, 2))

	app := fiber.New()
	app.Get("/", m.NewRateLimiter, func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	var statuses []int
	for i := 0; i < 3; i++ {
		resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
		require.NoError(t, err)
		statuses = append(statuses, resp.StatusCode)
	}

	assert.Equal(t, []int{fiber.StatusOK, fiber.StatusOK, fiber.StatusTooManyRequests}, statuses)
}

func TestRequestID(t *testing.T) {
	m := New(quietLogger())

	app := fiber.New()
	app.Use(m.NewRequestIDMiddleware())
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString(m.GetRequestID(c))
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	generated := resp.Header.Get(RequestIDKey)
	assert.Len(t, generated, 26)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, generated, string(body))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set(RequestIDKey, "given-id")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, "given-id", resp.Header.Get(RequestIDKey))

	req = httptest.NewRequest("GET", "/", nil)
	req.Header.Set(RequestIDKey, "bad id with spaces")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Len(t, resp.Header.Get(RequestIDKey), 26)
}

func TestRateLimiter_EvictsIdleClients(t *testing.T) {
	now := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	rl := newRateLimiter(1, 1)
	rl.now = func() time.Time { return now }

	first := rl.GetLimiterFrom("10.0.0.1")
	assert.Same(t, first, rl.GetLimiterFrom("10.0.0.1"))

	now = now.Add(limiterIdleTTL + time.Second)
	rl.GetLimiterFrom("10.0.0.2")

	assert.Len(t, rl.bucket, 1)
	assert.NotSame(t, first, rl.GetLimiterFrom("10.0.0.1"))
}

func TestSanitizeRequestBody(t *testing.T) {
	out := sanitizeRequestBody([]byte(`{"image_base64":"aGVsbG8=","detect":true,"nik":"3201014508900003"}`))

	assert.NotContains(t, out, "aGVsbG8=")
	assert.NotContains(t, out, "3201014508900003")
	assert.Contains(t, out, `"detect":true`)

	assert.Equal(t, "[non-JSON body]", sanitizeRequestBody([]byte("plain")))
}

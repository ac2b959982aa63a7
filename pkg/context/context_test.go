package context

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestID(t *testing.T) {
	assert.Equal(t, "unknown", GetRequestID(context.Background()))
	assert.Equal(t, "req-1", GetRequestID(WithRequestID(context.Background(), "req-1")))
}

func TestFromFiberCtx(t *testing.T) {
	app := fiber.New()
	var got []string
	app.Get("/", func(c *fiber.Ctx) error {
		got = append(got, GetRequestID(FromFiberCtx(c)))
		return nil
	})
	app.Get("/local", func(c *fiber.Ctx) error {
		c.Locals("X-Request-ID", "from-locals")
		got = append(got, GetRequestID(FromFiberCtx(c)))
		return nil
	})

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Request-ID", "from-header")
	_, err := app.Test(req)
	require.NoError(t, err)

	_, err = app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)

	_, err = app.Test(httptest.NewRequest("GET", "/local", nil))
	require.NoError(t, err)

	assert.Equal(t, []string{"from-header", "unknown", "from-locals"}, got)
}

func TestSessionID(t *testing.T) {
	_, ok := GetSessionID(context.Background())
	assert.False(t, ok)

	ctx := WithSessionID(WithRequestID(context.Background(), "req-2"), "01HZX")
	sessionID, ok := GetSessionID(ctx)
	assert.True(t, ok)
	assert.Equal(t, "01HZX", sessionID)

	assert.Equal(t, map[string]interface{}{"request_id": "req-2", "session_id": "01HZX"}, LogFields(ctx))
	assert.Equal(t, map[string]interface{}{"request_id": "unknown"}, LogFields(context.Background()))
}

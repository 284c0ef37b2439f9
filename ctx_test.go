package auth_test

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-authflow"
)

func TestAccountContext(t *testing.T) {
	account := &auth.Account{ID: uuid.New(), Username: "alice"}

	ctx := auth.WithContext(context.Background(), account)
	got, ok := auth.FromContext(ctx)
	assert.True(t, ok)
	assert.Same(t, account, got)

	_, ok = auth.FromContext(context.Background())
	assert.False(t, ok)

	_, ok = auth.FromContext(auth.WithContext(context.Background(), nil))
	assert.False(t, ok)
}

func TestAccountFromLocals(t *testing.T) {
	account := &auth.Account{ID: uuid.New()}

	app := fiber.New()
	app.Get("/empty", func(c *fiber.Ctx) error {
		_, ok := auth.AccountFromLocals(c)
		assert.False(t, ok)
		return c.SendStatus(fiber.StatusNoContent)
	})
	app.Get("/set", func(c *fiber.Ctx) error {
		c.Locals("account", account)
		got, ok := auth.AccountFromLocals(c)
		assert.True(t, ok)
		assert.Same(t, account, got)
		return c.SendStatus(fiber.StatusNoContent)
	})

	for _, path := range []string{"/empty", "/set"} {
		resp, err := app.Test(httptest.NewRequest("GET", path, nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	}
}

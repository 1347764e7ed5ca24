package middleware

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret"

func newApp() *fiber.App {
	app := fiber.New()
	app.Get("/me", JWTProtected(secret), func(c *fiber.Ctx) error {
		name, _ := c.Locals("display_name").(string)
		return c.SendString(name)
	})
	return app
}

func TestJWTProtected(t *testing.T) {
	access, refresh, err := GenerateTokens("admin", secret, "Ops Team", "admin")
	require.NoError(t, err)
	require.NotEqual(t, access, refresh)
	other, _, err := GenerateTokens("admin", "other-secret", "x", "admin")
	require.NoError(t, err)

	cases := []struct {
		name   string
		header string
		query  string
		want   int
	}{
		{"bearer header", "Bearer " + access, "", fiber.StatusOK},
		{"query token", "", "?token=" + access, fiber.StatusOK},
		{"missing", "", "", fiber.StatusUnauthorized},
		{"no bearer prefix", access, "", fiber.StatusUnauthorized},
		{"wrong secret", "Bearer " + other, "", fiber.StatusUnauthorized},
		{"garbage", "Bearer nope", "", fiber.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/me"+tc.query, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			resp, err := newApp().Test(req)
			require.NoError(t, err)
			assert.Equal(t, tc.want, resp.StatusCode)
		})
	}
}

package middleware

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/projtrack-api/internal/models"
)

func TestRoleGuards(t *testing.T) {
	cases := []struct {
		name   string
		userID interface{}
		role   string
		guard  fiber.Handler
		want   int
	}{
		{"legacy teacher role reviews", uint(2), "Teacher", RequireReviewer(), fiber.StatusOK},
		{"faculty reviews", uint(2), "faculty", RequireReviewer(), fiber.StatusOK},
		{"admin reviews", uint(1), "admin", RequireReviewer(), fiber.StatusOK},
		{"student cannot review", uint(3), "student", RequireReviewer(), fiber.StatusForbidden},
		{"student is not admin", uint(3), "student", RequireRole(models.RoleAdmin), fiber.StatusForbidden},
		{"unknown role", uint(3), "janitor", RequireRole(models.RoleStudent), fiber.StatusForbidden},
		{"anonymous", nil, "admin", RequireRole(models.RoleAdmin), fiber.StatusUnauthorized},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := fiber.New()
			app.Get("/guarded", func(c *fiber.Ctx) error {
				if tc.userID != nil {
					c.Locals("user_id", tc.userID)
				}
				c.Locals("user_role", tc.role)
				return c.Next()
			}, tc.guard, func(c *fiber.Ctx) error {
				return c.SendStatus(fiber.StatusOK)
			})

			resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/guarded", nil))
			require.NoError(t, err)
			require.Equal(t, tc.want, resp.StatusCode)
		})
	}
}

func TestRateLimitKeysByUser(t *testing.T) {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		if id := c.Get("X-User"); id == "1" {
			c.Locals("user_id", uint(1))
		} else if id == "2" {
			c.Locals("user_id", uint(2))
		}
		return c.Next()
	})
	app.Use(RateLimit("test", 1, 0))
	app.Get("/api/v1/projects", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })
	app.Get("/api/v1/notifications/stream", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	call := func(path, user string) int {
		req := httptest.NewRequest(fiber.MethodGet, path, nil)
		req.Header.Set("X-User", user)
		resp, err := app.Test(req)
		require.NoError(t, err)
		return resp.StatusCode
	}

	require.Equal(t, fiber.StatusOK, call("/api/v1/projects", "1"))
	require.Equal(t, fiber.StatusTooManyRequests, call("/api/v1/projects", "1"))
	require.Equal(t, fiber.StatusOK, call("/api/v1/projects", "2"))
	require.Equal(t, fiber.StatusOK, call("/api/v1/notifications/stream", "1"))
}

package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	apperrors "github.com/spec-kit/curator-desk/pkg/util/errorutil"
)

func newTestApp() *fiber.App {
	return fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			var fiberErr *fiber.Error
			if errors.As(err, &fiberErr) {
				return c.SendStatus(fiberErr.Code)
			}
			return c.SendStatus(apperrors.ToDomainError(err).HTTPStatus)
		},
	})
}

func TestAuthMiddleware_Roles(t *testing.T) {
	tm := NewTokenManager("secret", 5)
	app := newTestApp()
	admin := app.Group("/admin", NewAuthMiddleware(tm).Handle)
	admin.Get("/read", RequireRole(RoleAdmin, RoleAuditor), func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		require.True(t, ok)
		return c.SendString(principal.Subject)
	})
	admin.Post("/write", RequireRole(RoleAdmin), func(c *fiber.Ctx) error {
		return c.SendStatus(http.StatusNoContent)
	})

	auditor, _, err := tm.GenerateToken("audit", RoleAuditor)
	require.NoError(t, err)

	cases := []struct {
		name   string
		method string
		path   string
		header string
		want   int
	}{
		{"no header", http.MethodGet, "/admin/read", "", http.StatusUnauthorized},
		{"wrong scheme", http.MethodGet, "/admin/read", "Basic abc", http.StatusUnauthorized},
		{"bad token", http.MethodGet, "/admin/read", "Bearer nope", http.StatusUnauthorized},
		{"auditor reads", http.MethodGet, "/admin/read", "Bearer " + auditor, http.StatusOK},
		{"auditor cannot write", http.MethodPost, "/admin/write", "Bearer " + auditor, http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tc.want, resp.StatusCode)
		})
	}
}

func TestWebhookGuard(t *testing.T) {
	hash, err := HashSecret("hook-secret", bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, CompareSecret(hash, "hook-secret"))

	app := newTestApp()
	guard := NewWebhookGuard(hash)
	app.Post("/hook", guard.Handle, func(c *fiber.Ctx) error { return c.SendStatus(http.StatusOK) })

	send := func(secret string) int {
		req := httptest.NewRequest(http.MethodPost, "/hook", nil)
		if secret != "" {
			req.Header.Set(WebhookSecretHeader, secret)
		}
		resp, err := app.Test(req)
		require.NoError(t, err)
		return resp.StatusCode
	}

	assert.Equal(t, http.StatusUnauthorized, send(""))
	assert.Equal(t, http.StatusUnauthorized, send("wrong"))
	assert.Equal(t, http.StatusOK, send("hook-secret"))
	assert.Equal(t, http.StatusOK, send("hook-secret"))
	assert.Equal(t, http.StatusUnauthorized, send("wrong"))
}

func TestWebhookGuard_DisabledWithoutHash(t *testing.T) {
	app := newTestApp()
	app.Post("/hook", NewWebhookGuard("").Handle, func(c *fiber.Ctx) error { return c.SendStatus(http.StatusOK) })
	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/hook", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

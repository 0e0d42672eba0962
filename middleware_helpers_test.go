package warehouse_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	warehouse "github.com/goliatone/go-warehouse"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unreachableUsers simulates the users store being down
type unreachableUsers struct {
	warehouse.Users
}

func (unreachableUsers) GetByEmail(context.Context, string) (*warehouse.User, error) {
	return nil, goerrors.New("users store unreachable", goerrors.CategoryInternal)
}

func newRoleGateApp(users warehouse.Users, claims *warehouse.TokenClaims, allowed ...warehouse.UserRole) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: warehouse.ErrorHandler})
	app.Get("/guarded",
		func(c *fiber.Ctx) error {
			if claims != nil {
				c.Locals(warehouse.ClaimsContextKey, claims)
			}
			return c.Next()
		},
		warehouse.RequireRoles(users, allowed...),
		func(c *fiber.Ctx) error {
			user, ok := warehouse.CurrentUser(c)
			if !ok {
				return fiber.ErrInternalServerError
			}
			return c.SendString(string(user.Role))
		})
	return app
}

func roleGateRequest(t *testing.T, app *fiber.App) (int, string) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/guarded", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func claimsFor(email string) *warehouse.TokenClaims {
	return &warehouse.TokenClaims{
		User: warehouse.TokenUser{Email: email, UID: uuid.NewString()},
	}
}

func TestRequireRoles(t *testing.T) {
	users := newMockUsers()
	users.byEmail["clerk@example.com"] = &warehouse.User{
		ID:            uuid.New(),
		Username:      "clerk",
		Email:         "clerk@example.com",
		Role:          warehouse.RoleUser,
		EmailVerified: true,
	}
	users.byEmail["pending@example.com"] = &warehouse.User{
		ID:       uuid.New(),
		Username: "pending",
		Email:    "pending@example.com",
		Role:     warehouse.RoleUser,
	}

	t.Run("verified member passes the member gate", func(t *testing.T) {
		app := newRoleGateApp(users, claimsFor("clerk@example.com"), warehouse.RoleUser, warehouse.RoleAdmin)
		status, body := roleGateRequest(t, app)
		assert.Equal(t, fiber.StatusOK, status)
		assert.Equal(t, string(warehouse.RoleUser), body)
	})

	t.Run("member is rejected by the admin gate", func(t *testing.T) {
		app := newRoleGateApp(users, claimsFor("clerk@example.com"), warehouse.RoleAdmin)
		status, body := roleGateRequest(t, app)
		assert.Equal(t, fiber.StatusForbidden, status)
		assert.Contains(t, body, "INSUFFICIENT_PERMISSION")
	})

	t.Run("valid token for an unverified account is rejected", func(t *testing.T) {
		app := newRoleGateApp(users, claimsFor("pending@example.com"), warehouse.RoleUser, warehouse.RoleAdmin)
		status, body := roleGateRequest(t, app)
		assert.Equal(t, fiber.StatusForbidden, status)
		assert.Contains(t, body, "ACCOUNT_NOT_VERIFIED")
	})

	t.Run("token for a deleted account reads as bad credentials", func(t *testing.T) {
		app := newRoleGateApp(users, claimsFor("ghost@example.com"), warehouse.RoleUser, warehouse.RoleAdmin)
		status, body := roleGateRequest(t, app)
		assert.Equal(t, fiber.StatusUnauthorized, status)
		assert.Contains(t, body, "INVALID_CREDENTIALS")
	})

	t.Run("users store failure is a server fault, not a credential error", func(t *testing.T) {
		app := newRoleGateApp(unreachableUsers{}, claimsFor("clerk@example.com"), warehouse.RoleUser)
		status, body := roleGateRequest(t, app)
		assert.Equal(t, fiber.StatusInternalServerError, status)
		assert.Contains(t, body, "internal server error")
		assert.NotContains(t, body, "INVALID_CREDENTIALS")
	})

	t.Run("missing claims are rejected", func(t *testing.T) {
		app := newRoleGateApp(users, nil, warehouse.RoleUser)
		status, _ := roleGateRequest(t, app)
		assert.Equal(t, fiber.StatusUnauthorized, status)
	})
}

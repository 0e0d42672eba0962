package warehouse

import (
	"context"

	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-warehouse/middleware/tokenware"
)

// ClaimsContextKey is the fiber locals key the gates store claims under
const ClaimsContextKey = "claims"

type tokenValidatorAdapter struct {
	service TokenService
}

func (a tokenValidatorAdapter) Decode(raw string) (tokenware.Claims, error) {
	claims, err := a.service.Decode(raw)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// ContextEnricherAdapter stores the decoded claims in the standard context
// for downstream guard usage.
func ContextEnricherAdapter(c context.Context, claims tokenware.Claims) context.Context {
	tokenClaims, ok := claims.(*TokenClaims)
	if !ok {
		return c
	}
	return WithClaimsContext(c, tokenClaims)
}

// Protected builds a gate accepting only access tokens
func Protected(service TokenService, blocklist Blocklist) fiber.Handler {
	return tokenware.New(tokenware.Config{
		Validator:       tokenValidatorAdapter{service: service},
		Blocklist:       blocklist,
		ContextKey:      ClaimsContextKey,
		ContextEnricher: ContextEnricherAdapter,
	})
}

// RefreshProtected builds a gate accepting only refresh tokens
func RefreshProtected(service TokenService, blocklist Blocklist) fiber.Handler {
	return tokenware.New(tokenware.Config{
		Validator:       tokenValidatorAdapter{service: service},
		Blocklist:       blocklist,
		RequireRefresh:  true,
		ContextKey:      ClaimsContextKey,
		ContextEnricher: ContextEnricherAdapter,
	})
}

// ClaimsFromFiber returns the claims a tokenware gate stored on the request
func ClaimsFromFiber(c *fiber.Ctx) (*TokenClaims, bool) {
	claims, ok := c.Locals(ClaimsContextKey).(*TokenClaims)
	return claims, ok
}

// RequireRoles returns a middleware that loads the token subject from
// persistence and rejects the request unless the account is verified and
// holds one of the allowed roles. It runs after an access token gate, so
// the claims are already trusted; the user row is still re-read so role
// changes and deletions take effect before the token expires.
func RequireRoles(users Users, allowed ...UserRole) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, ok := ClaimsFromFiber(c)
		if !ok {
			return ErrInvalidToken
		}

		user, err := users.GetByEmail(c.UserContext(), claims.Email())
		if err != nil {
			if goerrors.IsNotFound(err) {
				// The account may have been removed since the token was
				// issued; respond as if the credential itself were bad.
				return ErrInvalidCredentials
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load account for authorization")
		}

		if !user.EmailVerified {
			return ErrAccountNotVerified
		}

		if len(allowed) > 0 && !user.Role.In(allowed...) {
			return ErrInsufficientPermission
		}

		c.Locals("user", user)
		c.SetUserContext(WithContext(c.UserContext(), user))

		return c.Next()
	}
}

// CurrentUser returns the user record a RequireRoles gate stored on the
// request
func CurrentUser(c *fiber.Ctx) (*User, bool) {
	user, ok := c.Locals("user").(*User)
	return user, ok
}

// Package tokenware gates fiber routes behind the warehouse auth tokens.
// The checks run in a fixed order: extract the bearer token, verify the
// signature, verify the token kind, then consult the revocation blocklist.
// A request only reaches the handler once every stage has passed.
package tokenware

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-errors"
)

// Claims mirrors the claim accessors of the auth package without importing
// it, avoiding an import cycle.
type Claims interface {
	TokenID() string
	IsRefresh() bool
	Expires() time.Time
}

// TokenValidator mirrors the decode side of the auth token service
type TokenValidator interface {
	Decode(raw string) (Claims, error)
}

// Blocklist mirrors the revocation lookup of the auth package
type Blocklist interface {
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

var (
	ErrMissingToken = errors.New("request did not carry a bearer token", errors.CategoryAuth).
			WithTextCode("INVALID_TOKEN").
			WithCode(errors.CodeUnauthorized)

	ErrAccessTokenRequired = errors.New("a valid access token is required", errors.CategoryAuth).
				WithTextCode("ACCESS_TOKEN_REQUIRED").
				WithCode(errors.CodeUnauthorized)

	ErrRefreshTokenRequired = errors.New("a valid refresh token is required", errors.CategoryAuth).
				WithTextCode("REFRESH_TOKEN_REQUIRED").
				WithCode(errors.CodeUnauthorized)

	ErrRevokedToken = errors.New("token has been revoked", errors.CategoryAuth).
			WithTextCode("REVOKED_TOKEN").
			WithCode(errors.CodeUnauthorized)
)

type Config struct {
	// Validator is required; it verifies signatures and expiry
	Validator TokenValidator

	// Blocklist is optional; when set, revoked token ids are rejected
	Blocklist Blocklist

	// RequireRefresh selects which token kind the gate accepts. The two
	// kinds are mutually exclusive: an access gate rejects refresh tokens
	// and vice versa.
	RequireRefresh bool

	// Filter skips the middleware when it returns true
	Filter func(*fiber.Ctx) bool

	// ContextKey is the fiber locals key the claims are stored under
	ContextKey string

	// AuthScheme is the expected Authorization scheme prefix
	AuthScheme string

	// ContextEnricher propagates claims into the request's standard context
	ContextEnricher func(ctx context.Context, claims Claims) context.Context

	// ErrorHandler renders rejections; the default sends a JSON error body
	ErrorHandler func(c *fiber.Ctx, err error) error
}

func configDefaults(config ...Config) Config {
	var cfg Config
	if len(config) > 0 {
		cfg = config[0]
	}

	if cfg.Validator == nil {
		panic("tokenware: middleware configuration requires a Validator")
	}

	if cfg.ContextKey == "" {
		cfg.ContextKey = "claims"
	}

	if cfg.AuthScheme == "" {
		cfg.AuthScheme = "Bearer"
	}

	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = defaultErrorHandler
	}

	return cfg
}

// New builds the fiber middleware for the given config
func New(config ...Config) fiber.Handler {
	cfg := configDefaults(config...)

	return func(c *fiber.Ctx) error {
		if cfg.Filter != nil && cfg.Filter(c) {
			return c.Next()
		}

		raw, err := tokenFromHeader(c, cfg.AuthScheme)
		if err != nil {
			return cfg.ErrorHandler(c, err)
		}

		claims, err := cfg.Validator.Decode(raw)
		if err != nil {
			return cfg.ErrorHandler(c, err)
		}

		if claims.IsRefresh() != cfg.RequireRefresh {
			if cfg.RequireRefresh {
				return cfg.ErrorHandler(c, ErrRefreshTokenRequired)
			}
			return cfg.ErrorHandler(c, ErrAccessTokenRequired)
		}

		if cfg.Blocklist != nil {
			revoked, err := cfg.Blocklist.IsRevoked(c.UserContext(), claims.TokenID())
			if err != nil {
				// Fail closed: an unreachable blocklist must not admit
				// revoked tokens.
				return cfg.ErrorHandler(c, err)
			}
			if revoked {
				return cfg.ErrorHandler(c, ErrRevokedToken)
			}
		}

		c.Locals(cfg.ContextKey, claims)

		if cfg.ContextEnricher != nil {
			c.SetUserContext(cfg.ContextEnricher(c.UserContext(), claims))
		}

		return c.Next()
	}
}

func tokenFromHeader(c *fiber.Ctx, authScheme string) (string, error) {
	header := c.Get(fiber.HeaderAuthorization)
	if header == "" {
		return "", ErrMissingToken
	}

	l := len(authScheme)
	if len(header) > l+1 && strings.EqualFold(header[:l], authScheme) {
		token := strings.TrimSpace(header[l:])
		if token != "" {
			return token, nil
		}
	}

	return "", ErrMissingToken
}

func defaultErrorHandler(c *fiber.Ctx, err error) error {
	status := fiber.StatusUnauthorized
	message := "invalid or expired token"
	textCode := "INVALID_TOKEN"

	var richErr *errors.Error
	if errors.As(err, &richErr) {
		if richErr.Code > 0 {
			status = richErr.Code
		}
		if richErr.Message != "" {
			message = richErr.Message
		}
		if richErr.TextCode != "" {
			textCode = richErr.TextCode
		}
	}

	return c.Status(status).JSON(fiber.Map{
		"error": fiber.Map{
			"message":   message,
			"text_code": textCode,
		},
	})
}

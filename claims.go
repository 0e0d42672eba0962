package warehouse

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenKind distinguishes short lived access tokens from refresh tokens
type TokenKind string

const (
	// TokenKindAccess grants access to protected API routes
	TokenKindAccess TokenKind = "access"
	// TokenKindRefresh is only accepted by the token refresh endpoint
	TokenKindRefresh TokenKind = "refresh"
)

// TokenUser is the user summary embedded in token claims
type TokenUser struct {
	Email string `json:"email"`
	UID   string `json:"user_uid"`
	Role  string `json:"role,omitempty"`
}

// TokenClaims is the payload carried by every auth token. The refresh flag
// is authoritative for the token's kind: the claim set of a refresh token is
// otherwise identical to an access token's, minus the role.
type TokenClaims struct {
	jwt.RegisteredClaims
	User    TokenUser `json:"user"`
	Refresh bool      `json:"refresh"`
}

// Kind reports whether this is an access or refresh token
func (c *TokenClaims) Kind() TokenKind {
	if c.Refresh {
		return TokenKindRefresh
	}
	return TokenKindAccess
}

// IsRefresh reports whether this is a refresh token
func (c *TokenClaims) IsRefresh() bool {
	return c.Refresh
}

// TokenID returns the unique token identifier (jti)
func (c *TokenClaims) TokenID() string {
	return c.ID
}

// Email returns the subject user's email
func (c *TokenClaims) Email() string {
	return c.User.Email
}

// UserID returns the subject user's id as a string
func (c *TokenClaims) UserID() string {
	return c.User.UID
}

// UserUUID parses the subject user's id
func (c *TokenClaims) UserUUID() (uuid.UUID, error) {
	return uuid.Parse(c.User.UID)
}

// Role returns the role claim; empty for refresh tokens
func (c *TokenClaims) Role() UserRole {
	return UserRole(c.User.Role)
}

// Expires returns the expiration time
func (c *TokenClaims) Expires() time.Time {
	if c.RegisteredClaims.ExpiresAt != nil {
		return c.RegisteredClaims.ExpiresAt.Time
	}
	return time.Time{}
}

// Issued returns the issued at time
func (c *TokenClaims) Issued() time.Time {
	if c.RegisteredClaims.IssuedAt != nil {
		return c.RegisteredClaims.IssuedAt.Time
	}
	return time.Time{}
}

// TokenPair bundles the credentials returned by a successful login
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

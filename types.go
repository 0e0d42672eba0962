package warehouse

import (
	"context"
	"fmt"
	"time"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// TokenService issues and decodes the API auth tokens
type TokenService interface {
	Issue(user TokenUser, kind TokenKind, ttl time.Duration) (string, error)
	Decode(raw string) (*TokenClaims, error)
}

// Blocklist tracks revoked token ids until their natural expiry
type Blocklist interface {
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// PasswordAuthenticator authenticates passwords
type PasswordAuthenticator interface {
	HashPassword(password string) (string, error)
	ComparePasswordAndHash(password, hash string) error
}

// Mailer enqueues outbound mail; delivery happens asynchronously and
// failures never surface to the enqueuing request
type Mailer interface {
	Enqueue(ctx context.Context, msg MailMessage) error
}

// Authenticator holds the account lifecycle flows exposed over HTTP
type Authenticator interface {
	Signup(ctx context.Context, input SignupInput) (*User, error)
	VerifyEmail(ctx context.Context, token string) (*User, error)
	Login(ctx context.Context, identifier, password string) (*TokenPair, error)
	Refresh(ctx context.Context, claims *TokenClaims) (string, error)
	Logout(ctx context.Context, claims *TokenClaims) error
	RequestPasswordReset(ctx context.Context, email string) error
	ConfirmPasswordReset(ctx context.Context, token, newPassword, confirmPassword string) error
	SendMail(ctx context.Context, recipients []string, subject, htmlBody string) error
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] WAREHOUSE "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] WAREHOUSE "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] WAREHOUSE "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] WAREHOUSE "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
